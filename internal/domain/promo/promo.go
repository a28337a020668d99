// Package promo models promotions and resolves them into a discount or a
// replacement unit price for a candidate booking.
package promo

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pitlane/service-booking/internal/platform/domain"
)

// Promotion is the aggregate root for promotional rules.
type Promotion struct {
	id        uuid.UUID
	name      string
	active    bool
	validFrom *time.Time
	validTo   *time.Time
	rule      Rule
	createdAt time.Time
	updatedAt time.Time
}

// NewPromotion creates an active promotion.
func NewPromotion(name string, spec RuleSpec, validFrom, validTo *time.Time) (*Promotion, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, domain.NewValidationError("promotion name is required")
	}
	if validFrom != nil && validTo != nil && validTo.Before(*validFrom) {
		return nil, domain.NewValidationError("valid_to must be after valid_from")
	}
	rule, err := ParseRule(spec)
	if err != nil {
		return nil, domain.NewValidationError(err.Error())
	}

	now := time.Now().UTC()
	return &Promotion{
		id:        uuid.New(),
		name:      name,
		active:    true,
		validFrom: validFrom,
		validTo:   validTo,
		rule:      rule,
		createdAt: now,
		updatedAt: now,
	}, nil
}

// Reconstruct rebuilds a Promotion from persistence.
func Reconstruct(id uuid.UUID, name string, active bool, validFrom, validTo *time.Time, spec RuleSpec, createdAt, updatedAt time.Time) (*Promotion, error) {
	rule, err := ParseRule(spec)
	if err != nil {
		return nil, err
	}
	return &Promotion{
		id: id, name: name, active: active,
		validFrom: validFrom, validTo: validTo, rule: rule,
		createdAt: createdAt, updatedAt: updatedAt,
	}, nil
}

// ValidAt reports whether the promotion is active and t lies inside its
// optional validity range (both ends inclusive).
func (p *Promotion) ValidAt(t time.Time) bool {
	if !p.active {
		return false
	}
	if p.validFrom != nil && t.Before(*p.validFrom) {
		return false
	}
	if p.validTo != nil && t.After(*p.validTo) {
		return false
	}
	return true
}

// SetActive toggles the promotion.
func (p *Promotion) SetActive(active bool) {
	p.active = active
	p.updatedAt = time.Now().UTC()
}

// Getters.
func (p *Promotion) ID() uuid.UUID         { return p.id }
func (p *Promotion) Name() string          { return p.name }
func (p *Promotion) Active() bool          { return p.active }
func (p *Promotion) ValidFrom() *time.Time { return p.validFrom }
func (p *Promotion) ValidTo() *time.Time   { return p.validTo }
func (p *Promotion) Rule() Rule            { return p.rule }
func (p *Promotion) CreatedAt() time.Time  { return p.createdAt }
func (p *Promotion) UpdatedAt() time.Time  { return p.updatedAt }

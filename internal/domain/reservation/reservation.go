// Package reservation models bookings of simulator units and their lifecycle.
package reservation

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pitlane/service-booking/internal/platform/domain"
)

// Status is the lifecycle state of a reservation.
type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusCancelled Status = "cancelled"
)

// Valid reports whether s is one of the three known states.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusCancelled:
		return true
	}
	return false
}

const (
	// CancellationNotice is how far ahead of the start a confirmed
	// reservation may still be cancelled.
	CancellationNotice = 24 * time.Hour

	// PendingTTL is the default payment window for unpaid reservations.
	PendingTTL = 24 * time.Hour
)

// Reservation is the aggregate root of the booking domain. Prices are frozen
// at creation and never recomputed.
type Reservation struct {
	id                   uuid.UUID
	userID               string
	experienceID         string
	startTime            time.Time
	durationMin          int
	quantity             int
	status               Status
	totalPrice           int64
	depositRequired      int64
	depositPaid          int64
	appliedPromotionID   *uuid.UUID
	appliedPromotionName string
	createdAt            time.Time
	updatedAt            time.Time
}

// NewParams are the inputs of NewReservation.
type NewParams struct {
	UserID               string
	ExperienceID         string
	StartTime            time.Time
	DurationMin          int
	Quantity             int
	TotalPrice           int64
	DepositRequired      int64
	AppliedPromotionID   *uuid.UUID
	AppliedPromotionName string
	Now                  time.Time
}

// NewReservation creates a pending reservation.
func NewReservation(p NewParams) (*Reservation, error) {
	if p.UserID == "" {
		return nil, domain.NewValidationError("user is required")
	}
	if p.ExperienceID == "" {
		return nil, domain.NewValidationError("experience is required")
	}
	if p.Quantity <= 0 {
		return nil, domain.NewValidationError("quantity must be positive")
	}
	if p.DurationMin <= 0 {
		return nil, domain.NewValidationError("duration must be positive")
	}
	if p.TotalPrice < 0 || p.DepositRequired < 0 {
		return nil, domain.NewValidationError("prices must not be negative")
	}
	now := p.Now.UTC()
	return &Reservation{
		id:                   uuid.New(),
		userID:               p.UserID,
		experienceID:         p.ExperienceID,
		startTime:            p.StartTime.UTC(),
		durationMin:          p.DurationMin,
		quantity:             p.Quantity,
		status:               StatusPending,
		totalPrice:           p.TotalPrice,
		depositRequired:      p.DepositRequired,
		appliedPromotionID:   p.AppliedPromotionID,
		appliedPromotionName: p.AppliedPromotionName,
		createdAt:            now,
		updatedAt:            now,
	}, nil
}

// --- Getters ---

func (r *Reservation) ID() uuid.UUID                  { return r.id }
func (r *Reservation) UserID() string                 { return r.userID }
func (r *Reservation) ExperienceID() string           { return r.experienceID }
func (r *Reservation) StartTime() time.Time           { return r.startTime }
func (r *Reservation) DurationMin() int               { return r.durationMin }
func (r *Reservation) Quantity() int                  { return r.quantity }
func (r *Reservation) Status() Status                 { return r.status }
func (r *Reservation) TotalPrice() int64              { return r.totalPrice }
func (r *Reservation) DepositRequired() int64         { return r.depositRequired }
func (r *Reservation) DepositPaid() int64             { return r.depositPaid }
func (r *Reservation) AppliedPromotionID() *uuid.UUID { return r.appliedPromotionID }
func (r *Reservation) AppliedPromotionName() string   { return r.appliedPromotionName }
func (r *Reservation) CreatedAt() time.Time           { return r.createdAt }
func (r *Reservation) UpdatedAt() time.Time           { return r.updatedAt }

// Duration returns the booked session length.
func (r *Reservation) Duration() time.Duration {
	return time.Duration(r.durationMin) * time.Minute
}

// EndTime is always derived from the start and duration.
func (r *Reservation) EndTime() time.Time {
	return r.startTime.Add(r.Duration())
}

// --- State transitions ---

// Confirm records a payment and moves a pending reservation to confirmed.
// It returns false without error when the reservation is already confirmed.
func (r *Reservation) Confirm(amountPaid int64, now time.Time) (bool, error) {
	switch r.status {
	case StatusConfirmed:
		return false, nil
	case StatusPending:
		r.status = StatusConfirmed
		r.depositPaid = amountPaid
		r.updatedAt = now.UTC()
		return true, nil
	default:
		return false, domain.NewInvalidStateError(string(r.status), string(StatusConfirmed))
	}
}

// CheckCancellable applies the cancellation rules without mutating r.
func (r *Reservation) CheckCancellable(now time.Time) error {
	switch r.status {
	case StatusPending:
		return nil
	case StatusConfirmed:
		if now.After(r.startTime.Add(-CancellationNotice)) {
			return domain.NewBusinessRuleError(
				fmt.Sprintf("confirmed reservations can only be cancelled at least %s before the start", CancellationNotice))
		}
		return nil
	case StatusCancelled:
		return domain.NewBusinessRuleError("reservation is already cancelled")
	default:
		return domain.NewInvalidStateError(string(r.status), string(StatusCancelled))
	}
}

// Cancel moves the reservation to cancelled if the rules allow it.
func (r *Reservation) Cancel(now time.Time) error {
	if err := r.CheckCancellable(now); err != nil {
		return err
	}
	r.status = StatusCancelled
	r.updatedAt = now.UTC()
	return nil
}

// --- Reconstitution ---

// Reconstitute rebuilds a Reservation from persisted data.
func Reconstitute(
	id uuid.UUID,
	userID, experienceID string,
	startTime time.Time,
	durationMin, quantity int,
	status Status,
	totalPrice, depositRequired, depositPaid int64,
	appliedPromotionID *uuid.UUID,
	appliedPromotionName string,
	createdAt, updatedAt time.Time,
) *Reservation {
	return &Reservation{
		id:                   id,
		userID:               userID,
		experienceID:         experienceID,
		startTime:            startTime,
		durationMin:          durationMin,
		quantity:             quantity,
		status:               status,
		totalPrice:           totalPrice,
		depositRequired:      depositRequired,
		depositPaid:          depositPaid,
		appliedPromotionID:   appliedPromotionID,
		appliedPromotionName: appliedPromotionName,
		createdAt:            createdAt,
		updatedAt:            updatedAt,
	}
}

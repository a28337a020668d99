package promo

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Repository defines persistence operations for promotions.
type Repository interface {
	Save(ctx context.Context, p *Promotion) error
	Update(ctx context.Context, p *Promotion) error
	FindByID(ctx context.Context, id uuid.UUID) (*Promotion, error)

	// FindValidAt returns active promotions whose validity range contains t,
	// in a stable order (creation time, then id).
	FindValidAt(ctx context.Context, t time.Time) ([]*Promotion, error)

	// ListAll returns every promotion, newest first.
	ListAll(ctx context.Context) ([]*Promotion, error)
}

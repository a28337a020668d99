package reservation

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Cancellation is an append-only audit record of a reservation being cancelled.
type Cancellation struct {
	ID            uuid.UUID
	ReservationID uuid.UUID
	ActorID       string
	Reason        string
	CreatedAt     time.Time
}

const (
	// SystemActor is the actor recorded for automatic cancellations.
	SystemActor = "system"

	// ExpiredReason is the reason recorded by the pending sweeper.
	ExpiredReason = "auto-cancelled for non-payment (>24h)"
)

// NewCancellation builds an audit record.
func NewCancellation(reservationID uuid.UUID, actorID, reason string, now time.Time) Cancellation {
	return Cancellation{
		ID:            uuid.New(),
		ReservationID: reservationID,
		ActorID:       actorID,
		Reason:        reason,
		CreatedAt:     now.UTC(),
	}
}

// Filter narrows reservation listings.
type Filter struct {
	UserID string
	Status Status
	From   *time.Time
	To     *time.Time
	Page   int
	Limit  int
}

// Repository defines the persistence contract for reservations.
type Repository interface {
	// Save persists a new reservation.
	Save(ctx context.Context, r *Reservation) error

	// FindByID retrieves a reservation by id.
	FindByID(ctx context.Context, id uuid.UUID) (*Reservation, error)

	// LockDay takes a transaction-scoped exclusive lock on key. It must be
	// called inside a transaction and is held until that transaction ends.
	LockDay(ctx context.Context, key string) error

	// ListStartingBetween returns reservations whose start lies in [from, to),
	// regardless of status.
	ListStartingBetween(ctx context.Context, from, to time.Time) ([]*Reservation, error)

	// List returns a filtered page ordered by start time, newest first.
	List(ctx context.Context, f Filter) ([]*Reservation, int64, error)

	// UpdateStatus writes r's status, deposit paid and updated time only if the
	// stored status still equals expected. It reports whether a row changed.
	UpdateStatus(ctx context.Context, r *Reservation, expected Status) (bool, error)

	// CancelStalePending cancels every pending reservation created before
	// cutoff in one conditional update and returns the affected rows.
	CancelStalePending(ctx context.Context, cutoff, now time.Time) ([]*Reservation, error)

	// SaveCancellations appends audit records.
	SaveCancellations(ctx context.Context, cs ...Cancellation) error
}

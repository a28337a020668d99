package application

import (
	"context"
	"time"

	"github.com/pitlane/service-booking/internal/domain/reservation"
)

// Transactor runs fn inside one database transaction carried by ctx.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Reservation lifecycle event types.
const (
	EventReservationCreated   = "booking.reservation.created"
	EventReservationConfirmed = "booking.reservation.confirmed"
	EventReservationCancelled = "booking.reservation.cancelled"
	EventReservationExpired   = "booking.reservation.expired"
)

// ReservationEvent is published after a lifecycle change has committed.
type ReservationEvent struct {
	Type        string
	Reservation *reservation.Reservation
	ActorID     string
	Reason      string
	OccurredAt  time.Time
}

// EventPublisher announces lifecycle changes to other services. Publishing is
// best effort: failures are logged by the caller and never undo the change.
type EventPublisher interface {
	PublishReservationEvent(ctx context.Context, evt ReservationEvent) error
}

// NoopPublisher discards events.
type NoopPublisher struct{}

func (NoopPublisher) PublishReservationEvent(context.Context, ReservationEvent) error { return nil }

// Actor is the authenticated caller of a use case.
type Actor struct {
	ID      string
	IsAdmin bool
}

package payment

import (
	"context"

	"github.com/google/uuid"
)

// Repository defines the persistence contract for payments.
type Repository interface {
	// Upsert inserts the payment or, when a row with the same external payment
	// id exists, updates its status, amount and raw snapshot. It reports
	// whether a new row was inserted.
	Upsert(ctx context.Context, p *Payment) (bool, error)

	// ListByReservation returns the payments recorded for a reservation.
	ListByReservation(ctx context.Context, reservationID uuid.UUID) ([]*Payment, error)

	// ListAll retrieves all payments with pagination (admin).
	ListAll(ctx context.Context, page, limit int) ([]*Payment, int64, error)
}

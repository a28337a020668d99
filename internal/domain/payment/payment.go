// Package payment records what the payment provider reports about deposits.
package payment

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pitlane/service-booking/internal/platform/domain"
)

// Status is the provider's payment status, stored verbatim.
type Status string

const (
	StatusApproved  Status = "approved"
	StatusPending   Status = "pending"
	StatusInProcess Status = "in_process"
	StatusRejected  Status = "rejected"
	StatusCancelled Status = "cancelled"
	StatusRefunded  Status = "refunded"
)

// GatewayPayment is the normalised view of a provider payment, shared by the
// push and pull reconciliation paths.
type GatewayPayment struct {
	ID                string
	ExternalReference string
	Status            Status
	Amount            int64
	Raw               json.RawMessage
}

// Approved reports whether the payment settles the deposit.
func (g GatewayPayment) Approved() bool {
	return g.Status == StatusApproved
}

// ReservationID parses the external reference, which carries the reservation id.
func (g GatewayPayment) ReservationID() (uuid.UUID, bool) {
	ref := strings.TrimSpace(g.ExternalReference)
	if ref == "" {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(ref)
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

// Payment is one provider payment, keyed by the provider's payment id.
type Payment struct {
	id                uuid.UUID
	reservationID     uuid.UUID
	externalPaymentID string
	status            Status
	amount            int64
	raw               json.RawMessage
	createdAt         time.Time
	updatedAt         time.Time
}

// NewPayment builds a Payment from a gateway payment.
func NewPayment(gp GatewayPayment, reservationID uuid.UUID, now time.Time) (*Payment, error) {
	if gp.ID == "" {
		return nil, domain.NewValidationError("gateway payment id is required")
	}
	raw := gp.Raw
	if len(raw) == 0 {
		raw = json.RawMessage("{}")
	}
	now = now.UTC()
	return &Payment{
		id:                uuid.New(),
		reservationID:     reservationID,
		externalPaymentID: gp.ID,
		status:            gp.Status,
		amount:            gp.Amount,
		raw:               raw,
		createdAt:         now,
		updatedAt:         now,
	}, nil
}

func (p *Payment) ID() uuid.UUID             { return p.id }
func (p *Payment) ReservationID() uuid.UUID  { return p.reservationID }
func (p *Payment) ExternalPaymentID() string { return p.externalPaymentID }
func (p *Payment) Status() Status            { return p.status }
func (p *Payment) Amount() int64             { return p.amount }
func (p *Payment) Raw() json.RawMessage      { return p.raw }
func (p *Payment) CreatedAt() time.Time      { return p.createdAt }
func (p *Payment) UpdatedAt() time.Time      { return p.updatedAt }

// Reconstitute rebuilds a Payment from persisted data.
func Reconstitute(
	id, reservationID uuid.UUID,
	externalPaymentID string,
	status Status,
	amount int64,
	raw json.RawMessage,
	createdAt, updatedAt time.Time,
) *Payment {
	return &Payment{
		id:                id,
		reservationID:     reservationID,
		externalPaymentID: externalPaymentID,
		status:            status,
		amount:            amount,
		raw:               raw,
		createdAt:         createdAt,
		updatedAt:         updatedAt,
	}
}

package adapter

import (
	"context"

	"github.com/google/uuid"
	"github.com/pitlane/service-booking/internal/domain/payment"
)

// CheckoutRequest describes the deposit a customer is asked to pay.
type CheckoutRequest struct {
	ReservationID   uuid.UUID
	Title           string
	Amount          int64
	NotificationURL string
	ReturnURL       string
}

// Checkout is the provider-hosted checkout created for a reservation.
type Checkout struct {
	PreferenceID     string `json:"preference_id"`
	InitPoint        string `json:"init_point"`
	SandboxInitPoint string `json:"sandbox_init_point,omitempty"`
}

// PaymentGateway is the anti-corruption layer in front of the payment
// provider. Implementations return payments already normalised and wrap
// provider failures in domain gateway errors.
type PaymentGateway interface {
	// CreateCheckout creates a payment intent whose external reference is the
	// reservation id.
	CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error)

	// FetchPayment retrieves a payment by the provider's id.
	FetchPayment(ctx context.Context, paymentID string) (*payment.GatewayPayment, error)

	// SearchByReference returns the most recent payment carrying the external
	// reference, or nil when there is none.
	SearchByReference(ctx context.Context, externalReference string) (*payment.GatewayPayment, error)
}

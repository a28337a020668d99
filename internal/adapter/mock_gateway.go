package adapter

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/pitlane/service-booking/internal/domain/payment"
	"github.com/pitlane/service-booking/internal/platform/domain"
	"go.uber.org/zap"
)

// MockGateway is a development implementation of PaymentGateway used when no
// provider access token is configured. Payments are recorded with Put.
type MockGateway struct {
	mu       sync.RWMutex
	payments map[string]payment.GatewayPayment
	order    []string
	logger   *zap.Logger
}

// NewMockGateway creates an empty mock gateway.
func NewMockGateway(logger *zap.Logger) *MockGateway {
	return &MockGateway{payments: make(map[string]payment.GatewayPayment), logger: logger}
}

// Put records or replaces a payment as if the provider had processed it.
func (m *MockGateway) Put(p payment.GatewayPayment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.payments[p.ID]; !ok {
		m.order = append(m.order, p.ID)
	}
	m.payments[p.ID] = p
}

// CreateCheckout returns a fake checkout URL.
func (m *MockGateway) CreateCheckout(ctx context.Context, req CheckoutRequest) (*Checkout, error) {
	prefID := fmt.Sprintf("pref_mock_%s", uuid.New().String()[:8])
	m.logger.Info("[MOCK GATEWAY] checkout created",
		zap.String("preference_id", prefID),
		zap.String("reservation_id", req.ReservationID.String()),
		zap.Int64("amount", req.Amount),
	)
	return &Checkout{
		PreferenceID: prefID,
		InitPoint:    "https://checkout.mock.local/" + prefID,
	}, nil
}

// FetchPayment returns a recorded payment.
func (m *MockGateway) FetchPayment(ctx context.Context, paymentID string) (*payment.GatewayPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.payments[paymentID]
	if !ok {
		return nil, domain.NewNotFoundError("payment", paymentID)
	}
	return &p, nil
}

// SearchByReference returns the most recently recorded payment for the reference.
func (m *MockGateway) SearchByReference(ctx context.Context, externalReference string) (*payment.GatewayPayment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for i := len(m.order) - 1; i >= 0; i-- {
		p := m.payments[m.order[i]]
		if p.ExternalReference == externalReference {
			return &p, nil
		}
	}
	return nil, nil
}

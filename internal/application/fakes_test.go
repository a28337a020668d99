package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/pitlane/service-booking/internal/adapter"
	"github.com/pitlane/service-booking/internal/domain/catalog"
	"github.com/pitlane/service-booking/internal/domain/payment"
	"github.com/pitlane/service-booking/internal/domain/promo"
	"github.com/pitlane/service-booking/internal/domain/reservation"
	"github.com/pitlane/service-booking/internal/domain/schedule"
	"github.com/pitlane/service-booking/internal/lock"
	"github.com/pitlane/service-booking/internal/platform/domain"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// --- reservations ---

type memReservations struct {
	mu            sync.Mutex
	rows          map[uuid.UUID]*reservation.Reservation
	cancellations []reservation.Cancellation
	// casFailures makes the next n UpdateStatus calls report a lost race.
	casFailures int
	lockedDays  []string
}

func newMemReservations() *memReservations {
	return &memReservations{rows: make(map[uuid.UUID]*reservation.Reservation)}
}

func cloneReservation(r *reservation.Reservation) *reservation.Reservation {
	return reservation.Reconstitute(
		r.ID(), r.UserID(), r.ExperienceID(), r.StartTime(), r.DurationMin(), r.Quantity(),
		r.Status(), r.TotalPrice(), r.DepositRequired(), r.DepositPaid(),
		r.AppliedPromotionID(), r.AppliedPromotionName(), r.CreatedAt(), r.UpdatedAt(),
	)
}

func (m *memReservations) Save(_ context.Context, r *reservation.Reservation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows[r.ID()] = cloneReservation(r)
	return nil
}

func (m *memReservations) FindByID(_ context.Context, id uuid.UUID) (*reservation.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.rows[id]
	if !ok {
		return nil, domain.NewNotFoundError("reservation", id.String())
	}
	return cloneReservation(r), nil
}

func (m *memReservations) LockDay(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockedDays = append(m.lockedDays, key)
	return nil
}

func (m *memReservations) ListStartingBetween(_ context.Context, from, to time.Time) ([]*reservation.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*reservation.Reservation
	for _, r := range m.rows {
		if !r.StartTime().Before(from) && r.StartTime().Before(to) {
			out = append(out, cloneReservation(r))
		}
	}
	return out, nil
}

func (m *memReservations) List(_ context.Context, f reservation.Filter) ([]*reservation.Reservation, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*reservation.Reservation
	for _, r := range m.rows {
		if f.UserID != "" && r.UserID() != f.UserID {
			continue
		}
		if f.Status != "" && r.Status() != f.Status {
			continue
		}
		out = append(out, cloneReservation(r))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime().After(out[j].StartTime()) })
	return out, int64(len(out)), nil
}

func (m *memReservations) UpdateStatus(_ context.Context, r *reservation.Reservation, expected reservation.Status) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.casFailures > 0 {
		m.casFailures--
		return false, nil
	}
	stored, ok := m.rows[r.ID()]
	if !ok || stored.Status() != expected {
		return false, nil
	}
	m.rows[r.ID()] = cloneReservation(r)
	return true, nil
}

func (m *memReservations) CancelStalePending(_ context.Context, cutoff, now time.Time) ([]*reservation.Reservation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*reservation.Reservation
	for id, r := range m.rows {
		if r.Status() != reservation.StatusPending || !r.CreatedAt().Before(cutoff) {
			continue
		}
		updated := reservation.Reconstitute(
			r.ID(), r.UserID(), r.ExperienceID(), r.StartTime(), r.DurationMin(), r.Quantity(),
			reservation.StatusCancelled, r.TotalPrice(), r.DepositRequired(), r.DepositPaid(),
			r.AppliedPromotionID(), r.AppliedPromotionName(), r.CreatedAt(), now,
		)
		m.rows[id] = updated
		out = append(out, cloneReservation(updated))
	}
	return out, nil
}

func (m *memReservations) SaveCancellations(_ context.Context, cs ...reservation.Cancellation) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancellations = append(m.cancellations, cs...)
	return nil
}

func (m *memReservations) status(id uuid.UUID) reservation.Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.rows[id].Status()
}

// forceStatus rewrites a stored reservation, bypassing the lifecycle.
func (m *memReservations) forceStatus(id uuid.UUID, st reservation.Status) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r := m.rows[id]
	m.rows[id] = reservation.Reconstitute(
		r.ID(), r.UserID(), r.ExperienceID(), r.StartTime(), r.DurationMin(), r.Quantity(),
		st, r.TotalPrice(), r.DepositRequired(), r.DepositPaid(),
		r.AppliedPromotionID(), r.AppliedPromotionName(), r.CreatedAt(), r.UpdatedAt(),
	)
}

// --- promotions ---

type memPromos struct {
	mu    sync.Mutex
	items []*promo.Promotion
}

func (m *memPromos) Save(_ context.Context, p *promo.Promotion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.items = append(m.items, p)
	return nil
}

func (m *memPromos) Update(_ context.Context, p *promo.Promotion) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i, it := range m.items {
		if it.ID() == p.ID() {
			m.items[i] = p
			return nil
		}
	}
	return domain.NewNotFoundError("promotion", p.ID().String())
}

func (m *memPromos) FindByID(_ context.Context, id uuid.UUID) (*promo.Promotion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, it := range m.items {
		if it.ID() == id {
			return it, nil
		}
	}
	return nil, domain.NewNotFoundError("promotion", id.String())
}

func (m *memPromos) FindValidAt(_ context.Context, t time.Time) ([]*promo.Promotion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*promo.Promotion
	for _, it := range m.items {
		if it.ValidAt(t) {
			out = append(out, it)
		}
	}
	return out, nil
}

func (m *memPromos) ListAll(_ context.Context) ([]*promo.Promotion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*promo.Promotion(nil), m.items...), nil
}

// --- payments ---

type memPayments struct {
	mu   sync.Mutex
	rows map[string]*payment.Payment
}

func newMemPayments() *memPayments {
	return &memPayments{rows: make(map[string]*payment.Payment)}
}

func (m *memPayments) Upsert(_ context.Context, p *payment.Payment) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.rows[p.ExternalPaymentID()]
	if !ok {
		m.rows[p.ExternalPaymentID()] = p
		return true, nil
	}
	m.rows[p.ExternalPaymentID()] = payment.Reconstitute(
		existing.ID(), existing.ReservationID(), existing.ExternalPaymentID(),
		p.Status(), p.Amount(), p.Raw(), existing.CreatedAt(), p.UpdatedAt(),
	)
	return false, nil
}

func (m *memPayments) ListByReservation(_ context.Context, id uuid.UUID) ([]*payment.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*payment.Payment
	for _, p := range m.rows {
		if p.ReservationID() == id {
			out = append(out, p)
		}
	}
	return out, nil
}

func (m *memPayments) ListAll(_ context.Context, _, _ int) ([]*payment.Payment, int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*payment.Payment
	for _, p := range m.rows {
		out = append(out, p)
	}
	return out, int64(len(out)), nil
}

func (m *memPayments) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

// --- infrastructure ---

type passthroughTx struct{}

func (passthroughTx) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// lapsedLocker grants the lock but reports the lease as already lost.
type lapsedLocker struct{}

func (lapsedLocker) Lock(ctx context.Context, _ string) (context.Context, lock.Unlock, error) {
	held, cancel := context.WithCancel(ctx)
	cancel()
	return held, func() {}, nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []ReservationEvent
}

func (p *recordingPublisher) PublishReservationEvent(_ context.Context, evt ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *recordingPublisher) count(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

type mockGateway struct {
	mock.Mock
}

func (m *mockGateway) CreateCheckout(ctx context.Context, req adapter.CheckoutRequest) (*adapter.Checkout, error) {
	args := m.Called(ctx, req)
	co, _ := args.Get(0).(*adapter.Checkout)
	return co, args.Error(1)
}

func (m *mockGateway) FetchPayment(ctx context.Context, id string) (*payment.GatewayPayment, error) {
	args := m.Called(ctx, id)
	gp, _ := args.Get(0).(*payment.GatewayPayment)
	return gp, args.Error(1)
}

func (m *mockGateway) SearchByReference(ctx context.Context, ref string) (*payment.GatewayPayment, error) {
	args := m.Called(ctx, ref)
	gp, _ := args.Get(0).(*payment.GatewayPayment)
	return gp, args.Error(1)
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fixture wires the services over in-memory fakes.
type fixture struct {
	reservations *memReservations
	promos       *memPromos
	payments     *memPayments
	events       *recordingPublisher
	gateway      *mockGateway
	clock        *clock
	svc          *ReservationService
	paySvc       *PaymentService
}

// monday is 2025-03-10 10:00 UTC; the following Wednesday is the 12th.
var monday = time.Date(2025, 3, 10, 10, 0, 0, 0, time.UTC)

func newFixture(pricing map[string]int64) *fixture {
	f := &fixture{
		reservations: newMemReservations(),
		promos:       &memPromos{},
		payments:     newMemPayments(),
		events:       &recordingPublisher{},
		gateway:      &mockGateway{},
		clock:        &clock{now: monday},
	}
	settings := catalog.NewSettings(6, time.UTC, schedule.Default(), pricing)
	f.svc = NewReservationService(f.reservations, f.promos, passthroughTx{}, lock.NewKeyedMutex(), settings, f.events, zap.NewNop()).
		WithClock(f.clock.Now)
	f.paySvc = NewPaymentService(f.payments, f.svc, f.gateway, passthroughTx{}, CheckoutURLs{
		NotificationURL: "https://book.example/api/v1/payments/webhook",
	}, zap.NewNop()).WithClock(f.clock.Now)
	return f
}

// approve delivers an approved payment for reservation id through the
// notification path.
func (f *fixture) approve(t *testing.T, id uuid.UUID, paymentID string, amount int64) {
	t.Helper()
	gp := &payment.GatewayPayment{ID: paymentID, ExternalReference: id.String(), Status: payment.StatusApproved, Amount: amount}
	f.gateway.On("FetchPayment", mock.Anything, paymentID).Return(gp, nil)
	_, err := f.paySvc.HandleNotification(context.Background(), notification(t, fmt.Sprintf(`{"type":"payment","data":{"id":%q}}`, paymentID)))
	require.NoError(t, err)
}

func at(day int, hour, minute int) time.Time {
	return time.Date(2025, 3, day, hour, minute, 0, 0, time.UTC)
}

package application

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/pitlane/service-booking/internal/adapter"
	"github.com/pitlane/service-booking/internal/domain/payment"
	"github.com/pitlane/service-booking/internal/domain/reservation"
	"github.com/pitlane/service-booking/internal/platform/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func notification(t *testing.T, body string) PaymentNotification {
	t.Helper()
	var n PaymentNotification
	require.NoError(t, json.Unmarshal([]byte(body), &n))
	return n
}

func TestPaymentNotification_PaymentID(t *testing.T) {
	cases := []struct {
		body string
		id   string
		ok   bool
	}{
		{`{"type":"payment","data":{"id":"123"}}`, "123", true},
		{`{"type":"payment","data":{"id":456}}`, "456", true},
		{`{"topic":"payment","resource":"https://api.mercadopago.com/v1/payments/789"}`, "789", true},
		{`{"topic":"merchant_order","resource":"https://api.mercadopago.com/merchant_orders/1"}`, "", false},
		{`{"type":"payment"}`, "", false},
	}
	for _, tc := range cases {
		id, ok := notification(t, tc.body).PaymentID()
		assert.Equal(t, tc.ok, ok, tc.body)
		assert.Equal(t, tc.id, id, tc.body)
	}
}

func TestHandleNotification_DuplicateDeliveryIsIdempotent(t *testing.T) {
	f := newFixture(nil)
	r, err := f.svc.Create(ctx, "alice", book(at(12, 18, 0), 1))
	require.NoError(t, err)

	gp := &payment.GatewayPayment{ID: "mp-1", ExternalReference: r.ID.String(), Status: payment.StatusApproved, Amount: 7500}
	f.gateway.On("FetchPayment", mock.Anything, "mp-1").Return(gp, nil)

	n := notification(t, `{"type":"payment","data":{"id":"mp-1"}}`)
	for i := 0; i < 3; i++ {
		res, err := f.paySvc.HandleNotification(ctx, n)
		require.NoError(t, err)
		assert.True(t, res.Processed)
		assert.Equal(t, "approved", res.Status)
	}

	assert.Equal(t, 1, f.payments.count())
	assert.Equal(t, reservation.StatusConfirmed, f.reservations.status(r.ID))
	assert.Equal(t, 1, f.events.count(EventReservationConfirmed))

	got, err := f.svc.Get(ctx, Actor{ID: "alice"}, r.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7500), got.DepositPaid)
}

func TestHandleNotification_ConcurrentDuplicatesConfirmOnce(t *testing.T) {
	f := newFixture(nil)
	r, err := f.svc.Create(ctx, "alice", book(at(12, 18, 0), 1))
	require.NoError(t, err)

	gp := &payment.GatewayPayment{ID: "mp-2", ExternalReference: r.ID.String(), Status: payment.StatusApproved, Amount: 7500}
	f.gateway.On("FetchPayment", mock.Anything, "mp-2").Return(gp, nil)
	n := notification(t, `{"type":"payment","data":{"id":"mp-2"}}`)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.paySvc.HandleNotification(ctx, n)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, f.payments.count())
	assert.Equal(t, 1, f.events.count(EventReservationConfirmed))
}

func TestHandleNotification_IgnoresOtherTopics(t *testing.T) {
	f := newFixture(nil)

	res, err := f.paySvc.HandleNotification(ctx, notification(t, `{"topic":"merchant_order","resource":"x/1"}`))
	require.NoError(t, err)
	assert.True(t, res.Ignored)
	f.gateway.AssertNotCalled(t, "FetchPayment", mock.Anything, mock.Anything)
}

func TestHandleNotification_GatewayFailureIsRetryable(t *testing.T) {
	f := newFixture(nil)
	f.gateway.On("FetchPayment", mock.Anything, "mp-3").
		Return(nil, domain.NewGatewayError("fetch payment", errors.New("timeout")))

	_, err := f.paySvc.HandleNotification(ctx, notification(t, `{"type":"payment","data":{"id":"mp-3"}}`))
	require.Error(t, err)
	assert.True(t, domain.IsRetryable(err))
	assert.Zero(t, f.payments.count())
}

func TestHandleNotification_PendingPaymentRecordedOnly(t *testing.T) {
	f := newFixture(nil)
	r, err := f.svc.Create(ctx, "alice", book(at(12, 18, 0), 1))
	require.NoError(t, err)

	f.gateway.On("FetchPayment", mock.Anything, "mp-4").
		Return(&payment.GatewayPayment{ID: "mp-4", ExternalReference: r.ID.String(), Status: payment.StatusInProcess, Amount: 7500}, nil)

	res, err := f.paySvc.HandleNotification(ctx, notification(t, `{"type":"payment","data":{"id":"mp-4"}}`))
	require.NoError(t, err)
	assert.Equal(t, "in_process", res.Status)
	assert.Equal(t, 1, f.payments.count())
	assert.Equal(t, reservation.StatusPending, f.reservations.status(r.ID))
}

func TestReconcile_UnresolvableReferencesAreIgnored(t *testing.T) {
	f := newFixture(nil)

	out, err := f.paySvc.reconcile(ctx, payment.GatewayPayment{ID: "mp-5", Status: payment.StatusApproved})
	require.NoError(t, err)
	assert.True(t, out.ignored)

	out, err = f.paySvc.reconcile(ctx, payment.GatewayPayment{ID: "mp-6", ExternalReference: "not-a-uuid", Status: payment.StatusApproved})
	require.NoError(t, err)
	assert.True(t, out.ignored)

	out, err = f.paySvc.reconcile(ctx, payment.GatewayPayment{
		ID: "mp-7", ExternalReference: "7f1d7c8e-1a7e-4a8e-9a56-0b7f2d2b9c11", Status: payment.StatusApproved,
	})
	require.NoError(t, err)
	assert.True(t, out.ignored)

	assert.Zero(t, f.payments.count())
}

func TestReconcile_ApprovedForCancelledKeepsPayment(t *testing.T) {
	f := newFixture(nil)
	r, err := f.svc.Create(ctx, "alice", book(at(12, 18, 0), 1))
	require.NoError(t, err)
	f.reservations.forceStatus(r.ID, reservation.StatusCancelled)

	out, err := f.paySvc.reconcile(ctx, payment.GatewayPayment{
		ID: "mp-8", ExternalReference: r.ID.String(), Status: payment.StatusApproved, Amount: 7500,
	})
	require.NoError(t, err)
	assert.False(t, out.confirmed)
	assert.Equal(t, 1, f.payments.count())
	assert.Equal(t, reservation.StatusCancelled, f.reservations.status(r.ID))
}

func TestSync_ByReservation(t *testing.T) {
	f := newFixture(nil)
	r, err := f.svc.Create(ctx, "alice", book(at(12, 18, 0), 1))
	require.NoError(t, err)

	f.gateway.On("SearchByReference", mock.Anything, r.ID.String()).
		Return(&payment.GatewayPayment{ID: "mp-9", ExternalReference: r.ID.String(), Status: payment.StatusApproved, Amount: 7500}, nil)

	res, err := f.paySvc.Sync(ctx, "", r.ID.String())
	require.NoError(t, err)
	assert.True(t, res.Found)
	assert.Equal(t, "mp-9", res.PaymentID)
	assert.Equal(t, r.ID.String(), res.ReservationID)
	assert.Equal(t, reservation.StatusConfirmed, f.reservations.status(r.ID))
}

func TestSync_NotFound(t *testing.T) {
	f := newFixture(nil)
	f.gateway.On("SearchByReference", mock.Anything, "ref").Return(nil, nil)
	f.gateway.On("FetchPayment", mock.Anything, "missing").Return(nil, domain.NewNotFoundError("payment", "missing"))

	res, err := f.paySvc.Sync(ctx, "", "ref")
	require.NoError(t, err)
	assert.False(t, res.Found)

	res, err = f.paySvc.Sync(ctx, "missing", "")
	require.NoError(t, err)
	assert.False(t, res.Found)

	_, err = f.paySvc.Sync(ctx, "", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCheckout_UsesDepositAndReference(t *testing.T) {
	f := newFixture(nil)
	r, err := f.svc.Create(ctx, "alice", book(at(12, 18, 0), 2))
	require.NoError(t, err)

	f.gateway.On("CreateCheckout", mock.Anything, mock.MatchedBy(func(req adapter.CheckoutRequest) bool {
		return req.ReservationID == r.ID && req.Amount == 15000 && req.Title == "Grand Prix x2"
	})).Return(&adapter.Checkout{PreferenceID: "pref-1", InitPoint: "https://mp/pref-1"}, nil)

	co, err := f.paySvc.Checkout(ctx, Actor{ID: "alice"}, r.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://mp/pref-1", co.InitPoint)
	assert.Equal(t, int64(15000), co.Amount)
	f.gateway.AssertExpectations(t)

	_, err = f.paySvc.Checkout(ctx, Actor{ID: "mallory"}, r.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	_, err = f.svc.Cancel(ctx, Actor{ID: "alice"}, r.ID, "")
	require.NoError(t, err)
	_, err = f.paySvc.Checkout(ctx, Actor{ID: "alice"}, r.ID)
	assert.ErrorIs(t, err, domain.ErrBusinessRule)
}

package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/pitlane/service-booking/internal/adapter"
	"github.com/pitlane/service-booking/internal/domain/catalog"
	"github.com/pitlane/service-booking/internal/domain/payment"
	"github.com/pitlane/service-booking/internal/domain/reservation"
	"github.com/pitlane/service-booking/internal/platform/domain"
	"go.uber.org/zap"
)

// CheckoutURLs are the public URLs handed to the provider with each checkout.
type CheckoutURLs struct {
	NotificationURL string
	ReturnURL       string
}

// PaymentService reconciles provider payments with reservations. Push
// notifications and pull syncs share one reconciliation path.
type PaymentService struct {
	payments     payment.Repository
	reservations *ReservationService
	gateway      adapter.PaymentGateway
	tx           Transactor
	urls         CheckoutURLs
	now          func() time.Time
	logger       *zap.Logger
}

// NewPaymentService creates a new PaymentService.
func NewPaymentService(
	payments payment.Repository,
	reservations *ReservationService,
	gateway adapter.PaymentGateway,
	tx Transactor,
	urls CheckoutURLs,
	logger *zap.Logger,
) *PaymentService {
	return &PaymentService{
		payments:     payments,
		reservations: reservations,
		gateway:      gateway,
		tx:           tx,
		urls:         urls,
		now:          time.Now,
		logger:       logger,
	}
}

// WithClock replaces the time source.
func (s *PaymentService) WithClock(now func() time.Time) *PaymentService {
	s.now = now
	return s
}

// reconcileOutcome is what one reconciliation did.
type reconcileOutcome struct {
	reservationID uuid.UUID
	inserted      bool
	confirmed     bool
	ignored       bool
}

// HandleNotification processes a push notification. Non-payment topics are
// acknowledged and ignored. Any returned error means the provider should
// deliver the notification again.
func (s *PaymentService) HandleNotification(ctx context.Context, n PaymentNotification) (*NotificationResult, error) {
	paymentID, ok := n.PaymentID()
	if !ok {
		s.logger.Debug("ignoring non-payment notification",
			zap.String("topic", n.Topic),
			zap.String("type", n.Type),
		)
		return &NotificationResult{Ignored: true}, nil
	}

	gp, err := s.gateway.FetchPayment(ctx, paymentID)
	if err != nil {
		s.logger.Error("failed to fetch notified payment",
			zap.String("external_payment_id", paymentID),
			zap.Error(err),
		)
		return nil, err
	}

	if _, err := s.reconcile(ctx, *gp); err != nil {
		return nil, err
	}
	return &NotificationResult{Processed: true, Status: string(gp.Status)}, nil
}

// Sync pulls the provider's view of a payment, by payment id or by the
// reservation it references, and reconciles it.
func (s *PaymentService) Sync(ctx context.Context, paymentID, reservationID string) (*SyncResultDTO, error) {
	paymentID = strings.TrimSpace(paymentID)
	reservationID = strings.TrimSpace(reservationID)

	var (
		gp  *payment.GatewayPayment
		err error
	)
	switch {
	case paymentID != "":
		gp, err = s.gateway.FetchPayment(ctx, paymentID)
		if isNotFound(err) {
			return &SyncResultDTO{Found: false}, nil
		}
	case reservationID != "":
		gp, err = s.gateway.SearchByReference(ctx, reservationID)
	default:
		return nil, domain.NewValidationError("payment_id or reservation_id is required")
	}
	if err != nil {
		return nil, err
	}
	if gp == nil {
		return &SyncResultDTO{Found: false}, nil
	}

	if _, err := s.reconcile(ctx, *gp); err != nil {
		return nil, err
	}
	return &SyncResultDTO{
		Found:         true,
		Status:        string(gp.Status),
		PaymentID:     gp.ID,
		ReservationID: gp.ExternalReference,
	}, nil
}

// reconcile upserts the payment and, when approved, confirms the reservation,
// both in one transaction. Payments that cannot be tied to a known
// reservation are logged and skipped so the provider stops redelivering them.
func (s *PaymentService) reconcile(ctx context.Context, gp payment.GatewayPayment) (reconcileOutcome, error) {
	log := s.logger.With(
		zap.String("external_payment_id", gp.ID),
		zap.String("payment_status", string(gp.Status)),
	)

	resID, ok := gp.ReservationID()
	if !ok {
		log.Warn("payment has no usable external reference, ignoring",
			zap.String("external_reference", gp.ExternalReference),
		)
		return reconcileOutcome{ignored: true}, nil
	}
	log = log.With(zap.String("reservation_id", resID.String()))

	out := reconcileOutcome{reservationID: resID}
	var confirmed *reservation.Reservation

	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if _, err := s.reservations.repo.FindByID(ctx, resID); err != nil {
			if isNotFound(err) {
				out.ignored = true
				return nil
			}
			return err
		}

		p, err := payment.NewPayment(gp, resID, s.now())
		if err != nil {
			return err
		}
		if out.inserted, err = s.payments.Upsert(ctx, p); err != nil {
			return err
		}
		if !gp.Approved() {
			return nil
		}

		r, changed, err := s.reservations.confirm(ctx, resID, gp.Amount)
		if errors.Is(err, domain.ErrInvalidState) {
			// The payment row stays; a cancelled reservation is never revived.
			log.Warn("approved payment for a reservation that cannot be confirmed", zap.Error(err))
			return nil
		}
		if err != nil {
			return err
		}
		if changed {
			confirmed = r
		}
		return nil
	})
	if err != nil {
		log.Error("payment reconciliation failed", zap.Error(err))
		return out, err
	}

	if out.ignored {
		log.Warn("payment references an unknown reservation, ignoring")
		return out, nil
	}
	if confirmed != nil {
		out.confirmed = true
		s.reservations.publishConfirmed(ctx, confirmed)
	}
	log.Info("payment reconciled",
		zap.Bool("inserted", out.inserted),
		zap.Bool("confirmed", out.confirmed),
		zap.Int64("amount", gp.Amount),
	)
	return out, nil
}

// Checkout creates a provider checkout for a pending reservation's deposit.
func (s *PaymentService) Checkout(ctx context.Context, actor Actor, reservationID uuid.UUID) (*CheckoutDTO, error) {
	r, err := s.reservations.repo.FindByID(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin && r.UserID() != actor.ID {
		return nil, domain.NewForbiddenError("reservation belongs to another user")
	}
	if r.Status() != reservation.StatusPending {
		return nil, domain.NewBusinessRuleError(fmt.Sprintf("only pending reservations can be paid, status is %s", r.Status()))
	}

	title := r.ExperienceID()
	if exp, ok := catalog.ExperienceByID(r.ExperienceID()); ok {
		title = exp.Name
	}
	co, err := s.gateway.CreateCheckout(ctx, adapter.CheckoutRequest{
		ReservationID:   r.ID(),
		Title:           fmt.Sprintf("%s x%d", title, r.Quantity()),
		Amount:          r.DepositRequired(),
		NotificationURL: s.urls.NotificationURL,
		ReturnURL:       s.urls.ReturnURL,
	})
	if err != nil {
		return nil, err
	}
	return &CheckoutDTO{
		ReservationID:    r.ID(),
		Amount:           r.DepositRequired(),
		PreferenceID:     co.PreferenceID,
		InitPoint:        co.InitPoint,
		SandboxInitPoint: co.SandboxInitPoint,
	}, nil
}

// ListPayments returns a page of all payments (admin).
func (s *PaymentService) ListPayments(ctx context.Context, page, limit int) ([]PaymentDTO, int64, error) {
	payments, total, err := s.payments.ListAll(ctx, page, limit)
	if err != nil {
		return nil, 0, err
	}
	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	return dtos, total, nil
}

// ListReservationPayments returns the payments recorded for a reservation
// visible to actor.
func (s *PaymentService) ListReservationPayments(ctx context.Context, actor Actor, reservationID uuid.UUID) ([]PaymentDTO, error) {
	if _, err := s.reservations.Get(ctx, actor, reservationID); err != nil {
		return nil, err
	}
	payments, err := s.payments.ListByReservation(ctx, reservationID)
	if err != nil {
		return nil, err
	}
	dtos := make([]PaymentDTO, len(payments))
	for i, p := range payments {
		dtos[i] = toPaymentDTO(p)
	}
	return dtos, nil
}

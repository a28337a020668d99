package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pitlane/service-booking/internal/domain/catalog"
	"github.com/pitlane/service-booking/internal/domain/pricing"
	"github.com/pitlane/service-booking/internal/domain/promo"
	"github.com/pitlane/service-booking/internal/domain/reservation"
	"github.com/pitlane/service-booking/internal/lock"
	"github.com/pitlane/service-booking/internal/platform/domain"
	"go.uber.org/zap"
)

// maxCancelAttempts bounds re-evaluation when a reservation changes between
// read and conditional write.
const maxCancelAttempts = 3

const outsideHoursReason = "outside operating hours"

// defaultLockTimeout bounds the work done while holding a slot lock.
const defaultLockTimeout = 5 * time.Second

// ReservationService orchestrates the reservation lifecycle.
type ReservationService struct {
	repo        reservation.Repository
	promos      promo.Repository
	tx          Transactor
	locker      lock.Locker
	settings    catalog.Settings
	events      EventPublisher
	pendingTTL  time.Duration
	lockTimeout time.Duration
	now         func() time.Time
	logger      *zap.Logger
}

// NewReservationService creates a new ReservationService.
func NewReservationService(
	repo reservation.Repository,
	promos promo.Repository,
	tx Transactor,
	locker lock.Locker,
	settings catalog.Settings,
	events EventPublisher,
	logger *zap.Logger,
) *ReservationService {
	if events == nil {
		events = NoopPublisher{}
	}
	return &ReservationService{
		repo:        repo,
		promos:      promos,
		tx:          tx,
		locker:      locker,
		settings:    settings,
		events:      events,
		pendingTTL:  reservation.PendingTTL,
		lockTimeout: defaultLockTimeout,
		now:         time.Now,
		logger:      logger,
	}
}

// WithClock replaces the time source.
func (s *ReservationService) WithClock(now func() time.Time) *ReservationService {
	s.now = now
	return s
}

// WithPendingTTL overrides how long unpaid reservations are held.
func (s *ReservationService) WithPendingTTL(ttl time.Duration) *ReservationService {
	if ttl > 0 {
		s.pendingTTL = ttl
	}
	return s
}

// WithLockTimeout bounds how long a booking may hold its slot lock. It should
// stay below the lock lease so the work stops before the lease could lapse.
func (s *ReservationService) WithLockTimeout(d time.Duration) *ReservationService {
	if d > 0 {
		s.lockTimeout = d
	}
	return s
}

// Settings returns the venue settings in force.
func (s *ReservationService) Settings() catalog.Settings { return s.settings }

// Create books quantity simulators for the experience at the requested start.
func (s *ReservationService) Create(ctx context.Context, userID string, req CreateReservationRequest) (*ReservationDTO, error) {
	settings := s.settings
	now := s.now()

	exp, ok := catalog.ExperienceByID(req.ExperienceID)
	if !ok {
		return nil, domain.NewValidationError(fmt.Sprintf("unknown experience %q", req.ExperienceID))
	}
	if req.Quantity <= 0 {
		return nil, domain.NewValidationError("quantity must be positive")
	}
	if req.StartTime.IsZero() {
		return nil, domain.NewValidationError("start_time is required")
	}
	if !req.StartTime.After(now) {
		return nil, domain.NewValidationError("start_time must be in the future")
	}

	local := settings.InVenueTime(req.StartTime)
	if !settings.Schedule().Allows(local, exp.Duration()) {
		return nil, domain.NewScheduleError(fmt.Sprintf("%s: %s", outsideHoursReason, settings.Schedule().Describe(local.Weekday())))
	}

	r, err := s.createLocked(ctx, settings, exp, userID, req, now)
	if err != nil {
		return nil, err
	}

	s.logger.Info("reservation created",
		zap.String("reservation_id", r.ID().String()),
		zap.String("actor_id", userID),
		zap.String("experience_id", exp.ID),
		zap.Int("quantity", r.Quantity()),
		zap.Int64("total_price", r.TotalPrice()),
		zap.String("promotion", r.AppliedPromotionName()),
	)
	s.publish(ctx, ReservationEvent{Type: EventReservationCreated, Reservation: r, ActorID: userID, OccurredAt: now})

	dto := toReservationDTO(r)
	return &dto, nil
}

// createLocked runs the capacity check and the insert under the day lock.
// The same key is taken as a transaction-scoped advisory lock so the database
// serialises bookings for the day even if the distributed lock lapses.
func (s *ReservationService) createLocked(
	ctx context.Context,
	settings catalog.Settings,
	exp catalog.Experience,
	userID string,
	req CreateReservationRequest,
	now time.Time,
) (*reservation.Reservation, error) {
	key := lock.SlotKey(settings.DayKey(req.StartTime))
	held, unlock, err := s.locker.Lock(ctx, key)
	if err != nil {
		return nil, domain.NewConflictError(fmt.Sprintf("slot is busy, retry: %v", err))
	}
	defer unlock()

	held, cancel := context.WithTimeout(held, s.lockTimeout)
	defer cancel()

	var r *reservation.Reservation
	err = s.tx.WithinTransaction(held, func(ctx context.Context) error {
		if err := s.repo.LockDay(ctx, key); err != nil {
			return err
		}

		dayStart, dayEnd := settings.DayBounds(req.StartTime)
		existing, err := s.repo.ListStartingBetween(ctx, dayStart, dayEnd)
		if err != nil {
			return err
		}
		remaining := reservation.RemainingCapacity(existing, req.StartTime, exp.Duration(), settings.Capacity())
		if remaining < req.Quantity {
			return domain.NewCapacityError(req.Quantity, remaining)
		}

		res, err := s.resolvePromotion(ctx, settings, exp, req)
		if err != nil {
			return err
		}
		quote := pricing.Calculate(settings, exp, req.Quantity, res)

		r, err = reservation.NewReservation(reservation.NewParams{
			UserID:               userID,
			ExperienceID:         exp.ID,
			StartTime:            req.StartTime,
			DurationMin:          exp.DurationMin,
			Quantity:             req.Quantity,
			TotalPrice:           quote.Total,
			DepositRequired:      quote.Deposit,
			AppliedPromotionID:   res.PromotionID,
			AppliedPromotionName: res.PromotionName,
			Now:                  now,
		})
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		return s.repo.Save(ctx, r)
	})
	if err != nil {
		if held.Err() != nil && ctx.Err() == nil {
			s.logger.Warn("slot lock ended before the booking committed",
				zap.String("lock_key", key),
				zap.Error(held.Err()),
			)
			return nil, domain.NewConflictError("slot lock ended before the booking completed, retry")
		}
		return nil, err
	}
	return r, nil
}

// resolvePromotion evaluates the promotions valid at the booking start. A
// selected promotion narrows the candidates to itself; if it is not currently
// valid every valid promotion is evaluated instead.
func (s *ReservationService) resolvePromotion(
	ctx context.Context,
	settings catalog.Settings,
	exp catalog.Experience,
	req CreateReservationRequest,
) (promo.Result, error) {
	promos, err := s.promos.FindValidAt(ctx, req.StartTime)
	if err != nil {
		return promo.Result{}, err
	}

	candidates := promos
	if req.PromotionID != nil {
		var selected *promo.Promotion
		for _, p := range promos {
			if p.ID() == *req.PromotionID {
				selected = p
				break
			}
		}
		if selected != nil {
			candidates = []*promo.Promotion{selected}
		} else {
			s.logger.Warn("selected promotion is not valid for this booking, evaluating all",
				zap.String("promotion_id", req.PromotionID.String()),
			)
		}
	}

	local := settings.InVenueTime(req.StartTime)
	return promo.Resolve(candidates, promo.NewCandidate(local, req.Quantity, exp.ID)), nil
}

// Availability reports the remaining units for an experience starting at t.
func (s *ReservationService) Availability(ctx context.Context, experienceID string, t time.Time, quantity int) (*AvailabilityDTO, error) {
	settings := s.settings
	exp, ok := catalog.ExperienceByID(experienceID)
	if !ok {
		return nil, domain.NewValidationError(fmt.Sprintf("unknown experience %q", experienceID))
	}
	if quantity <= 0 {
		quantity = 1
	}

	dto := &AvailabilityDTO{
		ExperienceID: exp.ID,
		StartTime:    t.UTC(),
		EndTime:      t.Add(exp.Duration()).UTC(),
		Capacity:     settings.Capacity(),
	}
	if !settings.Schedule().Allows(settings.InVenueTime(t), exp.Duration()) {
		dto.Reason = outsideHoursReason
		return dto, nil
	}

	dayStart, dayEnd := settings.DayBounds(t)
	existing, err := s.repo.ListStartingBetween(ctx, dayStart, dayEnd)
	if err != nil {
		return nil, err
	}
	dto.RemainingUnits = reservation.RemainingCapacity(existing, t, exp.Duration(), settings.Capacity())
	dto.Available = dto.RemainingUnits >= quantity
	return dto, nil
}

// Cancel cancels a reservation on behalf of actor. Customers may only cancel
// their own reservations.
func (s *ReservationService) Cancel(ctx context.Context, actor Actor, id uuid.UUID, reason string) (*ReservationDTO, error) {
	for attempt := 1; attempt <= maxCancelAttempts; attempt++ {
		r, err := s.repo.FindByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if !actor.IsAdmin && r.UserID() != actor.ID {
			return nil, domain.NewForbiddenError("reservation belongs to another user")
		}

		now := s.now()
		prior := r.Status()
		if err := r.Cancel(now); err != nil {
			return nil, err
		}
		c := reservation.NewCancellation(r.ID(), actor.ID, reason, now)

		var applied bool
		err = s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
			ok, err := s.repo.UpdateStatus(ctx, r, prior)
			if err != nil || !ok {
				return err
			}
			applied = true
			return s.repo.SaveCancellations(ctx, c)
		})
		if err != nil {
			return nil, err
		}
		if !applied {
			s.logger.Debug("reservation changed during cancel, re-evaluating",
				zap.String("reservation_id", id.String()),
				zap.Int("attempt", attempt),
			)
			continue
		}

		s.logger.Info("reservation cancelled",
			zap.String("reservation_id", r.ID().String()),
			zap.String("actor_id", actor.ID),
			zap.String("from_status", string(prior)),
		)
		s.publish(ctx, ReservationEvent{Type: EventReservationCancelled, Reservation: r, ActorID: actor.ID, Reason: reason, OccurredAt: now})

		dto := toReservationDTO(r)
		return &dto, nil
	}
	return nil, domain.NewConflictError("reservation was modified concurrently, retry")
}

// confirm moves a pending reservation to confirmed with a conditional write.
// When another writer got there first the stored state decides: confirmed is
// reported as unchanged, anything else as an invalid transition.
func (s *ReservationService) confirm(ctx context.Context, id uuid.UUID, amountPaid int64) (*reservation.Reservation, bool, error) {
	r, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	changed, err := r.Confirm(amountPaid, s.now())
	if err != nil || !changed {
		return r, false, err
	}

	ok, err := s.repo.UpdateStatus(ctx, r, reservation.StatusPending)
	if err != nil {
		return nil, false, err
	}
	if ok {
		return r, true, nil
	}

	current, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if current.Status() == reservation.StatusConfirmed {
		return current, false, nil
	}
	return current, false, domain.NewInvalidStateError(string(current.Status()), string(reservation.StatusConfirmed))
}

func (s *ReservationService) publishConfirmed(ctx context.Context, r *reservation.Reservation) {
	s.logger.Info("reservation confirmed",
		zap.String("reservation_id", r.ID().String()),
		zap.Int64("deposit_paid", r.DepositPaid()),
	)
	s.publish(ctx, ReservationEvent{Type: EventReservationConfirmed, Reservation: r, OccurredAt: s.now()})
}

// SweepExpired cancels every reservation left pending beyond the payment
// window. Running it twice cancels nothing the second time.
func (s *ReservationService) SweepExpired(ctx context.Context) (*SweepResultDTO, error) {
	now := s.now()
	cutoff := now.Add(-s.pendingTTL)

	var expired []*reservation.Reservation
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		var err error
		expired, err = s.repo.CancelStalePending(ctx, cutoff, now)
		if err != nil || len(expired) == 0 {
			return err
		}
		cs := make([]reservation.Cancellation, len(expired))
		for i, r := range expired {
			cs[i] = reservation.NewCancellation(r.ID(), reservation.SystemActor, reservation.ExpiredReason, now)
		}
		return s.repo.SaveCancellations(ctx, cs...)
	})
	if err != nil {
		return nil, err
	}

	result := &SweepResultDTO{CancelledCount: len(expired), IDs: make([]uuid.UUID, len(expired))}
	for i, r := range expired {
		result.IDs[i] = r.ID()
		s.publish(ctx, ReservationEvent{
			Type:        EventReservationExpired,
			Reservation: r,
			ActorID:     reservation.SystemActor,
			Reason:      reservation.ExpiredReason,
			OccurredAt:  now,
		})
	}
	if len(expired) > 0 {
		s.logger.Info("expired pending reservations cancelled",
			zap.Int("count", len(expired)),
			zap.Time("cutoff", cutoff),
		)
	}
	return result, nil
}

// Get returns one reservation visible to actor.
func (s *ReservationService) Get(ctx context.Context, actor Actor, id uuid.UUID) (*ReservationDTO, error) {
	r, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.IsAdmin && r.UserID() != actor.ID {
		// Hide other users' reservations entirely.
		return nil, domain.NewNotFoundError("reservation", id.String())
	}
	dto := toReservationDTO(r)
	return &dto, nil
}

// List returns a page of reservations. Non-admin actors only see their own.
func (s *ReservationService) List(ctx context.Context, actor Actor, f reservation.Filter) ([]ReservationDTO, int64, error) {
	if !actor.IsAdmin {
		f.UserID = actor.ID
	}
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, domain.NewValidationError(fmt.Sprintf("unknown status %q", f.Status))
	}
	rs, total, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, 0, err
	}
	return toReservationDTOs(rs), total, nil
}

func (s *ReservationService) publish(ctx context.Context, evt ReservationEvent) {
	if err := s.events.PublishReservationEvent(ctx, evt); err != nil {
		s.logger.Warn("failed to publish reservation event",
			zap.String("type", evt.Type),
			zap.String("reservation_id", evt.Reservation.ID().String()),
			zap.Error(err),
		)
	}
}

// isNotFound reports whether err is a not-found domain error.
func isNotFound(err error) bool {
	return errors.Is(err, domain.ErrNotFound)
}

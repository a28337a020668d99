package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/pitlane/service-booking/internal/domain/reservation"
	"github.com/pitlane/service-booking/internal/platform/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ReservationModel is the GORM persistence model for the reservations table.
type ReservationModel struct {
	ID                   uuid.UUID  `gorm:"type:uuid;primaryKey"`
	UserID               string     `gorm:"type:varchar(128);not null;index"`
	ExperienceID         string     `gorm:"type:varchar(32);not null"`
	StartTime            time.Time  `gorm:"type:timestamptz;not null;index"`
	DurationMin          int        `gorm:"not null"`
	Quantity             int        `gorm:"not null"`
	Status               string     `gorm:"type:varchar(16);not null;default:'pending';index;check:chk_reservations_status,status IN ('pending','confirmed','cancelled')"`
	TotalPrice           int64      `gorm:"not null"`
	DepositRequired      int64      `gorm:"not null"`
	DepositPaid          int64      `gorm:"not null;default:0"`
	AppliedPromotionID   *uuid.UUID `gorm:"type:uuid"`
	AppliedPromotionName string     `gorm:"type:varchar(120)"`
	CreatedAt            time.Time  `gorm:"type:timestamptz;not null;index"`
	UpdatedAt            time.Time  `gorm:"type:timestamptz;not null"`
}

// TableName specifies the table name for GORM.
func (ReservationModel) TableName() string { return "reservations" }

// CancellationModel is the append-only audit trail of cancellations.
type CancellationModel struct {
	ID            uuid.UUID `gorm:"type:uuid;primaryKey"`
	ReservationID uuid.UUID `gorm:"type:uuid;not null;index"`
	ActorID       string    `gorm:"type:varchar(128);not null"`
	Reason        string    `gorm:"type:text"`
	CreatedAt     time.Time `gorm:"type:timestamptz;not null"`
}

// TableName specifies the table name for GORM.
func (CancellationModel) TableName() string { return "cancellations" }

// ReservationRepositoryImpl is the GORM-based implementation of reservation.Repository.
type ReservationRepositoryImpl struct {
	db *gorm.DB
}

// NewReservationRepository creates a new GORM-based reservation repository.
func NewReservationRepository(db *gorm.DB) *ReservationRepositoryImpl {
	return &ReservationRepositoryImpl{db: db}
}

// Save persists a new reservation.
func (r *ReservationRepositoryImpl) Save(ctx context.Context, res *reservation.Reservation) error {
	model := toReservationModel(res)
	if err := conn(ctx, r.db).Create(model).Error; err != nil {
		return domain.NewPersistenceError("save reservation", err)
	}
	return nil
}

// FindByID retrieves a reservation by its id.
func (r *ReservationRepositoryImpl) FindByID(ctx context.Context, id uuid.UUID) (*reservation.Reservation, error) {
	var model ReservationModel
	if err := conn(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("reservation", id.String())
		}
		return nil, domain.NewPersistenceError("find reservation", err)
	}
	return toReservationDomain(&model), nil
}

// LockDay takes a Postgres advisory lock on key for the current transaction.
func (r *ReservationRepositoryImpl) LockDay(ctx context.Context, key string) error {
	if err := conn(ctx, r.db).Exec("SELECT pg_advisory_xact_lock(hashtext(?))", key).Error; err != nil {
		return domain.NewPersistenceError("lock day", err)
	}
	return nil
}

// ListStartingBetween returns reservations starting in [from, to).
func (r *ReservationRepositoryImpl) ListStartingBetween(ctx context.Context, from, to time.Time) ([]*reservation.Reservation, error) {
	var models []ReservationModel
	if err := conn(ctx, r.db).
		Where("start_time >= ? AND start_time < ?", from.UTC(), to.UTC()).
		Order("start_time ASC").
		Find(&models).Error; err != nil {
		return nil, domain.NewPersistenceError("list reservations by day", err)
	}
	return toReservationDomains(models), nil
}

// List returns a filtered page of reservations, newest start first.
func (r *ReservationRepositoryImpl) List(ctx context.Context, f reservation.Filter) ([]*reservation.Reservation, int64, error) {
	q := conn(ctx, r.db).Model(&ReservationModel{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.From != nil {
		q = q.Where("start_time >= ?", f.From.UTC())
	}
	if f.To != nil {
		q = q.Where("start_time <= ?", f.To.UTC())
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, domain.NewPersistenceError("count reservations", err)
	}

	p, limit := page(f.Page, f.Limit)
	var models []ReservationModel
	if err := q.Order("start_time DESC").Offset((p - 1) * limit).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, domain.NewPersistenceError("list reservations", err)
	}
	return toReservationDomains(models), total, nil
}

// UpdateStatus is a compare-and-set on the stored status.
func (r *ReservationRepositoryImpl) UpdateStatus(ctx context.Context, res *reservation.Reservation, expected reservation.Status) (bool, error) {
	result := conn(ctx, r.db).
		Model(&ReservationModel{}).
		Where("id = ? AND status = ?", res.ID(), string(expected)).
		Updates(map[string]any{
			"status":       string(res.Status()),
			"deposit_paid": res.DepositPaid(),
			"updated_at":   res.UpdatedAt(),
		})
	if result.Error != nil {
		return false, domain.NewPersistenceError("update reservation status", result.Error)
	}
	return result.RowsAffected == 1, nil
}

// CancelStalePending cancels pending reservations created before cutoff and
// returns them as they are after the update.
func (r *ReservationRepositoryImpl) CancelStalePending(ctx context.Context, cutoff, now time.Time) ([]*reservation.Reservation, error) {
	var models []ReservationModel
	result := conn(ctx, r.db).
		Model(&models).
		Clauses(clause.Returning{}).
		Where("status = ? AND created_at < ?", string(reservation.StatusPending), cutoff.UTC()).
		Updates(map[string]any{
			"status":     string(reservation.StatusCancelled),
			"updated_at": now.UTC(),
		})
	if result.Error != nil {
		return nil, domain.NewPersistenceError("cancel stale reservations", result.Error)
	}
	return toReservationDomains(models), nil
}

// SaveCancellations appends audit records.
func (r *ReservationRepositoryImpl) SaveCancellations(ctx context.Context, cs ...reservation.Cancellation) error {
	if len(cs) == 0 {
		return nil
	}
	models := make([]CancellationModel, len(cs))
	for i, c := range cs {
		models[i] = CancellationModel{
			ID:            c.ID,
			ReservationID: c.ReservationID,
			ActorID:       c.ActorID,
			Reason:        c.Reason,
			CreatedAt:     c.CreatedAt,
		}
	}
	if err := conn(ctx, r.db).Create(&models).Error; err != nil {
		return domain.NewPersistenceError("save cancellations", err)
	}
	return nil
}

func toReservationDomains(models []ReservationModel) []*reservation.Reservation {
	out := make([]*reservation.Reservation, len(models))
	for i := range models {
		out[i] = toReservationDomain(&models[i])
	}
	return out
}

// toReservationDomain maps a ReservationModel to the domain aggregate.
func toReservationDomain(m *ReservationModel) *reservation.Reservation {
	return reservation.Reconstitute(
		m.ID,
		m.UserID,
		m.ExperienceID,
		m.StartTime.UTC(),
		m.DurationMin,
		m.Quantity,
		reservation.Status(m.Status),
		m.TotalPrice,
		m.DepositRequired,
		m.DepositPaid,
		m.AppliedPromotionID,
		m.AppliedPromotionName,
		m.CreatedAt.UTC(),
		m.UpdatedAt.UTC(),
	)
}

// toReservationModel maps the domain aggregate to a ReservationModel.
func toReservationModel(res *reservation.Reservation) *ReservationModel {
	return &ReservationModel{
		ID:                   res.ID(),
		UserID:               res.UserID(),
		ExperienceID:         res.ExperienceID(),
		StartTime:            res.StartTime(),
		DurationMin:          res.DurationMin(),
		Quantity:             res.Quantity(),
		Status:               string(res.Status()),
		TotalPrice:           res.TotalPrice(),
		DepositRequired:      res.DepositRequired(),
		DepositPaid:          res.DepositPaid(),
		AppliedPromotionID:   res.AppliedPromotionID(),
		AppliedPromotionName: res.AppliedPromotionName(),
		CreatedAt:            res.CreatedAt(),
		UpdatedAt:            res.UpdatedAt(),
	}
}

package repository

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	paymentDomain "github.com/pitlane/service-booking/internal/domain/payment"
	"github.com/pitlane/service-booking/internal/platform/domain"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// PaymentModel is the GORM persistence model for the payments table.
type PaymentModel struct {
	ID                uuid.UUID      `gorm:"type:uuid;primaryKey"`
	ReservationID     uuid.UUID      `gorm:"type:uuid;not null;index"`
	ExternalPaymentID string         `gorm:"type:varchar(64);not null;uniqueIndex"`
	Status            string         `gorm:"type:varchar(32);not null"`
	Amount            int64          `gorm:"not null"`
	Raw               datatypes.JSON `gorm:"type:jsonb"`
	CreatedAt         time.Time      `gorm:"type:timestamptz;not null"`
	UpdatedAt         time.Time      `gorm:"type:timestamptz;not null"`
}

// TableName specifies the table name for GORM.
func (PaymentModel) TableName() string { return "payments" }

// PaymentRepositoryImpl is the GORM-based implementation of payment.Repository.
type PaymentRepositoryImpl struct {
	db *gorm.DB
}

// NewPaymentRepository creates a new GORM-based payment repository.
func NewPaymentRepository(db *gorm.DB) *PaymentRepositoryImpl {
	return &PaymentRepositoryImpl{db: db}
}

// Upsert inserts p or refreshes the row sharing its external payment id.
// The returned id tells the two cases apart: on conflict postgres returns
// the id of the existing row.
func (r *PaymentRepositoryImpl) Upsert(ctx context.Context, p *paymentDomain.Payment) (bool, error) {
	model := toPaymentModel(p)
	err := conn(ctx, r.db).
		Clauses(
			clause.OnConflict{
				Columns:   []clause.Column{{Name: "external_payment_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"status", "amount", "raw", "updated_at"}),
			},
			clause.Returning{Columns: []clause.Column{{Name: "id"}}},
		).
		Create(model).Error
	if err != nil {
		return false, domain.NewPersistenceError("upsert payment", err)
	}
	return model.ID == p.ID(), nil
}

// ListByReservation returns a reservation's payments, newest first.
func (r *PaymentRepositoryImpl) ListByReservation(ctx context.Context, reservationID uuid.UUID) ([]*paymentDomain.Payment, error) {
	var models []PaymentModel
	if err := conn(ctx, r.db).
		Where("reservation_id = ?", reservationID).
		Order("created_at DESC").
		Find(&models).Error; err != nil {
		return nil, domain.NewPersistenceError("list reservation payments", err)
	}
	return toPaymentDomains(models), nil
}

// ListAll retrieves all payments with pagination (admin).
func (r *PaymentRepositoryImpl) ListAll(ctx context.Context, p, limit int) ([]*paymentDomain.Payment, int64, error) {
	var total int64
	if err := conn(ctx, r.db).Model(&PaymentModel{}).Count(&total).Error; err != nil {
		return nil, 0, domain.NewPersistenceError("count payments", err)
	}

	p, limit = page(p, limit)
	var models []PaymentModel
	if err := conn(ctx, r.db).Order("created_at DESC").Offset((p - 1) * limit).Limit(limit).Find(&models).Error; err != nil {
		return nil, 0, domain.NewPersistenceError("list payments", err)
	}
	return toPaymentDomains(models), total, nil
}

func toPaymentDomains(models []PaymentModel) []*paymentDomain.Payment {
	out := make([]*paymentDomain.Payment, len(models))
	for i := range models {
		out[i] = toPaymentDomain(&models[i])
	}
	return out
}

// toPaymentDomain maps a PaymentModel to the domain Payment.
func toPaymentDomain(m *PaymentModel) *paymentDomain.Payment {
	return paymentDomain.Reconstitute(
		m.ID,
		m.ReservationID,
		m.ExternalPaymentID,
		paymentDomain.Status(m.Status),
		m.Amount,
		json.RawMessage(m.Raw),
		m.CreatedAt.UTC(),
		m.UpdatedAt.UTC(),
	)
}

// toPaymentModel maps a domain Payment to a PaymentModel for persistence.
func toPaymentModel(p *paymentDomain.Payment) *PaymentModel {
	return &PaymentModel{
		ID:                p.ID(),
		ReservationID:     p.ReservationID(),
		ExternalPaymentID: p.ExternalPaymentID(),
		Status:            string(p.Status()),
		Amount:            p.Amount(),
		Raw:               datatypes.JSON(p.Raw()),
		CreatedAt:         p.CreatedAt(),
		UpdatedAt:         p.UpdatedAt(),
	}
}

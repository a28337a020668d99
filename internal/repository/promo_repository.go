package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	promoDomain "github.com/pitlane/service-booking/internal/domain/promo"
	"github.com/pitlane/service-booking/internal/platform/domain"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// PromotionModel is the GORM model for the promotions table. The rule is kept
// as jsonb in its stored RuleSpec shape.
type PromotionModel struct {
	ID        uuid.UUID                                `gorm:"type:uuid;primaryKey"`
	Name      string                                   `gorm:"type:varchar(120);not null"`
	Active    bool                                     `gorm:"not null;default:true;index"`
	ValidFrom *time.Time                               `gorm:"type:timestamptz"`
	ValidTo   *time.Time                               `gorm:"type:timestamptz"`
	Rule      datatypes.JSONType[promoDomain.RuleSpec] `gorm:"type:jsonb;not null"`
	CreatedAt time.Time                                `gorm:"type:timestamptz;not null"`
	UpdatedAt time.Time                                `gorm:"type:timestamptz;not null"`
}

// TableName sets the table name.
func (PromotionModel) TableName() string { return "promotions" }

// GormPromoRepository implements promo.Repository using GORM.
type GormPromoRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewGormPromoRepository creates a new GormPromoRepository.
func NewGormPromoRepository(db *gorm.DB, logger *zap.Logger) *GormPromoRepository {
	return &GormPromoRepository{db: db, logger: logger}
}

// Save persists a new promotion.
func (r *GormPromoRepository) Save(ctx context.Context, p *promoDomain.Promotion) error {
	model := toPromotionModel(p)
	if err := conn(ctx, r.db).Create(&model).Error; err != nil {
		return domain.NewPersistenceError("save promotion", err)
	}
	return nil
}

// Update writes every column of an existing promotion.
func (r *GormPromoRepository) Update(ctx context.Context, p *promoDomain.Promotion) error {
	model := toPromotionModel(p)
	if err := conn(ctx, r.db).Save(&model).Error; err != nil {
		return domain.NewPersistenceError("update promotion", err)
	}
	return nil
}

// FindByID returns a promotion by ID.
func (r *GormPromoRepository) FindByID(ctx context.Context, id uuid.UUID) (*promoDomain.Promotion, error) {
	var model PromotionModel
	if err := conn(ctx, r.db).Where("id = ?", id).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.NewNotFoundError("promotion", id.String())
		}
		return nil, domain.NewPersistenceError("find promotion", err)
	}
	return toPromotionDomain(&model)
}

// FindValidAt returns active promotions whose validity range contains t,
// oldest first.
func (r *GormPromoRepository) FindValidAt(ctx context.Context, t time.Time) ([]*promoDomain.Promotion, error) {
	var models []PromotionModel
	if err := conn(ctx, r.db).
		Where("active = ?", true).
		Where("valid_from IS NULL OR valid_from <= ?", t.UTC()).
		Where("valid_to IS NULL OR valid_to >= ?", t.UTC()).
		Order("created_at ASC, id ASC").
		Find(&models).Error; err != nil {
		return nil, domain.NewPersistenceError("find valid promotions", err)
	}
	return r.toPromotionDomains(models), nil
}

// ListAll returns every promotion, newest first.
func (r *GormPromoRepository) ListAll(ctx context.Context) ([]*promoDomain.Promotion, error) {
	var models []PromotionModel
	if err := conn(ctx, r.db).Order("created_at DESC").Find(&models).Error; err != nil {
		return nil, domain.NewPersistenceError("list promotions", err)
	}
	return r.toPromotionDomains(models), nil
}

// toPromotionDomains decodes models, skipping rows whose stored rule no
// longer parses so one bad promotion cannot block every booking.
func (r *GormPromoRepository) toPromotionDomains(models []PromotionModel) []*promoDomain.Promotion {
	out := make([]*promoDomain.Promotion, 0, len(models))
	for i := range models {
		p, err := toPromotionDomain(&models[i])
		if err != nil {
			r.logger.Error("skipping promotion with invalid rule",
				zap.String("promotion_id", models[i].ID.String()),
				zap.String("name", models[i].Name),
				zap.Error(err),
			)
			continue
		}
		out = append(out, p)
	}
	return out
}

func toPromotionModel(p *promoDomain.Promotion) PromotionModel {
	return PromotionModel{
		ID:        p.ID(),
		Name:      p.Name(),
		Active:    p.Active(),
		ValidFrom: p.ValidFrom(),
		ValidTo:   p.ValidTo(),
		Rule:      datatypes.NewJSONType(p.Rule().Spec()),
		CreatedAt: p.CreatedAt(),
		UpdatedAt: p.UpdatedAt(),
	}
}

func toPromotionDomain(m *PromotionModel) (*promoDomain.Promotion, error) {
	p, err := promoDomain.Reconstruct(
		m.ID, m.Name, m.Active,
		m.ValidFrom, m.ValidTo, m.Rule.Data(),
		m.CreatedAt.UTC(), m.UpdatedAt.UTC(),
	)
	if err != nil {
		return nil, domain.NewPersistenceError("decode promotion rule", fmt.Errorf("promotion %s: %w", m.ID, err))
	}
	return p, nil
}

package application

import (
	"context"
	"time"

	"github.com/google/uuid"
	promoDomain "github.com/pitlane/service-booking/internal/domain/promo"
	"go.uber.org/zap"
)

// PromoService handles promotion use cases.
type PromoService struct {
	repo   promoDomain.Repository
	now    func() time.Time
	logger *zap.Logger
}

// NewPromoService creates a new PromoService.
func NewPromoService(repo promoDomain.Repository, logger *zap.Logger) *PromoService {
	return &PromoService{repo: repo, now: time.Now, logger: logger}
}

// CreatePromotion creates a new active promotion (admin only). Malformed rules
// are rejected here so that stored rules always parse.
func (s *PromoService) CreatePromotion(ctx context.Context, req CreatePromotionRequest) (*PromotionDTO, error) {
	p, err := promoDomain.NewPromotion(req.Name, req.Rule, req.ValidFrom, req.ValidTo)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("promotion created",
		zap.String("promotion_id", p.ID().String()),
		zap.String("name", p.Name()),
	)
	dto := toPromotionDTO(p)
	return &dto, nil
}

// SetActive enables or disables a promotion.
func (s *PromoService) SetActive(ctx context.Context, id uuid.UUID, active bool) (*PromotionDTO, error) {
	p, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	p.SetActive(active)
	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	s.logger.Info("promotion toggled",
		zap.String("promotion_id", id.String()),
		zap.Bool("active", active),
	)
	dto := toPromotionDTO(p)
	return &dto, nil
}

// ListActive returns the promotions valid right now.
func (s *PromoService) ListActive(ctx context.Context) ([]PromotionDTO, error) {
	promos, err := s.repo.FindValidAt(ctx, s.now())
	if err != nil {
		return nil, err
	}
	return toPromotionDTOs(promos), nil
}

// ListAll returns every promotion (admin).
func (s *PromoService) ListAll(ctx context.Context) ([]PromotionDTO, error) {
	promos, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return toPromotionDTOs(promos), nil
}

func toPromotionDTOs(promos []*promoDomain.Promotion) []PromotionDTO {
	out := make([]PromotionDTO, len(promos))
	for i, p := range promos {
		out[i] = toPromotionDTO(p)
	}
	return out
}

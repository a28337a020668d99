// Package scheduler runs the periodic expiry of unpaid reservations.
package scheduler

import (
	"context"
	"time"

	"github.com/pitlane/service-booking/internal/application"
	"go.uber.org/zap"
)

type expirySweeper interface {
	SweepExpired(ctx context.Context) (*application.SweepResultDTO, error)
}

// Sweeper calls SweepExpired on a fixed interval. The HTTP cron trigger and
// the sweeper may overlap; the sweep itself is idempotent.
type Sweeper struct {
	service  expirySweeper
	interval time.Duration
	logger   *zap.Logger
}

// NewSweeper creates a sweeper. A non-positive interval disables it.
func NewSweeper(service expirySweeper, interval time.Duration, logger *zap.Logger) *Sweeper {
	return &Sweeper{
		service:  service,
		interval: interval,
		logger:   logger,
	}
}

// Start blocks until ctx is cancelled.
func (s *Sweeper) Start(ctx context.Context) {
	if s.interval <= 0 {
		s.logger.Info("expiry sweeper disabled")
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("expiry sweeper started", zap.Duration("interval", s.interval))

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("expiry sweeper stopped")
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Sweeper) tick(ctx context.Context) {
	res, err := s.service.SweepExpired(ctx)
	if err != nil {
		s.logger.Error("failed to sweep expired reservations", zap.Error(err))
		return
	}
	if res.CancelledCount > 0 {
		s.logger.Info("expired reservations swept", zap.Int("count", res.CancelledCount))
	}
}

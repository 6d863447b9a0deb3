package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/learnloop/notification-engine/internal/observability"
	"github.com/learnloop/notification-engine/internal/repository"
)

const (
	defaultRetention     = 90 * 24 * time.Hour
	defaultSweepInterval = time.Hour
)

// RetentionSweeper periodically deletes delivery log entries older than
// the retention window. Queue records are kept; only the audit trail is
// bounded.
type RetentionSweeper struct {
	logs      repository.DeliveryLogRepository
	logger    *zap.Logger
	metrics   *observability.Metrics
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
}

func NewRetentionSweeper(
	logs repository.DeliveryLogRepository,
	retention time.Duration,
	interval time.Duration,
	logger *zap.Logger,
) (*RetentionSweeper, error) {
	if logs == nil {
		return nil, fmt.Errorf("delivery log repository is required")
	}
	if retention <= 0 {
		retention = defaultRetention
	}
	if interval <= 0 {
		interval = defaultSweepInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &RetentionSweeper{
		logs:      logs,
		logger:    logger,
		retention: retention,
		interval:  interval,
		now:       time.Now,
	}, nil
}

func (s *RetentionSweeper) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

func (s *RetentionSweeper) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.sweep(ctx); err != nil && ctx.Err() == nil {
		s.logger.Error("initial retention sweep failed", zap.Error(err))
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.sweep(ctx); err != nil {
				if ctx.Err() != nil {
					return nil
				}
				s.logger.Error("retention sweep failed", zap.Error(err))
			}
		}
	}
}

func (s *RetentionSweeper) sweep(ctx context.Context) error {
	cutoff := s.now().UTC().Add(-s.retention)
	purged, err := s.logs.PurgeOlderThan(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("failed to purge delivery logs: %w", err)
	}

	if purged > 0 {
		if s.metrics != nil {
			s.metrics.AddDeliveryLogsPurged(purged)
		}
		s.logger.Info("delivery logs purged",
			zap.Int64("count", purged),
			zap.Time("cutoff", cutoff),
		)
	}

	return nil
}

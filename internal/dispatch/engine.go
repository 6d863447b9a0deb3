// Package dispatch runs the delivery loop: claim due notifications from
// the queue, send each through its channel adapter, and record the
// outcome. Claiming is atomic, so multiple dispatcher instances can run
// against the same database.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/learnloop/notification-engine/internal/adapter"
	"github.com/learnloop/notification-engine/internal/domain"
	"github.com/learnloop/notification-engine/internal/observability"
	"github.com/learnloop/notification-engine/internal/ratelimit"
	"github.com/learnloop/notification-engine/internal/repository"
	"github.com/learnloop/notification-engine/internal/retry"
	"github.com/learnloop/notification-engine/internal/tracker"
)

const (
	defaultPollInterval = 5 * time.Second
	defaultBatchSize    = 100
	minConcurrency      = 1
	maxPassBackoff      = time.Minute
)

// Engine claims due notifications and drives them through their adapters.
type Engine struct {
	notifications repository.NotificationRepository
	adapters      *adapter.Registry
	tracker       *tracker.Tracker
	policy        retry.Policy
	rateLimiter   ratelimit.RateLimiter
	logger        *zap.Logger
	metrics       *observability.Metrics
	interval      time.Duration
	batchSize     int
	concurrency   int
	now           func() time.Time
}

func NewEngine(
	notifications repository.NotificationRepository,
	adapters *adapter.Registry,
	statusTracker *tracker.Tracker,
	policy retry.Policy,
	rateLimiter ratelimit.RateLimiter,
	interval time.Duration,
	batchSize int,
	concurrency int,
	logger *zap.Logger,
) (*Engine, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if adapters == nil {
		return nil, fmt.Errorf("adapter registry is required")
	}
	if statusTracker == nil {
		return nil, fmt.Errorf("status tracker is required")
	}
	if interval <= 0 {
		interval = defaultPollInterval
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if concurrency < minConcurrency {
		concurrency = minConcurrency
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		notifications: notifications,
		adapters:      adapters,
		tracker:       statusTracker,
		policy:        policy,
		rateLimiter:   rateLimiter,
		logger:        logger,
		interval:      interval,
		batchSize:     batchSize,
		concurrency:   concurrency,
		now:           time.Now,
	}, nil
}

func (e *Engine) SetMetrics(metrics *observability.Metrics) {
	if e == nil {
		return
	}
	e.metrics = metrics
}

// Start polls for due notifications until context cancellation. After
// consecutive failed passes the poll interval stretches so a database
// outage is not hammered at full poll rate.
func (e *Engine) Start(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var failures int
	for {
		if err := e.dispatchDue(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			failures++
			e.logger.Error("dispatch pass failed",
				zap.Error(err),
				zap.Int("consecutiveFailures", failures),
			)
		} else {
			failures = 0
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(e.passWait(failures)):
		}
	}
}

func (e *Engine) passWait(failures int) time.Duration {
	wait := e.interval
	for i := 0; i < failures && wait < maxPassBackoff; i++ {
		wait *= 2
	}
	if wait > maxPassBackoff {
		wait = maxPassBackoff
	}
	return wait
}

// dispatchDue claims one batch and fans it out across the worker pool.
// Individual delivery failures are recorded, not propagated, so one bad
// notification cannot stall the batch.
func (e *Engine) dispatchDue(ctx context.Context) error {
	claimed, err := e.notifications.ClaimDue(ctx, e.batchSize, e.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to claim due notifications: %w", err)
	}
	if len(claimed) == 0 {
		return nil
	}

	e.logger.Debug("claimed batch", zap.Int("count", len(claimed)))

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := range claimed {
		notification := claimed[i]
		g.Go(func() error {
			e.dispatchOne(groupCtx, notification)
			return nil
		})
	}
	return g.Wait()
}

func (e *Engine) dispatchOne(ctx context.Context, n domain.Notification) {
	logger := e.logger.With(
		zap.String("notificationId", n.ID),
		zap.String("channel", n.Channel.String()),
		zap.Int("attempt", n.AttemptCount),
	)

	channelLabel := n.Channel.String()
	if e.metrics != nil {
		e.metrics.IncDispatchInFlight(channelLabel)
		defer e.metrics.DecDispatchInFlight(channelLabel)
	}

	channelAdapter, err := e.adapters.Get(n.Channel)
	if err != nil {
		// No adapter means a configuration hole; retrying cannot help.
		logger.Error("no adapter for channel", zap.Error(err))
		e.recordFailure(ctx, logger, n, &adapter.AdapterError{
			Kind:    adapter.ErrorKindRejected,
			Code:    "no_adapter",
			Message: err.Error(),
		}, 0)
		return
	}

	if e.rateLimiter != nil {
		if err := e.rateLimiter.Wait(ctx, n.Channel); err != nil {
			// Nothing was sent, so hand the claim back for the next pass.
			logger.Warn("rate limiter wait aborted, requeueing", zap.Error(err))
			e.requeueUnsent(ctx, logger, n, err)
			return
		}
	}

	start := e.now()
	outcome, sendErr := channelAdapter.Send(ctx, n)
	elapsed := e.now().Sub(start)

	if e.metrics != nil {
		e.metrics.ObserveNotificationSendDuration(channelLabel, elapsed)
	}

	if sendErr == nil {
		if err := e.tracker.RecordSent(ctx, &n, outcome, elapsed, e.now().UTC()); err != nil {
			logger.Error("failed to record sent outcome", zap.Error(err))
			return
		}
		if e.metrics != nil {
			e.metrics.IncNotificationSent(channelLabel)
		}
		logger.Info("notification sent", zap.Duration("elapsed", elapsed))
		return
	}

	kind := adapter.KindOf(sendErr)
	decision := e.policy.Decide(e.now().UTC(), n.AttemptCount, n.Priority, kind, channelAdapter.Capabilities().AtMostOnce)

	if decision.Retry {
		if err := e.tracker.RecordRetry(ctx, &n, decision.WaitUntil, sendErr, elapsed, e.now().UTC()); err != nil {
			logger.Error("failed to record retry", zap.Error(err))
			return
		}
		if e.metrics != nil {
			e.metrics.IncRetryScheduled(channelLabel)
		}
		logger.Warn("delivery failed, retry scheduled",
			zap.String("errorKind", kind.String()),
			zap.Time("nextAttemptAt", decision.WaitUntil),
			zap.Error(sendErr),
		)
		return
	}

	e.recordFailure(ctx, logger, n, sendErr, elapsed)
}

func (e *Engine) recordFailure(ctx context.Context, logger *zap.Logger, n domain.Notification, sendErr error, elapsed time.Duration) {
	if err := e.tracker.RecordFailure(ctx, &n, sendErr, elapsed, e.now().UTC()); err != nil {
		logger.Error("failed to record terminal failure", zap.Error(err))
		return
	}
	if e.metrics != nil {
		e.metrics.IncNotificationFailed(n.Channel.String(), e.failureReason(n, sendErr))
	}
	logger.Warn("notification failed permanently", zap.Error(sendErr))
}

// requeueUnsent returns a claimed record to pending without logging an
// attempt; no provider was contacted.
func (e *Engine) requeueUnsent(ctx context.Context, logger *zap.Logger, n domain.Notification, cause error) {
	if _, err := e.notifications.MarkRetry(ctx, n.ID, e.now().UTC(), cause.Error()); err != nil {
		logger.Error("failed to requeue unsent notification", zap.Error(err))
	}
}

func (e *Engine) failureReason(n domain.Notification, sendErr error) string {
	kind := adapter.KindOf(sendErr)
	if kind.Retryable() && n.AttemptCount >= e.policy.MaxAttempts {
		return "retry_exhausted"
	}
	if kind != "" {
		return kind.String()
	}
	return "unknown"
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/learnloop/notification-engine/internal/domain"
	"github.com/learnloop/notification-engine/internal/observability"
	"github.com/learnloop/notification-engine/internal/repository"
	"github.com/learnloop/notification-engine/internal/tracker"
)

const (
	defaultMaxAttempts = 5
	defaultLogLimit    = 50
)

// NotificationService owns the enqueue and query surface of the engine.
// Delivery itself happens in the dispatcher; enqueueing only persists the
// record in pending state.
type NotificationService struct {
	notifications repository.NotificationRepository
	logs          repository.DeliveryLogRepository
	tracker       *tracker.Tracker
	logger        *zap.Logger
	metrics       *observability.Metrics
	now           func() time.Time
}

func NewNotificationService(
	notifications repository.NotificationRepository,
	logs repository.DeliveryLogRepository,
	statusTracker *tracker.Tracker,
	logger *zap.Logger,
) (*NotificationService, error) {
	if notifications == nil {
		return nil, fmt.Errorf("notification repository is required")
	}
	if logs == nil {
		return nil, fmt.Errorf("delivery log repository is required")
	}
	if statusTracker == nil {
		return nil, fmt.Errorf("status tracker is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &NotificationService{
		notifications: notifications,
		logs:          logs,
		tracker:       statusTracker,
		logger:        logger,
		now:           time.Now,
	}, nil
}

func (s *NotificationService) SetMetrics(metrics *observability.Metrics) {
	if s == nil {
		return
	}
	s.metrics = metrics
}

// Enqueue validates and persists a new notification in pending state.
// ScheduledFor in the future keeps it out of dispatch until due.
func (s *NotificationService) Enqueue(ctx context.Context, notification *domain.Notification) (*domain.Notification, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := prepareForEnqueue(notification); err != nil {
		return nil, err
	}

	if err := s.notifications.Create(ctx, notification); err != nil {
		return nil, fmt.Errorf("failed to persist notification: %w", err)
	}

	if s.metrics != nil {
		s.metrics.IncNotificationEnqueued(notification.Channel.String(), notification.Priority.String())
	}

	logger := observability.WithContextLogger(s.logger, ctx)
	logger.Info("notification enqueued",
		zap.String("notificationId", notification.ID),
		zap.String("userId", notification.UserID),
		zap.String("channel", notification.Channel.String()),
		zap.String("priority", notification.Priority.String()),
	)

	return notification, nil
}

func (s *NotificationService) GetByID(ctx context.Context, id string) (*domain.Notification, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}
	return s.notifications.GetByID(ctx, strings.TrimSpace(id))
}

func (s *NotificationService) List(ctx context.Context, params repository.ListParams) ([]domain.Notification, int64, error) {
	return s.notifications.List(ctx, params)
}

// Cancel stops a pending or processing notification. Repeated or
// too-late cancels are no-ops and return the stored record.
func (s *NotificationService) Cancel(ctx context.Context, id string) (*domain.Notification, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}

	n, changed, err := s.tracker.Cancel(ctx, strings.TrimSpace(id))
	if err != nil {
		return nil, err
	}
	if changed && s.metrics != nil {
		s.metrics.IncNotificationCancelled()
	}
	return n, nil
}

// Logs returns the delivery history of one notification, oldest first.
func (s *NotificationService) Logs(ctx context.Context, notificationID string) ([]domain.DeliveryLogEntry, error) {
	trimmed := strings.TrimSpace(notificationID)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: notification id is required", domain.ErrValidation)
	}

	// Surface not-found for unknown ids instead of an empty history.
	if _, err := s.notifications.GetByID(ctx, trimmed); err != nil {
		return nil, err
	}

	return s.logs.ListByNotification(ctx, trimmed)
}

// UserLogs returns a user's recent delivery history, newest first.
func (s *NotificationService) UserLogs(ctx context.Context, userID string, limit int) ([]domain.DeliveryLogEntry, error) {
	trimmed := strings.TrimSpace(userID)
	if trimmed == "" {
		return nil, fmt.Errorf("%w: user id is required", domain.ErrValidation)
	}
	if limit < 1 {
		limit = defaultLogLimit
	}
	return s.logs.ListByUser(ctx, trimmed, limit)
}

func prepareForEnqueue(n *domain.Notification) error {
	if n == nil {
		return fmt.Errorf("%w: notification is required", domain.ErrValidation)
	}

	n.ID = strings.TrimSpace(n.ID)
	if n.ID == "" {
		n.ID = uuid.NewString()
	}

	n.UserID = strings.TrimSpace(n.UserID)
	n.Title = strings.TrimSpace(n.Title)
	n.Message = strings.TrimSpace(n.Message)
	n.TemplateID = normalizeOptionalString(n.TemplateID)

	if n.Priority == "" {
		n.Priority = domain.PriorityNormal
	}

	n.Status = domain.StatusPending
	n.AttemptCount = 0
	if n.MaxAttempts <= 0 {
		n.MaxAttempts = defaultMaxAttempts
	}
	n.NextAttemptAt = nil
	n.LastAttemptAt = nil
	n.SentAt = nil
	n.DeliveredAt = nil
	n.ReadAt = nil
	n.ErrorMessage = nil

	return n.Validate()
}

func normalizeOptionalString(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

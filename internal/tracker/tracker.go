package tracker

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/learnloop/notification-engine/internal/adapter"
	"github.com/learnloop/notification-engine/internal/domain"
	"github.com/learnloop/notification-engine/internal/queue"
	"github.com/learnloop/notification-engine/internal/repository"
)

const logAppendRetries = 3

// EventDeduper remembers provider event ids so replays are dropped.
type EventDeduper interface {
	// FirstSeen returns true the first time eventID is observed.
	FirstSeen(ctx context.Context, eventID string) (bool, error)
}

// Tracker applies status transitions and appends the matching delivery
// log entry. Log entries are append-only; the queue record is the only
// mutable state.
type Tracker struct {
	notifications repository.NotificationRepository
	logs          repository.DeliveryLogRepository
	deduper       EventDeduper
	logger        *zap.Logger
}

func New(
	notifications repository.NotificationRepository,
	logs repository.DeliveryLogRepository,
	deduper EventDeduper,
	logger *zap.Logger,
) *Tracker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Tracker{
		notifications: notifications,
		logs:          logs,
		deduper:       deduper,
		logger:        logger,
	}
}

// RecordSent moves the record from processing to sent and appends the
// sent log entry. The provider already accepted the message, so a lost
// transition race (a concurrent cancel) still gets its log entry and is
// never resent.
func (t *Tracker) RecordSent(ctx context.Context, n *domain.Notification, outcome *adapter.Outcome, elapsed time.Duration, now time.Time) error {
	updated, err := t.notifications.MarkSent(ctx, n.ID, now)
	if err != nil {
		return fmt.Errorf("mark sent: %w", err)
	}
	if !updated {
		t.logger.Warn("notification not in processing after send, keeping stored status",
			zap.String("notificationId", n.ID),
		)
	}

	entry := &domain.DeliveryLogEntry{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Channel:        n.Channel,
		Status:         domain.LogStatusSent,
		DeliveryTime:   elapsed,
		Timestamp:      now,
	}
	if outcome != nil {
		entry.ProviderResponse = outcome.ProviderResponse
	}
	return t.appendWithRetry(ctx, entry)
}

// RecordRetry returns the record to pending with a next attempt time and
// appends a failed log entry flagged as retrying.
func (t *Tracker) RecordRetry(ctx context.Context, n *domain.Notification, nextAttemptAt time.Time, sendErr error, elapsed time.Duration, now time.Time) error {
	message := sendErr.Error()
	updated, err := t.notifications.MarkRetry(ctx, n.ID, nextAttemptAt, message)
	if err != nil {
		return fmt.Errorf("mark retry: %w", err)
	}
	if !updated {
		// Cancelled while in flight; the failed attempt is still logged.
		t.logger.Info("retry skipped, notification left processing",
			zap.String("notificationId", n.ID),
		)
	}

	entry := failureEntry(n, domain.LogStatusFailed, sendErr, elapsed, now)
	entry.Retrying = updated
	return t.appendWithRetry(ctx, entry)
}

// RecordFailure moves the record to failed and appends the terminal
// failure log entry. Unsubscribed recipients get their own log status.
func (t *Tracker) RecordFailure(ctx context.Context, n *domain.Notification, sendErr error, elapsed time.Duration, now time.Time) error {
	if _, err := t.notifications.MarkFailed(ctx, n.ID, sendErr.Error()); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}

	status := domain.LogStatusFailed
	if adapter.KindOf(sendErr) == adapter.ErrorKindUnsubscribed {
		status = domain.LogStatusUnsubscribed
	}
	return t.appendWithRetry(ctx, failureEntry(n, status, sendErr, elapsed, now))
}

// OnProviderEvent applies an asynchronous provider receipt. Replayed
// events are dropped by id, and events that do not match the current
// status are a no-op, so redelivery is always safe.
func (t *Tracker) OnProviderEvent(ctx context.Context, event queue.DeliveryEvent) error {
	if err := event.Validate(); err != nil {
		return err
	}

	if t.deduper != nil && event.EventID != "" {
		first, err := t.deduper.FirstSeen(ctx, event.EventID)
		if err != nil {
			return fmt.Errorf("event dedupe: %w", err)
		}
		if !first {
			t.logger.Debug("dropping replayed provider event",
				zap.String("eventId", event.EventID),
				zap.String("notificationId", event.NotificationID),
			)
			return nil
		}
	}

	n, err := t.notifications.GetByID(ctx, event.NotificationID)
	if err != nil {
		return err
	}

	switch event.Kind {
	case domain.EventDelivered:
		return t.advance(ctx, n, event, domain.StatusSent, domain.StatusDelivered, domain.LogStatusDelivered)
	case domain.EventRead:
		return t.advance(ctx, n, event, domain.StatusDelivered, domain.StatusRead, domain.LogStatusRead)
	case domain.EventBounced:
		return t.appendEventLog(ctx, n, event, domain.LogStatusBounced)
	case domain.EventUnsubscribed:
		return t.appendEventLog(ctx, n, event, domain.LogStatusUnsubscribed)
	default:
		return fmt.Errorf("%w: unhandled event kind %q", domain.ErrValidation, event.Kind)
	}
}

// Cancel stops a pending or processing notification. Cancelling a record
// that already reached a terminal status is a no-op and returns the
// stored record unchanged, with changed reporting false.
func (t *Tracker) Cancel(ctx context.Context, id string) (*domain.Notification, bool, error) {
	updated, err := t.notifications.Cancel(ctx, id)
	if err != nil {
		return nil, false, err
	}

	n, err := t.notifications.GetByID(ctx, id)
	if err != nil {
		return nil, false, err
	}
	if updated {
		t.logger.Info("notification cancelled", zap.String("notificationId", id))
	}
	return n, updated, nil
}

func (t *Tracker) advance(ctx context.Context, n *domain.Notification, event queue.DeliveryEvent, from, to domain.Status, logStatus domain.LogStatus) error {
	updated, err := t.notifications.AdvanceDelivery(ctx, n.ID, from, to, event.Timestamp)
	if err != nil {
		return fmt.Errorf("advance to %s: %w", to, err)
	}
	if !updated {
		t.logger.Debug("provider event did not match stored status",
			zap.String("notificationId", n.ID),
			zap.String("event", event.Kind.String()),
			zap.String("storedStatus", n.Status.String()),
		)
		return nil
	}
	return t.appendEventLog(ctx, n, event, logStatus)
}

func (t *Tracker) appendEventLog(ctx context.Context, n *domain.Notification, event queue.DeliveryEvent, status domain.LogStatus) error {
	return t.appendWithRetry(ctx, &domain.DeliveryLogEntry{
		NotificationID:   n.ID,
		UserID:           n.UserID,
		Channel:          n.Channel,
		Status:           status,
		ProviderResponse: event.Payload,
		Timestamp:        event.Timestamp,
	})
}

func (t *Tracker) appendWithRetry(ctx context.Context, entry *domain.DeliveryLogEntry) error {
	var err error
	for attempt := 1; attempt <= logAppendRetries; attempt++ {
		if err = t.logs.Append(ctx, entry); err == nil {
			return nil
		}
		if ctx.Err() != nil {
			break
		}
		t.logger.Warn("delivery log append failed",
			zap.String("notificationId", entry.NotificationID),
			zap.Int("attempt", attempt),
			zap.Error(err),
		)
	}
	return fmt.Errorf("append delivery log: %w", err)
}

func failureEntry(n *domain.Notification, status domain.LogStatus, sendErr error, elapsed time.Duration, now time.Time) *domain.DeliveryLogEntry {
	message := sendErr.Error()
	entry := &domain.DeliveryLogEntry{
		NotificationID: n.ID,
		UserID:         n.UserID,
		Channel:        n.Channel,
		Status:         status,
		ErrorMessage:   &message,
		DeliveryTime:   elapsed,
		Timestamp:      now,
	}
	if code := adapter.ErrorCodeOf(sendErr); code != "" {
		entry.ErrorCode = &code
	}
	return entry
}

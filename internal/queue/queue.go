package queue

import (
	"context"
	"fmt"
)

const (
	// InboxQueueName carries in_app notifications to the inbox service.
	InboxQueueName = "notifications.inbox"
	// DeliveryEventsQueueName carries provider receipts back to the engine.
	DeliveryEventsQueueName = "notifications.delivery-events"
)

// InboxPublisher publishes in_app notifications to the inbox queue.
type InboxPublisher interface {
	PublishInbox(ctx context.Context, msg InboxMessage) error
	Close() error
}

// DeliveryEventHandler handles one consumed provider event.
type DeliveryEventHandler func(ctx context.Context, event DeliveryEvent) error

// DeliveryEventConsumer consumes provider events from the broker.
type DeliveryEventConsumer interface {
	Consume(ctx context.Context, handler DeliveryEventHandler) error
	Close() error
}

// DLQName returns the dead-letter queue name, e.g. dlq.notifications.inbox.
func DLQName(queue string) string {
	return fmt.Sprintf("dlq.%s", queue)
}

// QueueNames returns every work queue the engine declares.
func QueueNames() []string {
	return []string{InboxQueueName, DeliveryEventsQueueName}
}

package adapter

import (
	"context"
	"fmt"

	"github.com/learnloop/notification-engine/internal/domain"
	"github.com/learnloop/notification-engine/internal/queue"
)

// InAppAdapter hands notifications to the in-app inbox queue; the inbox
// service consumes them and surfaces them in the client. Read receipts come
// back through provider events, so the delivered/read chain applies.
type InAppAdapter struct {
	publisher queue.InboxPublisher
}

func NewInAppAdapter(publisher queue.InboxPublisher) (*InAppAdapter, error) {
	if publisher == nil {
		return nil, fmt.Errorf("inbox publisher is required")
	}
	return &InAppAdapter{publisher: publisher}, nil
}

func (a *InAppAdapter) Channel() domain.Channel { return domain.ChannelInApp }

func (a *InAppAdapter) Capabilities() Capabilities {
	return Capabilities{DeliveryConfirmation: true, AtMostOnce: true}
}

func (a *InAppAdapter) Send(ctx context.Context, notification domain.Notification) (*Outcome, error) {
	if a == nil || a.publisher == nil {
		return nil, fmt.Errorf("in_app adapter is not initialized")
	}

	msg := queue.InboxMessage{
		NotificationID: notification.ID,
		UserID:         notification.UserID,
		Title:          notification.Title,
		Message:        notification.Message,
		Priority:       notification.Priority,
		Metadata:       notification.Metadata,
	}

	if err := a.publisher.PublishInbox(ctx, msg); err != nil {
		return nil, &AdapterError{
			Kind:    ErrorKindTransient,
			Message: "failed to publish inbox message",
			Cause:   err,
		}
	}

	return &Outcome{
		ProviderResponse: domain.Metadata{
			"queue": queue.InboxQueueName,
		},
	}, nil
}

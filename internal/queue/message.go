package queue

import (
	"fmt"
	"strings"
	"time"

	"github.com/learnloop/notification-engine/internal/domain"
)

// DeliveryEvent is the broker payload for an asynchronous provider event
// (delivery receipt, read receipt, bounce, unsubscribe).
type DeliveryEvent struct {
	EventID        string           `json:"eventId,omitempty"`
	NotificationID string           `json:"notificationId"`
	Kind           domain.EventKind `json:"kind"`
	Timestamp      time.Time        `json:"timestamp"`
	Payload        domain.Metadata  `json:"payload,omitempty"`
}

func (e DeliveryEvent) Validate() error {
	if strings.TrimSpace(e.NotificationID) == "" {
		return fmt.Errorf("notificationId is required")
	}
	if !e.Kind.IsValid() {
		return fmt.Errorf("invalid event kind %q", e.Kind)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("timestamp is required")
	}
	return nil
}

// InboxMessage is the broker payload handed to the in-app inbox service.
type InboxMessage struct {
	NotificationID string          `json:"notificationId"`
	UserID         string          `json:"userId"`
	Title          string          `json:"title"`
	Message        string          `json:"message"`
	Priority       domain.Priority `json:"priority"`
	Metadata       domain.Metadata `json:"metadata,omitempty"`
}

func (m InboxMessage) Validate() error {
	if strings.TrimSpace(m.NotificationID) == "" {
		return fmt.Errorf("notificationId is required")
	}
	if strings.TrimSpace(m.UserID) == "" {
		return fmt.Errorf("userId is required")
	}
	if strings.TrimSpace(m.Message) == "" {
		return fmt.Errorf("message is required")
	}
	if !m.Priority.IsValid() {
		return fmt.Errorf("invalid priority %q", m.Priority)
	}
	return nil
}

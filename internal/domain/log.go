package domain

import (
	"fmt"
	"time"
)

// LogStatus is the outcome recorded by a delivery log entry.
type LogStatus string

const (
	LogStatusSent         LogStatus = "sent"
	LogStatusDelivered    LogStatus = "delivered"
	LogStatusRead         LogStatus = "read"
	LogStatusFailed       LogStatus = "failed"
	LogStatusBounced      LogStatus = "bounced"
	LogStatusUnsubscribed LogStatus = "unsubscribed"
)

func (s LogStatus) String() string { return string(s) }

func (s LogStatus) IsValid() bool {
	switch s {
	case LogStatusSent, LogStatusDelivered, LogStatusRead,
		LogStatusFailed, LogStatusBounced, LogStatusUnsubscribed:
		return true
	}
	return false
}

func ParseLogStatusFromString(v string) (LogStatus, error) {
	st := LogStatus(v)
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid log status %q", ErrValidation, v)
	}
	return st, nil
}

// DeliveryLogEntry is the immutable audit record of one delivery attempt
// outcome or provider event. Entries are append-only and never mutated.
type DeliveryLogEntry struct {
	ID               string
	NotificationID   string
	UserID           string
	Channel          Channel
	Status           LogStatus
	Retrying         bool // attempt failed but another retry is scheduled
	ProviderResponse Metadata
	ErrorCode        *string
	ErrorMessage     *string
	DeliveryTime     time.Duration
	Timestamp        time.Time
}

func (e *DeliveryLogEntry) Validate() error {
	if e.NotificationID == "" {
		return fmt.Errorf("%w: notificationId is required", ErrValidation)
	}
	if e.UserID == "" {
		return fmt.Errorf("%w: userId is required", ErrValidation)
	}
	if !e.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, e.Channel)
	}
	if !e.Status.IsValid() {
		return fmt.Errorf("%w: invalid log status %q", ErrValidation, e.Status)
	}
	if e.Timestamp.IsZero() {
		return fmt.Errorf("%w: timestamp is required", ErrValidation)
	}
	return nil
}

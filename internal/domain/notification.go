package domain

import (
	"fmt"
	"strings"
	"time"
)

// Channel represents the delivery transport.
type Channel string

const (
	ChannelEmail   Channel = "email"
	ChannelPush    Channel = "push"
	ChannelSMS     Channel = "sms"
	ChannelInApp   Channel = "in_app"
	ChannelWebhook Channel = "webhook"
)

func (c Channel) String() string { return string(c) }

func (c Channel) IsValid() bool {
	switch c {
	case ChannelEmail, ChannelPush, ChannelSMS, ChannelInApp, ChannelWebhook:
		return true
	}
	return false
}

func ParseChannelFromString(s string) (Channel, error) {
	ch := Channel(strings.ToLower(strings.TrimSpace(s)))
	if !ch.IsValid() {
		return "", fmt.Errorf("%w: invalid channel %q", ErrValidation, s)
	}
	return ch, nil
}

// Channels lists every supported delivery channel.
func Channels() []Channel {
	return []Channel{ChannelEmail, ChannelPush, ChannelSMS, ChannelInApp, ChannelWebhook}
}

// Priority represents the dispatch priority level.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

func (p Priority) String() string { return string(p) }

func (p Priority) IsValid() bool {
	switch p {
	case PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent:
		return true
	}
	return false
}

// Rank orders priorities for claim selection; higher dispatches first.
func (p Priority) Rank() int {
	switch p {
	case PriorityUrgent:
		return 4
	case PriorityHigh:
		return 3
	case PriorityNormal:
		return 2
	case PriorityLow:
		return 1
	}
	return 0
}

func ParsePriorityFromString(s string) (Priority, error) {
	pr := Priority(strings.ToLower(strings.TrimSpace(s)))
	if !pr.IsValid() {
		return "", fmt.Errorf("%w: invalid priority %q", ErrValidation, s)
	}
	return pr, nil
}

// MaxTitleLength is the upper bound for notification titles.
const MaxTitleLength = 255

// RecipientInfo is the channel-keyed recipient union. The Kind field pins
// the payload to one channel so a push notification cannot be constructed
// with only an email address. Use the per-channel constructors.
type RecipientInfo struct {
	Kind         Channel  `json:"kind"`
	Email        string   `json:"email,omitempty"`
	Phone        string   `json:"phone,omitempty"`
	DeviceTokens []string `json:"deviceTokens,omitempty"`
	WebhookURL   string   `json:"webhookUrl,omitempty"`
}

func EmailRecipient(address string) RecipientInfo {
	return RecipientInfo{Kind: ChannelEmail, Email: strings.TrimSpace(address)}
}

func SMSRecipient(phone string) RecipientInfo {
	return RecipientInfo{Kind: ChannelSMS, Phone: strings.TrimSpace(phone)}
}

func PushRecipient(deviceTokens ...string) RecipientInfo {
	return RecipientInfo{Kind: ChannelPush, DeviceTokens: deviceTokens}
}

func WebhookRecipient(url string) RecipientInfo {
	return RecipientInfo{Kind: ChannelWebhook, WebhookURL: strings.TrimSpace(url)}
}

func InAppRecipient() RecipientInfo {
	return RecipientInfo{Kind: ChannelInApp}
}

// ValidateFor checks that the recipient payload matches the channel and
// carries the field that channel requires.
func (r RecipientInfo) ValidateFor(channel Channel) error {
	if r.Kind != channel {
		return fmt.Errorf("%w: recipient kind %q does not match channel %q", ErrValidation, r.Kind, channel)
	}

	switch channel {
	case ChannelEmail:
		if !strings.Contains(r.Email, "@") {
			return fmt.Errorf("%w: invalid email address %q", ErrValidation, r.Email)
		}
	case ChannelSMS:
		if strings.TrimSpace(r.Phone) == "" {
			return fmt.Errorf("%w: phone is required for sms", ErrValidation)
		}
	case ChannelPush:
		if len(r.DeviceTokens) == 0 {
			return fmt.Errorf("%w: at least one device token is required for push", ErrValidation)
		}
		for _, token := range r.DeviceTokens {
			if strings.TrimSpace(token) == "" {
				return fmt.Errorf("%w: empty device token", ErrValidation)
			}
		}
	case ChannelWebhook:
		if strings.TrimSpace(r.WebhookURL) == "" {
			return fmt.Errorf("%w: webhook url is required", ErrValidation)
		}
	case ChannelInApp:
		// The owning user id is the recipient.
	default:
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, channel)
	}

	return nil
}

// Metadata is the opaque key-value bag attached to a notification. Its
// contents are channel/content specific and carry no engine invariants.
type Metadata map[string]any

// Notification is the unit of work: one message owed to one user over
// one channel.
type Notification struct {
	ID            string
	UserID        string
	TemplateID    *string
	Channel       Channel
	Title         string
	Message       string
	Priority      Priority
	Status        Status
	Recipient     RecipientInfo
	Metadata      Metadata
	ScheduledFor  *time.Time
	AttemptCount  int
	MaxAttempts   int
	NextAttemptAt *time.Time
	LastAttemptAt *time.Time
	SentAt        *time.Time
	DeliveredAt   *time.Time
	ReadAt        *time.Time
	ErrorMessage  *string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

func (n *Notification) Validate() error {
	if strings.TrimSpace(n.UserID) == "" {
		return fmt.Errorf("%w: userId is required", ErrValidation)
	}
	if strings.TrimSpace(n.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrValidation)
	}
	if titleLen := len([]rune(n.Title)); titleLen > MaxTitleLength {
		return fmt.Errorf("%w: title exceeds %d characters (got %d)", ErrValidation, MaxTitleLength, titleLen)
	}
	if strings.TrimSpace(n.Message) == "" {
		return fmt.Errorf("%w: message is required", ErrValidation)
	}
	if !n.Channel.IsValid() {
		return fmt.Errorf("%w: invalid channel %q", ErrValidation, n.Channel)
	}
	if !n.Priority.IsValid() {
		return fmt.Errorf("%w: invalid priority %q", ErrValidation, n.Priority)
	}
	if n.AttemptCount < 0 {
		return fmt.Errorf("%w: attemptCount must be >= 0", ErrValidation)
	}

	return n.Recipient.ValidateFor(n.Channel)
}

package domain

import (
	"errors"
	"strings"
	"testing"
)

func TestParseChannelFromString(t *testing.T) {
	t.Parallel()

	got, err := ParseChannelFromString(" In_App ")
	if err != nil {
		t.Fatalf("ParseChannelFromString() unexpected error = %v", err)
	}
	if got != ChannelInApp {
		t.Fatalf("ParseChannelFromString() = %s, want %s", got, ChannelInApp)
	}

	_, err = ParseChannelFromString("fax")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ParseChannelFromString() error = %v, want ErrValidation", err)
	}
}

func TestParsePriorityFromString(t *testing.T) {
	t.Parallel()

	got, err := ParsePriorityFromString(" URGENT ")
	if err != nil {
		t.Fatalf("ParsePriorityFromString() unexpected error = %v", err)
	}
	if got != PriorityUrgent {
		t.Fatalf("ParsePriorityFromString() = %s, want %s", got, PriorityUrgent)
	}

	_, err = ParsePriorityFromString("critical")
	if !errors.Is(err, ErrValidation) {
		t.Fatalf("ParsePriorityFromString() error = %v, want ErrValidation", err)
	}
}

func TestPriorityRankOrdering(t *testing.T) {
	t.Parallel()

	ordered := []Priority{PriorityLow, PriorityNormal, PriorityHigh, PriorityUrgent}
	for i := 1; i < len(ordered); i++ {
		if ordered[i].Rank() <= ordered[i-1].Rank() {
			t.Fatalf("Rank(%s) = %d should exceed Rank(%s) = %d",
				ordered[i], ordered[i].Rank(), ordered[i-1], ordered[i-1].Rank())
		}
	}
}

func TestRecipientInfoValidateFor(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		recipient RecipientInfo
		channel   Channel
		wantErr   bool
	}{
		{name: "email ok", recipient: EmailRecipient("user@example.com"), channel: ChannelEmail},
		{name: "email missing at", recipient: EmailRecipient("not-an-address"), channel: ChannelEmail, wantErr: true},
		{name: "sms ok", recipient: SMSRecipient("+905551112233"), channel: ChannelSMS},
		{name: "sms empty phone", recipient: SMSRecipient("  "), channel: ChannelSMS, wantErr: true},
		{name: "push ok", recipient: PushRecipient("token-1", "token-2"), channel: ChannelPush},
		{name: "push no tokens", recipient: PushRecipient(), channel: ChannelPush, wantErr: true},
		{name: "webhook ok", recipient: WebhookRecipient("https://example.com/hook"), channel: ChannelWebhook},
		{name: "in_app ok", recipient: InAppRecipient(), channel: ChannelInApp},
		{name: "kind mismatch", recipient: EmailRecipient("user@example.com"), channel: ChannelPush, wantErr: true},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			err := tt.recipient.ValidateFor(tt.channel)
			if tt.wantErr {
				if !errors.Is(err, ErrValidation) {
					t.Fatalf("ValidateFor() error = %v, want ErrValidation", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ValidateFor() unexpected error = %v", err)
			}
		})
	}
}

func TestNotificationValidate(t *testing.T) {
	t.Parallel()

	valid := func() Notification {
		return Notification{
			UserID:    "user-1",
			Channel:   ChannelEmail,
			Title:     "Welcome",
			Message:   "Your course starts tomorrow.",
			Priority:  PriorityNormal,
			Recipient: EmailRecipient("user@example.com"),
		}
	}

	n := valid()
	if err := n.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error = %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Notification)
	}{
		{name: "missing user", mutate: func(n *Notification) { n.UserID = "" }},
		{name: "missing title", mutate: func(n *Notification) { n.Title = "  " }},
		{name: "title too long", mutate: func(n *Notification) { n.Title = strings.Repeat("x", MaxTitleLength+1) }},
		{name: "missing message", mutate: func(n *Notification) { n.Message = "" }},
		{name: "invalid channel", mutate: func(n *Notification) { n.Channel = "pigeon" }},
		{name: "invalid priority", mutate: func(n *Notification) { n.Priority = "asap" }},
		{name: "negative attempts", mutate: func(n *Notification) { n.AttemptCount = -1 }},
		{name: "recipient mismatch", mutate: func(n *Notification) { n.Recipient = SMSRecipient("+1555") }},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			n := valid()
			tt.mutate(&n)
			if err := n.Validate(); !errors.Is(err, ErrValidation) {
				t.Fatalf("Validate() error = %v, want ErrValidation", err)
			}
		})
	}
}

func TestTitleAtLimitIsValid(t *testing.T) {
	t.Parallel()

	n := Notification{
		UserID:    "user-1",
		Channel:   ChannelEmail,
		Title:     strings.Repeat("a", MaxTitleLength),
		Message:   "body",
		Priority:  PriorityLow,
		Recipient: EmailRecipient("user@example.com"),
	}
	if err := n.Validate(); err != nil {
		t.Fatalf("Validate() unexpected error = %v", err)
	}
}

package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/smtp"
	"strings"

	"github.com/learnloop/notification-engine/internal/domain"
)

// SMTPConfig holds the outbound mail server settings.
type SMTPConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	From     string
}

type smtpSendFunc func(addr string, auth smtp.Auth, from string, to []string, msg []byte) error

// EmailAdapter delivers over SMTP. Bounce and open events arrive later via
// provider callbacks, so the delivered/read chain stays open.
type EmailAdapter struct {
	config SMTPConfig
	send   smtpSendFunc
}

func NewEmailAdapter(config SMTPConfig) (*EmailAdapter, error) {
	if strings.TrimSpace(config.Host) == "" {
		return nil, fmt.Errorf("smtp host is required")
	}
	if config.Port <= 0 {
		return nil, fmt.Errorf("smtp port is required")
	}
	if !strings.Contains(config.From, "@") {
		return nil, fmt.Errorf("invalid smtp from address %q", config.From)
	}

	return &EmailAdapter{config: config, send: smtp.SendMail}, nil
}

func (a *EmailAdapter) Channel() domain.Channel { return domain.ChannelEmail }

func (a *EmailAdapter) Capabilities() Capabilities {
	return Capabilities{DeliveryConfirmation: true, AtMostOnce: true}
}

func (a *EmailAdapter) Send(ctx context.Context, notification domain.Notification) (*Outcome, error) {
	if a == nil || a.send == nil {
		return nil, fmt.Errorf("email adapter is not initialized")
	}
	if err := ctx.Err(); err != nil {
		return nil, &AdapterError{Kind: requestErrorKind(err), Message: "send aborted", Cause: err}
	}

	to := notification.Recipient.Email
	if !strings.Contains(to, "@") {
		return nil, &AdapterError{
			Kind:    ErrorKindInvalidRecipient,
			Message: fmt.Sprintf("invalid email address %q", to),
		}
	}

	addr := fmt.Sprintf("%s:%d", a.config.Host, a.config.Port)
	var auth smtp.Auth
	if a.config.Username != "" {
		auth = smtp.PlainAuth("", a.config.Username, a.config.Password, a.config.Host)
	}

	msg := buildMailMessage(a.config.From, to, notification.Title, notification.Message)
	if err := a.send(addr, auth, a.config.From, []string{to}, msg); err != nil {
		return nil, classifySMTPError(err)
	}

	return &Outcome{
		ProviderResponse: domain.Metadata{
			"server": addr,
			"to":     to,
		},
	}, nil
}

func buildMailMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "From: %s\r\n", from)
	fmt.Fprintf(&b, "To: %s\r\n", to)
	fmt.Fprintf(&b, "Subject: %s\r\n", subject)
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=utf-8\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)
	b.WriteString("\r\n")
	return []byte(b.String())
}

func classifySMTPError(err error) *AdapterError {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &AdapterError{Kind: ErrorKindTimeout, Message: "smtp timeout", Cause: err}
	}

	msg := strings.ToLower(err.Error())
	// 5xx SMTP replies for unknown mailboxes are permanent.
	if strings.Contains(msg, "550") || strings.Contains(msg, "no such user") || strings.Contains(msg, "mailbox unavailable") {
		return &AdapterError{Kind: ErrorKindInvalidRecipient, Code: "smtp_550", Message: "recipient rejected", Cause: err}
	}
	if strings.Contains(msg, "421") || strings.Contains(msg, "too many") {
		return &AdapterError{Kind: ErrorKindRateLimited, Code: "smtp_421", Message: "smtp throttled", Cause: err}
	}

	return &AdapterError{Kind: ErrorKindTransient, Message: "smtp delivery failed", Cause: err}
}

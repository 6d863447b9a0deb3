package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/learnloop/notification-engine/internal/domain"
)

const defaultWebhookTimeout = 10 * time.Second

type webhookPayload struct {
	NotificationID string          `json:"notificationId"`
	UserID         string          `json:"userId"`
	Title          string          `json:"title"`
	Message        string          `json:"message"`
	Priority       string          `json:"priority"`
	Metadata       domain.Metadata `json:"metadata,omitempty"`
}

// WebhookAdapter POSTs notifications to the per-record webhook URL.
// Receivers are expected to deduplicate by notification id, so retried
// deliveries stay safe.
type WebhookAdapter struct {
	client *resty.Client
}

func NewWebhookAdapter() *WebhookAdapter {
	client := resty.New()
	client.SetTimeout(defaultWebhookTimeout)
	client.SetRetryCount(0)
	return &WebhookAdapter{client: client}
}

func NewWebhookAdapterWithClient(client *resty.Client) (*WebhookAdapter, error) {
	if client == nil {
		return nil, fmt.Errorf("resty client is required")
	}
	if client.GetClient().Timeout == 0 {
		client.SetTimeout(defaultWebhookTimeout)
	}
	client.SetRetryCount(0)
	return &WebhookAdapter{client: client}, nil
}

func (a *WebhookAdapter) Channel() domain.Channel { return domain.ChannelWebhook }

func (a *WebhookAdapter) Capabilities() Capabilities {
	return Capabilities{DeliveryConfirmation: false, AtMostOnce: true}
}

func (a *WebhookAdapter) Send(ctx context.Context, notification domain.Notification) (*Outcome, error) {
	if a == nil || a.client == nil {
		return nil, fmt.Errorf("webhook adapter is not initialized")
	}

	endpoint := strings.TrimSpace(notification.Recipient.WebhookURL)
	if _, err := url.ParseRequestURI(endpoint); err != nil {
		return nil, &AdapterError{
			Kind:    ErrorKindInvalidRecipient,
			Message: fmt.Sprintf("invalid webhook url %q", endpoint),
			Cause:   err,
		}
	}

	payload := webhookPayload{
		NotificationID: notification.ID,
		UserID:         notification.UserID,
		Title:          notification.Title,
		Message:        notification.Message,
		Priority:       notification.Priority.String(),
		Metadata:       notification.Metadata,
	}

	response, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(endpoint)
	if err != nil {
		return nil, &AdapterError{
			Kind:    requestErrorKind(err),
			Message: "webhook request failed",
			Cause:   err,
		}
	}

	statusCode := response.StatusCode()
	body := strings.TrimSpace(response.String())

	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &Outcome{
			ProviderResponse: domain.Metadata{
				"statusCode": statusCode,
				"body":       body,
			},
		}, nil
	}

	return nil, httpStatusError(statusCode, body)
}

func requestErrorKind(err error) ErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return ErrorKindTransient
	}
	return ErrorKindTransient
}

package adapter

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/learnloop/notification-engine/internal/domain"
)

const defaultPushTimeout = 10 * time.Second

type pushRequest struct {
	DeviceTokens []string        `json:"deviceTokens"`
	Title        string          `json:"title"`
	Body         string          `json:"body"`
	Priority     string          `json:"priority"`
	Data         domain.Metadata `json:"data,omitempty"`
}

type pushResponse struct {
	Accepted int    `json:"accepted"`
	Rejected int    `json:"rejected"`
	Error    string `json:"error"`
}

// PushAdapter delivers through an FCM-style HTTP push service. The service
// offers no per-device delivery receipts, so sent is terminal here.
type PushAdapter struct {
	client   *resty.Client
	endpoint string
	apiKey   string
}

func NewPushAdapter(endpoint, apiKey string) (*PushAdapter, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("push service endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid push service endpoint: %w", err)
	}

	client := resty.New()
	client.SetTimeout(defaultPushTimeout)
	client.SetRetryCount(0)

	return &PushAdapter{client: client, endpoint: trimmed, apiKey: apiKey}, nil
}

func (a *PushAdapter) Channel() domain.Channel { return domain.ChannelPush }

func (a *PushAdapter) Capabilities() Capabilities {
	return Capabilities{DeliveryConfirmation: false, AtMostOnce: true}
}

func (a *PushAdapter) Send(ctx context.Context, notification domain.Notification) (*Outcome, error) {
	if a == nil || a.client == nil {
		return nil, fmt.Errorf("push adapter is not initialized")
	}

	var parsed pushResponse
	response, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+a.apiKey).
		SetBody(pushRequest{
			DeviceTokens: notification.Recipient.DeviceTokens,
			Title:        notification.Title,
			Body:         notification.Message,
			Priority:     notification.Priority.String(),
			Data:         notification.Metadata,
		}).
		SetResult(&parsed).
		Post(a.endpoint)
	if err != nil {
		return nil, &AdapterError{
			Kind:    requestErrorKind(err),
			Message: "push service request failed",
			Cause:   err,
		}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		if parsed.Accepted == 0 && parsed.Rejected > 0 {
			return nil, &AdapterError{
				Kind:    ErrorKindInvalidRecipient,
				Code:    "all_tokens_rejected",
				Message: fmt.Sprintf("push service rejected all %d device tokens", parsed.Rejected),
			}
		}
		return &Outcome{
			ProviderResponse: domain.Metadata{
				"statusCode": statusCode,
				"accepted":   parsed.Accepted,
				"rejected":   parsed.Rejected,
			},
		}, nil
	}

	return nil, httpStatusError(statusCode, strings.TrimSpace(response.String()))
}

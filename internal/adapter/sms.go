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

const defaultSMSTimeout = 10 * time.Second

type smsRequest struct {
	To      string `json:"to"`
	Message string `json:"message"`
}

type smsResponse struct {
	MessageID string `json:"messageId"`
	ErrorCode string `json:"errorCode"`
}

// SMSAdapter delivers through an HTTP SMS gateway. The gateway emits
// delivery reports later, so sent is not terminal for this channel.
type SMSAdapter struct {
	client   *resty.Client
	endpoint string
	apiKey   string
}

func NewSMSAdapter(endpoint, apiKey string) (*SMSAdapter, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("sms gateway endpoint is required")
	}
	if _, err := url.ParseRequestURI(trimmed); err != nil {
		return nil, fmt.Errorf("invalid sms gateway endpoint: %w", err)
	}

	client := resty.New()
	client.SetTimeout(defaultSMSTimeout)
	client.SetRetryCount(0)

	return &SMSAdapter{client: client, endpoint: trimmed, apiKey: apiKey}, nil
}

func (a *SMSAdapter) Channel() domain.Channel { return domain.ChannelSMS }

func (a *SMSAdapter) Capabilities() Capabilities {
	return Capabilities{DeliveryConfirmation: true, AtMostOnce: true}
}

func (a *SMSAdapter) Send(ctx context.Context, notification domain.Notification) (*Outcome, error) {
	if a == nil || a.client == nil {
		return nil, fmt.Errorf("sms adapter is not initialized")
	}

	var parsed smsResponse
	response, err := a.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetHeader("Authorization", "Bearer "+a.apiKey).
		SetBody(smsRequest{
			To:      notification.Recipient.Phone,
			Message: notification.Message,
		}).
		SetResult(&parsed).
		Post(a.endpoint)
	if err != nil {
		return nil, &AdapterError{
			Kind:    requestErrorKind(err),
			Message: "sms gateway request failed",
			Cause:   err,
		}
	}

	statusCode := response.StatusCode()
	if statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices {
		return &Outcome{
			ProviderResponse: domain.Metadata{
				"statusCode": statusCode,
				"messageId":  parsed.MessageID,
			},
		}, nil
	}

	if statusCode == http.StatusUnprocessableEntity || statusCode == http.StatusBadRequest {
		return nil, &AdapterError{
			Kind:    ErrorKindInvalidRecipient,
			Code:    parsed.ErrorCode,
			Message: fmt.Sprintf("sms gateway rejected recipient %q", notification.Recipient.Phone),
		}
	}

	return nil, httpStatusError(statusCode, strings.TrimSpace(response.String()))
}

package handler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/learnloop/notification-engine/internal/domain"
	"github.com/learnloop/notification-engine/internal/observability"
	"github.com/learnloop/notification-engine/internal/queue"
)

// EventSink applies a provider delivery event to the queue record.
type EventSink interface {
	OnProviderEvent(ctx context.Context, event queue.DeliveryEvent) error
}

// CallbackHandler receives synchronous provider webhooks (delivery
// receipts, read receipts, bounces, unsubscribes). The same events may
// also arrive over the broker; the sink deduplicates by event id.
type CallbackHandler struct {
	sink    EventSink
	metrics *observability.Metrics
}

func NewCallbackHandler(sink EventSink, metrics *observability.Metrics) (*CallbackHandler, error) {
	if sink == nil {
		return nil, fmt.Errorf("event sink is required")
	}
	return &CallbackHandler{sink: sink, metrics: metrics}, nil
}

func RegisterCallbackRoutes(router fiber.Router, sink EventSink, metrics *observability.Metrics) error {
	h, err := NewCallbackHandler(sink, metrics)
	if err != nil {
		return err
	}

	v1 := router.Group("/v1")
	v1.Post("/provider-events", h.ReceiveProviderEvent)

	return nil
}

type providerEventRequest struct {
	EventID        string          `json:"eventId"`
	NotificationID string          `json:"notificationId"`
	Kind           string          `json:"kind"`
	Timestamp      *time.Time      `json:"timestamp"`
	Payload        domain.Metadata `json:"payload"`
}

func (h *CallbackHandler) ReceiveProviderEvent(c *fiber.Ctx) error {
	var req providerEventRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	kind, err := domain.ParseEventKindFromString(req.Kind)
	if err != nil {
		return toHTTPError(err)
	}

	timestamp := time.Now().UTC()
	if req.Timestamp != nil && !req.Timestamp.IsZero() {
		timestamp = req.Timestamp.UTC()
	}

	event := queue.DeliveryEvent{
		EventID:        strings.TrimSpace(req.EventID),
		NotificationID: strings.TrimSpace(req.NotificationID),
		Kind:           kind,
		Timestamp:      timestamp,
		Payload:        req.Payload,
	}
	if err := event.Validate(); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}

	if err := h.sink.OnProviderEvent(c.Context(), event); err != nil {
		return toHTTPError(err)
	}

	if h.metrics != nil {
		h.metrics.IncProviderEvent(kind.String())
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{
		"notificationId": event.NotificationID,
		"kind":           kind.String(),
	})
}

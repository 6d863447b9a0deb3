package handler

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/learnloop/notification-engine/internal/domain"
	"github.com/learnloop/notification-engine/internal/queue"
)

type fakeSink struct {
	events  []queue.DeliveryEvent
	applyFn func(ctx context.Context, event queue.DeliveryEvent) error
}

func (f *fakeSink) OnProviderEvent(ctx context.Context, event queue.DeliveryEvent) error {
	if f.applyFn != nil {
		if err := f.applyFn(ctx, event); err != nil {
			return err
		}
	}
	f.events = append(f.events, event)
	return nil
}

func newCallbackApp(t *testing.T, sink EventSink) *fiber.App {
	t.Helper()

	app := fiber.New()
	if err := RegisterCallbackRoutes(app, sink, nil); err != nil {
		t.Fatalf("RegisterCallbackRoutes() error = %v", err)
	}
	return app
}

func TestReceiveProviderEventAccepted(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	app := newCallbackApp(t, sink)

	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	resp := doJSONRequest(t, app, http.MethodPost, "/v1/provider-events", map[string]any{
		"eventId":        "evt-1",
		"notificationId": "n-1",
		"kind":           "delivered",
		"timestamp":      ts.Format(time.RFC3339),
		"payload":        map[string]any{"receipt": "r-9"},
	})
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	if len(sink.events) != 1 {
		t.Fatalf("events = %d, want 1", len(sink.events))
	}
	event := sink.events[0]
	if event.Kind != domain.EventDelivered || event.NotificationID != "n-1" {
		t.Fatalf("unexpected event: %+v", event)
	}
	if !event.Timestamp.Equal(ts) {
		t.Fatalf("timestamp = %v, want %v", event.Timestamp, ts)
	}
}

func TestReceiveProviderEventDefaultsTimestamp(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	app := newCallbackApp(t, sink)

	resp := doJSONRequest(t, app, http.MethodPost, "/v1/provider-events", map[string]any{
		"notificationId": "n-1",
		"kind":           "read",
	})
	if resp.StatusCode != fiber.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}
	if sink.events[0].Timestamp.IsZero() {
		t.Fatal("timestamp should default to now")
	}
}

func TestReceiveProviderEventRejectsBadKind(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{
		applyFn: func(context.Context, queue.DeliveryEvent) error {
			t.Fatal("sink must not be called for bad input")
			return nil
		},
	}
	app := newCallbackApp(t, sink)

	resp := doJSONRequest(t, app, http.MethodPost, "/v1/provider-events", map[string]any{
		"notificationId": "n-1",
		"kind":           "opened",
	})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestReceiveProviderEventMissingNotificationID(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{}
	app := newCallbackApp(t, sink)

	resp := doJSONRequest(t, app, http.MethodPost, "/v1/provider-events", map[string]any{
		"kind": "delivered",
	})
	if resp.StatusCode != fiber.StatusBadRequest {
		t.Fatalf("status = %d, want 400", resp.StatusCode)
	}
}

func TestReceiveProviderEventUnknownNotification(t *testing.T) {
	t.Parallel()

	sink := &fakeSink{
		applyFn: func(context.Context, queue.DeliveryEvent) error {
			return domain.ErrNotFound
		},
	}
	app := newCallbackApp(t, sink)

	resp := doJSONRequest(t, app, http.MethodPost, "/v1/provider-events", map[string]any{
		"notificationId": "ghost",
		"kind":           "delivered",
	})
	if resp.StatusCode != fiber.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

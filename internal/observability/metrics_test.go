package observability

import (
	"errors"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestMetricsDispatchCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncNotificationEnqueued("EMAIL", "urgent")
	metrics.IncNotificationSent("SMS")
	metrics.IncNotificationFailed("sms", "invalid_recipient")
	metrics.ObserveNotificationSendDuration("sms", 120*time.Millisecond)
	metrics.IncDispatchInFlight("sms")
	metrics.DecDispatchInFlight("sms")
	metrics.IncRetryScheduled("sms")

	if got := testutil.ToFloat64(metrics.notificationsEnqueued.WithLabelValues("email", "urgent")); got != 1 {
		t.Fatalf("notifications_enqueued_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.notificationsSentTotal.WithLabelValues("sms")); got != 1 {
		t.Fatalf("notifications_sent_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.notificationsFailedTotal.WithLabelValues("sms", "invalid_recipient")); got != 1 {
		t.Fatalf("notifications_failed_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.retryScheduledTotal.WithLabelValues("sms")); got != 1 {
		t.Fatalf("retry_scheduled_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.dispatchInflight.WithLabelValues("sms")); got != 0 {
		t.Fatalf("dispatch_inflight = %v, want 0", got)
	}
}

func TestMetricsLifecycleCollectors(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()

	metrics.IncProviderEvent("delivered")
	metrics.IncProviderEvent("delivered")
	metrics.IncNotificationCancelled()
	metrics.AddDeliveryLogsPurged(42)
	metrics.AddDeliveryLogsPurged(0)
	metrics.AddDeliveryLogsPurged(-3)

	if got := testutil.ToFloat64(metrics.providerEventsTotal.WithLabelValues("delivered")); got != 2 {
		t.Fatalf("provider_events_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(metrics.notificationsCancelledTot); got != 1 {
		t.Fatalf("notifications_cancelled_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(metrics.deliveryLogsPurgedTotal); got != 42 {
		t.Fatalf("delivery_logs_purged_total = %v, want 42", got)
	}
}

func TestMetricsNilReceiverIsSafe(t *testing.T) {
	t.Parallel()

	var metrics *Metrics
	metrics.IncNotificationEnqueued("email", "normal")
	metrics.IncNotificationSent("email")
	metrics.IncNotificationFailed("email", "timeout")
	metrics.IncRetryScheduled("email")
	metrics.IncProviderEvent("read")
	metrics.IncNotificationCancelled()
	metrics.AddDeliveryLogsPurged(1)
}

func TestMetricsHTTPMiddlewareRecordsRequest(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/livez", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest("GET", "/livez", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/livez", "200")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

func TestMetricsHTTPMiddlewareRecordsErrorStatus(t *testing.T) {
	t.Parallel()

	metrics := NewMetrics()
	app := fiber.New()
	app.Use(metrics.HTTPMiddleware())
	app.Get("/boom", func(c *fiber.Ctx) error {
		return errors.New("boom")
	})

	req := httptest.NewRequest("GET", "/boom", nil)
	_, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test() error = %v", err)
	}

	if got := testutil.ToFloat64(metrics.httpRequestsTotal.WithLabelValues("GET", "/boom", "500")); got != 1 {
		t.Fatalf("http_requests_total = %v, want 1", got)
	}
}

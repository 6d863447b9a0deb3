package adapter

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o timeout" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestKindOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{
			name: "adapter error passes through",
			err:  &AdapterError{Kind: ErrorKindRateLimited},
			want: ErrorKindRateLimited,
		},
		{
			name: "wrapped adapter error",
			err:  fmt.Errorf("send: %w", &AdapterError{Kind: ErrorKindInvalidRecipient}),
			want: ErrorKindInvalidRecipient,
		},
		{
			name: "deadline exceeded",
			err:  context.DeadlineExceeded,
			want: ErrorKindTimeout,
		},
		{
			name: "canceled",
			err:  context.Canceled,
			want: ErrorKindTransient,
		},
		{
			name: "net timeout",
			err:  timeoutError{},
			want: ErrorKindTimeout,
		},
		{
			name: "unknown error",
			err:  errors.New("boom"),
			want: ErrorKindRejected,
		},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Fatalf("%s: KindOf() = %s, want %s", tt.name, got, tt.want)
		}
	}
}

func TestRetryable(t *testing.T) {
	t.Parallel()

	retryable := []ErrorKind{ErrorKindTransient, ErrorKindTimeout, ErrorKindRateLimited}
	for _, k := range retryable {
		if !k.Retryable() {
			t.Fatalf("%s should be retryable", k)
		}
	}

	terminal := []ErrorKind{ErrorKindInvalidRecipient, ErrorKindUnsubscribed, ErrorKindRejected}
	for _, k := range terminal {
		if k.Retryable() {
			t.Fatalf("%s should not be retryable", k)
		}
	}
}

func TestKindFromHTTPStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status int
		want   ErrorKind
	}{
		{status: http.StatusTooManyRequests, want: ErrorKindRateLimited},
		{status: http.StatusInternalServerError, want: ErrorKindTransient},
		{status: http.StatusServiceUnavailable, want: ErrorKindTransient},
		{status: http.StatusBadRequest, want: ErrorKindRejected},
		{status: http.StatusNotFound, want: ErrorKindRejected},
	}
	for _, tt := range tests {
		if got := kindFromHTTPStatus(tt.status); got != tt.want {
			t.Fatalf("status %d: kind = %s, want %s", tt.status, got, tt.want)
		}
	}
}

func TestErrorCodeOf(t *testing.T) {
	t.Parallel()

	err := httpStatusError(http.StatusBadGateway, "upstream down")
	if code := ErrorCodeOf(err); code != "http_502" {
		t.Fatalf("ErrorCodeOf() = %s, want http_502", code)
	}
	if code := ErrorCodeOf(errors.New("plain")); code != "" {
		t.Fatalf("ErrorCodeOf(plain) = %s, want empty", code)
	}
}

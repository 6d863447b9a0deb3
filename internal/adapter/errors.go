package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
)

// ErrorKind classifies a delivery failure for the retry policy.
type ErrorKind string

const (
	ErrorKindTransient        ErrorKind = "transient"
	ErrorKindTimeout          ErrorKind = "timeout"
	ErrorKindRateLimited      ErrorKind = "rate_limited"
	ErrorKindInvalidRecipient ErrorKind = "invalid_recipient"
	ErrorKindUnsubscribed     ErrorKind = "unsubscribed"
	ErrorKindRejected         ErrorKind = "rejected"
)

func (k ErrorKind) String() string { return string(k) }

// Retryable reports whether another attempt can reasonably succeed.
func (k ErrorKind) Retryable() bool {
	switch k {
	case ErrorKindTransient, ErrorKindTimeout, ErrorKindRateLimited:
		return true
	}
	return false
}

// AdapterError is a normalized delivery failure.
type AdapterError struct {
	Kind    ErrorKind
	Code    string
	Message string
	Cause   error
}

func (e *AdapterError) Error() string {
	if e == nil {
		return "<nil>"
	}

	parts := make([]string, 0, 4)
	parts = append(parts, fmt.Sprintf("delivery error (%s)", e.Kind))

	if e.Code != "" {
		parts = append(parts, fmt.Sprintf("code=%s", e.Code))
	}
	if msg := strings.TrimSpace(e.Message); msg != "" {
		parts = append(parts, msg)
	}
	if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}

	return strings.Join(parts, ": ")
}

func (e *AdapterError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// KindOf normalizes any error returned by an adapter into an ErrorKind.
func KindOf(err error) ErrorKind {
	if err == nil {
		return ""
	}

	var adapterErr *AdapterError
	if errors.As(err, &adapterErr) {
		return adapterErr.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorKindTimeout
	}
	if errors.Is(err, context.Canceled) {
		// Shutdown mid-flight; the attempt may be retried later.
		return ErrorKindTransient
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ErrorKindTimeout
	}

	return ErrorKindRejected
}

// ErrorCodeOf extracts the provider error code, if any.
func ErrorCodeOf(err error) string {
	var adapterErr *AdapterError
	if errors.As(err, &adapterErr) {
		return adapterErr.Code
	}
	return ""
}

func kindFromHTTPStatus(statusCode int) ErrorKind {
	switch {
	case statusCode == http.StatusTooManyRequests:
		return ErrorKindRateLimited
	case statusCode >= http.StatusInternalServerError && statusCode <= 599:
		return ErrorKindTransient
	default:
		return ErrorKindRejected
	}
}

func httpStatusError(statusCode int, body string) *AdapterError {
	message := fmt.Sprintf("provider returned status %d", statusCode)
	if body != "" {
		message = fmt.Sprintf("%s: %s", message, body)
	}
	return &AdapterError{
		Kind:    kindFromHTTPStatus(statusCode),
		Code:    fmt.Sprintf("http_%d", statusCode),
		Message: message,
	}
}

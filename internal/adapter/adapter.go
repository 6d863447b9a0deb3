// Package adapter contains the per-channel delivery adapters. Each adapter
// wraps one external transport and normalizes its failures into ErrorKind
// values; raw provider errors never cross this boundary.
package adapter

import (
	"context"

	"github.com/learnloop/notification-engine/internal/domain"
)

// Capabilities declares what guarantees a channel adapter provides.
type Capabilities struct {
	// DeliveryConfirmation reports whether the provider emits asynchronous
	// delivered/read receipts. Without it, sent is the terminal status.
	DeliveryConfirmation bool
	// AtMostOnce reports whether a retried send cannot reach the recipient
	// twice. Adapters without this guarantee are never retried automatically.
	AtMostOnce bool
}

// Outcome is the normalized result of one successful send attempt.
type Outcome struct {
	// ProviderResponse is the opaque provider call metadata kept for audit.
	ProviderResponse domain.Metadata
}

// Adapter is the outbound delivery port for one channel.
type Adapter interface {
	Channel() domain.Channel
	Capabilities() Capabilities
	Send(ctx context.Context, notification domain.Notification) (*Outcome, error)
}

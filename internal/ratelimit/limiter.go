package ratelimit

import (
	"context"

	"github.com/learnloop/notification-engine/internal/domain"
)

// RateLimiter caps outbound sends per channel so a burst of queued
// notifications cannot overwhelm a provider.
type RateLimiter interface {
	Allow(ctx context.Context, channel domain.Channel) (bool, error)
	Wait(ctx context.Context, channel domain.Channel) error
}

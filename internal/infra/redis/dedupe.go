package redis

import (
	"context"
	"fmt"
	"strings"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const defaultDedupeTTL = 24 * time.Hour

// EventDedupeStore remembers provider event ids with SETNX so replayed
// broker deliveries and duplicate webhooks collapse into one apply. Ids
// expire after the TTL; providers do not replay events older than that.
type EventDedupeStore struct {
	client *goredis.Client
	ttl    time.Duration
}

func NewEventDedupeStore(client *goredis.Client, ttl time.Duration) (*EventDedupeStore, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		ttl = defaultDedupeTTL
	}
	return &EventDedupeStore{client: client, ttl: ttl}, nil
}

// FirstSeen returns true the first time eventID is observed.
func (s *EventDedupeStore) FirstSeen(ctx context.Context, eventID string) (bool, error) {
	if s == nil || s.client == nil {
		return false, fmt.Errorf("dedupe store is not initialized")
	}

	trimmed := strings.TrimSpace(eventID)
	if trimmed == "" {
		return false, fmt.Errorf("event id is required")
	}

	key := fmt.Sprintf("notify:event:%s", trimmed)
	first, err := s.client.SetNX(ctx, key, 1, s.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to record event id: %w", err)
	}
	return first, nil
}

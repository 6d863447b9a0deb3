package domain

import (
	"fmt"
	"strings"
)

// EventKind identifies an asynchronous provider event that advances a
// notification past sent.
type EventKind string

const (
	EventDelivered    EventKind = "delivered"
	EventRead         EventKind = "read"
	EventBounced      EventKind = "bounced"
	EventUnsubscribed EventKind = "unsubscribed"
)

func (k EventKind) String() string { return string(k) }

func (k EventKind) IsValid() bool {
	switch k {
	case EventDelivered, EventRead, EventBounced, EventUnsubscribed:
		return true
	}
	return false
}

func ParseEventKindFromString(s string) (EventKind, error) {
	k := EventKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.IsValid() {
		return "", fmt.Errorf("%w: invalid event kind %q", ErrValidation, s)
	}
	return k, nil
}

package domain

import "fmt"

// Status represents the lifecycle state of a notification.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusSent       Status = "sent"
	StatusDelivered  Status = "delivered"
	StatusRead       Status = "read"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

func (s Status) String() string { return string(s) }

func (s Status) IsValid() bool {
	_, ok := statusTransitions[s]
	return ok
}

func ParseStatusFromString(v string) (Status, error) {
	st := Status(v)
	if !st.IsValid() {
		return "", fmt.Errorf("%w: invalid status %q", ErrValidation, v)
	}
	return st, nil
}

// statusTransitions is the explicit transition table. A status maps to the
// set of statuses it may move to; anything else is rejected.
//
//	pending → processing | cancelled
//	processing → sent | failed | pending (retry) | cancelled
//	sent → delivered
//	delivered → read
var statusTransitions = map[Status]map[Status]struct{}{
	StatusPending: {
		StatusProcessing: {},
		StatusCancelled:  {},
	},
	StatusProcessing: {
		StatusSent:      {},
		StatusFailed:    {},
		StatusPending:   {},
		StatusCancelled: {},
	},
	StatusSent: {
		StatusDelivered: {},
	},
	StatusDelivered: {
		StatusRead: {},
	},
	StatusRead:      {},
	StatusFailed:    {},
	StatusCancelled: {},
}

// CanTransition reports whether the state machine permits from → to.
func CanTransition(from, to Status) bool {
	next, ok := statusTransitions[from]
	if !ok {
		return false
	}
	_, ok = next[to]
	return ok
}

// Transition validates from → to against the transition table.
func Transition(from, to Status) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// IsTerminal reports whether no further transition exists from s. Note that
// sent is terminal in practice for channels without delivery confirmation,
// but the table keeps sent → delivered open; terminal-ness per channel is an
// adapter capability, not a state machine property.
func (s Status) IsTerminal() bool {
	next, ok := statusTransitions[s]
	return ok && len(next) == 0
}

// IsCancellable reports whether a cancellation request can still take
// effect. A completed send cannot be retracted.
func (s Status) IsCancellable() bool {
	return s == StatusPending || s == StatusProcessing
}

// Package retry decides whether a failed delivery attempt is retried and
// when. The policy is pure: given the same inputs it always produces the
// same decision, so it can be tested in isolation from the dispatcher.
package retry

import (
	"time"

	"github.com/learnloop/notification-engine/internal/adapter"
	"github.com/learnloop/notification-engine/internal/domain"
)

const (
	DefaultBaseDelay   = 30 * time.Second
	DefaultMaxDelay    = time.Hour
	DefaultMaxAttempts = 5
)

// Decision is the outcome of evaluating one failed attempt. The zero value
// gives up.
type Decision struct {
	Retry     bool
	WaitUntil time.Time
}

// Policy computes exponential backoff scaled inversely by priority: urgent
// notifications retry sooner than low-priority ones.
type Policy struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	MaxAttempts int
}

func NewPolicy(baseDelay, maxDelay time.Duration, maxAttempts int) Policy {
	if baseDelay <= 0 {
		baseDelay = DefaultBaseDelay
	}
	if maxDelay <= 0 {
		maxDelay = DefaultMaxDelay
	}
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	return Policy{
		BaseDelay:   baseDelay,
		MaxDelay:    maxDelay,
		MaxAttempts: maxAttempts,
	}
}

// Decide evaluates a failed attempt. attemptCount is the number of attempts
// made so far, including the one that just failed. atMostOnce reports
// whether the adapter guarantees a retried send cannot duplicate; adapters
// without that guarantee never get automatic retries.
func (p Policy) Decide(now time.Time, attemptCount int, priority domain.Priority, kind adapter.ErrorKind, atMostOnce bool) Decision {
	if !atMostOnce {
		return Decision{}
	}
	if !kind.Retryable() {
		return Decision{}
	}
	if attemptCount >= p.MaxAttempts {
		return Decision{}
	}

	return Decision{
		Retry:     true,
		WaitUntil: now.Add(p.delay(attemptCount, priority)),
	}
}

func (p Policy) delay(attemptCount int, priority domain.Priority) time.Duration {
	if attemptCount < 1 {
		attemptCount = 1
	}

	delay := scaleByPriority(p.BaseDelay, priority)
	for i := 1; i < attemptCount; i++ {
		delay *= 2
		if delay >= p.MaxDelay {
			return p.MaxDelay
		}
	}

	if delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

func scaleByPriority(base time.Duration, priority domain.Priority) time.Duration {
	switch priority {
	case domain.PriorityUrgent:
		return base / 4
	case domain.PriorityHigh:
		return base / 2
	case domain.PriorityLow:
		return base * 2
	default:
		return base
	}
}

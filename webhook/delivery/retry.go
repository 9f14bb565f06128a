package delivery

import (
	"time"

	"github.com/marcelsud/webhook-dispatch/webhook"
)

/* RetryPolicy is a fixed backoff table indexed by attempt number
 * Attempts beyond the table reuse its last entry
 */
type RetryPolicy struct {
	backoff []time.Duration
}

// NewRetryPolicy creates a policy from a backoff table; an empty table uses DefaultBackoff
func NewRetryPolicy(backoff []time.Duration) RetryPolicy {
	if len(backoff) == 0 {
		backoff = DefaultBackoff
	}
	return RetryPolicy{backoff: append([]time.Duration(nil), backoff...)}
}

// ShouldRetry reports whether a failed attempt (1-based) gets a successor
func (p RetryPolicy) ShouldRetry(attempt, maxAttempts int) bool {
	return attempt < maxAttempts
}

// NextDelay returns the wait after a failed attempt
func (p RetryPolicy) NextDelay(attempt int) time.Duration {
	if len(p.backoff) == 0 {
		return 0
	}
	i := attempt - 1
	if i < 0 {
		i = 0
	}
	if i >= len(p.backoff) {
		i = len(p.backoff) - 1
	}
	return p.backoff[i]
}

// Next decides what follows a failed attempt that completed at completedAt
func (p RetryPolicy) Next(attempt, maxAttempts int, completedAt time.Time) webhook.Outcome {
	if !p.ShouldRetry(attempt, maxAttempts) {
		return webhook.ExhaustedOutcome()
	}
	delay := p.NextDelay(attempt)
	return webhook.RetryOutcome(attempt+1, delay, completedAt.Add(delay))
}

package webhook

import (
	"fmt"
	"time"
)

/* OutcomeKind is the result of one delivery attempt for its logical delivery
 * PENDING(n) -> Delivered | ScheduleRetry(n+1) | Exhausted
 */
type OutcomeKind int

const (
	Delivered OutcomeKind = iota + 1
	ScheduleRetry
	Exhausted
)

// String returns the string representation of the outcome kind
func (k OutcomeKind) String() string {
	switch k {
	case Delivered:
		return "delivered"
	case ScheduleRetry:
		return "retrying"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// IsFinal returns true if no further attempts follow
func (k OutcomeKind) IsFinal() bool {
	return k == Delivered || k == Exhausted
}

// Outcome is what the executor returns after an attempt
// The layer owning the queue acts on it
type Outcome struct {
	Kind        OutcomeKind
	NextAttempt int
	Delay       time.Duration
	At          time.Time
}

// DeliveredOutcome is the terminal success outcome
func DeliveredOutcome() Outcome {
	return Outcome{Kind: Delivered}
}

// ExhaustedOutcome is the terminal failure outcome
func ExhaustedOutcome() Outcome {
	return Outcome{Kind: Exhausted}
}

// RetryOutcome schedules attempt nextAttempt to run no earlier than at
func RetryOutcome(nextAttempt int, delay time.Duration, at time.Time) Outcome {
	return Outcome{
		Kind:        ScheduleRetry,
		NextAttempt: nextAttempt,
		Delay:       delay,
		At:          at,
	}
}

func (o Outcome) String() string {
	if o.Kind == ScheduleRetry {
		return fmt.Sprintf("%s(attempt=%d, at=%s)", o.Kind, o.NextAttempt, o.At.Format(time.RFC3339))
	}
	return o.Kind.String()
}

// OutcomeFromAttempt derives the outcome an already recorded attempt produced
func OutcomeFromAttempt(a DeliveryAttempt) Outcome {
	switch {
	case a.Success:
		return DeliveredOutcome()
	case a.NextRetryAt != nil:
		return RetryOutcome(a.Attempt+1, 0, *a.NextRetryAt)
	default:
		return ExhaustedOutcome()
	}
}

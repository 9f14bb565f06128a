package webhook

import (
	"encoding/json"
	"fmt"
	"time"
)

/* DeliveryAttempt is the audit record of one HTTP try
 * Immutable once written, exactly one per (DeliveryID, Attempt)
 */
type DeliveryAttempt struct {
	DeliveryID      string
	WebhookID       string
	Event           EventName
	Payload         []byte
	Attempt         int
	StatusCode      *int // nil on transport or validation failure
	ResponseBody    string
	ResponseHeaders map[string]string
	DurationMs      int64
	Success         bool
	Error           string
	NextRetryAt     *time.Time
	CreatedAt       time.Time
}

/* DeliveryUnit is the in-flight work item carried by the queue
 * Payload is the original event payload, delivery metadata is injected at send time
 */
type DeliveryUnit struct {
	DeliveryID  string          `json:"delivery_id"`
	WebhookID   string          `json:"webhook_id"`
	Event       EventName       `json:"event"`
	Payload     json.RawMessage `json:"payload"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
}

// Validate checks the unit carries everything an attempt needs
func (u DeliveryUnit) Validate() error {
	if u.DeliveryID == "" {
		return fmt.Errorf("delivery_id cannot be empty")
	}
	if u.WebhookID == "" {
		return fmt.Errorf("webhook_id cannot be empty")
	}
	if err := u.Event.Validate(); err != nil {
		return fmt.Errorf("invalid event: %w", err)
	}
	if u.Attempt < 1 {
		return fmt.Errorf("attempt must be at least 1 (got %d)", u.Attempt)
	}
	if u.MaxAttempts < u.Attempt {
		return fmt.Errorf("attempt %d exceeds max_attempts %d", u.Attempt, u.MaxAttempts)
	}
	return nil
}

// Next returns the follow-up unit for the same logical delivery
func (u DeliveryUnit) Next(attempt int) DeliveryUnit {
	next := u
	next.Attempt = attempt
	return next
}

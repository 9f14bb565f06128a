package webhook

import "time"

/* Webhook represents a registered outbound subscription
 * Uses value semantics as it represents data, not behavior
 * The delivery subsystem only reads it, never mutates it
 */
type Webhook struct {
	ID        string
	Name      string
	URL       string
	Events    EventSet
	Active    bool
	Timeout   time.Duration
	Secret    string `json:"-"`
	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Subscribes reports whether the webhook should receive the given event
func (w Webhook) Subscribes(event EventName) bool {
	return w.Active && w.Events.Subscribes(event)
}

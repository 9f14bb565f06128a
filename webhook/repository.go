package webhook

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a webhook or attempt does not exist
	ErrNotFound = errors.New("not found")

	// ErrDuplicateAttempt is returned when (delivery_id, attempt) was already recorded
	ErrDuplicateAttempt = errors.New("delivery attempt already recorded")
)

/* Small, focused interfaces following "The Go Way"
 * Interfaces abstract behavior, not things
 */

// Reader provides read operations for webhooks
type Reader interface {
	Get(ctx context.Context, id string) (Webhook, error)
	List(ctx context.Context) ([]Webhook, error)
	/* FindSubscribed returns active webhooks whose event set
	 * contains the event or the wildcard
	 */
	FindSubscribed(ctx context.Context, event EventName) ([]Webhook, error)
}

// Writer provides write operations for webhooks
type Writer interface {
	Create(ctx context.Context, wh Webhook) error
	Update(ctx context.Context, wh Webhook) error
	Delete(ctx context.Context, id string) error
}

// Repository combines webhook reads and writes
type Repository interface {
	Reader
	Writer
	Close(ctx context.Context) error
}

// AttemptWriter persists audit records
type AttemptWriter interface {
	/* Insert must enforce uniqueness on (delivery_id, attempt)
	 * and return ErrDuplicateAttempt on conflict
	 */
	Insert(ctx context.Context, attempt DeliveryAttempt) error
}

// AttemptReader provides read access to the audit trail
type AttemptReader interface {
	GetAttempt(ctx context.Context, deliveryID string, attempt int) (DeliveryAttempt, error)
	ListByWebhook(ctx context.Context, webhookID string, limit int) ([]DeliveryAttempt, error)
	ListByDelivery(ctx context.Context, deliveryID string) ([]DeliveryAttempt, error)
}

// AttemptStore combines audit reads and writes
type AttemptStore interface {
	AttemptWriter
	AttemptReader
}

// Queue is the scheduling primitive units are handed to
type Queue interface {
	/* Enqueue schedules the unit to run no earlier than notBefore
	 * A zero notBefore means "as soon as possible"
	 */
	Enqueue(ctx context.Context, unit DeliveryUnit, notBefore time.Time) error
}

// QueuedUnit is a unit read from the queue together with its message handle
type QueuedUnit struct {
	MessageID string
	Unit      DeliveryUnit
}

// StreamConsumer provides at-least-once consumption of queued units
type StreamConsumer interface {
	/* Consume reads up to count due units for this consumer
	 * Blocks for a bounded time when nothing is available
	 */
	Consume(ctx context.Context, consumer string, count int) ([]QueuedUnit, error)
	// Acknowledge removes a unit from the pending list once fully handled
	Acknowledge(ctx context.Context, messageID string) error
	/* Reclaim takes over units another consumer read but never acknowledged
	 * for at least minIdle, e.g. after a worker crash
	 */
	Reclaim(ctx context.Context, consumer string, minIdle time.Duration, count int) ([]QueuedUnit, error)
}

package delivery

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"time"

	"github.com/marcelsud/webhook-dispatch/webhook"
)

// Recorder persists one immutable audit row per attempt
type Recorder struct {
	store webhook.AttemptWriter
	now   func() time.Time
}

// NewRecorder creates a recorder on top of an attempt store
func NewRecorder(store webhook.AttemptWriter) *Recorder {
	return &Recorder{
		store: store,
		now:   time.Now,
	}
}

// Record writes the attempt; a duplicate (delivery_id, attempt) returns webhook.ErrDuplicateAttempt
func (r *Recorder) Record(ctx context.Context, attempt webhook.DeliveryAttempt) (webhook.DeliveryAttempt, error) {
	if attempt.DeliveryID == "" {
		return webhook.DeliveryAttempt{}, fmt.Errorf("recording attempt: delivery_id cannot be empty")
	}
	if attempt.Attempt < 1 {
		return webhook.DeliveryAttempt{}, fmt.Errorf("recording attempt: attempt must be at least 1 (got %d)", attempt.Attempt)
	}

	rec := attempt
	rec.Payload = append([]byte(nil), attempt.Payload...)
	rec.ResponseHeaders = maps.Clone(attempt.ResponseHeaders)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = r.now().UTC()
	}

	err := r.store.Insert(ctx, rec)
	if errors.Is(err, webhook.ErrDuplicateAttempt) {
		return webhook.DeliveryAttempt{}, err
	}
	if err != nil {
		return webhook.DeliveryAttempt{}, fmt.Errorf("recording attempt: %w", err)
	}
	return rec, nil
}

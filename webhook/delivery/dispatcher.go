package delivery

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/marcelsud/webhook-dispatch/webhook"
	"github.com/marcelsud/webhook-dispatch/webhook/payload"
	"github.com/rs/zerolog"
)

// DispatchResult reports what a dispatch enqueued
type DispatchResult struct {
	Event       webhook.EventName
	Matched     int
	DeliveryIDs []string
	// Failed maps webhook id to the enqueue error for units that could not be queued
	Failed map[string]string
}

/* Dispatcher fans an event out to every subscribed webhook
 * Each webhook gets its own unit with a fresh delivery_id; one failing
 * enqueue never affects the others and nothing here waits on delivery
 */
type Dispatcher struct {
	webhooks    webhook.Reader
	queue       webhook.Queue
	maxAttempts int
	logger      zerolog.Logger
	newID       func() string
}

// NewDispatcher creates a dispatcher; maxAttempts is stamped on every new unit
func NewDispatcher(webhooks webhook.Reader, queue webhook.Queue, cfg Config, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		webhooks:    webhooks,
		queue:       queue,
		maxAttempts: cfg.MaxAttempts,
		logger:      logger,
		newID:       uuid.NewString,
	}
}

// Dispatch enqueues one delivery per active webhook subscribed to event or the wildcard
func (d *Dispatcher) Dispatch(ctx context.Context, event webhook.EventName, data json.RawMessage) (DispatchResult, error) {
	if err := event.Validate(); err != nil {
		return DispatchResult{}, fmt.Errorf("validating event: %w", err)
	}
	if err := payload.ValidateObject(data); err != nil {
		return DispatchResult{}, fmt.Errorf("validating payload: %w", err)
	}

	subscribed, err := d.webhooks.FindSubscribed(ctx, event)
	if err != nil {
		return DispatchResult{}, fmt.Errorf("finding subscribed webhooks: %w", err)
	}

	result := DispatchResult{
		Event:       event,
		DeliveryIDs: make([]string, 0, len(subscribed)),
		Failed:      make(map[string]string),
	}
	for _, wh := range subscribed {
		if !wh.Subscribes(event) {
			continue
		}
		result.Matched++

		id, err := d.DispatchTo(ctx, wh, event, data)
		if err != nil {
			d.logger.Error().Err(err).
				Str("webhook_id", wh.ID).
				Str("event", string(event)).
				Msg("enqueueing delivery failed")
			result.Failed[wh.ID] = err.Error()
			continue
		}
		result.DeliveryIDs = append(result.DeliveryIDs, id)
	}

	d.logger.Info().
		Str("event", string(event)).
		Int("matched", result.Matched).
		Int("enqueued", len(result.DeliveryIDs)).
		Msg("event dispatched")

	return result, nil
}

// DispatchTo enqueues a fresh delivery (new delivery_id, attempt 1) to a single webhook
func (d *Dispatcher) DispatchTo(ctx context.Context, wh webhook.Webhook, event webhook.EventName, data json.RawMessage) (string, error) {
	if wh.ID == "" {
		return "", errors.New("webhook id cannot be empty")
	}

	unit := webhook.DeliveryUnit{
		DeliveryID:  d.newID(),
		WebhookID:   wh.ID,
		Event:       event,
		Payload:     append(json.RawMessage(nil), data...),
		Attempt:     1,
		MaxAttempts: d.maxAttempts,
	}
	if err := d.queue.Enqueue(ctx, unit, time.Time{}); err != nil {
		return "", fmt.Errorf("enqueueing delivery %s: %w", unit.DeliveryID, err)
	}
	return unit.DeliveryID, nil
}

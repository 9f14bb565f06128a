package delivery

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/marcelsud/webhook-dispatch/webhook"
	"github.com/marcelsud/webhook-dispatch/webhook/payload"
	"github.com/marcelsud/webhook-dispatch/webhook/signature"
	"github.com/marcelsud/webhook-dispatch/webhook/urlguard"
	"github.com/rs/zerolog"
)

// ErrInvalidUnit marks a unit that can never be executed; it is dropped, not retried
var ErrInvalidUnit = errors.New("invalid delivery unit")

// TargetValidator re-checks a webhook URL right before an attempt
type TargetValidator interface {
	ValidateAtDelivery(ctx context.Context, rawURL string) (urlguard.Target, error)
}

// AttemptObserver is notified after every recorded attempt
type AttemptObserver interface {
	ObserveAttempt(ctx context.Context, attempt webhook.DeliveryAttempt, outcome webhook.Outcome)
}

/* Executor performs exactly one delivery attempt per call and records it
 * It never re-enqueues; the Outcome tells the caller what to do next
 */
type Executor struct {
	webhooks  webhook.Reader
	attempts  webhook.AttemptReader
	recorder  *Recorder
	validator TargetValidator
	policy    RetryPolicy
	cfg       Config
	clients   ClientFactory
	observer  AttemptObserver
	logger    zerolog.Logger
	now       func() time.Time
}

// ExecutorOption configures an Executor
type ExecutorOption func(*Executor)

// WithClientFactory replaces PinnedClient
func WithClientFactory(f ClientFactory) ExecutorOption {
	return func(e *Executor) {
		e.clients = f
	}
}

// WithObserver registers an attempt observer
func WithObserver(o AttemptObserver) ExecutorOption {
	return func(e *Executor) {
		e.observer = o
	}
}

// WithLogger sets the executor logger
func WithLogger(l zerolog.Logger) ExecutorOption {
	return func(e *Executor) {
		e.logger = l
	}
}

// WithClock replaces time.Now
func WithClock(now func() time.Time) ExecutorOption {
	return func(e *Executor) {
		e.now = now
		if e.recorder != nil {
			e.recorder.now = now
		}
	}
}

// NewExecutor wires an executor with its collaborators
func NewExecutor(
	webhooks webhook.Reader,
	attempts webhook.AttemptStore,
	validator TargetValidator,
	cfg Config,
	opts ...ExecutorOption,
) *Executor {
	e := &Executor{
		webhooks:  webhooks,
		attempts:  attempts,
		recorder:  NewRecorder(attempts),
		validator: validator,
		policy:    NewRetryPolicy(cfg.Backoff),
		cfg:       cfg,
		clients:   PinnedClient,
		logger:    zerolog.Nop(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// result is what one HTTP try produced before it is turned into a record
type result struct {
	sent       []byte // outbound body, nil when the attempt failed before it was built
	statusCode *int
	body       string
	headers    map[string]string
	success    bool
	err        string
	started    time.Time
	finished   time.Time
	noRetry    bool
}

// Execute runs a single attempt for the unit
// The only returned errors are invalid units and persistence failures
func (e *Executor) Execute(ctx context.Context, unit webhook.DeliveryUnit) (webhook.Outcome, error) {
	if err := unit.Validate(); err != nil {
		return webhook.Outcome{}, fmt.Errorf("%w: %w", ErrInvalidUnit, err)
	}

	log := e.logger.With().
		Str("delivery_id", unit.DeliveryID).
		Str("webhook_id", unit.WebhookID).
		Str("event", string(unit.Event)).
		Int("attempt", unit.Attempt).
		Logger()

	// A redelivered unit whose attempt is already on record does not call out again
	existing, err := e.attempts.GetAttempt(ctx, unit.DeliveryID, unit.Attempt)
	if err == nil {
		log.Info().Msg("attempt already recorded, skipping")
		return webhook.OutcomeFromAttempt(existing), nil
	}
	if !errors.Is(err, webhook.ErrNotFound) {
		return webhook.Outcome{}, fmt.Errorf("checking recorded attempt: %w", err)
	}

	res, err := e.run(ctx, unit)
	if err != nil {
		return webhook.Outcome{}, err
	}

	outcome := webhook.DeliveredOutcome()
	switch {
	case res.success:
	case res.noRetry:
		outcome = webhook.ExhaustedOutcome()
	default:
		outcome = e.policy.Next(unit.Attempt, unit.MaxAttempts, res.finished)
	}

	snapshot := []byte(unit.Payload)
	if res.sent != nil {
		snapshot = res.sent
	}

	attempt := webhook.DeliveryAttempt{
		DeliveryID:      unit.DeliveryID,
		WebhookID:       unit.WebhookID,
		Event:           unit.Event,
		Payload:         snapshot,
		Attempt:         unit.Attempt,
		StatusCode:      res.statusCode,
		ResponseBody:    res.body,
		ResponseHeaders: res.headers,
		DurationMs:      res.finished.Sub(res.started).Milliseconds(),
		Success:         res.success,
		Error:           res.err,
		CreatedAt:       res.finished.UTC(),
	}
	if outcome.Kind == webhook.ScheduleRetry {
		at := outcome.At.UTC()
		attempt.NextRetryAt = &at
	}

	recorded, err := e.recorder.Record(ctx, attempt)
	if errors.Is(err, webhook.ErrDuplicateAttempt) {
		// Another execution of the same unit won the write; its row is authoritative
		stored, getErr := e.attempts.GetAttempt(ctx, unit.DeliveryID, unit.Attempt)
		if getErr != nil {
			return webhook.Outcome{}, fmt.Errorf("loading duplicate attempt: %w", getErr)
		}
		log.Warn().Msg("concurrent execution recorded this attempt first")
		return webhook.OutcomeFromAttempt(stored), nil
	}
	if err != nil {
		return webhook.Outcome{}, err
	}

	if e.observer != nil {
		e.observer.ObserveAttempt(ctx, recorded, outcome)
	}

	ev := log.Info()
	if !res.success {
		ev = log.Warn().Str("error", res.err)
	}
	if res.statusCode != nil {
		ev = ev.Int("status", *res.statusCode)
	}
	ev.Int64("duration_ms", recorded.DurationMs).
		Str("outcome", outcome.Kind.String()).
		Msg("delivery attempt recorded")

	return outcome, nil
}

func (e *Executor) run(ctx context.Context, unit webhook.DeliveryUnit) (result, error) {
	started := e.now()

	wh, err := e.webhooks.Get(ctx, unit.WebhookID)
	if errors.Is(err, webhook.ErrNotFound) {
		return e.fail(started, "webhook not found", true), nil
	}
	if err != nil {
		return result{}, fmt.Errorf("loading webhook: %w", err)
	}
	if !wh.Active {
		return e.fail(started, "webhook inactive", true), nil
	}

	return e.send(ctx, wh, unit, started), nil
}

func (e *Executor) send(ctx context.Context, wh webhook.Webhook, unit webhook.DeliveryUnit, started time.Time) result {
	target, err := e.validator.ValidateAtDelivery(ctx, wh.URL)
	if err != nil {
		return e.fail(started, err.Error(), false)
	}

	body, err := payload.Build(unit.Payload, payload.Metadata{
		DeliveryID:  unit.DeliveryID,
		Attempt:     unit.Attempt,
		MaxAttempts: unit.MaxAttempts,
	})
	if err != nil {
		return e.fail(started, fmt.Sprintf("building body: %v", err), false)
	}

	secret, err := signature.ParseSecret(wh.Secret)
	if err != nil {
		return e.failWith(body, started, fmt.Sprintf("loading signing secret: %v", err))
	}
	sig, err := signature.Sign(secret, body)
	if err != nil {
		return e.failWith(body, started, fmt.Sprintf("signing body: %v", err))
	}

	timeout := e.cfg.ClampTimeout(wh.Timeout)
	reqCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, target.URL.String(), bytes.NewReader(body))
	if err != nil {
		return e.failWith(body, started, fmt.Sprintf("building request: %v", err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set(HeaderEvent, string(unit.Event))
	req.Header.Set(HeaderSignature, sig)
	req.Header.Set(HeaderDelivery, unit.DeliveryID)
	req.Header.Set(HeaderAttempt, strconv.Itoa(unit.Attempt))

	client := e.clients(target, timeout)
	defer client.CloseIdleConnections()

	resp, err := client.Do(req)
	if err != nil {
		return e.failWith(body, started, fmt.Sprintf("sending request: %v", err))
	}
	defer resp.Body.Close()

	limit := int64(e.cfg.MaxResponseBytes)
	var raw []byte
	if limit > 0 {
		raw, err = io.ReadAll(io.LimitReader(resp.Body, limit+1))
	} else {
		raw, err = io.ReadAll(resp.Body)
	}

	status := resp.StatusCode
	res := result{
		sent:       body,
		statusCode: &status,
		body:       payload.Truncate(raw, e.cfg.MaxResponseBytes),
		headers:    flattenHeaders(resp.Header),
		success:    status >= 200 && status < 300,
		started:    started,
		finished:   e.now(),
	}
	var problems []string
	if !res.success {
		problems = append(problems, fmt.Sprintf("unexpected status %d", status))
	}
	if err != nil {
		problems = append(problems, fmt.Sprintf("reading response: %v", err))
	}
	res.err = strings.Join(problems, "; ")
	return res
}

func (e *Executor) fail(started time.Time, msg string, noRetry bool) result {
	return result{
		success:  false,
		err:      msg,
		started:  started,
		finished: e.now(),
		noRetry:  noRetry,
	}
}

// failWith is fail for errors raised after the body was built
func (e *Executor) failWith(sent []byte, started time.Time, msg string) result {
	res := e.fail(started, msg, false)
	res.sent = sent
	return res
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, v := range h {
		if len(v) > 0 {
			out[payload.CleanText(k)] = payload.CleanText(v[0])
		}
	}
	return out
}

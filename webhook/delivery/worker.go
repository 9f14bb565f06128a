package delivery

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marcelsud/webhook-dispatch/webhook"
	"github.com/rs/zerolog"
)

// UnitExecutor runs one attempt; *Executor satisfies it
type UnitExecutor interface {
	Execute(ctx context.Context, unit webhook.DeliveryUnit) (webhook.Outcome, error)
}

// Heartbeater records worker liveness
type Heartbeater interface {
	SetWorkerHeartbeat(ctx context.Context, workerID, queue, status string) error
}

// WorkerConfig tunes the consume loop
type WorkerConfig struct {
	ID                string
	Queue             string
	Concurrency       int
	BatchSize         int
	ReclaimInterval   time.Duration
	ReclaimMinIdle    time.Duration
	HeartbeatInterval time.Duration
	ErrorBackoff      time.Duration
}

func (c WorkerConfig) withDefaults() WorkerConfig {
	if c.ID == "" {
		c.ID = "worker"
	}
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.BatchSize < 1 {
		c.BatchSize = 1
	}
	if c.ReclaimInterval <= 0 {
		c.ReclaimInterval = 30 * time.Second
	}
	if c.ReclaimMinIdle <= 0 {
		c.ReclaimMinIdle = 2 * time.Minute
	}
	if c.HeartbeatInterval <= 0 {
		c.HeartbeatInterval = 30 * time.Second
	}
	if c.ErrorBackoff <= 0 {
		c.ErrorBackoff = time.Second
	}
	return c
}

/* Worker owns the queue side of delivery: it pulls units, runs the
 * executor and turns each Outcome into queue operations. A unit is
 * acknowledged only after its attempt is recorded and any successor is
 * enqueued, so a crash in between leads to redelivery, not loss
 */
type Worker struct {
	source     webhook.StreamConsumer
	queue      webhook.Queue
	executor   UnitExecutor
	heartbeats Heartbeater
	cfg        WorkerConfig
	logger     zerolog.Logger
}

// NewWorker creates a worker; heartbeats may be nil
func NewWorker(
	source webhook.StreamConsumer,
	queue webhook.Queue,
	executor UnitExecutor,
	heartbeats Heartbeater,
	cfg WorkerConfig,
	logger zerolog.Logger,
) *Worker {
	cfg = cfg.withDefaults()
	return &Worker{
		source:     source,
		queue:      queue,
		executor:   executor,
		heartbeats: heartbeats,
		cfg:        cfg,
		logger:     logger.With().Str("worker_id", cfg.ID).Str("queue", cfg.Queue).Logger(),
	}
}

// Run consumes until ctx is cancelled
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info().Int("concurrency", w.cfg.Concurrency).Msg("worker starting")

	var wg sync.WaitGroup
	for i := 0; i < w.cfg.Concurrency; i++ {
		consumer := fmt.Sprintf("%s-%d", w.cfg.ID, i)
		wg.Add(1)
		go func() {
			defer wg.Done()
			w.consumeLoop(ctx, consumer)
		}()
	}

	wg.Add(2)
	go func() {
		defer wg.Done()
		w.reclaimLoop(ctx, fmt.Sprintf("%s-reclaim", w.cfg.ID))
	}()
	go func() {
		defer wg.Done()
		w.heartbeatLoop(ctx)
	}()

	wg.Wait()
	w.logger.Info().Msg("worker stopped")
}

func (w *Worker) consumeLoop(ctx context.Context, consumer string) {
	for ctx.Err() == nil {
		units, err := w.source.Consume(ctx, consumer, w.cfg.BatchSize)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			w.logger.Error().Err(err).Str("consumer", consumer).Msg("consuming deliveries failed")
			sleep(ctx, w.cfg.ErrorBackoff)
			continue
		}
		for _, qu := range units {
			w.Handle(ctx, qu)
		}
	}
}

func (w *Worker) reclaimLoop(ctx context.Context, consumer string) {
	ticker := time.NewTicker(w.cfg.ReclaimInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			units, err := w.source.Reclaim(ctx, consumer, w.cfg.ReclaimMinIdle, w.cfg.BatchSize*10)
			if err != nil {
				w.logger.Error().Err(err).Msg("reclaiming stale deliveries failed")
				continue
			}
			if len(units) > 0 {
				w.logger.Warn().Int("count", len(units)).Msg("reclaimed unacknowledged deliveries")
			}
			for _, qu := range units {
				w.Handle(ctx, qu)
			}
		}
	}
}

func (w *Worker) heartbeatLoop(ctx context.Context) {
	if w.heartbeats == nil {
		return
	}
	beat := func(status string) {
		if err := w.heartbeats.SetWorkerHeartbeat(ctx, w.cfg.ID, w.cfg.Queue, status); err != nil && ctx.Err() == nil {
			w.logger.Warn().Err(err).Msg("sending heartbeat failed")
		}
	}

	beat("running")
	ticker := time.NewTicker(w.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			beat("running")
		}
	}
}

// Handle executes one queued unit and settles it on the queue
func (w *Worker) Handle(ctx context.Context, qu webhook.QueuedUnit) {
	log := w.logger.With().
		Str("message_id", qu.MessageID).
		Str("delivery_id", qu.Unit.DeliveryID).
		Int("attempt", qu.Unit.Attempt).
		Logger()

	outcome, err := w.executor.Execute(ctx, qu.Unit)
	if errors.Is(err, ErrInvalidUnit) {
		log.Error().Err(err).Msg("dropping invalid delivery unit")
		w.ack(ctx, log, qu.MessageID)
		return
	}
	if err != nil {
		// Left unacknowledged: the queue redelivers it after ReclaimMinIdle
		log.Error().Err(err).Msg("delivery attempt could not be recorded")
		return
	}

	if outcome.Kind == webhook.ScheduleRetry {
		next := qu.Unit.Next(outcome.NextAttempt)
		if err := w.queue.Enqueue(ctx, next, outcome.At); err != nil {
			log.Error().Err(err).Msg("scheduling retry failed")
			return
		}
		log.Info().
			Int("next_attempt", outcome.NextAttempt).
			Time("not_before", outcome.At).
			Msg("retry scheduled")
	}

	w.ack(ctx, log, qu.MessageID)
}

func (w *Worker) ack(ctx context.Context, log zerolog.Logger, messageID string) {
	if err := w.source.Acknowledge(ctx, messageID); err != nil {
		log.Error().Err(err).Msg("acknowledging delivery failed")
	}
}

func sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

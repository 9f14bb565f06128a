package metrics

import (
	"context"
	"fmt"
	"time"

	"github.com/marcelsud/webhook-dispatch/webhook/redis"
)

// QueueStats is the read side of a Redis delivery queue
type QueueStats interface {
	Name() string
	StreamLength(ctx context.Context) (int64, error)
	ScheduledLength(ctx context.Context) (int64, error)
	PendingCount(ctx context.Context) (int64, error)
	AllActiveWorkers(ctx context.Context) (map[string][]redis.WorkerHeartbeat, error)
}

// RedisCollector implements the Collector interface for Redis-backed queues
type RedisCollector struct {
	queue QueueStats
}

// NewRedisCollector creates a new Redis metrics collector
func NewRedisCollector(queue QueueStats) *RedisCollector {
	return &RedisCollector{
		queue: queue,
	}
}

// Collect gathers all metrics from Redis
func (c *RedisCollector) Collect(ctx context.Context) (Metrics, error) {
	queues, err := c.GetQueueLengths(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting queue lengths: %w", err)
	}

	workers, err := c.GetActiveWorkers(ctx)
	if err != nil {
		return Metrics{}, fmt.Errorf("getting active workers: %w", err)
	}

	return Metrics{
		Queues:    queues,
		Workers:   workers,
		Timestamp: time.Now(),
	}, nil
}

// GetQueueLengths returns ready, scheduled and pending counts of the queue
func (c *RedisCollector) GetQueueLengths(ctx context.Context) (map[string]QueueMetrics, error) {
	ready, err := c.queue.StreamLength(ctx)
	if err != nil {
		return nil, err
	}
	scheduled, err := c.queue.ScheduledLength(ctx)
	if err != nil {
		return nil, err
	}
	pending, err := c.queue.PendingCount(ctx)
	if err != nil {
		return nil, err
	}

	return map[string]QueueMetrics{
		c.queue.Name(): {Ready: ready, Scheduled: scheduled, Pending: pending},
	}, nil
}

// GetActiveWorkers returns information about active workers
func (c *RedisCollector) GetActiveWorkers(ctx context.Context) (map[string][]WorkerInfo, error) {
	byQueue, err := c.queue.AllActiveWorkers(ctx)
	if err != nil {
		return nil, err
	}

	workers := make(map[string][]WorkerInfo, len(byQueue))
	for queue, beats := range byQueue {
		for _, hb := range beats {
			workers[queue] = append(workers[queue], WorkerInfo{
				WorkerID:      hb.WorkerID,
				Queue:         hb.Queue,
				Status:        hb.Status,
				LastHeartbeat: hb.LastHeartbeat,
			})
		}
	}
	return workers, nil
}

package metrics

import (
	"context"
	"time"
)

// Metrics represents the current state of the delivery pipeline.
type Metrics struct {
	// Queues maps queue name to its backlog
	Queues map[string]QueueMetrics `json:"queues"`

	// Workers maps queue name to list of active workers
	Workers map[string][]WorkerInfo `json:"workers"`

	// Timestamp when metrics were collected
	Timestamp time.Time `json:"timestamp"`
}

// QueueMetrics is the backlog of one delivery queue.
type QueueMetrics struct {
	// Ready is the number of due units on the stream, read or not
	Ready int64 `json:"ready"`

	// Scheduled is the number of retries waiting for their not-before time
	Scheduled int64 `json:"scheduled"`

	// Pending is the number of units read by a worker and not yet acknowledged
	Pending int64 `json:"pending"`
}

// WorkerInfo represents information about an active worker.
type WorkerInfo struct {
	WorkerID      string    `json:"worker_id"`
	Queue         string    `json:"queue"`
	Status        string    `json:"status"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// Collector defines the interface for collecting metrics from the delivery pipeline.
type Collector interface {
	// Collect gathers current metrics from the system
	Collect(ctx context.Context) (Metrics, error)

	// GetQueueLengths returns the backlog per queue
	GetQueueLengths(ctx context.Context) (map[string]QueueMetrics, error)

	// GetActiveWorkers returns information about active workers per queue
	GetActiveWorkers(ctx context.Context) (map[string][]WorkerInfo, error)
}

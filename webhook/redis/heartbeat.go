package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// heartbeatTTL is how long a worker counts as alive after its last beat
const heartbeatTTL = 60 * time.Second

// WorkerHeartbeat represents the heartbeat data for a worker
type WorkerHeartbeat struct {
	WorkerID      string    `json:"worker_id"`
	Queue         string    `json:"queue"`
	Status        string    `json:"status"`
	LastHeartbeat time.Time `json:"last_heartbeat"`
}

// SetWorkerHeartbeat stores or updates a worker's heartbeat in Redis
// A worker that stops beating disappears once the key expires
func (q *Queue) SetWorkerHeartbeat(ctx context.Context, workerID, queue, status string) error {
	key := heartbeatKey(queue, workerID)

	heartbeat := WorkerHeartbeat{
		WorkerID:      workerID,
		Queue:         queue,
		Status:        status,
		LastHeartbeat: time.Now().UTC(),
	}

	data, err := json.Marshal(heartbeat)
	if err != nil {
		return fmt.Errorf("marshaling heartbeat: %w", err)
	}

	if err := q.client.Set(ctx, key, data, heartbeatTTL).Err(); err != nil {
		return fmt.Errorf("setting heartbeat: %w", err)
	}
	return nil
}

// ActiveWorkers retrieves the live workers of one queue
func (q *Queue) ActiveWorkers(ctx context.Context, queue string) ([]WorkerHeartbeat, error) {
	return q.scanHeartbeats(ctx, fmt.Sprintf("worker:heartbeat:%s:*", queue))
}

// AllActiveWorkers retrieves live workers grouped by queue
func (q *Queue) AllActiveWorkers(ctx context.Context) (map[string][]WorkerHeartbeat, error) {
	workers, err := q.scanHeartbeats(ctx, "worker:heartbeat:*")
	if err != nil {
		return nil, err
	}

	byQueue := make(map[string][]WorkerHeartbeat)
	for _, hb := range workers {
		byQueue[hb.Queue] = append(byQueue[hb.Queue], hb)
	}
	return byQueue, nil
}

func (q *Queue) scanHeartbeats(ctx context.Context, pattern string) ([]WorkerHeartbeat, error) {
	var workers []WorkerHeartbeat

	var cursor uint64
	for {
		keys, nextCursor, err := q.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			return nil, fmt.Errorf("scanning worker keys: %w", err)
		}

		for _, key := range keys {
			data, err := q.client.Get(ctx, key).Result()
			if err == redis.Nil {
				// Key expired between scan and get
				continue
			}
			if err != nil {
				return nil, fmt.Errorf("getting worker heartbeat: %w", err)
			}

			var heartbeat WorkerHeartbeat
			if err := json.Unmarshal([]byte(data), &heartbeat); err != nil {
				continue
			}
			workers = append(workers, heartbeat)
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return workers, nil
}

func heartbeatKey(queue, workerID string) string {
	return fmt.Sprintf("worker:heartbeat:%s:%s", queue, workerID)
}

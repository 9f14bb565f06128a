package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/marcelsud/webhook-dispatch/webhook"
	"github.com/marcelsud/webhook-dispatch/webhook/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeQueue struct {
	ready, scheduled, pending int64
	workers                   map[string][]redis.WorkerHeartbeat
	err                       error
}

func (f *fakeQueue) Name() string { return "webhooks" }

func (f *fakeQueue) StreamLength(context.Context) (int64, error) { return f.ready, f.err }

func (f *fakeQueue) ScheduledLength(context.Context) (int64, error) { return f.scheduled, f.err }

func (f *fakeQueue) PendingCount(context.Context) (int64, error) { return f.pending, f.err }

func (f *fakeQueue) AllActiveWorkers(context.Context) (map[string][]redis.WorkerHeartbeat, error) {
	return f.workers, f.err
}

func TestRedisCollector_Collect(t *testing.T) {
	beat := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("reports backlog and workers", func(t *testing.T) {
		q := &fakeQueue{
			ready:     4,
			scheduled: 7,
			pending:   1,
			workers: map[string][]redis.WorkerHeartbeat{
				"webhooks": {
					{WorkerID: "w-1", Queue: "webhooks", Status: "running", LastHeartbeat: beat},
					{WorkerID: "w-2", Queue: "webhooks", Status: "running", LastHeartbeat: beat},
				},
			},
		}

		m, err := NewRedisCollector(q).Collect(context.Background())
		require.NoError(t, err)

		assert.Equal(t, QueueMetrics{Ready: 4, Scheduled: 7, Pending: 1}, m.Queues["webhooks"])
		require.Len(t, m.Workers["webhooks"], 2)
		assert.Equal(t, "w-1", m.Workers["webhooks"][0].WorkerID)
		assert.Equal(t, beat, m.Workers["webhooks"][0].LastHeartbeat)
		assert.False(t, m.Timestamp.IsZero())
	})

	t.Run("propagates redis errors", func(t *testing.T) {
		q := &fakeQueue{err: errors.New("connection refused")}

		_, err := NewRedisCollector(q).Collect(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "getting queue lengths")
	})
}

func TestOTelExporter(t *testing.T) {
	q := &fakeQueue{ready: 3, scheduled: 2, workers: map[string][]redis.WorkerHeartbeat{
		"webhooks": {{WorkerID: "w-1", Queue: "webhooks"}},
	}}

	exporter, err := NewOTelExporter(NewRedisCollector(q))
	require.NoError(t, err)
	defer exporter.Shutdown(context.Background())

	status := 503
	exporter.ObserveAttempt(context.Background(), webhook.DeliveryAttempt{
		Event:      "post.published",
		StatusCode: &status,
		DurationMs: 120,
	}, webhook.RetryOutcome(2, time.Minute, time.Now()))

	rec := httptest.NewRecorder()
	exporter.ServeHTTP().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	out := string(body)

	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, out, "webhook_delivery_attempts")
	assert.Contains(t, out, `status_class="5xx"`)
	assert.Contains(t, out, `outcome="retrying"`)
	assert.Contains(t, out, "webhook_delivery_duration")
	assert.Contains(t, out, "webhook_queue_length")
	assert.Contains(t, out, `queue_state="scheduled"`)
	assert.Contains(t, out, "webhook_workers_active")
	assert.Contains(t, out, "go_goroutines")
}

func TestOTelExporter_WithoutCollector(t *testing.T) {
	exporter, err := NewOTelExporter(nil)
	require.NoError(t, err)
	defer exporter.Shutdown(context.Background())

	exporter.ObserveAttempt(context.Background(), webhook.DeliveryAttempt{Event: "post.published", Success: true}, webhook.DeliveredOutcome())

	rec := httptest.NewRecorder()
	exporter.ServeHTTP().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Contains(t, rec.Body.String(), `status_class="none"`)
	assert.NotContains(t, rec.Body.String(), "webhook_queue_length")
}

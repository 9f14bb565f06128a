//go:build integration

package redis_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueue_EnqueueConsume_Integration(t *testing.T) {
	ctx := context.Background()
	redisContainer, cleanup := SetupRedisContainer(t, ctx)
	defer cleanup()

	t.Run("due unit is consumed and acknowledged", func(t *testing.T) {
		q := CreateTestQueue(t, redisContainer.Addr, "consume")
		defer q.Close(ctx)

		unit := NewUnit(t, 1)
		require.NoError(t, q.Enqueue(ctx, unit, time.Time{}))

		length, err := q.StreamLength(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), length)

		units, err := q.Consume(ctx, "c-1", 10)
		require.NoError(t, err)
		require.Len(t, units, 1)
		assert.Equal(t, unit.DeliveryID, units[0].Unit.DeliveryID)
		assert.JSONEq(t, string(unit.Payload), string(units[0].Unit.Payload))
		assert.Equal(t, 3, units[0].Unit.MaxAttempts)

		pending, err := q.PendingCount(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), pending)

		require.NoError(t, q.Acknowledge(ctx, units[0].MessageID))

		pending, err = q.PendingCount(ctx)
		require.NoError(t, err)
		assert.Zero(t, pending)

		length, err = q.StreamLength(ctx)
		require.NoError(t, err)
		assert.Zero(t, length)
	})

	t.Run("consume returns empty when nothing is due", func(t *testing.T) {
		q := CreateTestQueue(t, redisContainer.Addr, "empty")
		defer q.Close(ctx)

		units, err := q.Consume(ctx, "c-1", 10)
		require.NoError(t, err)
		assert.Empty(t, units)
	})

	t.Run("each unit goes to one consumer", func(t *testing.T) {
		q := CreateTestQueue(t, redisContainer.Addr, "fanout")
		defer q.Close(ctx)

		for i := 0; i < 4; i++ {
			require.NoError(t, q.Enqueue(ctx, NewUnit(t, i), time.Time{}))
		}

		first, err := q.Consume(ctx, "c-1", 2)
		require.NoError(t, err)
		second, err := q.Consume(ctx, "c-2", 10)
		require.NoError(t, err)

		assert.Len(t, first, 2)
		assert.Len(t, second, 2)
		seen := map[string]bool{}
		for _, qu := range append(first, second...) {
			assert.False(t, seen[qu.Unit.DeliveryID])
			seen[qu.Unit.DeliveryID] = true
		}
	})

	t.Run("undecodable message yields an empty unit", func(t *testing.T) {
		q := CreateTestQueue(t, redisContainer.Addr, "garbage")
		defer q.Close(ctx)

		client := createRedisClient(redisContainer.Addr)
		defer client.Close()
		require.NoError(t, client.XAdd(ctx, &goredis.XAddArgs{
			Stream: "deliveries:garbage",
			Values: map[string]interface{}{"unit": "not json"},
		}).Err())

		units, err := q.Consume(ctx, "c-1", 10)
		require.NoError(t, err)
		require.Len(t, units, 1)
		assert.Error(t, units[0].Unit.Validate())
	})
}

func TestQueue_Schedule_Integration(t *testing.T) {
	ctx := context.Background()
	redisContainer, cleanup := SetupRedisContainer(t, ctx)
	defer cleanup()

	t.Run("future unit waits until promoted", func(t *testing.T) {
		q := CreateTestQueue(t, redisContainer.Addr, "delayed")
		defer q.Close(ctx)

		unit := NewUnit(t, 1).Next(2)
		notBefore := time.Now().Add(time.Minute)
		require.NoError(t, q.Enqueue(ctx, unit, notBefore))

		scheduled, err := q.ScheduledLength(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), scheduled)

		units, err := q.Consume(ctx, "c-1", 10)
		require.NoError(t, err)
		assert.Empty(t, units)

		n, err := q.Promote(ctx, time.Now())
		require.NoError(t, err)
		assert.Zero(t, n, "not due yet")

		n, err = q.Promote(ctx, notBefore.Add(time.Second))
		require.NoError(t, err)
		assert.Equal(t, 1, n)

		scheduled, err = q.ScheduledLength(ctx)
		require.NoError(t, err)
		assert.Zero(t, scheduled)

		units, err = q.Consume(ctx, "c-1", 10)
		require.NoError(t, err)
		require.Len(t, units, 1)
		assert.Equal(t, 2, units[0].Unit.Attempt)
	})

	t.Run("re-enqueued retry is stored once", func(t *testing.T) {
		q := CreateTestQueue(t, redisContainer.Addr, "dedupe")
		defer q.Close(ctx)

		unit := NewUnit(t, 1).Next(2)
		at := time.Now().Add(time.Hour)
		require.NoError(t, q.Enqueue(ctx, unit, at))
		require.NoError(t, q.Enqueue(ctx, unit, at))

		scheduled, err := q.ScheduledLength(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), scheduled)
	})

	t.Run("past not-before goes straight to the stream", func(t *testing.T) {
		q := CreateTestQueue(t, redisContainer.Addr, "past")
		defer q.Close(ctx)

		require.NoError(t, q.Enqueue(ctx, NewUnit(t, 1), time.Now().Add(-time.Second)))

		length, err := q.StreamLength(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), length)
	})

	t.Run("promoter loop moves due units", func(t *testing.T) {
		q := CreateTestQueue(t, redisContainer.Addr, "loop")
		defer q.Close(ctx)

		require.NoError(t, q.Enqueue(ctx, NewUnit(t, 1), time.Now().Add(300*time.Millisecond)))

		loopCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		go q.RunPromoter(loopCtx, 100*time.Millisecond, zerologNop())

		assert.Eventually(t, func() bool {
			n, err := q.StreamLength(ctx)
			return err == nil && n == 1
		}, 5*time.Second, 100*time.Millisecond)
	})
}

func TestQueue_Reclaim_Integration(t *testing.T) {
	ctx := context.Background()
	redisContainer, cleanup := SetupRedisContainer(t, ctx)
	defer cleanup()

	q := CreateTestQueue(t, redisContainer.Addr, "reclaim")
	defer q.Close(ctx)

	unit := NewUnit(t, 1)
	require.NoError(t, q.Enqueue(ctx, unit, time.Time{}))

	// c-1 reads the unit and "crashes" without acknowledging
	units, err := q.Consume(ctx, "c-1", 10)
	require.NoError(t, err)
	require.Len(t, units, 1)

	claimed, err := q.Reclaim(ctx, "c-2", time.Hour, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed, "not idle long enough")

	time.Sleep(50 * time.Millisecond)
	claimed, err = q.Reclaim(ctx, "c-2", 10*time.Millisecond, 10)
	require.NoError(t, err)
	require.Len(t, claimed, 1)
	assert.Equal(t, units[0].MessageID, claimed[0].MessageID)

	raw, err := json.Marshal(claimed[0].Unit)
	require.NoError(t, err)
	assert.Contains(t, string(raw), unit.DeliveryID)

	require.NoError(t, q.Acknowledge(ctx, claimed[0].MessageID))
	pending, err := q.PendingCount(ctx)
	require.NoError(t, err)
	assert.Zero(t, pending)
}

func TestQueue_Heartbeat_Integration(t *testing.T) {
	ctx := context.Background()
	redisContainer, cleanup := SetupRedisContainer(t, ctx)
	defer cleanup()

	q := CreateTestQueue(t, redisContainer.Addr, "webhooks")
	defer q.Close(ctx)

	require.NoError(t, q.SetWorkerHeartbeat(ctx, "worker-a", "webhooks", "running"))
	require.NoError(t, q.SetWorkerHeartbeat(ctx, "worker-b", "webhooks", "running"))
	require.NoError(t, q.SetWorkerHeartbeat(ctx, "worker-c", "other", "running"))

	workers, err := q.ActiveWorkers(ctx, "webhooks")
	require.NoError(t, err)
	assert.Len(t, workers, 2)

	all, err := q.AllActiveWorkers(ctx)
	require.NoError(t, err)
	assert.Len(t, all["webhooks"], 2)
	assert.Len(t, all["other"], 1)

	ttl := GetKeyTTL(t, redisContainer.Addr, "worker:heartbeat:webhooks:worker-a")
	assert.Greater(t, ttl, int64(0))
	assert.LessOrEqual(t, ttl, int64(60))
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/marcelsud/webhook-dispatch/webhook"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

/* Redis implementation of webhook.Queue and webhook.StreamConsumer
 * Due units live in a stream read through a consumer group
 * Delayed units wait in a sorted set scored by their not-before time
 * until the promoter moves them onto the stream
 */

const (
	keyPrefix     = "deliveries"       // Stream: deliveries:{queue}, schedule: deliveries:{queue}:scheduled
	consumerGroup = "delivery-workers" // One group per stream; consumers are worker goroutines
	unitField     = "unit"
	promoteBatch  = 100
)

// promoteScript moves due members of the schedule onto the stream in one step
var promoteScript = redis.NewScript(`
local due = redis.call('ZRANGEBYSCORE', KEYS[1], '-inf', ARGV[1], 'LIMIT', 0, tonumber(ARGV[2]))
for _, member in ipairs(due) do
  redis.call('XADD', KEYS[2], '*', 'unit', member)
  redis.call('ZREM', KEYS[1], member)
end
return #due
`)

type Queue struct {
	client *redis.Client
	name   string
	block  time.Duration
}

// NewQueue connects to Redis and makes sure the consumer group exists
func NewQueue(addr, password string, db int, name string, block time.Duration) (*Queue, error) {
	if name == "" {
		return nil, fmt.Errorf("queue name cannot be empty")
	}
	if block <= 0 {
		block = time.Second
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to Redis: %w", err)
	}

	q := &Queue{
		client: client,
		name:   name,
		block:  block,
	}
	if err := q.ensureGroup(ctx); err != nil {
		return nil, err
	}
	return q, nil
}

func (q *Queue) ensureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.streamKey(), consumerGroup, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("creating consumer group: %w", err)
	}
	return nil
}

// Enqueue adds the unit to the stream, or to the schedule when notBefore is in the future
func (q *Queue) Enqueue(ctx context.Context, unit webhook.DeliveryUnit, notBefore time.Time) error {
	data, err := json.Marshal(unit)
	if err != nil {
		return fmt.Errorf("marshaling delivery unit: %w", err)
	}

	if notBefore.IsZero() || !notBefore.After(time.Now()) {
		err = q.client.XAdd(ctx, &redis.XAddArgs{
			Stream: q.streamKey(),
			Values: map[string]interface{}{unitField: string(data)},
		}).Err()
		if err != nil {
			return fmt.Errorf("adding to stream: %w", err)
		}
		return nil
	}

	// Identical units collapse into one member, so a re-enqueued retry is not duplicated
	err = q.client.ZAdd(ctx, q.scheduledKey(), redis.Z{
		Score:  float64(notBefore.UnixMilli()),
		Member: string(data),
	}).Err()
	if err != nil {
		return fmt.Errorf("scheduling delivery: %w", err)
	}
	return nil
}

// Promote moves every scheduled unit due at now onto the stream
func (q *Queue) Promote(ctx context.Context, now time.Time) (int, error) {
	total := 0
	for {
		n, err := promoteScript.Run(ctx, q.client,
			[]string{q.scheduledKey(), q.streamKey()},
			now.UnixMilli(), promoteBatch,
		).Int()
		if err != nil {
			return total, fmt.Errorf("promoting scheduled deliveries: %w", err)
		}
		total += n
		if n < promoteBatch {
			return total, nil
		}
	}
}

// RunPromoter promotes due units every interval until ctx is cancelled
func (q *Queue) RunPromoter(ctx context.Context, interval time.Duration, logger zerolog.Logger) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			n, err := q.Promote(ctx, now)
			if err != nil {
				if ctx.Err() == nil {
					logger.Error().Err(err).Str("queue", q.name).Msg("promoting scheduled deliveries failed")
				}
				continue
			}
			if n > 0 {
				logger.Debug().Int("count", n).Str("queue", q.name).Msg("promoted scheduled deliveries")
			}
		}
	}
}

// Consume reads up to count new units for consumer, blocking up to the configured block time
func (q *Queue) Consume(ctx context.Context, consumer string, count int) ([]webhook.QueuedUnit, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    consumerGroup,
		Consumer: consumer,
		Streams:  []string{q.streamKey(), ">"},
		Count:    int64(count),
		Block:    q.block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		// No messages available
		return []webhook.QueuedUnit{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading from stream: %w", err)
	}

	if len(streams) == 0 {
		return []webhook.QueuedUnit{}, nil
	}
	return decode(streams[0].Messages), nil
}

// Acknowledge settles a message and drops it from the stream
func (q *Queue) Acknowledge(ctx context.Context, messageID string) error {
	if err := q.client.XAck(ctx, q.streamKey(), consumerGroup, messageID).Err(); err != nil {
		return fmt.Errorf("acknowledging message: %w", err)
	}
	if err := q.client.XDel(ctx, q.streamKey(), messageID).Err(); err != nil {
		return fmt.Errorf("deleting message: %w", err)
	}
	return nil
}

// Reclaim transfers messages pending for longer than minIdle to consumer
func (q *Queue) Reclaim(ctx context.Context, consumer string, minIdle time.Duration, count int) ([]webhook.QueuedUnit, error) {
	messages, _, err := q.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   q.streamKey(),
		Group:    consumerGroup,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    "0-0",
		Count:    int64(count),
	}).Result()
	if errors.Is(err, redis.Nil) {
		return []webhook.QueuedUnit{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("claiming idle messages: %w", err)
	}
	return decode(messages), nil
}

// StreamLength returns the number of due units not yet acknowledged
func (q *Queue) StreamLength(ctx context.Context) (int64, error) {
	n, err := q.client.XLen(ctx, q.streamKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("getting stream length: %w", err)
	}
	return n, nil
}

// ScheduledLength returns the number of units waiting for their retry time
func (q *Queue) ScheduledLength(ctx context.Context) (int64, error) {
	n, err := q.client.ZCard(ctx, q.scheduledKey()).Result()
	if err != nil {
		return 0, fmt.Errorf("getting schedule length: %w", err)
	}
	return n, nil
}

// PendingCount returns the number of units read but not acknowledged
func (q *Queue) PendingCount(ctx context.Context) (int64, error) {
	pending, err := q.client.XPending(ctx, q.streamKey(), consumerGroup).Result()
	if err != nil {
		return 0, fmt.Errorf("getting pending count: %w", err)
	}
	return pending.Count, nil
}

// Name returns the queue name
func (q *Queue) Name() string {
	return q.name
}

// Close closes the Redis connection
func (q *Queue) Close(ctx context.Context) error {
	return q.client.Close()
}

// GetClient returns the underlying Redis client for advanced operations
func (q *Queue) GetClient() *redis.Client {
	return q.client
}

// Helper functions

func (q *Queue) streamKey() string {
	return fmt.Sprintf("%s:%s", keyPrefix, q.name)
}

func (q *Queue) scheduledKey() string {
	return fmt.Sprintf("%s:%s:scheduled", keyPrefix, q.name)
}

// decode keeps undecodable messages as empty units so the worker drops and acknowledges them
func decode(messages []redis.XMessage) []webhook.QueuedUnit {
	units := make([]webhook.QueuedUnit, 0, len(messages))
	for _, msg := range messages {
		qu := webhook.QueuedUnit{MessageID: msg.ID}
		if raw, ok := msg.Values[unitField].(string); ok {
			if err := json.Unmarshal([]byte(raw), &qu.Unit); err != nil {
				qu.Unit = webhook.DeliveryUnit{}
			}
		}
		units = append(units, qu)
	}
	return units
}

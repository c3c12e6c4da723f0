package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/omnivault/intent-relayer/pkg/intent"
)

// RedisConfig describes the Redis queue connection
type RedisConfig struct {
	Address           string
	Password          string
	DB                int
	KeyPrefix         string
	VisibilityTimeout time.Duration
}

// RedisQueue implements Queue on Redis lists. Pending and processing are
// separate lists moved between atomically; leases are tracked per receipt
// so crashed consumers' items become visible again after the timeout.
type RedisQueue struct {
	client     *redis.Client
	logger     *zap.Logger
	visibility time.Duration

	pendingKey    string
	processingKey string
	itemsKey      string
	leasesKey     string
	deadKey       string
}

// NewRedisQueue connects to Redis and returns the durable queue
func NewRedisQueue(cfg RedisConfig, logger *zap.Logger) (*RedisQueue, error) {
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address is required")
	}
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "relayer:intents"
	}
	visibility := cfg.VisibilityTimeout
	if visibility <= 0 {
		visibility = 5 * time.Minute
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisQueue{
		client:        client,
		logger:        logger,
		visibility:    visibility,
		pendingKey:    prefix + ":pending",
		processingKey: prefix + ":processing",
		itemsKey:      prefix + ":items",
		leasesKey:     prefix + ":leases",
		deadKey:       prefix + ":dead",
	}, nil
}

// Close closes the Redis connection
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

// Enqueue adds an intent to the pending pool
func (q *RedisQueue) Enqueue(ctx context.Context, in *intent.ValidatedIntent) error {
	receipt := uuid.NewString()
	payload, err := json.Marshal(&Item{Receipt: receipt, Intent: in})
	if err != nil {
		return fmt.Errorf("failed to encode queue item: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.HSet(ctx, q.itemsKey, receipt, payload)
	pipe.LPush(ctx, q.pendingKey, receipt)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to enqueue intent %s: %w", in.IntentID, err)
	}
	return nil
}

// fetchScript moves the next pending receipt onto the processing list and
// records its lease in the same atomic step. A receipt must never sit on
// the processing list without a lease entry; ReclaimExpired only scans the
// leases hash, so a leaseless receipt would be stranded forever.
var fetchScript = redis.NewScript(`
local receipt = redis.call('LMOVE', KEYS[1], KEYS[2], 'RIGHT', 'LEFT')
if not receipt then
	return false
end
redis.call('HSET', KEYS[3], receipt, ARGV[1])
return receipt
`)

// FetchNext leases the next pending item
func (q *RedisQueue) FetchNext(ctx context.Context) (*Item, error) {
	deadline := time.Now().Add(q.visibility).Unix()
	receipt, err := fetchScript.Run(ctx, q.client,
		[]string{q.pendingKey, q.processingKey, q.leasesKey}, deadline).Text()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch from queue: %w", err)
	}

	raw, err := q.client.HGet(ctx, q.itemsKey, receipt).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to load queue item %s: %w", receipt, err)
	}
	var item Item
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return nil, fmt.Errorf("failed to decode queue item %s: %w", receipt, err)
	}
	return &item, nil
}

// Ack removes a leased item permanently
func (q *RedisQueue) Ack(ctx context.Context, receipt string) error {
	pipe := q.client.TxPipeline()
	pipe.LRem(ctx, q.processingKey, 1, receipt)
	pipe.HDel(ctx, q.leasesKey, receipt)
	pipe.HDel(ctx, q.itemsKey, receipt)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to ack %s: %w", receipt, err)
	}
	return nil
}

// MoveToDeadLetter removes a leased item and records it for inspection
func (q *RedisQueue) MoveToDeadLetter(ctx context.Context, receipt, reason string, attempts int) error {
	raw, err := q.client.HGet(ctx, q.itemsKey, receipt).Result()
	if err != nil {
		return fmt.Errorf("failed to load item %s for dead-lettering: %w", receipt, err)
	}
	var item Item
	if err := json.Unmarshal([]byte(raw), &item); err != nil {
		return fmt.Errorf("failed to decode item %s: %w", receipt, err)
	}

	payload, err := json.Marshal(&DeadLetter{
		Receipt:  receipt,
		Intent:   item.Intent,
		Reason:   reason,
		MovedAt:  time.Now().UTC(),
		Attempts: attempts,
	})
	if err != nil {
		return fmt.Errorf("failed to encode dead letter: %w", err)
	}

	pipe := q.client.TxPipeline()
	pipe.LPush(ctx, q.deadKey, payload)
	pipe.LRem(ctx, q.processingKey, 1, receipt)
	pipe.HDel(ctx, q.leasesKey, receipt)
	pipe.HDel(ctx, q.itemsKey, receipt)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to dead-letter %s: %w", receipt, err)
	}

	q.logger.Warn("Intent moved to dead-letter store",
		zap.String("intent_id", item.Intent.IntentID),
		zap.String("reason", reason))
	return nil
}

// ListDeadLetters returns dead-lettered items, newest first
func (q *RedisQueue) ListDeadLetters(ctx context.Context, limit int) ([]*DeadLetter, error) {
	if limit <= 0 {
		limit = 100
	}
	raws, err := q.client.LRange(ctx, q.deadKey, 0, int64(limit-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list dead letters: %w", err)
	}

	out := make([]*DeadLetter, 0, len(raws))
	for _, raw := range raws {
		var dl DeadLetter
		if err := json.Unmarshal([]byte(raw), &dl); err != nil {
			return nil, fmt.Errorf("failed to decode dead letter: %w", err)
		}
		out = append(out, &dl)
	}
	return out, nil
}

// ReclaimExpired returns items whose lease lapsed to the pending pool
func (q *RedisQueue) ReclaimExpired(ctx context.Context) (int, error) {
	leases, err := q.client.HGetAll(ctx, q.leasesKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to load leases: %w", err)
	}

	now := time.Now().Unix()
	reclaimed := 0
	for receipt, raw := range leases {
		deadline, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || deadline > now {
			continue
		}
		removed, err := q.client.LRem(ctx, q.processingKey, 1, receipt).Result()
		if err != nil {
			return reclaimed, fmt.Errorf("failed to reclaim %s: %w", receipt, err)
		}
		if removed == 0 {
			// Already acked or dead-lettered between scan and remove.
			q.client.HDel(ctx, q.leasesKey, receipt)
			continue
		}
		pipe := q.client.TxPipeline()
		pipe.LPush(ctx, q.pendingKey, receipt)
		pipe.HDel(ctx, q.leasesKey, receipt)
		if _, err := pipe.Exec(ctx); err != nil {
			return reclaimed, fmt.Errorf("failed to requeue %s: %w", receipt, err)
		}
		reclaimed++
	}

	if reclaimed > 0 {
		q.logger.Info("Reclaimed expired queue leases", zap.Int("count", reclaimed))
	}
	return reclaimed, nil
}

// Depth returns the number of pending items
func (q *RedisQueue) Depth(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.pendingKey).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read queue depth: %w", err)
	}
	return n, nil
}

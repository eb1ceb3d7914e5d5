package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"novel-translate-service/internal/entity"
)

type DispatchKeys struct {
	QueueKey       string // pending run ids
	ProcessingKey  string // claimed, not yet acked
	RunPrefix      string // run payloads
	CanceledPrefix string
}

func DefaultDispatchKeys() DispatchKeys {
	return DispatchKeys{
		QueueKey:       "dispatch:queue",
		ProcessingKey:  "dispatch:processing",
		RunPrefix:      "dispatch:run:",
		CanceledPrefix: "dispatch:canceled:",
	}
}

// RedisDispatchQueue is the self-hosted Trigger: runs are parked in Redis and
// delivered to the callback by cmd/worker.
// Claim: BRPOPLPUSH queue -> processing
// Ack:   LREM from processing, drop the payload
type RedisDispatchQueue struct {
	rdb  *redis.Client
	keys DispatchKeys
	ttl  time.Duration
}

func NewRedisDispatchQueue(rdb *redis.Client, keys DispatchKeys, ttl time.Duration) *RedisDispatchQueue {
	def := DefaultDispatchKeys()
	if keys.QueueKey == "" {
		keys.QueueKey = def.QueueKey
	}
	if keys.ProcessingKey == "" {
		keys.ProcessingKey = def.ProcessingKey
	}
	if keys.RunPrefix == "" {
		keys.RunPrefix = def.RunPrefix
	}
	if keys.CanceledPrefix == "" {
		keys.CanceledPrefix = def.CanceledPrefix
	}
	if ttl <= 0 {
		ttl = 7 * 24 * time.Hour
	}
	return &RedisDispatchQueue{rdb: rdb, keys: keys, ttl: ttl}
}

func (q *RedisDispatchQueue) runKey(id string) string      { return q.keys.RunPrefix + id }
func (q *RedisDispatchQueue) canceledKey(id string) string { return q.keys.CanceledPrefix + id }

// Trigger stores the payload and queues the run id atomically.
func (q *RedisDispatchQueue) Trigger(ctx context.Context, p entity.WorkflowPayload) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal payload: %w", err)
	}
	id := "run_" + uuid.NewString()

	pipe := q.rdb.TxPipeline()
	pipe.Set(ctx, q.runKey(id), body, q.ttl)
	pipe.LPush(ctx, q.keys.QueueKey, id)
	if _, err := pipe.Exec(ctx); err != nil {
		return "", fmt.Errorf("enqueue run: %w", err)
	}
	return id, nil
}

// Cancel flags the run; the dispatcher drops flagged runs instead of delivering.
func (q *RedisDispatchQueue) Cancel(ctx context.Context, runID string) error {
	return q.rdb.Set(ctx, q.canceledKey(runID), "1", q.ttl).Err()
}

// ClaimBlocking waits up to timeout for a run id. redis.Nil means nothing arrived.
func (q *RedisDispatchQueue) ClaimBlocking(ctx context.Context, timeout time.Duration) (string, error) {
	if timeout <= 0 {
		timeout = time.Second
	}
	return q.rdb.BRPopLPush(ctx, q.keys.QueueKey, q.keys.ProcessingKey, timeout).Result()
}

// Load returns the payload of a claimed run and whether it was canceled.
func (q *RedisDispatchQueue) Load(ctx context.Context, runID string) (*entity.WorkflowPayload, bool, error) {
	pipe := q.rdb.Pipeline()
	bodyCmd := pipe.Get(ctx, q.runKey(runID))
	canceledCmd := pipe.Exists(ctx, q.canceledKey(runID))
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, false, err
	}

	canceled := canceledCmd.Val() > 0
	body, err := bodyCmd.Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, canceled, entity.ErrNotFound
		}
		return nil, canceled, err
	}

	var p entity.WorkflowPayload
	if err := json.Unmarshal(body, &p); err != nil {
		return nil, canceled, fmt.Errorf("decode run %s: %w", runID, err)
	}
	return &p, canceled, nil
}

func (q *RedisDispatchQueue) Ack(ctx context.Context, runID string) error {
	pipe := q.rdb.Pipeline()
	pipe.LRem(ctx, q.keys.ProcessingKey, 1, runID)
	pipe.Del(ctx, q.runKey(runID))
	_, err := pipe.Exec(ctx)
	return err
}

// RequeueStale moves ids from processing back to the queue.
// It's a simple "reaper": at-least-once delivery.
func (q *RedisDispatchQueue) RequeueStale(ctx context.Context, maxItems int64) (int64, error) {
	var moved int64
	for i := int64(0); i < maxItems; i++ {
		_, err := q.rdb.RPopLPush(ctx, q.keys.ProcessingKey, q.keys.QueueKey).Result()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				break
			}
			return moved, err
		}
		moved++
	}
	return moved, nil
}

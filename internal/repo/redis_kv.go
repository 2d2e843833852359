package repo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisKeyPrefix = "tm:kv:"   // value: tm:kv:{key}
	redisTouchKey  = "tm:touch" // hash: key -> last write (unix ms)
)

// RedisKV stores gateway records as plain Redis strings. A hash keeps the
// last write time of every key so Stats never scans the value space.
type RedisKV struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisKV returns a gateway backed by client. A zero ttl keeps keys forever.
func NewRedisKV(client *redis.Client, ttl time.Duration) *RedisKV {
	return &RedisKV{client: client, ttl: ttl}
}

// Get implements KVGateway.
func (r *RedisKV) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, redisKeyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("redis get %s: %w", key, err)
	}
	return data, nil
}

// Put implements KVGateway.
func (r *RedisKV) Put(ctx context.Context, key string, value []byte) error {
	pipe := r.client.TxPipeline()
	pipe.Set(ctx, redisKeyPrefix+key, value, r.ttl)
	pipe.HSet(ctx, redisTouchKey, key, time.Now().UTC().UnixMilli())
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis put %s: %w", key, err)
	}
	return nil
}

// Delete implements KVGateway.
func (r *RedisKV) Delete(ctx context.Context, key string) error {
	pipe := r.client.TxPipeline()
	pipe.Del(ctx, redisKeyPrefix+key)
	pipe.HDel(ctx, redisTouchKey, key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis delete %s: %w", key, err)
	}
	return nil
}

// Stats implements Stater by scanning the touch hash for fields that share
// prefix. Keys evicted by TTL are still counted until overwritten or deleted.
func (r *RedisKV) Stats(ctx context.Context, prefix string) (int64, *time.Time, error) {
	var (
		count  int64
		maxMS  int64
		cursor uint64
	)
	for {
		pairs, next, err := r.client.HScan(ctx, redisTouchKey, cursor, prefix+"*", 100).Result()
		if err != nil {
			return 0, nil, fmt.Errorf("redis stats: %w", err)
		}
		for i := 0; i+1 < len(pairs); i += 2 {
			ms, err := strconv.ParseInt(pairs[i+1], 10, 64)
			if err != nil {
				continue
			}
			count++
			if ms > maxMS {
				maxMS = ms
			}
		}
		if next == 0 {
			break
		}
		cursor = next
	}
	if count == 0 {
		return 0, nil, nil
	}
	at := time.UnixMilli(maxMS).UTC()
	return count, &at, nil
}

// Ping checks connectivity.
func (r *RedisKV) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

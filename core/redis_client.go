package core

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// RedisClient wraps go-redis with key namespacing and the stream/list
// operations the pipeline uses. All keys are prefixed with the configured
// namespace so several deployments can share one Redis.
type RedisClient struct {
	client    *redis.Client
	namespace string
}

// NewRedisClient connects to Redis and verifies the connection.
func NewRedisClient(url, namespace string) (*RedisClient, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("%w: parsing redis url: %v", ErrInvalidConfiguration, err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: redis ping: %v", ErrConnectionFailed, err)
	}

	return &RedisClient{client: client, namespace: namespace}, nil
}

// NewRedisClientFromExisting wraps an already-connected client. Used by
// tests backed by miniredis.
func NewRedisClientFromExisting(client *redis.Client, namespace string) *RedisClient {
	return &RedisClient{client: client, namespace: namespace}
}

// Key returns the namespaced form of key.
func (r *RedisClient) Key(parts ...string) string {
	if r.namespace == "" {
		return strings.Join(parts, ":")
	}
	return r.namespace + ":" + strings.Join(parts, ":")
}

// Close releases the underlying connection.
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// HealthCheck pings Redis.
func (r *RedisClient) HealthCheck(ctx context.Context) error {
	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return nil
}

// Stream operations

// XAdd appends values to a stream, trimming it to approximately maxLen.
func (r *RedisClient) XAdd(ctx context.Context, stream string, maxLen int64, values map[string]interface{}) (string, error) {
	id, err := r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		MaxLen: maxLen,
		Approx: true,
		Values: values,
	}).Result()
	if err != nil {
		return "", fmt.Errorf("%w: xadd %s: %v", ErrConnectionFailed, stream, err)
	}
	return id, nil
}

// EnsureGroup creates a consumer group on the stream, creating the stream
// if needed. An already-existing group is not an error.
func (r *RedisClient) EnsureGroup(ctx context.Context, stream, group string) error {
	err := r.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("%w: xgroup create %s/%s: %v", ErrConnectionFailed, stream, group, err)
	}
	return nil
}

// ReadGroup blocks up to block for one new entry on the stream for the
// given group and consumer. Returns nil with no error on timeout.
func (r *RedisClient) ReadGroup(ctx context.Context, stream, group, consumer string, block time.Duration) (*redis.XMessage, error) {
	res, err := r.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    1,
		Block:    block,
	}).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: xreadgroup %s: %v", ErrConnectionFailed, stream, err)
	}
	if len(res) == 0 || len(res[0].Messages) == 0 {
		return nil, nil
	}
	return &res[0].Messages[0], nil
}

// Ack acknowledges a message for the group.
func (r *RedisClient) Ack(ctx context.Context, stream, group, id string) error {
	if err := r.client.XAck(ctx, stream, group, id).Err(); err != nil {
		return fmt.Errorf("%w: xack %s/%s: %v", ErrConnectionFailed, stream, id, err)
	}
	return nil
}

// AutoClaim transfers pending entries idle longer than minIdle to consumer.
// Returns the claimed messages and the cursor for the next sweep.
func (r *RedisClient) AutoClaim(ctx context.Context, stream, group, consumer string, minIdle time.Duration, start string, count int64) ([]redis.XMessage, string, error) {
	msgs, next, err := r.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
		Stream:   stream,
		Group:    group,
		Consumer: consumer,
		MinIdle:  minIdle,
		Start:    start,
		Count:    count,
	}).Result()
	if err != nil && err != redis.Nil {
		return nil, start, fmt.Errorf("%w: xautoclaim %s: %v", ErrConnectionFailed, stream, err)
	}
	if next == "" {
		next = "0-0"
	}
	return msgs, next, nil
}

// PendingDeliveries returns the delivery count for a pending entry, or 0
// if the entry is no longer pending.
func (r *RedisClient) PendingDeliveries(ctx context.Context, stream, group, id string) (int64, error) {
	ext, err := r.client.XPendingExt(ctx, &redis.XPendingExtArgs{
		Stream: stream,
		Group:  group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil && err != redis.Nil {
		return 0, fmt.Errorf("%w: xpending %s/%s: %v", ErrConnectionFailed, stream, id, err)
	}
	if len(ext) == 0 {
		return 0, nil
	}
	return ext[0].RetryCount, nil
}

// List operations, used by the scorer's rolling baselines.

// ListPush prepends value to the list, trims it to keep at most, and
// refreshes the TTL. The three commands run in one pipeline.
func (r *RedisClient) ListPush(ctx context.Context, key, value string, keep int64, ttl time.Duration) error {
	pipe := r.client.TxPipeline()
	pipe.LPush(ctx, key, value)
	pipe.LTrim(ctx, key, 0, keep-1)
	if ttl > 0 {
		pipe.Expire(ctx, key, ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("%w: lpush %s: %v", ErrConnectionFailed, key, err)
	}
	return nil
}

// ListRange returns up to count newest entries of the list.
func (r *RedisClient) ListRange(ctx context.Context, key string, count int64) ([]string, error) {
	vals, err := r.client.LRange(ctx, key, 0, count-1).Result()
	if err != nil {
		return nil, fmt.Errorf("%w: lrange %s: %v", ErrConnectionFailed, key, err)
	}
	return vals, nil
}

// Key-value operations.

// SetNX sets key to value with a TTL if it does not exist. Returns true
// when the key was set.
func (r *RedisClient) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, key, value, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: setnx %s: %v", ErrConnectionFailed, key, err)
	}
	return ok, nil
}

// Get returns the value at key. Missing keys return ErrNotFound.
func (r *RedisClient) Get(ctx context.Context, key string) (string, error) {
	val, err := r.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("%w: get %s: %v", ErrConnectionFailed, key, err)
	}
	return val, nil
}

// Set stores value at key with a TTL.
func (r *RedisClient) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("%w: set %s: %v", ErrConnectionFailed, key, err)
	}
	return nil
}

// Delete removes key.
func (r *RedisClient) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("%w: del %s: %v", ErrConnectionFailed, key, err)
	}
	return nil
}

// Exists reports whether key is present.
func (r *RedisClient) Exists(ctx context.Context, key string) (bool, error) {
	n, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("%w: exists %s: %v", ErrConnectionFailed, key, err)
	}
	return n > 0, nil
}

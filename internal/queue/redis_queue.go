package queue

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"bulk-user-provisioner/internal/config"
)

// RedisQueue is a minimal durable queue over Redis lists, one list per
// queue name. It is deliberately not a broker: no leases, no visibility
// timeouts, no retries, no dead-lettering. A popped message is gone;
// handlers own whatever happens next.
type RedisQueue struct {
	client *redis.Client
}

// NewRedisQueue builds a queue client from config.
func NewRedisQueue(cfg config.Config) *RedisQueue {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return &RedisQueue{client: client}
}

// NewRedisQueueWithClient wraps an existing client, used by tests.
func NewRedisQueueWithClient(client *redis.Client) *RedisQueue {
	return &RedisQueue{client: client}
}

func key(name string) string {
	return "queue:" + name
}

// Publish appends an encoded message to the named queue.
func (q *RedisQueue) Publish(ctx context.Context, name string, body []byte) error {
	return q.client.RPush(ctx, key(name), body).Err()
}

// Dequeue pops the oldest message from the named queue. It returns
// (nil, nil) when the queue is empty.
func (q *RedisQueue) Dequeue(ctx context.Context, name string) ([]byte, error) {
	body, err := q.client.LPop(ctx, key(name)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return body, nil
}

// Depth returns the number of pending messages on the named queue.
func (q *RedisQueue) Depth(ctx context.Context, name string) (int64, error) {
	return q.client.LLen(ctx, key(name)).Result()
}

// Close releases the underlying Redis connection.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}

package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

// ActorBucket is a Redis-backed token bucket keyed by actor id, used to
// cap bulk submissions per caller across API instances.
type ActorBucket struct {
	client   *redis.Client
	capacity int
	refill   float64 // tokens per second
	ttl      time.Duration
}

// NewActorBucket constructs a bucket with the provided capacity/refill.
func NewActorBucket(client *redis.Client, capacity int, refillPerSecond float64, ttl time.Duration) *ActorBucket {
	return &ActorBucket{
		client:   client,
		capacity: capacity,
		refill:   refillPerSecond,
		ttl:      ttl,
	}
}

// Allow consumes one token for the actor if available.
func (b *ActorBucket) Allow(ctx context.Context, actorID string) (bool, error) {
	now := time.Now().UnixMilli()
	res, err := bucketScript.Run(ctx, b.client, []string{"ratelimit:actor:" + actorID},
		b.capacity, b.refill, now, b.ttl.Milliseconds()).Result()
	if err != nil {
		return false, err
	}
	allowed, ok := res.(int64)
	if !ok {
		return false, nil
	}
	return allowed == 1, nil
}

var bucketScript = redis.NewScript(`
local key = KEYS[1]
local capacity = tonumber(ARGV[1])
local refill = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local ttl = tonumber(ARGV[4])

local data = redis.call('HMGET', key, 'tokens', 'last_ms')
local tokens = tonumber(data[1])
local last = tonumber(data[2])
if tokens == nil then
  tokens = capacity
  last = now
end

local elapsed = math.max(0, now - last) / 1000.0
tokens = math.min(capacity, tokens + elapsed * refill)

local allowed = 0
if tokens >= 1 then
  tokens = tokens - 1
  allowed = 1
end

redis.call('HSET', key, 'tokens', tokens, 'last_ms', now)
redis.call('PEXPIRE', key, ttl)
return allowed
`)

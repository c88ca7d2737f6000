package ratelimit

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func TestActorBucketCapacity(t *testing.T) {
	ctx := context.Background()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	defer mr.Close()

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	bucket := NewActorBucket(client, 2, 1, time.Minute)

	allowed, err := bucket.Allow(ctx, "actor-1")
	if err != nil || !allowed {
		t.Fatalf("expected first token allowed got allowed=%v err=%v", allowed, err)
	}
	allowed, _ = bucket.Allow(ctx, "actor-1")
	if !allowed {
		t.Fatalf("expected second token allowed")
	}
	allowed, _ = bucket.Allow(ctx, "actor-1")
	if allowed {
		t.Fatalf("expected third token to be rejected")
	}

	// Buckets are per actor.
	allowed, _ = bucket.Allow(ctx, "actor-2")
	if !allowed {
		t.Fatalf("expected fresh actor to be allowed")
	}

	// Refill cannot be exercised with miniredis FastForward because the
	// script takes its clock from Go, not Redis.
}

package queue

import (
	"context"
	"encoding/json"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestQueue(t *testing.T) *RedisQueue {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return NewRedisQueueWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestPublishDequeueOrder(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	if err := q.Publish(ctx, "jobs", []byte(`{"n":1}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if err := q.Publish(ctx, "jobs", []byte(`{"n":2}`)); err != nil {
		t.Fatalf("publish: %v", err)
	}

	depth, err := q.Depth(ctx, "jobs")
	if err != nil || depth != 2 {
		t.Fatalf("depth = %d, err = %v, want 2", depth, err)
	}

	first, err := q.Dequeue(ctx, "jobs")
	if err != nil || string(first) != `{"n":1}` {
		t.Fatalf("first dequeue = %q, err = %v", first, err)
	}
	second, err := q.Dequeue(ctx, "jobs")
	if err != nil || string(second) != `{"n":2}` {
		t.Fatalf("second dequeue = %q, err = %v", second, err)
	}
}

func TestDequeueEmpty(t *testing.T) {
	ctx := context.Background()
	q := newTestQueue(t)

	body, err := q.Dequeue(ctx, "empty")
	if err != nil {
		t.Fatalf("dequeue: %v", err)
	}
	if body != nil {
		t.Fatalf("expected nil body on empty queue, got %q", body)
	}
}

func TestMessageTagAndDecode(t *testing.T) {
	jobMsg := BulkCSVJob{Type: TypeBulkCSVJob, JobID: "j1", CSV: "aGVsbG8=", ActorID: "admin"}
	body, err := json.Marshal(jobMsg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	tag, err := Tag(body)
	if err != nil || tag != TypeBulkCSVJob {
		t.Fatalf("tag = %q, err = %v", tag, err)
	}

	decoded, err := DecodeBulkCSVJob(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded != jobMsg {
		t.Fatalf("decoded = %+v, want %+v", decoded, jobMsg)
	}

	if _, err := Tag([]byte("not json")); err == nil {
		t.Fatal("expected error for invalid envelope")
	}
}

func TestCreateUserRoundTrip(t *testing.T) {
	msg := CreateUser{
		Type: TypeCreateUser,
		User: UserSpec{
			Name:       "Jane Doe",
			Email:      "jane@x.com",
			Password:   "Abcd123!",
			Role:       "CUSTOMER",
			AccountIDs: []string{"acc-1", "acc-2"},
		},
		ActorID: "admin",
	}
	body, err := json.Marshal(msg)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	// Wire field names are part of the contract.
	var raw map[string]any
	if err := json.Unmarshal(body, &raw); err != nil {
		t.Fatalf("unmarshal raw: %v", err)
	}
	if raw["type"] != TypeCreateUser {
		t.Fatalf("type field = %v", raw["type"])
	}
	user, ok := raw["user"].(map[string]any)
	if !ok {
		t.Fatalf("user field missing: %v", raw)
	}
	for _, field := range []string{"name", "email", "password", "role", "accountIds"} {
		if _, ok := user[field]; !ok {
			t.Fatalf("user payload missing field %q", field)
		}
	}

	decoded, err := DecodeCreateUser(body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if decoded.User.Email != msg.User.Email || len(decoded.User.AccountIDs) != 2 {
		t.Fatalf("decoded = %+v", decoded)
	}
}

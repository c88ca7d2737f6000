package worker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strings"
	"testing"

	"bulk-user-provisioner/internal/models"
	"bulk-user-provisioner/internal/queue"
)

const rowQueue = "user_creation_queue"

func jobMessage(t *testing.T, jobID, csvText, actorID string) []byte {
	t.Helper()
	body, err := json.Marshal(queue.BulkCSVJob{
		Type:    queue.TypeBulkCSVJob,
		JobID:   jobID,
		CSV:     base64.StdEncoding.EncodeToString([]byte(csvText)),
		ActorID: actorID,
	})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return body
}

func drainRowMessages(t *testing.T, q *queue.RedisQueue) []queue.CreateUser {
	t.Helper()
	ctx := context.Background()
	var out []queue.CreateUser
	for {
		body, err := q.Dequeue(ctx, rowQueue)
		if err != nil {
			t.Fatalf("dequeue: %v", err)
		}
		if body == nil {
			return out
		}
		msg, err := queue.DecodeCreateUser(body)
		if err != nil {
			t.Fatalf("decode row message: %v", err)
		}
		out = append(out, msg)
	}
}

func TestIngestValidAndInvalidRows(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	q := newTestQueue(t)
	ing := NewIngestor(st, q, rowQueue)

	csvText := strings.Join([]string{
		"name,email,password,role,accountIds",
		"Jane Doe,jane@x.com,Abcd123!,CUSTOMER,acc-1",
		",bob@x.com,Abcd123!,CUSTOMER,",
		"Carl X,carl@x.com,Abcd123!,WIZARD,",
		"Dee Dee,dee@x.com,,ADMIN,",
	}, "\n")

	if err := ing.Handle(ctx, jobMessage(t, "job-1", csvText, "admin-1")); err != nil {
		t.Fatalf("handle: %v", err)
	}

	job := st.job("job-1")
	if job.Status != models.JobCompleted {
		t.Fatalf("status = %s, want COMPLETED", job.Status)
	}
	if job.SuccessCount != 1 || job.FailureCount != 3 {
		t.Fatalf("counts = %d/%d, want 1/3", job.SuccessCount, job.FailureCount)
	}
	if job.SuccessCount+job.FailureCount != 4 {
		t.Fatalf("counter conservation violated: %d", job.SuccessCount+job.FailureCount)
	}
	if job.ErrorMessage == nil {
		t.Fatal("expected joined error message")
	}
	for _, want := range []string{"Row 2: Missing name", "Row 3: Invalid role: WIZARD", "Row 4: Missing password"} {
		if !strings.Contains(*job.ErrorMessage, want) {
			t.Fatalf("error message %q missing %q", *job.ErrorMessage, want)
		}
	}
	if !strings.Contains(*job.ErrorMessage, "; ") {
		t.Fatalf("errors not joined with separator: %q", *job.ErrorMessage)
	}

	msgs := drainRowMessages(t, q)
	if len(msgs) != 1 {
		t.Fatalf("row messages = %d, want 1", len(msgs))
	}
	msg := msgs[0]
	if msg.Type != queue.TypeCreateUser || msg.ActorID != "admin-1" {
		t.Fatalf("message = %+v", msg)
	}
	if msg.User.Email != "jane@x.com" || msg.User.Role != "CUSTOMER" {
		t.Fatalf("user = %+v", msg.User)
	}
	if len(msg.User.AccountIDs) != 1 || msg.User.AccountIDs[0] != "acc-1" {
		t.Fatalf("accountIds = %v", msg.User.AccountIDs)
	}
}

func TestIngestNoErrorsLeavesMessageNil(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	q := newTestQueue(t)
	ing := NewIngestor(st, q, rowQueue)

	csvText := "name,email,password,role,accountIds\nJane Doe,jane@x.com,Abcd123!,CUSTOMER,"
	if err := ing.Handle(ctx, jobMessage(t, "job-2", csvText, "a")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	job := st.job("job-2")
	if job.ErrorMessage != nil {
		t.Fatalf("expected nil error message, got %q", *job.ErrorMessage)
	}
	if job.SuccessCount != 1 || job.FailureCount != 0 {
		t.Fatalf("counts = %d/%d", job.SuccessCount, job.FailureCount)
	}
}

func TestIngestColumnsOrderIndependent(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	q := newTestQueue(t)
	ing := NewIngestor(st, q, rowQueue)

	csvText := "role,accountIds,email,name,password\nCUSTOMER,\"acc-1, acc-2,,acc-1\",jane@x.com,Jane,Abcd123!"
	if err := ing.Handle(ctx, jobMessage(t, "job-3", csvText, "a")); err != nil {
		t.Fatalf("handle: %v", err)
	}

	msgs := drainRowMessages(t, q)
	if len(msgs) != 1 {
		t.Fatalf("row messages = %d, want 1", len(msgs))
	}
	// Tokens are trimmed, empties dropped, order kept, duplicates kept.
	got := msgs[0].User.AccountIDs
	want := []string{"acc-1", "acc-2", "acc-1"}
	if len(got) != len(want) {
		t.Fatalf("accountIds = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("accountIds = %v, want %v", got, want)
		}
	}
}

func TestIngestPayloadFailure(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	q := newTestQueue(t)
	ing := NewIngestor(st, q, rowQueue)

	body, _ := json.Marshal(queue.BulkCSVJob{
		Type:    queue.TypeBulkCSVJob,
		JobID:   "job-bad",
		CSV:     "!!! not base64 !!!",
		ActorID: "a",
	})
	if err := ing.Handle(ctx, body); err != nil {
		t.Fatalf("handle: %v", err)
	}

	job := st.job("job-bad")
	if job.Status != models.JobFailed {
		t.Fatalf("status = %s, want FAILED", job.Status)
	}
	if job.SuccessCount != 0 || job.FailureCount != 0 {
		t.Fatalf("counts = %d/%d, want 0/0", job.SuccessCount, job.FailureCount)
	}
	if job.ErrorMessage == nil {
		t.Fatal("expected failure message")
	}
	if msgs := drainRowMessages(t, q); len(msgs) != 0 {
		t.Fatalf("expected no row messages, got %d", len(msgs))
	}
}

func TestIngestMalformedCSVFails(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	q := newTestQueue(t)
	ing := NewIngestor(st, q, rowQueue)

	// Unterminated quote is a parse error for the whole payload.
	csvText := "name,email,password,role\n\"Jane,jane@x.com,Abcd123!,ADMIN"
	if err := ing.Handle(ctx, jobMessage(t, "job-q", csvText, "a")); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if job := st.job("job-q"); job.Status != models.JobFailed {
		t.Fatalf("status = %s, want FAILED", job.Status)
	}
}

func TestIngestIgnoresUnknownType(t *testing.T) {
	ctx := context.Background()
	st := newMemStore()
	q := newTestQueue(t)
	ing := NewIngestor(st, q, rowQueue)

	if err := ing.Handle(ctx, []byte(`{"type":"something_else"}`)); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(st.jobs) != 0 {
		t.Fatalf("expected no job updates, got %v", st.jobs)
	}
}

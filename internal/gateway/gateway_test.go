package gateway

import (
	"context"
	"encoding/base64"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"bulk-user-provisioner/internal/models"
	"bulk-user-provisioner/internal/queue"
)

type memJobs struct {
	jobs map[string]models.Job
}

func (m *memJobs) CreateJob(_ context.Context, job models.Job) error {
	m.jobs[job.ID] = job
	return nil
}

func (m *memJobs) GetJob(_ context.Context, id string) (models.Job, error) {
	job, ok := m.jobs[id]
	if !ok {
		return models.Job{}, models.ErrNotFound
	}
	return job, nil
}

type failingArchiver struct{ calls int }

func (f *failingArchiver) Archive(context.Context, string, []byte) error {
	f.calls++
	return errors.New("bucket unavailable")
}

func newTestQueue(t *testing.T) *queue.RedisQueue {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)
	return queue.NewRedisQueueWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

func TestSubmitBulkCSV(t *testing.T) {
	ctx := context.Background()
	jobs := &memJobs{jobs: make(map[string]models.Job)}
	q := newTestQueue(t)
	svc := New(jobs, q, "bulk_csv_jobs", nil)

	raw := []byte("name,email,password,role\nJane,jane@x.com,Abcd123!,ADMIN")
	jobID, err := svc.SubmitBulkCSV(ctx, raw, "actor-1")
	require.NoError(t, err)
	require.NotEmpty(t, jobID)

	job, err := svc.JobStatus(ctx, jobID)
	require.NoError(t, err)
	assert.Equal(t, models.JobPending, job.Status)
	assert.Equal(t, "actor-1", job.ActorID)
	assert.Zero(t, job.SuccessCount)
	assert.Zero(t, job.FailureCount)

	body, err := q.Dequeue(ctx, "bulk_csv_jobs")
	require.NoError(t, err)
	require.NotNil(t, body)

	msg, err := queue.DecodeBulkCSVJob(body)
	require.NoError(t, err)
	assert.Equal(t, queue.TypeBulkCSVJob, msg.Type)
	assert.Equal(t, jobID, msg.JobID)
	assert.Equal(t, "actor-1", msg.ActorID)

	decoded, err := base64.StdEncoding.DecodeString(msg.CSV)
	require.NoError(t, err)
	assert.Equal(t, raw, decoded)
}

func TestSubmitEmptyUpload(t *testing.T) {
	jobs := &memJobs{jobs: make(map[string]models.Job)}
	q := newTestQueue(t)
	svc := New(jobs, q, "bulk_csv_jobs", nil)

	_, err := svc.SubmitBulkCSV(context.Background(), nil, "actor-1")
	assert.ErrorIs(t, err, ErrEmptyUpload)
	assert.Empty(t, jobs.jobs)
}

func TestSubmitSurvivesArchiveFailure(t *testing.T) {
	ctx := context.Background()
	jobs := &memJobs{jobs: make(map[string]models.Job)}
	q := newTestQueue(t)
	arch := &failingArchiver{}
	svc := New(jobs, q, "bulk_csv_jobs", arch)

	jobID, err := svc.SubmitBulkCSV(ctx, []byte("name\nJane"), "actor-1")
	require.NoError(t, err)
	assert.Equal(t, 1, arch.calls)

	// The job message still made it onto the queue.
	body, err := q.Dequeue(ctx, "bulk_csv_jobs")
	require.NoError(t, err)
	require.NotNil(t, body)
	msg, err := queue.DecodeBulkCSVJob(body)
	require.NoError(t, err)
	assert.Equal(t, jobID, msg.JobID)
}

func TestJobStatusNotFound(t *testing.T) {
	jobs := &memJobs{jobs: make(map[string]models.Job)}
	q := newTestQueue(t)
	svc := New(jobs, q, "bulk_csv_jobs", nil)

	_, err := svc.JobStatus(context.Background(), "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

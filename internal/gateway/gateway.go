// Package gateway accepts raw bulk uploads, records a job, and hands the
// payload to the ingestion queue. Submission returns the job id
// immediately; callers poll job status for progress.
package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bulk-user-provisioner/internal/models"
	"bulk-user-provisioner/internal/queue"
	"bulk-user-provisioner/internal/telemetry"
)

// ErrEmptyUpload rejects submissions with no payload.
var ErrEmptyUpload = errors.New("upload is empty")

// JobStore is the gateway's view of job persistence.
type JobStore interface {
	CreateJob(ctx context.Context, job models.Job) error
	GetJob(ctx context.Context, id string) (models.Job, error)
}

// Archiver keeps a copy of the raw upload outside the queue. Archival is
// best-effort; a failed archive never fails the submission.
type Archiver interface {
	Archive(ctx context.Context, key string, body []byte) error
}

// Service creates jobs and publishes them for ingestion.
type Service struct {
	jobs     JobStore
	queue    *queue.RedisQueue
	jobQueue string
	archiver Archiver // nil when archiving is disabled
}

// New constructs the gateway service. archiver may be nil.
func New(jobs JobStore, q *queue.RedisQueue, jobQueue string, archiver Archiver) *Service {
	return &Service{
		jobs:     jobs,
		queue:    q,
		jobQueue: jobQueue,
		archiver: archiver,
	}
}

// SubmitBulkCSV records a PENDING job for the upload and enqueues it.
func (s *Service) SubmitBulkCSV(ctx context.Context, raw []byte, actorID string) (string, error) {
	if len(raw) == 0 {
		return "", ErrEmptyUpload
	}

	jobID := uuid.New().String()
	now := time.Now().UTC()
	job := models.Job{
		ID:        jobID,
		Status:    models.JobPending,
		ActorID:   actorID,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.jobs.CreateJob(ctx, job); err != nil {
		return "", fmt.Errorf("create job: %w", err)
	}

	if s.archiver != nil {
		key := fmt.Sprintf("uploads/%s.csv", jobID)
		if err := s.archiver.Archive(ctx, key, raw); err != nil {
			slog.Warn("archiving upload failed", "job_id", jobID, "error", err)
		}
	}

	msg := queue.BulkCSVJob{
		Type:    queue.TypeBulkCSVJob,
		JobID:   jobID,
		CSV:     base64.StdEncoding.EncodeToString(raw),
		ActorID: actorID,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("encode job message: %w", err)
	}
	if err := s.queue.Publish(ctx, s.jobQueue, body); err != nil {
		return "", fmt.Errorf("publish job message: %w", err)
	}

	telemetry.JobsSubmitted.Inc()
	slog.Info("bulk csv job submitted", "job_id", jobID, "actor_id", actorID, "bytes", len(raw))
	return jobID, nil
}

// JobStatus returns the tracked job, or models.ErrNotFound.
func (s *Service) JobStatus(ctx context.Context, jobID string) (models.Job, error) {
	return s.jobs.GetJob(ctx, jobID)
}

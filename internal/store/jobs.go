package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"bulk-user-provisioner/internal/models"
)

// CreateJob inserts a job row in its initial state.
func (s *Store) CreateJob(ctx context.Context, job models.Job) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO csv_jobs (id, status, actor_id, success_count, failure_count, error_message, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, job.ID, job.Status, job.ActorID, job.SuccessCount, job.FailureCount, job.ErrorMessage, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// GetJob fetches a job by id.
func (s *Store) GetJob(ctx context.Context, id string) (models.Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, status, actor_id, success_count, failure_count, error_message, created_at, updated_at
		FROM csv_jobs WHERE id = $1
	`, id)

	var job models.Job
	var errMsg pgtype.Text
	if err := row.Scan(&job.ID, &job.Status, &job.ActorID, &job.SuccessCount, &job.FailureCount, &errMsg, &job.CreatedAt, &job.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Job{}, fmt.Errorf("job %s: %w", id, models.ErrNotFound)
		}
		return models.Job{}, fmt.Errorf("scan job: %w", err)
	}
	job.ErrorMessage = textPtr(errMsg)
	return job, nil
}

// UpdateJobProgress replaces status, counters, and error text in one write.
// Replacement rather than increment keeps redelivered job messages
// idempotent at the job level.
func (s *Store) UpdateJobProgress(ctx context.Context, id, status string, successCount, failureCount int, errorMessage *string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE csv_jobs
		SET status = $2, success_count = $3, failure_count = $4, error_message = $5, updated_at = NOW()
		WHERE id = $1
	`, id, status, successCount, failureCount, errorMessage)
	if err != nil {
		return fmt.Errorf("update job progress: %w", err)
	}
	return nil
}

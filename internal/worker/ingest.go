package worker

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"bulk-user-provisioner/internal/models"
	"bulk-user-provisioner/internal/queue"
	"bulk-user-provisioner/internal/telemetry"
	"bulk-user-provisioner/internal/validate"
)

// JobProgress is the ingestion stage's view of job persistence. Status
// writes replace counters rather than incrementing them, so reprocessing a
// redelivered job message converges on the same final record.
type JobProgress interface {
	UpdateJobProgress(ctx context.Context, id, status string, successCount, failureCount int, errorMessage *string) error
}

// Ingestor consumes bulk_csv_job messages: it parses the uploaded table,
// validates rows, republishes one create_user message per valid row, and
// finalizes the job record. A row failure never aborts the batch; only a
// payload-level decode/parse failure marks the job FAILED.
type Ingestor struct {
	jobs     JobProgress
	queue    *queue.RedisQueue
	rowQueue string
}

// NewIngestor wires the ingestion consumer.
func NewIngestor(jobs JobProgress, q *queue.RedisQueue, rowQueue string) *Ingestor {
	return &Ingestor{jobs: jobs, queue: q, rowQueue: rowQueue}
}

// Handle processes one job message. The message is considered handled
// regardless of outcome; there is no retry path.
func (in *Ingestor) Handle(ctx context.Context, body []byte) error {
	tag, err := queue.Tag(body)
	if err != nil {
		return err
	}
	if tag != queue.TypeBulkCSVJob {
		slog.Warn("ignoring message with unexpected type", "type", tag)
		return nil
	}

	msg, err := queue.DecodeBulkCSVJob(body)
	if err != nil {
		return err
	}

	slog.Info("processing bulk csv job", "job_id", msg.JobID, "actor_id", msg.ActorID)
	if err := in.jobs.UpdateJobProgress(ctx, msg.JobID, models.JobProcessing, 0, 0, nil); err != nil {
		return fmt.Errorf("mark job processing: %w", err)
	}

	rows, err := decodeTable(msg.CSV)
	if err != nil {
		reason := err.Error()
		telemetry.JobsFailed.Inc()
		slog.Error("bulk csv job failed", "job_id", msg.JobID, "error", err)
		return in.jobs.UpdateJobProgress(ctx, msg.JobID, models.JobFailed, 0, 0, &reason)
	}

	successCount := 0
	failureCount := 0
	var rowErrors []string

	for n, row := range rows {
		if reason := in.processRow(ctx, row, msg.ActorID); reason != "" {
			text := fmt.Sprintf("Row %d: %s", n+1, reason)
			rowErrors = append(rowErrors, text)
			slog.Warn("row rejected", "job_id", msg.JobID, "reason", text)
			failureCount++
			telemetry.RowsRejected.Inc()
			continue
		}
		successCount++
		telemetry.RowsAccepted.Inc()
	}

	var errorMessage *string
	if len(rowErrors) > 0 {
		joined := strings.Join(rowErrors, "; ")
		errorMessage = &joined
	}
	telemetry.JobsCompleted.Inc()
	slog.Info("bulk csv job completed", "job_id", msg.JobID, "success", successCount, "failure", failureCount)
	return in.jobs.UpdateJobProgress(ctx, msg.JobID, models.JobCompleted, successCount, failureCount, errorMessage)
}

// processRow returns the rejection reason, or "" when the row was accepted
// and its create_user message published. "Accepted" means handed to the
// downstream stage, not that a user was created.
func (in *Ingestor) processRow(ctx context.Context, row tableRow, actorID string) string {
	r := validate.Row{
		Name:     row.get("name"),
		Email:    row.get("email"),
		Password: row.get("password"),
		Role:     row.get("role"),
	}
	if err := validate.CheckRow(r); err != nil {
		return err.Error()
	}

	msg := queue.CreateUser{
		Type: queue.TypeCreateUser,
		User: queue.UserSpec{
			Name:       r.Name,
			Email:      r.Email,
			Password:   r.Password,
			Role:       r.Role,
			AccountIDs: splitAccountIDs(row.get("accountIds")),
		},
		ActorID: actorID,
	}
	body, err := json.Marshal(msg)
	if err != nil {
		return err.Error()
	}
	if err := in.queue.Publish(ctx, in.rowQueue, body); err != nil {
		return err.Error()
	}
	return ""
}

// splitAccountIDs splits the comma-joined sub-list inside the accountIds
// cell, trimming tokens and dropping empty ones. Order is preserved and
// duplicates are kept.
func splitAccountIDs(cell string) []string {
	if strings.TrimSpace(cell) == "" {
		return nil
	}
	var ids []string
	for _, tok := range strings.Split(cell, ",") {
		if trimmed := strings.TrimSpace(tok); trimmed != "" {
			ids = append(ids, trimmed)
		}
	}
	return ids
}

// tableRow maps recognized header names to trimmed cell values. Columns
// are matched by header name, not position.
type tableRow map[string]string

func (r tableRow) get(column string) string {
	return r[column]
}

// decodeTable base64-decodes and parses the uploaded file. Any failure
// here is payload-level: the whole job fails with zero counters.
func decodeTable(encoded string) ([]tableRow, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode csv payload: %w", err)
	}

	reader := csv.NewReader(bytes.NewReader(raw))
	reader.FieldsPerRecord = -1 // ragged rows: missing cells read as missing fields
	records, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse csv: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("parse csv: missing header row")
	}

	header := records[0]
	rows := make([]tableRow, 0, len(records)-1)
	for _, record := range records[1:] {
		row := make(tableRow, len(header))
		for i, column := range header {
			name := strings.TrimSpace(column)
			if i < len(record) {
				row[name] = strings.TrimSpace(record[i])
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

package store

import (
	"context"
	"fmt"

	"bulk-user-provisioner/internal/models"
)

// AppendAudit writes one audit record. Rows are never updated or deleted.
func (s *Store) AppendAudit(ctx context.Context, rec models.AuditRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO audit_logs (id, actor_id, action, details, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`, rec.ID, rec.ActorID, rec.Action, rec.Details, rec.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert audit record: %w", err)
	}
	return nil
}

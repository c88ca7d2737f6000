package store

import (
	"context"
	"fmt"

	"bulk-user-provisioner/internal/models"
)

// CreateAssignment inserts a user-account assignment.
func (s *Store) CreateAssignment(ctx context.Context, a models.Assignment) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO user_accounts (id, user_id, account_id, assigned_at)
		VALUES ($1, $2, $3, $4)
	`, a.ID, a.UserID, a.AccountID, a.AssignedAt)
	if err != nil {
		return fmt.Errorf("insert assignment: %w", err)
	}
	return nil
}

// DeleteAssignment removes an assignment by id.
func (s *Store) DeleteAssignment(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM user_accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	return nil
}

// ListAssignmentsByUser returns all assignments held by a user.
func (s *Store) ListAssignmentsByUser(ctx context.Context, userID string) ([]models.Assignment, error) {
	return s.listAssignments(ctx, `user_id`, userID)
}

// ListAssignmentsByAccount returns all live assignments on an account.
func (s *Store) ListAssignmentsByAccount(ctx context.Context, accountID string) ([]models.Assignment, error) {
	return s.listAssignments(ctx, `account_id`, accountID)
}

func (s *Store) listAssignments(ctx context.Context, column, value string) ([]models.Assignment, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, user_id, account_id, assigned_at FROM user_accounts WHERE `+column+` = $1
	`, value)
	if err != nil {
		return nil, fmt.Errorf("query assignments: %w", err)
	}
	defer rows.Close()

	var out []models.Assignment
	for rows.Next() {
		var a models.Assignment
		if err := rows.Scan(&a.ID, &a.UserID, &a.AccountID, &a.AssignedAt); err != nil {
			return nil, fmt.Errorf("scan assignment: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

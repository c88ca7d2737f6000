package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"bulk-user-provisioner/internal/models"
)

// CreateUser inserts a user row.
func (s *Store) CreateUser(ctx context.Context, user models.User) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, first_name, last_name, email, password_hash, role, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, user.ID, user.FirstName, user.LastName, user.Email, user.PasswordHash, user.Role, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

// GetUser fetches a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (models.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, password_hash, role, created_at, updated_at
		FROM users WHERE id = $1
	`, id)

	var user models.User
	var first, last pgtype.Text
	if err := row.Scan(&user.ID, &first, &last, &user.Email, &user.PasswordHash, &user.Role, &user.CreatedAt, &user.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.User{}, fmt.Errorf("user %s: %w", id, models.ErrNotFound)
		}
		return models.User{}, fmt.Errorf("scan user: %w", err)
	}
	user.FirstName = textPtr(first)
	user.LastName = textPtr(last)
	return user, nil
}

// ExistsByEmail reports whether a user with this email is already present.
func (s *Store) ExistsByEmail(ctx context.Context, email string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS(SELECT 1 FROM users WHERE email = $1)
	`, email).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query user by email: %w", err)
	}
	return exists, nil
}

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"bulk-user-provisioner/internal/models"
)

// CreateAccount inserts an account row.
func (s *Store) CreateAccount(ctx context.Context, acc models.Account) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO accounts (id, name, provider, provider_account_id, meta, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, acc.ID, acc.Name, acc.Provider, acc.ProviderAccountID, acc.Meta, acc.Status, acc.CreatedAt, acc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert account: %w", err)
	}
	return nil
}

// GetAccount fetches an account by id.
func (s *Store) GetAccount(ctx context.Context, id string) (models.Account, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, provider, provider_account_id, meta, status, created_at, updated_at
		FROM accounts WHERE id = $1
	`, id)

	var acc models.Account
	if err := row.Scan(&acc.ID, &acc.Name, &acc.Provider, &acc.ProviderAccountID, &acc.Meta, &acc.Status, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return models.Account{}, fmt.Errorf("account %s: %w", id, models.ErrNotFound)
		}
		return models.Account{}, fmt.Errorf("scan account: %w", err)
	}
	return acc, nil
}

// ListAccounts returns every account.
func (s *Store) ListAccounts(ctx context.Context) ([]models.Account, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, provider, provider_account_id, meta, status, created_at, updated_at
		FROM accounts ORDER BY created_at
	`)
	if err != nil {
		return nil, fmt.Errorf("query accounts: %w", err)
	}
	defer rows.Close()

	var accounts []models.Account
	for rows.Next() {
		var acc models.Account
		if err := rows.Scan(&acc.ID, &acc.Name, &acc.Provider, &acc.ProviderAccountID, &acc.Meta, &acc.Status, &acc.CreatedAt, &acc.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

// UpdateAccountStatus sets the ORPHAN/ASSIGNED flag.
func (s *Store) UpdateAccountStatus(ctx context.Context, id, status string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE accounts SET status = $2, updated_at = NOW() WHERE id = $1
	`, id, status)
	if err != nil {
		return fmt.Errorf("update account status: %w", err)
	}
	return nil
}

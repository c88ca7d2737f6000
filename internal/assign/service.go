// Package assign is the synchronous account-assignment path. It shares the
// Account lifecycle with the provisioning consumer: both flip the
// ORPHAN/ASSIGNED flag opportunistically at their own mutation sites, and
// the end state converges because the flip is idempotent.
package assign

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"bulk-user-provisioner/internal/models"
	"bulk-user-provisioner/internal/telemetry"
)

// ErrUserNotFound reports a missing target user.
var ErrUserNotFound = errors.New("user not found")

// ErrNotCustomer rejects assignment to users outside the CUSTOMER role.
var ErrNotCustomer = errors.New("can only assign accounts to CUSTOMER role users")

// ErrNoAccounts rejects onboarding calls without account ids.
var ErrNoAccounts = errors.New("at least one accountId must be provided")

type UserStore interface {
	GetUser(ctx context.Context, id string) (models.User, error)
}

type AccountStore interface {
	GetAccount(ctx context.Context, id string) (models.Account, error)
	CreateAccount(ctx context.Context, acc models.Account) error
	ListAccounts(ctx context.Context) ([]models.Account, error)
	UpdateAccountStatus(ctx context.Context, id, status string) error
}

type AssignmentStore interface {
	CreateAssignment(ctx context.Context, a models.Assignment) error
	DeleteAssignment(ctx context.Context, id string) error
	ListAssignmentsByUser(ctx context.Context, userID string) ([]models.Assignment, error)
	ListAssignmentsByAccount(ctx context.Context, accountID string) ([]models.Assignment, error)
}

type AuditStore interface {
	AppendAudit(ctx context.Context, rec models.AuditRecord) error
}

// Service mutates assignments and account status on behalf of API callers.
type Service struct {
	users       UserStore
	accounts    AccountStore
	assignments AssignmentStore
	audit       AuditStore
}

func New(users UserStore, accounts AccountStore, assignments AssignmentStore, audit AuditStore) *Service {
	return &Service{
		users:       users,
		accounts:    accounts,
		assignments: assignments,
		audit:       audit,
	}
}

// AssignAccounts grants the user visibility into each listed account.
// Unknown accounts are skipped with a warning; already-assigned accounts
// are left alone. Returns the number of assignments created.
func (s *Service) AssignAccounts(ctx context.Context, userID string, accountIDs []string, actorID string) (int, error) {
	user, err := s.users.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return 0, ErrUserNotFound
		}
		return 0, fmt.Errorf("look up user: %w", err)
	}
	if user.Role != models.RoleCustomer {
		return 0, ErrNotCustomer
	}

	existing, err := s.assignments.ListAssignmentsByUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("list assignments: %w", err)
	}
	held := make(map[string]bool, len(existing))
	for _, a := range existing {
		held[a.AccountID] = true
	}

	assignedCount := 0
	for _, accountID := range accountIDs {
		if held[accountID] {
			continue
		}
		added, err := s.assignOne(ctx, userID, accountID)
		if err != nil {
			return assignedCount, err
		}
		if added {
			held[accountID] = true
			assignedCount++
		}
	}

	s.writeAudit(ctx, actorID, "ASSIGN_ACCOUNTS",
		fmt.Sprintf("Assigned %d accounts to user %s", assignedCount, userID))
	return assignedCount, nil
}

// ReplaceAccounts removes the user's current assignments and installs the
// given set. Accounts left with zero live assignments return to ORPHAN.
func (s *Service) ReplaceAccounts(ctx context.Context, userID string, accountIDs []string, actorID string) error {
	if _, err := s.users.GetUser(ctx, userID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("look up user: %w", err)
	}

	old, err := s.assignments.ListAssignmentsByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list assignments: %w", err)
	}
	for _, a := range old {
		if err := s.assignments.DeleteAssignment(ctx, a.ID); err != nil {
			return fmt.Errorf("delete assignment: %w", err)
		}
		remaining, err := s.assignments.ListAssignmentsByAccount(ctx, a.AccountID)
		if err != nil {
			return fmt.Errorf("list account assignments: %w", err)
		}
		if len(remaining) == 0 {
			if err := s.accounts.UpdateAccountStatus(ctx, a.AccountID, models.AccountOrphan); err != nil {
				return fmt.Errorf("flip account %s status: %w", a.AccountID, err)
			}
			slog.Info("account became orphan after unassignment", "account_id", a.AccountID)
		}
	}

	assignedCount := 0
	for _, accountID := range accountIDs {
		added, err := s.assignOne(ctx, userID, accountID)
		if err != nil {
			return err
		}
		if added {
			assignedCount++
		}
	}

	s.writeAudit(ctx, actorID, "UPDATE_USER_ACCOUNTS",
		fmt.Sprintf("Replaced assignments for user %s: removed %d, assigned %d", userID, len(old), assignedCount))
	return nil
}

// OnboardAccounts registers the listed accounts, creating missing ones as
// ORPHAN and returning existing ones untouched.
func (s *Service) OnboardAccounts(ctx context.Context, accountIDs []string, actorID string) ([]models.Account, error) {
	if len(accountIDs) == 0 {
		return nil, ErrNoAccounts
	}

	out := make([]models.Account, 0, len(accountIDs))
	for _, id := range accountIDs {
		acc, err := s.accounts.GetAccount(ctx, id)
		if err == nil {
			out = append(out, acc)
			continue
		}
		if !errors.Is(err, models.ErrNotFound) {
			return nil, fmt.Errorf("look up account %s: %w", id, err)
		}
		now := time.Now().UTC()
		acc = models.Account{
			ID:        id,
			Status:    models.AccountOrphan,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := s.accounts.CreateAccount(ctx, acc); err != nil {
			return nil, fmt.Errorf("create account %s: %w", id, err)
		}
		slog.Info("onboarded account", "account_id", id)
		out = append(out, acc)
	}

	s.writeAudit(ctx, actorID, "ONBOARD_ACCOUNTS",
		fmt.Sprintf("Onboarded accounts: %v", accountIDs))
	return out, nil
}

// OrphanAccounts lists accounts with zero live assignments.
func (s *Service) OrphanAccounts(ctx context.Context) ([]models.Account, error) {
	all, err := s.accounts.ListAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	var orphans []models.Account
	for _, acc := range all {
		live, err := s.assignments.ListAssignmentsByAccount(ctx, acc.ID)
		if err != nil {
			return nil, fmt.Errorf("list account assignments: %w", err)
		}
		if len(live) == 0 {
			orphans = append(orphans, acc)
		}
	}
	return orphans, nil
}

// assignOne creates a single assignment and flips the account to ASSIGNED
// if it was ORPHAN. Returns false when the account does not exist.
func (s *Service) assignOne(ctx context.Context, userID, accountID string) (bool, error) {
	acc, err := s.accounts.GetAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			telemetry.AccountsMissing.Inc()
			slog.Warn("account not found, skipping assignment", "account_id", accountID)
			return false, nil
		}
		return false, fmt.Errorf("look up account %s: %w", accountID, err)
	}

	a := models.Assignment{
		ID:         uuid.New().String(),
		UserID:     userID,
		AccountID:  accountID,
		AssignedAt: time.Now().UTC(),
	}
	if err := s.assignments.CreateAssignment(ctx, a); err != nil {
		return false, fmt.Errorf("create assignment: %w", err)
	}
	telemetry.AssignmentsMade.Inc()

	if acc.Status == models.AccountOrphan {
		if err := s.accounts.UpdateAccountStatus(ctx, accountID, models.AccountAssigned); err != nil {
			return false, fmt.Errorf("flip account %s status: %w", accountID, err)
		}
	}
	return true, nil
}

// writeAudit appends an audit record; the main operation never fails on an
// audit write error.
func (s *Service) writeAudit(ctx context.Context, actorID, action, details string) {
	rec := models.AuditRecord{
		ID:        uuid.New().String(),
		ActorID:   actorID,
		Action:    action,
		Details:   details,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.audit.AppendAudit(ctx, rec); err != nil {
		slog.Error("failed to append audit record", "action", action, "error", err)
	}
}

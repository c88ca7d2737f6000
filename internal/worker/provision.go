package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"bulk-user-provisioner/internal/models"
	"bulk-user-provisioner/internal/queue"
	"bulk-user-provisioner/internal/telemetry"
	"bulk-user-provisioner/internal/validate"
)

// UserStore is the provisioning stage's view of user persistence.
type UserStore interface {
	ExistsByEmail(ctx context.Context, email string) (bool, error)
	CreateUser(ctx context.Context, user models.User) error
}

// AccountStore looks up and flips accounts during assignment.
type AccountStore interface {
	GetAccount(ctx context.Context, id string) (models.Account, error)
	UpdateAccountStatus(ctx context.Context, id, status string) error
}

// AssignmentStore creates user-account assignments.
type AssignmentStore interface {
	CreateAssignment(ctx context.Context, a models.Assignment) error
}

// AuditStore appends to the action log.
type AuditStore interface {
	AppendAudit(ctx context.Context, rec models.AuditRecord) error
}

// Provisioner consumes create_user messages and turns them into persisted
// users with account assignments. Processing is fire-and-forget: failures
// are logged and the message is dropped, never requeued, and never
// reported back to the originating job.
type Provisioner struct {
	users       UserStore
	accounts    AccountStore
	assignments AssignmentStore
	audit       AuditStore
	bcryptCost  int
}

// NewProvisioner wires the provisioning consumer.
func NewProvisioner(users UserStore, accounts AccountStore, assignments AssignmentStore, audit AuditStore, bcryptCost int) *Provisioner {
	return &Provisioner{
		users:       users,
		accounts:    accounts,
		assignments: assignments,
		audit:       audit,
		bcryptCost:  bcryptCost,
	}
}

// Handle processes one row message. Side effects across user creation,
// assignment, and audit are best-effort, not transactional: a failure
// mid-loop leaves partial state behind, which is a valid terminal outcome.
func (p *Provisioner) Handle(ctx context.Context, body []byte) error {
	tag, err := queue.Tag(body)
	if err != nil {
		return err
	}
	if tag != queue.TypeCreateUser {
		slog.Warn("ignoring message with unexpected type", "type", tag)
		return nil
	}

	msg, err := queue.DecodeCreateUser(body)
	if err != nil {
		return err
	}
	spec := msg.User

	if err := validate.Email(spec.Email); err != nil {
		slog.Error("validation failed for user", "email", spec.Email, "error", err)
		return nil
	}
	if err := validate.Password(spec.Password); err != nil {
		slog.Error("validation failed for user", "email", spec.Email, "error", err)
		return nil
	}
	if !validate.Role(spec.Role) {
		slog.Error("validation failed for user", "email", spec.Email, "error", "invalid role "+spec.Role)
		return nil
	}

	// Redelivered or duplicate rows must not produce duplicate users.
	exists, err := p.users.ExistsByEmail(ctx, spec.Email)
	if err != nil {
		return fmt.Errorf("check duplicate email: %w", err)
	}
	if exists {
		telemetry.DuplicatesSkipped.Inc()
		slog.Warn("skipping duplicate user", "email", spec.Email)
		return nil
	}

	hash, err := models.HashPassword(spec.Password, p.bcryptCost)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	first, last := splitName(spec.Name)
	now := time.Now().UTC()
	user := models.User{
		ID:           uuid.New().String(),
		FirstName:    first,
		LastName:     last,
		Email:        spec.Email,
		PasswordHash: hash,
		Role:         spec.Role,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := p.users.CreateUser(ctx, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	telemetry.UsersProvisioned.Inc()
	slog.Info("created user", "email", spec.Email, "role", spec.Role)

	assignedCount := 0
	for _, accountID := range spec.AccountIDs {
		acc, err := p.accounts.GetAccount(ctx, accountID)
		if err != nil {
			if errors.Is(err, models.ErrNotFound) {
				telemetry.AccountsMissing.Inc()
				slog.Warn("account not found, skipping assignment", "account_id", accountID)
				continue
			}
			return fmt.Errorf("look up account %s: %w", accountID, err)
		}

		assignment := models.Assignment{
			ID:         uuid.New().String(),
			UserID:     user.ID,
			AccountID:  acc.ID,
			AssignedAt: time.Now().UTC(),
		}
		if err := p.assignments.CreateAssignment(ctx, assignment); err != nil {
			return fmt.Errorf("assign account %s: %w", accountID, err)
		}
		assignedCount++
		telemetry.AssignmentsMade.Inc()

		if acc.Status == models.AccountOrphan {
			if err := p.accounts.UpdateAccountStatus(ctx, acc.ID, models.AccountAssigned); err != nil {
				return fmt.Errorf("flip account %s status: %w", accountID, err)
			}
		}
	}

	rec := models.AuditRecord{
		ID:        uuid.New().String(),
		ActorID:   msg.ActorID,
		Action:    "ASYNC_CREATE_USER",
		Details:   fmt.Sprintf("Created user %s with role %s and %d accounts", spec.Email, spec.Role, assignedCount),
		CreatedAt: time.Now().UTC(),
	}
	if err := p.audit.AppendAudit(ctx, rec); err != nil {
		return fmt.Errorf("append audit record: %w", err)
	}

	slog.Info("provisioned user from queue", "email", spec.Email, "assigned", assignedCount)
	return nil
}

// splitName derives (firstName, lastName) from the free-form name column.
// Internal whitespace collapses; a lone token becomes the first name; the
// remainder rejoins with single spaces as the last name.
func splitName(name string) (*string, *string) {
	fields := strings.Fields(name)
	switch len(fields) {
	case 0:
		return nil, nil
	case 1:
		return &fields[0], nil
	default:
		last := strings.Join(fields[1:], " ")
		return &fields[0], &last
	}
}

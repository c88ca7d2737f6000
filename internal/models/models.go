package models

import (
	"errors"
	"time"

	"golang.org/x/crypto/bcrypt"
)

// Job lifecycle states persisted in Postgres. Transitions are monotonic:
// a COMPLETED or FAILED job is never moved back to an earlier state.
const (
	JobPending    = "PENDING"
	JobProcessing = "PROCESSING"
	JobCompleted  = "COMPLETED"
	JobFailed     = "FAILED"
)

// User roles accepted by the pipeline.
const (
	RoleAdmin    = "ADMIN"
	RoleReadOnly = "READ_ONLY"
	RoleCustomer = "CUSTOMER"
)

// Account visibility states. An account is ASSIGNED iff at least one live
// assignment exists; the flag is maintained opportunistically at each
// mutation site rather than under a global transaction.
const (
	AccountOrphan   = "ORPHAN"
	AccountAssigned = "ASSIGNED"
)

// ErrNotFound is returned by stores when a looked-up entity does not exist.
var ErrNotFound = errors.New("not found")

// Job tracks one bulk CSV upload. successCount means "accepted for async
// processing", not "user confirmed created"; downstream provisioning
// failures are invisible here.
type Job struct {
	ID           string    `json:"id"`
	Status       string    `json:"status"`
	ActorID      string    `json:"actorId"`
	SuccessCount int       `json:"successCount"`
	FailureCount int       `json:"failureCount"`
	ErrorMessage *string   `json:"errorMessage,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// User is a provisioned account holder. First/last name are derived from the
// free-form name column and may both be absent.
type User struct {
	ID           string    `json:"id"`
	FirstName    *string   `json:"firstName,omitempty"`
	LastName     *string   `json:"lastName,omitempty"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         string    `json:"role"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Account is a cloud account visible to assigned users.
type Account struct {
	ID                string    `json:"id"`
	Name              string    `json:"name"`
	Provider          string    `json:"provider"`
	ProviderAccountID string    `json:"providerAccountId"`
	Meta              string    `json:"meta,omitempty"`
	Status            string    `json:"status"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

// Assignment links a user to an account, unique per (user, account).
type Assignment struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	AccountID  string    `json:"accountId"`
	AssignedAt time.Time `json:"assignedAt"`
}

// AuditRecord is a write-once entry describing one state-changing action.
type AuditRecord struct {
	ID        string    `json:"id"`
	ActorID   string    `json:"actorId"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	CreatedAt time.Time `json:"createdAt"`
}

// HashPassword produces a one-way salted hash for storage.
func HashPassword(password string, cost int) (string, error) {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPasswordHash reports whether password matches the stored hash.
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}

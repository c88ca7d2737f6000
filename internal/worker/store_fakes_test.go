package worker

import (
	"context"
	"fmt"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"

	"bulk-user-provisioner/internal/models"
	"bulk-user-provisioner/internal/queue"
)

// memStore is an in-memory stand-in for the Postgres store, implementing
// the consumer-side interfaces.
type memStore struct {
	mu          sync.Mutex
	jobs        map[string]models.Job
	users       []models.User
	accounts    map[string]models.Account
	assignments []models.Assignment
	audits      []models.AuditRecord
}

func newMemStore() *memStore {
	return &memStore{
		jobs:     make(map[string]models.Job),
		accounts: make(map[string]models.Account),
	}
}

func (m *memStore) UpdateJobProgress(_ context.Context, id, status string, successCount, failureCount int, errorMessage *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	job := m.jobs[id]
	job.ID = id
	job.Status = status
	job.SuccessCount = successCount
	job.FailureCount = failureCount
	job.ErrorMessage = errorMessage
	m.jobs[id] = job
	return nil
}

func (m *memStore) ExistsByEmail(_ context.Context, email string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (m *memStore) CreateUser(_ context.Context, user models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return fmt.Errorf("duplicate email %s", user.Email)
		}
	}
	m.users = append(m.users, user)
	return nil
}

func (m *memStore) GetAccount(_ context.Context, id string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return models.Account{}, fmt.Errorf("account %s: %w", id, models.ErrNotFound)
	}
	return acc, nil
}

func (m *memStore) UpdateAccountStatus(_ context.Context, id, status string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	acc, ok := m.accounts[id]
	if !ok {
		return fmt.Errorf("account %s: %w", id, models.ErrNotFound)
	}
	acc.Status = status
	m.accounts[id] = acc
	return nil
}

func (m *memStore) CreateAssignment(_ context.Context, a models.Assignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.assignments = append(m.assignments, a)
	return nil
}

func (m *memStore) AppendAudit(_ context.Context, rec models.AuditRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, rec)
	return nil
}

func (m *memStore) addAccount(id, status string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[id] = models.Account{ID: id, Status: status}
}

func (m *memStore) job(id string) models.Job {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.jobs[id]
}

func newTestQueue(t *testing.T) *queue.RedisQueue {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis: %v", err)
	}
	t.Cleanup(mr.Close)
	return queue.NewRedisQueueWithClient(redis.NewClient(&redis.Options{Addr: mr.Addr()}))
}

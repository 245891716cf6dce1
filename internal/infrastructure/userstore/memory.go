// Package userstore provides user persistence. The in-memory implementation
// is the default backend; accounts do not survive a restart.
package userstore

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopagent/backend/internal/domain"
)

// MemoryStore is a thread-safe in-memory user repository keyed by email.
type MemoryStore struct {
	mu    sync.RWMutex
	users map[string]*domain.User
}

// NewMemoryStore creates an empty user store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users: make(map[string]*domain.User),
	}
}

// Create stores a new user. The email is treated case-insensitively and an
// ID and creation timestamp are assigned if missing.
func (s *MemoryStore) Create(ctx context.Context, user *domain.User) error {
	key := normalizeEmail(user.Email)
	if key == "" {
		return domain.ErrInvalidRequest
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.users[key]; exists {
		return domain.ErrUserExists
	}

	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	stored := *user
	s.users[key] = &stored
	return nil
}

// GetByEmail looks a user up by email, case-insensitively.
func (s *MemoryStore) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, exists := s.users[normalizeEmail(email)]
	if !exists {
		return nil, domain.ErrUserNotFound
	}

	copied := *user
	return &copied, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

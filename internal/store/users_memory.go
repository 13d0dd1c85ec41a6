package store

import (
	"context"
	"strings"
	"sync"

	"github.com/serroba/shortlinks/internal/auth"
)

// UserMemoryStore is an in-memory implementation of auth.Repository.
type UserMemoryStore struct {
	mu      sync.RWMutex
	byEmail map[string]*auth.User
}

// NewUserMemoryStore creates a new in-memory user store.
func NewUserMemoryStore() *UserMemoryStore {
	return &UserMemoryStore{byEmail: make(map[string]*auth.User)}
}

func (m *UserMemoryStore) Create(_ context.Context, user *auth.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := strings.ToLower(user.Email)
	if _, exists := m.byEmail[key]; exists {
		return auth.ErrUserExists
	}

	stored := *user
	m.byEmail[key] = &stored

	return nil
}

func (m *UserMemoryStore) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	user, ok := m.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, auth.ErrNotFound
	}

	u := *user

	return &u, nil
}

var _ auth.Repository = (*UserMemoryStore)(nil)

package memory

import (
	"context"
	"sync"

	"factoryScope/internal/model"
	"factoryScope/internal/storage"
)

// UserStore is an in-memory implementation of storage.UserStore.
type UserStore struct {
	mu   sync.RWMutex
	data map[string]*model.User
}

// NewUserStore creates a new in-memory user store.
func NewUserStore() *UserStore {
	return &UserStore{data: make(map[string]*model.User)}
}

var _ storage.UserStore = (*UserStore)(nil)

// Get retrieves a user by address.
func (s *UserStore) Get(_ context.Context, address string) (*model.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	user, ok := s.data[address]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneUser(user), nil
}

// Upsert creates the document if absent, then applies fn while holding the
// store lock.
func (s *UserStore) Upsert(_ context.Context, address string, fn func(*model.User) error) error {
	if address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.data[address]
	if !ok {
		current = model.NewUser(address)
	}

	next := cloneUser(current)
	if err := fn(next); err != nil {
		return err
	}
	s.data[address] = next
	return nil
}

func cloneUser(user *model.User) *model.User {
	out := *user
	if user.CreatedTokens != nil {
		out.CreatedTokens = make([]model.CreatedToken, len(user.CreatedTokens))
		copy(out.CreatedTokens, user.CreatedTokens)
	}
	return &out
}

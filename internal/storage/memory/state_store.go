package memory

import (
	"context"
	"sync"

	"factoryScope/internal/storage"
)

// StateStore is an in-memory implementation of storage.StateStore.
type StateStore struct {
	mu   sync.RWMutex
	data map[string]uint64
}

// NewStateStore creates a new in-memory state store.
func NewStateStore() *StateStore {
	return &StateStore{data: make(map[string]uint64)}
}

var _ storage.StateStore = (*StateStore)(nil)

// LoadCursor returns the saved block for a cursor name.
func (s *StateStore) LoadCursor(_ context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, storage.ErrInvalidInput
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	block, ok := s.data[name]
	return block, ok, nil
}

// SaveCursor stores the block for a cursor name.
func (s *StateStore) SaveCursor(_ context.Context, name string, block uint64) error {
	if name == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.data[name] = block
	return nil
}

// NewStores bundles fresh in-memory implementations of every collection.
func NewStores() storage.Stores {
	return storage.Stores{
		Tokens: NewTokenStore(),
		Trades: NewTradeStore(),
		Users:  NewUserStore(),
		State:  NewStateStore(),
	}
}

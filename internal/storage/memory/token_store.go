package memory

import (
	"context"
	"sort"
	"sync"

	"factoryScope/internal/model"
	"factoryScope/internal/storage"
)

// TokenStore is an in-memory implementation of storage.TokenStore.
type TokenStore struct {
	mu   sync.RWMutex
	data map[string]*model.Token
}

// NewTokenStore creates a new in-memory token store.
func NewTokenStore() *TokenStore {
	return &TokenStore{data: make(map[string]*model.Token)}
}

var _ storage.TokenStore = (*TokenStore)(nil)

// Create inserts a new token document. Returns ErrDuplicateKey if the
// address already exists.
func (s *TokenStore) Create(_ context.Context, token *model.Token) error {
	if token == nil || token.Address == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[token.Address]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[token.Address] = cloneToken(token)
	return nil
}

// Get retrieves a token by address.
func (s *TokenStore) Get(_ context.Context, address string) (*model.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	token, ok := s.data[address]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return cloneToken(token), nil
}

// Update applies fn to the document while holding the store lock, giving
// single-document read-modify-write atomicity.
func (s *TokenStore) Update(_ context.Context, address string, fn func(*model.Token) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.data[address]
	if !ok {
		return storage.ErrNotFound
	}

	next := cloneToken(current)
	if err := fn(next); err != nil {
		return err
	}
	s.data[address] = next
	return nil
}

// List returns all tokens, newest creation block first.
func (s *TokenStore) List(_ context.Context) ([]*model.Token, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]*model.Token, 0, len(s.data))
	for _, token := range s.data {
		out = append(out, cloneToken(token))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreationBlock != out[j].CreationBlock {
			return out[i].CreationBlock > out[j].CreationBlock
		}
		return out[i].Address < out[j].Address
	})
	return out, nil
}

func cloneToken(token *model.Token) *model.Token {
	out := *token
	if token.LastTrade != nil {
		lastTrade := *token.LastTrade
		out.LastTrade = &lastTrade
	}
	return &out
}

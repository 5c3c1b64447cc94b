package postgres

import (
	"context"
	"fmt"

	"factoryScope/internal/storage"
)

// StateStore implements storage.StateStore using PostgreSQL.
type StateStore struct {
	pool *Pool
}

// NewStateStore creates a new StateStore.
func NewStateStore(pool *Pool) *StateStore {
	return &StateStore{pool: pool}
}

var _ storage.StateStore = (*StateStore)(nil)

// LoadCursor returns the saved block for a cursor name.
func (s *StateStore) LoadCursor(ctx context.Context, name string) (uint64, bool, error) {
	if name == "" {
		return 0, false, storage.ErrInvalidInput
	}

	var block int64
	row := s.pool.QueryRow(ctx, `SELECT last_processed_block FROM projector_state WHERE name=$1`, name)
	if err := row.Scan(&block); err != nil {
		if isNotFoundError(err) {
			return 0, false, nil
		}
		return 0, false, fmt.Errorf("load cursor: %w", err)
	}
	return uint64(block), true, nil
}

// SaveCursor upserts the block for a cursor name.
func (s *StateStore) SaveCursor(ctx context.Context, name string, block uint64) error {
	if name == "" {
		return storage.ErrInvalidInput
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO projector_state (name, last_processed_block, updated_at)
		VALUES ($1, $2, now())
		ON CONFLICT (name) DO UPDATE
		SET last_processed_block = EXCLUDED.last_processed_block, updated_at = now()
	`, name, int64(block))
	if err != nil {
		return fmt.Errorf("save cursor: %w", err)
	}
	return nil
}

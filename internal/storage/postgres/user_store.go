package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"factoryScope/internal/model"
	"factoryScope/internal/storage"
)

// UserStore implements storage.UserStore using PostgreSQL.
type UserStore struct {
	pool *Pool
}

// NewUserStore creates a new UserStore.
func NewUserStore(pool *Pool) *UserStore {
	return &UserStore{pool: pool}
}

var _ storage.UserStore = (*UserStore)(nil)

const userColumns = `
	address, first_seen, last_active, total_trades, created_tokens,
	total_volume_eth, total_tokens_bought, total_tokens_sold,
	last_applied_block, last_applied_log_index
`

// Get retrieves a user by address.
func (s *UserStore) Get(ctx context.Context, address string) (*model.User, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE address=$1`, address)
	user, err := scanUser(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	return user, nil
}

// Upsert creates the document if absent, then applies fn inside a
// transaction holding a row lock.
func (s *UserStore) Upsert(ctx context.Context, address string, fn func(*model.User) error) error {
	if address == "" {
		return storage.ErrInvalidInput
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Ensure-exists: insert the empty document first so the row lock below
	// always has a row to take.
	_, err = tx.Exec(ctx, `
		INSERT INTO users (address, first_seen, last_active, total_trades, created_tokens,
			total_volume_eth, total_tokens_bought, total_tokens_sold, updated_at)
		VALUES ($1, '', '', 0, '[]', '0', '0', '0', now())
		ON CONFLICT (address) DO NOTHING
	`, address)
	if err != nil {
		return fmt.Errorf("ensure user: %w", err)
	}

	row := tx.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE address=$1 FOR UPDATE`, address)
	user, err := scanUser(row)
	if err != nil {
		return fmt.Errorf("lock user: %w", err)
	}

	if err := fn(user); err != nil {
		return err
	}

	createdTokens, err := json.Marshal(user.CreatedTokens)
	if err != nil {
		return fmt.Errorf("encode created tokens: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE users SET
			first_seen=$2, last_active=$3, total_trades=$4, created_tokens=$5,
			total_volume_eth=$6, total_tokens_bought=$7, total_tokens_sold=$8,
			last_applied_block=$9, last_applied_log_index=$10,
			updated_at=now()
		WHERE address=$1
	`,
		user.Address,
		user.FirstSeen,
		user.LastActive,
		int64(user.TotalTrades),
		createdTokens,
		user.Statistics.TotalVolumeETH,
		user.Statistics.TotalTokensBought,
		user.Statistics.TotalTokensSold,
		int64(user.LastAppliedBlock),
		int64(user.LastAppliedLogIndex),
	)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var (
		user            model.User
		totalTrades     int64
		createdTokens   []byte
		appliedBlock    int64
		appliedLogIndex int64
	)

	err := row.Scan(
		&user.Address,
		&user.FirstSeen,
		&user.LastActive,
		&totalTrades,
		&createdTokens,
		&user.Statistics.TotalVolumeETH,
		&user.Statistics.TotalTokensBought,
		&user.Statistics.TotalTokensSold,
		&appliedBlock,
		&appliedLogIndex,
	)
	if err != nil {
		return nil, err
	}

	user.TotalTrades = uint64(totalTrades)
	user.LastAppliedBlock = uint64(appliedBlock)
	user.LastAppliedLogIndex = uint64(appliedLogIndex)
	if len(createdTokens) > 0 {
		if err := json.Unmarshal(createdTokens, &user.CreatedTokens); err != nil {
			return nil, fmt.Errorf("decode created tokens: %w", err)
		}
	}

	return &user, nil
}

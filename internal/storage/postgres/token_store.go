package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"factoryScope/internal/model"
	"factoryScope/internal/storage"
)

// TokenStore implements storage.TokenStore using PostgreSQL.
type TokenStore struct {
	pool *Pool
}

// NewTokenStore creates a new TokenStore.
func NewTokenStore(pool *Pool) *TokenStore {
	return &TokenStore{pool: pool}
}

var _ storage.TokenStore = (*TokenStore)(nil)

const tokenColumns = `
	address, name, symbol, image_url, creator, funding_goal,
	created_at, creation_block, transaction_hash,
	current_state, collateral, final_collateral, halted_at, halt_block,
	total_supply, current_price, volume_eth, trade_count, unique_holders,
	last_trade, last_applied_block, last_applied_log_index
`

// Create inserts a new token document. Returns ErrDuplicateKey if the
// address already exists.
func (s *TokenStore) Create(ctx context.Context, token *model.Token) error {
	if token == nil || token.Address == "" {
		return storage.ErrInvalidInput
	}

	lastTrade, err := marshalLastTrade(token.LastTrade)
	if err != nil {
		return err
	}

	query := `
		INSERT INTO tokens (` + tokenColumns + `, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22, now())
	`
	_, err = s.pool.Exec(ctx, query,
		token.Address,
		token.Name,
		token.Symbol,
		token.ImageURL,
		token.Creator,
		token.FundingGoal,
		token.CreatedAt,
		int64(token.CreationBlock),
		token.TransactionHash,
		token.State,
		token.Collateral,
		nullString(token.FinalCollateral),
		nullString(token.HaltedAt),
		nullInt64(token.HaltBlock),
		token.Statistics.TotalSupply,
		token.Statistics.CurrentPrice,
		token.Statistics.VolumeETH,
		int64(token.Statistics.TradeCount),
		int64(token.Statistics.UniqueHolders),
		lastTrade,
		int64(token.LastAppliedBlock),
		int64(token.LastAppliedLogIndex),
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateKey
		}
		return fmt.Errorf("insert token: %w", err)
	}
	return nil
}

// Get retrieves a token by address.
func (s *TokenStore) Get(ctx context.Context, address string) (*model.Token, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE address=$1`, address)
	token, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get token: %w", err)
	}
	return token, nil
}

// Update applies fn inside a transaction holding a row lock, giving
// single-document read-modify-write atomicity.
func (s *TokenStore) Update(ctx context.Context, address string, fn func(*model.Token) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx, `SELECT `+tokenColumns+` FROM tokens WHERE address=$1 FOR UPDATE`, address)
	token, err := scanToken(row)
	if err != nil {
		if isNotFoundError(err) {
			return storage.ErrNotFound
		}
		return fmt.Errorf("lock token: %w", err)
	}

	if err := fn(token); err != nil {
		return err
	}

	lastTrade, err := marshalLastTrade(token.LastTrade)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE tokens SET
			name=$2, symbol=$3, image_url=$4, creator=$5, funding_goal=$6,
			created_at=$7, creation_block=$8, transaction_hash=$9,
			current_state=$10, collateral=$11, final_collateral=$12, halted_at=$13, halt_block=$14,
			total_supply=$15, current_price=$16, volume_eth=$17, trade_count=$18, unique_holders=$19,
			last_trade=$20, last_applied_block=$21, last_applied_log_index=$22, updated_at=now()
		WHERE address=$1
	`,
		token.Address,
		token.Name,
		token.Symbol,
		token.ImageURL,
		token.Creator,
		token.FundingGoal,
		token.CreatedAt,
		int64(token.CreationBlock),
		token.TransactionHash,
		token.State,
		token.Collateral,
		nullString(token.FinalCollateral),
		nullString(token.HaltedAt),
		nullInt64(token.HaltBlock),
		token.Statistics.TotalSupply,
		token.Statistics.CurrentPrice,
		token.Statistics.VolumeETH,
		int64(token.Statistics.TradeCount),
		int64(token.Statistics.UniqueHolders),
		lastTrade,
		int64(token.LastAppliedBlock),
		int64(token.LastAppliedLogIndex),
	)
	if err != nil {
		return fmt.Errorf("update token: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// List returns all tokens, newest creation first.
func (s *TokenStore) List(ctx context.Context) ([]*model.Token, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+tokenColumns+` FROM tokens ORDER BY creation_block DESC, address ASC`)
	if err != nil {
		return nil, fmt.Errorf("list tokens: %w", err)
	}
	defer rows.Close()

	var out []*model.Token
	for rows.Next() {
		token, err := scanToken(rows)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		out = append(out, token)
	}
	return out, rows.Err()
}

func scanToken(row pgx.Row) (*model.Token, error) {
	var (
		token           model.Token
		creationBlock   int64
		finalCollateral sql.NullString
		haltedAt        sql.NullString
		haltBlock       sql.NullInt64
		tradeCount      int64
		uniqueHolders   int64
		lastTrade       []byte
		appliedBlock    int64
		appliedLogIndex int64
	)

	err := row.Scan(
		&token.Address,
		&token.Name,
		&token.Symbol,
		&token.ImageURL,
		&token.Creator,
		&token.FundingGoal,
		&token.CreatedAt,
		&creationBlock,
		&token.TransactionHash,
		&token.State,
		&token.Collateral,
		&finalCollateral,
		&haltedAt,
		&haltBlock,
		&token.Statistics.TotalSupply,
		&token.Statistics.CurrentPrice,
		&token.Statistics.VolumeETH,
		&tradeCount,
		&uniqueHolders,
		&lastTrade,
		&appliedBlock,
		&appliedLogIndex,
	)
	if err != nil {
		return nil, err
	}

	token.LastAppliedBlock = uint64(appliedBlock)
	token.LastAppliedLogIndex = uint64(appliedLogIndex)
	token.CreationBlock = uint64(creationBlock)
	token.FinalCollateral = finalCollateral.String
	token.HaltedAt = haltedAt.String
	if haltBlock.Valid {
		token.HaltBlock = uint64(haltBlock.Int64)
	}
	token.Statistics.TradeCount = uint64(tradeCount)
	token.Statistics.UniqueHolders = uint64(uniqueHolders)

	if len(lastTrade) > 0 {
		var lt model.LastTrade
		if err := json.Unmarshal(lastTrade, &lt); err != nil {
			return nil, fmt.Errorf("decode last trade: %w", err)
		}
		token.LastTrade = &lt
	}

	return &token, nil
}

func marshalLastTrade(lastTrade *model.LastTrade) ([]byte, error) {
	if lastTrade == nil {
		return nil, nil
	}
	data, err := json.Marshal(lastTrade)
	if err != nil {
		return nil, fmt.Errorf("encode last trade: %w", err)
	}
	return data, nil
}

func nullString(value string) sql.NullString {
	return sql.NullString{String: value, Valid: value != ""}
}

func nullInt64(value uint64) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(value), Valid: value != 0}
}

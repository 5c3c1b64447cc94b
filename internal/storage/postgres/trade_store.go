package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"factoryScope/internal/model"
	"factoryScope/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL. A unique index
// on (transaction_hash, log_index) enforces the ledger's dedupe key.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

var _ storage.TradeStore = (*TradeStore)(nil)

const tradeColumns = `
	trade_type, token, trader, token_amount, eth_amount, price_per_token,
	block_number, transaction_hash, log_index, timestamp
`

// Insert appends one trade. Returns ErrDuplicateTrade when the
// (transaction hash, log index) pair is already recorded.
func (s *TradeStore) Insert(ctx context.Context, trade *model.Trade) error {
	if trade == nil || trade.TransactionHash == "" || trade.Token == "" {
		return storage.ErrInvalidInput
	}

	query := `
		INSERT INTO trades (` + tradeColumns + `)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)
	`
	_, err := s.pool.Exec(ctx, query,
		trade.Type,
		trade.Token,
		trade.Trader,
		trade.TokenAmount,
		trade.EthAmount,
		trade.PricePerToken,
		int64(trade.BlockNumber),
		trade.TransactionHash,
		int64(trade.LogIndex),
		trade.Timestamp,
	)
	if err != nil {
		if isDuplicateKeyError(err) {
			return storage.ErrDuplicateTrade
		}
		return fmt.Errorf("insert trade: %w", err)
	}
	return nil
}

// ExistsForTrader reports whether the trader has any recorded trade on the
// token.
func (s *TradeStore) ExistsForTrader(ctx context.Context, token, trader string) (bool, error) {
	var exists bool
	row := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM trades WHERE token=$1 AND trader=$2)`, token, trader)
	if err := row.Scan(&exists); err != nil {
		return false, fmt.Errorf("check trader trades: %w", err)
	}
	return exists, nil
}

// ListByToken retrieves a token's trades ordered by timestamp ascending.
// RFC3339 UTC timestamps order lexically, so range bounds are compared as
// text.
func (s *TradeStore) ListByToken(ctx context.Context, token string, from, to int64) ([]*model.Trade, error) {
	query := `SELECT ` + tradeColumns + ` FROM trades WHERE token=$1`
	args := []interface{}{token}

	if from != 0 {
		args = append(args, formatUnix(from))
		query += fmt.Sprintf(` AND timestamp >= $%d`, len(args))
	}
	if to != 0 {
		args = append(args, formatUnix(to))
		query += fmt.Sprintf(` AND timestamp <= $%d`, len(args))
	}
	query += ` ORDER BY timestamp ASC, block_number ASC, log_index ASC`

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list trades: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// CountByToken returns the number of recorded trades for a token.
func (s *TradeStore) CountByToken(ctx context.Context, token string) (uint64, error) {
	var count int64
	row := s.pool.QueryRow(ctx, `SELECT count(*) FROM trades WHERE token=$1`, token)
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("count trades: %w", err)
	}
	return uint64(count), nil
}

func scanTrades(rows pgx.Rows) ([]*model.Trade, error) {
	var out []*model.Trade
	for rows.Next() {
		var (
			trade       model.Trade
			blockNumber int64
			logIndex    int64
		)
		err := rows.Scan(
			&trade.Type,
			&trade.Token,
			&trade.Trader,
			&trade.TokenAmount,
			&trade.EthAmount,
			&trade.PricePerToken,
			&blockNumber,
			&trade.TransactionHash,
			&logIndex,
			&trade.Timestamp,
		)
		if err != nil {
			return nil, fmt.Errorf("scan trade: %w", err)
		}
		trade.BlockNumber = uint64(blockNumber)
		trade.LogIndex = uint64(logIndex)
		out = append(out, &trade)
	}
	return out, rows.Err()
}

func formatUnix(ts int64) string {
	return time.Unix(ts, 0).UTC().Format(time.RFC3339)
}

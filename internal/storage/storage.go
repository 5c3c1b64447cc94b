package storage

import (
	"context"

	"factoryScope/internal/model"
)

// TokenStore holds projected token documents keyed by lower-cased address.
type TokenStore interface {
	// Create inserts a new token document. Returns ErrDuplicateKey if the
	// address already exists; the document is left untouched in that case.
	Create(ctx context.Context, token *model.Token) error

	// Get retrieves a token by address. Returns ErrNotFound if absent.
	Get(ctx context.Context, address string) (*model.Token, error)

	// Update applies fn to the document under a single-document atomic
	// read-modify-write. Returns ErrNotFound if the document is absent;
	// fn's error aborts the write and is returned unchanged.
	Update(ctx context.Context, address string, fn func(*model.Token) error) error

	// List returns all token documents, newest creation first.
	List(ctx context.Context) ([]*model.Token, error)
}

// TradeStore is the append-only trade ledger. Records are keyed by
// (transaction hash, log index) and never mutated or deleted.
type TradeStore interface {
	// Insert appends one trade. Returns ErrDuplicateTrade when a record with
	// the same (transaction hash, log index) already exists.
	Insert(ctx context.Context, trade *model.Trade) error

	// ExistsForTrader reports whether the trader already has a recorded trade
	// on the token.
	ExistsForTrader(ctx context.Context, token, trader string) (bool, error)

	// ListByToken retrieves a token's trades ordered by timestamp ascending,
	// optionally bounded by [from, to] unix seconds (zero means unbounded).
	ListByToken(ctx context.Context, token string, from, to int64) ([]*model.Trade, error)

	// CountByToken returns the number of recorded trades for a token.
	CountByToken(ctx context.Context, token string) (uint64, error)
}

// UserStore holds projected user documents keyed by lower-cased address.
type UserStore interface {
	// Get retrieves a user by address. Returns ErrNotFound if absent.
	Get(ctx context.Context, address string) (*model.User, error)

	// Upsert creates the document if absent, then applies fn under a
	// single-document atomic read-modify-write.
	Upsert(ctx context.Context, address string, fn func(*model.User) error) error
}

// StateStore tracks the highest block the pipeline has processed, per cursor
// name. Best-effort observability only; never used to reject deliveries.
type StateStore interface {
	LoadCursor(ctx context.Context, name string) (uint64, bool, error)
	SaveCursor(ctx context.Context, name string, block uint64) error
}

// Stores bundles the pipeline's document collections.
type Stores struct {
	Tokens TokenStore
	Trades TradeStore
	Users  UserStore
	State  StateStore
}

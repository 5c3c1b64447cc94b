package storage

import "errors"

var (
	// ErrNotFound is returned when a requested document does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned when inserting a document whose key
	// already exists.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrDuplicateTrade is returned when a trade with the same
	// (transaction hash, log index) pair is already recorded. Callers treat
	// it as "already applied", not as a failure.
	ErrDuplicateTrade = errors.New("duplicate trade: (transaction hash, log index) already recorded")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)

package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"factoryScope/internal/model"
	"factoryScope/internal/storage"
)

// TradeStore is an in-memory implementation of storage.TradeStore.
type TradeStore struct {
	mu   sync.RWMutex
	data map[string]*model.Trade
}

// NewTradeStore creates a new in-memory trade store.
func NewTradeStore() *TradeStore {
	return &TradeStore{data: make(map[string]*model.Trade)}
}

var _ storage.TradeStore = (*TradeStore)(nil)

func tradeKey(txHash string, logIndex uint64) string {
	return fmt.Sprintf("%s|%d", txHash, logIndex)
}

// Insert appends one trade. Returns ErrDuplicateTrade if the
// (transaction hash, log index) pair is already recorded.
func (s *TradeStore) Insert(_ context.Context, trade *model.Trade) error {
	if trade == nil || trade.TransactionHash == "" || trade.Token == "" {
		return storage.ErrInvalidInput
	}

	key := tradeKey(trade.TransactionHash, trade.LogIndex)

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[key]; exists {
		return storage.ErrDuplicateTrade
	}
	copy := *trade
	s.data[key] = &copy
	return nil
}

// ExistsForTrader reports whether the trader has any recorded trade on the
// token.
func (s *TradeStore) ExistsForTrader(_ context.Context, token, trader string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, trade := range s.data {
		if trade.Token == token && trade.Trader == trader {
			return true, nil
		}
	}
	return false, nil
}

// ListByToken retrieves a token's trades ordered by timestamp ascending.
func (s *TradeStore) ListByToken(_ context.Context, token string, from, to int64) ([]*model.Trade, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*model.Trade
	for _, trade := range s.data {
		if trade.Token != token {
			continue
		}
		result = append(result, cloneTrade(trade))
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Timestamp != result[j].Timestamp {
			return result[i].Timestamp < result[j].Timestamp
		}
		if result[i].BlockNumber != result[j].BlockNumber {
			return result[i].BlockNumber < result[j].BlockNumber
		}
		return result[i].LogIndex < result[j].LogIndex
	})

	if from == 0 && to == 0 {
		return result, nil
	}

	filtered := result[:0]
	for _, trade := range result {
		ts, err := parseTimestamp(trade.Timestamp)
		if err != nil {
			continue
		}
		if from != 0 && ts < from {
			continue
		}
		if to != 0 && ts > to {
			continue
		}
		filtered = append(filtered, trade)
	}
	return filtered, nil
}

// CountByToken returns the number of recorded trades for a token.
func (s *TradeStore) CountByToken(_ context.Context, token string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count uint64
	for _, trade := range s.data {
		if trade.Token == token {
			count++
		}
	}
	return count, nil
}

func cloneTrade(trade *model.Trade) *model.Trade {
	out := *trade
	return &out
}

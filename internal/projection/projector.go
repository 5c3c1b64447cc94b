package projection

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"go.uber.org/zap"

	"factoryScope/internal/currency"
	"factoryScope/internal/model"
	"factoryScope/internal/storage"
)

// Projector applies decoded factory events to the read-model store. Each
// event's projection is independent; a failure never corrupts documents
// touched by earlier events.
type Projector struct {
	stores       storage.Stores
	norm         *currency.Normalizer
	logger       *zap.Logger
	maxRetries   int
	retryBackoff time.Duration
}

// NewProjector builds a Projector over the given stores.
func NewProjector(stores storage.Stores, logger *zap.Logger) *Projector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Projector{
		stores:       stores,
		norm:         currency.NewNormalizer(logger),
		logger:       logger,
		maxRetries:   2,
		retryBackoff: 50 * time.Millisecond,
	}
}

// SetRetryPolicy overrides the retry policy used around token document
// updates. Non-positive values keep the current setting.
func (p *Projector) SetRetryPolicy(maxRetries int, backoff time.Duration) {
	if maxRetries >= 0 {
		p.maxRetries = maxRetries
	}
	if backoff > 0 {
		p.retryBackoff = backoff
	}
}

// Apply projects one decoded event. Unknown payload types are an internal
// error: the decoder and the projector must agree on the event set.
func (p *Projector) Apply(ctx context.Context, event model.FactoryEvent) error {
	switch payload := event.Payload.(type) {
	case model.TokenCreatedEvent:
		return p.applyTokenCreated(ctx, event, payload)
	case model.TokensPurchasedEvent:
		return p.applyTrade(ctx, event, model.TradeTypeBuy, payload.Token, payload.Buyer, payload.Amount, payload.Price)
	case model.TokensSoldEvent:
		return p.applyTrade(ctx, event, model.TradeTypeSell, payload.Token, payload.Seller, payload.TokenAmount, payload.EthAmount)
	case model.TradingHaltedEvent:
		return p.applyTradingHalted(ctx, event, payload)
	default:
		return fmt.Errorf("unsupported event payload: %T", event.Payload)
	}
}

func (p *Projector) applyTokenCreated(ctx context.Context, event model.FactoryEvent, data model.TokenCreatedEvent) error {
	address := strings.ToLower(data.TokenAddress)
	creator := strings.ToLower(data.Creator)
	timestamp := blockTime(event.Timestamp)

	token := model.NewToken(address)
	token.Name = data.Name
	token.Symbol = data.Symbol
	token.ImageURL = data.ImageURL
	token.Creator = creator
	token.FundingGoal = p.norm.ToDecimal(parseBaseUnits(data.FundingGoal))
	token.CreatedAt = timestamp
	token.CreationBlock = event.BlockNumber
	token.TransactionHash = event.TxHash

	err := p.stores.Tokens.Create(ctx, token)
	switch {
	case errors.Is(err, storage.ErrDuplicateKey):
		// Redelivery: the address key makes the document naturally idempotent.
		p.logger.Info("token already projected",
			zap.String("token", address),
			zap.String("tx_hash", event.TxHash),
		)
	case err != nil:
		return fmt.Errorf("create token %s: %w", address, err)
	default:
		p.logger.Info("token created",
			zap.String("token", address),
			zap.String("name", data.Name),
			zap.String("symbol", data.Symbol),
			zap.String("creator", creator),
			zap.Uint64("block", event.BlockNumber),
		)
	}

	// Runs on redelivery too, so a crash between the two writes converges on
	// retry. The created-tokens check keeps the list entry unique.
	err = p.stores.Users.Upsert(ctx, creator, func(user *model.User) error {
		if user.FirstSeen == "" {
			user.FirstSeen = timestamp
		}
		user.LastActive = timestamp
		if !user.HasCreatedToken(address) {
			user.CreatedTokens = append(user.CreatedTokens, model.CreatedToken{
				Address:   address,
				Name:      data.Name,
				Symbol:    data.Symbol,
				Timestamp: timestamp,
			})
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert creator %s: %w", creator, err)
	}

	return nil
}

func (p *Projector) applyTrade(ctx context.Context, event model.FactoryEvent, kind, rawToken, rawTrader, rawTokenAmount, rawEthAmount string) error {
	token := strings.ToLower(rawToken)
	trader := strings.ToLower(rawTrader)
	timestamp := blockTime(event.Timestamp)

	tokenUnits := parseBaseUnits(rawTokenAmount)
	ethUnits := parseBaseUnits(rawEthAmount)
	tokenAmount := p.norm.ToDecimal(tokenUnits)
	ethAmount := p.norm.ToDecimal(ethUnits)
	pricePerToken := p.norm.PricePerUnit(ethUnits, tokenUnits)

	// Checked before the insert so the freshly written record doesn't count
	// against itself. Best-effort: a check failure assumes a repeat holder,
	// and on a redelivery the ledger already holds the record so the count
	// stays put.
	seenBefore, err := p.stores.Trades.ExistsForTrader(ctx, token, trader)
	if err != nil {
		p.logger.Warn("holder lookup failed",
			zap.Error(err),
			zap.String("token", token),
			zap.String("trader", trader),
		)
		seenBefore = true
	}

	trade := &model.Trade{
		Type:            kind,
		Token:           token,
		Trader:          trader,
		TokenAmount:     tokenAmount,
		EthAmount:       ethAmount,
		PricePerToken:   pricePerToken,
		BlockNumber:     event.BlockNumber,
		TransactionHash: event.TxHash,
		LogIndex:        event.LogIndex,
		Timestamp:       timestamp,
	}

	err = p.stores.Trades.Insert(ctx, trade)
	redelivered := errors.Is(err, storage.ErrDuplicateTrade)
	if err != nil && !redelivered {
		return fmt.Errorf("insert trade %s/%d: %w", event.TxHash, event.LogIndex, err)
	}
	if redelivered {
		// The ledger already holds this log, but the token or user update may
		// have failed on the first delivery. Each document carries its own
		// applied mark, so the updates below run again and skip only the
		// documents that already folded this trade in.
		p.logger.Info("trade already recorded",
			zap.String("tx_hash", event.TxHash),
			zap.Uint64("log_index", event.LogIndex),
		)
	}

	halted := false
	err = p.updateToken(ctx, token, func(doc *model.Token) error {
		if redelivered && tradeApplied(doc.LastAppliedBlock, doc.LastAppliedLogIndex, event) {
			return nil
		}
		doc.LastAppliedBlock = event.BlockNumber
		doc.LastAppliedLogIndex = event.LogIndex

		doc.Statistics.VolumeETH = p.norm.AddDecimal(doc.Statistics.VolumeETH, ethAmount)
		doc.Statistics.TradeCount++
		doc.Statistics.CurrentPrice = pricePerToken
		if !seenBefore {
			doc.Statistics.UniqueHolders++
		}
		doc.LastTrade = &model.LastTrade{
			Price:     pricePerToken,
			Type:      kind,
			Timestamp: timestamp,
		}

		if doc.State == model.TokenStateGoalReached {
			halted = true
			return nil
		}
		if kind == model.TradeTypeBuy {
			doc.Collateral = p.norm.AddDecimal(doc.Collateral, ethAmount)
		} else {
			doc.Collateral = p.norm.SubDecimal(doc.Collateral, ethAmount)
		}
		return nil
	})
	switch {
	case errors.Is(err, storage.ErrNotFound):
		// The trade ledger entry stands on its own; the missing document is
		// logged and the batch continues.
		p.logger.Warn("trade for unknown token",
			zap.String("token", token),
			zap.String("tx_hash", event.TxHash),
		)
	case err != nil:
		return fmt.Errorf("update token %s: %w", token, err)
	}
	if halted {
		p.logger.Warn("trade on halted token, collateral untouched",
			zap.String("token", token),
			zap.String("type", kind),
			zap.String("tx_hash", event.TxHash),
		)
	}

	err = p.stores.Users.Upsert(ctx, trader, func(user *model.User) error {
		if redelivered && tradeApplied(user.LastAppliedBlock, user.LastAppliedLogIndex, event) {
			return nil
		}
		user.LastAppliedBlock = event.BlockNumber
		user.LastAppliedLogIndex = event.LogIndex

		if user.FirstSeen == "" {
			user.FirstSeen = timestamp
		}
		user.LastActive = timestamp
		user.TotalTrades++
		user.Statistics.TotalVolumeETH = p.norm.AddDecimal(user.Statistics.TotalVolumeETH, ethAmount)
		if kind == model.TradeTypeBuy {
			user.Statistics.TotalTokensBought = p.norm.AddDecimal(user.Statistics.TotalTokensBought, tokenAmount)
		} else {
			user.Statistics.TotalTokensSold = p.norm.AddDecimal(user.Statistics.TotalTokensSold, tokenAmount)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("upsert trader %s: %w", trader, err)
	}

	p.logger.Info("trade projected",
		zap.String("type", kind),
		zap.String("token", token),
		zap.String("trader", trader),
		zap.String("token_amount", tokenAmount),
		zap.String("eth_amount", ethAmount),
		zap.String("price_per_token", pricePerToken),
		zap.Uint64("block", event.BlockNumber),
	)

	return nil
}

func (p *Projector) applyTradingHalted(ctx context.Context, event model.FactoryEvent, data model.TradingHaltedEvent) error {
	token := strings.ToLower(data.Token)
	timestamp := blockTime(event.Timestamp)
	finalCollateral := p.norm.ToDecimal(parseBaseUnits(data.Collateral))

	alreadyHalted := false
	err := p.updateToken(ctx, token, func(doc *model.Token) error {
		if doc.State == model.TokenStateGoalReached {
			alreadyHalted = true
			return nil
		}
		doc.State = model.TokenStateGoalReached
		doc.FinalCollateral = finalCollateral
		doc.HaltedAt = timestamp
		doc.HaltBlock = event.BlockNumber
		return nil
	})
	switch {
	case errors.Is(err, storage.ErrNotFound):
		p.logger.Warn("halt for unknown token",
			zap.String("token", token),
			zap.String("tx_hash", event.TxHash),
		)
		return nil
	case err != nil:
		return fmt.Errorf("halt token %s: %w", token, err)
	}

	if alreadyHalted {
		p.logger.Info("token already halted",
			zap.String("token", token),
			zap.String("tx_hash", event.TxHash),
		)
		return nil
	}

	p.logger.Info("trading halted",
		zap.String("token", token),
		zap.String("final_collateral", finalCollateral),
		zap.Uint64("block", event.BlockNumber),
	)
	return nil
}

func (p *Projector) updateToken(ctx context.Context, address string, fn func(*model.Token) error) error {
	return withRetry(ctx, p.maxRetries, p.retryBackoff, func(ctx context.Context) error {
		return p.stores.Tokens.Update(ctx, address, fn)
	})
}

// tradeApplied reports whether a document's applied mark already covers the
// given log. Trades fold in delivered order, so a mark at or past the log's
// (block, logIndex) position means this document has seen it.
func tradeApplied(lastBlock, lastLogIndex uint64, event model.FactoryEvent) bool {
	if lastBlock != event.BlockNumber {
		return lastBlock > event.BlockNumber
	}
	return lastLogIndex >= event.LogIndex
}

func blockTime(timestamp uint64) string {
	return time.Unix(int64(timestamp), 0).UTC().Format(time.RFC3339)
}

func parseBaseUnits(value string) *big.Int {
	if value == "" {
		return nil
	}
	out, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil
	}
	return out
}

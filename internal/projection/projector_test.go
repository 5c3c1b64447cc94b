package projection

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"factoryScope/internal/model"
	"factoryScope/internal/storage"
	"factoryScope/internal/storage/memory"
)

const (
	testToken   = "0x1111111111111111111111111111111111111111"
	testCreator = "0x2222222222222222222222222222222222222222"
	testBuyer   = "0x3333333333333333333333333333333333333333"
	testSeller  = "0x4444444444444444444444444444444444444444"

	oneEth      = "1000000000000000000"
	halfEth     = "500000000000000000"
	thousandTok = "1000000000000000000000"
	fiveHundTok = "500000000000000000000"
)

func createdEvent(logIndex uint64) model.FactoryEvent {
	return model.FactoryEvent{
		BlockNumber: 100,
		Timestamp:   1700000000,
		TxHash:      "0xaaa1",
		LogIndex:    logIndex,
		Address:     "0xfac",
		Name:        model.EventTokenCreated,
		Payload: model.TokenCreatedEvent{
			TokenAddress: testToken,
			Name:         "Moon",
			Symbol:       "MOON",
			ImageURL:     "ipfs://moon",
			Creator:      testCreator,
			FundingGoal:  "5000000000000000000",
		},
	}
}

func buyEvent(txHash string, logIndex uint64, buyer, amount, price string) model.FactoryEvent {
	return model.FactoryEvent{
		BlockNumber: 101,
		Timestamp:   1700000012,
		TxHash:      txHash,
		LogIndex:    logIndex,
		Address:     "0xfac",
		Name:        model.EventTokensPurchased,
		Payload: model.TokensPurchasedEvent{
			Token:  testToken,
			Buyer:  buyer,
			Amount: amount,
			Price:  price,
		},
	}
}

func sellEvent(txHash string, logIndex uint64, seller, tokenAmount, ethAmount string) model.FactoryEvent {
	return model.FactoryEvent{
		BlockNumber: 102,
		Timestamp:   1700000024,
		TxHash:      txHash,
		LogIndex:    logIndex,
		Address:     "0xfac",
		Name:        model.EventTokensSold,
		Payload: model.TokensSoldEvent{
			Token:       testToken,
			Seller:      seller,
			TokenAmount: tokenAmount,
			EthAmount:   ethAmount,
		},
	}
}

func haltEvent(txHash string, logIndex uint64, collateral string) model.FactoryEvent {
	return model.FactoryEvent{
		BlockNumber: 103,
		Timestamp:   1700000036,
		TxHash:      txHash,
		LogIndex:    logIndex,
		Address:     "0xfac",
		Name:        model.EventTradingHalted,
		Payload: model.TradingHaltedEvent{
			Token:      testToken,
			Collateral: collateral,
		},
	}
}

func TestProjectorTokenCreated(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()
	projector := NewProjector(stores, nil)

	require.NoError(t, projector.Apply(ctx, createdEvent(0)))

	token, err := stores.Tokens.Get(ctx, testToken)
	require.NoError(t, err)
	require.Equal(t, "Moon", token.Name)
	require.Equal(t, "MOON", token.Symbol)
	require.Equal(t, testCreator, token.Creator)
	require.Equal(t, "5", token.FundingGoal)
	require.Equal(t, model.TokenStateTrading, token.State)
	require.Equal(t, "0", token.Collateral)
	require.Equal(t, uint64(100), token.CreationBlock)
	require.Equal(t, "2023-11-14T22:13:20Z", token.CreatedAt)
	require.Zero(t, token.Statistics.TradeCount)

	creator, err := stores.Users.Get(ctx, testCreator)
	require.NoError(t, err)
	require.Len(t, creator.CreatedTokens, 1)
	require.Equal(t, testToken, creator.CreatedTokens[0].Address)
	require.Equal(t, token.CreatedAt, creator.FirstSeen)
	require.Zero(t, creator.TotalTrades)
}

func TestProjectorTokenCreatedRedelivery(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()
	projector := NewProjector(stores, nil)

	require.NoError(t, projector.Apply(ctx, createdEvent(0)))
	require.NoError(t, projector.Apply(ctx, createdEvent(0)))

	creator, err := stores.Users.Get(ctx, testCreator)
	require.NoError(t, err)
	require.Len(t, creator.CreatedTokens, 1, "created tokens list must stay unique")
}

func TestProjectorBuySellScenario(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()
	projector := NewProjector(stores, nil)

	require.NoError(t, projector.Apply(ctx, createdEvent(0)))
	require.NoError(t, projector.Apply(ctx, buyEvent("0xbbb1", 0, testBuyer, thousandTok, oneEth)))

	token, err := stores.Tokens.Get(ctx, testToken)
	require.NoError(t, err)
	require.Equal(t, "1", token.Statistics.VolumeETH)
	require.Equal(t, uint64(1), token.Statistics.TradeCount)
	require.Equal(t, "0.001", token.Statistics.CurrentPrice)
	require.Equal(t, uint64(1), token.Statistics.UniqueHolders)
	require.Equal(t, "1", token.Collateral)
	require.NotNil(t, token.LastTrade)
	require.Equal(t, model.TradeTypeBuy, token.LastTrade.Type)
	require.Equal(t, "0.001", token.LastTrade.Price)

	require.NoError(t, projector.Apply(ctx, sellEvent("0xccc1", 0, testSeller, fiveHundTok, halfEth)))

	token, err = stores.Tokens.Get(ctx, testToken)
	require.NoError(t, err)
	require.Equal(t, "1.5", token.Statistics.VolumeETH)
	require.Equal(t, uint64(2), token.Statistics.TradeCount)
	require.Equal(t, uint64(2), token.Statistics.UniqueHolders)
	require.Equal(t, "0.5", token.Collateral)
	require.Equal(t, model.TradeTypeSell, token.LastTrade.Type)

	trades, err := stores.Trades.ListByToken(ctx, testToken, 0, 0)
	require.NoError(t, err)
	require.Len(t, trades, 2)
	require.Equal(t, "1000", trades[0].TokenAmount)
	require.Equal(t, "1", trades[0].EthAmount)
	require.Equal(t, "0.001", trades[0].PricePerToken)

	buyer, err := stores.Users.Get(ctx, testBuyer)
	require.NoError(t, err)
	require.Equal(t, uint64(1), buyer.TotalTrades)
	require.Equal(t, "1", buyer.Statistics.TotalVolumeETH)
	require.Equal(t, "1000", buyer.Statistics.TotalTokensBought)
	require.Equal(t, "0", buyer.Statistics.TotalTokensSold)

	seller, err := stores.Users.Get(ctx, testSeller)
	require.NoError(t, err)
	require.Equal(t, "500", seller.Statistics.TotalTokensSold)
}

func TestProjectorTradeRedelivery(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()
	projector := NewProjector(stores, nil)

	require.NoError(t, projector.Apply(ctx, createdEvent(0)))

	buy := buyEvent("0xbbb1", 7, testBuyer, thousandTok, oneEth)
	require.NoError(t, projector.Apply(ctx, buy))
	require.NoError(t, projector.Apply(ctx, buy))

	token, err := stores.Tokens.Get(ctx, testToken)
	require.NoError(t, err)
	require.Equal(t, uint64(1), token.Statistics.TradeCount, "redelivered trade must not move counters")
	require.Equal(t, "1", token.Statistics.VolumeETH)
	require.Equal(t, "1", token.Collateral)

	buyer, err := stores.Users.Get(ctx, testBuyer)
	require.NoError(t, err)
	require.Equal(t, uint64(1), buyer.TotalTrades)

	count, err := stores.Trades.CountByToken(ctx, testToken)
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)
}

func TestProjectorUniqueHoldersRepeatTrader(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()
	projector := NewProjector(stores, nil)

	require.NoError(t, projector.Apply(ctx, createdEvent(0)))
	require.NoError(t, projector.Apply(ctx, buyEvent("0xbbb1", 0, testBuyer, thousandTok, oneEth)))
	require.NoError(t, projector.Apply(ctx, buyEvent("0xbbb2", 0, testBuyer, thousandTok, oneEth)))

	token, err := stores.Tokens.Get(ctx, testToken)
	require.NoError(t, err)
	require.Equal(t, uint64(1), token.Statistics.UniqueHolders)
	require.Equal(t, uint64(2), token.Statistics.TradeCount)
}

func TestProjectorHaltTransition(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()
	projector := NewProjector(stores, nil)

	require.NoError(t, projector.Apply(ctx, createdEvent(0)))
	require.NoError(t, projector.Apply(ctx, buyEvent("0xbbb1", 0, testBuyer, thousandTok, oneEth)))
	require.NoError(t, projector.Apply(ctx, haltEvent("0xddd1", 0, "5000000000000000000")))

	token, err := stores.Tokens.Get(ctx, testToken)
	require.NoError(t, err)
	require.Equal(t, model.TokenStateGoalReached, token.State)
	require.Equal(t, "5", token.FinalCollateral)
	require.Equal(t, uint64(103), token.HaltBlock)
	require.Equal(t, "2023-11-14T22:13:56Z", token.HaltedAt)
}

func TestProjectorHaltRedelivery(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()
	projector := NewProjector(stores, nil)

	require.NoError(t, projector.Apply(ctx, createdEvent(0)))
	require.NoError(t, projector.Apply(ctx, haltEvent("0xddd1", 0, "5000000000000000000")))

	before, err := stores.Tokens.Get(ctx, testToken)
	require.NoError(t, err)

	require.NoError(t, projector.Apply(ctx, haltEvent("0xddd1", 0, "5000000000000000000")))

	after, err := stores.Tokens.Get(ctx, testToken)
	require.NoError(t, err)
	require.Equal(t, before.HaltedAt, after.HaltedAt)
	require.Equal(t, before.FinalCollateral, after.FinalCollateral)
}

func TestProjectorTradeAfterHalt(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()
	projector := NewProjector(stores, nil)

	require.NoError(t, projector.Apply(ctx, createdEvent(0)))
	require.NoError(t, projector.Apply(ctx, buyEvent("0xbbb1", 0, testBuyer, thousandTok, oneEth)))
	require.NoError(t, projector.Apply(ctx, haltEvent("0xddd1", 0, "5000000000000000000")))
	require.NoError(t, projector.Apply(ctx, sellEvent("0xccc1", 0, testSeller, fiveHundTok, halfEth)))

	token, err := stores.Tokens.Get(ctx, testToken)
	require.NoError(t, err)
	require.Equal(t, model.TokenStateGoalReached, token.State)
	require.Equal(t, "1", token.Collateral, "collateral is frozen once the goal is reached")
	require.Equal(t, "1.5", token.Statistics.VolumeETH, "statistics still accrue after the halt")
	require.Equal(t, uint64(2), token.Statistics.TradeCount)

	count, err := stores.Trades.CountByToken(ctx, testToken)
	require.NoError(t, err)
	require.Equal(t, uint64(2), count, "trades on a halted token are still recorded")
}

func TestProjectorTradeOrderMatters(t *testing.T) {
	ctx := context.Background()

	run := func(events []model.FactoryEvent) *model.Token {
		stores := memory.NewStores()
		projector := NewProjector(stores, nil)
		require.NoError(t, projector.Apply(ctx, createdEvent(0)))
		for _, ev := range events {
			require.NoError(t, projector.Apply(ctx, ev))
		}
		token, err := stores.Tokens.Get(ctx, testToken)
		require.NoError(t, err)
		return token
	}

	buy := buyEvent("0xbbb1", 0, testBuyer, thousandTok, oneEth)
	halt := haltEvent("0xddd1", 1, "5000000000000000000")

	buyThenHalt := run([]model.FactoryEvent{buy, halt})
	require.Equal(t, "1", buyThenHalt.Collateral)

	haltThenBuy := run([]model.FactoryEvent{halt, buy})
	require.Equal(t, "0", haltThenBuy.Collateral, "a buy after the halt must not raise collateral")
}

// stumblingTokenStore fails a number of Update calls before passing through.
type stumblingTokenStore struct {
	storage.TokenStore
	failures int
}

func (s *stumblingTokenStore) Update(ctx context.Context, address string, fn func(*model.Token) error) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("store unavailable")
	}
	return s.TokenStore.Update(ctx, address, fn)
}

// stumblingUserStore fails a number of Upsert calls before passing through.
type stumblingUserStore struct {
	storage.UserStore
	failures int
}

func (s *stumblingUserStore) Upsert(ctx context.Context, address string, fn func(*model.User) error) error {
	if s.failures > 0 {
		s.failures--
		return errors.New("store unavailable")
	}
	return s.UserStore.Upsert(ctx, address, fn)
}

func TestProjectorRedeliveryRepairsTokenUpdate(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()
	stores.Tokens = &stumblingTokenStore{TokenStore: stores.Tokens, failures: 0}
	projector := NewProjector(stores, nil)
	projector.SetRetryPolicy(0, time.Millisecond)

	require.NoError(t, projector.Apply(ctx, createdEvent(0)))

	// The ledger insert succeeds, the token update fails, the event errors.
	stores.Tokens.(*stumblingTokenStore).failures = 1
	buy := buyEvent("0xbbb1", 0, testBuyer, thousandTok, oneEth)
	require.Error(t, projector.Apply(ctx, buy))

	count, err := stores.Trades.CountByToken(ctx, testToken)
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)

	token, err := stores.Tokens.Get(ctx, testToken)
	require.NoError(t, err)
	require.Zero(t, token.Statistics.TradeCount)

	// A clean redelivery must finish the update the first delivery lost.
	require.NoError(t, projector.Apply(ctx, buy))

	token, err = stores.Tokens.Get(ctx, testToken)
	require.NoError(t, err)
	require.Equal(t, uint64(1), token.Statistics.TradeCount)
	require.Equal(t, "1", token.Statistics.VolumeETH)
	require.Equal(t, "1", token.Collateral)

	buyer, err := stores.Users.Get(ctx, testBuyer)
	require.NoError(t, err)
	require.Equal(t, uint64(1), buyer.TotalTrades)

	count, err = stores.Trades.CountByToken(ctx, testToken)
	require.NoError(t, err)
	require.Equal(t, uint64(1), count)
}

func TestProjectorRedeliveryRepairsUserUpdate(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()
	users := &stumblingUserStore{UserStore: stores.Users}
	stores.Users = users
	projector := NewProjector(stores, nil)
	projector.SetRetryPolicy(0, time.Millisecond)

	require.NoError(t, projector.Apply(ctx, createdEvent(0)))

	// The token update lands, the trader upsert fails, the event errors.
	users.failures = 1
	buy := buyEvent("0xbbb1", 0, testBuyer, thousandTok, oneEth)
	require.Error(t, projector.Apply(ctx, buy))

	_, err := stores.Users.Get(ctx, testBuyer)
	require.ErrorIs(t, err, storage.ErrNotFound)

	require.NoError(t, projector.Apply(ctx, buy))

	// The token document saw the trade on the first delivery; the redelivery
	// must repair the user without double-counting the token.
	token, err := stores.Tokens.Get(ctx, testToken)
	require.NoError(t, err)
	require.Equal(t, uint64(1), token.Statistics.TradeCount)
	require.Equal(t, "1", token.Statistics.VolumeETH)
	require.Equal(t, "1", token.Collateral)

	buyer, err := stores.Users.Get(ctx, testBuyer)
	require.NoError(t, err)
	require.Equal(t, uint64(1), buyer.TotalTrades)
	require.Equal(t, "1", buyer.Statistics.TotalVolumeETH)
}

func TestProjectorTradeForUnknownToken(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()
	projector := NewProjector(stores, nil)

	require.NoError(t, projector.Apply(ctx, buyEvent("0xbbb1", 0, testBuyer, thousandTok, oneEth)))

	count, err := stores.Trades.CountByToken(ctx, testToken)
	require.NoError(t, err)
	require.Equal(t, uint64(1), count, "the ledger entry stands even without a token document")

	buyer, err := stores.Users.Get(ctx, testBuyer)
	require.NoError(t, err)
	require.Equal(t, uint64(1), buyer.TotalTrades)
}

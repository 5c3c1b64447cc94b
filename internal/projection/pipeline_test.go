package projection

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/stretchr/testify/require"

	"factoryScope/internal/factory"
	"factoryScope/internal/model"
	"factoryScope/internal/storage/memory"
)

const factoryAddress = "0xffffffffffffffffffffffffffffffffffffffff"

func packEvent(t *testing.T, event abi.Event, args ...interface{}) string {
	t.Helper()
	data, err := event.Inputs.NonIndexed().Pack(args...)
	require.NoError(t, err)
	return hexutil.Encode(data)
}

func addressTopic(addr string) string {
	return common.BytesToHash(common.HexToAddress(addr).Bytes()).Hex()
}

func factoryLog(txHash string, topics []string, data string) model.LogPayload {
	return model.LogPayload{
		Account:     model.AccountRef{Address: factoryAddress},
		Topics:      topics,
		Data:        data,
		Transaction: model.TransactionRef{Hash: txHash},
	}
}

func TestPipelineProcessDelivery(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()

	decoder, err := factory.NewEventDecoder()
	require.NoError(t, err)
	dispatcher, err := NewDispatcher(factoryAddress, decoder, nil)
	require.NoError(t, err)
	pipeline := NewPipeline(dispatcher, NewProjector(stores, nil), stores.State, nil, nil)

	factoryABI, err := factory.FactoryABI()
	require.NoError(t, err)

	createdEvent := factoryABI.Events["TokenCreated"]
	buyEvent := factoryABI.Events["TokensPurchased"]
	haltEvent := factoryABI.Events["TradingHalted"]

	creator := common.HexToAddress(testCreator)
	goal, _ := new(big.Int).SetString("5000000000000000000", 10)
	amount, _ := new(big.Int).SetString(thousandTok, 10)
	price, _ := new(big.Int).SetString(oneEth, 10)

	payload := model.WebhookPayload{
		Event: model.EventPayload{Data: model.DataPayload{Block: &model.BlockPayload{
			Number:    200,
			Timestamp: 1700000000,
			Logs: []model.LogPayload{
				factoryLog("0xaaa1",
					[]string{createdEvent.ID.Hex(), addressTopic(testToken)},
					packEvent(t, createdEvent, "Moon", "MOON", "ipfs://moon", creator, goal),
				),
				// Emitted by another contract; must be ignored entirely.
				{
					Account:     model.AccountRef{Address: "0x0000000000000000000000000000000000000001"},
					Topics:      []string{createdEvent.ID.Hex()},
					Transaction: model.TransactionRef{Hash: "0xother"},
				},
				// Tracked contract, untracked signature; counts as matched only.
				factoryLog("0xmisc", []string{common.HexToHash("0xdead").Hex()}, "0x"),
				factoryLog("0xbbb1",
					[]string{buyEvent.ID.Hex(), addressTopic(testToken), addressTopic(testBuyer)},
					packEvent(t, buyEvent, amount, price),
				),
				factoryLog("0xddd1",
					[]string{haltEvent.ID.Hex(), addressTopic(testToken)},
					packEvent(t, haltEvent, goal),
				),
			},
		}}},
	}

	summary, err := pipeline.ProcessDelivery(ctx, payload)
	require.NoError(t, err)
	require.Equal(t, uint64(200), summary.BlockNumber)
	require.Equal(t, 4, summary.LogsMatched)
	require.Equal(t, 3, summary.EventsApplied)
	require.Zero(t, summary.EventsFailed)

	token, err := stores.Tokens.Get(ctx, testToken)
	require.NoError(t, err)
	require.Equal(t, "Moon", token.Name)
	require.Equal(t, uint64(1), token.Statistics.TradeCount)
	require.Equal(t, "1", token.Collateral)
	require.Equal(t, model.TokenStateGoalReached, token.State)
	require.Equal(t, "5", token.FinalCollateral)

	cursor, found, err := stores.State.LoadCursor(ctx, cursorKey)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(200), cursor)
}

func TestPipelineMalformedPayload(t *testing.T) {
	stores := memory.NewStores()
	decoder, err := factory.NewEventDecoder()
	require.NoError(t, err)
	dispatcher, err := NewDispatcher(factoryAddress, decoder, nil)
	require.NoError(t, err)
	pipeline := NewPipeline(dispatcher, NewProjector(stores, nil), stores.State, nil, nil)

	_, err = pipeline.ProcessDelivery(context.Background(), model.WebhookPayload{})
	require.ErrorIs(t, err, ErrMalformedPayload)
}

func TestPipelineCursorNeverRewinds(t *testing.T) {
	ctx := context.Background()
	stores := memory.NewStores()
	decoder, err := factory.NewEventDecoder()
	require.NoError(t, err)
	dispatcher, err := NewDispatcher(factoryAddress, decoder, nil)
	require.NoError(t, err)
	pipeline := NewPipeline(dispatcher, NewProjector(stores, nil), stores.State, nil, nil)

	deliver := func(block uint64) {
		payload := model.WebhookPayload{
			Event: model.EventPayload{Data: model.DataPayload{Block: &model.BlockPayload{
				Number:    block,
				Timestamp: 1700000000,
			}}},
		}
		_, err := pipeline.ProcessDelivery(ctx, payload)
		require.NoError(t, err)
	}

	deliver(300)
	deliver(250)

	cursor, found, err := stores.State.LoadCursor(ctx, cursorKey)
	require.NoError(t, err)
	require.True(t, found)
	require.Equal(t, uint64(300), cursor, "a late delivery must not rewind the cursor")
}

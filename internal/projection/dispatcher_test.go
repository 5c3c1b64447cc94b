package projection

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"factoryScope/internal/factory"
	"factoryScope/internal/model"
)

func TestNewDispatcherRejectsBadAddress(t *testing.T) {
	decoder, err := factory.NewEventDecoder()
	require.NoError(t, err)

	_, err = NewDispatcher("not-an-address", decoder, nil)
	require.Error(t, err)
}

func TestDispatcherCollectOrderAndIndexes(t *testing.T) {
	decoder, err := factory.NewEventDecoder()
	require.NoError(t, err)
	dispatcher, err := NewDispatcher(factoryAddress, decoder, nil)
	require.NoError(t, err)

	factoryABI, err := factory.FactoryABI()
	require.NoError(t, err)
	buyEvent := factoryABI.Events["TokensPurchased"]
	sellEvent := factoryABI.Events["TokensSold"]

	amount, _ := new(big.Int).SetString(thousandTok, 10)
	price, _ := new(big.Int).SetString(oneEth, 10)
	explicitIndex := uint64(42)

	block := model.BlockPayload{
		Number:    300,
		Timestamp: 1700000000,
		Logs: []model.LogPayload{
			{
				Account: model.AccountRef{Address: factoryAddress},
				Topics: []string{
					sellEvent.ID.Hex(),
					addressTopic(testToken),
					addressTopic(testSeller),
				},
				Data:        packEvent(t, sellEvent, amount, price),
				Index:       &explicitIndex,
				Transaction: model.TransactionRef{Hash: "0xccc1"},
			},
			{
				Account:     model.AccountRef{Address: "0x0000000000000000000000000000000000000001"},
				Topics:      []string{buyEvent.ID.Hex()},
				Transaction: model.TransactionRef{Hash: "0xother"},
			},
			{
				Account: model.AccountRef{Address: factoryAddress},
				Topics: []string{
					buyEvent.ID.Hex(),
					addressTopic(testToken),
					addressTopic(testBuyer),
				},
				Data:        packEvent(t, buyEvent, amount, price),
				Transaction: model.TransactionRef{Hash: "0xbbb1"},
			},
		},
	}

	events, matched := dispatcher.Collect(block)
	require.Equal(t, 2, matched)
	require.Len(t, events, 2)

	// Delivered order is preserved, not reordered by kind or index.
	require.Equal(t, model.EventTokensSold, events[0].Name)
	require.Equal(t, uint64(42), events[0].LogIndex, "an explicit log index is used as-is")
	require.Equal(t, model.EventTokensPurchased, events[1].Name)
	require.Equal(t, uint64(2), events[1].LogIndex, "a missing log index falls back to array position")

	require.Equal(t, uint64(300), events[0].BlockNumber)
	require.Equal(t, uint64(1700000000), events[0].Timestamp)
}

func TestDispatcherCollectAddressCaseInsensitive(t *testing.T) {
	decoder, err := factory.NewEventDecoder()
	require.NoError(t, err)
	dispatcher, err := NewDispatcher(factoryAddress, decoder, nil)
	require.NoError(t, err)

	factoryABI, err := factory.FactoryABI()
	require.NoError(t, err)
	buyEvent := factoryABI.Events["TokensPurchased"]

	amount, _ := new(big.Int).SetString(thousandTok, 10)
	price, _ := new(big.Int).SetString(oneEth, 10)

	block := model.BlockPayload{
		Number:    301,
		Timestamp: 1700000000,
		Logs: []model.LogPayload{
			{
				Account: model.AccountRef{Address: common.HexToAddress(factoryAddress).Hex()},
				Topics: []string{
					buyEvent.ID.Hex(),
					addressTopic(testToken),
					addressTopic(testBuyer),
				},
				Data:        packEvent(t, buyEvent, amount, price),
				Transaction: model.TransactionRef{Hash: "0xbbb1"},
			},
		},
	}

	events, matched := dispatcher.Collect(block)
	require.Equal(t, 1, matched)
	require.Len(t, events, 1)
}

package factory

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"factoryScope/internal/model"
)

// eventSchema binds a signature hash to its ABI event and decode function.
// Multiple historical TokenCreated schemas coexist in the table, each under
// its own topic0.
type eventSchema struct {
	name   string
	event  abi.Event
	decode func(event abi.Event, log model.LogRecord) (interface{}, error)
}

// EventDecoder decodes factory logs into typed events by topic0 lookup.
type EventDecoder struct {
	table map[string]eventSchema
}

// NewEventDecoder builds the signature table from the parsed factory ABIs.
func NewEventDecoder() (*EventDecoder, error) {
	current, err := FactoryABI()
	if err != nil {
		return nil, err
	}
	legacy, err := LegacyFactoryABI()
	if err != nil {
		return nil, err
	}
	extended, err := ExtendedFactoryABI()
	if err != nil {
		return nil, err
	}

	table := map[string]eventSchema{}
	register := func(event abi.Event, name string, decode func(abi.Event, model.LogRecord) (interface{}, error)) {
		table[strings.ToLower(event.ID.Hex())] = eventSchema{name: name, event: event, decode: decode}
	}

	register(current.Events["TokenCreated"], model.EventTokenCreated, decodeTokenCreated)
	register(legacy.Events["TokenCreated"], model.EventTokenCreated, decodeTokenCreatedLegacy)
	register(extended.Events["TokenCreated"], model.EventTokenCreated, decodeTokenCreatedExtended)
	register(current.Events["TokensPurchased"], model.EventTokensPurchased, decodeTokensPurchased)
	register(current.Events["TokensSold"], model.EventTokensSold, decodeTokensSold)
	register(current.Events["TradingHalted"], model.EventTradingHalted, decodeTradingHalted)

	return &EventDecoder{table: table}, nil
}

// CanDecode checks whether topic0 matches a known factory event signature.
func (d *EventDecoder) CanDecode(topic0 string) bool {
	if topic0 == "" {
		return false
	}
	_, ok := d.table[strings.ToLower(topic0)]
	return ok
}

// Decode converts a LogRecord into a FactoryEvent. The caller is expected to
// have checked CanDecode; an unknown topic0 here is an error.
//
// go-ethereum's topic parser panics on a schema mismatch instead of
// returning an error, so a bad table entry must degrade to a skipped log
// rather than killing the whole delivery.
func (d *EventDecoder) Decode(log model.LogRecord) (event *model.FactoryEvent, err error) {
	defer func() {
		if r := recover(); r != nil {
			event = nil
			err = fmt.Errorf("decode %s: panic: %v", log.Topic0(), r)
		}
	}()

	topic0 := log.Topic0()
	if topic0 == "" {
		return nil, fmt.Errorf("missing topics")
	}
	schema, ok := d.table[strings.ToLower(topic0)]
	if !ok {
		return nil, fmt.Errorf("unknown topic0: %s", topic0)
	}

	payload, err := schema.decode(schema.event, log)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", schema.name, err)
	}

	return &model.FactoryEvent{
		BlockNumber: log.BlockNumber,
		Timestamp:   log.Timestamp,
		TxHash:      log.TxHash,
		LogIndex:    log.LogIndex,
		Address:     log.Address,
		Name:        schema.name,
		Payload:     payload,
	}, nil
}

func decodeTokenCreated(event abi.Event, log model.LogRecord) (interface{}, error) {
	token, err := decodeSingleIndexedAddress(event, log)
	if err != nil {
		return nil, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, err
	}
	if len(values) != 5 {
		return nil, fmt.Errorf("unexpected token created values: %d", len(values))
	}

	name, err := asString(values[0])
	if err != nil {
		return nil, err
	}
	symbol, err := asString(values[1])
	if err != nil {
		return nil, err
	}
	imageURL, err := asString(values[2])
	if err != nil {
		return nil, err
	}
	creator, err := asAddress(values[3])
	if err != nil {
		return nil, err
	}
	fundingGoal, err := asBigInt(values[4])
	if err != nil {
		return nil, err
	}

	return model.TokenCreatedEvent{
		TokenAddress: token.Hex(),
		Name:         name,
		Symbol:       symbol,
		ImageURL:     imageURL,
		Creator:      creator.Hex(),
		FundingGoal:  fundingGoal.String(),
	}, nil
}

func decodeTokenCreatedLegacy(event abi.Event, log model.LogRecord) (interface{}, error) {
	token, err := decodeSingleIndexedAddress(event, log)
	if err != nil {
		return nil, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, err
	}
	if len(values) != 3 {
		return nil, fmt.Errorf("unexpected legacy token created values: %d", len(values))
	}

	name, err := asString(values[0])
	if err != nil {
		return nil, err
	}
	ticker, err := asString(values[1])
	if err != nil {
		return nil, err
	}
	creator, err := asAddress(values[2])
	if err != nil {
		return nil, err
	}

	return model.TokenCreatedEvent{
		TokenAddress: token.Hex(),
		Name:         name,
		Symbol:       ticker,
		Creator:      creator.Hex(),
		FundingGoal:  "0",
	}, nil
}

func decodeTokenCreatedExtended(event abi.Event, log model.LogRecord) (interface{}, error) {
	token, err := decodeSingleIndexedAddress(event, log)
	if err != nil {
		return nil, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, err
	}
	if len(values) != 6 {
		return nil, fmt.Errorf("unexpected extended token created values: %d", len(values))
	}

	name, err := asString(values[0])
	if err != nil {
		return nil, err
	}
	symbol, err := asString(values[1])
	if err != nil {
		return nil, err
	}
	imageURL, err := asString(values[2])
	if err != nil {
		return nil, err
	}
	creator, err := asAddress(values[3])
	if err != nil {
		return nil, err
	}
	fundingGoal, err := asBigInt(values[4])
	if err != nil {
		return nil, err
	}
	burnManager, err := asAddress(values[5])
	if err != nil {
		return nil, err
	}

	return model.TokenCreatedEvent{
		TokenAddress: token.Hex(),
		Name:         name,
		Symbol:       symbol,
		ImageURL:     imageURL,
		Creator:      creator.Hex(),
		FundingGoal:  fundingGoal.String(),
		BurnManager:  burnManager.Hex(),
	}, nil
}

func decodeTokensPurchased(event abi.Event, log model.LogRecord) (interface{}, error) {
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return nil, err
	}

	var indexed struct {
		Token common.Address
		Buyer common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, err
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected purchase values: %d", len(values))
	}

	amount, err := asBigInt(values[0])
	if err != nil {
		return nil, err
	}
	price, err := asBigInt(values[1])
	if err != nil {
		return nil, err
	}

	return model.TokensPurchasedEvent{
		Token:  indexed.Token.Hex(),
		Buyer:  indexed.Buyer.Hex(),
		Amount: amount.String(),
		Price:  price.String(),
	}, nil
}

func decodeTokensSold(event abi.Event, log model.LogRecord) (interface{}, error) {
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return nil, err
	}

	var indexed struct {
		Token  common.Address
		Seller common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(event.Inputs), indexedTopics); err != nil {
		return nil, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, err
	}
	if len(values) != 2 {
		return nil, fmt.Errorf("unexpected sale values: %d", len(values))
	}

	tokenAmount, err := asBigInt(values[0])
	if err != nil {
		return nil, err
	}
	ethAmount, err := asBigInt(values[1])
	if err != nil {
		return nil, err
	}

	return model.TokensSoldEvent{
		Token:       indexed.Token.Hex(),
		Seller:      indexed.Seller.Hex(),
		TokenAmount: tokenAmount.String(),
		EthAmount:   ethAmount.String(),
	}, nil
}

func decodeTradingHalted(event abi.Event, log model.LogRecord) (interface{}, error) {
	token, err := decodeSingleIndexedAddress(event, log)
	if err != nil {
		return nil, err
	}

	values, err := unpackNonIndexed(event, log.Data)
	if err != nil {
		return nil, err
	}
	if len(values) != 1 {
		return nil, fmt.Errorf("unexpected halt values: %d", len(values))
	}

	collateral, err := asBigInt(values[0])
	if err != nil {
		return nil, err
	}

	return model.TradingHaltedEvent{
		Token:      token.Hex(),
		Collateral: collateral.String(),
	}, nil
}

// decodeSingleIndexedAddress extracts the address topic of an event with
// exactly one indexed argument. The topic is parsed by the argument's ABI
// name, so the helper works for any argument name (tokenAddress, token).
func decodeSingleIndexedAddress(event abi.Event, log model.LogRecord) (common.Address, error) {
	indexedTopics, err := parseIndexedTopics(event, log.Topics)
	if err != nil {
		return common.Address{}, err
	}

	args := indexedArguments(event.Inputs)
	if len(args) != 1 {
		return common.Address{}, fmt.Errorf("expected one indexed argument, got %d", len(args))
	}

	values := map[string]interface{}{}
	if err := abi.ParseTopicsIntoMap(values, args, indexedTopics); err != nil {
		return common.Address{}, fmt.Errorf("parse topics: %w", err)
	}

	address, ok := values[args[0].Name].(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("indexed %s is not an address", args[0].Name)
	}
	return address, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	return parseTopicHashes(topics[1:])
}

func parseTopicHashes(topics []string) ([]common.Hash, error) {
	out := make([]common.Hash, 0, len(topics))
	for _, topic := range topics {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func asBigInt(value interface{}) (*big.Int, error) {
	out, ok := value.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("expected big.Int, got %T", value)
	}
	return out, nil
}

func asAddress(value interface{}) (common.Address, error) {
	out, ok := value.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("expected address, got %T", value)
	}
	return out, nil
}

func asString(value interface{}) (string, error) {
	out, ok := value.(string)
	if !ok {
		return "", fmt.Errorf("expected string, got %T", value)
	}
	return out, nil
}

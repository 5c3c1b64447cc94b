package projection

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"factoryScope/internal/factory"
	"factoryScope/internal/model"
)

// Dispatcher filters a block's logs down to the tracked factory contract and
// decodes them, preserving delivered order.
type Dispatcher struct {
	factory common.Address
	decoder *factory.EventDecoder
	logger  *zap.Logger
}

// NewDispatcher builds a Dispatcher for one tracked contract address.
func NewDispatcher(factoryAddress string, decoder *factory.EventDecoder, logger *zap.Logger) (*Dispatcher, error) {
	if !common.IsHexAddress(factoryAddress) {
		return nil, fmt.Errorf("invalid factory address: %s", factoryAddress)
	}
	if decoder == nil {
		return nil, fmt.Errorf("decoder is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		factory: common.HexToAddress(factoryAddress),
		decoder: decoder,
		logger:  logger,
	}, nil
}

// Collect returns the block's recognized factory events in delivered order.
// Later events in the same block must observe the state left by earlier
// ones, so the array order is never changed. The second return value is the
// number of logs emitted by the tracked contract, recognized or not.
func (d *Dispatcher) Collect(block model.BlockPayload) ([]model.FactoryEvent, int) {
	var events []model.FactoryEvent
	matched := 0

	for i, log := range block.Logs {
		if !common.IsHexAddress(log.Account.Address) {
			continue
		}
		if common.HexToAddress(log.Account.Address) != d.factory {
			continue
		}
		matched++

		logIndex := uint64(i)
		if log.Index != nil {
			logIndex = *log.Index
		}

		record := model.LogRecord{
			BlockNumber: block.Number,
			TxHash:      log.Transaction.Hash,
			LogIndex:    logIndex,
			Address:     log.Account.Address,
			Topics:      log.Topics,
			Data:        log.Data,
			Timestamp:   block.Timestamp,
		}

		topic0 := record.Topic0()
		if !d.decoder.CanDecode(topic0) {
			// Contracts emit events the pipeline doesn't track; not an error.
			d.logger.Debug("unrecognized event signature",
				zap.String("topic0", topic0),
				zap.String("tx_hash", record.TxHash),
			)
			continue
		}

		event, err := d.decoder.Decode(record)
		if err != nil {
			d.logger.Warn("decode failed",
				zap.Error(err),
				zap.String("topic0", topic0),
				zap.String("tx_hash", record.TxHash),
				zap.Uint64("log_index", record.LogIndex),
			)
			continue
		}

		events = append(events, *event)
	}

	return events, matched
}

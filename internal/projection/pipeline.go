package projection

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"factoryScope/internal/model"
	"factoryScope/internal/storage"
)

// ErrMalformedPayload marks a delivery whose envelope carries no block.
var ErrMalformedPayload = errors.New("malformed webhook payload: missing block")

const cursorKey = "factory"

// Summary reports what one delivery did.
type Summary struct {
	BlockNumber   uint64 `json:"blockNumber"`
	LogsMatched   int    `json:"logsMatched"`
	EventsApplied int    `json:"eventsApplied"`
	EventsFailed  int    `json:"eventsFailed"`
}

// Pipeline runs one webhook delivery end to end: filter, decode, project.
type Pipeline struct {
	dispatcher *Dispatcher
	projector  *Projector
	state      storage.StateStore
	audit      storage.AuditSink
	logger     *zap.Logger
}

// NewPipeline wires the delivery pipeline. audit may be nil.
func NewPipeline(dispatcher *Dispatcher, projector *Projector, state storage.StateStore, audit storage.AuditSink, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		dispatcher: dispatcher,
		projector:  projector,
		state:      state,
		audit:      audit,
		logger:     logger,
	}
}

// ProcessDelivery projects every recognized factory event in the delivered
// block. A failing event is logged and skipped; the rest of the block still
// applies. Only a missing block makes the whole delivery fail.
func (p *Pipeline) ProcessDelivery(ctx context.Context, payload model.WebhookPayload) (Summary, error) {
	block := payload.Event.Data.Block
	if block == nil {
		return Summary{}, ErrMalformedPayload
	}

	if p.audit != nil {
		if err := p.audit.Append(*block); err != nil {
			p.logger.Warn("audit append failed", zap.Error(err), zap.Uint64("block", block.Number))
		}
	}

	events, matched := p.dispatcher.Collect(*block)

	summary := Summary{
		BlockNumber: block.Number,
		LogsMatched: matched,
	}

	for _, event := range events {
		if err := p.projector.Apply(ctx, event); err != nil {
			p.logger.Error("event projection failed",
				zap.Error(err),
				zap.String("event", event.Name),
				zap.String("tx_hash", event.TxHash),
				zap.Uint64("log_index", event.LogIndex),
			)
			summary.EventsFailed++
			continue
		}
		summary.EventsApplied++
	}

	p.advanceCursor(ctx, block.Number)

	p.logger.Info("block processed",
		zap.Uint64("block", block.Number),
		zap.Int("logs_matched", summary.LogsMatched),
		zap.Int("events_applied", summary.EventsApplied),
		zap.Int("events_failed", summary.EventsFailed),
	)

	return summary, nil
}

// advanceCursor records the highest block seen. Deliveries can arrive out of
// order, so the cursor never moves backwards. Failures are logged only; the
// cursor is operational metadata, not a correctness gate.
func (p *Pipeline) advanceCursor(ctx context.Context, block uint64) {
	if p.state == nil {
		return
	}
	current, found, err := p.state.LoadCursor(ctx, cursorKey)
	if err != nil {
		p.logger.Warn("cursor load failed", zap.Error(err))
		return
	}
	if found && current >= block {
		return
	}
	if err := p.state.SaveCursor(ctx, cursorKey, block); err != nil {
		p.logger.Warn("cursor save failed", zap.Error(err), zap.Uint64("block", block))
	}
}

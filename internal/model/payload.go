package model

// WebhookPayload is the envelope delivered by the notification source for one
// block's worth of logs.
type WebhookPayload struct {
	WebhookID string       `json:"webhookId,omitempty"`
	ID        string       `json:"id,omitempty"`
	Event     EventPayload `json:"event"`
}

// EventPayload wraps the block data of a delivery.
type EventPayload struct {
	Data DataPayload `json:"data"`
}

// DataPayload carries the block; a nil Block marks a malformed delivery.
type DataPayload struct {
	Block *BlockPayload `json:"block"`
}

// BlockPayload is one block's metadata plus its ordered logs.
type BlockPayload struct {
	Number    uint64       `json:"number"`
	Hash      string       `json:"hash,omitempty"`
	Timestamp uint64       `json:"timestamp"`
	Logs      []LogPayload `json:"logs"`
}

// LogPayload is a single raw log as delivered. Index is optional; when absent
// the log's position in the array is used.
type LogPayload struct {
	Account     AccountRef     `json:"account"`
	Topics      []string       `json:"topics"`
	Data        string         `json:"data"`
	Index       *uint64        `json:"index,omitempty"`
	Transaction TransactionRef `json:"transaction"`
}

// AccountRef identifies the emitting contract.
type AccountRef struct {
	Address string `json:"address"`
}

// TransactionRef identifies the enclosing transaction.
type TransactionRef struct {
	Hash string `json:"hash"`
}

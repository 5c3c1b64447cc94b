package model

// Event names as they appear in the factory contract ABI.
const (
	EventTokenCreated    = "TokenCreated"
	EventTokensPurchased = "TokensPurchased"
	EventTokensSold      = "TokensSold"
	EventTradingHalted   = "TradingHalted"
)

// FactoryEvent is one decoded factory log. Payload holds the event-specific
// data and is dispatched over with a type switch.
type FactoryEvent struct {
	BlockNumber uint64      `json:"block_number"`
	Timestamp   uint64      `json:"timestamp"`
	TxHash      string      `json:"tx_hash"`
	LogIndex    uint64      `json:"log_index"`
	Address     string      `json:"address"`
	Name        string      `json:"name"`
	Payload     interface{} `json:"payload"`
}

// TokenCreatedEvent is the decoded TokenCreated payload. ImageURL,
// FundingGoal, and BurnManager are zero-valued when the emitting contract
// uses an older event schema that lacks them.
type TokenCreatedEvent struct {
	TokenAddress string `json:"token_address"`
	Name         string `json:"name"`
	Symbol       string `json:"symbol"`
	ImageURL     string `json:"image_url,omitempty"`
	Creator      string `json:"creator"`
	FundingGoal  string `json:"funding_goal"`
	BurnManager  string `json:"burn_manager,omitempty"`
}

// TokensPurchasedEvent is the decoded TokensPurchased payload. Amount and
// Price are base-unit integer strings.
type TokensPurchasedEvent struct {
	Token  string `json:"token"`
	Buyer  string `json:"buyer"`
	Amount string `json:"amount"`
	Price  string `json:"price"`
}

// TokensSoldEvent is the decoded TokensSold payload. TokenAmount and
// EthAmount are base-unit integer strings.
type TokensSoldEvent struct {
	Token       string `json:"token"`
	Seller      string `json:"seller"`
	TokenAmount string `json:"token_amount"`
	EthAmount   string `json:"eth_amount"`
}

// TradingHaltedEvent is the decoded TradingHalted payload. Collateral is a
// base-unit integer string.
type TradingHaltedEvent struct {
	Token      string `json:"token"`
	Collateral string `json:"collateral"`
}

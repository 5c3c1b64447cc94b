package model

// Trade sides.
const (
	TradeTypeBuy  = "buy"
	TradeTypeSell = "sell"
)

// Trade is one immutable trade ledger entry. The pair
// (TransactionHash, LogIndex) is the record's natural dedupe key.
// TokenAmount, EthAmount, and PricePerToken are decimal display strings;
// Timestamp is the block timestamp in RFC3339, not receipt time.
type Trade struct {
	Type            string `json:"type"`
	Token           string `json:"token"`
	Trader          string `json:"trader"`
	TokenAmount     string `json:"token_amount"`
	EthAmount       string `json:"eth_amount"`
	PricePerToken   string `json:"price_per_token"`
	BlockNumber     uint64 `json:"block_number"`
	TransactionHash string `json:"transaction_hash"`
	LogIndex        uint64 `json:"log_index"`
	Timestamp       string `json:"timestamp"`
}

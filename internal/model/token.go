package model

// Token lifecycle states. TokenStateTrading is the only entry state;
// TokenStateGoalReached is terminal.
const (
	TokenStateTrading     = "TRADING"
	TokenStateGoalReached = "GOAL_REACHED"
)

// TokenStatistics holds the mutable aggregates embedded in a token document.
// TradeCount and VolumeETH only ever increase.
type TokenStatistics struct {
	TotalSupply   string `json:"total_supply"`
	CurrentPrice  string `json:"current_price"`
	VolumeETH     string `json:"volume_eth"`
	TradeCount    uint64 `json:"trade_count"`
	UniqueHolders uint64 `json:"unique_holders"`
}

// LastTrade records the most recent trade applied to a token.
type LastTrade struct {
	Price     string `json:"price"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
}

// Token is the projected token document, keyed by lower-cased contract
// address. Amount fields are decimal display strings.
type Token struct {
	Address         string `json:"address"`
	Name            string `json:"name"`
	Symbol          string `json:"symbol"`
	ImageURL        string `json:"image_url,omitempty"`
	Creator         string `json:"creator"`
	FundingGoal     string `json:"funding_goal"`
	CreatedAt       string `json:"created_at"`
	CreationBlock   uint64 `json:"creation_block"`
	TransactionHash string `json:"transaction_hash"`

	State           string `json:"state"`
	Collateral      string `json:"collateral"`
	FinalCollateral string `json:"final_collateral,omitempty"`
	HaltedAt        string `json:"halted_at,omitempty"`
	HaltBlock       uint64 `json:"halt_block,omitempty"`

	Statistics TokenStatistics `json:"statistics"`
	LastTrade  *LastTrade      `json:"last_trade,omitempty"`

	// Redelivery bookkeeping: the position of the newest trade folded into
	// this document's aggregates. Separate from the ledger's dedupe key so a
	// redelivery can finish an update the first delivery never applied.
	LastAppliedBlock    uint64 `json:"last_applied_block,omitempty"`
	LastAppliedLogIndex uint64 `json:"last_applied_log_index,omitempty"`
}

// NewToken builds a token document in its initial state.
func NewToken(address string) *Token {
	return &Token{
		Address:    address,
		State:      TokenStateTrading,
		Collateral: "0",
		Statistics: TokenStatistics{
			TotalSupply:  "0",
			CurrentPrice: "0",
			VolumeETH:    "0",
		},
	}
}

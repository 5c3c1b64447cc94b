package model

// UserStatistics holds a user's monotonic trade accumulators as decimal
// display strings.
type UserStatistics struct {
	TotalVolumeETH    string `json:"total_volume_eth"`
	TotalTokensBought string `json:"total_tokens_bought"`
	TotalTokensSold   string `json:"total_tokens_sold"`
}

// CreatedToken is one entry in a user's created-tokens list.
type CreatedToken struct {
	Address   string `json:"address"`
	Name      string `json:"name"`
	Symbol    string `json:"symbol"`
	Timestamp string `json:"timestamp"`
}

// User is the projected user document, keyed by lower-cased address. Users
// are created lazily on first observed activity and never deleted.
type User struct {
	Address       string         `json:"address"`
	FirstSeen     string         `json:"first_seen"`
	LastActive    string         `json:"last_active"`
	TotalTrades   uint64         `json:"total_trades"`
	CreatedTokens []CreatedToken `json:"created_tokens"`
	Statistics    UserStatistics `json:"statistics"`

	// Redelivery bookkeeping, mirroring Token.LastAppliedBlock.
	LastAppliedBlock    uint64 `json:"last_applied_block,omitempty"`
	LastAppliedLogIndex uint64 `json:"last_applied_log_index,omitempty"`
}

// NewUser builds an empty user document.
func NewUser(address string) *User {
	return &User{
		Address: address,
		Statistics: UserStatistics{
			TotalVolumeETH:    "0",
			TotalTokensBought: "0",
			TotalTokensSold:   "0",
		},
	}
}

// HasCreatedToken reports whether the created-tokens list already holds an
// entry for the given token address.
func (u *User) HasCreatedToken(address string) bool {
	for _, t := range u.CreatedTokens {
		if t.Address == address {
			return true
		}
	}
	return false
}

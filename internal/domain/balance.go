package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// BalanceSnapshot is the cached funds view for one account. Native and Token
// are base units; the display fields are decimal strings for UI layers.
type BalanceSnapshot struct {
	Account       common.Address `json:"account"`
	Native        *big.Int       `json:"native"`
	Token         *big.Int       `json:"token"`
	NativeDisplay string         `json:"native_display"`
	TokenDisplay  string         `json:"token_display"`
	RefreshedAt   time.Time      `json:"refreshed_at"`
}

// IsZero reports whether the snapshot has never been filled.
func (b BalanceSnapshot) IsZero() bool {
	return b.RefreshedAt.IsZero()
}

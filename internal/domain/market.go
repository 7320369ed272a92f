package domain

import (
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Outcome is a binary market outcome index as the contract encodes it.
type Outcome uint8

const (
	OutcomeNo  Outcome = 0
	OutcomeYes Outcome = 1
)

// Valid reports whether o is NO or YES.
func (o Outcome) Valid() bool { return o == OutcomeNo || o == OutcomeYes }

func (o Outcome) String() string {
	if o == OutcomeYes {
		return "YES"
	}
	return "NO"
}

// MarketView is the read projection of one on-chain market. Pools are
// fetched independently per outcome.
type MarketView struct {
	ID             uint64         `json:"id"`
	Question       string         `json:"question"`
	ResolveTime    time.Time      `json:"resolve_time"`
	Oracle         common.Address `json:"oracle"`
	IsResolved     bool           `json:"is_resolved"`
	WinningOutcome Outcome        `json:"winning_outcome"`
	TotalPool      *big.Int       `json:"total_pool"`
	YesPool        *big.Int       `json:"yes_pool"`
	NoPool         *big.Int       `json:"no_pool"`
	IsBinary       bool           `json:"is_binary"`
	Creator        common.Address `json:"creator"`
	CreatedAt      time.Time      `json:"created_at"`
}

// UserStatsView is one account's daily-claim engagement, read from chain.
type UserStatsView struct {
	LastClaimTime time.Time `json:"last_claim_time"`
	Streak        uint64    `json:"streak"`
	TotalClaims   uint64    `json:"total_claims"`
	TotalEarnings *big.Int  `json:"total_earnings"`
}

// Quiz is the on-chain quiz record. Only the answer hash is stored.
type Quiz struct {
	ID         uint64      `json:"id"`
	Question   string      `json:"question"`
	AnswerHash common.Hash `json:"answer_hash"`
	Reward     *big.Int    `json:"reward"`
	Deadline   time.Time   `json:"deadline"`
	Active     bool        `json:"active"`
}

// ContractParams are the contract's owner and economic constants.
type ContractParams struct {
	Owner       common.Address `json:"owner"`
	DepositRate *big.Int       `json:"deposit_rate"`
	WithdrawFee *big.Int       `json:"withdraw_fee"`
	DailyReward *big.Int       `json:"daily_reward"`
}

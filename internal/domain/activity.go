package domain

import "time"

// ActivityKind enumerates the activity_type values of user_activity rows.
type ActivityKind string

const (
	ActivityBet           ActivityKind = "bet"
	ActivityClaim         ActivityKind = "claim"
	ActivityDailyClaim    ActivityKind = "daily_claim"
	ActivityQuiz          ActivityKind = "quiz"
	ActivityDeposit       ActivityKind = "deposit"
	ActivityWithdraw      ActivityKind = "withdraw"
	ActivityResolveMarket ActivityKind = "resolve_market"
)

// ActivityRecord is one append-only off-chain log line describing a
// confirmed on-chain action.
type ActivityRecord struct {
	ID              string       `json:"id"`
	WalletAddress   string       `json:"wallet_address"`
	Kind            ActivityKind `json:"activity_type"`
	Description     string       `json:"description"`
	Amount          *float64     `json:"amount,omitempty"`
	MarketID        *uint64      `json:"market_id,omitempty"`
	TransactionHash string       `json:"transaction_hash,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
}

// LeaderboardEntry is an off-chain ranking row keyed by wallet address.
type LeaderboardEntry struct {
	WalletAddress string    `json:"wallet_address"`
	TotalWinnings float64   `json:"total_winnings"`
	WinStreak     int       `json:"win_streak"`
	TotalBets     int       `json:"total_bets"`
	QuizScore     int       `json:"quiz_score"`
	Rank          int       `json:"rank"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// LeaderboardDelta is an increment applied to a leaderboard row. A nil
// WinStreak leaves the stored streak untouched.
type LeaderboardDelta struct {
	WalletAddress string
	Winnings      float64
	Bets          int
	QuizScore     int
	WinStreak     *int
}

// MarketStats is the off-chain aggregate for one market.
type MarketStats struct {
	MarketID      uint64    `json:"market_id"`
	TotalVolume   float64   `json:"total_volume"`
	UniqueBettors int       `json:"unique_bettors"`
	YesPercentage float64   `json:"yes_percentage"`
	NoPercentage  float64   `json:"no_percentage"`
	LastUpdated   time.Time `json:"last_updated"`
}

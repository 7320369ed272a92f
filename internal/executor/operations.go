package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/alanyoungcy/flowpredict/internal/chain"
	"github.com/alanyoungcy/flowpredict/internal/domain"
	"github.com/alanyoungcy/flowpredict/internal/units"
)

// Operation names.
const (
	OpDeposit       = "deposit"
	OpWithdraw      = "withdraw"
	OpPlaceBet      = "bet"
	OpClaimDaily    = "claim_daily"
	OpClaimWinnings = "claim"
	OpCreateMarket  = "create_market"
	OpResolveMarket = "resolve_market"
	OpAnswerQuiz    = "answer_quiz"
	OpCreateQuiz    = "create_quiz"
)

var opLabels = map[string]string{
	OpDeposit:       "Deposit",
	OpWithdraw:      "Withdrawal",
	OpPlaceBet:      "Bet",
	OpClaimDaily:    "Daily Claim",
	OpClaimWinnings: "Claim",
	OpCreateMarket:  "Market Creation",
	OpResolveMarket: "Market Resolution",
	OpAnswerQuiz:    "Quiz Answer",
	OpCreateQuiz:    "Quiz Creation",
}

// StatsReader is the read proxy surface the operations need after
// confirmation.
type StatsReader interface {
	UserStats(ctx context.Context, user common.Address) (domain.UserStatsView, error)
	MarketPool(ctx context.Context, id uint64, outcome domain.Outcome) (*big.Int, error)
}

// SideEffects are the best-effort off-chain writes that follow bets and
// claims.
type SideEffects interface {
	Adjust(ctx context.Context, delta domain.LeaderboardDelta)
	UpsertMarketStats(ctx context.Context, stats domain.MarketStats)
	CountBettors(ctx context.Context, marketID uint64) int
}

// Operations is the typed operation set on top of the pipeline. Decimal
// amounts become base units here and nowhere else.
type Operations struct {
	pipeline *Pipeline
	reader   StatsReader
	effects  SideEffects
	audit    domain.AuditStore
	listing  ListingInvalidator
	contract common.Address
	logger   *slog.Logger
}

// NewOperations builds the operation set. effects and audit may be nil.
func NewOperations(p *Pipeline, reader StatsReader, effects SideEffects, audit domain.AuditStore, contract common.Address, logger *slog.Logger) *Operations {
	if logger == nil {
		logger = slog.Default()
	}
	return &Operations{
		pipeline: p,
		reader:   reader,
		effects:  effects,
		audit:    audit,
		contract: contract,
		logger:   logger.With(slog.String("component", "operations")),
	}
}

func amountPtr(v *big.Int) *float64 {
	f := units.ToFloat(v)
	return &f
}

func idPtr(id uint64) *uint64 { return &id }

// Deposit converts amount FLOW into PREDICT. amount must be > 0.
func (o *Operations) Deposit(ctx context.Context, amount string) (Outcome, error) {
	value, err := units.Positive(amount)
	if err != nil {
		return Outcome{Op: OpDeposit}, err
	}
	display := units.FromBaseUnits(value)
	return o.pipeline.Execute(ctx, Job{
		Op:       OpDeposit,
		Pending:  "Depositing FLOW tokens...",
		Success:  fmt.Sprintf("Successfully deposited %s FLOW for PREDICT tokens!", display),
		Fallback: "Transaction failed",
		Refresh:  true,
		Submit: func(ctx context.Context, w *chain.Writer) (chain.Submission, error) {
			return w.Deposit(ctx, value)
		},
		AfterConfirm: func(_ context.Context, out *Outcome) {
			out.Activity = &domain.ActivityRecord{
				Kind:        domain.ActivityDeposit,
				Description: fmt.Sprintf("Deposited %s FLOW", display),
				Amount:      amountPtr(value),
			}
		},
	})
}

// Withdraw burns amount PREDICT for FLOW.
func (o *Operations) Withdraw(ctx context.Context, amount string) (Outcome, error) {
	value, err := units.ToBaseUnits(amount)
	if err != nil {
		return Outcome{Op: OpWithdraw}, err
	}
	display := units.FromBaseUnits(value)
	return o.pipeline.Execute(ctx, Job{
		Op:       OpWithdraw,
		Pending:  "Withdrawing PREDICT tokens...",
		Success:  fmt.Sprintf("Successfully withdrew %s PREDICT tokens for FLOW!", display),
		Fallback: "Transaction failed",
		Refresh:  true,
		Submit: func(ctx context.Context, w *chain.Writer) (chain.Submission, error) {
			return w.Withdraw(ctx, value)
		},
		AfterConfirm: func(_ context.Context, out *Outcome) {
			out.Activity = &domain.ActivityRecord{
				Kind:        domain.ActivityWithdraw,
				Description: fmt.Sprintf("Withdrew %s PREDICT tokens", display),
				Amount:      amountPtr(value),
			}
		},
	})
}

// PlaceBet stakes amount PREDICT on outcome of market id.
func (o *Operations) PlaceBet(ctx context.Context, id uint64, outcome domain.Outcome, amount string) (Outcome, error) {
	if !outcome.Valid() {
		return Outcome{Op: OpPlaceBet}, fmt.Errorf("executor: outcome %d: %w", outcome, domain.ErrInvalidOutcome)
	}
	value, err := units.ToBaseUnits(amount)
	if err != nil {
		return Outcome{Op: OpPlaceBet}, err
	}
	display := units.FromBaseUnits(value)
	return o.pipeline.Execute(ctx, Job{
		Op:       OpPlaceBet,
		Pending:  "Placing your bet on the market...",
		Success:  fmt.Sprintf("Successfully placed %s PREDICT bet!", display),
		Fallback: "Transaction failed",
		Refresh:  true,
		Submit: func(ctx context.Context, w *chain.Writer) (chain.Submission, error) {
			return w.Bet(ctx, id, outcome, value)
		},
		AfterConfirm: func(_ context.Context, out *Outcome) {
			out.MarketID = id
			out.Activity = &domain.ActivityRecord{
				Kind:        domain.ActivityBet,
				Description: fmt.Sprintf("Bet %s PREDICT on %s", display, outcome),
				Amount:      amountPtr(value),
				MarketID:    idPtr(id),
			}
		},
		Effects: func(ctx context.Context, out *Outcome) {
			o.invalidateListing(ctx)
			o.afterBet(ctx, out.Account, id)
		},
	})
}

// ClaimDaily claims the daily reward and reads back the new streak.
func (o *Operations) ClaimDaily(ctx context.Context) (Outcome, error) {
	return o.pipeline.Execute(ctx, Job{
		Op:       OpClaimDaily,
		Pending:  "Claiming your daily PREDICT tokens...",
		Success:  "Claimed daily rewards!",
		Fallback: "Already claimed today or transaction failed",
		Refresh:  true,
		Submit: func(ctx context.Context, w *chain.Writer) (chain.Submission, error) {
			return w.DailyClaim(ctx)
		},
		AfterConfirm: func(ctx context.Context, out *Outcome) {
			out.Streak = o.readStreak(ctx, out)
			out.Message = fmt.Sprintf("Claimed daily rewards! Streak: %d", out.Streak)
			out.Activity = &domain.ActivityRecord{
				Kind:        domain.ActivityDailyClaim,
				Description: fmt.Sprintf("Daily claim - Streak: %d", out.Streak),
			}
		},
		Effects: func(ctx context.Context, out *Outcome) {
			if o.effects == nil {
				return
			}
			streak := int(out.Streak)
			o.effects.Adjust(ctx, domain.LeaderboardDelta{WalletAddress: out.Account.Hex(), WinStreak: &streak})
		},
	})
}

// readStreak prefers a fresh userStats read and falls back to the
// DailyClaimed event. Neither failing is an error.
func (o *Operations) readStreak(ctx context.Context, out *Outcome) uint64 {
	stats, err := o.reader.UserStats(ctx, out.Account)
	if err == nil {
		return stats.Streak
	}
	o.logger.WarnContext(ctx, "streak read failed after daily claim", slog.String("error", err.Error()))
	if out.Receipt != nil {
		if _, streak, ok := chain.ParseDailyClaimed(out.Receipt.Logs, o.contract); ok {
			return streak.Uint64()
		}
	}
	return 0
}

// ClaimWinnings collects winnings from a resolved market.
func (o *Operations) ClaimWinnings(ctx context.Context, id uint64) (Outcome, error) {
	return o.pipeline.Execute(ctx, Job{
		Op:       OpClaimWinnings,
		Pending:  "Claiming your market winnings...",
		Success:  "Successfully claimed your winnings!",
		Fallback: "No winnings to claim or transaction failed",
		Refresh:  true,
		Submit: func(ctx context.Context, w *chain.Writer) (chain.Submission, error) {
			return w.Claim(ctx, id)
		},
		AfterConfirm: func(_ context.Context, out *Outcome) {
			out.MarketID = id
			out.Activity = &domain.ActivityRecord{
				Kind:        domain.ActivityClaim,
				Description: fmt.Sprintf("Claimed winnings from market #%d", id),
				MarketID:    idPtr(id),
			}
		},
		Effects: func(ctx context.Context, out *Outcome) {
			if o.effects == nil || out.Receipt == nil {
				return
			}
			amount, ok := chain.ParseClaimed(out.Receipt.Logs, o.contract)
			if !ok {
				return
			}
			o.effects.Adjust(ctx, domain.LeaderboardDelta{
				WalletAddress: out.Account.Hex(),
				Winnings:      units.ToFloat(amount),
			})
		},
	})
}

// CreateMarket opens a market and recovers its id from the MarketCreated
// log. The id is 0 when no such log is found.
func (o *Operations) CreateMarket(ctx context.Context, question string, resolveTime time.Time, oracle common.Address, isBinary bool) (Outcome, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return Outcome{Op: OpCreateMarket}, fmt.Errorf("executor: empty question: %w", domain.ErrInvalidInput)
	}
	return o.pipeline.Execute(ctx, Job{
		Op:       OpCreateMarket,
		Pending:  "Creating new prediction market...",
		Success:  "Successfully created market",
		Fallback: "Only owner can create markets",
		Submit: func(ctx context.Context, w *chain.Writer) (chain.Submission, error) {
			return w.CreateMarket(ctx, question, resolveTime.Unix(), oracle, isBinary)
		},
		AfterConfirm: func(ctx context.Context, out *Outcome) {
			if out.Receipt != nil {
				if id, ok := chain.ParseMarketCreated(out.Receipt.Logs, o.contract); ok {
					out.MarketID = id
				}
			}
			out.Message = fmt.Sprintf("Successfully created market #%d", out.MarketID)
			o.auditLog(ctx, "market.created", map[string]any{
				"market_id":    out.MarketID,
				"question":     question,
				"resolve_time": resolveTime.Unix(),
				"oracle":       oracle.Hex(),
				"tx":           out.TxHash.Hex(),
			})
		},
		Effects: func(ctx context.Context, _ *Outcome) {
			o.invalidateListing(ctx)
		},
	})
}

// ResolveMarket settles a market (owner or oracle only).
func (o *Operations) ResolveMarket(ctx context.Context, id uint64, winning domain.Outcome) (Outcome, error) {
	if !winning.Valid() {
		return Outcome{Op: OpResolveMarket}, fmt.Errorf("executor: outcome %d: %w", winning, domain.ErrInvalidOutcome)
	}
	return o.pipeline.Execute(ctx, Job{
		Op:       OpResolveMarket,
		Pending:  "Setting the market outcome...",
		Success:  fmt.Sprintf("Successfully resolved market #%d", id),
		Fallback: "Only owner/oracle can resolve markets",
		Submit: func(ctx context.Context, w *chain.Writer) (chain.Submission, error) {
			return w.ResolveMarket(ctx, id, winning)
		},
		AfterConfirm: func(_ context.Context, out *Outcome) {
			out.MarketID = id
			out.Activity = &domain.ActivityRecord{
				Kind:        domain.ActivityResolveMarket,
				Description: fmt.Sprintf("Resolved market #%d with outcome: %s", id, winning),
				MarketID:    idPtr(id),
			}
		},
		Effects: func(ctx context.Context, _ *Outcome) {
			o.invalidateListing(ctx)
		},
	})
}

// AnswerQuiz submits the plaintext answer; the contract hashes and compares.
func (o *Operations) AnswerQuiz(ctx context.Context, id uint64, answer string) (Outcome, error) {
	return o.pipeline.Execute(ctx, Job{
		Op:       OpAnswerQuiz,
		Pending:  "Submitting your quiz answer...",
		Success:  "Quiz answer submitted successfully!",
		Fallback: "Already answered or quiz expired",
		Refresh:  true,
		Submit: func(ctx context.Context, w *chain.Writer) (chain.Submission, error) {
			return w.AnswerQuiz(ctx, id, answer)
		},
		AfterConfirm: func(_ context.Context, out *Outcome) {
			out.Activity = &domain.ActivityRecord{
				Kind:        domain.ActivityQuiz,
				Description: fmt.Sprintf("Answered quiz #%d", id),
			}
		},
	})
}

// AnswerHash is keccak256 of the UTF-8 answer, as stored by createQuiz.
func AnswerHash(answer string) common.Hash {
	return ethcrypto.Keccak256Hash([]byte(answer))
}

// CreateQuiz publishes a quiz; only the answer hash goes on chain.
func (o *Operations) CreateQuiz(ctx context.Context, question, answer, reward string, deadline time.Time) (Outcome, error) {
	value, err := units.ToBaseUnits(reward)
	if err != nil {
		return Outcome{Op: OpCreateQuiz}, err
	}
	hash := AnswerHash(answer)
	return o.pipeline.Execute(ctx, Job{
		Op:       OpCreateQuiz,
		Pending:  "Creating new brain teaser...",
		Success:  "Successfully created a new quiz!",
		Fallback: "Only owner can create quizzes",
		Submit: func(ctx context.Context, w *chain.Writer) (chain.Submission, error) {
			return w.CreateQuiz(ctx, question, hash, value, deadline.Unix())
		},
		AfterConfirm: func(ctx context.Context, out *Outcome) {
			o.auditLog(ctx, "quiz.created", map[string]any{
				"question": question,
				"reward":   units.FromBaseUnits(value),
				"deadline": deadline.Unix(),
				"tx":       out.TxHash.Hex(),
			})
		},
	})
}

func (o *Operations) auditLog(ctx context.Context, event string, detail map[string]any) {
	if o.audit == nil {
		return
	}
	if err := o.audit.Log(ctx, event, detail); err != nil {
		o.logger.WarnContext(ctx, "audit log failed", slog.String("event", event), slog.String("error", err.Error()))
	}
}

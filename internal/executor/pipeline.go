// Package executor runs every mutating contract operation through one
// pipeline: precondition, submit, confirm, then best-effort follow-ups.
package executor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/alanyoungcy/flowpredict/internal/chain"
	"github.com/alanyoungcy/flowpredict/internal/domain"
	"github.com/alanyoungcy/flowpredict/internal/session"
)

// Binder exposes the session's current signer binding.
type Binder interface {
	Binding() (session.Binding, bool)
}

// Refresher triggers a throttled balance refresh.
type Refresher interface {
	Refresh()
}

// Reporter delivers user-visible transaction notices.
type Reporter interface {
	Report(ctx context.Context, notice domain.TxNotice)
}

// ActivityRecorder writes activity records. It must not block on failure.
type ActivityRecorder interface {
	RecordActivity(ctx context.Context, rec domain.ActivityRecord)
}

// Confirmer waits for receipts and recovers revert reasons.
type Confirmer interface {
	chain.ReceiptReader
	chain.Replayer
}

// Config tunes the pipeline.
type Config struct {
	PollInterval        time.Duration
	ConfirmTimeout      time.Duration
	SerializePerAccount bool
	LockTTL             time.Duration
}

// Outcome is what a confirmed operation produced.
type Outcome struct {
	Op       string
	Account  common.Address
	TxHash   common.Hash
	Receipt  *types.Receipt
	Activity *domain.ActivityRecord
	MarketID uint64
	Streak   uint64
	Message  string // success text; set in AfterConfirm to override Job.Success
}

// Job describes one mutating operation.
type Job struct {
	Op       string
	Pending  string // submitted notice text
	Success  string // succeeded notice text
	Fallback string // failure text when no better reason exists
	Refresh  bool

	Submit func(ctx context.Context, w *chain.Writer) (chain.Submission, error)
	// AfterConfirm enriches the outcome (ids, activity). It cannot fail the
	// operation.
	AfterConfirm func(ctx context.Context, out *Outcome)
	// Effects are best-effort off-chain follow-ups.
	Effects func(ctx context.Context, out *Outcome)
}

// Pipeline executes jobs at most once each; it never retries.
type Pipeline struct {
	binder    Binder
	confirmer Confirmer
	balances  Refresher
	mirror    ActivityRecorder
	reporter  Reporter
	locks     domain.LockManager
	network   domain.NetworkDescriptor
	cfg       Config
	logger    *slog.Logger
}

// NewPipeline wires a pipeline. locks may be nil, in which case an
// in-process lock table is used when serialization is on.
func NewPipeline(
	binder Binder,
	confirmer Confirmer,
	balances Refresher,
	mirror ActivityRecorder,
	reporter Reporter,
	locks domain.LockManager,
	network domain.NetworkDescriptor,
	cfg Config,
	logger *slog.Logger,
) *Pipeline {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = chain.DefaultPollInterval
	}
	if cfg.ConfirmTimeout <= 0 {
		cfg.ConfirmTimeout = 5 * time.Minute
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = cfg.ConfirmTimeout + time.Minute
	}
	if locks == nil {
		locks = NewLocalLocks()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		binder:    binder,
		confirmer: confirmer,
		balances:  balances,
		mirror:    mirror,
		reporter:  reporter,
		locks:     locks,
		network:   network,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "tx_pipeline")),
	}
}

// Execute runs job for the bound account.
func (p *Pipeline) Execute(ctx context.Context, job Job) (Outcome, error) {
	out := Outcome{Op: job.Op}

	// 1. Precondition.
	binding, ok := p.binder.Binding()
	if !ok {
		p.notify(ctx, job, domain.NoticeFailed, "", "Please connect your wallet first.")
		return out, &domain.TxError{Op: job.Op, Reason: "wallet not connected", Err: domain.ErrNotConnected}
	}
	out.Account = binding.Account
	log := p.logger.With(slog.String("op", job.Op), slog.String("account", binding.Account.Hex()))

	if p.cfg.SerializePerAccount {
		unlock, err := p.locks.Acquire(ctx, "tx:"+strings.ToLower(binding.Account.Hex()), p.cfg.LockTTL)
		if err != nil {
			reason := job.Fallback
			if errors.Is(err, domain.ErrLockHeld) {
				err = domain.ErrOperationInFlight
				reason = "Another transaction is still confirming."
			} else {
				log.ErrorContext(ctx, "account lock failed", slog.String("error", err.Error()))
			}
			p.notify(ctx, job, domain.NoticeFailed, "", reason)
			return out, &domain.TxError{Op: job.Op, Reason: reason, Err: err}
		}
		defer unlock()
	}

	// 2. Submit.
	sub, err := job.Submit(ctx, binding.Writer)
	if err != nil {
		reason := submitReason(err, job.Fallback)
		log.WarnContext(ctx, "submit failed", slog.String("error", err.Error()))
		p.notify(ctx, job, domain.NoticeFailed, "", reason)
		return out, &domain.TxError{Op: job.Op, Reason: reason, Err: err}
	}
	out.TxHash = sub.Hash
	hash := sub.Hash.Hex()
	log = log.With(slog.String("tx", hash))
	log.InfoContext(ctx, "transaction submitted")
	p.notify(ctx, job, domain.NoticeSubmitted, hash, job.Pending)

	// 3. Confirm. A submitted transaction is never cancelled, so the wait
	// outlives the caller's context.
	waitCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), p.cfg.ConfirmTimeout)
	defer cancel()
	receipt, err := chain.WaitMined(waitCtx, p.confirmer, sub.Hash, p.cfg.PollInterval)
	if err != nil {
		reason := job.Fallback
		if errors.Is(err, domain.ErrTransactionReverted) {
			if r := chain.RevertReason(waitCtx, p.confirmer, sub, receipt); r != "" {
				reason = r
			}
		}
		log.WarnContext(ctx, "transaction failed", slog.String("reason", reason), slog.String("error", err.Error()))
		p.notify(ctx, job, domain.NoticeFailed, hash, reason)
		return out, &domain.TxError{Op: job.Op, Hash: hash, Reason: reason, Err: err}
	}
	out.Receipt = receipt

	// 4. Post-confirmation, success only.
	if job.AfterConfirm != nil {
		job.AfterConfirm(waitCtx, &out)
	}
	if job.Refresh && p.balances != nil {
		p.balances.Refresh()
	}
	if out.Activity != nil {
		out.Activity.WalletAddress = binding.Account.Hex()
		out.Activity.TransactionHash = hash
		if p.mirror != nil {
			p.mirror.RecordActivity(waitCtx, *out.Activity)
		}
	}
	if job.Effects != nil {
		job.Effects(waitCtx, &out)
	}

	log.InfoContext(ctx, "transaction confirmed", slog.Uint64("block", receipt.BlockNumber.Uint64()))
	if out.Message == "" {
		out.Message = job.Success
	}
	p.notify(ctx, job, domain.NoticeSucceeded, hash, out.Message)
	return out, nil
}

func (p *Pipeline) notify(ctx context.Context, job Job, stage domain.NoticeStage, hash, msg string) {
	if p.reporter == nil {
		return
	}
	n := domain.TxNotice{
		Op:        job.Op,
		Stage:     stage,
		TxHash:    hash,
		Title:     noticeTitle(job.Op, stage),
		Message:   msg,
		Explorer:  p.network.TxURL(hash),
		CreatedAt: time.Now().UTC(),
	}
	if b, ok := p.binder.Binding(); ok {
		n.Account = b.Account.Hex()
	}
	p.reporter.Report(context.WithoutCancel(ctx), n)
}

// submitReason picks the most readable cause of a submit failure.
func submitReason(err error, fallback string) string {
	if r := chain.ReasonFromError(err); r != "" {
		return r
	}
	switch {
	case errors.Is(err, domain.ErrUserRejected):
		return "Transaction rejected in wallet."
	case errors.Is(err, domain.ErrWalletUnavailable):
		return "No wallet available."
	}
	if fallback != "" {
		return fallback
	}
	return "Transaction failed"
}

func noticeTitle(op string, stage domain.NoticeStage) string {
	label := opLabels[op]
	if label == "" {
		label = "Transaction"
	}
	switch stage {
	case domain.NoticeSubmitted:
		return "Transaction Sent"
	case domain.NoticeSucceeded:
		return fmt.Sprintf("%s Successful", label)
	default:
		return fmt.Sprintf("%s Failed", label)
	}
}

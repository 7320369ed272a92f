// Package mirror is the off-chain record of user activity, leaderboard rows
// and market aggregates. It is never authoritative: writes are best-effort
// and reads degrade to empty on failure.
package mirror

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

// Defaults for list reads.
const (
	DefaultLeaderboardLimit = 100
	DefaultActivityLimit    = 50
)

const writeTimeout = 10 * time.Second

// Client fronts the mirror stores.
type Client struct {
	activity    domain.ActivityStore
	leaderboard domain.LeaderboardStore
	stats       domain.MarketStatsStore
	logger      *slog.Logger
	now         func() time.Time
}

// New builds a Client. Any store may be nil, which turns its operations into
// no-ops (writes) or empty results (reads).
func New(activity domain.ActivityStore, leaderboard domain.LeaderboardStore, stats domain.MarketStatsStore, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		activity:    activity,
		leaderboard: leaderboard,
		stats:       stats,
		logger:      logger.With(slog.String("component", "mirror")),
		now:         time.Now,
	}
}

// writeCtx detaches a best-effort write from the caller's cancellation.
func writeCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), writeTimeout)
}

// RecordActivity inserts rec. Failures are logged and never returned.
func (c *Client) RecordActivity(ctx context.Context, rec domain.ActivityRecord) {
	if c.activity == nil {
		return
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = c.now().UTC()
	}
	wctx, cancel := writeCtx(ctx)
	defer cancel()
	if err := c.activity.Insert(wctx, rec); err != nil {
		c.logger.WarnContext(ctx, "record activity failed",
			slog.String("wallet", rec.WalletAddress),
			slog.String("type", string(rec.Kind)),
			slog.String("error", err.Error()),
		)
	}
}

// Adjust applies a leaderboard increment. Failures are logged.
func (c *Client) Adjust(ctx context.Context, delta domain.LeaderboardDelta) {
	if c.leaderboard == nil {
		return
	}
	wctx, cancel := writeCtx(ctx)
	defer cancel()
	if err := c.leaderboard.Adjust(wctx, delta); err != nil {
		c.logger.WarnContext(ctx, "leaderboard adjust failed",
			slog.String("wallet", delta.WalletAddress),
			slog.String("error", err.Error()),
		)
	}
}

// TopLeaderboard returns up to limit rows by total winnings. limit <= 0
// means DefaultLeaderboardLimit. Errors yield an empty list.
func (c *Client) TopLeaderboard(ctx context.Context, limit int) []domain.LeaderboardEntry {
	if c.leaderboard == nil {
		return []domain.LeaderboardEntry{}
	}
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	rows, err := c.leaderboard.Top(ctx, limit)
	if err != nil {
		c.logger.WarnContext(ctx, "leaderboard read failed", slog.String("error", err.Error()))
		return []domain.LeaderboardEntry{}
	}
	if rows == nil {
		rows = []domain.LeaderboardEntry{}
	}
	return rows
}

// LeaderboardEntry returns the row for wallet, or an error wrapping
// domain.ErrNotFound when the wallet has none or no store is configured.
func (c *Client) LeaderboardEntry(ctx context.Context, wallet string) (domain.LeaderboardEntry, error) {
	if c.leaderboard == nil || strings.TrimSpace(wallet) == "" {
		return domain.LeaderboardEntry{}, fmt.Errorf("mirror: leaderboard %q: %w", wallet, domain.ErrNotFound)
	}
	e, err := c.leaderboard.Get(ctx, wallet)
	if err != nil {
		return domain.LeaderboardEntry{}, fmt.Errorf("mirror: leaderboard %s: %w", wallet, err)
	}
	return e, nil
}

// RecentActivity returns the wallet's newest activity. limit <= 0 means
// DefaultActivityLimit. Errors yield an empty list.
func (c *Client) RecentActivity(ctx context.Context, wallet string, limit int) []domain.ActivityRecord {
	if c.activity == nil || strings.TrimSpace(wallet) == "" {
		return []domain.ActivityRecord{}
	}
	if limit <= 0 {
		limit = DefaultActivityLimit
	}
	recs, err := c.activity.ListByWallet(ctx, wallet, domain.ListOpts{Limit: limit})
	if err != nil {
		c.logger.WarnContext(ctx, "activity read failed",
			slog.String("wallet", wallet),
			slog.String("error", err.Error()),
		)
		return []domain.ActivityRecord{}
	}
	if recs == nil {
		recs = []domain.ActivityRecord{}
	}
	return recs
}

// UpsertMarketStats writes a market aggregate. Failures are logged.
func (c *Client) UpsertMarketStats(ctx context.Context, stats domain.MarketStats) {
	if c.stats == nil {
		return
	}
	wctx, cancel := writeCtx(ctx)
	defer cancel()
	if err := c.stats.Upsert(wctx, stats); err != nil {
		c.logger.WarnContext(ctx, "market stats upsert failed",
			slog.Uint64("market_id", stats.MarketID),
			slog.String("error", err.Error()),
		)
	}
}

// MarketStats returns the aggregate for id. ErrNotFound passes through so
// callers can tell "never bet on" from a failure.
func (c *Client) MarketStats(ctx context.Context, id uint64) (domain.MarketStats, error) {
	if c.stats == nil {
		return domain.MarketStats{}, domain.ErrNotFound
	}
	st, err := c.stats.Get(ctx, id)
	if err != nil && !errors.Is(err, domain.ErrNotFound) {
		c.logger.WarnContext(ctx, "market stats read failed",
			slog.Uint64("market_id", id),
			slog.String("error", err.Error()),
		)
	}
	return st, err
}

// CountBettors counts distinct bettors on a market, 0 on failure.
func (c *Client) CountBettors(ctx context.Context, marketID uint64) int {
	if c.activity == nil {
		return 0
	}
	n, err := c.activity.CountBettors(ctx, marketID)
	if err != nil {
		c.logger.WarnContext(ctx, "count bettors failed",
			slog.Uint64("market_id", marketID),
			slog.String("error", err.Error()),
		)
		return 0
	}
	return n
}

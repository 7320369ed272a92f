package domain

import (
	"context"
	"time"
)

// ListOpts provides pagination and filtering for list queries.
type ListOpts struct {
	Limit  int
	Offset int
	Since  *time.Time
	Until  *time.Time
}

// ActivityStore persists the append-only user_activity log.
type ActivityStore interface {
	Insert(ctx context.Context, rec ActivityRecord) error
	ListByWallet(ctx context.Context, wallet string, opts ListOpts) ([]ActivityRecord, error)
	ListBefore(ctx context.Context, before time.Time) ([]ActivityRecord, error)
	CountBettors(ctx context.Context, marketID uint64) (int, error)
}

// LeaderboardStore persists ranking rows keyed by wallet address.
type LeaderboardStore interface {
	Adjust(ctx context.Context, delta LeaderboardDelta) error
	Top(ctx context.Context, limit int) ([]LeaderboardEntry, error)
	Get(ctx context.Context, wallet string) (LeaderboardEntry, error)
}

// MarketStatsStore persists per-market aggregates.
type MarketStatsStore interface {
	Upsert(ctx context.Context, stats MarketStats) error
	Get(ctx context.Context, marketID uint64) (MarketStats, error)
}

// AuditEntry is a single audit log row.
type AuditEntry struct {
	ID        int64
	Event     string
	Detail    map[string]any
	CreatedAt time.Time
}

// AuditStore persists an append-only audit log.
type AuditStore interface {
	Log(ctx context.Context, event string, detail map[string]any) error
	List(ctx context.Context, opts ListOpts) ([]AuditEntry, error)
}

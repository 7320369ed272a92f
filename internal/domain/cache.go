package domain

import (
	"context"
	"time"
)

// BalanceCache mirrors the latest balance snapshot per account so other
// processes and API handlers can read it without touching the chain.
type BalanceCache interface {
	SetSnapshot(ctx context.Context, snap BalanceSnapshot) error
	GetSnapshot(ctx context.Context, account string) (BalanceSnapshot, error)
	Invalidate(ctx context.Context, account string) error
}

// MarketCache holds the most recent market listing.
type MarketCache interface {
	SetListing(ctx context.Context, markets []MarketView) error
	GetListing(ctx context.Context) ([]MarketView, error)
	Invalidate(ctx context.Context) error
}

// RateLimiter provides distributed rate limiting.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
	Wait(ctx context.Context, key string) error
}

// LockManager provides distributed locking.
type LockManager interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (unlock func(), err error)
}

// StreamMessage represents a single entry from a Redis stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// SignalBus provides pub/sub and durable streams.
type SignalBus interface {
	Publish(ctx context.Context, channel string, payload []byte) error
	Subscribe(ctx context.Context, channel string) (<-chan []byte, error)
	StreamAppend(ctx context.Context, stream string, payload []byte) error
	StreamRead(ctx context.Context, stream string, lastID string, count int) ([]StreamMessage, error)
}

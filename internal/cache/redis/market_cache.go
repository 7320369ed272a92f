package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

// DefaultListingTTL bounds how stale a cached market listing may be.
const DefaultListingTTL = 15 * time.Second

const listingKey = "markets:listing"

// MarketCache holds the last full market listing as one JSON string.
type MarketCache struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ domain.MarketCache = (*MarketCache)(nil)

// NewMarketCache creates a MarketCache; ttl <= 0 uses DefaultListingTTL.
func NewMarketCache(c *Client, ttl time.Duration) *MarketCache {
	if ttl <= 0 {
		ttl = DefaultListingTTL
	}
	return &MarketCache{rdb: c.Underlying(), ttl: ttl}
}

// SetListing replaces the cached listing.
func (mc *MarketCache) SetListing(ctx context.Context, markets []domain.MarketView) error {
	data, err := json.Marshal(markets)
	if err != nil {
		return fmt.Errorf("redis: marshal listing: %w", err)
	}
	if err := mc.rdb.Set(ctx, listingKey, data, mc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set listing: %w", err)
	}
	return nil
}

// GetListing returns the cached listing or domain.ErrNotFound.
func (mc *MarketCache) GetListing(ctx context.Context) ([]domain.MarketView, error) {
	data, err := mc.rdb.Get(ctx, listingKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("redis: get listing: %w", err)
	}

	var markets []domain.MarketView
	if err := json.Unmarshal(data, &markets); err != nil {
		return nil, fmt.Errorf("redis: unmarshal listing: %w", err)
	}
	return markets, nil
}

// Invalidate drops the listing, used after a market is created or resolved.
func (mc *MarketCache) Invalidate(ctx context.Context) error {
	if err := mc.rdb.Del(ctx, listingKey).Err(); err != nil {
		return fmt.Errorf("redis: invalidate listing: %w", err)
	}
	return nil
}

package redis

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

// DefaultBalanceTTL outlives a few poll intervals so a stalled poller lets
// the entry expire rather than serve old funds forever.
const DefaultBalanceTTL = time.Minute

// BalanceCache mirrors the latest BalanceSnapshot per account.
//
// Key schema:
//
//	balance:{account} - hash with native, token, native_display,
//	                    token_display and refreshed_at (unix ms)
type BalanceCache struct {
	rdb *redis.Client
	ttl time.Duration
}

var _ domain.BalanceCache = (*BalanceCache)(nil)

// NewBalanceCache creates a BalanceCache; ttl <= 0 uses DefaultBalanceTTL.
func NewBalanceCache(c *Client, ttl time.Duration) *BalanceCache {
	if ttl <= 0 {
		ttl = DefaultBalanceTTL
	}
	return &BalanceCache{rdb: c.Underlying(), ttl: ttl}
}

func balanceKey(account string) string {
	return "balance:" + strings.ToLower(account)
}

// SetSnapshot stores snap under its account.
func (bc *BalanceCache) SetSnapshot(ctx context.Context, snap domain.BalanceSnapshot) error {
	key := balanceKey(snap.Account.Hex())

	pipe := bc.rdb.TxPipeline()
	pipe.HSet(ctx, key, map[string]any{
		"native":         bigString(snap.Native),
		"token":          bigString(snap.Token),
		"native_display": snap.NativeDisplay,
		"token_display":  snap.TokenDisplay,
		"refreshed_at":   snap.RefreshedAt.UnixMilli(),
	})
	pipe.Expire(ctx, key, bc.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set balance %s: %w", snap.Account.Hex(), err)
	}
	return nil
}

// GetSnapshot returns the snapshot for account or domain.ErrNotFound.
func (bc *BalanceCache) GetSnapshot(ctx context.Context, account string) (domain.BalanceSnapshot, error) {
	vals, err := bc.rdb.HGetAll(ctx, balanceKey(account)).Result()
	if err != nil {
		return domain.BalanceSnapshot{}, fmt.Errorf("redis: get balance %s: %w", account, err)
	}
	if len(vals) == 0 {
		return domain.BalanceSnapshot{}, domain.ErrNotFound
	}
	return snapshotFromHash(account, vals)
}

// Invalidate removes the entry for account.
func (bc *BalanceCache) Invalidate(ctx context.Context, account string) error {
	if err := bc.rdb.Del(ctx, balanceKey(account)).Err(); err != nil {
		return fmt.Errorf("redis: invalidate balance %s: %w", account, err)
	}
	return nil
}

func snapshotFromHash(account string, vals map[string]string) (domain.BalanceSnapshot, error) {
	snap := domain.BalanceSnapshot{
		Account:       common.HexToAddress(account),
		NativeDisplay: vals["native_display"],
		TokenDisplay:  vals["token_display"],
	}
	var ok bool
	if snap.Native, ok = new(big.Int).SetString(vals["native"], 10); !ok {
		return domain.BalanceSnapshot{}, fmt.Errorf("redis: balance %s: bad native %q", account, vals["native"])
	}
	if snap.Token, ok = new(big.Int).SetString(vals["token"], 10); !ok {
		return domain.BalanceSnapshot{}, fmt.Errorf("redis: balance %s: bad token %q", account, vals["token"])
	}
	var ms int64
	if _, err := fmt.Sscan(vals["refreshed_at"], &ms); err != nil {
		return domain.BalanceSnapshot{}, fmt.Errorf("redis: balance %s: refreshed_at: %w", account, err)
	}
	snap.RefreshedAt = time.UnixMilli(ms).UTC()
	return snap, nil
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

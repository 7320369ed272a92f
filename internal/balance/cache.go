// Package balance keeps the throttled native/token balance snapshot of the
// bound account.
package balance

import (
	"context"
	"encoding/json"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/flowpredict/internal/domain"
	"github.com/alanyoungcy/flowpredict/internal/units"
)

const (
	DefaultWindow       = 5 * time.Second
	DefaultPollInterval = 10 * time.Second
	fetchTimeout        = 15 * time.Second
)

// Fetcher reads balances from the read provider.
type Fetcher interface {
	NativeBalance(ctx context.Context, account common.Address) (*big.Int, error)
	TokenBalance(ctx context.Context, account common.Address) (*big.Int, error)
}

// Cache holds one snapshot for the bound account. Refresh is throttled to
// the trailing edge of a fixed window: the first call in an idle period arms
// a fetch at the end of the window and later calls join it.
type Cache struct {
	fetcher Fetcher
	window  time.Duration
	mirror  domain.BalanceCache
	bus     domain.SignalBus
	logger  *slog.Logger
	now     func() time.Time

	mu      sync.Mutex
	account *common.Address
	snap    domain.BalanceSnapshot
	pending *time.Timer
	gen     uint64

	life context.Context
	stop context.CancelFunc
}

// Option configures optional collaborators.
type Option func(*Cache)

// WithMirror copies every snapshot into a shared cache.
func WithMirror(m domain.BalanceCache) Option { return func(c *Cache) { c.mirror = m } }

// WithSignalBus publishes every snapshot on ch:balance.
func WithSignalBus(bus domain.SignalBus) Option { return func(c *Cache) { c.bus = bus } }

// New creates an unbound cache. A non-positive window uses DefaultWindow.
func New(fetcher Fetcher, window time.Duration, logger *slog.Logger, opts ...Option) *Cache {
	if window <= 0 {
		window = DefaultWindow
	}
	if logger == nil {
		logger = slog.Default()
	}
	life, stop := context.WithCancel(context.Background())
	c := &Cache{
		fetcher: fetcher,
		window:  window,
		logger:  logger.With(slog.String("component", "balance_cache")),
		now:     time.Now,
		life:    life,
		stop:    stop,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Close cancels pending and in-flight fetches.
func (c *Cache) Close() {
	c.Reset()
	c.stop()
}

// Snapshot returns the current snapshot and whether one has been fetched.
func (c *Cache) Snapshot() (domain.BalanceSnapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snap, !c.snap.IsZero()
}

// Account returns the bound account.
func (c *Cache) Account() (common.Address, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.account == nil {
		return common.Address{}, false
	}
	return *c.account, true
}

// Bind switches the cache to account and performs an immediate fetch.
func (c *Cache) Bind(ctx context.Context, account common.Address) {
	c.mu.Lock()
	c.gen++
	c.cancelPendingLocked()
	c.account = &account
	c.snap = domain.BalanceSnapshot{}
	c.mu.Unlock()

	c.Prime(ctx)
}

// Reset unbinds the account, clears the snapshot and cancels the pending
// trailing fetch.
func (c *Cache) Reset() {
	c.mu.Lock()
	c.gen++
	c.cancelPendingLocked()
	prev := c.account
	c.account = nil
	c.snap = domain.BalanceSnapshot{}
	c.mu.Unlock()

	if prev != nil && c.mirror != nil {
		ctx, cancel := context.WithTimeout(c.life, 2*time.Second)
		defer cancel()
		if err := c.mirror.Invalidate(ctx, prev.Hex()); err != nil {
			c.logger.Warn("invalidate mirrored balance", slog.String("error", err.Error()))
		}
	}
}

func (c *Cache) cancelPendingLocked() {
	if c.pending != nil {
		c.pending.Stop()
		c.pending = nil
	}
}

// Refresh requests a fetch. It never blocks and never drops the request:
// a fetch always follows at the end of the current window.
func (c *Cache) Refresh() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.account == nil || c.pending != nil {
		return
	}
	gen := c.gen
	c.pending = time.AfterFunc(c.window, func() { c.trailing(gen) })
}

func (c *Cache) trailing(gen uint64) {
	c.mu.Lock()
	if gen != c.gen || c.account == nil {
		c.mu.Unlock()
		return
	}
	c.pending = nil
	account := *c.account
	c.mu.Unlock()

	ctx, cancel := context.WithTimeout(c.life, fetchTimeout)
	defer cancel()
	c.fetch(ctx, account, gen)
}

// Prime fetches immediately, bypassing the throttle. Used on account bind.
func (c *Cache) Prime(ctx context.Context) {
	c.mu.Lock()
	if c.account == nil {
		c.mu.Unlock()
		return
	}
	account := *c.account
	gen := c.gen
	c.mu.Unlock()

	c.fetch(ctx, account, gen)
}

// fetch reads both balances concurrently and swaps the snapshot only when
// both succeed and the binding has not changed meanwhile.
func (c *Cache) fetch(ctx context.Context, account common.Address, gen uint64) {
	var native, token *big.Int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		native, err = c.fetcher.NativeBalance(gctx, account)
		return err
	})
	g.Go(func() error {
		var err error
		token, err = c.fetcher.TokenBalance(gctx, account)
		return err
	})
	if err := g.Wait(); err != nil {
		c.logger.WarnContext(ctx, "balance refresh failed, keeping previous snapshot",
			slog.String("account", account.Hex()),
			slog.String("error", err.Error()),
		)
		return
	}

	snap := domain.BalanceSnapshot{
		Account:       account,
		Native:        native,
		Token:         token,
		NativeDisplay: units.FromBaseUnits(native),
		TokenDisplay:  units.FromBaseUnits(token),
		RefreshedAt:   c.now(),
	}

	c.mu.Lock()
	if gen != c.gen {
		c.mu.Unlock()
		return
	}
	c.snap = snap
	c.mu.Unlock()

	c.share(ctx, snap)
}

func (c *Cache) share(ctx context.Context, snap domain.BalanceSnapshot) {
	if c.mirror != nil {
		if err := c.mirror.SetSnapshot(ctx, snap); err != nil {
			c.logger.WarnContext(ctx, "mirror balance snapshot", slog.String("error", err.Error()))
		}
	}
	if c.bus != nil {
		payload, err := json.Marshal(snap)
		if err == nil {
			err = c.bus.Publish(ctx, domain.ChannelBalance, payload)
		}
		if err != nil {
			c.logger.WarnContext(ctx, "publish balance snapshot", slog.String("error", err.Error()))
		}
	}
}

// Run requests a refresh every interval while an account is bound, until
// ctx ends.
func (c *Cache) Run(ctx context.Context, interval time.Duration) error {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	c.logger.InfoContext(ctx, "balance poller started", slog.Duration("interval", interval))

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			c.logger.InfoContext(ctx, "balance poller stopped")
			return ctx.Err()
		case <-ticker.C:
			c.Refresh()
		}
	}
}

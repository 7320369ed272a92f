// Package service is the read query layer over the contract. Every read
// goes through the read provider, never the wallet.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/flowpredict/internal/chain"
	"github.com/alanyoungcy/flowpredict/internal/domain"
	"github.com/alanyoungcy/flowpredict/internal/units"
)

// rpcLimitKey is the shared rate-limit bucket for per-index reads.
const rpcLimitKey = "rpc:read"

// DefaultMaxListing caps how many indices one listing walks. Beyond it only
// the newest entries are read.
const DefaultMaxListing = 1000

// ChainReader is the subset of chain.Reader the service needs.
type ChainReader interface {
	MarketCount(ctx context.Context) (uint64, error)
	Market(ctx context.Context, id uint64) (domain.MarketView, error)
	MarketPool(ctx context.Context, id uint64, outcome domain.Outcome) (*big.Int, error)
	UserBet(ctx context.Context, id uint64, user common.Address, outcome domain.Outcome) (*big.Int, error)
	QuotePayout(ctx context.Context, id uint64, outcome domain.Outcome, stake *big.Int) (*big.Int, error)
	CanClaim(ctx context.Context, user common.Address) (bool, error)
	UserStats(ctx context.Context, user common.Address) (domain.UserStatsView, error)
	QuizCount(ctx context.Context) (uint64, error)
	Quiz(ctx context.Context, id uint64) (domain.Quiz, error)
	Params(ctx context.Context) (domain.ContractParams, error)
	Token(ctx context.Context) (chain.TokenMeta, error)
}

var _ ChainReader = (*chain.Reader)(nil)

// MarketService answers market, user and quiz queries.
type MarketService struct {
	reader  ChainReader
	cache   domain.MarketCache
	limiter domain.RateLimiter
	maxList uint64
	logger  *slog.Logger
}

// Option configures a MarketService.
type Option func(*MarketService)

// WithListingCache caches ListMarkets results.
func WithListingCache(c domain.MarketCache) Option { return func(s *MarketService) { s.cache = c } }

// WithRateLimiter paces per-index reads through a shared budget.
func WithRateLimiter(l domain.RateLimiter) Option { return func(s *MarketService) { s.limiter = l } }

// WithMaxListing overrides DefaultMaxListing. n <= 0 keeps the default.
func WithMaxListing(n int) Option {
	return func(s *MarketService) {
		if n > 0 {
			s.maxList = uint64(n)
		}
	}
}

// NewMarketService creates a MarketService.
func NewMarketService(reader ChainReader, logger *slog.Logger, opts ...Option) *MarketService {
	if logger == nil {
		logger = slog.Default()
	}
	s := &MarketService{
		reader:  reader,
		maxList: DefaultMaxListing,
		logger:  logger.With(slog.String("component", "market_service")),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// ListMarkets returns every market, serving the cached listing when fresh.
func (s *MarketService) ListMarkets(ctx context.Context) []domain.MarketView {
	if s.cache != nil {
		if markets, err := s.cache.GetListing(ctx); err == nil {
			return markets
		} else if !errors.Is(err, domain.ErrNotFound) {
			s.logger.WarnContext(ctx, "listing cache read failed", slog.String("error", err.Error()))
		}
	}
	return s.RefreshMarkets(ctx)
}

// RefreshMarkets reads the full listing from chain and refills the cache.
// A failed index is logged and skipped; a failed count yields an empty
// listing.
func (s *MarketService) RefreshMarkets(ctx context.Context) []domain.MarketView {
	count, err := s.reader.MarketCount(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "market count failed",
			slog.String("error", fmt.Errorf("%w: %w", domain.ErrDataFetch, err).Error()),
		)
		return []domain.MarketView{}
	}

	first := s.window(ctx, "markets", count)
	markets := make([]domain.MarketView, 0, count-first)
	for i := first; i < count; i++ {
		if err := s.pace(ctx); err != nil {
			break
		}
		m, err := s.loadMarket(ctx, i)
		if err != nil {
			s.logger.WarnContext(ctx, "skipping market",
				slog.Uint64("market_id", i),
				slog.String("error", err.Error()),
			)
			continue
		}
		markets = append(markets, m)
	}

	if s.cache != nil && ctx.Err() == nil {
		if err := s.cache.SetListing(ctx, markets); err != nil {
			s.logger.WarnContext(ctx, "listing cache write failed", slog.String("error", err.Error()))
		}
	}
	return markets
}

// InvalidateListing drops the cached listing.
func (s *MarketService) InvalidateListing(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WarnContext(ctx, "listing cache invalidate failed", slog.String("error", err.Error()))
	}
}

// GetMarket reads one market with both pools.
func (s *MarketService) GetMarket(ctx context.Context, id uint64) (domain.MarketView, error) {
	m, err := s.loadMarket(ctx, id)
	if err != nil {
		return domain.MarketView{}, fmt.Errorf("market_service: market %d: %w", id, err)
	}
	return m, nil
}

func (s *MarketService) loadMarket(ctx context.Context, id uint64) (domain.MarketView, error) {
	var (
		m       domain.MarketView
		yes, no *big.Int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		m, err = s.reader.Market(gctx, id)
		return err
	})
	g.Go(func() error {
		var err error
		yes, err = s.reader.MarketPool(gctx, id, domain.OutcomeYes)
		return err
	})
	g.Go(func() error {
		var err error
		no, err = s.reader.MarketPool(gctx, id, domain.OutcomeNo)
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.MarketView{}, err
	}
	m.YesPool, m.NoPool = yes, no
	return m, nil
}

// window returns the first index to read so that at most maxList of the
// newest indices below count are walked.
func (s *MarketService) window(ctx context.Context, what string, count uint64) uint64 {
	if count <= s.maxList {
		return 0
	}
	s.logger.WarnContext(ctx, "listing truncated to newest entries",
		slog.String("listing", what),
		slog.Uint64("count", count),
		slog.Uint64("limit", s.maxList),
	)
	return count - s.maxList
}

func (s *MarketService) pace(ctx context.Context) error {
	if s.limiter == nil {
		return ctx.Err()
	}
	if err := s.limiter.Wait(ctx, rpcLimitKey); err != nil {
		s.logger.WarnContext(ctx, "rate limiter wait failed", slog.String("error", err.Error()))
		return err
	}
	return nil
}

// UserStats reads the user's daily-claim counters. Not cached.
func (s *MarketService) UserStats(ctx context.Context, user common.Address) (domain.UserStatsView, error) {
	st, err := s.reader.UserStats(ctx, user)
	if err != nil {
		return domain.UserStatsView{}, fmt.Errorf("market_service: user stats %s: %w", user.Hex(), err)
	}
	return st, nil
}

// CanClaim reports whether user may claim the daily reward now.
func (s *MarketService) CanClaim(ctx context.Context, user common.Address) (bool, error) {
	ok, err := s.reader.CanClaim(ctx, user)
	if err != nil {
		return false, fmt.Errorf("market_service: can claim %s: %w", user.Hex(), err)
	}
	return ok, nil
}

// QuotePayout returns the decimal payout for a decimal stake. A read
// failure degrades to "0"; only a malformed stake is an error.
func (s *MarketService) QuotePayout(ctx context.Context, id uint64, outcome domain.Outcome, stake string) (string, error) {
	if !outcome.Valid() {
		return "", fmt.Errorf("market_service: outcome %d: %w", outcome, domain.ErrInvalidOutcome)
	}
	value, err := units.ToBaseUnits(stake)
	if err != nil {
		return "", err
	}
	payout, err := s.reader.QuotePayout(ctx, id, outcome, value)
	if err != nil {
		s.logger.WarnContext(ctx, "quote payout failed",
			slog.Uint64("market_id", id),
			slog.String("error", err.Error()),
		)
		return "0", nil
	}
	return units.FromBaseUnits(payout), nil
}

// UserBet returns the user's decimal stake on one outcome.
func (s *MarketService) UserBet(ctx context.Context, id uint64, user common.Address, outcome domain.Outcome) (string, error) {
	if !outcome.Valid() {
		return "", fmt.Errorf("market_service: outcome %d: %w", outcome, domain.ErrInvalidOutcome)
	}
	v, err := s.reader.UserBet(ctx, id, user, outcome)
	if err != nil {
		return "", fmt.Errorf("market_service: user bet %d: %w", id, err)
	}
	return units.FromBaseUnits(v), nil
}

// Quiz reads one quiz. An unused slot (empty question) is ErrNotFound.
func (s *MarketService) Quiz(ctx context.Context, id uint64) (domain.Quiz, error) {
	q, err := s.reader.Quiz(ctx, id)
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("market_service: quiz %d: %w", id, err)
	}
	if q.Question == "" {
		return domain.Quiz{}, fmt.Errorf("market_service: quiz %d: %w", id, domain.ErrNotFound)
	}
	return q, nil
}

// ListQuizzes returns every used quiz slot, skipping failed indices.
func (s *MarketService) ListQuizzes(ctx context.Context) []domain.Quiz {
	count, err := s.reader.QuizCount(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "quiz count failed",
			slog.String("error", fmt.Errorf("%w: %w", domain.ErrDataFetch, err).Error()),
		)
		return []domain.Quiz{}
	}

	first := s.window(ctx, "quizzes", count)
	quizzes := make([]domain.Quiz, 0, count-first)
	for i := first; i < count; i++ {
		if err := s.pace(ctx); err != nil {
			break
		}
		q, err := s.Quiz(ctx, i)
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				s.logger.WarnContext(ctx, "skipping quiz",
					slog.Uint64("quiz_id", i),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		quizzes = append(quizzes, q)
	}
	return quizzes
}

// ContractInfo is the contract's parameters plus token metadata.
type ContractInfo struct {
	Address common.Address        `json:"address"`
	Params  domain.ContractParams `json:"params"`
	Token   chain.TokenMeta       `json:"token"`
}

// Contract reads owner, economics and token metadata concurrently.
func (s *MarketService) Contract(ctx context.Context, address common.Address) (ContractInfo, error) {
	info := ContractInfo{Address: address}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		info.Params, err = s.reader.Params(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		info.Token, err = s.reader.Token(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return ContractInfo{}, fmt.Errorf("market_service: contract info: %w", err)
	}
	return info, nil
}

// Params returns owner, deposit rate, withdraw fee and daily reward.
func (s *MarketService) Params(ctx context.Context) (domain.ContractParams, error) {
	p, err := s.reader.Params(ctx)
	if err != nil {
		return domain.ContractParams{}, fmt.Errorf("market_service: params: %w", err)
	}
	return p, nil
}

// IsOwner reports whether addr owns the contract.
func (s *MarketService) IsOwner(ctx context.Context, addr common.Address) (bool, error) {
	p, err := s.Params(ctx)
	if err != nil {
		return false, err
	}
	return p.Owner == addr, nil
}

package executor

import (
	"context"
	"log/slog"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/flowpredict/internal/domain"
	"github.com/alanyoungcy/flowpredict/internal/units"
)

// ListingInvalidator drops a cached market listing.
type ListingInvalidator interface {
	InvalidateListing(ctx context.Context)
}

// WithListing drops the cached listing after every confirmed operation that
// changes a market.
func (o *Operations) WithListing(l ListingInvalidator) *Operations {
	o.listing = l
	return o
}

func (o *Operations) invalidateListing(ctx context.Context) {
	if o.listing != nil {
		o.listing.InvalidateListing(ctx)
	}
}

// afterBet bumps the bettor's bet count and recomputes the market's stats
// from fresh pool reads.
func (o *Operations) afterBet(ctx context.Context, account common.Address, id uint64) {
	if o.effects == nil {
		return
	}
	o.effects.Adjust(ctx, domain.LeaderboardDelta{WalletAddress: account.Hex(), Bets: 1})

	var yes, no *big.Int
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		yes, err = o.reader.MarketPool(gctx, id, domain.OutcomeYes)
		return err
	})
	g.Go(func() error {
		var err error
		no, err = o.reader.MarketPool(gctx, id, domain.OutcomeNo)
		return err
	})
	if err := g.Wait(); err != nil {
		o.logger.WarnContext(ctx, "market stats skipped, pool read failed",
			slog.Uint64("market_id", id),
			slog.String("error", err.Error()),
		)
		return
	}

	o.effects.UpsertMarketStats(ctx, MarketStatsFromPools(id, yes, no, o.effects.CountBettors(ctx, id), time.Now().UTC()))
}

// MarketStatsFromPools derives volume and yes/no split from the two pools.
func MarketStatsFromPools(id uint64, yes, no *big.Int, bettors int, at time.Time) domain.MarketStats {
	yesF, noF := units.ToFloat(yes), units.ToFloat(no)
	total := yesF + noF
	stats := domain.MarketStats{
		MarketID:      id,
		TotalVolume:   total,
		UniqueBettors: bettors,
		LastUpdated:   at,
	}
	if total > 0 {
		stats.YesPercentage = yesF / total * 100
		stats.NoPercentage = noF / total * 100
	}
	return stats
}

package pipeline

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

// Poll intervals of the live views.
const (
	MarketsInterval     = 10 * time.Second
	LeaderboardInterval = 30 * time.Second

	// LeaderboardViewLimit is the number of rows the leaderboard view shows.
	LeaderboardViewLimit = 50
)

// MarketLister produces the market listing.
type MarketLister interface {
	ListMarkets(ctx context.Context) []domain.MarketView
}

// LeaderboardReader produces the top leaderboard rows.
type LeaderboardReader interface {
	TopLeaderboard(ctx context.Context, limit int) []domain.LeaderboardEntry
}

// Emit delivers one view payload.
type Emit func(ctx context.Context, channel string, payload []byte)

// View is a periodically reloaded data set bound to a signal channel.
type View struct {
	Channel  string
	Interval time.Duration
	Load     func(ctx context.Context) any
}

// MarketsView reloads the market listing.
func MarketsView(markets MarketLister, interval time.Duration) View {
	if interval <= 0 {
		interval = MarketsInterval
	}
	return View{
		Channel:  domain.ChannelMarkets,
		Interval: interval,
		Load:     func(ctx context.Context) any { return markets.ListMarkets(ctx) },
	}
}

// LeaderboardView reloads the top leaderboard rows.
func LeaderboardView(board LeaderboardReader, limit int, interval time.Duration) View {
	if interval <= 0 {
		interval = LeaderboardInterval
	}
	if limit <= 0 {
		limit = LeaderboardViewLimit
	}
	return View{
		Channel:  domain.ChannelLeaderboard,
		Interval: interval,
		Load:     func(ctx context.Context) any { return board.TopLeaderboard(ctx, limit) },
	}
}

// Run loads immediately and then on every tick until ctx ends. It always
// returns ctx.Err().
func (v View) Run(ctx context.Context, emit Emit, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	ticker := time.NewTicker(v.Interval)
	defer ticker.Stop()

	for {
		v.once(ctx, emit, logger)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (v View) once(ctx context.Context, emit Emit, logger *slog.Logger) {
	data := v.Load(ctx)
	if ctx.Err() != nil {
		return
	}
	payload, err := json.Marshal(data)
	if err != nil {
		logger.ErrorContext(ctx, "marshal view",
			slog.String("channel", v.Channel),
			slog.String("error", err.Error()),
		)
		return
	}
	emit(ctx, v.Channel, payload)
}

// BusEmit publishes view payloads on the signal bus.
func BusEmit(bus domain.SignalBus, logger *slog.Logger) Emit {
	if logger == nil {
		logger = slog.Default()
	}
	return func(ctx context.Context, channel string, payload []byte) {
		if err := bus.Publish(ctx, channel, payload); err != nil {
			logger.WarnContext(ctx, "publish view",
				slog.String("channel", channel),
				slog.String("error", err.Error()),
			)
		}
	}
}

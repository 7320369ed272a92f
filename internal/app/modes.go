package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/flowpredict/internal/crypto"
	"github.com/alanyoungcy/flowpredict/internal/domain"
	"github.com/alanyoungcy/flowpredict/internal/pipeline"
	"github.com/alanyoungcy/flowpredict/internal/server"
	"github.com/alanyoungcy/flowpredict/internal/server/handler"
	"github.com/alanyoungcy/flowpredict/internal/server/ws"
)

// ServeMode starts the HTTP + WebSocket API and the balance poller.
func (a *App) ServeMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting serve mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startSession(ctx, g, deps, a.cfg.Session.AutoConnect)
	a.startHTTPServer(ctx, g, deps, nil)
	return g.Wait()
}

// WatchMode runs headless: it connects when a wallet is present, polls
// balances, markets and the leaderboard, and logs what it sees.
func (a *App) WatchMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting watch mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startSession(ctx, g, deps, true)

	orch := pipeline.NewOrchestrator(a.views(deps), pipeline.BusEmit(deps.SignalBus, a.logger), nil, "", a.logger)
	g.Go(func() error {
		return orch.Run(ctx)
	})

	for _, channel := range []string{
		domain.ChannelSession,
		domain.ChannelBalance,
		domain.ChannelTx,
		domain.ChannelMarkets,
		domain.ChannelLeaderboard,
	} {
		g.Go(func() error {
			return a.logChannel(ctx, deps.SignalBus, channel)
		})
	}

	return g.Wait()
}

// ArchiveMode copies activity older than the retention window to object
// storage once and exits.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting archive mode")

	if deps.Archiver == nil {
		return fmt.Errorf("archive mode: requires s3 and supabase")
	}
	archiver := pipeline.NewArchiver(deps.Archiver, a.cfg.Pipeline.ArchiveRetentionDays, a.logger)
	n, err := archiver.Run(ctx)
	if err != nil {
		return fmt.Errorf("archive mode: %w", err)
	}
	a.logger.InfoContext(ctx, "archive mode finished", slog.Int64("records", n))
	return nil
}

// FullMode is serve mode plus the archive cron. POST /api/pipeline/archive
// triggers an extra run.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	a.logger.InfoContext(ctx, "starting full mode")

	g, ctx := errgroup.WithContext(ctx)
	a.startSession(ctx, g, deps, a.cfg.Session.AutoConnect)

	var trigger chan struct{}
	if deps.Archiver != nil {
		trigger = make(chan struct{}, 1)
		archiver := pipeline.NewArchiver(deps.Archiver, a.cfg.Pipeline.ArchiveRetentionDays, a.logger).
			WithTrigger(trigger)
		orch := pipeline.NewOrchestrator(nil, nil, archiver, a.cfg.Pipeline.ArchiveCron, a.logger)
		g.Go(func() error {
			return orch.Run(ctx)
		})
	} else {
		a.logger.WarnContext(ctx, "full mode: archive cron disabled (requires s3 and supabase)")
	}

	a.startHTTPServer(ctx, g, deps, trigger)
	return g.Wait()
}

// views are the live data sets published on ch:markets and ch:leaderboard.
func (a *App) views(deps *Dependencies) []pipeline.View {
	return []pipeline.View{
		pipeline.MarketsView(deps.Markets, a.cfg.Pipeline.MarketsInterval.Duration),
		pipeline.LeaderboardView(deps.Mirror, a.cfg.Pipeline.LeaderboardLimit, a.cfg.Pipeline.LeaderboardInterval.Duration),
	}
}

// startSession runs the balance poller and, when connect is set and a wallet
// is present, connects once. A failed connect is logged, not fatal.
func (a *App) startSession(ctx context.Context, g *errgroup.Group, deps *Dependencies, connect bool) {
	g.Go(func() error {
		err := deps.Balances.Run(ctx, a.cfg.Session.BalancePollInterval.Duration)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	if !connect {
		return
	}
	if !deps.Session.WalletPresent() {
		a.logger.InfoContext(ctx, "no wallet configured; running read-only")
		return
	}
	g.Go(func() error {
		if err := deps.Session.Connect(ctx); err != nil {
			a.logger.WarnContext(ctx, "wallet connect failed", slog.String("error", err.Error()))
			return nil
		}
		st := deps.Session.State()
		if st.Account != nil {
			a.logger.InfoContext(ctx, "wallet connected", slog.String("account", st.Account.Hex()))
		}
		return nil
	})
}

// logChannel logs every payload on channel until ctx ends.
func (a *App) logChannel(ctx context.Context, bus domain.SignalBus, channel string) error {
	ch, err := bus.Subscribe(ctx, channel)
	if err != nil {
		return fmt.Errorf("watch mode: subscribe %s: %w", channel, err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-ch:
			if !ok {
				return nil
			}
			a.logger.InfoContext(ctx, "signal",
				slog.String("channel", channel),
				slog.Int("bytes", len(msg)),
				slog.String("payload", truncate(string(msg), 512)),
			)
		}
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// startHTTPServer registers every handler, starts the WebSocket hub and the
// HTTP server, and shuts the server down when ctx ends.
func (a *App) startHTTPServer(ctx context.Context, g *errgroup.Group, deps *Dependencies, pipelineTriggerCh chan<- struct{}) {
	hub := ws.NewHub(deps.SignalBus, a.logger, ws.Config{
		Mode:           a.cfg.Mode,
		StartedAt:      time.Now().UTC(),
		AllowedOrigins: a.cfg.Server.CORSOrigins,
		Session:        deps.Session,
		Views:          a.views(deps),
	})
	g.Go(func() error {
		err := hub.Run(ctx)
		if ctx.Err() != nil {
			return nil
		}
		return err
	})

	handlers := server.Handlers{
		Health:      handler.NewHealthHandler(deps.HealthChecks, a.logger),
		Status:      handler.NewStatusHandler(a.cfg.Mode, deps.Network, deps.Contract.Hex(), a.cfg.Wallet.Kind),
		Session:     handler.NewSessionHandler(deps.Session, a.logger),
		Balances:    handler.NewBalanceHandler(deps.Balances, deps.BalanceCache, a.logger),
		Markets:     handler.NewMarketHandler(deps.Markets, deps.Mirror, deps.Session, a.logger),
		Users:       handler.NewUserHandler(deps.Markets, deps.Mirror, a.logger),
		Leaderboard: handler.NewLeaderboardHandler(deps.Mirror),
		Quizzes:     handler.NewQuizHandler(deps.Markets, a.logger),
		Contract:    handler.NewContractHandler(deps.Markets, deps.Contract, deps.Session, a.logger),
		Tx:          handler.NewTxHandler(deps.Operations, deps.Network, a.logger),
	}
	if pipelineTriggerCh != nil || deps.ArchiveReader != nil {
		handlers.Pipeline = handler.NewPipelineHandler(a.logger).
			WithTriggerChannel(pipelineTriggerCh).
			WithArchives(deps.ArchiveReader)
	}

	var signer *crypto.RequestSigner
	if a.cfg.Server.SigningSecret != "" {
		signer = crypto.NewRequestSigner(a.cfg.Server.SigningSecret, a.cfg.Server.SignatureMaxSkew.Duration)
	}

	srv := server.NewServer(server.Config{
		Port:         a.cfg.Server.Port,
		CORSOrigins:  a.cfg.Server.CORSOrigins,
		APIKey:       a.cfg.Server.APIKey,
		RateLimit:    a.cfg.Server.RateLimit,
		RateWindow:   a.cfg.Server.RateWindow.Duration,
		WriteTimeout: a.cfg.Executor.ConfirmTimeout.Duration + time.Minute,
	}, handlers, server.Deps{
		Limiter: deps.RateLimiter,
		Signer:  signer,
	}, hub, a.logger)

	g.Go(srv.Start)

	g.Go(func() error {
		<-ctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
}

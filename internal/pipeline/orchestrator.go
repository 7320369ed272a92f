// Package pipeline runs the background loops: live views (markets,
// leaderboard) published on the signal bus, and the activity archive cron.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Orchestrator runs a set of views plus an optional archive cron.
type Orchestrator struct {
	views       []View
	emit        Emit
	archiver    *Archiver
	archiveCron string
	logger      *slog.Logger
}

// NewOrchestrator creates an Orchestrator. archiver may be nil.
func NewOrchestrator(views []View, emit Emit, archiver *Archiver, archiveCron string, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		views:       views,
		emit:        emit,
		archiver:    archiver,
		archiveCron: archiveCron,
		logger:      logger.With(slog.String("component", "pipeline")),
	}
}

// Run blocks until ctx ends or a loop fails for a reason other than
// cancellation.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("pipeline orchestrator starting",
		slog.Int("views", len(o.views)),
		slog.Bool("archive", o.archiver != nil),
		slog.String("archive_cron", o.archiveCron),
	)

	g, ctx := errgroup.WithContext(ctx)

	for _, v := range o.views {
		g.Go(func() error {
			o.logger.Info("starting view poller",
				slog.String("channel", v.Channel),
				slog.Duration("interval", v.Interval),
			)
			err := v.Run(ctx, o.emit, o.logger)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("view %s: %w", v.Channel, err)
		})
	}

	if o.archiver != nil {
		g.Go(func() error {
			err := o.archiver.RunCron(ctx, o.archiveCron)
			if ctx.Err() != nil {
				return nil
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}

	if err := g.Wait(); err != nil {
		o.logger.Error("pipeline orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}
	o.logger.Info("pipeline orchestrator stopped cleanly")
	return nil
}

package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

// TxReporter delivers transaction notices: always to the log, to ch:tx and
// stream:tx when a bus is set, and to operators through the Notifier.
type TxReporter struct {
	bus      domain.SignalBus
	notifier *Notifier
	logger   *slog.Logger
}

// NewTxReporter creates a reporter. bus and notifier may be nil.
func NewTxReporter(bus domain.SignalBus, notifier *Notifier, logger *slog.Logger) *TxReporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &TxReporter{
		bus:      bus,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "tx_reporter")),
	}
}

// EventName is the notifier event for a notice, e.g. "tx.failed".
func EventName(n domain.TxNotice) string {
	return "tx." + string(n.Stage)
}

// Report never fails; delivery problems are logged.
func (r *TxReporter) Report(ctx context.Context, n domain.TxNotice) {
	level := slog.LevelInfo
	if n.Stage == domain.NoticeFailed {
		level = slog.LevelWarn
	}
	r.logger.Log(ctx, level, n.Title,
		slog.String("op", n.Op),
		slog.String("stage", string(n.Stage)),
		slog.String("account", n.Account),
		slog.String("tx", n.TxHash),
		slog.String("message", n.Message),
	)

	if r.bus != nil {
		payload, err := json.Marshal(n)
		if err != nil {
			r.logger.ErrorContext(ctx, "marshal notice", slog.String("error", err.Error()))
			return
		}
		if err := r.bus.Publish(ctx, domain.ChannelTx, payload); err != nil {
			r.logger.WarnContext(ctx, "publish notice", slog.String("error", err.Error()))
		}
		if err := r.bus.StreamAppend(ctx, domain.StreamTx, payload); err != nil {
			r.logger.WarnContext(ctx, "append notice to stream", slog.String("error", err.Error()))
		}
	}

	if r.notifier != nil {
		// Errors are already logged per sender.
		_ = r.notifier.Notify(ctx, EventName(n), Message{Title: n.Title, Body: n.Message, URL: n.Explorer})
	}
}

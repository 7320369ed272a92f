package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

// MarketService defines the methods that the market handler requires from the
// service layer. It is declared locally so the handler package does not depend
// on the concrete service implementation.
type MarketService interface {
	ListMarkets(ctx context.Context) []domain.MarketView
	RefreshMarkets(ctx context.Context) []domain.MarketView
	GetMarket(ctx context.Context, id uint64) (domain.MarketView, error)
	QuotePayout(ctx context.Context, id uint64, outcome domain.Outcome, stake string) (string, error)
	UserBet(ctx context.Context, id uint64, user common.Address, outcome domain.Outcome) (string, error)
}

// MarketStatsReader reads off-chain market aggregates.
type MarketStatsReader interface {
	MarketStats(ctx context.Context, id uint64) (domain.MarketStats, error)
}

// StateSource exposes the current wallet connection.
type StateSource interface {
	State() domain.ConnectionState
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	markets MarketService
	stats   MarketStatsReader
	session StateSource
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler. stats may be nil.
func NewMarketHandler(markets MarketService, stats MarketStatsReader, session StateSource, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		stats:   stats,
		session: session,
		logger:  logHandler(logger, "market"),
	}
}

// listMarketsResponse wraps the list endpoint output with metadata.
type listMarketsResponse struct {
	Markets []domain.MarketView `json:"markets"`
	Total   int                 `json:"total"`
}

// ListMarkets returns every readable market. ?refresh=true bypasses the
// listing cache.
// GET /api/markets
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	var markets []domain.MarketView
	if r.URL.Query().Get("refresh") == "true" {
		markets = h.markets.RefreshMarkets(r.Context())
	} else {
		markets = h.markets.ListMarkets(r.Context())
	}
	writeJSON(w, http.StatusOK, listMarketsResponse{Markets: markets, Total: len(markets)})
}

// GetMarket returns a single market by its ID.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	m, err := h.markets.GetMarket(r.Context(), id)
	if err != nil {
		h.logger.WarnContext(r.Context(), "get market failed",
			slog.Uint64("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, statusFor(err), "failed to load market")
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// Quote returns the payout for a hypothetical stake.
// GET /api/markets/{id}/quote?outcome=yes&stake=10
func (h *MarketHandler) Quote(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	outcome, err := parseOutcome(q.Get("outcome"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	stake := q.Get("stake")
	payout, err := h.markets.QuotePayout(r.Context(), id, outcome, stake)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"outcome":   outcome.String(),
		"stake":     stake,
		"payout":    payout,
	})
}

// UserBet returns a user's stake on one outcome. ?user= defaults to the
// connected account.
// GET /api/markets/{id}/bet?outcome=yes
func (h *MarketHandler) UserBet(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	q := r.URL.Query()
	outcome, err := parseOutcome(q.Get("outcome"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	user, err := h.resolveUser(q.Get("user"))
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	amount, err := h.markets.UserBet(r.Context(), id, user, outcome)
	if err != nil {
		h.logger.WarnContext(r.Context(), "user bet read failed",
			slog.Uint64("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, statusFor(err), "failed to read bet")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"user":      user.Hex(),
		"outcome":   outcome.String(),
		"amount":    amount,
	})
}

func (h *MarketHandler) resolveUser(raw string) (common.Address, error) {
	if raw != "" {
		return parseAddress(raw)
	}
	st := h.session.State()
	if st.Account == nil {
		return common.Address{}, domain.ErrNotConnected
	}
	return *st.Account, nil
}

// Stats returns the off-chain aggregate for a market.
// GET /api/markets/{id}/stats
func (h *MarketHandler) Stats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if h.stats == nil {
		writeError(w, http.StatusNotFound, "market stats unavailable")
		return
	}
	st, err := h.stats.MarketStats(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no stats for market")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to read market stats")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

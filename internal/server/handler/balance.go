package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

// BalanceSource is the in-process balance cache.
type BalanceSource interface {
	Snapshot() (domain.BalanceSnapshot, bool)
	Account() (common.Address, bool)
	Refresh()
}

// BalanceHandler serves balance snapshots.
type BalanceHandler struct {
	balances BalanceSource
	shared   domain.BalanceCache
	logger   *slog.Logger
}

// NewBalanceHandler creates a BalanceHandler. shared may be nil; when set it
// answers lookups for accounts other than the bound one.
func NewBalanceHandler(balances BalanceSource, shared domain.BalanceCache, logger *slog.Logger) *BalanceHandler {
	return &BalanceHandler{balances: balances, shared: shared, logger: logHandler(logger, "balance")}
}

// GetBalances returns the bound account's snapshot, or the shared snapshot
// of ?account= when given.
// GET /api/balances
func (h *BalanceHandler) GetBalances(w http.ResponseWriter, r *http.Request) {
	if raw := r.URL.Query().Get("account"); raw != "" {
		h.getShared(w, r, raw)
		return
	}
	snap, ok := h.balances.Snapshot()
	if !ok {
		writeError(w, http.StatusNotFound, "no balance snapshot; connect a wallet first")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *BalanceHandler) getShared(w http.ResponseWriter, r *http.Request, raw string) {
	addr, err := parseAddress(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if snap, ok := h.balances.Snapshot(); ok && snap.Account == addr {
		writeJSON(w, http.StatusOK, snap)
		return
	}
	if h.shared == nil {
		writeError(w, http.StatusNotFound, "no balance snapshot for account")
		return
	}
	snap, err := h.shared.GetSnapshot(r.Context(), addr.Hex())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no balance snapshot for account")
			return
		}
		h.logger.ErrorContext(r.Context(), "shared snapshot read failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to read balance snapshot")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

// Refresh schedules a throttled balance refresh.
// POST /api/balances/refresh
func (h *BalanceHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.balances.Account(); !ok {
		writeError(w, http.StatusConflict, "wallet not connected")
		return
	}
	h.balances.Refresh()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "scheduled"})
}

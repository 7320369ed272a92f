package handler

import (
	"context"
	"net/http"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

// LeaderboardReader reads leaderboard rows.
type LeaderboardReader interface {
	TopLeaderboard(ctx context.Context, limit int) []domain.LeaderboardEntry
	LeaderboardEntry(ctx context.Context, wallet string) (domain.LeaderboardEntry, error)
}

// LeaderboardHandler serves the leaderboard.
type LeaderboardHandler struct {
	board LeaderboardReader
}

func NewLeaderboardHandler(board LeaderboardReader) *LeaderboardHandler {
	return &LeaderboardHandler{board: board}
}

// Top returns the leaderboard ordered by total winnings.
// GET /api/leaderboard?limit=100
func (h *LeaderboardHandler) Top(w http.ResponseWriter, r *http.Request) {
	limit := parseLimit(r, 100, 500)
	entries := h.board.TopLeaderboard(r.Context(), limit)
	writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"limit":   limit,
	})
}

// Entry returns one wallet's row.
// GET /api/leaderboard/{address}
func (h *LeaderboardHandler) Entry(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	entry, err := h.board.LeaderboardEntry(r.Context(), addr.Hex())
	if err != nil {
		writeError(w, statusFor(err), "no leaderboard entry for "+addr.Hex())
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

// UserService reads per-user chain state.
type UserService interface {
	UserStats(ctx context.Context, user common.Address) (domain.UserStatsView, error)
	CanClaim(ctx context.Context, user common.Address) (bool, error)
}

// ActivityReader reads the off-chain activity log.
type ActivityReader interface {
	RecentActivity(ctx context.Context, wallet string, limit int) []domain.ActivityRecord
}

// UserHandler serves per-user endpoints.
type UserHandler struct {
	users    UserService
	activity ActivityReader
	logger   *slog.Logger
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(users UserService, activity ActivityReader, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, activity: activity, logger: logHandler(logger, "user")}
}

// Stats returns the user's daily-claim statistics.
// GET /api/users/{address}/stats
func (h *UserHandler) Stats(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	st, err := h.users.UserStats(r.Context(), addr)
	if err != nil {
		h.logger.WarnContext(r.Context(), "user stats read failed", slog.String("error", err.Error()))
		writeError(w, statusFor(err), "failed to read user stats")
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// CanClaim reports whether the daily reward is claimable now.
// GET /api/users/{address}/can-claim
func (h *UserHandler) CanClaim(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	ok, err := h.users.CanClaim(r.Context(), addr)
	if err != nil {
		h.logger.WarnContext(r.Context(), "can claim read failed", slog.String("error", err.Error()))
		writeError(w, statusFor(err), "failed to read claim eligibility")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": addr.Hex(), "can_claim": ok})
}

// Activity returns the user's most recent activity rows.
// GET /api/users/{address}/activity?limit=50
func (h *UserHandler) Activity(w http.ResponseWriter, r *http.Request) {
	addr, err := pathAddress(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	limit := parseLimit(r, 50, 500)
	writeJSON(w, http.StatusOK, map[string]any{
		"address":  addr.Hex(),
		"activity": h.activity.RecentActivity(r.Context(), addr.Hex(), limit),
	})
}

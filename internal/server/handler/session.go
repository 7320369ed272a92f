package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

// SessionController is the wallet session surface the handler drives.
type SessionController interface {
	State() domain.ConnectionState
	WalletPresent() bool
	Connect(ctx context.Context) error
	Disconnect(ctx context.Context)
	SwitchNetwork(ctx context.Context) error
}

// SessionHandler serves the wallet connection endpoints.
type SessionHandler struct {
	session SessionController
	logger  *slog.Logger
}

// NewSessionHandler creates a SessionHandler.
func NewSessionHandler(session SessionController, logger *slog.Logger) *SessionHandler {
	return &SessionHandler{session: session, logger: logHandler(logger, "session")}
}

type sessionResponse struct {
	State         domain.ConnectionState `json:"state"`
	WalletPresent bool                   `json:"wallet_present"`
	Error         string                 `json:"error,omitempty"`
}

func (h *SessionHandler) respond(w http.ResponseWriter, err error) {
	resp := sessionResponse{State: h.session.State(), WalletPresent: h.session.WalletPresent()}
	if err != nil {
		resp.Error = err.Error()
		writeJSON(w, statusFor(err), resp)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// GetState returns the current connection state.
// GET /api/session
func (h *SessionHandler) GetState(w http.ResponseWriter, r *http.Request) {
	h.respond(w, nil)
}

// Connect requests accounts and validates the network.
// POST /api/session/connect
func (h *SessionHandler) Connect(w http.ResponseWriter, r *http.Request) {
	err := h.session.Connect(r.Context())
	if err != nil {
		h.logger.WarnContext(r.Context(), "connect failed", slog.String("error", err.Error()))
	}
	h.respond(w, err)
}

// Disconnect clears the session locally.
// POST /api/session/disconnect
func (h *SessionHandler) Disconnect(w http.ResponseWriter, r *http.Request) {
	h.session.Disconnect(r.Context())
	h.respond(w, nil)
}

// SwitchNetwork asks the wallet to move to the expected chain.
// POST /api/session/switch-network
func (h *SessionHandler) SwitchNetwork(w http.ResponseWriter, r *http.Request) {
	err := h.session.SwitchNetwork(r.Context())
	if err != nil {
		h.logger.WarnContext(r.Context(), "switch network failed", slog.String("error", err.Error()))
	}
	h.respond(w, err)
}

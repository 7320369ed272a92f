package handler

import (
	"net/http"
	"time"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

// StatusHandler serves static runtime information for the UI.
type StatusHandler struct {
	Mode      string
	Network   domain.NetworkDescriptor
	Contract  string
	Wallet    string
	StartedAt time.Time
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode string, network domain.NetworkDescriptor, contract, wallet string) *StatusHandler {
	return &StatusHandler{
		Mode:      mode,
		Network:   network,
		Contract:  contract,
		Wallet:    wallet,
		StartedAt: time.Now().UTC(),
	}
}

// GetStatus responds with the run mode, the expected network and the
// contract address.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.Mode,
		"network":        h.Network.Name,
		"chain_id":       h.Network.HexChainID(),
		"currency":       h.Network.Currency.Symbol,
		"contract":       h.Contract,
		"wallet":         h.Wallet,
		"uptime_seconds": int64(time.Since(h.StartedAt).Seconds()),
	})
}

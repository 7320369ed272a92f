package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/flowpredict/internal/service"
)

// ContractService reads contract-level parameters.
type ContractService interface {
	Contract(ctx context.Context, address common.Address) (service.ContractInfo, error)
	IsOwner(ctx context.Context, addr common.Address) (bool, error)
}

// ContractHandler serves contract parameters.
type ContractHandler struct {
	contracts ContractService
	address   common.Address
	session   StateSource
	logger    *slog.Logger
}

// NewContractHandler creates a ContractHandler for the contract at address.
func NewContractHandler(contracts ContractService, address common.Address, session StateSource, logger *slog.Logger) *ContractHandler {
	return &ContractHandler{
		contracts: contracts,
		address:   address,
		session:   session,
		logger:    logHandler(logger, "contract"),
	}
}

// GetContract returns owner, economics and token metadata, plus whether the
// connected account is the owner.
// GET /api/contract
func (h *ContractHandler) GetContract(w http.ResponseWriter, r *http.Request) {
	info, err := h.contracts.Contract(r.Context(), h.address)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "contract read failed", slog.String("error", err.Error()))
		writeError(w, statusFor(err), "failed to read contract")
		return
	}
	isOwner := false
	if st := h.session.State(); st.Account != nil {
		isOwner = info.Params.Owner == *st.Account
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"contract": info,
		"is_owner": isOwner,
	})
}

// IsOwner reports whether ?address= (default: the connected account) owns
// the contract.
// GET /api/contract/is-owner
func (h *ContractHandler) IsOwner(w http.ResponseWriter, r *http.Request) {
	var addr common.Address
	if raw := r.URL.Query().Get("address"); raw != "" {
		a, err := parseAddress(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		addr = a
	} else {
		st := h.session.State()
		if st.Account == nil {
			writeJSON(w, http.StatusOK, map[string]any{"is_owner": false})
			return
		}
		addr = *st.Account
	}
	ok, err := h.contracts.IsOwner(r.Context(), addr)
	if err != nil {
		h.logger.WarnContext(r.Context(), "owner check failed", slog.String("error", err.Error()))
		writeError(w, statusFor(err), "failed to read contract owner")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"address": addr.Hex(), "is_owner": ok})
}

package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/flowpredict/internal/domain"
	"github.com/alanyoungcy/flowpredict/internal/executor"
)

// TxOperations is the mutating operation set.
type TxOperations interface {
	Deposit(ctx context.Context, amount string) (executor.Outcome, error)
	Withdraw(ctx context.Context, amount string) (executor.Outcome, error)
	PlaceBet(ctx context.Context, id uint64, outcome domain.Outcome, amount string) (executor.Outcome, error)
	ClaimDaily(ctx context.Context) (executor.Outcome, error)
	ClaimWinnings(ctx context.Context, id uint64) (executor.Outcome, error)
	CreateMarket(ctx context.Context, question string, resolveTime time.Time, oracle common.Address, isBinary bool) (executor.Outcome, error)
	ResolveMarket(ctx context.Context, id uint64, winning domain.Outcome) (executor.Outcome, error)
	AnswerQuiz(ctx context.Context, id uint64, answer string) (executor.Outcome, error)
	CreateQuiz(ctx context.Context, question, answer, reward string, deadline time.Time) (executor.Outcome, error)
}

var _ TxOperations = (*executor.Operations)(nil)

// TxHandler serves the mutating endpoints. Each request blocks until the
// transaction is confirmed or fails.
type TxHandler struct {
	ops     TxOperations
	network domain.NetworkDescriptor
	logger  *slog.Logger
}

// NewTxHandler creates a TxHandler.
func NewTxHandler(ops TxOperations, network domain.NetworkDescriptor, logger *slog.Logger) *TxHandler {
	return &TxHandler{ops: ops, network: network, logger: logHandler(logger, "tx")}
}

type txResponse struct {
	Op       string                 `json:"op"`
	TxHash   string                 `json:"tx_hash"`
	Explorer string                 `json:"explorer,omitempty"`
	Block    uint64                 `json:"block,omitempty"`
	MarketID uint64                 `json:"market_id,omitempty"`
	Streak   uint64                 `json:"streak,omitempty"`
	Message  string                 `json:"message"`
	Activity *domain.ActivityRecord `json:"activity,omitempty"`
}

type txErrorResponse struct {
	Error    string `json:"error"`
	Op       string `json:"op,omitempty"`
	TxHash   string `json:"tx_hash,omitempty"`
	Explorer string `json:"explorer,omitempty"`
}

func (h *TxHandler) respond(w http.ResponseWriter, r *http.Request, out executor.Outcome, err error) {
	if err != nil {
		resp := txErrorResponse{Error: err.Error(), Op: out.Op}
		var txErr *domain.TxError
		if errors.As(err, &txErr) {
			resp.Error = txErr.UserMessage()
			resp.TxHash = txErr.Hash
			resp.Explorer = h.network.TxURL(txErr.Hash)
		}
		h.logger.WarnContext(r.Context(), "operation failed",
			slog.String("op", out.Op),
			slog.String("error", err.Error()),
		)
		writeJSON(w, statusFor(err), resp)
		return
	}

	hash := out.TxHash.Hex()
	resp := txResponse{
		Op:       out.Op,
		TxHash:   hash,
		Explorer: h.network.TxURL(hash),
		MarketID: out.MarketID,
		Streak:   out.Streak,
		Message:  out.Message,
		Activity: out.Activity,
	}
	if out.Receipt != nil && out.Receipt.BlockNumber != nil {
		resp.Block = out.Receipt.BlockNumber.Uint64()
	}
	writeJSON(w, http.StatusOK, resp)
}

type amountRequest struct {
	Amount string `json:"amount"`
}

// Deposit converts FLOW into PREDICT.
// POST /api/tx/deposit {"amount":"1.5"}
func (h *TxHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.ops.Deposit(r.Context(), req.Amount)
	h.respond(w, r, out, err)
}

// Withdraw converts PREDICT back into FLOW.
// POST /api/tx/withdraw {"amount":"100"}
func (h *TxHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var req amountRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.ops.Withdraw(r.Context(), req.Amount)
	h.respond(w, r, out, err)
}

type betRequest struct {
	MarketID uint64 `json:"market_id"`
	Outcome  string `json:"outcome"`
	Amount   string `json:"amount"`
}

// PlaceBet stakes PREDICT on a market outcome.
// POST /api/tx/bet {"market_id":1,"outcome":"yes","amount":"10"}
func (h *TxHandler) PlaceBet(w http.ResponseWriter, r *http.Request) {
	var req betRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	outcome, err := parseOutcome(req.Outcome)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.ops.PlaceBet(r.Context(), req.MarketID, outcome, req.Amount)
	h.respond(w, r, out, err)
}

// ClaimDaily claims the daily reward. The body is ignored.
// POST /api/tx/claim-daily
func (h *TxHandler) ClaimDaily(w http.ResponseWriter, r *http.Request) {
	out, err := h.ops.ClaimDaily(r.Context())
	h.respond(w, r, out, err)
}

type marketRequest struct {
	MarketID uint64 `json:"market_id"`
}

// ClaimWinnings collects winnings from a resolved market.
// POST /api/tx/claim {"market_id":1}
func (h *TxHandler) ClaimWinnings(w http.ResponseWriter, r *http.Request) {
	var req marketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.ops.ClaimWinnings(r.Context(), req.MarketID)
	h.respond(w, r, out, err)
}

type createMarketRequest struct {
	Question    string    `json:"question"`
	ResolveTime time.Time `json:"resolve_time"`
	Oracle      string    `json:"oracle"`
	IsBinary    *bool     `json:"is_binary"`
}

// CreateMarket opens a market (owner only).
// POST /api/tx/create-market
func (h *TxHandler) CreateMarket(w http.ResponseWriter, r *http.Request) {
	var req createMarketRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.ResolveTime.IsZero() {
		writeError(w, http.StatusBadRequest, "resolve_time is required")
		return
	}
	oracle, err := parseAddress(req.Oracle)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	binary := true
	if req.IsBinary != nil {
		binary = *req.IsBinary
	}
	out, err := h.ops.CreateMarket(r.Context(), req.Question, req.ResolveTime, oracle, binary)
	h.respond(w, r, out, err)
}

type resolveRequest struct {
	MarketID uint64 `json:"market_id"`
	Outcome  string `json:"outcome"`
}

// ResolveMarket settles a market (owner or oracle only).
// POST /api/tx/resolve-market {"market_id":1,"outcome":"no"}
func (h *TxHandler) ResolveMarket(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	outcome, err := parseOutcome(req.Outcome)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	out, err := h.ops.ResolveMarket(r.Context(), req.MarketID, outcome)
	h.respond(w, r, out, err)
}

type answerRequest struct {
	QuizID uint64 `json:"quiz_id"`
	Answer string `json:"answer"`
}

// AnswerQuiz submits a plaintext quiz answer.
// POST /api/tx/answer-quiz {"quiz_id":0,"answer":"42"}
func (h *TxHandler) AnswerQuiz(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Answer) == "" {
		writeError(w, http.StatusBadRequest, "answer is required")
		return
	}
	out, err := h.ops.AnswerQuiz(r.Context(), req.QuizID, req.Answer)
	h.respond(w, r, out, err)
}

type createQuizRequest struct {
	Question string    `json:"question"`
	Answer   string    `json:"answer"`
	Reward   string    `json:"reward"`
	Deadline time.Time `json:"deadline"`
}

// CreateQuiz publishes a quiz (owner only).
// POST /api/tx/create-quiz
func (h *TxHandler) CreateQuiz(w http.ResponseWriter, r *http.Request) {
	var req createQuizRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.Question) == "" || req.Answer == "" || req.Deadline.IsZero() {
		writeError(w, http.StatusBadRequest, "question, answer and deadline are required")
		return
	}
	out, err := h.ops.CreateQuiz(r.Context(), req.Question, req.Answer, req.Reward, req.Deadline)
	h.respond(w, r, out, err)
}

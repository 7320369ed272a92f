package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/flowpredict/internal/crypto"
	"github.com/alanyoungcy/flowpredict/internal/domain"
	"github.com/alanyoungcy/flowpredict/internal/executor"
	"github.com/alanyoungcy/flowpredict/internal/server/handler"
	"github.com/alanyoungcy/flowpredict/internal/service"
)

// backend fakes every collaborator the handlers need.
type backend struct {
	lastOp string
}

func (b *backend) State() domain.ConnectionState { return domain.ConnectionState{Status: domain.StatusDisconnected} }
func (b *backend) WalletPresent() bool           { return false }
func (b *backend) Connect(context.Context) error { return domain.ErrWalletUnavailable }
func (b *backend) Disconnect(context.Context)    {}
func (b *backend) SwitchNetwork(context.Context) error {
	return domain.ErrWalletUnavailable
}

func (b *backend) Snapshot() (domain.BalanceSnapshot, bool) { return domain.BalanceSnapshot{}, false }
func (b *backend) Account() (common.Address, bool)          { return common.Address{}, false }
func (b *backend) Refresh()                                 {}

func (b *backend) ListMarkets(context.Context) []domain.MarketView {
	return []domain.MarketView{{ID: 0, Question: "Will it rain?"}}
}
func (b *backend) RefreshMarkets(ctx context.Context) []domain.MarketView { return b.ListMarkets(ctx) }
func (b *backend) GetMarket(_ context.Context, id uint64) (domain.MarketView, error) {
	return domain.MarketView{ID: id}, nil
}
func (b *backend) QuotePayout(context.Context, uint64, domain.Outcome, string) (string, error) {
	return "0", nil
}
func (b *backend) UserBet(context.Context, uint64, common.Address, domain.Outcome) (string, error) {
	return "0", nil
}
func (b *backend) MarketStats(context.Context, uint64) (domain.MarketStats, error) {
	return domain.MarketStats{}, domain.ErrNotFound
}

func (b *backend) UserStats(context.Context, common.Address) (domain.UserStatsView, error) {
	return domain.UserStatsView{Streak: 3}, nil
}
func (b *backend) CanClaim(context.Context, common.Address) (bool, error) { return true, nil }
func (b *backend) RecentActivity(context.Context, string, int) []domain.ActivityRecord {
	return []domain.ActivityRecord{}
}
func (b *backend) TopLeaderboard(_ context.Context, limit int) []domain.LeaderboardEntry {
	return []domain.LeaderboardEntry{{WalletAddress: "0xa", Rank: limit}}
}
func (b *backend) LeaderboardEntry(_ context.Context, wallet string) (domain.LeaderboardEntry, error) {
	if !strings.EqualFold(wallet, "0xa11ce00000000000000000000000000000000001") {
		return domain.LeaderboardEntry{}, domain.ErrNotFound
	}
	return domain.LeaderboardEntry{WalletAddress: strings.ToLower(wallet), TotalWinnings: 7, Rank: 2}, nil
}
func (b *backend) Quiz(_ context.Context, id uint64) (domain.Quiz, error) {
	return domain.Quiz{ID: id, Question: "2+2?"}, nil
}
func (b *backend) ListQuizzes(context.Context) []domain.Quiz { return []domain.Quiz{} }
func (b *backend) Contract(_ context.Context, addr common.Address) (service.ContractInfo, error) {
	return service.ContractInfo{Address: addr}, nil
}
func (b *backend) IsOwner(context.Context, common.Address) (bool, error) { return false, nil }

func (b *backend) op(name string) (executor.Outcome, error) {
	b.lastOp = name
	return executor.Outcome{Op: name, TxHash: common.HexToHash("0x01"), Message: "ok"}, nil
}
func (b *backend) Deposit(context.Context, string) (executor.Outcome, error) {
	return b.op(executor.OpDeposit)
}
func (b *backend) Withdraw(context.Context, string) (executor.Outcome, error) {
	return b.op(executor.OpWithdraw)
}
func (b *backend) PlaceBet(context.Context, uint64, domain.Outcome, string) (executor.Outcome, error) {
	return b.op(executor.OpPlaceBet)
}
func (b *backend) ClaimDaily(context.Context) (executor.Outcome, error) {
	return b.op(executor.OpClaimDaily)
}
func (b *backend) ClaimWinnings(context.Context, uint64) (executor.Outcome, error) {
	return b.op(executor.OpClaimWinnings)
}
func (b *backend) CreateMarket(context.Context, string, time.Time, common.Address, bool) (executor.Outcome, error) {
	return b.op(executor.OpCreateMarket)
}
func (b *backend) ResolveMarket(context.Context, uint64, domain.Outcome) (executor.Outcome, error) {
	return b.op(executor.OpResolveMarket)
}
func (b *backend) AnswerQuiz(context.Context, uint64, string) (executor.Outcome, error) {
	return b.op(executor.OpAnswerQuiz)
}
func (b *backend) CreateQuiz(context.Context, string, string, string, time.Time) (executor.Outcome, error) {
	return b.op(executor.OpCreateQuiz)
}

func newTestServer(t *testing.T, cfg Config, deps Deps) (*backend, http.Handler) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	network := domain.FlowEVMTestnet("https://testnet.evm.nodes.onflow.org")
	contract := common.HexToAddress("0x00000000000000000000000000000000c0ffee00")
	b := &backend{}

	handlers := Handlers{
		Health:      handler.NewHealthHandler(nil, logger),
		Status:      handler.NewStatusHandler("serve", network, contract.Hex(), "none"),
		Session:     handler.NewSessionHandler(b, logger),
		Balances:    handler.NewBalanceHandler(b, nil, logger),
		Markets:     handler.NewMarketHandler(b, b, b, logger),
		Users:       handler.NewUserHandler(b, b, logger),
		Leaderboard: handler.NewLeaderboardHandler(b),
		Quizzes:     handler.NewQuizHandler(b, logger),
		Contract:    handler.NewContractHandler(b, contract, b, logger),
		Tx:          handler.NewTxHandler(b, network, logger),
	}
	return b, NewServer(cfg, handlers, deps, nil, logger).Handler()
}

func do(h http.Handler, method, path, body string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRoutes(t *testing.T) {
	_, h := newTestServer(t, Config{}, Deps{})

	tests := []struct {
		method, path string
		want         int
	}{
		{http.MethodGet, "/api/health", http.StatusOK},
		{http.MethodGet, "/api/status", http.StatusOK},
		{http.MethodGet, "/api/session", http.StatusOK},
		{http.MethodPost, "/api/session/connect", http.StatusServiceUnavailable},
		{http.MethodGet, "/api/balances", http.StatusNotFound},
		{http.MethodGet, "/api/markets", http.StatusOK},
		{http.MethodGet, "/api/markets/4", http.StatusOK},
		{http.MethodGet, "/api/markets/4/quote?outcome=yes&stake=1", http.StatusOK},
		{http.MethodGet, "/api/markets/4/stats", http.StatusNotFound},
		{http.MethodGet, "/api/users/0x00000000000000000000000000000000000a11ce/stats", http.StatusOK},
		{http.MethodGet, "/api/users/0x00000000000000000000000000000000000a11ce/can-claim", http.StatusOK},
		{http.MethodGet, "/api/users/bogus/activity", http.StatusBadRequest},
		{http.MethodGet, "/api/leaderboard?limit=5", http.StatusOK},
		{http.MethodGet, "/api/leaderboard/0xa11ce00000000000000000000000000000000001", http.StatusOK},
		{http.MethodGet, "/api/leaderboard/0x00000000000000000000000000000000000a11ce", http.StatusNotFound},
		{http.MethodGet, "/api/leaderboard/bogus", http.StatusBadRequest},
		{http.MethodGet, "/api/quizzes/2", http.StatusOK},
		{http.MethodGet, "/api/contract", http.StatusOK},
		{http.MethodGet, "/api/contract/is-owner", http.StatusOK},
		{http.MethodPost, "/api/tx/claim-daily", http.StatusOK},
		{http.MethodGet, "/api/tx/claim-daily", http.StatusMethodNotAllowed},
		{http.MethodPost, "/api/pipeline/archive", http.StatusNotFound},
	}
	for _, tc := range tests {
		t.Run(tc.method+" "+tc.path, func(t *testing.T) {
			rec := do(h, tc.method, tc.path, "", nil)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestLeaderboardEntryBody(t *testing.T) {
	_, h := newTestServer(t, Config{}, Deps{})

	rec := do(h, http.MethodGet, "/api/leaderboard/0xA11CE00000000000000000000000000000000001", "", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var entry domain.LeaderboardEntry
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &entry))
	assert.Equal(t, 2, entry.Rank)
	assert.Equal(t, "0xa11ce00000000000000000000000000000000001", entry.WalletAddress)
}

func TestTxRoutesReachOperations(t *testing.T) {
	b, h := newTestServer(t, Config{}, Deps{})

	rec := do(h, http.MethodPost, "/api/tx/resolve-market", `{"market_id":2,"outcome":"no"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, executor.OpResolveMarket, b.lastOp)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "resolve_market", body["op"])
}

func TestAPIKeyAndSignature(t *testing.T) {
	signer := crypto.NewRequestSigner("shh", time.Minute)
	_, h := newTestServer(t, Config{APIKey: "k"}, Deps{Signer: signer})

	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/health", "", nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodGet, "/api/markets", "", nil).Code)

	auth := map[string]string{"X-API-Key": "k"}
	assert.Equal(t, http.StatusOK, do(h, http.MethodGet, "/api/markets", "", auth).Code)

	body := `{"amount":"1"}`
	assert.Equal(t, http.StatusUnauthorized, do(h, http.MethodPost, "/api/tx/deposit", body, auth).Code)

	signed := map[string]string{"X-API-Key": "k"}
	for k, v := range signer.Sign(http.MethodPost, "/api/tx/deposit", body) {
		signed[k] = v
	}
	assert.Equal(t, http.StatusOK, do(h, http.MethodPost, "/api/tx/deposit", body, signed).Code)
}

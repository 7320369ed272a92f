// Package server exposes the wallet session, read queries and mutating
// operations over HTTP, plus the WebSocket signal bridge.
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/alanyoungcy/flowpredict/internal/crypto"
	"github.com/alanyoungcy/flowpredict/internal/domain"
	"github.com/alanyoungcy/flowpredict/internal/server/handler"
	"github.com/alanyoungcy/flowpredict/internal/server/middleware"
	"github.com/alanyoungcy/flowpredict/internal/server/ws"
)

// Config holds the HTTP server configuration.
type Config struct {
	Port         int
	CORSOrigins  []string
	APIKey       string // if empty, authentication is disabled
	RateLimit    int    // requests per RateWindow per client IP; 0 disables
	RateWindow   time.Duration
	WriteTimeout time.Duration
}

// Handlers aggregates all HTTP handlers that the server needs to register.
type Handlers struct {
	Health      *handler.HealthHandler
	Status      *handler.StatusHandler
	Session     *handler.SessionHandler
	Balances    *handler.BalanceHandler
	Markets     *handler.MarketHandler
	Users       *handler.UserHandler
	Leaderboard *handler.LeaderboardHandler
	Quizzes     *handler.QuizHandler
	Contract    *handler.ContractHandler
	Tx          *handler.TxHandler
	Pipeline    *handler.PipelineHandler
}

// Deps are the optional collaborators of the middleware chain.
type Deps struct {
	Limiter domain.RateLimiter    // nil disables rate limiting
	Signer  *crypto.RequestSigner // nil disables signed mutating requests
}

// Server is the HTTP + WebSocket API server.
type Server struct {
	httpServer *http.Server
	handler    http.Handler
	logger     *slog.Logger
}

// NewServer creates a new Server with all routes registered on the ServeMux.
func NewServer(cfg Config, handlers Handlers, deps Deps, wsHub *ws.Hub, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With(slog.String("component", "server"))
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", handlers.Health.HealthCheck)
	mux.HandleFunc("GET /api/status", handlers.Status.GetStatus)

	// Session.
	mux.HandleFunc("GET /api/session", handlers.Session.GetState)
	mux.HandleFunc("POST /api/session/connect", handlers.Session.Connect)
	mux.HandleFunc("POST /api/session/disconnect", handlers.Session.Disconnect)
	mux.HandleFunc("POST /api/session/switch-network", handlers.Session.SwitchNetwork)

	// Balances.
	mux.HandleFunc("GET /api/balances", handlers.Balances.GetBalances)
	mux.HandleFunc("POST /api/balances/refresh", handlers.Balances.Refresh)

	// Reads.
	mux.HandleFunc("GET /api/markets", handlers.Markets.ListMarkets)
	mux.HandleFunc("GET /api/markets/{id}", handlers.Markets.GetMarket)
	mux.HandleFunc("GET /api/markets/{id}/quote", handlers.Markets.Quote)
	mux.HandleFunc("GET /api/markets/{id}/bet", handlers.Markets.UserBet)
	mux.HandleFunc("GET /api/markets/{id}/stats", handlers.Markets.Stats)
	mux.HandleFunc("GET /api/users/{address}/stats", handlers.Users.Stats)
	mux.HandleFunc("GET /api/users/{address}/can-claim", handlers.Users.CanClaim)
	mux.HandleFunc("GET /api/users/{address}/activity", handlers.Users.Activity)
	mux.HandleFunc("GET /api/leaderboard", handlers.Leaderboard.Top)
	mux.HandleFunc("GET /api/leaderboard/{address}", handlers.Leaderboard.Entry)
	mux.HandleFunc("GET /api/quizzes", handlers.Quizzes.ListQuizzes)
	mux.HandleFunc("GET /api/quizzes/{id}", handlers.Quizzes.GetQuiz)
	mux.HandleFunc("GET /api/contract", handlers.Contract.GetContract)
	mux.HandleFunc("GET /api/contract/is-owner", handlers.Contract.IsOwner)

	// Mutating operations, optionally signed.
	signed := middleware.Signed(deps.Signer, logger)
	tx := map[string]http.HandlerFunc{
		"deposit":        handlers.Tx.Deposit,
		"withdraw":       handlers.Tx.Withdraw,
		"bet":            handlers.Tx.PlaceBet,
		"claim-daily":    handlers.Tx.ClaimDaily,
		"claim":          handlers.Tx.ClaimWinnings,
		"create-market":  handlers.Tx.CreateMarket,
		"resolve-market": handlers.Tx.ResolveMarket,
		"answer-quiz":    handlers.Tx.AnswerQuiz,
		"create-quiz":    handlers.Tx.CreateQuiz,
	}
	for name, h := range tx {
		mux.Handle("POST /api/tx/"+name, signed(h))
	}

	if handlers.Pipeline != nil {
		mux.HandleFunc("POST /api/pipeline/archive", handlers.Pipeline.TriggerArchive)
		mux.HandleFunc("GET /api/pipeline/archives", handlers.Pipeline.ListArchives)
		mux.HandleFunc("GET /api/pipeline/archives/{day}", handlers.Pipeline.GetArchive)
	}

	if wsHub != nil {
		mux.HandleFunc("GET /ws", wsHub.HandleWS)
	}

	// Build the middleware chain, innermost first.
	var h http.Handler = mux
	h = middleware.RateLimit(deps.Limiter, cfg.RateLimit, cfg.RateWindow, logger)(h)
	h = middleware.Auth(cfg.APIKey, "/api/health")(h)
	h = middleware.Logging(logger)(h)
	h = middleware.CORS(cfg.CORSOrigins)(h)

	// Mutating requests block until confirmation.
	writeTimeout := cfg.WriteTimeout
	if writeTimeout <= 0 {
		writeTimeout = 6 * time.Minute
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: writeTimeout,
		IdleTimeout:  60 * time.Second,
	}

	return &Server{
		httpServer: srv,
		handler:    h,
		logger:     logger,
	}
}

// Handler returns the full middleware-wrapped handler.
func (s *Server) Handler() http.Handler { return s.handler }

// Start begins listening for HTTP requests. It blocks until the server
// encounters an error or is shut down.
func (s *Server) Start() error {
	s.logger.Info("starting", slog.String("addr", s.httpServer.Addr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server: listen: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server, waiting for in-flight requests
// to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down")
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server: shutdown: %w", err)
	}
	return nil
}

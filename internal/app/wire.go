package app

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/flowpredict/internal/balance"
	s3blob "github.com/alanyoungcy/flowpredict/internal/blob/s3"
	"github.com/alanyoungcy/flowpredict/internal/cache/memory"
	"github.com/alanyoungcy/flowpredict/internal/cache/redis"
	"github.com/alanyoungcy/flowpredict/internal/chain"
	"github.com/alanyoungcy/flowpredict/internal/config"
	"github.com/alanyoungcy/flowpredict/internal/crypto"
	"github.com/alanyoungcy/flowpredict/internal/domain"
	"github.com/alanyoungcy/flowpredict/internal/executor"
	"github.com/alanyoungcy/flowpredict/internal/mirror"
	"github.com/alanyoungcy/flowpredict/internal/notify"
	"github.com/alanyoungcy/flowpredict/internal/server/handler"
	"github.com/alanyoungcy/flowpredict/internal/service"
	"github.com/alanyoungcy/flowpredict/internal/session"
	"github.com/alanyoungcy/flowpredict/internal/store/postgres"
	"github.com/alanyoungcy/flowpredict/internal/wallet"
)

// Dependencies bundles every domain-level dependency that the application modes
// need to operate. It is constructed by Wire and torn down by the returned
// cleanup function.
type Dependencies struct {
	Network  domain.NetworkDescriptor
	Contract common.Address

	// Chain
	ReadClient *ethclient.Client
	Reader     *chain.Reader
	Wallet     wallet.Provider

	// Session
	Validator *session.Validator
	Session   *session.Session
	Balances  *balance.Cache

	// Stores
	ActivityStore    domain.ActivityStore
	LeaderboardStore domain.LeaderboardStore
	MarketStatsStore domain.MarketStatsStore
	AuditStore       domain.AuditStore

	// Caches
	BalanceCache domain.BalanceCache
	MarketCache  domain.MarketCache
	RateLimiter  domain.RateLimiter
	LockManager  domain.LockManager
	SignalBus    domain.SignalBus

	// Blob storage
	Archiver      domain.Archiver
	ArchiveReader domain.BlobReader

	// Services
	Mirror     *mirror.Client
	Markets    *service.MarketService
	Operations *executor.Operations
	Notifier   *notify.Notifier

	// HealthChecks back GET /api/health, one per external dependency.
	HealthChecks map[string]handler.HealthCheck
}

// confirmer pairs receipt polling on the read provider with revert replay
// through the read proxy.
type confirmer struct {
	chain.ReceiptReader
	chain.Replayer
}

// NetworkDescriptor builds the immutable network description from config.
func NetworkDescriptor(cfg config.NetworkConfig) domain.NetworkDescriptor {
	n := domain.FlowEVMTestnet(cfg.RPCURL)
	n.ChainID = big.NewInt(cfg.ChainID)
	if cfg.Name != "" {
		n.Name = cfg.Name
	}
	if cfg.CurrencyName != "" {
		n.Currency.Name = cfg.CurrencyName
	}
	if cfg.CurrencySymbol != "" {
		n.Currency.Symbol = cfg.CurrencySymbol
	}
	n.ExplorerURLs = nil
	if cfg.ExplorerURL != "" {
		n.ExplorerURLs = []string{cfg.ExplorerURL}
	}
	return n
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, err
	}

	deps := &Dependencies{
		Network:      NetworkDescriptor(cfg.Network),
		Contract:     common.HexToAddress(cfg.Contract.Address),
		HealthChecks: make(map[string]handler.HealthCheck),
	}

	// --- PostgreSQL (off-chain mirror) ---
	if cfg.Supabase.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:            cfg.Supabase.DSN,
			Host:           cfg.Supabase.Host,
			Port:           cfg.Supabase.Port,
			Database:       cfg.Supabase.Database,
			User:           cfg.Supabase.User,
			Password:       cfg.Supabase.Password,
			SSLMode:        cfg.Supabase.SSLMode,
			MaxConns:       cfg.Supabase.PoolMaxConns,
			MinConns:       cfg.Supabase.PoolMinConns,
			SimpleProtocol: cfg.Supabase.SimpleProtocol,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: postgres: %w", err))
		}
		closers = append(closers, pgClient.Close)

		// Run migrations if enabled.
		if cfg.Supabase.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				return fail(fmt.Errorf("wire: postgres migrations: %w", err))
			}
		}

		pool := pgClient.Pool()
		deps.ActivityStore = postgres.NewActivityStore(pool)
		deps.LeaderboardStore = postgres.NewLeaderboardStore(pool)
		deps.MarketStatsStore = postgres.NewMarketStatsStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.HealthChecks["postgres"] = pgClient.Ping
	} else {
		logger.Warn("supabase disabled; activity, leaderboard and stats reads will be empty")
	}

	// --- Redis, or in-process fallbacks ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, redis.ClientConfig{
			Addr:       cfg.Redis.Addr,
			Password:   cfg.Redis.Password,
			DB:         cfg.Redis.DB,
			PoolSize:   cfg.Redis.PoolSize,
			MaxRetries: cfg.Redis.MaxRetries,
			TLSEnabled: cfg.Redis.TLSEnabled,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: redis: %w", err))
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.BalanceCache = redis.NewBalanceCache(redisClient, cfg.Redis.BalanceTTL.Duration)
		deps.MarketCache = redis.NewMarketCache(redisClient, cfg.Redis.ListingTTL.Duration)
		deps.RateLimiter = redis.NewRateLimiter(redisClient, cfg.Redis.RPCRateLimit, cfg.Redis.RPCRateWindow.Duration)
		deps.LockManager = redis.NewLockManager(redisClient)
		deps.SignalBus = redis.NewSignalBus(redisClient)
		deps.HealthChecks["redis"] = redisClient.Ping
	} else {
		logger.Warn("redis disabled; using in-process signal bus and account locks")
		deps.SignalBus = memory.NewBus()
	}

	// --- S3 blob storage (activity archive) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			return fail(fmt.Errorf("wire: s3: %w", err))
		}
		deps.HealthChecks["s3"] = s3Client.Health
		reader := s3blob.NewReader(s3Client)
		deps.ArchiveReader = reader

		// Archiver: only when we also have Postgres to read activity from.
		if activity, ok := deps.ActivityStore.(s3blob.ActivitySource); ok {
			deps.Archiver = s3blob.NewArchiver(
				s3blob.NewWriter(s3Client),
				reader,
				activity,
				deps.AuditStore,
			)
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)
	reporter := notify.NewTxReporter(deps.SignalBus, deps.Notifier, logger)

	// --- Read provider ---
	// Dial fails with ErrReadProviderMismatch when the RPC serves another
	// chain; that is a configuration error and the process must not start.
	client, err := chain.Dial(ctx, deps.Network.PrimaryRPC(), deps.Network.ChainID)
	if err != nil {
		return fail(fmt.Errorf("wire: read provider: %w", err))
	}
	closers = append(closers, client.Close)
	deps.ReadClient = client
	deps.Reader = chain.NewReader(client, deps.Contract)
	deps.HealthChecks["rpc"] = func(ctx context.Context) error {
		return chain.VerifyChainID(ctx, client, deps.Network.ChainID)
	}

	// --- Wallet ---
	provider, closeWallet, err := newWallet(ctx, cfg.Wallet, deps.Network, logger)
	if err != nil {
		return fail(fmt.Errorf("wire: wallet: %w", err))
	}
	if closeWallet != nil {
		closers = append(closers, closeWallet)
	}
	deps.Wallet = provider

	// --- Session ---
	deps.Validator = session.NewValidator(deps.Network, provider, client, logger)
	if _, err := deps.Validator.CrossCheck(ctx); err != nil {
		return fail(fmt.Errorf("wire: network check: %w", err))
	}

	balanceOpts := []balance.Option{balance.WithSignalBus(deps.SignalBus)}
	if deps.BalanceCache != nil {
		balanceOpts = append(balanceOpts, balance.WithMirror(deps.BalanceCache))
	}
	deps.Balances = balance.New(deps.Reader, cfg.Session.BalanceThrottle.Duration, logger, balanceOpts...)
	closers = append(closers, deps.Balances.Close)

	sessionOpts := []session.Option{session.WithSignalBus(deps.SignalBus)}
	if deps.AuditStore != nil {
		sessionOpts = append(sessionOpts, session.WithAudit(deps.AuditStore))
	}
	deps.Session = session.New(deps.Network, deps.Contract, provider, deps.Validator, deps.Balances, logger, sessionOpts...)
	closers = append(closers, deps.Session.Close)

	// --- Services ---
	deps.Mirror = mirror.New(deps.ActivityStore, deps.LeaderboardStore, deps.MarketStatsStore, logger)

	var marketOpts []service.Option
	if deps.MarketCache != nil {
		marketOpts = append(marketOpts, service.WithListingCache(deps.MarketCache))
	}
	if deps.RateLimiter != nil && cfg.Redis.RPCRateLimit > 0 {
		marketOpts = append(marketOpts, service.WithRateLimiter(deps.RateLimiter))
	}
	deps.Markets = service.NewMarketService(deps.Reader, logger, marketOpts...)

	txPipeline := executor.NewPipeline(
		deps.Session,
		confirmer{ReceiptReader: client, Replayer: deps.Reader},
		deps.Balances,
		deps.Mirror,
		reporter,
		deps.LockManager,
		deps.Network,
		executor.Config{
			PollInterval:        cfg.Executor.PollInterval.Duration,
			ConfirmTimeout:      cfg.Executor.ConfirmTimeout.Duration,
			SerializePerAccount: cfg.Executor.SerializePerAccount,
		},
		logger,
	)
	deps.Operations = executor.NewOperations(txPipeline, deps.Reader, deps.Mirror, deps.AuditStore, deps.Contract, logger).
		WithListing(deps.Markets)

	return deps, cleanup, nil
}

// newWallet builds the configured wallet provider. The returned close func
// may be nil.
func newWallet(ctx context.Context, cfg config.WalletConfig, network domain.NetworkDescriptor, logger *slog.Logger) (wallet.Provider, func(), error) {
	switch strings.ToLower(cfg.Kind) {
	case config.WalletRPC:
		p, err := wallet.DialRPC(ctx, cfg.Endpoint, logger)
		if err != nil {
			logger.WarnContext(ctx, "wallet endpoint unreachable; running read-only",
				slog.String("endpoint", cfg.Endpoint),
				slog.String("error", err.Error()),
			)
			return wallet.None{}, nil, nil
		}
		return p, p.Close, nil

	case config.WalletLocal:
		key, err := crypto.LoadKey(crypto.KeySource{
			RawPrivateKey:    cfg.PrivateKey,
			EncryptedKeyPath: cfg.EncryptedKeyPath,
			Password:         cfg.KeyPassword,
		})
		if err != nil {
			return nil, nil, err
		}
		start := network.ChainID
		if cfg.StartChainID > 0 {
			start = big.NewInt(cfg.StartChainID)
		}
		signer := crypto.NewTxSigner(key)
		logger.Info("local wallet loaded",
			slog.String("account", signer.Address().Hex()),
			slog.String("chain_id", start.String()),
		)
		return wallet.NewLocalProvider(signer, start, []domain.NetworkDescriptor{network}, nil, logger), nil, nil

	default:
		return wallet.None{}, nil, nil
	}
}

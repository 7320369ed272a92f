// Package config defines the top-level configuration for flowpredict and
// provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/flowpredict/internal/pipeline"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by FLOWPREDICT_* environment variables.
type Config struct {
	Network  NetworkConfig  `toml:"network"`
	Contract ContractConfig `toml:"contract"`
	Wallet   WalletConfig   `toml:"wallet"`
	Supabase SupabaseConfig `toml:"supabase"`
	Redis    RedisConfig    `toml:"redis"`
	S3       S3Config       `toml:"s3"`
	Session  SessionConfig  `toml:"session"`
	Executor ExecutorConfig `toml:"executor"`
	Pipeline PipelineConfig `toml:"pipeline"`
	Server   ServerConfig   `toml:"server"`
	Notify   NotifyConfig   `toml:"notify"`
	Mode     string         `toml:"mode"`
	LogLevel string         `toml:"log_level"`
}

// NetworkConfig describes the single supported chain.
type NetworkConfig struct {
	RPCURL         string `toml:"rpc_url"`
	ChainID        int64  `toml:"chain_id"`
	Name           string `toml:"name"`
	CurrencyName   string `toml:"currency_name"`
	CurrencySymbol string `toml:"currency_symbol"`
	ExplorerURL    string `toml:"explorer_url"`
}

// ContractConfig points at the deployed prediction market contract.
type ContractConfig struct {
	Address string `toml:"address"`
}

// Wallet kinds.
const (
	WalletRPC   = "rpc"
	WalletLocal = "local"
	WalletNone  = "none"
)

// WalletConfig selects the wallet provider.
type WalletConfig struct {
	Kind string `toml:"kind"`

	// rpc: an EIP-1193 style wallet reachable over JSON-RPC.
	Endpoint string `toml:"endpoint"`

	// local: a key held by the process.
	PrivateKey       string `toml:"private_key"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
	// StartChainID is the chain the local wallet reports before any switch;
	// 0 means the expected chain.
	StartChainID int64 `toml:"start_chain_id"`
}

// SupabaseConfig holds PostgreSQL / Supabase connection parameters for the
// off-chain mirror.
type SupabaseConfig struct {
	Enabled        bool   `toml:"enabled"`
	DSN            string `toml:"dsn"`
	Host           string `toml:"host"`
	Port           int    `toml:"port"`
	Database       string `toml:"database"`
	User           string `toml:"user"`
	Password       string `toml:"password"`
	SSLMode        string `toml:"ssl_mode"`
	PoolMaxConns   int    `toml:"pool_max_conns"`
	PoolMinConns   int    `toml:"pool_min_conns"`
	SimpleProtocol bool   `toml:"simple_protocol"`
	RunMigrations  bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters and cache lifetimes.
type RedisConfig struct {
	Enabled    bool     `toml:"enabled"`
	Addr       string   `toml:"addr"`
	Password   string   `toml:"password"`
	DB         int      `toml:"db"`
	PoolSize   int      `toml:"pool_size"`
	MaxRetries int      `toml:"max_retries"`
	TLSEnabled bool     `toml:"tls_enabled"`
	BalanceTTL duration `toml:"balance_ttl"`
	ListingTTL duration `toml:"listing_ttl"`
	// RPCRateLimit caps contract reads per RPCRateWindow across processes.
	RPCRateLimit  int      `toml:"rpc_rate_limit"`
	RPCRateWindow duration `toml:"rpc_rate_window"`
}

// S3Config holds S3-compatible object storage parameters for the activity
// archive.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// SessionConfig tunes the wallet session and balance cache.
type SessionConfig struct {
	AutoConnect         bool     `toml:"auto_connect"`
	BalanceThrottle     duration `toml:"balance_throttle"`
	BalancePollInterval duration `toml:"balance_poll_interval"`
}

// ExecutorConfig tunes the transaction pipeline.
type ExecutorConfig struct {
	SerializePerAccount bool     `toml:"serialize_per_account"`
	PollInterval        duration `toml:"poll_interval"`
	ConfirmTimeout      duration `toml:"confirm_timeout"`
}

// PipelineConfig holds the view pollers and the activity archive schedule.
type PipelineConfig struct {
	MarketsInterval      duration `toml:"markets_interval"`
	LeaderboardInterval  duration `toml:"leaderboard_interval"`
	LeaderboardLimit     int      `toml:"leaderboard_limit"`
	ArchiveRetentionDays int      `toml:"archive_retention_days"`
	ArchiveCron          string   `toml:"archive_cron"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Port        int      `toml:"port"`
	CORSOrigins []string `toml:"cors_origins"`
	APIKey      string   `toml:"api_key"`
	RateLimit   int      `toml:"rate_limit"`
	RateWindow  duration `toml:"rate_window"`
	// SigningSecret turns on HMAC signatures for /api/tx/* when set.
	SigningSecret    string   `toml:"signing_secret"`
	SignatureMaxSkew duration `toml:"signature_max_skew"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Network: NetworkConfig{
			RPCURL:         "https://testnet.evm.nodes.onflow.org",
			ChainID:        545,
			Name:           "Flow EVM Testnet",
			CurrencyName:   "FLOW",
			CurrencySymbol: "FLOW",
			ExplorerURL:    "https://evm-testnet.flowscan.io",
		},
		Wallet: WalletConfig{
			Kind: WalletNone,
		},
		Supabase: SupabaseConfig{
			Enabled:       true,
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Enabled:       true,
			Addr:          "localhost:6379",
			PoolSize:      20,
			MaxRetries:    3,
			BalanceTTL:    duration{time.Minute},
			ListingTTL:    duration{10 * time.Second},
			RPCRateLimit:  20,
			RPCRateWindow: duration{time.Second},
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "flowpredict-archive",
			ForcePathStyle: true,
		},
		Session: SessionConfig{
			BalanceThrottle:     duration{5 * time.Second},
			BalancePollInterval: duration{10 * time.Second},
		},
		Executor: ExecutorConfig{
			SerializePerAccount: true,
			PollInterval:        duration{2 * time.Second},
			ConfirmTimeout:      duration{5 * time.Minute},
		},
		Pipeline: PipelineConfig{
			MarketsInterval:      duration{10 * time.Second},
			LeaderboardInterval:  duration{30 * time.Second},
			LeaderboardLimit:     50,
			ArchiveRetentionDays: 90,
			ArchiveCron:          "0 3 * * *",
		},
		Server: ServerConfig{
			Port:             8000,
			CORSOrigins:      []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:        120,
			RateWindow:       duration{time.Minute},
			SignatureMaxSkew: duration{5 * time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"tx.succeeded", "tx.failed"},
		},
		Mode:     "serve",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve":   true,
	"watch":   true,
	"archive": true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// ServesHTTP reports whether the configured mode runs the API server.
func (c *Config) ServesHTTP() bool {
	m := strings.ToLower(c.Mode)
	return m == "serve" || m == "full"
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string
	mode := strings.ToLower(c.Mode)

	if !validModes[mode] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, watch, archive, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Network
	if strings.TrimSpace(c.Network.RPCURL) == "" {
		errs = append(errs, "network: rpc_url must not be empty")
	}
	if c.Network.ChainID <= 0 {
		errs = append(errs, "network: chain_id must be positive")
	}
	if c.Network.CurrencySymbol == "" {
		errs = append(errs, "network: currency_symbol must not be empty")
	}

	// Contract
	if !common.IsHexAddress(c.Contract.Address) {
		errs = append(errs, fmt.Sprintf("contract: address %q is not a hex address", c.Contract.Address))
	}

	// Wallet
	switch strings.ToLower(c.Wallet.Kind) {
	case WalletNone:
	case WalletRPC:
		if c.Wallet.Endpoint == "" {
			errs = append(errs, "wallet: endpoint is required for kind rpc")
		}
	case WalletLocal:
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for kind local")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
		if c.Wallet.StartChainID < 0 {
			errs = append(errs, "wallet: start_chain_id must not be negative")
		}
	default:
		errs = append(errs, fmt.Sprintf("wallet: unknown kind %q (valid: rpc, local, none)", c.Wallet.Kind))
	}

	// Supabase
	if c.Supabase.Enabled {
		if strings.TrimSpace(c.Supabase.DSN) == "" {
			if c.Supabase.Host == "" {
				errs = append(errs, "supabase: host must not be empty (or set supabase.dsn)")
			}
			if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
				errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
			}
			if c.Supabase.Database == "" {
				errs = append(errs, "supabase: database must not be empty")
			}
		}
		if c.Supabase.PoolMaxConns < 1 {
			errs = append(errs, "supabase: pool_max_conns must be >= 1")
		}
		if c.Supabase.PoolMinConns < 0 {
			errs = append(errs, "supabase: pool_min_conns must be >= 0")
		}
		if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
			errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
		if c.Redis.BalanceTTL.Duration <= 0 || c.Redis.ListingTTL.Duration <= 0 {
			errs = append(errs, "redis: balance_ttl and listing_ttl must be > 0")
		}
		if c.Redis.RPCRateLimit < 0 {
			errs = append(errs, "redis: rpc_rate_limit must be >= 0")
		}
		if c.Redis.RPCRateLimit > 0 && c.Redis.RPCRateWindow.Duration <= 0 {
			errs = append(errs, "redis: rpc_rate_window must be > 0 when rpc_rate_limit is set")
		}
	}

	// S3
	if c.S3.Enabled && c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}
	if mode == "archive" {
		if !c.S3.Enabled {
			errs = append(errs, "s3: must be enabled for mode archive")
		}
		if !c.Supabase.Enabled {
			errs = append(errs, "supabase: must be enabled for mode archive")
		}
	}

	// Session
	if c.Session.BalanceThrottle.Duration <= 0 {
		errs = append(errs, "session: balance_throttle must be > 0")
	}
	if c.Session.BalancePollInterval.Duration <= 0 {
		errs = append(errs, "session: balance_poll_interval must be > 0")
	}

	// Executor
	if c.Executor.PollInterval.Duration <= 0 {
		errs = append(errs, "executor: poll_interval must be > 0")
	}
	if c.Executor.ConfirmTimeout.Duration < c.Executor.PollInterval.Duration {
		errs = append(errs, "executor: confirm_timeout must not be shorter than poll_interval")
	}

	// Pipeline
	if c.Pipeline.MarketsInterval.Duration <= 0 || c.Pipeline.LeaderboardInterval.Duration <= 0 {
		errs = append(errs, "pipeline: markets_interval and leaderboard_interval must be > 0")
	}
	if c.Pipeline.LeaderboardLimit < 1 {
		errs = append(errs, "pipeline: leaderboard_limit must be >= 1")
	}
	if c.Pipeline.ArchiveRetentionDays < 1 {
		errs = append(errs, "pipeline: archive_retention_days must be >= 1")
	}
	if err := pipeline.ValidateCron(c.Pipeline.ArchiveCron); err != nil {
		errs = append(errs, fmt.Sprintf("pipeline: archive_cron: %v", err))
	}

	// Server
	if c.ServesHTTP() {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
		if c.Server.RateLimit > 0 && c.Server.RateWindow.Duration <= 0 {
			errs = append(errs, "server: rate_window must be > 0 when rate_limit is set")
		}
		if c.Server.SigningSecret != "" && c.Server.SignatureMaxSkew.Duration <= 0 {
			errs = append(errs, "server: signature_max_skew must be > 0 when signing_secret is set")
		}
	}

	// Notify: token and chat id come as a pair.
	if (c.Notify.TelegramToken == "") != (c.Notify.TelegramChatID == "") {
		errs = append(errs, "notify: telegram_token and telegram_chat_id must be set together")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies FLOWPREDICT_* environment variable overrides, and
// returns the final Config. A missing file is not an error: defaults plus the
// environment are enough for a read-only deployment. The returned Config has
// NOT been validated; the caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known FLOWPREDICT_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Network ──
	setStr(&cfg.Network.RPCURL, "FLOWPREDICT_NETWORK_RPC_URL")
	setInt64(&cfg.Network.ChainID, "FLOWPREDICT_NETWORK_CHAIN_ID")
	setStr(&cfg.Network.Name, "FLOWPREDICT_NETWORK_NAME")
	setStr(&cfg.Network.ExplorerURL, "FLOWPREDICT_NETWORK_EXPLORER_URL")

	// ── Contract ──
	setStr(&cfg.Contract.Address, "FLOWPREDICT_CONTRACT_ADDRESS")

	// ── Wallet ──
	setStr(&cfg.Wallet.Kind, "FLOWPREDICT_WALLET_KIND")
	setStr(&cfg.Wallet.Endpoint, "FLOWPREDICT_WALLET_ENDPOINT")
	setStr(&cfg.Wallet.PrivateKey, "FLOWPREDICT_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.EncryptedKeyPath, "FLOWPREDICT_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "FLOWPREDICT_WALLET_KEY_PASSWORD")
	setInt64(&cfg.Wallet.StartChainID, "FLOWPREDICT_WALLET_START_CHAIN_ID")

	// ── Supabase ──
	setBool(&cfg.Supabase.Enabled, "FLOWPREDICT_SUPABASE_ENABLED")
	setStr(&cfg.Supabase.DSN, "FLOWPREDICT_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "FLOWPREDICT_SUPABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.Host, "FLOWPREDICT_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "FLOWPREDICT_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "FLOWPREDICT_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "FLOWPREDICT_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "FLOWPREDICT_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "FLOWPREDICT_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "FLOWPREDICT_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "FLOWPREDICT_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.SimpleProtocol, "FLOWPREDICT_SUPABASE_SIMPLE_PROTOCOL")
	setBool(&cfg.Supabase.RunMigrations, "FLOWPREDICT_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "FLOWPREDICT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "FLOWPREDICT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "FLOWPREDICT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "FLOWPREDICT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "FLOWPREDICT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "FLOWPREDICT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "FLOWPREDICT_REDIS_TLS_ENABLED")
	setDuration(&cfg.Redis.BalanceTTL, "FLOWPREDICT_REDIS_BALANCE_TTL")
	setDuration(&cfg.Redis.ListingTTL, "FLOWPREDICT_REDIS_LISTING_TTL")
	setInt(&cfg.Redis.RPCRateLimit, "FLOWPREDICT_REDIS_RPC_RATE_LIMIT")
	setDuration(&cfg.Redis.RPCRateWindow, "FLOWPREDICT_REDIS_RPC_RATE_WINDOW")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "FLOWPREDICT_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "FLOWPREDICT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "FLOWPREDICT_S3_REGION")
	setStr(&cfg.S3.Bucket, "FLOWPREDICT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "FLOWPREDICT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "FLOWPREDICT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "FLOWPREDICT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "FLOWPREDICT_S3_FORCE_PATH_STYLE")

	// ── Session ──
	setBool(&cfg.Session.AutoConnect, "FLOWPREDICT_SESSION_AUTO_CONNECT")
	setDuration(&cfg.Session.BalanceThrottle, "FLOWPREDICT_SESSION_BALANCE_THROTTLE")
	setDuration(&cfg.Session.BalancePollInterval, "FLOWPREDICT_SESSION_BALANCE_POLL_INTERVAL")

	// ── Executor ──
	setBool(&cfg.Executor.SerializePerAccount, "FLOWPREDICT_EXECUTOR_SERIALIZE_PER_ACCOUNT")
	setDuration(&cfg.Executor.PollInterval, "FLOWPREDICT_EXECUTOR_POLL_INTERVAL")
	setDuration(&cfg.Executor.ConfirmTimeout, "FLOWPREDICT_EXECUTOR_CONFIRM_TIMEOUT")

	// ── Pipeline ──
	setDuration(&cfg.Pipeline.MarketsInterval, "FLOWPREDICT_PIPELINE_MARKETS_INTERVAL")
	setDuration(&cfg.Pipeline.LeaderboardInterval, "FLOWPREDICT_PIPELINE_LEADERBOARD_INTERVAL")
	setInt(&cfg.Pipeline.LeaderboardLimit, "FLOWPREDICT_PIPELINE_LEADERBOARD_LIMIT")
	setInt(&cfg.Pipeline.ArchiveRetentionDays, "FLOWPREDICT_PIPELINE_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Pipeline.ArchiveCron, "FLOWPREDICT_PIPELINE_ARCHIVE_CRON")

	// ── Server ──
	setInt(&cfg.Server.Port, "FLOWPREDICT_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "FLOWPREDICT_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "FLOWPREDICT_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "FLOWPREDICT_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateWindow, "FLOWPREDICT_SERVER_RATE_WINDOW")
	setStr(&cfg.Server.SigningSecret, "FLOWPREDICT_SERVER_SIGNING_SECRET")
	setDuration(&cfg.Server.SignatureMaxSkew, "FLOWPREDICT_SERVER_SIGNATURE_MAX_SKEW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "FLOWPREDICT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "FLOWPREDICT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "FLOWPREDICT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "FLOWPREDICT_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "FLOWPREDICT_MODE")
	setStr(&cfg.LogLevel, "FLOWPREDICT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

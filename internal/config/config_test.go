package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testContract = "0x00000000000000000000000000000000c0ffee00"

func validConfig() Config {
	cfg := Defaults()
	cfg.Contract.Address = testContract
	return cfg
}

func TestDefaultsNeedOnlyAContract(t *testing.T) {
	cfg := Defaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "contract: address")

	cfg = validConfig()
	assert.NoError(t, cfg.Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"unknown mode", func(c *Config) { c.Mode = "trade" }, "unknown mode"},
		{"unknown log level", func(c *Config) { c.LogLevel = "loud" }, "unknown log_level"},
		{"no rpc", func(c *Config) { c.Network.RPCURL = " " }, "network: rpc_url"},
		{"bad chain id", func(c *Config) { c.Network.ChainID = 0 }, "network: chain_id"},
		{"unknown wallet", func(c *Config) { c.Wallet.Kind = "ledger" }, "wallet: unknown kind"},
		{"rpc wallet without endpoint", func(c *Config) { c.Wallet.Kind = WalletRPC }, "wallet: endpoint"},
		{"local wallet without key", func(c *Config) { c.Wallet.Kind = WalletLocal }, "private_key or encrypted_key_path"},
		{"encrypted key without password", func(c *Config) {
			c.Wallet.Kind = WalletLocal
			c.Wallet.EncryptedKeyPath = "key.enc"
		}, "key_password"},
		{"pool bounds", func(c *Config) { c.Supabase.PoolMinConns = 20 }, "pool_min_conns must not exceed"},
		{"redis addr", func(c *Config) { c.Redis.Addr = "" }, "redis: addr"},
		{"archive needs s3", func(c *Config) { c.Mode = "archive" }, "s3: must be enabled"},
		{"throttle", func(c *Config) { c.Session.BalanceThrottle = duration{} }, "balance_throttle"},
		{"confirm timeout", func(c *Config) { c.Executor.ConfirmTimeout = duration{time.Second} }, "confirm_timeout"},
		{"bad cron", func(c *Config) { c.Pipeline.ArchiveCron = "every day" }, "archive_cron"},
		{"port", func(c *Config) { c.Server.Port = 70000 }, "server: port"},
		{"telegram pair", func(c *Config) { c.Notify.TelegramToken = "t" }, "telegram_chat_id"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestValidate_DisabledSectionsAreSkipped(t *testing.T) {
	cfg := validConfig()
	cfg.Redis.Enabled = false
	cfg.Redis.Addr = ""
	cfg.Supabase.Enabled = false
	cfg.Supabase.Host = ""
	cfg.Mode = "watch"
	cfg.Server.Port = 0
	assert.NoError(t, cfg.Validate())
}

func TestValidate_CollectsEveryProblem(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "nope"
	cfg.Network.ChainID = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
	assert.Contains(t, err.Error(), "network: chain_id")
}

func TestLoad_FileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(`
mode = "full"

[contract]
address = "`+testContract+`"

[wallet]
kind = "local"
private_key = "abc"

[session]
balance_throttle = "2s"

[pipeline]
markets_interval = "15s"
`), 0o600))

	t.Setenv("FLOWPREDICT_SERVER_PORT", "9100")
	t.Setenv("FLOWPREDICT_SERVER_CORS_ORIGINS", " https://a.example , ,https://b.example")
	t.Setenv("FLOWPREDICT_EXECUTOR_SERIALIZE_PER_ACCOUNT", "false")
	t.Setenv("FLOWPREDICT_REDIS_LISTING_TTL", "30s")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "full", cfg.Mode)
	assert.Equal(t, testContract, cfg.Contract.Address)
	assert.Equal(t, WalletLocal, cfg.Wallet.Kind)
	assert.Equal(t, 2*time.Second, cfg.Session.BalanceThrottle.Duration)
	assert.Equal(t, 15*time.Second, cfg.Pipeline.MarketsInterval.Duration)
	// Untouched defaults survive.
	assert.Equal(t, 30*time.Second, cfg.Pipeline.LeaderboardInterval.Duration)
	assert.Equal(t, int64(545), cfg.Network.ChainID)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.Server.CORSOrigins)
	assert.False(t, cfg.Executor.SerializePerAccount)
	assert.Equal(t, 30*time.Second, cfg.Redis.ListingTTL.Duration)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("FLOWPREDICT_CONTRACT_ADDRESS", testContract)
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.toml"))
	require.NoError(t, err)
	assert.Equal(t, "serve", cfg.Mode)
	assert.Equal(t, testContract, cfg.Contract.Address)
}

func TestLoad_MalformedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.toml")
	require.NoError(t, os.WriteFile(path, []byte("mode = "), 0o600))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestRedactedConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Wallet.PrivateKey = "deadbeef"
	cfg.Supabase.Password = "pw"
	cfg.Server.SigningSecret = "s"
	cfg.Notify.Events = []string{"tx.failed"}

	out := RedactedConfig(&cfg)
	assert.Equal(t, redacted, out.Wallet.PrivateKey)
	assert.Equal(t, redacted, out.Supabase.Password)
	assert.Equal(t, redacted, out.Server.SigningSecret)
	assert.Empty(t, out.Redis.Password)

	out.Notify.Events[0] = "changed"
	assert.Equal(t, "tx.failed", cfg.Notify.Events[0])
	assert.Equal(t, "deadbeef", cfg.Wallet.PrivateKey)
}

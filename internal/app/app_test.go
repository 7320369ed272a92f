package app

import (
	"context"
	"log/slog"
	"math/big"
	"os"
	"path/filepath"
	"testing"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/flowpredict/internal/config"
	"github.com/alanyoungcy/flowpredict/internal/crypto"
	"github.com/alanyoungcy/flowpredict/internal/wallet"
)

const testKey = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestNetworkDescriptor(t *testing.T) {
	cfg := config.Defaults().Network
	n := NetworkDescriptor(cfg)
	assert.Equal(t, 0, n.ChainID.Cmp(big.NewInt(545)))
	assert.Equal(t, "0x221", n.HexChainID())
	assert.Equal(t, []string{cfg.RPCURL}, n.RPCURLs)
	assert.Equal(t, "FLOW", n.Currency.Symbol)
	assert.Equal(t, 18, int(n.Currency.Decimals))

	cfg.ChainID = 747
	cfg.Name = "Flow EVM Mainnet"
	cfg.ExplorerURL = ""
	n = NetworkDescriptor(cfg)
	assert.Equal(t, "0x2eb", n.HexChainID())
	assert.Equal(t, "Flow EVM Mainnet", n.Name)
	assert.Empty(t, n.ExplorerURLs)
}

func TestNewWallet_None(t *testing.T) {
	network := NetworkDescriptor(config.Defaults().Network)
	p, closeFn, err := newWallet(context.Background(), config.WalletConfig{Kind: config.WalletNone}, network, discard())
	require.NoError(t, err)
	assert.Nil(t, closeFn)
	assert.False(t, wallet.Present(p))
}

func TestNewWallet_RPCUnreachableFallsBack(t *testing.T) {
	network := NetworkDescriptor(config.Defaults().Network)
	p, closeFn, err := newWallet(context.Background(), config.WalletConfig{
		Kind:     config.WalletRPC,
		Endpoint: "ws://127.0.0.1:1",
	}, network, discard())
	require.NoError(t, err)
	assert.Nil(t, closeFn)
	assert.False(t, wallet.Present(p))
}

func TestNewWallet_LocalRawKey(t *testing.T) {
	network := NetworkDescriptor(config.Defaults().Network)
	want, err := ethcrypto.HexToECDSA(testKey)
	require.NoError(t, err)

	p, _, err := newWallet(context.Background(), config.WalletConfig{
		Kind:       config.WalletLocal,
		PrivateKey: "0x" + testKey,
	}, network, discard())
	require.NoError(t, err)
	require.True(t, wallet.Present(p))

	accounts, err := p.RequestAccounts(context.Background())
	require.NoError(t, err)
	require.Len(t, accounts, 1)
	assert.Equal(t, ethcrypto.PubkeyToAddress(want.PublicKey), accounts[0])

	chainID, err := p.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, chainID.Cmp(network.ChainID))
}

func TestNewWallet_LocalStartsOnConfiguredChain(t *testing.T) {
	network := NetworkDescriptor(config.Defaults().Network)
	p, _, err := newWallet(context.Background(), config.WalletConfig{
		Kind:         config.WalletLocal,
		PrivateKey:   testKey,
		StartChainID: 1,
	}, network, discard())
	require.NoError(t, err)

	chainID, err := p.ChainID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), chainID.Int64())
}

func TestNewWallet_LocalEncryptedKey(t *testing.T) {
	sealed, err := crypto.EncryptKey(testKey, "hunter2")
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "key.json")
	require.NoError(t, os.WriteFile(path, sealed, 0o600))

	network := NetworkDescriptor(config.Defaults().Network)
	_, _, err = newWallet(context.Background(), config.WalletConfig{
		Kind:             config.WalletLocal,
		EncryptedKeyPath: path,
		KeyPassword:      "wrong",
	}, network, discard())
	assert.Error(t, err)

	p, _, err := newWallet(context.Background(), config.WalletConfig{
		Kind:             config.WalletLocal,
		EncryptedKeyPath: path,
		KeyPassword:      "hunter2",
	}, network, discard())
	require.NoError(t, err)
	assert.True(t, wallet.Present(p))
}

package chain

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

// Backend is the read-only slice of an EVM node the application depends on.
type Backend interface {
	ethereum.ContractCaller
	ethereum.TransactionReader
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	ChainID(ctx context.Context) (*big.Int, error)
}

var _ Backend = (*ethclient.Client)(nil)

// Dial connects to rpcURL and verifies it serves the expected chain.
func Dial(ctx context.Context, rpcURL string, expected *big.Int) (*ethclient.Client, error) {
	dialCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := ethclient.DialContext(dialCtx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", rpcURL, err)
	}
	if err := VerifyChainID(ctx, client, expected); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

// VerifyChainID fails with ErrReadProviderMismatch when the backend reports a
// different chain than expected.
func VerifyChainID(ctx context.Context, b interface {
	ChainID(ctx context.Context) (*big.Int, error)
}, expected *big.Int) error {
	idCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	got, err := b.ChainID(idCtx)
	if err != nil {
		return fmt.Errorf("chain: read chain id: %w: %w", domain.ErrRPC, err)
	}
	if expected != nil && got.Cmp(expected) != 0 {
		return fmt.Errorf("chain: expected chain %s, got %s: %w", expected, got, domain.ErrReadProviderMismatch)
	}
	return nil
}

// BlockTime is a convenience for converting uint256 unix seconds.
func BlockTime(v *big.Int) time.Time {
	if v == nil || v.Sign() == 0 {
		return time.Time{}
	}
	return time.Unix(v.Int64(), 0).UTC()
}

// ReceiptReader is the receipt lookup WaitMined polls.
type ReceiptReader interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error)
}

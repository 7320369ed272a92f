package session

import (
	"context"
	"fmt"
	"log/slog"
	"math/big"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/flowpredict/internal/chain"
	"github.com/alanyoungcy/flowpredict/internal/domain"
	"github.com/alanyoungcy/flowpredict/internal/wallet"
)

// ChainIDReader is anything that can report its chain id.
type ChainIDReader interface {
	ChainID(ctx context.Context) (*big.Int, error)
}

// Validator compares the wallet and the read provider against the expected
// network. A wallet mismatch is a user condition; a read provider mismatch is
// a configuration error.
type Validator struct {
	network domain.NetworkDescriptor
	wallet  wallet.Provider
	read    ChainIDReader
	logger  *slog.Logger
}

// NewValidator creates a validator for network.
func NewValidator(network domain.NetworkDescriptor, w wallet.Provider, read ChainIDReader, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		network: network,
		wallet:  w,
		read:    read,
		logger:  logger.With(slog.String("component", "network_validator")),
	}
}

// WalletChainID asks the wallet which chain it is on.
func (v *Validator) WalletChainID(ctx context.Context) (*big.Int, error) {
	if !wallet.Present(v.wallet) {
		return nil, domain.ErrWalletUnavailable
	}
	id, err := v.wallet.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("session: wallet chain id: %w", err)
	}
	return id, nil
}

// IsCorrectNetwork reports whether the wallet is on the expected chain. Any
// error counts as "not correct".
func (v *Validator) IsCorrectNetwork(ctx context.Context) bool {
	id, err := v.WalletChainID(ctx)
	if err != nil {
		return false
	}
	return v.network.Matches(id)
}

// VerifyReadProvider fails with ErrReadProviderMismatch when the read
// provider serves another chain.
func (v *Validator) VerifyReadProvider(ctx context.Context) error {
	return chain.VerifyChainID(ctx, v.read, v.network.ChainID)
}

// CrossCheck queries wallet and read provider concurrently. The returned
// error is only ever about the read provider; the wallet result is reported
// through walletOK and logged.
func (v *Validator) CrossCheck(ctx context.Context) (walletOK bool, err error) {
	g, gctx := errgroup.WithContext(ctx)
	var walletID *big.Int
	var walletErr error

	g.Go(func() error {
		return v.VerifyReadProvider(gctx)
	})
	g.Go(func() error {
		walletID, walletErr = v.WalletChainID(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		v.logger.ErrorContext(ctx, "read provider failed startup check",
			slog.String("expected", v.network.ChainID.String()),
			slog.String("error", err.Error()),
		)
		return false, err
	}

	switch {
	case walletErr != nil:
		v.logger.InfoContext(ctx, "wallet chain not available", slog.String("error", walletErr.Error()))
		return false, nil
	case !v.network.Matches(walletID):
		v.logger.WarnContext(ctx, "wallet is on the wrong network",
			slog.String("wallet_chain", walletID.String()),
			slog.String("expected", v.network.ChainID.String()),
		)
		return false, nil
	}
	return true, nil
}

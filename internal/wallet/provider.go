// Package wallet adapts key-holding software to the EIP-1193 surface the
// session needs: account access, chain queries, network switching,
// transaction submission and change notifications.
package wallet

import (
	"context"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

// EventKind names a wallet notification.
type EventKind string

const (
	EventAccountsChanged EventKind = "accountsChanged"
	EventChainChanged    EventKind = "chainChanged"
)

// Event is a wallet notification. Accounts is set for accountsChanged,
// ChainID for chainChanged.
type Event struct {
	Kind     EventKind
	Accounts []common.Address
	ChainID  *big.Int
}

// Subscription delivers wallet events until Unsubscribe is called. Nothing
// is delivered after Unsubscribe; a remote wallet that goes away also closes
// the Events channel.
type Subscription interface {
	Events() <-chan Event
	Unsubscribe()
}

// Provider is the wallet boundary. Errors are already classified (see
// Classify) so callers can test them with errors.Is.
type Provider interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)
	ChainID(ctx context.Context) (*big.Int, error)
	SwitchChain(ctx context.Context, chainID *big.Int) error
	AddChain(ctx context.Context, network domain.NetworkDescriptor) error
	SendTransaction(ctx context.Context, req domain.TxRequest) (common.Hash, error)
	Subscribe(ctx context.Context) (Subscription, error)
}

// None is the provider used when no wallet is configured. Every call fails
// with ErrWalletUnavailable.
type None struct{}

var _ Provider = None{}

func (None) RequestAccounts(context.Context) ([]common.Address, error) {
	return nil, domain.ErrWalletUnavailable
}

func (None) ChainID(context.Context) (*big.Int, error) { return nil, domain.ErrWalletUnavailable }

func (None) SwitchChain(context.Context, *big.Int) error { return domain.ErrWalletUnavailable }

func (None) AddChain(context.Context, domain.NetworkDescriptor) error {
	return domain.ErrWalletUnavailable
}

func (None) SendTransaction(context.Context, domain.TxRequest) (common.Hash, error) {
	return common.Hash{}, domain.ErrWalletUnavailable
}

func (None) Subscribe(context.Context) (Subscription, error) { return nil, domain.ErrWalletUnavailable }

// Present reports whether p is an actual wallet.
func Present(p Provider) bool {
	if p == nil {
		return false
	}
	switch p.(type) {
	case None, *None:
		return false
	}
	return true
}

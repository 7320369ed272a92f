package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
	ErrRateLimited   = errors.New("rate limited")
	ErrUnauthorized  = errors.New("unauthorized")
	ErrLockHeld      = errors.New("lock already held")

	// Wallet and network.
	ErrWalletUnavailable    = errors.New("wallet unavailable")
	ErrUserRejected         = errors.New("user rejected request")
	ErrNetworkMismatch      = errors.New("network mismatch")
	ErrNetworkSwitchFailed  = errors.New("network switch failed")
	ErrChainNotAdded        = errors.New("chain not added to wallet")
	ErrConnectionFailed     = errors.New("connection failed")
	ErrReadProviderMismatch = errors.New("read provider chain id mismatch")

	// Transactions.
	ErrNotConnected        = errors.New("wallet not connected")
	ErrTransactionReverted = errors.New("transaction reverted")
	ErrOperationInFlight   = errors.New("another operation is in flight for this account")
	ErrInvalidAmount       = errors.New("invalid amount")
	ErrInvalidOutcome      = errors.New("invalid outcome")
	ErrInvalidInput        = errors.New("invalid input")

	// Transport and reads.
	ErrRPC       = errors.New("rpc error")
	ErrDataFetch = errors.New("data fetch error")
)

// TxError describes a failed mutating operation. Reason is the most
// human-readable cause available (revert reason, wallet message, or the
// operation's fallback text).
type TxError struct {
	Op     string
	Hash   string
	Reason string
	Err    error
}

func (e *TxError) Error() string {
	if e.Hash != "" {
		return fmt.Sprintf("%s (tx %s): %s: %v", e.Op, e.Hash, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Reason, e.Err)
}

func (e *TxError) Unwrap() error { return e.Err }

// UserMessage returns the text shown to the user for this failure.
func (e *TxError) UserMessage() string {
	if e.Reason != "" {
		return e.Reason
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "transaction failed"
}

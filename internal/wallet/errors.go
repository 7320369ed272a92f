package wallet

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/rpc"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

// EIP-1193 provider error codes.
const (
	CodeUserRejected      = 4001
	CodeUnauthorized      = 4100
	CodeUnsupportedMethod = 4200
	CodeDisconnected      = 4900
	CodeChainDisconnected = 4901
	CodeUnrecognizedChain = 4902
)

// Error is a wallet failure with its EIP-1193 code. Kind is the domain
// sentinel it maps to.
type Error struct {
	Code    int
	Message string
	Kind    error
}

func (e *Error) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("wallet: %s (code %d)", e.Message, e.Code)
	}
	return "wallet: " + e.Message
}

func (e *Error) Unwrap() error { return e.Kind }

// Classify maps a raw wallet error onto the domain taxonomy: 4001 becomes
// ErrUserRejected, 4902 ErrChainNotAdded, anything else ErrRPC. Errors that
// already carry a domain sentinel, and context errors, pass through.
func Classify(err error) error {
	if err == nil {
		return nil
	}
	for _, known := range []error{
		domain.ErrUserRejected, domain.ErrChainNotAdded, domain.ErrRPC,
		domain.ErrWalletUnavailable, context.Canceled, context.DeadlineExceeded,
	} {
		if errors.Is(err, known) {
			return err
		}
	}

	var rpcErr rpc.Error
	if errors.As(err, &rpcErr) {
		code := rpcErr.ErrorCode()
		return &Error{Code: code, Message: rpcErr.Error(), Kind: kindFor(code, rpcErr.Error())}
	}
	return &Error{Message: err.Error(), Kind: domain.ErrRPC}
}

func kindFor(code int, msg string) error {
	switch code {
	case CodeUserRejected:
		return domain.ErrUserRejected
	case CodeUnrecognizedChain:
		return domain.ErrChainNotAdded
	}
	// Some wallets wrap 4902 inside an internal error.
	if strings.Contains(strings.ToLower(msg), "unrecognized chain") {
		return domain.ErrChainNotAdded
	}
	return domain.ErrRPC
}

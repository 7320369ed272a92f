package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/rpc"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

// DefaultPollInterval is how often WaitMined asks for the receipt.
const DefaultPollInterval = 2 * time.Second

// maxReceiptErrors bounds consecutive non-NotFound receipt errors.
const maxReceiptErrors = 5

// WaitMined polls for the receipt of hash until it is mined or ctx ends. A
// receipt with status 0 is returned together with ErrTransactionReverted.
func WaitMined(ctx context.Context, b ReceiptReader, hash common.Hash, poll time.Duration) (*types.Receipt, error) {
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	ticker := time.NewTicker(poll)
	defer ticker.Stop()

	failures := 0
	for {
		receipt, err := b.TransactionReceipt(ctx, hash)
		switch {
		case err == nil && receipt != nil:
			if receipt.Status == types.ReceiptStatusFailed {
				return receipt, fmt.Errorf("chain: tx %s: %w", hash.Hex(), domain.ErrTransactionReverted)
			}
			return receipt, nil
		case err == nil, errors.Is(err, ethereum.NotFound):
			failures = 0
		default:
			failures++
			if failures >= maxReceiptErrors {
				return nil, fmt.Errorf("chain: receipt %s: %w: %w", hash.Hex(), domain.ErrRPC, err)
			}
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("chain: wait %s: %w", hash.Hex(), ctx.Err())
		case <-ticker.C:
		}
	}
}

// Replayer re-executes a request as a call at a given block.
type Replayer interface {
	Replay(ctx context.Context, req domain.TxRequest, block *big.Int) error
}

// RevertReason replays a reverted submission against the state of the block
// before the one that mined it and extracts the revert string. It returns ""
// when none can be recovered.
func RevertReason(ctx context.Context, r Replayer, sub Submission, receipt *types.Receipt) string {
	err := r.Replay(ctx, sub.Request, replayBlock(receipt))
	if err == nil {
		return ""
	}
	return ReasonFromError(err)
}

// replayBlock is the parent of the receipt's block, or nil (latest) when the
// receipt carries no usable block number.
func replayBlock(receipt *types.Receipt) *big.Int {
	if receipt == nil || receipt.BlockNumber == nil || receipt.BlockNumber.Sign() <= 0 {
		return nil
	}
	return new(big.Int).Sub(receipt.BlockNumber, big.NewInt(1))
}

// ReasonFromError pulls a revert reason out of a node or wallet error. ABI
// encoded Error(string) data wins over the message text.
func ReasonFromError(err error) string {
	if err == nil {
		return ""
	}
	var dataErr rpc.DataError
	if errors.As(err, &dataErr) {
		if s, ok := dataErr.ErrorData().(string); ok {
			if raw, decErr := hexutil.Decode(s); decErr == nil {
				if reason, unpackErr := abi.UnpackRevert(raw); unpackErr == nil {
					return reason
				}
			}
		}
	}
	msg := err.Error()
	if i := strings.Index(msg, "execution reverted: "); i >= 0 {
		return strings.TrimSpace(msg[i+len("execution reverted: "):])
	}
	return ""
}

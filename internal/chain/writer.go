package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

// Sender signs and broadcasts a transaction, typically a wallet provider.
type Sender interface {
	SendTransaction(ctx context.Context, req domain.TxRequest) (common.Hash, error)
}

// Submission is a broadcast transaction together with the request that
// produced it.
type Submission struct {
	Hash    common.Hash
	Request domain.TxRequest
}

// Writer is the write proxy: it packs calldata and hands it to the signer.
type Writer struct {
	sender  Sender
	from    common.Address
	address common.Address
}

// NewWriter binds a write proxy for account from against the contract.
func NewWriter(sender Sender, from, address common.Address) *Writer {
	return &Writer{sender: sender, from: from, address: address}
}

// From returns the signing account.
func (w *Writer) From() common.Address { return w.from }

func (w *Writer) send(ctx context.Context, value *big.Int, method string, args ...any) (Submission, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return Submission{}, fmt.Errorf("chain: pack %s: %w", method, err)
	}
	req := domain.TxRequest{From: w.from, To: w.address, Data: data, Value: value}
	hash, err := w.sender.SendTransaction(ctx, req)
	if err != nil {
		return Submission{}, fmt.Errorf("chain: send %s: %w", method, err)
	}
	return Submission{Hash: hash, Request: req}, nil
}

func u256(v uint64) *big.Int { return new(big.Int).SetUint64(v) }

// Deposit sends value wei of FLOW to deposit().
func (w *Writer) Deposit(ctx context.Context, value *big.Int) (Submission, error) {
	return w.send(ctx, value, "deposit")
}

// Withdraw burns amount PREDICT in exchange for FLOW.
func (w *Writer) Withdraw(ctx context.Context, amount *big.Int) (Submission, error) {
	return w.send(ctx, nil, "withdraw", amount)
}

// Bet stakes amount on outcome of market id.
func (w *Writer) Bet(ctx context.Context, id uint64, outcome domain.Outcome, amount *big.Int) (Submission, error) {
	return w.send(ctx, nil, "bet", u256(id), uint8(outcome), amount)
}

// DailyClaim claims the daily reward.
func (w *Writer) DailyClaim(ctx context.Context) (Submission, error) {
	return w.send(ctx, nil, "dailyClaim")
}

// Claim collects winnings from a resolved market.
func (w *Writer) Claim(ctx context.Context, id uint64) (Submission, error) {
	return w.send(ctx, nil, "claim", u256(id))
}

// CreateMarket opens a new market. resolveTime is unix seconds.
func (w *Writer) CreateMarket(ctx context.Context, question string, resolveTime int64, oracle common.Address, isBinary bool) (Submission, error) {
	return w.send(ctx, nil, "createMarket", question, big.NewInt(resolveTime), oracle, isBinary)
}

// ResolveMarket settles market id with the winning outcome.
func (w *Writer) ResolveMarket(ctx context.Context, id uint64, winning domain.Outcome) (Submission, error) {
	return w.send(ctx, nil, "resolveMarket", u256(id), uint8(winning))
}

// CreateQuiz publishes a quiz. Only the answer hash goes on chain.
func (w *Writer) CreateQuiz(ctx context.Context, question string, answerHash common.Hash, reward *big.Int, deadline int64) (Submission, error) {
	return w.send(ctx, nil, "createQuiz", question, [32]byte(answerHash), reward, big.NewInt(deadline))
}

// AnswerQuiz submits a plaintext answer.
func (w *Writer) AnswerQuiz(ctx context.Context, id uint64, answer string) (Submission, error) {
	return w.send(ctx, nil, "answerQuiz", u256(id), answer)
}

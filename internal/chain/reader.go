package chain

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

// Caller is what the read proxy needs from a node.
type Caller interface {
	ethereum.ContractCaller
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
}

// Reader is a read-only proxy over the deployed contract. Every call goes
// through the read provider, never the wallet.
type Reader struct {
	caller  Caller
	address common.Address
}

// NewReader binds a read proxy to the contract at address.
func NewReader(caller Caller, address common.Address) *Reader {
	return &Reader{caller: caller, address: address}
}

// Address returns the bound contract address.
func (r *Reader) Address() common.Address { return r.address }

func (r *Reader) call(ctx context.Context, method string, args ...any) ([]byte, error) {
	data, err := contractABI.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("chain: pack %s: %w", method, err)
	}
	out, err := r.caller.CallContract(ctx, ethereum.CallMsg{To: &r.address, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: call %s: %w: %w", method, domain.ErrRPC, err)
	}
	return out, nil
}

func (r *Reader) callOne(ctx context.Context, method string, args ...any) (any, error) {
	raw, err := r.call(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	vals, err := contractABI.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("chain: unpack %s: %w: %w", method, domain.ErrDataFetch, err)
	}
	if len(vals) != 1 {
		return nil, fmt.Errorf("chain: unpack %s: %w: want 1 value, got %d", method, domain.ErrDataFetch, len(vals))
	}
	return vals[0], nil
}

func (r *Reader) callBig(ctx context.Context, method string, args ...any) (*big.Int, error) {
	v, err := r.callOne(ctx, method, args...)
	if err != nil {
		return nil, err
	}
	n, ok := v.(*big.Int)
	if !ok {
		return nil, fmt.Errorf("chain: %s: %w: unexpected type %T", method, domain.ErrDataFetch, v)
	}
	return n, nil
}

// NativeBalance returns the account's FLOW balance in wei.
func (r *Reader) NativeBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	bal, err := r.caller.BalanceAt(ctx, account, nil)
	if err != nil {
		return nil, fmt.Errorf("chain: native balance: %w: %w", domain.ErrRPC, err)
	}
	return bal, nil
}

// TokenBalance returns the account's PREDICT balance in base units.
func (r *Reader) TokenBalance(ctx context.Context, account common.Address) (*big.Int, error) {
	return r.callBig(ctx, "balanceOf", account)
}

// TokenMeta is the ERC-20 metadata of the contract.
type TokenMeta struct {
	Name        string   `json:"name"`
	Symbol      string   `json:"symbol"`
	Decimals    uint8    `json:"decimals"`
	TotalSupply *big.Int `json:"total_supply"`
}

// Token reads the ERC-20 metadata.
func (r *Reader) Token(ctx context.Context) (TokenMeta, error) {
	var meta TokenMeta
	name, err := r.callOne(ctx, "name")
	if err != nil {
		return meta, err
	}
	symbol, err := r.callOne(ctx, "symbol")
	if err != nil {
		return meta, err
	}
	decimals, err := r.callOne(ctx, "decimals")
	if err != nil {
		return meta, err
	}
	supply, err := r.callBig(ctx, "totalSupply")
	if err != nil {
		return meta, err
	}
	meta.Name, _ = name.(string)
	meta.Symbol, _ = symbol.(string)
	meta.Decimals, _ = decimals.(uint8)
	meta.TotalSupply = supply
	return meta, nil
}

// MarketCount returns marketCounter(), the number of markets ever created.
func (r *Reader) MarketCount(ctx context.Context) (uint64, error) {
	n, err := r.callBig(ctx, "marketCounter")
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

type marketTuple struct {
	Question       string
	ResolveTime    *big.Int
	Oracle         common.Address
	IsResolved     bool
	WinningOutcome uint8
	TotalPool      *big.Int
	IsBinary       bool
	CreatedAt      *big.Int
	Creator        common.Address
}

// Market reads getMarket(id). Pools are left nil; callers fetch them with
// MarketPool.
func (r *Reader) Market(ctx context.Context, id uint64) (domain.MarketView, error) {
	raw, err := r.call(ctx, "getMarket", new(big.Int).SetUint64(id))
	if err != nil {
		return domain.MarketView{}, err
	}
	var t marketTuple
	if err := contractABI.UnpackIntoInterface(&t, "getMarket", raw); err != nil {
		return domain.MarketView{}, fmt.Errorf("chain: unpack getMarket: %w: %w", domain.ErrDataFetch, err)
	}
	return domain.MarketView{
		ID:             id,
		Question:       t.Question,
		ResolveTime:    BlockTime(t.ResolveTime),
		Oracle:         t.Oracle,
		IsResolved:     t.IsResolved,
		WinningOutcome: domain.Outcome(t.WinningOutcome),
		TotalPool:      t.TotalPool,
		IsBinary:       t.IsBinary,
		Creator:        t.Creator,
		CreatedAt:      BlockTime(t.CreatedAt),
	}, nil
}

// MarketPool returns the stake placed on one outcome of a market.
func (r *Reader) MarketPool(ctx context.Context, id uint64, outcome domain.Outcome) (*big.Int, error) {
	return r.callBig(ctx, "getMarketPool", new(big.Int).SetUint64(id), uint8(outcome))
}

// UserBet returns the user's stake on one outcome.
func (r *Reader) UserBet(ctx context.Context, id uint64, user common.Address, outcome domain.Outcome) (*big.Int, error) {
	return r.callBig(ctx, "getUserBet", new(big.Int).SetUint64(id), user, uint8(outcome))
}

// QuotePayout asks the contract what stake on outcome would return.
func (r *Reader) QuotePayout(ctx context.Context, id uint64, outcome domain.Outcome, stake *big.Int) (*big.Int, error) {
	return r.callBig(ctx, "quotePayout", new(big.Int).SetUint64(id), uint8(outcome), stake)
}

// CanClaim reports whether the daily claim is available for user.
func (r *Reader) CanClaim(ctx context.Context, user common.Address) (bool, error) {
	v, err := r.callOne(ctx, "canClaim", user)
	if err != nil {
		return false, err
	}
	ok, isBool := v.(bool)
	if !isBool {
		return false, fmt.Errorf("chain: canClaim: %w: unexpected type %T", domain.ErrDataFetch, v)
	}
	return ok, nil
}

type userStatsTuple struct {
	LastClaimTime *big.Int
	Streak        *big.Int
	TotalClaims   *big.Int
	TotalEarnings *big.Int
}

// UserStats reads the daily-claim counters for user.
func (r *Reader) UserStats(ctx context.Context, user common.Address) (domain.UserStatsView, error) {
	raw, err := r.call(ctx, "userStats", user)
	if err != nil {
		return domain.UserStatsView{}, err
	}
	var t userStatsTuple
	if err := contractABI.UnpackIntoInterface(&t, "userStats", raw); err != nil {
		return domain.UserStatsView{}, fmt.Errorf("chain: unpack userStats: %w: %w", domain.ErrDataFetch, err)
	}
	return domain.UserStatsView{
		LastClaimTime: BlockTime(t.LastClaimTime),
		Streak:        t.Streak.Uint64(),
		TotalClaims:   t.TotalClaims.Uint64(),
		TotalEarnings: t.TotalEarnings,
	}, nil
}

// QuizCount returns quizCounter().
func (r *Reader) QuizCount(ctx context.Context) (uint64, error) {
	n, err := r.callBig(ctx, "quizCounter")
	if err != nil {
		return 0, err
	}
	return n.Uint64(), nil
}

type quizTuple struct {
	Question   string
	AnswerHash [32]byte
	Reward     *big.Int
	Deadline   *big.Int
	Active     bool
}

// Quiz reads quizzes(id). An empty question means the slot was never used.
func (r *Reader) Quiz(ctx context.Context, id uint64) (domain.Quiz, error) {
	raw, err := r.call(ctx, "quizzes", new(big.Int).SetUint64(id))
	if err != nil {
		return domain.Quiz{}, err
	}
	var t quizTuple
	if err := contractABI.UnpackIntoInterface(&t, "quizzes", raw); err != nil {
		return domain.Quiz{}, fmt.Errorf("chain: unpack quizzes: %w: %w", domain.ErrDataFetch, err)
	}
	return domain.Quiz{
		ID:         id,
		Question:   t.Question,
		AnswerHash: common.Hash(t.AnswerHash),
		Reward:     t.Reward,
		Deadline:   BlockTime(t.Deadline),
		Active:     t.Active,
	}, nil
}

// Owner returns the contract owner.
func (r *Reader) Owner(ctx context.Context) (common.Address, error) {
	v, err := r.callOne(ctx, "owner")
	if err != nil {
		return common.Address{}, err
	}
	addr, ok := v.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("chain: owner: %w: unexpected type %T", domain.ErrDataFetch, v)
	}
	return addr, nil
}

// Params reads the owner and the economic constants.
func (r *Reader) Params(ctx context.Context) (domain.ContractParams, error) {
	var p domain.ContractParams
	var err error
	if p.Owner, err = r.Owner(ctx); err != nil {
		return p, err
	}
	if p.DepositRate, err = r.callBig(ctx, "depositRate"); err != nil {
		return p, err
	}
	if p.WithdrawFee, err = r.callBig(ctx, "withdrawFee"); err != nil {
		return p, err
	}
	if p.DailyReward, err = r.callBig(ctx, "dailyReward"); err != nil {
		return p, err
	}
	return p, nil
}

// Replay re-executes req as a call at block and returns the node error, if
// any. Used to recover the revert reason of a mined failure.
func (r *Reader) Replay(ctx context.Context, req domain.TxRequest, block *big.Int) error {
	to := req.To
	_, err := r.caller.CallContract(ctx, ethereum.CallMsg{
		From:  req.From,
		To:    &to,
		Data:  req.Data,
		Value: req.Value,
		Gas:   req.Gas,
	}, block)
	return err
}

package chain

import (
	"context"
	"errors"
	"math/big"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

var testContract = common.HexToAddress("0x2D8C5F975394AC57Db7810bb09f58e39099c74a5")

// fakeCaller answers contract calls by method name with pre-packed outputs.
type fakeCaller struct {
	outputs map[string][]any
	errs    map[string]error
	native  *big.Int
	lastMsg ethereum.CallMsg
}

func (f *fakeCaller) CallContract(_ context.Context, msg ethereum.CallMsg, _ *big.Int) ([]byte, error) {
	f.lastMsg = msg
	method, err := contractABI.MethodById(msg.Data[:4])
	if err != nil {
		return nil, err
	}
	if err := f.errs[method.Name]; err != nil {
		return nil, err
	}
	vals, ok := f.outputs[method.Name]
	if !ok {
		return nil, errors.New("no output for " + method.Name)
	}
	return method.Outputs.Pack(vals...)
}

func (f *fakeCaller) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return f.native, nil
}

func TestReader_Market(t *testing.T) {
	oracle := common.HexToAddress("0x50035499ebF1cc5f49B57b6C2Ed7BdFdb791bB2a")
	fc := &fakeCaller{outputs: map[string][]any{
		"getMarket": {"Will it rain?", big.NewInt(1700000000), oracle, true, uint8(1), big.NewInt(500), true, big.NewInt(1690000000), oracle},
	}}
	r := NewReader(fc, testContract)

	m, err := r.Market(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), m.ID)
	assert.Equal(t, "Will it rain?", m.Question)
	assert.Equal(t, int64(1700000000), m.ResolveTime.Unix())
	assert.True(t, m.IsResolved)
	assert.Equal(t, domain.OutcomeYes, m.WinningOutcome)
	assert.Equal(t, 0, m.TotalPool.Cmp(big.NewInt(500)))
	assert.Equal(t, oracle, m.Creator)
	assert.Nil(t, m.YesPool)
}

func TestReader_ScalarsAndTuples(t *testing.T) {
	user := common.HexToAddress("0x1111111111111111111111111111111111111111")
	hash := common.HexToHash("0xabcd")
	fc := &fakeCaller{
		native: big.NewInt(42),
		outputs: map[string][]any{
			"balanceOf":     {big.NewInt(7)},
			"marketCounter": {big.NewInt(4)},
			"canClaim":      {true},
			"userStats":     {big.NewInt(1690000000), big.NewInt(3), big.NewInt(9), big.NewInt(1000)},
			"quizzes":       {"2+2?", [32]byte(hash), big.NewInt(10), big.NewInt(1700000000), true},
			"getMarketPool": {big.NewInt(250)},
		},
	}
	r := NewReader(fc, testContract)
	ctx := context.Background()

	native, err := r.NativeBalance(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(42), native.Int64())

	tok, err := r.TokenBalance(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, int64(7), tok.Int64())

	n, err := r.MarketCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), n)

	ok, err := r.CanClaim(ctx, user)
	require.NoError(t, err)
	assert.True(t, ok)

	stats, err := r.UserStats(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), stats.Streak)
	assert.Equal(t, uint64(9), stats.TotalClaims)
	assert.Equal(t, int64(1000), stats.TotalEarnings.Int64())

	q, err := r.Quiz(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, "2+2?", q.Question)
	assert.Equal(t, hash, q.AnswerHash)
	assert.True(t, q.Active)

	pool, err := r.MarketPool(ctx, 1, domain.OutcomeYes)
	require.NoError(t, err)
	assert.Equal(t, int64(250), pool.Int64())
}

func TestReader_CallErrorIsRPC(t *testing.T) {
	fc := &fakeCaller{errs: map[string]error{"marketCounter": errors.New("boom")}}
	r := NewReader(fc, testContract)

	_, err := r.MarketCount(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrRPC)
}

type recordingSender struct {
	req domain.TxRequest
	err error
}

func (s *recordingSender) SendTransaction(_ context.Context, req domain.TxRequest) (common.Hash, error) {
	s.req = req
	return common.HexToHash("0x01"), s.err
}

func TestWriter_PacksCalldata(t *testing.T) {
	from := common.HexToAddress("0x2222222222222222222222222222222222222222")
	s := &recordingSender{}
	w := NewWriter(s, from, testContract)

	sub, err := w.Bet(context.Background(), 5, domain.OutcomeNo, big.NewInt(100))
	require.NoError(t, err)
	assert.Equal(t, common.HexToHash("0x01"), sub.Hash)
	assert.Equal(t, from, s.req.From)
	assert.Equal(t, testContract, s.req.To)

	method, err := contractABI.MethodById(s.req.Data[:4])
	require.NoError(t, err)
	assert.Equal(t, "bet", method.Name)
	args, err := method.Inputs.Unpack(s.req.Data[4:])
	require.NoError(t, err)
	assert.Equal(t, int64(5), args[0].(*big.Int).Int64())
	assert.Equal(t, uint8(0), args[1].(uint8))
	assert.Equal(t, int64(100), args[2].(*big.Int).Int64())
}

func TestWriter_DepositCarriesValue(t *testing.T) {
	s := &recordingSender{}
	w := NewWriter(s, common.Address{}, testContract)

	_, err := w.Deposit(context.Background(), big.NewInt(1e18))
	require.NoError(t, err)
	assert.Equal(t, 0, s.req.Value.Cmp(big.NewInt(1e18)))
}

func TestWriter_SendError(t *testing.T) {
	s := &recordingSender{err: domain.ErrUserRejected}
	w := NewWriter(s, common.Address{}, testContract)

	_, err := w.DailyClaim(context.Background())
	assert.ErrorIs(t, err, domain.ErrUserRejected)
}

type fakeReceipts struct {
	calls   atomic.Int32
	readyAt int32
	status  uint64
}

func (f *fakeReceipts) TransactionReceipt(context.Context, common.Hash) (*types.Receipt, error) {
	if f.calls.Add(1) < f.readyAt {
		return nil, ethereum.NotFound
	}
	return &types.Receipt{Status: f.status, BlockNumber: big.NewInt(10)}, nil
}

func TestWaitMined_PollsUntilMined(t *testing.T) {
	fr := &fakeReceipts{readyAt: 3, status: types.ReceiptStatusSuccessful}

	r, err := WaitMined(context.Background(), fr, common.Hash{}, 5*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, int64(10), r.BlockNumber.Int64())
	assert.Equal(t, int32(3), fr.calls.Load())
}

func TestWaitMined_Reverted(t *testing.T) {
	fr := &fakeReceipts{readyAt: 1, status: types.ReceiptStatusFailed}

	r, err := WaitMined(context.Background(), fr, common.Hash{}, 5*time.Millisecond)
	require.ErrorIs(t, err, domain.ErrTransactionReverted)
	assert.NotNil(t, r)
}

func TestWaitMined_ContextCancelled(t *testing.T) {
	fr := &fakeReceipts{readyAt: 1 << 30}
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := WaitMined(ctx, fr, common.Hash{}, 5*time.Millisecond)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestReasonFromError(t *testing.T) {
	assert.Equal(t, "Already claimed today", ReasonFromError(errors.New("execution reverted: Already claimed today")))
	assert.Equal(t, "", ReasonFromError(errors.New("connection refused")))
	assert.Equal(t, "", ReasonFromError(nil))
}

func TestParseMarketCreated(t *testing.T) {
	ev := contractABI.Events["MarketCreated"]
	logs := []*types.Log{
		{Address: common.HexToAddress("0x9999999999999999999999999999999999999999"), Topics: []common.Hash{ev.ID, common.BigToHash(big.NewInt(99))}},
		{Address: testContract, Topics: []common.Hash{ev.ID, common.BigToHash(big.NewInt(7))}},
	}

	id, ok := ParseMarketCreated(logs, testContract)
	assert.True(t, ok)
	assert.Equal(t, uint64(7), id)

	_, ok = ParseMarketCreated(nil, testContract)
	assert.False(t, ok)
}

func TestParseDailyClaimed(t *testing.T) {
	ev := contractABI.Events["DailyClaimed"]
	data, err := ev.Inputs.NonIndexed().Pack(big.NewInt(10), big.NewInt(4))
	require.NoError(t, err)
	logs := []*types.Log{{Address: testContract, Topics: []common.Hash{ev.ID, {}}, Data: data}}

	amount, streak, ok := ParseDailyClaimed(logs, testContract)
	require.True(t, ok)
	assert.Equal(t, int64(10), amount.Int64())
	assert.Equal(t, int64(4), streak.Int64())
}

type blockRecorder struct {
	blocks []*big.Int
	err    error
}

func (b *blockRecorder) Replay(_ context.Context, _ domain.TxRequest, block *big.Int) error {
	b.blocks = append(b.blocks, block)
	return b.err
}

func TestRevertReason_ReplaysParentBlock(t *testing.T) {
	rec := &blockRecorder{err: errors.New("execution reverted: Market closed")}
	sub := Submission{Request: domain.TxRequest{To: testContract}}

	reason := RevertReason(context.Background(), rec, sub, &types.Receipt{BlockNumber: big.NewInt(100)})
	assert.Equal(t, "Market closed", reason)

	RevertReason(context.Background(), rec, sub, &types.Receipt{BlockNumber: big.NewInt(0)})
	RevertReason(context.Background(), rec, sub, &types.Receipt{})
	RevertReason(context.Background(), rec, sub, nil)

	require.Len(t, rec.blocks, 4)
	assert.Equal(t, int64(99), rec.blocks[0].Int64())
	assert.Nil(t, rec.blocks[1])
	assert.Nil(t, rec.blocks[2])
	assert.Nil(t, rec.blocks[3])
}

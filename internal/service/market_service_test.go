package service

import (
	"context"
	"errors"
	"math"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/flowpredict/internal/chain"
	"github.com/alanyoungcy/flowpredict/internal/domain"
)

var (
	owner = common.HexToAddress("0x50035499ebF1cc5f49B57b6C2Ed7BdFdb791bB2a")
	user  = common.HexToAddress("0xa11ce00000000000000000000000000000000001")
)

type fakeReader struct {
	count     uint64
	countErr  error
	failing   map[uint64]bool
	quizzes   map[uint64]domain.Quiz
	quizCount uint64
	quoteErr  error
	lastStake *big.Int
	mu        sync.Mutex
	calls     int
}

func (f *fakeReader) MarketCount(context.Context) (uint64, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.count, f.countErr
}

func (f *fakeReader) Market(_ context.Context, id uint64) (domain.MarketView, error) {
	if f.failing[id] {
		return domain.MarketView{}, domain.ErrRPC
	}
	return domain.MarketView{ID: id, Question: "q"}, nil
}

func (f *fakeReader) MarketPool(_ context.Context, id uint64, o domain.Outcome) (*big.Int, error) {
	return big.NewInt(int64(id*10) + int64(o)), nil
}

func (f *fakeReader) UserBet(context.Context, uint64, common.Address, domain.Outcome) (*big.Int, error) {
	return big.NewInt(2_500_000_000_000_000_000), nil
}

func (f *fakeReader) QuotePayout(_ context.Context, _ uint64, _ domain.Outcome, stake *big.Int) (*big.Int, error) {
	f.lastStake = stake
	if f.quoteErr != nil {
		return nil, f.quoteErr
	}
	return new(big.Int).Mul(stake, big.NewInt(2)), nil
}

func (f *fakeReader) CanClaim(context.Context, common.Address) (bool, error) { return true, nil }

func (f *fakeReader) UserStats(context.Context, common.Address) (domain.UserStatsView, error) {
	return domain.UserStatsView{Streak: 3}, nil
}

func (f *fakeReader) QuizCount(context.Context) (uint64, error) {
	if f.quizCount > 0 {
		return f.quizCount, nil
	}
	return uint64(len(f.quizzes)), nil
}

func (f *fakeReader) Quiz(_ context.Context, id uint64) (domain.Quiz, error) {
	q, ok := f.quizzes[id]
	if !ok {
		return domain.Quiz{}, domain.ErrRPC
	}
	return q, nil
}

func (f *fakeReader) Params(context.Context) (domain.ContractParams, error) {
	return domain.ContractParams{Owner: owner, DepositRate: big.NewInt(100)}, nil
}

func (f *fakeReader) Token(context.Context) (chain.TokenMeta, error) {
	return chain.TokenMeta{Symbol: "PREDICT", Decimals: 18}, nil
}

type memListing struct {
	markets []domain.MarketView
	set     int
}

func (m *memListing) SetListing(_ context.Context, markets []domain.MarketView) error {
	m.markets = markets
	m.set++
	return nil
}

func (m *memListing) GetListing(context.Context) ([]domain.MarketView, error) {
	if m.markets == nil {
		return nil, domain.ErrNotFound
	}
	return m.markets, nil
}

func (m *memListing) Invalidate(context.Context) error {
	m.markets = nil
	return nil
}

type countingLimiter struct {
	waits int
	err   error
}

func (l *countingLimiter) Allow(context.Context, string, int, time.Duration) (bool, error) {
	return true, nil
}

func (l *countingLimiter) Wait(context.Context, string) error {
	l.waits++
	return l.err
}

func TestListMarkets_SkipsFailedIndex(t *testing.T) {
	r := &fakeReader{count: 3, failing: map[uint64]bool{1: true}}
	svc := NewMarketService(r, nil)

	markets := svc.ListMarkets(context.Background())
	require.Len(t, markets, 2)
	assert.Equal(t, uint64(0), markets[0].ID)
	assert.Equal(t, uint64(2), markets[1].ID)
	assert.Equal(t, int64(21), markets[1].YesPool.Int64())
	assert.Equal(t, int64(20), markets[1].NoPool.Int64())
}

func TestListMarkets_CountFailureIsEmpty(t *testing.T) {
	svc := NewMarketService(&fakeReader{countErr: domain.ErrRPC}, nil)

	markets := svc.ListMarkets(context.Background())
	assert.NotNil(t, markets)
	assert.Empty(t, markets)
}

func TestListMarkets_UsesCacheAndLimiter(t *testing.T) {
	r := &fakeReader{count: 2}
	cache := &memListing{}
	lim := &countingLimiter{}
	svc := NewMarketService(r, nil, WithListingCache(cache), WithRateLimiter(lim))

	first := svc.ListMarkets(context.Background())
	second := svc.ListMarkets(context.Background())

	assert.Equal(t, first, second)
	assert.Equal(t, 1, r.calls)
	assert.Equal(t, 1, cache.set)
	assert.Equal(t, 2, lim.waits)

	svc.InvalidateListing(context.Background())
	svc.ListMarkets(context.Background())
	assert.Equal(t, 2, r.calls)
}

func TestListMarkets_LimiterFailureStops(t *testing.T) {
	lim := &countingLimiter{err: context.Canceled}
	svc := NewMarketService(&fakeReader{count: 5}, nil, WithRateLimiter(lim))

	assert.Empty(t, svc.ListMarkets(context.Background()))
	assert.Equal(t, 1, lim.waits)
}

func TestListings_HugeCountReadsNewestWindow(t *testing.T) {
	r := &fakeReader{
		count:     math.MaxUint64,
		quizCount: math.MaxUint64,
		quizzes: map[uint64]domain.Quiz{
			math.MaxUint64 - 1: {ID: math.MaxUint64 - 1, Question: "last"},
		},
	}
	svc := NewMarketService(r, nil, WithMaxListing(3))

	markets := svc.ListMarkets(context.Background())
	require.Len(t, markets, 3)
	assert.Equal(t, uint64(math.MaxUint64-3), markets[0].ID)
	assert.Equal(t, uint64(math.MaxUint64-1), markets[2].ID)

	quizzes := svc.ListQuizzes(context.Background())
	require.Len(t, quizzes, 1)
	assert.Equal(t, "last", quizzes[0].Question)
}

func TestListings_DefaultCap(t *testing.T) {
	lim := &countingLimiter{}
	svc := NewMarketService(&fakeReader{count: DefaultMaxListing + 5}, nil, WithRateLimiter(lim))

	markets := svc.ListMarkets(context.Background())
	assert.Len(t, markets, DefaultMaxListing)
	assert.Equal(t, uint64(5), markets[0].ID)
	assert.Equal(t, DefaultMaxListing, lim.waits)
}

func TestQuotePayout(t *testing.T) {
	r := &fakeReader{}
	svc := NewMarketService(r, nil)

	got, err := svc.QuotePayout(context.Background(), 1, domain.OutcomeYes, "1.25")
	require.NoError(t, err)
	assert.Equal(t, "2.5", got)
	assert.Equal(t, "1250000000000000000", r.lastStake.String())

	r.quoteErr = errors.New("rpc down")
	got, err = svc.QuotePayout(context.Background(), 1, domain.OutcomeYes, "1")
	require.NoError(t, err)
	assert.Equal(t, "0", got)

	_, err = svc.QuotePayout(context.Background(), 1, domain.OutcomeYes, "abc")
	assert.ErrorIs(t, err, domain.ErrInvalidAmount)
	_, err = svc.QuotePayout(context.Background(), 1, domain.Outcome(5), "1")
	assert.ErrorIs(t, err, domain.ErrInvalidOutcome)
}

func TestUserBet(t *testing.T) {
	svc := NewMarketService(&fakeReader{}, nil)
	got, err := svc.UserBet(context.Background(), 1, user, domain.OutcomeNo)
	require.NoError(t, err)
	assert.Equal(t, "2.5", got)
}

func TestQuizzes(t *testing.T) {
	r := &fakeReader{quizzes: map[uint64]domain.Quiz{
		0: {ID: 0, Question: "first"},
		1: {ID: 1},
		2: {ID: 2, Question: "third"},
	}}
	svc := NewMarketService(r, nil)

	_, err := svc.Quiz(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	q, err := svc.Quiz(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, "third", q.Question)

	list := svc.ListQuizzes(context.Background())
	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].Question)
	assert.Equal(t, "third", list[1].Question)
}

func TestOwnerAndContract(t *testing.T) {
	svc := NewMarketService(&fakeReader{}, nil)

	ok, err := svc.IsOwner(context.Background(), owner)
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = svc.IsOwner(context.Background(), user)
	require.NoError(t, err)
	assert.False(t, ok)

	info, err := svc.Contract(context.Background(), common.HexToAddress("0x01"))
	require.NoError(t, err)
	assert.Equal(t, "PREDICT", info.Token.Symbol)
	assert.Equal(t, owner, info.Params.Owner)
}

func TestUserReads(t *testing.T) {
	svc := NewMarketService(&fakeReader{}, nil)

	st, err := svc.UserStats(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), st.Streak)

	can, err := svc.CanClaim(context.Background(), user)
	require.NoError(t, err)
	assert.True(t, can)
}

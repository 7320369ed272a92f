package balance

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

var account = common.HexToAddress("0xa11ce00000000000000000000000000000000001")

type fakeFetcher struct {
	calls    atomic.Int32
	native   atomic.Int64
	tokenErr atomic.Bool
}

func (f *fakeFetcher) NativeBalance(context.Context, common.Address) (*big.Int, error) {
	f.calls.Add(1)
	return big.NewInt(f.native.Load()), nil
}

func (f *fakeFetcher) TokenBalance(context.Context, common.Address) (*big.Int, error) {
	if f.tokenErr.Load() {
		return nil, errors.New("rpc down")
	}
	return big.NewInt(2_500_000_000_000_000_000), nil
}

type memMirror struct {
	mu    sync.Mutex
	snaps map[string]domain.BalanceSnapshot
}

func (m *memMirror) SetSnapshot(_ context.Context, s domain.BalanceSnapshot) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snaps[s.Account.Hex()] = s
	return nil
}

func (m *memMirror) GetSnapshot(_ context.Context, a string) (domain.BalanceSnapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.snaps[a]
	if !ok {
		return s, domain.ErrNotFound
	}
	return s, nil
}

func (m *memMirror) Invalidate(_ context.Context, a string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.snaps, a)
	return nil
}

const window = 50 * time.Millisecond

func newBound(t *testing.T) (*Cache, *fakeFetcher) {
	t.Helper()
	f := &fakeFetcher{}
	f.native.Store(1_000_000_000_000_000_000)
	c := New(f, window, nil)
	t.Cleanup(c.Close)
	c.Bind(context.Background(), account)
	require.Equal(t, int32(1), f.calls.Load(), "bind primes once")
	return c, f
}

func TestBind_PrimesSnapshot(t *testing.T) {
	c, _ := newBound(t)

	snap, ok := c.Snapshot()
	require.True(t, ok)
	assert.Equal(t, account, snap.Account)
	assert.Equal(t, "1", snap.NativeDisplay)
	assert.Equal(t, "2.5", snap.TokenDisplay)
}

func TestRefresh_TwoCallsWithinWindowFetchOnce(t *testing.T) {
	c, f := newBound(t)

	c.Refresh()
	time.Sleep(window / 5)
	c.Refresh()

	assert.Equal(t, int32(1), f.calls.Load(), "nothing fetched before the window ends")
	require.Eventually(t, func() bool { return f.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(2 * window)
	assert.Equal(t, int32(2), f.calls.Load())
}

func TestRefresh_CallsFurtherApartFetchTwice(t *testing.T) {
	c, f := newBound(t)

	c.Refresh()
	time.Sleep(3 * window)
	c.Refresh()
	time.Sleep(3 * window)

	assert.Equal(t, int32(3), f.calls.Load())
}

func TestRefresh_TrailingFetchSeesLatestState(t *testing.T) {
	c, f := newBound(t)

	c.Refresh()
	f.native.Store(7)

	require.Eventually(t, func() bool {
		snap, _ := c.Snapshot()
		return snap.Native.Int64() == 7
	}, time.Second, 5*time.Millisecond)
}

func TestRefresh_FailureKeepsPreviousSnapshot(t *testing.T) {
	c, f := newBound(t)
	before, _ := c.Snapshot()

	f.tokenErr.Store(true)
	f.native.Store(99)
	c.Refresh()
	require.Eventually(t, func() bool { return f.calls.Load() == 2 }, time.Second, 5*time.Millisecond)
	time.Sleep(window / 5)

	after, ok := c.Snapshot()
	require.True(t, ok)
	assert.Equal(t, before.Native, after.Native)
	assert.Equal(t, before.RefreshedAt, after.RefreshedAt)
}

func TestReset_CancelsPendingFetch(t *testing.T) {
	c, f := newBound(t)

	c.Refresh()
	c.Reset()
	time.Sleep(3 * window)

	assert.Equal(t, int32(1), f.calls.Load())
	_, ok := c.Snapshot()
	assert.False(t, ok)
	_, bound := c.Account()
	assert.False(t, bound)
}

func TestRefresh_UnboundIsNoop(t *testing.T) {
	f := &fakeFetcher{}
	c := New(f, window, nil)
	defer c.Close()

	c.Refresh()
	time.Sleep(2 * window)
	assert.Equal(t, int32(0), f.calls.Load())
}

func TestMirror(t *testing.T) {
	m := &memMirror{snaps: map[string]domain.BalanceSnapshot{}}
	f := &fakeFetcher{}
	c := New(f, window, nil, WithMirror(m))
	defer c.Close()

	c.Bind(context.Background(), account)
	_, err := m.GetSnapshot(context.Background(), account.Hex())
	require.NoError(t, err)

	c.Reset()
	_, err = m.GetSnapshot(context.Background(), account.Hex())
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

package pipeline

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

func TestCronNext(t *testing.T) {
	base := time.Date(2026, 5, 4, 10, 17, 30, 0, time.UTC) // Monday

	tests := []struct {
		expr string
		want time.Time
	}{
		{"0 3 * * *", time.Date(2026, 5, 5, 3, 0, 0, 0, time.UTC)},
		{"*/15 * * * *", time.Date(2026, 5, 4, 10, 30, 0, 0, time.UTC)},
		{"0 9-17 * * 1-5", time.Date(2026, 5, 4, 11, 0, 0, 0, time.UTC)},
		{"30 4 1 * *", time.Date(2026, 6, 1, 4, 30, 0, 0, time.UTC)},
		{"0,45 10 * * *", time.Date(2026, 5, 4, 10, 45, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.expr, func(t *testing.T) {
			s, err := parseCron(tt.expr)
			require.NoError(t, err)
			got, err := s.next(base)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCronInvalid(t *testing.T) {
	for _, expr := range []string{"", "* * * *", "60 * * * *", "*/0 * * * *", "a * * * *", "5-1 * * * *"} {
		assert.Error(t, ValidateCron(expr), expr)
	}
	assert.NoError(t, ValidateCron("0 3 * * *"))
}

type stubLister struct {
	mu    sync.Mutex
	calls int
}

func (s *stubLister) ListMarkets(context.Context) []domain.MarketView {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return []domain.MarketView{{ID: uint64(s.calls)}}
}

type stubBoard struct{ limit int }

func (s *stubBoard) TopLeaderboard(_ context.Context, limit int) []domain.LeaderboardEntry {
	s.limit = limit
	return []domain.LeaderboardEntry{{WalletAddress: "0xa"}}
}

type emitted struct {
	mu       sync.Mutex
	channels []string
	payloads [][]byte
}

func (e *emitted) emit(_ context.Context, channel string, payload []byte) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.channels = append(e.channels, channel)
	e.payloads = append(e.payloads, payload)
}

func (e *emitted) count() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.channels)
}

func TestView_RunsImmediatelyThenTicks(t *testing.T) {
	lister := &stubLister{}
	out := &emitted{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- MarketsView(lister, 10*time.Millisecond).Run(ctx, out.emit, nil) }()

	require.Eventually(t, func() bool { return out.count() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)

	out.mu.Lock()
	defer out.mu.Unlock()
	assert.Equal(t, domain.ChannelMarkets, out.channels[0])
	var markets []domain.MarketView
	require.NoError(t, json.Unmarshal(out.payloads[0], &markets))
	assert.Equal(t, uint64(1), markets[0].ID)
}

func TestLeaderboardView_Defaults(t *testing.T) {
	board := &stubBoard{}
	v := LeaderboardView(board, 0, 0)
	assert.Equal(t, LeaderboardInterval, v.Interval)
	assert.Equal(t, domain.ChannelLeaderboard, v.Channel)

	v.Load(context.Background())
	assert.Equal(t, LeaderboardViewLimit, board.limit)
}

type stubArchiver struct{ before time.Time }

func (s *stubArchiver) ArchiveActivity(_ context.Context, before time.Time) (int64, error) {
	s.before = before
	return 4, nil
}

func TestArchiver_Cutoff(t *testing.T) {
	blob := &stubArchiver{}
	a := NewArchiver(blob, 7, nil)
	a.now = func() time.Time { return time.Date(2026, 5, 10, 15, 4, 0, 0, time.UTC) }

	n, err := a.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)
	assert.Equal(t, time.Date(2026, 5, 3, 0, 0, 0, 0, time.UTC), blob.before)
}

func TestArchiver_RunCronRejectsBadExpr(t *testing.T) {
	a := NewArchiver(&stubArchiver{}, 1, nil)
	assert.Error(t, a.RunCron(context.Background(), "bad"))
}

func TestOrchestrator_StopsCleanly(t *testing.T) {
	out := &emitted{}
	o := NewOrchestrator([]View{MarketsView(&stubLister{}, time.Hour)}, out.emit, nil, "", nil)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- o.Run(ctx) }()

	require.Eventually(t, func() bool { return out.count() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	assert.NoError(t, <-done)
}

type signalArchiver struct{ ran chan struct{} }

func (s *signalArchiver) ArchiveActivity(context.Context, time.Time) (int64, error) {
	s.ran <- struct{}{}
	return 0, nil
}

func TestArchiver_TriggerRunsImmediately(t *testing.T) {
	blob := &signalArchiver{ran: make(chan struct{}, 1)}
	trigger := make(chan struct{}, 1)
	a := NewArchiver(blob, 1, nil).WithTrigger(trigger)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.RunCron(ctx, "0 3 1 1 *") }()

	trigger <- struct{}{}
	select {
	case <-blob.ran:
	case <-time.After(time.Second):
		t.Fatal("trigger did not start an archive run")
	}
	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

package mirror

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

type fakeActivity struct {
	inserted []domain.ActivityRecord
	listOpts domain.ListOpts
	err      error
	bettors  int
}

func (f *fakeActivity) Insert(_ context.Context, rec domain.ActivityRecord) error {
	if f.err != nil {
		return f.err
	}
	f.inserted = append(f.inserted, rec)
	return nil
}

func (f *fakeActivity) ListByWallet(_ context.Context, _ string, opts domain.ListOpts) ([]domain.ActivityRecord, error) {
	f.listOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.inserted, nil
}

func (f *fakeActivity) ListBefore(context.Context, time.Time) ([]domain.ActivityRecord, error) {
	return nil, f.err
}

func (f *fakeActivity) CountBettors(context.Context, uint64) (int, error) {
	return f.bettors, f.err
}

type fakeLeaderboard struct {
	limit  int
	deltas []domain.LeaderboardDelta
	err    error
}

func (f *fakeLeaderboard) Adjust(_ context.Context, d domain.LeaderboardDelta) error {
	f.deltas = append(f.deltas, d)
	return f.err
}

func (f *fakeLeaderboard) Top(_ context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	f.limit = limit
	if f.err != nil {
		return nil, f.err
	}
	return []domain.LeaderboardEntry{{WalletAddress: "0xa", TotalWinnings: 5}}, nil
}

func (f *fakeLeaderboard) Get(_ context.Context, wallet string) (domain.LeaderboardEntry, error) {
	if f.err != nil {
		return domain.LeaderboardEntry{}, f.err
	}
	if wallet != "0xa" {
		return domain.LeaderboardEntry{}, domain.ErrNotFound
	}
	return domain.LeaderboardEntry{WalletAddress: "0xa", TotalWinnings: 5, Rank: 1}, nil
}

type fakeStats struct {
	err error
}

func (f fakeStats) Upsert(context.Context, domain.MarketStats) error { return f.err }

func (f fakeStats) Get(_ context.Context, id uint64) (domain.MarketStats, error) {
	if f.err != nil {
		return domain.MarketStats{}, f.err
	}
	return domain.MarketStats{MarketID: id}, nil
}

func TestRecordActivity_FillsIDAndTime(t *testing.T) {
	act := &fakeActivity{}
	c := New(act, nil, nil, nil)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	c.now = func() time.Time { return fixed }

	c.RecordActivity(context.Background(), domain.ActivityRecord{Kind: domain.ActivityDeposit})

	require.Len(t, act.inserted, 1)
	assert.NotEmpty(t, act.inserted[0].ID)
	assert.Equal(t, fixed, act.inserted[0].CreatedAt)
}

func TestRecordActivity_SwallowsError(t *testing.T) {
	c := New(&fakeActivity{err: errors.New("db down")}, nil, nil, nil)
	assert.NotPanics(t, func() {
		c.RecordActivity(context.Background(), domain.ActivityRecord{})
	})
}

func TestTopLeaderboard(t *testing.T) {
	lb := &fakeLeaderboard{}
	c := New(nil, lb, nil, nil)

	rows := c.TopLeaderboard(context.Background(), 0)
	assert.Equal(t, DefaultLeaderboardLimit, lb.limit)
	assert.Len(t, rows, 1)

	c.TopLeaderboard(context.Background(), 50)
	assert.Equal(t, 50, lb.limit)

	lb.err = errors.New("boom")
	rows = c.TopLeaderboard(context.Background(), 10)
	assert.NotNil(t, rows)
	assert.Empty(t, rows)
}

func TestRecentActivity(t *testing.T) {
	act := &fakeActivity{}
	c := New(act, nil, nil, nil)

	c.RecentActivity(context.Background(), "0xabc", 0)
	assert.Equal(t, DefaultActivityLimit, act.listOpts.Limit)

	act.err = errors.New("boom")
	assert.Empty(t, c.RecentActivity(context.Background(), "0xabc", 5))
	assert.Empty(t, c.RecentActivity(context.Background(), "", 5))
}

func TestNilStores(t *testing.T) {
	c := New(nil, nil, nil, nil)
	ctx := context.Background()

	assert.Empty(t, c.TopLeaderboard(ctx, 10))
	assert.Equal(t, 0, c.CountBettors(ctx, 1))
	_, err := c.MarketStats(ctx, 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = c.LeaderboardEntry(ctx, "0xa")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestLeaderboardEntry(t *testing.T) {
	lb := &fakeLeaderboard{}
	c := New(nil, lb, nil, nil)
	ctx := context.Background()

	e, err := c.LeaderboardEntry(ctx, "0xa")
	require.NoError(t, err)
	assert.Equal(t, 1, e.Rank)

	_, err = c.LeaderboardEntry(ctx, "0xb")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = c.LeaderboardEntry(ctx, " ")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	lb.err = errors.New("boom")
	_, err = c.LeaderboardEntry(ctx, "0xa")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestCountBettorsAndStats(t *testing.T) {
	c := New(&fakeActivity{bettors: 7}, nil, fakeStats{}, nil)
	assert.Equal(t, 7, c.CountBettors(context.Background(), 3))

	st, err := c.MarketStats(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), st.MarketID)

	c = New(&fakeActivity{err: errors.New("x")}, nil, fakeStats{err: errors.New("x")}, nil)
	assert.Equal(t, 0, c.CountBettors(context.Background(), 3))
	_, err = c.MarketStats(context.Background(), 3)
	assert.Error(t, err)
}

package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

// MarketStatsStore implements domain.MarketStatsStore using PostgreSQL.
type MarketStatsStore struct {
	pool *pgxpool.Pool
}

var _ domain.MarketStatsStore = (*MarketStatsStore)(nil)

// NewMarketStatsStore creates a new MarketStatsStore backed by the given pool.
func NewMarketStatsStore(pool *pgxpool.Pool) *MarketStatsStore {
	return &MarketStatsStore{pool: pool}
}

// Upsert writes the aggregate row for stats.MarketID.
func (s *MarketStatsStore) Upsert(ctx context.Context, stats domain.MarketStats) error {
	const query = `
		INSERT INTO market_stats (
			market_id, total_volume, unique_bettors,
			yes_percentage, no_percentage, last_updated
		) VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (market_id) DO UPDATE SET
			total_volume   = EXCLUDED.total_volume,
			unique_bettors = EXCLUDED.unique_bettors,
			yes_percentage = EXCLUDED.yes_percentage,
			no_percentage  = EXCLUDED.no_percentage,
			last_updated   = EXCLUDED.last_updated`

	_, err := s.pool.Exec(ctx, query,
		int64(stats.MarketID), stats.TotalVolume, stats.UniqueBettors,
		stats.YesPercentage, stats.NoPercentage, stats.LastUpdated,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert market stats %d: %w", stats.MarketID, err)
	}
	return nil
}

// Get returns the aggregate for marketID, or domain.ErrNotFound.
func (s *MarketStatsStore) Get(ctx context.Context, marketID uint64) (domain.MarketStats, error) {
	const query = `
		SELECT market_id, total_volume, unique_bettors,
			yes_percentage, no_percentage, last_updated
		FROM market_stats WHERE market_id = $1`

	var (
		st domain.MarketStats
		id int64
	)
	err := s.pool.QueryRow(ctx, query, int64(marketID)).Scan(
		&id, &st.TotalVolume, &st.UniqueBettors,
		&st.YesPercentage, &st.NoPercentage, &st.LastUpdated,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.MarketStats{}, fmt.Errorf("postgres: market stats %d: %w", marketID, domain.ErrNotFound)
		}
		return domain.MarketStats{}, fmt.Errorf("postgres: get market stats %d: %w", marketID, err)
	}
	st.MarketID = uint64(id)
	return st, nil
}

package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

// ActivityStore implements domain.ActivityStore over the user_activity table.
type ActivityStore struct {
	pool *pgxpool.Pool
}

var _ domain.ActivityStore = (*ActivityStore)(nil)

// NewActivityStore creates a new ActivityStore backed by the given pool.
func NewActivityStore(pool *pgxpool.Pool) *ActivityStore {
	return &ActivityStore{pool: pool}
}

const activitySelectCols = `id::text, wallet_address, activity_type, description,
	amount, market_id, transaction_hash, created_at`

func scanActivityRows(rows pgx.Rows) ([]domain.ActivityRecord, error) {
	var out []domain.ActivityRecord
	for rows.Next() {
		var (
			rec      domain.ActivityRecord
			kind     string
			marketID *int64
			txHash   *string
		)
		if err := rows.Scan(
			&rec.ID, &rec.WalletAddress, &kind, &rec.Description,
			&rec.Amount, &marketID, &txHash, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		rec.Kind = domain.ActivityKind(kind)
		if marketID != nil {
			id := uint64(*marketID)
			rec.MarketID = &id
		}
		if txHash != nil {
			rec.TransactionHash = *txHash
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// Insert appends one activity row. Wallet addresses are stored lowercase so
// lookups do not depend on checksum casing.
func (s *ActivityStore) Insert(ctx context.Context, rec domain.ActivityRecord) error {
	const query = `
		INSERT INTO user_activity (
			id, wallet_address, activity_type, description,
			amount, market_id, transaction_hash, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8)`

	var marketID *int64
	if rec.MarketID != nil {
		id := int64(*rec.MarketID)
		marketID = &id
	}
	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err := s.pool.Exec(ctx, query,
		rec.ID, strings.ToLower(rec.WalletAddress), string(rec.Kind), rec.Description,
		rec.Amount, marketID, rec.TransactionHash, createdAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert activity %s: %w", rec.ID, err)
	}
	return nil
}

// ListByWallet returns the wallet's activity, newest first.
func (s *ActivityStore) ListByWallet(ctx context.Context, wallet string, opts domain.ListOpts) ([]domain.ActivityRecord, error) {
	query := `SELECT ` + activitySelectCols + ` FROM user_activity WHERE wallet_address = $1`
	args := []any{strings.ToLower(wallet)}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}
	if opts.Until != nil {
		query += fmt.Sprintf(" AND created_at <= $%d", argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list activity for %s: %w", wallet, err)
	}
	defer rows.Close()

	recs, err := scanActivityRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan activity: %w", err)
	}
	return recs, nil
}

// ListBefore returns every row created strictly before the cutoff, oldest
// first. Used by the cold-storage archiver.
func (s *ActivityStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ActivityRecord, error) {
	query := `SELECT ` + activitySelectCols + ` FROM user_activity
		WHERE created_at < $1 ORDER BY created_at ASC`

	rows, err := s.pool.Query(ctx, query, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list activity before %s: %w", before.Format(time.RFC3339), err)
	}
	defer rows.Close()

	recs, err := scanActivityRows(rows)
	if err != nil {
		return nil, fmt.Errorf("postgres: scan activity: %w", err)
	}
	return recs, nil
}

// CountBettors counts distinct wallets with a bet row for the market.
func (s *ActivityStore) CountBettors(ctx context.Context, marketID uint64) (int, error) {
	const query = `
		SELECT COUNT(DISTINCT wallet_address) FROM user_activity
		WHERE activity_type = 'bet' AND market_id = $1`

	var n int
	if err := s.pool.QueryRow(ctx, query, int64(marketID)).Scan(&n); err != nil {
		return 0, fmt.Errorf("postgres: count bettors for market %d: %w", marketID, err)
	}
	return n, nil
}

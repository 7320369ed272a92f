package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/flowpredict/internal/domain"
)

// LeaderboardStore implements domain.LeaderboardStore using PostgreSQL.
type LeaderboardStore struct {
	pool *pgxpool.Pool
}

var _ domain.LeaderboardStore = (*LeaderboardStore)(nil)

// NewLeaderboardStore creates a new LeaderboardStore backed by the given pool.
func NewLeaderboardStore(pool *pgxpool.Pool) *LeaderboardStore {
	return &LeaderboardStore{pool: pool}
}

const leaderboardSelectCols = `wallet_address, total_winnings, win_streak,
	total_bets, quiz_score, rank, created_at, updated_at`

func scanLeaderboard(row pgx.Row) (domain.LeaderboardEntry, error) {
	var e domain.LeaderboardEntry
	err := row.Scan(
		&e.WalletAddress, &e.TotalWinnings, &e.WinStreak,
		&e.TotalBets, &e.QuizScore, &e.Rank, &e.CreatedAt, &e.UpdatedAt,
	)
	return e, err
}

// Adjust applies increments to a row, creating it when missing. A nil
// WinStreak keeps the stored streak.
func (s *LeaderboardStore) Adjust(ctx context.Context, d domain.LeaderboardDelta) error {
	const query = `
		INSERT INTO leaderboard (
			wallet_address, total_winnings, win_streak, total_bets, quiz_score, updated_at
		) VALUES ($1, $2, COALESCE($3, 0), $4, $5, NOW())
		ON CONFLICT (wallet_address) DO UPDATE SET
			total_winnings = leaderboard.total_winnings + EXCLUDED.total_winnings,
			win_streak     = COALESCE($3, leaderboard.win_streak),
			total_bets     = leaderboard.total_bets + EXCLUDED.total_bets,
			quiz_score     = leaderboard.quiz_score + EXCLUDED.quiz_score,
			updated_at     = NOW()`

	_, err := s.pool.Exec(ctx, query,
		strings.ToLower(d.WalletAddress), d.Winnings, d.WinStreak, d.Bets, d.QuizScore,
	)
	if err != nil {
		return fmt.Errorf("postgres: adjust leaderboard %s: %w", d.WalletAddress, err)
	}
	return nil
}

// Top returns up to limit rows ordered by total winnings.
func (s *LeaderboardStore) Top(ctx context.Context, limit int) ([]domain.LeaderboardEntry, error) {
	query := `SELECT ` + leaderboardSelectCols + ` FROM leaderboard
		ORDER BY total_winnings DESC LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: top leaderboard: %w", err)
	}
	defer rows.Close()

	var out []domain.LeaderboardEntry
	for rows.Next() {
		e, err := scanLeaderboard(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan leaderboard: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: top leaderboard rows: %w", err)
	}
	return out, nil
}

// Get returns the row for wallet, or domain.ErrNotFound.
func (s *LeaderboardStore) Get(ctx context.Context, wallet string) (domain.LeaderboardEntry, error) {
	query := `SELECT ` + leaderboardSelectCols + ` FROM leaderboard WHERE wallet_address = $1`

	e, err := scanLeaderboard(s.pool.QueryRow(ctx, query, strings.ToLower(wallet)))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.LeaderboardEntry{}, fmt.Errorf("postgres: leaderboard %s: %w", wallet, domain.ErrNotFound)
		}
		return domain.LeaderboardEntry{}, fmt.Errorf("postgres: get leaderboard %s: %w", wallet, err)
	}
	return e, nil
}

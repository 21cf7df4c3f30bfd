package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stevenchzhen/prythia/internal/domain"
)

// SnapshotStore implements domain.SnapshotStore using PostgreSQL. Snapshot
// rows are append-only in the hot store; DeleteBefore exists solely for the
// archiver after rows have been copied to cold storage.
type SnapshotStore struct {
	pool *pgxpool.Pool
}

// NewSnapshotStore creates a new SnapshotStore backed by the given connection pool.
func NewSnapshotStore(pool *pgxpool.Pool) *SnapshotStore {
	return &SnapshotStore{pool: pool}
}

const snapshotCols = `id, event_id, source, probability, volume, liquidity, traders, quality, captured_at`

func scanSnapshot(row pgx.Row) (domain.ProbSnapshot, error) {
	var snap domain.ProbSnapshot
	err := row.Scan(
		&snap.ID, &snap.EventID, &snap.Source,
		&snap.Probability, &snap.Volume, &snap.Liquidity, &snap.Traders,
		&snap.Quality, &snap.CapturedAt,
	)
	return snap, err
}

// Append inserts one probability observation.
func (s *SnapshotStore) Append(ctx context.Context, snap domain.ProbSnapshot) error {
	const query = `
		INSERT INTO prob_snapshots (
			event_id, source, probability, volume, liquidity, traders, quality, captured_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, query,
		snap.EventID, snap.Source, snap.Probability,
		snap.Volume, snap.Liquidity, snap.Traders, snap.Quality, snap.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append snapshot %s/%s: %w", snap.EventID, snap.Source, err)
	}
	return nil
}

// LatestBefore returns the most recent snapshot for (event, source) captured
// at or before the given time.
func (s *SnapshotStore) LatestBefore(ctx context.Context, eventID, source string, at time.Time) (domain.ProbSnapshot, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+snapshotCols+` FROM prob_snapshots
		 WHERE event_id = $1 AND source = $2 AND captured_at <= $3
		 ORDER BY captured_at DESC LIMIT 1`,
		eventID, source, at)
	snap, err := scanSnapshot(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.ProbSnapshot{}, domain.ErrNotFound
		}
		return domain.ProbSnapshot{}, fmt.Errorf("postgres: latest snapshot before %s/%s: %w", eventID, source, err)
	}
	return snap, nil
}

func (s *SnapshotStore) list(ctx context.Context, label, query string, args ...any) ([]domain.ProbSnapshot, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", label, err)
	}
	defer rows.Close()

	var snaps []domain.ProbSnapshot
	for rows.Next() {
		snap, err := scanSnapshot(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan %s: %w", label, err)
		}
		snaps = append(snaps, snap)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s rows: %w", label, err)
	}
	return snaps, nil
}

// ListInWindow returns snapshots for (event, source) captured at or after
// since, oldest first.
func (s *SnapshotStore) ListInWindow(ctx context.Context, eventID, source string, since time.Time) ([]domain.ProbSnapshot, error) {
	return s.list(ctx, "list snapshots in window",
		`SELECT `+snapshotCols+` FROM prob_snapshots
		 WHERE event_id = $1 AND source = $2 AND captured_at >= $3
		 ORDER BY captured_at`,
		eventID, source, since)
}

// ListBefore returns up to limit snapshots older than cutoff, oldest first.
func (s *SnapshotStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.ProbSnapshot, error) {
	return s.list(ctx, "list snapshots before cutoff",
		`SELECT `+snapshotCols+` FROM prob_snapshots
		 WHERE captured_at < $1
		 ORDER BY captured_at LIMIT $2`,
		cutoff, limit)
}

// DeleteBefore removes snapshots older than cutoff and returns the count.
func (s *SnapshotStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM prob_snapshots WHERE captured_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete snapshots before cutoff: %w", err)
	}
	return tag.RowsAffected(), nil
}

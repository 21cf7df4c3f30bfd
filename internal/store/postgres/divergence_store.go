package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stevenchzhen/prythia/internal/domain"
)

// DivergenceStore implements domain.DivergenceStore using PostgreSQL.
type DivergenceStore struct {
	pool *pgxpool.Pool
}

// NewDivergenceStore creates a new DivergenceStore backed by the given connection pool.
func NewDivergenceStore(pool *pgxpool.Pool) *DivergenceStore {
	return &DivergenceStore{pool: pool}
}

const divergenceCols = `id, event_id, source_a, source_b, price_a, price_b, spread, higher, captured_at`

// Append inserts one divergence observation.
func (s *DivergenceStore) Append(ctx context.Context, d domain.Divergence) error {
	const query = `
		INSERT INTO divergences (
			event_id, source_a, source_b, price_a, price_b, spread, higher, captured_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := s.pool.Exec(ctx, query,
		d.EventID, d.SourceA, d.SourceB, d.PriceA, d.PriceB, d.Spread, d.Higher, d.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: append divergence %s %s/%s: %w", d.EventID, d.SourceA, d.SourceB, err)
	}
	return nil
}

func (s *DivergenceStore) list(ctx context.Context, label, query string, args ...any) ([]domain.Divergence, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", label, err)
	}
	defer rows.Close()

	var divs []domain.Divergence
	for rows.Next() {
		var d domain.Divergence
		if err := rows.Scan(
			&d.ID, &d.EventID, &d.SourceA, &d.SourceB,
			&d.PriceA, &d.PriceB, &d.Spread, &d.Higher, &d.CapturedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan %s: %w", label, err)
		}
		divs = append(divs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s rows: %w", label, err)
	}
	return divs, nil
}

// ListByEvent returns divergences for one event captured at or after since,
// oldest first.
func (s *DivergenceStore) ListByEvent(ctx context.Context, eventID string, since time.Time) ([]domain.Divergence, error) {
	return s.list(ctx, "list divergences by event",
		`SELECT `+divergenceCols+` FROM divergences
		 WHERE event_id = $1 AND captured_at >= $2
		 ORDER BY captured_at`,
		eventID, since)
}

// ListBefore returns up to limit divergences older than cutoff, oldest first.
func (s *DivergenceStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Divergence, error) {
	return s.list(ctx, "list divergences before cutoff",
		`SELECT `+divergenceCols+` FROM divergences
		 WHERE captured_at < $1
		 ORDER BY captured_at LIMIT $2`,
		cutoff, limit)
}

// DeleteBefore removes divergences older than cutoff and returns the count.
func (s *DivergenceStore) DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM divergences WHERE captured_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete divergences before cutoff: %w", err)
	}
	return tag.RowsAffected(), nil
}

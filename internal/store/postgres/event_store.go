package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stevenchzhen/prythia/internal/domain"
)

// EventStore implements domain.EventStore using PostgreSQL.
type EventStore struct {
	pool *pgxpool.Pool
}

// NewEventStore creates a new EventStore backed by the given connection pool.
func NewEventStore(pool *pgxpool.Pool) *EventStore {
	return &EventStore{pool: pool}
}

const eventCols = `id, title, description, category, parent_id,
	probability, volume_24h, volume_total, liquidity, traders,
	source_count, quality,
	change_24h, change_7d, change_30d, high_30d, low_30d, max_spread,
	resolution, active, COALESCE(embedding::text, ''), created_at, updated_at`

func scanEvent(row pgx.Row) (domain.Event, error) {
	var e domain.Event
	var resolution, embedding string
	err := row.Scan(
		&e.ID, &e.Title, &e.Description, &e.Category, &e.ParentID,
		&e.Probability, &e.Volume24h, &e.VolumeTotal, &e.Liquidity, &e.Traders,
		&e.SourceCount, &e.Quality,
		&e.Change24h, &e.Change7d, &e.Change30d, &e.High30d, &e.Low30d, &e.MaxSpread,
		&resolution, &e.Active, &embedding, &e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return domain.Event{}, err
	}
	e.Resolution = domain.Resolution(resolution)
	if e.Embedding, err = parseVec(embedding); err != nil {
		return domain.Event{}, err
	}
	return e, nil
}

// GetByID retrieves an event by its primary key.
func (s *EventStore) GetByID(ctx context.Context, id string) (domain.Event, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+eventCols+` FROM events WHERE id = $1`, id)
	e, err := scanEvent(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Event{}, domain.ErrNotFound
		}
		return domain.Event{}, fmt.Errorf("postgres: get event %s: %w", id, err)
	}
	return e, nil
}

// ListEligible returns open, active events due for fusion: top-level binary
// events plus children that carry contracts of their own.
func (s *EventStore) ListEligible(ctx context.Context) ([]domain.Event, error) {
	const query = `
		SELECT ` + eventCols + `
		FROM events e
		WHERE e.active
		  AND e.resolution = 'open'
		  AND (
			e.parent_id IS NULL
			OR EXISTS (SELECT 1 FROM contracts c WHERE c.event_id = e.id AND c.active)
		  )
		ORDER BY e.created_at`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("postgres: list eligible events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan eligible event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list eligible events rows: %w", err)
	}
	return events, nil
}

// WriteFused overwrites the fused columns on one event.
func (s *EventStore) WriteFused(ctx context.Context, id string, f domain.FusedFields) error {
	const query = `
		UPDATE events SET
			probability  = $2,
			volume_24h   = $3,
			volume_total = $4,
			liquidity    = $5,
			traders      = $6,
			source_count = $7,
			quality      = $8,
			change_24h   = $9,
			change_7d    = $10,
			change_30d   = $11,
			high_30d     = $12,
			low_30d      = $13,
			max_spread   = $14,
			updated_at   = NOW()
		WHERE id = $1`

	tag, err := s.pool.Exec(ctx, query, id,
		f.Probability, f.Volume24h, f.VolumeTotal, f.Liquidity, f.Traders,
		f.SourceCount, f.Quality,
		f.Change24h, f.Change7d, f.Change30d, f.High30d, f.Low30d, f.MaxSpread,
	)
	if err != nil {
		return fmt.Errorf("postgres: write fused event %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// BatchDeactivate flips the active flag off for the given events.
func (s *EventStore) BatchDeactivate(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.pool.Exec(ctx,
		`UPDATE events SET active = FALSE, updated_at = NOW() WHERE id = ANY($1)`, ids)
	if err != nil {
		return fmt.Errorf("postgres: deactivate %d events: %w", len(ids), err)
	}
	return nil
}

// ListUnembedded returns active open events without an embedding, oldest first.
func (s *EventStore) ListUnembedded(ctx context.Context, limit int) ([]domain.Event, error) {
	const query = `
		SELECT ` + eventCols + `
		FROM events
		WHERE embedding IS NULL AND active AND resolution = 'open'
		ORDER BY created_at
		LIMIT $1`

	rows, err := s.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list unembedded events: %w", err)
	}
	defer rows.Close()

	var events []domain.Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan unembedded event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list unembedded events rows: %w", err)
	}
	return events, nil
}

// WriteEmbedding stores the embedding vector for one event.
func (s *EventStore) WriteEmbedding(ctx context.Context, id string, vec []float32) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE events SET embedding = $2::vector, updated_at = NOW() WHERE id = $1`,
		id, vecLiteral(vec))
	if err != nil {
		return fmt.Errorf("postgres: write event embedding %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// SimilaritySearch returns up to k open events whose embedding's cosine
// similarity to vec is at least floor, best first.
func (s *EventStore) SimilaritySearch(ctx context.Context, vec []float32, floor float64, k int) ([]domain.EventMatch, error) {
	const query = `
		SELECT id, title, 1 - (embedding <=> $1::vector) AS similarity
		FROM events
		WHERE embedding IS NOT NULL
		  AND active
		  AND resolution = 'open'
		  AND 1 - (embedding <=> $1::vector) >= $2
		ORDER BY embedding <=> $1::vector
		LIMIT $3`

	rows, err := s.pool.Query(ctx, query, vecLiteral(vec), floor, k)
	if err != nil {
		return nil, fmt.Errorf("postgres: similarity search: %w", err)
	}
	defer rows.Close()

	var matches []domain.EventMatch
	for rows.Next() {
		var m domain.EventMatch
		if err := rows.Scan(&m.EventID, &m.Title, &m.Similarity); err != nil {
			return nil, fmt.Errorf("postgres: scan similarity match: %w", err)
		}
		matches = append(matches, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: similarity search rows: %w", err)
	}
	return matches, nil
}

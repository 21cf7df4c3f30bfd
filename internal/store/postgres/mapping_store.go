package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stevenchzhen/prythia/internal/domain"
)

// MappingStore implements domain.MappingStore using PostgreSQL.
type MappingStore struct {
	pool *pgxpool.Pool
}

// NewMappingStore creates a new MappingStore backed by the given connection pool.
func NewMappingStore(pool *pgxpool.Pool) *MappingStore {
	return &MappingStore{pool: pool}
}

// Upsert inserts or overwrites the mapping for one (source, source_id) pair.
func (s *MappingStore) Upsert(ctx context.Context, m domain.Mapping) error {
	const query = `
		INSERT INTO mappings (source, source_id, event_id, confidence, agent, mapped_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (source, source_id) DO UPDATE SET
			event_id   = EXCLUDED.event_id,
			confidence = EXCLUDED.confidence,
			agent      = EXCLUDED.agent,
			mapped_at  = EXCLUDED.mapped_at`

	_, err := s.pool.Exec(ctx, query,
		m.Source, m.SourceID, m.EventID, string(m.Confidence), m.Agent, m.MappedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert mapping %s/%s: %w", m.Source, m.SourceID, err)
	}
	return nil
}

const mappingCols = `source, source_id, event_id, confidence, agent, mapped_at`

func scanMapping(row pgx.Row) (domain.Mapping, error) {
	var m domain.Mapping
	var confidence string
	err := row.Scan(&m.Source, &m.SourceID, &m.EventID, &confidence, &m.Agent, &m.MappedAt)
	if err != nil {
		return domain.Mapping{}, err
	}
	m.Confidence = domain.MappingConfidence(confidence)
	return m, nil
}

// Get retrieves the mapping for one (source, source_id) pair.
func (s *MappingStore) Get(ctx context.Context, source, sourceID string) (domain.Mapping, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+mappingCols+` FROM mappings WHERE source = $1 AND source_id = $2`,
		source, sourceID)
	m, err := scanMapping(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Mapping{}, domain.ErrNotFound
		}
		return domain.Mapping{}, fmt.Errorf("postgres: get mapping %s/%s: %w", source, sourceID, err)
	}
	return m, nil
}

// ListByEvent returns all mappings pointing at one event.
func (s *MappingStore) ListByEvent(ctx context.Context, eventID string) ([]domain.Mapping, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+mappingCols+` FROM mappings WHERE event_id = $1 ORDER BY source, source_id`,
		eventID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list mappings by event: %w", err)
	}
	defer rows.Close()

	var mappings []domain.Mapping
	for rows.Next() {
		m, err := scanMapping(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan mapping: %w", err)
		}
		mappings = append(mappings, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list mappings rows: %w", err)
	}
	return mappings, nil
}

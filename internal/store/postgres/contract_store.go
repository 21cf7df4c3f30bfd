package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/stevenchzhen/prythia/internal/domain"
)

// ContractStore implements domain.ContractStore using PostgreSQL.
type ContractStore struct {
	pool *pgxpool.Pool
}

// NewContractStore creates a new ContractStore backed by the given connection pool.
func NewContractStore(pool *pgxpool.Pool) *ContractStore {
	return &ContractStore{pool: pool}
}

const contractCols = `id, source, source_id, title, price,
	volume_24h, volume_total, liquidity, traders, last_trade_at,
	active, event_id, COALESCE(embedding::text, ''), checked_at, created_at, updated_at`

func scanContract(row pgx.Row) (domain.Contract, error) {
	var c domain.Contract
	var embedding string
	err := row.Scan(
		&c.ID, &c.Source, &c.SourceID, &c.Title, &c.Price,
		&c.Volume24h, &c.VolumeTotal, &c.Liquidity, &c.Traders, &c.LastTradeAt,
		&c.Active, &c.EventID, &embedding, &c.CheckedAt, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.Contract{}, err
	}
	if c.Embedding, err = parseVec(embedding); err != nil {
		return domain.Contract{}, err
	}
	return c, nil
}

func (s *ContractStore) list(ctx context.Context, label, query string, args ...any) ([]domain.Contract, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: %s: %w", label, err)
	}
	defer rows.Close()

	var contracts []domain.Contract
	for rows.Next() {
		c, err := scanContract(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan %s: %w", label, err)
		}
		contracts = append(contracts, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: %s rows: %w", label, err)
	}
	return contracts, nil
}

// ListActiveByEvent returns the active contracts linked to one event.
func (s *ContractStore) ListActiveByEvent(ctx context.Context, eventID string) ([]domain.Contract, error) {
	return s.list(ctx, "list contracts by event",
		`SELECT `+contractCols+` FROM contracts WHERE event_id = $1 AND active ORDER BY source, source_id`,
		eventID)
}

// ListUnembedded returns active contracts without an embedding, oldest first.
func (s *ContractStore) ListUnembedded(ctx context.Context, limit int) ([]domain.Contract, error) {
	return s.list(ctx, "list unembedded contracts",
		`SELECT `+contractCols+` FROM contracts
		 WHERE embedding IS NULL AND active
		 ORDER BY created_at LIMIT $1`,
		limit)
}

// ListMatchable returns active, unmapped contracts that have an embedding and
// no checked stamp from the current run.
func (s *ContractStore) ListMatchable(ctx context.Context, limit int) ([]domain.Contract, error) {
	return s.list(ctx, "list matchable contracts",
		`SELECT `+contractCols+` FROM contracts
		 WHERE active AND event_id IS NULL AND embedding IS NOT NULL AND checked_at IS NULL
		 ORDER BY created_at LIMIT $1`,
		limit)
}

// WriteEmbedding stores the embedding vector for one contract.
func (s *ContractStore) WriteEmbedding(ctx context.Context, id string, vec []float32) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE contracts SET embedding = $2::vector, updated_at = NOW() WHERE id = $1`,
		id, vecLiteral(vec))
	if err != nil {
		return fmt.Errorf("postgres: write contract embedding %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// LinkToEvent assigns a contract to a canonical event.
func (s *ContractStore) LinkToEvent(ctx context.Context, contractID, eventID string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE contracts SET event_id = $2, updated_at = NOW() WHERE id = $1`,
		contractID, eventID)
	if err != nil {
		return fmt.Errorf("postgres: link contract %s to event %s: %w", contractID, eventID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// StampChecked marks a contract as considered and rejected in the current run.
func (s *ContractStore) StampChecked(ctx context.Context, contractID string, at time.Time) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE contracts SET checked_at = $2, updated_at = NOW() WHERE id = $1`,
		contractID, at)
	if err != nil {
		return fmt.Errorf("postgres: stamp contract %s: %w", contractID, err)
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ClearCheckedStamps resets the checked marker on all still-unmapped contracts.
func (s *ContractStore) ClearCheckedStamps(ctx context.Context) (int64, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE contracts SET checked_at = NULL WHERE event_id IS NULL AND checked_at IS NOT NULL`)
	if err != nil {
		return 0, fmt.Errorf("postgres: clear checked stamps: %w", err)
	}
	return tag.RowsAffected(), nil
}

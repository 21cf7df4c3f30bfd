package domain

import (
	"context"
	"io"
	"time"
)

// EventStore persists canonical events.
type EventStore interface {
	GetByID(ctx context.Context, id string) (Event, error)

	// ListEligible returns open, active events that should be fused this
	// cycle: top-level binary events plus child/bracket events that carry
	// contracts of their own.
	ListEligible(ctx context.Context) ([]Event, error)

	// WriteFused overwrites the fused columns on one event. Deterministic
	// overwrite keeps re-runs after partial failures safe.
	WriteFused(ctx context.Context, id string, f FusedFields) error

	// BatchDeactivate flips the active flag off for the given events in one
	// statement. Events are never hard-deleted.
	BatchDeactivate(ctx context.Context, ids []string) error

	ListUnembedded(ctx context.Context, limit int) ([]Event, error)
	WriteEmbedding(ctx context.Context, id string, vec []float32) error

	// SimilaritySearch returns up to k events whose embedding's cosine
	// similarity to vec is at least floor, best first.
	SimilaritySearch(ctx context.Context, vec []float32, floor float64, k int) ([]EventMatch, error)
}

// ContractStore persists source contracts. Ingestion adapters own creation
// and refresh; this interface covers only what fusion and matching need.
type ContractStore interface {
	ListActiveByEvent(ctx context.Context, eventID string) ([]Contract, error)

	ListUnembedded(ctx context.Context, limit int) ([]Contract, error)
	WriteEmbedding(ctx context.Context, id string, vec []float32) error

	// ListMatchable returns active, unmapped contracts that already have an
	// embedding and have not been stamped checked in the current run.
	ListMatchable(ctx context.Context, limit int) ([]Contract, error)

	LinkToEvent(ctx context.Context, contractID, eventID string) error
	StampChecked(ctx context.Context, contractID string, at time.Time) error

	// ClearCheckedStamps resets the checked marker on all still-unmapped
	// contracts and returns how many were cleared. Called at the start of
	// each matcher run so new events are reconsidered against the backlog.
	ClearCheckedStamps(ctx context.Context) (int64, error)
}

// SnapshotStore persists append-only probability observations.
type SnapshotStore interface {
	Append(ctx context.Context, s ProbSnapshot) error

	// LatestBefore returns the most recent snapshot for (event, source) at or
	// before the given time, or ErrNotFound when no such row exists.
	LatestBefore(ctx context.Context, eventID, source string, at time.Time) (ProbSnapshot, error)

	// ListInWindow returns all snapshots for (event, source) captured at or
	// after since, oldest first.
	ListInWindow(ctx context.Context, eventID, source string, since time.Time) ([]ProbSnapshot, error)

	// ListBefore and DeleteBefore support cold archival: rows older than the
	// retention cutoff are copied out and then removed from the hot store.
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]ProbSnapshot, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// DivergenceStore persists append-only per-pair disagreement rows.
type DivergenceStore interface {
	Append(ctx context.Context, d Divergence) error
	ListByEvent(ctx context.Context, eventID string, since time.Time) ([]Divergence, error)
	ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]Divergence, error)
	DeleteBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// MappingStore persists the contract-to-event audit trail.
type MappingStore interface {
	Upsert(ctx context.Context, m Mapping) error
	Get(ctx context.Context, source, sourceID string) (Mapping, error)
	ListByEvent(ctx context.Context, eventID string) ([]Mapping, error)
}

// EmbedMode selects the embedding task type: documents are indexed entities,
// queries are lookup probes against them.
type EmbedMode string

const (
	EmbedModeDocument EmbedMode = "document"
	EmbedModeQuery    EmbedMode = "query"
)

// Embedder turns texts into dense vectors. Implementations are batch-limited
// and may return ErrRateLimited, which callers retry with backoff.
type Embedder interface {
	Embed(ctx context.Context, texts []string, mode EmbedMode) ([][]float32, error)
}

// Verifier answers the strict entity-resolution question: do these two titles
// describe the same real-world outcome (not merely the same topic)?
type Verifier interface {
	VerifySameQuestion(ctx context.Context, contractTitle, eventTitle string) (bool, error)
}

// LockManager provides distributed run locks so overlapping scheduler
// invocations never double-run a cycle.
type LockManager interface {
	// Acquire obtains the named lock for at most ttl and returns an unlock
	// function, or ErrLockHeld if another invocation holds it.
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// BlobWriter uploads objects to cold storage.
type BlobWriter interface {
	Put(ctx context.Context, path string, data io.Reader, contentType string) error
}

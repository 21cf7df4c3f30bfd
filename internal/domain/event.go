package domain

import "time"

// Resolution represents the lifecycle state of a canonical event.
type Resolution string

const (
	ResolutionOpen   Resolution = "open"
	ResolutionYes    Resolution = "resolved-yes"
	ResolutionNo     Resolution = "resolved-no"
	ResolutionVoided Resolution = "voided"
)

// Event is a deduplicated, platform-independent real-world question. Contracts
// from multiple marketplaces link to one Event, and the fusion pass writes the
// combined signal back onto it each cycle.
type Event struct {
	ID          string
	Title       string
	Description string
	Category    string
	ParentID    *string // set for bracket/child questions under a parent event

	// Fused signal, written by the fusion pass. Probability is nil until the
	// first successful cycle.
	Probability *float64
	Volume24h   float64
	VolumeTotal float64
	Liquidity   float64
	Traders     int64
	SourceCount int
	Quality     float64

	// Change-over-window fields. A nil delta means insufficient history in
	// that window, never "no movement".
	Change24h *float64
	Change7d  *float64
	Change30d *float64
	High30d   *float64
	Low30d    *float64

	// MaxSpread is the largest cross-source price disagreement observed in
	// the latest cycle, from unweighted original prices.
	MaxSpread float64

	Resolution Resolution
	Active     bool
	Embedding  []float32

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FusedFields is the set of event columns written by one fusion cycle.
type FusedFields struct {
	Probability float64
	Volume24h   float64
	VolumeTotal float64
	Liquidity   float64
	Traders     int64
	SourceCount int
	Quality     float64
	Change24h   *float64
	Change7d    *float64
	Change30d   *float64
	High30d     *float64
	Low30d      *float64
	MaxSpread   float64
}

// EventMatch is one vector-similarity candidate returned by the store.
type EventMatch struct {
	EventID    string
	Title      string
	Similarity float64
}

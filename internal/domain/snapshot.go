package domain

import "time"

// SourceAggregated is the snapshot source label for the fused value. All other
// labels are marketplace identifiers.
const SourceAggregated = "aggregated"

// ProbSnapshot is one append-only probability observation, either the fused
// value (Source == SourceAggregated) or one raw per-source reading. Per-source
// rows always store cumulative total volume so 24h deltas can be derived by
// comparing cycles; rows are never mutated or deleted from the hot store, only
// moved to cold storage by the archiver.
type ProbSnapshot struct {
	ID          int64
	EventID     string
	Source      string
	Probability float64
	Volume      float64
	Liquidity   float64
	Traders     int64
	Quality     *float64 // only set on aggregated rows
	CapturedAt  time.Time
}

// Divergence records the disagreement between two sources covering the same
// event in one cycle. SourceA and SourceB are ordered lexicographically so the
// pair is canonical regardless of ingestion order.
type Divergence struct {
	ID         int64
	EventID    string
	SourceA    string
	SourceB    string
	PriceA     float64
	PriceB     float64
	Spread     float64 // absolute price difference
	Higher     string  // source label with the higher price
	CapturedAt time.Time
}

// NewDivergence builds a canonical divergence row for two source observations.
// Argument order does not matter.
func NewDivergence(eventID, srcX string, priceX float64, srcY string, priceY float64, at time.Time) Divergence {
	if srcY < srcX {
		srcX, srcY = srcY, srcX
		priceX, priceY = priceY, priceX
	}
	spread := priceX - priceY
	if spread < 0 {
		spread = -spread
	}
	higher := srcX
	if priceY > priceX {
		higher = srcY
	}
	return Divergence{
		EventID:    eventID,
		SourceA:    srcX,
		SourceB:    srcY,
		PriceA:     priceX,
		PriceB:     priceY,
		Spread:     spread,
		Higher:     higher,
		CapturedAt: at,
	}
}

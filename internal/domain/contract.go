package domain

import "time"

// Contract is one marketplace's tradable listing for (possibly) a canonical
// event. Ingestion adapters create and refresh contracts; the matcher links
// them to events; fusion reads them and never writes them.
type Contract struct {
	ID       string
	Source   string // marketplace identifier, e.g. "polymarket", "kalshi"
	SourceID string // source-native contract id

	Title string
	Price float64 // implied YES probability 0..1 as reported by the source

	// Volume24h is the source's own reported 24h figure when it publishes
	// one. Sources that only report cumulative volume leave it nil and the
	// fusion pass derives a delta from historical snapshots.
	Volume24h   *float64
	VolumeTotal float64
	Liquidity   float64
	Traders     int64
	LastTradeAt *time.Time

	Active bool

	// EventID is set by the matcher once the contract is resolved to a
	// canonical event. Unmapped contracts are the matcher's backlog.
	EventID   *string
	Embedding []float32

	// CheckedAt is the per-run epoch marker: the matcher stamps contracts it
	// considered and rejected so one run's batch loop never reprocesses them.
	// Cleared for all still-unmapped contracts at the start of each run.
	CheckedAt *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

// Mapped reports whether the contract is linked to a canonical event.
func (c *Contract) Mapped() bool {
	return c.EventID != nil && *c.EventID != ""
}

// Package fusion reconciles the per-source signals of one canonical event into
// a single probability, volume, liquidity, and quality reading, and runs that
// reconciliation across the whole fleet of eligible events.
package fusion

import (
	"math"
	"time"

	"github.com/stevenchzhen/prythia/internal/config"
	"github.com/stevenchzhen/prythia/internal/domain"
)

// Signal is one source's contribution to a fusion cycle after unit
// normalization and staleness weighting. RawTotal keeps the normalized but
// unweighted cumulative volume: snapshots persist it so 24h deltas derived in
// later cycles compare like with like regardless of how stale the source was
// at either point.
type Signal struct {
	Source      string
	Price       float64  // original price, never weighted
	Volume24h   *float64 // normalized + weighted, when the source reports one
	RawTotal    float64  // normalized cumulative volume, unweighted
	VolumeTotal float64  // normalized + weighted cumulative volume
	Liquidity   float64  // weighted
	Traders     int64
	LastTradeAt *time.Time
}

// Normalize converts a contract's raw figures into common notional units. For
// sources that report contract counts rather than notional volume, each count
// is valued at `count × price` with the price clamped to a floor, so a
// near-zero price cannot erase the source. Liquidity is assumed already
// notionally comparable and passes through.
func Normalize(c domain.Contract, cfg config.FusionConfig) Signal {
	s := Signal{
		Source:      c.Source,
		Price:       c.Price,
		RawTotal:    c.VolumeTotal,
		VolumeTotal: c.VolumeTotal,
		Liquidity:   c.Liquidity,
		Traders:     c.Traders,
		LastTradeAt: c.LastTradeAt,
	}
	if c.Volume24h != nil {
		v := *c.Volume24h
		s.Volume24h = &v
	}

	if !contractUnit(c.Source, cfg) {
		return s
	}

	price := c.Price
	if price < cfg.PriceFloor {
		price = cfg.PriceFloor
	}
	s.RawTotal = c.VolumeTotal * price
	s.VolumeTotal = s.RawTotal
	if s.Volume24h != nil {
		v := *s.Volume24h * price
		s.Volume24h = &v
	}
	return s
}

// ApplyStaleness down-weights a signal's volume and liquidity (never its
// price) by how long ago the source last traded: full weight for fresh
// sources, cfg.StaleWeight between the fresh and old cutoffs, and
// cfg.VeryStaleWeight beyond. Signals with no recorded trade are treated as
// very stale.
func ApplyStaleness(s Signal, now time.Time, cfg config.FusionConfig) Signal {
	w := stalenessWeight(s.LastTradeAt, now, cfg)
	s.VolumeTotal *= w
	s.Liquidity *= w
	if s.Volume24h != nil {
		v := *s.Volume24h * w
		s.Volume24h = &v
	}
	return s
}

func stalenessWeight(lastTrade *time.Time, now time.Time, cfg config.FusionConfig) float64 {
	if lastTrade == nil {
		return cfg.VeryStaleWeight
	}
	age := now.Sub(*lastTrade)
	switch {
	case age <= time.Duration(cfg.StalenessFreshHours)*time.Hour:
		return 1.0
	case age <= time.Duration(cfg.StalenessOldHours)*time.Hour:
		return cfg.StaleWeight
	default:
		return cfg.VeryStaleWeight
	}
}

func contractUnit(source string, cfg config.FusionConfig) bool {
	for _, s := range cfg.ContractUnitSources {
		if s == source {
			return true
		}
	}
	return false
}

func deepSource(source string, cfg config.FusionConfig) bool {
	for _, s := range cfg.DeepSources {
		if s == source {
			return true
		}
	}
	return false
}

// usablePrice reports whether a source price can participate in fusion at all.
// Out-of-range prices are tolerated (the fused result is clamped); NaN and
// infinities are malformed and exclude the source for the cycle.
func usablePrice(p float64) bool {
	return !math.IsNaN(p) && !math.IsInf(p, 0)
}

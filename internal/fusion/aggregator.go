package fusion

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/stevenchzhen/prythia/internal/config"
	"github.com/stevenchzhen/prythia/internal/domain"
)

// Aggregator fuses all active contracts of one event into a single canonical
// signal and records the cycle's snapshots and divergences.
type Aggregator struct {
	events    domain.EventStore
	contracts domain.ContractStore
	snaps     domain.SnapshotStore
	divs      domain.DivergenceStore
	cfg       config.FusionConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewAggregator creates an Aggregator.
func NewAggregator(
	events domain.EventStore,
	contracts domain.ContractStore,
	snaps domain.SnapshotStore,
	divs domain.DivergenceStore,
	cfg config.FusionConfig,
	logger *slog.Logger,
) *Aggregator {
	return &Aggregator{
		events:    events,
		contracts: contracts,
		snaps:     snaps,
		divs:      divs,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "aggregator")),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Result is the outcome of fusing one event. Updated is false when the cycle
// wrote nothing: either no active contracts remain (NoSources) or every
// contract was malformed this cycle.
type Result struct {
	EventID   string
	NoSources bool
	Updated   bool
	Fused     domain.FusedFields
}

// Aggregate runs one fusion cycle for the given event. With zero active
// contracts it returns a NoSources result without touching the store; the
// fleet driver treats that as a deactivation signal. All reads happen before
// any write, so a write failure leaves the event unchanged for the next cycle.
func (a *Aggregator) Aggregate(ctx context.Context, eventID string) (Result, error) {
	now := a.now()

	contracts, err := a.contracts.ListActiveByEvent(ctx, eventID)
	if err != nil {
		return Result{}, fmt.Errorf("fusion: list contracts for %s: %w", eventID, err)
	}
	if len(contracts) == 0 {
		return Result{EventID: eventID, NoSources: true}, nil
	}

	signals := a.buildSignals(contracts, now)
	if len(signals) == 0 {
		// Every contract had a malformed price this cycle. Not a zombie: the
		// sources still exist, their data is just unusable right now.
		a.logger.WarnContext(ctx, "all sources malformed, skipping cycle",
			slog.String("event_id", eventID),
			slog.Int("contracts", len(contracts)),
		)
		return Result{EventID: eventID, NoSources: false}, nil
	}

	prob := fuseProbability(signals)
	vol24 := a.fuse24hVolume(ctx, eventID, signals, now)
	spread := priceSpread(signals)

	var volTotal, liquidity float64
	var traders int64
	hasDeep := false
	for _, s := range signals {
		volTotal += s.VolumeTotal
		liquidity += s.Liquidity
		traders += s.Traders
		if deepSource(s.Source, a.cfg) {
			hasDeep = true
		}
	}

	quality := Quality(QualityInputs{
		VolumeTotal:   volTotal,
		SourceCount:   len(signals),
		FreshestAge:   freshestAgeMinutes(signals, now),
		Spread:        spread,
		HasDeepSource: hasDeep,
	}, a.cfg)

	fused := domain.FusedFields{
		Probability: prob,
		Volume24h:   vol24,
		VolumeTotal: volTotal,
		Liquidity:   liquidity,
		Traders:     traders,
		SourceCount: len(signals),
		Quality:     quality,
		MaxSpread:   spread,
	}
	fused.Change24h = a.delta(ctx, eventID, prob, now.Add(-24*time.Hour))
	fused.Change7d = a.delta(ctx, eventID, prob, now.Add(-7*24*time.Hour))
	fused.Change30d = a.delta(ctx, eventID, prob, now.Add(-30*24*time.Hour))
	fused.High30d, fused.Low30d = a.range30d(ctx, eventID, prob, now)

	if err := a.events.WriteFused(ctx, eventID, fused); err != nil {
		return Result{}, fmt.Errorf("fusion: write fused fields for %s: %w", eventID, err)
	}

	if err := a.appendSnapshots(ctx, eventID, signals, fused, now); err != nil {
		return Result{}, err
	}
	if err := a.appendDivergences(ctx, eventID, signals, now); err != nil {
		return Result{}, err
	}

	return Result{EventID: eventID, Updated: true, Fused: fused}, nil
}

// buildSignals dedupes contracts per source (keeping the freshest listing),
// drops malformed prices, and runs normalization plus staleness weighting.
func (a *Aggregator) buildSignals(contracts []domain.Contract, now time.Time) []Signal {
	bySource := make(map[string]domain.Contract, len(contracts))
	for _, c := range contracts {
		if !usablePrice(c.Price) {
			continue
		}
		cur, ok := bySource[c.Source]
		if !ok || fresher(c, cur) {
			bySource[c.Source] = c
		}
	}

	signals := make([]Signal, 0, len(bySource))
	for _, c := range bySource {
		s := ApplyStaleness(Normalize(c, a.cfg), now, a.cfg)
		signals = append(signals, s)
	}
	sort.Slice(signals, func(i, j int) bool { return signals[i].Source < signals[j].Source })
	return signals
}

// fresher reports whether contract x should replace y as a source's live
// listing: the more recent last trade wins, nil loses, ties fall to volume.
func fresher(x, y domain.Contract) bool {
	switch {
	case x.LastTradeAt == nil:
		return false
	case y.LastTradeAt == nil:
		return true
	case !x.LastTradeAt.Equal(*y.LastTradeAt):
		return x.LastTradeAt.After(*y.LastTradeAt)
	default:
		return x.VolumeTotal > y.VolumeTotal
	}
}

// fuseProbability computes the volume-weighted average price. Each source is
// weighted by its notional volume, falling back to liquidity, then to 1 when
// it carries neither, so a dry source still nudges the fused value. When every
// source is dry this degenerates to the equal-weight mean. The result is
// clamped to [0,1].
func fuseProbability(signals []Signal) float64 {
	if len(signals) == 0 {
		return 0
	}
	var sum, total float64
	for _, s := range signals {
		w := s.VolumeTotal
		if w <= 0 {
			w = s.Liquidity
		}
		if w <= 0 {
			w = 1
		}
		sum += s.Price * w
		total += w
	}
	return clamp01(sum / total)
}

// fuse24hVolume sums each source's 24h contribution: the source's own reported
// figure when it publishes one, otherwise a delta against that source's most
// recent snapshot from at least 24h ago. Sources with neither contribute zero.
func (a *Aggregator) fuse24hVolume(ctx context.Context, eventID string, signals []Signal, now time.Time) float64 {
	var sum float64
	for _, s := range signals {
		if s.Volume24h != nil {
			sum += *s.Volume24h
			continue
		}
		if s.RawTotal <= 0 {
			continue
		}
		past, err := a.snaps.LatestBefore(ctx, eventID, s.Source, now.Add(-24*time.Hour))
		if err != nil {
			if !errors.Is(err, domain.ErrNotFound) {
				a.logger.WarnContext(ctx, "24h delta lookup failed",
					slog.String("event_id", eventID),
					slog.String("source", s.Source),
					slog.String("error", err.Error()),
				)
			}
			continue
		}
		delta := s.RawTotal - past.Volume
		if delta > 0 {
			sum += delta * weightRatio(s)
		}
	}
	return sum
}

// weightRatio recovers the staleness weight applied to a signal so derived
// deltas carry the same down-weighting as directly reported figures.
func weightRatio(s Signal) float64 {
	if s.RawTotal <= 0 {
		return 1
	}
	return s.VolumeTotal / s.RawTotal
}

// priceSpread measures disagreement over unweighted original prices.
func priceSpread(signals []Signal) float64 {
	if len(signals) < 2 {
		return 0
	}
	min, max := signals[0].Price, signals[0].Price
	for _, s := range signals[1:] {
		if s.Price < min {
			min = s.Price
		}
		if s.Price > max {
			max = s.Price
		}
	}
	return max - min
}

func freshestAgeMinutes(signals []Signal, now time.Time) float64 {
	freshest := math.Inf(1)
	for _, s := range signals {
		if s.LastTradeAt == nil {
			continue
		}
		age := now.Sub(*s.LastTradeAt).Minutes()
		if age < freshest {
			freshest = age
		}
	}
	if math.IsInf(freshest, 1) {
		// No source has ever traded; treat as beyond the freshness horizon.
		return 24 * 60
	}
	if freshest < 0 {
		return 0
	}
	return freshest
}

// delta looks up the latest aggregated snapshot at or before the window start
// and returns the probability movement since, or nil when there is no history
// in the window. Nil means "insufficient history", never "no movement".
func (a *Aggregator) delta(ctx context.Context, eventID string, prob float64, at time.Time) *float64 {
	past, err := a.snaps.LatestBefore(ctx, eventID, domain.SourceAggregated, at)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			a.logger.WarnContext(ctx, "delta lookup failed",
				slog.String("event_id", eventID),
				slog.String("error", err.Error()),
			)
		}
		return nil
	}
	d := prob - past.Probability
	return &d
}

// range30d returns the trailing 30-day high and low of the aggregated
// probability, always including the value being written this cycle.
func (a *Aggregator) range30d(ctx context.Context, eventID string, prob float64, now time.Time) (*float64, *float64) {
	high, low := prob, prob
	rows, err := a.snaps.ListInWindow(ctx, eventID, domain.SourceAggregated, now.Add(-30*24*time.Hour))
	if err != nil {
		a.logger.WarnContext(ctx, "30d range lookup failed",
			slog.String("event_id", eventID),
			slog.String("error", err.Error()),
		)
	}
	for _, r := range rows {
		if r.Probability > high {
			high = r.Probability
		}
		if r.Probability < low {
			low = r.Probability
		}
	}
	return &high, &low
}

// appendSnapshots writes one aggregated row plus one row per source. Per-source
// rows store the normalized cumulative total (never the 24h figure) so future
// delta derivation compares consistent units.
func (a *Aggregator) appendSnapshots(ctx context.Context, eventID string, signals []Signal, fused domain.FusedFields, now time.Time) error {
	q := fused.Quality
	agg := domain.ProbSnapshot{
		EventID:     eventID,
		Source:      domain.SourceAggregated,
		Probability: fused.Probability,
		Volume:      fused.VolumeTotal,
		Liquidity:   fused.Liquidity,
		Traders:     fused.Traders,
		Quality:     &q,
		CapturedAt:  now,
	}
	if err := a.snaps.Append(ctx, agg); err != nil {
		return fmt.Errorf("fusion: append aggregated snapshot for %s: %w", eventID, err)
	}

	for _, s := range signals {
		row := domain.ProbSnapshot{
			EventID:     eventID,
			Source:      s.Source,
			Probability: clamp01(s.Price),
			Volume:      s.RawTotal,
			Liquidity:   s.Liquidity,
			Traders:     s.Traders,
			CapturedAt:  now,
		}
		if err := a.snaps.Append(ctx, row); err != nil {
			return fmt.Errorf("fusion: append %s snapshot for %s: %w", s.Source, eventID, err)
		}
	}
	return nil
}

// appendDivergences records one row per unordered source pair when two or more
// sources cover the event.
func (a *Aggregator) appendDivergences(ctx context.Context, eventID string, signals []Signal, now time.Time) error {
	if len(signals) < 2 {
		return nil
	}
	for i := 0; i < len(signals); i++ {
		for j := i + 1; j < len(signals); j++ {
			d := domain.NewDivergence(eventID,
				signals[i].Source, signals[i].Price,
				signals[j].Source, signals[j].Price,
				now,
			)
			if err := a.divs.Append(ctx, d); err != nil {
				return fmt.Errorf("fusion: append divergence %s/%s for %s: %w",
					d.SourceA, d.SourceB, eventID, err)
			}
		}
	}
	return nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

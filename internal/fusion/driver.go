package fusion

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/stevenchzhen/prythia/internal/domain"
)

// Driver runs the fusion pass across every eligible event and retires events
// that have lost all their contracts.
type Driver struct {
	aggregator  *Aggregator
	events      domain.EventStore
	concurrency int
	logger      *slog.Logger
}

// NewDriver creates a Driver with the given fan-out width.
func NewDriver(aggregator *Aggregator, events domain.EventStore, concurrency int, logger *slog.Logger) *Driver {
	if concurrency < 1 {
		concurrency = 1
	}
	return &Driver{
		aggregator:  aggregator,
		events:      events,
		concurrency: concurrency,
		logger:      logger.With(slog.String("component", "fusion_driver")),
	}
}

// FleetStats summarizes one full fusion pass.
type FleetStats struct {
	Processed   int
	Updated     int
	Deactivated int
	Errors      int
}

// AggregateAll fuses every eligible event with bounded concurrency. Events are
// independent, so ordering carries no correctness requirement. Per-event
// failures are logged and counted, never fatal to the pass. Zombie events
// (zero active contracts) are collected during the pass and deactivated in one
// batch strictly afterwards, so an event that loses its last contract and
// gains a new one within the same cycle is never retired mid-pass.
func (d *Driver) AggregateAll(ctx context.Context) (FleetStats, error) {
	eligible, err := d.events.ListEligible(ctx)
	if err != nil {
		return FleetStats{}, fmt.Errorf("fusion: list eligible events: %w", err)
	}

	var (
		mu      sync.Mutex
		stats   FleetStats
		zombies []string
	)
	stats.Processed = len(eligible)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(d.concurrency)

	for _, ev := range eligible {
		g.Go(func() error {
			res, err := d.aggregator.Aggregate(gctx, ev.ID)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				stats.Errors++
				d.logger.ErrorContext(gctx, "event fusion failed",
					slog.String("event_id", ev.ID),
					slog.String("error", err.Error()),
				)
			case res.NoSources:
				zombies = append(zombies, ev.ID)
			case res.Updated:
				stats.Updated++
			}
			return nil
		})
	}

	// Workers never return errors; Wait only surfaces context cancellation.
	if err := g.Wait(); err != nil {
		return stats, fmt.Errorf("fusion: fleet pass: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return stats, fmt.Errorf("fusion: fleet pass: %w", err)
	}

	if len(zombies) > 0 {
		if err := d.events.BatchDeactivate(ctx, zombies); err != nil {
			stats.Errors++
			d.logger.ErrorContext(ctx, "zombie deactivation failed",
				slog.Int("count", len(zombies)),
				slog.String("error", err.Error()),
			)
		} else {
			stats.Deactivated = len(zombies)
			d.logger.InfoContext(ctx, "deactivated zombie events",
				slog.Int("count", len(zombies)),
			)
		}
	}

	d.logger.InfoContext(ctx, "fusion pass complete",
		slog.Int("processed", stats.Processed),
		slog.Int("updated", stats.Updated),
		slog.Int("deactivated", stats.Deactivated),
		slog.Int("errors", stats.Errors),
	)
	return stats, nil
}

// Package pipeline schedules and coordinates the long-running cycles: the
// fusion fleet pass, the cross-source matcher, and cold-storage archival.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stevenchzhen/prythia/internal/domain"
	"github.com/stevenchzhen/prythia/internal/fusion"
	"github.com/stevenchzhen/prythia/internal/notify"
)

// lockGrace pads run-lock TTLs past the cycle budget so a lock never expires
// under a still-running cycle.
const lockGrace = 30 * time.Second

// FusionRunner drives the fusion fleet pass on an interval, one cycle at a
// time under a distributed run lock.
type FusionRunner struct {
	driver   *fusion.Driver
	locks    domain.LockManager
	notifier *notify.Notifier
	interval time.Duration
	budget   time.Duration
	logger   *slog.Logger
}

// NewFusionRunner creates a FusionRunner.
func NewFusionRunner(
	driver *fusion.Driver,
	locks domain.LockManager,
	notifier *notify.Notifier,
	interval, budget time.Duration,
	logger *slog.Logger,
) *FusionRunner {
	return &FusionRunner{
		driver:   driver,
		locks:    locks,
		notifier: notifier,
		interval: interval,
		budget:   budget,
		logger:   logger.With(slog.String("component", "fusion_runner")),
	}
}

// RunLoop executes one cycle immediately, then on every interval tick until
// the context is cancelled. Cycle failures are logged and reported, never
// fatal to the loop.
func (r *FusionRunner) RunLoop(ctx context.Context) error {
	r.runAndReport(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("fusion loop stopped")
			return ctx.Err()
		case <-ticker.C:
			r.runAndReport(ctx)
		}
	}
}

// RunCycle executes one fusion fleet pass under the run lock and budget.
func (r *FusionRunner) RunCycle(ctx context.Context) (fusion.FleetStats, error) {
	unlock, err := r.locks.Acquire(ctx, "fusion", r.budget+lockGrace)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			r.logger.InfoContext(ctx, "fusion cycle skipped, lock held by another run")
			return fusion.FleetStats{}, nil
		}
		return fusion.FleetStats{}, fmt.Errorf("pipeline: acquire fusion lock: %w", err)
	}
	defer unlock()

	cycleCtx, cancel := context.WithTimeout(ctx, r.budget)
	defer cancel()

	return r.driver.AggregateAll(cycleCtx)
}

func (r *FusionRunner) runAndReport(ctx context.Context) {
	start := time.Now()
	stats, err := r.RunCycle(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.ErrorContext(ctx, "fusion cycle failed", slog.String("error", err.Error()))
		_ = r.notifier.Notify(ctx, notify.EventError, "Fusion cycle failed", err.Error())
		return
	}

	if stats.Processed == 0 {
		return
	}
	msg := fmt.Sprintf("processed=%d updated=%d deactivated=%d errors=%d in %s",
		stats.Processed, stats.Updated, stats.Deactivated, stats.Errors,
		time.Since(start).Round(time.Second))
	_ = r.notifier.Notify(ctx, notify.EventFusionComplete, "Fusion cycle complete", msg)

	if stats.Deactivated > 0 {
		_ = r.notifier.Notify(ctx, notify.EventZombieDeactivated, "Zombie events deactivated",
			fmt.Sprintf("deactivated=%d", stats.Deactivated))
	}
}

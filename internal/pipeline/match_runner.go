package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/stevenchzhen/prythia/internal/domain"
	"github.com/stevenchzhen/prythia/internal/matcher"
	"github.com/stevenchzhen/prythia/internal/notify"
)

// MatchRunner drives the cross-source matcher on an interval, one run at a
// time under a distributed run lock.
type MatchRunner struct {
	matcher  *matcher.Matcher
	locks    domain.LockManager
	notifier *notify.Notifier
	interval time.Duration
	budget   time.Duration
	logger   *slog.Logger
}

// NewMatchRunner creates a MatchRunner.
func NewMatchRunner(
	m *matcher.Matcher,
	locks domain.LockManager,
	notifier *notify.Notifier,
	interval, budget time.Duration,
	logger *slog.Logger,
) *MatchRunner {
	return &MatchRunner{
		matcher:  m,
		locks:    locks,
		notifier: notifier,
		interval: interval,
		budget:   budget,
		logger:   logger.With(slog.String("component", "match_runner")),
	}
}

// RunLoop executes one run immediately, then on every interval tick until
// the context is cancelled.
func (r *MatchRunner) RunLoop(ctx context.Context) error {
	r.runAndReport(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("matcher loop stopped")
			return ctx.Err()
		case <-ticker.C:
			r.runAndReport(ctx)
		}
	}
}

// RunCycle executes one matcher run under the run lock and budget.
func (r *MatchRunner) RunCycle(ctx context.Context) (matcher.Stats, error) {
	unlock, err := r.locks.Acquire(ctx, "matcher", r.budget+lockGrace)
	if err != nil {
		if errors.Is(err, domain.ErrLockHeld) {
			r.logger.InfoContext(ctx, "matcher run skipped, lock held by another run")
			return matcher.Stats{}, nil
		}
		return matcher.Stats{}, fmt.Errorf("pipeline: acquire matcher lock: %w", err)
	}
	defer unlock()

	cycleCtx, cancel := context.WithTimeout(ctx, r.budget)
	defer cancel()

	return r.matcher.Run(cycleCtx, r.budget)
}

func (r *MatchRunner) runAndReport(ctx context.Context) {
	stats, err := r.RunCycle(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		r.logger.ErrorContext(ctx, "matcher run failed", slog.String("error", err.Error()))
		_ = r.notifier.Notify(ctx, notify.EventError, "Matcher run failed", err.Error())
		return
	}

	if stats.Linked == 0 && stats.Rejected == 0 && stats.EventsEmbedded == 0 && stats.ContractsEmbedded == 0 {
		return
	}
	msg := fmt.Sprintf("embedded=%d/%d linked=%d rejected=%d skipped=%d errors=%d",
		stats.EventsEmbedded, stats.ContractsEmbedded,
		stats.Linked, stats.Rejected, stats.Skipped, stats.Errors)
	_ = r.notifier.Notify(ctx, notify.EventMatchComplete, "Matcher run complete", msg)
}

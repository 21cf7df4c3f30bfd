package pipeline

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"
)

// Orchestrator manages the long-running goroutines: the fusion loop, the
// matcher loop, and cold-storage archival. Which loops run depends on the
// configured mode; nil components are skipped.
type Orchestrator struct {
	fusion      *FusionRunner
	matcher     *MatchRunner
	archiver    *Archiver
	archiveCron string
	logger      *slog.Logger
}

// NewOrchestrator creates a new Orchestrator. Any component may be nil, in
// which case its loop is not started.
func NewOrchestrator(
	fusion *FusionRunner,
	matcher *MatchRunner,
	archiver *Archiver,
	archiveCron string,
	logger *slog.Logger,
) *Orchestrator {
	return &Orchestrator{
		fusion:      fusion,
		matcher:     matcher,
		archiver:    archiver,
		archiveCron: archiveCron,
		logger:      logger,
	}
}

// Run starts the configured loops as concurrent goroutines using an errgroup.
// Each goroutine respects ctx cancellation. If any goroutine returns a
// non-context error, the errgroup cancels the shared context and Run returns
// that error.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.logger.Info("orchestrator starting",
		slog.Bool("fusion", o.fusion != nil),
		slog.Bool("matcher", o.matcher != nil),
		slog.Bool("archiver", o.archiver != nil),
	)

	g, ctx := errgroup.WithContext(ctx)

	if o.fusion != nil {
		g.Go(func() error {
			o.logger.Info("starting fusion loop")
			err := o.fusion.RunLoop(ctx)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("fusion loop: %w", err)
		})
	}

	if o.matcher != nil {
		g.Go(func() error {
			o.logger.Info("starting matcher loop")
			err := o.matcher.RunLoop(ctx)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("matcher loop: %w", err)
		})
	}

	if o.archiver != nil {
		g.Go(func() error {
			o.logger.Info("starting archiver cron")
			err := o.archiver.RunCron(ctx, o.archiveCron)
			if ctx.Err() != nil {
				return nil // clean shutdown
			}
			return fmt.Errorf("archiver: %w", err)
		})
	}

	err := g.Wait()
	if err != nil {
		o.logger.Error("orchestrator stopped with error", slog.String("error", err.Error()))
		return err
	}

	o.logger.Info("orchestrator stopped cleanly")
	return nil
}

// RunOnce executes a single fusion cycle followed by a single matcher run and
// returns. Used by the once mode for cron-style deployments and smoke tests.
func (o *Orchestrator) RunOnce(ctx context.Context) error {
	if o.fusion != nil {
		stats, err := o.fusion.RunCycle(ctx)
		if err != nil {
			return fmt.Errorf("fusion cycle: %w", err)
		}
		o.logger.Info("fusion cycle complete",
			slog.Int("processed", stats.Processed),
			slog.Int("updated", stats.Updated),
			slog.Int("errors", stats.Errors),
		)
	}

	if o.matcher != nil {
		stats, err := o.matcher.RunCycle(ctx)
		if err != nil {
			return fmt.Errorf("matcher run: %w", err)
		}
		o.logger.Info("matcher run complete",
			slog.Int("linked", stats.Linked),
			slog.Int("rejected", stats.Rejected),
			slog.Int("errors", stats.Errors),
		)
	}

	return nil
}

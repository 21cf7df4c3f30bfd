package app

import (
	"context"

	"github.com/stevenchzhen/prythia/internal/fusion"
	"github.com/stevenchzhen/prythia/internal/matcher"
	"github.com/stevenchzhen/prythia/internal/pipeline"
)

func (a *App) fusionRunner(deps *Dependencies) *pipeline.FusionRunner {
	aggregator := fusion.NewAggregator(
		deps.EventStore,
		deps.ContractStore,
		deps.SnapshotStore,
		deps.DivergenceStore,
		a.cfg.Fusion,
		a.logger,
	)
	driver := fusion.NewDriver(aggregator, deps.EventStore, a.cfg.Fusion.Concurrency, a.logger)
	return pipeline.NewFusionRunner(
		driver,
		deps.LockManager,
		deps.Notifier,
		a.cfg.Fusion.Interval.Duration,
		a.cfg.Fusion.Budget.Duration,
		a.logger,
	)
}

func (a *App) matchRunner(deps *Dependencies) *pipeline.MatchRunner {
	m := matcher.New(
		deps.EventStore,
		deps.ContractStore,
		deps.MappingStore,
		deps.Embedder,
		deps.Verifier,
		a.cfg.Matcher,
		a.logger,
	)
	return pipeline.NewMatchRunner(
		m,
		deps.LockManager,
		deps.Notifier,
		a.cfg.Matcher.Interval.Duration,
		a.cfg.Matcher.Budget.Duration,
		a.logger,
	)
}

func (a *App) archiver(deps *Dependencies) *pipeline.Archiver {
	if deps.ColdArchiver == nil {
		return nil
	}
	return pipeline.NewArchiver(deps.ColdArchiver, deps.Notifier, a.cfg.Archive.RetentionDays, a.logger)
}

// FuseMode runs only the fusion loop.
func (a *App) FuseMode(ctx context.Context, deps *Dependencies) error {
	orch := pipeline.NewOrchestrator(a.fusionRunner(deps), nil, a.archiver(deps), a.cfg.Archive.Cron, a.logger)
	return orch.Run(ctx)
}

// MatchMode runs only the matcher loop.
func (a *App) MatchMode(ctx context.Context, deps *Dependencies) error {
	orch := pipeline.NewOrchestrator(nil, a.matchRunner(deps), nil, "", a.logger)
	return orch.Run(ctx)
}

// FullMode runs the fusion loop, the matcher loop, and archival together.
func (a *App) FullMode(ctx context.Context, deps *Dependencies) error {
	orch := pipeline.NewOrchestrator(
		a.fusionRunner(deps),
		a.matchRunner(deps),
		a.archiver(deps),
		a.cfg.Archive.Cron,
		a.logger,
	)
	return orch.Run(ctx)
}

// OnceMode executes one fusion cycle and one matcher run, then exits. Meant
// for cron-style deployments and smoke tests.
func (a *App) OnceMode(ctx context.Context, deps *Dependencies) error {
	orch := pipeline.NewOrchestrator(
		a.fusionRunner(deps),
		a.matchRunner(deps),
		nil,
		"",
		a.logger,
	)
	return orch.RunOnce(ctx)
}

// Package matcher resolves unmapped source contracts to canonical events.
// Candidate events are retrieved by vector similarity and every candidate
// above the floor is gated through language-model verification before a link
// is made: near-duplicate questions that differ only in a threshold number can
// score above 0.85 on embeddings alone, so similarity by itself is never
// sufficient.
package matcher

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/stevenchzhen/prythia/internal/config"
	"github.com/stevenchzhen/prythia/internal/domain"
)

// Stats summarizes one matcher run. A non-zero error count is a partial, not
// total, failure.
type Stats struct {
	EventsEmbedded    int
	ContractsEmbedded int
	Linked            int
	Rejected          int
	Skipped           int
	Errors            int
}

// Matcher is the two-phase entity-resolution routine: backfill embeddings,
// then match the unmapped backlog. Both phases are idempotent and resumable;
// re-running after a partial failure is always safe.
type Matcher struct {
	events    domain.EventStore
	contracts domain.ContractStore
	mappings  domain.MappingStore
	embedder  domain.Embedder
	verifier  domain.Verifier
	cfg       config.MatcherConfig
	logger    *slog.Logger
	now       func() time.Time
}

// New creates a Matcher.
func New(
	events domain.EventStore,
	contracts domain.ContractStore,
	mappings domain.MappingStore,
	embedder domain.Embedder,
	verifier domain.Verifier,
	cfg config.MatcherConfig,
	logger *slog.Logger,
) *Matcher {
	return &Matcher{
		events:    events,
		contracts: contracts,
		mappings:  mappings,
		embedder:  embedder,
		verifier:  verifier,
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "matcher")),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Run executes one full matcher invocation under the given wall-clock budget:
// the embedding phase gets cfg.EmbedBudgetShare of it, the matching phase the
// remainder. Checked stamps on still-unmapped contracts are cleared first so
// every run reconsiders the backlog against events created since the previous
// run; stamping only prevents redundant work within one run's batch loop.
func (m *Matcher) Run(ctx context.Context, budget time.Duration) (Stats, error) {
	start := m.now()
	deadline := start.Add(budget)
	var stats Stats

	cleared, err := m.contracts.ClearCheckedStamps(ctx)
	if err != nil {
		return stats, err
	}
	m.logger.InfoContext(ctx, "matcher run starting",
		slog.Duration("budget", budget),
		slog.Int64("stamps_cleared", cleared),
	)

	embedDeadline := start.Add(time.Duration(float64(budget) * m.cfg.EmbedBudgetShare))
	m.embedBacklog(ctx, embedDeadline, &stats)

	m.matchBacklog(ctx, deadline, &stats)

	m.logger.InfoContext(ctx, "matcher run complete",
		slog.Int("events_embedded", stats.EventsEmbedded),
		slog.Int("contracts_embedded", stats.ContractsEmbedded),
		slog.Int("linked", stats.Linked),
		slog.Int("rejected", stats.Rejected),
		slog.Int("skipped", stats.Skipped),
		slog.Int("errors", stats.Errors),
	)
	return stats, nil
}

// withBackoff runs fn, retrying rate-limit errors with exponential backoff up
// to cfg.MaxRetries attempts. It never sleeps past the deadline: when the
// remaining budget cannot cover the next wait it gives up with ErrBudgetSpent
// rather than overrun.
func (m *Matcher) withBackoff(ctx context.Context, deadline time.Time, fn func() error) error {
	wait := 500 * time.Millisecond
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil || !errors.Is(err, domain.ErrRateLimited) || attempt >= m.cfg.MaxRetries {
			return err
		}
		if m.now().Add(wait).After(deadline) {
			return domain.ErrBudgetSpent
		}
		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		wait *= 2
	}
}

func (m *Matcher) budgetLeft(deadline time.Time) bool {
	return m.now().Before(deadline)
}

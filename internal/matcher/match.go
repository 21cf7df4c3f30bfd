package matcher

import (
	"context"
	"log/slog"
	"time"

	"github.com/stevenchzhen/prythia/internal/domain"
)

// matchBacklog walks the unmapped, embedded, unstamped backlog and tries to
// resolve each contract to an existing event. A positive verification links
// the contract and records the mapping; everything else stamps the contract
// checked so this run's loop never revisits it. No failure for one contract
// halts the batch.
func (m *Matcher) matchBacklog(ctx context.Context, deadline time.Time, stats *Stats) {
	backlog, err := m.contracts.ListMatchable(ctx, m.cfg.MatchBacklog)
	if err != nil {
		m.logger.ErrorContext(ctx, "list matchable contracts failed", slog.String("error", err.Error()))
		stats.Errors++
		return
	}
	m.logger.InfoContext(ctx, "matching phase starting", slog.Int("backlog", len(backlog)))

	for _, c := range backlog {
		if !m.budgetLeft(deadline) || ctx.Err() != nil {
			m.logger.InfoContext(ctx, "matching phase budget exhausted",
				slog.Int("skipped", stats.Skipped),
			)
			return
		}
		m.matchOne(ctx, deadline, c, stats)
	}
}

// matchOne resolves a single contract. The contract row is only ever written
// by the run processing it, so there is no concurrent writer to guard against.
func (m *Matcher) matchOne(ctx context.Context, deadline time.Time, c domain.Contract, stats *Stats) {
	candidates, err := m.events.SimilaritySearch(ctx, c.Embedding, m.cfg.SimilarityFloor, m.cfg.TopK)
	if err != nil {
		m.logger.WarnContext(ctx, "similarity search failed",
			slog.String("contract_id", c.ID),
			slog.String("error", err.Error()),
		)
		stats.Errors++
		m.stamp(ctx, c.ID, stats)
		return
	}

	if len(candidates) == 0 {
		stats.Skipped++
		m.stamp(ctx, c.ID, stats)
		return
	}

	best := candidates[0]
	var verified bool
	err = m.withBackoff(ctx, deadline, func() error {
		var verifyErr error
		verified, verifyErr = m.verifier.VerifySameQuestion(ctx, c.Title, best.Title)
		return verifyErr
	})
	if err != nil {
		m.logger.WarnContext(ctx, "verification failed",
			slog.String("contract_id", c.ID),
			slog.String("event_id", best.EventID),
			slog.String("error", err.Error()),
		)
		stats.Errors++
		m.stamp(ctx, c.ID, stats)
		return
	}

	if !verified {
		m.logger.DebugContext(ctx, "candidate rejected by verification",
			slog.String("contract_id", c.ID),
			slog.String("event_id", best.EventID),
			slog.Float64("similarity", best.Similarity),
		)
		stats.Rejected++
		m.stamp(ctx, c.ID, stats)
		return
	}

	if err := m.contracts.LinkToEvent(ctx, c.ID, best.EventID); err != nil {
		m.logger.ErrorContext(ctx, "link contract failed",
			slog.String("contract_id", c.ID),
			slog.String("event_id", best.EventID),
			slog.String("error", err.Error()),
		)
		stats.Errors++
		return
	}
	if err := m.mappings.Upsert(ctx, domain.Mapping{
		Source:     c.Source,
		SourceID:   c.SourceID,
		EventID:    best.EventID,
		Confidence: domain.ConfidenceLLMVerified,
		Agent:      m.cfg.Agent,
		MappedAt:   m.now(),
	}); err != nil {
		m.logger.ErrorContext(ctx, "upsert mapping failed",
			slog.String("contract_id", c.ID),
			slog.String("error", err.Error()),
		)
		stats.Errors++
		return
	}

	// Linked contracts stay unstamped: no longer unmapped, they drop out of
	// future selection on their own.
	stats.Linked++
	m.logger.InfoContext(ctx, "contract linked",
		slog.String("contract_id", c.ID),
		slog.String("source", c.Source),
		slog.String("event_id", best.EventID),
		slog.Float64("similarity", best.Similarity),
	)
}

func (m *Matcher) stamp(ctx context.Context, contractID string, stats *Stats) {
	if err := m.contracts.StampChecked(ctx, contractID, m.now()); err != nil {
		m.logger.WarnContext(ctx, "stamp checked failed",
			slog.String("contract_id", contractID),
			slog.String("error", err.Error()),
		)
		stats.Errors++
	}
}

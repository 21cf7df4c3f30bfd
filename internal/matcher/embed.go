package matcher

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/stevenchzhen/prythia/internal/domain"
)

// maxDescriptionLen bounds the description text sent for embedding. Longer
// descriptions add tokens without improving retrieval on short questions.
const maxDescriptionLen = 500

// embedBacklog backfills embeddings for events and contracts that lack one.
// Events are embedded as retrieval documents (they form the index), contracts
// as retrieval queries (they probe it). Each returned vector is persisted
// immediately, so a budget cutoff mid-backlog loses nothing: the remainder is
// picked up by the next invocation.
func (m *Matcher) embedBacklog(ctx context.Context, deadline time.Time, stats *Stats) {
	events, err := m.events.ListUnembedded(ctx, m.cfg.EventBacklog)
	if err != nil {
		m.logger.ErrorContext(ctx, "list unembedded events failed", slog.String("error", err.Error()))
		stats.Errors++
	} else {
		texts := make([]string, len(events))
		for i, ev := range events {
			texts[i] = eventText(ev)
		}
		stats.EventsEmbedded += m.embedAndStore(ctx, deadline, texts, domain.EmbedModeDocument, stats,
			func(i int, vec []float32) error {
				return m.events.WriteEmbedding(ctx, events[i].ID, vec)
			})
	}

	contracts, err := m.contracts.ListUnembedded(ctx, m.cfg.ContractBacklog)
	if err != nil {
		m.logger.ErrorContext(ctx, "list unembedded contracts failed", slog.String("error", err.Error()))
		stats.Errors++
		return
	}
	texts := make([]string, len(contracts))
	for i, c := range contracts {
		texts[i] = contractText(c)
	}
	stats.ContractsEmbedded += m.embedAndStore(ctx, deadline, texts, domain.EmbedModeQuery, stats,
		func(i int, vec []float32) error {
			return m.contracts.WriteEmbedding(ctx, contracts[i].ID, vec)
		})
}

// embedAndStore embeds texts in fixed-size batches and persists each vector
// via store. It stops accepting new batches once the deadline passes and
// returns how many vectors were written. A failed batch is logged and counted
// once; the loop moves on to the next batch.
func (m *Matcher) embedAndStore(
	ctx context.Context,
	deadline time.Time,
	texts []string,
	mode domain.EmbedMode,
	stats *Stats,
	store func(i int, vec []float32) error,
) int {
	written := 0
	for offset := 0; offset < len(texts); offset += m.cfg.EmbedBatchSize {
		if !m.budgetLeft(deadline) || ctx.Err() != nil {
			m.logger.InfoContext(ctx, "embedding phase budget exhausted",
				slog.Int("remaining", len(texts)-offset),
			)
			break
		}

		end := offset + m.cfg.EmbedBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[offset:end]

		var vectors [][]float32
		err := m.withBackoff(ctx, deadline, func() error {
			var embedErr error
			vectors, embedErr = m.embedder.Embed(ctx, batch, mode)
			return embedErr
		})
		if err != nil {
			m.logger.WarnContext(ctx, "embedding batch failed",
				slog.Int("size", len(batch)),
				slog.String("mode", string(mode)),
				slog.String("error", err.Error()),
			)
			stats.Errors++
			continue
		}

		for i, vec := range vectors {
			if err := store(offset+i, vec); err != nil {
				m.logger.WarnContext(ctx, "persist embedding failed",
					slog.String("error", err.Error()),
				)
				stats.Errors++
				continue
			}
			written++
		}
	}
	return written
}

// eventText builds the embedding-ready representation of an event.
func eventText(ev domain.Event) string {
	var b strings.Builder
	b.WriteString(ev.Title)
	if desc := strings.TrimSpace(ev.Description); desc != "" {
		if len(desc) > maxDescriptionLen {
			cut := maxDescriptionLen
			// Back off to a rune boundary so the cut never splits a
			// multi-byte character.
			for cut > 0 && !utf8.RuneStart(desc[cut]) {
				cut--
			}
			desc = desc[:cut]
		}
		b.WriteString("\n")
		b.WriteString(desc)
	}
	if ev.Category != "" {
		b.WriteString("\nCategory: ")
		b.WriteString(ev.Category)
	}
	return b.String()
}

// contractText builds the embedding-ready representation of a contract.
func contractText(c domain.Contract) string {
	return c.Title + " (" + c.Source + ")"
}

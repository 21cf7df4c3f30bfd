package matcher

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stevenchzhen/prythia/internal/config"
	"github.com/stevenchzhen/prythia/internal/domain"
	"github.com/stevenchzhen/prythia/internal/store/memory"
)

// fakeEmbedder returns a fixed vector per text, defaulting to unit-x.
type fakeEmbedder struct {
	mu      sync.Mutex
	vectors map[string][]float32
	calls   int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string, _ domain.EmbedMode) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	out := make([][]float32, len(texts))
	for i, text := range texts {
		if v, ok := f.vectors[text]; ok {
			out[i] = v
			continue
		}
		out[i] = []float32{1, 0, 0}
	}
	return out, nil
}

// fakeVerifier answers every pair with a fixed verdict and counts calls. Errors
// queued in errs are returned first, one per call, before err and the verdict
// apply.
type fakeVerifier struct {
	mu      sync.Mutex
	verdict bool
	err     error
	errs    []error
	calls   int
}

func (f *fakeVerifier) VerifySameQuestion(_ context.Context, _, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if len(f.errs) > 0 {
		err := f.errs[0]
		f.errs = f.errs[1:]
		return false, err
	}
	return f.verdict, f.err
}

func (f *fakeVerifier) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type matchFixture struct {
	m         *Matcher
	events    *memory.EventStore
	contracts *memory.ContractStore
	mappings  *memory.MappingStore
	embedder  *fakeEmbedder
	verifier  *fakeVerifier
}

func newMatchFixture(t *testing.T) *matchFixture {
	t.Helper()
	f := &matchFixture{
		events:    memory.NewEventStore(),
		contracts: memory.NewContractStore(),
		mappings:  memory.NewMappingStore(),
		embedder:  &fakeEmbedder{vectors: map[string][]float32{}},
		verifier:  &fakeVerifier{verdict: true},
	}
	f.m = New(f.events, f.contracts, f.mappings, f.embedder, f.verifier,
		config.Defaults().Matcher, slog.New(slog.DiscardHandler))
	return f
}

func (f *matchFixture) seedEmbeddedEvent(id, title string, vec []float32) {
	f.events.Put(domain.Event{
		ID:         id,
		Title:      title,
		Resolution: domain.ResolutionOpen,
		Active:     true,
		Embedding:  vec,
	})
}

func (f *matchFixture) seedUnmappedContract(id, title string, vec []float32) {
	f.contracts.Put(domain.Contract{
		ID:        id,
		Source:    "kalshi",
		SourceID:  id + "-native",
		Title:     title,
		Active:    true,
		Embedding: vec,
	})
}

func TestRun_LinksVerifiedContract(t *testing.T) {
	f := newMatchFixture(t)
	f.seedEmbeddedEvent("ev1", "US tariffs cross 50% before October", []float32{1, 0, 0})
	f.seedUnmappedContract("c1", "Will tariffs exceed 50% by Q3", []float32{0.95, 0.3, 0})

	stats, err := f.m.Run(context.Background(), time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Linked)
	assert.Equal(t, 0, stats.Rejected)
	assert.Equal(t, 1, f.verifier.callCount())

	c, ok := f.contracts.Get("c1")
	require.True(t, ok)
	require.NotNil(t, c.EventID)
	assert.Equal(t, "ev1", *c.EventID)
	assert.Nil(t, c.CheckedAt, "linked contracts stay unstamped")

	m, err := f.mappings.Get(context.Background(), "kalshi", "c1-native")
	require.NoError(t, err)
	assert.Equal(t, "ev1", m.EventID)
	assert.Equal(t, domain.ConfidenceLLMVerified, m.Confidence)
	assert.Equal(t, "prythia-matcher", m.Agent)
}

func TestRun_NegativeVerdictStampsContract(t *testing.T) {
	f := newMatchFixture(t)
	f.verifier.verdict = false
	f.seedEmbeddedEvent("ev1", "Bitcoin above $100k by June", []float32{1, 0, 0})
	f.seedUnmappedContract("c1", "Bitcoin above $150k by June", []float32{0.98, 0.1, 0})

	stats, err := f.m.Run(context.Background(), time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Linked)
	assert.Equal(t, 1, stats.Rejected)

	c, _ := f.contracts.Get("c1")
	assert.Nil(t, c.EventID)
	assert.NotNil(t, c.CheckedAt)
	assert.Equal(t, 0, f.mappings.Count())
}

func TestRun_NoCandidateAboveFloorSkips(t *testing.T) {
	f := newMatchFixture(t)
	f.seedEmbeddedEvent("ev1", "Unrelated question", []float32{1, 0, 0})
	f.seedUnmappedContract("c1", "Completely different topic", []float32{0, 1, 0})

	stats, err := f.m.Run(context.Background(), time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Skipped)
	assert.Equal(t, 0, f.verifier.callCount(), "no verification without a candidate")

	c, _ := f.contracts.Get("c1")
	assert.NotNil(t, c.CheckedAt)
}

func TestRun_EmbedsBacklogBeforeMatching(t *testing.T) {
	f := newMatchFixture(t)
	f.events.Put(domain.Event{
		ID: "ev1", Title: "US tariffs cross 50% before October",
		Resolution: domain.ResolutionOpen, Active: true,
	})
	f.contracts.Put(domain.Contract{
		ID: "c1", Source: "kalshi", SourceID: "c1-native",
		Title: "Will tariffs exceed 50% by Q3", Active: true,
	})

	stats, err := f.m.Run(context.Background(), time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.EventsEmbedded)
	assert.Equal(t, 1, stats.ContractsEmbedded)
	assert.Equal(t, 1, stats.Linked, "freshly embedded contract is matched in the same run")
}

func TestRun_SecondRunIsIdempotent(t *testing.T) {
	f := newMatchFixture(t)
	f.seedEmbeddedEvent("ev1", "US tariffs cross 50% before October", []float32{1, 0, 0})
	f.seedUnmappedContract("c1", "Will tariffs exceed 50% by Q3", []float32{0.95, 0.3, 0})

	_, err := f.m.Run(context.Background(), time.Minute)
	require.NoError(t, err)
	stats, err := f.m.Run(context.Background(), time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Linked, "mapped contract has left the backlog")
	assert.Equal(t, 1, f.verifier.callCount(), "no re-verification of a linked contract")
	assert.Equal(t, 1, f.mappings.Count(), "no duplicate mapping rows")
}

func TestRun_ClearsStampsAcrossRuns(t *testing.T) {
	f := newMatchFixture(t)
	f.verifier.verdict = false
	f.seedEmbeddedEvent("ev1", "Bitcoin above $100k by June", []float32{1, 0, 0})
	f.seedUnmappedContract("c1", "Bitcoin above $150k by June", []float32{0.98, 0.1, 0})

	_, err := f.m.Run(context.Background(), time.Minute)
	require.NoError(t, err)
	require.Equal(t, 1, f.verifier.callCount())

	// A new run reconsiders the still-unmapped backlog from scratch.
	_, err = f.m.Run(context.Background(), time.Minute)
	require.NoError(t, err)
	assert.Equal(t, 2, f.verifier.callCount())
}

func TestEventText(t *testing.T) {
	t.Run("title with description and category", func(t *testing.T) {
		text := eventText(domain.Event{
			Title:       "US tariffs cross 50% before October",
			Description: "Resolves YES if the average rate exceeds 50%.",
			Category:    "economics",
		})
		assert.Equal(t,
			"US tariffs cross 50% before October\nResolves YES if the average rate exceeds 50%.\nCategory: economics",
			text)
	})

	t.Run("long description cut on a rune boundary", func(t *testing.T) {
		desc := strings.Repeat("é", maxDescriptionLen) // 2 bytes per rune
		text := eventText(domain.Event{Title: "T", Description: desc})
		body := strings.TrimPrefix(text, "T\n")
		assert.True(t, utf8.ValidString(body))
		assert.LessOrEqual(t, len(body), maxDescriptionLen)
		assert.NotEmpty(t, body)
	})
}

func TestRun_RetriesRateLimitedVerification(t *testing.T) {
	f := newMatchFixture(t)
	f.verifier.errs = []error{domain.ErrRateLimited}
	f.seedEmbeddedEvent("ev1", "US tariffs cross 50% before October", []float32{1, 0, 0})
	f.seedUnmappedContract("c1", "Will tariffs exceed 50% by Q3", []float32{0.95, 0.3, 0})

	stats, err := f.m.Run(context.Background(), time.Minute)
	require.NoError(t, err)

	assert.Equal(t, 1, stats.Linked)
	assert.Equal(t, 0, stats.Errors)
	assert.Equal(t, 2, f.verifier.callCount(), "rate-limited call retried once")
}

func TestRun_ZeroBudgetDoesNothing(t *testing.T) {
	f := newMatchFixture(t)
	f.events.Put(domain.Event{
		ID: "ev1", Title: "US tariffs cross 50% before October",
		Resolution: domain.ResolutionOpen, Active: true,
	})
	f.seedUnmappedContract("c1", "Will tariffs exceed 50% by Q3", []float32{1, 0, 0})

	stats, err := f.m.Run(context.Background(), 0)
	require.NoError(t, err)

	assert.Zero(t, stats.EventsEmbedded)
	assert.Zero(t, stats.Linked)
	assert.Zero(t, f.embedder.calls)
	assert.Zero(t, f.verifier.callCount())

	c, _ := f.contracts.Get("c1")
	assert.Nil(t, c.CheckedAt, "spent budget defers work, it does not stamp")
}

func TestWithBackoff(t *testing.T) {
	rateLimited := func(n int) func() error {
		calls := 0
		return func() error {
			calls++
			if calls <= n {
				return domain.ErrRateLimited
			}
			return nil
		}
	}

	t.Run("recovers after a rate limit", func(t *testing.T) {
		f := newMatchFixture(t)
		err := f.m.withBackoff(context.Background(), f.m.now().Add(time.Minute), rateLimited(1))
		assert.NoError(t, err)
	})

	t.Run("gives up when the wait would overrun the deadline", func(t *testing.T) {
		f := newMatchFixture(t)
		calls := 0
		err := f.m.withBackoff(context.Background(), f.m.now().Add(10*time.Millisecond), func() error {
			calls++
			return domain.ErrRateLimited
		})
		assert.ErrorIs(t, err, domain.ErrBudgetSpent)
		assert.Equal(t, 1, calls, "no sleep past the deadline")
	})

	t.Run("stops after max retries", func(t *testing.T) {
		f := newMatchFixture(t)
		f.m.cfg.MaxRetries = 1
		err := f.m.withBackoff(context.Background(), f.m.now().Add(time.Minute), rateLimited(5))
		assert.ErrorIs(t, err, domain.ErrRateLimited)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		f := newMatchFixture(t)
		calls := 0
		err := f.m.withBackoff(context.Background(), f.m.now().Add(time.Minute), func() error {
			calls++
			return context.DeadlineExceeded
		})
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		assert.Equal(t, 1, calls)
	})
}

func TestRun_VerificationErrorStampsAndContinues(t *testing.T) {
	f := newMatchFixture(t)
	f.verifier.err = context.DeadlineExceeded
	f.seedEmbeddedEvent("ev1", "Some question", []float32{1, 0, 0})
	f.seedUnmappedContract("c1", "Some question restated", []float32{0.99, 0.05, 0})

	stats, err := f.m.Run(context.Background(), time.Minute)
	require.NoError(t, err, "per-contract failures never fail the run")

	assert.Equal(t, 0, stats.Linked)
	assert.GreaterOrEqual(t, stats.Errors, 1)

	c, _ := f.contracts.Get("c1")
	assert.NotNil(t, c.CheckedAt)
}

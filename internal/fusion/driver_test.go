package fusion

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAggregateAll_DeactivatesZombiesAfterFullPass(t *testing.T) {
	f := newFixture(t, nil)
	f.seedEvent("live")
	f.seedContract("live", "polymarket", 0.5, 1000, 0)
	f.seedEvent("zombie1")
	f.seedEvent("zombie2")

	driver := NewDriver(f.agg, f.events, 2, slog.New(slog.DiscardHandler))
	stats, err := driver.AggregateAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Processed)
	assert.Equal(t, 1, stats.Updated)
	assert.Equal(t, 2, stats.Deactivated)
	assert.Equal(t, 0, stats.Errors)

	ctx := context.Background()
	for _, id := range []string{"zombie1", "zombie2"} {
		ev, err := f.events.GetByID(ctx, id)
		require.NoError(t, err)
		assert.False(t, ev.Active, "zombie %s should be deactivated", id)
	}

	live, err := f.events.GetByID(ctx, "live")
	require.NoError(t, err)
	assert.True(t, live.Active)
}

func TestAggregateAll_EmptyFleet(t *testing.T) {
	f := newFixture(t, nil)

	driver := NewDriver(f.agg, f.events, 4, slog.New(slog.DiscardHandler))
	stats, err := driver.AggregateAll(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 0, stats.Processed)
	assert.Equal(t, 0, stats.Deactivated)
}

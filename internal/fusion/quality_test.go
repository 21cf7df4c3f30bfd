package fusion

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQuality_PerfectScore(t *testing.T) {
	cfg := testFusionConfig()
	q := Quality(QualityInputs{
		VolumeTotal:   cfg.VolumeDepthCap,
		SourceCount:   3,
		FreshestAge:   2,
		Spread:        0.01,
		HasDeepSource: true,
	}, cfg)

	assert.Equal(t, 1.0, q)
}

func TestQuality_SingleSourceSpreadComponentIsFixed(t *testing.T) {
	cfg := testFusionConfig()
	// Zero volume, one source, no trades: only diversity (1/3 of 0.25) and
	// the fixed single-source spread half-credit contribute.
	q := Quality(QualityInputs{
		SourceCount: 1,
		FreshestAge: 24 * 60,
		Spread:      0,
	}, cfg)

	assert.Equal(t, 0.21, q) // round(0.25/3 + 0.125, 2)
}

func TestQuality_NoDeepSourceDoublesVolumeBar(t *testing.T) {
	cfg := testFusionConfig()
	in := QualityInputs{
		VolumeTotal: cfg.VolumeDepthCap,
		SourceCount: 3,
		FreshestAge: 2,
		Spread:      0.01,
	}

	with := Quality(in, cfg)
	in.HasDeepSource = true
	without := with
	with = Quality(in, cfg)

	assert.Equal(t, 1.0, with)
	assert.Equal(t, 0.88, without) // volume component halved: 0.125 instead of 0.25
}

func TestQuality_FreshnessDecay(t *testing.T) {
	cfg := testFusionConfig()
	base := QualityInputs{
		VolumeTotal:   cfg.VolumeDepthCap,
		SourceCount:   3,
		Spread:        0.01,
		HasDeepSource: true,
	}

	fresh := base
	fresh.FreshestAge = 5
	hour := base
	hour.FreshestAge = 45
	stale := base
	stale.FreshestAge = 24 * 60

	assert.Equal(t, 1.0, Quality(fresh, cfg))
	assert.Equal(t, 0.98, Quality(hour, cfg)) // 0.75 + 0.25*0.9, rounded
	assert.Equal(t, 0.75, Quality(stale, cfg))
}

func TestQuality_SpreadInterpolation(t *testing.T) {
	cfg := testFusionConfig()
	base := QualityInputs{
		VolumeTotal:   cfg.VolumeDepthCap,
		SourceCount:   3,
		FreshestAge:   2,
		HasDeepSource: true,
	}

	tight := base
	tight.Spread = cfg.SpreadTight
	wide := base
	wide.Spread = cfg.SpreadWide
	mid := base
	mid.Spread = (cfg.SpreadTight + cfg.SpreadWide) / 2

	assert.Equal(t, 1.0, Quality(tight, cfg))
	assert.Equal(t, 0.75, Quality(wide, cfg))
	assert.Equal(t, 0.88, Quality(mid, cfg)) // 0.75 + 0.125, rounded
}

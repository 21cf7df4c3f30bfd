package fusion

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/stevenchzhen/prythia/internal/config"
	"github.com/stevenchzhen/prythia/internal/domain"
)

func testFusionConfig() config.FusionConfig {
	return config.Defaults().Fusion
}

func TestNormalize_NotionalPassThrough(t *testing.T) {
	cfg := testFusionConfig()
	v24 := 1500.0
	c := domain.Contract{
		Source:      "polymarket",
		Price:       0.62,
		Volume24h:   &v24,
		VolumeTotal: 80000,
		Liquidity:   12000,
		Traders:     340,
	}

	s := Normalize(c, cfg)

	assert.Equal(t, 0.62, s.Price)
	assert.Equal(t, 80000.0, s.RawTotal)
	assert.Equal(t, 80000.0, s.VolumeTotal)
	assert.Equal(t, 12000.0, s.Liquidity)
	assert.Equal(t, 1500.0, *s.Volume24h)
}

func TestNormalize_ContractCountsToNotional(t *testing.T) {
	cfg := testFusionConfig() // kalshi is a contract-unit source by default
	c := domain.Contract{
		Source:      "kalshi",
		Price:       0.40,
		VolumeTotal: 10000, // contracts, not dollars
		Liquidity:   5000,
	}

	s := Normalize(c, cfg)

	assert.Equal(t, 4000.0, s.RawTotal)
	assert.Equal(t, 4000.0, s.VolumeTotal)
	assert.Equal(t, 0.40, s.Price, "price itself is never rescaled")
	assert.Equal(t, 5000.0, s.Liquidity, "liquidity passes through")
}

func TestNormalize_PriceFloorProtectsNearZeroPrices(t *testing.T) {
	cfg := testFusionConfig()
	c := domain.Contract{
		Source:      "kalshi",
		Price:       0.001, // below the 0.01 floor
		VolumeTotal: 10000,
	}

	s := Normalize(c, cfg)

	assert.Equal(t, 100.0, s.VolumeTotal, "floor price 0.01 applies, not 0.001")
	assert.Equal(t, 0.001, s.Price)
}

func TestApplyStaleness_Tiers(t *testing.T) {
	cfg := testFusionConfig()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	cases := []struct {
		name   string
		age    time.Duration
		weight float64
	}{
		{"fresh", 2 * time.Hour, 1.0},
		{"boundary fresh", 24 * time.Hour, 1.0},
		{"stale", 48 * time.Hour, 0.5},
		{"boundary stale", 72 * time.Hour, 0.5},
		{"very stale", 100 * time.Hour, 0.2},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			traded := now.Add(-tc.age)
			v24 := 100.0
			s := Signal{
				Source:      "polymarket",
				Price:       0.5,
				Volume24h:   &v24,
				RawTotal:    1000,
				VolumeTotal: 1000,
				Liquidity:   500,
				LastTradeAt: &traded,
			}

			out := ApplyStaleness(s, now, cfg)

			assert.Equal(t, 1000*tc.weight, out.VolumeTotal)
			assert.Equal(t, 500*tc.weight, out.Liquidity)
			assert.Equal(t, 100*tc.weight, *out.Volume24h)
			assert.Equal(t, 0.5, out.Price, "price is never down-weighted")
			assert.Equal(t, 1000.0, out.RawTotal, "raw total stays unweighted")
		})
	}
}

func TestApplyStaleness_NoTradeHistoryIsVeryStale(t *testing.T) {
	cfg := testFusionConfig()
	now := time.Now().UTC()
	s := Signal{Source: "manifold", Price: 0.3, VolumeTotal: 1000, Liquidity: 200}

	out := ApplyStaleness(s, now, cfg)

	assert.Equal(t, 200.0, out.VolumeTotal)
	assert.Equal(t, 40.0, out.Liquidity)
}

func TestUsablePrice(t *testing.T) {
	assert.True(t, usablePrice(0.5))
	assert.True(t, usablePrice(-0.1), "out of range is tolerated, clamping handles it")
	assert.True(t, usablePrice(1.7))
	assert.False(t, usablePrice(math.NaN()))
	assert.False(t, usablePrice(math.Inf(1)))
	assert.False(t, usablePrice(math.Inf(-1)))
}

package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewDivergence_CanonicalOrdering(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	ab := NewDivergence("ev1", "kalshi", 0.70, "polymarket", 0.60, at)
	ba := NewDivergence("ev1", "polymarket", 0.60, "kalshi", 0.70, at)

	assert.Equal(t, ab, ba, "ingestion order must not matter")
	assert.Equal(t, "kalshi", ab.SourceA)
	assert.Equal(t, "polymarket", ab.SourceB)
	assert.Equal(t, 0.70, ab.PriceA)
	assert.Equal(t, 0.60, ab.PriceB)
	assert.InDelta(t, 0.10, ab.Spread, 1e-9)
	assert.Equal(t, "kalshi", ab.Higher)
}

func TestNewDivergence_HigherTracksTheHigherPrice(t *testing.T) {
	at := time.Now().UTC()

	d := NewDivergence("ev1", "kalshi", 0.30, "polymarket", 0.45, at)
	assert.Equal(t, "polymarket", d.Higher)

	tied := NewDivergence("ev1", "kalshi", 0.50, "polymarket", 0.50, at)
	assert.Equal(t, "kalshi", tied.Higher, "ties fall to the lexicographically first source")
	assert.Equal(t, 0.0, tied.Spread)
}

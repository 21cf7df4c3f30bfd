package fusion

import (
	"math"

	"github.com/stevenchzhen/prythia/internal/config"
)

// QualityInputs are the fused signals the quality score is computed from.
type QualityInputs struct {
	VolumeTotal   float64
	SourceCount   int
	FreshestAge   float64 // minutes since the freshest trade across sources
	Spread        float64 // unweighted cross-source price spread
	HasDeepSource bool
}

// Quality maps fused signals to a 0–1 composite score: four equally-weighted
// components (volume depth, source diversity, freshness, spread tightness) of
// 0.25 each, summed and rounded to two decimals. All caps and knees come from
// cfg; they are tuning heuristics, not invariants.
func Quality(in QualityInputs, cfg config.FusionConfig) float64 {
	score := volumeDepth(in, cfg) + diversity(in, cfg) + freshness(in) + spreadTightness(in, cfg)
	return math.Round(score*100) / 100
}

// volumeDepth credits up to 0.25 as fused volume approaches the depth cap.
// Without a deep-market source the bar doubles: thin venues need twice the
// volume for the same depth credit.
func volumeDepth(in QualityInputs, cfg config.FusionConfig) float64 {
	cap := cfg.VolumeDepthCap
	if !in.HasDeepSource {
		cap *= 2
	}
	return math.Min(in.VolumeTotal/cap, 1) * 0.25
}

func diversity(in QualityInputs, cfg config.FusionConfig) float64 {
	return math.Min(float64(in.SourceCount)/float64(cfg.SourceDiversityCap), 1) * 0.25
}

// freshness gives full weight within 5 minutes, 90% within the hour, then
// decays linearly to zero at 24 hours.
func freshness(in QualityInputs) float64 {
	age := in.FreshestAge
	switch {
	case age <= 5:
		return 0.25
	case age <= 60:
		return 0.25 * 0.9
	case age >= 24*60:
		return 0
	default:
		frac := 1 - (age-60)/(24*60-60)
		return 0.25 * 0.9 * frac
	}
}

// spreadTightness rewards cross-source agreement. With a single source the
// spread is undefined, so the component is fixed at half weight.
func spreadTightness(in QualityInputs, cfg config.FusionConfig) float64 {
	if in.SourceCount <= 1 {
		return 0.125
	}
	switch {
	case in.Spread <= cfg.SpreadTight:
		return 0.25
	case in.Spread >= cfg.SpreadWide:
		return 0
	default:
		frac := (cfg.SpreadWide - in.Spread) / (cfg.SpreadWide - cfg.SpreadTight)
		return 0.25 * frac
	}
}

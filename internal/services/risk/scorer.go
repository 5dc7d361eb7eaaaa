package risk

import (
	"math"

	"SellerGuard/internal/domain/models"
)

// factorRule describes how one raw factor feeds the aggregate score.
type factorRule struct {
	factor    models.Factor
	weight    float64
	normalize func(v float64) float64
	// trigger is the normalized value above which advice is emitted. Zero disables advice.
	trigger float64
	advice  string
}

// factorRules is ordered by factor declaration; weights must sum to 1.0.
var factorRules = []factorRule{
	{
		factor:    models.FactorCancellationRate,
		weight:    0.25,
		normalize: func(v float64) float64 { return v * 10 },
		trigger:   30,
		advice:    "Reduce your cancellation rate: review shipping times and stock availability",
	},
	{
		factor:    models.FactorClaimRate,
		weight:    0.20,
		normalize: func(v float64) float64 { return v * 20 },
		trigger:   40,
		advice:    "Manage claims actively: answer quickly and offer solutions",
	},
	{
		factor:    models.FactorResponseTime,
		weight:    0.15,
		normalize: func(v float64) float64 { return v / 1440 * 100 },
		trigger:   50,
		advice:    "Improve response time: answer buyer messages in under 2 hours",
	},
	{
		factor:    models.FactorStockIssues,
		weight:    0.15,
		normalize: func(v float64) float64 { return v / 10 * 100 },
		trigger:   30,
		advice:    "Update inventory: avoid running out of stock or pausing listings",
	},
	{
		factor:    models.FactorReputationScore,
		weight:    0.15,
		normalize: func(v float64) float64 { return 100 - v },
		trigger:   50,
		advice:    "Recover your reputation: focus on improving the buyer experience",
	},
	{
		factor:    models.FactorLateResponses,
		weight:    0.05,
		normalize: func(v float64) float64 { return v / 5 * 100 },
	},
	{
		factor:    models.FactorPausedListings,
		weight:    0.05,
		normalize: func(v float64) float64 { return v / 10 * 100 },
	},
}

// Weights returns a copy of the factor weights.
func Weights() map[models.Factor]float64 {
	out := make(map[models.Factor]float64, len(factorRules))
	for _, r := range factorRules {
		out[r.factor] = r.weight
	}
	return out
}

// Normalize maps every raw factor to its 0..100 risk contribution.
func Normalize(f models.RiskFactors) models.NormalizedFactors {
	out := make(models.NormalizedFactors, len(factorRules))
	for _, r := range factorRules {
		out[r.factor] = clamp(r.normalize(f.Value(r.factor)), 0, 100)
	}
	return out
}

// ComputeRiskScore reduces a snapshot to a 0..100 score, its level, the per-factor
// contributions and advice for the elevated factors.
func ComputeRiskScore(f models.RiskFactors) models.RiskScoreResult {
	normalized := Normalize(f)

	sum := 0.0
	recs := make([]string, 0, len(factorRules))
	for _, r := range factorRules {
		v := normalized[r.factor]
		sum += v * r.weight
		if r.trigger > 0 && v > r.trigger {
			recs = append(recs, r.advice)
		}
	}

	score := int(clamp(math.Round(sum), 0, 100))
	return models.RiskScoreResult{
		Score:           score,
		Level:           models.LevelForScore(score),
		Factors:         normalized,
		Recommendations: recs,
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

package models

import "time"

// RiskFactors is one metrics snapshot of a seller account.
// Rates are percentages, ResponseTime is in minutes, the rest are counts.
// ReputationScore runs 0 (worst) to 100 (best).
type RiskFactors struct {
	CancellationRate float64 `json:"cancellationRate" validate:"finite"`
	ClaimRate        float64 `json:"claimRate" validate:"finite"`
	ResponseTime     float64 `json:"responseTime" validate:"finite"`
	StockIssues      float64 `json:"stockIssues" validate:"finite"`
	ReputationScore  float64 `json:"reputationScore" validate:"finite"`
	LateResponses    float64 `json:"lateResponses" validate:"finite"`
	PausedListings   float64 `json:"pausedListings" validate:"finite"`
}

// Factor names a RiskFactors field. Declaration order below is the order
// used for weighting and recommendations.
type Factor string

const (
	FactorCancellationRate Factor = "cancellationRate"
	FactorClaimRate        Factor = "claimRate"
	FactorResponseTime     Factor = "responseTime"
	FactorStockIssues      Factor = "stockIssues"
	FactorReputationScore  Factor = "reputationScore"
	FactorLateResponses    Factor = "lateResponses"
	FactorPausedListings   Factor = "pausedListings"
)

// Factors lists every factor in declaration order.
var Factors = []Factor{
	FactorCancellationRate,
	FactorClaimRate,
	FactorResponseTime,
	FactorStockIssues,
	FactorReputationScore,
	FactorLateResponses,
	FactorPausedListings,
}

// Value returns the raw value of factor f.
func (r RiskFactors) Value(f Factor) float64 {
	switch f {
	case FactorCancellationRate:
		return r.CancellationRate
	case FactorClaimRate:
		return r.ClaimRate
	case FactorResponseTime:
		return r.ResponseTime
	case FactorStockIssues:
		return r.StockIssues
	case FactorReputationScore:
		return r.ReputationScore
	case FactorLateResponses:
		return r.LateResponses
	case FactorPausedListings:
		return r.PausedListings
	}
	return 0
}

// NormalizedFactors maps each factor to its 0..100 risk contribution (100 = maximal risk).
type NormalizedFactors map[Factor]float64

// RiskLevel is the coarse bucket derived from a score.
type RiskLevel string

const (
	RiskLevelLow      RiskLevel = "low"
	RiskLevelMedium   RiskLevel = "medium"
	RiskLevelHigh     RiskLevel = "high"
	RiskLevelCritical RiskLevel = "critical"
)

// LevelForScore maps a 0..100 score onto its band. Lower bounds are inclusive.
func LevelForScore(score int) RiskLevel {
	switch {
	case score < 25:
		return RiskLevelLow
	case score < 50:
		return RiskLevelMedium
	case score < 75:
		return RiskLevelHigh
	default:
		return RiskLevelCritical
	}
}

type RiskScoreResult struct {
	Score           int               `json:"score"`
	Level           RiskLevel         `json:"level"`
	Factors         NormalizedFactors `json:"factors"`
	Recommendations []string          `json:"recommendations"`
}

// MetricsSnapshot is a RiskFactors value captured for an account at a point in time.
type MetricsSnapshot struct {
	AccountID  string      `json:"accountId"`
	CapturedAt time.Time   `json:"capturedAt"`
	Factors    RiskFactors `json:"factors"`
}

// RiskHistoryEntry is one point of an account's risk time series.
type RiskHistoryEntry struct {
	AccountID  string    `json:"accountId"`
	Score      int       `json:"score"`
	Level      RiskLevel `json:"level"`
	AlertCount int       `json:"alertCount"`
	RecordedAt time.Time `json:"recordedAt"`
}

// Evaluation is the outcome of running one snapshot through the full pipeline.
type Evaluation struct {
	AccountID   string          `json:"accountId"`
	Risk        RiskScoreResult `json:"risk"`
	Alerts      []AlertRecord   `json:"alerts"`
	Notified    int             `json:"notified"`
	EvaluatedAt time.Time       `json:"evaluatedAt"`
}

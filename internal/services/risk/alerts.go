package risk

import (
	"fmt"
	"math"
	"sort"

	"SellerGuard/internal/domain/models"
)

// alertInput is what every rule sees. Previous is nil when no earlier snapshot exists.
type alertInput struct {
	Current  models.RiskFactors
	Previous *models.RiskFactors
	Score    models.RiskScoreResult
}

// alertRule raises at most one alert. Rules are independent of each other.
type alertRule struct {
	Type  models.AlertType
	Fires func(in alertInput) bool
	Build func(in alertInput) models.AlertConfig
}

// alertRules is evaluated in order; ties after sorting keep this order.
var alertRules = []alertRule{
	{
		Type:  models.AlertCancellationSpike,
		Fires: func(in alertInput) bool { return in.Current.CancellationRate > 5 },
		Build: func(in alertInput) models.AlertConfig {
			v := in.Current.CancellationRate
			return models.AlertConfig{
				Type:           models.AlertCancellationSpike,
				Severity:       band(v, 10, 7),
				Title:          "High cancellation rate",
				Description:    fmt.Sprintf("Your cancellation rate is %.1f%%. The marketplace penalizes accounts above 5%% cancellations.", v),
				ActionRequired: "Review your inventory and shipping times. Do not publish products without available stock.",
				Threshold:      5,
				CurrentValue:   v,
			}
		},
	},
	{
		Type:  models.AlertClaimIncrease,
		Fires: func(in alertInput) bool { return in.Current.ClaimRate > 2 },
		Build: func(in alertInput) models.AlertConfig {
			v := in.Current.ClaimRate
			return models.AlertConfig{
				Type:           models.AlertClaimIncrease,
				Severity:       band(v, 5, 3),
				Title:          "Claims are increasing",
				Description:    fmt.Sprintf("Your claim rate is %.1f%%. This can hurt your reputation and visibility.", v),
				ActionRequired: "Answer every claim within 24 hours. Check whether some claims can be excluded under marketplace rules.",
				Threshold:      2,
				CurrentValue:   v,
			}
		},
	},
	{
		Type:  models.AlertStockCritical,
		Fires: func(in alertInput) bool { return in.Current.StockIssues > 3 },
		Build: func(in alertInput) models.AlertConfig {
			v := in.Current.StockIssues
			sev := models.SeverityMedium
			if v > 5 {
				sev = models.SeverityHigh
			}
			return models.AlertConfig{
				Type:           models.AlertStockCritical,
				Severity:       sev,
				Title:          "Inventory problems detected",
				Description:    fmt.Sprintf("You have %g listings out of stock or paused.", v),
				ActionRequired: "Do not pause listings. Set stock to 0 instead to keep your search ranking.",
				Threshold:      3,
				CurrentValue:   v,
			}
		},
	},
	{
		Type:  models.AlertResponseDelay,
		Fires: func(in alertInput) bool { return in.Current.ResponseTime > 240 },
		Build: func(in alertInput) models.AlertConfig {
			v := in.Current.ResponseTime
			return models.AlertConfig{
				Type:           models.AlertResponseDelay,
				Severity:       band(v, 1440, 480),
				Title:          "Slow response time",
				Description:    fmt.Sprintf("Your average response time is %.0f hours.", math.Round(v/60)),
				ActionRequired: "Answer messages in under 2 hours. Enable push notifications in the marketplace app.",
				Threshold:      240,
				CurrentValue:   v,
			}
		},
	},
	{
		Type:  models.AlertReputationDrop,
		Fires: func(in alertInput) bool { return in.Current.ReputationScore < 60 },
		Build: func(in alertInput) models.AlertConfig {
			v := in.Current.ReputationScore
			sev := models.SeverityHigh
			if v < 40 {
				sev = models.SeverityCritical
			}
			return models.AlertConfig{
				Type:           models.AlertReputationDrop,
				Severity:       sev,
				Title:          "Reputation at risk",
				Description:    fmt.Sprintf("Your reputation score is %g/100. This lowers your visibility in search.", v),
				ActionRequired: "Focus on the buyer experience: fast shipping, good communication and problem resolution.",
				Threshold:      60,
				CurrentValue:   v,
			}
		},
	},
	{
		// Fires on the aggregate score, so it may repeat what the other rules already raised.
		Type: models.AlertSuspensionRisk,
		Fires: func(in alertInput) bool {
			return in.Score.Level == models.RiskLevelCritical || in.Score.Score > 80
		},
		Build: func(in alertInput) models.AlertConfig {
			return models.AlertConfig{
				Type:           models.AlertSuspensionRisk,
				Severity:       models.SeverityCritical,
				Title:          "CRITICAL SUSPENSION RISK",
				Description:    fmt.Sprintf("Your risk score is %d/100. Several factors are in the danger zone.", in.Score.Score),
				ActionRequired: "IMMEDIATE ACTION REQUIRED: review every active alert and take corrective steps today.",
				Threshold:      80,
				CurrentValue:   float64(in.Score.Score),
			}
		},
	},
	{
		Type: models.AlertQualityIssue,
		Fires: func(in alertInput) bool {
			if in.Previous == nil {
				return false
			}
			dCancel, dClaim := trend(in)
			return dCancel > 2 || dClaim > 1
		},
		Build: func(in alertInput) models.AlertConfig {
			dCancel, dClaim := trend(in)
			return models.AlertConfig{
				Type:           models.AlertQualityIssue,
				Severity:       models.SeverityHigh,
				Title:          "Negative trend detected",
				Description:    fmt.Sprintf("Your metrics are getting worse: cancellations %+.1f%%, claims %+.1f%%.", dCancel, dClaim),
				ActionRequired: "Find the root cause: did your supplier change? Are there logistics problems? Act before it escalates.",
				Threshold:      0,
				CurrentValue:   dCancel + dClaim,
			}
		},
	},
}

// GenerateAlerts runs every rule against the snapshot and returns the raised alerts
// sorted critical first. previous may be nil.
func GenerateAlerts(current models.RiskFactors, previous *models.RiskFactors, score models.RiskScoreResult) []models.AlertConfig {
	in := alertInput{Current: current, Previous: previous, Score: score}
	alerts := make([]models.AlertConfig, 0, len(alertRules))
	for _, r := range alertRules {
		if r.Fires(in) {
			alerts = append(alerts, r.Build(in))
		}
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		return alerts[i].Severity.Rank() < alerts[j].Severity.Rank()
	})
	return alerts
}

// band picks critical above crit, high above high, medium otherwise.
func band(v, crit, high float64) models.Severity {
	switch {
	case v > crit:
		return models.SeverityCritical
	case v > high:
		return models.SeverityHigh
	default:
		return models.SeverityMedium
	}
}

func trend(in alertInput) (cancellation, claims float64) {
	return in.Current.CancellationRate - in.Previous.CancellationRate,
		in.Current.ClaimRate - in.Previous.ClaimRate
}

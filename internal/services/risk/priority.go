package risk

import "SellerGuard/internal/domain/models"

const (
	maxPriority       = 100
	maxHistoryBonus   = 30
	historyBonusPerOp = 10
)

var severityBase = map[models.Severity]int{
	models.SeverityCritical: 100,
	models.SeverityHigh:     75,
	models.SeverityMedium:   50,
	models.SeverityLow:      25,
}

// ComputeAlertPriority returns the 0..100 urgency of an alert. history may be nil.
func ComputeAlertPriority(alert models.AlertConfig, history *models.UserHistory) int {
	p := severityBase[alert.Severity]

	// A zero threshold (trend alerts) has no meaningful excess ratio.
	if alert.Threshold != 0 {
		ratio := alert.CurrentValue / alert.Threshold
		switch {
		case ratio > 2:
			p += 20
		case ratio > 1.5:
			p += 10
		}
	}

	if history != nil && history.IgnoredSimilarAlerts > 0 {
		p += historyBonus(history.IgnoredSimilarAlerts)
	}

	return max(0, min(p, maxPriority))
}

// historyBonus compares before multiplying so huge counts cannot overflow.
func historyBonus(ignored int) int {
	if ignored >= maxHistoryBonus/historyBonusPerOp {
		return maxHistoryBonus
	}
	return ignored * historyBonusPerOp
}

// RankAlerts attaches a priority to every alert, keeping the input order.
// ignored maps an alert type to how many similar alerts the seller ignored.
func RankAlerts(alerts []models.AlertConfig, ignored map[models.AlertType]int) []models.RankedAlert {
	out := make([]models.RankedAlert, 0, len(alerts))
	for _, a := range alerts {
		var h *models.UserHistory
		if n, ok := ignored[a.Type]; ok {
			h = &models.UserHistory{IgnoredSimilarAlerts: n}
		}
		out = append(out, models.RankedAlert{Alert: a, Priority: ComputeAlertPriority(a, h)})
	}
	return out
}

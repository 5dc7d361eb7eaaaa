package service

import "SellerGuard/internal/domain/models"

// RiskScorer reduces a metrics snapshot to a risk score.
type RiskScorer interface {
	Score(f models.RiskFactors) models.RiskScoreResult
}

// AlertGenerator raises alerts for a snapshot. previous may be nil.
type AlertGenerator interface {
	Alerts(current models.RiskFactors, previous *models.RiskFactors, score models.RiskScoreResult) []models.AlertConfig
}

// PriorityRanker assigns a 0..100 urgency to an alert. history may be nil.
type PriorityRanker interface {
	Priority(alert models.AlertConfig, history *models.UserHistory) int
}

// RiskEngine bundles the three pure stages of an evaluation.
type RiskEngine interface {
	RiskScorer
	AlertGenerator
	PriorityRanker
}

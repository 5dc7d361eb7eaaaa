package risk

import (
	"SellerGuard/internal/domain/models"
	domsvc "SellerGuard/internal/domain/service"
)

// Engine exposes the package functions behind the domain interfaces.
// It holds no state and is safe for concurrent use.
type Engine struct{}

func NewEngine() *Engine { return &Engine{} }

func (Engine) Score(f models.RiskFactors) models.RiskScoreResult { return ComputeRiskScore(f) }

func (Engine) Alerts(current models.RiskFactors, previous *models.RiskFactors, score models.RiskScoreResult) []models.AlertConfig {
	return GenerateAlerts(current, previous, score)
}

func (Engine) Priority(alert models.AlertConfig, history *models.UserHistory) int {
	return ComputeAlertPriority(alert, history)
}

var _ domsvc.RiskEngine = (*Engine)(nil)

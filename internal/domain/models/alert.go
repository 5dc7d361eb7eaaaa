package models

import "time"

type AlertType string

const (
	AlertCancellationSpike AlertType = "cancellation_spike"
	AlertClaimIncrease     AlertType = "claim_increase"
	AlertStockCritical     AlertType = "stock_critical"
	AlertResponseDelay     AlertType = "response_delay"
	AlertQualityIssue      AlertType = "quality_issue"
	AlertReputationDrop    AlertType = "reputation_drop"
	AlertSuspensionRisk    AlertType = "suspension_risk"
	// AlertFiscalWarning is reserved for alerts raised by external compliance
	// checks. The rule engine never produces it.
	AlertFiscalWarning AlertType = "fiscal_warning"
)

// Valid reports whether t is one of the eight known alert types.
func (t AlertType) Valid() bool {
	switch t {
	case AlertCancellationSpike, AlertClaimIncrease, AlertStockCritical, AlertResponseDelay,
		AlertQualityIssue, AlertReputationDrop, AlertSuspensionRisk, AlertFiscalWarning:
		return true
	}
	return false
}

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Rank orders severities: critical 0, high 1, medium 2, low 3. Unknown values sort last.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	}
	return 4
}

// AtLeast reports whether s is as severe as min or more.
func (s Severity) AtLeast(min Severity) bool {
	return s.Rank() <= min.Rank()
}

func (s Severity) Valid() bool {
	return s.Rank() < 4
}

// AlertConfig is one raised alert. It is a value object built fresh on every evaluation.
type AlertConfig struct {
	Type           AlertType `json:"type" validate:"required"`
	Severity       Severity  `json:"severity" validate:"required,oneof=low medium high critical"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	ActionRequired string    `json:"actionRequired"`
	Threshold      float64   `json:"threshold" validate:"finite"`
	CurrentValue   float64   `json:"currentValue" validate:"finite"`
}

// UserHistory carries how the seller reacted to similar alerts before.
type UserHistory struct {
	IgnoredSimilarAlerts int `json:"ignoredSimilarAlerts"`
}

// RankedAlert pairs an alert with its computed priority.
type RankedAlert struct {
	Alert    AlertConfig `json:"alert"`
	Priority int         `json:"priority"`
}

type AlertStatus string

const (
	AlertStatusActive       AlertStatus = "active"
	AlertStatusAcknowledged AlertStatus = "acknowledged"
	AlertStatusResolved     AlertStatus = "resolved"
	AlertStatusIgnored      AlertStatus = "ignored"
)

func (s AlertStatus) Valid() bool {
	switch s {
	case AlertStatusActive, AlertStatusAcknowledged, AlertStatusResolved, AlertStatusIgnored:
		return true
	}
	return false
}

// CanTransitionTo reports whether an alert in status s may move to next.
// Resolved and ignored are terminal.
func (s AlertStatus) CanTransitionTo(next AlertStatus) bool {
	switch s {
	case AlertStatusActive:
		return next == AlertStatusAcknowledged || next == AlertStatusResolved || next == AlertStatusIgnored
	case AlertStatusAcknowledged:
		return next == AlertStatusResolved || next == AlertStatusIgnored
	}
	return false
}

// AlertRecord is a persisted alert with identity and lifecycle state.
type AlertRecord struct {
	ID        string      `json:"id"`
	AccountID string      `json:"accountId"`
	Alert     AlertConfig `json:"alert"`
	Priority  int         `json:"priority"`
	Status    AlertStatus `json:"status"`
	CreatedAt time.Time   `json:"createdAt"`
	UpdatedAt time.Time   `json:"updatedAt"`
}

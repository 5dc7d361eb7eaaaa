package models

// Requests for risk HTTP endpoints. Defined in domain for consistency and reuse.

type AlertsRequest struct {
	Current  RiskFactors  `json:"current"`
	Previous *RiskFactors `json:"previous,omitempty"`
}

type PriorityRequest struct {
	Alert                AlertConfig `json:"alert"`
	IgnoredSimilarAlerts int         `json:"ignoredSimilarAlerts" validate:"gte=0"`
}

// EvaluateRequest takes the account from the path and the factors from the body.
type EvaluateRequest struct {
	Account string `param:"account" json:"-" validate:"required"`
	RiskFactors
}

type HistoryRequest struct {
	Account string `param:"account" validate:"required"`
	Days    int    `query:"days" default:"30" validate:"gte=1,lte=365"`
}

type ListAlertsRequest struct {
	Account string `param:"account" validate:"required"`
	Status  string `query:"status" validate:"omitempty,oneof=active acknowledged resolved ignored"`
	Limit   int    `query:"limit" default:"50" validate:"gte=1,lte=500"`
}

type UpdateStatusRequest struct {
	ID     string `param:"id" validate:"required"`
	Status string `json:"status" validate:"required,oneof=acknowledged resolved ignored"`
}

type PreferencesRequest struct {
	Account         string `param:"account" validate:"required"`
	EmailEnabled    bool   `json:"emailEnabled"`
	WhatsAppEnabled bool   `json:"whatsappEnabled"`
	AlertThreshold  string `json:"alertThreshold" validate:"omitempty,oneof=all medium high critical"`
}

type AccountRequest struct {
	Account string `param:"account" validate:"required"`
}

type RuleRequest struct {
	Type string `param:"type" validate:"required"`
}

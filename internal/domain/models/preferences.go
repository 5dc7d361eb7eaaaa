package models

// AlertThreshold is the minimum severity a seller wants to be notified about.
type AlertThreshold string

const (
	ThresholdAll      AlertThreshold = "all"
	ThresholdMedium   AlertThreshold = "medium"
	ThresholdHigh     AlertThreshold = "high"
	ThresholdCritical AlertThreshold = "critical"
)

// MinSeverity returns the lowest severity routed under t.
func (t AlertThreshold) MinSeverity() Severity {
	switch t {
	case ThresholdAll:
		return SeverityLow
	case ThresholdMedium:
		return SeverityMedium
	case ThresholdCritical:
		return SeverityCritical
	default:
		return SeverityHigh
	}
}

type Channel string

const (
	ChannelEmail    Channel = "email"
	ChannelWhatsApp Channel = "whatsapp"
)

type NotificationPreferences struct {
	AccountID       string         `json:"accountId"`
	EmailEnabled    bool           `json:"emailEnabled"`
	WhatsAppEnabled bool           `json:"whatsappEnabled"`
	AlertThreshold  AlertThreshold `json:"alertThreshold"`
}

// Channels returns the enabled delivery channels.
func (p NotificationPreferences) Channels() []Channel {
	var out []Channel
	if p.EmailEnabled {
		out = append(out, ChannelEmail)
	}
	if p.WhatsAppEnabled {
		out = append(out, ChannelWhatsApp)
	}
	return out
}

// AlertNotification is the message published for a routed alert.
type AlertNotification struct {
	AccountID string      `json:"accountId"`
	AlertID   string      `json:"alertId"`
	Alert     AlertConfig `json:"alert"`
	Priority  int         `json:"priority"`
	Channels  []Channel   `json:"channels"`
}

package usecase

import (
	"context"
	"fmt"

	"SellerGuard/internal/domain/models"
	domrepo "SellerGuard/internal/domain/repository"
)

// NotificationGate decides which alerts reach a seller and through which channels.
type NotificationGate struct {
	prefs            domrepo.PreferenceStore
	defaultThreshold models.AlertThreshold
}

func NewNotificationGate(prefs domrepo.PreferenceStore, defaultThreshold models.AlertThreshold) *NotificationGate {
	if defaultThreshold == "" {
		defaultThreshold = models.ThresholdHigh
	}
	return &NotificationGate{prefs: prefs, defaultThreshold: defaultThreshold}
}

// Defaults are used for accounts that never saved preferences: email only, default threshold.
func (g *NotificationGate) Defaults(accountID string) models.NotificationPreferences {
	return models.NotificationPreferences{
		AccountID:      accountID,
		EmailEnabled:   true,
		AlertThreshold: g.defaultThreshold,
	}
}

// Preferences returns the stored preferences or the defaults.
func (g *NotificationGate) Preferences(ctx context.Context, accountID string) (models.NotificationPreferences, error) {
	if accountID == "" {
		return models.NotificationPreferences{}, models.ErrAccountRequired
	}
	p, err := g.prefs.GetPreferences(ctx, accountID)
	if err != nil {
		return models.NotificationPreferences{}, fmt.Errorf("load preferences: %w", err)
	}
	if p == nil {
		return g.Defaults(accountID), nil
	}
	return *p, nil
}

func (g *NotificationGate) SavePreferences(ctx context.Context, p models.NotificationPreferences) (models.NotificationPreferences, error) {
	if p.AccountID == "" {
		return p, models.ErrAccountRequired
	}
	if p.AlertThreshold == "" {
		p.AlertThreshold = g.defaultThreshold
	}
	if err := g.prefs.SavePreferences(ctx, p); err != nil {
		return p, err
	}
	return p, nil
}

// Route builds the notification for rec, or reports false when the alert is below the
// seller's threshold or no channel is enabled.
func (g *NotificationGate) Route(p models.NotificationPreferences, rec models.AlertRecord) (models.AlertNotification, bool) {
	if !rec.Alert.Severity.AtLeast(p.AlertThreshold.MinSeverity()) {
		return models.AlertNotification{}, false
	}
	channels := p.Channels()
	if len(channels) == 0 {
		return models.AlertNotification{}, false
	}
	return models.AlertNotification{
		AccountID: rec.AccountID,
		AlertID:   rec.ID,
		Alert:     rec.Alert,
		Priority:  rec.Priority,
		Channels:  channels,
	}, true
}

package usecase

import (
	"context"
	"testing"

	"SellerGuard/internal/domain/models"
	"SellerGuard/internal/repository"
	"SellerGuard/pkg/cache"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGate(t *testing.T, def models.AlertThreshold) *NotificationGate {
	t.Helper()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	return NewNotificationGate(repository.NewCacheAlertStore(mc), def)
}

func TestNotificationGate_Route(t *testing.T) {
	g := newGate(t, models.ThresholdHigh)
	rec := func(sev models.Severity) models.AlertRecord {
		return models.AlertRecord{ID: "a1", AccountID: "42", Priority: 80, Alert: models.AlertConfig{Type: models.AlertClaimIncrease, Severity: sev}}
	}

	cases := []struct {
		threshold models.AlertThreshold
		severity  models.Severity
		routed    bool
	}{
		{models.ThresholdAll, models.SeverityLow, true},
		{models.ThresholdMedium, models.SeverityLow, false},
		{models.ThresholdMedium, models.SeverityMedium, true},
		{models.ThresholdHigh, models.SeverityMedium, false},
		{models.ThresholdHigh, models.SeverityHigh, true},
		{models.ThresholdHigh, models.SeverityCritical, true},
		{models.ThresholdCritical, models.SeverityHigh, false},
		{models.ThresholdCritical, models.SeverityCritical, true},
	}
	for _, tc := range cases {
		p := models.NotificationPreferences{AccountID: "42", EmailEnabled: true, AlertThreshold: tc.threshold}
		n, ok := g.Route(p, rec(tc.severity))
		assert.Equal(t, tc.routed, ok, "threshold %s severity %s", tc.threshold, tc.severity)
		if ok {
			assert.Equal(t, "a1", n.AlertID)
			assert.Equal(t, 80, n.Priority)
		}
	}

	_, ok := g.Route(models.NotificationPreferences{AlertThreshold: models.ThresholdAll}, rec(models.SeverityCritical))
	assert.False(t, ok, "no channel enabled")
}

func TestNotificationGate_Preferences(t *testing.T) {
	ctx := context.Background()
	g := newGate(t, models.ThresholdMedium)

	p, err := g.Preferences(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, models.NotificationPreferences{AccountID: "42", EmailEnabled: true, AlertThreshold: models.ThresholdMedium}, p)

	saved, err := g.SavePreferences(ctx, models.NotificationPreferences{AccountID: "42", WhatsAppEnabled: true})
	require.NoError(t, err)
	assert.Equal(t, models.ThresholdMedium, saved.AlertThreshold)

	p, err = g.Preferences(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, saved, p)

	_, err = g.Preferences(ctx, "")
	assert.ErrorIs(t, err, models.ErrAccountRequired)
}

func TestNotificationGate_DefaultThreshold(t *testing.T) {
	g := NewNotificationGate(nil, "")
	assert.Equal(t, models.ThresholdHigh, g.Defaults("1").AlertThreshold)
}

package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"

	"SellerGuard/internal/domain/models"
)

func TestComputeAlertPriority(t *testing.T) {
	cases := []struct {
		name    string
		alert   models.AlertConfig
		history *models.UserHistory
		want    int
	}{
		{
			name:  "critical far over threshold clamps",
			alert: models.AlertConfig{Severity: models.SeverityCritical, Threshold: 5, CurrentValue: 11},
			want:  100,
		},
		{
			name:  "zero threshold skips excess bonus",
			alert: models.AlertConfig{Severity: models.SeverityMedium, Threshold: 0, CurrentValue: 3},
			want:  50,
		},
		{
			name:  "ratio above 1.5",
			alert: models.AlertConfig{Severity: models.SeverityMedium, Threshold: 2, CurrentValue: 3.2},
			want:  60,
		},
		{
			name:  "ratio above 2",
			alert: models.AlertConfig{Severity: models.SeverityHigh, Threshold: 3, CurrentValue: 6.5},
			want:  95,
		},
		{
			name:  "ratio exactly 2 gets the smaller bonus",
			alert: models.AlertConfig{Severity: models.SeverityLow, Threshold: 2, CurrentValue: 4},
			want:  35,
		},
		{
			name:    "history bonus",
			alert:   models.AlertConfig{Severity: models.SeverityMedium, Threshold: 5, CurrentValue: 6},
			history: &models.UserHistory{IgnoredSimilarAlerts: 2},
			want:    70,
		},
		{
			name:    "history bonus capped at 30",
			alert:   models.AlertConfig{Severity: models.SeverityLow, Threshold: 5, CurrentValue: 6},
			history: &models.UserHistory{IgnoredSimilarAlerts: 9},
			want:    55,
		},
		{
			name:    "zero ignored adds nothing",
			alert:   models.AlertConfig{Severity: models.SeverityHigh, Threshold: 5, CurrentValue: 6},
			history: &models.UserHistory{},
			want:    75,
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ComputeAlertPriority(tc.alert, tc.history))
		})
	}
}

func TestComputeAlertPriority_AlwaysInRange(t *testing.T) {
	severities := []models.Severity{models.SeverityLow, models.SeverityMedium, models.SeverityHigh, models.SeverityCritical}
	values := []float64{-100, -1, 0, 0.5, 1, 3, 10, 1e9, math.MaxFloat64}
	for _, sev := range severities {
		for _, th := range values {
			for _, cur := range values {
				for _, ignored := range []int{-3, 0, 1, 5, 100, math.MaxInt64/10 + 1, math.MaxInt} {
					p := ComputeAlertPriority(
						models.AlertConfig{Severity: sev, Threshold: th, CurrentValue: cur},
						&models.UserHistory{IgnoredSimilarAlerts: ignored},
					)
					assert.GreaterOrEqual(t, p, 0)
					assert.LessOrEqual(t, p, 100)
				}
			}
		}
	}
}

func TestComputeAlertPriority_MoreIgnoredNeverLowers(t *testing.T) {
	alert := models.AlertConfig{Severity: models.SeverityHigh, Threshold: 3, CurrentValue: 4}
	prev := ComputeAlertPriority(alert, nil)
	for _, ignored := range []int{1, 2, 3, 4, 1000, math.MaxInt64/10 + 1, math.MaxInt} {
		p := ComputeAlertPriority(alert, &models.UserHistory{IgnoredSimilarAlerts: ignored})
		assert.GreaterOrEqual(t, p, prev, "ignored=%d", ignored)
		prev = p
	}
	assert.Equal(t, 100, prev)
}

func TestRankAlerts_UsesIgnoredCounts(t *testing.T) {
	alerts := []models.AlertConfig{
		{Type: models.AlertStockCritical, Severity: models.SeverityMedium, Threshold: 3, CurrentValue: 4},
		{Type: models.AlertClaimIncrease, Severity: models.SeverityMedium, Threshold: 2, CurrentValue: 2.5},
	}
	ranked := RankAlerts(alerts, map[models.AlertType]int{models.AlertClaimIncrease: 1})

	assert.Equal(t, 50, ranked[0].Priority)
	assert.Equal(t, 60, ranked[1].Priority)
	assert.Equal(t, models.AlertClaimIncrease, ranked[1].Alert.Type)
}

func TestExplainRule(t *testing.T) {
	assert.Contains(t, ExplainRule("pause_penalty"), "stock set to 0")
	assert.True(t, IsKnownRule("shadowban"))
	assert.False(t, IsKnownRule("made_up"))
	assert.Equal(t, unknownRuleExplanation, ExplainRule("made_up"))
}

package usecase

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"SellerGuard/internal/domain/models"
	"SellerGuard/internal/repository"
	"SellerGuard/internal/services/risk"
	applogger "SellerGuard/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluate_SaturatedAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	ev, err := f.eval.Evaluate(ctx, models.MetricsSnapshot{AccountID: "42", Factors: saturated()})
	require.NoError(t, err)

	assert.Equal(t, 94, ev.Risk.Score)
	assert.Equal(t, models.RiskLevelCritical, ev.Risk.Level)
	require.Len(t, ev.Alerts, 6)
	for _, r := range ev.Alerts {
		assert.Equal(t, models.AlertStatusActive, r.Status)
		assert.Equal(t, "42", r.AccountID)
		assert.Equal(t, f.clock, r.CreatedAt)
		assert.NotEmpty(t, r.ID)
		assert.GreaterOrEqual(t, r.Priority, 0)
		assert.LessOrEqual(t, r.Priority, 100)
	}
	assert.Equal(t, models.AlertCancellationSpike, ev.Alerts[0].Alert.Type)

	// default preferences: email only, threshold high
	assert.Equal(t, 6, ev.Notified)
	assert.Len(t, f.notifier.sent, 6)
	assert.Equal(t, []models.Channel{models.ChannelEmail}, f.notifier.sent[0].Channels)
	assert.Len(t, f.hub.recs, 6)

	stored, err := f.alerts.ListAlerts(ctx, "42", models.AlertStatusActive, 0)
	require.NoError(t, err)
	assert.Len(t, stored, 6)

	hist, err := f.store.History(ctx, "42", f.clock.Add(-time.Hour))
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, 94, hist[0].Score)
	assert.Equal(t, 6, hist[0].AlertCount)

	snap, err := f.store.LatestSnapshot(ctx, "42")
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, f.clock, snap.CapturedAt, "missing capture time defaults to now")
}

func TestEvaluate_HealthyAccountRaisesNothing(t *testing.T) {
	f := newFixture(t)

	ev, err := f.eval.Evaluate(context.Background(), models.MetricsSnapshot{AccountID: "42", Factors: healthyFactors()})
	require.NoError(t, err)
	assert.Equal(t, 0, ev.Risk.Score)
	assert.Empty(t, ev.Alerts)
	assert.Zero(t, ev.Notified)
	assert.Empty(t, f.notifier.sent)
}

func TestEvaluate_UsesPreviousSnapshotForTrend(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	first := healthyFactors()
	first.CancellationRate = 3
	_, err := f.eval.Evaluate(ctx, models.MetricsSnapshot{AccountID: "42", CapturedAt: f.clock.Add(-time.Hour), Factors: first})
	require.NoError(t, err)

	second := healthyFactors()
	second.CancellationRate = 6
	ev, err := f.eval.Evaluate(ctx, models.MetricsSnapshot{AccountID: "42", CapturedAt: f.clock, Factors: second})
	require.NoError(t, err)

	types := make([]models.AlertType, 0, len(ev.Alerts))
	for _, r := range ev.Alerts {
		types = append(types, r.Alert.Type)
	}
	assert.Equal(t, []models.AlertType{models.AlertQualityIssue, models.AlertCancellationSpike}, types)
}

func TestEvaluate_OlderSnapshotIsNotATrendBaseline(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	newer := healthyFactors()
	newer.CancellationRate = 1
	_, err := f.eval.Evaluate(ctx, models.MetricsSnapshot{AccountID: "42", CapturedAt: f.clock, Factors: newer})
	require.NoError(t, err)

	late := healthyFactors()
	late.CancellationRate = 6
	ev, err := f.eval.Evaluate(ctx, models.MetricsSnapshot{AccountID: "42", CapturedAt: f.clock.Add(-time.Hour), Factors: late})
	require.NoError(t, err)
	for _, r := range ev.Alerts {
		assert.NotEqual(t, models.AlertQualityIssue, r.Alert.Type)
	}
}

func TestEvaluate_IgnoredAlertsRaisePriority(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	stockOnly := healthyFactors()
	stockOnly.StockIssues = 5

	ev, err := f.eval.Evaluate(ctx, models.MetricsSnapshot{AccountID: "42", Factors: stockOnly})
	require.NoError(t, err)
	require.Len(t, ev.Alerts, 1)
	before := ev.Alerts[0].Priority

	_, err = f.alerts.IncrementIgnored(ctx, "42", models.AlertStockCritical)
	require.NoError(t, err)

	ev, err = f.eval.Evaluate(ctx, models.MetricsSnapshot{AccountID: "42", Factors: stockOnly})
	require.NoError(t, err)
	require.Len(t, ev.Alerts, 1)
	assert.Equal(t, min(before+10, 100), ev.Alerts[0].Priority)
}

func TestEvaluate_RespectsPreferences(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.gate.SavePreferences(ctx, models.NotificationPreferences{
		AccountID:       "42",
		WhatsAppEnabled: true,
		AlertThreshold:  models.ThresholdCritical,
	})
	require.NoError(t, err)

	ev, err := f.eval.Evaluate(ctx, models.MetricsSnapshot{AccountID: "42", Factors: saturated()})
	require.NoError(t, err)
	assert.Equal(t, 5, ev.Notified, "the high stock alert stays below a critical threshold")
	for _, n := range f.notifier.sent {
		assert.Equal(t, []models.Channel{models.ChannelWhatsApp}, n.Channels)
		assert.Equal(t, models.SeverityCritical, n.Alert.Severity)
	}
	assert.Equal(t, 5, f.metrics.sent["whatsapp"])
}

func TestEvaluate_NotifierFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("broker down")

	ev, err := f.eval.Evaluate(context.Background(), models.MetricsSnapshot{AccountID: "42", Factors: saturated()})
	require.NoError(t, err)
	assert.Len(t, ev.Alerts, 6)
	assert.Zero(t, ev.Notified)
	assert.Equal(t, 6, f.metrics.errorCount("notify"))
}

func TestEvaluate_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	_, err := f.eval.Evaluate(ctx, models.MetricsSnapshot{Factors: saturated()})
	assert.ErrorIs(t, err, models.ErrAccountRequired)

	bad := healthyFactors()
	bad.ClaimRate = math.NaN()
	_, err = f.eval.Evaluate(ctx, models.MetricsSnapshot{AccountID: "42", Factors: bad})
	assert.ErrorIs(t, err, models.ErrInvalidFactors)

	snap, _ := f.store.LatestSnapshot(ctx, "42")
	assert.Nil(t, snap, "rejected snapshots are not persisted")
}

func TestEvaluateBatch_KeepsOrder(t *testing.T) {
	f := newFixture(t)
	snaps := []models.MetricsSnapshot{
		{AccountID: "a", Factors: saturated()},
		{AccountID: "b", Factors: healthyFactors()},
		{AccountID: "c", Factors: saturated()},
	}

	out, err := f.eval.EvaluateBatch(context.Background(), snaps)
	require.NoError(t, err)
	require.Len(t, out, 3)
	assert.Equal(t, []string{"a", "b", "c"}, []string{out[0].AccountID, out[1].AccountID, out[2].AccountID})
	assert.Equal(t, 0, out[1].Risk.Score)
}

func TestEvaluateBatch_ReportsFailure(t *testing.T) {
	f := newFixture(t)
	_, err := f.eval.EvaluateBatch(context.Background(), []models.MetricsSnapshot{
		{AccountID: "a", Factors: healthyFactors()},
		{Factors: healthyFactors()},
	})
	assert.ErrorIs(t, err, models.ErrAccountRequired)
}

// historyDown fails the first AppendHistory call.
type historyDown struct {
	*repository.MemoryRiskStore
	failed bool
}

func (s *historyDown) AppendHistory(ctx context.Context, e models.RiskHistoryEntry) error {
	if !s.failed {
		s.failed = true
		return errors.New("clickhouse timeout")
	}
	return s.MemoryRiskStore.AppendHistory(ctx, e)
}

func TestEvaluate_RetryAfterPartialWriteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	store := &historyDown{MemoryRiskStore: f.store}
	eval := NewRiskEvaluator(risk.NewEngine(), store, f.alerts, f.gate, nil, f.metrics, applogger.Nop(),
		WithClock(func() time.Time { return f.clock }))

	snap := models.MetricsSnapshot{AccountID: "42", CapturedAt: f.clock, Factors: saturated()}
	_, err := eval.Evaluate(ctx, snap)
	require.Error(t, err)
	assert.Equal(t, 1, f.metrics.errorCount("evaluate_append_history"))
	latest, err := f.store.LatestSnapshot(ctx, "42")
	require.NoError(t, err)
	assert.Nil(t, latest, "baseline is written last")

	ev, err := eval.Evaluate(ctx, snap)
	require.NoError(t, err)
	require.Len(t, ev.Alerts, 6)

	stored, err := f.alerts.ListAlerts(ctx, "42", "", 0)
	require.NoError(t, err)
	assert.Len(t, stored, 6, "re-saved alerts keep their ids")
	for _, r := range ev.Alerts {
		assert.Equal(t, alertID(snap, r.Alert.Type), r.ID)
	}

	hist, err := f.store.History(ctx, "42", f.clock.Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

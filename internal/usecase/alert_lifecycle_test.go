package usecase

import (
	"context"
	"testing"

	"SellerGuard/internal/domain/models"
	"SellerGuard/internal/repository"
	applogger "SellerGuard/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedAlerts(t *testing.T, f *fixture) []models.AlertRecord {
	t.Helper()
	ev, err := f.eval.Evaluate(context.Background(), models.MetricsSnapshot{AccountID: "42", Factors: saturated()})
	require.NoError(t, err)
	return ev.Alerts
}

func TestAlertLifecycle_Transitions(t *testing.T) {
	cases := []struct {
		name  string
		steps []models.AlertStatus
		ok    bool
	}{
		{"acknowledge", []models.AlertStatus{models.AlertStatusAcknowledged}, true},
		{"resolve directly", []models.AlertStatus{models.AlertStatusResolved}, true},
		{"acknowledge then resolve", []models.AlertStatus{models.AlertStatusAcknowledged, models.AlertStatusResolved}, true},
		{"acknowledge then ignore", []models.AlertStatus{models.AlertStatusAcknowledged, models.AlertStatusIgnored}, true},
		{"resolved is terminal", []models.AlertStatus{models.AlertStatusResolved, models.AlertStatusAcknowledged}, false},
		{"ignored is terminal", []models.AlertStatus{models.AlertStatusIgnored, models.AlertStatusResolved}, false},
		{"no way back to active", []models.AlertStatus{models.AlertStatusActive}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			id := seedAlerts(t, f)[0].ID
			lc := NewAlertLifecycle(f.alerts, nil, applogger.Nop())

			var err error
			for _, s := range tc.steps {
				if _, err = lc.UpdateStatus(context.Background(), id, s); err != nil {
					break
				}
			}
			if tc.ok {
				require.NoError(t, err)
				rec, gerr := f.alerts.GetAlert(context.Background(), id)
				require.NoError(t, gerr)
				assert.Equal(t, tc.steps[len(tc.steps)-1], rec.Status)
				return
			}
			assert.ErrorIs(t, err, models.ErrInvalidStatusTransition)
		})
	}
}

func TestAlertLifecycle_IgnoreFeedsCounter(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alerts := seedAlerts(t, f)
	hub := &fakeBroadcaster{}
	lc := NewAlertLifecycle(f.alerts, hub, applogger.Nop())

	var stockID string
	for _, r := range alerts {
		if r.Alert.Type == models.AlertStockCritical {
			stockID = r.ID
		}
	}
	require.NotEmpty(t, stockID)

	rec, err := lc.UpdateStatus(ctx, stockID, models.AlertStatusIgnored)
	require.NoError(t, err)
	assert.Equal(t, models.AlertStatusIgnored, rec.Status)

	counts, err := f.alerts.IgnoredCounts(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, map[models.AlertType]int{models.AlertStockCritical: 1}, counts)
	require.Len(t, hub.recs, 1)
	assert.Equal(t, models.AlertStatusIgnored, hub.recs[0].Status)
}

// slowAlertStore holds GetAlert until release is closed.
type slowAlertStore struct {
	*repository.CacheAlertStore
	entered chan struct{}
	release chan struct{}
}

func (s *slowAlertStore) GetAlert(ctx context.Context, id string) (*models.AlertRecord, error) {
	s.entered <- struct{}{}
	<-s.release
	return s.CacheAlertStore.GetAlert(ctx, id)
}

func TestAlertLifecycle_ConcurrentIgnoreCountsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	id := seedAlerts(t, f)[0].ID
	store := &slowAlertStore{CacheAlertStore: f.alerts, entered: make(chan struct{}, 1), release: make(chan struct{})}
	lc := NewAlertLifecycle(store, nil, applogger.Nop())

	first := make(chan error, 1)
	go func() {
		_, err := lc.UpdateStatus(ctx, id, models.AlertStatusIgnored)
		first <- err
	}()
	<-store.entered

	_, err := lc.UpdateStatus(ctx, id, models.AlertStatusIgnored)
	assert.ErrorIs(t, err, models.ErrAlertBusy)

	close(store.release)
	require.NoError(t, <-first)

	counts, err := f.alerts.IgnoredCounts(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, 1, counts[seedType(t, f, id)])

	// lock released: a second ignore is now a rejected transition
	_, err = lc.UpdateStatus(ctx, id, models.AlertStatusIgnored)
	assert.ErrorIs(t, err, models.ErrInvalidStatusTransition)
}

func seedType(t *testing.T, f *fixture, id string) models.AlertType {
	t.Helper()
	rec, err := f.alerts.GetAlert(context.Background(), id)
	require.NoError(t, err)
	return rec.Alert.Type
}

func TestAlertLifecycle_UnknownAlert(t *testing.T) {
	f := newFixture(t)
	lc := NewAlertLifecycle(f.alerts, nil, nil)
	_, err := lc.UpdateStatus(context.Background(), "missing", models.AlertStatusResolved)
	assert.ErrorIs(t, err, models.ErrAlertNotFound)
}

func TestAlertLifecycle_List(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	alerts := seedAlerts(t, f)
	lc := NewAlertLifecycle(f.alerts, nil, nil)

	_, err := lc.UpdateStatus(ctx, alerts[0].ID, models.AlertStatusResolved)
	require.NoError(t, err)

	active, err := lc.ListActive(ctx, "42", 0)
	require.NoError(t, err)
	assert.Len(t, active, 5)

	all, err := lc.List(ctx, "42", "", 2)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	_, err = lc.List(ctx, "", "", 10)
	assert.ErrorIs(t, err, models.ErrAccountRequired)
}

package middleware

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"SellerGuard/internal/domain/models"
	"SellerGuard/internal/repository"
	"SellerGuard/internal/services/risk"
	"SellerGuard/internal/usecase"
	"SellerGuard/pkg/cache"
	applogger "SellerGuard/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopMetrics struct {
	mu     sync.Mutex
	errors map[string]int
}

func (m *nopMetrics) RecordEvaluation(string)         {}
func (m *nopMetrics) RecordAlert(string, string)      {}
func (m *nopMetrics) RecordNotification(string)       {}
func (m *nopMetrics) RecordLastScore(string, float64) {}
func (m *nopMetrics) RecordLatency(string, float64)   {}
func (m *nopMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.errors == nil {
		m.errors = map[string]int{}
	}
	m.errors[kind]++
}

func (m *nopMetrics) count(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

// flakyEvaluator fails the first failN calls.
type flakyEvaluator struct {
	mu      sync.Mutex
	failN   int
	calls   int
	ok      []string
	block   chan struct{}
	entered chan struct{}
}

func (e *flakyEvaluator) Evaluate(_ context.Context, snap models.MetricsSnapshot) (*models.Evaluation, error) {
	if e.block != nil {
		e.entered <- struct{}{}
		<-e.block
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.calls <= e.failN {
		return nil, errors.New("store unavailable")
	}
	e.ok = append(e.ok, snap.AccountID)
	return &models.Evaluation{AccountID: snap.AccountID}, nil
}

func (e *flakyEvaluator) succeeded() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.ok)
}

func newLocker(t *testing.T) *repository.CacheAlertStore {
	t.Helper()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })
	return repository.NewCacheAlertStore(mc)
}

func snapshot(account string) models.MetricsSnapshot {
	return models.MetricsSnapshot{AccountID: account, CapturedAt: time.Now().UTC(), Factors: models.RiskFactors{ReputationScore: 80}}
}

func TestSyncPipeline_SubmitEvaluates(t *testing.T) {
	ev := &flakyEvaluator{}
	p := NewSyncPipeline(ev, newLocker(t), &nopMetrics{})

	require.NoError(t, p.Submit(context.Background(), snapshot("42")))
	assert.Equal(t, 1, ev.succeeded())
	assert.Equal(t, 0, p.BufferLen())
}

func TestSyncPipeline_Validation(t *testing.T) {
	ev := &flakyEvaluator{}
	m := &nopMetrics{}
	p := NewSyncPipeline(ev, newLocker(t), m)

	assert.ErrorIs(t, p.Submit(context.Background(), models.MetricsSnapshot{}), models.ErrAccountRequired)

	bad := snapshot("42")
	bad.Factors.ClaimRate = math.NaN()
	assert.ErrorIs(t, p.Submit(context.Background(), bad), models.ErrInvalidFactors)
	assert.Equal(t, 2, m.count("pipeline_validate"))
	assert.Zero(t, ev.calls)
}

func TestSyncPipeline_RetriesBufferedSnapshot(t *testing.T) {
	ev := &flakyEvaluator{failN: 2}
	p := NewSyncPipeline(ev, newLocker(t), &nopMetrics{}, WithRetry(5, time.Millisecond))

	err := p.Submit(context.Background(), snapshot("42"))
	require.Error(t, err)
	assert.Equal(t, 1, p.BufferLen())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	assert.Eventually(t, func() bool { return ev.succeeded() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestSyncPipeline_DropsAfterRetryMax(t *testing.T) {
	ev := &flakyEvaluator{failN: 100}
	m := &nopMetrics{}
	p := NewSyncPipeline(ev, newLocker(t), m, WithRetry(2, time.Millisecond))

	require.Error(t, p.Submit(context.Background(), snapshot("42")))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p.Start(ctx)
	defer p.Stop()

	assert.Eventually(t, func() bool { return m.count("pipeline_drop") == 1 }, 2*time.Second, 5*time.Millisecond)
	assert.Zero(t, ev.succeeded())
}

func TestSyncPipeline_RejectsOverlappingSync(t *testing.T) {
	ev := &flakyEvaluator{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	p := NewSyncPipeline(ev, newLocker(t), &nopMetrics{})

	first := make(chan error, 1)
	go func() { first <- p.Submit(context.Background(), snapshot("42")) }()
	<-ev.entered

	err := p.Submit(context.Background(), snapshot("42"))
	assert.ErrorIs(t, err, models.ErrSyncInProgress)
	assert.Equal(t, 0, p.BufferLen(), "a conflict is not buffered")

	close(ev.block)
	require.NoError(t, <-first)
	ev.block = nil
	require.NoError(t, p.Submit(context.Background(), snapshot("42")), "lock released after the first sync")
}

func TestSyncPipeline_Throttles(t *testing.T) {
	ev := &flakyEvaluator{}
	m := &nopMetrics{}
	p := NewSyncPipeline(ev, newLocker(t), m, WithMaxRPS(1))

	require.NoError(t, p.Submit(context.Background(), snapshot("42")))
	require.NoError(t, p.Submit(context.Background(), snapshot("42")))
	require.NoError(t, p.Submit(context.Background(), snapshot("7")))

	assert.Equal(t, 2, ev.succeeded())
	assert.Equal(t, 1, m.count("pipeline_throttle"))
}

func TestSyncPipeline_StopIsIdempotent(t *testing.T) {
	p := NewSyncPipeline(&flakyEvaluator{}, newLocker(t), &nopMetrics{})
	p.Stop()
	p.Start(context.Background())
	p.Stop()
	p.Stop()
}

func TestSyncPipeline_RestartAfterStop(t *testing.T) {
	ev := &flakyEvaluator{failN: 1}
	p := NewSyncPipeline(ev, newLocker(t), &nopMetrics{}, WithRetry(3, time.Millisecond))

	p.Start(context.Background())
	p.Stop()
	p.Start(context.Background())
	defer p.Stop()

	require.Error(t, p.Submit(context.Background(), snapshot("42")))
	assert.Eventually(t, func() bool { return ev.succeeded() == 1 }, 2*time.Second, 5*time.Millisecond)
}

func TestSyncPipeline_StopDiscardsBuffer(t *testing.T) {
	p := NewSyncPipeline(&flakyEvaluator{failN: 100}, newLocker(t), &nopMetrics{})
	require.Error(t, p.Submit(context.Background(), snapshot("42")))
	require.Equal(t, 1, p.BufferLen())

	p.Start(context.Background())
	p.Stop()
	assert.Equal(t, 0, p.BufferLen())
}

// downAlertStore fails the next failN SaveAlerts calls.
type downAlertStore struct {
	*repository.CacheAlertStore
	mu    sync.Mutex
	failN int
}

func (s *downAlertStore) SaveAlerts(ctx context.Context, records []models.AlertRecord) error {
	s.mu.Lock()
	if s.failN > 0 {
		s.failN--
		s.mu.Unlock()
		return errors.New("redis down")
	}
	s.mu.Unlock()
	return s.CacheAlertStore.SaveAlerts(ctx, records)
}

func TestSyncPipeline_RetryKeepsTrendBaseline(t *testing.T) {
	ctx := context.Background()
	alerts := &downAlertStore{CacheAlertStore: newLocker(t)}
	store := repository.NewMemoryRiskStore()
	gate := usecase.NewNotificationGate(alerts, models.ThresholdHigh)
	eval := usecase.NewRiskEvaluator(risk.NewEngine(), store, alerts, gate, nil, &nopMetrics{}, applogger.Nop())
	p := NewSyncPipeline(eval, alerts, &nopMetrics{}, WithRetry(3, time.Millisecond))

	t0 := time.Date(2026, 3, 15, 11, 0, 0, 0, time.UTC)
	require.NoError(t, p.Submit(ctx, models.MetricsSnapshot{
		AccountID: "42", CapturedAt: t0,
		Factors: models.RiskFactors{CancellationRate: 3, ReputationScore: 100},
	}))

	alerts.failN = 1
	require.Error(t, p.Submit(ctx, models.MetricsSnapshot{
		AccountID: "42", CapturedAt: t0.Add(time.Hour),
		Factors: models.RiskFactors{CancellationRate: 6, ReputationScore: 100},
	}))
	latest, err := store.LatestSnapshot(ctx, "42")
	require.NoError(t, err)
	assert.Equal(t, t0, latest.CapturedAt, "a failed evaluation does not move the baseline")

	p.Start(ctx)
	defer p.Stop()
	require.Eventually(t, func() bool {
		latest, err := store.LatestSnapshot(ctx, "42")
		return err == nil && latest.CapturedAt.Equal(t0.Add(time.Hour))
	}, 2*time.Second, 5*time.Millisecond)

	recs, err := alerts.ListAlerts(ctx, "42", "", 0)
	require.NoError(t, err)
	types := make([]models.AlertType, 0, len(recs))
	for _, r := range recs {
		types = append(types, r.Alert.Type)
	}
	assert.ElementsMatch(t, []models.AlertType{models.AlertQualityIssue, models.AlertCancellationSpike}, types)

	hist, err := store.History(ctx, "42", t0.Add(-time.Hour))
	require.NoError(t, err)
	assert.Len(t, hist, 2)
}

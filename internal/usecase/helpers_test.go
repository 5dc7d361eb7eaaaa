package usecase

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"SellerGuard/internal/domain/models"
	"SellerGuard/internal/repository"
	"SellerGuard/internal/services/risk"
	"SellerGuard/pkg/cache"
	applogger "SellerGuard/pkg/logger"
)

type fakeMetrics struct {
	mu     sync.Mutex
	errors map[string]int
	levels map[string]int
	sent   map[string]int
}

func newFakeMetrics() *fakeMetrics {
	return &fakeMetrics{errors: map[string]int{}, levels: map[string]int{}, sent: map[string]int{}}
}

func (m *fakeMetrics) RecordEvaluation(level string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.levels[level]++
}
func (m *fakeMetrics) RecordAlert(string, string) {}
func (m *fakeMetrics) RecordNotification(channel string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent[channel]++
}
func (m *fakeMetrics) RecordError(kind string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[kind]++
}
func (m *fakeMetrics) RecordLastScore(string, float64) {}
func (m *fakeMetrics) RecordLatency(string, float64)   {}

func (m *fakeMetrics) errorCount(kind string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.errors[kind]
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []models.AlertNotification
	err  error
}

func (n *fakeNotifier) Notify(_ context.Context, msg models.AlertNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, msg)
	return nil
}

func (n *fakeNotifier) Close() error { return nil }

type fakeBroadcaster struct {
	mu   sync.Mutex
	recs []models.AlertRecord
}

func (b *fakeBroadcaster) BroadcastAlert(rec models.AlertRecord) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.recs = append(b.recs, rec)
}

type fixture struct {
	store    *repository.MemoryRiskStore
	alerts   *repository.CacheAlertStore
	gate     *NotificationGate
	notifier *fakeNotifier
	hub      *fakeBroadcaster
	metrics  *fakeMetrics
	eval     *RiskEvaluator
	clock    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	mc := cache.NewMemoryCache()
	t.Cleanup(func() { _ = mc.Close() })

	f := &fixture{
		store:    repository.NewMemoryRiskStore(),
		alerts:   repository.NewCacheAlertStore(mc),
		notifier: &fakeNotifier{},
		hub:      &fakeBroadcaster{},
		metrics:  newFakeMetrics(),
		clock:    time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC),
	}
	f.gate = NewNotificationGate(f.alerts, models.ThresholdHigh)

	f.eval = NewRiskEvaluator(risk.NewEngine(), f.store, f.alerts, f.gate, f.notifier, f.metrics, applogger.Nop(),
		WithBroadcaster(f.hub),
		WithClock(func() time.Time { return f.clock }),
		WithIDGenerator(func(snap models.MetricsSnapshot, t models.AlertType) string {
			return fmt.Sprintf("%s-%d-%s", snap.AccountID, snap.CapturedAt.UnixMilli(), t)
		}),
	)
	return f
}

func saturated() models.RiskFactors {
	return models.RiskFactors{
		CancellationRate: 12,
		ClaimRate:        6,
		ResponseTime:     1500,
		StockIssues:      8,
		ReputationScore:  20,
		LateResponses:    6,
		PausedListings:   12,
	}
}

func healthyFactors() models.RiskFactors {
	return models.RiskFactors{ReputationScore: 100}
}

package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"SellerGuard/internal/domain/models"
	applogger "SellerGuard/pkg/logger"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	stats map[string]models.MarketplaceStats
}

func (s *fakeSource) FetchStats(_ context.Context, accountID string) (models.MarketplaceStats, error) {
	st, ok := s.stats[accountID]
	if !ok {
		return models.MarketplaceStats{}, errors.New("404 user not found")
	}
	return st, nil
}

type captureSink struct {
	mu    sync.Mutex
	snaps []models.MetricsSnapshot
}

func (c *captureSink) Submit(_ context.Context, snap models.MetricsSnapshot) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snaps = append(c.snaps, snap)
	return nil
}

func (c *captureSink) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.snaps)
}

func TestSyncCollector_SyncAccount(t *testing.T) {
	fetched := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	src := &fakeSource{stats: map[string]models.MarketplaceStats{
		"42": {
			AccountID:       "42",
			TotalOrders:     200,
			CancelledOrders: 10,
			Claims:          4,
			ReputationLevel: "4_light_green",
			Listings: []models.Listing{
				{ID: "A", Status: "active", AvailableQuantity: 3},
				{ID: "B", Status: "active", AvailableQuantity: 0},
				{ID: "C", Status: "paused", AvailableQuantity: 5},
			},
			ResponseMinutes: []float64{30, 300},
			FetchedAt:       fetched,
		},
	}}
	sink := &captureSink{}
	c := NewSyncCollector(src, sink, newFakeMetrics(), applogger.Nop(), []string{"42"}, time.Minute, 2)

	snap, err := c.SyncAccount(context.Background(), "42")
	require.NoError(t, err)
	assert.Equal(t, fetched, snap.CapturedAt)
	assert.Equal(t, 5.0, snap.Factors.CancellationRate)
	assert.Equal(t, 2.0, snap.Factors.ClaimRate)
	assert.Equal(t, 2.0, snap.Factors.StockIssues)
	assert.Equal(t, 1.0, snap.Factors.PausedListings)
	assert.Equal(t, 1.0, snap.Factors.LateResponses)
	assert.Equal(t, 165.0, snap.Factors.ResponseTime)
	assert.Equal(t, 1, sink.count())

	_, err = c.SyncAccount(context.Background(), "")
	assert.ErrorIs(t, err, models.ErrAccountRequired)
}

func TestSyncCollector_SyncAllJoinsErrors(t *testing.T) {
	src := &fakeSource{stats: map[string]models.MarketplaceStats{
		"1": {AccountID: "1", TotalOrders: 10},
		"2": {AccountID: "2", TotalOrders: 10},
	}}
	sink := &captureSink{}
	m := newFakeMetrics()
	c := NewSyncCollector(src, sink, m, nil, []string{"1", "missing", "2"}, time.Minute, 2)

	err := c.SyncAll(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
	assert.Equal(t, 2, sink.count())
	assert.Equal(t, 1, m.errorCount("sync_fetch"))
}

func TestSyncCollector_RunStopsOnCancel(t *testing.T) {
	src := &fakeSource{stats: map[string]models.MarketplaceStats{"1": {AccountID: "1"}}}
	sink := &captureSink{}
	c := NewSyncCollector(src, sink, newFakeMetrics(), nil, []string{"1"}, 10*time.Millisecond, 1)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	assert.Eventually(t, func() bool { return sink.count() >= 2 }, time.Second, 5*time.Millisecond)
	assert.Error(t, c.Run(ctx), "second Run while running")
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
}

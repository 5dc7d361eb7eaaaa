package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"SellerGuard/internal/domain/models"
	domrepo "SellerGuard/internal/domain/repository"
)

// MemoryRiskStore is an in-memory RiskStore for development and tests.
type MemoryRiskStore struct {
	mu        sync.RWMutex
	snapshots map[string]models.MetricsSnapshot
	history   map[string][]models.RiskHistoryEntry
}

var _ domrepo.RiskStore = (*MemoryRiskStore)(nil)

// NewMemoryRiskStore creates an empty in-memory risk store.
func NewMemoryRiskStore() *MemoryRiskStore {
	return &MemoryRiskStore{
		snapshots: make(map[string]models.MetricsSnapshot),
		history:   make(map[string][]models.RiskHistoryEntry),
	}
}

func (s *MemoryRiskStore) Init(context.Context) error   { return nil }
func (s *MemoryRiskStore) Health(context.Context) error { return nil }
func (s *MemoryRiskStore) Close() error                 { return nil }

func (s *MemoryRiskStore) SaveSnapshot(_ context.Context, snap models.MetricsSnapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// an older snapshot delivered late must not replace a newer baseline
	if cur, ok := s.snapshots[snap.AccountID]; ok && cur.CapturedAt.After(snap.CapturedAt) {
		return nil
	}
	s.snapshots[snap.AccountID] = snap
	return nil
}

func (s *MemoryRiskStore) LatestSnapshot(_ context.Context, accountID string) (*models.MetricsSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, ok := s.snapshots[accountID]
	if !ok {
		return nil, nil
	}
	return &snap, nil
}

// AppendHistory replaces an entry recorded at the same instant, so replays do not duplicate.
func (s *MemoryRiskStore) AppendHistory(_ context.Context, e models.RiskHistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries := s.history[e.AccountID]
	for i := range entries {
		if entries[i].RecordedAt.Equal(e.RecordedAt) {
			entries[i] = e
			return nil
		}
	}
	s.history[e.AccountID] = append(entries, e)
	return nil
}

// History returns entries recorded at or after since, oldest first.
func (s *MemoryRiskStore) History(_ context.Context, accountID string, since time.Time) ([]models.RiskHistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.RiskHistoryEntry, 0, len(s.history[accountID]))
	for _, e := range s.history[accountID] {
		if !e.RecordedAt.Before(since) {
			out = append(out, e)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].RecordedAt.Before(out[j].RecordedAt) })
	return out, nil
}

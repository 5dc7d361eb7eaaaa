package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"SellerGuard/internal/domain/models"
	domrepo "SellerGuard/internal/domain/repository"
	"SellerGuard/pkg/cache"
)

// MaxAlertsPerAccount bounds the per-account alert index.
const MaxAlertsPerAccount = 1000

var alertTypes = []models.AlertType{
	models.AlertCancellationSpike,
	models.AlertClaimIncrease,
	models.AlertStockCritical,
	models.AlertResponseDelay,
	models.AlertQualityIssue,
	models.AlertReputationDrop,
	models.AlertSuspensionRisk,
	models.AlertFiscalWarning,
}

// CacheAlertStore keeps alert records, ignored counters, preferences and sync locks
// in a key/value cache (Redis in production, MemoryCache otherwise).
type CacheAlertStore struct {
	c cache.Service
}

var (
	_ domrepo.AlertStore      = (*CacheAlertStore)(nil)
	_ domrepo.PreferenceStore = (*CacheAlertStore)(nil)
	_ domrepo.SyncLocker      = (*CacheAlertStore)(nil)
	_ domrepo.AlertLocker     = (*CacheAlertStore)(nil)
)

func NewCacheAlertStore(c cache.Service) *CacheAlertStore {
	return &CacheAlertStore{c: c}
}

func alertKey(id string) string {
	return cache.Key("alert", id)
}

func alertIndexKey(accountID string) string {
	return cache.Key("alerts", accountID)
}

func prefsKey(accountID string) string {
	return cache.Key("prefs", accountID)
}

func lockKey(accountID string) string {
	return cache.Key("lock", "sync", accountID)
}

func alertLockKey(id string) string {
	return cache.Key("lock", "alert", id)
}

func ignoredKey(accountID string, t models.AlertType) string {
	return cache.Key("ignored", accountID, string(t))
}

// SaveAlerts stores the records and indexes them newest first, keeping the given order within the batch.
func (s *CacheAlertStore) SaveAlerts(ctx context.Context, records []models.AlertRecord) error {
	if len(records) == 0 {
		return nil
	}
	values := make(map[string]interface{}, len(records))
	byAccount := make(map[string][]string)
	for _, r := range records {
		values[alertKey(r.ID)] = r
		byAccount[r.AccountID] = append(byAccount[r.AccountID], r.ID)
	}
	if err := s.c.MSet(ctx, values, 0); err != nil {
		return fmt.Errorf("save alerts: %w", err)
	}
	for account, ids := range byAccount {
		rev := make([]string, len(ids))
		for i, id := range ids {
			rev[len(ids)-1-i] = id
		}
		if err := s.c.Prepend(ctx, alertIndexKey(account), MaxAlertsPerAccount, rev...); err != nil {
			return fmt.Errorf("index alerts: %w", err)
		}
	}
	return nil
}

func (s *CacheAlertStore) GetAlert(ctx context.Context, id string) (*models.AlertRecord, error) {
	var rec models.AlertRecord
	if err := s.c.Get(ctx, alertKey(id), &rec); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, models.ErrAlertNotFound
		}
		return nil, fmt.Errorf("get alert: %w", err)
	}
	return &rec, nil
}

func (s *CacheAlertStore) UpdateAlert(ctx context.Context, rec models.AlertRecord) error {
	ok, err := s.c.Exists(ctx, alertKey(rec.ID))
	if err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	if !ok {
		return models.ErrAlertNotFound
	}
	if err := s.c.Set(ctx, alertKey(rec.ID), rec, 0); err != nil {
		return fmt.Errorf("update alert: %w", err)
	}
	return nil
}

// ListAlerts returns the account's alerts newest first. An empty status matches all.
func (s *CacheAlertStore) ListAlerts(ctx context.Context, accountID string, status models.AlertStatus, limit int) ([]models.AlertRecord, error) {
	ids, err := s.c.Range(ctx, alertIndexKey(accountID), 0)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}
	if len(ids) == 0 {
		return []models.AlertRecord{}, nil
	}
	// a re-saved batch indexes the same ids again
	seen := make(map[string]struct{}, len(ids))
	keys := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		keys = append(keys, alertKey(id))
	}
	recs, err := cache.MGetTyped[models.AlertRecord](ctx, s.c, keys...)
	if err != nil {
		return nil, fmt.Errorf("list alerts: %w", err)
	}

	out := make([]models.AlertRecord, 0, len(keys))
	for _, k := range keys {
		r, ok := recs[k]
		if !ok || (status != "" && r.Status != status) {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

func (s *CacheAlertStore) IncrementIgnored(ctx context.Context, accountID string, t models.AlertType) (int, error) {
	n, err := s.c.Increment(ctx, ignoredKey(accountID, t))
	if err != nil {
		return 0, fmt.Errorf("increment ignored: %w", err)
	}
	return int(n), nil
}

func (s *CacheAlertStore) IgnoredCounts(ctx context.Context, accountID string) (map[models.AlertType]int, error) {
	keys := make([]string, len(alertTypes))
	for i, t := range alertTypes {
		keys[i] = ignoredKey(accountID, t)
	}
	raw, err := s.c.MGet(ctx, keys...)
	if err != nil {
		return nil, fmt.Errorf("ignored counts: %w", err)
	}
	out := make(map[models.AlertType]int, len(raw))
	for i, t := range alertTypes {
		v, ok := raw[keys[i]]
		if !ok {
			continue
		}
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			out[t] = n
		}
	}
	return out, nil
}

func (s *CacheAlertStore) GetPreferences(ctx context.Context, accountID string) (*models.NotificationPreferences, error) {
	var p models.NotificationPreferences
	if err := s.c.Get(ctx, prefsKey(accountID), &p); err != nil {
		if errors.Is(err, cache.ErrCacheMiss) {
			return nil, nil
		}
		return nil, fmt.Errorf("get preferences: %w", err)
	}
	return &p, nil
}

func (s *CacheAlertStore) SavePreferences(ctx context.Context, p models.NotificationPreferences) error {
	if p.AccountID == "" {
		return models.ErrAccountRequired
	}
	if err := s.c.Set(ctx, prefsKey(p.AccountID), p, 0); err != nil {
		return fmt.Errorf("save preferences: %w", err)
	}
	return nil
}

func (s *CacheAlertStore) TryLock(ctx context.Context, accountID string, ttl time.Duration) (bool, error) {
	return s.c.TryLock(ctx, lockKey(accountID), ttl)
}

func (s *CacheAlertStore) Unlock(ctx context.Context, accountID string) error {
	return s.c.Unlock(ctx, lockKey(accountID))
}

func (s *CacheAlertStore) LockAlert(ctx context.Context, id string, ttl time.Duration) (bool, error) {
	return s.c.TryLock(ctx, alertLockKey(id), ttl)
}

func (s *CacheAlertStore) UnlockAlert(ctx context.Context, id string) error {
	return s.c.Unlock(ctx, alertLockKey(id))
}

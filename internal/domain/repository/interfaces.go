package repository

import (
	"context"
	"time"

	"SellerGuard/internal/domain/models"
)

// SnapshotStore keeps the latest metrics snapshot per account for trend comparison.
type SnapshotStore interface {
	SaveSnapshot(ctx context.Context, s models.MetricsSnapshot) error
	// LatestSnapshot returns nil, nil when the account has no snapshot yet.
	LatestSnapshot(ctx context.Context, accountID string) (*models.MetricsSnapshot, error)
}

// RiskHistoryStore appends and reads the per-account risk time series.
type RiskHistoryStore interface {
	// AppendHistory is idempotent per (account, RecordedAt).
	AppendHistory(ctx context.Context, e models.RiskHistoryEntry) error
	History(ctx context.Context, accountID string, since time.Time) ([]models.RiskHistoryEntry, error)
}

// AlertStore persists alert records and the feedback counters derived from them.
type AlertStore interface {
	// SaveAlerts overwrites records with the same ID.
	SaveAlerts(ctx context.Context, records []models.AlertRecord) error
	GetAlert(ctx context.Context, id string) (*models.AlertRecord, error)
	UpdateAlert(ctx context.Context, rec models.AlertRecord) error
	ListAlerts(ctx context.Context, accountID string, status models.AlertStatus, limit int) ([]models.AlertRecord, error)
	IncrementIgnored(ctx context.Context, accountID string, t models.AlertType) (int, error)
	IgnoredCounts(ctx context.Context, accountID string) (map[models.AlertType]int, error)
}

// PreferenceStore holds per-account notification preferences.
type PreferenceStore interface {
	// GetPreferences returns nil, nil when the account never saved preferences.
	GetPreferences(ctx context.Context, accountID string) (*models.NotificationPreferences, error)
	SavePreferences(ctx context.Context, p models.NotificationPreferences) error
}

// Notifier delivers routed alerts to the notification channels.
type Notifier interface {
	Notify(ctx context.Context, n models.AlertNotification) error
	Close() error
}

// Broadcaster fans evaluated alerts out to live subscribers.
type Broadcaster interface {
	BroadcastAlert(rec models.AlertRecord)
}

// MarketplaceSource fetches raw seller data from the marketplace.
type MarketplaceSource interface {
	FetchStats(ctx context.Context, accountID string) (models.MarketplaceStats, error)
}

// SyncLocker guards against concurrent syncs of the same account.
type SyncLocker interface {
	// TryLock returns false when the account is already locked.
	TryLock(ctx context.Context, accountID string, ttl time.Duration) (bool, error)
	Unlock(ctx context.Context, accountID string) error
}

// AlertLocker serializes status changes of one alert across instances.
type AlertLocker interface {
	LockAlert(ctx context.Context, id string, ttl time.Duration) (bool, error)
	UnlockAlert(ctx context.Context, id string) error
}

type Metrics interface {
	RecordEvaluation(level string)
	RecordAlert(alertType, severity string)
	RecordNotification(channel string)
	RecordError(kind string)
	RecordLastScore(accountID string, score float64)
	RecordLatency(op string, seconds float64)
}

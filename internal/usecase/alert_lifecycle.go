package usecase

import (
	"context"
	"fmt"
	"time"

	"SellerGuard/internal/domain/models"
	domrepo "SellerGuard/internal/domain/repository"
	applogger "SellerGuard/pkg/logger"
)

const alertLockTTL = 10 * time.Second

// AlertLifecycle moves alerts through active, acknowledged, resolved and ignored.
// Ignoring an alert feeds the per-type counter that raises the priority of later
// alerts of that type.
type AlertLifecycle struct {
	alerts      domrepo.AlertStore
	locker      domrepo.AlertLocker
	broadcaster domrepo.Broadcaster
	l           *applogger.Logger
	now         func() time.Time
}

// NewAlertLifecycle serializes status changes per alert when alerts also implements
// domrepo.AlertLocker.
func NewAlertLifecycle(alerts domrepo.AlertStore, broadcaster domrepo.Broadcaster, l *applogger.Logger) *AlertLifecycle {
	if l == nil {
		l = applogger.Nop()
	}
	locker, _ := alerts.(domrepo.AlertLocker)
	return &AlertLifecycle{alerts: alerts, locker: locker, broadcaster: broadcaster, l: l, now: time.Now}
}

// UpdateStatus applies one transition. A concurrent change of the same alert fails
// with models.ErrAlertBusy.
func (a *AlertLifecycle) UpdateStatus(ctx context.Context, id string, next models.AlertStatus) (*models.AlertRecord, error) {
	if a.locker != nil {
		ok, err := a.locker.LockAlert(ctx, id, alertLockTTL)
		if err != nil {
			return nil, fmt.Errorf("lock alert: %w", err)
		}
		if !ok {
			return nil, models.ErrAlertBusy
		}
		defer func() {
			uctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := a.locker.UnlockAlert(uctx, id); err != nil {
				a.l.Warn("alert lock release failed", applogger.String("alert_id", id), applogger.Error(err))
			}
		}()
	}

	rec, err := a.alerts.GetAlert(ctx, id)
	if err != nil {
		return nil, err
	}
	if !rec.Status.CanTransitionTo(next) {
		return nil, fmt.Errorf("%w: %s -> %s", models.ErrInvalidStatusTransition, rec.Status, next)
	}

	rec.Status = next
	rec.UpdatedAt = a.now().UTC()
	if err := a.alerts.UpdateAlert(ctx, *rec); err != nil {
		return nil, err
	}

	if next == models.AlertStatusIgnored {
		n, err := a.alerts.IncrementIgnored(ctx, rec.AccountID, rec.Alert.Type)
		if err != nil {
			// the status change already landed; a missed count only softens one future priority
			a.l.Warn("ignored counter not updated",
				applogger.String("account", rec.AccountID),
				applogger.String("type", string(rec.Alert.Type)),
				applogger.Error(err))
		} else {
			a.l.Debug("alert ignored",
				applogger.String("account", rec.AccountID),
				applogger.String("type", string(rec.Alert.Type)),
				applogger.Int("ignored_total", n))
		}
	}
	if a.broadcaster != nil {
		a.broadcaster.BroadcastAlert(*rec)
	}
	return rec, nil
}

// List returns an account's alerts newest first. An empty status matches every status.
func (a *AlertLifecycle) List(ctx context.Context, accountID string, status models.AlertStatus, limit int) ([]models.AlertRecord, error) {
	if accountID == "" {
		return nil, models.ErrAccountRequired
	}
	return a.alerts.ListAlerts(ctx, accountID, status, limit)
}

// ListActive returns the account's active alerts newest first.
func (a *AlertLifecycle) ListActive(ctx context.Context, accountID string, limit int) ([]models.AlertRecord, error) {
	return a.List(ctx, accountID, models.AlertStatusActive, limit)
}

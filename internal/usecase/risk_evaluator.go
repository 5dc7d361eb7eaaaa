package usecase

import (
	"context"
	"fmt"
	"time"

	"SellerGuard/internal/domain/models"
	domrepo "SellerGuard/internal/domain/repository"
	domsvc "SellerGuard/internal/domain/service"
	"SellerGuard/internal/services/features"
	applogger "SellerGuard/pkg/logger"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// SnapshotEvaluator runs one metrics snapshot through the risk pipeline.
type SnapshotEvaluator interface {
	Evaluate(ctx context.Context, snap models.MetricsSnapshot) (*models.Evaluation, error)
}

// RiskEvaluator scores a snapshot, raises and persists alerts, and routes notifications.
type RiskEvaluator struct {
	engine      domsvc.RiskEngine
	store       domrepo.RiskStore
	alerts      domrepo.AlertStore
	gate        *NotificationGate
	notifier    domrepo.Notifier
	broadcaster domrepo.Broadcaster
	metrics     domrepo.Metrics
	l           *applogger.Logger
	now         func() time.Time
	newID       func(snap models.MetricsSnapshot, t models.AlertType) string
	concurrency int
}

var _ SnapshotEvaluator = (*RiskEvaluator)(nil)

type EvaluatorOption func(*RiskEvaluator)

// WithBroadcaster pushes every new alert to live subscribers.
func WithBroadcaster(b domrepo.Broadcaster) EvaluatorOption {
	return func(e *RiskEvaluator) { e.broadcaster = b }
}

func WithClock(now func() time.Time) EvaluatorOption {
	return func(e *RiskEvaluator) { e.now = now }
}

// WithIDGenerator overrides alert IDs. IDs must be stable for a given snapshot and
// alert type so that a retried evaluation overwrites its own records.
func WithIDGenerator(fn func(snap models.MetricsSnapshot, t models.AlertType) string) EvaluatorOption {
	return func(e *RiskEvaluator) { e.newID = fn }
}

// WithConcurrency bounds EvaluateBatch fan-out.
func WithConcurrency(n int) EvaluatorOption {
	return func(e *RiskEvaluator) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

func NewRiskEvaluator(
	engine domsvc.RiskEngine,
	store domrepo.RiskStore,
	alerts domrepo.AlertStore,
	gate *NotificationGate,
	notifier domrepo.Notifier,
	metrics domrepo.Metrics,
	l *applogger.Logger,
	opts ...EvaluatorOption,
) *RiskEvaluator {
	e := &RiskEvaluator{
		engine:      engine,
		store:       store,
		alerts:      alerts,
		gate:        gate,
		notifier:    notifier,
		metrics:     metrics,
		l:           l,
		now:         time.Now,
		newID:       alertID,
		concurrency: 8,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.l == nil {
		e.l = applogger.Nop()
	}
	return e
}

// Evaluate scores snap against the account's previous snapshot and persists the outcome.
// Notification failures are logged and counted; they do not fail the evaluation.
func (e *RiskEvaluator) Evaluate(ctx context.Context, snap models.MetricsSnapshot) (*models.Evaluation, error) {
	start := time.Now()
	if snap.AccountID == "" {
		return nil, models.ErrAccountRequired
	}
	if err := features.ValidateFactors(snap.Factors); err != nil {
		e.metrics.RecordError("evaluate_validate")
		return nil, err
	}
	now := e.now().UTC()
	if snap.CapturedAt.IsZero() {
		snap.CapturedAt = now
	}
	// stores keep millisecond precision
	snap.CapturedAt = snap.CapturedAt.UTC().Truncate(time.Millisecond)

	prev, err := e.store.LatestSnapshot(ctx, snap.AccountID)
	if err != nil {
		e.metrics.RecordError("evaluate_load_previous")
		return nil, fmt.Errorf("load previous snapshot: %w", err)
	}
	var previous *models.RiskFactors
	if prev != nil && prev.CapturedAt.Before(snap.CapturedAt) {
		previous = &prev.Factors
	}

	result := e.engine.Score(snap.Factors)
	raised := e.engine.Alerts(snap.Factors, previous, result)

	ignored := map[models.AlertType]int{}
	if len(raised) > 0 {
		if ignored, err = e.alerts.IgnoredCounts(ctx, snap.AccountID); err != nil {
			e.metrics.RecordError("evaluate_ignored_counts")
			return nil, fmt.Errorf("load ignored counts: %w", err)
		}
	}

	records := make([]models.AlertRecord, 0, len(raised))
	for _, a := range raised {
		records = append(records, models.AlertRecord{
			ID:        e.newID(snap, a.Type),
			AccountID: snap.AccountID,
			Alert:     a,
			Priority:  e.engine.Priority(a, &models.UserHistory{IgnoredSimilarAlerts: ignored[a.Type]}),
			Status:    models.AlertStatusActive,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}

	// The snapshot is the next trend baseline, so it is written last: a retry after
	// any earlier failure still compares against the old baseline.
	if err := e.alerts.SaveAlerts(ctx, records); err != nil {
		e.metrics.RecordError("evaluate_save_alerts")
		return nil, err
	}
	if err := e.store.AppendHistory(ctx, models.RiskHistoryEntry{
		AccountID:  snap.AccountID,
		Score:      result.Score,
		Level:      result.Level,
		AlertCount: len(records),
		RecordedAt: snap.CapturedAt,
	}); err != nil {
		e.metrics.RecordError("evaluate_append_history")
		return nil, err
	}
	if err := e.store.SaveSnapshot(ctx, snap); err != nil {
		e.metrics.RecordError("evaluate_save_snapshot")
		return nil, err
	}

	eval := &models.Evaluation{
		AccountID:   snap.AccountID,
		Risk:        result,
		Alerts:      records,
		EvaluatedAt: now,
	}
	eval.Notified = e.notify(ctx, snap.AccountID, records)

	for _, r := range records {
		e.metrics.RecordAlert(string(r.Alert.Type), string(r.Alert.Severity))
		if e.broadcaster != nil {
			e.broadcaster.BroadcastAlert(r)
		}
	}
	e.metrics.RecordEvaluation(string(result.Level))
	e.metrics.RecordLastScore(snap.AccountID, float64(result.Score))
	e.metrics.RecordLatency("evaluate", time.Since(start).Seconds())

	e.l.Info("account evaluated",
		applogger.String("account", snap.AccountID),
		applogger.Int("score", result.Score),
		applogger.String("level", string(result.Level)),
		applogger.Int("alerts", len(records)),
		applogger.Int("notified", eval.Notified))
	return eval, nil
}

var alertNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("sellerguard/alerts"))

func alertID(snap models.MetricsSnapshot, t models.AlertType) string {
	name := snap.AccountID + "|" + snap.CapturedAt.UTC().Format(time.RFC3339Nano) + "|" + string(t)
	return uuid.NewSHA1(alertNamespace, []byte(name)).String()
}

func (e *RiskEvaluator) notify(ctx context.Context, accountID string, records []models.AlertRecord) int {
	if len(records) == 0 || e.notifier == nil {
		return 0
	}
	prefs, err := e.gate.Preferences(ctx, accountID)
	if err != nil {
		e.metrics.RecordError("notify_preferences")
		e.l.Warn("notification preferences unavailable", applogger.String("account", accountID), applogger.Error(err))
		return 0
	}

	sent := 0
	for _, r := range records {
		n, ok := e.gate.Route(prefs, r)
		if !ok {
			continue
		}
		if err := e.notifier.Notify(ctx, n); err != nil {
			e.metrics.RecordError("notify")
			e.l.Error("alert notification failed",
				applogger.String("account", accountID),
				applogger.String("alert_id", r.ID),
				applogger.Error(err))
			continue
		}
		for _, c := range n.Channels {
			e.metrics.RecordNotification(string(c))
		}
		sent++
	}
	return sent
}

// EvaluateBatch evaluates snapshots concurrently. Results keep input order.
// The first failure cancels the remaining evaluations.
func (e *RiskEvaluator) EvaluateBatch(ctx context.Context, snaps []models.MetricsSnapshot) ([]*models.Evaluation, error) {
	out := make([]*models.Evaluation, len(snaps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.concurrency)
	for i := range snaps {
		i := i
		g.Go(func() error {
			ev, err := e.Evaluate(gctx, snaps[i])
			if err != nil {
				return fmt.Errorf("evaluate %s: %w", snaps[i].AccountID, err)
			}
			out[i] = ev
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"SellerGuard/internal/domain/models"
	domrepo "SellerGuard/internal/domain/repository"
	"SellerGuard/internal/services/features"
	applogger "SellerGuard/pkg/logger"

	"golang.org/x/sync/errgroup"
)

// Submitter accepts a collected snapshot for evaluation.
type Submitter interface {
	Submit(ctx context.Context, snap models.MetricsSnapshot) error
}

// SyncCollector periodically pulls marketplace data for the configured accounts.
type SyncCollector struct {
	source      domrepo.MarketplaceSource
	sink        Submitter
	metrics     domrepo.Metrics
	l           *applogger.Logger
	accounts    []string
	interval    time.Duration
	concurrency int
	now         func() time.Time
	running     atomic.Bool
}

func NewSyncCollector(
	source domrepo.MarketplaceSource,
	sink Submitter,
	metrics domrepo.Metrics,
	l *applogger.Logger,
	accounts []string,
	interval time.Duration,
	concurrency int,
) *SyncCollector {
	if l == nil {
		l = applogger.Nop()
	}
	if concurrency < 1 {
		concurrency = 1
	}
	return &SyncCollector{
		source:      source,
		sink:        sink,
		metrics:     metrics,
		l:           l,
		accounts:    accounts,
		interval:    interval,
		concurrency: concurrency,
		now:         time.Now,
	}
}

// Run syncs immediately and then on every interval until ctx is done.
func (s *SyncCollector) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New("sync collector already running")
	}
	defer s.running.Store(false)

	s.l.Info("sync collector started",
		applogger.Int("accounts", len(s.accounts)),
		applogger.Duration("interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		if err := s.SyncAll(ctx); err != nil && ctx.Err() == nil {
			s.l.Warn("sync round finished with errors", applogger.Error(err))
		}
		select {
		case <-ctx.Done():
			s.l.Info("sync collector stopped")
			return nil
		case <-ticker.C:
		}
	}
}

// SyncAll syncs every configured account. One failing account does not stop the others;
// the joined errors are returned.
func (s *SyncCollector) SyncAll(ctx context.Context) error {
	start := time.Now()
	errs := make([]error, len(s.accounts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.concurrency)
	for i, account := range s.accounts {
		i, account := i, account
		g.Go(func() error {
			if _, err := s.SyncAccount(gctx, account); err != nil {
				errs[i] = fmt.Errorf("%s: %w", account, err)
			}
			return nil
		})
	}
	_ = g.Wait()

	s.metrics.RecordLatency("sync_round", time.Since(start).Seconds())
	return errors.Join(errs...)
}

// SyncAccount fetches one account, reduces it to factors and submits the snapshot.
func (s *SyncCollector) SyncAccount(ctx context.Context, accountID string) (models.MetricsSnapshot, error) {
	if accountID == "" {
		return models.MetricsSnapshot{}, models.ErrAccountRequired
	}
	stats, err := s.source.FetchStats(ctx, accountID)
	if err != nil {
		s.metrics.RecordError("sync_fetch")
		return models.MetricsSnapshot{}, fmt.Errorf("fetch marketplace stats: %w", err)
	}

	captured := stats.FetchedAt
	if captured.IsZero() {
		captured = s.now()
	}
	snap := models.MetricsSnapshot{
		AccountID:  accountID,
		CapturedAt: captured.UTC(),
		Factors:    features.ExtractFactors(stats),
	}
	if err := s.sink.Submit(ctx, snap); err != nil {
		return snap, err
	}
	s.l.Debug("account synced",
		applogger.String("account", accountID),
		applogger.Float64("cancellation_rate", snap.Factors.CancellationRate),
		applogger.Float64("claim_rate", snap.Factors.ClaimRate))
	return snap, nil
}

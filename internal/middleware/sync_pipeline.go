package middleware

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"SellerGuard/internal/domain/models"
	domrepo "SellerGuard/internal/domain/repository"
	"SellerGuard/internal/service/ratelimit"
	"SellerGuard/internal/services/features"
	"SellerGuard/internal/usecase"
	applogger "SellerGuard/pkg/logger"
)

// SyncPipeline sits between the marketplace collector and the evaluator.
// It validates snapshots, throttles per account, refuses overlapping syncs of one account
// and buffers failed evaluations for retry while the stores are unavailable.
type SyncPipeline struct {
	eval     usecase.SnapshotEvaluator
	locker   domrepo.SyncLocker
	metrics  domrepo.Metrics
	l        *applogger.Logger
	limiter  *ratelimit.Limiter
	lockTTL  time.Duration
	bufSize  int
	retryMax int
	backoff  time.Duration
	bufCh    chan pending
	stopCh   chan struct{}
	done     chan struct{}
	started  bool
	mu       sync.Mutex
}

type pending struct {
	snap     models.MetricsSnapshot
	attempts int
}

type PipelineOption func(*SyncPipeline)

// WithMaxRPS limits accepted snapshots per account per second.
func WithMaxRPS(n int) PipelineOption {
	return func(p *SyncPipeline) {
		if n > 0 {
			p.limiter = ratelimit.New(float64(n), n)
		}
	}
}

// WithBufferSize sets the retry buffer size.
func WithBufferSize(n int) PipelineOption {
	return func(p *SyncPipeline) {
		if n > 0 {
			p.bufSize = n
		}
	}
}

// WithRetry sets how many buffered retries a snapshot gets and the initial backoff.
func WithRetry(max int, backoff time.Duration) PipelineOption {
	return func(p *SyncPipeline) {
		if max >= 0 {
			p.retryMax = max
		}
		if backoff > 0 {
			p.backoff = backoff
		}
	}
}

// WithLockTTL bounds how long a crashed sync can hold an account.
func WithLockTTL(d time.Duration) PipelineOption {
	return func(p *SyncPipeline) {
		if d > 0 {
			p.lockTTL = d
		}
	}
}

func WithPipelineLogger(l *applogger.Logger) PipelineOption {
	return func(p *SyncPipeline) {
		if l != nil {
			p.l = l
		}
	}
}

// NewSyncPipeline creates a new pipeline.
func NewSyncPipeline(eval usecase.SnapshotEvaluator, locker domrepo.SyncLocker, metrics domrepo.Metrics, opts ...PipelineOption) *SyncPipeline {
	p := &SyncPipeline{
		eval:     eval,
		locker:   locker,
		metrics:  metrics,
		l:        applogger.Nop(),
		lockTTL:  5 * time.Minute,
		bufSize:  100,
		retryMax: 3,
		backoff:  50 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(p)
	}
	p.bufCh = make(chan pending, p.bufSize)
	return p
}

// Start launches the background retry loop. A stopped pipeline may be started again.
func (p *SyncPipeline) Start(ctx context.Context) {
	p.mu.Lock()
	if p.started {
		p.mu.Unlock()
		return
	}
	p.started = true
	stopCh, done := make(chan struct{}), make(chan struct{})
	p.stopCh, p.done = stopCh, done
	p.mu.Unlock()

	go func() {
		defer close(done)
		backoff := p.backoff
		for {
			select {
			case <-stopCh:
				return
			case <-ctx.Done():
				return
			case item := <-p.bufCh:
				item.attempts++
				if err := p.run(ctx, item.snap); err != nil {
					p.metrics.RecordError("pipeline_retry")
					if item.attempts >= p.retryMax || isInputError(err) {
						p.metrics.RecordError("pipeline_drop")
						p.l.Error("sync snapshot dropped",
							applogger.String("account", item.snap.AccountID),
							applogger.Int("attempts", item.attempts),
							applogger.Error(err))
						continue
					}
					if backoff < 2*time.Second {
						backoff *= 2
					}
					select {
					case <-time.After(backoff):
					case <-stopCh:
						return
					}
					p.enqueue(item)
					continue
				}
				backoff = p.backoff
			}
		}
	}()
}

// Stop stops the retry loop and waits for it to exit. Buffered snapshots are discarded.
func (p *SyncPipeline) Stop() {
	p.mu.Lock()
	if !p.started {
		p.mu.Unlock()
		return
	}
	p.started = false
	stopCh, done := p.stopCh, p.done
	p.mu.Unlock()
	close(stopCh)
	<-done

	if n := p.drain(); n > 0 {
		p.l.Warn("sync pipeline stopped with buffered snapshots", applogger.Int("discarded", n))
	}
}

func (p *SyncPipeline) drain() int {
	n := 0
	for {
		select {
		case <-p.bufCh:
			n++
		default:
			return n
		}
	}
}

// Submit validates snap and evaluates it. A failed evaluation is buffered for retry and
// still reported to the caller.
func (p *SyncPipeline) Submit(ctx context.Context, snap models.MetricsSnapshot) error {
	start := time.Now()
	if snap.AccountID == "" {
		p.metrics.RecordError("pipeline_validate")
		return models.ErrAccountRequired
	}
	if err := features.ValidateFactors(snap.Factors); err != nil {
		p.metrics.RecordError("pipeline_validate")
		return err
	}
	if p.limiter != nil && !p.limiter.Allow(snap.AccountID) {
		p.metrics.RecordError("pipeline_throttle")
		p.l.Debug("sync snapshot throttled", applogger.String("account", snap.AccountID))
		return nil
	}

	if err := p.run(ctx, snap); err != nil {
		if isInputError(err) || errors.Is(err, models.ErrSyncInProgress) {
			return err
		}
		p.metrics.RecordError("pipeline_process")
		p.enqueue(pending{snap: snap})
		return fmt.Errorf("pipeline downstream: %w", err)
	}
	p.metrics.RecordLatency("pipeline_process", time.Since(start).Seconds())
	return nil
}

// BufferLen reports how many snapshots wait for retry.
func (p *SyncPipeline) BufferLen() int {
	return len(p.bufCh)
}

func (p *SyncPipeline) run(ctx context.Context, snap models.MetricsSnapshot) error {
	ok, err := p.locker.TryLock(ctx, snap.AccountID, p.lockTTL)
	if err != nil {
		return fmt.Errorf("acquire sync lock: %w", err)
	}
	if !ok {
		p.metrics.RecordError("pipeline_locked")
		return models.ErrSyncInProgress
	}
	defer func() {
		uctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := p.locker.Unlock(uctx, snap.AccountID); err != nil {
			p.l.Warn("sync lock release failed", applogger.String("account", snap.AccountID), applogger.Error(err))
		}
	}()

	_, err = p.eval.Evaluate(ctx, snap)
	return err
}

func (p *SyncPipeline) enqueue(item pending) {
	select {
	case p.bufCh <- item:
		p.metrics.RecordLatency("pipeline_buffer_depth", float64(len(p.bufCh)))
	default:
		p.metrics.RecordError("pipeline_buffer_full")
	}
}

func isInputError(err error) bool {
	return errors.Is(err, models.ErrInvalidFactors) || errors.Is(err, models.ErrAccountRequired)
}

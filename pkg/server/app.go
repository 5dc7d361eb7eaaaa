package server

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	domrepo "SellerGuard/internal/domain/repository"
	mid "SellerGuard/internal/middleware"
	"SellerGuard/internal/service/realtime"
	"SellerGuard/internal/usecase"
	pkgcache "SellerGuard/pkg/cache"
	"SellerGuard/pkg/config"
	xhttp "SellerGuard/pkg/http"
	pkgkafka "SellerGuard/pkg/kafka"
	applogger "SellerGuard/pkg/logger"
)

// Components are the long-lived parts the App starts and stops.
// Consumer, Collector and Snapshots are nil when their feature is disabled.
type Components struct {
	Store     domrepo.RiskStore
	Cache     pkgcache.Service
	Notifier  domrepo.Notifier
	Consumer  *pkgkafka.Consumer
	Snapshots *usecase.KafkaSnapshotHandler
	Pipeline  *mid.SyncPipeline
	Collector *usecase.SyncCollector
	Hub       *realtime.Hub
	Handlers  []xhttp.Handler
}

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	l          *applogger.Logger
	c          Components
	httpServer *xhttp.Server
	done       chan struct{}
}

// New creates a new App instance with all dependencies.
func New(cfg *config.Config, l *applogger.Logger, c Components) *App {
	if l == nil {
		l = applogger.Nop()
	}
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout),
		xhttp.WithLogger(l),
		xhttp.WithCORSOrigins(cfg.Server.CORSOrigins),
	}
	if cfg.Metrics.Enabled {
		opts = append(opts, xhttp.WithMetricsPath(cfg.Metrics.Path))
	} else {
		opts = append(opts, xhttp.WithMetricsPath(""))
	}
	if c.Store != nil {
		opts = append(opts, xhttp.WithHealthCheck("risk_store", c.Store.Health))
	}
	if c.Cache != nil {
		opts = append(opts, xhttp.WithHealthCheck("cache", c.Cache.Ping))
	}

	return &App{
		cfg:        cfg,
		l:          l,
		c:          c,
		httpServer: xhttp.NewServer(c.Handlers, opts...),
		done:       make(chan struct{}),
	}
}

// Server exposes the HTTP server, mainly for tests.
func (a *App) Server() *xhttp.Server { return a.httpServer }

// Run starts every component and blocks until SIGINT/SIGTERM or ctx is done.
func (a *App) Run(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Start(ctx); err != nil {
		return err
	}
	<-ctx.Done()
	a.l.Info("shutdown signal received")
	return a.Shutdown(context.Background())
}

// Start launches background workers and the HTTP server without blocking.
func (a *App) Start(ctx context.Context) error {
	if a.c.Hub != nil && a.cfg.Realtime.Enabled {
		go a.c.Hub.Run(ctx)
	}
	if a.c.Pipeline != nil {
		a.c.Pipeline.Start(ctx)
	}

	if a.c.Consumer != nil && a.c.Snapshots != nil {
		a.c.Consumer.RegisterHandler(a.c.Snapshots)
		if err := a.c.Consumer.Start(); err != nil {
			return err
		}
		a.l.Info("kafka consumer started", applogger.String("topic", a.c.Snapshots.Topic()))
	}

	if a.c.Collector != nil && a.cfg.Sync.Enabled {
		go func() {
			defer close(a.done)
			if err := a.c.Collector.Run(ctx); err != nil {
				a.l.Error("sync collector error", applogger.Error(err))
			}
		}()
	} else {
		close(a.done)
	}

	return a.httpServer.Start()
}

// Shutdown stops inbound traffic first, then workers, then closes stores.
func (a *App) Shutdown(ctx context.Context) error {
	a.l.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		errs = append(errs, err)
	}
	if a.c.Consumer != nil {
		if err := a.c.Consumer.Stop(shutdownCtx); err != nil {
			a.l.Warn("kafka consumer stop error", applogger.Error(err))
			errs = append(errs, err)
		}
	}

	select {
	case <-a.done:
	case <-shutdownCtx.Done():
		a.l.Warn("sync collector did not stop in time")
	}
	if a.c.Pipeline != nil {
		if n := a.c.Pipeline.BufferLen(); n > 0 {
			a.l.Warn("discarding buffered sync snapshots", applogger.Int("count", n))
		}
		a.c.Pipeline.Stop()
	}

	// flush aggregated error logs while the producer is still open
	a.l.RemoveCollector()
	if a.c.Notifier != nil {
		if err := a.c.Notifier.Close(); err != nil {
			a.l.Warn("notifier close error", applogger.Error(err))
			errs = append(errs, err)
		}
	}
	if a.c.Store != nil {
		if err := a.c.Store.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if a.c.Cache != nil {
		if err := a.c.Cache.Close(); err != nil {
			errs = append(errs, err)
		}
	}

	a.l.Info("shutdown complete")
	return errors.Join(errs...)
}

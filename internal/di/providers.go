package di

import (
	"context"
	"fmt"
	"time"

	"SellerGuard/internal/domain/models"
	domrepo "SellerGuard/internal/domain/repository"
	domsvc "SellerGuard/internal/domain/service"
	"SellerGuard/internal/handler/api"
	mid "SellerGuard/internal/middleware"
	internalrepo "SellerGuard/internal/repository"
	icache "SellerGuard/internal/service/cache"
	"SellerGuard/internal/service/marketplace"
	"SellerGuard/internal/service/ratelimit"
	"SellerGuard/internal/service/realtime"
	"SellerGuard/internal/services/risk"
	"SellerGuard/internal/usecase"
	pkgcache "SellerGuard/pkg/cache"
	pkgch "SellerGuard/pkg/clickhouse"
	"SellerGuard/pkg/config"
	pkghttp "SellerGuard/pkg/http"
	pkgkafka "SellerGuard/pkg/kafka"
	applogger "SellerGuard/pkg/logger"
	"SellerGuard/pkg/metrics"
	"SellerGuard/pkg/server"
)

// ProvideLogger creates the application logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	ch := cfg.ClickHouse
	client, err := pkgch.NewClient(context.Background(), pkgch.Config{
		Host:         ch.Host,
		Port:         ch.Port,
		Database:     ch.Database,
		User:         ch.User,
		Password:     ch.Password,
		UseHTTP:      ch.UseHTTP,
		DialTimeout:  ch.DialTimeout,
		ReadTimeout:  ch.ReadTimeout,
		MaxExecTime:  ch.MaxExecutionTime,
		AsyncInsert:  ch.AsyncInsert,
		WaitForAsync: ch.WaitForAsync,
	})
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideRiskStore uses ClickHouse when configured and falls back to memory.
func ProvideRiskStore(ch *pkgch.Client, l *applogger.Logger) (domrepo.RiskStore, error) {
	if ch == nil {
		l.Warn("clickhouse disabled, risk history is kept in memory")
		return internalrepo.NewMemoryRiskStore(), nil
	}
	store := internalrepo.NewCHRiskStore(ch, l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return store, nil
}

// ProvideCache uses Redis when configured and falls back to an in-process cache.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (pkgcache.Service, error) {
	if !cfg.Redis.Enabled {
		l.Warn("redis disabled, alerts and preferences are kept in memory")
		return pkgcache.NewMemoryCache(), nil
	}
	c, err := pkgcache.NewRedisCache(context.Background(), pkgcache.RedisConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
		Prefix:   cfg.Redis.KeyPrefix,
	})
	if err != nil {
		return nil, fmt.Errorf("redis: %w", err)
	}
	return c, nil
}

// ProvideResponseCache namespaces rendered responses inside the shared cache.
// With Redis, hot entries are also kept in process for a few seconds.
func ProvideResponseCache(c pkgcache.Service) *icache.ResponseCache {
	if rc, ok := c.(*pkgcache.RedisCache); ok {
		near := pkgcache.NewMemoryCache(pkgcache.WithMemoryMaxSize(1000))
		c = pkgcache.NewLayeredCache(near, rc, 5*time.Second)
	}
	return icache.NewResponseCache(c, "resp")
}

func ProvideAlertStore(c pkgcache.Service) *internalrepo.CacheAlertStore {
	return internalrepo.NewCacheAlertStore(c)
}

// ProvideKafkaProducer returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatch(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideNotifier publishes to Kafka, or logs routed alerts when Kafka is disabled.
func ProvideNotifier(cfg *config.Config, producer *pkgkafka.Producer, l *applogger.Logger) domrepo.Notifier {
	if producer == nil {
		return internalrepo.NewLogNotifier(l)
	}
	return internalrepo.NewKafkaNotifier(producer, cfg.Kafka.Topics.Alerts)
}

// ProvideKafkaConsumer returns nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.Use(pkgkafka.LoggingHook(l, time.Second))
	return consumer, nil
}

func ProvideHub(cfg *config.Config, l *applogger.Logger) *realtime.Hub {
	return realtime.NewHub(realtime.Config{
		SendBuffer:   cfg.Realtime.SendBuffer,
		WriteTimeout: cfg.Realtime.WriteTimeout,
		PingInterval: cfg.Realtime.PingInterval,
	}, l)
}

func ProvideRiskEngine() domsvc.RiskEngine {
	return risk.NewEngine()
}

func ProvideNotificationGate(cfg *config.Config, alerts *internalrepo.CacheAlertStore) *usecase.NotificationGate {
	return usecase.NewNotificationGate(alerts, models.AlertThreshold(cfg.Risk.DefaultAlertThreshold))
}

func ProvideRiskEvaluator(
	cfg *config.Config,
	engine domsvc.RiskEngine,
	store domrepo.RiskStore,
	alerts *internalrepo.CacheAlertStore,
	gate *usecase.NotificationGate,
	notifier domrepo.Notifier,
	m domrepo.Metrics,
	hub *realtime.Hub,
	l *applogger.Logger,
) *usecase.RiskEvaluator {
	opts := []usecase.EvaluatorOption{usecase.WithConcurrency(cfg.Risk.EvaluateConcurrency)}
	if cfg.Realtime.Enabled {
		opts = append(opts, usecase.WithBroadcaster(hub))
	}
	return usecase.NewRiskEvaluator(engine, store, alerts, gate, notifier, m, l.With(applogger.String("component", "evaluator")), opts...)
}

func ProvideAlertLifecycle(cfg *config.Config, alerts *internalrepo.CacheAlertStore, hub *realtime.Hub, l *applogger.Logger) *usecase.AlertLifecycle {
	if !cfg.Realtime.Enabled {
		return usecase.NewAlertLifecycle(alerts, nil, l)
	}
	return usecase.NewAlertLifecycle(alerts, hub, l)
}

// ProvideSnapshotHandler consumes the metrics topic.
func ProvideSnapshotHandler(cfg *config.Config, eval *usecase.RiskEvaluator, m domrepo.Metrics) *usecase.KafkaSnapshotHandler {
	return usecase.NewKafkaSnapshotHandler(cfg.Kafka.Topics.Metrics, eval, m)
}

func ProvideSyncPipeline(
	cfg *config.Config,
	eval *usecase.RiskEvaluator,
	alerts *internalrepo.CacheAlertStore,
	m domrepo.Metrics,
	l *applogger.Logger,
) *mid.SyncPipeline {
	return mid.NewSyncPipeline(eval, alerts, m,
		mid.WithMaxRPS(cfg.Sync.MaxRPS),
		mid.WithBufferSize(cfg.Sync.BufferSize),
		mid.WithRetry(cfg.Sync.RetryMax, 100*time.Millisecond),
		mid.WithLockTTL(cfg.Sync.LockTTL),
		mid.WithPipelineLogger(l.With(applogger.String("component", "sync_pipeline"))),
	)
}

// ProvideMarketplaceClient returns nil when no access token is configured.
func ProvideMarketplaceClient(cfg *config.Config, l *applogger.Logger) (*marketplace.Client, error) {
	if cfg.Marketplace.AccessToken == "" {
		return nil, nil
	}
	return marketplace.New(
		pkghttp.NewClient(pkghttp.WithTimeout(cfg.Marketplace.Timeout)),
		cfg.Marketplace.BaseURL,
		cfg.Marketplace.AccessToken,
		marketplace.WithOrdersLimit(cfg.Marketplace.OrdersLimit),
		marketplace.WithLogger(l),
	)
}

// ProvideSyncCollector returns nil without a marketplace client.
func ProvideSyncCollector(
	cfg *config.Config,
	client *marketplace.Client,
	pipeline *mid.SyncPipeline,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.SyncCollector {
	if client == nil {
		return nil
	}
	return usecase.NewSyncCollector(client, pipeline, m, l.With(applogger.String("component", "sync")),
		cfg.Sync.Accounts, cfg.Sync.Interval, cfg.Sync.Concurrency)
}

func ProvideRiskHandler(
	cfg *config.Config,
	engine domsvc.RiskEngine,
	eval *usecase.RiskEvaluator,
	store domrepo.RiskStore,
	respCache *icache.ResponseCache,
	collector *usecase.SyncCollector,
	l *applogger.Logger,
) *api.RiskHandler {
	h := api.NewRiskHandler(engine, eval, store)
	h.SetCache(respCache, cfg.Risk.HistoryCacheTTL)
	h.SetLogger(l)
	h.SetRateLimiter(ratelimit.New(cfg.Risk.RateLimit.RPS, cfg.Risk.RateLimit.Burst))
	if collector != nil {
		h.SetSyncer(collector)
	}
	return h
}

func ProvideAlertsHandler(
	cfg *config.Config,
	lifecycle *usecase.AlertLifecycle,
	gate *usecase.NotificationGate,
	hub *realtime.Hub,
	l *applogger.Logger,
) *api.AlertsHandler {
	h := api.NewAlertsHandler(lifecycle, gate)
	h.SetLogger(l)
	if cfg.Realtime.Enabled {
		h.SetStream(hub.HandleWebSocket)
	}
	return h
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	store domrepo.RiskStore,
	cacheSvc pkgcache.Service,
	producer *pkgkafka.Producer,
	notifier domrepo.Notifier,
	consumer *pkgkafka.Consumer,
	snapshots *usecase.KafkaSnapshotHandler,
	pipeline *mid.SyncPipeline,
	collector *usecase.SyncCollector,
	hub *realtime.Hub,
	riskHandler *api.RiskHandler,
	alertsHandler *api.AlertsHandler,
) *server.App {
	if producer != nil && cfg.Log.ErrorCollector.Enabled {
		l.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   cfg.Log.ErrorCollector.FlushInterval,
			CountThreshold: cfg.Log.ErrorCollector.BufferSize,
			Topic:          cfg.Kafka.Topics.Logs,
			Publisher:      producer,
		})
	}
	return server.New(cfg, l, server.Components{
		Store:     store,
		Cache:     cacheSvc,
		Notifier:  notifier,
		Consumer:  consumer,
		Snapshots: snapshots,
		Pipeline:  pipeline,
		Collector: collector,
		Hub:       hub,
		Handlers:  []pkghttp.Handler{riskHandler, alertsHandler},
	})
}

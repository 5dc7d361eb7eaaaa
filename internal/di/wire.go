//go:build wireinject
// +build wireinject

package di

import (
	"SellerGuard/pkg/config"
	"SellerGuard/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,
		ProvideMarketplaceClient,

		// Repositories
		ProvideRiskStore,
		ProvideAlertStore,
		ProvideResponseCache,
		ProvideNotifier,
		ProvideHub,

		// Use cases
		ProvideRiskEngine,
		ProvideNotificationGate,
		ProvideRiskEvaluator,
		ProvideAlertLifecycle,
		ProvideSnapshotHandler,
		ProvideSyncPipeline,
		ProvideSyncCollector,

		// HTTP
		ProvideRiskHandler,
		ProvideAlertsHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

//go:build wireinject
// +build wireinject

package di

import (
	"KlinePull/pkg/config"
	"KlinePull/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Upstream clients
		ProvideHTTPClient,
		ProvideMarketSource,
		ProvideStreamDialer,
		ProvideCache,

		// Engine
		ProvideSurface,
		ProvideChartSurface,
		ProvideBackfill,
		ProvideFeed,
		ProvideMerger,
		ProvideIndicators,
		ProvidePreferences,
		ProvideSession,

		// Downstream pipeline (nil when backend is none)
		ProvideBarSink,
		ProvideBarArchive,
		ProvideKafkaConsumer,
		ProvideBarsHandler,

		// Gateway
		ProvideMarketGateway,
		ProvideHTTPHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}

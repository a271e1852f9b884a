//go:build wireinject
// +build wireinject

package di

import (
	wire "github.com/google/wire"
	"moriportal/internal"
	"moriportal/internal/controllers"
	"moriportal/internal/persistence"
	"moriportal/internal/providers"
	"moriportal/internal/services"
	"moriportal/internal/structures"
)

func InitApp(cfg *structures.CliFlags) (*internal.App, error) {

	wire.Build(
		providers.NewConfigProvider,
		providers.NewLogProvider,
		providers.NewStoreProvider,
		providers.NewMetricsProvider,
		providers.NewInstrumentedCacheProvider,
		providers.NewIdentityProvider,
		providers.NewRateLimiter,

		services.NewEngagementService,
		persistence.NewZstdCompressor,
		persistence.NewFileManager,
		persistence.NewScheduler,

		controllers.NewEngagementController,
		controllers.NewSettingsController,
		controllers.NewAuthController,
		controllers.NewHealthController,
		internal.InitRoutes,
		internal.NewApp,
	)

	return nil, nil
}

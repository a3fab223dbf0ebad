//go:build wireinject
// +build wireinject

package di

import (
	"context"

	"github.com/google/wire"

	"engram-backend/infrastructure/config"
)

// SuperSet is the main provider set
var SuperSet = wire.NewSet(
	ProvideLogger,
	ProvideTuningWatcher,
	ProvideDomainConfig,
	ProvideMetrics,
	ProvideRepositories,
	ProvideEventPublisher,
	ProvideEmbedder,
	ProvideSummarizer,
	ProvideAuthorizer,
	ProvideValidator,
	ProvideClock,
	ProvideIngestionService,
	ProvideFusionSearchService,
	ProvideGraphService,
	ProvideRecollectionService,
	ProvideTemporalService,
	ProvideLifecycleService,
	ProvidePromotionService,
	ProvideEmbeddingWorker,
	ProvideMaintenanceScheduler,
	ProvideRouter,
	wire.Struct(new(Container), "*"),
)

// InitializeContainer assembles the full application
func InitializeContainer(ctx context.Context, cfg *config.Config) (*Container, func(), error) {
	wire.Build(SuperSet)
	return nil, nil, nil
}

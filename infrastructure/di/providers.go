// Package di assembles the application with google/wire.
package di

import (
	"context"
	"net/http"

	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	awsdynamodb "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"go.uber.org/zap"

	"engram-backend/application/ports"
	"engram-backend/application/services"
	"engram-backend/domain/events"
	"engram-backend/infrastructure/config"
	ebpublisher "engram-backend/infrastructure/messaging/eventbridge"
	dynamostore "engram-backend/infrastructure/persistence/dynamodb"
	memstore "engram-backend/infrastructure/persistence/memory"
	"engram-backend/infrastructure/messaging"
	"engram-backend/infrastructure/providers"
	"engram-backend/interfaces/http/rest"
	"engram-backend/interfaces/http/rest/handlers"
	"engram-backend/pkg/auth"
	"engram-backend/pkg/observability"

	domaincfg "engram-backend/domain/config"
)

// ProvideLogger builds the zap logger for the configured environment
func ProvideLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.IsDevelopment() {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// ProvideTuningWatcher starts the hot-reload watcher when a tuning file is
// configured. The watcher may be nil; the cleanup handles both cases.
func ProvideTuningWatcher(cfg *config.Config, logger *zap.Logger) (*config.TuningWatcher, func(), error) {
	if cfg.TuningFile == "" {
		return nil, func() {}, nil
	}
	watcher, err := config.NewTuningWatcher(cfg.TuningFile, domaincfg.DefaultDomainConfig(), logger)
	if err != nil {
		return nil, nil, err
	}
	watcher.Start()
	return watcher, watcher.Stop, nil
}

// ProvideDomainConfig snapshots the tuned domain configuration
func ProvideDomainConfig(watcher *config.TuningWatcher) *domaincfg.DomainConfig {
	if watcher == nil {
		return domaincfg.DefaultDomainConfig()
	}
	return watcher.Snapshot()
}

// ProvideMetrics builds the Prometheus collector when metrics are enabled
func ProvideMetrics(cfg *config.Config) *observability.Collector {
	if !cfg.EnableMetrics {
		return nil
	}
	return observability.NewCollector("engram")
}

// ProvideDynamoDBClient builds an AWS SDK DynamoDB client
func ProvideDynamoDBClient(ctx context.Context, cfg *config.Config) (*awsdynamodb.Client, error) {
	return dynamostore.NewClient(ctx, cfg.AWSRegion)
}

// ProvideTableConfig maps the environment config onto the table layout
func ProvideTableConfig(cfg *config.Config) dynamostore.TableConfig {
	return dynamostore.TableConfig{
		TableName:        cfg.DynamoDBTable,
		LineageIndexName: cfg.LineageIndexName,
		ScopeIndexName:   cfg.ScopeIndexName,
	}
}

// Repositories bundles every persistence port behind one provider so the
// in-memory and DynamoDB stacks swap together
type Repositories struct {
	Memories   ports.MemoryRepository
	Graph      ports.GraphRepository
	Proposals  ports.ProposalRepository
	Queue      ports.EmbeddingQueue
	Watermarks ports.WatermarkStore
}

// ProvideRepositories picks the persistence stack. Development runs entirely
// in memory; everything else goes to DynamoDB.
func ProvideRepositories(
	ctx context.Context,
	cfg *config.Config,
	domainCfg *domaincfg.DomainConfig,
	metrics *observability.Collector,
	logger *zap.Logger,
) (*Repositories, error) {
	if cfg.IsDevelopment() {
		return &Repositories{
			Memories:   memstore.NewMemoryRepository(nil),
			Graph:      memstore.NewGraphRepository(),
			Proposals:  memstore.NewProposalRepository(),
			Queue:      memstore.NewEmbeddingQueue(domainCfg.MaxRefreshAttempts),
			Watermarks: memstore.NewWatermarkStore(),
		}, nil
	}

	client, err := ProvideDynamoDBClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	table := ProvideTableConfig(cfg)
	return &Repositories{
		Memories:   dynamostore.NewMemoryRepository(client, table, nil, metrics, logger),
		Graph:      dynamostore.NewGraphRepository(client, table, logger),
		Proposals:  dynamostore.NewProposalRepository(client, table, logger),
		Queue:      dynamostore.NewRefreshQueue(client, table, domainCfg.MaxRefreshAttempts, logger),
		Watermarks: dynamostore.NewWatermarkStore(client, table),
	}, nil
}

// ProvideEventPublisher picks EventBridge in deployed environments and the
// log publisher in development
func ProvideEventPublisher(ctx context.Context, cfg *config.Config, logger *zap.Logger) (ports.EventPublisher, error) {
	if cfg.IsDevelopment() || cfg.EventBusName == "" {
		return messaging.NewLogPublisher(logger), nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWSRegion))
	if err != nil {
		return nil, err
	}
	client := eventbridge.NewFromConfig(awsCfg)
	return ebpublisher.NewPublisher(client, cfg.EventBusName, events.SourceEngine, logger), nil
}

// ProvideEmbedder wires the embedding provider behind a circuit breaker
func ProvideEmbedder(cfg *config.Config, domainCfg *domaincfg.DomainConfig, logger *zap.Logger) ports.EmbeddingProvider {
	var inner ports.EmbeddingProvider
	if cfg.EmbeddingEndpoint != "" {
		inner = providers.NewHTTPEmbeddingProvider(
			cfg.EmbeddingEndpoint, cfg.EmbeddingAPIKey, cfg.EmbeddingModel,
			domainCfg.EmbeddingDimension, logger)
	} else {
		inner = providers.NewLocalEmbeddingProvider(domainCfg.EmbeddingDimension)
	}
	return providers.NewBreakerEmbeddingProvider(inner, providers.DefaultBreakerConfig("embedding"), logger)
}

// ProvideSummarizer wires the summarizer behind a circuit breaker
func ProvideSummarizer(logger *zap.Logger) ports.Summarizer {
	return providers.NewBreakerSummarizer(
		providers.NewExtractiveSummarizer(0),
		providers.DefaultBreakerConfig("summarizer"), logger)
}

// ProvideAuthorizer builds the claims-based authorizer
func ProvideAuthorizer() ports.Authorizer {
	return auth.NewClaimsAuthorizer()
}

// ProvideValidator builds the JWT validator
func ProvideValidator(cfg *config.Config) *auth.Validator {
	return auth.NewValidator(cfg.JWTSecret, cfg.JWTIssuer)
}

// ProvideClock returns the system clock
func ProvideClock() services.Clock {
	return services.SystemClock{}
}

// ProvideIngestionService builds the write pipeline
func ProvideIngestionService(
	repos *Repositories,
	embedder ports.EmbeddingProvider,
	publisher ports.EventPublisher,
	authorizer ports.Authorizer,
	domainCfg *domaincfg.DomainConfig,
	clock services.Clock,
	metrics *observability.Collector,
	logger *zap.Logger,
) *services.IngestionService {
	return services.NewIngestionService(
		repos.Memories, repos.Queue, embedder, publisher, authorizer,
		nil, domainCfg, clock, metrics, logger)
}

// ProvideFusionSearchService builds fused retrieval
func ProvideFusionSearchService(
	repos *Repositories,
	authorizer ports.Authorizer,
	domainCfg *domaincfg.DomainConfig,
	logger *zap.Logger,
) *services.FusionSearchService {
	return services.NewFusionSearchService(repos.Memories, authorizer, domainCfg, logger)
}

// ProvideGraphService builds the knowledge graph sidecar
func ProvideGraphService(
	repos *Repositories,
	authorizer ports.Authorizer,
	clock services.Clock,
	logger *zap.Logger,
) *services.GraphService {
	return services.NewGraphService(repos.Graph, authorizer, clock, logger)
}

// ProvideRecollectionService builds composite-ranked recall
func ProvideRecollectionService(
	search *services.FusionSearchService,
	graph *services.GraphService,
	repos *Repositories,
	domainCfg *domaincfg.DomainConfig,
	clock services.Clock,
	metrics *observability.Collector,
	logger *zap.Logger,
) *services.RecollectionService {
	return services.NewRecollectionService(search, graph, repos.Memories, domainCfg, clock, metrics, logger)
}

// ProvideTemporalService builds the bitemporal view
func ProvideTemporalService(
	repos *Repositories,
	publisher ports.EventPublisher,
	authorizer ports.Authorizer,
	domainCfg *domaincfg.DomainConfig,
	clock services.Clock,
	metrics *observability.Collector,
	logger *zap.Logger,
) *services.TemporalService {
	return services.NewTemporalService(
		repos.Memories, repos.Queue, publisher, authorizer,
		nil, domainCfg, clock, metrics, logger)
}

// ProvideLifecycleService builds curation
func ProvideLifecycleService(
	repos *Repositories,
	summarizer ports.Summarizer,
	publisher ports.EventPublisher,
	authorizer ports.Authorizer,
	domainCfg *domaincfg.DomainConfig,
	clock services.Clock,
	metrics *observability.Collector,
	logger *zap.Logger,
) *services.LifecycleService {
	return services.NewLifecycleService(
		repos.Memories, repos.Queue, summarizer, publisher, authorizer,
		nil, domainCfg, clock, metrics, logger)
}

// ProvidePromotionService builds the promotion workflow
func ProvidePromotionService(
	repos *Repositories,
	publisher ports.EventPublisher,
	authorizer ports.Authorizer,
	domainCfg *domaincfg.DomainConfig,
	clock services.Clock,
	logger *zap.Logger,
) *services.PromotionService {
	return services.NewPromotionService(
		repos.Memories, repos.Proposals, publisher, authorizer,
		domainCfg, clock, logger)
}

// ProvideEmbeddingWorker builds the background refresh worker
func ProvideEmbeddingWorker(
	cfg *config.Config,
	repos *Repositories,
	embedder ports.EmbeddingProvider,
	domainCfg *domaincfg.DomainConfig,
	metrics *observability.Collector,
	logger *zap.Logger,
) *services.EmbeddingWorker {
	return services.NewEmbeddingWorker(
		repos.Queue, embedder, repos.Memories, domainCfg,
		cfg.Worker.RefreshPollInterval, cfg.Worker.RefreshBatchSize,
		metrics, logger)
}

// ProvideMaintenanceScheduler builds the recurring decay scheduler
func ProvideMaintenanceScheduler(
	cfg *config.Config,
	lifecycle *services.LifecycleService,
	repos *Repositories,
	clock services.Clock,
	logger *zap.Logger,
) *services.MaintenanceScheduler {
	return services.NewMaintenanceScheduler(
		lifecycle, repos.Memories, repos.Watermarks,
		cfg.Worker.MaintenanceInterval, clock, logger)
}

// ProvideRouter assembles the HTTP handler tree
func ProvideRouter(
	cfg *config.Config,
	ingestion *services.IngestionService,
	search *services.FusionSearchService,
	recollection *services.RecollectionService,
	temporal *services.TemporalService,
	lifecycle *services.LifecycleService,
	promotion *services.PromotionService,
	graph *services.GraphService,
	validator *auth.Validator,
	metrics *observability.Collector,
	logger *zap.Logger,
) http.Handler {
	router := rest.NewRouter(
		handlers.NewMemoryHandler(ingestion, search, recollection, logger),
		handlers.NewGraphHandler(graph, logger),
		handlers.NewTemporalHandler(temporal, logger),
		handlers.NewLifecycleHandler(lifecycle, logger),
		handlers.NewPromotionHandler(promotion, logger),
		handlers.NewHealthHandler("v1"),
		validator,
		metrics,
		cfg.EnableCORS,
		logger,
	)
	return router.Setup()
}

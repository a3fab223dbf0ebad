package di

import (
	"net/http"

	"go.uber.org/zap"

	"engram-backend/application/ports"
	"engram-backend/application/services"
	"engram-backend/infrastructure/config"
	"engram-backend/pkg/auth"
	"engram-backend/pkg/observability"

	domaincfg "engram-backend/domain/config"
)

// Container holds the assembled application
type Container struct {
	Config       *config.Config
	DomainConfig *domaincfg.DomainConfig
	Logger       *zap.Logger
	Metrics      *observability.Collector

	Repositories *Repositories
	Publisher    ports.EventPublisher
	Embedder     ports.EmbeddingProvider
	Summarizer   ports.Summarizer
	Authorizer   ports.Authorizer
	Validator    *auth.Validator

	Ingestion    *services.IngestionService
	Search       *services.FusionSearchService
	Recollection *services.RecollectionService
	Temporal     *services.TemporalService
	Lifecycle    *services.LifecycleService
	Promotion    *services.PromotionService
	Graph        *services.GraphService

	Worker    *services.EmbeddingWorker
	Scheduler *services.MaintenanceScheduler

	Router http.Handler
}

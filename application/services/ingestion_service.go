package services

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"engram-backend/application/ports"
	domaincfg "engram-backend/domain/config"
	"engram-backend/domain/core/entities"
	"engram-backend/domain/core/valueobjects"
	domainservices "engram-backend/domain/services"
	"engram-backend/pkg/errors"
	"engram-backend/pkg/observability"
)

// RememberRequest is one ingestion request
type RememberRequest struct {
	Content    string
	Scope      valueobjects.Scope
	Visibility valueobjects.Visibility
	Kind       valueobjects.MemoryKind
	Extra      map[string]string

	// Importance overrides the default starting importance when set
	Importance *float64
}

// RememberResult reports what ingestion did with the observation
type RememberResult struct {
	Memory *entities.Memory

	// Reinforced is true when the observation was a near-duplicate and
	// strengthened an existing memory instead of creating a new one
	Reinforced bool
}

// IngestionService runs the write pipeline: validate attributes, derive
// keywords, evaluate surprise against the nearest stored memories, then
// either insert or reinforce. Every derived field is computed here, before
// the single write; storage has no hidden triggers.
type IngestionService struct {
	repo       ports.MemoryRepository
	queue      ports.EmbeddingQueue
	embedder   ports.EmbeddingProvider
	publisher  ports.EventPublisher
	authorizer ports.Authorizer
	analyzer   domainservices.TextAnalyzer
	surprise   *domainservices.SurpriseEngine
	config     *domaincfg.DomainConfig
	clock      Clock
	metrics    *observability.Collector
	logger     *zap.Logger
}

// NewIngestionService creates an ingestion service
func NewIngestionService(
	repo ports.MemoryRepository,
	queue ports.EmbeddingQueue,
	embedder ports.EmbeddingProvider,
	publisher ports.EventPublisher,
	authorizer ports.Authorizer,
	analyzer domainservices.TextAnalyzer,
	config *domaincfg.DomainConfig,
	clock Clock,
	metrics *observability.Collector,
	logger *zap.Logger,
) *IngestionService {
	if config == nil {
		config = domaincfg.DefaultDomainConfig()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if analyzer == nil {
		analyzer = domainservices.NewDefaultTextAnalyzer()
	}
	return &IngestionService{
		repo:       repo,
		queue:      queue,
		embedder:   embedder,
		publisher:  publisher,
		authorizer: authorizer,
		analyzer:   analyzer,
		surprise:   domainservices.NewSurpriseEngine(config.SurpriseThreshold, config.FlashbulbThreshold),
		config:     config,
		clock:      clock,
		metrics:    metrics,
		logger:     logger,
	}
}

// Remember ingests one observation for the caller
func (s *IngestionService) Remember(ctx context.Context, caller ports.Caller, req RememberRequest) (*RememberResult, error) {
	ok, err := s.authorizer.CanAccess(ctx, caller, req.Scope.TenantID())
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewUnauthorized("caller may not access this tenant")
	}
	if req.Content == "" {
		return nil, errors.NewValidation("content cannot be empty")
	}

	attrs, err := valueobjects.NewAttributes(req.Scope, req.Visibility, req.Kind, req.Extra)
	if err != nil {
		return nil, err
	}

	keywords := s.analyzer.ExtractKeywords(req.Content)

	importance := s.config.DefaultImportance
	if req.Importance != nil {
		if *req.Importance < 0 || *req.Importance > 1 {
			return nil, errors.NewValidation("importance must be in [0, 1]")
		}
		importance = *req.Importance
	}

	// Embed up front so the surprise check can consult the vector index.
	// A provider outage degrades to keyword-only ingestion with a queued
	// refresh rather than failing the write.
	embedding, embedErr := s.embedder.Embed(ctx, req.Content)
	if embedErr != nil {
		s.logger.Warn("embedding provider unavailable at ingestion",
			zap.Error(embedErr))
	}

	verdict := domainservices.SurpriseVerdict{Surprising: true}
	if embedErr == nil {
		verdict, err = s.evaluateSurprise(ctx, attrs, embedding)
		if err != nil {
			return nil, err
		}
	}

	if !verdict.Surprising {
		return s.reinforceExisting(ctx, req.Scope.TenantID(), verdict.NearestID)
	}

	now := s.clock.Now()
	memory, err := entities.NewMemory(req.Content, attrs, keywords, importance, verdict.Flashbulb, now)
	if err != nil {
		return nil, err
	}
	if embedErr == nil {
		memory.AttachEmbedding(embedding)
	}

	if err := s.repo.Save(ctx, memory); err != nil {
		return nil, err
	}

	if embedErr != nil {
		if err := s.queue.Enqueue(ctx, ports.RefreshJob{
			ID:         uuid.New().String(),
			TenantID:   req.Scope.TenantID(),
			MemoryID:   memory.ID(),
			Content:    req.Content,
			Status:     ports.RefreshPending,
			EnqueuedAt: now,
		}); err != nil {
			s.logger.Error("failed to enqueue embedding refresh",
				zap.String("memory_id", memory.ID().String()), zap.Error(err))
		}
	}

	s.publishEvents(ctx, memory)
	if s.metrics != nil {
		s.metrics.MemoriesCreated.Inc()
	}

	return &RememberResult{Memory: memory}, nil
}

// evaluateSurprise compares the observation against its nearest stored
// memories within the same tenant
func (s *IngestionService) evaluateSurprise(ctx context.Context, attrs valueobjects.Attributes, embedding valueobjects.Embedding) (domainservices.SurpriseVerdict, error) {
	filter := valueobjects.Filter{TenantID: attrs.Scope().TenantID()}
	nearest, err := s.repo.VectorTopK(ctx, filter, embedding, s.config.SurpriseNeighbors)
	if err != nil {
		return domainservices.SurpriseVerdict{}, err
	}

	neighbors := make([]domainservices.Neighbor, 0, len(nearest))
	for _, rm := range nearest {
		// VectorTopK ranks by distance; similarity is its complement
		neighbors = append(neighbors, domainservices.Neighbor{
			ID:         rm.Memory.ID().String(),
			Similarity: 1 - rm.Score,
		})
	}
	return s.surprise.Evaluate(neighbors), nil
}

func (s *IngestionService) reinforceExisting(ctx context.Context, tenantID, nearestID string) (*RememberResult, error) {
	id, err := valueobjects.NewMemoryIDFromString(nearestID)
	if err != nil {
		return nil, err
	}
	now := s.clock.Now()
	updated, err := updateMemoryWithRetry(ctx, s.repo, tenantID, id, func(m *entities.Memory) error {
		m.Reinforce(s.config.ReinforcementBoost, now)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publishEvents(ctx, updated)
	if s.metrics != nil {
		s.metrics.MemoriesReinforced.Inc()
	}
	return &RememberResult{Memory: updated, Reinforced: true}, nil
}

func (s *IngestionService) publishEvents(ctx context.Context, m *entities.Memory) {
	pending := m.GetUncommittedEvents()
	if len(pending) == 0 {
		return
	}
	if err := s.publisher.PublishBatch(ctx, pending); err != nil {
		s.logger.Error("failed to publish domain events", zap.Error(err))
		return
	}
	m.MarkEventsAsCommitted()
}

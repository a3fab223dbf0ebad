package services

import (
	"context"

	"go.uber.org/zap"

	"engram-backend/application/ports"
	domaincfg "engram-backend/domain/config"
	"engram-backend/domain/core/entities"
	domainservices "engram-backend/domain/services"
	"engram-backend/pkg/errors"
	"engram-backend/pkg/observability"
)

// RecollectRequest is one recollection query
type RecollectRequest struct {
	Query SearchQuery

	// Optional composite weight overrides; zero values fall back to
	// configuration. The weights are free-form and need not sum to 1.
	SimilarityWeight float64
	ImportanceWeight float64
	RecencyWeight    float64

	// GraphJump pulls one-hop graph associations for each result
	GraphJump bool
}

// Recollection is one recalled memory with its composite score
type Recollection struct {
	Memory    *entities.Memory
	Composite float64

	// Associations are graph neighbors of the result's primary entity.
	// They ride alongside the ranked list and never affect it.
	Associations []entities.Triple
}

// RecollectionService re-ranks fused search output by blending similarity
// with importance and recency. It oversamples the fused pool threefold so a
// very important or very fresh memory ranked deep in pure similarity can
// still surface.
type RecollectionService struct {
	search  *FusionSearchService
	graph   *GraphService
	repo    ports.MemoryRepository
	scorer  *domainservices.RecollectionScorer
	config  *domaincfg.DomainConfig
	clock   Clock
	metrics *observability.Collector
	logger  *zap.Logger
}

// NewRecollectionService creates a recollection service
func NewRecollectionService(
	search *FusionSearchService,
	graph *GraphService,
	repo ports.MemoryRepository,
	config *domaincfg.DomainConfig,
	clock Clock,
	metrics *observability.Collector,
	logger *zap.Logger,
) *RecollectionService {
	if config == nil {
		config = domaincfg.DefaultDomainConfig()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &RecollectionService{
		search:  search,
		graph:   graph,
		repo:    repo,
		scorer:  domainservices.NewRecollectionScorer(config.RecencyHalfLife),
		config:  config,
		clock:   clock,
		metrics: metrics,
		logger:  logger,
	}
}

// Recollect runs composite-ranked recall for the caller
func (s *RecollectionService) Recollect(ctx context.Context, caller ports.Caller, req RecollectRequest) ([]Recollection, error) {
	start := s.clock.Now()
	if req.Query.Count <= 0 {
		return nil, errors.NewValidation("result count must be positive")
	}
	if err := s.search.authorize(ctx, caller, req.Query.Filter); err != nil {
		return nil, err
	}

	oversampled := req.Query
	oversampled.Count = s.config.OversampleFactor * req.Query.Count

	fused, byID, err := s.search.fusedCandidates(ctx, oversampled)
	if err != nil {
		return nil, err
	}
	if len(fused) > oversampled.Count {
		fused = fused[:oversampled.Count]
	}

	now := s.clock.Now()
	candidates := make([]domainservices.ScoredMemory, 0, len(fused))
	for _, f := range fused {
		m := byID[f.ID]
		candidates = append(candidates, domainservices.ScoredMemory{
			ID:             f.ID,
			FusedScore:     f.Score,
			Importance:     m.Importance(),
			LastAccessedAt: m.LastAccessedAt(),
		})
	}

	ranked := s.scorer.Rank(candidates, s.compositeWeights(req), now)
	if len(ranked) > req.Query.Count {
		ranked = ranked[:req.Query.Count]
	}

	results := make([]Recollection, 0, len(ranked))
	for _, r := range ranked {
		rec := Recollection{Memory: byID[r.ID], Composite: r.Composite}
		if req.GraphJump {
			rec.Associations = s.associations(ctx, caller, rec.Memory)
		}
		results = append(results, rec)
	}

	s.touchAll(ctx, req.Query.Filter.TenantID, results)

	if s.metrics != nil {
		mode := "recollect"
		if req.GraphJump {
			mode = "recollect_graph"
		}
		s.metrics.RecallRequests.WithLabelValues(mode).Inc()
		s.metrics.RecallDuration.WithLabelValues(mode).Observe(s.clock.Now().Sub(start).Seconds())
	}

	return results, nil
}

func (s *RecollectionService) compositeWeights(req RecollectRequest) domainservices.CompositeWeights {
	weights := domainservices.CompositeWeights{
		Similarity: req.SimilarityWeight,
		Importance: req.ImportanceWeight,
		Recency:    req.RecencyWeight,
	}
	if weights.Similarity == 0 && weights.Importance == 0 && weights.Recency == 0 {
		weights.Similarity = s.config.SimilarityWeight
		weights.Importance = s.config.ImportanceWeight
		weights.Recency = s.config.RecencyWeight
	}
	return weights
}

// associations pulls bounded one-hop graph neighbors for a result's primary
// entity. The entity comes from the record's "entity" attribute when set,
// falling back to its first keyword.
func (s *RecollectionService) associations(ctx context.Context, caller ports.Caller, m *entities.Memory) []entities.Triple {
	entity, ok := m.Attributes().ExtraValue("entity")
	if !ok {
		keywords := m.Keywords()
		if len(keywords) == 0 {
			return nil
		}
		entity = keywords[0]
	}

	triples, err := s.graph.Traverse(ctx, caller, entity)
	if err != nil {
		s.logger.Warn("graph jump failed",
			zap.String("entity", entity), zap.Error(err))
		return nil
	}
	if len(triples) > s.config.AssociationLimit {
		triples = triples[:s.config.AssociationLimit]
	}
	return triples
}

// touchAll records the access on every returned memory. Recall must not fail
// because a touch lost a race, so conflicts are retried and then dropped.
func (s *RecollectionService) touchAll(ctx context.Context, tenantID string, results []Recollection) {
	now := s.clock.Now()
	for i := range results {
		id := results[i].Memory.ID()
		updated, err := updateMemoryWithRetry(ctx, s.repo, tenantID, id, func(m *entities.Memory) error {
			m.Touch(s.config.ReinforcementBoost, now)
			return nil
		})
		if err != nil {
			s.logger.Warn("failed to touch recalled memory",
				zap.String("memory_id", id.String()), zap.Error(err))
			continue
		}
		results[i].Memory = updated
	}
}

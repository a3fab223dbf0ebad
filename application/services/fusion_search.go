package services

import (
	"context"

	"go.uber.org/zap"

	"engram-backend/application/ports"
	domaincfg "engram-backend/domain/config"
	"engram-backend/domain/core/entities"
	"engram-backend/domain/core/valueobjects"
	domainservices "engram-backend/domain/services"
	"engram-backend/pkg/errors"
)

// SearchQuery is one fusion search request
type SearchQuery struct {
	Embedding valueobjects.Embedding
	Text      string
	Filter    valueobjects.Filter
	Count     int

	// Optional weight overrides; zero values fall back to configuration
	SemanticWeight float64
	KeywordWeight  float64
}

// SearchResult is one fused hit
type SearchResult struct {
	Memory *entities.Memory
	Score  float64
}

// FusionSearchService merges vector and keyword retrieval with reciprocal
// rank fusion. Both candidate lists are fetched at twice the requested count
// so a hit ranked low on both legs can still fuse into the final page.
type FusionSearchService struct {
	repo       ports.MemoryRepository
	authorizer ports.Authorizer
	fuser      *domainservices.RankFuser
	config     *domaincfg.DomainConfig
	logger     *zap.Logger
}

// NewFusionSearchService creates a fusion search service
func NewFusionSearchService(
	repo ports.MemoryRepository,
	authorizer ports.Authorizer,
	config *domaincfg.DomainConfig,
	logger *zap.Logger,
) *FusionSearchService {
	if config == nil {
		config = domaincfg.DefaultDomainConfig()
	}
	return &FusionSearchService{
		repo:       repo,
		authorizer: authorizer,
		fuser:      domainservices.NewRankFuser(config.RRFConstant),
		config:     config,
		logger:     logger,
	}
}

// Search runs fused retrieval for the caller. An empty candidate pool is a
// valid empty result, not an error.
func (s *FusionSearchService) Search(ctx context.Context, caller ports.Caller, query SearchQuery) ([]SearchResult, error) {
	if err := s.authorize(ctx, caller, query.Filter); err != nil {
		return nil, err
	}
	if query.Count <= 0 {
		return nil, errors.NewValidation("result count must be positive")
	}

	fused, byID, err := s.fusedCandidates(ctx, query)
	if err != nil {
		return nil, err
	}

	if len(fused) > query.Count {
		fused = fused[:query.Count]
	}

	results := make([]SearchResult, 0, len(fused))
	for _, f := range fused {
		results = append(results, SearchResult{Memory: byID[f.ID], Score: f.Score})
	}
	return results, nil
}

// fusedCandidates runs both retrieval legs and fuses them. Shared with the
// recollection engine, which oversamples through the same path.
func (s *FusionSearchService) fusedCandidates(ctx context.Context, query SearchQuery) ([]domainservices.FusedResult, map[string]*entities.Memory, error) {
	if err := query.Filter.Validate(); err != nil {
		return nil, nil, err
	}

	poolSize := s.config.CandidateFactor * query.Count

	vector, err := s.repo.VectorTopK(ctx, query.Filter, query.Embedding, poolSize)
	if err != nil {
		return nil, nil, err
	}
	keyword, err := s.repo.KeywordTopK(ctx, query.Filter, query.Text, poolSize)
	if err != nil {
		return nil, nil, err
	}

	byID := make(map[string]*entities.Memory, len(vector)+len(keyword))
	vectorIDs := make([]string, len(vector))
	for i, rm := range vector {
		vectorIDs[i] = rm.Memory.ID().String()
		byID[vectorIDs[i]] = rm.Memory
	}
	keywordIDs := make([]string, len(keyword))
	for i, rm := range keyword {
		keywordIDs[i] = rm.Memory.ID().String()
		byID[keywordIDs[i]] = rm.Memory
	}

	weights := domainservices.FusionWeights{
		Semantic: query.SemanticWeight,
		Keyword:  query.KeywordWeight,
	}
	if weights.Semantic == 0 {
		weights.Semantic = s.config.SemanticWeight
	}
	if weights.Keyword == 0 {
		weights.Keyword = s.config.KeywordWeight
	}

	fused := s.fuser.Fuse(vectorIDs, keywordIDs, weights)

	s.logger.Debug("fused retrieval legs",
		zap.Int("vector_candidates", len(vector)),
		zap.Int("keyword_candidates", len(keyword)),
		zap.Int("fused", len(fused)))

	return fused, byID, nil
}

func (s *FusionSearchService) authorize(ctx context.Context, caller ports.Caller, filter valueobjects.Filter) error {
	ok, err := s.authorizer.CanAccess(ctx, caller, filter.TenantID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.NewUnauthorized("caller may not access this tenant")
	}
	return nil
}

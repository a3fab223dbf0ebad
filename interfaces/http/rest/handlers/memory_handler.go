package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"engram-backend/application/services"
	"engram-backend/domain/core/valueobjects"
	"engram-backend/pkg/api"
)

// MemoryHandler serves ingestion and retrieval
type MemoryHandler struct {
	ingestion    *services.IngestionService
	search       *services.FusionSearchService
	recollection *services.RecollectionService
	logger       *zap.Logger
}

// NewMemoryHandler creates a memory handler
func NewMemoryHandler(
	ingestion *services.IngestionService,
	search *services.FusionSearchService,
	recollection *services.RecollectionService,
	logger *zap.Logger,
) *MemoryHandler {
	return &MemoryHandler{
		ingestion:    ingestion,
		search:       search,
		recollection: recollection,
		logger:       logger,
	}
}

type rememberRequest struct {
	Content    string            `json:"content" validate:"required"`
	TenantID   string            `json:"tenantId" validate:"required"`
	OrgID      string            `json:"orgId,omitempty"`
	TeamID     string            `json:"teamId,omitempty"`
	Visibility string            `json:"visibility" validate:"required,oneof=private team global"`
	Kind       string            `json:"kind" validate:"required,oneof=episodic semantic procedural identity"`
	Extra      map[string]string `json:"extra,omitempty" validate:"max=16"`
	Importance *float64          `json:"importance,omitempty"`
}

type rememberResponse struct {
	Memory     memoryResponse `json:"memory"`
	Reinforced bool           `json:"reinforced"`
}

// Remember handles POST /memories
func (h *MemoryHandler) Remember(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req rememberRequest
	if err := decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	scope, err := valueobjects.NewScope(req.TenantID, req.OrgID, req.TeamID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	visibility, err := valueobjects.ParseVisibility(req.Visibility)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	kind, err := valueobjects.ParseMemoryKind(req.Kind)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	result, err := h.ingestion.Remember(r.Context(), caller, services.RememberRequest{
		Content:    req.Content,
		Scope:      scope,
		Visibility: visibility,
		Kind:       kind,
		Extra:      req.Extra,
		Importance: req.Importance,
	})
	if err != nil {
		h.logger.Warn("remember failed", zap.Error(err))
		api.HandleError(w, err)
		return
	}

	status := http.StatusCreated
	if result.Reinforced {
		status = http.StatusOK
	}
	api.Success(w, status, rememberResponse{
		Memory:     toMemoryResponse(result.Memory),
		Reinforced: result.Reinforced,
	})
}

type searchRequest struct {
	Embedding []float32     `json:"embedding,omitempty"`
	Text      string        `json:"text,omitempty"`
	Filter    filterRequest `json:"filter" validate:"required"`
	Count     int           `json:"count" validate:"required,gt=0,lte=1000"`

	SemanticWeight float64 `json:"semanticWeight,omitempty" validate:"gte=0"`
	KeywordWeight  float64 `json:"keywordWeight,omitempty" validate:"gte=0"`
}

type searchHit struct {
	Memory memoryResponse `json:"memory"`
	Score  float64        `json:"score"`
}

// Search handles POST /search
func (h *MemoryHandler) Search(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req searchRequest
	if err := decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	query, err := h.buildQuery(req)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	results, err := h.search.Search(r.Context(), caller, query)
	if err != nil {
		h.logger.Warn("search failed", zap.Error(err))
		api.HandleError(w, err)
		return
	}

	hits := make([]searchHit, 0, len(results))
	for _, res := range results {
		hits = append(hits, searchHit{Memory: toMemoryResponse(res.Memory), Score: res.Score})
	}
	api.Success(w, http.StatusOK, map[string]interface{}{"results": hits})
}

type recollectRequest struct {
	searchRequest

	SimilarityWeight float64 `json:"similarityWeight,omitempty" validate:"gte=0"`
	ImportanceWeight float64 `json:"importanceWeight,omitempty" validate:"gte=0"`
	RecencyWeight    float64 `json:"recencyWeight,omitempty" validate:"gte=0"`
	GraphJump        bool    `json:"graphJump,omitempty"`
}

type recollectHit struct {
	Memory       memoryResponse   `json:"memory"`
	Composite    float64          `json:"composite"`
	Associations []tripleResponse `json:"associations,omitempty"`
}

// Recollect handles POST /recollect
func (h *MemoryHandler) Recollect(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req recollectRequest
	if err := decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	query, err := h.buildQuery(req.searchRequest)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	results, err := h.recollection.Recollect(r.Context(), caller, services.RecollectRequest{
		Query:            query,
		SimilarityWeight: req.SimilarityWeight,
		ImportanceWeight: req.ImportanceWeight,
		RecencyWeight:    req.RecencyWeight,
		GraphJump:        req.GraphJump,
	})
	if err != nil {
		h.logger.Warn("recollect failed", zap.Error(err))
		api.HandleError(w, err)
		return
	}

	hits := make([]recollectHit, 0, len(results))
	for _, res := range results {
		hits = append(hits, recollectHit{
			Memory:       toMemoryResponse(res.Memory),
			Composite:    res.Composite,
			Associations: toTripleResponses(res.Associations),
		})
	}
	api.Success(w, http.StatusOK, map[string]interface{}{"results": hits})
}

func (h *MemoryHandler) buildQuery(req searchRequest) (services.SearchQuery, error) {
	filter, err := req.Filter.toFilter()
	if err != nil {
		return services.SearchQuery{}, err
	}
	return services.SearchQuery{
		Embedding:      valueobjects.Embedding(req.Embedding),
		Text:           req.Text,
		Filter:         filter,
		Count:          req.Count,
		SemanticWeight: req.SemanticWeight,
		KeywordWeight:  req.KeywordWeight,
	}, nil
}

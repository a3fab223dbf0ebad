package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"engram-backend/application/services"
	"engram-backend/domain/core/valueobjects"
	"engram-backend/pkg/api"
	apperrors "engram-backend/pkg/errors"
)

// LifecycleHandler serves curation: decay, clustering, consolidation, and
// importance control
type LifecycleHandler struct {
	lifecycle *services.LifecycleService
	logger    *zap.Logger
}

// NewLifecycleHandler creates a lifecycle handler
func NewLifecycleHandler(lifecycle *services.LifecycleService, logger *zap.Logger) *LifecycleHandler {
	return &LifecycleHandler{lifecycle: lifecycle, logger: logger}
}

type decayRequest struct {
	TenantID string `json:"tenantId" validate:"required"`
}

// RunDecay handles POST /lifecycle/decay
func (h *LifecycleHandler) RunDecay(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req decayRequest
	if err := decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if caller.TenantID != req.TenantID {
		api.HandleError(w, apperrors.NewUnauthorized("caller may not run decay for another tenant"))
		return
	}

	report, err := h.lifecycle.RunDecayCycle(r.Context(), req.TenantID)
	if err != nil {
		h.logger.Warn("decay cycle failed", zap.String("tenantId", req.TenantID), zap.Error(err))
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, report)
}

// FindClusters handles POST /lifecycle/clusters
func (h *LifecycleHandler) FindClusters(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req decayRequest
	if err := decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	if caller.TenantID != req.TenantID {
		api.HandleError(w, apperrors.NewUnauthorized("caller may not cluster another tenant"))
		return
	}

	clusters, err := h.lifecycle.FindClusters(r.Context(), req.TenantID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]interface{}{"clusters": clusters})
}

type consolidateRequest struct {
	PrimaryID   string   `json:"primaryId" validate:"required"`
	AbsorbedIDs []string `json:"absorbedIds" validate:"required,min=1"`
	Content     string   `json:"content,omitempty"`
}

// Consolidate handles POST /lifecycle/consolidate
func (h *LifecycleHandler) Consolidate(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req consolidateRequest
	if err := decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	primaryID, err := valueobjects.NewMemoryIDFromString(req.PrimaryID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	absorbed := make([]valueobjects.MemoryID, 0, len(req.AbsorbedIDs))
	for _, raw := range req.AbsorbedIDs {
		id, err := valueobjects.NewMemoryIDFromString(raw)
		if err != nil {
			api.HandleError(w, err)
			return
		}
		absorbed = append(absorbed, id)
	}

	merged, err := h.lifecycle.Consolidate(r.Context(), caller, primaryID, absorbed, req.Content)
	if err != nil {
		h.logger.Warn("consolidation failed", zap.String("primaryId", req.PrimaryID), zap.Error(err))
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, toMemoryResponse(merged))
}

// Dream handles POST /lifecycle/dream, the full cluster-then-consolidate
// sweep for one tenant
func (h *LifecycleHandler) Dream(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req decayRequest
	if err := decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	merges, err := h.lifecycle.Dream(r.Context(), caller, req.TenantID)
	if err != nil {
		h.logger.Warn("dream failed", zap.String("tenantId", req.TenantID), zap.Error(err))
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]interface{}{"merges": merges})
}

// Reinforce handles POST /memories/{id}/reinforce
func (h *LifecycleHandler) Reinforce(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	id, err := valueobjects.NewMemoryIDFromString(chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	m, err := h.lifecycle.Reinforce(r.Context(), caller, id)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, toMemoryResponse(m))
}

type importanceRequest struct {
	Score float64 `json:"score" validate:"gte=0,lte=1"`
}

// SetImportance handles PUT /memories/{id}/importance
func (h *LifecycleHandler) SetImportance(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	id, err := valueobjects.NewMemoryIDFromString(chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	var req importanceRequest
	if err := decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	m, err := h.lifecycle.SetImportance(r.Context(), caller, id, req.Score)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, toMemoryResponse(m))
}

type statsRequest struct {
	Filter filterRequest `json:"filter" validate:"required"`
}

// Stats handles POST /lifecycle/stats
func (h *LifecycleHandler) Stats(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req statsRequest
	if err := decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	filter, err := req.Filter.toFilter()
	if err != nil {
		api.HandleError(w, err)
		return
	}

	stats, err := h.lifecycle.Stats(r.Context(), caller, filter)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, stats)
}

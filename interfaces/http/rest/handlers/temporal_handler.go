package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"engram-backend/application/services"
	"engram-backend/domain/core/valueobjects"
	"engram-backend/pkg/api"
)

// TemporalHandler serves the bitemporal view: as-of queries, supersession,
// and lineage history
type TemporalHandler struct {
	temporal *services.TemporalService
	logger   *zap.Logger
}

// NewTemporalHandler creates a temporal handler
func NewTemporalHandler(temporal *services.TemporalService, logger *zap.Logger) *TemporalHandler {
	return &TemporalHandler{temporal: temporal, logger: logger}
}

type asOfRequest struct {
	Filter filterRequest `json:"filter" validate:"required"`
	At     time.Time     `json:"at" validate:"required"`
}

// GetAsOf handles POST /temporal/as-of
func (h *TemporalHandler) GetAsOf(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req asOfRequest
	if err := decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	filter, err := req.Filter.toFilter()
	if err != nil {
		api.HandleError(w, err)
		return
	}

	memories, err := h.temporal.GetAsOf(r.Context(), caller, filter, req.At)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]interface{}{"memories": toMemoryResponses(memories)})
}

type supersedeRequest struct {
	Content string `json:"content" validate:"required"`
}

// Supersede handles POST /memories/{id}/supersede
func (h *TemporalHandler) Supersede(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	id, err := valueobjects.NewMemoryIDFromString(chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	var req supersedeRequest
	if err := decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	successor, err := h.temporal.Supersede(r.Context(), caller, id, req.Content)
	if err != nil {
		h.logger.Warn("supersede failed", zap.String("memoryId", id.String()), zap.Error(err))
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusCreated, toMemoryResponse(successor))
}

// History handles GET /lineages/{id}/history
func (h *TemporalHandler) History(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	lineageID, err := valueobjects.NewLineageIDFromString(chi.URLParam(r, "id"))
	if err != nil {
		api.HandleError(w, err)
		return
	}

	memories, err := h.temporal.History(r.Context(), caller, lineageID)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]interface{}{"versions": toMemoryResponses(memories)})
}

type compareRequest struct {
	Filter filterRequest `json:"filter" validate:"required"`
	T1     time.Time     `json:"t1" validate:"required"`
	T2     time.Time     `json:"t2" validate:"required"`
}

// Compare handles POST /temporal/compare
func (h *TemporalHandler) Compare(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req compareRequest
	if err := decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	filter, err := req.Filter.toFilter()
	if err != nil {
		api.HandleError(w, err)
		return
	}

	diff, err := h.temporal.CompareStates(r.Context(), caller, filter, req.T1, req.T2)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]interface{}{
		"added":     toMemoryResponses(diff.Added),
		"removed":   toMemoryResponses(diff.Removed),
		"unchanged": diff.Unchanged,
	})
}

type timelineRequest struct {
	Filter filterRequest `json:"filter" validate:"required"`
	Start  time.Time     `json:"start" validate:"required"`
	End    time.Time     `json:"end" validate:"required"`
	Limit  int           `json:"limit,omitempty" validate:"gte=0,lte=1000"`
}

type timelineEventResponse struct {
	Memory    memoryResponse `json:"memory"`
	At        time.Time      `json:"at"`
	Status    string         `json:"status"`
	LineageID string         `json:"lineageId"`
}

// Timeline handles POST /temporal/timeline
func (h *TemporalHandler) Timeline(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req timelineRequest
	if err := decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}
	filter, err := req.Filter.toFilter()
	if err != nil {
		api.HandleError(w, err)
		return
	}

	events, err := h.temporal.Timeline(r.Context(), caller, filter, req.Start, req.End, req.Limit)
	if err != nil {
		api.HandleError(w, err)
		return
	}

	out := make([]timelineEventResponse, 0, len(events))
	for _, ev := range events {
		out = append(out, timelineEventResponse{
			Memory:    toMemoryResponse(ev.Memory),
			At:        ev.At,
			Status:    ev.Status,
			LineageID: ev.LineageID,
		})
	}
	api.Success(w, http.StatusOK, map[string]interface{}{"events": out})
}

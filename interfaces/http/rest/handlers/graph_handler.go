package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"engram-backend/application/services"
	"engram-backend/domain/core/entities"
	"engram-backend/pkg/api"
)

// GraphHandler serves the knowledge graph sidecar
type GraphHandler struct {
	graph  *services.GraphService
	logger *zap.Logger
}

// NewGraphHandler creates a graph handler
func NewGraphHandler(graph *services.GraphService, logger *zap.Logger) *GraphHandler {
	return &GraphHandler{graph: graph, logger: logger}
}

type upsertNodeRequest struct {
	Name       string            `json:"name" validate:"required"`
	Label      string            `json:"label" validate:"required"`
	Properties map[string]string `json:"properties,omitempty"`
}

type nodeResponse struct {
	ID         string            `json:"id"`
	Name       string            `json:"name"`
	Label      string            `json:"label"`
	Properties map[string]string `json:"properties,omitempty"`
}

func toNodeResponse(n *entities.GraphNode) nodeResponse {
	return nodeResponse{ID: n.ID(), Name: n.Name(), Label: n.Label(), Properties: n.Properties()}
}

// UpsertNode handles POST /graph/nodes
func (h *GraphHandler) UpsertNode(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req upsertNodeRequest
	if err := decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	node, err := h.graph.UpsertNode(r.Context(), caller, req.Name, req.Label, req.Properties)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, toNodeResponse(node))
}

type upsertEdgeRequest struct {
	Source     string            `json:"source" validate:"required"`
	Target     string            `json:"target" validate:"required"`
	Relation   string            `json:"relation" validate:"required"`
	Properties map[string]string `json:"properties,omitempty"`
}

type edgeResponse struct {
	ID         string            `json:"id"`
	Source     string            `json:"source"`
	Target     string            `json:"target"`
	Relation   string            `json:"relation"`
	Properties map[string]string `json:"properties,omitempty"`
}

// UpsertEdge handles POST /graph/edges. Both endpoints must already exist;
// edges never create nodes implicitly.
func (h *GraphHandler) UpsertEdge(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	var req upsertEdgeRequest
	if err := decode(r, &req); err != nil {
		api.Error(w, http.StatusBadRequest, err.Error())
		return
	}

	edge, err := h.graph.UpsertEdge(r.Context(), caller, req.Source, req.Target, req.Relation, req.Properties)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, edgeResponse{
		ID:         edge.ID(),
		Source:     edge.SourceName(),
		Target:     edge.TargetName(),
		Relation:   edge.Relation(),
		Properties: edge.Properties(),
	})
}

// Traverse handles GET /graph/nodes/{name}/traverse
func (h *GraphHandler) Traverse(w http.ResponseWriter, r *http.Request) {
	caller, ok := callerFrom(w, r)
	if !ok {
		return
	}

	name := chi.URLParam(r, "name")
	if name == "" {
		api.Error(w, http.StatusBadRequest, "node name is required")
		return
	}

	triples, err := h.graph.Traverse(r.Context(), caller, name)
	if err != nil {
		api.HandleError(w, err)
		return
	}
	api.Success(w, http.StatusOK, map[string]interface{}{"triples": toTripleResponses(triples)})
}

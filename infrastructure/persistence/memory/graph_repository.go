package memory

import (
	"context"
	"sort"
	"sync"

	"engram-backend/application/ports"
	"engram-backend/domain/core/entities"
	"engram-backend/pkg/errors"
)

// GraphRepository is a mutex-guarded in-memory implementation of
// ports.GraphRepository. Nodes key on (tenant, name, label); edges key on
// (tenant, source, target, relation).
type GraphRepository struct {
	mu    sync.RWMutex
	nodes map[graphNodeKey]*entities.GraphNode
	edges map[graphEdgeKey]*entities.GraphEdge
}

type graphNodeKey struct {
	tenantID string
	name     string
	label    string
}

type graphEdgeKey struct {
	tenantID   string
	sourceName string
	targetName string
	relation   string
}

// NewGraphRepository creates an empty graph repository
func NewGraphRepository() *GraphRepository {
	return &GraphRepository{
		nodes: make(map[graphNodeKey]*entities.GraphNode),
		edges: make(map[graphEdgeKey]*entities.GraphEdge),
	}
}

// SaveNode persists a node under its identity key
func (r *GraphRepository) SaveNode(ctx context.Context, node *entities.GraphNode) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := graphNodeKey{node.TenantID(), node.Name(), node.Label()}
	r.nodes[key] = copyNode(node)
	return nil
}

// FindNode retrieves a node by its (name, label) identity
func (r *GraphRepository) FindNode(ctx context.Context, tenantID, name, label string) (*entities.GraphNode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	node, ok := r.nodes[graphNodeKey{tenantID, name, label}]
	if !ok {
		return nil, errors.NewNotFound("graph node not found")
	}
	return copyNode(node), nil
}

// FindNodesByName retrieves all nodes with the given name regardless of label
func (r *GraphRepository) FindNodesByName(ctx context.Context, tenantID, name string) ([]*entities.GraphNode, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.GraphNode
	for key, node := range r.nodes {
		if key.tenantID == tenantID && key.name == name {
			out = append(out, copyNode(node))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Label() < out[j].Label()
	})
	return out, nil
}

// SaveEdge persists an edge under its identity key
func (r *GraphRepository) SaveEdge(ctx context.Context, edge *entities.GraphEdge) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := graphEdgeKey{edge.TenantID(), edge.SourceName(), edge.TargetName(), edge.Relation()}
	r.edges[key] = copyEdge(edge)
	return nil
}

// FindEdge retrieves an edge by its (source, target, relation) identity
func (r *GraphRepository) FindEdge(ctx context.Context, tenantID, sourceName, targetName, relation string) (*entities.GraphEdge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	edge, ok := r.edges[graphEdgeKey{tenantID, sourceName, targetName, relation}]
	if !ok {
		return nil, errors.NewNotFound("graph edge not found")
	}
	return copyEdge(edge), nil
}

// EdgesTouching returns every edge with the named node on either side
func (r *GraphRepository) EdgesTouching(ctx context.Context, tenantID, name string) ([]*entities.GraphEdge, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.GraphEdge
	for key, edge := range r.edges {
		if key.tenantID != tenantID {
			continue
		}
		if key.sourceName == name || key.targetName == name {
			out = append(out, copyEdge(edge))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].SourceName() != out[j].SourceName() {
			return out[i].SourceName() < out[j].SourceName()
		}
		if out[i].Relation() != out[j].Relation() {
			return out[i].Relation() < out[j].Relation()
		}
		return out[i].TargetName() < out[j].TargetName()
	})
	return out, nil
}

func copyNode(n *entities.GraphNode) *entities.GraphNode {
	return entities.ReconstructGraphNode(
		n.ID(), n.TenantID(), n.Name(), n.Label(),
		n.Properties(), n.CreatedAt(), n.UpdatedAt(),
	)
}

func copyEdge(e *entities.GraphEdge) *entities.GraphEdge {
	return entities.ReconstructGraphEdge(
		e.ID(), e.TenantID(), e.SourceName(), e.TargetName(), e.Relation(),
		e.Properties(), e.CreatedAt(), e.UpdatedAt(),
	)
}

var _ ports.GraphRepository = (*GraphRepository)(nil)

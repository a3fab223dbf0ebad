package entities

import (
	"time"

	"github.com/google/uuid"

	pkgerrors "engram-backend/pkg/errors"
)

// GraphNode is a named, labeled entity in the association graph. Identity is
// the (name, label) pair; the id is storage-facing only.
type GraphNode struct {
	id         string
	name       string
	label      string
	tenantID   string
	properties map[string]string
	createdAt  time.Time
	updatedAt  time.Time
}

// NewGraphNode creates a graph node
func NewGraphNode(tenantID, name, label string, properties map[string]string, now time.Time) (*GraphNode, error) {
	if tenantID == "" {
		return nil, pkgerrors.NewValidation("tenant ID cannot be empty")
	}
	if name == "" {
		return nil, pkgerrors.NewValidation("node name cannot be empty")
	}
	if label == "" {
		return nil, pkgerrors.NewValidation("node label cannot be empty")
	}

	props := make(map[string]string, len(properties))
	for k, v := range properties {
		props[k] = v
	}

	return &GraphNode{
		id:         uuid.New().String(),
		name:       name,
		label:      label,
		tenantID:   tenantID,
		properties: props,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// ReconstructGraphNode rebuilds a node from repository data
func ReconstructGraphNode(id, tenantID, name, label string, properties map[string]string, createdAt, updatedAt time.Time) *GraphNode {
	props := make(map[string]string, len(properties))
	for k, v := range properties {
		props[k] = v
	}
	return &GraphNode{
		id:         id,
		name:       name,
		label:      label,
		tenantID:   tenantID,
		properties: props,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}

func (n *GraphNode) ID() string           { return n.id }
func (n *GraphNode) Name() string         { return n.name }
func (n *GraphNode) Label() string        { return n.label }
func (n *GraphNode) TenantID() string     { return n.tenantID }
func (n *GraphNode) CreatedAt() time.Time { return n.createdAt }
func (n *GraphNode) UpdatedAt() time.Time { return n.updatedAt }

// Properties returns a copy of the property map
func (n *GraphNode) Properties() map[string]string {
	props := make(map[string]string, len(n.properties))
	for k, v := range n.properties {
		props[k] = v
	}
	return props
}

// MergeProperties overlays new properties onto the node, keeping identity and
// existing keys the overlay does not mention. This is the upsert merge step.
func (n *GraphNode) MergeProperties(properties map[string]string, now time.Time) {
	for k, v := range properties {
		n.properties[k] = v
	}
	n.updatedAt = now
}

// GraphEdge is a directed, labeled connection between two graph nodes.
// Identity is the (source, target, relation) triple.
type GraphEdge struct {
	id         string
	sourceName string
	targetName string
	relation   string
	tenantID   string
	properties map[string]string
	createdAt  time.Time
	updatedAt  time.Time
}

// NewGraphEdge creates a graph edge between two existing nodes
func NewGraphEdge(tenantID, sourceName, targetName, relation string, properties map[string]string, now time.Time) (*GraphEdge, error) {
	if tenantID == "" {
		return nil, pkgerrors.NewValidation("tenant ID cannot be empty")
	}
	if sourceName == "" || targetName == "" {
		return nil, pkgerrors.NewValidation("edge requires source and target names")
	}
	if relation == "" {
		return nil, pkgerrors.NewValidation("edge relation cannot be empty")
	}

	props := make(map[string]string, len(properties))
	for k, v := range properties {
		props[k] = v
	}

	return &GraphEdge{
		id:         uuid.New().String(),
		sourceName: sourceName,
		targetName: targetName,
		relation:   relation,
		tenantID:   tenantID,
		properties: props,
		createdAt:  now,
		updatedAt:  now,
	}, nil
}

// ReconstructGraphEdge rebuilds an edge from repository data
func ReconstructGraphEdge(id, tenantID, sourceName, targetName, relation string, properties map[string]string, createdAt, updatedAt time.Time) *GraphEdge {
	props := make(map[string]string, len(properties))
	for k, v := range properties {
		props[k] = v
	}
	return &GraphEdge{
		id:         id,
		sourceName: sourceName,
		targetName: targetName,
		relation:   relation,
		tenantID:   tenantID,
		properties: props,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}

func (e *GraphEdge) ID() string           { return e.id }
func (e *GraphEdge) SourceName() string   { return e.sourceName }
func (e *GraphEdge) TargetName() string   { return e.targetName }
func (e *GraphEdge) Relation() string     { return e.relation }
func (e *GraphEdge) TenantID() string     { return e.tenantID }
func (e *GraphEdge) CreatedAt() time.Time { return e.createdAt }
func (e *GraphEdge) UpdatedAt() time.Time { return e.updatedAt }

// Properties returns a copy of the property map
func (e *GraphEdge) Properties() map[string]string {
	props := make(map[string]string, len(e.properties))
	for k, v := range e.properties {
		props[k] = v
	}
	return props
}

// MergeProperties overlays new properties onto the edge
func (e *GraphEdge) MergeProperties(properties map[string]string, now time.Time) {
	for k, v := range properties {
		e.properties[k] = v
	}
	e.updatedAt = now
}

// Triple is one traversal result in natural source -> target order
type Triple struct {
	Source   string `json:"source"`
	Relation string `json:"relation"`
	Target   string `json:"target"`
}

// Triple renders the edge as a traversal triple
func (e *GraphEdge) Triple() Triple {
	return Triple{Source: e.sourceName, Relation: e.relation, Target: e.targetName}
}

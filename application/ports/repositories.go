package ports

import (
	"context"
	"time"

	"engram-backend/domain/core/entities"
	"engram-backend/domain/core/valueobjects"
	"engram-backend/domain/events"
)

// RankedMemory is a memory with the score that put it in a candidate list
type RankedMemory struct {
	Memory *entities.Memory
	Score  float64
}

// MemoryRepository defines the interface for memory persistence
// This is a port in hexagonal architecture - the domain doesn't know about the implementation
type MemoryRepository interface {
	// Save persists a memory version row (create or update). Updates are
	// conditional on the version the caller read; a lost race returns a
	// conflict error.
	Save(ctx context.Context, memory *entities.Memory) error

	// GetByID retrieves a memory by its ID within a tenant. A foreign
	// tenant's memory is reported as not found.
	GetByID(ctx context.Context, tenantID string, id valueobjects.MemoryID) (*entities.Memory, error)

	// GetCurrent retrieves the current version row of a lineage
	GetCurrent(ctx context.Context, tenantID string, lineageID valueobjects.LineageID) (*entities.Memory, error)

	// GetLineage retrieves every version row of a lineage ordered by
	// valid-from ascending
	GetLineage(ctx context.Context, tenantID string, lineageID valueobjects.LineageID) ([]*entities.Memory, error)

	// SaveVersionPair atomically persists a closed old row and its open
	// successor, conditional on the old row's read version. This is the
	// supersession write.
	SaveVersionPair(ctx context.Context, closed, successor *entities.Memory) error

	// Delete removes a memory row permanently (consolidation absorbs)
	Delete(ctx context.Context, tenantID string, id valueobjects.MemoryID) error

	// VectorTopK returns up to k current, unarchived records matching the
	// filter, ordered by ascending vector distance to the query embedding.
	// Records with stale embeddings are skipped.
	VectorTopK(ctx context.Context, filter valueobjects.Filter, query valueobjects.Embedding, k int) ([]RankedMemory, error)

	// KeywordTopK returns up to k current, unarchived records matching the
	// filter, ordered by descending keyword relevance to the query text.
	// Zero-relevance records never rank.
	KeywordTopK(ctx context.Context, filter valueobjects.Filter, queryText string, k int) ([]RankedMemory, error)

	// ListAsOf returns every record whose validity interval contains t,
	// scoped to the filter. Unknown lineages yield empty results.
	ListAsOf(ctx context.Context, filter valueobjects.Filter, t time.Time) ([]*entities.Memory, error)

	// ListByValidFrom returns every version row whose validity started
	// inside [start, end), scoped to the filter, ordered by valid-from
	// ascending. Superseded rows are included; this is the timeline scan.
	ListByValidFrom(ctx context.Context, filter valueobjects.Filter, start, end time.Time) ([]*entities.Memory, error)

	// ListCurrent returns all current version rows matching the filter,
	// archived ones included when includeArchived is set
	ListCurrent(ctx context.Context, filter valueobjects.Filter, includeArchived bool) ([]*entities.Memory, error)

	// ListDecayCandidates returns current, unarchived records whose last
	// access is older than the cutoff and whose importance exceeds the floor
	ListDecayCandidates(ctx context.Context, tenantID string, cutoff time.Time, floor float64) ([]*entities.Memory, error)

	// ListTenants returns every tenant with stored records. Background
	// maintenance iterates tenants one at a time so nothing ever crosses
	// the isolation boundary.
	ListTenants(ctx context.Context) ([]string, error)
}

// GraphRepository defines the interface for association graph persistence
type GraphRepository interface {
	// SaveNode persists a graph node (create or update)
	SaveNode(ctx context.Context, node *entities.GraphNode) error

	// FindNode retrieves a node by its (name, label) identity
	FindNode(ctx context.Context, tenantID, name, label string) (*entities.GraphNode, error)

	// FindNodesByName retrieves all nodes with the given name regardless
	// of label
	FindNodesByName(ctx context.Context, tenantID, name string) ([]*entities.GraphNode, error)

	// SaveEdge persists a graph edge (create or update)
	SaveEdge(ctx context.Context, edge *entities.GraphEdge) error

	// FindEdge retrieves an edge by its (source, target, relation) identity
	FindEdge(ctx context.Context, tenantID, sourceName, targetName, relation string) (*entities.GraphEdge, error)

	// EdgesTouching returns every edge with the named node on either side
	EdgesTouching(ctx context.Context, tenantID, name string) ([]*entities.GraphEdge, error)
}

// ProposalRepository defines the interface for promotion proposal persistence
type ProposalRepository interface {
	// Save persists a proposal (create or update), version-conditional
	Save(ctx context.Context, proposal *entities.Proposal) error

	// GetByID retrieves a proposal by ID
	GetByID(ctx context.Context, id valueobjects.ProposalID) (*entities.Proposal, error)

	// FindPendingFor returns the pending proposal for a memory and target
	// tier, if one exists
	FindPendingFor(ctx context.Context, memoryID valueobjects.MemoryID, target valueobjects.Visibility) (*entities.Proposal, error)

	// ListPending returns all pending proposals for an organization
	ListPending(ctx context.Context, orgID string) ([]*entities.Proposal, error)
}

// WatermarkStore persists the last-run time of recurring background tasks so
// skipped or delayed cycles resume where they left off
type WatermarkStore interface {
	// Get returns the stored watermark for a task, zero time when unset
	Get(ctx context.Context, task string) (time.Time, error)

	// Set stores the watermark for a task
	Set(ctx context.Context, task string, at time.Time) error
}

// EventPublisher defines the interface for publishing domain events
type EventPublisher interface {
	// Publish sends a single event
	Publish(ctx context.Context, event events.DomainEvent) error

	// PublishBatch sends multiple events
	PublishBatch(ctx context.Context, events []events.DomainEvent) error
}

package events

// Event sources - These define where events originate from
const (
	// SourceEngine is the primary retrieval/curation engine source
	SourceEngine = "engram.engine"

	// SourceLifecycle is the background lifecycle worker source
	SourceLifecycle = "engram.lifecycle"

	// SourceEmbedding is the embedding refresh worker source
	SourceEmbedding = "engram.embedding"
)

// Event types - These define the types of events in the system
const (
	// Memory events
	TypeMemoryCreated      = "memory.created"
	TypeMemorySuperseded   = "memory.superseded"
	TypeMemoryReinforced   = "memory.reinforced"
	TypeMemoryConsolidated = "memory.consolidated"
	TypeMemoryArchived     = "memory.archived"

	// Lifecycle events
	TypeDecayCycleCompleted = "lifecycle.decay.completed"

	// Promotion events
	TypeProposalSubmitted = "promotion.proposal.submitted"
	TypeProposalApproved  = "promotion.proposal.approved"
	TypeProposalRejected  = "promotion.proposal.rejected"

	// Embedding events
	TypeEmbeddingRefreshed = "embedding.refreshed"
	TypeEmbeddingFailed    = "embedding.failed"
)

// Event detail keys - Common keys used in event details
const (
	DetailMemoryID  = "memoryId"
	DetailLineageID = "lineageId"
	DetailTenantID  = "tenantId"
	DetailActorID   = "actorId"
)

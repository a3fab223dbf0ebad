package events

import "time"

// MemoryCreated is emitted when a new memory record enters the store
type MemoryCreated struct {
	BaseEvent
	MemoryID  string   `json:"memoryId"`
	LineageID string   `json:"lineageId"`
	TenantID  string   `json:"tenantId"`
	Kind      string   `json:"kind"`
	Flashbulb bool     `json:"flashbulb"`
	Keywords  []string `json:"keywords"`
}

// NewMemoryCreated creates a memory created event
func NewMemoryCreated(memoryID, lineageID, tenantID, kind string, flashbulb bool, keywords []string, at time.Time) MemoryCreated {
	return MemoryCreated{
		BaseEvent: BaseEvent{
			AggregateID: memoryID,
			EventType:   TypeMemoryCreated,
			Timestamp:   at,
			Version:     1,
		},
		MemoryID:  memoryID,
		LineageID: lineageID,
		TenantID:  tenantID,
		Kind:      kind,
		Flashbulb: flashbulb,
		Keywords:  keywords,
	}
}

// MemorySuperseded is emitted when a new version replaces the current row of
// a lineage
type MemorySuperseded struct {
	BaseEvent
	LineageID    string `json:"lineageId"`
	OldMemoryID  string `json:"oldMemoryId"`
	NewMemoryID  string `json:"newMemoryId"`
	TenantID     string `json:"tenantId"`
	ActorID      string `json:"actorId"`
	ValidFrom    string `json:"validFrom"`
	EmbeddingLag bool   `json:"embeddingLag"`
}

// NewMemorySuperseded creates a supersession event
func NewMemorySuperseded(lineageID, oldID, newID, tenantID, actorID string, validFrom time.Time) MemorySuperseded {
	return MemorySuperseded{
		BaseEvent: BaseEvent{
			AggregateID: lineageID,
			EventType:   TypeMemorySuperseded,
			Timestamp:   validFrom,
			Version:     1,
		},
		LineageID:    lineageID,
		OldMemoryID:  oldID,
		NewMemoryID:  newID,
		TenantID:     tenantID,
		ActorID:      actorID,
		ValidFrom:    validFrom.UTC().Format(time.RFC3339Nano),
		EmbeddingLag: true,
	}
}

// MemoryReinforced is emitted when access or near-duplicate ingestion bumps a
// memory's importance
type MemoryReinforced struct {
	BaseEvent
	MemoryID   string  `json:"memoryId"`
	TenantID   string  `json:"tenantId"`
	Importance float64 `json:"importance"`
}

// NewMemoryReinforced creates a reinforcement event
func NewMemoryReinforced(memoryID, tenantID string, importance float64, at time.Time) MemoryReinforced {
	return MemoryReinforced{
		BaseEvent: BaseEvent{
			AggregateID: memoryID,
			EventType:   TypeMemoryReinforced,
			Timestamp:   at,
			Version:     1,
		},
		MemoryID:   memoryID,
		TenantID:   tenantID,
		Importance: importance,
	}
}

// MemoryConsolidated is emitted when a cluster is merged into its primary
type MemoryConsolidated struct {
	BaseEvent
	PrimaryID   string   `json:"primaryId"`
	AbsorbedIDs []string `json:"absorbedIds"`
	TenantID    string   `json:"tenantId"`
}

// NewMemoryConsolidated creates a consolidation event
func NewMemoryConsolidated(primaryID string, absorbedIDs []string, tenantID string, at time.Time) MemoryConsolidated {
	return MemoryConsolidated{
		BaseEvent: BaseEvent{
			AggregateID: primaryID,
			EventType:   TypeMemoryConsolidated,
			Timestamp:   at,
			Version:     1,
		},
		PrimaryID:   primaryID,
		AbsorbedIDs: absorbedIDs,
		TenantID:    tenantID,
	}
}

// MemoryArchived is emitted when decay pushes a memory below the importance
// floor and it leaves default recall
type MemoryArchived struct {
	BaseEvent
	MemoryID   string  `json:"memoryId"`
	TenantID   string  `json:"tenantId"`
	Importance float64 `json:"importance"`
}

// NewMemoryArchived creates an archival event
func NewMemoryArchived(memoryID, tenantID string, importance float64, at time.Time) MemoryArchived {
	return MemoryArchived{
		BaseEvent: BaseEvent{
			AggregateID: memoryID,
			EventType:   TypeMemoryArchived,
			Timestamp:   at,
			Version:     1,
		},
		MemoryID:   memoryID,
		TenantID:   tenantID,
		Importance: importance,
	}
}

// DecayCycleCompleted is emitted once per background decay run
type DecayCycleCompleted struct {
	BaseEvent
	TenantID string `json:"tenantId"`
	Decayed  int    `json:"decayed"`
	Archived int    `json:"archived"`
}

// NewDecayCycleCompleted creates a decay cycle summary event
func NewDecayCycleCompleted(tenantID string, decayed, archived int, at time.Time) DecayCycleCompleted {
	return DecayCycleCompleted{
		BaseEvent: BaseEvent{
			AggregateID: tenantID,
			EventType:   TypeDecayCycleCompleted,
			Timestamp:   at,
			Version:     1,
		},
		TenantID: tenantID,
		Decayed:  decayed,
		Archived: archived,
	}
}

// ProposalStateChanged is emitted on every promotion proposal transition
type ProposalStateChanged struct {
	BaseEvent
	ProposalID string `json:"proposalId"`
	MemoryID   string `json:"memoryId"`
	Status     string `json:"status"`
	ActorID    string `json:"actorId"`
}

// NewProposalStateChanged creates a proposal transition event
func NewProposalStateChanged(eventType, proposalID, memoryID, status, actorID string, at time.Time) ProposalStateChanged {
	return ProposalStateChanged{
		BaseEvent: BaseEvent{
			AggregateID: proposalID,
			EventType:   eventType,
			Timestamp:   at,
			Version:     1,
		},
		ProposalID: proposalID,
		MemoryID:   memoryID,
		Status:     status,
		ActorID:    actorID,
	}
}

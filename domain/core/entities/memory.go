package entities

import (
	"time"

	"engram-backend/domain/core/valueobjects"
	"engram-backend/domain/events"
	pkgerrors "engram-backend/pkg/errors"
)

// Memory is the main entity: one version row of a memory record. Rows in the
// same lineage share a LineageID; exactly one of them is current at any time.
type Memory struct {
	// Private fields ensure encapsulation
	id            valueobjects.MemoryID
	lineageID     valueobjects.LineageID
	content       string
	embedding     valueobjects.Embedding
	attributes    valueobjects.Attributes
	keywords      []string
	importance    float64
	reinforcement int
	flashbulb     bool
	verified      bool
	archived      bool
	interval      valueobjects.ValidInterval
	isCurrent     bool
	lastAccessed  time.Time
	createdAt     time.Time
	version       int

	// Domain events that occurred during this entity's lifetime
	events []events.DomainEvent
}

// NewMemory creates the first version row of a fresh lineage
func NewMemory(content string, attrs valueobjects.Attributes, keywords []string, importance float64, flashbulb bool, now time.Time) (*Memory, error) {
	if content == "" {
		return nil, pkgerrors.NewValidation("content cannot be empty")
	}
	if attrs.Scope().IsZero() {
		return nil, pkgerrors.NewValidation("memory requires a tenant scope")
	}
	if importance < 0 || importance > 1 {
		return nil, pkgerrors.NewValidation("importance must be in [0, 1]")
	}

	m := &Memory{
		id:           valueobjects.NewMemoryID(),
		lineageID:    valueobjects.NewLineageID(),
		content:      content,
		attributes:   attrs,
		keywords:     append([]string(nil), keywords...),
		importance:   importance,
		flashbulb:    flashbulb,
		interval:     valueobjects.NewOpenInterval(now),
		isCurrent:    true,
		lastAccessed: now,
		createdAt:    now,
		version:      1,
		events:       []events.DomainEvent{},
	}

	m.addEvent(events.NewMemoryCreated(
		m.id.String(),
		m.lineageID.String(),
		attrs.Scope().TenantID(),
		attrs.Kind().String(),
		flashbulb,
		m.Keywords(),
		now,
	))

	return m, nil
}

// ReconstructMemory rebuilds a memory from repository data with preserved
// timestamps and version
func ReconstructMemory(
	id valueobjects.MemoryID,
	lineageID valueobjects.LineageID,
	content string,
	embedding valueobjects.Embedding,
	attrs valueobjects.Attributes,
	keywords []string,
	importance float64,
	reinforcement int,
	flashbulb, verified, archived bool,
	interval valueobjects.ValidInterval,
	isCurrent bool,
	lastAccessed, createdAt time.Time,
	version int,
) (*Memory, error) {
	if id.IsZero() || lineageID.IsZero() {
		return nil, pkgerrors.NewValidation("memory requires id and lineage id")
	}
	if content == "" {
		return nil, pkgerrors.NewValidation("content cannot be empty")
	}

	return &Memory{
		id:            id,
		lineageID:     lineageID,
		content:       content,
		embedding:     embedding,
		attributes:    attrs,
		keywords:      append([]string(nil), keywords...),
		importance:    importance,
		reinforcement: reinforcement,
		flashbulb:     flashbulb,
		verified:      verified,
		archived:      archived,
		interval:      interval,
		isCurrent:     isCurrent,
		lastAccessed:  lastAccessed,
		createdAt:     createdAt,
		version:       version,
		events:        []events.DomainEvent{},
	}, nil
}

// Accessors

func (m *Memory) ID() valueobjects.MemoryID            { return m.id }
func (m *Memory) LineageID() valueobjects.LineageID    { return m.lineageID }
func (m *Memory) Content() string                      { return m.content }
func (m *Memory) Embedding() valueobjects.Embedding    { return m.embedding }
func (m *Memory) Attributes() valueobjects.Attributes  { return m.attributes }
func (m *Memory) Importance() float64                  { return m.importance }
func (m *Memory) Reinforcement() int                   { return m.reinforcement }
func (m *Memory) IsFlashbulb() bool                    { return m.flashbulb }
func (m *Memory) IsVerified() bool                     { return m.verified }
func (m *Memory) IsArchived() bool                     { return m.archived }
func (m *Memory) Interval() valueobjects.ValidInterval { return m.interval }
func (m *Memory) IsCurrent() bool                      { return m.isCurrent }
func (m *Memory) LastAccessedAt() time.Time            { return m.lastAccessed }
func (m *Memory) CreatedAt() time.Time                 { return m.createdAt }

// Version returns the row version for optimistic locking
func (m *Memory) Version() int { return m.version }

// Keywords returns a copy of the derived keyword list
func (m *Memory) Keywords() []string {
	kw := make([]string, len(m.keywords))
	copy(kw, m.keywords)
	return kw
}

// Behavior

// Touch records an access: bumps lastAccessedAt and nudges importance up.
// Recall counts as use, so recently recalled memories resist decay.
func (m *Memory) Touch(boost float64, at time.Time) {
	m.lastAccessed = at
	m.importance = clamp01(m.importance + boost)
	m.archived = false
	m.version++
}

// Reinforce strengthens the memory after a near-duplicate observation
func (m *Memory) Reinforce(boost float64, at time.Time) {
	m.reinforcement++
	m.Touch(boost, at)
	m.addEvent(events.NewMemoryReinforced(
		m.id.String(), m.attributes.Scope().TenantID(), m.importance, at))
}

// SetImportance pins importance manually, clamped to [0, 1]
func (m *Memory) SetImportance(score float64) {
	m.importance = clamp01(score)
	m.version++
}

// ApplyDecay multiplies importance by the decay factor. When the result lands
// at or below the floor the memory is soft-archived: it stays stored but
// leaves default recall. Returns true when the call archived it.
func (m *Memory) ApplyDecay(factor, floor float64, at time.Time) bool {
	if m.archived || m.importance <= floor {
		return false
	}
	m.importance *= factor
	m.version++
	if m.importance <= floor {
		m.archived = true
		m.addEvent(events.NewMemoryArchived(
			m.id.String(), m.attributes.Scope().TenantID(), m.importance, at))
		return true
	}
	return false
}

// Supersede closes this version and returns its open-ended successor. The
// successor copies every field except content and carries a stale embedding
// until the asynchronous refresh lands. Only the current row can be
// superseded.
func (m *Memory) Supersede(newContent string, keywords []string, actorID string, at time.Time) (*Memory, error) {
	if !m.isCurrent {
		return nil, pkgerrors.NewConflict("only the current version can be superseded")
	}
	if newContent == "" {
		return nil, pkgerrors.NewValidation("content cannot be empty")
	}

	closed, err := m.interval.Close(at)
	if err != nil {
		return nil, err
	}
	m.interval = closed
	m.isCurrent = false
	m.version++

	successor := &Memory{
		id:            valueobjects.NewMemoryID(),
		lineageID:     m.lineageID,
		content:       newContent,
		embedding:     nil, // stale until refreshed
		attributes:    m.attributes,
		keywords:      append([]string(nil), keywords...),
		importance:    m.importance,
		reinforcement: m.reinforcement,
		flashbulb:     m.flashbulb,
		verified:      m.verified,
		interval:      valueobjects.NewOpenInterval(at),
		isCurrent:     true,
		lastAccessed:  at,
		createdAt:     at,
		version:       1,
		events:        []events.DomainEvent{},
	}

	successor.addEvent(events.NewMemorySuperseded(
		m.lineageID.String(),
		m.id.String(),
		successor.id.String(),
		m.attributes.Scope().TenantID(),
		actorID,
		at,
	))

	return successor, nil
}

// Consolidate rewrites this memory in place as the survivor of a cluster
// merge. Consolidation is the one operation that edits content without a new
// version row; the absorbed records are deleted by the caller.
func (m *Memory) Consolidate(newContent string, keywords []string, absorbed []string, boost float64, at time.Time) error {
	if !m.isCurrent {
		return pkgerrors.NewConflict("only the current version can be consolidated")
	}
	if newContent == "" {
		return pkgerrors.NewValidation("content cannot be empty")
	}
	if len(absorbed) == 0 {
		return pkgerrors.NewValidation("consolidation requires absorbed records")
	}

	m.content = newContent
	m.keywords = append([]string(nil), keywords...)
	m.embedding = nil // stale until refreshed
	m.importance = clamp01(m.importance + boost*float64(len(absorbed)))
	m.reinforcement += len(absorbed)
	m.lastAccessed = at
	m.version++

	m.addEvent(events.NewMemoryConsolidated(
		m.id.String(), absorbed, m.attributes.Scope().TenantID(), at))

	return nil
}

// Promote widens visibility after an approved proposal. Importance resets to
// the baseline so the promoted record re-earns its rank in the wider tier.
func (m *Memory) Promote(visibility valueobjects.Visibility, baseline float64) error {
	if visibility != valueobjects.VisibilityTeam && visibility != valueobjects.VisibilityGlobal {
		return pkgerrors.NewValidation("promotion target must be team or global")
	}
	m.attributes = m.attributes.WithVisibility(visibility)
	m.verified = true
	m.importance = clamp01(baseline)
	m.version++
	return nil
}

// SetEmbedding installs a freshly computed vector on a persisted row
func (m *Memory) SetEmbedding(e valueobjects.Embedding) {
	m.embedding = e
	m.version++
}

// AttachEmbedding installs the vector computed before the first save. The row
// has not been written yet, so the version stays at 1.
func (m *Memory) AttachEmbedding(e valueobjects.Embedding) {
	m.embedding = e
}

// GetUncommittedEvents returns all uncommitted domain events
func (m *Memory) GetUncommittedEvents() []events.DomainEvent {
	return m.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (m *Memory) MarkEventsAsCommitted() {
	m.events = []events.DomainEvent{}
}

func (m *Memory) addEvent(event events.DomainEvent) {
	m.events = append(m.events, event)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

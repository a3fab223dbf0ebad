package entities

import (
	"time"

	"engram-backend/domain/core/valueobjects"
	"engram-backend/domain/events"
	pkgerrors "engram-backend/pkg/errors"
)

// ProposalStatus represents the state of a promotion proposal
type ProposalStatus string

const (
	ProposalPending  ProposalStatus = "pending"
	ProposalApproved ProposalStatus = "approved"
	ProposalRejected ProposalStatus = "rejected"
)

// Proposal asks a reviewer to widen a memory's visibility. The state machine
// is pending -> approved | rejected; both outcomes are terminal.
type Proposal struct {
	id         valueobjects.ProposalID
	memoryID   valueobjects.MemoryID
	tenantID   string
	orgID      string
	proposerID string
	target     valueobjects.Visibility
	status     ProposalStatus
	reviewerID string
	createdAt  time.Time
	decidedAt  time.Time
	version    int

	events []events.DomainEvent
}

// NewProposal creates a pending promotion proposal
func NewProposal(memoryID valueobjects.MemoryID, tenantID, orgID, proposerID string, target valueobjects.Visibility, now time.Time) (*Proposal, error) {
	if memoryID.IsZero() {
		return nil, pkgerrors.NewValidation("proposal requires a memory ID")
	}
	if tenantID == "" {
		return nil, pkgerrors.NewValidation("tenant ID cannot be empty")
	}
	if proposerID == "" {
		return nil, pkgerrors.NewValidation("proposer ID cannot be empty")
	}
	if target != valueobjects.VisibilityTeam && target != valueobjects.VisibilityGlobal {
		return nil, pkgerrors.NewValidation("promotion target must be team or global")
	}

	p := &Proposal{
		id:         valueobjects.NewProposalID(),
		memoryID:   memoryID,
		tenantID:   tenantID,
		orgID:      orgID,
		proposerID: proposerID,
		target:     target,
		status:     ProposalPending,
		createdAt:  now,
		version:    1,
		events:     []events.DomainEvent{},
	}

	p.addEvent(events.NewProposalStateChanged(
		events.TypeProposalSubmitted, p.id.String(), memoryID.String(),
		string(ProposalPending), proposerID, now))

	return p, nil
}

// ReconstructProposal rebuilds a proposal from repository data
func ReconstructProposal(
	id valueobjects.ProposalID,
	memoryID valueobjects.MemoryID,
	tenantID, orgID, proposerID string,
	target valueobjects.Visibility,
	status ProposalStatus,
	reviewerID string,
	createdAt, decidedAt time.Time,
	version int,
) *Proposal {
	return &Proposal{
		id:         id,
		memoryID:   memoryID,
		tenantID:   tenantID,
		orgID:      orgID,
		proposerID: proposerID,
		target:     target,
		status:     status,
		reviewerID: reviewerID,
		createdAt:  createdAt,
		decidedAt:  decidedAt,
		version:    version,
		events:     []events.DomainEvent{},
	}
}

func (p *Proposal) ID() valueobjects.ProposalID       { return p.id }
func (p *Proposal) MemoryID() valueobjects.MemoryID   { return p.memoryID }
func (p *Proposal) TenantID() string                  { return p.tenantID }
func (p *Proposal) OrgID() string                     { return p.orgID }
func (p *Proposal) ProposerID() string                { return p.proposerID }
func (p *Proposal) Target() valueobjects.Visibility   { return p.target }
func (p *Proposal) Status() ProposalStatus            { return p.status }
func (p *Proposal) ReviewerID() string                { return p.reviewerID }
func (p *Proposal) CreatedAt() time.Time              { return p.createdAt }
func (p *Proposal) DecidedAt() time.Time              { return p.decidedAt }
func (p *Proposal) Version() int                      { return p.version }
func (p *Proposal) IsPending() bool                   { return p.status == ProposalPending }

// Approve moves the proposal to its approved terminal state
func (p *Proposal) Approve(reviewerID string, now time.Time) error {
	if p.status != ProposalPending {
		return pkgerrors.NewConflict("proposal has already been decided")
	}
	if reviewerID == "" {
		return pkgerrors.NewValidation("reviewer ID cannot be empty")
	}

	p.status = ProposalApproved
	p.reviewerID = reviewerID
	p.decidedAt = now
	p.version++

	p.addEvent(events.NewProposalStateChanged(
		events.TypeProposalApproved, p.id.String(), p.memoryID.String(),
		string(ProposalApproved), reviewerID, now))

	return nil
}

// Reject moves the proposal to its rejected terminal state; the memory is
// left untouched
func (p *Proposal) Reject(reviewerID string, now time.Time) error {
	if p.status != ProposalPending {
		return pkgerrors.NewConflict("proposal has already been decided")
	}
	if reviewerID == "" {
		return pkgerrors.NewValidation("reviewer ID cannot be empty")
	}

	p.status = ProposalRejected
	p.reviewerID = reviewerID
	p.decidedAt = now
	p.version++

	p.addEvent(events.NewProposalStateChanged(
		events.TypeProposalRejected, p.id.String(), p.memoryID.String(),
		string(ProposalRejected), reviewerID, now))

	return nil
}

// GetUncommittedEvents returns all uncommitted domain events
func (p *Proposal) GetUncommittedEvents() []events.DomainEvent {
	return p.events
}

// MarkEventsAsCommitted clears the uncommitted events
func (p *Proposal) MarkEventsAsCommitted() {
	p.events = []events.DomainEvent{}
}

func (p *Proposal) addEvent(event events.DomainEvent) {
	p.events = append(p.events, event)
}

package services

import (
	"context"

	"go.uber.org/zap"

	"engram-backend/application/ports"
	domaincfg "engram-backend/domain/config"
	"engram-backend/domain/core/entities"
	"engram-backend/domain/core/valueobjects"
	"engram-backend/pkg/errors"
)

// PromotionService runs the proposal workflow that widens a memory's
// visibility. Submitting is open to any caller with tenant access; deciding
// is restricted to reviewers the authorizer vouches for.
type PromotionService struct {
	memories   ports.MemoryRepository
	proposals  ports.ProposalRepository
	publisher  ports.EventPublisher
	authorizer ports.Authorizer
	config     *domaincfg.DomainConfig
	clock      Clock
	logger     *zap.Logger
}

// NewPromotionService creates a promotion service
func NewPromotionService(
	memories ports.MemoryRepository,
	proposals ports.ProposalRepository,
	publisher ports.EventPublisher,
	authorizer ports.Authorizer,
	config *domaincfg.DomainConfig,
	clock Clock,
	logger *zap.Logger,
) *PromotionService {
	if config == nil {
		config = domaincfg.DefaultDomainConfig()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &PromotionService{
		memories:   memories,
		proposals:  proposals,
		publisher:  publisher,
		authorizer: authorizer,
		config:     config,
		clock:      clock,
		logger:     logger,
	}
}

// Suggest submits a promotion proposal. Repeating the call while a proposal
// for the same memory and target is still pending returns that proposal
// instead of opening a second one.
func (s *PromotionService) Suggest(ctx context.Context, caller ports.Caller, memoryID valueobjects.MemoryID, target valueobjects.Visibility) (*entities.Proposal, error) {
	ok, err := s.authorizer.CanAccess(ctx, caller, caller.TenantID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, errors.NewUnauthorized("caller may not access this tenant")
	}

	memory, err := s.memories.GetByID(ctx, caller.TenantID, memoryID)
	if err != nil {
		return nil, err
	}

	existing, err := s.proposals.FindPendingFor(ctx, memoryID, target)
	if err != nil && !errors.IsNotFound(err) {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	proposal, err := entities.NewProposal(
		memoryID,
		caller.TenantID,
		memory.Attributes().Scope().OrgID(),
		caller.ID,
		target,
		s.clock.Now(),
	)
	if err != nil {
		return nil, err
	}
	if err := s.proposals.Save(ctx, proposal); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, proposal)
	return proposal, nil
}

// ListPending returns the organization's open proposals for review
func (s *PromotionService) ListPending(ctx context.Context, caller ports.Caller, orgID string) ([]*entities.Proposal, error) {
	reviewer, err := s.authorizer.IsReviewer(ctx, caller, orgID)
	if err != nil {
		return nil, err
	}
	if !reviewer {
		return nil, errors.NewUnauthorized("caller is not a reviewer for this organization")
	}
	return s.proposals.ListPending(ctx, orgID)
}

// Approve accepts a pending proposal: the memory's visibility widens to the
// proposed tier, it is marked verified, and its importance resets to the
// baseline so it re-earns rank in the wider tier.
func (s *PromotionService) Approve(ctx context.Context, caller ports.Caller, proposalID valueobjects.ProposalID) (*entities.Proposal, error) {
	proposal, err := s.loadForDecision(ctx, caller, proposalID)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	if err := proposal.Approve(caller.ID, now); err != nil {
		return nil, err
	}

	_, err = updateMemoryWithRetry(ctx, s.memories, proposal.TenantID(), proposal.MemoryID(), func(m *entities.Memory) error {
		return m.Promote(proposal.Target(), s.config.DefaultImportance)
	})
	if err != nil {
		return nil, err
	}

	if err := s.proposals.Save(ctx, proposal); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, proposal)
	s.logger.Info("proposal approved",
		zap.String("proposal_id", proposal.ID().String()),
		zap.String("memory_id", proposal.MemoryID().String()),
		zap.String("target", proposal.Target().String()))
	return proposal, nil
}

// Reject declines a pending proposal; the memory is left untouched
func (s *PromotionService) Reject(ctx context.Context, caller ports.Caller, proposalID valueobjects.ProposalID) (*entities.Proposal, error) {
	proposal, err := s.loadForDecision(ctx, caller, proposalID)
	if err != nil {
		return nil, err
	}

	if err := proposal.Reject(caller.ID, s.clock.Now()); err != nil {
		return nil, err
	}
	if err := s.proposals.Save(ctx, proposal); err != nil {
		return nil, err
	}

	s.publishEvents(ctx, proposal)
	return proposal, nil
}

func (s *PromotionService) loadForDecision(ctx context.Context, caller ports.Caller, proposalID valueobjects.ProposalID) (*entities.Proposal, error) {
	proposal, err := s.proposals.GetByID(ctx, proposalID)
	if err != nil {
		return nil, err
	}

	reviewer, err := s.authorizer.IsReviewer(ctx, caller, proposal.OrgID())
	if err != nil {
		return nil, err
	}
	if !reviewer {
		return nil, errors.NewUnauthorized("caller is not a reviewer for this organization")
	}
	return proposal, nil
}

func (s *PromotionService) publishEvents(ctx context.Context, p *entities.Proposal) {
	pending := p.GetUncommittedEvents()
	if len(pending) == 0 {
		return
	}
	if err := s.publisher.PublishBatch(ctx, pending); err != nil {
		s.logger.Error("failed to publish domain events", zap.Error(err))
		return
	}
	p.MarkEventsAsCommitted()
}

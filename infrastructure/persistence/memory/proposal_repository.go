package memory

import (
	"context"
	"sort"
	"sync"

	"engram-backend/application/ports"
	"engram-backend/domain/core/entities"
	"engram-backend/domain/core/valueobjects"
	"engram-backend/pkg/errors"
)

// ProposalRepository is a mutex-guarded in-memory implementation of
// ports.ProposalRepository
type ProposalRepository struct {
	mu   sync.RWMutex
	rows map[string]*entities.Proposal
}

// NewProposalRepository creates an empty proposal repository
func NewProposalRepository() *ProposalRepository {
	return &ProposalRepository{rows: make(map[string]*entities.Proposal)}
}

// Save persists a proposal, version-conditional like memory rows
func (r *ProposalRepository) Save(ctx context.Context, proposal *entities.Proposal) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := proposal.ID().String()
	existing, ok := r.rows[key]
	if ok {
		if proposal.Version() != existing.Version()+1 {
			return errors.NewConflict("proposal version conflict")
		}
	} else if proposal.Version() != 1 {
		return errors.NewConflict("proposal version conflict")
	}
	r.rows[key] = copyProposal(proposal)
	return nil
}

// GetByID retrieves a proposal by ID
func (r *ProposalRepository) GetByID(ctx context.Context, id valueobjects.ProposalID) (*entities.Proposal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.rows[id.String()]
	if !ok {
		return nil, errors.NewNotFound("proposal not found")
	}
	return copyProposal(p), nil
}

// FindPendingFor returns the pending proposal for a memory and target tier
func (r *ProposalRepository) FindPendingFor(ctx context.Context, memoryID valueobjects.MemoryID, target valueobjects.Visibility) (*entities.Proposal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.rows {
		if p.IsPending() && p.MemoryID().Equals(memoryID) && p.Target() == target {
			return copyProposal(p), nil
		}
	}
	return nil, errors.NewNotFound("no pending proposal")
}

// ListPending returns all pending proposals for an organization, oldest first
func (r *ProposalRepository) ListPending(ctx context.Context, orgID string) ([]*entities.Proposal, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.Proposal
	for _, p := range r.rows {
		if p.IsPending() && p.OrgID() == orgID {
			out = append(out, copyProposal(p))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt().Equal(out[j].CreatedAt()) {
			return out[i].CreatedAt().Before(out[j].CreatedAt())
		}
		return out[i].ID().String() < out[j].ID().String()
	})
	return out, nil
}

func copyProposal(p *entities.Proposal) *entities.Proposal {
	return entities.ReconstructProposal(
		p.ID(), p.MemoryID(), p.TenantID(), p.OrgID(), p.ProposerID(),
		p.Target(), p.Status(), p.ReviewerID(),
		p.CreatedAt(), p.DecidedAt(), p.Version(),
	)
}

var _ ports.ProposalRepository = (*ProposalRepository)(nil)

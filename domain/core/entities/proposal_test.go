package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engram-backend/domain/core/valueobjects"
	"engram-backend/domain/events"
)

func newTestProposal(t *testing.T) *Proposal {
	t.Helper()
	p, err := NewProposal(valueobjects.NewMemoryID(), "tenant-1", "org-1", "user-1",
		valueobjects.VisibilityTeam, testNow)
	require.NoError(t, err)
	return p
}

func TestNewProposal(t *testing.T) {
	memoryID := valueobjects.NewMemoryID()

	tests := []struct {
		name     string
		memoryID valueobjects.MemoryID
		tenantID string
		proposer string
		target   valueobjects.Visibility
		wantErr  bool
	}{
		{
			name:     "valid team target",
			memoryID: memoryID,
			tenantID: "tenant-1",
			proposer: "user-1",
			target:   valueobjects.VisibilityTeam,
		},
		{
			name:     "valid global target",
			memoryID: memoryID,
			tenantID: "tenant-1",
			proposer: "user-1",
			target:   valueobjects.VisibilityGlobal,
		},
		{
			name:     "private target rejected",
			memoryID: memoryID,
			tenantID: "tenant-1",
			proposer: "user-1",
			target:   valueobjects.VisibilityPrivate,
			wantErr:  true,
		},
		{
			name:     "zero memory ID",
			memoryID: valueobjects.MemoryID{},
			tenantID: "tenant-1",
			proposer: "user-1",
			target:   valueobjects.VisibilityTeam,
			wantErr:  true,
		},
		{
			name:     "missing tenant",
			memoryID: memoryID,
			tenantID: "",
			proposer: "user-1",
			target:   valueobjects.VisibilityTeam,
			wantErr:  true,
		},
		{
			name:     "missing proposer",
			memoryID: memoryID,
			tenantID: "tenant-1",
			proposer: "",
			target:   valueobjects.VisibilityTeam,
			wantErr:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := NewProposal(tt.memoryID, tt.tenantID, "org-1", tt.proposer, tt.target, testNow)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.True(t, p.IsPending())
			assert.Equal(t, ProposalPending, p.Status())
			assert.Equal(t, 1, p.Version())
			assert.True(t, p.DecidedAt().IsZero())

			evts := p.GetUncommittedEvents()
			require.Len(t, evts, 1)
			assert.Equal(t, events.TypeProposalSubmitted, evts[0].GetEventType())
		})
	}
}

func TestProposalApprove(t *testing.T) {
	p := newTestProposal(t)
	p.MarkEventsAsCommitted()
	at := testNow.Add(time.Hour)

	err := p.Approve("reviewer-1", at)
	require.NoError(t, err)

	assert.Equal(t, ProposalApproved, p.Status())
	assert.Equal(t, "reviewer-1", p.ReviewerID())
	assert.Equal(t, at, p.DecidedAt())
	assert.False(t, p.IsPending())

	evts := p.GetUncommittedEvents()
	require.Len(t, evts, 1)
	assert.Equal(t, events.TypeProposalApproved, evts[0].GetEventType())
}

func TestProposalReject(t *testing.T) {
	p := newTestProposal(t)
	p.MarkEventsAsCommitted()

	err := p.Reject("reviewer-1", testNow.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, ProposalRejected, p.Status())

	evts := p.GetUncommittedEvents()
	require.Len(t, evts, 1)
	assert.Equal(t, events.TypeProposalRejected, evts[0].GetEventType())
}

func TestProposalDecisionsAreTerminal(t *testing.T) {
	approved := newTestProposal(t)
	require.NoError(t, approved.Approve("reviewer-1", testNow))
	assert.Error(t, approved.Approve("reviewer-2", testNow))
	assert.Error(t, approved.Reject("reviewer-2", testNow))

	rejected := newTestProposal(t)
	require.NoError(t, rejected.Reject("reviewer-1", testNow))
	assert.Error(t, rejected.Approve("reviewer-2", testNow))
	assert.Error(t, rejected.Reject("reviewer-2", testNow))
}

func TestProposalDecisionRequiresReviewer(t *testing.T) {
	p := newTestProposal(t)
	assert.Error(t, p.Approve("", testNow))
	assert.True(t, p.IsPending())
}

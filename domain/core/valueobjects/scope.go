package valueobjects

import (
	"strings"

	"engram-backend/pkg/errors"
)

// Visibility controls which callers inside an organization can recall a memory.
type Visibility string

const (
	VisibilityPrivate Visibility = "private"
	VisibilityTeam    Visibility = "team"
	VisibilityGlobal  Visibility = "global"
)

// ParseVisibility validates and normalizes a visibility string
func ParseVisibility(s string) (Visibility, error) {
	switch Visibility(strings.ToLower(strings.TrimSpace(s))) {
	case VisibilityPrivate:
		return VisibilityPrivate, nil
	case VisibilityTeam:
		return VisibilityTeam, nil
	case VisibilityGlobal:
		return VisibilityGlobal, nil
	default:
		return "", errors.NewValidation("visibility must be one of private, team, global")
	}
}

func (v Visibility) String() string { return string(v) }

// MemoryKind classifies what a memory record represents.
type MemoryKind string

const (
	KindEpisodic   MemoryKind = "episodic"
	KindSemantic   MemoryKind = "semantic"
	KindProcedural MemoryKind = "procedural"
	KindIdentity   MemoryKind = "identity"
)

// ParseMemoryKind validates and normalizes a memory kind string
func ParseMemoryKind(s string) (MemoryKind, error) {
	switch MemoryKind(strings.ToLower(strings.TrimSpace(s))) {
	case KindEpisodic:
		return KindEpisodic, nil
	case KindSemantic:
		return KindSemantic, nil
	case KindProcedural:
		return KindProcedural, nil
	case KindIdentity:
		return KindIdentity, nil
	default:
		return "", errors.NewValidation("kind must be one of episodic, semantic, procedural, identity")
	}
}

func (k MemoryKind) String() string { return string(k) }

// Scope pins a memory to its owning tenant. TenantID is the isolation
// boundary; OrgID and TeamID widen recall for team and global visibility.
type Scope struct {
	tenantID string
	orgID    string
	teamID   string
}

// NewScope creates a scope. TenantID is required; org and team are optional
// but a team-visible memory needs both.
func NewScope(tenantID, orgID, teamID string) (Scope, error) {
	tenantID = strings.TrimSpace(tenantID)
	if tenantID == "" {
		return Scope{}, errors.NewValidation("tenant ID cannot be empty")
	}
	return Scope{
		tenantID: tenantID,
		orgID:    strings.TrimSpace(orgID),
		teamID:   strings.TrimSpace(teamID),
	}, nil
}

func (s Scope) TenantID() string { return s.tenantID }
func (s Scope) OrgID() string    { return s.orgID }
func (s Scope) TeamID() string   { return s.teamID }
func (s Scope) IsZero() bool     { return s.tenantID == "" }

func (s Scope) Equals(other Scope) bool {
	return s.tenantID == other.tenantID && s.orgID == other.orgID && s.teamID == other.teamID
}

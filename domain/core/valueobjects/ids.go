package valueobjects

import (
	"strings"

	"github.com/google/uuid"

	"engram-backend/pkg/errors"
)

// MemoryID uniquely identifies one version row of a memory record.
type MemoryID struct {
	value string
}

// NewMemoryID generates a new unique memory ID
func NewMemoryID() MemoryID {
	return MemoryID{value: uuid.New().String()}
}

// NewMemoryIDFromString creates a MemoryID from an existing string
func NewMemoryIDFromString(s string) (MemoryID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return MemoryID{}, errors.NewValidation("memory ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return MemoryID{}, errors.NewValidation("memory ID must be a valid UUID")
	}
	return MemoryID{value: s}, nil
}

func (id MemoryID) String() string { return id.value }
func (id MemoryID) IsZero() bool   { return id.value == "" }

func (id MemoryID) Equals(other MemoryID) bool { return id.value == other.value }

// LineageID identifies the whole version chain of a memory. Every supersession
// writes a new MemoryID under the same LineageID.
type LineageID struct {
	value string
}

// NewLineageID generates a new unique lineage ID
func NewLineageID() LineageID {
	return LineageID{value: uuid.New().String()}
}

// NewLineageIDFromString creates a LineageID from an existing string
func NewLineageIDFromString(s string) (LineageID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return LineageID{}, errors.NewValidation("lineage ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return LineageID{}, errors.NewValidation("lineage ID must be a valid UUID")
	}
	return LineageID{value: s}, nil
}

func (id LineageID) String() string { return id.value }
func (id LineageID) IsZero() bool   { return id.value == "" }

func (id LineageID) Equals(other LineageID) bool { return id.value == other.value }

// ProposalID identifies a promotion proposal.
type ProposalID struct {
	value string
}

// NewProposalID generates a new unique proposal ID
func NewProposalID() ProposalID {
	return ProposalID{value: uuid.New().String()}
}

// NewProposalIDFromString creates a ProposalID from an existing string
func NewProposalIDFromString(s string) (ProposalID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return ProposalID{}, errors.NewValidation("proposal ID cannot be empty")
	}
	if _, err := uuid.Parse(s); err != nil {
		return ProposalID{}, errors.NewValidation("proposal ID must be a valid UUID")
	}
	return ProposalID{value: s}, nil
}

func (id ProposalID) String() string { return id.value }
func (id ProposalID) IsZero() bool   { return id.value == "" }

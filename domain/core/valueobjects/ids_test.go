package valueobjects

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMemoryID(t *testing.T) {
	id := NewMemoryID()

	assert.NotEmpty(t, id.String())
	assert.False(t, id.IsZero())

	// Should be a valid UUID
	_, err := uuid.Parse(id.String())
	assert.NoError(t, err)
}

func TestNewMemoryIDFromString(t *testing.T) {
	validUUID := uuid.New().String()

	tests := []struct {
		name    string
		input   string
		wantErr bool
	}{
		{
			name:    "valid UUID",
			input:   validUUID,
			wantErr: false,
		},
		{
			name:    "valid UUID with surrounding whitespace",
			input:   "  " + validUUID + "  ",
			wantErr: false,
		},
		{
			name:    "empty string",
			input:   "",
			wantErr: true,
		},
		{
			name:    "whitespace only",
			input:   "   ",
			wantErr: true,
		},
		{
			name:    "not a UUID",
			input:   "memory-1",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, err := NewMemoryIDFromString(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, id.IsZero())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, validUUID, id.String())
		})
	}
}

func TestMemoryIDEquals(t *testing.T) {
	raw := uuid.New().String()
	a, err := NewMemoryIDFromString(raw)
	require.NoError(t, err)
	b, err := NewMemoryIDFromString(raw)
	require.NoError(t, err)

	assert.True(t, a.Equals(b))
	assert.False(t, a.Equals(NewMemoryID()))
}

func TestLineageIDFromString(t *testing.T) {
	_, err := NewLineageIDFromString("")
	require.Error(t, err)

	_, err = NewLineageIDFromString("not-a-uuid")
	require.Error(t, err)

	raw := uuid.New().String()
	id, err := NewLineageIDFromString(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, id.String())
	assert.False(t, id.IsZero())
}

func TestLineageIDSharedAcrossVersions(t *testing.T) {
	lineage := NewLineageID()
	same, err := NewLineageIDFromString(lineage.String())
	require.NoError(t, err)

	assert.True(t, lineage.Equals(same))
}

func TestProposalIDFromString(t *testing.T) {
	_, err := NewProposalIDFromString("  ")
	require.Error(t, err)

	raw := uuid.New().String()
	id, err := NewProposalIDFromString(raw)
	require.NoError(t, err)
	assert.Equal(t, raw, id.String())
}

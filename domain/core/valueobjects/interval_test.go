package valueobjects

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewOpenInterval(t *testing.T) {
	from := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	i := NewOpenInterval(from)

	assert.Equal(t, from, i.From())
	assert.True(t, i.IsOpen())
	assert.True(t, i.To().IsZero())
}

func TestNewValidInterval(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name    string
		to      time.Time
		wantErr bool
	}{
		{
			name:    "end after start",
			to:      from.Add(time.Hour),
			wantErr: false,
		},
		{
			name:    "zero end stays open",
			to:      time.Time{},
			wantErr: false,
		},
		{
			name:    "end equals start",
			to:      from,
			wantErr: true,
		},
		{
			name:    "end before start",
			to:      from.Add(-time.Hour),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			i, err := NewValidInterval(from, tt.to)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, from, i.From())
			assert.Equal(t, tt.to, i.To())
		})
	}
}

func TestIntervalContains(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	closed, err := NewValidInterval(from, to)
	require.NoError(t, err)

	// Half-open semantics: start is inside, end is not
	assert.True(t, closed.Contains(from))
	assert.True(t, closed.Contains(from.Add(time.Hour)))
	assert.False(t, closed.Contains(to))
	assert.False(t, closed.Contains(to.Add(time.Hour)))
	assert.False(t, closed.Contains(from.Add(-time.Nanosecond)))

	open := NewOpenInterval(from)
	assert.True(t, open.Contains(from))
	assert.True(t, open.Contains(from.AddDate(10, 0, 0)))
	assert.False(t, open.Contains(from.Add(-time.Second)))
}

func TestIntervalClose(t *testing.T) {
	from := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	open := NewOpenInterval(from)

	closed, err := open.Close(from.Add(time.Minute))
	require.NoError(t, err)
	assert.False(t, closed.IsOpen())
	assert.Equal(t, from.Add(time.Minute), closed.To())

	_, err = open.Close(from)
	assert.Error(t, err)
}

package entities

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engram-backend/domain/core/valueobjects"
	"engram-backend/domain/events"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func testAttributes(t *testing.T) valueobjects.Attributes {
	t.Helper()
	scope, err := valueobjects.NewScope("tenant-1", "org-1", "team-1")
	require.NoError(t, err)
	attrs, err := valueobjects.NewAttributes(scope, valueobjects.VisibilityPrivate, valueobjects.KindEpisodic, nil)
	require.NoError(t, err)
	return attrs
}

func newTestMemory(t *testing.T) *Memory {
	t.Helper()
	m, err := NewMemory("the deploy pipeline uses blue-green cutover", testAttributes(t),
		[]string{"deploy", "pipeline"}, 0.8, false, testNow)
	require.NoError(t, err)
	return m
}

func TestNewMemory(t *testing.T) {
	attrs := testAttributes(t)

	tests := []struct {
		name       string
		content    string
		importance float64
		wantErr    bool
	}{
		{
			name:       "valid",
			content:    "some observation",
			importance: 0.5,
		},
		{
			name:       "empty content",
			content:    "",
			importance: 0.5,
			wantErr:    true,
		},
		{
			name:       "importance above one",
			content:    "x",
			importance: 1.5,
			wantErr:    true,
		},
		{
			name:       "negative importance",
			content:    "x",
			importance: -0.1,
			wantErr:    true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := NewMemory(tt.content, attrs, nil, tt.importance, false, testNow)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.False(t, m.ID().IsZero())
			assert.False(t, m.LineageID().IsZero())
			assert.True(t, m.IsCurrent())
			assert.True(t, m.Interval().IsOpen())
			assert.Equal(t, testNow, m.Interval().From())
			assert.True(t, m.Embedding().IsStale())
			assert.Equal(t, 1, m.Version())
		})
	}
}

func TestNewMemoryEmitsCreatedEvent(t *testing.T) {
	m := newTestMemory(t)

	evts := m.GetUncommittedEvents()
	require.Len(t, evts, 1)
	assert.Equal(t, events.TypeMemoryCreated, evts[0].GetEventType())
	assert.Equal(t, m.ID().String(), evts[0].GetAggregateID())

	m.MarkEventsAsCommitted()
	assert.Empty(t, m.GetUncommittedEvents())
}

func TestMemoryTouch(t *testing.T) {
	m := newTestMemory(t)
	later := testNow.Add(time.Hour)

	m.Touch(0.05, later)

	assert.Equal(t, later, m.LastAccessedAt())
	assert.InDelta(t, 0.85, m.Importance(), 1e-9)
	assert.Equal(t, 2, m.Version())

	// Touch pulls an archived memory back into recall
	m.ApplyDecay(0.01, 0.1, later)
	require.True(t, m.IsArchived())
	m.Touch(0.1, later)
	assert.False(t, m.IsArchived())
}

func TestMemoryTouchClampsImportance(t *testing.T) {
	m := newTestMemory(t)
	m.Touch(10, testNow)
	assert.Equal(t, 1.0, m.Importance())
}

func TestMemoryReinforce(t *testing.T) {
	m := newTestMemory(t)
	m.MarkEventsAsCommitted()

	m.Reinforce(0.1, testNow.Add(time.Minute))

	assert.Equal(t, 1, m.Reinforcement())
	assert.InDelta(t, 0.9, m.Importance(), 1e-9)

	evts := m.GetUncommittedEvents()
	require.Len(t, evts, 1)
	assert.Equal(t, events.TypeMemoryReinforced, evts[0].GetEventType())
}

func TestMemoryApplyDecay(t *testing.T) {
	m := newTestMemory(t)
	m.MarkEventsAsCommitted()

	archived := m.ApplyDecay(0.95, 0.1, testNow)
	assert.False(t, archived)
	assert.InDelta(t, 0.76, m.Importance(), 1e-9)
	assert.False(t, m.IsArchived())
	assert.Empty(t, m.GetUncommittedEvents())
}

func TestMemoryApplyDecayArchivesAtFloor(t *testing.T) {
	m := newTestMemory(t)
	m.SetImportance(0.101)
	m.MarkEventsAsCommitted()

	archived := m.ApplyDecay(0.95, 0.1, testNow)
	assert.True(t, archived)
	assert.True(t, m.IsArchived())

	evts := m.GetUncommittedEvents()
	require.Len(t, evts, 1)
	assert.Equal(t, events.TypeMemoryArchived, evts[0].GetEventType())

	// A second pass over an archived row is a no-op
	before := m.Importance()
	assert.False(t, m.ApplyDecay(0.95, 0.1, testNow))
	assert.Equal(t, before, m.Importance())
}

func TestMemoryApplyDecaySkipsAtOrBelowFloor(t *testing.T) {
	m := newTestMemory(t)
	m.SetImportance(0.1)

	assert.False(t, m.ApplyDecay(0.95, 0.1, testNow))
	assert.Equal(t, 0.1, m.Importance())
	assert.False(t, m.IsArchived())
}

func TestMemorySupersede(t *testing.T) {
	m := newTestMemory(t)
	m.SetEmbedding(valueobjects.Embedding{1, 0, 0})
	m.MarkEventsAsCommitted()
	at := testNow.Add(time.Hour)

	successor, err := m.Supersede("the deploy pipeline now uses canary rollout",
		[]string{"deploy", "canary"}, "user-1", at)
	require.NoError(t, err)

	// Predecessor is closed at the supersession instant
	assert.False(t, m.IsCurrent())
	assert.False(t, m.Interval().IsOpen())
	assert.Equal(t, at, m.Interval().To())

	// Successor shares the lineage, starts fresh with a stale vector
	assert.True(t, successor.LineageID().Equals(m.LineageID()))
	assert.False(t, successor.ID().Equals(m.ID()))
	assert.True(t, successor.IsCurrent())
	assert.True(t, successor.Interval().IsOpen())
	assert.Equal(t, at, successor.Interval().From())
	assert.True(t, successor.Embedding().IsStale())
	assert.Equal(t, m.Importance(), successor.Importance())
	assert.Equal(t, 1, successor.Version())

	evts := successor.GetUncommittedEvents()
	require.Len(t, evts, 1)
	assert.Equal(t, events.TypeMemorySuperseded, evts[0].GetEventType())
}

func TestMemorySupersedeRejectsNonCurrent(t *testing.T) {
	m := newTestMemory(t)
	_, err := m.Supersede("v2", nil, "user-1", testNow.Add(time.Hour))
	require.NoError(t, err)

	_, err = m.Supersede("v3", nil, "user-1", testNow.Add(2*time.Hour))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "current version")
}

func TestMemorySupersedeRejectsEmptyContent(t *testing.T) {
	m := newTestMemory(t)
	_, err := m.Supersede("", nil, "user-1", testNow.Add(time.Hour))
	require.Error(t, err)
	assert.True(t, m.IsCurrent())
}

func TestMemoryConsolidate(t *testing.T) {
	m := newTestMemory(t)
	m.SetEmbedding(valueobjects.Embedding{1, 0, 0})
	m.MarkEventsAsCommitted()
	versionBefore := m.Version()
	at := testNow.Add(time.Hour)

	err := m.Consolidate("merged summary of three observations",
		[]string{"summary"}, []string{"mem-2", "mem-3"}, 0.05, at)
	require.NoError(t, err)

	// In-place rewrite: same row, same lineage, no new version row
	assert.True(t, m.IsCurrent())
	assert.Equal(t, "merged summary of three observations", m.Content())
	assert.True(t, m.Embedding().IsStale())
	assert.Equal(t, 2, m.Reinforcement())
	assert.InDelta(t, 0.9, m.Importance(), 1e-9)
	assert.Equal(t, versionBefore+1, m.Version())

	evts := m.GetUncommittedEvents()
	require.Len(t, evts, 1)
	assert.Equal(t, events.TypeMemoryConsolidated, evts[0].GetEventType())
}

func TestMemoryConsolidateValidation(t *testing.T) {
	m := newTestMemory(t)

	err := m.Consolidate("", nil, []string{"mem-2"}, 0.05, testNow)
	assert.Error(t, err)

	err = m.Consolidate("summary", nil, nil, 0.05, testNow)
	assert.Error(t, err)

	_, err = m.Supersede("v2", nil, "user-1", testNow.Add(time.Hour))
	require.NoError(t, err)
	err = m.Consolidate("summary", nil, []string{"mem-2"}, 0.05, testNow.Add(2*time.Hour))
	assert.Error(t, err)
}

func TestMemoryPromote(t *testing.T) {
	m := newTestMemory(t)

	err := m.Promote(valueobjects.VisibilityTeam, 0.5)
	require.NoError(t, err)
	assert.Equal(t, valueobjects.VisibilityTeam, m.Attributes().Visibility())
	assert.True(t, m.IsVerified())
	assert.Equal(t, 0.5, m.Importance())

	err = m.Promote(valueobjects.VisibilityPrivate, 0.5)
	assert.Error(t, err)
}

func TestReconstructMemory(t *testing.T) {
	id := valueobjects.NewMemoryID()
	lineage := valueobjects.NewLineageID()
	interval := valueobjects.NewOpenInterval(testNow)

	m, err := ReconstructMemory(id, lineage, "restored", valueobjects.Embedding{1, 0},
		testAttributes(t), []string{"restored"}, 0.4, 2, true, true, false,
		interval, true, testNow, testNow, 7)
	require.NoError(t, err)

	assert.True(t, m.ID().Equals(id))
	assert.Equal(t, 7, m.Version())
	assert.Equal(t, 2, m.Reinforcement())
	assert.True(t, m.IsFlashbulb())
	assert.Empty(t, m.GetUncommittedEvents())

	_, err = ReconstructMemory(valueobjects.MemoryID{}, lineage, "x", nil,
		testAttributes(t), nil, 0.4, 0, false, false, false,
		interval, true, testNow, testNow, 1)
	assert.Error(t, err)
}

package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engram-backend/domain/core/entities"
	"engram-backend/domain/core/valueobjects"
	"engram-backend/pkg/errors"
)

var rowStart = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newRow(t *testing.T, tenantID, content string, vector valueobjects.Embedding, keywords ...string) *entities.Memory {
	t.Helper()
	scope, err := valueobjects.NewScope(tenantID, "org-1", "")
	require.NoError(t, err)
	attrs, err := valueobjects.NewAttributes(scope, valueobjects.VisibilityPrivate, valueobjects.KindEpisodic, nil)
	require.NoError(t, err)
	m, err := entities.NewMemory(content, attrs, keywords, 1.0, false, rowStart)
	require.NoError(t, err)
	m.AttachEmbedding(vector)
	return m
}

func tenantFilter(tenantID string) valueobjects.Filter {
	return valueobjects.Filter{TenantID: tenantID}
}

func TestSaveInsertRequiresVersionOne(t *testing.T) {
	repo := NewMemoryRepository(nil)
	ctx := context.Background()

	m := newRow(t, "tenant-1", "first note", valueobjects.Embedding{1, 0, 0})
	require.NoError(t, repo.Save(ctx, m))

	// Re-inserting the same version is a lost update
	err := repo.Save(ctx, m)
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))

	// A never-inserted row above version 1 cannot insert either
	fresh := newRow(t, "tenant-1", "second note", valueobjects.Embedding{0, 1, 0})
	fresh.Touch(0, rowStart)
	err = repo.Save(ctx, fresh)
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}

func TestSaveUpdateRequiresNextVersion(t *testing.T) {
	repo := NewMemoryRepository(nil)
	ctx := context.Background()

	m := newRow(t, "tenant-1", "first note", valueobjects.Embedding{1, 0, 0})
	require.NoError(t, repo.Save(ctx, m))

	first, err := repo.GetByID(ctx, "tenant-1", m.ID())
	require.NoError(t, err)
	second, err := repo.GetByID(ctx, "tenant-1", m.ID())
	require.NoError(t, err)

	first.Touch(0.1, rowStart.Add(time.Hour))
	require.NoError(t, repo.Save(ctx, first))

	// The stale snapshot lost the race
	second.Touch(0.1, rowStart.Add(time.Hour))
	err = repo.Save(ctx, second)
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))

	stored, err := repo.GetByID(ctx, "tenant-1", m.ID())
	require.NoError(t, err)
	assert.Equal(t, 2, stored.Version())
}

func TestReadsAndDeletesAreTenantScoped(t *testing.T) {
	repo := NewMemoryRepository(nil)
	ctx := context.Background()

	m := newRow(t, "tenant-1", "private note", valueobjects.Embedding{1, 0, 0})
	require.NoError(t, repo.Save(ctx, m))

	_, err := repo.GetByID(ctx, "tenant-2", m.ID())
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	err = repo.Delete(ctx, "tenant-2", m.ID())
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))

	require.NoError(t, repo.Delete(ctx, "tenant-1", m.ID()))
	_, err = repo.GetByID(ctx, "tenant-1", m.ID())
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestSaveVersionPair(t *testing.T) {
	repo := NewMemoryRepository(nil)
	ctx := context.Background()

	m := newRow(t, "tenant-1", "the old wording", valueobjects.Embedding{1, 0, 0})
	require.NoError(t, repo.Save(ctx, m))

	closed, err := repo.GetByID(ctx, "tenant-1", m.ID())
	require.NoError(t, err)
	successor, err := closed.Supersede("the new wording", nil, "user-1", rowStart.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, repo.SaveVersionPair(ctx, closed, successor))

	current, err := repo.GetCurrent(ctx, "tenant-1", m.LineageID())
	require.NoError(t, err)
	assert.Equal(t, successor.ID().String(), current.ID().String())

	// Replaying the same pair conflicts on the closed row's version
	err = repo.SaveVersionPair(ctx, closed, successor)
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))
}

func TestSaveVersionPairConcurrentSupersedeLoses(t *testing.T) {
	repo := NewMemoryRepository(nil)
	ctx := context.Background()

	m := newRow(t, "tenant-1", "the old wording", valueobjects.Embedding{1, 0, 0})
	require.NoError(t, repo.Save(ctx, m))

	// Two writers supersede from the same snapshot
	snapA, err := repo.GetByID(ctx, "tenant-1", m.ID())
	require.NoError(t, err)
	snapB, err := repo.GetByID(ctx, "tenant-1", m.ID())
	require.NoError(t, err)

	sucA, err := snapA.Supersede("writer A wording", nil, "user-a", rowStart.Add(time.Hour))
	require.NoError(t, err)
	require.NoError(t, repo.SaveVersionPair(ctx, snapA, sucA))

	sucB, err := snapB.Supersede("writer B wording", nil, "user-b", rowStart.Add(time.Hour))
	require.NoError(t, err)
	err = repo.SaveVersionPair(ctx, snapB, sucB)
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))

	// Writer A's successor survives as the only current row
	current, err := repo.GetCurrent(ctx, "tenant-1", m.LineageID())
	require.NoError(t, err)
	assert.Equal(t, "writer A wording", current.Content())
}

func TestSaveVersionPairRollsBackOnSuccessorConflict(t *testing.T) {
	repo := NewMemoryRepository(nil)
	ctx := context.Background()

	m := newRow(t, "tenant-1", "the old wording", valueobjects.Embedding{1, 0, 0})
	require.NoError(t, repo.Save(ctx, m))

	closed, err := repo.GetByID(ctx, "tenant-1", m.ID())
	require.NoError(t, err)
	successor, err := closed.Supersede("the new wording", nil, "user-1", rowStart.Add(time.Hour))
	require.NoError(t, err)

	// The successor ID is somehow already taken, so the pair must not land
	require.NoError(t, repo.Save(ctx, successor))
	err = repo.SaveVersionPair(ctx, closed, successor)
	require.Error(t, err)
	assert.True(t, errors.IsConflict(err))

	// The predecessor is restored untouched
	stored, err := repo.GetByID(ctx, "tenant-1", m.ID())
	require.NoError(t, err)
	assert.Equal(t, 1, stored.Version())
	assert.True(t, stored.IsCurrent())
}

func TestVectorTopK(t *testing.T) {
	repo := NewMemoryRepository(nil)
	ctx := context.Background()

	exact := newRow(t, "tenant-1", "exact hit", valueobjects.Embedding{1, 0, 0})
	near := newRow(t, "tenant-1", "near hit", valueobjects.Embedding{0.8, 0.6, 0})
	far := newRow(t, "tenant-1", "orthogonal", valueobjects.Embedding{0, 1, 0})
	stale := newRow(t, "tenant-1", "awaiting refresh", nil)
	foreign := newRow(t, "tenant-2", "other tenant", valueobjects.Embedding{1, 0, 0})
	for _, m := range []*entities.Memory{exact, near, far, stale, foreign} {
		require.NoError(t, repo.Save(ctx, m))
	}

	ranked, err := repo.VectorTopK(ctx, tenantFilter("tenant-1"), valueobjects.Embedding{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, ranked, 2)
	assert.Equal(t, exact.ID().String(), ranked[0].Memory.ID().String())
	assert.Equal(t, near.ID().String(), ranked[1].Memory.ID().String())
	assert.Less(t, ranked[0].Score, ranked[1].Score)

	// Without a k cap the stale and foreign rows still never rank
	ranked, err = repo.VectorTopK(ctx, tenantFilter("tenant-1"), valueobjects.Embedding{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, ranked, 3)
}

func TestVectorTopKSkipsClosedAndArchived(t *testing.T) {
	repo := NewMemoryRepository(nil)
	ctx := context.Background()

	m := newRow(t, "tenant-1", "the old wording", valueobjects.Embedding{1, 0, 0})
	require.NoError(t, repo.Save(ctx, m))
	successor, err := m.Supersede("the new wording", nil, "user-1", rowStart.Add(time.Hour))
	require.NoError(t, err)
	successor.AttachEmbedding(valueobjects.Embedding{1, 0, 0})
	require.NoError(t, repo.SaveVersionPair(ctx, m, successor))

	archived := newRow(t, "tenant-1", "fading away", valueobjects.Embedding{1, 0, 0})
	require.NoError(t, repo.Save(ctx, archived))
	snap, err := repo.GetByID(ctx, "tenant-1", archived.ID())
	require.NoError(t, err)
	snap.SetImportance(0.105)
	require.NoError(t, repo.Save(ctx, snap))
	snap, err = repo.GetByID(ctx, "tenant-1", archived.ID())
	require.NoError(t, err)
	require.True(t, snap.ApplyDecay(0.95, 0.1, rowStart.Add(time.Hour)))
	require.NoError(t, repo.Save(ctx, snap))

	ranked, err := repo.VectorTopK(ctx, tenantFilter("tenant-1"), valueobjects.Embedding{1, 0, 0}, 10)
	require.NoError(t, err)
	require.Len(t, ranked, 1)
	assert.Equal(t, successor.ID().String(), ranked[0].Memory.ID().String())
}

func TestKeywordTopK(t *testing.T) {
	repo := NewMemoryRepository(nil)
	ctx := context.Background()

	exact := newRow(t, "tenant-1", "billing invoice", valueobjects.Embedding{1, 0, 0}, "billing", "invoice")
	partial := newRow(t, "tenant-1", "billing outage", valueobjects.Embedding{1, 0, 0}, "billing", "outage")
	miss := newRow(t, "tenant-1", "kubernetes", valueobjects.Embedding{1, 0, 0}, "kubernetes")
	for _, m := range []*entities.Memory{exact, partial, miss} {
		require.NoError(t, repo.Save(ctx, m))
	}

	ranked, err := repo.KeywordTopK(ctx, tenantFilter("tenant-1"), "billing invoice", 10)
	require.NoError(t, err)

	// Zero-relevance rows never rank
	require.Len(t, ranked, 2)
	assert.Equal(t, exact.ID().String(), ranked[0].Memory.ID().String())
	assert.Equal(t, partial.ID().String(), ranked[1].Memory.ID().String())
	assert.Greater(t, ranked[0].Score, ranked[1].Score)
}

func TestListAsOf(t *testing.T) {
	repo := NewMemoryRepository(nil)
	ctx := context.Background()

	m := newRow(t, "tenant-1", "the old wording", valueobjects.Embedding{1, 0, 0})
	require.NoError(t, repo.Save(ctx, m))
	supersededAt := rowStart.Add(24 * time.Hour)
	successor, err := m.Supersede("the new wording", nil, "user-1", supersededAt)
	require.NoError(t, err)
	require.NoError(t, repo.SaveVersionPair(ctx, m, successor))

	// Before the first version existed
	rows, err := repo.ListAsOf(ctx, tenantFilter("tenant-1"), rowStart.Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, rows)

	// Mid-validity of the first version
	rows, err = repo.ListAsOf(ctx, tenantFilter("tenant-1"), rowStart.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "the old wording", rows[0].Content())

	// The supersession instant belongs to the successor
	rows, err = repo.ListAsOf(ctx, tenantFilter("tenant-1"), supersededAt)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "the new wording", rows[0].Content())
}

func TestListByValidFromIncludesSupersededRows(t *testing.T) {
	repo := NewMemoryRepository(nil)
	ctx := context.Background()

	m := newRow(t, "tenant-1", "the old wording", valueobjects.Embedding{1, 0, 0})
	require.NoError(t, repo.Save(ctx, m))
	supersededAt := rowStart.Add(time.Hour)
	successor, err := m.Supersede("the new wording", nil, "user-1", supersededAt)
	require.NoError(t, err)
	require.NoError(t, repo.SaveVersionPair(ctx, m, successor))

	foreign := newRow(t, "tenant-2", "elsewhere", valueobjects.Embedding{1, 0, 0})
	require.NoError(t, repo.Save(ctx, foreign))

	// Both versions started inside the window; the closed row still counts
	rows, err := repo.ListByValidFrom(ctx, tenantFilter("tenant-1"),
		rowStart.Add(-time.Hour), supersededAt.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "the old wording", rows[0].Content())
	assert.False(t, rows[0].IsCurrent())
	assert.Equal(t, "the new wording", rows[1].Content())

	// The window is half-open: a row starting exactly at end is excluded
	rows, err = repo.ListByValidFrom(ctx, tenantFilter("tenant-1"),
		rowStart.Add(-time.Hour), supersededAt)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "the old wording", rows[0].Content())

	// A window before anything existed is empty
	rows, err = repo.ListByValidFrom(ctx, tenantFilter("tenant-1"),
		rowStart.Add(-2*time.Hour), rowStart)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestListDecayCandidates(t *testing.T) {
	repo := NewMemoryRepository(nil)
	ctx := context.Background()
	cutoff := rowStart.Add(7 * 24 * time.Hour)

	idle := newRow(t, "tenant-1", "idle", valueobjects.Embedding{1, 0, 0})
	require.NoError(t, repo.Save(ctx, idle))

	fresh := newRow(t, "tenant-1", "fresh", valueobjects.Embedding{1, 0, 0})
	require.NoError(t, repo.Save(ctx, fresh))
	snap, err := repo.GetByID(ctx, "tenant-1", fresh.ID())
	require.NoError(t, err)
	snap.Touch(0, cutoff.Add(time.Hour))
	require.NoError(t, repo.Save(ctx, snap))

	floored := newRow(t, "tenant-1", "already at the floor", valueobjects.Embedding{1, 0, 0})
	require.NoError(t, repo.Save(ctx, floored))
	snap, err = repo.GetByID(ctx, "tenant-1", floored.ID())
	require.NoError(t, err)
	snap.SetImportance(0.1)
	require.NoError(t, repo.Save(ctx, snap))

	foreign := newRow(t, "tenant-2", "idle elsewhere", valueobjects.Embedding{1, 0, 0})
	require.NoError(t, repo.Save(ctx, foreign))

	candidates, err := repo.ListDecayCandidates(ctx, "tenant-1", cutoff, 0.1)
	require.NoError(t, err)
	require.Len(t, candidates, 1)
	assert.Equal(t, idle.ID().String(), candidates[0].ID().String())
}

func TestListTenants(t *testing.T) {
	repo := NewMemoryRepository(nil)
	ctx := context.Background()

	require.NoError(t, repo.Save(ctx, newRow(t, "tenant-2", "b", valueobjects.Embedding{1, 0, 0})))
	require.NoError(t, repo.Save(ctx, newRow(t, "tenant-1", "a", valueobjects.Embedding{1, 0, 0})))
	require.NoError(t, repo.Save(ctx, newRow(t, "tenant-1", "c", valueobjects.Embedding{0, 1, 0})))

	tenants, err := repo.ListTenants(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"tenant-1", "tenant-2"}, tenants)
}

func TestSnapshotIsolation(t *testing.T) {
	repo := NewMemoryRepository(nil)
	ctx := context.Background()

	m := newRow(t, "tenant-1", "note", valueobjects.Embedding{1, 0, 0})
	require.NoError(t, repo.Save(ctx, m))

	// Mutating a returned snapshot never leaks into the store
	snap, err := repo.GetByID(ctx, "tenant-1", m.ID())
	require.NoError(t, err)
	snap.SetImportance(0.2)

	stored, err := repo.GetByID(ctx, "tenant-1", m.ID())
	require.NoError(t, err)
	assert.Equal(t, 1.0, stored.Importance())
	assert.Equal(t, 1, stored.Version())

	// Mutating the caller's original after save is equally invisible
	m.SetImportance(0.3)
	stored, err = repo.GetByID(ctx, "tenant-1", m.ID())
	require.NoError(t, err)
	assert.Equal(t, 1.0, stored.Importance())
}

package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engram-backend/domain/core/valueobjects"
	"engram-backend/domain/events"
	"engram-backend/pkg/errors"
)

func TestRememberCreatesMemory(t *testing.T) {
	env := newTestEnv(t)

	res := env.remember(t, "the billing service retries failed charges nightly",
		valueobjects.Embedding{1, 0, 0})

	require.NotNil(t, res.Memory)
	assert.False(t, res.Reinforced)
	assert.True(t, res.Memory.IsCurrent())
	assert.Equal(t, 1, res.Memory.Version())
	assert.False(t, res.Memory.Embedding().IsStale())
	assert.Equal(t, env.cfg.DefaultImportance, res.Memory.Importance())

	// An empty store makes every observation maximally surprising
	assert.True(t, res.Memory.IsFlashbulb())

	// Keywords are derived at write time
	assert.Contains(t, res.Memory.Keywords(), "billing")

	// The row is readable back through the repository
	stored, err := env.repo.GetByID(context.Background(), "tenant-1", res.Memory.ID())
	require.NoError(t, err)
	assert.Equal(t, res.Memory.Content(), stored.Content())

	assert.Contains(t, env.publisher.typesSeen(), events.TypeMemoryCreated)
}

func TestRememberReinforcesNearDuplicate(t *testing.T) {
	env := newTestEnv(t)

	first := env.remember(t, "postgres failover takes about forty seconds",
		valueobjects.Embedding{1, 0, 0})

	// Same vector: similarity 1 clears the surprise threshold
	second := env.remember(t, "postgres failover needs roughly forty seconds",
		valueobjects.Embedding{1, 0, 0})

	assert.True(t, second.Reinforced)
	assert.True(t, second.Memory.ID().Equals(first.Memory.ID()))
	assert.Equal(t, 1, second.Memory.Reinforcement())
	assert.Contains(t, env.publisher.typesSeen(), events.TypeMemoryReinforced)

	// No second row was written
	tenants, err := env.repo.ListCurrent(context.Background(),
		valueobjects.Filter{TenantID: "tenant-1"}, true)
	require.NoError(t, err)
	assert.Len(t, tenants, 1)
}

func TestRememberDistinctObservationInsertsNewRow(t *testing.T) {
	env := newTestEnv(t)

	env.remember(t, "postgres failover takes forty seconds", valueobjects.Embedding{1, 0, 0})
	res := env.remember(t, "the design review happens on thursdays", valueobjects.Embedding{0, 1, 0})

	assert.False(t, res.Reinforced)

	rows, err := env.repo.ListCurrent(context.Background(),
		valueobjects.Filter{TenantID: "tenant-1"}, true)
	require.NoError(t, err)
	assert.Len(t, rows, 2)
}

func TestRememberFlashbulbBoundary(t *testing.T) {
	env := newTestEnv(t)

	env.remember(t, "baseline observation", valueobjects.Embedding{1, 0, 0})

	// Similarity ~0.7: surprising but in familiar territory
	familiar := env.remember(t, "adjacent observation", valueobjects.Embedding{0.7, 0.714, 0})
	assert.False(t, familiar.Reinforced)
	assert.False(t, familiar.Memory.IsFlashbulb())

	// Orthogonal: similarity 0, below the flashbulb threshold
	shock := env.remember(t, "unrelated observation", valueobjects.Embedding{0, 0, 1})
	assert.False(t, shock.Reinforced)
	assert.True(t, shock.Memory.IsFlashbulb())
}

func TestRememberEmbedderOutageDegrades(t *testing.T) {
	env := newTestEnv(t)
	env.embedder.err = errors.NewTransient("provider down", nil)

	scope, err := valueobjects.NewScope("tenant-1", "org-1", "")
	require.NoError(t, err)
	res, err := env.ingestion.Remember(context.Background(), testCaller(), RememberRequest{
		Content:    "written during the outage",
		Scope:      scope,
		Visibility: valueobjects.VisibilityPrivate,
		Kind:       valueobjects.KindEpisodic,
	})
	require.NoError(t, err)

	// The write lands with a stale vector and a queued refresh
	assert.True(t, res.Memory.Embedding().IsStale())
	pending, err := env.queue.HasPending(context.Background(), res.Memory.ID())
	require.NoError(t, err)
	assert.True(t, pending)
}

func TestRememberImportanceOverride(t *testing.T) {
	env := newTestEnv(t)
	scope, err := valueobjects.NewScope("tenant-1", "org-1", "")
	require.NoError(t, err)

	importance := 0.3
	res, err := env.ingestion.Remember(context.Background(), testCaller(), RememberRequest{
		Content:    "low-stakes note",
		Scope:      scope,
		Visibility: valueobjects.VisibilityPrivate,
		Kind:       valueobjects.KindSemantic,
		Importance: &importance,
	})
	require.NoError(t, err)
	assert.Equal(t, 0.3, res.Memory.Importance())

	bad := 1.5
	_, err = env.ingestion.Remember(context.Background(), testCaller(), RememberRequest{
		Content:    "x",
		Scope:      scope,
		Visibility: valueobjects.VisibilityPrivate,
		Kind:       valueobjects.KindSemantic,
		Importance: &bad,
	})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestRememberValidation(t *testing.T) {
	env := newTestEnv(t)
	scope, err := valueobjects.NewScope("tenant-1", "org-1", "")
	require.NoError(t, err)

	_, err = env.ingestion.Remember(context.Background(), testCaller(), RememberRequest{
		Content:    "",
		Scope:      scope,
		Visibility: valueobjects.VisibilityPrivate,
		Kind:       valueobjects.KindEpisodic,
	})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	// Team visibility without a team ID fails attribute validation
	_, err = env.ingestion.Remember(context.Background(), testCaller(), RememberRequest{
		Content:    "x",
		Scope:      scope,
		Visibility: valueobjects.VisibilityTeam,
		Kind:       valueobjects.KindEpisodic,
	})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestRememberForeignTenantRejected(t *testing.T) {
	env := newTestEnv(t)
	scope, err := valueobjects.NewScope("tenant-1", "org-1", "")
	require.NoError(t, err)

	_, err = env.ingestion.Remember(context.Background(), foreignCaller(), RememberRequest{
		Content:    "x",
		Scope:      scope,
		Visibility: valueobjects.VisibilityPrivate,
		Kind:       valueobjects.KindEpisodic,
	})
	requireUnauthorized(t, err)
}

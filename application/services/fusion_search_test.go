package services

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engram-backend/domain/core/valueobjects"
	"engram-backend/pkg/errors"
)

func TestSearchFusesBothLegs(t *testing.T) {
	env := newTestEnv(t)

	vectorHit := env.remember(t, "rotate credentials quarterly", valueobjects.Embedding{1, 0, 0})
	keywordHit := env.remember(t, "the incident channel is paged first", valueobjects.Embedding{0, 1, 0})

	results, err := env.search.Search(context.Background(), testCaller(), SearchQuery{
		Embedding: valueobjects.Embedding{1, 0, 0},
		Text:      "incident channel paging",
		Filter:    valueobjects.Filter{TenantID: "tenant-1"},
		Count:     10,
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	ids := []string{results[0].Memory.ID().String(), results[1].Memory.ID().String()}
	assert.Contains(t, ids, vectorHit.Memory.ID().String())
	assert.Contains(t, ids, keywordHit.Memory.ID().String())
	assert.Greater(t, results[0].Score, 0.0)
}

func TestSearchDoubleLegCandidateWins(t *testing.T) {
	env := newTestEnv(t)

	both := env.remember(t, "failover runbook for the payments database",
		valueobjects.Embedding{1, 0, 0})
	env.remember(t, "vacation policy reminder", valueobjects.Embedding{0.9, 0.1, 0})

	results, err := env.search.Search(context.Background(), testCaller(), SearchQuery{
		Embedding: valueobjects.Embedding{1, 0, 0},
		Text:      "payments database failover",
		Filter:    valueobjects.Filter{TenantID: "tenant-1"},
		Count:     2,
	})
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, both.Memory.ID().String(), results[0].Memory.ID().String())
}

func TestSearchTruncatesToCount(t *testing.T) {
	env := newTestEnv(t)

	env.remember(t, "first note about deploys", valueobjects.Embedding{1, 0, 0})
	env.remember(t, "second note about deploys", valueobjects.Embedding{0.9, 0.43, 0})
	env.remember(t, "third note about deploys", valueobjects.Embedding{0.8, 0.6, 0})

	results, err := env.search.Search(context.Background(), testCaller(), SearchQuery{
		Embedding: valueobjects.Embedding{1, 0, 0},
		Text:      "deploys",
		Filter:    valueobjects.Filter{TenantID: "tenant-1"},
		Count:     2,
	})
	require.NoError(t, err)
	assert.Len(t, results, 2)
}

func TestSearchEmptyStoreIsEmptyResult(t *testing.T) {
	env := newTestEnv(t)

	results, err := env.search.Search(context.Background(), testCaller(), SearchQuery{
		Embedding: valueobjects.Embedding{1, 0, 0},
		Text:      "anything",
		Filter:    valueobjects.Filter{TenantID: "tenant-1"},
		Count:     5,
	})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestSearchValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.search.Search(context.Background(), testCaller(), SearchQuery{
		Filter: valueobjects.Filter{TenantID: "tenant-1"},
		Count:  0,
	})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))
}

func TestSearchForeignTenantRejected(t *testing.T) {
	env := newTestEnv(t)
	env.remember(t, "tenant-one secret", valueobjects.Embedding{1, 0, 0})

	_, err := env.search.Search(context.Background(), foreignCaller(), SearchQuery{
		Embedding: valueobjects.Embedding{1, 0, 0},
		Text:      "secret",
		Filter:    valueobjects.Filter{TenantID: "tenant-1"},
		Count:     5,
	})
	requireUnauthorized(t, err)
}

func TestSearchSkipsArchivedAndStale(t *testing.T) {
	env := newTestEnv(t)

	live := env.remember(t, "live deploy note", valueobjects.Embedding{1, 0, 0})

	// Archive a second record; it must stop ranking on either leg
	archived := env.remember(t, "stale deploy note", valueobjects.Embedding{0, 1, 0})
	_, err := env.lifecycle.SetImportance(context.Background(), testCaller(), archived.Memory.ID(), 0.105)
	require.NoError(t, err)
	env.clock.Advance(env.cfg.DecayThreshold + 1)
	_, err = env.lifecycle.RunDecayCycle(context.Background(), "tenant-1")
	require.NoError(t, err)

	results, err := env.search.Search(context.Background(), testCaller(), SearchQuery{
		Embedding: valueobjects.Embedding{1, 0, 0},
		Text:      "deploy note",
		Filter:    valueobjects.Filter{TenantID: "tenant-1"},
		Count:     10,
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, live.Memory.ID().String(), results[0].Memory.ID().String())
}

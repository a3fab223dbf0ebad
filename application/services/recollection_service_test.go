package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engram-backend/domain/core/valueobjects"
	"engram-backend/pkg/errors"
)

func recollectQuery(count int) RecollectRequest {
	return RecollectRequest{
		Query: SearchQuery{
			Embedding: valueobjects.Embedding{1, 0, 0},
			Text:      "deploy",
			Filter:    valueobjects.Filter{TenantID: "tenant-1"},
			Count:     count,
		},
	}
}

func TestRecollectBlendsImportanceIntoRank(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// Close to the query vector but pinned unimportant
	similar := env.seedDirect(t, "tenant-1", "deploy note nobody cares about",
		valueobjects.Embedding{1, 0, 0})
	_, err := env.lifecycle.SetImportance(ctx, testCaller(), similar.ID(), 0.05)
	require.NoError(t, err)

	// Further from the query but maximally important
	important := env.seedDirect(t, "tenant-1", "deploy playbook for emergencies",
		valueobjects.Embedding{0.8, 0.6, 0})

	results, err := env.recollection.Recollect(ctx, testCaller(), recollectQuery(2))
	require.NoError(t, err)
	require.Len(t, results, 2)

	// With the default 0.5/0.3/0.2 blend, full importance (0.3) outweighs
	// the similarity edge once fused scores normalize
	assert.Equal(t, important.ID().String(), results[0].Memory.ID().String())
	assert.Greater(t, results[0].Composite, results[1].Composite)
}

func TestRecollectTouchesResults(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	m := env.seedDirect(t, "tenant-1", "deploy checklist", valueobjects.Embedding{1, 0, 0})
	env.clock.Advance(48 * time.Hour)

	results, err := env.recollection.Recollect(ctx, testCaller(), recollectQuery(1))
	require.NoError(t, err)
	require.Len(t, results, 1)

	// Recall counts as use: last access moves to now and importance nudges up
	stored, err := env.repo.GetByID(ctx, "tenant-1", m.ID())
	require.NoError(t, err)
	assert.Equal(t, env.clock.Now(), stored.LastAccessedAt())
	assert.Equal(t, env.clock.Now(), results[0].Memory.LastAccessedAt())
	assert.Equal(t, 2, stored.Version())
}

func TestRecollectGraphJump(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// The record's primary entity comes from its first keyword: "postgres"
	env.seedDirect(t, "tenant-1", "postgres", valueobjects.Embedding{1, 0, 0})

	_, err := env.graphSvc.UpsertNode(ctx, testCaller(), "postgres", "service", nil)
	require.NoError(t, err)
	_, err = env.graphSvc.UpsertNode(ctx, testCaller(), "billing", "service", nil)
	require.NoError(t, err)
	_, err = env.graphSvc.UpsertEdge(ctx, testCaller(), "billing", "postgres", "depends_on", nil)
	require.NoError(t, err)

	req := RecollectRequest{
		Query: SearchQuery{
			Embedding: valueobjects.Embedding{1, 0, 0},
			Text:      "postgres",
			Filter:    valueobjects.Filter{TenantID: "tenant-1"},
			Count:     1,
		},
		GraphJump: true,
	}
	results, err := env.recollection.Recollect(ctx, testCaller(), req)
	require.NoError(t, err)
	require.Len(t, results, 1)

	require.Len(t, results[0].Associations, 1)
	assert.Equal(t, "billing", results[0].Associations[0].Source)
	assert.Equal(t, "depends_on", results[0].Associations[0].Relation)
	assert.Equal(t, "postgres", results[0].Associations[0].Target)
}

func TestRecollectWithoutGraphJumpHasNoAssociations(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.seedDirect(t, "tenant-1", "postgres", valueobjects.Embedding{1, 0, 0})
	_, err := env.graphSvc.UpsertNode(ctx, testCaller(), "postgres", "service", nil)
	require.NoError(t, err)

	results, err := env.recollection.Recollect(ctx, testCaller(), RecollectRequest{
		Query: SearchQuery{
			Embedding: valueobjects.Embedding{1, 0, 0},
			Text:      "postgres",
			Filter:    valueobjects.Filter{TenantID: "tenant-1"},
			Count:     1,
		},
	})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Nil(t, results[0].Associations)
}

func TestRecollectPrefersRecentAmongEquals(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	// The older record wins the vector leg, the newer one the keyword leg, so
	// the fused ranks cancel and access time is left to decide
	stale := env.seedDirect(t, "tenant-1", "planning the trip to Paris",
		valueobjects.Embedding{1, 0, 0})
	env.clock.Advance(60 * 24 * time.Hour)
	fresh := env.seedDirect(t, "tenant-1", "Paris hotel",
		valueobjects.Embedding{0.8, 0.6, 0})

	req := recollectQuery(2)
	req.Query.Text = "paris hotel"
	results, err := env.recollection.Recollect(ctx, testCaller(), req)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, fresh.ID().String(), results[0].Memory.ID().String())
	assert.Equal(t, stale.ID().String(), results[1].Memory.ID().String())
}

func TestRecollectValidation(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.recollection.Recollect(context.Background(), testCaller(), recollectQuery(0))
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	_, err = env.recollection.Recollect(context.Background(), foreignCaller(), recollectQuery(1))
	requireUnauthorized(t, err)
}

func TestRecollectWeightOverrides(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	similar := env.seedDirect(t, "tenant-1", "deploy note nobody cares about",
		valueobjects.Embedding{1, 0, 0})
	_, err := env.lifecycle.SetImportance(ctx, testCaller(), similar.ID(), 0.05)
	require.NoError(t, err)
	env.seedDirect(t, "tenant-1", "deploy playbook for emergencies",
		valueobjects.Embedding{0.8, 0.6, 0})

	// Pure similarity weighting with no keyword hits restores vector order
	req := recollectQuery(2)
	req.Query.Text = "nothing matches this"
	req.SimilarityWeight = 1
	results, err := env.recollection.Recollect(ctx, testCaller(), req)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, similar.ID().String(), results[0].Memory.ID().String())
}

package services

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"engram-backend/application/ports"
	"engram-backend/domain/core/valueobjects"
)

func newTestWorker(env *testEnv) *EmbeddingWorker {
	return NewEmbeddingWorker(env.queue, env.embedder, env.repo, env.cfg,
		time.Second, 10, nil, zap.NewNop())
}

func TestWorkerRefreshesStaleEmbedding(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	worker := newTestWorker(env)

	m := env.seedDirect(t, "tenant-1", "the deploy failed on friday", nil)
	require.True(t, m.Embedding().IsStale())

	env.embedder.set("the deploy failed on friday", valueobjects.Embedding{0, 1, 0})
	require.NoError(t, env.queue.Enqueue(ctx, ports.RefreshJob{
		ID:       "job-1",
		TenantID: "tenant-1",
		MemoryID: m.ID(),
		Content:  m.Content(),
	}))

	worker.drainOnce(ctx)

	refreshed, err := env.repo.GetByID(ctx, "tenant-1", m.ID())
	require.NoError(t, err)
	assert.False(t, refreshed.Embedding().IsStale())
	assert.Equal(t, valueobjects.Embedding{0, 1, 0}, refreshed.Embedding())
	assert.Equal(t, 2, refreshed.Version())

	job, ok := env.queue.Job("job-1")
	require.True(t, ok)
	assert.Equal(t, ports.RefreshCompleted, job.Status)
	pending, err := env.queue.HasPending(ctx, m.ID())
	require.NoError(t, err)
	assert.False(t, pending)
}

func TestWorkerRetriesUntilAttemptsExhausted(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	worker := newTestWorker(env)

	m := env.seedDirect(t, "tenant-1", "note", nil)
	require.NoError(t, env.queue.Enqueue(ctx, ports.RefreshJob{
		ID:       "job-1",
		TenantID: "tenant-1",
		MemoryID: m.ID(),
		Content:  m.Content(),
	}))

	env.embedder.err = fmt.Errorf("provider unavailable")

	// Each round claims the job, fails, and returns it to pending
	for round := 1; round < env.cfg.MaxRefreshAttempts; round++ {
		worker.drainOnce(ctx)
		job, ok := env.queue.Job("job-1")
		require.True(t, ok)
		assert.Equal(t, ports.RefreshPending, job.Status)
		assert.Equal(t, round, job.Attempts)
		assert.Equal(t, "provider unavailable", job.LastError)
	}

	// The final attempt parks the job as failed
	worker.drainOnce(ctx)
	job, ok := env.queue.Job("job-1")
	require.True(t, ok)
	assert.Equal(t, ports.RefreshFailed, job.Status)
	assert.Equal(t, env.cfg.MaxRefreshAttempts, job.Attempts)

	// A parked job no longer counts as pending and is never reclaimed
	pending, err := env.queue.HasPending(ctx, m.ID())
	require.NoError(t, err)
	assert.False(t, pending)
	worker.drainOnce(ctx)
	job, _ = env.queue.Job("job-1")
	assert.Equal(t, env.cfg.MaxRefreshAttempts, job.Attempts)

	stored, err := env.repo.GetByID(ctx, "tenant-1", m.ID())
	require.NoError(t, err)
	assert.True(t, stored.Embedding().IsStale())
}

func TestWorkerCompletesJobForVanishedMemory(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	worker := newTestWorker(env)

	require.NoError(t, env.queue.Enqueue(ctx, ports.RefreshJob{
		ID:       "job-1",
		TenantID: "tenant-1",
		MemoryID: valueobjects.NewMemoryID(),
		Content:  "absorbed before refresh",
	}))

	worker.drainOnce(ctx)

	// The row was consolidated away while the job waited; nothing to update
	job, ok := env.queue.Job("job-1")
	require.True(t, ok)
	assert.Equal(t, ports.RefreshCompleted, job.Status)
}

func TestWorkerRecoversDegradedIngestion(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	worker := newTestWorker(env)

	// Ingest while the provider is down, then bring it back
	env.embedder.err = fmt.Errorf("provider unavailable")
	res := env.remember(t, "logged during the outage", valueobjects.Embedding{0, 0, 1})
	require.True(t, res.Memory.Embedding().IsStale())

	env.embedder.err = nil
	worker.drainOnce(ctx)

	refreshed, err := env.repo.GetByID(ctx, "tenant-1", res.Memory.ID())
	require.NoError(t, err)
	assert.False(t, refreshed.Embedding().IsStale())
	assert.Equal(t, valueobjects.Embedding{0, 0, 1}, refreshed.Embedding())
	pending, err := env.queue.HasPending(ctx, res.Memory.ID())
	require.NoError(t, err)
	assert.False(t, pending)
}

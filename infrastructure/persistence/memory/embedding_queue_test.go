package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"engram-backend/application/ports"
	"engram-backend/domain/core/valueobjects"
	"engram-backend/pkg/errors"
)

func enqueueJob(t *testing.T, q *EmbeddingQueue, id string, enqueuedAt time.Time) valueobjects.MemoryID {
	t.Helper()
	memoryID := valueobjects.NewMemoryID()
	require.NoError(t, q.Enqueue(context.Background(), ports.RefreshJob{
		ID:         id,
		TenantID:   "tenant-1",
		MemoryID:   memoryID,
		Content:    "refresh me",
		EnqueuedAt: enqueuedAt,
	}))
	return memoryID
}

func TestDequeueClaimsInEnqueueOrder(t *testing.T) {
	q := NewEmbeddingQueue(3)
	ctx := context.Background()
	base := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

	enqueueJob(t, q, "job-2", base.Add(time.Minute))
	enqueueJob(t, q, "job-1", base)
	enqueueJob(t, q, "job-3", base.Add(2*time.Minute))

	claimed, err := q.Dequeue(ctx, 2)
	require.NoError(t, err)
	require.Len(t, claimed, 2)
	assert.Equal(t, "job-1", claimed[0].ID)
	assert.Equal(t, "job-2", claimed[1].ID)
	assert.Equal(t, ports.RefreshProcessing, claimed[0].Status)
	assert.Equal(t, 1, claimed[0].Attempts)

	// Claimed jobs stay invisible until completed or failed
	rest, err := q.Dequeue(ctx, 10)
	require.NoError(t, err)
	require.Len(t, rest, 1)
	assert.Equal(t, "job-3", rest[0].ID)
}

func TestCompleteClearsPending(t *testing.T) {
	q := NewEmbeddingQueue(3)
	ctx := context.Background()

	memoryID := enqueueJob(t, q, "job-1", time.Time{})
	pending, err := q.HasPending(ctx, memoryID)
	require.NoError(t, err)
	assert.True(t, pending)

	_, err = q.Dequeue(ctx, 1)
	require.NoError(t, err)
	pending, err = q.HasPending(ctx, memoryID)
	require.NoError(t, err)
	assert.True(t, pending) // processing still counts

	require.NoError(t, q.Complete(ctx, "job-1"))
	pending, err = q.HasPending(ctx, memoryID)
	require.NoError(t, err)
	assert.False(t, pending)

	job, ok := q.Job("job-1")
	require.True(t, ok)
	assert.Equal(t, ports.RefreshCompleted, job.Status)
}

func TestFailReturnsToPendingUntilExhausted(t *testing.T) {
	q := NewEmbeddingQueue(2)
	ctx := context.Background()

	memoryID := enqueueJob(t, q, "job-1", time.Time{})

	_, err := q.Dequeue(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, q.Fail(ctx, "job-1", "provider down"))
	job, _ := q.Job("job-1")
	assert.Equal(t, ports.RefreshPending, job.Status)
	assert.Equal(t, "provider down", job.LastError)

	// The second failure exhausts the attempt budget
	_, err = q.Dequeue(ctx, 1)
	require.NoError(t, err)
	require.NoError(t, q.Fail(ctx, "job-1", "provider still down"))
	job, _ = q.Job("job-1")
	assert.Equal(t, ports.RefreshFailed, job.Status)
	assert.Equal(t, 2, job.Attempts)

	// Parked jobs are neither pending nor reclaimable
	pending, err := q.HasPending(ctx, memoryID)
	require.NoError(t, err)
	assert.False(t, pending)
	claimed, err := q.Dequeue(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, claimed)
}

func TestQueueValidation(t *testing.T) {
	q := NewEmbeddingQueue(3)
	ctx := context.Background()

	err := q.Enqueue(ctx, ports.RefreshJob{MemoryID: valueobjects.NewMemoryID()})
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	err = q.Complete(ctx, "missing")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
	err = q.Fail(ctx, "missing", "cause")
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

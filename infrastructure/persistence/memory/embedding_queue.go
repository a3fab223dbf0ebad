package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"engram-backend/application/ports"
	"engram-backend/domain/core/valueobjects"
	"engram-backend/pkg/errors"
)

// EmbeddingQueue is a mutex-guarded in-memory implementation of
// ports.EmbeddingQueue. Jobs run the pending -> processing -> completed state
// machine; a failed attempt returns the job to pending until its attempts run
// out, then it parks as failed.
type EmbeddingQueue struct {
	mu          sync.Mutex
	jobs        map[string]*ports.RefreshJob
	maxAttempts int
	clock       func() time.Time
}

// NewEmbeddingQueue creates an empty queue with the given attempt budget
func NewEmbeddingQueue(maxAttempts int) *EmbeddingQueue {
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	return &EmbeddingQueue{
		jobs:        make(map[string]*ports.RefreshJob),
		maxAttempts: maxAttempts,
		clock:       time.Now,
	}
}

// Enqueue adds a pending refresh job
func (q *EmbeddingQueue) Enqueue(ctx context.Context, job ports.RefreshJob) error {
	if job.ID == "" {
		return errors.NewValidation("refresh job requires an ID")
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	now := q.clock()
	stored := job
	stored.Status = ports.RefreshPending
	if stored.EnqueuedAt.IsZero() {
		stored.EnqueuedAt = now
	}
	stored.UpdatedAt = now
	q.jobs[job.ID] = &stored
	return nil
}

// Dequeue claims up to limit pending jobs in enqueue order, moving them to
// processing
func (q *EmbeddingQueue) Dequeue(ctx context.Context, limit int) ([]ports.RefreshJob, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var pending []*ports.RefreshJob
	for _, job := range q.jobs {
		if job.Status == ports.RefreshPending {
			pending = append(pending, job)
		}
	}
	sort.Slice(pending, func(i, j int) bool {
		if !pending[i].EnqueuedAt.Equal(pending[j].EnqueuedAt) {
			return pending[i].EnqueuedAt.Before(pending[j].EnqueuedAt)
		}
		return pending[i].ID < pending[j].ID
	})
	if limit > 0 && len(pending) > limit {
		pending = pending[:limit]
	}

	now := q.clock()
	claimed := make([]ports.RefreshJob, 0, len(pending))
	for _, job := range pending {
		job.Status = ports.RefreshProcessing
		job.Attempts++
		job.UpdatedAt = now
		claimed = append(claimed, *job)
	}
	return claimed, nil
}

// Complete marks a job done
func (q *EmbeddingQueue) Complete(ctx context.Context, jobID string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[jobID]
	if !ok {
		return errors.NewNotFound("refresh job not found")
	}
	job.Status = ports.RefreshCompleted
	job.LastError = ""
	job.UpdatedAt = q.clock()
	return nil
}

// Fail records a failed attempt. The job goes back to pending while it has
// attempts left, otherwise it parks as failed with the cause preserved.
func (q *EmbeddingQueue) Fail(ctx context.Context, jobID string, cause string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[jobID]
	if !ok {
		return errors.NewNotFound("refresh job not found")
	}

	job.LastError = cause
	job.UpdatedAt = q.clock()
	if job.Attempts >= q.maxAttempts {
		job.Status = ports.RefreshFailed
	} else {
		job.Status = ports.RefreshPending
	}
	return nil
}

// HasPending reports whether a memory still has an unfinished job
func (q *EmbeddingQueue) HasPending(ctx context.Context, memoryID valueobjects.MemoryID) (bool, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for _, job := range q.jobs {
		if !job.MemoryID.Equals(memoryID) {
			continue
		}
		if job.Status == ports.RefreshPending || job.Status == ports.RefreshProcessing {
			return true, nil
		}
	}
	return false, nil
}

// Job returns a copy of a stored job for inspection
func (q *EmbeddingQueue) Job(jobID string) (ports.RefreshJob, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	job, ok := q.jobs[jobID]
	if !ok {
		return ports.RefreshJob{}, false
	}
	return *job, true
}

var _ ports.EmbeddingQueue = (*EmbeddingQueue)(nil)

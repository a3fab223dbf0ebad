package ports

import (
	"context"
	"time"

	"engram-backend/domain/core/valueobjects"
)

// EmbeddingProvider turns text into a dense vector of the configured
// dimension. Failures are reported as transient errors and retried by the
// refresh queue.
type EmbeddingProvider interface {
	Embed(ctx context.Context, text string) (valueobjects.Embedding, error)
}

// Summarizer condenses a bundle of memory contents into one consolidated
// text during dreaming
type Summarizer interface {
	Summarize(ctx context.Context, contents []string) (string, error)
}

// Caller identifies who is making a request
type Caller struct {
	ID       string
	TenantID string
	OrgID    string
	TeamID   string
}

// Authorizer answers access questions. All policy lives behind this port;
// the engine only asks.
type Authorizer interface {
	// CanAccess reports whether the caller may read or write records in
	// the given tenant scope
	CanAccess(ctx context.Context, caller Caller, tenantID string) (bool, error)

	// IsReviewer reports whether the caller may decide promotion
	// proposals for the given organization
	IsReviewer(ctx context.Context, caller Caller, orgID string) (bool, error)
}

// RefreshJobStatus is the embedding refresh queue state machine
type RefreshJobStatus string

const (
	RefreshPending    RefreshJobStatus = "pending"
	RefreshProcessing RefreshJobStatus = "processing"
	RefreshCompleted  RefreshJobStatus = "completed"
	RefreshFailed     RefreshJobStatus = "failed"
)

// RefreshJob is one queued embedding recomputation
type RefreshJob struct {
	ID         string
	TenantID   string
	MemoryID   valueobjects.MemoryID
	Content    string
	Status     RefreshJobStatus
	Attempts   int
	LastError  string
	EnqueuedAt time.Time
	UpdatedAt  time.Time
}

// EmbeddingQueue hands refresh jobs to the background worker with
// at-least-once delivery. Jobs move pending -> processing -> completed or,
// after bounded attempts, failed; they are never silently dropped.
type EmbeddingQueue interface {
	// Enqueue adds a pending refresh job
	Enqueue(ctx context.Context, job RefreshJob) error

	// Dequeue claims up to limit pending jobs, moving them to processing
	Dequeue(ctx context.Context, limit int) ([]RefreshJob, error)

	// Complete marks a job done
	Complete(ctx context.Context, jobID string) error

	// Fail records a failed attempt. The job returns to pending until its
	// attempts are exhausted, then parks as failed.
	Fail(ctx context.Context, jobID string, cause string) error

	// HasPending reports whether a memory still has an unfinished job
	HasPending(ctx context.Context, memoryID valueobjects.MemoryID) (bool, error)
}

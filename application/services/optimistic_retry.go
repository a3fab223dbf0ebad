package services

import (
	"context"
	"time"

	"engram-backend/application/ports"
	"engram-backend/domain/core/entities"
	"engram-backend/domain/core/valueobjects"
	"engram-backend/pkg/errors"
)

const (
	maxRetries = 3
	baseDelay  = 100 * time.Millisecond
)

// updateMemoryWithRetry performs an optimistic update with automatic retry
// logic. It fetches the latest version of the memory, applies the update
// function, and retries on version conflicts.
func updateMemoryWithRetry(
	ctx context.Context,
	repo ports.MemoryRepository,
	tenantID string,
	id valueobjects.MemoryID,
	updateFn func(*entities.Memory) error,
) (*entities.Memory, error) {
	for attempt := 0; attempt < maxRetries; attempt++ {
		// Fetch the latest version of the memory
		memory, err := repo.GetByID(ctx, tenantID, id)
		if err != nil {
			return nil, err
		}

		// Apply the update function
		if err := updateFn(memory); err != nil {
			return nil, err
		}

		// Try to save the updated memory
		err = repo.Save(ctx, memory)
		if err == nil {
			return memory, nil
		}

		if errors.IsConflict(err) && attempt < maxRetries-1 {
			// Wait with exponential backoff before retrying
			delay := baseDelay * time.Duration(1<<attempt) // 100ms, 200ms, 400ms
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}

		// Non-retryable error or max retries exceeded
		return nil, err
	}

	return nil, errors.NewConflict("max retries exceeded for memory update")
}

package memory

import (
	"context"
	"sync"
	"time"

	"engram-backend/application/ports"
)

// WatermarkStore is a mutex-guarded in-memory implementation of
// ports.WatermarkStore
type WatermarkStore struct {
	mu    sync.RWMutex
	marks map[string]time.Time
}

// NewWatermarkStore creates an empty watermark store
func NewWatermarkStore() *WatermarkStore {
	return &WatermarkStore{marks: make(map[string]time.Time)}
}

// Get returns the stored watermark for a task, zero time when unset
func (s *WatermarkStore) Get(ctx context.Context, task string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.marks[task], nil
}

// Set stores the watermark for a task
func (s *WatermarkStore) Set(ctx context.Context, task string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marks[task] = at
	return nil
}

var _ ports.WatermarkStore = (*WatermarkStore)(nil)

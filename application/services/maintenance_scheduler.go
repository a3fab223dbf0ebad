package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"engram-backend/application/ports"
)

const decayWatermarkTask = "decay-cycle"

// MaintenanceScheduler drives the recurring decay cycle. It keeps a
// persisted watermark of the last completed run so a skipped or delayed
// cycle resumes cleanly, and it runs entirely off the foreground request
// path.
type MaintenanceScheduler struct {
	lifecycle  *LifecycleService
	repo       ports.MemoryRepository
	watermarks ports.WatermarkStore
	interval   time.Duration
	clock      Clock
	logger     *zap.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewMaintenanceScheduler creates a scheduler running at the given interval
func NewMaintenanceScheduler(
	lifecycle *LifecycleService,
	repo ports.MemoryRepository,
	watermarks ports.WatermarkStore,
	interval time.Duration,
	clock Clock,
	logger *zap.Logger,
) *MaintenanceScheduler {
	if interval <= 0 {
		interval = time.Hour
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &MaintenanceScheduler{
		lifecycle:  lifecycle,
		repo:       repo,
		watermarks: watermarks,
		interval:   interval,
		clock:      clock,
		logger:     logger,
		stopCh:     make(chan struct{}),
		doneCh:     make(chan struct{}),
	}
}

// Start runs the schedule until Stop is called or the context ends
func (s *MaintenanceScheduler) Start(ctx context.Context) {
	go func() {
		defer close(s.doneCh)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-s.stopCh:
				return
			case <-ticker.C:
				s.RunDue(ctx)
			}
		}
	}()
}

// Stop halts the schedule and waits for an in-flight cycle to finish
func (s *MaintenanceScheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	<-s.doneCh
}

// RunDue runs one decay pass when the interval since the watermark has
// elapsed. Tenants are processed one at a time; nothing crosses the
// isolation boundary.
func (s *MaintenanceScheduler) RunDue(ctx context.Context) {
	now := s.clock.Now()
	last, err := s.watermarks.Get(ctx, decayWatermarkTask)
	if err != nil {
		s.logger.Error("failed to read decay watermark", zap.Error(err))
		return
	}
	if !last.IsZero() && now.Sub(last) < s.interval {
		return
	}

	tenants, err := s.repo.ListTenants(ctx)
	if err != nil {
		s.logger.Error("failed to list tenants for decay", zap.Error(err))
		return
	}

	for _, tenant := range tenants {
		report, err := s.lifecycle.RunDecayCycle(ctx, tenant)
		if err != nil {
			s.logger.Error("decay cycle failed",
				zap.String("tenant_id", tenant), zap.Error(err))
			continue
		}
		s.logger.Info("decay cycle completed",
			zap.String("tenant_id", tenant),
			zap.Int("decayed", report.Decayed),
			zap.Int("archived", report.Archived))
	}

	if err := s.watermarks.Set(ctx, decayWatermarkTask, now); err != nil {
		s.logger.Error("failed to store decay watermark", zap.Error(err))
	}
}

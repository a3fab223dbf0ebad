package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"engram-backend/application/ports"
	domaincfg "engram-backend/domain/config"
	"engram-backend/domain/core/entities"
	"engram-backend/pkg/errors"
	"engram-backend/pkg/observability"
)

// EmbeddingWorker drains the refresh queue in the background. Jobs move
// pending -> processing -> completed, or back to pending on a transient
// failure until their attempts run out and they park as failed. Records stay
// keyword-searchable the whole time; only vector recall lags.
type EmbeddingWorker struct {
	queue    ports.EmbeddingQueue
	embedder ports.EmbeddingProvider
	repo     ports.MemoryRepository
	config   *domaincfg.DomainConfig
	interval time.Duration
	batch    int
	metrics  *observability.Collector
	logger   *zap.Logger

	stopOnce sync.Once
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewEmbeddingWorker creates a worker polling at the given interval
func NewEmbeddingWorker(
	queue ports.EmbeddingQueue,
	embedder ports.EmbeddingProvider,
	repo ports.MemoryRepository,
	config *domaincfg.DomainConfig,
	interval time.Duration,
	batch int,
	metrics *observability.Collector,
	logger *zap.Logger,
) *EmbeddingWorker {
	if config == nil {
		config = domaincfg.DefaultDomainConfig()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	if batch <= 0 {
		batch = 10
	}
	return &EmbeddingWorker{
		queue:    queue,
		embedder: embedder,
		repo:     repo,
		config:   config,
		interval: interval,
		batch:    batch,
		metrics:  metrics,
		logger:   logger,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}
}

// Start runs the polling loop until Stop is called or the context ends
func (w *EmbeddingWorker) Start(ctx context.Context) {
	go func() {
		defer close(w.doneCh)
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-w.stopCh:
				return
			case <-ticker.C:
				w.drainOnce(ctx)
			}
		}
	}()
}

// Stop halts the loop and waits for the in-flight batch to finish
func (w *EmbeddingWorker) Stop() {
	w.stopOnce.Do(func() { close(w.stopCh) })
	<-w.doneCh
}

// drainOnce claims and processes one batch
func (w *EmbeddingWorker) drainOnce(ctx context.Context) {
	jobs, err := w.queue.Dequeue(ctx, w.batch)
	if err != nil {
		w.logger.Error("failed to dequeue refresh jobs", zap.Error(err))
		return
	}

	for _, job := range jobs {
		w.process(ctx, job)
	}
}

func (w *EmbeddingWorker) process(ctx context.Context, job ports.RefreshJob) {
	embedding, err := w.embedder.Embed(ctx, job.Content)
	if err != nil {
		w.logger.Warn("embedding provider failed",
			zap.String("job_id", job.ID),
			zap.Int("attempts", job.Attempts),
			zap.Error(err))
		if failErr := w.queue.Fail(ctx, job.ID, err.Error()); failErr != nil {
			w.logger.Error("failed to record job failure", zap.Error(failErr))
		}
		if w.metrics != nil {
			w.metrics.RefreshOutcomes.WithLabelValues("retry").Inc()
		}
		return
	}

	_, err = updateMemoryWithRetry(ctx, w.repo, job.TenantID, job.MemoryID, func(m *entities.Memory) error {
		m.SetEmbedding(embedding)
		return nil
	})
	if err != nil {
		// A vanished memory means the row was absorbed or deleted while
		// the job waited; the job completes as a no-op.
		if !errors.IsNotFound(err) {
			w.logger.Error("failed to store refreshed embedding",
				zap.String("job_id", job.ID), zap.Error(err))
			if failErr := w.queue.Fail(ctx, job.ID, err.Error()); failErr != nil {
				w.logger.Error("failed to record job failure", zap.Error(failErr))
			}
			return
		}
	}

	if err := w.queue.Complete(ctx, job.ID); err != nil {
		w.logger.Error("failed to complete refresh job",
			zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	if w.metrics != nil {
		w.metrics.RefreshOutcomes.WithLabelValues("completed").Inc()
	}
}

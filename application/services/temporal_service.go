package services

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"engram-backend/application/ports"
	domaincfg "engram-backend/domain/config"
	"engram-backend/domain/core/entities"
	"engram-backend/domain/core/valueobjects"
	domainservices "engram-backend/domain/services"
	"engram-backend/pkg/errors"
	"engram-backend/pkg/observability"
)

// StateDiff compares the memory set visible at two instants
type StateDiff struct {
	Added     []*entities.Memory
	Removed   []*entities.Memory
	Unchanged int
}

// TimelineEvent is one mutation in a lineage's history
type TimelineEvent struct {
	Memory    *entities.Memory
	At        time.Time
	Status    string // active, superseded, expired
	LineageID string
}

// TemporalService owns the bitemporal view of the store: as-of queries,
// atomic supersession, and lineage history.
type TemporalService struct {
	repo       ports.MemoryRepository
	queue      ports.EmbeddingQueue
	publisher  ports.EventPublisher
	authorizer ports.Authorizer
	analyzer   domainservices.TextAnalyzer
	config     *domaincfg.DomainConfig
	clock      Clock
	metrics    *observability.Collector
	logger     *zap.Logger
}

// NewTemporalService creates a temporal service
func NewTemporalService(
	repo ports.MemoryRepository,
	queue ports.EmbeddingQueue,
	publisher ports.EventPublisher,
	authorizer ports.Authorizer,
	analyzer domainservices.TextAnalyzer,
	config *domaincfg.DomainConfig,
	clock Clock,
	metrics *observability.Collector,
	logger *zap.Logger,
) *TemporalService {
	if config == nil {
		config = domaincfg.DefaultDomainConfig()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if analyzer == nil {
		analyzer = domainservices.NewDefaultTextAnalyzer()
	}
	return &TemporalService{
		repo:       repo,
		queue:      queue,
		publisher:  publisher,
		authorizer: authorizer,
		analyzer:   analyzer,
		config:     config,
		clock:      clock,
		metrics:    metrics,
		logger:     logger,
	}
}

// GetAsOf returns every record whose validity interval contained t, scoped
// to the filter. A lineage that did not exist yet yields nothing, never an
// error.
func (s *TemporalService) GetAsOf(ctx context.Context, caller ports.Caller, filter valueobjects.Filter, t time.Time) ([]*entities.Memory, error) {
	if err := s.authorize(ctx, caller, filter.TenantID); err != nil {
		return nil, err
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	return s.repo.ListAsOf(ctx, filter, t)
}

// Supersede atomically replaces the current version of a lineage with a new
// one carrying the given content. The old row closes at now, the successor
// opens at now, and no instant ever observes zero or two current rows. A
// lost version race is retried with backoff; persistent conflict surfaces as
// a retryable conflict error.
func (s *TemporalService) Supersede(ctx context.Context, caller ports.Caller, oldID valueobjects.MemoryID, newContent string) (*entities.Memory, error) {
	// Rows are addressed within the caller's own tenant, so a foreign
	// record reads as missing; the check only rejects unauthenticated
	// callers.
	if err := s.authorize(ctx, caller, caller.TenantID); err != nil {
		return nil, err
	}
	if newContent == "" {
		return nil, errors.NewValidation("content cannot be empty")
	}

	keywords := s.analyzer.ExtractKeywords(newContent)

	var successor *entities.Memory
	for attempt := 0; attempt < maxRetries; attempt++ {
		current, err := s.repo.GetByID(ctx, caller.TenantID, oldID)
		if err != nil {
			return nil, err
		}

		now := s.clock.Now()
		next, err := current.Supersede(newContent, keywords, caller.ID, now)
		if err != nil {
			return nil, err
		}

		err = s.repo.SaveVersionPair(ctx, current, next)
		if err == nil {
			successor = next
			break
		}
		if errors.IsConflict(err) && attempt < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<attempt)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
			continue
		}
		return nil, err
	}
	if successor == nil {
		return nil, errors.NewConflict("max retries exceeded for supersede")
	}

	// The successor's embedding is stale until the background refresh
	// lands; it stays keyword-searchable in the meantime.
	if err := s.queue.Enqueue(ctx, ports.RefreshJob{
		ID:         uuid.New().String(),
		TenantID:   caller.TenantID,
		MemoryID:   successor.ID(),
		Content:    newContent,
		Status:     ports.RefreshPending,
		EnqueuedAt: s.clock.Now(),
	}); err != nil {
		s.logger.Error("failed to enqueue embedding refresh",
			zap.String("memory_id", successor.ID().String()), zap.Error(err))
	}

	s.publishEvents(ctx, successor)
	if s.metrics != nil {
		s.metrics.MemoriesSuperseded.Inc()
	}

	return successor, nil
}

// History returns a lineage's full version chain ordered by valid-from
func (s *TemporalService) History(ctx context.Context, caller ports.Caller, lineageID valueobjects.LineageID) ([]*entities.Memory, error) {
	if err := s.authorize(ctx, caller, caller.TenantID); err != nil {
		return nil, err
	}
	versions, err := s.repo.GetLineage(ctx, caller.TenantID, lineageID)
	if err != nil {
		return nil, err
	}
	sort.Slice(versions, func(i, j int) bool {
		return versions[i].Interval().From().Before(versions[j].Interval().From())
	})
	return versions, nil
}

// CompareStates diffs the visible memory sets at two instants by lineage:
// lineages visible only at t2 are added, only at t1 removed, and those whose
// content is identical at both instants count as unchanged.
func (s *TemporalService) CompareStates(ctx context.Context, caller ports.Caller, filter valueobjects.Filter, t1, t2 time.Time) (*StateDiff, error) {
	if err := s.authorize(ctx, caller, filter.TenantID); err != nil {
		return nil, err
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	before, err := s.repo.ListAsOf(ctx, filter, t1)
	if err != nil {
		return nil, err
	}
	after, err := s.repo.ListAsOf(ctx, filter, t2)
	if err != nil {
		return nil, err
	}

	beforeByLineage := make(map[string]*entities.Memory, len(before))
	for _, m := range before {
		beforeByLineage[m.LineageID().String()] = m
	}

	diff := &StateDiff{}
	seen := make(map[string]bool, len(after))
	for _, m := range after {
		lineage := m.LineageID().String()
		seen[lineage] = true
		prev, existed := beforeByLineage[lineage]
		switch {
		case !existed:
			diff.Added = append(diff.Added, m)
		case prev.Content() == m.Content():
			diff.Unchanged++
		default:
			// Superseded in between: the lineage shows up as a
			// removal of the old state plus an addition.
			diff.Removed = append(diff.Removed, prev)
			diff.Added = append(diff.Added, m)
		}
	}
	for _, m := range before {
		if !seen[m.LineageID().String()] {
			diff.Removed = append(diff.Removed, m)
		}
	}

	return diff, nil
}

// Timeline lists version rows whose validity started inside [start, end),
// newest first, labeled by their fate.
func (s *TemporalService) Timeline(ctx context.Context, caller ports.Caller, filter valueobjects.Filter, start, end time.Time, limit int) ([]TimelineEvent, error) {
	if err := s.authorize(ctx, caller, filter.TenantID); err != nil {
		return nil, err
	}
	if err := filter.Validate(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	// Every row that started inside the window, whether or not it has
	// since been superseded or expired.
	rows, err := s.repo.ListByValidFrom(ctx, filter, start, end)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	events := make([]TimelineEvent, 0, len(rows))
	for _, m := range rows {
		from := m.Interval().From()
		status := "active"
		switch {
		case !m.IsCurrent():
			status = "superseded"
		case !m.Interval().IsOpen() && !m.Interval().Contains(now):
			status = "expired"
		}
		events = append(events, TimelineEvent{
			Memory:    m,
			At:        from,
			Status:    status,
			LineageID: m.LineageID().String(),
		})
	}

	sort.Slice(events, func(i, j int) bool {
		return events[i].At.After(events[j].At)
	})
	if len(events) > limit {
		events = events[:limit]
	}
	return events, nil
}

func (s *TemporalService) publishEvents(ctx context.Context, m *entities.Memory) {
	pending := m.GetUncommittedEvents()
	if len(pending) == 0 {
		return
	}
	if err := s.publisher.PublishBatch(ctx, pending); err != nil {
		s.logger.Error("failed to publish domain events", zap.Error(err))
		return
	}
	m.MarkEventsAsCommitted()
}

func (s *TemporalService) authorize(ctx context.Context, caller ports.Caller, tenantID string) error {
	ok, err := s.authorizer.CanAccess(ctx, caller, tenantID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.NewUnauthorized("caller may not access this tenant")
	}
	return nil
}

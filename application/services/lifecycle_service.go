package services

import (
	"context"
	"sort"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"engram-backend/application/ports"
	domaincfg "engram-backend/domain/config"
	"engram-backend/domain/core/entities"
	"engram-backend/domain/core/valueobjects"
	"engram-backend/domain/events"
	domainservices "engram-backend/domain/services"
	"engram-backend/pkg/errors"
	"engram-backend/pkg/observability"
)

// Cluster is one group of near-duplicate memories. The representative is the
// first member encountered in ascending ID order; grouping is pairwise
// against the representative, not a transitive closure.
type Cluster struct {
	RepresentativeID string
	MemberIDs        []string
}

// DecayReport summarizes one decay cycle for a tenant
type DecayReport struct {
	TenantID string
	Decayed  int
	Archived int
}

// DecayStats buckets current records by importance
type DecayStats struct {
	High         int // importance > 0.8
	Medium       int // 0.2 < importance <= 0.8
	NearArchival int // importance <= 0.2
	Archived     int
}

// LifecycleService curates the store over time: importance decay with
// soft-archival, duplicate clustering, consolidation, and manual importance
// control.
type LifecycleService struct {
	repo       ports.MemoryRepository
	queue      ports.EmbeddingQueue
	summarizer ports.Summarizer
	publisher  ports.EventPublisher
	authorizer ports.Authorizer
	analyzer   domainservices.TextAnalyzer
	config     *domaincfg.DomainConfig
	clock      Clock
	metrics    *observability.Collector
	logger     *zap.Logger
}

// NewLifecycleService creates a lifecycle service
func NewLifecycleService(
	repo ports.MemoryRepository,
	queue ports.EmbeddingQueue,
	summarizer ports.Summarizer,
	publisher ports.EventPublisher,
	authorizer ports.Authorizer,
	analyzer domainservices.TextAnalyzer,
	config *domaincfg.DomainConfig,
	clock Clock,
	metrics *observability.Collector,
	logger *zap.Logger,
) *LifecycleService {
	if config == nil {
		config = domaincfg.DefaultDomainConfig()
	}
	if clock == nil {
		clock = SystemClock{}
	}
	if analyzer == nil {
		analyzer = domainservices.NewDefaultTextAnalyzer()
	}
	return &LifecycleService{
		repo:       repo,
		queue:      queue,
		summarizer: summarizer,
		publisher:  publisher,
		authorizer: authorizer,
		analyzer:   analyzer,
		config:     config,
		clock:      clock,
		metrics:    metrics,
		logger:     logger,
	}
}

// RunDecayCycle applies importance decay across one tenant. Records
// untouched longer than the threshold lose a multiplicative slice of
// importance; those landing at or below the floor are soft-archived, never
// deleted.
func (s *LifecycleService) RunDecayCycle(ctx context.Context, tenantID string) (*DecayReport, error) {
	now := s.clock.Now()
	cutoff := now.Add(-s.config.DecayThreshold)

	candidates, err := s.repo.ListDecayCandidates(ctx, tenantID, cutoff, s.config.ImportanceFloor)
	if err != nil {
		return nil, err
	}

	report := &DecayReport{TenantID: tenantID}
	for _, candidate := range candidates {
		id := candidate.ID()
		archived := false
		updated, err := updateMemoryWithRetry(ctx, s.repo, tenantID, id, func(m *entities.Memory) error {
			archived = m.ApplyDecay(s.config.DecayFactor, s.config.ImportanceFloor, now)
			return nil
		})
		if err != nil {
			s.logger.Warn("decay update failed",
				zap.String("memory_id", id.String()), zap.Error(err))
			continue
		}
		s.publishEvents(ctx, updated)
		report.Decayed++
		if archived {
			report.Archived++
			if s.metrics != nil {
				s.metrics.MemoriesArchived.Inc()
			}
		}
	}

	if err := s.publisher.Publish(ctx, events.NewDecayCycleCompleted(
		tenantID, report.Decayed, report.Archived, now)); err != nil {
		s.logger.Error("failed to publish decay cycle event", zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.DecayCycles.Inc()
	}

	return report, nil
}

// FindClusters groups near-duplicate current records for one tenant.
// Clustering never crosses tenants: the scan is scoped to this tenant alone.
// Grouping is approximate: each unassigned record in ascending ID order
// becomes a representative and claims every later unassigned record whose
// similarity to it clears the threshold.
func (s *LifecycleService) FindClusters(ctx context.Context, tenantID string) ([]Cluster, error) {
	memories, err := s.repo.ListCurrent(ctx, valueobjects.Filter{TenantID: tenantID}, false)
	if err != nil {
		return nil, err
	}

	// Skip records without a live vector; they cannot be compared
	comparable := memories[:0]
	for _, m := range memories {
		if !m.Embedding().IsStale() {
			comparable = append(comparable, m)
		}
	}
	sort.Slice(comparable, func(i, j int) bool {
		return comparable[i].ID().String() < comparable[j].ID().String()
	})

	assigned := make(map[string]bool, len(comparable))
	var clusters []Cluster
	for i, rep := range comparable {
		repID := rep.ID().String()
		if assigned[repID] {
			continue
		}
		var members []string
		for _, other := range comparable[i+1:] {
			otherID := other.ID().String()
			if assigned[otherID] {
				continue
			}
			if rep.Embedding().Cosine(other.Embedding()) >= s.config.ClusterThreshold {
				members = append(members, otherID)
				assigned[otherID] = true
			}
		}
		if len(members) > 0 {
			assigned[repID] = true
			clusters = append(clusters, Cluster{
				RepresentativeID: repID,
				MemberIDs:        members,
			})
		}
	}

	return clusters, nil
}

// Consolidate merges absorbed records into the primary: the primary's
// content is rewritten in place, its importance and reinforcement grow with
// the absorbed count, and the absorbed records are deleted. This is the one
// non-reversible operation in the store. A primary with a pending embedding
// refresh is skipped until the refresh lands.
func (s *LifecycleService) Consolidate(ctx context.Context, caller ports.Caller, primaryID valueobjects.MemoryID, absorbedIDs []valueobjects.MemoryID, newContent string) (*entities.Memory, error) {
	if err := s.authorize(ctx, caller, caller.TenantID); err != nil {
		return nil, err
	}
	if len(absorbedIDs) == 0 {
		return nil, errors.NewValidation("consolidation requires absorbed records")
	}
	if newContent == "" {
		return nil, errors.NewValidation("content cannot be empty")
	}

	pending, err := s.queue.HasPending(ctx, primaryID)
	if err != nil {
		return nil, err
	}
	if pending {
		return nil, errors.NewConflict("primary has a pending embedding refresh")
	}

	// Verify every absorbed record exists in this tenant before touching
	// anything; the merge is not reversible.
	for _, id := range absorbedIDs {
		if _, err := s.repo.GetByID(ctx, caller.TenantID, id); err != nil {
			return nil, err
		}
	}

	keywords := s.analyzer.ExtractKeywords(newContent)
	absorbed := make([]string, len(absorbedIDs))
	for i, id := range absorbedIDs {
		absorbed[i] = id.String()
	}

	now := s.clock.Now()
	primary, err := updateMemoryWithRetry(ctx, s.repo, caller.TenantID, primaryID, func(m *entities.Memory) error {
		return m.Consolidate(newContent, keywords, absorbed, s.config.ReinforcementBoost, now)
	})
	if err != nil {
		return nil, err
	}

	for _, id := range absorbedIDs {
		if err := s.repo.Delete(ctx, caller.TenantID, id); err != nil {
			s.logger.Error("failed to delete absorbed memory",
				zap.String("memory_id", id.String()), zap.Error(err))
		}
	}

	// The rewritten content needs a fresh vector
	if err := s.queue.Enqueue(ctx, ports.RefreshJob{
		ID:         uuid.New().String(),
		TenantID:   caller.TenantID,
		MemoryID:   primary.ID(),
		Content:    newContent,
		Status:     ports.RefreshPending,
		EnqueuedAt: now,
	}); err != nil {
		s.logger.Error("failed to enqueue embedding refresh",
			zap.String("memory_id", primary.ID().String()), zap.Error(err))
	}

	s.publishEvents(ctx, primary)
	if s.metrics != nil {
		s.metrics.MemoriesConsolidated.Inc()
	}

	return primary, nil
}

// Dream runs one consolidation pass over a tenant: find clusters, summarize
// each into condensed content, and merge. Clusters whose representative
// still awaits an embedding refresh are left for the next pass.
func (s *LifecycleService) Dream(ctx context.Context, caller ports.Caller, tenantID string) (int, error) {
	if err := s.authorize(ctx, caller, tenantID); err != nil {
		return 0, err
	}

	clusters, err := s.FindClusters(ctx, tenantID)
	if err != nil {
		return 0, err
	}

	merged := 0
	for _, cluster := range clusters {
		repID, err := valueobjects.NewMemoryIDFromString(cluster.RepresentativeID)
		if err != nil {
			continue
		}
		pending, err := s.queue.HasPending(ctx, repID)
		if err != nil || pending {
			continue
		}

		contents, memberIDs, err := s.clusterContents(ctx, tenantID, repID, cluster.MemberIDs)
		if err != nil {
			s.logger.Warn("skipping cluster", zap.Error(err))
			continue
		}

		summary, err := s.summarizer.Summarize(ctx, contents)
		if err != nil {
			s.logger.Warn("summarizer failed for cluster",
				zap.String("representative", cluster.RepresentativeID), zap.Error(err))
			continue
		}

		if _, err := s.Consolidate(ctx, caller, repID, memberIDs, summary); err != nil {
			s.logger.Warn("consolidation failed",
				zap.String("representative", cluster.RepresentativeID), zap.Error(err))
			continue
		}
		merged++
	}

	return merged, nil
}

// Reinforce strengthens one memory after an external signal
func (s *LifecycleService) Reinforce(ctx context.Context, caller ports.Caller, id valueobjects.MemoryID) (*entities.Memory, error) {
	// Rows are addressed within the caller's own tenant, so a foreign
	// record reads as missing; the check only rejects unauthenticated
	// callers.
	if err := s.authorize(ctx, caller, caller.TenantID); err != nil {
		return nil, err
	}
	now := s.clock.Now()
	updated, err := updateMemoryWithRetry(ctx, s.repo, caller.TenantID, id, func(m *entities.Memory) error {
		m.Reinforce(s.config.ReinforcementBoost, now)
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.publishEvents(ctx, updated)
	if s.metrics != nil {
		s.metrics.MemoriesReinforced.Inc()
	}
	return updated, nil
}

// SetImportance pins a memory's importance manually
func (s *LifecycleService) SetImportance(ctx context.Context, caller ports.Caller, id valueobjects.MemoryID, score float64) (*entities.Memory, error) {
	if err := s.authorize(ctx, caller, caller.TenantID); err != nil {
		return nil, err
	}
	if score < 0 || score > 1 {
		return nil, errors.NewValidation("importance must be in [0, 1]")
	}
	return updateMemoryWithRetry(ctx, s.repo, caller.TenantID, id, func(m *entities.Memory) error {
		m.SetImportance(score)
		return nil
	})
}

// Stats buckets the tenant's current records by importance
func (s *LifecycleService) Stats(ctx context.Context, caller ports.Caller, filter valueobjects.Filter) (*DecayStats, error) {
	if err := s.authorize(ctx, caller, filter.TenantID); err != nil {
		return nil, err
	}
	memories, err := s.repo.ListCurrent(ctx, filter, true)
	if err != nil {
		return nil, err
	}

	stats := &DecayStats{}
	for _, m := range memories {
		if m.IsArchived() {
			stats.Archived++
			continue
		}
		switch {
		case m.Importance() > 0.8:
			stats.High++
		case m.Importance() > 0.2:
			stats.Medium++
		default:
			stats.NearArchival++
		}
	}
	return stats, nil
}

func (s *LifecycleService) clusterContents(ctx context.Context, tenantID string, repID valueobjects.MemoryID, memberIDs []string) ([]string, []valueobjects.MemoryID, error) {
	rep, err := s.repo.GetByID(ctx, tenantID, repID)
	if err != nil {
		return nil, nil, err
	}
	contents := []string{rep.Content()}

	ids := make([]valueobjects.MemoryID, 0, len(memberIDs))
	for _, raw := range memberIDs {
		id, err := valueobjects.NewMemoryIDFromString(raw)
		if err != nil {
			return nil, nil, err
		}
		member, err := s.repo.GetByID(ctx, tenantID, id)
		if err != nil {
			return nil, nil, err
		}
		contents = append(contents, member.Content())
		ids = append(ids, id)
	}
	return contents, ids, nil
}

func (s *LifecycleService) publishEvents(ctx context.Context, m *entities.Memory) {
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

func (s *LifecycleService) authorize(ctx context.Context, caller ports.Caller, tenantID string) error {
	ok, err := s.authorizer.CanAccess(ctx, caller, tenantID)
	if err != nil {
		return err
	}
	if !ok {
		return errors.NewUnauthorized("caller may not access this tenant")
	}
	return nil
}

// Package memory provides in-memory repository implementations used by tests
// and local development. They mirror the semantics of the DynamoDB adapters,
// including version-conditional writes.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"engram-backend/application/ports"
	"engram-backend/domain/core/entities"
	"engram-backend/domain/core/valueobjects"
	domainservices "engram-backend/domain/services"
	"engram-backend/pkg/errors"
)

// MemoryRepository is a mutex-guarded in-memory implementation of
// ports.MemoryRepository
type MemoryRepository struct {
	mu     sync.RWMutex
	rows   map[string]*entities.Memory // keyed by memory ID
	scorer domainservices.RelevanceScorer
}

// NewMemoryRepository creates an empty repository
func NewMemoryRepository(scorer domainservices.RelevanceScorer) *MemoryRepository {
	if scorer == nil {
		scorer = domainservices.NewDefaultRelevanceScorer(nil, nil)
	}
	return &MemoryRepository{
		rows:   make(map[string]*entities.Memory),
		scorer: scorer,
	}
}

// Save persists a row. New rows insert; existing rows update only when the
// incoming version is exactly one ahead of the stored version.
func (r *MemoryRepository) Save(ctx context.Context, m *entities.Memory) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saveLocked(m)
}

func (r *MemoryRepository) saveLocked(m *entities.Memory) error {
	key := m.ID().String()
	existing, ok := r.rows[key]
	if ok {
		if m.Version() != existing.Version()+1 {
			return errors.NewConflict("memory version conflict")
		}
	} else if m.Version() != 1 {
		return errors.NewConflict("memory version conflict")
	}
	r.rows[key] = snapshot(m)
	return nil
}

// GetByID retrieves a row within a tenant. Foreign-tenant rows read as
// missing.
func (r *MemoryRepository) GetByID(ctx context.Context, tenantID string, id valueobjects.MemoryID) (*entities.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.rows[id.String()]
	if !ok || m.Attributes().Scope().TenantID() != tenantID {
		return nil, errors.NewNotFound("memory not found")
	}
	return snapshot(m), nil
}

// GetCurrent retrieves the current row of a lineage
func (r *MemoryRepository) GetCurrent(ctx context.Context, tenantID string, lineageID valueobjects.LineageID) (*entities.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, m := range r.rows {
		if m.Attributes().Scope().TenantID() == tenantID &&
			m.LineageID().Equals(lineageID) && m.IsCurrent() {
			return snapshot(m), nil
		}
	}
	return nil, errors.NewNotFound("memory not found")
}

// GetLineage retrieves every row of a lineage
func (r *MemoryRepository) GetLineage(ctx context.Context, tenantID string, lineageID valueobjects.LineageID) ([]*entities.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.Memory
	for _, m := range r.rows {
		if m.Attributes().Scope().TenantID() == tenantID && m.LineageID().Equals(lineageID) {
			out = append(out, snapshot(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Interval().From().Before(out[j].Interval().From())
	})
	return out, nil
}

// SaveVersionPair writes the closed old row and its successor under one
// lock, conditional on the closed row's version. A concurrent supersede
// loses the race and gets a conflict.
func (r *MemoryRepository) SaveVersionPair(ctx context.Context, closed, successor *entities.Memory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	prev, had := r.rows[closed.ID().String()]
	if err := r.saveLocked(closed); err != nil {
		return err
	}
	if err := r.saveLocked(successor); err != nil {
		// Roll the closed row back so the pair stays atomic
		if had {
			r.rows[closed.ID().String()] = prev
		} else {
			delete(r.rows, closed.ID().String())
		}
		return err
	}
	return nil
}

// Delete removes a row permanently
func (r *MemoryRepository) Delete(ctx context.Context, tenantID string, id valueobjects.MemoryID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	m, ok := r.rows[id.String()]
	if !ok || m.Attributes().Scope().TenantID() != tenantID {
		return errors.NewNotFound("memory not found")
	}
	delete(r.rows, id.String())
	return nil
}

// VectorTopK ranks current, unarchived, filter-matching rows by ascending
// cosine distance to the query embedding
func (r *MemoryRepository) VectorTopK(ctx context.Context, filter valueobjects.Filter, query valueobjects.Embedding, k int) ([]ports.RankedMemory, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var ranked []ports.RankedMemory
	for _, m := range r.rows {
		if !m.IsCurrent() || m.IsArchived() || m.Embedding().IsStale() {
			continue
		}
		if !filter.Matches(m.Attributes()) {
			continue
		}
		ranked = append(ranked, ports.RankedMemory{
			Memory: snapshot(m),
			Score:  m.Embedding().Distance(query),
		})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score < ranked[j].Score
		}
		return ranked[i].Memory.ID().String() < ranked[j].Memory.ID().String()
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked, nil
}

// KeywordTopK ranks current, unarchived, filter-matching rows by descending
// keyword relevance. Zero-relevance rows never rank.
func (r *MemoryRepository) KeywordTopK(ctx context.Context, filter valueobjects.Filter, queryText string, k int) ([]ports.RankedMemory, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	terms := r.scorer.QueryTerms(queryText)

	r.mu.RLock()
	defer r.mu.RUnlock()

	var ranked []ports.RankedMemory
	for _, m := range r.rows {
		if !m.IsCurrent() || m.IsArchived() {
			continue
		}
		if !filter.Matches(m.Attributes()) {
			continue
		}
		score := r.scorer.Score(terms, m.Keywords())
		if score <= 0 {
			continue
		}
		ranked = append(ranked, ports.RankedMemory{Memory: snapshot(m), Score: score})
	}

	sort.Slice(ranked, func(i, j int) bool {
		if ranked[i].Score != ranked[j].Score {
			return ranked[i].Score > ranked[j].Score
		}
		return ranked[i].Memory.ID().String() < ranked[j].Memory.ID().String()
	})
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked, nil
}

// ListAsOf returns rows whose validity interval contains t
func (r *MemoryRepository) ListAsOf(ctx context.Context, filter valueobjects.Filter, t time.Time) ([]*entities.Memory, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.Memory
	for _, m := range r.rows {
		if !filter.Matches(m.Attributes()) {
			continue
		}
		if m.Interval().Contains(t) {
			out = append(out, snapshot(m))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID().String() < out[j].ID().String()
	})
	return out, nil
}

// ListByValidFrom returns rows whose validity started inside [start, end),
// superseded ones included
func (r *MemoryRepository) ListByValidFrom(ctx context.Context, filter valueobjects.Filter, start, end time.Time) ([]*entities.Memory, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.Memory
	for _, m := range r.rows {
		if !filter.Matches(m.Attributes()) {
			continue
		}
		from := m.Interval().From()
		if from.Before(start) || !from.Before(end) {
			continue
		}
		out = append(out, snapshot(m))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Interval().From().Equal(out[j].Interval().From()) {
			return out[i].Interval().From().Before(out[j].Interval().From())
		}
		return out[i].ID().String() < out[j].ID().String()
	})
	return out, nil
}

// ListCurrent returns current rows matching the filter
func (r *MemoryRepository) ListCurrent(ctx context.Context, filter valueobjects.Filter, includeArchived bool) ([]*entities.Memory, error) {
	if err := filter.Validate(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.Memory
	for _, m := range r.rows {
		if !m.IsCurrent() {
			continue
		}
		if m.IsArchived() && !includeArchived {
			continue
		}
		if !filter.Matches(m.Attributes()) {
			continue
		}
		out = append(out, snapshot(m))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID().String() < out[j].ID().String()
	})
	return out, nil
}

// ListDecayCandidates returns current, unarchived rows idle past the cutoff
// with importance above the floor
func (r *MemoryRepository) ListDecayCandidates(ctx context.Context, tenantID string, cutoff time.Time, floor float64) ([]*entities.Memory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*entities.Memory
	for _, m := range r.rows {
		if m.Attributes().Scope().TenantID() != tenantID {
			continue
		}
		if !m.IsCurrent() || m.IsArchived() {
			continue
		}
		if m.LastAccessedAt().After(cutoff) {
			continue
		}
		if m.Importance() <= floor {
			continue
		}
		out = append(out, snapshot(m))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].ID().String() < out[j].ID().String()
	})
	return out, nil
}

// ListTenants returns every tenant with stored rows
func (r *MemoryRepository) ListTenants(ctx context.Context) ([]string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var tenants []string
	for _, m := range r.rows {
		tenant := m.Attributes().Scope().TenantID()
		if !seen[tenant] {
			seen[tenant] = true
			tenants = append(tenants, tenant)
		}
	}
	sort.Strings(tenants)
	return tenants, nil
}

// snapshot deep-copies a row so callers never share entity state with the
// store
func snapshot(m *entities.Memory) *entities.Memory {
	copied, err := entities.ReconstructMemory(
		m.ID(), m.LineageID(), m.Content(), m.Embedding(), m.Attributes(),
		m.Keywords(), m.Importance(), m.Reinforcement(),
		m.IsFlashbulb(), m.IsVerified(), m.IsArchived(),
		m.Interval(), m.IsCurrent(), m.LastAccessedAt(), m.CreatedAt(), m.Version(),
	)
	if err != nil {
		// Reconstruction of a stored row cannot fail validation
		panic(err)
	}
	return copied
}

var _ ports.MemoryRepository = (*MemoryRepository)(nil)

package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"engram-backend/application/ports"
	domaincfg "engram-backend/domain/config"
	"engram-backend/domain/core/entities"
	"engram-backend/domain/core/valueobjects"
	"engram-backend/domain/events"
	domainservices "engram-backend/domain/services"
	memstore "engram-backend/infrastructure/persistence/memory"
	"engram-backend/pkg/auth"
	"engram-backend/pkg/errors"
)

var testStart = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

// fakeClock is a manually advanced clock
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: testStart} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// stubEmbedder returns canned vectors per input text
type stubEmbedder struct {
	mu      sync.Mutex
	vectors map[string]valueobjects.Embedding
	err     error
}

func newStubEmbedder() *stubEmbedder {
	return &stubEmbedder{vectors: make(map[string]valueobjects.Embedding)}
}

func (e *stubEmbedder) set(text string, v valueobjects.Embedding) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.vectors[text] = v
}

func (e *stubEmbedder) Embed(ctx context.Context, text string) (valueobjects.Embedding, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.err != nil {
		return nil, e.err
	}
	if v, ok := e.vectors[text]; ok {
		return v, nil
	}
	return valueobjects.Embedding{1, 0, 0}, nil
}

// stubSummarizer joins contents with a fixed prefix
type stubSummarizer struct {
	err error
}

func (s *stubSummarizer) Summarize(ctx context.Context, contents []string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	out := "summary:"
	for _, c := range contents {
		out += " " + c
	}
	return out, nil
}

// capturePublisher records published events
type capturePublisher struct {
	mu     sync.Mutex
	events []events.DomainEvent
}

func (p *capturePublisher) Publish(ctx context.Context, event events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

func (p *capturePublisher) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, batch...)
	return nil
}

func (p *capturePublisher) typesSeen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, e := range p.events {
		out[i] = e.GetEventType()
	}
	return out
}

// testEnv wires every service against the in-memory stack
type testEnv struct {
	repo       *memstore.MemoryRepository
	graph      *memstore.GraphRepository
	proposals  *memstore.ProposalRepository
	queue      *memstore.EmbeddingQueue
	clock      *fakeClock
	publisher  *capturePublisher
	embedder   *stubEmbedder
	summarizer *stubSummarizer
	authorizer *auth.StaticAuthorizer
	cfg        *domaincfg.DomainConfig

	ingestion    *IngestionService
	search       *FusionSearchService
	graphSvc     *GraphService
	recollection *RecollectionService
	temporal     *TemporalService
	lifecycle    *LifecycleService
	promotion    *PromotionService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	cfg := domaincfg.DefaultDomainConfig()
	logger := zap.NewNop()

	env := &testEnv{
		repo:       memstore.NewMemoryRepository(nil),
		graph:      memstore.NewGraphRepository(),
		proposals:  memstore.NewProposalRepository(),
		queue:      memstore.NewEmbeddingQueue(cfg.MaxRefreshAttempts),
		clock:      newFakeClock(),
		publisher:  &capturePublisher{},
		embedder:   newStubEmbedder(),
		summarizer: &stubSummarizer{},
		authorizer: auth.NewStaticAuthorizer(),
		cfg:        cfg,
	}

	env.ingestion = NewIngestionService(env.repo, env.queue, env.embedder, env.publisher,
		env.authorizer, nil, cfg, env.clock, nil, logger)
	env.search = NewFusionSearchService(env.repo, env.authorizer, cfg, logger)
	env.graphSvc = NewGraphService(env.graph, env.authorizer, env.clock, logger)
	env.recollection = NewRecollectionService(env.search, env.graphSvc, env.repo,
		cfg, env.clock, nil, logger)
	env.temporal = NewTemporalService(env.repo, env.queue, env.publisher,
		env.authorizer, nil, cfg, env.clock, nil, logger)
	env.lifecycle = NewLifecycleService(env.repo, env.queue, env.summarizer, env.publisher,
		env.authorizer, nil, cfg, env.clock, nil, logger)
	env.promotion = NewPromotionService(env.repo, env.proposals, env.publisher,
		env.authorizer, cfg, env.clock, logger)

	return env
}

func testCaller() ports.Caller {
	return ports.Caller{ID: "user-1", TenantID: "tenant-1", OrgID: "org-1", TeamID: "team-1"}
}

func foreignCaller() ports.Caller {
	return ports.Caller{ID: "user-9", TenantID: "tenant-9", OrgID: "org-9"}
}

// remember ingests one observation with a canned embedding and returns the
// stored memory
func (env *testEnv) remember(t *testing.T, content string, vector valueobjects.Embedding) *RememberResult {
	t.Helper()
	env.embedder.set(content, vector)
	scope, err := valueobjects.NewScope("tenant-1", "org-1", "team-1")
	require.NoError(t, err)
	res, err := env.ingestion.Remember(context.Background(), testCaller(), RememberRequest{
		Content:    content,
		Scope:      scope,
		Visibility: valueobjects.VisibilityPrivate,
		Kind:       valueobjects.KindEpisodic,
	})
	require.NoError(t, err)
	return res
}

// seedDirect writes a row straight into the store, bypassing the ingestion
// surprise check. Near-duplicate fixtures need this: at ingest they would be
// reinforced into the original instead of stored.
func (env *testEnv) seedDirect(t *testing.T, tenantID, content string, vector valueobjects.Embedding) *entities.Memory {
	t.Helper()
	scope, err := valueobjects.NewScope(tenantID, "org-1", "")
	require.NoError(t, err)
	attrs, err := valueobjects.NewAttributes(scope, valueobjects.VisibilityPrivate, valueobjects.KindEpisodic, nil)
	require.NoError(t, err)
	analyzer := domainservices.NewDefaultTextAnalyzer()
	m, err := entities.NewMemory(content, attrs, analyzer.ExtractKeywords(content),
		env.cfg.DefaultImportance, false, env.clock.Now())
	require.NoError(t, err)
	m.AttachEmbedding(vector)
	require.NoError(t, env.repo.Save(context.Background(), m))
	return m
}

func requireUnauthorized(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.IsUnauthorized(err))
}

func requireNotFound(t *testing.T, err error) {
	t.Helper()
	require.Error(t, err)
	require.True(t, errors.IsNotFound(err))
}

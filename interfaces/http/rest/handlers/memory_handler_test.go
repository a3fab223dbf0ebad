package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"engram-backend/application/ports"
	"engram-backend/application/services"
	domaincfg "engram-backend/domain/config"
	"engram-backend/domain/core/valueobjects"
	"engram-backend/domain/events"
	memstore "engram-backend/infrastructure/persistence/memory"
	"engram-backend/pkg/auth"
)

type fixedClock struct{ now time.Time }

func (c fixedClock) Now() time.Time { return c.now }

type cannedEmbedder struct{}

func (cannedEmbedder) Embed(ctx context.Context, text string) (valueobjects.Embedding, error) {
	return valueobjects.Embedding{1, 0, 0}, nil
}

type nopPublisher struct{}

func (nopPublisher) Publish(ctx context.Context, event events.DomainEvent) error { return nil }
func (nopPublisher) PublishBatch(ctx context.Context, batch []events.DomainEvent) error {
	return nil
}

func newMemoryHandler(t *testing.T) *MemoryHandler {
	t.Helper()
	cfg := domaincfg.DefaultDomainConfig()
	logger := zap.NewNop()
	clock := fixedClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}

	repo := memstore.NewMemoryRepository(nil)
	queue := memstore.NewEmbeddingQueue(cfg.MaxRefreshAttempts)
	graph := memstore.NewGraphRepository()
	authorizer := auth.NewStaticAuthorizer()

	ingestion := services.NewIngestionService(repo, queue, cannedEmbedder{}, nopPublisher{},
		authorizer, nil, cfg, clock, nil, logger)
	search := services.NewFusionSearchService(repo, authorizer, cfg, logger)
	graphSvc := services.NewGraphService(graph, authorizer, clock, logger)
	recollection := services.NewRecollectionService(search, graphSvc, repo, cfg, clock, nil, logger)

	return NewMemoryHandler(ingestion, search, recollection, logger)
}

func doJSON(t *testing.T, handler http.HandlerFunc, caller *ports.Caller, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", bytes.NewBufferString(body))
	if caller != nil {
		req = req.WithContext(auth.WithCaller(req.Context(), *caller, nil))
	}
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestRememberEndpoint(t *testing.T) {
	h := newMemoryHandler(t)
	caller := ports.Caller{ID: "user-1", TenantID: "tenant-1", OrgID: "org-1"}
	body := `{"content":"the deploy failed","tenantId":"tenant-1","orgId":"org-1","visibility":"private","kind":"episodic"}`

	rec := doJSON(t, h.Remember, &caller, body)
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp rememberResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.False(t, resp.Reinforced)
	assert.Equal(t, "the deploy failed", resp.Memory.Content)
	assert.Equal(t, "tenant-1", resp.Memory.TenantID)
	assert.Equal(t, 1, resp.Memory.Version)

	// The same observation again reinforces instead of inserting
	rec = doJSON(t, h.Remember, &caller, body)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Reinforced)
	assert.Equal(t, 1, resp.Memory.Reinforcement)
}

func TestRememberEndpointRejections(t *testing.T) {
	h := newMemoryHandler(t)
	caller := ports.Caller{ID: "user-1", TenantID: "tenant-1", OrgID: "org-1"}

	// No authenticated caller
	rec := doJSON(t, h.Remember, nil, `{}`)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Missing required fields
	rec = doJSON(t, h.Remember, &caller, `{"content":"x"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Unknown fields are rejected
	rec = doJSON(t, h.Remember, &caller,
		`{"content":"x","tenantId":"tenant-1","visibility":"private","kind":"episodic","bogus":true}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	// Tenant mismatch maps to 403
	rec = doJSON(t, h.Remember, &caller,
		`{"content":"x","tenantId":"tenant-2","visibility":"private","kind":"episodic"}`)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestSearchEndpoint(t *testing.T) {
	h := newMemoryHandler(t)
	caller := ports.Caller{ID: "user-1", TenantID: "tenant-1", OrgID: "org-1"}

	rec := doJSON(t, h.Remember, &caller,
		`{"content":"billing outage runbook","tenantId":"tenant-1","orgId":"org-1","visibility":"private","kind":"episodic"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h.Search, &caller,
		`{"embedding":[1,0,0],"text":"billing","filter":{"tenantId":"tenant-1"},"count":5}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results []searchHit `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "billing outage runbook", resp.Results[0].Memory.Content)
	assert.Greater(t, resp.Results[0].Score, 0.0)

	// A zero count never reaches the service
	rec = doJSON(t, h.Search, &caller, `{"filter":{"tenantId":"tenant-1"},"count":0}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRecollectEndpoint(t *testing.T) {
	h := newMemoryHandler(t)
	caller := ports.Caller{ID: "user-1", TenantID: "tenant-1", OrgID: "org-1"}

	rec := doJSON(t, h.Remember, &caller,
		`{"content":"billing outage runbook","tenantId":"tenant-1","orgId":"org-1","visibility":"private","kind":"episodic"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = doJSON(t, h.Recollect, &caller,
		`{"embedding":[1,0,0],"text":"billing","filter":{"tenantId":"tenant-1"},"count":5}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Results []recollectHit `json:"results"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Results, 1)
	assert.Greater(t, resp.Results[0].Composite, 0.0)
}

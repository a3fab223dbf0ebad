// Package rest wires the chi router for the engine's HTTP surface.
package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"engram-backend/interfaces/http/rest/handlers"
	"engram-backend/interfaces/http/rest/middleware"
	"engram-backend/pkg/auth"
	"engram-backend/pkg/observability"
)

// Router builds the HTTP handler tree
type Router struct {
	memory     *handlers.MemoryHandler
	graph      *handlers.GraphHandler
	temporal   *handlers.TemporalHandler
	lifecycle  *handlers.LifecycleHandler
	promotion  *handlers.PromotionHandler
	health     *handlers.HealthHandler
	validator  *auth.Validator
	metrics    *observability.Collector
	enableCORS bool
	logger     *zap.Logger
}

// NewRouter creates a router over the handler set
func NewRouter(
	memory *handlers.MemoryHandler,
	graph *handlers.GraphHandler,
	temporal *handlers.TemporalHandler,
	lifecycle *handlers.LifecycleHandler,
	promotion *handlers.PromotionHandler,
	health *handlers.HealthHandler,
	validator *auth.Validator,
	metrics *observability.Collector,
	enableCORS bool,
	logger *zap.Logger,
) *Router {
	return &Router{
		memory:     memory,
		graph:      graph,
		temporal:   temporal,
		lifecycle:  lifecycle,
		promotion:  promotion,
		health:     health,
		validator:  validator,
		metrics:    metrics,
		enableCORS: enableCORS,
		logger:     logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.RequestID())
	router.Use(middleware.Logger(rt.logger))
	if rt.metrics != nil {
		router.Use(middleware.Metrics(rt.metrics))
	}
	router.Use(middleware.CircuitBreaker(middleware.DefaultBreakerConfig("api"), rt.logger))

	if rt.enableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.health.Health)
	router.Get("/ready", rt.health.Ready)
	if rt.metrics != nil {
		router.Method(http.MethodGet, "/metrics",
			promhttp.HandlerFor(rt.metrics.Registry(), promhttp.HandlerOpts{}))
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.validator))

		r.Post("/memories", rt.memory.Remember)
		r.Post("/memories/{id}/supersede", rt.temporal.Supersede)
		r.Post("/memories/{id}/reinforce", rt.lifecycle.Reinforce)
		r.Put("/memories/{id}/importance", rt.lifecycle.SetImportance)

		r.Post("/search", rt.memory.Search)
		r.Post("/recollect", rt.memory.Recollect)

		r.Route("/graph", func(r chi.Router) {
			r.Post("/nodes", rt.graph.UpsertNode)
			r.Post("/edges", rt.graph.UpsertEdge)
			r.Get("/nodes/{name}/traverse", rt.graph.Traverse)
		})

		r.Route("/temporal", func(r chi.Router) {
			r.Post("/as-of", rt.temporal.GetAsOf)
			r.Post("/compare", rt.temporal.Compare)
			r.Post("/timeline", rt.temporal.Timeline)
		})
		r.Get("/lineages/{id}/history", rt.temporal.History)

		r.Route("/lifecycle", func(r chi.Router) {
			r.Post("/decay", rt.lifecycle.RunDecay)
			r.Post("/clusters", rt.lifecycle.FindClusters)
			r.Post("/consolidate", rt.lifecycle.Consolidate)
			r.Post("/dream", rt.lifecycle.Dream)
			r.Post("/stats", rt.lifecycle.Stats)
		})

		r.Route("/promotions", func(r chi.Router) {
			r.Post("/", rt.promotion.Suggest)
			r.Get("/pending", rt.promotion.ListPending)
			r.Post("/{id}/approve", rt.promotion.Approve)
			r.Post("/{id}/reject", rt.promotion.Reject)
		})
	})

	return router
}

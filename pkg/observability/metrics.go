package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Global metrics instance for singleton pattern
	globalCollector *Collector
	collectorMutex  sync.Mutex
)

// Collector holds all Prometheus metrics for the application
type Collector struct {
	// Registry for this collector instance
	registry *prometheus.Registry

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec

	// Retrieval metrics
	RecallRequests *prometheus.CounterVec
	RecallDuration *prometheus.HistogramVec

	// Curation metrics
	MemoriesCreated      prometheus.Counter
	MemoriesSuperseded   prometheus.Counter
	MemoriesReinforced   prometheus.Counter
	MemoriesConsolidated prometheus.Counter
	MemoriesArchived     prometheus.Counter
	DecayCycles          prometheus.Counter

	// Embedding refresh metrics
	RefreshQueueDepth prometheus.Gauge
	RefreshOutcomes   *prometheus.CounterVec

	// Repository metrics
	DBOperations *prometheus.CounterVec
	DBDuration   *prometheus.HistogramVec
}

// NewCollector creates a new metrics collector with the given namespace
func NewCollector(namespace string) *Collector {
	// Use singleton pattern to avoid duplicate registration in tests
	collectorMutex.Lock()
	defer collectorMutex.Unlock()

	if globalCollector != nil {
		return globalCollector
	}

	registry := prometheus.NewRegistry()

	httpRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	httpDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	recallRequests := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recall_requests_total",
			Help:      "Total number of recall requests by mode",
		},
		[]string{"mode"},
	)

	recallDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recall_duration_seconds",
			Help:      "Recall latency in seconds by mode",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"mode"},
	)

	memoriesCreated := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_created_total",
			Help:      "Total number of memory records created",
		},
	)

	memoriesSuperseded := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_superseded_total",
			Help:      "Total number of supersessions",
		},
	)

	memoriesReinforced := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_reinforced_total",
			Help:      "Total number of reinforcements",
		},
	)

	memoriesConsolidated := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_consolidated_total",
			Help:      "Total number of consolidation merges",
		},
	)

	memoriesArchived := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memories_archived_total",
			Help:      "Total number of memories soft-archived by decay",
		},
	)

	decayCycles := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "decay_cycles_total",
			Help:      "Total number of completed decay cycles",
		},
	)

	refreshQueueDepth := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "embedding_refresh_queue_depth",
			Help:      "Number of embedding refresh jobs awaiting processing",
		},
	)

	refreshOutcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "embedding_refresh_outcomes_total",
			Help:      "Embedding refresh job outcomes",
		},
		[]string{"outcome"},
	)

	dbOperations := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "db_operations_total",
			Help:      "Total number of repository operations",
		},
		[]string{"operation"},
	)

	dbDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "db_operation_duration_seconds",
			Help:      "Repository operation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	registry.MustRegister(
		httpRequests, httpDuration,
		recallRequests, recallDuration,
		memoriesCreated, memoriesSuperseded, memoriesReinforced,
		memoriesConsolidated, memoriesArchived, decayCycles,
		refreshQueueDepth, refreshOutcomes,
		dbOperations, dbDuration,
	)

	globalCollector = &Collector{
		registry:             registry,
		HTTPRequests:         httpRequests,
		HTTPDuration:         httpDuration,
		RecallRequests:       recallRequests,
		RecallDuration:       recallDuration,
		MemoriesCreated:      memoriesCreated,
		MemoriesSuperseded:   memoriesSuperseded,
		MemoriesReinforced:   memoriesReinforced,
		MemoriesConsolidated: memoriesConsolidated,
		MemoriesArchived:     memoriesArchived,
		DecayCycles:          decayCycles,
		RefreshQueueDepth:    refreshQueueDepth,
		RefreshOutcomes:      refreshOutcomes,
		DBOperations:         dbOperations,
		DBDuration:           dbDuration,
	}
	return globalCollector
}

// Registry exposes the collector's registry for the /metrics endpoint
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Workflow metrics
	WorkflowsStarted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftline_workflows_started_total",
			Help: "Total number of workflow instances started",
		},
		[]string{"kind"},
	)

	WorkflowsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftline_workflows_completed_total",
			Help: "Total number of workflow instances reaching a terminal state",
		},
		[]string{"kind", "status"},
	)

	WorkflowDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "draftline_workflow_duration_seconds",
			Help:    "Workflow instance duration in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"kind"},
	)

	ActiveInstances = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "draftline_active_instances",
			Help: "Workflow instances currently in flight on this worker",
		},
	)

	StageDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "draftline_stage_duration_seconds",
			Help:    "Duration of individual lifecycle stages in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind", "stage"},
	)

	// Knowledge cache metrics
	KnowledgeLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftline_knowledge_lookups_total",
			Help: "Knowledge cache lookups by outcome (hit, miss, degraded)",
		},
		[]string{"outcome"},
	)

	KnowledgeDeposits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftline_knowledge_deposits_total",
			Help: "Knowledge deposits by outcome (written, skipped, failed)",
		},
		[]string{"outcome"},
	)

	KnowledgeCoverage = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "draftline_knowledge_coverage",
			Help:    "Coverage score observed at lookup time",
			Buckets: []float64{0, 0.1, 0.25, 0.5, 0.75, 0.9, 1.0},
		},
	)

	// Research funnel metrics
	SearchPagesFetched = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "draftline_search_pages_fetched_total",
			Help: "Search result pages fetched from the provider",
		},
	)

	SearchCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "draftline_search_cache_hits_total",
			Help: "Search responses served from the Redis cache",
		},
	)

	CrawlAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftline_crawl_attempts_total",
			Help: "Crawl attempts by crawler and outcome",
		},
		[]string{"crawler", "outcome"},
	)

	FunnelFindings = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "draftline_funnel_findings",
			Help:    "Findings produced per funnel run by tier",
			Buckets: []float64{0, 1, 2, 5, 10, 15, 25, 50},
		},
		[]string{"tier"},
	)

	ResearchCostMicros = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "draftline_research_cost_micros",
			Help:    "Research cost per instance in USD micros",
			Buckets: []float64{1000, 5000, 10000, 50000, 100000, 250000, 500000, 1000000},
		},
	)

	CostCeilingHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "draftline_cost_ceiling_hits_total",
			Help: "Instances that hit the per-instance cost ceiling",
		},
	)

	// Provider call metrics
	ProviderCalls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftline_provider_calls_total",
			Help: "Outbound provider calls by provider and status",
		},
		[]string{"provider", "status"},
	)

	ProviderLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "draftline_provider_latency_seconds",
			Help:    "Outbound provider call latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"provider"},
	)

	// Pricing fallback metrics
	PricingFallbacks = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftline_pricing_fallback_total",
			Help: "Rate lookups that fell back to compiled-in defaults",
		},
		[]string{"reason"},
	)

	// Idempotency ledger metrics
	LedgerHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "draftline_ledger_hits_total",
			Help: "Activity invocations answered from the idempotency ledger",
		},
	)

	LedgerMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "draftline_ledger_misses_total",
			Help: "Activity invocations not found in the idempotency ledger",
		},
	)

	LedgerDegraded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "draftline_ledger_degraded_total",
			Help: "Ledger operations skipped because Redis was unavailable",
		},
	)

	LedgerCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "draftline_ledger_cache_size",
			Help: "Entries currently held in the local ledger cache",
		},
	)

	// Generation metrics
	DraftTokensUsed = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "draftline_draft_tokens_used",
			Help:    "Tokens consumed per generated draft",
			Buckets: []float64{100, 500, 1000, 2000, 5000, 10000, 20000},
		},
	)

	DraftCompleteness = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "draftline_draft_completeness",
			Help:    "Completeness score of generated drafts",
			Buckets: []float64{0, 0.25, 0.5, 0.7, 0.8, 0.9, 1.0},
		},
	)

	// Policy gate metrics
	PolicyDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftline_policy_decisions_total",
			Help: "Publish policy decisions by mode and outcome",
		},
		[]string{"mode", "outcome"},
	)

	// Persistence metrics
	PersistWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftline_persist_writes_total",
			Help: "Persistence writes by kind and outcome (created, updated, failed)",
		},
		[]string{"kind", "outcome"},
	)

	SnapshotsArchived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "draftline_snapshots_archived_total",
			Help: "Terminal-state snapshots archived for inspection",
		},
	)

	// Event stream metrics
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "draftline_events_published_total",
			Help: "Progress events published by stage",
		},
		[]string{"stage"},
	)

	EventSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "draftline_event_subscribers",
			Help: "Currently connected progress stream subscribers",
		},
	)
)

// RecordWorkflowMetrics records terminal metrics for a completed instance.
func RecordWorkflowMetrics(kind, status string, durationSeconds float64, costMicros int64) {
	WorkflowsCompleted.WithLabelValues(kind, status).Inc()
	WorkflowDuration.WithLabelValues(kind).Observe(durationSeconds)
	if costMicros > 0 {
		ResearchCostMicros.Observe(float64(costMicros))
	}
}

// RecordProviderCall records one outbound provider call.
func RecordProviderCall(provider, status string, durationSeconds float64) {
	ProviderCalls.WithLabelValues(provider, status).Inc()
	ProviderLatency.WithLabelValues(provider).Observe(durationSeconds)
}

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReportsGenerated = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedbackflow_reports_generated_total",
		Help: "The total number of report generations by outcome",
	}, []string{"outcome"})

	ReportGenerationDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feedbackflow_report_generation_duration_seconds",
		Help:    "Duration of a single report generation",
		Buckets: []float64{1, 2, 5, 10, 20, 30, 60, 120, 300},
	})

	ItemsSkipped = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedbackflow_items_skipped_total",
		Help: "Total number of feedback items skipped during generation by reason",
	}, []string{"reason"})

	BatchRunDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feedbackflow_batch_run_duration_seconds",
		Help:    "Duration of a full batch regeneration run",
		Buckets: []float64{10, 30, 60, 300, 600, 1800, 3600, 7200},
	})

	BatchRequestsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedbackflow_batch_requests_total",
		Help: "Total number of requests processed by the batch scheduler by status",
	}, []string{"status"})

	EmailsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedbackflow_emails_sent_total",
		Help: "Total number of admin report emails by delivery status",
	}, []string{"status"})

	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedbackflow_report_cache_hits_total",
		Help: "Total number of fresh report cache hits",
	})

	CacheStaleHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedbackflow_report_cache_stale_hits_total",
		Help: "Total number of report cache hits older than the configured max age",
	})

	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "feedbackflow_report_cache_misses_total",
		Help: "Total number of report cache misses",
	})

	JobsProcessed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedbackflow_generation_jobs_total",
		Help: "Total number of generation jobs finished by status",
	}, []string{"status"})

	SubscriptionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "feedbackflow_subscriptions_active",
		Help: "Number of deduplicated report subscriptions",
	})

	AnalyzerRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "feedbackflow_analyzer_requests_total",
		Help: "Total number of analyzer requests by status",
	}, []string{"status"})

	AnalyzerRequestDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "feedbackflow_analyzer_request_duration_seconds",
		Help:    "Duration of analyzer requests",
		Buckets: prometheus.DefBuckets,
	})
)

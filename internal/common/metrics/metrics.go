package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	WorkerJobsActive = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "worker_jobs_active",
			Help: "Number of active jobs per worker",
		},
		[]string{"task_type"},
	)

	// SourceRequests counts evidence-gathering steps per source and outcome
	// (ok, empty, error, skipped).
	SourceRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "research_source_requests_total",
			Help: "Evidence source invocations by outcome",
		},
		[]string{"source", "outcome"},
	)

	FDASubResourceRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fda_subresource_requests_total",
			Help: "openFDA queries by sub-resource and outcome",
		},
		[]string{"sub_resource", "outcome"},
	)

	FDARequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fda_request_duration_seconds",
			Help:    "openFDA request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"sub_resource"},
	)

	CompletionRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "completion_requests_total",
			Help: "Completion API calls by call site and outcome",
		},
		[]string{"call_site", "outcome"},
	)
)

// internal/common/metrics/metrics.go
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

	ReadinessEvaluations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_readiness_evaluations_total",
			Help: "Readiness evaluations by result",
		},
		[]string{"result"},
	)

	RenderTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_job_transitions_total",
			Help: "Render job state transitions by target state",
		},
		[]string{"state"},
	)

	RenderFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_job_failures_total",
			Help: "Render job failures by category and phase",
		},
		[]string{"category", "phase"},
	)

	RenderRetryDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "render_retry_decisions_total",
			Help: "Retry policy decisions by category and action",
		},
		[]string{"category", "action"},
	)

	RenderPolls = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "render_job_polls_total",
			Help: "Status polls issued to the render service",
		},
	)

	RenderRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "render_run_duration_seconds",
			Help:    "Wall time from first submission to terminal state",
			Buckets: []float64{30, 60, 120, 300, 600, 900, 1200, 1800},
		},
		[]string{"status"},
	)

	RenderRunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "render_runs_active",
			Help: "Render runs currently being monitored",
		},
	)
)

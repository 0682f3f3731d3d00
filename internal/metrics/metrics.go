package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "runctl"

var (
	// HTTP metrics of the local API
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "endpoint", "status"},
	)

	HTTPRequestInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "http_requests_in_flight",
			Help:      "Number of HTTP requests currently being processed",
		},
	)

	// Run controller metrics

	RunsSubmitted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_submitted_total",
			Help:      "Total number of submissions by outcome",
		},
		[]string{"outcome"},
	)

	RunsFinished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "runs_finished_total",
			Help:      "Total number of runs that left the polling phases, by final phase",
		},
		[]string{"phase"},
	)

	RunsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "runs_active",
			Help:      "Number of runs currently being polled",
		},
	)

	StatusPolls = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "status_polls_total",
			Help:      "Total number of status checks by outcome",
		},
		[]string{"outcome"},
	)

	StatusPollDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "status_poll_duration_seconds",
			Help:      "Duration of status checks in seconds",
			Buckets:   prometheus.DefBuckets,
		},
	)
)

// Poll outcomes
const (
	OutcomeRunning   = "running"
	OutcomeCompleted = "completed"
	OutcomeFailed    = "failed"
	OutcomeError     = "error"
	OutcomeSuccess   = "success"
	OutcomeRejected  = "rejected"
)

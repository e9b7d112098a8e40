package metrics

import (
	"regexp"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestDuration tracks HTTP request duration in seconds by method, path, status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts HTTP requests by method, path, status.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// TicksTotal counts control loop invocations.
	TicksTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_ticks_total",
			Help: "Total number of scheduler ticks",
		},
	)

	// TickDuration tracks how long one tick takes.
	TickDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scheduler_tick_duration_seconds",
			Help:    "Duration of one scheduler tick in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// RunsTotal counts pipeline runs by outcome (success, failed).
	RunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_runs_total",
			Help: "Total number of executed pipeline runs by status",
		},
		[]string{"status"},
	)

	// ClaimSkipsTotal counts occurrences already claimed by a concurrent tick.
	ClaimSkipsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "scheduler_claim_skips_total",
			Help: "Occurrences skipped because another tick already claimed them",
		},
	)

	// AutoDisablesTotal counts schedules disabled by the control loop, by reason
	// (failure_threshold, window_closed).
	AutoDisablesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scheduler_auto_disables_total",
			Help: "Schedules automatically disabled by the control loop",
		},
		[]string{"reason"},
	)
)

var (
	numericPathSegment = regexp.MustCompile(`/[0-9]+(/|$)`)
	initOnce           sync.Once
)

func init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestDuration, RequestTotal,
			TicksTotal, TickDuration, RunsTotal, ClaimSkipsTotal, AutoDisablesTotal)
	})
}

// NormalizePath reduces cardinality by replacing numeric path segments with {id}.
// E.g. /v1/schedules/123/runs -> /v1/schedules/{id}/runs.
func NormalizePath(path string) string {
	return numericPathSegment.ReplaceAllString(path, "/{id}$1")
}

// RecordRequest records duration and count for an HTTP request.
func RecordRequest(method, path string, statusCode int, durationSeconds float64) {
	path = NormalizePath(path)
	status := strconv.Itoa(statusCode)
	RequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
	RequestTotal.WithLabelValues(method, path, status).Inc()
}

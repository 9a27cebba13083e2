// Package metrics holds the Prometheus collectors exported on /metrics.
// HTTP collectors are fed by Middleware; the domain collectors are updated
// by the prescription and reference services. Everything is registered with the
// default registry at init.
package metrics

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	HTTPRequestTotals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_request_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)

	HTTPRequestInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_request_in_flight",
			Help: "Current in-flight requests",
		},
	)

	PrescriptionSubmits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prescription_submits_total",
			Help: "Prescription submit attempts by outcome",
		},
		[]string{"outcome"},
	)

	PrescriptionDeletes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "prescription_deletes_total",
			Help: "Prescription deletes by outcome",
		},
		[]string{"outcome"},
	)

	DraftSessionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "prescription_draft_sessions",
			Help: "Open prescription editor sessions",
		},
	)

	ReferenceWrites = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reference_writes_total",
			Help: "Reference data writes by entity, action and outcome",
		},
		[]string{"entity", "action", "outcome"},
	)

	SnapshotReloads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reference_snapshot_reloads_total",
			Help: "Reference and prescription list reloads by outcome",
		},
		[]string{"outcome"},
	)

	RateLimiterBucketsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "rate_limiter_buckets_total",
			Help: "Total number of rate limiter buckets",
		},
	)
)

// Outcome label values.
const (
	OutcomeSuccess  = "success"
	OutcomeInvalid  = "invalid"
	OutcomeDeclined = "declined"
	OutcomeFailure  = "failure"
)

func init() {
	prometheus.MustRegister(HTTPRequestTotals)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestInFlight)
	prometheus.MustRegister(PrescriptionSubmits)
	prometheus.MustRegister(PrescriptionDeletes)
	prometheus.MustRegister(DraftSessionsActive)
	prometheus.MustRegister(ReferenceWrites)
	prometheus.MustRegister(SnapshotReloads)
	prometheus.MustRegister(RateLimiterBucketsTotal)
}

// Handler serves the default registry.
func Handler() echo.HandlerFunc {
	return echo.WrapHandler(promhttp.Handler())
}

// Package metrics provides Prometheus metrics for avatargw:
// submissions, polls, upstream latency, notifications and health.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Jobs ───────────────────────────────────────────────────────────────────

// Submissions counts submit calls by vendor and outcome (task, resolved, error).
var Submissions = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "avatargw",
	Name:      "submissions_total",
	Help:      "Total vendor job submissions.",
}, []string{"vendor", "outcome"})

// Polls counts poll attempts by vendor and normalized status.
var Polls = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "avatargw",
	Name:      "polls_total",
	Help:      "Total poll attempts by normalized status.",
}, []string{"vendor", "status"})

// InlinePollAttempts tracks how many attempts an inline poll loop needed.
var InlinePollAttempts = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "avatargw",
	Name:      "inline_poll_attempts",
	Help:      "Attempts used by inline poll loops before a terminal status.",
	Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 600},
}, []string{"vendor"})

// ─── Upstream ───────────────────────────────────────────────────────────────

// UpstreamLatency tracks gateway request duration in seconds.
var UpstreamLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "avatargw",
	Name:      "upstream_request_seconds",
	Help:      "Upstream gateway request duration in seconds.",
	Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 300},
}, []string{"op", "code"})

// ─── Notifications ──────────────────────────────────────────────────────────

// Notifications counts events emitted by the notification bridge.
var Notifications = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "avatargw",
	Name:      "notifications_total",
	Help:      "Notification events emitted, by code.",
}, []string{"code"})

// EventSubscribers tracks connected SSE subscribers.
var EventSubscribers = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "avatargw",
	Name:      "event_subscribers",
	Help:      "Number of connected event stream subscribers.",
})

// ─── Health ─────────────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "avatargw",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})

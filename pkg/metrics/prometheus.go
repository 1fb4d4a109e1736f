// Package metrics provides Prometheus metrics for the club backend.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Manager owns every collector exported by the service.
type Manager struct {
	namespace        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Rate limiting
	rateLimitDecisions *prometheus.CounterVec
	loginGuardFailOpen prometheus.Counter
	loginAttemptsLog   *prometheus.CounterVec

	// Attendance
	checkIns         *prometheus.CounterVec
	tokenResolutions *prometheus.CounterVec
	tokensIssued     prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Live feed
	feedConnections prometheus.Gauge
}

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // private registry keeps Go runtime collectors out of /metrics

var globalManager = NewManager(WithPrometheusRegistry(customRegistry)) //nolint:gochecknoglobals // process-wide collectors

// NewManager creates a metrics manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "club",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	m.rateLimitDecisions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "ratelimit",
		Name:      "decisions_total",
		Help:      "Rate limiter decisions by policy and outcome.",
	}, []string{"policy", "outcome"})
	m.loginGuardFailOpen = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "loginguard",
		Name:      "fail_open_total",
		Help:      "Login rate-limit checks allowed because the backend could not be reached.",
	})
	m.loginAttemptsLog = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "loginguard",
		Name:      "attempt_logs_total",
		Help:      "Login attempt audit writes by result.",
	}, []string{"result"})
	m.checkIns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "attendance",
		Name:      "checkins_total",
		Help:      "Recorded check-ins by age bracket.",
	}, []string{"bracket"})
	m.tokenResolutions = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "attendance",
		Name:      "token_resolutions_total",
		Help:      "Attendance link lookups by result.",
	}, []string{"result"})
	m.tokensIssued = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "attendance",
		Name:      "tokens_issued_total",
		Help:      "Attendance links generated from the admin console.",
	})
	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route, method and status.",
	}, []string{"route", "method", "status"})
	m.httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   m.histogramBuckets,
	}, []string{"route", "method"})
	m.feedConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "realtime",
		Name:      "connections",
		Help:      "Open admin live-feed websocket connections.",
	})

	m.registry.MustRegister(
		m.rateLimitDecisions,
		m.loginGuardFailOpen,
		m.loginAttemptsLog,
		m.checkIns,
		m.tokenResolutions,
		m.tokensIssued,
		m.httpRequests,
		m.httpRequestDuration,
		m.feedConnections,
	)
}

// GetRegistry returns the registry backing the global manager.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}

// RecordRateLimitDecision counts one limiter decision.
func RecordRateLimitDecision(policy string, allowed bool) {
	outcome := "allowed"
	if !allowed {
		outcome = "blocked"
	}
	if policy == "" {
		policy = "custom"
	}
	globalManager.rateLimitDecisions.WithLabelValues(policy, outcome).Inc()
}

// RecordLoginGuardFailOpen counts a check that was allowed because of a backend error.
func RecordLoginGuardFailOpen() {
	globalManager.loginGuardFailOpen.Inc()
}

// RecordLoginAttemptLog counts an audit write; ok=false means it was dropped.
func RecordLoginAttemptLog(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	globalManager.loginAttemptsLog.WithLabelValues(result).Inc()
}

// RecordCheckIn counts a stored attendance record.
func RecordCheckIn(bracket string) {
	if bracket == "" {
		bracket = "none"
	}
	globalManager.checkIns.WithLabelValues(bracket).Inc()
}

// RecordTokenResolution counts an attendance link lookup.
func RecordTokenResolution(result string) {
	globalManager.tokenResolutions.WithLabelValues(result).Inc()
}

// RecordTokenIssued counts a generated attendance link.
func RecordTokenIssued() {
	globalManager.tokensIssued.Inc()
}

// RecordHTTPRequest records one served request.
func RecordHTTPRequest(route, method, status string, seconds float64) {
	globalManager.httpRequests.WithLabelValues(route, method, status).Inc()
	globalManager.httpRequestDuration.WithLabelValues(route, method).Observe(seconds)
}

// AddFeedConnections adjusts the open live-feed connection gauge.
func AddFeedConnections(delta int) {
	globalManager.feedConnections.Add(float64(delta))
}

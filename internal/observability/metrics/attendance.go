// Package metrics provides Prometheus collectors for capture, geocoding and submission.
package metrics

import (
	"strings"

	"github.com/prometheus/client_golang/prometheus"
)

// AttendanceMetrics is safe to use through a nil pointer; every recorder is a
// no-op then.
type AttendanceMetrics struct {
	sessionsStartedTotal *prometheus.CounterVec
	sessionFailuresTotal *prometheus.CounterVec
	activeSessions       prometheus.Gauge
	locationOutcomes     *prometheus.CounterVec
	geocodeResults       *prometheus.CounterVec
	geocodeDuration      prometheus.Histogram
	submissionsTotal     *prometheus.CounterVec
}

// NewAttendanceMetrics creates the collectors and registers them on registry.
func NewAttendanceMetrics(registry prometheus.Registerer, namespace string) (*AttendanceMetrics, error) {
	namespace = strings.TrimSpace(namespace)
	m := &AttendanceMetrics{
		sessionsStartedTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "capture_sessions_started_total",
				Help:      "Capture sessions that reached the ready phase",
			},
			[]string{"kind"},
		),
		sessionFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "capture_session_failures_total",
				Help:      "Capture sessions that failed to start",
			},
			[]string{"reason"}, // permission_denied, device_unavailable, ...
		),
		activeSessions: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "capture_sessions_active",
				Help:      "Capture sessions currently holding a camera",
			},
		),
		locationOutcomes: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "location_requests_total",
				Help:      "Location fix requests by outcome",
			},
			[]string{"outcome"}, // fixed, timeout, unavailable, denied, superseded
		),
		geocodeResults: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "geocode_results_total",
				Help:      "Reverse geocode lookups by result",
			},
			[]string{"result"}, // cache_hit, resolved, fallback
		),
		geocodeDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "geocode_duration_seconds",
				Help:      "Time spent on reverse geocode network lookups",
				Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
			},
		),
		submissionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "submissions_total",
				Help:      "Gateway submissions by record type and status",
			},
			[]string{"record", "status"}, // record: event, mark; status: submitted, failed
		),
	}

	if registry != nil {
		if err := registry.Register(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// Describe implements the Collector interface
func (m *AttendanceMetrics) Describe(ch chan<- *prometheus.Desc) {
	m.sessionsStartedTotal.Describe(ch)
	m.sessionFailuresTotal.Describe(ch)
	m.activeSessions.Describe(ch)
	m.locationOutcomes.Describe(ch)
	m.geocodeResults.Describe(ch)
	m.geocodeDuration.Describe(ch)
	m.submissionsTotal.Describe(ch)
}

// Collect implements the Collector interface
func (m *AttendanceMetrics) Collect(ch chan<- prometheus.Metric) {
	m.sessionsStartedTotal.Collect(ch)
	m.sessionFailuresTotal.Collect(ch)
	m.activeSessions.Collect(ch)
	m.locationOutcomes.Collect(ch)
	m.geocodeResults.Collect(ch)
	m.geocodeDuration.Collect(ch)
	m.submissionsTotal.Collect(ch)
}

func (m *AttendanceMetrics) RecordSessionStarted(kind string) {
	if m == nil {
		return
	}
	m.sessionsStartedTotal.WithLabelValues(kind).Inc()
	m.activeSessions.Inc()
}

func (m *AttendanceMetrics) RecordSessionClosed() {
	if m == nil {
		return
	}
	m.activeSessions.Dec()
}

func (m *AttendanceMetrics) RecordSessionFailure(reason string) {
	if m == nil {
		return
	}
	m.sessionFailuresTotal.WithLabelValues(reason).Inc()
}

func (m *AttendanceMetrics) RecordLocationOutcome(outcome string) {
	if m == nil {
		return
	}
	m.locationOutcomes.WithLabelValues(outcome).Inc()
}

func (m *AttendanceMetrics) RecordGeocode(result string, seconds float64) {
	if m == nil {
		return
	}
	m.geocodeResults.WithLabelValues(result).Inc()
	if seconds > 0 {
		m.geocodeDuration.Observe(seconds)
	}
}

func (m *AttendanceMetrics) RecordSubmission(record string, status string) {
	if m == nil {
		return
	}
	m.submissionsTotal.WithLabelValues(record, status).Inc()
}

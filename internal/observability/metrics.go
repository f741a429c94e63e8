package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes the service's prometheus collectors. A nil *Metrics is a no-op.
type Metrics struct {
	requests      *prometheus.HistogramVec
	errors        *prometheus.CounterVec
	scans         *prometheus.CounterVec
	sweeps        *prometheus.CounterVec
	notifications *prometheus.CounterVec
}

// NewMetrics registers collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		requests: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "checkin",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route, method and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"path", "method", "status"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkin",
			Name:      "http_errors_total",
			Help:      "HTTP errors by route, method and error code.",
		}, []string{"path", "method", "code"}),
		scans: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkin",
			Name:      "transitions_total",
			Help:      "Check-in engine outcomes by entry point and result.",
		}, []string{"entry", "result"}),
		sweeps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkin",
			Name:      "janitor_removed_total",
			Help:      "Rows removed by the janitor sweep.",
		}, []string{"kind"}),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "checkin",
			Name:      "notifications_total",
			Help:      "Notification queueing and delivery results.",
		}, []string{"stage", "result"}),
	}
	reg.MustRegister(m.requests, m.errors, m.scans, m.sweeps, m.notifications)
	return m
}

// RecordRequest observes request latency.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(path, method, strconv.Itoa(status)).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(path, method, code).Inc()
}

// RecordTransition counts an engine outcome; result is an action or an error code.
func (m *Metrics) RecordTransition(entry, result string) {
	if m == nil {
		return
	}
	m.scans.WithLabelValues(entry, result).Inc()
}

// RecordSweep adds removed rows of the given kind.
func (m *Metrics) RecordSweep(kind string, removed int) {
	if m == nil || removed <= 0 {
		return
	}
	m.sweeps.WithLabelValues(kind).Add(float64(removed))
}

// RecordNotification counts notification queueing ("enqueue") and delivery ("deliver") results.
func (m *Metrics) RecordNotification(stage, result string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(stage, result).Inc()
}

package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// Metrics holds the service's Prometheus collectors.
type Metrics struct {
	Registry *prometheus.Registry

	requests        *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	errors          *prometheus.CounterVec
	ticketEvents    *prometheus.CounterVec
	lockWaits       *prometheus.CounterVec
	ticketsByStatus *prometheus.GaugeVec
}

// NewMetrics registers collectors on a fresh registry.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "repair_service"
	}
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests handled.",
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests.",
			Buckets:   prometheus.ExponentialBuckets(0.005, 2, 10),
		}, []string{"method", "path"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "errors_total",
			Help:      "Requests that ended in a domain error, by code.",
		}, []string{"method", "path", "code"}),
		ticketEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tickets",
			Name:      "events_total",
			Help:      "Ticket lifecycle events by type.",
		}, []string{"event", "detail"}),
		lockWaits: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "tickets",
			Name:      "lock_acquisitions_total",
			Help:      "Per-ticket lock acquisition attempts by outcome.",
		}, []string{"outcome"}),
		ticketsByStatus: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "tickets",
			Name:      "by_status",
			Help:      "Stored tickets per workflow status.",
		}, []string{"status"}),
	}
	m.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.requests,
		m.requestDuration,
		m.errors,
		m.ticketEvents,
		m.lockWaits,
		m.ticketsByStatus,
	)
	return m
}

// RecordRequest increments counters for requests.
func (m *Metrics) RecordRequest(path, method string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.requestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordError increments error counters.
func (m *Metrics) RecordError(path, method, code string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(method, path, code).Inc()
}

// RecordTicketEvent counts a lifecycle event; detail is e.g. the target status.
func (m *Metrics) RecordTicketEvent(event, detail string) {
	if m == nil {
		return
	}
	m.ticketEvents.WithLabelValues(event, detail).Inc()
}

// RecordLock counts a lock acquisition outcome ("acquired", "busy", "error").
func (m *Metrics) RecordLock(outcome string) {
	if m == nil {
		return
	}
	m.lockWaits.WithLabelValues(outcome).Inc()
}

// SetTicketStatusCounts replaces the per-status ticket gauge.
func (m *Metrics) SetTicketStatusCounts(counts map[string]int) {
	if m == nil {
		return
	}
	m.ticketsByStatus.Reset()
	for status, count := range counts {
		m.ticketsByStatus.WithLabelValues(status).Set(float64(count))
	}
}

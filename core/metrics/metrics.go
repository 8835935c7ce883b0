package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "warroom"

// Metrics owns its registry so tests can build as many instances as they like.
// All methods are safe on a nil receiver.
type Metrics struct {
	registry *prometheus.Registry

	RequestCount      *prometheus.CounterVec
	RequestDuration   *prometheus.HistogramVec
	IncidentsCreated  *prometheus.CounterVec
	IncidentUpdates   *prometheus.CounterVec
	ResolutionMinutes *prometheus.HistogramVec
	LiveSubscribers   prometheus.Gauge
	LiveEvents        *prometheus.CounterVec
	LiveDropped       prometheus.Counter
	SinkFailures      prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		RequestCount: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		RequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
		IncidentsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "created_total",
			Help:      "Incidents created by severity and source",
		}, []string{"severity", "source"}),
		IncidentUpdates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "timeline_events_total",
			Help:      "Timeline events appended by action",
		}, []string{"action"}),
		ResolutionMinutes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "incidents",
			Name:      "resolution_minutes",
			Help:      "Minutes from creation to resolution",
			Buckets:   []float64{5, 15, 30, 60, 120, 240, 480, 1440, 4320},
		}, []string{"severity"}),
		LiveSubscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "subscribers",
			Help:      "Currently connected live subscribers",
		}),
		LiveEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "events_total",
			Help:      "Events published to the live hub",
		}, []string{"type"}),
		LiveDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "dropped_total",
			Help:      "Events skipped for subscribers with a full buffer",
		}),
		SinkFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "sink_failures_total",
			Help:      "Events a sink failed to deliver after retries",
		}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.RequestCount,
		m.RequestDuration,
		m.IncidentsCreated,
		m.IncidentUpdates,
		m.ResolutionMinutes,
		m.LiveSubscribers,
		m.LiveEvents,
		m.LiveDropped,
		m.SinkFailures,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRequest(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.RequestCount.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) IncidentCreated(severity, source string) {
	if m == nil {
		return
	}
	m.IncidentsCreated.WithLabelValues(severity, source).Inc()
}

func (m *Metrics) TimelineAppended(action string) {
	if m == nil {
		return
	}
	m.IncidentUpdates.WithLabelValues(action).Inc()
}

func (m *Metrics) IncidentResolved(severity string, took time.Duration) {
	if m == nil {
		return
	}
	m.ResolutionMinutes.WithLabelValues(severity).Observe(took.Minutes())
}

func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.LiveSubscribers.Set(float64(n))
}

func (m *Metrics) EventPublished(eventType string) {
	if m == nil {
		return
	}
	m.LiveEvents.WithLabelValues(eventType).Inc()
}

func (m *Metrics) EventDropped() {
	if m == nil {
		return
	}
	m.LiveDropped.Inc()
}

func (m *Metrics) SinkFailed() {
	if m == nil {
		return
	}
	m.SinkFailures.Inc()
}

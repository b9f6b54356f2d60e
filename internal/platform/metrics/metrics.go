package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics agrupa los collectors del servicio sobre un registry propio,
// para que cada router (y cada test) tenga sus contadores aislados.
type Metrics struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	dosesRecorded *prometheus.CounterVec
	doseRejected  *prometheus.CounterVec
}

func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		registry: reg,
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		dosesRecorded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "doses_recorded_total",
				Help: "Adherence logs written, by dose status",
			},
			[]string{"status"},
		),
		doseRejected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dose_record_rejections_total",
				Help: "markDose requests rejected, by reason",
			},
			[]string{"reason"},
		),
	}

	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.httpRequests,
		m.httpDuration,
		m.dosesRecorded,
		m.doseRejected,
	)
	return m
}

// ObserveHTTP registra un request terminado. route es el patrón chi, no el path crudo.
func (m *Metrics) ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	if m == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	m.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

func (m *Metrics) DoseRecorded(status string) {
	if m == nil {
		return
	}
	m.dosesRecorded.WithLabelValues(status).Inc()
}

func (m *Metrics) DoseRejected(reason string) {
	if m == nil {
		return
	}
	m.doseRejected.WithLabelValues(reason).Inc()
}

// Handler expone el registry en formato Prometheus.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry se expone para tests (testutil) y para colgar collectors extra.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

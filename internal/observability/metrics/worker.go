package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	service  string
	registry *prometheus.Registry

	exportTotal    *prometheus.CounterVec
	exportDuration *prometheus.HistogramVec
	exportInFlight prometheus.Gauge
	eventLag       prometheus.Histogram
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	m := &WorkerMetrics{
		service:  service,
		registry: registry,
		exportTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "export_total",
			Help:        "Processed-document exports by status.",
			ConstLabels: constLabels,
		}, []string{"status"}),
		exportDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "export_duration_seconds",
			Help:        "Export duration in seconds by status.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}, []string{"status"}),
		exportInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "export_in_flight",
			Help:        "Number of in-flight exports.",
			ConstLabels: constLabels,
		}),
		eventLag: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "worker",
			Name:        "event_lag_seconds",
			Help:        "Delay between document processing and export start.",
			Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
			ConstLabels: constLabels,
		}),
	}

	registry.MustRegister(m.exportTotal, m.exportDuration, m.exportInFlight, m.eventLag)
	return m
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *WorkerMetrics) StartExport(processedAt time.Time) {
	m.exportInFlight.Inc()
	if !processedAt.IsZero() {
		if lag := time.Since(processedAt); lag >= 0 {
			m.eventLag.Observe(lag.Seconds())
		}
	}
}

func (m *WorkerMetrics) FinishExport(duration time.Duration, err error) {
	m.exportInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}
	m.exportTotal.WithLabelValues(status).Inc()
	m.exportDuration.WithLabelValues(status).Observe(duration.Seconds())
}

package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/kirillkom/pdf-processor/internal/core/domain"
)

const namespace = "pdfproc"

type HTTPServerMetrics struct {
	service  string
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	actionsTotal     *prometheus.CounterVec
	actionDuration   *prometheus.HistogramVec
	upstreamTotal    *prometheus.CounterVec
	upstreamDuration *prometheus.HistogramVec
	tokenCacheTotal  *prometheus.CounterVec
	lineItems        prometheus.Histogram
	pdfPages         prometheus.Histogram
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()
	constLabels := prometheus.Labels{"service": service}

	m := &HTTPServerMetrics{
		service:  service,
		registry: registry,
		requestTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "requests_total",
			Help:        "Total HTTP requests processed.",
			ConstLabels: constLabels,
		}, []string{"method", "path", "status"}),
		requestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "request_duration_seconds",
			Help:        "HTTP request duration in seconds.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: constLabels,
		}, []string{"method", "path"}),
		requestInFlight: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace:   namespace,
			Subsystem:   "http",
			Name:        "in_flight_requests",
			Help:        "Number of in-flight HTTP requests.",
			ConstLabels: constLabels,
		}),
		actionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "action",
			Name:        "total",
			Help:        "Upload actions by terminal state.",
			ConstLabels: constLabels,
		}, []string{"state"}),
		actionDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "action",
			Name:        "duration_seconds",
			Help:        "Upload action duration by terminal state.",
			Buckets:     []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
			ConstLabels: constLabels,
		}, []string{"state"}),
		upstreamTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "upstream",
			Name:        "calls_total",
			Help:        "Upstream call attempts by operation and outcome.",
			ConstLabels: constLabels,
		}, []string{"operation", "outcome"}),
		upstreamDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "upstream",
			Name:        "call_duration_seconds",
			Help:        "Upstream call attempt duration by operation.",
			Buckets:     []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			ConstLabels: constLabels,
		}, []string{"operation"}),
		tokenCacheTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "auth",
			Name:        "token_cache_total",
			Help:        "Session token lookups by result.",
			ConstLabels: constLabels,
		}, []string{"result"}),
		lineItems: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "document",
			Name:        "line_items",
			Help:        "Line items per processed document.",
			Buckets:     []float64{0, 1, 2, 5, 10, 20, 50, 100, 250},
			ConstLabels: constLabels,
		}),
		pdfPages: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   namespace,
			Subsystem:   "document",
			Name:        "pdf_pages",
			Help:        "Pages per uploaded PDF.",
			Buckets:     []float64{1, 2, 3, 5, 10, 20, 50},
			ConstLabels: constLabels,
		}),
	}

	registry.MustRegister(
		m.requestTotal,
		m.requestDuration,
		m.requestInFlight,
		m.actionsTotal,
		m.actionDuration,
		m.upstreamTotal,
		m.upstreamDuration,
		m.tokenCacheTotal,
		m.lineItems,
		m.pdfPages,
	)
	return m
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Registry() *prometheus.Registry {
	return m.registry
}

func (m *HTTPServerMetrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		path := normalizePath(r.URL.Path)
		m.requestTotal.WithLabelValues(r.Method, path, strconv.Itoa(recorder.statusCode)).Inc()
		m.requestDuration.WithLabelValues(r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasPrefix(path, "/v1/history/"):
		return "/v1/history/{id}"
	case strings.HasPrefix(path, "/static/"):
		return "/static/*"
	default:
		return path
	}
}

// RecordAction records a finished upload action.
func (m *HTTPServerMetrics) RecordAction(outcome *domain.ActionOutcome) {
	if outcome == nil {
		return
	}
	state := string(outcome.State)
	m.actionsTotal.WithLabelValues(state).Inc()
	m.actionDuration.WithLabelValues(state).Observe(outcome.Duration().Seconds())

	switch outcome.State {
	case domain.StateConfigError, domain.StateRejected:
	default:
		result := "miss"
		if outcome.TokenReused {
			result = "hit"
		}
		m.tokenCacheTotal.WithLabelValues(result).Inc()
	}
	if outcome.PDF.Pages > 0 {
		m.pdfPages.Observe(float64(outcome.PDF.Pages))
	}
	if outcome.Result != nil {
		m.lineItems.Observe(float64(len(outcome.Result.LineItems)))
	}
}

// ObserveUpstream matches the resilience executor's attempt observer.
func (m *HTTPServerMetrics) ObserveUpstream(operation string, _ int, elapsed time.Duration, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.upstreamTotal.WithLabelValues(operation, outcome).Inc()
	m.upstreamDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

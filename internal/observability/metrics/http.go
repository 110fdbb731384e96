package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// APIMetrics is the per-process registry for the api service: generic HTTP
// request metrics plus the answering-pipeline metrics.
type APIMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	answersTotal      *prometheus.CounterVec
	answerSources     *prometheus.HistogramVec
	answerDuration    *prometheus.HistogramVec
	correctionsTotal  *prometheus.CounterVec
	webDegradedTotal  *prometheus.CounterVec
	reportsTotal      *prometheus.CounterVec
	evidenceByOrigin  *prometheus.CounterVec
	consistencyErrors *prometheus.CounterVec
}

func NewAPIMetrics(service string) *APIMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cbc",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cbc",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "cbc",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	answersTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cbc",
			Subsystem: "pipeline",
			Name:      "answers_total",
			Help:      "Total completed answers by confidence tag.",
		},
		[]string{"service", "confidence"},
	)
	answerSources := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cbc",
			Subsystem: "pipeline",
			Name:      "answer_sources",
			Help:      "Distribution of evidence items cited per answer.",
			Buckets:   []float64{0, 1, 2, 3, 5, 8, 13},
		},
		[]string{"service"},
	)
	answerDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "cbc",
			Subsystem: "pipeline",
			Name:      "answer_duration_seconds",
			Help:      "End-to-end answering pipeline duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	correctionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cbc",
			Subsystem: "pipeline",
			Name:      "corrections_total",
			Help:      "Total answers that took the rewrite-and-web-search path.",
		},
		[]string{"service"},
	)
	webDegradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cbc",
			Subsystem: "pipeline",
			Name:      "web_search_degraded_total",
			Help:      "Total corrections where web search failed and the answer was forced.",
		},
		[]string{"service"},
	)
	reportsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cbc",
			Subsystem: "reports",
			Name:      "uploads_total",
			Help:      "Total report uploads by outcome.",
		},
		[]string{"service", "outcome"},
	)
	evidenceByOrigin := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cbc",
			Subsystem: "pipeline",
			Name:      "evidence_total",
			Help:      "Total evidence items cited in answers by origin.",
		},
		[]string{"service", "origin"},
	)
	consistencyErrors := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "cbc",
			Subsystem: "index",
			Name:      "consistency_errors_total",
			Help:      "Total index references that failed to resolve to a stored document.",
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		answersTotal,
		answerSources,
		answerDuration,
		correctionsTotal,
		webDegradedTotal,
		reportsTotal,
		evidenceByOrigin,
		consistencyErrors,
	)

	return &APIMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		answersTotal:      answersTotal,
		answerSources:     answerSources,
		answerDuration:    answerDuration,
		correctionsTotal:  correctionsTotal,
		webDegradedTotal:  webDegradedTotal,
		reportsTotal:      reportsTotal,
		evidenceByOrigin:  evidenceByOrigin,
		consistencyErrors: consistencyErrors,
	}
}

func (m *APIMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *APIMetrics) Middleware(service string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		path := normalizePath(r.URL.Path)
		recorder := &statusRecorder{
			ResponseWriter: w,
			statusCode:     http.StatusOK,
		}

		m.requestInFlight.Inc()
		defer m.requestInFlight.Dec()

		next.ServeHTTP(recorder, r)

		m.requestTotal.WithLabelValues(
			service,
			r.Method,
			path,
			strconv.Itoa(recorder.statusCode),
		).Inc()
		m.requestDuration.WithLabelValues(service, r.Method, path).Observe(time.Since(start).Seconds())
	})
}

func normalizePath(path string) string {
	switch {
	case strings.HasSuffix(path, "/answer") && strings.HasPrefix(path, "/v1/reports/"):
		return "/v1/reports/{report_id}/answer"
	case strings.HasPrefix(path, "/v1/reports/"):
		return "/v1/reports/{report_id}"
	case strings.HasPrefix(path, "/v1/knowledge/"):
		return "/v1/knowledge/{document_id}"
	default:
		return path
	}
}

// RecordAnswer records one completed pipeline run.
func (m *APIMetrics) RecordAnswer(service, confidence string, localSources, webSources, attempts int, duration time.Duration) {
	if confidence == "" {
		confidence = "unknown"
	}
	m.answersTotal.WithLabelValues(service, confidence).Inc()
	m.answerSources.WithLabelValues(service).Observe(float64(localSources + webSources))
	m.answerDuration.WithLabelValues(service).Observe(duration.Seconds())

	if localSources > 0 {
		m.evidenceByOrigin.WithLabelValues(service, "local").Add(float64(localSources))
	}
	if webSources > 0 {
		m.evidenceByOrigin.WithLabelValues(service, "web").Add(float64(webSources))
	}
	if attempts > 0 {
		m.correctionsTotal.WithLabelValues(service).Add(float64(attempts))
	}
}

func (m *APIMetrics) RecordWebSearchDegraded(service string) {
	m.webDegradedTotal.WithLabelValues(service).Inc()
}

func (m *APIMetrics) RecordReportUpload(service, outcome string) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.reportsTotal.WithLabelValues(service, outcome).Inc()
}

func (m *APIMetrics) RecordConsistencyError(service string) {
	m.consistencyErrors.WithLabelValues(service).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
}

func (w *statusRecorder) WriteHeader(statusCode int) {
	w.statusCode = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusRecorder) Flush() {
	flusher, ok := w.ResponseWriter.(http.Flusher)
	if ok {
		flusher.Flush()
	}
}

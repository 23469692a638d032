package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type HTTPServerMetrics struct {
	registry *prometheus.Registry

	requestTotal    *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	requestInFlight prometheus.Gauge

	pipelineRunsTotal    *prometheus.CounterVec
	pipelineDuration     *prometheus.HistogramVec
	retrievedDocs        *prometheus.HistogramVec
	retrievalHitTotal    *prometheus.CounterVec
	noContextTotal       *prometheus.CounterVec
	rerankDegradedTotal  *prometheus.CounterVec
	fallbackAnswersTotal *prometheus.CounterVec
	llmTokensTotal       *prometheus.CounterVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arag",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "arag",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "arag",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	pipelineRunsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arag",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Total pipeline runs by outcome.",
		},
		[]string{"service", "outcome"},
	)
	pipelineDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "arag",
			Subsystem: "pipeline",
			Name:      "duration_seconds",
			Help:      "Pipeline run duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service"},
	)
	retrievedDocs := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "arag",
			Subsystem: "retrieval",
			Name:      "documents",
			Help:      "Distribution of retrieved document counts per run.",
			Buckets:   []float64{0, 1, 2, 3, 5, 10, 20},
		},
		[]string{"service"},
	)
	retrievalHitTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arag",
			Subsystem: "retrieval",
			Name:      "hits_total",
			Help:      "Total runs that retrieved at least one document.",
		},
		[]string{"service"},
	)
	noContextTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arag",
			Subsystem: "retrieval",
			Name:      "no_context_total",
			Help:      "Total runs that found no relevant documents.",
		},
		[]string{"service"},
	)
	rerankDegradedTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arag",
			Subsystem: "rerank",
			Name:      "degraded_total",
			Help:      "Total runs that fell back to fused ordering after a rerank failure.",
		},
		[]string{"service"},
	)
	fallbackAnswersTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arag",
			Subsystem: "generation",
			Name:      "fallback_answers_total",
			Help:      "Total answers produced by the deterministic fallback.",
		},
		[]string{"service"},
	)
	llmTokensTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arag",
			Subsystem: "llm",
			Name:      "tokens_total",
			Help:      "Token usage by direction.",
		},
		[]string{"service", "direction", "model"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		pipelineRunsTotal,
		pipelineDuration,
		retrievedDocs,
		retrievalHitTotal,
		noContextTotal,
		rerankDegradedTotal,
		fallbackAnswersTotal,
		llmTokensTotal,
	)

	return &HTTPServerMetrics{
		registry:             registry,
		requestTotal:         requestTotal,
		requestDuration:      requestDuration,
		requestInFlight:      requestInFlight,
		pipelineRunsTotal:    pipelineRunsTotal,
		pipelineDuration:     pipelineDuration,
		retrievedDocs:        retrievedDocs,
		retrievalHitTotal:    retrievalHitTotal,
		noContextTotal:       noContextTotal,
		rerankDegradedTotal:  rerankDegradedTotal,
		fallbackAnswersTotal: fallbackAnswersTotal,
		llmTokensTotal:       llmTokensTotal,
	}
}

func (m *HTTPServerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *HTTPServerMetrics) Middleware(service string, next http.Handler) http.Handler {
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
	case strings.HasPrefix(path, "/v1/conversations/"):
		return "/v1/conversations/{conversation_id}"
	default:
		return path
	}
}

// RecordPipelineRun observes one completed run. outcome is "answered",
// "no_context" or "fault".
func (m *HTTPServerMetrics) RecordPipelineRun(service, outcome string, retrievedDocs int, duration time.Duration) {
	if outcome == "" {
		outcome = "unknown"
	}
	m.pipelineRunsTotal.WithLabelValues(service, outcome).Inc()
	m.pipelineDuration.WithLabelValues(service).Observe(duration.Seconds())
	m.retrievedDocs.WithLabelValues(service).Observe(float64(retrievedDocs))

	if retrievedDocs > 0 {
		m.retrievalHitTotal.WithLabelValues(service).Inc()
		return
	}
	m.noContextTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordRerankDegradation(service string) {
	m.rerankDegradedTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordFallbackAnswer(service string) {
	m.fallbackAnswersTotal.WithLabelValues(service).Inc()
}

func (m *HTTPServerMetrics) RecordTokenUsage(service, model string, promptTokens, completionTokens int) {
	if model == "" {
		model = "unknown"
	}
	if promptTokens > 0 {
		m.llmTokensTotal.WithLabelValues(service, "in", model).Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.llmTokensTotal.WithLabelValues(service, "out", model).Add(float64(completionTokens))
	}
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

func (w *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not implement http.Hijacker")
	}
	return hijacker.Hijack()
}

func (w *statusRecorder) Push(target string, opts *http.PushOptions) error {
	pusher, ok := w.ResponseWriter.(http.Pusher)
	if !ok {
		return http.ErrNotSupported
	}
	return pusher.Push(target, opts)
}

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

	analysisTotal     *prometheus.CounterVec
	analysisDuration  *prometheus.HistogramVec
	chatTurnsTotal    *prometheus.CounterVec
	chatFallbackTotal *prometheus.CounterVec
	speechTotal       *prometheus.CounterVec
	uploadBytes       *prometheus.HistogramVec
}

func NewHTTPServerMetrics(service string) *HTTPServerMetrics {
	registry := prometheus.NewRegistry()

	requestTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "saral",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total HTTP requests processed.",
		},
		[]string{"service", "method", "path", "status"},
	)
	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "saral",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request duration in seconds.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "method", "path"},
	)
	requestInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "saral",
			Subsystem: "http",
			Name:      "in_flight_requests",
			Help:      "Number of in-flight HTTP requests.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	analysisTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "saral",
			Subsystem: "analysis",
			Name:      "documents_total",
			Help:      "Total analyzed documents by category and status.",
		},
		[]string{"service", "category", "status"},
	)
	analysisDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "saral",
			Subsystem: "analysis",
			Name:      "duration_seconds",
			Help:      "End-to-end analysis duration in seconds.",
			Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"service", "category"},
	)
	chatTurnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "saral",
			Subsystem: "chat",
			Name:      "turns_total",
			Help:      "Total completed chat turns.",
		},
		[]string{"service", "language"},
	)
	chatFallbackTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "saral",
			Subsystem: "chat",
			Name:      "fallback_replies_total",
			Help:      "Total chat turns answered with the fallback reply.",
		},
		[]string{"service"},
	)
	speechTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "saral",
			Subsystem: "speech",
			Name:      "requests_total",
			Help:      "Total speech requests by direction and status.",
		},
		[]string{"service", "direction", "status"},
	)
	uploadBytes := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "saral",
			Subsystem: "analysis",
			Name:      "upload_bytes",
			Help:      "Distribution of accepted upload sizes in bytes.",
			Buckets:   prometheus.ExponentialBuckets(1024, 4, 8),
		},
		[]string{"service"},
	)

	registry.MustRegister(
		requestTotal,
		requestDuration,
		requestInFlight,
		analysisTotal,
		analysisDuration,
		chatTurnsTotal,
		chatFallbackTotal,
		speechTotal,
		uploadBytes,
	)

	return &HTTPServerMetrics{
		registry:          registry,
		requestTotal:      requestTotal,
		requestDuration:   requestDuration,
		requestInFlight:   requestInFlight,
		analysisTotal:     analysisTotal,
		analysisDuration:  analysisDuration,
		chatTurnsTotal:    chatTurnsTotal,
		chatFallbackTotal: chatFallbackTotal,
		speechTotal:       speechTotal,
		uploadBytes:       uploadBytes,
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

// normalizePath keeps document ids out of the path label.
func normalizePath(path string) string {
	switch {
	case strings.HasSuffix(path, "/conversation"):
		return "/v1/documents/{document_id}/conversation"
	case strings.HasSuffix(path, "/chat/voice"):
		return "/v1/documents/{document_id}/chat/voice"
	case strings.HasSuffix(path, "/chat"):
		return "/v1/documents/{document_id}/chat"
	case strings.HasPrefix(path, "/v1/documents/") && path != "/v1/documents/async" && path != "/v1/documents/export":
		return "/v1/documents/{document_id}"
	default:
		return path
	}
}

func (m *HTTPServerMetrics) RecordAnalysis(service, category, status string, duration time.Duration) {
	if category == "" {
		category = "unknown"
	}
	m.analysisTotal.WithLabelValues(service, category, status).Inc()
	if status == "completed" {
		m.analysisDuration.WithLabelValues(service, category).Observe(duration.Seconds())
	}
}

func (m *HTTPServerMetrics) RecordChatTurn(service, language string, usedFallback bool) {
	if language == "" {
		language = "unknown"
	}
	m.chatTurnsTotal.WithLabelValues(service, language).Inc()
	if usedFallback {
		m.chatFallbackTotal.WithLabelValues(service).Inc()
	}
}

func (m *HTTPServerMetrics) RecordSpeech(service, direction string, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.speechTotal.WithLabelValues(service, direction, status).Inc()
}

func (m *HTTPServerMetrics) RecordUploadSize(service string, size int64) {
	if size <= 0 {
		return
	}
	m.uploadBytes.WithLabelValues(service).Observe(float64(size))
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

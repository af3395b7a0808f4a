// Package metrics exposes Prometheus metrics for the map sessions and the
// HTTP surface. All methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/joeblew999/plat-termit/internal/reconcile"
	"github.com/joeblew999/plat-termit/internal/viewstate"
)

const namespace = "termit"

// Metrics holds the registry and every collector registered on it.
type Metrics struct {
	registry            *prometheus.Registry
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	viewportEvents      *prometheus.CounterVec
	reconcileOps        *prometheus.CounterVec
	modeTransitions     *prometheus.CounterVec
	selections          *prometheus.CounterVec
	sessions            prometheus.Gauge
	sessionsExpired     prometheus.Counter
}

// New creates a fresh registry with every metric registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Count of HTTP requests served",
		}, []string{"method", "path", "status"}),
		httpRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Duration of HTTP requests, excluding SSE streams",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		viewportEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "viewport_events_total",
			Help:      "Viewport reports from map widgets by outcome",
		}, []string{"outcome"}),
		reconcileOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_operations_total",
			Help:      "Overlay and polygon handles added or removed",
		}, []string{"kind", "op"}),
		modeTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "mode_transitions_total",
			Help:      "View mode changes",
		}, []string{"from", "to"}),
		selections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "selections_total",
			Help:      "Selection commands by outcome",
		}, []string{"outcome"}),
		sessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "map_sessions",
			Help:      "Live map sessions",
		}),
		sessionsExpired: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "map_sessions_expired_total",
			Help:      "Map sessions closed by the idle sweep",
		}),
	}

	registry.MustRegister(
		m.httpRequests,
		m.httpRequestDuration,
		m.viewportEvents,
		m.reconcileOps,
		m.modeTransitions,
		m.selections,
		m.sessions,
		m.sessionsExpired,
	)
	return m
}

// ObserveHTTPRequest records a single request/response cycle.
func (m *Metrics) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labels := prometheus.Labels{
		"method": method,
		"path":   path,
		"status": strconv.Itoa(status),
	}
	m.httpRequests.With(labels).Inc()
	m.httpRequestDuration.With(labels).Observe(duration.Seconds())
}

// ViewportEvent counts a viewport report by outcome.
func (m *Metrics) ViewportEvent(outcome string) {
	if m == nil {
		return
	}
	m.viewportEvents.WithLabelValues(outcome).Inc()
}

// Reconciled counts reconcile operations.
func (m *Metrics) Reconciled(kind reconcile.Kind, op reconcile.Op, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.reconcileOps.WithLabelValues(string(kind), string(op)).Add(float64(n))
}

// ModeTransition counts a view mode change.
func (m *Metrics) ModeTransition(from, to viewstate.Mode) {
	if m == nil {
		return
	}
	m.modeTransitions.WithLabelValues(string(from), string(to)).Inc()
}

// Selection counts a selection command by outcome.
func (m *Metrics) Selection(outcome string) {
	if m == nil {
		return
	}
	m.selections.WithLabelValues(outcome).Inc()
}

// SessionOpened increments the live session gauge.
func (m *Metrics) SessionOpened() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

// SessionClosed decrements the live session gauge.
func (m *Metrics) SessionClosed(expired bool) {
	if m == nil {
		return
	}
	m.sessions.Dec()
	if expired {
		m.sessionsExpired.Inc()
	}
}

// Handler exposes the registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware records every request that passes through next. Routes are
// labelled by pattern when the mux matched one, so IDs do not explode the
// label set.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sw, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		m.ObserveHTTPRequest(r.Method, path, sw.status, time.Since(start))
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streams working through the wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Unwrap lets http.ResponseController reach the underlying writer.
func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

// Package metrics exposes Prometheus collectors for the HTTP surface.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	ResultSuccess = "success"
	ResultFailure = "failure"
)

// Collector is safe to use as a nil pointer; every Record call is then a no-op.
type Collector struct {
	requests   *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	authEvents *prometheus.CounterVec
	noticeOps  *prometheus.CounterVec
	consumed   *prometheus.CounterVec
}

func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "noticeboard_http_requests_total",
			Help: "HTTP requests by method, route and status code.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "noticeboard_http_request_duration_seconds",
			Help:    "HTTP request latency in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
		authEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "noticeboard_auth_events_total",
			Help: "Sign-up and login attempts by outcome.",
		}, []string{"event", "result"}),
		noticeOps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "noticeboard_notice_operations_total",
			Help: "Notice store operations by outcome.",
		}, []string{"operation", "result"}),
		consumed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "noticeboard_notice_events_consumed_total",
			Help: "Notice change events read back by the audit consumer.",
		}, []string{"type"}),
	}

	reg.MustRegister(c.requests, c.duration, c.authEvents, c.noticeOps, c.consumed)
	return c
}

// Middleware records request count and latency labelled by the chi route pattern.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c == nil {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		route := RoutePattern(r)

		c.requests.WithLabelValues(r.Method, route, strconv.Itoa(status)).Inc()
		c.duration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}

func (c *Collector) RecordAuth(event, result string) {
	if c == nil {
		return
	}
	c.authEvents.WithLabelValues(event, result).Inc()
}

func (c *Collector) RecordNoticeOp(operation, result string) {
	if c == nil {
		return
	}
	c.noticeOps.WithLabelValues(operation, result).Inc()
}

func (c *Collector) RecordEventConsumed(eventType string) {
	if c == nil {
		return
	}
	c.consumed.WithLabelValues(eventType).Inc()
}

// RoutePattern returns the matched chi pattern so ids never become label values.
func RoutePattern(r *http.Request) string {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return "unmatched"
	}
	if pattern := rctx.RoutePattern(); pattern != "" {
		return pattern
	}
	return "unmatched"
}

// Handler serves the Prometheus exposition format.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

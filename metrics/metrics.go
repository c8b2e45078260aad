// Package metrics exposes Prometheus instrumentation for the feed service.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Collector struct {
	registry *prometheus.Registry

	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	activeConnections   prometheus.Gauge

	feedRequests *prometheus.CounterVec
	rankDuration *prometheus.HistogramVec
	feedItems    *prometheus.HistogramVec
	cacheEvents  *prometheus.CounterVec
	pushes       *prometheus.CounterVec
}

// New registers every collector on a private registry named after service.
func New(service string) *Collector {
	ns := strings.ReplaceAll(service, "-", "_")
	c := &Collector{registry: prometheus.NewRegistry()}

	c.httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: ns + "_http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "endpoint", "status"})

	c.httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    ns + "_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint"})

	c.activeConnections = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: ns + "_active_connections",
		Help: "Number of in-flight HTTP requests",
	})

	c.feedRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: ns + "_feed_requests_total",
		Help: "Feed computations by view and outcome",
	}, []string{"view", "outcome"})

	c.rankDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    ns + "_feed_rank_duration_seconds",
		Help:    "Time spent filtering and ordering a snapshot",
		Buckets: []float64{.0005, .001, .0025, .005, .01, .025, .05, .1, .25},
	}, []string{"view"})

	c.feedItems = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    ns + "_feed_items",
		Help:    "Posts returned per feed request",
		Buckets: prometheus.ExponentialBuckets(1, 2, 10),
	}, []string{"view"})

	c.cacheEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: ns + "_snapshot_cache_events_total",
		Help: "Snapshot cache hits, misses and errors",
	}, []string{"key", "event"})

	c.pushes = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: ns + "_push_notifications_total",
		Help: "Push notification fan-outs by kind and outcome",
	}, []string{"kind", "outcome"})

	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.httpRequestsTotal, c.httpRequestDuration, c.activeConnections,
		c.feedRequests, c.rankDuration, c.feedItems, c.cacheEvents, c.pushes,
	)
	return c
}

func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveFeed records one feed computation. outcome is "ok" or an error class.
func (c *Collector) ObserveFeed(view, outcome string, items int, took time.Duration) {
	c.feedRequests.WithLabelValues(view, outcome).Inc()
	if outcome != "ok" {
		return
	}
	c.rankDuration.WithLabelValues(view).Observe(took.Seconds())
	c.feedItems.WithLabelValues(view).Observe(float64(items))
}

func (c *Collector) CacheHit(key string)   { c.cacheEvents.WithLabelValues(key, "hit").Inc() }
func (c *Collector) CacheMiss(key string)  { c.cacheEvents.WithLabelValues(key, "miss").Inc() }
func (c *Collector) CacheError(key string) { c.cacheEvents.WithLabelValues(key, "error").Inc() }

func (c *Collector) Push(kind string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.pushes.WithLabelValues(kind, outcome).Inc()
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Middleware records request counts and latency keyed by the mux route template.
func (c *Collector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		c.activeConnections.Inc()
		defer c.activeConnections.Dec()

		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		endpoint := "unknown"
		if route := mux.CurrentRoute(r); route != nil {
			if tpl, err := route.GetPathTemplate(); err == nil {
				endpoint = tpl
			}
		}
		c.httpRequestsTotal.WithLabelValues(r.Method, endpoint, strconv.Itoa(rec.status)).Inc()
		c.httpRequestDuration.WithLabelValues(r.Method, endpoint).Observe(time.Since(start).Seconds())
	})
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Package metrics collects and exposes Prometheus metrics for the gateway and
// the authentication service.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "authgate"

// RPC sides.
const (
	SideClient = "client"
	SideServer = "server"
)

// Recorder is what middleware and interceptors depend on.
type Recorder interface {
	RecordHTTPRequest(route, method string, statusCode int, duration time.Duration)
	RecordRPC(side, pattern, kind string, duration time.Duration)
	RecordRateLimited(route string)
}

// Collector is the Prometheus-backed Recorder. A nil *Collector records
// nothing.
type Collector struct {
	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
	rpcCalls     *prometheus.CounterVec
	rpcLatency   *prometheus.HistogramVec
	rateLimited  *prometheus.CounterVec
}

var _ Recorder = (*Collector)(nil)

// NewCollector registers the metrics on reg.
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests handled by the gateway.",
		}, []string{"route", "method", "status_code"}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "Gateway HTTP request latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
		rpcCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_calls_total",
			Help:      "Internal RPC calls by side, message pattern and outcome kind.",
		}, []string{"side", "pattern", "kind"}),
		rpcLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "rpc_call_duration_seconds",
			Help:      "Internal RPC call latency in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"side", "pattern"}),
		rateLimited: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected by the rate limiter.",
		}, []string{"route"}),
	}

	reg.MustRegister(
		c.httpRequests,
		c.httpLatency,
		c.rpcCalls,
		c.rpcLatency,
		c.rateLimited,
	)

	return c
}

func (c *Collector) RecordHTTPRequest(route, method string, statusCode int, duration time.Duration) {
	if c == nil {
		return
	}
	c.httpRequests.WithLabelValues(route, method, strconv.Itoa(statusCode)).Inc()
	c.httpLatency.WithLabelValues(route, method).Observe(duration.Seconds())
}

// RecordRPC records one call. kind is "ok" for successful calls.
func (c *Collector) RecordRPC(side, pattern, kind string, duration time.Duration) {
	if c == nil {
		return
	}
	c.rpcCalls.WithLabelValues(side, pattern, kind).Inc()
	c.rpcLatency.WithLabelValues(side, pattern).Observe(duration.Seconds())
}

// RPCCalls exposes a single call counter, mainly for tests.
func (c *Collector) RPCCalls(side, pattern, kind string) prometheus.Counter {
	return c.rpcCalls.WithLabelValues(side, pattern, kind)
}

func (c *Collector) RecordRateLimited(route string) {
	if c == nil {
		return
	}
	c.rateLimited.WithLabelValues(route).Inc()
}

// RateLimitedCounter exposes a single rejection counter, mainly for tests.
func (c *Collector) RateLimitedCounter(route string) prometheus.Counter {
	return c.rateLimited.WithLabelValues(route)
}

// HTTPRequests exposes a single request counter, mainly for tests.
func (c *Collector) HTTPRequests(route, method string, statusCode int) prometheus.Counter {
	return c.httpRequests.WithLabelValues(route, method, strconv.Itoa(statusCode))
}

// Handler returns the Prometheus scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// SetupMetricsRoute serves Handler on /metrics.
func SetupMetricsRoute(gatherer prometheus.Gatherer) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler(gatherer))
	return mux
}

// Package metrics exposes the service's Prometheus collectors.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const Namespace = "finboard"

// BoardStats is the read side of the per-user board registry.
type BoardStats interface {
	Size() int
	Applied() uint64
	Discarded() uint64
}

// Collector records ledger, cache, event and HTTP signals.
type Collector struct {
	registry *prometheus.Registry

	upstreamCalls   *prometheus.CounterVec
	upstreamLatency *prometheus.HistogramVec
	breakerState    *prometheus.GaugeVec
	breakerOpens    *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec

	created   *prometheus.CounterVec
	published *prometheus.CounterVec

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec
}

// New builds a Collector on its own registry, including the Go runtime and
// process collectors.
func New() *Collector {
	c := &Collector{
		registry: prometheus.NewRegistry(),
		upstreamCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "upstream_calls_total",
				Help:      "Ledger calls per operation and outcome",
			},
			[]string{"operation", "status"},
		),
		upstreamLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "upstream_duration_seconds",
				Help:      "Ledger call latency",
				Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"operation"},
		),
		breakerState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: Namespace,
				Name:      "circuit_state",
				Help:      "Circuit breaker state (0=closed, 1=open, 2=half-open)",
			},
			[]string{"name"},
		),
		breakerOpens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "circuit_opens_total",
				Help:      "Times the circuit breaker opened",
			},
			[]string{"name"},
		),
		cacheHits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "cache_hits_total",
				Help:      "Transaction list cache hits per layer",
			},
			[]string{"layer"},
		),
		cacheMisses: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "cache_misses_total",
				Help:      "Transaction list cache misses per layer",
			},
			[]string{"layer"},
		),
		created: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "transactions_created_total",
				Help:      "Transactions stored per type",
			},
			[]string{"type"},
		),
		published: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "events_published_total",
				Help:      "Transaction created events per outcome",
			},
			[]string{"status"},
		),
		httpRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: Namespace,
				Name:      "http_requests_total",
				Help:      "HTTP requests per route, method and status code",
			},
			[]string{"route", "method", "code"},
		),
		httpLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: Namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request latency per route",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"route"},
		),
	}
	c.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		c.upstreamCalls,
		c.upstreamLatency,
		c.breakerState,
		c.breakerOpens,
		c.cacheHits,
		c.cacheMisses,
		c.created,
		c.published,
		c.httpRequests,
		c.httpLatency,
	)
	return c
}

// Registry returns the registry the collectors live on.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }

// Handler serves the registry in the Prometheus exposition format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{Registry: c.registry})
}

// WatchBoards exports board registry figures, read at scrape time.
func (c *Collector) WatchBoards(b BoardStats) {
	c.registry.MustRegister(
		prometheus.NewGaugeFunc(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "boards",
			Help:      "Per-user boards held in memory",
		}, func() float64 { return float64(b.Size()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "board_fetches_applied_total",
			Help:      "Fetch results applied to a board",
		}, func() float64 { return float64(b.Applied()) }),
		prometheus.NewCounterFunc(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "board_fetches_discarded_total",
			Help:      "Fetch results discarded because a newer generation existed",
		}, func() float64 { return float64(b.Discarded()) }),
	)
}

func (c *Collector) UpstreamCall(op string, took time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	c.upstreamCalls.WithLabelValues(op, status).Inc()
	c.upstreamLatency.WithLabelValues(op).Observe(took.Seconds())
}

func (c *Collector) BreakerState(name, state string) {
	var v float64
	switch state {
	case "open":
		v = 1
		c.breakerOpens.WithLabelValues(name).Inc()
	case "half-open":
		v = 2
	}
	c.breakerState.WithLabelValues(name).Set(v)
}

func (c *Collector) CacheLookup(layer string, hit bool) {
	if hit {
		c.cacheHits.WithLabelValues(layer).Inc()
		return
	}
	c.cacheMisses.WithLabelValues(layer).Inc()
}

func (c *Collector) TransactionCreated(txType string) {
	c.created.WithLabelValues(txType).Inc()
}

func (c *Collector) EventPublished(ok bool) {
	status := "success"
	if !ok {
		status = "error"
	}
	c.published.WithLabelValues(status).Inc()
}

// ObserveRequest records one served HTTP request.
func (c *Collector) ObserveRequest(route, method string, code int, took time.Duration) {
	c.httpRequests.WithLabelValues(route, method, strconv.Itoa(code)).Inc()
	c.httpLatency.WithLabelValues(route).Observe(took.Seconds())
}

package monitoring

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PromCollectors exposes service metrics in Prometheus format. Each instance
// owns its registry so several can coexist in one process.
type PromCollectors struct {
	registry         *prometheus.Registry
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
	machineScore     *prometheus.HistogramVec
	factoryScore     prometheus.Histogram
	historyAppends   *prometheus.CounterVec
	rateLimitBlocks  prometheus.Counter
	cacheLookups     *prometheus.CounterVec
	circuitBreakerSt *prometheus.GaugeVec
}

// NewPromCollectors creates and registers every collector
func NewPromCollectors() *PromCollectors {
	scoreBuckets := prometheus.LinearBuckets(0, 10, 11)

	p := &PromCollectors{
		registry: prometheus.NewRegistry(),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "machine_health_http_requests_total",
			Help: "Total HTTP requests by route, method and status.",
		}, []string{"route", "method", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "machine_health_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
		machineScore: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "machine_health_machine_score",
			Help:    "Distribution of machine scores by machine type.",
			Buckets: scoreBuckets,
		}, []string{"machine_type"}),
		factoryScore: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "machine_health_factory_score",
			Help:    "Distribution of factory scores.",
			Buckets: scoreBuckets,
		}),
		historyAppends: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "machine_health_history_appends_total",
			Help: "Snapshots appended to the history store by outcome.",
		}, []string{"outcome"}),
		rateLimitBlocks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "machine_health_rate_limit_blocks_total",
			Help: "Requests rejected by the rate limiter.",
		}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "machine_health_cache_lookups_total",
			Help: "Score cache lookups by result.",
		}, []string{"result"}),
		circuitBreakerSt: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "machine_health_circuit_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 open, 2 half open).",
		}, []string{"target"}),
	}

	p.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		p.httpRequests,
		p.httpDuration,
		p.machineScore,
		p.factoryScore,
		p.historyAppends,
		p.rateLimitBlocks,
		p.cacheLookups,
		p.circuitBreakerSt,
	)

	return p
}

// ObserveRequest records one HTTP request
func (p *PromCollectors) ObserveRequest(route, method string, status int, duration time.Duration) {
	if p == nil {
		return
	}
	if route == "" {
		route = "unmatched"
	}
	p.httpRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	p.httpDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// ObserveMachineScore records an unformatted machine score
func (p *PromCollectors) ObserveMachineScore(machineType string, score float64) {
	if p == nil {
		return
	}
	p.machineScore.WithLabelValues(machineType).Observe(score)
}

// ObserveFactoryScore records an unformatted factory score
func (p *PromCollectors) ObserveFactoryScore(score float64) {
	if p == nil {
		return
	}
	p.factoryScore.Observe(score)
}

// HistoryAppend records the outcome of a snapshot append
func (p *PromCollectors) HistoryAppend(success bool) {
	if p == nil {
		return
	}
	outcome := "ok"
	if !success {
		outcome = "error"
	}
	p.historyAppends.WithLabelValues(outcome).Inc()
}

// RateLimitBlock counts a rejected request
func (p *PromCollectors) RateLimitBlock() {
	if p == nil {
		return
	}
	p.rateLimitBlocks.Inc()
}

// CacheLookup counts a score cache lookup
func (p *PromCollectors) CacheLookup(hit bool) {
	if p == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	p.cacheLookups.WithLabelValues(result).Inc()
}

// SetCircuitBreakerState publishes a breaker state
func (p *PromCollectors) SetCircuitBreakerState(target string, state float64) {
	if p == nil {
		return
	}
	p.circuitBreakerSt.WithLabelValues(target).Set(state)
}

// Registry returns the underlying registry
func (p *PromCollectors) Registry() *prometheus.Registry {
	return p.registry
}

// Handler serves the registry in the Prometheus text format
func (p *PromCollectors) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}

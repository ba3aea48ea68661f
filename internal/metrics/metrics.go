// Package metrics exposes Prometheus instruments for the bridge, the
// security channel and the rate limiter.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every metric name.
const Namespace = "auth_relay"

// Bridge outcomes recorded on RequestsTotal.
const (
	OutcomePassthrough = "passthrough"
	OutcomeDispatched  = "dispatched"
	OutcomeNotFound    = "not_found"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

// Metrics owns a registry and the instruments registered on it.
type Metrics struct {
	registry         *prometheus.Registry
	requestsTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec
	securityEvents   *prometheus.CounterVec
	limiterEntries   prometheus.GaugeFunc
	cacheTracked     bool
}

// CacheCounters reports session cache lookups.
type CacheCounters interface {
	Hits() uint64
	Misses() uint64
}

// StatsFunc reports the limiter's active entry count.
type StatsFunc func() int

// New builds a fresh registry with Go and process collectors attached.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		requestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: "bridge",
			Name:      "requests_total",
			Help:      "Requests seen by the auth bridge, by outcome",
		}, []string{"outcome"}),

		dispatchDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: "engine",
			Name:      "dispatch_duration_seconds",
			Help:      "Time spent in the authentication engine",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "status"}),

		securityEvents: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "security_events_total",
			Help:      "Security events emitted by validation and rate limiting",
		}, []string{"event"}),
	}
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// ObserveRequest counts one bridge outcome.
func (m *Metrics) ObserveRequest(outcome string) {
	m.requestsTotal.WithLabelValues(outcome).Inc()
}

// ObserveDispatch records how long the engine took.
func (m *Metrics) ObserveDispatch(method string, status int, elapsed time.Duration) {
	m.dispatchDuration.WithLabelValues(method, statusClass(status)).Observe(elapsed.Seconds())
}

// SecurityEvent counts a security event. Its signature matches logging.SecurityHook.
func (m *Metrics) SecurityEvent(event string) {
	m.securityEvents.WithLabelValues(event).Inc()
}

// TrackLimiter registers a gauge that samples active limiter entries on scrape.
// Only the first call registers.
func (m *Metrics) TrackLimiter(active StatsFunc) {
	if m.limiterEntries != nil {
		return
	}
	m.limiterEntries = promauto.With(m.registry).NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: Namespace,
		Subsystem: "ratelimit",
		Name:      "active_entries",
		Help:      "Clients currently tracked by the rate limiter",
	}, func() float64 { return float64(active()) })
}

// TrackSessionCache exposes the session cache hit and miss counts.
// Only the first call registers.
func (m *Metrics) TrackSessionCache(c CacheCounters) {
	if m.cacheTracked {
		return
	}
	m.cacheTracked = true

	factory := promauto.With(m.registry)
	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "session_cache",
		Name:      "hits_total",
		Help:      "Session lookups answered from the cache",
	}, func() float64 { return float64(c.Hits()) })
	factory.NewCounterFunc(prometheus.CounterOpts{
		Namespace: Namespace,
		Subsystem: "session_cache",
		Name:      "misses_total",
		Help:      "Session lookups that went to the engine",
	}, func() float64 { return float64(c.Misses()) })
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func statusClass(status int) string {
	switch {
	case status == 0:
		return "error"
	case status >= 500:
		return "5xx"
	case status >= 400:
		return "4xx"
	case status >= 300:
		return "3xx"
	default:
		return "2xx"
	}
}

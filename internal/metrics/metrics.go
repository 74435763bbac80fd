// Package metrics exposes Prometheus instrumentation for the routing layer.
//
// A nil *Metrics is valid and records nothing, so components take one as an
// optional dependency.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values used across packages.
const (
	TargetPrimary = "primary"
	TargetReplica = "replica"

	ResultSuccess = "success"
	ResultFailure = "failure"

	RoutePrimary = "primary"
	RouteDefault = "default"
)

// Metrics holds every collector registered by dbroute.
type Metrics struct {
	Operations          *prometheus.CounterVec
	ConnectAttempts     *prometheus.CounterVec
	ConsistencyDecision *prometheus.CounterVec
	CacheEntries        prometheus.Gauge
	CacheEvictions      prometheus.Counter
}

// New registers the collectors with reg. A nil reg uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		Operations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dbroute_operations_total",
			Help: "Routed database operations by operation kind and target role",
		}, []string{"operation", "target"}),
		ConnectAttempts: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dbroute_connect_attempts_total",
			Help: "Primary liveness probe attempts during connect",
		}, []string{"result"}),
		ConsistencyDecision: f.NewCounterVec(prometheus.CounterOpts{
			Name: "dbroute_consistency_decisions_total",
			Help: "Read-after-write routing decisions by operation kind and chosen route",
		}, []string{"operation", "route"}),
		CacheEntries: f.NewGauge(prometheus.GaugeOpts{
			Name: "dbroute_mutation_cache_entries",
			Help: "Entries currently held by the in-memory mutation cache",
		}),
		CacheEvictions: f.NewCounter(prometheus.CounterOpts{
			Name: "dbroute_mutation_cache_evictions_total",
			Help: "Expired mutation cache entries removed on lookup or sweep",
		}),
	}
}

// ObserveOperation counts one routed operation.
func (m *Metrics) ObserveOperation(operation, target string) {
	if m == nil {
		return
	}
	m.Operations.WithLabelValues(operation, target).Inc()
}

// ObserveConnectAttempt counts one liveness probe attempt.
func (m *Metrics) ObserveConnectAttempt(ok bool) {
	if m == nil {
		return
	}
	result := ResultFailure
	if ok {
		result = ResultSuccess
	}
	m.ConnectAttempts.WithLabelValues(result).Inc()
}

// ObserveDecision counts one consistency decision.
func (m *Metrics) ObserveDecision(operation, route string) {
	if m == nil {
		return
	}
	m.ConsistencyDecision.WithLabelValues(operation, route).Inc()
}

// SetCacheEntries reports the current mutation cache size.
func (m *Metrics) SetCacheEntries(n int) {
	if m == nil {
		return
	}
	m.CacheEntries.Set(float64(n))
}

// AddCacheEvictions counts expired entries removed from the cache.
func (m *Metrics) AddCacheEvictions(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.CacheEvictions.Add(float64(n))
}

package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func value(t *testing.T, m prometheus.Metric) float64 {
	t.Helper()
	var out dto.Metric
	require.NoError(t, m.Write(&out))
	if out.Counter != nil {
		return out.GetCounter().GetValue()
	}
	return out.GetGauge().GetValue()
}

func TestMetrics_Counters(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveOperation("query", TargetReplica)
	m.ObserveOperation("query", TargetReplica)
	m.ObserveOperation("exec", TargetPrimary)
	m.ObserveConnectAttempt(false)
	m.ObserveConnectAttempt(true)
	m.ObserveDecision("read", RoutePrimary)

	assert.Equal(t, 2.0, value(t, m.Operations.WithLabelValues("query", TargetReplica)))
	assert.Equal(t, 1.0, value(t, m.Operations.WithLabelValues("exec", TargetPrimary)))
	assert.Equal(t, 1.0, value(t, m.ConnectAttempts.WithLabelValues(ResultFailure)))
	assert.Equal(t, 1.0, value(t, m.ConnectAttempts.WithLabelValues(ResultSuccess)))
	assert.Equal(t, 1.0, value(t, m.ConsistencyDecision.WithLabelValues("read", RoutePrimary)))
}

func TestMetrics_Cache(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.SetCacheEntries(4)
	m.AddCacheEvictions(3)
	m.AddCacheEvictions(0)

	assert.Equal(t, 4.0, value(t, m.CacheEntries))
	assert.Equal(t, 3.0, value(t, m.CacheEvictions))
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveOperation("query", TargetPrimary)
		m.ObserveConnectAttempt(true)
		m.ObserveDecision("write", RoutePrimary)
		m.SetCacheEntries(1)
		m.AddCacheEvictions(1)
	})
}

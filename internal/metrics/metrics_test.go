package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Observe(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveAuth("login", "success")
	m.ObserveAuth("login", "success")
	m.ObserveAuth("login", "authentication_error")
	m.ObserveDenied("login")
	m.SetTrackedKeys(7)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.AuthRequests.WithLabelValues("login", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuthRequests.WithLabelValues("login", "authentication_error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.RateLimitDenied.WithLabelValues("login")))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.RateLimitKeys))
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAuth("register", "success")
		m.ObserveDenied("general")
		m.SetTrackedKeys(1)
	})
}

func TestNewRegistry(t *testing.T) {
	reg := NewRegistry()
	New(reg)

	families, err := reg.Gather()
	assert.NoError(t, err)
	assert.NotEmpty(t, families)
}

// Package metrics holds the Prometheus collectors shared by the auth and
// rate limiting packages.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

const namespace = "fundnest"

type Metrics struct {
	AuthRequests    *prometheus.CounterVec
	RateLimitDenied *prometheus.CounterVec
	RateLimitKeys   prometheus.Gauge
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "auth_requests_total",
				Help:      "Auth service operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		RateLimitDenied: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ratelimit_denied_total",
				Help:      "Requests rejected by a rate limiter",
			},
			[]string{"limiter"},
		),
		RateLimitKeys: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "ratelimit_tracked_keys",
			Help:      "Client keys currently held by the in-memory window store",
		}),
	}

	reg.MustRegister(m.AuthRequests, m.RateLimitDenied, m.RateLimitKeys)
	return m
}

// NewRegistry returns a registry with the Go and process collectors so the
// global default registry stays untouched.
func NewRegistry() *prometheus.Registry {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return registry
}

// ObserveAuth records the outcome of one auth operation. Safe on a nil receiver.
func (m *Metrics) ObserveAuth(operation, outcome string) {
	if m == nil {
		return
	}
	m.AuthRequests.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) ObserveDenied(limiter string) {
	if m == nil {
		return
	}
	m.RateLimitDenied.WithLabelValues(limiter).Inc()
}

func (m *Metrics) SetTrackedKeys(n int) {
	if m == nil {
		return
	}
	m.RateLimitKeys.Set(float64(n))
}

// Package ratelimit implements sliding-window request limiting keyed by
// client address.
//
// A Limiter owns a window duration and a request ceiling. The per-key
// timestamp log lives in a Store so that one process (MemoryStore) or a
// fleet of processes (RedisStore) can share it. Store.Admit performs
// prune, check and append as one atomic step per key.
package ratelimit

import (
	"context"
	"time"

	"github.com/fundnest/fundnest-api/internal/config"
	"github.com/fundnest/fundnest-api/internal/metrics"
)

// Decision is the outcome of one admission check.
type Decision struct {
	Allowed bool
	// Count is the number of requests held in the window after the check.
	Count int
	// RetryAfter is how long until the oldest counted request leaves the
	// window. Zero when allowed.
	RetryAfter time.Duration
}

// Store keeps one sliding window per key. A timestamp ts is inside the
// window while now-ts < window.
type Store interface {
	Admit(ctx context.Context, key string, now time.Time, window time.Duration, max int) (Decision, error)
}

type Limiter struct {
	name    string
	window  time.Duration
	max     int
	store   Store
	now     func() time.Time
	metrics *metrics.Metrics
}

type Option func(*Limiter)

func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(l *Limiter) {
		l.metrics = m
	}
}

// New creates a limiter. name namespaces its keys, so several limiters can
// share a store without counting each other's requests.
func New(name string, cfg config.LimitConfig, store Store, opts ...Option) *Limiter {
	l := &Limiter{
		name:   name,
		window: cfg.Window,
		max:    cfg.MaxRequests,
		store:  store,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Admit records a request from clientKey unless the window is already full.
func (l *Limiter) Admit(ctx context.Context, clientKey string) (Decision, error) {
	d, err := l.store.Admit(ctx, l.name+":"+clientKey, l.now(), l.window, l.max)
	if err != nil {
		return Decision{}, err
	}
	if !d.Allowed {
		l.metrics.ObserveDenied(l.name)
	}
	return d, nil
}

func (l *Limiter) Name() string {
	return l.name
}

func (l *Limiter) MaxRequests() int {
	return l.max
}

func (l *Limiter) Window() time.Duration {
	return l.window
}

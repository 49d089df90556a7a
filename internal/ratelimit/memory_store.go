package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/fundnest/fundnest-api/internal/metrics"
)

const DefaultCleanupInterval = time.Minute

type window struct {
	// timestamps is ordered oldest first.
	timestamps []time.Time
	span       time.Duration
}

// prune drops timestamps that have left the window.
func (w *window) prune(now time.Time) {
	i := 0
	for i < len(w.timestamps) && now.Sub(w.timestamps[i]) >= w.span {
		i++
	}
	if i > 0 {
		w.timestamps = append(w.timestamps[:0], w.timestamps[i:]...)
	}
}

// MemoryStore is a process-local Store. Admit only prunes the key it is
// asked about; a background sweep drops keys whose window has emptied so
// clients that never return do not accumulate. Call Close to stop it.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time
	metrics *metrics.Metrics

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

func NewMemoryStore(cleanupInterval time.Duration, m *metrics.Metrics) *MemoryStore {
	return newMemoryStore(cleanupInterval, m, time.Now)
}

func newMemoryStore(cleanupInterval time.Duration, m *metrics.Metrics, now func() time.Time) *MemoryStore {
	if cleanupInterval <= 0 {
		cleanupInterval = DefaultCleanupInterval
	}

	s := &MemoryStore{
		windows:  make(map[string]*window),
		now:      now,
		metrics:  m,
		stopChan: make(chan struct{}),
	}

	s.wg.Add(1)
	go s.cleanupLoop(cleanupInterval)

	return s
}

func (s *MemoryStore) Admit(_ context.Context, key string, now time.Time, span time.Duration, max int) (Decision, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	w, exists := s.windows[key]
	if !exists {
		w = &window{span: span}
		s.windows[key] = w
		s.metrics.SetTrackedKeys(len(s.windows))
	}
	w.span = span
	w.prune(now)

	if max <= 0 {
		return Decision{Allowed: false, RetryAfter: span}, nil
	}
	if len(w.timestamps) >= max {
		return Decision{
			Allowed:    false,
			Count:      len(w.timestamps),
			RetryAfter: w.timestamps[0].Add(span).Sub(now),
		}, nil
	}

	w.timestamps = append(w.timestamps, now)
	return Decision{Allowed: true, Count: len(w.timestamps)}, nil
}

// Sweep removes every key with no timestamps left in its window and
// returns how many were removed.
func (s *MemoryStore) Sweep(now time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for key, w := range s.windows {
		w.prune(now)
		if len(w.timestamps) == 0 {
			delete(s.windows, key)
			removed++
		}
	}

	s.metrics.SetTrackedKeys(len(s.windows))
	return removed
}

// Len returns the number of tracked keys.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

func (s *MemoryStore) cleanupLoop(interval time.Duration) {
	defer s.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopChan:
			return
		case <-ticker.C:
			s.Sweep(s.now())
		}
	}
}

// Close stops the sweep goroutine. It blocks until the goroutine has exited
// and is safe to call more than once.
func (s *MemoryStore) Close() error {
	s.stopOnce.Do(func() { close(s.stopChan) })
	s.wg.Wait()
	return nil
}

package ratelimit

import (
	"context"
	"sync"
	"time"
)

type window struct {
	count   int64
	resetAt time.Time
}

// MemoryStore keeps fixed-window counters in process memory, guarded by a
// single mutex so the check-then-increment cannot race.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string]*window

	// now is swappable in tests to step across window boundaries.
	now func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

func (s *MemoryStore) Incr(_ context.Context, key string, windowDur time.Duration) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	w, ok := s.windows[key]
	if !ok || now.After(w.resetAt) {
		w = &window{count: 0, resetAt: now.Add(windowDur)}
		s.windows[key] = w
		s.sweepLocked(now)
	}

	w.count++
	return w.count, w.resetAt, nil
}

// sweepLocked drops expired windows so the map does not grow unbounded under
// churning client keys. Called with the lock held, on new-window creation
// only, so steady-state increments stay O(1).
func (s *MemoryStore) sweepLocked(now time.Time) {
	if len(s.windows) < 1024 {
		return
	}
	for key, w := range s.windows {
		if now.After(w.resetAt) {
			delete(s.windows, key)
		}
	}
}

package limiter

import (
	"context"
	"sync"
	"time"
)

// sweepEvery full sweeps of idle windows happen once per this many calls
const sweepEvery = 1024

// MemoryStore keeps windows in process. Only suitable for a single instance.
type MemoryStore struct {
	mu      sync.Mutex
	windows map[string][]int64 // key -> admitted timestamps (ms)
	calls   int
}

// NewMemoryStore creates memory storage
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{windows: make(map[string][]int64)}
}

// AtomicSlidingWindowIncrement mirrors the Redis script under a mutex
func (s *MemoryStore) AtomicSlidingWindowIncrement(ctx context.Context, key string, now time.Time, window time.Duration, limit int64) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	nowMs := now.UnixMilli()
	cutoff := nowMs - window.Milliseconds()

	s.mu.Lock()
	defer s.mu.Unlock()

	s.calls++
	if s.calls%sweepEvery == 0 {
		s.sweep(cutoff)
	}

	entries := prune(s.windows[key], cutoff)
	current := int64(len(entries))
	if current < limit {
		entries = append(entries, nowMs)
	}
	if len(entries) == 0 {
		delete(s.windows, key)
	} else {
		s.windows[key] = entries
	}
	return current + 1, nil
}

// Len returns the number of tracked windows
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

func (s *MemoryStore) sweep(cutoff int64) {
	for key, entries := range s.windows {
		if kept := prune(entries, cutoff); len(kept) == 0 {
			delete(s.windows, key)
		} else {
			s.windows[key] = kept
		}
	}
}

// prune drops entries scored below cutoff; an entry exactly at cutoff survives
func prune(entries []int64, cutoff int64) []int64 {
	kept := entries[:0]
	for _, ts := range entries {
		if ts >= cutoff {
			kept = append(kept, ts)
		}
	}
	return kept
}

package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is a single-process sliding window store. Keys whose window
// has fully expired are dropped, on their next request or by the sweep that
// runs at most once per window.
type MemoryStore struct {
	mu        sync.Mutex
	windows   map[string]*slidingWindow
	lastSweep time.Time
	now       func() time.Time
}

type slidingWindow struct {
	stamps []time.Time
	length time.Duration
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		windows: make(map[string]*slidingWindow),
		now:     time.Now,
	}
}

// Allow records the request when it fits within limit.
func (s *MemoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	s.sweep(now, window)

	var stamps []time.Time
	if w, ok := s.windows[key]; ok {
		stamps = prune(w.stamps, now.Add(-window))
	}

	if len(stamps) >= limit {
		s.windows[key] = &slidingWindow{stamps: stamps, length: window}
		resetAt := stamps[0].Add(window)
		return Result{
			Allowed:    false,
			Limit:      limit,
			ResetAt:    resetAt,
			RetryAfter: retryAfter(resetAt, now),
		}, nil
	}

	stamps = append(stamps, now)
	s.windows[key] = &slidingWindow{stamps: stamps, length: window}
	return Result{
		Allowed:   true,
		Limit:     limit,
		Remaining: limit - len(stamps),
		ResetAt:   stamps[0].Add(window),
	}, nil
}

// Len reports how many keys currently hold timestamps.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

// sweep prunes every key and deletes the empty ones. Caller holds mu.
func (s *MemoryStore) sweep(now time.Time, every time.Duration) {
	if now.Sub(s.lastSweep) < every {
		return
	}
	s.lastSweep = now
	for key, w := range s.windows {
		w.stamps = prune(w.stamps, now.Add(-w.length))
		if len(w.stamps) == 0 {
			delete(s.windows, key)
		}
	}
}

// prune drops timestamps at or before cutoff. stamps is sorted.
func prune(stamps []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(stamps) && !stamps[i].After(cutoff) {
		i++
	}
	return stamps[i:]
}

package store

import (
	"context"
	"sync"
	"time"
)

// evictEvery is how many Record calls pass between scans for idle keys.
const evictEvery = 1024

type hitLog struct {
	hits   []time.Time
	window time.Duration
}

// RateLimitMemoryStore is an in-memory ratelimit.Store for tests and single-process runs.
type RateLimitMemoryStore struct {
	mu      sync.Mutex
	logs    map[string]*hitLog
	now     func() time.Time
	records int
}

// NewRateLimitMemoryStore creates a new in-memory rate limit store.
func NewRateLimitMemoryStore() *RateLimitMemoryStore {
	return &RateLimitMemoryStore{
		logs: make(map[string]*hitLog),
		now:  time.Now,
	}
}

// WithClock overrides the time source. It must be called before the store is shared.
func (s *RateLimitMemoryStore) WithClock(now func() time.Time) *RateLimitMemoryStore {
	s.now = now

	return s
}

// Record returns how many hits for key fall inside the window with this one added, and
// keeps the hit only while that stays within limit. A hit exactly window old is already
// outside it.
func (s *RateLimitMemoryStore) Record(_ context.Context, key string, limit int64, window time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()

	log, ok := s.logs[key]
	if !ok {
		log = &hitLog{}
		s.logs[key] = log
	}

	log.window = window
	log.hits = prune(log.hits, now.Add(-window))

	count := int64(len(log.hits)) + 1
	if count <= limit {
		log.hits = append(log.hits, now)
	}

	s.records++
	if s.records%evictEvery == 0 {
		s.evictIdle(now)
	}

	return count, nil
}

// Keys returns the number of tracked keys.
func (s *RateLimitMemoryStore) Keys() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.logs)
}

// evictIdle drops keys whose newest hit has left its window.
func (s *RateLimitMemoryStore) evictIdle(now time.Time) {
	for key, log := range s.logs {
		if len(log.hits) == 0 || !log.hits[len(log.hits)-1].After(now.Add(-log.window)) {
			delete(s.logs, key)
		}
	}
}

func prune(hits []time.Time, cutoff time.Time) []time.Time {
	kept := hits[:0]

	for _, ts := range hits {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}

	return kept
}

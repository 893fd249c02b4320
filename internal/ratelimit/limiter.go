// Package ratelimit keeps one token bucket per caller key (peer address or
// client IP). Both transports share it.
package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const idleTTL = 10 * time.Minute

type entry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

type Store struct {
	rps   rate.Limit
	burst int

	mu        sync.Mutex
	limiters  map[string]*entry
	lastSweep time.Time
	now       func() time.Time
}

// New returns nil when rps or burst is not positive; a nil Store allows
// everything.
func New(rps float64, burst int) *Store {
	if rps <= 0 || burst <= 0 {
		return nil
	}
	return &Store{
		rps:      rate.Limit(rps),
		burst:    burst,
		limiters: make(map[string]*entry),
		now:      time.Now,
	}
}

func (s *Store) Allow(key string) bool {
	if s == nil {
		return true
	}
	return s.limiter(key).AllowN(s.now(), 1)
}

func (s *Store) limiter(key string) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	if now.Sub(s.lastSweep) > idleTTL {
		for k, e := range s.limiters {
			if now.Sub(e.lastSeen) > idleTTL {
				delete(s.limiters, k)
			}
		}
		s.lastSweep = now
	}

	e, ok := s.limiters[key]
	if !ok {
		e = &entry{limiter: rate.NewLimiter(s.rps, s.burst)}
		s.limiters[key] = e
	}
	e.lastSeen = now
	return e.limiter
}

func (s *Store) size() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// Package ratelimit provides a per-identity sliding-window request limiter.
package ratelimit

import (
	"hash/fnv"
	"sync"
	"time"
)

const shardCount = 16

// Decision reports whether a request may proceed. When OK is false,
// RetryAfter is the wait until the oldest in-window request expires.
type Decision struct {
	OK         bool
	RetryAfter time.Duration
}

type window struct {
	stamps []time.Time
}

type shard struct {
	mu      sync.Mutex
	windows map[string]*window
}

// Limiter tracks request timestamps per identity and admits at most
// maxRequests within any rolling window.
type Limiter struct {
	maxRequests int
	window      time.Duration
	now         func() time.Time
	shards      [shardCount]*shard
}

// Option configures a Limiter.
type Option func(*Limiter)

// WithClock overrides the time source (deterministic in tests).
func WithClock(now func() time.Time) Option {
	return func(l *Limiter) {
		l.now = now
	}
}

// New creates a limiter admitting maxRequests per identity within window.
func New(maxRequests int, win time.Duration, opts ...Option) *Limiter {
	l := &Limiter{
		maxRequests: maxRequests,
		window:      win,
		now:         time.Now,
	}
	for i := range l.shards {
		l.shards[i] = &shard{windows: make(map[string]*window)}
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

func (l *Limiter) shardFor(identity string) *shard {
	h := fnv.New32a()
	h.Write([]byte(identity))
	return l.shards[h.Sum32()%shardCount]
}

// Allow records the request when admitted. Denied requests are not
// recorded and do not extend the caller's wait.
func (l *Limiter) Allow(identity string) Decision {
	now := l.now()
	cutoff := now.Add(-l.window)

	s := l.shardFor(identity)
	s.mu.Lock()
	defer s.mu.Unlock()

	w := s.windows[identity]
	if w == nil {
		w = &window{}
		s.windows[identity] = w
	}

	// Drop expired stamps before counting.
	keep := w.stamps[:0]
	for _, ts := range w.stamps {
		if ts.After(cutoff) {
			keep = append(keep, ts)
		}
	}
	w.stamps = keep

	if len(w.stamps) >= l.maxRequests {
		oldest := w.stamps[0]
		retry := oldest.Add(l.window).Sub(now)
		if retry < 0 {
			retry = 0
		}
		return Decision{OK: false, RetryAfter: retry}
	}

	w.stamps = append(w.stamps, now)
	return Decision{OK: true}
}

// PruneIdle removes identities whose every stamp has left the window.
// It returns the number of identities removed.
func (l *Limiter) PruneIdle() int {
	cutoff := l.now().Add(-l.window)
	removed := 0
	for _, s := range l.shards {
		s.mu.Lock()
		for id, w := range s.windows {
			live := false
			for _, ts := range w.stamps {
				if ts.After(cutoff) {
					live = true
					break
				}
			}
			if !live {
				delete(s.windows, id)
				removed++
			}
		}
		s.mu.Unlock()
	}
	return removed
}

// Tracked returns the number of identities currently held in memory.
func (l *Limiter) Tracked() int {
	n := 0
	for _, s := range l.shards {
		s.mu.Lock()
		n += len(s.windows)
		s.mu.Unlock()
	}
	return n
}

package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// pruneThreshold is the number of tracked keys above which expired marks are
// dropped on the next acquisition.
const pruneThreshold = 1024

// MemoryLimiter is the in-process admission gate. Each key owns a token bucket
// refilling one token per window with a burst of one, so a grant empties the
// bucket and the next grant is possible one window later.
type MemoryLimiter struct {
	mu       sync.Mutex
	window   time.Duration
	now      func() time.Time
	buckets  map[string]*rate.Limiter
	marks    map[string]time.Time
	logger   zerolog.Logger
	disabled bool
}

// NewMemoryLimiter creates an in-process limiter. A nil now uses time.Now.
func NewMemoryLimiter(window time.Duration, now func() time.Time, logger zerolog.Logger) *MemoryLimiter {
	if now == nil {
		now = time.Now
	}
	return &MemoryLimiter{
		window:   window,
		now:      now,
		buckets:  make(map[string]*rate.Limiter),
		marks:    make(map[string]time.Time),
		logger:   logger,
		disabled: window <= 0,
	}
}

// TryAcquire implements Limiter.
func (m *MemoryLimiter) TryAcquire(_ context.Context, key string) bool {
	if m.disabled {
		return true
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if len(m.buckets) > pruneThreshold {
		m.pruneLocked(now)
	}

	bucket, ok := m.buckets[key]
	if !ok {
		bucket = rate.NewLimiter(rate.Every(m.window), 1)
		m.buckets[key] = bucket
	}

	granted := bucket.AllowN(now, 1)
	if granted {
		m.marks[key] = now
	}
	recordDecision("memory", granted)

	if !granted {
		m.logger.Debug().
			Str("key", key).
			Dur("retry_after", WindowMark{Key: key, LastCallAt: m.marks[key]}.RetryAfter(now, m.window)).
			Msg("Admission rejected")
	}

	return granted
}

// Marks implements MarkLister.
func (m *MemoryLimiter) Marks() map[string]WindowMark {
	m.mu.Lock()
	defer m.mu.Unlock()

	marks := make(map[string]WindowMark, len(m.marks))
	for key, at := range m.marks {
		marks[key] = WindowMark{Key: key, LastCallAt: at}
	}
	return marks
}

// RetryAfter implements RetryAdvisor.
func (m *MemoryLimiter) RetryAfter(_ context.Context, key string) time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()

	at, ok := m.marks[key]
	if !ok {
		return 0
	}
	return WindowMark{Key: key, LastCallAt: at}.RetryAfter(m.now(), m.window)
}

// Window returns the configured admission window.
func (m *MemoryLimiter) Window() time.Duration {
	return m.window
}

// pruneLocked forgets keys whose window has already reopened; a missing key
// behaves exactly like an expired one.
func (m *MemoryLimiter) pruneLocked(now time.Time) {
	for key, at := range m.marks {
		if (WindowMark{Key: key, LastCallAt: at}).IsOpen(now, m.window) {
			delete(m.marks, key)
			delete(m.buckets, key)
		}
	}
}

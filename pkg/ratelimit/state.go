// Package ratelimit implements the per-endpoint admission gate that keeps the
// gateway from calling the same upstream query more than once per window.
//
// A slot is reserved at the moment admission is granted, not when the
// upstream call completes, so failed calls consume their window too.
package ratelimit

import (
	"context"
	"time"
)

const (
	// DefaultWindow is the minimum interval between two upstream calls for
	// the same endpoint key.
	DefaultWindow = 30 * time.Second

	// RedisKeyPrefix namespaces window marks stored in Redis.
	RedisKeyPrefix = "tdx:ratelimit:"
)

// Limiter is the admission gate. TryAcquire atomically checks and stamps the
// window for key and reports whether the caller may proceed.
type Limiter interface {
	TryAcquire(ctx context.Context, key string) bool
}

// MarkLister is implemented by limiters that can report their window marks.
type MarkLister interface {
	Marks() map[string]WindowMark
}

// RetryAdvisor is implemented by limiters that can tell a rejected caller
// how long until the key's window reopens.
type RetryAdvisor interface {
	RetryAfter(ctx context.Context, key string) time.Duration
}

// WindowMark records the last granted call for an endpoint key.
type WindowMark struct {
	Key        string    `json:"key"`
	LastCallAt time.Time `json:"lastCallAt"`
}

// Elapsed returns the time since the last granted call.
func (m WindowMark) Elapsed(now time.Time) time.Duration {
	return now.Sub(m.LastCallAt)
}

// IsOpen reports whether a new call may be admitted at now.
func (m WindowMark) IsOpen(now time.Time, window time.Duration) bool {
	return m.Elapsed(now) >= window
}

// RetryAfter returns how long until the window reopens, 0 if it is open.
func (m WindowMark) RetryAfter(now time.Time, window time.Duration) time.Duration {
	remaining := window - m.Elapsed(now)
	if remaining < 0 {
		return 0
	}
	return remaining
}

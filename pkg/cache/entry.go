// Package cache provides the gateway's short-TTL response cache.
package cache

import (
	"encoding/json"
	"time"
)

// Entry is one cached upstream payload. Entries are replaced, never mutated.
type Entry struct {
	// Key is the endpoint signature the payload was fetched for.
	Key string `json:"key"`

	// Payload is the raw upstream JSON body.
	Payload json.RawMessage `json:"payload"`

	// StoredAt is when the upstream call that produced Payload completed.
	StoredAt time.Time `json:"stored_at"`
}

// Age returns how long ago the entry was stored, relative to now.
func (e *Entry) Age(now time.Time) time.Duration {
	age := now.Sub(e.StoredAt)
	if age < 0 {
		return 0
	}
	return age
}

// IsFresh reports whether the entry may still be served.
func (e *Entry) IsFresh(now time.Time, ttl time.Duration) bool {
	return e.Age(now) < ttl
}

// EntryStatus is the introspection view of an entry.
type EntryStatus struct {
	Age      time.Duration `json:"age"`
	StoredAt time.Time     `json:"storedAt"`
	// Present is false once the entry has gone stale.
	Present bool `json:"present"`
}

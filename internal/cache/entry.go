package cache

import "time"

// Entry is one cached query result: compressed payload plus the
// bookkeeping invalidation and eviction need.
type Entry struct {
	Key        string
	Payload    []byte // zstd-compressed, serialized []value.Row
	Tables     []string
	Tags       []string
	CreatedAt  time.Time
	ExpiresAt  time.Time
	LastAccess time.Time
	HitCount   int64
	Size       int64 // compressed payload size in bytes
}

// Expired reports whether the entry's TTL has elapsed.
func (e *Entry) Expired(now time.Time) bool {
	return !e.ExpiresAt.IsZero() && now.After(e.ExpiresAt)
}

// Package memory is the process-local tier in front of the durable store.
//
// Every operation is non-blocking and never fails: a value that cannot be
// held (codec error, eviction, admission refusal) is simply a miss later.
package memory

import "time"

// Entry is what the memory tier holds for one cache key.
type Entry[V any] struct {
	Value     V
	JobID     string
	Units     int
	CreatedAt time.Time
	Cost      float64
}

// Cache is the memory tier contract.
type Cache[V any] interface {
	Get(key string) (Entry[V], bool)
	Set(key string, e Entry[V]) // unconditional replace
	Delete(key string)
	Clear()
	Len() int
	Keys() []string // sorted
}

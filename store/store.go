// Package store defines the durable tier for analysis results.
//
// A Store holds at most one Entry per key. Put is an upsert (last writer wins);
// there is no history. Implementations must be safe for concurrent use within a
// process; reads may run while the same process writes.
package store

import (
	"context"
	"errors"
	"time"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store: closed")

// Entry is one persisted analysis result.
type Entry struct {
	Key       string
	JobID     string
	UnitCount int
	Payload   []byte // codec-encoded result
	CreatedAt time.Time
	Cost      float64 // estimated provider spend avoided by every hit
}

// Stats summarizes the store for cost reporting.
type Stats struct {
	Count int64
	Cost  float64 // sum of Entry.Cost
}

type Store interface {
	// Get returns (entry, true, nil) on hit and (Entry{}, false, nil) on miss.
	Get(ctx context.Context, key string) (Entry, bool, error)
	// Put inserts or replaces the entry for e.Key.
	Put(ctx context.Context, e Entry) error
	// Delete removes key; deleting a missing key is not an error.
	Delete(ctx context.Context, key string) error
	// DeleteAll removes every entry owned by the store.
	DeleteAll(ctx context.Context) error
	Stats(ctx context.Context) (Stats, error)
	Close() error
}

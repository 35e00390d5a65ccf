// Package genstore tracks a generation counter per cache key.
//
// The coordinator snapshots a key's generation when a generation starts and
// writes the result back only if the generation is unchanged; Invalidate bumps
// it. That keeps a slow generation that started before an invalidation from
// resurrecting the entry the caller just removed.
package genstore

import (
	"context"
	"time"
)

// GenStore abstracts where generations live.
// Local (in-process) is the default; Redis survives restarts.
type GenStore interface {
	// Snapshot returns the current generation; missing => 0.
	Snapshot(ctx context.Context, key string) (uint64, error)
	// SnapshotMany returns gens for many keys; missing => 0.
	SnapshotMany(ctx context.Context, keys []string) (map[string]uint64, error)
	// Bump atomically increments and returns the new generation.
	Bump(ctx context.Context, key string) (uint64, error)
	// Cleanup prunes entries not bumped within retention (no-op for Redis).
	Cleanup(retention time.Duration)
	Close(context.Context) error
}

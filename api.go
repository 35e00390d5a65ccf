package analysiscache

import (
	"context"
	"time"

	c "github.com/unkn0wn-root/analysiscache/codec"
	gen "github.com/unkn0wn-root/analysiscache/genstore"
	"github.com/unkn0wn-root/analysiscache/memory"
	"github.com/unkn0wn-root/analysiscache/store"
)

// Source reports which path satisfied a Resolve call.
type Source string

const (
	SourceMemory    Source = "memory"
	SourceStore     Source = "store"
	SourceGenerated Source = "generated" // this caller ran the generation
	SourceShared    Source = "shared"    // joined a generation another caller started
)

// Generated is what a GenerateFunc produces. JobID, Units and Cost are
// persisted next to the encoded value for reporting.
type Generated[V any] struct {
	Value V
	JobID string
	Units int
	Cost  float64
}

// GenerateFunc computes the value for a key. The context it receives is not
// cancelled when the caller that started the generation goes away.
type GenerateFunc[V any] func(ctx context.Context) (Generated[V], error)

// Stats is a point-in-time view of both tiers.
type Stats struct {
	MemoryEntries     int
	PersistentEntries int64
	EstimatedSavings  float64 // sum of stored cost estimates
	InFlight          int
}

// Coordinator is the high-level API over the two tiers.
type Coordinator[V any] interface {
	Enabled() bool

	// Resolve returns the cached value for key or generates it exactly once.
	Resolve(ctx context.Context, key string, fn GenerateFunc[V]) (V, Source, error)
	// Lookup consults the tiers only; it never generates.
	Lookup(ctx context.Context, key string) (V, bool, error)

	Invalidate(ctx context.Context, key string) error
	InvalidateAll(ctx context.Context) error

	Stats(ctx context.Context) (Stats, error)
	Keys() []string // memory tier, sorted
	InFlight() int

	// Close closes the store and the generation store.
	Close(ctx context.Context) error
}

// Options configure a Coordinator. Only Store is required.
type Options[V any] struct {
	Namespace string // prefixes generation keys; default "analysis"
	Memory    memory.Cache[V]
	Store     store.Store
	Codec     c.Codec[V] // default JSON

	Logger          Logger        // if nil, NopLogger is used
	Hooks           Hooks         // if nil, NopHooks is used
	GenStore        gen.GenStore  // nil => in-process Local
	CleanupInterval time.Duration // Local genstore only; 0 => 1h
	GenRetention    time.Duration // Local genstore only; 0 => 30d
	Disabled        bool          // bypass both tiers; every Resolve generates
}

func New[V any](opts Options[V]) (Coordinator[V], error) {
	return newCoordinator[V](opts)
}

package analysiscache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	c "github.com/unkn0wn-root/analysiscache/codec"
	gen "github.com/unkn0wn-root/analysiscache/genstore"
	"github.com/unkn0wn-root/analysiscache/memory"
	"github.com/unkn0wn-root/analysiscache/store"
)

const (
	defaultNamespace    = "analysis"
	defaultGenRetention = 30 * 24 * time.Hour
	defaultSweep        = time.Hour

	// epochKey is bumped by InvalidateAll; it is part of every flight key.
	epochKey = "\x00epoch"
)

type coordinator[V any] struct {
	ns      string
	mem     memory.Cache[V]
	store   store.Store
	codec   c.Codec[V]
	log     Logger
	hooks   Hooks
	gen     gen.GenStore
	enabled bool

	flights  singleflight.Group
	inflight atomic.Int64
}

// snapshot is the pair of generations a flight is keyed by.
type snapshot struct {
	gen   uint64
	epoch uint64
	ok    bool // false when the generation store could not be read
}

func newCoordinator[V any](opts Options[V]) (*coordinator[V], error) {
	if opts.Store == nil {
		return nil, ErrNilStore
	}

	co := &coordinator[V]{
		ns:      coalesce(opts.Namespace, defaultNamespace),
		store:   opts.Store,
		enabled: !opts.Disabled,
	}

	co.log = coalesce[Logger](opts.Logger, NopLogger{})
	co.hooks = coalesce[Hooks](opts.Hooks, NopHooks{})
	co.codec = coalesce[c.Codec[V]](opts.Codec, c.JSON[V]{})

	if opts.Memory != nil {
		co.mem = opts.Memory
	} else {
		co.mem = memory.NewMap[V]()
	}

	if opts.GenStore != nil {
		co.gen = opts.GenStore
	} else {
		co.gen = gen.NewLocal(
			coalesce(opts.CleanupInterval, defaultSweep),
			coalesce(opts.GenRetention, defaultGenRetention),
		)
	}

	return co, nil
}

func (co *coordinator[V]) Enabled() bool { return co.enabled }

func (co *coordinator[V]) Close(ctx context.Context) error {
	// gen store first (best effort)
	if err := co.gen.Close(ctx); err != nil {
		co.log.Warn("genstore close failed", Fields{"err": err})
	}
	return co.store.Close()
}

func (co *coordinator[V]) InFlight() int { return int(co.inflight.Load()) }

func (co *coordinator[V]) Keys() []string { return co.mem.Keys() }

func (co *coordinator[V]) Resolve(ctx context.Context, key string, fn GenerateFunc[V]) (V, Source, error) {
	var zero V
	if fn == nil {
		return zero, "", ErrNilFunc
	}
	if !co.enabled {
		g, err := fn(ctx)
		if err != nil {
			return zero, "", err
		}
		return g.Value, SourceGenerated, nil
	}

	if e, ok := co.mem.Get(key); ok {
		co.hooks.MemoryHit(key)
		return e.Value, SourceMemory, nil
	}
	if v, ok := co.fromStore(ctx, key); ok {
		return v, SourceStore, nil
	}
	co.hooks.Miss(key)

	snap := co.snapshot(ctx, key)
	started := false
	ch := co.flights.DoChan(co.flightKey(key, snap), func() (any, error) {
		started = true
		return co.generate(ctx, key, snap, fn)
	})

	select {
	case <-ctx.Done():
		// the flight keeps running for the other waiters
		return zero, "", ctx.Err()
	case r := <-ch:
		// r.Shared is also true for the caller that ran the flight
		if !started {
			co.hooks.GenerationShared(key)
		}
		if r.Err != nil {
			return zero, "", r.Err
		}
		fr, _ := r.Val.(flightResult[V])
		if !started && fr.src == SourceGenerated {
			fr.src = SourceShared
		}
		return fr.v, fr.src, nil
	}
}

// flightResult carries where the flight found its value: a flight that
// started just after another one finished reads the tiers it filled.
type flightResult[V any] struct {
	v   V
	src Source
}

func (co *coordinator[V]) Lookup(ctx context.Context, key string) (V, bool, error) {
	var zero V
	if !co.enabled {
		return zero, false, nil
	}
	if e, ok := co.mem.Get(key); ok {
		return e.Value, true, nil
	}
	v, ok := co.fromStore(ctx, key)
	return v, ok, nil
}

// generate runs inside the flight. The generator is detached from the
// starting caller's cancellation: other callers may be waiting on it.
func (co *coordinator[V]) generate(ctx context.Context, key string, snap snapshot, fn GenerateFunc[V]) (v any, err error) {
	co.inflight.Add(1)
	defer co.inflight.Add(-1)

	gctx := context.WithoutCancel(ctx)

	// A flight that finished just before this one started has written both
	// tiers. A bounded memory tier may have refused its entry, so the store
	// is checked too.
	if e, ok := co.mem.Get(key); ok {
		return flightResult[V]{v: e.Value, src: SourceMemory}, nil
	}
	if sv, ok := co.fromStore(gctx, key); ok {
		return flightResult[V]{v: sv, src: SourceStore}, nil
	}

	defer func() {
		if p := recover(); p != nil {
			err = &GeneratorPanicError{Key: key, Value: p}
			co.hooks.GenerationFailed(key, err)
			co.log.Error("generation panicked", Fields{"key": key, "panic": fmt.Sprint(p)})
		}
	}()

	co.hooks.GenerationStarted(key)
	co.log.Info("generation started", Fields{"key": key, "gen": snap.gen})
	began := time.Now()

	g, err := fn(gctx)
	if err != nil {
		co.hooks.GenerationFailed(key, err)
		co.log.Warn("generation failed", Fields{"key": key, "err": err, "took": time.Since(began)})
		return nil, err
	}

	co.log.Info("generation finished", Fields{"key": key, "units": g.Units, "took": time.Since(began)})
	co.writeBack(gctx, key, snap, g)
	return flightResult[V]{v: g.Value, src: SourceGenerated}, nil
}

// writeBack stores g in both tiers iff the key has not been invalidated since
// snap was taken. The generation is re-read after writing: an Invalidate that
// raced the write removes what was just written.
func (co *coordinator[V]) writeBack(ctx context.Context, key string, snap snapshot, g Generated[V]) {
	if !co.current(ctx, key, snap) {
		co.hooks.StaleWriteSkipped(key)
		co.log.Debug("write-back skipped (gen moved)", Fields{"key": key, "gen": snap.gen})
		return
	}

	now := time.Now()
	payload, err := co.codec.Encode(g.Value)
	if err != nil {
		co.hooks.StoreError("encode", key, err)
		co.log.Error("encode failed; result kept in memory only", Fields{"key": key, "err": err})
	} else {
		e := store.Entry{
			Key:       key,
			JobID:     g.JobID,
			UnitCount: g.Units,
			Payload:   payload,
			CreatedAt: now,
			Cost:      g.Cost,
		}
		if err := co.store.Put(ctx, e); err != nil {
			co.hooks.StoreError("put", key, err)
			co.log.Error("store write failed; result dropped from durable tier", Fields{"key": key, "err": err})
		}
	}
	co.mem.Set(key, memory.Entry[V]{Value: g.Value, JobID: g.JobID, Units: g.Units, CreatedAt: now, Cost: g.Cost})

	if !co.current(ctx, key, snap) {
		co.mem.Delete(key)
		_ = co.store.Delete(ctx, key)
		co.hooks.StaleWriteSkipped(key)
		co.log.Debug("write-back rolled back (invalidated during write)", Fields{"key": key})
	}
}

func (co *coordinator[V]) fromStore(ctx context.Context, key string) (V, bool) {
	var zero V
	before := co.snapshot(ctx, key)

	e, ok, err := co.store.Get(ctx, key)
	if err != nil {
		co.hooks.StoreError("get", key, err)
		co.log.Warn("store read failed; treating as miss", Fields{"key": key, "err": err})
		return zero, false
	}
	if !ok {
		return zero, false
	}

	v, err := co.codec.Decode(e.Payload)
	if err != nil {
		co.hooks.SelfHeal(key, "decode")
		co.log.Warn("undecodable entry removed", Fields{"key": key, "err": err})
		if derr := co.store.Delete(ctx, key); derr != nil {
			co.hooks.StoreError("delete", key, derr)
		}
		return zero, false
	}

	// don't promote into memory across an invalidation
	if co.current(ctx, key, before) {
		co.mem.Set(key, memory.Entry[V]{Value: v, JobID: e.JobID, Units: e.UnitCount, CreatedAt: e.CreatedAt, Cost: e.Cost})
	}
	co.hooks.StoreHit(key)
	return v, true
}

func (co *coordinator[V]) Invalidate(ctx context.Context, key string) error {
	if !co.enabled {
		return nil
	}
	_, genErr := co.gen.Bump(ctx, co.genKey(key))
	if genErr != nil {
		co.hooks.StoreError("gen_bump", key, genErr)
	}
	co.mem.Delete(key)
	storeErr := co.store.Delete(ctx, key)
	if storeErr != nil {
		co.hooks.StoreError("delete", key, storeErr)
	}

	if genErr != nil || storeErr != nil {
		err := &InvalidateError{Key: key, GenErr: genErr, StoreErr: storeErr}
		co.log.Error("invalidate incomplete", Fields{"key": key, "err": err})
		return err
	}
	co.log.Info("invalidated", Fields{"key": key})
	return nil
}

func (co *coordinator[V]) InvalidateAll(ctx context.Context) error {
	if !co.enabled {
		return nil
	}
	_, genErr := co.gen.Bump(ctx, co.genKey(epochKey))
	if genErr != nil {
		co.hooks.StoreError("gen_bump", epochKey, genErr)
	}
	co.mem.Clear()
	storeErr := co.store.DeleteAll(ctx)
	if storeErr != nil {
		co.hooks.StoreError("delete_all", "", storeErr)
	}
	if err := errors.Join(genErr, storeErr); err != nil {
		co.log.Error("invalidate all incomplete", Fields{"err": err})
		return fmt.Errorf("invalidate all: %w", err)
	}
	co.log.Info("invalidated all", nil)
	return nil
}

// Stats never fails on the memory side; a store error yields zero persistent
// counts with the error alongside.
func (co *coordinator[V]) Stats(ctx context.Context) (Stats, error) {
	s := Stats{MemoryEntries: co.mem.Len(), InFlight: co.InFlight()}
	ss, err := co.store.Stats(ctx)
	if err != nil {
		co.hooks.StoreError("stats", "", err)
		return s, fmt.Errorf("store stats: %w", err)
	}
	s.PersistentEntries = ss.Count
	s.EstimatedSavings = ss.Cost
	return s, nil
}

func (co *coordinator[V]) genKey(key string) string { return co.ns + ":" + key }

func (co *coordinator[V]) flightKey(key string, s snapshot) string {
	return key + "#" + strconv.FormatUint(s.gen, 10) + "." + strconv.FormatUint(s.epoch, 10)
}

func (co *coordinator[V]) snapshot(ctx context.Context, key string) snapshot {
	gk, ek := co.genKey(key), co.genKey(epochKey)
	m, err := co.gen.SnapshotMany(ctx, []string{gk, ek})
	if err != nil {
		co.hooks.StoreError("gen_snapshot", key, err)
		co.log.Warn("gen snapshot failed; result will not be cached", Fields{"key": key, "err": err})
		return snapshot{}
	}
	return snapshot{gen: m[gk], epoch: m[ek], ok: true}
}

// current reports whether key is still at the generation in s.
func (co *coordinator[V]) current(ctx context.Context, key string, s snapshot) bool {
	if !s.ok {
		return false
	}
	now := co.snapshot(ctx, key)
	return now.ok && now.gen == s.gen && now.epoch == s.epoch
}

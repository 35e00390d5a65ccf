// Package asynchook moves hook delivery off the request path. Events are
// queued to a fixed worker pool and dropped when the queue is full.
//
//	raw := sloghooks.New(slog.Default(), sloghooks.Options{HitEvery: 10})
//	hooks := asynchook.New(raw, 1, 1000) // 1 worker; queue 1000 events
//	defer hooks.Close()
//
//	coord, _ := analysiscache.New[analysis.AggregateResult](analysiscache.Options[analysis.AggregateResult]{
//	    Store: st,
//	    Hooks: hooks,
//	})
package asynchook

import (
	"sync"
	"sync/atomic"

	ac "github.com/unkn0wn-root/analysiscache"
)

type Hooks struct {
	inner   ac.Hooks
	q       chan func()
	wg      sync.WaitGroup
	once    sync.Once
	dropped atomic.Uint64
}

var _ ac.Hooks = (*Hooks)(nil)

func New(inner ac.Hooks, workers, qlen int) *Hooks {
	if workers <= 0 {
		workers = 1
	}
	if qlen <= 0 {
		qlen = 1024
	}

	h := &Hooks{inner: inner, q: make(chan func(), qlen)}
	h.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go func() {
			defer h.wg.Done()
			for f := range h.q {
				f()
			}
		}()
	}
	return h
}

// Close drains queued events and stops the workers. Events sent after Close
// are dropped.
func (h *Hooks) Close() {
	h.once.Do(func() {
		close(h.q)
		h.wg.Wait()
	})
}

// Dropped reports how many events were discarded.
func (h *Hooks) Dropped() uint64 { return h.dropped.Load() }

func (h *Hooks) try(f func()) {
	defer func() {
		// send on closed queue
		if recover() != nil {
			h.dropped.Add(1)
		}
	}()
	select {
	case h.q <- f:
	default:
		h.dropped.Add(1)
	}
}

func (h *Hooks) MemoryHit(k string)         { h.try(func() { h.inner.MemoryHit(k) }) }
func (h *Hooks) StoreHit(k string)          { h.try(func() { h.inner.StoreHit(k) }) }
func (h *Hooks) Miss(k string)              { h.try(func() { h.inner.Miss(k) }) }
func (h *Hooks) GenerationStarted(k string) { h.try(func() { h.inner.GenerationStarted(k) }) }
func (h *Hooks) GenerationShared(k string)  { h.try(func() { h.inner.GenerationShared(k) }) }
func (h *Hooks) StaleWriteSkipped(k string) { h.try(func() { h.inner.StaleWriteSkipped(k) }) }
func (h *Hooks) SelfHeal(k, r string)       { h.try(func() { h.inner.SelfHeal(k, r) }) }
func (h *Hooks) GenerationFailed(k string, err error) {
	h.try(func() { h.inner.GenerationFailed(k, err) })
}
func (h *Hooks) StoreError(op, k string, err error) {
	h.try(func() { h.inner.StoreError(op, k, err) })
}

// Package sloghooks logs coordinator and pipeline events to slog with keys
// redacted and noisy events sampled.
package sloghooks

import (
	"log/slog"
	"sync/atomic"
	"time"

	ac "github.com/unkn0wn-root/analysiscache"
	"github.com/unkn0wn-root/analysiscache/analysis"
	"github.com/unkn0wn-root/analysiscache/internal/util"
)

type Options struct {
	// Sampling to avoid floods; 0/1 = log all.
	HitEvery      uint64
	FallbackEvery uint64
	// Optional key redactor. Defaults to a SHA-256 prefix.
	Redact func(string) string
}

type Hooks struct {
	l    *slog.Logger
	opts Options

	hitCtr      atomic.Uint64
	fallbackCtr atomic.Uint64
}

var (
	_ ac.Hooks        = (*Hooks)(nil)
	_ analysis.Events = (*Hooks)(nil)
)

func New(l *slog.Logger, opts Options) *Hooks {
	return &Hooks{l: l, opts: opts}
}

func (h *Hooks) redact(k string) string {
	if h.opts.Redact != nil {
		return h.opts.Redact(k)
	}
	return util.Digest(k)
}

func sample(n uint64, ctr *atomic.Uint64) bool {
	if n == 0 || n == 1 {
		return true
	}
	return ctr.Add(1)%n == 0
}

func (h *Hooks) MemoryHit(key string) { h.hit("memory", key) }
func (h *Hooks) StoreHit(key string)  { h.hit("store", key) }

func (h *Hooks) hit(tier, key string) {
	if h.l == nil || !sample(h.opts.HitEvery, &h.hitCtr) {
		return
	}
	h.l.Debug("analysiscache.hit", "tier", tier, "key", h.redact(key))
}

func (h *Hooks) Miss(key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("analysiscache.miss", "key", h.redact(key))
}

func (h *Hooks) GenerationStarted(key string) {
	if h.l == nil {
		return
	}
	h.l.Info("analysiscache.generation_started", "key", h.redact(key))
}

func (h *Hooks) GenerationShared(key string) {
	if h.l == nil {
		return
	}
	h.l.Debug("analysiscache.generation_shared", "key", h.redact(key))
}

func (h *Hooks) GenerationFailed(key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Warn("analysiscache.generation_failed", "key", h.redact(key), "err", err)
}

func (h *Hooks) StoreError(op, key string, err error) {
	if h.l == nil {
		return
	}
	h.l.Error("analysiscache.store_error", "op", op, "key", h.redact(key), "err", err)
}

func (h *Hooks) StaleWriteSkipped(key string) {
	if h.l == nil {
		return
	}
	h.l.Info("analysiscache.stale_write_skipped", "key", h.redact(key))
}

func (h *Hooks) SelfHeal(key, reason string) {
	if h.l == nil {
		return
	}
	h.l.Warn("analysiscache.self_heal", "key", h.redact(key), "reason", reason)
}

func (h *Hooks) UnitFallback(index int, reason error) {
	if h.l == nil || !sample(h.opts.FallbackEvery, &h.fallbackCtr) {
		return
	}
	h.l.Warn("analysis.unit_fallback", "unit", index, "reason", reason)
}

func (h *Hooks) AggregateFallback(reason error) {
	if h.l == nil {
		return
	}
	h.l.Warn("analysis.aggregate_fallback", "reason", reason)
}

func (h *Hooks) BatchDone(batch, size int, took time.Duration) {
	if h.l == nil {
		return
	}
	h.l.Debug("analysis.batch_done", "batch", batch, "size", size, "took", took)
}

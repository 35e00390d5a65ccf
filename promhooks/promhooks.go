// Package promhooks exports coordinator and pipeline events as Prometheus
// metrics. One Hooks value serves as both analysiscache.Hooks and
// analysis.Events.
package promhooks

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	ac "github.com/unkn0wn-root/analysiscache"
	"github.com/unkn0wn-root/analysiscache/analysis"
)

type Hooks struct {
	lookups      *prometheus.CounterVec // result: memory_hit, store_hit, miss
	generations  *prometheus.CounterVec // outcome: started, shared, failed
	storeErrors  *prometheus.CounterVec // op
	staleSkipped prometheus.Counter
	selfHeals    *prometheus.CounterVec // reason
	fallbacks    *prometheus.CounterVec // level: unit, aggregate; cause
	batchSeconds prometheus.Histogram
}

var (
	_ ac.Hooks        = (*Hooks)(nil)
	_ analysis.Events = (*Hooks)(nil)
)

// New registers the metrics on reg (prometheus.DefaultRegisterer when nil).
func New(reg prometheus.Registerer) *Hooks {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)
	return &Hooks{
		lookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "analysiscache_lookups_total",
			Help: "Cache lookups by result",
		}, []string{"result"}),
		generations: f.NewCounterVec(prometheus.CounterOpts{
			Name: "analysiscache_generations_total",
			Help: "Generations by outcome",
		}, []string{"outcome"}),
		storeErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "analysiscache_store_errors_total",
			Help: "Store and generation-store errors by operation",
		}, []string{"op"}),
		staleSkipped: f.NewCounter(prometheus.CounterOpts{
			Name: "analysiscache_stale_writes_skipped_total",
			Help: "Results not cached because the key was invalidated while generating",
		}),
		selfHeals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "analysiscache_self_heals_total",
			Help: "Unreadable entries removed on read",
		}, []string{"reason"}),
		fallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "analysis_fallbacks_total",
			Help: "Fallback results substituted by level and cause",
		}, []string{"level", "cause"}),
		batchSeconds: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "analysis_batch_duration_seconds",
			Help:    "Wall time of one unit batch",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8), // 250ms to ~32s
		}),
	}
}

func (h *Hooks) MemoryHit(string) { h.lookups.WithLabelValues("memory_hit").Inc() }
func (h *Hooks) StoreHit(string)  { h.lookups.WithLabelValues("store_hit").Inc() }
func (h *Hooks) Miss(string)      { h.lookups.WithLabelValues("miss").Inc() }

func (h *Hooks) GenerationStarted(string)       { h.generations.WithLabelValues("started").Inc() }
func (h *Hooks) GenerationShared(string)        { h.generations.WithLabelValues("shared").Inc() }
func (h *Hooks) GenerationFailed(string, error) { h.generations.WithLabelValues("failed").Inc() }

func (h *Hooks) StoreError(op, _ string, _ error) { h.storeErrors.WithLabelValues(op).Inc() }
func (h *Hooks) StaleWriteSkipped(string)         { h.staleSkipped.Inc() }
func (h *Hooks) SelfHeal(_, reason string)        { h.selfHeals.WithLabelValues(reason).Inc() }

func (h *Hooks) UnitFallback(_ int, reason error) {
	h.fallbacks.WithLabelValues("unit", cause(reason)).Inc()
}

func (h *Hooks) AggregateFallback(reason error) {
	h.fallbacks.WithLabelValues("aggregate", cause(reason)).Inc()
}

func (h *Hooks) BatchDone(_, _ int, took time.Duration) { h.batchSeconds.Observe(took.Seconds()) }

// cause keeps label cardinality fixed.
func cause(err error) string {
	var missing *analysis.MissingInputError
	switch {
	case errors.As(err, &missing):
		return "missing_input"
	case errors.Is(err, analysis.ErrRefusal):
		return "refusal"
	case errors.Is(err, analysis.ErrNoJSON), errors.Is(err, analysis.ErrInvalidShape):
		return "malformed"
	default:
		return "provider"
	}
}

package main

import (
	"time"

	ac "github.com/unkn0wn-root/analysiscache"
	"github.com/unkn0wn-root/analysiscache/analysis"
)

// tee fans coordinator hooks out to several sinks.
type tee []ac.Hooks

func (t tee) MemoryHit(k string) {
	for _, h := range t {
		h.MemoryHit(k)
	}
}

func (t tee) StoreHit(k string) {
	for _, h := range t {
		h.StoreHit(k)
	}
}

func (t tee) Miss(k string) {
	for _, h := range t {
		h.Miss(k)
	}
}

func (t tee) GenerationStarted(k string) {
	for _, h := range t {
		h.GenerationStarted(k)
	}
}

func (t tee) GenerationShared(k string) {
	for _, h := range t {
		h.GenerationShared(k)
	}
}

func (t tee) GenerationFailed(k string, err error) {
	for _, h := range t {
		h.GenerationFailed(k, err)
	}
}

func (t tee) StoreError(op, k string, err error) {
	for _, h := range t {
		h.StoreError(op, k, err)
	}
}

func (t tee) StaleWriteSkipped(k string) {
	for _, h := range t {
		h.StaleWriteSkipped(k)
	}
}

func (t tee) SelfHeal(k, reason string) {
	for _, h := range t {
		h.SelfHeal(k, reason)
	}
}

type teeEvents []analysis.Events

func (t teeEvents) UnitFallback(i int, reason error) {
	for _, e := range t {
		e.UnitFallback(i, reason)
	}
}

func (t teeEvents) AggregateFallback(reason error) {
	for _, e := range t {
		e.AggregateFallback(reason)
	}
}

func (t teeEvents) BatchDone(batch, size int, took time.Duration) {
	for _, e := range t {
		e.BatchDone(batch, size, took)
	}
}

package asynchook

import (
	"sync/atomic"
	"testing"

	ac "github.com/unkn0wn-root/analysiscache"
)

type counting struct {
	ac.NopHooks
	n     atomic.Int64
	block chan struct{}
}

func (c *counting) Miss(string) {
	if c.block != nil {
		<-c.block
	}
	c.n.Add(1)
}

func TestEventsAreDeliveredBeforeClose(t *testing.T) {
	inner := &counting{}
	h := New(inner, 2, 64)
	for i := 0; i < 50; i++ {
		h.Miss("k")
	}
	h.Close()
	if inner.n.Load() != 50 {
		t.Fatalf("delivered=%d", inner.n.Load())
	}
}

func TestFullQueueDrops(t *testing.T) {
	inner := &counting{block: make(chan struct{})}
	h := New(inner, 1, 1)
	for i := 0; i < 10; i++ {
		h.Miss("k")
	}
	close(inner.block)
	h.Close()
	if h.Dropped() == 0 {
		t.Fatalf("expected drops with a blocked worker and queue of 1")
	}
	if got := inner.n.Load() + int64(h.Dropped()); got != 10 {
		t.Fatalf("delivered+dropped=%d want 10", got)
	}
	h.Miss("after close")
}

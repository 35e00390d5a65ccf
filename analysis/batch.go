package analysis

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	ac "github.com/unkn0wn-root/analysiscache"
)

const (
	DefaultBatchSize  = 5
	DefaultBatchDelay = time.Second
)

// BatchAnalyzer runs units in order-preserving batches. Units within a batch
// run concurrently; batches run one after another with Delay in between.
type BatchAnalyzer struct {
	Analyzer Analyzer
	Size     int            // <= 0 => DefaultBatchSize
	Delay    time.Duration  // 0 => DefaultBatchDelay; < 0 disables the pause
	Fallback FallbackPolicy // used for panics and units skipped after ctx ends
	Logger   ac.Logger
	Events   Events
}

// Batches partitions n items into [start, end) ranges of at most size.
func Batches(n, size int) [][2]int {
	if size <= 0 {
		size = DefaultBatchSize
	}
	out := make([][2]int, 0, (n+size-1)/size)
	for start := 0; start < n; start += size {
		out = append(out, [2]int{start, min(start+size, n)})
	}
	return out
}

// Analyze returns one result per unit, in input order.
func (b *BatchAnalyzer) Analyze(ctx context.Context, units []Unit) []UnitResult {
	size := b.Size
	if size <= 0 {
		size = DefaultBatchSize
	}
	delay := b.Delay
	if delay == 0 {
		delay = DefaultBatchDelay
	}
	fb := b.Fallback
	if fb == nil {
		fb = DefaultFallback{}
	}
	log := b.Logger
	if log == nil {
		log = ac.NopLogger{}
	}
	events := b.Events
	if events == nil {
		events = NopEvents{}
	}

	out := make([]UnitResult, len(units))
	batches := Batches(len(units), size)
	for bi, r := range batches {
		if err := ctx.Err(); err != nil {
			log.Warn("batch analysis interrupted", ac.Fields{"batch": bi, "err": err})
			for i := r[0]; i < len(units); i++ {
				events.UnitFallback(units[i].Index, err)
				out[i] = fb.Unit(units[i], err)
			}
			return out
		}

		began := time.Now()
		var g errgroup.Group
		for i := r[0]; i < r[1]; i++ {
			g.Go(func() error {
				defer func() {
					if p := recover(); p != nil {
						err := fmt.Errorf("analysis: unit %d panicked: %v", units[i].Index, p)
						log.Error("unit analysis panicked", ac.Fields{"unit": units[i].Index, "panic": fmt.Sprint(p)})
						events.UnitFallback(units[i].Index, err)
						out[i] = fb.Unit(units[i], err)
					}
				}()
				out[i] = b.Analyzer.Analyze(ctx, units[i])
				return nil
			})
		}
		_ = g.Wait()

		took := time.Since(began)
		events.BatchDone(bi, r[1]-r[0], took)
		log.Debug("batch done", ac.Fields{"batch": bi + 1, "of": len(batches), "units": r[1] - r[0], "took": took})

		if bi < len(batches)-1 && delay > 0 {
			t := time.NewTimer(delay)
			select {
			case <-t.C:
			case <-ctx.Done():
				t.Stop()
			}
		}
	}
	return out
}

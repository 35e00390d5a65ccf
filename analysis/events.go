package analysis

import "time"

// Events observes the pipeline. Implementations must be cheap and non-blocking.
type Events interface {
	UnitFallback(index int, reason error)
	AggregateFallback(reason error)
	BatchDone(batch, size int, took time.Duration)
}

type NopEvents struct{}

func (NopEvents) UnitFallback(int, error)           {}
func (NopEvents) AggregateFallback(error)           {}
func (NopEvents) BatchDone(int, int, time.Duration) {}

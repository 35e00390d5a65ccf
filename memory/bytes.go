package memory

import (
	"sort"
	"sync"
	"sync/atomic"
	"time"

	c "github.com/unkn0wn-root/analysiscache/codec"
	"github.com/unkn0wn-root/analysiscache/internal/wire"
	pr "github.com/unkn0wn-root/analysiscache/provider"
)

// Bytes keeps encoded entries in a bounded byte provider (ristretto, bigcache).
// The provider may evict or refuse entries; Bytes tracks the keys it wrote so
// Len and Keys stay meaningful, and forgets a key once a Get finds it gone.
type Bytes[V any] struct {
	p     pr.Provider
	codec c.Codec[V]

	mu   sync.Mutex
	keys map[string]struct{}

	dropped atomic.Uint64
}

var _ Cache[struct{}] = (*Bytes[struct{}])(nil)

func NewBytes[V any](p pr.Provider, codec c.Codec[V]) *Bytes[V] {
	if codec == nil {
		codec = c.JSON[V]{}
	}
	return &Bytes[V]{p: p, codec: codec, keys: make(map[string]struct{})}
}

func (b *Bytes[V]) Get(key string) (Entry[V], bool) {
	raw, ok := b.p.Get(key)
	if !ok {
		b.forget(key)
		return Entry[V]{}, false
	}
	we, err := wire.DecodeEntry(raw)
	if err != nil {
		b.drop(key)
		return Entry[V]{}, false
	}
	v, err := b.codec.Decode(we.Payload)
	if err != nil {
		b.drop(key)
		return Entry[V]{}, false
	}
	return Entry[V]{
		Value:     v,
		JobID:     we.JobID,
		Units:     int(we.Units),
		CreatedAt: time.Unix(0, we.CreatedAt),
		Cost:      we.Cost,
	}, true
}

func (b *Bytes[V]) Set(key string, e Entry[V]) {
	payload, err := b.codec.Encode(e.Value)
	if err != nil {
		b.dropped.Add(1)
		return
	}
	raw := wire.EncodeEntry(wire.Entry{
		CreatedAt: e.CreatedAt.UnixNano(),
		Cost:      e.Cost,
		Units:     uint32(e.Units),
		JobID:     e.JobID,
		Payload:   payload,
	})
	if !b.p.Set(key, raw, int64(len(raw))) {
		b.dropped.Add(1)
		b.forget(key)
		return
	}
	b.mu.Lock()
	b.keys[key] = struct{}{}
	b.mu.Unlock()
}

func (b *Bytes[V]) Delete(key string) {
	b.p.Del(key)
	b.forget(key)
}

func (b *Bytes[V]) Clear() {
	b.p.Clear()
	b.mu.Lock()
	b.keys = make(map[string]struct{})
	b.mu.Unlock()
}

// Len counts keys written and not yet observed missing; evictions the
// provider has not reported yet are still counted.
func (b *Bytes[V]) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.keys)
}

func (b *Bytes[V]) Keys() []string {
	b.mu.Lock()
	keys := make([]string, 0, len(b.keys))
	for k := range b.keys {
		keys = append(keys, k)
	}
	b.mu.Unlock()
	sort.Strings(keys)
	return keys
}

// Dropped reports writes that never made it into the provider (codec error or refusal)
// plus entries removed on read because they failed to decode.
func (b *Bytes[V]) Dropped() uint64 { return b.dropped.Load() }

func (b *Bytes[V]) drop(key string) {
	b.dropped.Add(1)
	b.p.Del(key) // self-heal corrupt
	b.forget(key)
}

func (b *Bytes[V]) forget(key string) {
	b.mu.Lock()
	delete(b.keys, key)
	b.mu.Unlock()
}

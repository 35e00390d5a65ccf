package memory

import (
	"sort"
	"sync"
)

// Map is an unbounded map tier. There is no eviction: the working set is one
// entry per analysed job, which stays small for a single process.
type Map[V any] struct {
	mu sync.RWMutex
	m  map[string]Entry[V]
}

var _ Cache[struct{}] = (*Map[struct{}])(nil)

func NewMap[V any]() *Map[V] {
	return &Map[V]{m: make(map[string]Entry[V])}
}

func (c *Map[V]) Get(key string) (Entry[V], bool) {
	c.mu.RLock()
	e, ok := c.m[key]
	c.mu.RUnlock()
	return e, ok
}

func (c *Map[V]) Set(key string, e Entry[V]) {
	c.mu.Lock()
	c.m[key] = e
	c.mu.Unlock()
}

func (c *Map[V]) Delete(key string) {
	c.mu.Lock()
	delete(c.m, key)
	c.mu.Unlock()
}

func (c *Map[V]) Clear() {
	c.mu.Lock()
	c.m = make(map[string]Entry[V])
	c.mu.Unlock()
}

func (c *Map[V]) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.m)
}

func (c *Map[V]) Keys() []string {
	c.mu.RLock()
	keys := make([]string, 0, len(c.m))
	for k := range c.m {
		keys = append(keys, k)
	}
	c.mu.RUnlock()
	sort.Strings(keys)
	return keys
}

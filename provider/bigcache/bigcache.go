package bigcache

import (
	"context"
	"time"

	bc "github.com/allegro/bigcache/v3"

	pr "github.com/unkn0wn-root/analysiscache/provider"
)

// Provider keeps encoded analyses off the Go heap in bigcache shards. Every
// entry shares one lifetime; a result older than Life is re-read from the
// durable store.
type Provider struct {
	c *bc.BigCache
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	Life     time.Duration // 0 => 24h
	MaxMB    int           // 0 => unbounded
	Expected int           // lessons expected in memory at once; 0 => 1024
}

// aggregates with a few dozen unit results land around 8-16 KiB
const entryBytes = 16 << 10

func New(cfg Config) (*Provider, error) {
	life := cfg.Life
	if life <= 0 {
		life = 24 * time.Hour
	}
	expected := cfg.Expected
	if expected <= 0 {
		expected = 1024
	}
	conf := bc.DefaultConfig(life)
	conf.Verbose = false
	conf.CleanWindow = life / 4
	conf.MaxEntriesInWindow = expected
	conf.MaxEntrySize = entryBytes
	conf.HardMaxCacheSize = cfg.MaxMB

	c, err := bc.New(context.Background(), conf)
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(key string) ([]byte, bool) {
	b, err := p.c.Get(key)
	if err != nil {
		return nil, false
	}
	return b, true
}

// Set ignores cost; MaxMB and Life bound the cache.
func (p *Provider) Set(key string, value []byte, _ int64) bool {
	return p.c.Set(key, value) == nil
}

func (p *Provider) Del(key string) { _ = p.c.Delete(key) }

func (p *Provider) Clear() { _ = p.c.Reset() }

func (p *Provider) Close() error { return p.c.Close() }

package ristretto

import (
	"errors"

	rc "github.com/dgraph-io/ristretto"

	pr "github.com/unkn0wn-root/analysiscache/provider"
)

// Provider is a cost-bounded memory tier: cost is the encoded size, so
// MaxBytes caps the bytes of cached analyses and TinyLFU decides which
// lessons stay hot.
type Provider struct {
	c *rc.Cache
}

var _ pr.Provider = (*Provider)(nil)

type Config struct {
	MaxBytes int64 // required
	// AvgEntryBytes sizes the admission counters; 0 => 8 KiB, roughly one
	// encoded lesson aggregate.
	AvgEntryBytes int64
}

const defaultAvgEntry = 8 << 10

var ErrNoBudget = errors.New("ristretto: MaxBytes must be positive")

func New(cfg Config) (*Provider, error) {
	if cfg.MaxBytes <= 0 {
		return nil, ErrNoBudget
	}
	avg := cfg.AvgEntryBytes
	if avg <= 0 {
		avg = defaultAvgEntry
	}
	// ten counters per expected entry
	counters := max(10*cfg.MaxBytes/avg, 1000)
	c, err := rc.NewCache(&rc.Config{
		NumCounters: counters,
		MaxCost:     cfg.MaxBytes,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &Provider{c: c}, nil
}

func (p *Provider) Get(key string) ([]byte, bool) {
	v, ok := p.c.Get(key)
	if !ok {
		return nil, false
	}
	b, ok := v.([]byte)
	if !ok {
		p.c.Del(key)
		return nil, false
	}
	return b, true
}

// Set blocks on the write buffer so a lookup right after write-back hits.
func (p *Provider) Set(key string, value []byte, cost int64) bool {
	if cost <= 0 {
		cost = int64(len(value))
	}
	ok := p.c.Set(key, value, cost)
	p.c.Wait()
	return ok
}

func (p *Provider) Del(key string) { p.c.Del(key) }

func (p *Provider) Clear() { p.c.Clear() }

func (p *Provider) Close() error {
	p.c.Close()
	return nil
}

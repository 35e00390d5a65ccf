// Package redisstore keeps analysis results in Redis hashes.
//
// Durability follows the server's persistence settings (AOF/RDB). Only
// single-process coherence is promised; other writers sharing the namespace
// are last-writer-wins like every other store.
package redisstore

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/unkn0wn-root/analysiscache/store"
)

var ErrNilClient = errors.New("redisstore: nil client")

const (
	fJob     = "job"
	fUnits   = "units"
	fPayload = "payload"
	fCreated = "created"
	fCost    = "cost"
)

type Config struct {
	Client      redis.UniversalClient
	Namespace   string // "" => "analysis"
	CloseClient bool   // set true only if this store exclusively owns the client
}

type Store struct {
	rdb         redis.UniversalClient
	ns          string
	closeClient bool
}

var _ store.Store = (*Store)(nil)

func New(cfg Config) (*Store, error) {
	if cfg.Client == nil {
		return nil, ErrNilClient
	}
	ns := cfg.Namespace
	if ns == "" {
		ns = "analysis"
	}
	return &Store{rdb: cfg.Client, ns: ns, closeClient: cfg.CloseClient}, nil
}

func (s *Store) entryKey(k string) string { return s.ns + ":entry:" + k }
func (s *Store) indexKey() string         { return s.ns + ":index" }

func (s *Store) Get(ctx context.Context, key string) (store.Entry, bool, error) {
	m, err := s.rdb.HGetAll(ctx, s.entryKey(key)).Result()
	if err != nil {
		return store.Entry{}, false, fmt.Errorf("redisstore: get %q: %w", key, err)
	}
	if len(m) == 0 {
		return store.Entry{}, false, nil
	}
	e, err := parseEntry(key, m)
	if err != nil {
		return store.Entry{}, false, fmt.Errorf("redisstore: get %q: %w", key, err)
	}
	return e, true, nil
}

func parseEntry(key string, m map[string]string) (store.Entry, error) {
	units, err := strconv.Atoi(m[fUnits])
	if err != nil {
		return store.Entry{}, fmt.Errorf("units: %w", err)
	}
	created, err := strconv.ParseInt(m[fCreated], 10, 64)
	if err != nil {
		return store.Entry{}, fmt.Errorf("created: %w", err)
	}
	cost, err := strconv.ParseFloat(m[fCost], 64)
	if err != nil {
		return store.Entry{}, fmt.Errorf("cost: %w", err)
	}
	return store.Entry{
		Key:       key,
		JobID:     m[fJob],
		UnitCount: units,
		Payload:   []byte(m[fPayload]),
		CreatedAt: time.Unix(0, created),
		Cost:      cost,
	}, nil
}

func (s *Store) Put(ctx context.Context, e store.Entry) error {
	if e.Key == "" {
		return errors.New("redisstore: empty key")
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	ek := s.entryKey(e.Key)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, ek) // replace, never merge fields from an older entry
		p.HSet(ctx, ek,
			fJob, e.JobID,
			fUnits, strconv.Itoa(e.UnitCount),
			fPayload, e.Payload,
			fCreated, strconv.FormatInt(created.UnixNano(), 10),
			fCost, strconv.FormatFloat(e.Cost, 'f', -1, 64),
		)
		p.SAdd(ctx, s.indexKey(), e.Key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisstore: put %q: %w", e.Key, err)
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, key string) error {
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, s.entryKey(key))
		p.SRem(ctx, s.indexKey(), key)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redisstore: delete %q: %w", key, err)
	}
	return nil
}

func (s *Store) DeleteAll(ctx context.Context) error {
	keys, err := s.rdb.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return fmt.Errorf("redisstore: delete all: %w", err)
	}
	const chunk = 256
	for start := 0; start < len(keys); start += chunk {
		end := min(start+chunk, len(keys))
		ek := make([]string, 0, end-start)
		members := make([]any, 0, end-start)
		for _, k := range keys[start:end] {
			ek = append(ek, s.entryKey(k))
			members = append(members, k)
		}
		_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
			p.Del(ctx, ek...)
			p.SRem(ctx, s.indexKey(), members...)
			return nil
		})
		if err != nil {
			return fmt.Errorf("redisstore: delete all: %w", err)
		}
	}
	return nil
}

func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	keys, err := s.rdb.SMembers(ctx, s.indexKey()).Result()
	if err != nil {
		return store.Stats{}, fmt.Errorf("redisstore: stats: %w", err)
	}
	if len(keys) == 0 {
		return store.Stats{}, nil
	}
	cmds := make([]*redis.StringCmd, len(keys))
	_, err = s.rdb.Pipelined(ctx, func(p redis.Pipeliner) error {
		for i, k := range keys {
			cmds[i] = p.HGet(ctx, s.entryKey(k), fCost)
		}
		return nil
	})
	if err != nil && !errors.Is(err, redis.Nil) {
		return store.Stats{}, fmt.Errorf("redisstore: stats: %w", err)
	}
	var st store.Stats
	for _, c := range cmds {
		v, err := c.Float64()
		if err != nil {
			continue // index member whose hash expired or was removed out of band
		}
		st.Count++
		st.Cost += v
	}
	return st, nil
}

// Close releases the client only when this store owns it.
func (s *Store) Close() error {
	if s.closeClient {
		if err := s.rdb.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
			return err
		}
	}
	return nil
}

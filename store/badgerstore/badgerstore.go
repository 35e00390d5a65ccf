// Package badgerstore keeps analysis results in an embedded BadgerDB.
//
// Values are wire-framed entries under the "analysis:" key prefix, so the
// database can be shared with other prefixes without DeleteAll touching them.
package badgerstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"github.com/unkn0wn-root/analysiscache"
	"github.com/unkn0wn-root/analysiscache/internal/wire"
	"github.com/unkn0wn-root/analysiscache/store"
)

const prefix = "analysis:"

type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string
	// InMemory keeps everything in RAM (tests).
	InMemory bool
	// SyncWrites fsyncs every commit.
	SyncWrites bool
	// GCInterval runs value-log GC periodically; 0 disables.
	GCInterval     time.Duration
	GCDiscardRatio float64
	Logger         analysiscache.Logger // nil => badger logging disabled
}

// DefaultConfig is durable: synced writes and value-log GC every 10 minutes.
func DefaultConfig(path string) Config {
	return Config{
		Path:           path,
		SyncWrites:     true,
		GCInterval:     10 * time.Minute,
		GCDiscardRatio: 0.5,
	}
}

// InMemoryConfig is for tests.
func InMemoryConfig() Config {
	return Config{InMemory: true}
}

type Store struct {
	db *badger.DB

	stopGC chan struct{}
	wg     sync.WaitGroup
	once   sync.Once
}

var _ store.Store = (*Store)(nil)

func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badgerstore: path is required for a persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("badgerstore: create %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}
	opts = opts.WithSyncWrites(cfg.SyncWrites).WithNumVersionsToKeep(1)
	if cfg.Logger != nil {
		opts = opts.WithLogger(badgerLogger{l: cfg.Logger})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}
	s := &Store{db: db, stopGC: make(chan struct{})}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		ratio := cfg.GCDiscardRatio
		if ratio <= 0 || ratio >= 1 {
			ratio = 0.5
		}
		s.wg.Add(1)
		go s.gcLoop(cfg.GCInterval, ratio)
	}
	return s, nil
}

func (s *Store) gcLoop(every time.Duration, ratio float64) {
	defer s.wg.Done()
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-t.C:
			// RunValueLogGC returns ErrNoRewrite when nothing was collected
			for s.db.RunValueLogGC(ratio) == nil {
			}
		case <-s.stopGC:
			return
		}
	}
}

func (s *Store) Get(_ context.Context, key string) (store.Entry, bool, error) {
	var out store.Entry
	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(prefix + key))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			we, err := wire.DecodeEntry(val)
			if err != nil {
				return err
			}
			out = fromWire(key, we)
			return nil
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return store.Entry{}, false, nil
	}
	if err != nil {
		return store.Entry{}, false, fmt.Errorf("badgerstore: get %q: %w", key, err)
	}
	return out, true, nil
}

func (s *Store) Put(_ context.Context, e store.Entry) error {
	if e.Key == "" {
		return errors.New("badgerstore: empty key")
	}
	created := e.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	raw := wire.EncodeEntry(wire.Entry{
		CreatedAt: created.UnixNano(),
		Cost:      e.Cost,
		Units:     uint32(e.UnitCount),
		JobID:     e.JobID,
		Payload:   e.Payload,
	})
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(prefix+e.Key), raw)
	})
	if err != nil {
		return fmt.Errorf("badgerstore: put %q: %w", e.Key, err)
	}
	return nil
}

func (s *Store) Delete(_ context.Context, key string) error {
	err := s.db.Update(func(txn *badger.Txn) error {
		return txn.Delete([]byte(prefix + key))
	})
	if err != nil {
		return fmt.Errorf("badgerstore: delete %q: %w", key, err)
	}
	return nil
}

func (s *Store) DeleteAll(_ context.Context) error {
	if err := s.db.DropPrefix([]byte(prefix)); err != nil {
		return fmt.Errorf("badgerstore: delete all: %w", err)
	}
	return nil
}

func (s *Store) Stats(_ context.Context) (store.Stats, error) {
	var st store.Stats
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.IteratorOptions{Prefix: []byte(prefix), PrefetchValues: true, PrefetchSize: 64})
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				we, err := wire.DecodeEntry(val)
				if err != nil {
					return nil // skip foreign values under our prefix
				}
				st.Count++
				st.Cost += we.Cost
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return store.Stats{}, fmt.Errorf("badgerstore: stats: %w", err)
	}
	return st, nil
}

func (s *Store) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stopGC)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}

func fromWire(key string, we wire.Entry) store.Entry {
	payload := make([]byte, len(we.Payload)) // value buffer is only valid inside the txn
	copy(payload, we.Payload)
	return store.Entry{
		Key:       key,
		JobID:     we.JobID,
		UnitCount: int(we.Units),
		Payload:   payload,
		CreatedAt: time.Unix(0, we.CreatedAt),
		Cost:      we.Cost,
	}
}

type badgerLogger struct{ l analysiscache.Logger }

func (b badgerLogger) Errorf(format string, args ...any) {
	b.l.Error(fmt.Sprintf(format, args...), analysiscache.Fields{"component": "badger"})
}
func (b badgerLogger) Warningf(format string, args ...any) {
	b.l.Warn(fmt.Sprintf(format, args...), analysiscache.Fields{"component": "badger"})
}
func (b badgerLogger) Infof(format string, args ...any) {
	b.l.Info(fmt.Sprintf(format, args...), analysiscache.Fields{"component": "badger"})
}
func (b badgerLogger) Debugf(format string, args ...any) {
	b.l.Debug(fmt.Sprintf(format, args...), analysiscache.Fields{"component": "badger"})
}

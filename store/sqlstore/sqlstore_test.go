package sqlstore

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/unkn0wn-root/analysiscache/store"
)

func openTemp(t *testing.T) (*Store, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "analysis_cache.db")
	s, err := Open(Config{FilePath: path})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s, path
}

func TestPutReplacesPriorValue(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	defer s.Close()

	v1 := store.Entry{Key: "k", JobID: "doc:1", UnitCount: 3, Payload: []byte("v1"), Cost: 0.05}
	v2 := store.Entry{Key: "k", JobID: "doc:1", UnitCount: 4, Payload: []byte("v2"), Cost: 0.06}
	if err := s.Put(ctx, v1); err != nil {
		t.Fatalf("Put v1: %v", err)
	}
	if err := s.Put(ctx, v2); err != nil {
		t.Fatalf("Put v2: %v", err)
	}

	got, ok, err := s.Get(ctx, "k")
	if err != nil || !ok {
		t.Fatalf("Get: ok=%v err=%v", ok, err)
	}
	if string(got.Payload) != "v2" || got.UnitCount != 4 || got.Cost != 0.06 {
		t.Fatalf("Get returned %+v, want v2", got)
	}

	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Count != 1 {
		t.Fatalf("upsert created duplicate rows: count=%d", st.Count)
	}
}

func TestMissDeleteAndStats(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	defer s.Close()

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("miss expected, ok=%v err=%v", ok, err)
	}
	if err := s.Delete(ctx, "missing"); err != nil {
		t.Fatalf("Delete missing: %v", err)
	}

	for i, k := range []string{"a", "b", "c"} {
		e := store.Entry{Key: k, JobID: k, UnitCount: i + 1, Payload: []byte(k), Cost: 0.02}
		if err := s.Put(ctx, e); err != nil {
			t.Fatalf("Put %s: %v", k, err)
		}
	}
	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Count != 3 || st.Cost < 0.0599 || st.Cost > 0.0601 {
		t.Fatalf("Stats=%+v want count=3 cost=0.06", st)
	}

	if err := s.Delete(ctx, "b"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "b"); ok {
		t.Fatalf("deleted key still present")
	}

	if err := s.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	st, err = s.Stats(ctx)
	if err != nil || st.Count != 0 || st.Cost != 0 {
		t.Fatalf("Stats after DeleteAll=%+v err=%v", st, err)
	}
}

func TestEntriesSurviveReopen(t *testing.T) {
	ctx := context.Background()
	s, path := openTemp(t)

	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	e := store.Entry{Key: "lesson_vision_analysis:g7:3", JobID: "g7:3", UnitCount: 12, Payload: []byte(`{"overview":"x"}`), CreatedAt: created, Cost: 0.14}
	if err := s.Put(ctx, e); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(Config{FilePath: path})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()

	got, ok, err := s2.Get(ctx, e.Key)
	if err != nil || !ok {
		t.Fatalf("Get after reopen: ok=%v err=%v", ok, err)
	}
	if string(got.Payload) != string(e.Payload) || got.JobID != e.JobID || got.UnitCount != 12 {
		t.Fatalf("entry changed across reopen: %+v", got)
	}
	if got.CreatedAt.Unix() != created.Unix() {
		t.Fatalf("created_at=%v want %v", got.CreatedAt, created)
	}
}

func TestConcurrentReadsDuringWrites(t *testing.T) {
	ctx := context.Background()
	s, _ := openTemp(t)
	defer s.Close()

	if err := s.Put(ctx, store.Entry{Key: "k", JobID: "j", Payload: []byte("0")}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	var wg sync.WaitGroup
	errs := make(chan error, 64)
	for i := 0; i < 4; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if err := s.Put(ctx, store.Entry{Key: "k", JobID: "j", Payload: []byte("x")}); err != nil {
					errs <- err
					return
				}
			}
		}()
		go func() {
			defer wg.Done()
			for j := 0; j < 20; j++ {
				if _, ok, err := s.Get(ctx, "k"); err != nil || !ok {
					errs <- err
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent access: %v", err)
	}
}

func TestOpenValidatesConfig(t *testing.T) {
	if _, err := Open(Config{}); err == nil {
		t.Fatalf("sqlite without file path should fail")
	}
	if _, err := Open(Config{Driver: Postgres}); err == nil {
		t.Fatalf("postgres without dsn should fail")
	}
	if _, err := Open(Config{Driver: "oracle", DSN: "x"}); err == nil {
		t.Fatalf("unknown driver should fail")
	}
}

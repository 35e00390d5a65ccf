package badgerstore

import (
	"context"
	"testing"

	"github.com/unkn0wn-root/analysiscache/store"
)

func TestBadgerStoreSemantics(t *testing.T) {
	ctx := context.Background()
	s, err := Open(InMemoryConfig())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()

	if _, ok, err := s.Get(ctx, "k"); err != nil || ok {
		t.Fatalf("miss expected, ok=%v err=%v", ok, err)
	}

	if err := s.Put(ctx, store.Entry{Key: "k", JobID: "j", UnitCount: 2, Payload: []byte("v1"), Cost: 0.03}); err != nil {
		t.Fatalf("Put v1: %v", err)
	}
	if err := s.Put(ctx, store.Entry{Key: "k", JobID: "j", UnitCount: 2, Payload: []byte("v2"), Cost: 0.04}); err != nil {
		t.Fatalf("Put v2: %v", err)
	}
	got, ok, err := s.Get(ctx, "k")
	if err != nil || !ok || string(got.Payload) != "v2" {
		t.Fatalf("Get: ok=%v err=%v got=%+v", ok, err, got)
	}

	if err := s.Put(ctx, store.Entry{Key: "other", JobID: "o", Payload: []byte("x"), Cost: 0.01}); err != nil {
		t.Fatalf("Put other: %v", err)
	}
	st, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if st.Count != 2 || st.Cost < 0.0499 || st.Cost > 0.0501 {
		t.Fatalf("Stats=%+v", st)
	}

	if err := s.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "k"); ok {
		t.Fatalf("deleted key still present")
	}

	if err := s.DeleteAll(ctx); err != nil {
		t.Fatalf("DeleteAll: %v", err)
	}
	if st, _ := s.Stats(ctx); st.Count != 0 {
		t.Fatalf("Stats after DeleteAll=%+v", st)
	}
}

func TestBadgerStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	cfg := DefaultConfig(dir)
	cfg.GCInterval = 0
	s, err := Open(cfg)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := s.Put(ctx, store.Entry{Key: "k", JobID: "j", UnitCount: 5, Payload: []byte("persisted")}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	s2, err := Open(cfg)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s2.Close()
	got, ok, err := s2.Get(ctx, "k")
	if err != nil || !ok || string(got.Payload) != "persisted" || got.UnitCount != 5 {
		t.Fatalf("after reopen: ok=%v err=%v got=%+v", ok, err, got)
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	ac "github.com/unkn0wn-root/analysiscache"
	"github.com/unkn0wn-root/analysiscache/analysis"
	"github.com/unkn0wn-root/analysiscache/lesson"
	"github.com/unkn0wn-root/analysiscache/llm"
	"github.com/unkn0wn-root/analysiscache/store/sqlstore"
)

type fixture struct {
	root   string
	dbPath string
	cat    *lesson.Catalog
	vision atomic.Int64
	text   atomic.Int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	root := t.TempDir()
	pages := filepath.Join(root, "g7")
	if err := os.MkdirAll(pages, 0o755); err != nil {
		t.Fatal(err)
	}
	for p := 1; p <= 7; p++ {
		if err := os.WriteFile(filepath.Join(pages, fmt.Sprintf("page-%d.png", p)), []byte{0x89, 'P', 'N', 'G'}, 0o600); err != nil {
			t.Fatal(err)
		}
	}
	cat, err := lesson.ParseCatalog([]byte(`
documents:
  - id: grade7
    pages_dir: g7
    lessons:
      - {number: 1, title: Ratios, start_page: 1, end_page: 7}
      - {number: 2, title: Rates, start_page: 6, end_page: 7}
`))
	if err != nil {
		t.Fatal(err)
	}
	return &fixture{root: root, dbPath: filepath.Join(root, "cache.db"), cat: cat}
}

func (f *fixture) service(t *testing.T) *Service {
	t.Helper()
	st, err := sqlstore.Open(sqlstore.Config{FilePath: f.dbPath})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	coord, err := ac.New[analysis.AggregateResult](ac.Options[analysis.AggregateResult]{Store: st})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = coord.Close(context.Background()) })

	vision := llm.VisionFunc(func(_ context.Context, _ string, asset string) (string, error) {
		f.vision.Add(1)
		time.Sleep(2 * time.Millisecond)
		return fmt.Sprintf(`{"content":"page %s","concepts":["ratio"],"confidence":0.8}`, filepath.Base(asset)), nil
	})
	text := llm.TextFunc(func(context.Context, string, string) (string, error) {
		f.text.Add(1)
		return "```json\n{\"overview\":\"Ratios compare quantities.\",\"vocabulary\":[{\"term\":\"ratio\",\"definition\":\"a comparison\"}]}\n```", nil
	})

	svc, err := New(Options{
		Catalog:     f.cat,
		Locator:     lesson.DirLocator{Root: f.root},
		Coordinator: coord,
		Batch:       &analysis.BatchAnalyzer{Analyzer: analysis.NewUnitAnalyzer(vision, analysis.UnitOptions{}), Size: 5, Delay: time.Millisecond},
		Summarizer:  analysis.NewSummarizer(text, analysis.SummaryOptions{}),
	})
	if err != nil {
		t.Fatal(err)
	}
	return svc
}

func TestConcurrentRequestsRunPipelineOnce(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t)
	id := lesson.NewJobID("grade7", 1)

	const k = 12
	var wg sync.WaitGroup
	errs := make(chan error, k)
	for i := 0; i < k; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r, err := svc.GetOrGenerate(context.Background(), id)
			if err == nil && len(r.Units) != 7 {
				err = fmt.Errorf("units=%d", len(r.Units))
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatal(err)
		}
	}
	if f.vision.Load() != 7 || f.text.Load() != 1 {
		t.Fatalf("vision=%d text=%d; want 7 and 1", f.vision.Load(), f.text.Load())
	}
}

func TestCachedResultSurvivesRestart(t *testing.T) {
	f := newFixture(t)
	id := lesson.NewJobID("grade7", 1)

	first, err := f.service(t).GetOrGenerate(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}

	// new coordinator and memory tier over the same database
	svc := f.service(t)
	r, src, err := svc.Resolve(context.Background(), id)
	if err != nil || src != ac.SourceStore {
		t.Fatalf("src=%s err=%v", src, err)
	}
	if r.Overview != first.Overview || len(r.Units) != 7 || r.Units[6].Content != "page page-7.png" {
		t.Fatalf("r=%+v", r)
	}
	if f.vision.Load() != 7 || f.text.Load() != 1 {
		t.Fatalf("restart triggered provider calls: vision=%d text=%d", f.vision.Load(), f.text.Load())
	}
	if ok, _ := svc.IsCached(context.Background(), id); !ok {
		t.Fatalf("IsCached=false")
	}
}

func TestUnknownJobIsNotCached(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t)
	id := lesson.NewJobID("grade7", 42)

	_, err := svc.GetOrGenerate(context.Background(), id)
	if !errors.Is(err, lesson.ErrJobNotFound) {
		t.Fatalf("err=%v want ErrJobNotFound", err)
	}
	if ok, _ := svc.IsCached(context.Background(), id); ok {
		t.Fatalf("hard failure was cached")
	}
	st, err := svc.Stats(context.Background())
	if err != nil || st.PersistentEntries != 0 || st.MemoryEntries != 0 {
		t.Fatalf("stats=%+v err=%v", st, err)
	}
}

func TestRegenerateRunsOneFreshPipeline(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t)
	id := lesson.NewJobID("grade7", 2)
	ctx := context.Background()

	if _, err := svc.GetOrGenerate(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Regenerate(ctx, id); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.GetOrGenerate(ctx, id); err != nil {
		t.Fatal(err)
	}
	if f.vision.Load() != 4 || f.text.Load() != 2 {
		t.Fatalf("vision=%d text=%d; want 4 and 2", f.vision.Load(), f.text.Load())
	}
}

func TestStatsReportsSavingsAndClear(t *testing.T) {
	f := newFixture(t)
	svc := f.service(t)
	ctx := context.Background()

	res := svc.Warm(ctx, f.cat.Jobs(), 2)
	for _, r := range res {
		if r.Err != nil || r.Source != ac.SourceGenerated {
			t.Fatalf("warm %v: src=%s err=%v", r.ID, r.Source, r.Err)
		}
	}

	st, err := svc.Stats(ctx)
	if err != nil {
		t.Fatal(err)
	}
	want := svc.Cost(7) + svc.Cost(2)
	if st.PersistentEntries != 2 || st.MemoryEntries != 2 || math.Abs(st.EstimatedSavings-want) > 1e-9 {
		t.Fatalf("stats=%+v want savings %.2f", st, want)
	}
	if len(svc.Keys()) != 2 || svc.Keys()[0] != "lesson_vision_analysis:grade7:1" {
		t.Fatalf("keys=%v", svc.Keys())
	}

	if err := svc.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	st, _ = svc.Stats(ctx)
	if st.PersistentEntries != 0 || st.MemoryEntries != 0 {
		t.Fatalf("after clear stats=%+v", st)
	}
}

func TestNewValidatesOptions(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Fatalf("expected error for empty options")
	}
}

package lesson

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const catalogYAML = `
documents:
  - id: grade7
    title: Grade 7 Math
    pages_dir: g7
    lessons:
      - {number: 1, title: Scale Drawings, start_page: 3, end_page: 5}
      - {number: 2, title: Broken, start_page: 9, end_page: 8}
  - id: grade8
    pages_dir: g8
    page_pattern: "p%03d.jpg"
    lessons:
      - {number: 4, title: Slopes, start_page: 1, end_page: 1}
`

func TestJobIDKeyAndParse(t *testing.T) {
	id := NewJobID("grade7", 12)
	if got := id.Key(); got != "lesson_vision_analysis:grade7:12" {
		t.Fatalf("key=%q", got)
	}
	for _, s := range []string{"grade7:12", "lesson_vision_analysis:grade7:12"} {
		got, err := ParseJobID(s)
		if err != nil || got != id {
			t.Fatalf("%q: got %+v err=%v", s, got, err)
		}
	}
	for _, bad := range []string{"grade7", "grade7:x", ":3", "grade7:0", "a:b:c:d", "lesson_text_summary:grade7:12"} {
		if _, err := ParseJobID(bad); err == nil {
			t.Fatalf("%q should not parse", bad)
		}
	}
}

func TestResolveBuildsOrderedUnits(t *testing.T) {
	root := t.TempDir()
	if err := os.MkdirAll(filepath.Join(root, "g7"), 0o755); err != nil {
		t.Fatal(err)
	}
	for _, p := range []string{"page-3.png", "page-5.png"} {
		if err := os.WriteFile(filepath.Join(root, "g7", p), []byte("png"), 0o600); err != nil {
			t.Fatal(err)
		}
	}
	cat, err := ParseCatalog([]byte(catalogYAML))
	if err != nil {
		t.Fatal(err)
	}

	job, err := cat.Resolve(context.Background(), NewJobID("grade7", 1), DirLocator{Root: root})
	if err != nil {
		t.Fatal(err)
	}
	if job.Title != "Scale Drawings" || len(job.Units) != 3 || job.Missing() != 1 {
		t.Fatalf("job=%+v", job)
	}
	for i, u := range job.Units {
		if u.Index != i || u.Page != 3+i {
			t.Fatalf("unit %d = %+v", i, u)
		}
	}
	if job.Units[1].Found || !job.Units[0].Found || !job.Units[2].Found {
		t.Fatalf("found flags wrong: %+v", job.Units)
	}
}

func TestResolveUsesPagePattern(t *testing.T) {
	cat, _ := ParseCatalog([]byte(catalogYAML))
	job, err := cat.Resolve(context.Background(), NewJobID("grade8", 4), DirLocator{Root: "/srv"})
	if err != nil {
		t.Fatal(err)
	}
	if job.Units[0].Asset != filepath.Join("/srv", "g8", "p001.jpg") {
		t.Fatalf("asset=%q", job.Units[0].Asset)
	}
}

func TestResolveUnknownJobsAreHardErrors(t *testing.T) {
	cat, _ := ParseCatalog([]byte(catalogYAML))
	for _, id := range []JobID{NewJobID("nope", 1), NewJobID("grade7", 99), NewJobID("grade7", 2)} {
		_, err := cat.Resolve(context.Background(), id, DirLocator{})
		var je *JobError
		if !errors.Is(err, ErrJobNotFound) || !errors.As(err, &je) || je.ID != id {
			t.Fatalf("%v: err=%v", id, err)
		}
	}
}

func TestParseCatalogRejectsDuplicates(t *testing.T) {
	_, err := ParseCatalog([]byte("documents:\n  - id: a\n  - id: a\n"))
	if err == nil {
		t.Fatalf("expected duplicate error")
	}
	cat, err := ParseCatalog([]byte(catalogYAML))
	if err != nil || len(cat.Jobs()) != 3 || cat.Documents[0].PagePattern != DefaultPagePattern {
		t.Fatalf("cat=%+v err=%v", cat, err)
	}
}

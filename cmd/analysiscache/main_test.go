package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/unkn0wn-root/analysiscache/analysis"
)

const catalogYAML = `documents:
  - id: algebra
    title: Algebra I
    pages_dir: algebra
    lessons:
      - number: 1
        title: Variables
        start_page: 1
        end_page: 3
`

// fakeOpenAI answers chat completions: vision requests (they carry an
// image_url part) get a unit result, everything else a summary.
type fakeOpenAI struct {
	vision atomic.Int32
	text   atomic.Int32
}

func (f *fakeOpenAI) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	body, _ := io.ReadAll(r.Body)
	var content string
	if bytes.Contains(body, []byte("image_url")) {
		f.vision.Add(1)
		content = `{"content":"x = 2","elements":[],"concepts":["variables"],"confidence":0.9}`
	} else {
		f.text.Add(1)
		content = "```json\n" + `{"overview":"Introduces variables.","vocabulary":[{"term":"variable","definition":"a named value"}],"practice":[],"concepts":{"primary":["variables"],"supporting":[]},"teaching_notes":[]}` + "\n```"
	}
	resp := map[string]any{
		"id":      "chatcmpl-1",
		"object":  "chat.completion",
		"created": time.Now().Unix(),
		"model":   "gpt-4o",
		"choices": []map[string]any{{
			"index":         0,
			"finish_reason": "stop",
			"message":       map[string]any{"role": "assistant", "content": content},
		}},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func setup(t *testing.T) (cfgPath string, api *fakeOpenAI) {
	t.Helper()
	dir := t.TempDir()
	api = &fakeOpenAI{}
	srv := httptest.NewServer(api)
	t.Cleanup(srv.Close)

	pages := filepath.Join(dir, "algebra")
	if err := os.MkdirAll(pages, 0o755); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"page-1.png", "page-2.png", "page-3.png"} {
		if err := os.WriteFile(filepath.Join(pages, name), []byte("\x89PNG fake"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.WriteFile(filepath.Join(dir, "catalog.yaml"), []byte(catalogYAML), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := `catalog: ` + filepath.Join(dir, "catalog.yaml") + `
pages_root: ` + dir + `
cache:
  store:
    driver: sqlite
    path: ` + filepath.Join(dir, "db", "cache.db") + `
providers:
  vision: {kind: openai, api_key: test, base_url: ` + srv.URL + `/v1/}
  text: {kind: openai, api_key: test, base_url: ` + srv.URL + `/v1/}
batch: {size: 2, delay: 1ms}
log: {backend: slog, level: error}
`
	cfgPath = filepath.Join(dir, "analysiscache.yaml")
	if err := os.WriteFile(cfgPath, []byte(cfg), 0o644); err != nil {
		t.Fatal(err)
	}
	return cfgPath, api
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestAnalyzeThenServedFromStore(t *testing.T) {
	cfg, api := setup(t)

	out, err := run(t, "-c", cfg, "analyze", "algebra:1")
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	var r analysis.AggregateResult
	if err := json.Unmarshal([]byte(out), &r); err != nil {
		t.Fatalf("output is not a result: %v\n%s", err, out)
	}
	if r.Overview != "Introduces variables." || len(r.Units) != 3 {
		t.Fatalf("unexpected result: %+v", r)
	}
	if api.vision.Load() != 3 || api.text.Load() != 1 {
		t.Fatalf("calls = %d vision, %d text; want 3, 1", api.vision.Load(), api.text.Load())
	}

	// a second process reads the durable tier
	if _, err := run(t, "-c", cfg, "analyze", "algebra:1"); err != nil {
		t.Fatalf("second analyze: %v", err)
	}
	if api.vision.Load() != 3 || api.text.Load() != 1 {
		t.Fatalf("cached analyze called the provider again")
	}

	out, err = run(t, "-c", cfg, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "persistent entries:  1") || !strings.Contains(out, "true") {
		t.Fatalf("status output:\n%s", out)
	}
}

func TestInvalidateAndClear(t *testing.T) {
	cfg, api := setup(t)
	if _, err := run(t, "-c", cfg, "warm"); err != nil {
		t.Fatalf("warm: %v", err)
	}
	if _, err := run(t, "-c", cfg, "invalidate", "algebra:1"); err != nil {
		t.Fatalf("invalidate: %v", err)
	}
	out, err := run(t, "-c", cfg, "status")
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "persistent entries:  0") {
		t.Fatalf("entry survived invalidate:\n%s", out)
	}

	if _, err := run(t, "-c", cfg, "regenerate", "algebra:1"); err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if api.text.Load() != 2 {
		t.Fatalf("text calls = %d, want 2", api.text.Load())
	}
	if _, err := run(t, "-c", cfg, "clear"); err != nil {
		t.Fatalf("clear: %v", err)
	}
}

func TestUnknownJobFails(t *testing.T) {
	cfg, api := setup(t)
	if _, err := run(t, "-c", cfg, "analyze", "algebra:9"); err == nil {
		t.Fatal("expected an error for an unknown lesson")
	}
	if _, err := run(t, "-c", cfg, "analyze", "not-a-job"); err == nil {
		t.Fatal("expected an error for a malformed id")
	}
	if api.vision.Load() != 0 {
		t.Fatal("provider called for an unresolvable job")
	}
}

type recHooks struct{ misses, fails atomic.Int32 }

func (r *recHooks) MemoryHit(string)                 {}
func (r *recHooks) StoreHit(string)                  {}
func (r *recHooks) Miss(string)                      { r.misses.Add(1) }
func (r *recHooks) GenerationStarted(string)         {}
func (r *recHooks) GenerationShared(string)          {}
func (r *recHooks) GenerationFailed(string, error)   { r.fails.Add(1) }
func (r *recHooks) StoreError(string, string, error) {}
func (r *recHooks) StaleWriteSkipped(string)         {}
func (r *recHooks) SelfHeal(string, string)          {}

func TestTeeFansOut(t *testing.T) {
	a, b := &recHooks{}, &recHooks{}
	h := tee{a, b}
	h.Miss("k")
	h.GenerationFailed("k", errors.New("boom"))
	for _, r := range []*recHooks{a, b} {
		if r.misses.Load() != 1 || r.fails.Load() != 1 {
			t.Fatalf("hook not reached: misses=%d fails=%d", r.misses.Load(), r.fails.Load())
		}
	}
}

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestExpand(t *testing.T) {
	t.Setenv("AC_TEST_KEY", "sk-123")
	t.Setenv("AC_TEST_EMPTY", "")
	got := Expand("a=${AC_TEST_KEY} b=${AC_TEST_EMPTY:-fallback} c=${AC_TEST_UNSET} d=${AC_TEST_UNSET:-x:y}")
	if got != "a=sk-123 b=fallback c= d=x:y" {
		t.Fatalf("got %q", got)
	}
}

func TestLoadOverlaysDefaults(t *testing.T) {
	t.Setenv("AC_TEST_OPENAI", "sk-live")
	p := writeFile(t, "analysiscache.yaml", `
cache:
  codec: MsgPack
  store:
    driver: badger
    path: /var/lib/analysis
providers:
  vision:
    kind: gemini
    api_key: ${AC_TEST_OPENAI}
batch:
  delay: 250ms
`)
	cfg, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Cache.Codec != "msgpack" || cfg.Cache.Store.Driver != "badger" || cfg.Cache.Memory.Kind != "map" {
		t.Fatalf("cache=%+v", cfg.Cache)
	}
	if cfg.Providers.Vision.Kind != "gemini" || cfg.Providers.Vision.APIKey != "sk-live" || cfg.Providers.Text.Kind != "openai" {
		t.Fatalf("providers=%+v", cfg.Providers)
	}
	if cfg.Batch.Delay != 250*time.Millisecond || cfg.Batch.Size != 5 {
		t.Fatalf("batch=%+v", cfg.Batch)
	}
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil || cfg.Cache.Store.Driver != "sqlite" || cfg.Cost.Unit != 0.01 {
		t.Fatalf("cfg=%+v err=%v", cfg, err)
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	p := writeFile(t, "bad.yml", `
cache:
  codec: xml
  store:
    driver: postgres
log:
  backend: glog
`)
	_, err := Load(p)
	if err == nil {
		t.Fatalf("expected validation error")
	}
	for _, want := range []string{"cache.codec", "cache.store.dsn", "log.backend"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoadRejectsOtherExtensions(t *testing.T) {
	if _, err := Load(writeFile(t, "cfg.json", "{}")); err == nil {
		t.Fatalf("expected extension error")
	}
}

func TestLoadEnvFiles(t *testing.T) {
	p := writeFile(t, ".env", "AC_TEST_FROM_DOTENV=yes\n")
	t.Cleanup(func() { os.Unsetenv("AC_TEST_FROM_DOTENV") })
	loaded, err := LoadEnvFiles(filepath.Join(t.TempDir(), "missing.env"), p)
	if err != nil || len(loaded) != 1 || os.Getenv("AC_TEST_FROM_DOTENV") != "yes" {
		t.Fatalf("loaded=%v err=%v", loaded, err)
	}
}

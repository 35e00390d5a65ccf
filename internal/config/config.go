// Package config loads the CLI's YAML configuration. ${VAR} and
// ${VAR:-default} are expanded from the environment before parsing; .env
// files can seed the environment first.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Catalog   string          `yaml:"catalog"`
	PagesRoot string          `yaml:"pages_root"`
	Cache     CacheConfig     `yaml:"cache"`
	Redis     RedisConfig     `yaml:"redis"`
	Providers ProvidersConfig `yaml:"providers"`
	Batch     BatchConfig     `yaml:"batch"`
	Summary   SummaryConfig   `yaml:"summary"`
	Cost      CostConfig      `yaml:"cost"`
	Log       LogConfig       `yaml:"log"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type CacheConfig struct {
	Namespace       string       `yaml:"namespace"`
	Codec           string       `yaml:"codec"`             // json, cbor, msgpack
	MaxPayloadBytes int          `yaml:"max_payload_bytes"` // 0 => unlimited
	Memory          MemoryConfig `yaml:"memory"`
	Store           StoreConfig  `yaml:"store"`
	GenStore        string       `yaml:"genstore"` // local, redis
}

type MemoryConfig struct {
	Kind     string        `yaml:"kind"`      // map, bigcache, ristretto
	MaxBytes int64         `yaml:"max_bytes"` // bounded kinds only
	Life     time.Duration `yaml:"life"`      // bigcache entry lifetime
}

type StoreConfig struct {
	Driver      string        `yaml:"driver"` // sqlite, postgres, mysql, badger, redis
	Path        string        `yaml:"path"`   // sqlite file or badger dir
	DSN         string        `yaml:"dsn"`
	BusyTimeout time.Duration `yaml:"busy_timeout"`
	MaxOpen     int           `yaml:"max_open_conns"`
}

type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type ProviderConfig struct {
	Kind              string        `yaml:"kind"` // openai, anthropic, gemini
	Model             string        `yaml:"model"`
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	MaxTokens         int64         `yaml:"max_tokens"`
	Timeout           time.Duration `yaml:"timeout"`
	RequestsPerMinute float64       `yaml:"requests_per_minute"`
	Burst             int           `yaml:"burst"`
}

type ProvidersConfig struct {
	Vision ProviderConfig `yaml:"vision"`
	Text   ProviderConfig `yaml:"text"`
}

type BatchConfig struct {
	Size  int           `yaml:"size"`
	Delay time.Duration `yaml:"delay"`
}

type SummaryConfig struct {
	MaxInput int `yaml:"max_input"`
}

type CostConfig struct {
	Unit      float64 `yaml:"unit"`
	Aggregate float64 `yaml:"aggregate"`
}

type LogConfig struct {
	Backend string `yaml:"backend"` // zap, logrus, slog
	Level   string `yaml:"level"`
	Format  string `yaml:"format"` // json, console
}

type MetricsConfig struct {
	Addr string `yaml:"addr"` // empty => disabled
}

// Default returns a config that works with no file: sqlite under ./data,
// in-process map memory tier, OpenAI for both providers.
func Default() Config {
	return Config{
		Catalog:   "catalog.yaml",
		PagesRoot: ".",
		Cache: CacheConfig{
			Namespace: "analysis",
			Codec:     "json",
			Memory:    MemoryConfig{Kind: "map", MaxBytes: 64 << 20, Life: 24 * time.Hour},
			Store:     StoreConfig{Driver: "sqlite", Path: filepath.Join("data", "analysis_cache.db"), BusyTimeout: 5 * time.Second},
			GenStore:  "local",
		},
		Redis: RedisConfig{Addr: "localhost:6379"},
		Providers: ProvidersConfig{
			Vision: ProviderConfig{Kind: "openai", Timeout: 2 * time.Minute},
			Text:   ProviderConfig{Kind: "openai", Timeout: 2 * time.Minute},
		},
		Batch:   BatchConfig{Size: 5, Delay: time.Second},
		Summary: SummaryConfig{MaxInput: 6000},
		Cost:    CostConfig{Unit: 0.01, Aggregate: 0.02},
		Log:     LogConfig{Backend: "zap", Level: "info", Format: "console"},
	}
}

// Load reads path over Default(). A missing path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return &cfg, cfg.Validate()
	}
	ext := filepath.Ext(path)
	if ext != ".yaml" && ext != ".yml" {
		return nil, fmt.Errorf("config: %s: only .yaml and .yml files are allowed", path)
	}
	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &cfg, cfg.Validate()
		}
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal([]byte(Expand(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadEnvFiles loads the .env files that exist, earlier files winning.
// It returns the files it loaded.
func LoadEnvFiles(files ...string) ([]string, error) {
	var loaded []string
	for _, f := range files {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return loaded, fmt.Errorf("config: load %s: %w", f, err)
		}
		loaded = append(loaded, f)
	}
	return loaded, nil
}

var envRef = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// Expand replaces ${VAR} and ${VAR:-default}. An unset or empty VAR takes the
// default, or "" without one.
func Expand(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(m string) string {
		sub := envRef.FindStringSubmatch(m)
		if v := os.Getenv(sub[1]); v != "" {
			return v
		}
		return sub[2]
	})
}

func (c *Config) normalize() {
	lower := func(s *string) { *s = strings.ToLower(strings.TrimSpace(*s)) }
	lower(&c.Cache.Codec)
	lower(&c.Cache.Memory.Kind)
	lower(&c.Cache.Store.Driver)
	lower(&c.Cache.GenStore)
	lower(&c.Providers.Vision.Kind)
	lower(&c.Providers.Text.Kind)
	lower(&c.Log.Backend)
}

func (c *Config) Validate() error {
	var errs []error
	oneOf := func(field, v string, allowed ...string) {
		for _, a := range allowed {
			if v == a {
				return
			}
		}
		errs = append(errs, fmt.Errorf("%s: %q is not one of %s", field, v, strings.Join(allowed, ", ")))
	}
	oneOf("cache.codec", c.Cache.Codec, "json", "cbor", "msgpack")
	oneOf("cache.memory.kind", c.Cache.Memory.Kind, "map", "bigcache", "ristretto")
	oneOf("cache.store.driver", c.Cache.Store.Driver, "sqlite", "postgres", "mysql", "badger", "redis")
	oneOf("cache.genstore", c.Cache.GenStore, "local", "redis")
	oneOf("providers.vision.kind", c.Providers.Vision.Kind, "openai", "anthropic", "gemini")
	oneOf("providers.text.kind", c.Providers.Text.Kind, "openai", "anthropic", "gemini")
	oneOf("log.backend", c.Log.Backend, "zap", "logrus", "slog")

	switch c.Cache.Store.Driver {
	case "postgres", "mysql":
		if c.Cache.Store.DSN == "" {
			errs = append(errs, fmt.Errorf("cache.store.dsn is required for %s", c.Cache.Store.Driver))
		}
	case "sqlite", "badger":
		if c.Cache.Store.Path == "" {
			errs = append(errs, fmt.Errorf("cache.store.path is required for %s", c.Cache.Store.Driver))
		}
	}
	if c.Batch.Size < 0 || c.Summary.MaxInput < 0 || c.Cost.Unit < 0 || c.Cost.Aggregate < 0 {
		errs = append(errs, errors.New("batch.size, summary.max_input and cost values must not be negative"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	return nil
}

// UsesRedis reports whether any component needs the redis client.
func (c *Config) UsesRedis() bool {
	return c.Cache.Store.Driver == "redis" || c.Cache.GenStore == "redis"
}

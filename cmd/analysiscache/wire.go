package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	ac "github.com/unkn0wn-root/analysiscache"
	"github.com/unkn0wn-root/analysiscache/analysis"
	"github.com/unkn0wn-root/analysiscache/codec"
	"github.com/unkn0wn-root/analysiscache/genstore"
	asynchook "github.com/unkn0wn-root/analysiscache/hooks/async"
	"github.com/unkn0wn-root/analysiscache/internal/config"
	"github.com/unkn0wn-root/analysiscache/lesson"
	"github.com/unkn0wn-root/analysiscache/llm"
	"github.com/unkn0wn-root/analysiscache/llm/anthropic"
	"github.com/unkn0wn-root/analysiscache/llm/gemini"
	"github.com/unkn0wn-root/analysiscache/llm/openai"
	logruslog "github.com/unkn0wn-root/analysiscache/log/logrus"
	sloglog "github.com/unkn0wn-root/analysiscache/log/slog"
	zaplog "github.com/unkn0wn-root/analysiscache/log/zap"
	"github.com/unkn0wn-root/analysiscache/memory"
	"github.com/unkn0wn-root/analysiscache/promhooks"
	"github.com/unkn0wn-root/analysiscache/provider/bigcache"
	"github.com/unkn0wn-root/analysiscache/provider/ristretto"
	"github.com/unkn0wn-root/analysiscache/service"
	"github.com/unkn0wn-root/analysiscache/sloghooks"
	"github.com/unkn0wn-root/analysiscache/store"
	"github.com/unkn0wn-root/analysiscache/store/badgerstore"
	"github.com/unkn0wn-root/analysiscache/store/redisstore"
	"github.com/unkn0wn-root/analysiscache/store/sqlstore"
)

type result = analysis.AggregateResult

// app is everything a command needs, built once per invocation.
type app struct {
	cfg      *config.Config
	log      ac.Logger
	catalog  *lesson.Catalog
	coord    service.Coordinator
	svc      *service.Service
	registry *prometheus.Registry

	closers []func() error
}

func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	return errors.Join(errs...)
}

func buildApp(ctx context.Context, cfg *config.Config) (a *app, err error) {
	a = &app{cfg: cfg, registry: prometheus.NewRegistry()}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	log, slogger, sync, err := buildLogger(cfg.Log)
	if err != nil {
		return nil, err
	}
	a.log = log
	a.closers = append(a.closers, sync)

	if a.catalog, err = lesson.LoadCatalog(cfg.Catalog); err != nil {
		return nil, err
	}

	var rdb redis.UniversalClient
	if cfg.UsesRedis() {
		rdb = redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
		if err := rdb.Ping(ctx).Err(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("redis %s: %w", cfg.Redis.Addr, err)
		}
		a.closers = append(a.closers, rdb.Close)
	}

	cdc, err := buildCodec(cfg.Cache)
	if err != nil {
		return nil, err
	}
	mem, err := buildMemory(cfg.Cache.Memory, cdc, a)
	if err != nil {
		return nil, err
	}
	st, err := buildStore(cfg.Cache.Store, cfg.Cache.Namespace, rdb, log)
	if err != nil {
		return nil, err
	}

	var gens genstore.GenStore
	if cfg.Cache.GenStore == "redis" {
		gens = genstore.NewRedis(rdb, cfg.Cache.Namespace, 30*24*time.Hour)
	}

	metrics := promhooks.New(a.registry)
	hooks := tee{metrics}
	events := teeEvents{metrics}
	if slogger != nil {
		raw := sloghooks.New(slogger, sloghooks.Options{HitEvery: 10})
		async := asynchook.New(raw, 1, 1024)
		a.closers = append(a.closers, func() error { async.Close(); return nil })
		hooks = append(hooks, async)
		events = append(events, raw)
	}

	coord, err := ac.New[result](ac.Options[result]{
		Namespace: cfg.Cache.Namespace,
		Memory:    mem,
		Store:     st,
		Codec:     cdc,
		Logger:    log,
		Hooks:     hooks,
		GenStore:  gens,
	})
	if err != nil {
		_ = st.Close()
		return nil, err
	}
	a.coord = coord
	a.closers = append(a.closers, func() error { return coord.Close(context.Background()) })

	vision, err := buildVision(ctx, cfg.Providers.Vision)
	if err != nil {
		return nil, err
	}
	text, err := buildText(ctx, cfg.Providers.Text)
	if err != nil {
		return nil, err
	}

	a.svc, err = service.New(service.Options{
		Catalog:     a.catalog,
		Locator:     lesson.DirLocator{Root: cfg.PagesRoot},
		Coordinator: coord,
		Batch: &analysis.BatchAnalyzer{
			Analyzer: analysis.NewUnitAnalyzer(vision, analysis.UnitOptions{Logger: log, Events: events}),
			Size:     cfg.Batch.Size,
			Delay:    cfg.Batch.Delay,
			Logger:   log,
			Events:   events,
		},
		Summarizer:    analysis.NewSummarizer(text, analysis.SummaryOptions{MaxInput: cfg.Summary.MaxInput, Logger: log, Events: events}),
		UnitCost:      cfg.Cost.Unit,
		AggregateCost: cfg.Cost.Aggregate,
		Logger:        log,
	})
	if err != nil {
		return nil, err
	}
	return a, nil
}

// buildLogger returns the configured Logger, the slog logger when that is
// the backend (it also drives sloghooks), and a flush func.
func buildLogger(cfg config.LogConfig) (ac.Logger, *slog.Logger, func() error, error) {
	nop := func() error { return nil }
	switch cfg.Backend {
	case "logrus":
		l := logrus.New()
		l.SetOutput(os.Stderr)
		lvl, err := logrus.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("log level: %w", err)
		}
		l.SetLevel(lvl)
		if cfg.Format == "json" {
			l.SetFormatter(&logrus.JSONFormatter{})
		}
		return logruslog.New(l, "analysiscache"), nil, nop, nil
	case "slog":
		var lvl slog.Level
		if err := lvl.UnmarshalText([]byte(cfg.Level)); err != nil {
			return nil, nil, nil, fmt.Errorf("log level: %w", err)
		}
		opts := &slog.HandlerOptions{Level: lvl}
		var h slog.Handler = slog.NewTextHandler(os.Stderr, opts)
		if cfg.Format == "json" {
			h = slog.NewJSONHandler(os.Stderr, opts)
		}
		l := slog.New(h)
		return sloglog.Logger{L: l}, l, nop, nil
	default:
		lvl, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("log level: %w", err)
		}
		zc := zap.NewDevelopmentConfig()
		if cfg.Format == "json" {
			zc = zap.NewProductionConfig()
		}
		zc.Level = zap.NewAtomicLevelAt(lvl)
		l, err := zc.Build()
		if err != nil {
			return nil, nil, nil, err
		}
		return zaplog.New(l), nil, func() error { _ = l.Sync(); return nil }, nil
	}
}

func buildCodec(cfg config.CacheConfig) (codec.Codec[result], error) {
	c, err := codec.ByName[result](cfg.Codec)
	if err != nil {
		return nil, err
	}
	if cfg.MaxPayloadBytes > 0 {
		c = codec.Limit[result]{Inner: c, MaxDecode: cfg.MaxPayloadBytes}
	}
	return c, nil
}

func buildMemory(cfg config.MemoryConfig, cdc codec.Codec[result], a *app) (memory.Cache[result], error) {
	switch cfg.Kind {
	case "bigcache":
		p, err := bigcache.New(bigcache.Config{Life: cfg.Life, MaxMB: int(cfg.MaxBytes >> 20)})
		if err != nil {
			return nil, fmt.Errorf("bigcache: %w", err)
		}
		a.closers = append(a.closers, p.Close)
		return memory.NewBytes[result](p, cdc), nil
	case "ristretto":
		p, err := ristretto.New(ristretto.Config{MaxBytes: cfg.MaxBytes})
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, p.Close)
		return memory.NewBytes[result](p, cdc), nil
	default:
		return memory.NewMap[result](), nil
	}
}

func buildStore(cfg config.StoreConfig, ns string, rdb redis.UniversalClient, log ac.Logger) (store.Store, error) {
	switch cfg.Driver {
	case "badger":
		bc := badgerstore.DefaultConfig(cfg.Path)
		bc.Logger = log
		return badgerstore.Open(bc)
	case "redis":
		return redisstore.New(redisstore.Config{Client: rdb, Namespace: ns})
	default:
		if cfg.Path != "" && cfg.Driver == "sqlite" {
			if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
				return nil, err
			}
		}
		return sqlstore.Open(sqlstore.Config{
			Driver:       sqlstore.Driver(cfg.Driver),
			FilePath:     cfg.Path,
			DSN:          cfg.DSN,
			MaxOpenConns: cfg.MaxOpen,
			BusyTimeout:  cfg.BusyTimeout,
		})
	}
}

func buildVision(ctx context.Context, cfg config.ProviderConfig) (llm.VisionProvider, error) {
	var p llm.VisionProvider
	switch cfg.Kind {
	case "anthropic":
		p = anthropic.New(anthropic.Config{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL, MaxTokens: cfg.MaxTokens})
	case "gemini":
		g, err := gemini.New(ctx, gemini.Config{APIKey: cfg.APIKey, Model: cfg.Model})
		if err != nil {
			return nil, err
		}
		p = g
	default:
		p = openai.New(openai.Config{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL, MaxTokens: cfg.MaxTokens, Timeout: cfg.Timeout})
	}
	return llm.LimitVision(p, cfg.RequestsPerMinute, cfg.Burst), nil
}

func buildText(ctx context.Context, cfg config.ProviderConfig) (llm.TextProvider, error) {
	var p llm.TextProvider
	switch cfg.Kind {
	case "anthropic":
		p = anthropic.New(anthropic.Config{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL, MaxTokens: cfg.MaxTokens})
	case "gemini":
		g, err := gemini.New(ctx, gemini.Config{APIKey: cfg.APIKey, Model: cfg.Model})
		if err != nil {
			return nil, err
		}
		p = g
	default:
		p = openai.New(openai.Config{APIKey: cfg.APIKey, Model: cfg.Model, BaseURL: cfg.BaseURL, MaxTokens: cfg.MaxTokens, Timeout: cfg.Timeout})
	}
	return llm.LimitText(p, cfg.RequestsPerMinute, cfg.Burst), nil
}

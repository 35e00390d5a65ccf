// Package service is the entry point callers use: lesson jobs in, cached
// aggregate analyses out.
package service

import (
	"context"
	"errors"
	"time"

	"golang.org/x/sync/errgroup"

	ac "github.com/unkn0wn-root/analysiscache"
	"github.com/unkn0wn-root/analysiscache/analysis"
	"github.com/unkn0wn-root/analysiscache/lesson"
)

const (
	DefaultUnitCost      = 0.01
	DefaultAggregateCost = 0.02
)

// Coordinator is the cache the service generates through.
type Coordinator = ac.Coordinator[analysis.AggregateResult]

type Options struct {
	Catalog     *lesson.Catalog
	Locator     lesson.Locator
	Coordinator Coordinator
	Batch       *analysis.BatchAnalyzer
	Summarizer  *analysis.Summarizer

	UnitCost      float64 // per unit; 0 => DefaultUnitCost
	AggregateCost float64 // per job; 0 => DefaultAggregateCost
	Logger        ac.Logger
}

type Service struct {
	catalog  *lesson.Catalog
	locator  lesson.Locator
	coord    Coordinator
	batch    *analysis.BatchAnalyzer
	summ     *analysis.Summarizer
	unitCost float64
	aggCost  float64
	log      ac.Logger
}

func New(opts Options) (*Service, error) {
	switch {
	case opts.Catalog == nil:
		return nil, errors.New("service: Catalog is required")
	case opts.Locator == nil:
		return nil, errors.New("service: Locator is required")
	case opts.Coordinator == nil:
		return nil, errors.New("service: Coordinator is required")
	case opts.Batch == nil || opts.Batch.Analyzer == nil:
		return nil, errors.New("service: Batch with an Analyzer is required")
	case opts.Summarizer == nil:
		return nil, errors.New("service: Summarizer is required")
	}
	s := &Service{
		catalog:  opts.Catalog,
		locator:  opts.Locator,
		coord:    opts.Coordinator,
		batch:    opts.Batch,
		summ:     opts.Summarizer,
		unitCost: opts.UnitCost,
		aggCost:  opts.AggregateCost,
		log:      opts.Logger,
	}
	if s.unitCost == 0 {
		s.unitCost = DefaultUnitCost
	}
	if s.aggCost == 0 {
		s.aggCost = DefaultAggregateCost
	}
	if s.log == nil {
		s.log = ac.NopLogger{}
	}
	return s, nil
}

// GetOrGenerate returns the analysis for id, generating it at most once no
// matter how many callers ask concurrently.
func (s *Service) GetOrGenerate(ctx context.Context, id lesson.JobID) (analysis.AggregateResult, error) {
	r, _, err := s.Resolve(ctx, id)
	return r, err
}

// Resolve is GetOrGenerate that also reports where the result came from.
func (s *Service) Resolve(ctx context.Context, id lesson.JobID) (analysis.AggregateResult, ac.Source, error) {
	return s.coord.Resolve(ctx, id.Key(), func(gctx context.Context) (ac.Generated[analysis.AggregateResult], error) {
		return s.generate(gctx, id)
	})
}

func (s *Service) generate(ctx context.Context, id lesson.JobID) (ac.Generated[analysis.AggregateResult], error) {
	var g ac.Generated[analysis.AggregateResult]
	job, err := s.catalog.Resolve(ctx, id, s.locator)
	if err != nil {
		return g, err
	}
	began := time.Now()
	s.log.Info("analyzing lesson", ac.Fields{"job": id.String(), "units": len(job.Units), "missing": job.Missing()})

	results := s.batch.Analyze(ctx, job.Units)
	agg := s.summ.Summarize(ctx, results, analysis.ConcatContent(results))

	g.Value = agg
	g.JobID = id.String()
	g.Units = len(job.Units)
	g.Cost = s.Cost(len(job.Units))
	s.log.Info("lesson analyzed", ac.Fields{
		"job":       id.String(),
		"fallbacks": agg.FallbackCount(),
		"degraded":  agg.Degraded,
		"cost":      g.Cost,
		"took":      time.Since(began),
	})
	return g, nil
}

// Cost is the estimated provider spend of one generation over units pages.
func (s *Service) Cost(units int) float64 {
	return float64(units)*s.unitCost + s.aggCost
}

func (s *Service) Invalidate(ctx context.Context, id lesson.JobID) error {
	return s.coord.Invalidate(ctx, id.Key())
}

// Regenerate drops any cached result for id and generates a fresh one.
func (s *Service) Regenerate(ctx context.Context, id lesson.JobID) (analysis.AggregateResult, error) {
	if err := s.Invalidate(ctx, id); err != nil {
		return analysis.AggregateResult{}, err
	}
	return s.GetOrGenerate(ctx, id)
}

func (s *Service) IsCached(ctx context.Context, id lesson.JobID) (bool, error) {
	_, ok, err := s.coord.Lookup(ctx, id.Key())
	return ok, err
}

// Clear removes every cached analysis from both tiers.
func (s *Service) Clear(ctx context.Context) error { return s.coord.InvalidateAll(ctx) }

func (s *Service) Stats(ctx context.Context) (ac.Stats, error) { return s.coord.Stats(ctx) }

// Keys lists the keys held in the memory tier.
func (s *Service) Keys() []string { return s.coord.Keys() }

// WarmResult is the outcome of one job in Warm.
type WarmResult struct {
	ID     lesson.JobID
	Source ac.Source
	Err    error
}

// Warm resolves ids with at most concurrency jobs in flight. Per-job errors
// are reported in the results, not returned.
func (s *Service) Warm(ctx context.Context, ids []lesson.JobID, concurrency int) []WarmResult {
	out := make([]WarmResult, len(ids))
	var g errgroup.Group
	g.SetLimit(max(concurrency, 1))
	for i, id := range ids {
		g.Go(func() error {
			_, src, err := s.Resolve(ctx, id)
			out[i] = WarmResult{ID: id, Source: src, Err: err}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

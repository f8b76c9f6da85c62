// Package analyzer runs control flow analysis over many functions in
// parallel, reusing cached summaries when the function text is unchanged.
package analyzer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/l3aro/go-asm-flow/internal/log"
	"github.com/l3aro/go-asm-flow/pkg/asm"
	"github.com/l3aro/go-asm-flow/pkg/cache"
	"github.com/l3aro/go-asm-flow/pkg/cfg"
	"github.com/l3aro/go-asm-flow/pkg/source"
)

// Options configures an Analyzer.
type Options struct {
	Dialect  asm.Dialect
	Strategy cfg.LoopStrategy // Defaults to cfg.PathClosure
	Workers  int              // Defaults to GOMAXPROCS
	Cache    cache.Cache      // Optional
	Logger   log.Logger       // Defaults to a discarding logger
}

// Result is the outcome of analyzing one function.
type Result struct {
	Function *source.Function
	Info     cfg.Info
	Graph    *cfg.Function // Nil when the result came from the cache
	Cached   bool
	Err      error
}

// Defects returns the defects found in the function.
func (r Result) Defects() []cfg.Defect {
	return r.Info.Defects
}

// Analyzer analyzes functions concurrently.
type Analyzer struct {
	opts Options
}

// New creates an Analyzer.
func New(opts Options) *Analyzer {
	if opts.Dialect.Branches == nil {
		opts.Dialect = asm.RX()
	}
	if opts.Strategy == nil {
		opts.Strategy = cfg.PathClosure{}
	}
	if opts.Workers <= 0 {
		opts.Workers = runtime.GOMAXPROCS(0)
	}
	if opts.Logger == nil {
		opts.Logger = log.Discard()
	}
	return &Analyzer{opts: opts}
}

// Analyze analyzes fns with at most Workers functions in flight. Results are
// returned in the order of fns. A function that fails to analyze records the
// error on its result; only cancellation of ctx aborts the batch.
func (a *Analyzer) Analyze(ctx context.Context, fns []*source.Function) ([]Result, error) {
	results := make([]Result, len(fns))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(a.opts.Workers)
	for i, fn := range fns {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = a.analyzeOne(fn)
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		// Cancellation may land after the last function was scheduled.
		err = ctx.Err()
	}
	if err != nil {
		return nil, fmt.Errorf("analyzing functions: %w", err)
	}
	return results, nil
}

// AnalyzeFiles analyzes every function of files.
func (a *Analyzer) AnalyzeFiles(ctx context.Context, files []*source.File) ([]Result, error) {
	var fns []*source.Function
	for _, f := range files {
		fns = append(fns, f.Functions...)
	}
	return a.Analyze(ctx, fns)
}

func (a *Analyzer) analyzeOne(fn *source.Function) Result {
	logger := a.opts.Logger.With("file", fn.File, "function", fn.Name)
	res := Result{Function: fn}

	key := a.cacheKey(fn)
	if a.opts.Cache != nil {
		err := cache.GetValue(a.opts.Cache, key, &res.Info)
		switch {
		case err == nil:
			logger.Debug("cache hit")
			res.Cached = true
			a.logDefects(logger, res.Info.Defects)
			return res
		case !errors.Is(err, cache.ErrKeyNotFound):
			logger.Warn("discarding cache entry", "error", err)
		}
	}

	logger.Debug("analyzing", "lines", len(fn.Lines))
	f, err := cfg.Analyze(fn.Name, fn.Lines,
		cfg.WithDialect(a.opts.Dialect),
		cfg.WithLoopStrategy(a.opts.Strategy),
		cfg.WithSourceRange(fn.StartLine, fn.EndLine),
	)
	if err != nil {
		logger.Error("analysis failed", "error", err)
		res.Err = err
		return res
	}
	res.Graph = f
	res.Info = f.Info()
	a.logDefects(logger, res.Info.Defects)

	if a.opts.Cache != nil {
		if err := cache.SetValue(a.opts.Cache, key, res.Info); err != nil {
			logger.Warn("caching result", "error", err)
		}
	}
	return res
}

func (a *Analyzer) logDefects(logger log.Logger, defects []cfg.Defect) {
	for _, d := range defects {
		logger.Warn("defect", "kind", d.Kind, "block", d.BlockID, "detail", d.String())
	}
}

// cacheKey identifies fn's text together with everything that changes its
// analysis.
func (a *Analyzer) cacheKey(fn *source.Function) string {
	return cache.Key(
		strconv.Itoa(cache.FormatVersion),
		a.opts.Dialect.Fingerprint(),
		a.opts.Strategy.Name(),
		fn.Name,
		strconv.Itoa(fn.StartLine),
		strconv.Itoa(fn.EndLine),
		strings.Join(fn.Lines, "\n"),
	)
}

package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/jocelyn-stericker/satie-sub004/pkg/cache"
	"github.com/jocelyn-stericker/satie-sub004/pkg/core/document"
	"github.com/jocelyn-stericker/satie-sub004/pkg/core/engine"
	"github.com/jocelyn-stericker/satie-sub004/pkg/errors"
	"github.com/jocelyn-stericker/satie-sub004/pkg/observability"
)

// Runner encapsulates pipeline execution with caching.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options and documents.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute validates a copy of doc and lays it out. In approximate mode
// validation is skipped and every measure is estimated on its own.
func (r *Runner) Execute(ctx context.Context, doc *document.Document, opts Options) (*Result, error) {
	if doc == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no document")
	}
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}

	result := &Result{Document: doc.Clone()}

	// Stage 1: Validate
	if !opts.Approximate {
		start := time.Now()
		report, err := r.Validate(ctx, result.Document, opts)
		if err != nil {
			return nil, fmt.Errorf("validate: %w", err)
		}
		result.Report = report
		result.Stats.ValidateTime = time.Since(start)
		result.Stats.Passes = report.Passes
		result.Stats.Splits = len(report.Splits)
	}
	result.Stats.Measures = len(result.Document.Measures)

	// Stage 2: Layout
	start := time.Now()
	layouts, info, err := r.LayoutWithCacheInfo(ctx, result.Document, opts)
	if err != nil {
		return nil, fmt.Errorf("layout: %w", err)
	}
	result.Layouts = layouts
	result.CacheInfo = info
	result.Stats.LayoutTime = time.Since(start)
	result.Width = TotalWidth(layouts)

	r.Logger.Info("laid out score",
		"measures", result.Stats.Measures,
		"width", result.Width,
		"cached", info.MeasureHits,
		"duration", result.Stats.LayoutTime)

	return result, nil
}

// Validate validates doc in place.
func (r *Runner) Validate(ctx context.Context, doc *document.Document, opts Options) (*engine.Report, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, err
	}
	hooks := observability.Pipeline()

	n := 0
	if doc != nil {
		n = len(doc.Measures)
	}
	hooks.OnValidateStart(ctx, n)
	start := time.Now()

	report, err := engine.Validate(ctx, opts.EngineOptions(doc), opts.Memo)
	if report != nil {
		for _, s := range report.Splits {
			hooks.OnMeasureSplit(ctx, s.UUID, s.MaxDiv)
		}
	}
	passes, splits := 0, 0
	if report != nil {
		passes, splits = report.Passes, len(report.Splits)
	}
	hooks.OnValidateComplete(ctx, passes, splits, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	r.Logger.Info("validated score",
		"measures", len(doc.Measures),
		"passes", report.Passes,
		"splits", len(report.Splits),
		"skipped", report.Skipped,
		"duration", time.Since(start))
	return report, nil
}

// Layout is a convenience wrapper that calls LayoutWithCacheInfo and
// discards the cache info.
func (r *Runner) Layout(ctx context.Context, doc *document.Document, opts Options) ([]*engine.MeasureLayout, error) {
	layouts, _, err := r.LayoutWithCacheInfo(ctx, doc, opts)
	return layouts, err
}

// LayoutWithCacheInfo lays out a validated document as one line.
//
// A whole-line cache hit returns immediately. Otherwise the line is
// planned sequentially and measures are laid out on opts.Workers
// goroutines, each consulting the measure cache first. Layouts read from
// the cache carry geometry only: their Model, Attributes and StaffStates
// fields are not restored.
func (r *Runner) LayoutWithCacheInfo(ctx context.Context, doc *document.Document, opts Options) ([]*engine.MeasureLayout, CacheInfo, error) {
	var info CacheInfo
	if doc == nil {
		return nil, info, errors.New(errors.ErrCodeInvalidInput, "no document")
	}
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, info, err
	}
	hooks := observability.Pipeline()
	hooks.OnLayoutStart(ctx, len(doc.Measures))
	start := time.Now()

	layouts, info, err := r.layout(ctx, doc, opts)
	hooks.OnLayoutComplete(ctx, len(doc.Measures), time.Since(start), err)
	return layouts, info, err
}

func (r *Runner) layout(ctx context.Context, doc *document.Document, opts Options) ([]*engine.MeasureLayout, CacheInfo, error) {
	var info CacheInfo
	docHash, err := cache.HashJSON(doc)
	if err != nil {
		return nil, info, fmt.Errorf("hash document: %w", err)
	}
	docKey := r.Keyer.DocumentKey(docHash, opts.DocumentKeyOpts())
	if layouts, ok := r.readCached(ctx, docKey, "document", opts); ok {
		info.DocumentHit = true
		return layouts, info, nil
	}

	plan, err := engine.PlanLine(ctx, opts.EngineOptions(doc))
	if err != nil {
		return nil, info, err
	}

	var hits, misses atomic.Int64
	layouts := make([]*engine.MeasureLayout, len(plan.Measures))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(opts.Workers)
	for i := range plan.Measures {
		g.Go(func() error {
			ml, hit, err := r.layoutMeasure(gctx, plan, i, opts)
			if err != nil {
				return fmt.Errorf("measure %s: %w", plan.Measures[i].Number, err)
			}
			if hit {
				hits.Add(1)
			} else {
				misses.Add(1)
			}
			layouts[i] = ml
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, info, err
	}
	info.MeasureHits, info.MeasureMisses = int(hits.Load()), int(misses.Load())

	engine.Place(layouts)
	r.writeCached(ctx, docKey, "document", layouts, cache.DocumentTTL)
	r.Logger.Debug("computed line layout",
		"measures", len(layouts), "hits", info.MeasureHits, "misses", info.MeasureMisses)
	return layouts, info, nil
}

// layoutMeasure computes measure i at x = 0, going through the measure
// cache.
func (r *Runner) layoutMeasure(ctx context.Context, plan *engine.LinePlan, i int, opts Options) (*engine.MeasureLayout, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	measureHash, err := cache.HashJSON(plan.Measures[i])
	if err != nil {
		return nil, false, err
	}
	key := r.Keyer.MeasureKey(measureHash, opts.MeasureKeyOpts(plan.ContextFingerprint(i), plan.Line.ShortestCount))

	if cached, ok := r.readCached(ctx, key, "measure", opts); ok && len(cached) == 1 {
		return cached[0], true, nil
	}

	mopts := plan.MeasureOptions(i)
	var ml *engine.MeasureLayout
	if opts.Approximate {
		ml, err = engine.ApproximateLayout(mopts)
	} else {
		ml, err = engine.LayoutMeasure(mopts)
	}
	if err != nil {
		return nil, false, err
	}
	r.writeCached(ctx, key, "measure", []*engine.MeasureLayout{ml}, cache.MeasureTTL)
	return ml, false, nil
}

func (r *Runner) readCached(ctx context.Context, key, keyType string, opts Options) ([]*engine.MeasureLayout, bool) {
	if opts.Refresh {
		return nil, false
	}
	data, hit, err := r.Cache.Get(ctx, key)
	if err != nil || !hit {
		observability.Cache().OnCacheMiss(ctx, keyType)
		return nil, false
	}
	var layouts []*engine.MeasureLayout
	if err := json.Unmarshal(data, &layouts); err != nil {
		// Entries from an older layout format are recomputed.
		observability.Cache().OnCacheMiss(ctx, keyType)
		return nil, false
	}
	observability.Cache().OnCacheHit(ctx, keyType)
	return layouts, true
}

func (r *Runner) writeCached(ctx context.Context, key, keyType string, layouts []*engine.MeasureLayout, ttl time.Duration) {
	data, err := json.Marshal(layouts)
	if err != nil {
		r.Logger.Debug("layout not cacheable", "key", key, "error", err)
		return
	}
	if err := r.Cache.Set(ctx, key, data, ttl); err != nil {
		r.Logger.Debug("cache write failed", "key", key, "error", err)
		return
	}
	observability.Cache().OnCacheSet(ctx, keyType, len(data))
}

// TotalWidth returns the summed width of placed measures.
func TotalWidth(layouts []*engine.MeasureLayout) float64 {
	w := 0.0
	for _, ml := range layouts {
		w += ml.Width
	}
	return w
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}

// Package pipeline runs the validate → layout pipeline for satie.
//
// The CLI, the HTTP server and the watcher all go through a [Runner] so
// caching, logging and instrumentation behave the same everywhere.
//
// # Stages
//
//  1. Validate: normalize divisions, insert missing headers and barlines,
//     and split overflowing measures until the document is stable.
//  2. Layout: thread attributes and staff states through the line
//     sequentially, then compute each measure's geometry in parallel and
//     place the measures one after another.
//
// # Usage
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Execute(ctx, doc, pipeline.Options{Workers: 8})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.Width)
//
// Layouts of individual measures are cached by content and inherited
// context, so editing one measure only recomputes that measure and any
// whose inherited state changed as a result.
package pipeline

import (
	"io"
	"time"

	"github.com/charmbracelet/log"
	validation "github.com/go-ozzo/ozzo-validation/v4"

	"github.com/jocelyn-stericker/satie-sub004/pkg/cache"
	"github.com/jocelyn-stericker/satie-sub004/pkg/core/document"
	"github.com/jocelyn-stericker/satie-sub004/pkg/core/engine"
	"github.com/jocelyn-stericker/satie-sub004/pkg/errors"
)

// =============================================================================
// Default Values
// =============================================================================

const (
	// DefaultWorkers bounds the parallel layout stage.
	DefaultWorkers = 4

	// MaxWorkers is the largest accepted worker count.
	MaxWorkers = 256
)

// DefaultMerge is the default merge strategy.
const DefaultMerge = string(engine.StrategyTwoPass)

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options configures a pipeline run. It supports JSON for API requests.
type Options struct {
	Merge       string `json:"merge,omitempty"`
	Workers     int    `json:"workers,omitempty"`
	MaxFixups   int    `json:"max_fixups,omitempty"`
	Approximate bool   `json:"approximate,omitempty"`
	// Refresh bypasses cache reads. Results are still written.
	Refresh bool `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Spacing engine.Spacing    `json:"-"`
	Logger  *log.Logger       `json:"-"`
	UUIDs   engine.UUIDSource `json:"-"`
	Memo    *engine.Memo      `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Document is the validated score. Execute never modifies its input.
	Document *document.Document

	// Report describes what validation changed. It is nil in approximate
	// mode, which skips validation.
	Report *engine.Report

	// Layouts holds one placed layout per measure.
	Layouts []*engine.MeasureLayout

	// Width is the total width of the line.
	Width float64

	Stats     Stats
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Measures     int
	Passes       int
	Splits       int
	ValidateTime time.Duration
	LayoutTime   time.Duration
}

// CacheInfo tracks cache use during layout.
type CacheInfo struct {
	DocumentHit   bool
	MeasureHits   int
	MeasureMisses int
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks the options and fills in defaults. It is
// idempotent.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if o.Merge == "" {
		o.Merge = DefaultMerge
	}
	if o.Workers == 0 {
		o.Workers = DefaultWorkers
	}
	if o.Spacing == (engine.Spacing{}) {
		o.Spacing = engine.DefaultSpacing()
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	err := validation.ValidateStruct(o,
		validation.Field(&o.Merge, validation.In(string(engine.StrategyTwoPass), string(engine.StrategyLongestPath))),
		validation.Field(&o.Workers, validation.Min(1), validation.Max(MaxWorkers)),
		validation.Field(&o.MaxFixups, validation.Min(0)),
	)
	if err != nil {
		return errors.Wrap(errors.ErrCodeInvalidInput, err, "invalid pipeline options")
	}
	o.validated = true
	return nil
}

// EngineOptions returns the engine options for doc.
func (o *Options) EngineOptions(doc *document.Document) *engine.Options {
	strategy, _ := engine.ParseMergeStrategy(o.Merge)
	return &engine.Options{
		Document:  doc,
		UUIDs:     o.UUIDs,
		Spacing:   o.Spacing,
		Merge:     strategy,
		MaxFixups: o.MaxFixups,
		Logger:    o.Logger,
	}
}

// spacingHash identifies the engraving constants in cache keys.
func (o *Options) spacingHash() string {
	h, _ := cache.HashJSON(o.Spacing)
	return h
}

// MeasureKeyOpts returns cache key options for one measure.
func (o *Options) MeasureKeyOpts(context string, shortest int) cache.MeasureKeyOpts {
	return cache.MeasureKeyOpts{
		Context:     context,
		Shortest:    shortest,
		Merge:       o.Merge,
		Spacing:     o.spacingHash(),
		Approximate: o.Approximate,
	}
}

// DocumentKeyOpts returns cache key options for a whole line.
func (o *Options) DocumentKeyOpts() cache.DocumentKeyOpts {
	key := cache.DocumentKeyOpts{Merge: o.Merge, Spacing: o.spacingHash()}
	if o.Approximate {
		key.Merge += "+approximate"
	}
	return key
}

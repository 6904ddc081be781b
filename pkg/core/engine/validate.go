package engine

import (
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/jocelyn-stericker/satie-sub004/pkg/core/divisions"
	"github.com/jocelyn-stericker/satie-sub004/pkg/core/document"
	"github.com/jocelyn-stericker/satie-sub004/pkg/errors"
)

// DefaultMaxFixups bounds how often one measure may be split during a
// single validation.
const DefaultMaxFixups = 100

// Processor rewrites the measure list before or after validation.
type Processor func(measures []*document.Measure) ([]*document.Measure, error)

// Options configures validation and line layout.
type Options struct {
	Document *document.Document
	Factory  *document.Factory
	// Print is the print element in effect before the first measure.
	Print *document.Print
	UUIDs UUIDSource
	// Spacing defaults to DefaultSpacing when zero.
	Spacing Spacing
	Merge   MergeStrategy
	// MaxFixups defaults to DefaultMaxFixups.
	MaxFixups int

	Preprocessors  []Processor
	Postprocessors []Processor

	Logger *log.Logger
}

func (o *Options) withDefaults() (*Options, error) {
	if o == nil || o.Document == nil {
		return nil, errors.New(errors.ErrCodeInvalidInput, "no document to validate")
	}
	c := *o
	if c.Factory == nil {
		c.Factory = document.NewFactory()
	}
	if c.UUIDs == nil {
		c.UUIDs = RandomUUIDs()
	}
	if c.Spacing == (Spacing{}) {
		c.Spacing = DefaultSpacing()
	}
	if c.MaxFixups <= 0 {
		c.MaxFixups = DefaultMaxFixups
	}
	if c.Logger == nil {
		c.Logger = log.New(io.Discard)
	}
	return &c, nil
}

// =============================================================================
// Memo
// =============================================================================

// Memo remembers which measures validated cleanly so later validations can
// skip them. A measure is skipped while its uuid and version are unchanged,
// the document's division unit is the same and the attributes it inherits
// from earlier measures still match.
type Memo struct {
	mu    sync.Mutex
	clean map[int64]cleanRecord
}

type cleanRecord struct {
	version int
	unit    int
	// incoming fingerprints the attributes the measure was validated with.
	incoming   string
	attributes AttributesMap
	print      *document.Print
}

// NewMemo returns an empty memo.
func NewMemo() *Memo {
	return &Memo{clean: make(map[int64]cleanRecord)}
}

func (m *Memo) lookup(meas *document.Measure, unit int, incoming string) (cleanRecord, bool) {
	if m == nil {
		return cleanRecord{}, false
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.clean[meas.UUID]
	if !ok || rec.version != meas.Version || rec.unit != unit || rec.incoming != incoming {
		return cleanRecord{}, false
	}
	return rec, true
}

func (m *Memo) store(meas *document.Measure, unit int, incoming string, attrs AttributesMap, pr *document.Print) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.clean[meas.UUID] = cleanRecord{
		version:    meas.Version,
		unit:       unit,
		incoming:   incoming,
		attributes: attrs,
		print:      pr,
	}
}

// Invalidate forgets the measure with the given uuid.
func (m *Memo) Invalidate(uuid int64) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.clean, uuid)
}

// Len returns the number of measures known to be clean.
func (m *Memo) Len() int {
	if m == nil {
		return 0
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.clean)
}

// =============================================================================
// Validation
// =============================================================================

// Split records one overflow resolution.
type Split struct {
	UUID      int64
	Number    string
	MaxDiv    int
	NewUUID   int64
	NewNumber string
}

// Report summarizes a validation run.
type Report struct {
	Passes     int
	Validated  int
	Skipped    int
	Unit       int
	Splits     []Split
	Mismatches []divisions.Mismatch
}

// Validate brings the document into a layout-ready state, modifying it in
// place.
//
// Each pass normalizes divisions across the document, makes sure every
// staff starts with print and attributes elements and ends with a barline,
// and reduces each measure in validation mode. A measure that overflows is
// split and the pass restarts. The memo may be nil.
func Validate(ctx context.Context, opts *Options, memo *Memo) (*Report, error) {
	o, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	doc := o.Document
	if doc.Measures, err = runProcessors(doc.Measures, o.Preprocessors); err != nil {
		return nil, err
	}
	doc.Reindex()

	report := &Report{}
	fixups := make(map[int64]int)
	for {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		report.Passes++
		overflow, err := validatePass(o, memo, report)
		if err != nil {
			return report, err
		}
		if overflow == nil {
			break
		}
		uuid := overflow.Measure.UUID
		if overflow.MaxDiv <= 0 {
			return report, errors.New(errors.ErrCodeFixupLoop,
				"measure %s has no room for its first note", overflow.Measure.Number)
		}
		fixups[uuid]++
		if fixups[uuid] > o.MaxFixups {
			return report, errors.New(errors.ErrCodeFixupLoop,
				"measure %s still overflows after %d splits", overflow.Measure.Number, o.MaxFixups)
		}
		measures, next, err := overflow.Resolve(doc.Measures, o.UUIDs)
		if err != nil {
			return report, err
		}
		doc.Measures = measures
		memo.Invalidate(uuid)
		report.Splits = append(report.Splits, Split{
			UUID:      uuid,
			Number:    overflow.Measure.Number,
			MaxDiv:    overflow.MaxDiv,
			NewUUID:   next.UUID,
			NewNumber: next.Number,
		})
		o.Logger.Debug("split overflowing measure",
			"measure", overflow.Measure.Number, "division", overflow.MaxDiv, "new", next.Number)
	}

	if doc.Measures, err = runProcessors(doc.Measures, o.Postprocessors); err != nil {
		return report, err
	}
	doc.Reindex()
	return report, nil
}

func runProcessors(measures []*document.Measure, procs []Processor) ([]*document.Measure, error) {
	for _, p := range procs {
		var err error
		if measures, err = p(measures); err != nil {
			return nil, err
		}
	}
	return measures, nil
}

func validatePass(o *Options, memo *Memo, report *Report) (*DivisionOverflow, error) {
	measures := o.Document.Measures
	var segments []*document.Segment
	for _, m := range measures {
		segments = append(segments, m.Segments()...)
	}
	norm, err := divisions.Normalize(segments, 0)
	if err != nil {
		return nil, err
	}
	report.Unit = norm.Unit
	if report.Passes == 1 {
		report.Mismatches = norm.Mismatches
		for _, mm := range norm.Mismatches {
			o.Logger.Warn("attributes divisions do not divide the common unit",
				"part", mm.Part, "staff", mm.Owner, "declared", mm.Declared, "unit", mm.Unit)
		}
	}

	line := NewLineContext(o.Spacing, 0, 0)
	attrs := AttributesMap{}
	pr := o.Print
	for i, m := range measures {
		incoming := attrs.Fingerprint()
		if rec, ok := memo.lookup(m, norm.Unit, incoming); ok {
			attrs, pr = rec.attributes, rec.print
			report.Skipped++
			continue
		}
		if err := ensureStructure(o, m, attrs, i == len(measures)-1); err != nil {
			return nil, err
		}
		out, err := ReduceMeasure(MeasureOptions{
			Measure:      m,
			Measures:     measures,
			Attributes:   attrs,
			Print:        pr,
			Line:         line,
			Factory:      o.Factory,
			ValidateOnly: true,
			Approximate:  true,
			Detached:     true,
			NoAlign:      true,
		})
		if err != nil {
			return nil, err
		}
		if out.Overflow != nil {
			return out.Overflow, nil
		}
		report.Validated++
		attrs, pr = out.Layout.Attributes, out.Layout.Print
		memo.store(m, norm.Unit, incoming, attrs, pr)
	}
	return nil, nil
}

// =============================================================================
// Structural Fixups
// =============================================================================

// ensureStructure gives every staff segment of m its header and a closing
// barline. Staff 1 of a part gets new print and attributes elements; other
// staves get proxies to staff 1's.
func ensureStructure(o *Options, m *document.Measure, attrs AttributesMap, last bool) error {
	changed := false
	for _, partID := range m.PartIDs() {
		part := m.Parts[partID]
		if part == nil {
			continue
		}
		for idx, seg := range part.Staves {
			if seg == nil {
				continue
			}
			if !seg.IsStaff() {
				return errors.New(errors.ErrCodeInvalidInput,
					"measure %s part %s: staff list holds a %s segment", m.Number, partID, seg.OwnerType)
			}
			if seg.Owner == 0 {
				seg.Owner = idx
			}
			if seg.Owner != idx {
				return errors.New(errors.ErrCodeInvalidInput,
					"measure %s part %s: staff %d is stored at index %d", m.Number, partID, seg.Owner, idx)
			}
			for _, kind := range []document.Kind{document.KindPrint, document.KindAttributes} {
				added, err := ensureHeader(o.Factory, m, seg, kind)
				if err != nil {
					return err
				}
				changed = changed || added
			}
			added, err := ensureBarline(o, m, seg, attrs.Get(partID, idx), last)
			if err != nil {
				return err
			}
			changed = changed || added
		}
	}
	if changed {
		m.Touch()
	}
	return nil
}

func ensureHeader(f *document.Factory, m *document.Measure, seg *document.Segment, kind document.Kind) (bool, error) {
	if len(f.Search(seg.Models, 0, kind)) > 0 {
		return false, nil
	}
	if seg.Owner == 1 {
		model, err := f.Create(kind)
		if err != nil {
			return false, err
		}
		model.StaffIdx = 1
		pos := 0
		if kind != document.KindPrint {
			if prints := f.Search(seg.Models, 0, document.KindPrint); len(prints) > 0 {
				pos = f.IndexOf(seg.Models, prints[len(prints)-1]) + 1
			}
		}
		seg.Insert(pos, model)
		return true, nil
	}

	canonical := m.Staff(seg.Part, 1)
	if canonical == nil {
		return false, errors.New(errors.ErrCodeMissingElement,
			"measure %s part %s has staff %d but no staff 1", m.Number, seg.Part, seg.Owner)
	}
	targets := f.Search(canonical.Models, 0, kind)
	if len(targets) == 0 {
		return false, errors.New(errors.ErrCodeMissingElement,
			"measure %s part %s staff 1 has no %s to share", m.Number, seg.Part, kind)
	}
	tidx := f.IndexOf(canonical.Models, targets[0])
	proxy := f.CreateProxy(document.ProxyTarget{Part: seg.Part, Staff: 1, Index: tidx}, kind)
	proxy.StaffIdx = seg.Owner
	seg.Insert(min(tidx, seg.Len()), proxy)
	return true, nil
}

func ensureBarline(o *Options, m *document.Measure, seg *document.Segment, inherited *AttributesSnapshot, last bool) (bool, error) {
	f := o.Factory
	if seg.Len() > 0 && len(f.Search(seg.Models, seg.Len()-1, document.KindBarline)) > 0 {
		return false, nil
	}
	capacity := segmentCapacity(f, m, seg, inherited, o.Spacing)
	if gap := capacity - seg.TotalDivCount(); gap > 0 {
		spacer, err := f.Create(document.KindSpacer)
		if err != nil {
			return false, err
		}
		spacer.DivCount = gap
		spacer.StaffIdx = seg.Owner
		seg.Append(spacer)
	}
	barline, err := f.Create(document.KindBarline)
	if err != nil {
		return false, err
	}
	barline.StaffIdx = seg.Owner
	barline.Barline.Style = document.BarStyleRegular
	if last {
		barline.Barline.Style = document.BarStyleLightHeavy
	}
	seg.Append(barline)
	return true, nil
}

// segmentCapacity returns the measure capacity that applies to seg: the
// inherited snapshot with the segment's own attributes applied.
func segmentCapacity(f *document.Factory, m *document.Measure, seg *document.Segment, inherited *AttributesSnapshot, spacing Spacing) int {
	var attrs *document.Attributes
	for _, model := range f.Search(seg.Models, 0, document.KindAttributes) {
		if model.Kind == document.KindProxy && model.Proxy != nil {
			t := model.Proxy.Target
			if target := m.Staff(t.Part, t.Staff).At(t.Index); target != nil {
				model = target
			}
		}
		if model.Attributes != nil {
			attrs = model.Attributes
			break
		}
	}
	snap := inherited
	if snap == nil {
		snap = DefaultSnapshot(seg.Divisions)
	}
	return snap.With(attrs, seg.Owner, m.Idx).BarDivisions(spacing)
}

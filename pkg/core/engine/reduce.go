package engine

import (
	"maps"
	"slices"

	"github.com/jocelyn-stericker/satie-sub004/pkg/core/document"
	"github.com/jocelyn-stericker/satie-sub004/pkg/errors"
)

// MeasureOptions configures a single measure reduction.
type MeasureOptions struct {
	Measure *document.Measure
	// Measures is the surrounding document, read-only.
	Measures []*document.Measure
	// Attributes is the snapshot in effect on each staff when the measure
	// starts. It is not modified.
	Attributes AttributesMap
	Print      *document.Print
	Line       *LineContext
	Factory    *document.Factory
	// Previous addresses each staff's state at the end of the previous
	// measure in Line.Arena.
	Previous map[StaffKey]SnapshotID
	// X is the position the measure starts at.
	X     float64
	Merge MergeStrategy

	// ValidateOnly runs validation instead of layout and produces no
	// geometry.
	ValidateOnly bool
	// Approximate estimates chord springs from this measure alone.
	Approximate bool
	// Detached ignores state from previous measures.
	Detached bool
	// NoAlign skips the overlap repair after merging.
	NoAlign bool
	// PadEnd adds end padding to the measure width.
	PadEnd bool
	// AllowOverflow lays out voices past the measure capacity instead of
	// reporting an overflow.
	AllowOverflow bool
}

// Outcome is the result of a reduction: a layout, or an overflow that must
// be resolved before the measure can be laid out.
type Outcome struct {
	Layout   *MeasureLayout
	Overflow *DivisionOverflow
}

// ReduceMeasure walks every voice of the measure in lock-step with the
// staves it touches, validating or laying out each model, and merges the
// per-segment results.
//
// Staff elements are processed when their start division is at or before
// the voice's division. A barline starting exactly at the voice's division
// waits until the voice has nothing left at that division. A voice model
// starting at or past the staff's capacity yields an overflow unless
// AllowOverflow is set.
func ReduceMeasure(opts MeasureOptions) (Outcome, error) {
	if opts.Measure == nil {
		return Outcome{}, errors.New(errors.ErrCodeInvalidInput, "no measure to reduce")
	}
	if opts.Factory == nil {
		opts.Factory = document.NewFactory()
	}
	if opts.Line == nil {
		opts.Line = NewLineContext(DefaultSpacing(), 0, 0)
	}
	if opts.Line.Arena == nil {
		opts.Line.Arena = &Arena{}
	}
	r := newReducer(&opts)
	return r.run()
}

type reducer struct {
	opts    *MeasureOptions
	measure *MeasureContext
	staves  map[StaffKey]*document.Segment
	voices  []*document.Segment

	shortest      int
	paddingTop    map[int]float64
	paddingBottom map[int]float64

	print        *document.Print
	attributes   AttributesMap
	states       map[StaffKey]StaffState
	staffLayouts map[StaffKey][]*Layout
	staffOrder   []StaffKey
	partials     [][]*Layout
	maxDiv       int
}

func newReducer(opts *MeasureOptions) *reducer {
	m := opts.Measure
	r := &reducer{
		opts: opts,
		measure: &MeasureContext{
			UUID:   m.UUID,
			Idx:    m.Idx,
			Number: m.Number,
			X:      opts.X,
			Source: m,
		},
		staves:        make(map[StaffKey]*document.Segment),
		paddingTop:    make(map[int]float64),
		paddingBottom: make(map[int]float64),
		print:         opts.Print,
		attributes:    opts.Attributes.Clone(),
		states:        make(map[StaffKey]StaffState),
		staffLayouts:  make(map[StaffKey][]*Layout),
	}
	for _, s := range m.Segments() {
		if s.IsStaff() {
			r.staves[StaffKey{Part: s.Part, Staff: s.Owner}] = s
		} else {
			r.voices = append(r.voices, s)
		}
	}
	if opts.Approximate || opts.Line.ShortestCount == 0 {
		r.shortest = ShortestCount([]*document.Measure{m})
	}
	return r
}

func (r *reducer) run() (Outcome, error) {
	for _, v := range r.voices {
		p := r.newPass(v.Part)
		layouts, overflow, err := p.runVoice(v)
		if err != nil {
			return Outcome{}, err
		}
		if overflow != nil {
			return Outcome{Overflow: overflow}, nil
		}
		r.partials = append(r.partials, layouts)
		r.collect(p)
	}

	for _, key := range slices.SortedFunc(maps.Keys(r.staves), compareStaffKeys) {
		if _, done := r.states[key]; done {
			continue
		}
		p := r.newPass(key.Part)
		if err := p.catchUp(p.walker(key.Staff), 0, true); err != nil {
			return Outcome{}, err
		}
		r.collect(p)
	}

	for _, key := range r.staffOrder {
		if ls := r.staffLayouts[key]; len(ls) > 0 {
			r.partials = append(r.partials, ls)
		}
	}

	m := r.opts.Measure
	ml := &MeasureLayout{
		UUID:         m.UUID,
		Idx:          m.Idx,
		Number:       m.Number,
		X:            r.opts.X,
		MaxDivisions: r.maxDiv,
		Attributes:   r.attributes,
		Print:        r.print,
		StaffStates:  r.states,
	}
	if r.opts.ValidateOnly {
		return Outcome{Layout: ml}, nil
	}

	master := mergeFirstPass(r.partials, r.opts.Merge)
	if !r.opts.NoAlign {
		alignSpacing(master, r.opts.Line.Spacing.MergeNudge)
	}
	for _, p := range r.partials {
		master = Merge(master, p)
	}

	ml.Elements = append([][]*Layout{master}, r.partials...)
	ml.Width = r.width()
	if len(r.paddingTop) > 0 {
		ml.PaddingTop = r.paddingTop
	}
	if len(r.paddingBottom) > 0 {
		ml.PaddingBottom = r.paddingBottom
	}
	return Outcome{Layout: ml}, nil
}

func (r *reducer) width() float64 {
	maxX := r.opts.X
	content := false
	for _, list := range r.partials {
		for _, l := range list {
			content = true
			maxX = max(maxX, l.Extent())
		}
	}
	if !content {
		return 0
	}
	w := maxX - r.opts.X
	if r.opts.PadEnd {
		w += r.opts.Line.Spacing.EndPadding
	}
	return w
}

// collect keeps the staff results of the first pass that reached each
// staff.
func (r *reducer) collect(p *pass) {
	r.maxDiv = max(r.maxDiv, p.division)
	if p.cursor.Print != nil {
		r.print = p.cursor.Print
	}
	for _, staff := range slices.Sorted(maps.Keys(p.walkers)) {
		w := p.walkers[staff]
		r.maxDiv = max(r.maxDiv, w.division)
		if _, done := r.states[w.key]; done {
			continue
		}
		r.states[w.key] = w.ctx.Freeze()
		if w.ctx.Attributes != nil {
			r.attributes.Set(w.key.Part, w.key.Staff, w.ctx.Attributes)
		}
		r.staffLayouts[w.key] = w.layouts
		r.staffOrder = append(r.staffOrder, w.key)
	}
}

// =============================================================================
// Passes
// =============================================================================

// pass reduces one voice together with fresh contexts for every staff it
// touches.
type pass struct {
	r        *reducer
	part     string
	cursor   *Cursor
	walkers  map[int]*staffWalker
	division int
}

type staffWalker struct {
	key      StaffKey
	seg      *document.Segment
	idx      int
	division int
	ctx      *StaffContext
	layouts  []*Layout
}

func (r *reducer) newPass(part string) *pass {
	return &pass{
		r:    r,
		part: part,
		cursor: &Cursor{
			X:             r.opts.X,
			Measure:       r.measure,
			Line:          r.opts.Line,
			Measures:      r.opts.Measures,
			Factory:       r.opts.Factory,
			Print:         r.opts.Print,
			Approximate:   r.opts.Approximate,
			Detached:      r.opts.Detached,
			shortest:      r.shortest,
			paddingTop:    r.paddingTop,
			paddingBottom: r.paddingBottom,
		},
		walkers: make(map[int]*staffWalker),
	}
}

func (p *pass) walker(staff int) *staffWalker {
	if w, ok := p.walkers[staff]; ok {
		return w
	}
	key := StaffKey{Part: p.part, Staff: staff}
	previous := NoSnapshot
	if id, ok := p.r.opts.Previous[key]; ok {
		previous = id
	}
	w := &staffWalker{
		key: key,
		seg: p.r.staves[key],
		ctx: newStaffContext(key, p.r.opts.Attributes.Get(p.part, staff), previous, p.r.opts.Line.Spacing),
	}
	p.walkers[staff] = w
	return w
}

func (p *pass) step(m *document.Model) (*Layout, error) {
	if p.r.opts.ValidateOnly {
		return nil, validateModel(p.cursor, m)
	}
	return layoutModel(p.cursor, m)
}

// catchUp processes staff models that start at or before division. With
// force set, it processes every remaining model.
func (p *pass) catchUp(w *staffWalker, division int, force bool) error {
	if w.seg == nil {
		return nil
	}
	f := p.r.opts.Factory
	for w.idx < len(w.seg.Models) {
		m := w.seg.Models[w.idx]
		if !force {
			if w.division > division {
				break
			}
			if w.division == division && f.ModelHasType(m, document.KindBarline) {
				break
			}
		}
		if p.r.opts.ValidateOnly {
			m.StaffIdx = w.key.Staff
		}
		c := p.cursor
		c.Segment, c.Idx, c.Division, c.Staff = w.seg, w.idx, w.division, w.ctx
		l, err := p.step(m)
		if err != nil {
			return err
		}
		if l != nil {
			w.layouts = append(w.layouts, l)
		}
		w.division += m.DivCount
		w.idx++
	}
	return nil
}

func (p *pass) runVoice(v *document.Segment) ([]*Layout, *DivisionOverflow, error) {
	var out []*Layout
	division := 0
	for i, m := range v.Models {
		w := p.walker(chordStaff(m))
		if err := p.catchUp(w, division, false); err != nil {
			return nil, nil, err
		}
		c := p.cursor
		c.Segment, c.Idx, c.Division, c.Staff = v, i, division, w.ctx
		if !p.r.opts.AllowOverflow && m.DivCount > 0 && w.ctx.Attributes != nil && division >= w.ctx.TotalDivisions {
			return nil, NewDivisionOverflow(w.ctx.TotalDivisions, p.r.opts.Measure, w.ctx.Attributes), nil
		}
		l, err := p.step(m)
		if err != nil {
			return nil, nil, err
		}
		if l != nil {
			out = append(out, l)
		}
		division += m.DivCount
	}
	for _, staff := range slices.Sorted(maps.Keys(p.walkers)) {
		if err := p.catchUp(p.walkers[staff], division, true); err != nil {
			return nil, nil, err
		}
	}
	p.division = division
	return out, nil, nil
}

package engine

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/jocelyn-stericker/satie-sub004/pkg/core/document"
	"github.com/jocelyn-stericker/satie-sub004/pkg/errors"
)

// LayoutMeasure lays out a validated measure. Running past the measure's
// capacity is an error here; Validate splits such measures.
func LayoutMeasure(opts MeasureOptions) (*MeasureLayout, error) {
	opts.ValidateOnly = false
	out, err := ReduceMeasure(opts)
	if err != nil {
		return nil, err
	}
	if out.Overflow != nil {
		return nil, errors.New(errors.ErrCodeDivisionOverflow, "%s; validate the document first", out.Overflow)
	}
	return out.Layout, nil
}

// ApproximateLayout estimates a measure's geometry on its own, without line
// context. Overflowing voices are laid out instead of reported.
func ApproximateLayout(opts MeasureOptions) (*MeasureLayout, error) {
	opts.Approximate = true
	opts.Detached = true
	opts.AllowOverflow = true
	return LayoutMeasure(opts)
}

// MeasureInput is the state a measure starts with on a line.
type MeasureInput struct {
	Attributes AttributesMap
	Print      *document.Print
	Previous   map[StaffKey]SnapshotID
}

// LinePlan is the result of threading state through a line. Each measure's
// input is fixed, so measures can then be laid out independently.
type LinePlan struct {
	Line     *LineContext
	Measures []*document.Measure
	Inputs   []MeasureInput

	opts *Options
}

// PlanLine threads attributes, print state and staff states through every
// measure of a validated document without computing geometry.
func PlanLine(ctx context.Context, opts *Options) (*LinePlan, error) {
	o, err := opts.withDefaults()
	if err != nil {
		return nil, err
	}
	measures := o.Document.Measures
	plan := &LinePlan{
		Line:     NewLineContext(o.Spacing, ShortestCount(measures), 0),
		Measures: measures,
		Inputs:   make([]MeasureInput, len(measures)),
		opts:     o,
	}
	attrs := AttributesMap{}
	pr := o.Print
	previous := map[StaffKey]SnapshotID{}
	for i, m := range measures {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		plan.Inputs[i] = MeasureInput{Attributes: attrs, Print: pr, Previous: previous}
		out, err := ReduceMeasure(MeasureOptions{
			Measure:       m,
			Measures:      measures,
			Attributes:    attrs,
			Print:         pr,
			Line:          plan.Line,
			Factory:       o.Factory,
			Previous:      previous,
			ValidateOnly:  true,
			AllowOverflow: true,
		})
		if err != nil {
			return nil, err
		}
		attrs, pr = out.Layout.Attributes, out.Layout.Print
		previous = plan.Line.Arena.PublishAll(out.Layout.StaffStates)
	}
	return plan, nil
}

// MeasureOptions returns the options that lay out measure i of the plan at
// x = 0.
func (p *LinePlan) MeasureOptions(i int) MeasureOptions {
	in := p.Inputs[i]
	return MeasureOptions{
		Measure:    p.Measures[i],
		Measures:   p.Measures,
		Attributes: in.Attributes,
		Print:      in.Print,
		Line:       p.Line,
		Factory:    p.opts.Factory,
		Previous:   in.Previous,
		Merge:      p.opts.Merge,
		PadEnd:     true,
	}
}

// ContextFingerprint identifies everything measure i inherits from the
// measures before it. Two plans with equal fingerprints and equal measure
// content produce the same layout for i.
func (p *LinePlan) ContextFingerprint(i int) string {
	in := p.Inputs[i]
	var b strings.Builder
	b.WriteString(in.Attributes.Fingerprint())
	if in.Print != nil {
		fmt.Fprintf(&b, "#print%t%t%g", in.Print.NewSystem, in.Print.NewPage, in.Print.StaffSpacing)
	}
	for _, key := range slices.SortedFunc(maps.Keys(in.Previous), compareStaffKeys) {
		if st, ok := p.Line.Arena.Get(in.Previous[key]); ok {
			b.WriteString("#")
			b.WriteString(st.Fingerprint())
		}
	}
	return b.String()
}

// Place shifts each layout so measures follow each other from x = 0.
// layouts must be in measure order.
func Place(layouts []*MeasureLayout) {
	x := 0.0
	for _, ml := range layouts {
		ml.Shift(x - ml.X)
		x += ml.Width
	}
}

// LayoutLine lays out every measure of a validated document as one line.
func LayoutLine(ctx context.Context, opts *Options) ([]*MeasureLayout, error) {
	plan, err := PlanLine(ctx, opts)
	if err != nil {
		return nil, err
	}
	out := make([]*MeasureLayout, len(plan.Measures))
	for i := range plan.Measures {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if out[i], err = LayoutMeasure(plan.MeasureOptions(i)); err != nil {
			return nil, err
		}
	}
	Place(out)
	return out, nil
}

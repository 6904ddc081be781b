package engine

import (
	"github.com/jocelyn-stericker/satie-sub004/pkg/core/document"
)

// Cursor is the reducer's position while walking a segment. Models read it
// and, during layout, advance X.
type Cursor struct {
	Segment  *document.Segment
	Idx      int
	Division int
	X        float64

	Staff   *StaffContext
	Measure *MeasureContext
	Line    *LineContext

	// Measures is the document's measure list. It is read-only.
	Measures []*document.Measure
	Factory  *document.Factory
	Print    *document.Print

	Approximate bool
	Detached    bool

	// shortest overrides Line.ShortestCount for approximate passes.
	shortest      int
	paddingTop    map[int]float64
	paddingBottom map[int]float64
}

// Model returns the model under the cursor.
func (c *Cursor) Model() *document.Model {
	return c.Segment.At(c.Idx)
}

// Spacing returns the engraving constants in effect.
func (c *Cursor) Spacing() Spacing {
	return c.Line.Spacing
}

// ShortestCount returns the duration chord springs are relative to.
func (c *Cursor) ShortestCount() int {
	if c.shortest > 0 {
		return c.shortest
	}
	return c.Line.ShortestCount
}

// FirstInLine reports whether the cursor is at the start of its line.
func (c *Cursor) FirstInLine() bool {
	return c.Measure.Idx == c.Line.FirstIdx && c.Division == 0
}

// previousState returns the frozen state of the cursor's staff in the
// previous measure, if the cursor is attached to one.
func (c *Cursor) previousState() (StaffState, bool) {
	if c.Detached || c.Staff.Previous == NoSnapshot {
		return StaffState{}, false
	}
	return c.Line.Arena.Get(c.Staff.Previous)
}

func (c *Cursor) recordPadding(staff int, top, bottom float64) {
	if top > c.paddingTop[staff] {
		c.paddingTop[staff] = top
	}
	if bottom > c.paddingBottom[staff] {
		c.paddingBottom[staff] = bottom
	}
}

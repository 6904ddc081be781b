package engine

import (
	"fmt"

	"github.com/jocelyn-stericker/satie-sub004/pkg/core/document"
)

// ExpandPolicy says how an element takes part in justification.
type ExpandPolicy int

// Expand policies.
const (
	ExpandNone ExpandPolicy = iota
	ExpandAfter
	ExpandCentered
)

func (p ExpandPolicy) String() string {
	switch p {
	case ExpandAfter:
		return "after"
	case ExpandCentered:
		return "centered"
	}
	return "none"
}

// MarshalText writes the policy name.
func (p ExpandPolicy) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// UnmarshalText reads a policy name.
func (p *ExpandPolicy) UnmarshalText(text []byte) error {
	switch string(text) {
	case "none", "":
		*p = ExpandNone
	case "after":
		*p = ExpandAfter
	case "centered":
		*p = ExpandCentered
	default:
		return fmt.Errorf("unknown expand policy %q", text)
	}
	return nil
}

// BoundingBox is a rectangle relative to a layout's position.
type BoundingBox struct {
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
}

// noBoxes is shared by every layout that has no bounding boxes. It must
// never be appended to.
var noBoxes = []BoundingBox{}

// Layout is the geometry of one model. Merge raises X so that elements at
// equal (Division, RenderClass) line up across voices and staves.
type Layout struct {
	Model         *document.Model `json:"-"`
	Part          string          `json:"part"`
	Staff         int             `json:"staff"`
	X             float64         `json:"x"`
	Division      int             `json:"division"`
	RenderClass   document.Kind   `json:"renderClass"`
	ExpandPolicy  ExpandPolicy    `json:"expandPolicy"`
	RenderedWidth float64         `json:"renderedWidth"`
	BoundingBoxes []BoundingBox   `json:"boundingBoxes"`
}

func newLayout(m *document.Model, c *Cursor, class document.Kind) *Layout {
	return &Layout{
		Model:         m,
		Part:          c.Segment.Part,
		Staff:         c.Staff.Key.Staff,
		X:             c.X,
		Division:      c.Division,
		RenderClass:   class,
		BoundingBoxes: noBoxes,
	}
}

// Extent returns the x position just after the layout.
func (l *Layout) Extent() float64 { return l.X + l.RenderedWidth }

// MeasureLayout is the reduced geometry of a measure.
//
// Elements[0] is the merged master list; the remaining entries are the
// per-voice and per-staff partial lists in the order they were reduced.
// Matched elements appear in several lists by pointer.
type MeasureLayout struct {
	UUID          int64                   `json:"uuid"`
	Idx           int                     `json:"idx"`
	Number        string                  `json:"number"`
	X             float64                 `json:"x"`
	Width         float64                 `json:"width"`
	MaxDivisions  int                     `json:"maxDivisions"`
	Elements      [][]*Layout             `json:"elements"`
	PaddingTop    map[int]float64         `json:"paddingTop,omitempty"`
	PaddingBottom map[int]float64         `json:"paddingBottom,omitempty"`
	Attributes    AttributesMap           `json:"-"`
	Print         *document.Print         `json:"-"`
	StaffStates   map[StaffKey]StaffState `json:"-"`
}

// Master returns the merged element list.
func (ml *MeasureLayout) Master() []*Layout {
	if len(ml.Elements) == 0 {
		return nil
	}
	return ml.Elements[0]
}

// Shift moves the measure and every element by dx. Elements shared between
// lists move once.
func (ml *MeasureLayout) Shift(dx float64) {
	if dx == 0 {
		return
	}
	ml.X += dx
	seen := make(map[*Layout]bool)
	for _, list := range ml.Elements {
		for _, l := range list {
			if seen[l] {
				continue
			}
			seen[l] = true
			l.X += dx
		}
	}
}

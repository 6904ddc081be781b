package engine

import (
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/jocelyn-stericker/satie-sub004/pkg/core/document"
	"github.com/jocelyn-stericker/satie-sub004/pkg/errors"
)

// =============================================================================
// Dispatch
// =============================================================================

// validateModel fills in defaults on m and updates the cursor's staff
// state. It never touches geometry.
func validateModel(c *Cursor, m *document.Model) error {
	switch m.Kind {
	case document.KindPrint:
		if m.Print == nil {
			m.Print = &document.Print{}
		}
		c.Print = m.Print
	case document.KindAttributes:
		if m.Attributes == nil {
			m.Attributes = &document.Attributes{}
		}
		fillAttributeDefaults(c, m.Attributes)
		applyAttributes(c, m.Attributes)
	case document.KindChord:
		validateChord(m)
		trackAccidentals(c, m.Chord)
	case document.KindBarline:
		if m.Barline == nil {
			m.Barline = &document.Barline{}
		}
		if m.Barline.Style == "" {
			m.Barline.Style = document.BarStyleRegular
		}
	case document.KindSound:
		if m.Sound == nil {
			m.Sound = &document.Sound{}
		}
	case document.KindDirection:
		if m.Direction == nil {
			m.Direction = &document.Direction{}
		}
	case document.KindProxy:
		target, err := resolveProxy(c, m)
		if err != nil {
			return err
		}
		return validateModel(c, target)
	case document.KindGrouping, document.KindFiguredBass, document.KindHarmony,
		document.KindSpacer, document.KindVisualCursor:
	default:
		return errors.New(errors.ErrCodeMissingCapability, "cannot validate model kind %s", m.Kind)
	}
	return nil
}

// layoutModel returns the geometry of m at the cursor and advances the
// cursor past it.
func layoutModel(c *Cursor, m *document.Model) (*Layout, error) {
	switch m.Kind {
	case document.KindPrint:
		if m.Print != nil {
			c.Print = m.Print
		}
		return newLayout(m, c, m.Kind), nil
	case document.KindAttributes:
		return layoutAttributes(c, m), nil
	case document.KindChord:
		return layoutChord(c, m), nil
	case document.KindBarline:
		return layoutBarline(c, m), nil
	case document.KindDirection:
		l := newLayout(m, c, m.Kind)
		l.ExpandPolicy = ExpandCentered
		return l, nil
	case document.KindProxy:
		target, err := resolveProxy(c, m)
		if err != nil {
			return nil, err
		}
		l, err := layoutModel(c, target)
		if err != nil {
			return nil, err
		}
		l.Model = m
		return l, nil
	case document.KindGrouping, document.KindFiguredBass, document.KindSound,
		document.KindHarmony, document.KindSpacer, document.KindVisualCursor:
		return newLayout(m, c, m.Kind), nil
	}
	return nil, errors.New(errors.ErrCodeMissingCapability, "cannot lay out model kind %s", m.Kind)
}

func resolveProxy(c *Cursor, m *document.Model) (*document.Model, error) {
	if m.Proxy == nil {
		return nil, errors.New(errors.ErrCodeMissingElement, "proxy in measure %s has no target", c.Measure.Number)
	}
	t := m.Proxy.Target
	var target *document.Model
	if c.Measure.Source != nil {
		if seg := c.Measure.Source.Staff(t.Part, t.Staff); seg != nil {
			target = seg.At(t.Index)
		}
	}
	if target == nil || target.Kind == document.KindProxy ||
		(m.Proxy.TargetKind != 0 && target.Kind != m.Proxy.TargetKind) {
		return nil, errors.New(errors.ErrCodeMissingElement,
			"proxy target %s staff %d index %d not found in measure %s", t.Part, t.Staff, t.Index, c.Measure.Number)
	}
	return target, nil
}

// =============================================================================
// Attributes
// =============================================================================

func fillAttributeDefaults(c *Cursor, a *document.Attributes) {
	if c.Staff.Attributes != nil {
		return
	}
	if a.Divisions == 0 {
		a.Divisions = max(c.Segment.Divisions, 1)
	}
	if a.Time == nil {
		a.Time = &document.Time{Beats: []int{4}, BeatTypes: []int{4}}
	}
	staff := c.Staff.Key.Staff
	if _, ok := clefFor(a.Clefs, staff); !ok {
		a.Clefs = append(a.Clefs, document.Clef{Staff: staff, Sign: "G", Line: 2})
	}
}

func applyAttributes(c *Cursor, a *document.Attributes) *AttributesSnapshot {
	parent := c.Staff.Attributes
	next := parent.With(a, c.Staff.Key.Staff, c.Measure.Idx)
	c.Staff.Attributes = next
	c.Staff.TotalDivisions = next.BarDivisions(c.Spacing())
	return parent
}

func layoutAttributes(c *Cursor, m *document.Model) *Layout {
	a := m.Attributes
	if a == nil {
		a = &document.Attributes{}
	}
	sp := c.Spacing()
	first := c.FirstInLine()
	parent := applyAttributes(c, a)
	next := c.Staff.Attributes

	width := 0.0
	if first || parent == nil || parent.Clef() != next.Clef() {
		switch {
		case first:
			width += sp.ClefLineStart
		case c.Division > 0:
			width += sp.ClefIndent + sp.ClefMidMeasure
		default:
			width += sp.ClefIndent + sp.ClefMeasure
		}
	}

	fifths := next.Key().Fifths
	keyChanged := parent == nil || parent.Key() != next.Key()
	if first || keyChanged {
		switch {
		case fifths != 0:
			width += sp.KeySpacing + sp.KeyAccidental*math.Abs(float64(fifths))
		case keyChanged && parent != nil && parent.Key().Fifths != 0:
			width += sp.KeySpacing - 5 + sp.KeyAccidental*math.Abs(float64(parent.Key().Fifths))
		}
	}

	if a.Time != nil && (parent == nil || !timeEqual(parent.Time(), next.Time()) || c.Measure.Idx == 0) {
		groups := max(len(a.Time.Beats), 1)
		if a.Time.SenzaMisura {
			groups = 0
		}
		width += sp.TimeSpacing + sp.TimeNumeral*float64(groups)
	}

	l := newLayout(m, c, document.KindAttributes)
	l.RenderedWidth = width
	c.X += width
	return l
}

func timeEqual(a, b document.Time) bool {
	return a.SenzaMisura == b.SenzaMisura && slices.Equal(a.Beats, b.Beats) && slices.Equal(a.BeatTypes, b.BeatTypes)
}

// =============================================================================
// Chords
// =============================================================================

// chordStaff returns the staff a voice model is drawn on.
func chordStaff(m *document.Model) int {
	if m.Chord != nil {
		for _, n := range m.Chord.Notes {
			if n.Staff > 0 {
				return n.Staff
			}
		}
	}
	if m.StaffIdx > 0 {
		return m.StaffIdx
	}
	return 1
}

func validateChord(m *document.Model) {
	if m.Chord == nil {
		m.Chord = &document.Chord{}
	}
	if len(m.Chord.Notes) == 0 {
		m.Chord.Notes = []document.Note{{Rest: true}}
	}
	staff := chordStaff(m)
	m.StaffIdx = staff
	for i := range m.Chord.Notes {
		n := &m.Chord.Notes[i]
		if n.Staff == 0 {
			n.Staff = staff
		}
		if n.Duration == 0 {
			n.Duration = m.DivCount
		}
	}
}

const (
	sharpOrder = "FCGDAEB"
	flatOrder  = "BEADGCF"
)

// keyAlter returns the alteration the key signature applies to step.
func keyAlter(fifths int, step string) int {
	if len(step) != 1 {
		return 0
	}
	switch {
	case fifths > 0:
		if i := strings.Index(sharpOrder, step); i >= 0 && i < fifths {
			return 1
		}
	case fifths < 0:
		if i := strings.Index(flatOrder, step); i >= 0 && i < -fifths {
			return -1
		}
	}
	return 0
}

// trackAccidentals records the chord's alterations on the staff and
// reports whether any note needs an accidental, including courtesy
// accidentals for pitches altered differently in the previous measure.
func trackAccidentals(c *Cursor, chord *document.Chord) bool {
	if chord == nil {
		return false
	}
	fifths := 0
	if c.Staff.Attributes != nil {
		fifths = c.Staff.Attributes.Key().Fifths
	}
	prev, hasPrev := c.previousState()
	shown := false
	for _, n := range chord.Notes {
		if n.Rest || n.Step == "" {
			continue
		}
		pitch := n.Step + strconv.Itoa(n.Octave)
		expected, seen := c.Staff.Accidentals[pitch]
		if !seen {
			expected = keyAlter(fifths, n.Step)
		}
		switch {
		case n.Alter != expected:
			shown = true
		case !seen && hasPrev:
			if was, ok := prev.Accidental(pitch); ok && was != n.Alter {
				shown = true
			}
		}
		c.Staff.Accidentals[pitch] = n.Alter
	}
	return shown
}

func layoutChord(c *Cursor, m *document.Model) *Layout {
	sp := c.Spacing()
	ch := m.Chord
	if ch == nil {
		ch = &document.Chord{}
	}

	accidental := 0.0
	if trackAccidentals(c, ch) {
		accidental = sp.AccidentalWidth
	}

	base := sp.ChordBase
	if ch.Grace {
		base = sp.GraceChordBase
	}
	spring := 0.0
	if shortest := c.ShortestCount(); m.DivCount > 0 && shortest > 0 {
		spring = max(math.Log(float64(m.DivCount))-math.Log(float64(shortest)), 0) * sp.LogSpring
		if ch.Grace {
			spring /= 10
		}
	}
	dots := 0
	top, bottom := math.Inf(-1), math.Inf(1)
	for _, n := range ch.Notes {
		dots = max(dots, n.Dots)
		if n.Rest {
			continue
		}
		top = max(top, n.DefaultY)
		bottom = min(bottom, n.DefaultY)
		c.recordPadding(c.Staff.Key.Staff, n.DefaultY-sp.PaddingTopBase, -n.DefaultY-sp.PaddingBelowBase)
	}

	l := newLayout(m, c, document.KindChord)
	l.X = c.X + accidental
	l.ExpandPolicy = ExpandAfter
	l.RenderedWidth = base + spring + float64(dots)*sp.DotWidth
	if !math.IsInf(top, 0) {
		l.BoundingBoxes = []BoundingBox{{Left: -accidental, Right: l.RenderedWidth, Top: top, Bottom: bottom}}
	}
	c.X = l.Extent()
	return l
}

// =============================================================================
// Barlines
// =============================================================================

func layoutBarline(c *Cursor, m *document.Model) *Layout {
	sp := c.Spacing()
	style := document.BarStyleRegular
	if m.Barline != nil && m.Barline.Style != "" {
		style = m.Barline.Style
	}
	width := sp.BarlineRegular
	switch style {
	case document.BarStyleLightHeavy:
		width = sp.BarlineFinal
	case document.BarStyleLightLight:
		width = sp.BarlineDouble
	}
	l := newLayout(m, c, document.KindBarline)
	l.RenderedWidth = width
	c.X += width
	return l
}

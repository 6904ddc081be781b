package engine

import (
	"fmt"
	"slices"
	"strconv"

	"github.com/jocelyn-stericker/satie-sub004/pkg/core/document"
	"github.com/jocelyn-stericker/satie-sub004/pkg/errors"
)

// DivisionOverflow reports that a voice in Measure runs past the measure's
// capacity. It carries the split of every part at MaxDiv: OldParts stay in
// the measure and NewParts move to a measure inserted after it.
type DivisionOverflow struct {
	MaxDiv     int
	Measure    *document.Measure
	Attributes *AttributesSnapshot
	OldParts   map[string]*document.MeasurePart
	NewParts   map[string]*document.MeasurePart
}

// NewDivisionOverflow splits every part of m at maxDiv.
//
// Voice models starting before maxDiv stay; staff models stay only when
// they end at or before maxDiv, and barlines left behind in the old half
// are dropped so validation can place a fresh one.
func NewDivisionOverflow(maxDiv int, m *document.Measure, attrs *AttributesSnapshot) *DivisionOverflow {
	o := &DivisionOverflow{
		MaxDiv:     maxDiv,
		Measure:    m,
		Attributes: attrs,
		OldParts:   make(map[string]*document.MeasurePart, len(m.Parts)),
		NewParts:   make(map[string]*document.MeasurePart, len(m.Parts)),
	}
	for id, part := range m.Parts {
		if part == nil {
			continue
		}
		oldPart := &document.MeasurePart{
			Voices: make([]*document.Segment, len(part.Voices)),
			Staves: make([]*document.Segment, len(part.Staves)),
		}
		newPart := &document.MeasurePart{
			Voices: make([]*document.Segment, len(part.Voices)),
			Staves: make([]*document.Segment, len(part.Staves)),
		}
		for i, v := range part.Voices {
			if v != nil {
				oldPart.Voices[i], newPart.Voices[i] = splitVoice(v, maxDiv)
			}
		}
		for i, s := range part.Staves {
			if s != nil {
				oldPart.Staves[i], newPart.Staves[i] = splitStaff(s, maxDiv)
			}
		}
		o.OldParts[id] = oldPart
		o.NewParts[id] = newPart
	}
	return o
}

func (o *DivisionOverflow) String() string {
	return fmt.Sprintf("measure %s overflows at division %d", o.Measure.Number, o.MaxDiv)
}

func splitVoice(s *document.Segment, maxDiv int) (*document.Segment, *document.Segment) {
	oldSeg, newSeg := s.Empty(), s.Empty()
	division := 0
	for _, m := range s.Models {
		if division < maxDiv {
			oldSeg.Append(m)
		} else {
			newSeg.Append(m)
		}
		division += m.DivCount
	}
	return oldSeg, newSeg
}

func splitStaff(s *document.Segment, maxDiv int) (*document.Segment, *document.Segment) {
	oldSeg, newSeg := s.Empty(), s.Empty()
	division := 0
	for _, m := range s.Models {
		division += m.DivCount
		if division <= maxDiv {
			if m.Kind != document.KindBarline {
				oldSeg.Append(m)
			}
		} else {
			newSeg.Append(m)
		}
	}
	return oldSeg, newSeg
}

// Resolve applies the split to measures. The overflowing measure keeps
// OldParts and a new measure holding NewParts is inserted right after it.
// Both measures get a version bump and all indices are rewritten. The
// returned slice may share its backing array with measures.
func (o *DivisionOverflow) Resolve(measures []*document.Measure, ids UUIDSource) ([]*document.Measure, *document.Measure, error) {
	pos := slices.Index(measures, o.Measure)
	if pos < 0 {
		pos = slices.IndexFunc(measures, func(m *document.Measure) bool { return m.UUID == o.Measure.UUID })
	}
	if pos < 0 {
		return measures, nil, errors.New(errors.ErrCodeMissingElement,
			"overflowing measure %d is not part of the document", o.Measure.UUID)
	}
	if ids == nil {
		ids = RandomUUIDs()
	}
	orig := measures[pos]

	number := strconv.Itoa(pos + 2)
	if n, err := strconv.Atoi(orig.Number); err == nil {
		number = strconv.Itoa(n + 1)
	}
	next := &document.Measure{
		UUID:   freshID(measures, ids),
		Idx:    pos + 1,
		Number: number,
		Parts:  o.NewParts,
	}
	for id, part := range o.OldParts {
		np := next.Parts[id]
		if np == nil {
			np = &document.MeasurePart{}
			next.Parts[id] = np
		}
		for len(np.Staves) < len(part.Staves) {
			np.Staves = append(np.Staves, nil)
		}
		for i, s := range part.Staves {
			if s != nil && np.Staves[i] == nil {
				np.Staves[i] = s.Empty()
			}
		}
	}
	orig.Parts = o.OldParts
	orig.Touch()
	next.Touch()

	measures = slices.Insert(measures, pos+1, next)
	document.Reindex(measures)
	return measures, next, nil
}

func freshID(measures []*document.Measure, ids UUIDSource) int64 {
	for {
		id := ids.Next()
		if id != 0 && !slices.ContainsFunc(measures, func(m *document.Measure) bool { return m.UUID == id }) {
			return id
		}
	}
}

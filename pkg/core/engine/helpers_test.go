package engine

import (
	"github.com/jocelyn-stericker/satie-sub004/pkg/core/document"
)

var testFactory = document.NewFactory()

func newModel(kind document.Kind, divCount int) *document.Model {
	m := testFactory.MustCreate(kind)
	m.DivCount = divCount
	return m
}

func newChord(divCount int, notes ...document.Note) *document.Model {
	m := newModel(document.KindChord, divCount)
	if len(notes) == 0 {
		notes = []document.Note{{Step: "C", Octave: 4}}
	}
	m.Chord.Notes = notes
	return m
}

func newAttributes(beats, beatType int) *document.Model {
	m := newModel(document.KindAttributes, 0)
	m.Attributes.Divisions = 1
	m.Attributes.Time = &document.Time{Beats: []int{beats}, BeatTypes: []int{beatType}}
	m.Attributes.Clefs = []document.Clef{{Staff: 1, Sign: "G", Line: 2}}
	return m
}

func staffSegment(owner int, models ...*document.Model) *document.Segment {
	return &document.Segment{Owner: owner, OwnerType: document.OwnerStaff, Divisions: 1, Models: models}
}

func voiceSegment(owner int, models ...*document.Model) *document.Segment {
	return &document.Segment{Owner: owner, OwnerType: document.OwnerVoice, Divisions: 1, Models: models}
}

// newMeasure builds a single-part measure. Segments are placed at their
// owner index.
func newMeasure(uuid int64, number string, segments ...*document.Segment) *document.Measure {
	part := &document.MeasurePart{}
	for _, s := range segments {
		list := &part.Voices
		if s.IsStaff() {
			list = &part.Staves
		}
		for len(*list) <= s.Owner {
			*list = append(*list, nil)
		}
		(*list)[s.Owner] = s
	}
	m := &document.Measure{UUID: uuid, Number: number, Parts: map[string]*document.MeasurePart{"P1": part}}
	m.Segments()
	return m
}

func newDocument(measures ...*document.Measure) *document.Document {
	doc := &document.Document{Measures: measures}
	doc.Reindex()
	return doc
}

func kindsOf(models []*document.Model) []document.Kind {
	out := make([]document.Kind, len(models))
	for i, m := range models {
		out[i] = m.Kind
	}
	return out
}

func findLayout(ls []*Layout, kind document.Kind) *Layout {
	for _, l := range ls {
		if l.RenderClass == kind {
			return l
		}
	}
	return nil
}

func lay(division int, class document.Kind, x float64) *Layout {
	return &Layout{Division: division, RenderClass: class, X: x, BoundingBoxes: noBoxes}
}

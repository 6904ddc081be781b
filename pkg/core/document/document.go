// Package document defines the score model consumed by the layout engine.
//
// A [Document] owns an ordered list of [Measure] values. Each measure maps
// part ids to a [MeasurePart], which holds the part's voice and staff
// [Segment] lists. Segment lists are indexed by voice or staff number and
// may contain nil holes; index 0 is always unused.
//
// Models are a tagged union over a fixed set of kinds (see [Kind]). The
// [Factory] creates models and answers type questions without reflection.
package document

import (
	"encoding/json"
	"slices"
)

// =============================================================================
// Document
// =============================================================================

// Document is a score: a header and the measures it owns.
type Document struct {
	Header   Header     `json:"header" yaml:"header" bson:"header"`
	Measures []*Measure `json:"measures" yaml:"measures" bson:"measures"`
}

// Header holds score metadata and the part list.
type Header struct {
	Title    string     `json:"title,omitempty" yaml:"title,omitempty" bson:"title,omitempty"`
	Composer string     `json:"composer,omitempty" yaml:"composer,omitempty" bson:"composer,omitempty"`
	Parts    []PartInfo `json:"parts,omitempty" yaml:"parts,omitempty" bson:"parts,omitempty"`
}

// PartInfo describes one part of the score.
type PartInfo struct {
	ID   string `json:"id" yaml:"id" bson:"id"`
	Name string `json:"name,omitempty" yaml:"name,omitempty" bson:"name,omitempty"`
}

// Clone returns a deep copy of d.
func (d *Document) Clone() *Document {
	c := &Document{Header: d.Header}
	c.Header.Parts = slices.Clone(d.Header.Parts)
	c.Measures = make([]*Measure, len(d.Measures))
	for i, m := range d.Measures {
		c.Measures[i] = m.Clone()
	}
	return c
}

// Last returns the final measure, or nil for an empty document.
func (d *Document) Last() *Measure {
	if len(d.Measures) == 0 {
		return nil
	}
	return d.Measures[len(d.Measures)-1]
}

// Reindex rewrites every measure's Idx to match its position.
func (d *Document) Reindex() {
	Reindex(d.Measures)
}

// Reindex rewrites every measure's Idx to match its position.
func Reindex(measures []*Measure) {
	for i, m := range measures {
		m.Idx = i
	}
}

// =============================================================================
// Measure
// =============================================================================

// Measure is one bar of the score across all parts.
//
// UUID is stable across structural edits; Idx follows the measure's position
// and changes when measures are inserted. Version is bumped on every
// internal mutation and drives memoization.
type Measure struct {
	UUID     int64                   `json:"uuid" yaml:"uuid" bson:"uuid"`
	Idx      int                     `json:"idx" yaml:"idx" bson:"idx"`
	Number   string                  `json:"number" yaml:"number" bson:"number"`
	Implicit bool                    `json:"implicit,omitempty" yaml:"implicit,omitempty" bson:"implicit,omitempty"`
	Version  int                     `json:"version" yaml:"version" bson:"version"`
	Width    float64                 `json:"width,omitempty" yaml:"width,omitempty" bson:"width,omitempty"`
	Parts    map[string]*MeasurePart `json:"parts" yaml:"parts" bson:"parts"`
}

// MeasurePart holds one part's segments within a measure.
type MeasurePart struct {
	Voices []*Segment `json:"voices" yaml:"voices" bson:"voices"`
	Staves []*Segment `json:"staves" yaml:"staves" bson:"staves"`
}

// PartIDs returns the measure's part ids in sorted order.
func (m *Measure) PartIDs() []string {
	ids := make([]string, 0, len(m.Parts))
	for id := range m.Parts {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// Segments returns every non-nil segment, voices before staves, parts in
// sorted order. Each segment's Part is set to its owning part id.
func (m *Measure) Segments() []*Segment {
	var voices, staves []*Segment
	for _, id := range m.PartIDs() {
		part := m.Parts[id]
		if part == nil {
			continue
		}
		for _, s := range part.Voices {
			if s != nil {
				s.Part = id
				voices = append(voices, s)
			}
		}
		for _, s := range part.Staves {
			if s != nil {
				s.Part = id
				staves = append(staves, s)
			}
		}
	}
	return append(voices, staves...)
}

// Staff returns the staff segment for part and staff, or nil.
func (m *Measure) Staff(part string, staff int) *Segment {
	p := m.Parts[part]
	if p == nil || staff < 0 || staff >= len(p.Staves) {
		return nil
	}
	return p.Staves[staff]
}

// Touch bumps the measure's version.
func (m *Measure) Touch() {
	m.Version++
}

// Clone returns a deep copy of m.
func (m *Measure) Clone() *Measure {
	c := *m
	c.Parts = make(map[string]*MeasurePart, len(m.Parts))
	for id, p := range m.Parts {
		if p == nil {
			c.Parts[id] = nil
			continue
		}
		c.Parts[id] = &MeasurePart{
			Voices: cloneSegments(p.Voices),
			Staves: cloneSegments(p.Staves),
		}
	}
	return &c
}

func cloneSegments(segs []*Segment) []*Segment {
	if segs == nil {
		return nil
	}
	out := make([]*Segment, len(segs))
	for i, s := range segs {
		if s != nil {
			out[i] = s.Clone()
		}
	}
	return out
}

// =============================================================================
// Segment
// =============================================================================

// OwnerType says whether a segment belongs to a staff or a voice.
type OwnerType string

// Owner types.
const (
	OwnerVoice OwnerType = "voice"
	OwnerStaff OwnerType = "staff"
)

// Segment is the ordered list of models for one (part, owner) pair within a
// measure. DivCounts of its models are expressed in units of Divisions.
type Segment struct {
	Owner     int       `json:"owner" yaml:"owner" bson:"owner"`
	OwnerType OwnerType `json:"ownerType" yaml:"ownerType" bson:"owner_type"`
	Part      string    `json:"part,omitempty" yaml:"part,omitempty" bson:"part,omitempty"`
	Divisions int       `json:"divisions" yaml:"divisions" bson:"divisions"`
	Models    []*Model  `json:"models" yaml:"models" bson:"models"`
}

// Len returns the number of models in the segment.
func (s *Segment) Len() int { return len(s.Models) }

// At returns the model at idx, or nil when idx is out of range or s is nil.
func (s *Segment) At(idx int) *Model {
	if s == nil || idx < 0 || idx >= len(s.Models) {
		return nil
	}
	return s.Models[idx]
}

// Insert places m at idx, shifting later models right.
func (s *Segment) Insert(idx int, m *Model) {
	s.Models = slices.Insert(s.Models, idx, m)
}

// Append adds m to the end of the segment.
func (s *Segment) Append(m *Model) {
	s.Models = append(s.Models, m)
}

// TotalDivCount returns the summed duration of the segment's models.
func (s *Segment) TotalDivCount() int {
	total := 0
	for _, m := range s.Models {
		total += m.DivCount
	}
	return total
}

// Empty returns a segment with the same metadata as s and no models.
func (s *Segment) Empty() *Segment {
	return &Segment{
		Owner:     s.Owner,
		OwnerType: s.OwnerType,
		Part:      s.Part,
		Divisions: s.Divisions,
	}
}

// Clone returns a deep copy of s.
func (s *Segment) Clone() *Segment {
	c := s.Empty()
	c.Models = make([]*Model, len(s.Models))
	for i, m := range s.Models {
		c.Models[i] = m.Clone()
	}
	return c
}

// IsStaff reports whether the segment is staff-owned.
func (s *Segment) IsStaff() bool { return s.OwnerType == OwnerStaff }

// MarshalJSON always emits a models array, never null.
func (s *Segment) MarshalJSON() ([]byte, error) {
	type Alias Segment
	a := (*Alias)(s)
	if a.Models == nil {
		cp := *a
		cp.Models = []*Model{}
		a = &cp
	}
	return json.Marshal(a)
}

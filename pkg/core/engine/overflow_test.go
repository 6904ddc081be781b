package engine

import (
	"slices"
	"testing"

	"github.com/jocelyn-stericker/satie-sub004/pkg/core/document"
	"github.com/jocelyn-stericker/satie-sub004/pkg/errors"
)

func divCounts(s *document.Segment) []int {
	out := make([]int, len(s.Models))
	for i, m := range s.Models {
		out[i] = m.DivCount
	}
	return out
}

func TestSplitVoice(t *testing.T) {
	tests := []struct {
		name     string
		counts   []int
		maxDiv   int
		old, new []int
	}{
		{name: "even split", counts: []int{2, 2, 2}, maxDiv: 4, old: []int{2, 2}, new: []int{2}},
		{name: "crossing element stays", counts: []int{3, 3}, maxDiv: 5, old: []int{3, 3}, new: []int{}},
		{name: "zero capacity", counts: []int{1}, maxDiv: 0, old: []int{}, new: []int{1}},
		{name: "grace note at the boundary moves", counts: []int{4, 0, 4}, maxDiv: 4, old: []int{4}, new: []int{0, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seg := voiceSegment(1)
			for _, c := range tt.counts {
				seg.Append(newChord(c))
			}
			oldSeg, newSeg := splitVoice(seg, tt.maxDiv)
			if got := divCounts(oldSeg); !slices.Equal(got, tt.old) {
				t.Errorf("old = %v, want %v", got, tt.old)
			}
			if got := divCounts(newSeg); !slices.Equal(got, tt.new) {
				t.Errorf("new = %v, want %v", got, tt.new)
			}
			if oldSeg.Owner != seg.Owner || newSeg.OwnerType != seg.OwnerType {
				t.Error("split halves should keep segment metadata")
			}
		})
	}
}

func TestSplitStaff(t *testing.T) {
	tests := []struct {
		name     string
		models   []*document.Model
		maxDiv   int
		old, new []document.Kind
	}{
		{
			name:   "barline dropped from the old half",
			models: []*document.Model{newAttributes(4, 4), newModel(document.KindSpacer, 4), newModel(document.KindBarline, 0)},
			maxDiv: 4,
			old:    []document.Kind{document.KindAttributes, document.KindSpacer},
			new:    []document.Kind{},
		},
		{
			name:   "spacer past the split moves",
			models: []*document.Model{newAttributes(4, 4), newModel(document.KindSpacer, 6), newModel(document.KindBarline, 0)},
			maxDiv: 4,
			old:    []document.Kind{document.KindAttributes},
			new:    []document.Kind{document.KindSpacer, document.KindBarline},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			oldSeg, newSeg := splitStaff(staffSegment(1, tt.models...), tt.maxDiv)
			if got := kindsOf(oldSeg.Models); !slices.Equal(got, tt.old) {
				t.Errorf("old = %v, want %v", got, tt.old)
			}
			if got := kindsOf(newSeg.Models); !slices.Equal(got, tt.new) {
				t.Errorf("new = %v, want %v", got, tt.new)
			}
		})
	}
}

func overflowingMeasure(uuid int64, number string) *document.Measure {
	return newMeasure(uuid, number,
		staffSegment(1, newAttributes(4, 4), newModel(document.KindSpacer, 4), newModel(document.KindBarline, 0)),
		staffSegment(2, newModel(document.KindSpacer, 8)),
		voiceSegment(1, newChord(4), newChord(4)),
	)
}

func TestResolveInsertsMeasure(t *testing.T) {
	first := overflowingMeasure(10, "1")
	second := newMeasure(20, "2", voiceSegment(1, newChord(4)))
	measures := []*document.Measure{first, second}
	document.Reindex(measures)

	o := NewDivisionOverflow(4, first, nil)
	got, next, err := o.Resolve(measures, NewSeededUUIDs(1))
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 || got[0] != first || got[1] != next || got[2] != second {
		t.Fatalf("measures = %v", got)
	}
	for i, m := range got {
		if m.Idx != i {
			t.Errorf("measure %d has Idx %d", i, m.Idx)
		}
	}
	if next.Number != "2" {
		t.Errorf("new number = %q, want %q", next.Number, "2")
	}
	if next.UUID == 0 || next.UUID == first.UUID || next.UUID == second.UUID || next.UUID > MaxSafeID {
		t.Errorf("new uuid = %d", next.UUID)
	}
	if first.Version != 1 || next.Version != 1 {
		t.Errorf("versions = %d, %d, want 1, 1", first.Version, next.Version)
	}
	if got := divCounts(first.Parts["P1"].Voices[1]); !slices.Equal(got, []int{4}) {
		t.Errorf("old voice = %v", got)
	}
	if got := divCounts(next.Parts["P1"].Voices[1]); !slices.Equal(got, []int{4}) {
		t.Errorf("new voice = %v", got)
	}
	staff1 := next.Parts["P1"].Staves[1]
	if staff1 == nil || len(staff1.Models) != 0 {
		t.Errorf("new staff 1 = %+v, want an empty segment", staff1)
	}
	if got := divCounts(next.Parts["P1"].Staves[2]); !slices.Equal(got, []int{8}) {
		t.Errorf("new staff 2 = %v", got)
	}
}

func TestResolveNumbering(t *testing.T) {
	tests := []struct {
		number string
		want   string
	}{
		{number: "7", want: "8"},
		{number: "pickup", want: "2"},
		{number: "", want: "2"},
	}
	for _, tt := range tests {
		t.Run(tt.number, func(t *testing.T) {
			m := overflowingMeasure(1, tt.number)
			_, next, err := NewDivisionOverflow(4, m, nil).Resolve([]*document.Measure{m}, NewSeededUUIDs(3))
			if err != nil {
				t.Fatal(err)
			}
			if next.Number != tt.want {
				t.Errorf("Number = %q, want %q", next.Number, tt.want)
			}
		})
	}
}

func TestResolveUnknownMeasure(t *testing.T) {
	m := overflowingMeasure(1, "1")
	other := newMeasure(2, "2")
	_, _, err := NewDivisionOverflow(4, m, nil).Resolve([]*document.Measure{other}, nil)
	if !errors.Is(err, errors.ErrCodeMissingElement) {
		t.Errorf("error = %v, want MISSING_ELEMENT", err)
	}
}

type fixedIDs []int64

func (f *fixedIDs) Next() int64 {
	id := (*f)[0]
	*f = (*f)[1:]
	return id
}

func TestResolveAvoidsTakenIDs(t *testing.T) {
	m := overflowingMeasure(5, "1")
	ids := fixedIDs{5, 0, 6}
	_, next, err := NewDivisionOverflow(4, m, nil).Resolve([]*document.Measure{m}, &ids)
	if err != nil {
		t.Fatal(err)
	}
	if next.UUID != 6 {
		t.Errorf("UUID = %d, want 6", next.UUID)
	}
}

func TestSeededUUIDsAreDeterministic(t *testing.T) {
	a, b := NewSeededUUIDs(42), NewSeededUUIDs(42)
	for range 10 {
		x, y := a.Next(), b.Next()
		if x != y {
			t.Fatalf("sequences diverged: %d != %d", x, y)
		}
		if x <= 0 || x > MaxSafeID {
			t.Fatalf("id %d out of range", x)
		}
	}
	if id := RandomUUIDs().Next(); id < 0 || id > MaxSafeID {
		t.Errorf("random id %d out of range", id)
	}
}

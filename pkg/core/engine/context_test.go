package engine

import (
	"testing"

	"github.com/jocelyn-stericker/satie-sub004/pkg/core/document"
)

func TestBarDivisions(t *testing.T) {
	tests := []struct {
		name      string
		time      document.Time
		divisions int
		want      int
	}{
		{name: "4/4", time: document.Time{Beats: []int{4}, BeatTypes: []int{4}}, divisions: 1, want: 4},
		{name: "3/4 at 4 per quarter", time: document.Time{Beats: []int{3}, BeatTypes: []int{4}}, divisions: 4, want: 12},
		{name: "6/8", time: document.Time{Beats: []int{6}, BeatTypes: []int{8}}, divisions: 2, want: 6},
		{name: "3/8+2/8", time: document.Time{Beats: []int{3, 2}, BeatTypes: []int{8, 8}}, divisions: 2, want: 5},
		{name: "shared beat type", time: document.Time{Beats: []int{2, 3}, BeatTypes: []int{4}}, divisions: 1, want: 5},
		{name: "senza misura", time: document.Time{SenzaMisura: true}, divisions: 2, want: 2000000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := DefaultSnapshot(tt.divisions).With(&document.Attributes{Time: &tt.time}, 1, 0)
			if got := snap.BarDivisions(DefaultSpacing()); got != tt.want {
				t.Errorf("BarDivisions() = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestSnapshotWithInherits(t *testing.T) {
	parent := DefaultSnapshot(2).With(&document.Attributes{Key: &document.Key{Fifths: 2}}, 1, 0)
	child := parent.With(&document.Attributes{Clefs: []document.Clef{{Staff: 1, Sign: "F", Line: 4}}}, 1, 3)

	if child.Key().Fifths != 2 {
		t.Errorf("key not inherited: %d", child.Key().Fifths)
	}
	if child.Clef().Sign != "F" {
		t.Errorf("clef = %+v, want F", child.Clef())
	}
	if parent.Clef().Sign != "G" {
		t.Error("parent snapshot was modified")
	}
	if child.Divisions() != 2 || child.Measure() != 3 {
		t.Errorf("divisions %d measure %d", child.Divisions(), child.Measure())
	}

	other := parent.With(&document.Attributes{Clefs: []document.Clef{{Staff: 2, Sign: "F", Line: 4}}}, 1, 3)
	if other.Clef().Sign != "G" {
		t.Error("a clef for staff 2 should not apply to staff 1")
	}
	if got := (*AttributesSnapshot)(nil).With(nil, 1, 0); got.Time().Beats[0] != 4 {
		t.Errorf("nil parent should inherit defaults, got %+v", got.Time())
	}
}

func TestSnapshotTimeIsCopied(t *testing.T) {
	snap := DefaultSnapshot(1)
	tm := snap.Time()
	tm.Beats[0] = 7
	if snap.Time().Beats[0] != 4 {
		t.Error("Time() exposed internal state")
	}
}

func TestAttributesMap(t *testing.T) {
	m := AttributesMap{}
	if m.Get("P1", 1) != nil {
		t.Error("empty map returned a snapshot")
	}
	s := DefaultSnapshot(1)
	m.Set("P1", 2, s)
	if m.Get("P1", 2) != s || m.Get("P1", 1) != nil {
		t.Error("Set/Get mismatch")
	}
	c := m.Clone()
	c.Set("P1", 1, s)
	if m.Get("P1", 1) != nil {
		t.Error("Clone shares staff slices")
	}
	if m.Fingerprint() == c.Fingerprint() {
		t.Error("different maps have the same fingerprint")
	}
}

func TestArena(t *testing.T) {
	var a Arena
	states := map[StaffKey]StaffState{
		{Part: "P2", Staff: 1}: {key: StaffKey{Part: "P2", Staff: 1}},
		{Part: "P1", Staff: 2}: {key: StaffKey{Part: "P1", Staff: 2}},
		{Part: "P1", Staff: 1}: {key: StaffKey{Part: "P1", Staff: 1}},
	}
	ids := a.PublishAll(states)
	want := map[StaffKey]SnapshotID{
		{Part: "P1", Staff: 1}: 0,
		{Part: "P1", Staff: 2}: 1,
		{Part: "P2", Staff: 1}: 2,
	}
	for k, id := range want {
		if ids[k] != id {
			t.Errorf("id[%v] = %d, want %d", k, ids[k], id)
		}
	}
	if _, ok := a.Get(NoSnapshot); ok {
		t.Error("Get(NoSnapshot) succeeded")
	}
	if st, ok := a.Get(1); !ok || st.Key().Staff != 2 {
		t.Errorf("Get(1) = %+v", st)
	}
}

func TestFreezeIsolatesAccidentals(t *testing.T) {
	ctx := newStaffContext(StaffKey{Part: "P1", Staff: 1}, DefaultSnapshot(1), NoSnapshot, DefaultSpacing())
	ctx.Accidentals["F4"] = 1
	state := ctx.Freeze()
	ctx.Accidentals["F4"] = 0
	if v, ok := state.Accidental("F4"); !ok || v != 1 {
		t.Errorf("frozen accidental = %d, %v", v, ok)
	}
	if state.TotalDivisions() != 4 {
		t.Errorf("TotalDivisions() = %d", state.TotalDivisions())
	}
}

func TestKeyAlter(t *testing.T) {
	tests := []struct {
		fifths int
		step   string
		want   int
	}{
		{0, "F", 0},
		{1, "F", 1},
		{1, "C", 0},
		{2, "C", 1},
		{-1, "B", -1},
		{-1, "E", 0},
		{-3, "A", -1},
		{7, "B", 1},
	}
	for _, tt := range tests {
		if got := keyAlter(tt.fifths, tt.step); got != tt.want {
			t.Errorf("keyAlter(%d, %s) = %d, want %d", tt.fifths, tt.step, got, tt.want)
		}
	}
}

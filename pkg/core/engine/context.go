package engine

import (
	"fmt"
	"maps"
	"math"
	"slices"
	"strings"

	"github.com/jocelyn-stericker/satie-sub004/pkg/core/document"
)

// =============================================================================
// Attributes Snapshots
// =============================================================================

// AttributesSnapshot is the effective clef, key, time and divisions on one
// staff after an attributes element has been applied. Snapshots are built
// once and never modified; applying a change returns a new snapshot.
type AttributesSnapshot struct {
	divisions int
	staves    int
	time      document.Time
	hasTime   bool
	key       document.Key
	clef      document.Clef
	measure   int
}

// DefaultSnapshot returns the attributes a staff starts with when nothing
// has been inherited: 4/4 time, C major and a treble clef.
func DefaultSnapshot(divisions int) *AttributesSnapshot {
	if divisions <= 0 {
		divisions = 1
	}
	return &AttributesSnapshot{
		divisions: divisions,
		staves:    1,
		time:      document.Time{Beats: []int{4}, BeatTypes: []int{4}},
		hasTime:   true,
		clef:      document.Clef{Sign: "G", Line: 2},
	}
}

// With returns the snapshot that results from applying a on top of s for
// the given staff. Fields a leaves unset are inherited. A nil receiver
// inherits from DefaultSnapshot.
func (s *AttributesSnapshot) With(a *document.Attributes, staff, measure int) *AttributesSnapshot {
	var next AttributesSnapshot
	if s != nil {
		next = *s
	} else {
		next = *DefaultSnapshot(1)
	}
	next.measure = measure
	if a == nil {
		return &next
	}
	if a.Divisions > 0 {
		next.divisions = a.Divisions
	}
	if a.Staves > 0 {
		next.staves = a.Staves
	}
	if a.Time != nil {
		next.time = document.Time{
			Beats:       slices.Clone(a.Time.Beats),
			BeatTypes:   slices.Clone(a.Time.BeatTypes),
			SenzaMisura: a.Time.SenzaMisura,
		}
		next.hasTime = true
	}
	if a.Key != nil {
		next.key = *a.Key
	}
	if c, ok := clefFor(a.Clefs, staff); ok {
		c.Staff = 0
		next.clef = c
	}
	return &next
}

func clefFor(clefs []document.Clef, staff int) (document.Clef, bool) {
	for _, c := range clefs {
		if c.Staff == staff || (c.Staff == 0 && staff <= 1) {
			return c, true
		}
	}
	return document.Clef{}, false
}

// Divisions returns the number of units per quarter note.
func (s *AttributesSnapshot) Divisions() int { return s.divisions }

// Staves returns the number of staves declared for the part.
func (s *AttributesSnapshot) Staves() int { return s.staves }

// Time returns a copy of the effective time signature.
func (s *AttributesSnapshot) Time() document.Time {
	t := s.time
	t.Beats = slices.Clone(t.Beats)
	t.BeatTypes = slices.Clone(t.BeatTypes)
	return t
}

// Key returns the effective key signature.
func (s *AttributesSnapshot) Key() document.Key { return s.key }

// Clef returns the effective clef.
func (s *AttributesSnapshot) Clef() document.Clef { return s.clef }

// Measure returns the index of the measure that last changed the snapshot.
func (s *AttributesSnapshot) Measure() int { return s.measure }

// BarDivisions returns the capacity of one measure in division units.
// Compound signatures sum their groups; senza misura measures are
// effectively unbounded.
func (s *AttributesSnapshot) BarDivisions(spacing Spacing) int {
	if s.time.SenzaMisura || !s.hasTime || len(s.time.Beats) == 0 {
		beats := spacing.SenzaMisuraBeat
		if beats <= 0 {
			beats = DefaultSpacing().SenzaMisuraBeat
		}
		return beats * s.divisions
	}
	quarters := 0.0
	for i, beats := range s.time.Beats {
		beatType := 4
		if i < len(s.time.BeatTypes) && s.time.BeatTypes[i] > 0 {
			beatType = s.time.BeatTypes[i]
		} else if len(s.time.BeatTypes) > 0 && s.time.BeatTypes[0] > 0 {
			beatType = s.time.BeatTypes[0]
		}
		quarters += float64(beats) * 4 / float64(beatType)
	}
	return int(math.Ceil(quarters * float64(s.divisions)))
}

// Fingerprint returns a stable textual identity for cache keys.
func (s *AttributesSnapshot) Fingerprint() string {
	if s == nil {
		return "-"
	}
	return fmt.Sprintf("d%d s%d t%v/%v%t k%d%s c%s%d",
		s.divisions, s.staves, s.time.Beats, s.time.BeatTypes, s.time.SenzaMisura,
		s.key.Fifths, s.key.Mode, s.clef.Sign, s.clef.Line)
}

// AttributesMap holds the snapshot in effect for each (part, staff). Maps
// handed between measures are never mutated; use Set on a copy.
type AttributesMap map[string][]*AttributesSnapshot

// Get returns the snapshot for part and staff, or nil.
func (m AttributesMap) Get(part string, staff int) *AttributesSnapshot {
	staves := m[part]
	if staff < 0 || staff >= len(staves) {
		return nil
	}
	return staves[staff]
}

// Clone returns a copy whose staff slices can be modified independently.
func (m AttributesMap) Clone() AttributesMap {
	c := make(AttributesMap, len(m))
	for part, staves := range m {
		c[part] = slices.Clone(staves)
	}
	return c
}

// Set stores s for part and staff, growing the staff slice as needed.
func (m AttributesMap) Set(part string, staff int, s *AttributesSnapshot) {
	staves := m[part]
	for len(staves) <= staff {
		staves = append(staves, nil)
	}
	staves[staff] = s
	m[part] = staves
}

// Fingerprint returns a stable textual identity of the whole map.
func (m AttributesMap) Fingerprint() string {
	var b strings.Builder
	for _, part := range slices.Sorted(maps.Keys(m)) {
		b.WriteString(part)
		for i, s := range m[part] {
			if i == 0 {
				continue
			}
			fmt.Fprintf(&b, "|%d:%s", i, s.Fingerprint())
		}
		b.WriteByte(';')
	}
	return b.String()
}

// =============================================================================
// Staff Contexts
// =============================================================================

// StaffKey addresses a staff of a part.
type StaffKey struct {
	Part  string
	Staff int
}

func (k StaffKey) String() string { return fmt.Sprintf("%s/%d", k.Part, k.Staff) }

// SnapshotID indexes a published StaffState in an Arena. NoSnapshot means
// there is no earlier state.
type SnapshotID int

// NoSnapshot is the id of a missing state.
const NoSnapshot SnapshotID = -1

// StaffContext is the mutable per-staff state of one reducer pass. It is
// created fresh for each (voice, staff) pair and frozen into a StaffState
// when the measure is done.
type StaffContext struct {
	Key            StaffKey
	Attributes     *AttributesSnapshot
	TotalDivisions int
	// Accidentals maps a pitch ("C4") to the alteration last shown on it in
	// this measure.
	Accidentals map[string]int
	Previous    SnapshotID
}

func newStaffContext(key StaffKey, attrs *AttributesSnapshot, previous SnapshotID, spacing Spacing) *StaffContext {
	c := &StaffContext{
		Key:         key,
		Attributes:  attrs,
		Accidentals: make(map[string]int),
		Previous:    previous,
	}
	if attrs != nil {
		c.TotalDivisions = attrs.BarDivisions(spacing)
	}
	return c
}

// Freeze returns an immutable copy of the context.
func (c *StaffContext) Freeze() StaffState {
	return StaffState{
		key:            c.Key,
		attributes:     c.Attributes,
		totalDivisions: c.TotalDivisions,
		accidentals:    maps.Clone(c.Accidentals),
		previous:       c.Previous,
	}
}

// StaffState is a frozen StaffContext. Later measures read it through an
// Arena to decide on courtesy accidentals.
type StaffState struct {
	key            StaffKey
	attributes     *AttributesSnapshot
	totalDivisions int
	accidentals    map[string]int
	previous       SnapshotID
}

// Key returns the staff the state belongs to.
func (s StaffState) Key() StaffKey { return s.key }

// Attributes returns the snapshot in effect at the end of the measure.
func (s StaffState) Attributes() *AttributesSnapshot { return s.attributes }

// TotalDivisions returns the measure capacity that was in effect.
func (s StaffState) TotalDivisions() int { return s.totalDivisions }

// Accidental returns the alteration last shown on pitch, if any.
func (s StaffState) Accidental(pitch string) (int, bool) {
	v, ok := s.accidentals[pitch]
	return v, ok
}

// Previous returns the id of the state this one was derived from.
func (s StaffState) Previous() SnapshotID { return s.previous }

// Fingerprint returns a stable textual identity for cache keys. Only what
// a following measure can observe is included.
func (s StaffState) Fingerprint() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s[%s]", s.key, s.attributes.Fingerprint())
	for _, pitch := range slices.Sorted(maps.Keys(s.accidentals)) {
		fmt.Fprintf(&b, " %s%+d", pitch, s.accidentals[pitch])
	}
	return b.String()
}

// Arena stores published staff states for one line. States are referenced
// by index; publishing appends and never rewrites. Publish must not run
// concurrently with reads.
type Arena struct {
	states []StaffState
}

// Publish appends s and returns its id.
func (a *Arena) Publish(s StaffState) SnapshotID {
	a.states = append(a.states, s)
	return SnapshotID(len(a.states) - 1)
}

// PublishAll publishes every state in deterministic key order and returns
// the id assigned to each staff.
func (a *Arena) PublishAll(states map[StaffKey]StaffState) map[StaffKey]SnapshotID {
	keys := slices.SortedFunc(maps.Keys(states), compareStaffKeys)
	ids := make(map[StaffKey]SnapshotID, len(keys))
	for _, k := range keys {
		ids[k] = a.Publish(states[k])
	}
	return ids
}

// Get returns the state with the given id.
func (a *Arena) Get(id SnapshotID) (StaffState, bool) {
	if a == nil || id < 0 || int(id) >= len(a.states) {
		return StaffState{}, false
	}
	return a.states[id], true
}

// Len returns the number of published states.
func (a *Arena) Len() int { return len(a.states) }

func compareStaffKeys(a, b StaffKey) int {
	if c := strings.Compare(a.Part, b.Part); c != 0 {
		return c
	}
	return a.Staff - b.Staff
}

// =============================================================================
// Measure and Line Contexts
// =============================================================================

// MeasureContext describes the measure being reduced.
type MeasureContext struct {
	UUID   int64
	Idx    int
	Number string
	X      float64
	Source *document.Measure
}

// LineContext carries state shared by every measure of a line.
type LineContext struct {
	// ShortestCount is the shortest chord duration on the line; chord
	// spacing is logarithmic relative to it. Zero means unknown.
	ShortestCount int
	// FirstIdx is the index of the line's first measure.
	FirstIdx int
	Spacing  Spacing
	Arena    *Arena
}

// NewLineContext returns a line context with an empty arena.
func NewLineContext(spacing Spacing, shortest, firstIdx int) *LineContext {
	return &LineContext{
		ShortestCount: shortest,
		FirstIdx:      firstIdx,
		Spacing:       spacing,
		Arena:         &Arena{},
	}
}

// ShortestCount returns the smallest nonzero chord duration in measures, or
// zero when there are no timed chords.
func ShortestCount(measures []*document.Measure) int {
	shortest := 0
	for _, m := range measures {
		for _, s := range m.Segments() {
			if s.IsStaff() {
				continue
			}
			for _, model := range s.Models {
				if model.Kind != document.KindChord || model.DivCount <= 0 {
					continue
				}
				if shortest == 0 || model.DivCount < shortest {
					shortest = model.DivCount
				}
			}
		}
	}
	return shortest
}

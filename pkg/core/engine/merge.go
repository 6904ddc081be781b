package engine

import (
	"cmp"
	"fmt"
	"math"
	"slices"

	"github.com/jocelyn-stericker/satie-sub004/pkg/core/document"
	"github.com/jocelyn-stericker/satie-sub004/pkg/dag"
)

// MergeStrategy selects how the first merge pass is computed. Both
// strategies produce the same positions.
type MergeStrategy string

// Merge strategies.
const (
	StrategyTwoPass     MergeStrategy = "two-pass"
	StrategyLongestPath MergeStrategy = "longest-path"
)

// ParseMergeStrategy validates a strategy name. The empty string selects
// StrategyTwoPass.
func ParseMergeStrategy(s string) (MergeStrategy, bool) {
	switch MergeStrategy(s) {
	case "", StrategyTwoPass:
		return StrategyTwoPass, true
	case StrategyLongestPath:
		return StrategyLongestPath, true
	}
	return "", false
}

func compareLayouts(a, b *Layout) int {
	if c := cmp.Compare(a.Division, b.Division); c != 0 {
		return c
	}
	return cmp.Compare(a.RenderClass, b.RenderClass)
}

func sortedLayouts(ls []*Layout) []*Layout {
	out := slices.Clone(ls)
	slices.SortStableFunc(out, compareLayouts)
	return out
}

// floorTracker yields, for each division visited in ascending order, the
// largest x seen at any earlier division.
type floorTracker struct {
	division int
	started  bool
	below    float64
	current  float64
}

func newFloorTracker() *floorTracker {
	return &floorTracker{below: math.Inf(-1), current: math.Inf(-1)}
}

func (f *floorTracker) at(division int) float64 {
	if !f.started || division != f.division {
		f.below = max(f.below, f.current)
		f.current = math.Inf(-1)
		f.division = division
		f.started = true
	}
	return f.below
}

func (f *floorTracker) saw(x float64) {
	f.current = max(f.current, x)
}

// Merge folds partial into master and returns the new master.
//
// Both lists are ordered by (Division, RenderClass). The k-th element of
// partial with a given key is matched with the k-th element of master with
// that key; both get the larger of their x positions. Unmatched partial
// elements are inserted. Every element is then raised to at least the
// largest x at any earlier division. Matched elements stay distinct
// objects; only master's copy is kept in the result.
func Merge(master, partial []*Layout) []*Layout {
	a := sortedLayouts(master)
	b := sortedLayouts(partial)
	out := make([]*Layout, 0, max(len(a), len(b)))
	floor := newFloorTracker()

	place := func(l *Layout) {
		l.X = max(l.X, floor.at(l.Division))
		floor.saw(l.X)
		out = append(out, l)
	}

	i, j := 0, 0
	for i < len(a) || j < len(b) {
		var c int
		switch {
		case i == len(a):
			c = 1
		case j == len(b):
			c = -1
		default:
			c = compareLayouts(a[i], b[j])
		}
		switch {
		case c < 0:
			place(a[i])
			i++
		case c > 0:
			place(b[j])
			j++
		default:
			x := max(a[i].X, b[j].X, floor.at(a[i].Division))
			a[i].X, b[j].X = x, x
			floor.saw(x)
			out = append(out, a[i])
			i++
			j++
		}
	}
	return out
}

// MergeAll folds every partial into an empty master in order.
func MergeAll(partials [][]*Layout) []*Layout {
	var master []*Layout
	for _, p := range partials {
		master = Merge(master, p)
	}
	return master
}

// MergeTwoPass folds every partial into a master, then folds each partial
// again so elements that were matched early pick up positions raised by
// later partials.
func MergeTwoPass(partials [][]*Layout) []*Layout {
	master := MergeAll(partials)
	for _, p := range partials {
		master = Merge(master, p)
	}
	return master
}

func mergeFirstPass(partials [][]*Layout, strategy MergeStrategy) []*Layout {
	if strategy == StrategyLongestPath {
		return MergeLongestPath(partials)
	}
	return MergeAll(partials)
}

// =============================================================================
// Merge Groups
// =============================================================================

// mergeGroup is the set of elements that a merge aligns to one x position:
// the k-th element with a given (Division, RenderClass) in every partial.
type mergeGroup struct {
	division   int
	class      document.Kind
	occurrence int
	members    []*Layout
	want       float64
}

func (g *mergeGroup) id() string {
	return fmt.Sprintf("%d/%s/%d", g.division, g.class, g.occurrence)
}

func compareGroups(a, b *mergeGroup) int {
	if c := cmp.Compare(a.division, b.division); c != 0 {
		return c
	}
	if c := cmp.Compare(a.class, b.class); c != 0 {
		return c
	}
	return cmp.Compare(a.occurrence, b.occurrence)
}

func groupLayouts(partials [][]*Layout) []*mergeGroup {
	type groupKey struct {
		division   int
		class      document.Kind
		occurrence int
	}
	byKey := make(map[groupKey]*mergeGroup)
	var groups []*mergeGroup
	for _, p := range partials {
		seen := make(map[groupKey]int)
		for _, l := range sortedLayouts(p) {
			base := groupKey{division: l.Division, class: l.RenderClass}
			k := base
			k.occurrence = seen[base]
			seen[base]++
			g := byKey[k]
			if g == nil {
				g = &mergeGroup{division: k.division, class: k.class, occurrence: k.occurrence, want: math.Inf(-1)}
				byKey[k] = g
				groups = append(groups, g)
			}
			if !slices.Contains(g.members, l) {
				g.members = append(g.members, l)
				g.want = max(g.want, l.X)
			}
		}
	}
	slices.SortFunc(groups, compareGroups)
	return groups
}

func representatives(groups []*mergeGroup) []*Layout {
	out := make([]*Layout, len(groups))
	for i, g := range groups {
		out[i] = g.members[0]
	}
	return out
}

// BuildMergeDAG returns the constraint graph of a merge. Row r holds the
// groups at the r-th distinct division, weighted by the largest x any
// member asks for, and consecutive rows are fully connected.
func BuildMergeDAG(partials [][]*Layout) *dag.DAG {
	g, _ := buildMergeDAG(groupLayouts(partials))
	return g
}

func buildMergeDAG(groups []*mergeGroup) (*dag.DAG, []string) {
	g := dag.New(dag.Metadata{"groups": len(groups)})
	ids := make([]string, len(groups))
	row := -1
	prev := 0
	for i, grp := range groups {
		if i == 0 || grp.division != prev {
			row++
			prev = grp.division
		}
		ids[i] = grp.id()
		_ = g.AddNode(dag.Node{
			ID:     ids[i],
			Row:    row,
			Weight: grp.want,
			Meta: dag.Metadata{
				"division": grp.division,
				"class":    grp.class.String(),
				"members":  len(grp.members),
			},
		})
	}
	g.ConnectRows()
	return g, ids
}

// MergeLongestPath computes the same positions as MergeTwoPass by building
// the merge constraint graph and taking, for every group, the largest
// weight on any path that ends at it. Every member of a group is moved to
// the group's position.
func MergeLongestPath(partials [][]*Layout) []*Layout {
	groups := groupLayouts(partials)
	g, ids := buildMergeDAG(groups)
	g.LongestPath()
	for i, grp := range groups {
		n, _ := g.Node(ids[i])
		for _, l := range grp.members {
			l.X = n.Value
		}
	}
	return representatives(groups)
}

// MergeReference is a quadratic reference merge: a group's position is the
// largest x wanted by the group or by any group at an earlier division.
func MergeReference(partials [][]*Layout) []*Layout {
	groups := groupLayouts(partials)
	xs := make([]float64, len(groups))
	for i, g := range groups {
		xs[i] = g.want
		for _, other := range groups {
			if other.division < g.division {
				xs[i] = max(xs[i], other.want)
			}
		}
	}
	for i, g := range groups {
		for _, l := range g.members {
			l.X = xs[i]
		}
	}
	return representatives(groups)
}

// =============================================================================
// Overlap Repair
// =============================================================================

// alignSpacing pushes right any element that would sit at or left of an
// element at an earlier division. Spacers and barlines are left alone.
func alignSpacing(master []*Layout, nudge float64) {
	prevDivision := -1
	minX := -10.0
	for _, l := range master {
		if minX >= l.X && l.Division != prevDivision &&
			l.RenderClass != document.KindSpacer && l.RenderClass != document.KindBarline {
			l.X = minX + nudge
		}
		minX = max(minX, l.X)
		prevDivision = l.Division
	}
}

// Package topology plans the group hierarchy used by the termination
// detector. The planner is a pure function of the process count and two
// shape parameters (leaf group size and branch factor); it performs no
// communication and owns no mutable state, so every mapping it exposes can
// be unit-tested in isolation.
package topology

import "fmt"

// GroupRef identifies a single group by its level and index within that
// level. Level 0 is the leaf level; the highest level holds exactly one
// group, the root.
type GroupRef struct {
	Level int
	Index int
}

func (g GroupRef) String() string {
	return fmt.Sprintf("L%d/g%d", g.Level, g.Index)
}

// Topology describes the complete group hierarchy for a job of NPEs
// processes. All fields are derived once by Plan and never mutated.
type Topology struct {
	NPEs       int
	LeafSize   int
	Branch     int
	Levels     int
	groupCount []int // groups per level, groupCount[Levels-1] == 1
}

// Plan derives the hierarchy for npes processes with the given leaf group
// size and branch factor. It returns an error for npes < 1, leafSize < 1 or
// branch < 2; it never assumes npes is divisible by either parameter.
func Plan(npes, leafSize, branch int) (*Topology, error) {
	if npes < 1 {
		return nil, fmt.Errorf("process count must be at least 1, got %d", npes)
	}
	if leafSize < 1 {
		return nil, fmt.Errorf("leaf group size must be at least 1, got %d", leafSize)
	}
	if branch < 2 {
		return nil, fmt.Errorf("branch factor must be at least 2, got %d", branch)
	}

	t := &Topology{
		NPEs:     npes,
		LeafSize: leafSize,
		Branch:   branch,
	}

	// Count levels until a single group covers everything.
	ng := ceilDiv(npes, leafSize)
	t.groupCount = append(t.groupCount, ng)
	for ng > 1 {
		ng = ceilDiv(ng, branch)
		t.groupCount = append(t.groupCount, ng)
	}
	t.Levels = len(t.groupCount)
	return t, nil
}

// Groups returns the number of groups at the given level.
func (t *Topology) Groups(level int) int {
	return t.groupCount[level]
}

// Span returns the nominal process span of a group at the given level:
// leafSize at level 0, leafSize*branch^level above.
func (t *Topology) Span(level int) int {
	span := t.LeafSize
	for l := 0; l < level; l++ {
		span *= t.Branch
	}
	return span
}

// Anchor returns the canonical host process of a group: the first process
// of the group's span. The anchor is fixed by formula and never changes;
// it says where the group's registry fields live, not who writes them.
func (t *Topology) Anchor(g GroupRef) int {
	return g.Index * t.Span(g.Level)
}

// Members returns the actual membership of a leaf group, clipped for the
// tail group when NPEs is not a multiple of the leaf size.
func (t *Topology) Members(g GroupRef) int {
	if g.Level != 0 {
		return t.Children(g)
	}
	start := t.Anchor(g)
	end := start + t.LeafSize
	if end > t.NPEs {
		end = t.NPEs
	}
	return end - start
}

// Children returns the number of child groups of an internal group: the
// branch factor nominally, fewer for the tail group of a level. For leaf
// groups it returns the member count.
func (t *Topology) Children(g GroupRef) int {
	if g.Level == 0 {
		return t.Members(g)
	}
	below := t.groupCount[g.Level-1]
	first := g.Index * t.Branch
	n := below - first
	if n > t.Branch {
		n = t.Branch
	}
	if n < 0 {
		n = 0
	}
	return n
}

// Child returns the i-th child group of an internal group.
func (t *Topology) Child(g GroupRef, i int) GroupRef {
	return GroupRef{Level: g.Level - 1, Index: g.Index*t.Branch + i}
}

// Parent returns the parent group of g. Calling Parent on the root is a
// programming error; callers gate on IsRoot.
func (t *Topology) Parent(g GroupRef) GroupRef {
	return GroupRef{Level: g.Level + 1, Index: g.Index / t.Branch}
}

// ChildSlot returns g's slot among its parent's children.
func (t *Topology) ChildSlot(g GroupRef) int {
	return g.Index % t.Branch
}

// GroupOf returns the group containing process pe at the given level.
func (t *Topology) GroupOf(pe, level int) GroupRef {
	return GroupRef{Level: level, Index: pe / t.Span(level)}
}

// Root returns the single top-level group.
func (t *Topology) Root() GroupRef {
	return GroupRef{Level: t.Levels - 1, Index: 0}
}

// IsRoot reports whether g is the top-level group.
func (t *Topology) IsRoot(g GroupRef) bool {
	return g.Level == t.Levels-1
}

// RootPE is the process hosting root-level coordination state. It is the
// anchor of the root group, which is always process 0.
func (t *Topology) RootPE() int {
	return 0
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}

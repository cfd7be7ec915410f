package render

import (
	"testing"

	"github.com/paulmach/osm"

	"github.com/wegman-software/osm2svg/internal/geom"
)

// fakeLookup is a hand-built entity index for resolver tests.
type fakeLookup struct {
	nodes map[osm.NodeID][2]float64 // lat, lon
	ways  map[osm.WayID][]osm.NodeID
	rels  map[osm.RelationID]osm.Members
}

func (f *fakeLookup) LookupNode(id osm.NodeID) (lat, lon float64, ok bool) {
	c, ok := f.nodes[id]
	return c[0], c[1], ok
}

func (f *fakeLookup) LookupWay(id osm.WayID) ([]osm.NodeID, bool) {
	refs, ok := f.ways[id]
	return refs, ok
}

func (f *fakeLookup) LookupRelation(id osm.RelationID) (osm.Members, bool) {
	members, ok := f.rels[id]
	return members, ok
}

func wayMember(ref int64) osm.Member {
	return osm.Member{Type: osm.TypeWay, Ref: ref, Role: "outer"}
}

func relMember(ref int64) osm.Member {
	return osm.Member{Type: osm.TypeRelation, Ref: ref}
}

func newTestResolver(t *testing.T, idx Lookup) *Resolver {
	t.Helper()
	r, err := NewResolver(idx, 128)
	if err != nil {
		t.Fatalf("new resolver: %v", err)
	}
	return r
}

func TestAssembleWay(t *testing.T) {
	idx := &fakeLookup{
		nodes: map[osm.NodeID][2]float64{
			1: {0, 0}, 2: {1, 1}, 3: {1, 0},
		},
		ways: map[osm.WayID][]osm.NodeID{
			10: {1, 2},
			11: {1, 2, 3, 1},
		},
	}
	r := newTestResolver(t, idx)

	path := r.AssembleWay(10)
	if path == nil {
		t.Fatal("way 10 did not assemble")
	}
	if path.WayID != 10 || len(path.Points) != 2 || path.Closed {
		t.Errorf("way 10 = %+v, want 2 open points", path)
	}
	// Points are lon/lat ordered
	if path.Points[1][0] != 1 || path.Points[1][1] != 1 {
		t.Errorf("point 1 = %v, want {1 1}", path.Points[1])
	}

	ring := r.AssembleWay(11)
	if ring == nil {
		t.Fatal("way 11 did not assemble")
	}
	if !ring.Closed || len(ring.Points) != 4 {
		t.Errorf("way 11 = %+v, want a closed 4-point ring", ring)
	}
}

func TestAssembleWayCacheSharesPath(t *testing.T) {
	idx := &fakeLookup{
		nodes: map[osm.NodeID][2]float64{1: {0, 0}, 2: {1, 1}},
		ways:  map[osm.WayID][]osm.NodeID{10: {1, 2}},
	}
	r := newTestResolver(t, idx)

	first := r.AssembleWay(10)
	second := r.AssembleWay(10)
	if first != second {
		t.Error("repeated assembly did not return the cached path")
	}
}

func TestAssembleWayDanglingNodes(t *testing.T) {
	idx := &fakeLookup{
		nodes: map[osm.NodeID][2]float64{1: {0, 0}, 2: {1, 1}, 3: {2, 2}},
		ways: map[osm.WayID][]osm.NodeID{
			10: {1, 99, 2, 3}, // one missing node, still 3 points
			11: {1, 99},       // degenerate after the drop
			12: {99, 1, 99},   // degenerate, even though the sequence was closed
		},
	}
	r := newTestResolver(t, idx)

	path := r.AssembleWay(10)
	if path == nil {
		t.Fatal("way 10 did not assemble")
	}
	if len(path.Points) != 3 {
		t.Errorf("way 10 has %d points, want 3 after dropping the missing node", len(path.Points))
	}
	if got := r.Warn.DanglingNodes.Load(); got != 1 {
		t.Errorf("dangling node warnings = %d, want 1", got)
	}

	if r.AssembleWay(11) != nil {
		t.Error("way 11 should be degenerate")
	}
	if r.AssembleWay(12) != nil {
		t.Error("way 12 should be degenerate")
	}
	if got := r.Warn.DegenerateWays.Load(); got != 2 {
		t.Errorf("degenerate way warnings = %d, want 2", got)
	}
}

func TestAssembleWayMissing(t *testing.T) {
	r := newTestResolver(t, &fakeLookup{})

	if r.AssembleWay(999) != nil {
		t.Error("absent way should not assemble")
	}
	if got := r.Warn.DanglingWays.Load(); got != 1 {
		t.Errorf("dangling way warnings = %d, want 1", got)
	}
}

func TestResolveNested(t *testing.T) {
	idx := &fakeLookup{
		nodes: map[osm.NodeID][2]float64{1: {0, 0}, 2: {1, 1}},
		ways:  map[osm.WayID][]osm.NodeID{10: {1, 2}},
		rels: map[osm.RelationID]osm.Members{
			100: {wayMember(10), relMember(101)},
			101: {wayMember(10)},
		},
	}
	r := newTestResolver(t, idx)

	group := r.Resolve(100, make(map[osm.RelationID]bool))
	if group.RelationID != 100 || len(group.Children) != 2 {
		t.Fatalf("group = %+v, want 2 children", group)
	}

	path, ok := group.Children[0].(*geom.Path)
	if !ok || path.WayID != 10 {
		t.Errorf("child 0 = %+v, want way 10", group.Children[0])
	}
	sub, ok := group.Children[1].(*geom.Group)
	if !ok || sub.RelationID != 101 || len(sub.Children) != 1 {
		t.Fatalf("child 1 = %+v, want nested group 101", group.Children[1])
	}
	if sub.Children[0] != group.Children[0] {
		t.Error("shared way resolved to distinct paths")
	}
	if got := r.Warn.Total(); got != 0 {
		t.Errorf("warnings = %d, want 0", got)
	}
}

func TestResolveDuplicateMembers(t *testing.T) {
	idx := &fakeLookup{
		nodes: map[osm.NodeID][2]float64{1: {0, 0}, 2: {1, 1}},
		ways:  map[osm.WayID][]osm.NodeID{10: {1, 2}},
		rels: map[osm.RelationID]osm.Members{
			100: {wayMember(10), wayMember(10)},
		},
	}
	r := newTestResolver(t, idx)

	group := r.Resolve(100, make(map[osm.RelationID]bool))
	if len(group.Children) != 2 {
		t.Fatalf("got %d children, want both occurrences of the duplicated way", len(group.Children))
	}
	if group.Children[0] != group.Children[1] {
		t.Error("duplicated way member should reference one cached path")
	}
}

func TestResolveSkipsNodeMembers(t *testing.T) {
	idx := &fakeLookup{
		nodes: map[osm.NodeID][2]float64{1: {0, 0}, 2: {1, 1}},
		ways:  map[osm.WayID][]osm.NodeID{10: {1, 2}},
		rels: map[osm.RelationID]osm.Members{
			100: {
				{Type: osm.TypeNode, Ref: 1, Role: "admin_centre"},
				wayMember(10),
			},
		},
	}
	r := newTestResolver(t, idx)

	group := r.Resolve(100, make(map[osm.RelationID]bool))
	if len(group.Children) != 1 {
		t.Fatalf("got %d children, want 1 (node member carries no geometry)", len(group.Children))
	}
}

func TestResolveCycle(t *testing.T) {
	idx := &fakeLookup{
		rels: map[osm.RelationID]osm.Members{
			200: {relMember(200)},
			201: {relMember(202)},
			202: {relMember(201)},
		},
	}
	r := newTestResolver(t, idx)

	group := r.Resolve(200, make(map[osm.RelationID]bool))
	if len(group.Children) != 1 {
		t.Fatalf("got %d children, want the truncated self-reference", len(group.Children))
	}
	inner := group.Children[0].(*geom.Group)
	if inner.RelationID != 200 || len(inner.Children) != 0 {
		t.Errorf("truncated branch = %+v, want empty group 200", inner)
	}
	if got := r.Warn.Cycles.Load(); got != 1 {
		t.Errorf("cycle warnings = %d, want 1", got)
	}

	// Mutual cycle terminates too
	r.Resolve(201, make(map[osm.RelationID]bool))
	if got := r.Warn.Cycles.Load(); got != 2 {
		t.Errorf("cycle warnings = %d, want 2", got)
	}
}

func TestResolveSiblingsAreNotCycles(t *testing.T) {
	// Diamond: 300 -> {301, 302}, both -> 303. The shared sub-relation sits
	// on two distinct paths, neither of which revisits an ancestor.
	idx := &fakeLookup{
		nodes: map[osm.NodeID][2]float64{1: {0, 0}, 2: {1, 1}},
		ways:  map[osm.WayID][]osm.NodeID{10: {1, 2}},
		rels: map[osm.RelationID]osm.Members{
			300: {relMember(301), relMember(302)},
			301: {relMember(303)},
			302: {relMember(303)},
			303: {wayMember(10)},
		},
	}
	r := newTestResolver(t, idx)

	group := r.Resolve(300, make(map[osm.RelationID]bool))
	if got := r.Warn.Cycles.Load(); got != 0 {
		t.Fatalf("cycle warnings = %d, want 0", got)
	}

	for i, child := range group.Children {
		sub := child.(*geom.Group)
		if len(sub.Children) != 1 {
			t.Fatalf("child %d = %+v, want one resolved sub-relation", i, sub)
		}
		leaf := sub.Children[0].(*geom.Group)
		if leaf.RelationID != 303 || len(leaf.Children) != 1 {
			t.Errorf("child %d leaf = %+v, want group 303 with one path", i, leaf)
		}
	}
}

func TestResolveDangling(t *testing.T) {
	idx := &fakeLookup{
		rels: map[osm.RelationID]osm.Members{
			100: {relMember(999)},
		},
	}
	r := newTestResolver(t, idx)

	group := r.Resolve(100, make(map[osm.RelationID]bool))
	if len(group.Children) != 1 {
		t.Fatalf("got %d children, want the empty placeholder group", len(group.Children))
	}
	inner := group.Children[0].(*geom.Group)
	if inner.RelationID != 999 || len(inner.Children) != 0 {
		t.Errorf("placeholder = %+v, want empty group 999", inner)
	}
	if got := r.Warn.DanglingRels.Load(); got != 1 {
		t.Errorf("dangling relation warnings = %d, want 1", got)
	}
}

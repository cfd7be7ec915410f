// Package geom holds the resolved geometry tree: the transient structure
// produced by resolving requested relations and ways, consumed by the SVG
// emitter.
package geom

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
)

// Geometry is a node of the resolved tree: either a *Path or a *Group.
type Geometry interface {
	isGeometry()
}

// Path is the resolved geometry of one way: its vertices in degrees
// (lon/lat order, as orb stores points) and whether the original node id
// sequence was closed. Paths may be shared between groups; they are never
// mutated after assembly.
type Path struct {
	WayID  osm.WayID
	Points orb.LineString
	Closed bool
}

// Group is the resolved geometry of one relation: its children in declared
// member order. A group may be empty (dangling or cyclic relation).
type Group struct {
	RelationID osm.RelationID
	Children   []Geometry
}

func (*Path) isGeometry()  {}
func (*Group) isGeometry() {}

// Bound returns the lon/lat bounding box over every point in the given
// trees. ok is false when the trees contain no points at all.
func Bound(geoms []Geometry) (bound orb.Bound, ok bool) {
	for _, g := range geoms {
		bound, ok = extendBound(bound, ok, g)
	}
	return bound, ok
}

func extendBound(bound orb.Bound, ok bool, g Geometry) (orb.Bound, bool) {
	switch t := g.(type) {
	case *Path:
		for _, p := range t.Points {
			if !ok {
				bound = orb.Bound{Min: p, Max: p}
				ok = true
			} else {
				bound = bound.Extend(p)
			}
		}
	case *Group:
		for _, child := range t.Children {
			bound, ok = extendBound(bound, ok, child)
		}
	}
	return bound, ok
}

// Count returns the number of groups and paths in the given trees. Shared
// paths count once per reference, matching what the emitter writes.
func Count(geoms []Geometry) (groups, paths int64) {
	for _, g := range geoms {
		switch t := g.(type) {
		case *Path:
			paths++
		case *Group:
			groups++
			cg, cp := Count(t.Children)
			groups += cg
			paths += cp
		}
	}
	return groups, paths
}

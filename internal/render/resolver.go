package render

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/paulmach/orb"
	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"github.com/wegman-software/osm2svg/internal/geom"
	"github.com/wegman-software/osm2svg/internal/logger"
)

// Lookup is the read-only entity index contract the resolver needs. It must
// not change while a render is in flight.
type Lookup interface {
	LookupNode(id osm.NodeID) (lat, lon float64, ok bool)
	LookupWay(id osm.WayID) ([]osm.NodeID, bool)
	LookupRelation(id osm.RelationID) (osm.Members, bool)
}

// Warnings tallies the recoverable problems of a run. Counters are atomic
// because top-level resolves run concurrently.
type Warnings struct {
	Cycles           atomic.Int64 // relation referenced an ancestor of its own resolution path
	DanglingRels     atomic.Int64 // relation member referencing an absent relation
	DanglingWays     atomic.Int64 // way reference absent from the extract
	DanglingNodes    atomic.Int64 // node id referenced by a way but absent
	DegenerateWays   atomic.Int64 // ways left with fewer than 2 resolvable points
	MissingRequested atomic.Int64 // requested ids that never appear in the extract
}

// Total returns the sum of all warning counters.
func (w *Warnings) Total() int64 {
	return w.Cycles.Load() + w.DanglingRels.Load() + w.DanglingWays.Load() +
		w.DanglingNodes.Load() + w.DegenerateWays.Load() + w.MissingRequested.Load()
}

// Resolver expands relation ids into geometry trees against a read-only
// entity index. Safe for concurrent use once the index is built: the only
// mutable state is the warning counters and the LRU cache, both thread-safe.
type Resolver struct {
	idx   Lookup
	log   *zap.Logger
	cache *lru.Cache[osm.WayID, *geom.Path]
	Warn  Warnings
}

// NewResolver creates a resolver with an assembled-way cache of the given
// size. A way reachable through several relations is assembled once and the
// same immutable Path is referenced from every occurrence.
func NewResolver(idx Lookup, cacheSize int) (*Resolver, error) {
	cache, err := lru.New[osm.WayID, *geom.Path](cacheSize)
	if err != nil {
		return nil, err
	}
	return &Resolver{
		idx:   idx,
		log:   logger.Get(),
		cache: cache,
	}, nil
}

// Resolve expands a relation into a Group, children in declared member
// order. Member roles are not interpreted: an "inner" way becomes its own
// path like any other, no ring/hole composition is performed.
//
// visited is the set of relation ids on the current resolution path;
// it guards against cycles and is restored before returning, so sibling
// occurrences of a shared sub-relation still resolve. Each top-level call
// must use its own visited map.
func (r *Resolver) Resolve(id osm.RelationID, visited map[osm.RelationID]bool) *geom.Group {
	group := &geom.Group{RelationID: id}

	if visited[id] {
		r.Warn.Cycles.Add(1)
		r.log.Warn("cycle detected, truncating branch", zap.Int64("relation", int64(id)))
		return group
	}

	members, ok := r.idx.LookupRelation(id)
	if !ok {
		r.Warn.DanglingRels.Add(1)
		r.log.Warn("relation not found", zap.Int64("relation", int64(id)))
		return group
	}

	visited[id] = true
	defer delete(visited, id)

	for _, m := range members {
		switch m.Type {
		case osm.TypeNode:
			// bare node members carry no path geometry
		case osm.TypeWay:
			if path := r.AssembleWay(osm.WayID(m.Ref)); path != nil {
				group.Children = append(group.Children, path)
			}
		case osm.TypeRelation:
			group.Children = append(group.Children, r.Resolve(osm.RelationID(m.Ref), visited))
		}
	}

	return group
}

// AssembleWay resolves a way's node id sequence into a Path. Missing nodes
// are dropped; a way left with fewer than 2 points, or absent from the
// extract, yields nil. The closed flag reflects the original id sequence,
// before any missing nodes are dropped.
func (r *Resolver) AssembleWay(id osm.WayID) *geom.Path {
	if path, ok := r.cache.Get(id); ok {
		return path
	}

	refs, ok := r.idx.LookupWay(id)
	if !ok {
		r.Warn.DanglingWays.Add(1)
		r.log.Warn("way not found", zap.Int64("way", int64(id)))
		return nil
	}

	closed := len(refs) >= 2 && refs[0] == refs[len(refs)-1]

	points := make(orb.LineString, 0, len(refs))
	for _, ref := range refs {
		lat, lon, ok := r.idx.LookupNode(ref)
		if !ok {
			r.Warn.DanglingNodes.Add(1)
			r.log.Debug("node not found, dropping from way",
				zap.Int64("node", int64(ref)), zap.Int64("way", int64(id)))
			continue
		}
		points = append(points, orb.Point{lon, lat})
	}

	if len(points) < 2 {
		r.Warn.DegenerateWays.Add(1)
		r.log.Warn("way has fewer than 2 resolvable points, skipping",
			zap.Int64("way", int64(id)), zap.Int("points", len(points)))
		return nil
	}

	path := &geom.Path{WayID: id, Points: points, Closed: closed}
	r.cache.Add(id, path)
	return path
}

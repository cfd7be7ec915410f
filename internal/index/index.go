// Package index builds the in-memory entity index for one conversion run:
// node id -> coordinate, way id -> node id sequence, relation id -> member
// list. Built in a single streaming pass over the decoded extract and
// read-only afterwards, so it is safe to share across resolver goroutines
// without locking.
package index

import (
	"context"
	"io"
	"time"

	"github.com/paulmach/osm"
	"go.uber.org/zap"

	"github.com/wegman-software/osm2svg/internal/logger"
	"github.com/wegman-software/osm2svg/internal/pbf"
)

// Index is the entity lookup built from a full pass over the extract.
type Index struct {
	nodes     NodeStore
	ways      map[osm.WayID][]osm.NodeID
	relations map[osm.RelationID]osm.Members
}

// Stats describes what was indexed.
type Stats struct {
	Nodes     int64
	Ways      int64
	Relations int64
	Duration  time.Duration
}

// Build streams the extract once and populates the index. The node store is
// taken over by the index; call Close to release it. Cancelling ctx aborts
// the pass.
func Build(ctx context.Context, r io.Reader, nodes NodeStore, workers int) (*Index, *Stats, error) {
	log := logger.Get()
	start := time.Now()

	idx := &Index{
		nodes:     nodes,
		ways:      make(map[osm.WayID][]osm.NodeID),
		relations: make(map[osm.RelationID]osm.Members),
	}

	scanner := pbf.NewScanner(ctx, r, workers)
	defer scanner.Close()

	progressCtx, cancelProgress := context.WithCancel(ctx)
	defer cancelProgress()
	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-progressCtx.Done():
				return
			case <-ticker.C:
				log.Debug("Index build progress",
					zap.Int64("nodes", idx.nodes.Len()),
					zap.Int("ways", len(idx.ways)),
					zap.Int("relations", len(idx.relations)))
			}
		}
	}()

	for scanner.Scan() {
		switch o := scanner.Object().(type) {
		case *osm.Node:
			idx.nodes.Put(int64(o.ID), o.Lat, o.Lon)
		case *osm.Way:
			refs := make([]osm.NodeID, len(o.Nodes))
			for i, wn := range o.Nodes {
				refs[i] = wn.ID
			}
			idx.ways[o.ID] = refs
		case *osm.Relation:
			idx.relations[o.ID] = o.Members
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}

	stats := &Stats{
		Nodes:     idx.nodes.Len(),
		Ways:      int64(len(idx.ways)),
		Relations: int64(len(idx.relations)),
		Duration:  time.Since(start),
	}
	return idx, stats, nil
}

// LookupNode returns a node's coordinates in degrees.
func (idx *Index) LookupNode(id osm.NodeID) (lat, lon float64, ok bool) {
	return idx.nodes.Get(int64(id))
}

// LookupWay returns a way's ordered node id sequence.
func (idx *Index) LookupWay(id osm.WayID) ([]osm.NodeID, bool) {
	refs, ok := idx.ways[id]
	return refs, ok
}

// LookupRelation returns a relation's ordered member list.
func (idx *Index) LookupRelation(id osm.RelationID) (osm.Members, bool) {
	members, ok := idx.relations[id]
	return members, ok
}

// Close releases the node store.
func (idx *Index) Close() error {
	return idx.nodes.Close()
}

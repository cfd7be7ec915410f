// Package render turns requested relation and way ids into a resolved
// geometry tree and emits it as SVG: resolve (with cycle and dangling
// protection), bound pre-pass, viewport fit, serialize.
package render

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/paulmach/osm"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/wegman-software/osm2svg/internal/config"
	"github.com/wegman-software/osm2svg/internal/geom"
	"github.com/wegman-software/osm2svg/internal/logger"
	"github.com/wegman-software/osm2svg/internal/proj"
	"github.com/wegman-software/osm2svg/internal/style"
	"github.com/wegman-software/osm2svg/internal/svg"
)

// ErrNoGeometry is returned when none of the requested ids produced any
// points, normally a sign that the wrong extract or id lists were given.
var ErrNoGeometry = errors.New("no geometry was produced for the requested ids")

// Stats summarizes one render.
type Stats struct {
	Groups   int64
	Paths    int64
	Warnings int64
	Duration time.Duration
}

// Renderer drives one run against a built entity index.
type Renderer struct {
	cfg      *config.Config
	idx      Lookup
	resolver *Resolver
	log      *zap.Logger
}

// New creates a renderer over a read-only index.
func New(cfg *config.Config, idx Lookup) (*Renderer, error) {
	resolver, err := NewResolver(idx, cfg.WayCacheSize)
	if err != nil {
		return nil, err
	}
	return &Renderer{
		cfg:      cfg,
		idx:      idx,
		resolver: resolver,
		log:      logger.Get(),
	}, nil
}

// Render resolves the requested relations and ways and writes the SVG
// document to w. Output order is fixed: one top-level group per requested
// relation in list order, then one top-level path per requested way in list
// order. Top-level relations resolve concurrently; the index is read-only
// at this point so no locking is needed.
func (r *Renderer) Render(ctx context.Context, relIDs, wayIDs []int64, w io.Writer, st *style.Style) (*Stats, error) {
	start := time.Now()

	// Results are placed by request position so concurrent resolution
	// cannot perturb output order.
	results := make([]geom.Geometry, len(relIDs)+len(wayIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Workers)
	for i, id := range relIDs {
		i, id := i, id
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			relID := osm.RelationID(id)
			if _, ok := r.idx.LookupRelation(relID); !ok {
				r.resolver.Warn.MissingRequested.Add(1)
				r.log.Warn("requested relation not found in extract", zap.Int64("relation", id))
				results[i] = &geom.Group{RelationID: relID}
				return nil
			}
			results[i] = r.resolver.Resolve(relID, make(map[osm.RelationID]bool))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Requested ways are assembled directly; a way may also be reachable
	// through a relation above, in which case the cached path is shared.
	for i, id := range wayIDs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		wayID := osm.WayID(id)
		if _, ok := r.idx.LookupWay(wayID); !ok {
			r.resolver.Warn.MissingRequested.Add(1)
			r.log.Warn("requested way not found in extract", zap.Int64("way", id))
			continue
		}
		if path := r.resolver.AssembleWay(wayID); path != nil {
			results[len(relIDs)+i] = path
		}
	}

	geoms := make([]geom.Geometry, 0, len(results))
	for _, res := range results {
		if res != nil {
			geoms = append(geoms, res)
		}
	}

	bound, ok := geom.Bound(geoms)
	if !ok {
		return nil, ErrNoGeometry
	}

	vp := proj.FitViewport(bound, r.cfg.Scale, st.Padding)
	if err := svg.Emit(w, geoms, vp, st, r.cfg.Precision); err != nil {
		return nil, err
	}

	groups, paths := geom.Count(geoms)
	stats := &Stats{
		Groups:   groups,
		Paths:    paths,
		Warnings: r.resolver.Warn.Total(),
		Duration: time.Since(start),
	}
	return stats, nil
}

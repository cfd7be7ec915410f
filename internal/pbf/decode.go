package pbf

import (
	"github.com/paulmach/osm"
)

// coordScale converts the nanodegree integer representation to degrees:
// degrees = 1e-9 * (offset + granularity * value)
const coordScale = 1e-9

// objects converts a decoded primitive block into OSM elements, applying
// running-sum delta decoding and string table resolution. Malformed tag or
// role indexes never fail the block; those tags/roles are simply dropped.
func (b *primitiveBlock) objects() []osm.Object {
	var out []osm.Object
	for i := range b.groups {
		g := &b.groups[i]

		if g.dense != nil {
			out = b.denseObjects(g.dense, out)
		}
		for j := range g.nodes {
			n := &g.nodes[j]
			out = append(out, &osm.Node{
				ID:   osm.NodeID(n.id),
				Lat:  b.coord(b.latOffset, n.lat),
				Lon:  b.coord(b.lonOffset, n.lon),
				Tags: b.tags(n.keys, n.vals),
			})
		}
		for j := range g.ways {
			out = append(out, b.way(&g.ways[j]))
		}
		for j := range g.relations {
			out = append(out, b.relation(&g.relations[j]))
		}
	}
	return out
}

func (b *primitiveBlock) coord(offset, value int64) float64 {
	return coordScale * float64(offset+b.granularity*value)
}

// str resolves a string table index, returning false when out of range.
func (b *primitiveBlock) str(i int32) (string, bool) {
	if i < 0 || int(i) >= len(b.strings) {
		return "", false
	}
	return string(b.strings[i]), true
}

func (b *primitiveBlock) tags(keys, vals []uint32) osm.Tags {
	if len(keys) == 0 || len(keys) != len(vals) {
		return nil
	}
	tags := make(osm.Tags, 0, len(keys))
	for i := range keys {
		k, ok := b.str(int32(keys[i]))
		if !ok {
			continue
		}
		v, ok := b.str(int32(vals[i]))
		if !ok {
			continue
		}
		tags = append(tags, osm.Tag{Key: k, Value: v})
	}
	return tags
}

func (b *primitiveBlock) denseObjects(d *denseNodes, out []osm.Object) []osm.Object {
	var id, lat, lon int64
	kv := 0
	for i := range d.ids {
		id += d.ids[i]
		lat += d.lats[i]
		lon += d.lons[i]

		var tags osm.Tags
		for kv < len(d.keysVals) && d.keysVals[kv] != 0 {
			if kv+1 >= len(d.keysVals) {
				// truncated key/val pair; drop the remainder
				kv = len(d.keysVals)
				break
			}
			k, kok := b.str(d.keysVals[kv])
			v, vok := b.str(d.keysVals[kv+1])
			kv += 2
			if kok && vok {
				tags = append(tags, osm.Tag{Key: k, Value: v})
			}
		}
		if kv < len(d.keysVals) {
			kv++ // consume the 0 terminator
		}

		out = append(out, &osm.Node{
			ID:   osm.NodeID(id),
			Lat:  b.coord(b.latOffset, lat),
			Lon:  b.coord(b.lonOffset, lon),
			Tags: tags,
		})
	}
	return out
}

func (b *primitiveBlock) way(w *wayMessage) *osm.Way {
	nodes := make(osm.WayNodes, 0, len(w.refs))
	var ref int64
	for _, delta := range w.refs {
		ref += delta
		nodes = append(nodes, osm.WayNode{ID: osm.NodeID(ref)})
	}
	return &osm.Way{
		ID:    osm.WayID(w.id),
		Nodes: nodes,
		Tags:  b.tags(w.keys, w.vals),
	}
}

func (b *primitiveBlock) relation(r *relationMessage) *osm.Relation {
	n := len(r.memids)
	if len(r.types) < n {
		n = len(r.types)
	}

	members := make(osm.Members, 0, n)
	var ref int64
	for i := 0; i < n; i++ {
		ref += r.memids[i]

		var typ osm.Type
		switch r.types[i] {
		case 0:
			typ = osm.TypeNode
		case 1:
			typ = osm.TypeWay
		case 2:
			typ = osm.TypeRelation
		default:
			continue // unknown member type
		}

		var role string
		if i < len(r.rolesSID) {
			role, _ = b.str(r.rolesSID[i])
		}

		members = append(members, osm.Member{Type: typ, Ref: ref, Role: role})
	}

	return &osm.Relation{
		ID:      osm.RelationID(r.id),
		Members: members,
		Tags:    b.tags(r.keys, r.vals),
	}
}

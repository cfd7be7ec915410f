package pbf

import (
	"fmt"

	"github.com/paulmach/protoscan"
)

// Message structs mirroring the OSM PBF protobuf schema, decoded with
// protoscan. Only the fields the geometry pipeline needs are materialized;
// everything else (info blocks, changesets, bboxes) is skipped.

type headerBlock struct {
	requiredFeatures []string
	optionalFeatures []string
}

type primitiveBlock struct {
	strings     [][]byte
	groups      []primitiveGroup
	granularity int64
	latOffset   int64
	lonOffset   int64
}

type primitiveGroup struct {
	nodes     []nodeMessage
	dense     *denseNodes
	ways      []wayMessage
	relations []relationMessage
}

type denseNodes struct {
	ids      []int64 // delta encoded
	lats     []int64 // delta encoded
	lons     []int64 // delta encoded
	keysVals []int32 // interleaved key/val string indexes, 0-terminated per node
}

type nodeMessage struct {
	id   int64
	lat  int64
	lon  int64
	keys []uint32
	vals []uint32
}

type wayMessage struct {
	id   int64
	keys []uint32
	vals []uint32
	refs []int64 // delta encoded
}

type relationMessage struct {
	id       int64
	keys     []uint32
	vals     []uint32
	rolesSID []int32
	memids   []int64 // delta encoded
	types    []int32
}

func parseHeaderBlock(data []byte) (*headerBlock, error) {
	h := &headerBlock{}
	msg := protoscan.New(data)
	for msg.Next() {
		switch msg.FieldNumber() {
		case 4:
			v, err := msg.String()
			if err != nil {
				return nil, fmt.Errorf("header required_features: %w", err)
			}
			h.requiredFeatures = append(h.requiredFeatures, v)
		case 5:
			v, err := msg.String()
			if err != nil {
				return nil, fmt.Errorf("header optional_features: %w", err)
			}
			h.optionalFeatures = append(h.optionalFeatures, v)
		default:
			msg.Skip()
		}
	}
	if err := msg.Err(); err != nil {
		return nil, fmt.Errorf("header block: %w", err)
	}
	return h, nil
}

func parsePrimitiveBlock(data []byte) (*primitiveBlock, error) {
	b := &primitiveBlock{granularity: 100}
	msg := protoscan.New(data)
	for msg.Next() {
		switch msg.FieldNumber() {
		case 1:
			stData, err := msg.MessageData()
			if err != nil {
				return nil, fmt.Errorf("string table: %w", err)
			}
			if err := parseStringTable(stData, b); err != nil {
				return nil, err
			}
		case 2:
			grpData, err := msg.MessageData()
			if err != nil {
				return nil, fmt.Errorf("primitive group: %w", err)
			}
			grp, err := parsePrimitiveGroup(grpData)
			if err != nil {
				return nil, err
			}
			b.groups = append(b.groups, *grp)
		case 17:
			v, err := msg.Int32()
			if err != nil {
				return nil, fmt.Errorf("granularity: %w", err)
			}
			b.granularity = int64(v)
		case 19:
			v, err := msg.Int64()
			if err != nil {
				return nil, fmt.Errorf("lat_offset: %w", err)
			}
			b.latOffset = v
		case 20:
			v, err := msg.Int64()
			if err != nil {
				return nil, fmt.Errorf("lon_offset: %w", err)
			}
			b.lonOffset = v
		default:
			msg.Skip()
		}
	}
	if err := msg.Err(); err != nil {
		return nil, fmt.Errorf("primitive block: %w", err)
	}
	if b.granularity <= 0 {
		return nil, fmt.Errorf("invalid granularity %d", b.granularity)
	}
	return b, nil
}

func parseStringTable(data []byte, b *primitiveBlock) error {
	msg := protoscan.New(data)
	for msg.Next() {
		if msg.FieldNumber() == 1 {
			v, err := msg.Bytes()
			if err != nil {
				return fmt.Errorf("string table entry: %w", err)
			}
			b.strings = append(b.strings, v)
		} else {
			msg.Skip()
		}
	}
	if err := msg.Err(); err != nil {
		return fmt.Errorf("string table: %w", err)
	}
	return nil
}

func parsePrimitiveGroup(data []byte) (*primitiveGroup, error) {
	g := &primitiveGroup{}
	msg := protoscan.New(data)
	for msg.Next() {
		switch msg.FieldNumber() {
		case 1:
			nd, err := msg.MessageData()
			if err != nil {
				return nil, fmt.Errorf("node: %w", err)
			}
			n, err := parseNode(nd)
			if err != nil {
				return nil, err
			}
			g.nodes = append(g.nodes, *n)
		case 2:
			dd, err := msg.MessageData()
			if err != nil {
				return nil, fmt.Errorf("dense nodes: %w", err)
			}
			d, err := parseDenseNodes(dd)
			if err != nil {
				return nil, err
			}
			g.dense = d
		case 3:
			wd, err := msg.MessageData()
			if err != nil {
				return nil, fmt.Errorf("way: %w", err)
			}
			w, err := parseWay(wd)
			if err != nil {
				return nil, err
			}
			g.ways = append(g.ways, *w)
		case 4:
			rd, err := msg.MessageData()
			if err != nil {
				return nil, fmt.Errorf("relation: %w", err)
			}
			r, err := parseRelation(rd)
			if err != nil {
				return nil, err
			}
			g.relations = append(g.relations, *r)
		default:
			// changesets and anything newer
			msg.Skip()
		}
	}
	if err := msg.Err(); err != nil {
		return nil, fmt.Errorf("primitive group: %w", err)
	}
	return g, nil
}

func parseDenseNodes(data []byte) (*denseNodes, error) {
	d := &denseNodes{}
	var err error
	msg := protoscan.New(data)
	for msg.Next() {
		switch msg.FieldNumber() {
		case 1:
			d.ids, err = msg.RepeatedSint64(d.ids)
		case 8:
			d.lats, err = msg.RepeatedSint64(d.lats)
		case 9:
			d.lons, err = msg.RepeatedSint64(d.lons)
		case 10:
			d.keysVals, err = msg.RepeatedInt32(d.keysVals)
		default:
			msg.Skip()
		}
		if err != nil {
			return nil, fmt.Errorf("dense nodes: %w", err)
		}
	}
	if err := msg.Err(); err != nil {
		return nil, fmt.Errorf("dense nodes: %w", err)
	}
	if len(d.lats) != len(d.ids) || len(d.lons) != len(d.ids) {
		return nil, fmt.Errorf("dense nodes: id/lat/lon length mismatch (%d/%d/%d)",
			len(d.ids), len(d.lats), len(d.lons))
	}
	return d, nil
}

func parseNode(data []byte) (*nodeMessage, error) {
	n := &nodeMessage{}
	var err error
	msg := protoscan.New(data)
	for msg.Next() {
		switch msg.FieldNumber() {
		case 1:
			n.id, err = msg.Sint64()
		case 2:
			n.keys, err = msg.RepeatedUint32(n.keys)
		case 3:
			n.vals, err = msg.RepeatedUint32(n.vals)
		case 8:
			n.lat, err = msg.Sint64()
		case 9:
			n.lon, err = msg.Sint64()
		default:
			msg.Skip()
		}
		if err != nil {
			return nil, fmt.Errorf("node: %w", err)
		}
	}
	if err := msg.Err(); err != nil {
		return nil, fmt.Errorf("node: %w", err)
	}
	return n, nil
}

func parseWay(data []byte) (*wayMessage, error) {
	w := &wayMessage{}
	var err error
	msg := protoscan.New(data)
	for msg.Next() {
		switch msg.FieldNumber() {
		case 1:
			w.id, err = msg.Int64()
		case 2:
			w.keys, err = msg.RepeatedUint32(w.keys)
		case 3:
			w.vals, err = msg.RepeatedUint32(w.vals)
		case 8:
			w.refs, err = msg.RepeatedSint64(w.refs)
		default:
			msg.Skip()
		}
		if err != nil {
			return nil, fmt.Errorf("way: %w", err)
		}
	}
	if err := msg.Err(); err != nil {
		return nil, fmt.Errorf("way: %w", err)
	}
	return w, nil
}

func parseRelation(data []byte) (*relationMessage, error) {
	r := &relationMessage{}
	var err error
	msg := protoscan.New(data)
	for msg.Next() {
		switch msg.FieldNumber() {
		case 1:
			r.id, err = msg.Int64()
		case 2:
			r.keys, err = msg.RepeatedUint32(r.keys)
		case 3:
			r.vals, err = msg.RepeatedUint32(r.vals)
		case 8:
			r.rolesSID, err = msg.RepeatedInt32(r.rolesSID)
		case 9:
			r.memids, err = msg.RepeatedSint64(r.memids)
		case 10:
			r.types, err = msg.RepeatedInt32(r.types)
		default:
			msg.Skip()
		}
		if err != nil {
			return nil, fmt.Errorf("relation: %w", err)
		}
	}
	if err := msg.Err(); err != nil {
		return nil, fmt.Errorf("relation: %w", err)
	}
	return r, nil
}

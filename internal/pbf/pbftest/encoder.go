// Package pbftest builds synthetic .osm.pbf fixtures at the wire level for
// decoder and index tests.
package pbftest

import (
	"bytes"
	"compress/zlib"
	"encoding/binary"
)

// AppendVarint appends a protobuf varint.
func AppendVarint(b []byte, v uint64) []byte {
	for v >= 0x80 {
		b = append(b, byte(v)|0x80)
		v >>= 7
	}
	return append(b, byte(v))
}

// AppendKey appends a field key with the given wire type.
func AppendKey(b []byte, field, wire int) []byte {
	return AppendVarint(b, uint64(field)<<3|uint64(wire))
}

// AppendVarintField appends a varint-typed field.
func AppendVarintField(b []byte, field int, v uint64) []byte {
	b = AppendKey(b, field, 0)
	return AppendVarint(b, v)
}

// AppendBytesField appends a length-delimited field.
func AppendBytesField(b []byte, field int, data []byte) []byte {
	b = AppendKey(b, field, 2)
	b = AppendVarint(b, uint64(len(data)))
	return append(b, data...)
}

// AppendStringField appends a string field.
func AppendStringField(b []byte, field int, s string) []byte {
	return AppendBytesField(b, field, []byte(s))
}

func zigzag(v int64) uint64 {
	return uint64((v << 1) ^ (v >> 63))
}

// AppendPackedSint64 appends a packed repeated sint64 field.
func AppendPackedSint64(b []byte, field int, vals []int64) []byte {
	var p []byte
	for _, v := range vals {
		p = AppendVarint(p, zigzag(v))
	}
	return AppendBytesField(b, field, p)
}

// AppendPackedVarint appends a packed repeated varint field.
func AppendPackedVarint(b []byte, field int, vals []uint64) []byte {
	var p []byte
	for _, v := range vals {
		p = AppendVarint(p, v)
	}
	return AppendBytesField(b, field, p)
}

// EncodeStringTable builds a StringTable message. Index 0 should be the
// empty string, as in real extracts.
func EncodeStringTable(strings []string) []byte {
	var b []byte
	for _, s := range strings {
		b = AppendStringField(b, 1, s)
	}
	return b
}

// Dense is a DenseNodes message. The id/lat/lon slices are delta encoded,
// exactly as they appear on the wire.
type Dense struct {
	IDs, Lats, Lons []int64
	KeysVals        []uint64
}

func (d Dense) encode() []byte {
	var b []byte
	b = AppendPackedSint64(b, 1, d.IDs)
	b = AppendPackedSint64(b, 8, d.Lats)
	b = AppendPackedSint64(b, 9, d.Lons)
	if len(d.KeysVals) > 0 {
		b = AppendPackedVarint(b, 10, d.KeysVals)
	}
	return b
}

// Way is a Way message with delta-encoded refs.
type Way struct {
	ID   int64
	Refs []int64
}

func (w Way) encode() []byte {
	var b []byte
	b = AppendVarintField(b, 1, uint64(w.ID))
	b = AppendPackedSint64(b, 8, w.Refs)
	return b
}

// Relation is a Relation message with delta-encoded member ids.
type Relation struct {
	ID       int64
	RolesSID []uint64
	MemIDs   []int64
	Types    []uint64
}

func (r Relation) encode() []byte {
	var b []byte
	b = AppendVarintField(b, 1, uint64(r.ID))
	if len(r.RolesSID) > 0 {
		b = AppendPackedVarint(b, 8, r.RolesSID)
	}
	b = AppendPackedSint64(b, 9, r.MemIDs)
	b = AppendPackedVarint(b, 10, r.Types)
	return b
}

// Block is one PrimitiveBlock.
type Block struct {
	Strings     []string
	Dense       *Dense
	Ways        []Way
	Relations   []Relation
	Granularity uint64 // 0 = leave the 100 default
	LatOffset   uint64
	LonOffset   uint64
}

// Encode returns the PrimitiveBlock message bytes.
func (tb Block) Encode() []byte {
	var grp []byte
	if tb.Dense != nil {
		grp = AppendBytesField(grp, 2, tb.Dense.encode())
	}
	for _, w := range tb.Ways {
		grp = AppendBytesField(grp, 3, w.encode())
	}
	for _, r := range tb.Relations {
		grp = AppendBytesField(grp, 4, r.encode())
	}

	var b []byte
	b = AppendBytesField(b, 1, EncodeStringTable(tb.Strings))
	b = AppendBytesField(b, 2, grp)
	if tb.Granularity != 0 {
		b = AppendVarintField(b, 17, tb.Granularity)
	}
	if tb.LatOffset != 0 {
		b = AppendVarintField(b, 19, tb.LatOffset)
	}
	if tb.LonOffset != 0 {
		b = AppendVarintField(b, 20, tb.LonOffset)
	}
	return b
}

// EncodeBlob wraps a payload into a Blob message, raw or zlib-compressed.
func EncodeBlob(payload []byte, compress bool) []byte {
	var b []byte
	if compress {
		var buf bytes.Buffer
		zw := zlib.NewWriter(&buf)
		zw.Write(payload)
		zw.Close()
		b = AppendVarintField(b, 2, uint64(len(payload)))
		b = AppendBytesField(b, 3, buf.Bytes())
	} else {
		b = AppendBytesField(b, 1, payload)
	}
	return b
}

// EncodeFileBlob writes one framed blob: length prefix, BlobHeader, Blob.
func EncodeFileBlob(kind string, blobData []byte) []byte {
	var header []byte
	header = AppendStringField(header, 1, kind)
	header = AppendVarintField(header, 3, uint64(len(blobData)))

	var out []byte
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(header)))
	out = append(out, lenBuf[:]...)
	out = append(out, header...)
	return append(out, blobData...)
}

// EncodeHeaderBlock builds a HeaderBlock with the given required features.
func EncodeHeaderBlock(requiredFeatures ...string) []byte {
	var b []byte
	for _, f := range requiredFeatures {
		b = AppendStringField(b, 4, f)
	}
	return b
}

// EncodeFile assembles a complete synthetic extract: a header blob followed
// by one zlib data blob per block.
func EncodeFile(blocks ...Block) []byte {
	out := EncodeFileBlob("OSMHeader", EncodeBlob(EncodeHeaderBlock("OsmSchema-V0.6", "DenseNodes"), false))
	for _, tb := range blocks {
		out = append(out, EncodeFileBlob("OSMData", EncodeBlob(tb.Encode(), true))...)
	}
	return out
}

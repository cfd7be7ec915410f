package index

import (
	"encoding/binary"
	"fmt"
	"os"

	mmap "github.com/edsrzf/mmap-go"
)

// NodeStore is the node id -> coordinate lookup, the hottest path of a run:
// every way dereferences every one of its node ids.
type NodeStore interface {
	Put(nodeID int64, lat, lon float64)
	Get(nodeID int64) (lat, lon float64, ok bool)
	Len() int64
	Close() error
}

// memStore keeps coordinates in a plain map. Suitable for extracts that fit
// in memory.
type memStore struct {
	coords map[int64][2]float64
}

// NewMemStore returns an in-memory node store.
func NewMemStore() NodeStore {
	return &memStore{coords: make(map[int64][2]float64)}
}

func (m *memStore) Put(nodeID int64, lat, lon float64) {
	m.coords[nodeID] = [2]float64{lat, lon}
}

func (m *memStore) Get(nodeID int64) (lat, lon float64, ok bool) {
	c, ok := m.coords[nodeID]
	if !ok {
		return 0, 0, false
	}
	return c[0], c[1], true
}

func (m *memStore) Len() int64 { return int64(len(m.coords)) }

func (m *memStore) Close() error { return nil }

const (
	// Each entry: lat (int32) + lon (int32), fixed-point value * 1e7
	entrySize = 8
	// Maximum node ID supported by the sparse layout
	maxNodeID = 10_000_000_000
)

// MmapStore is a memory-mapped node store backed by a sparse file. The entry
// for a node lives at offset nodeID * 8, giving O(1) lookup; unwritten pages
// read as zero and decode as absent. On Linux the file only occupies disk
// for pages actually written.
type MmapStore struct {
	path  string
	file  *os.File
	data  mmap.MMap
	count int64
}

// NewMmapStore creates the sparse backing file at path and maps it.
func NewMmapStore(path string) (*MmapStore, error) {
	size := int64(maxNodeID) * entrySize

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to create node store file: %w", err)
	}
	if err := f.Truncate(size); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to truncate node store file: %w", err)
	}

	data, err := mmap.Map(f, mmap.RDWR, 0)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to mmap node store file: %w", err)
	}

	return &MmapStore{path: path, file: f, data: data}, nil
}

// Put stores a node's coordinates. Writes to distinct node ids touch
// distinct offsets, so concurrent puts for unique ids are safe.
func (m *MmapStore) Put(nodeID int64, lat, lon float64) {
	if nodeID < 0 || nodeID >= maxNodeID {
		return // out of range for the sparse layout
	}

	offset := nodeID * entrySize
	binary.LittleEndian.PutUint32(m.data[offset:], uint32(int32(lat*1e7)))
	binary.LittleEndian.PutUint32(m.data[offset+4:], uint32(int32(lon*1e7)))
	m.count++
}

// Get retrieves a node's coordinates. A zero entry means the node was never
// written; a real node at exactly (0, 0) is indistinguishable and reads as
// absent.
func (m *MmapStore) Get(nodeID int64) (lat, lon float64, ok bool) {
	if nodeID < 0 || nodeID >= maxNodeID {
		return 0, 0, false
	}

	offset := nodeID * entrySize
	latInt := int32(binary.LittleEndian.Uint32(m.data[offset:]))
	lonInt := int32(binary.LittleEndian.Uint32(m.data[offset+4:]))
	if latInt == 0 && lonInt == 0 {
		return 0, 0, false
	}

	return float64(latInt) / 1e7, float64(lonInt) / 1e7, true
}

func (m *MmapStore) Len() int64 { return m.count }

// Close unmaps and removes the backing file.
func (m *MmapStore) Close() error {
	if err := m.data.Unmap(); err != nil {
		m.file.Close()
		return err
	}
	if err := m.file.Close(); err != nil {
		return err
	}
	return os.Remove(m.path)
}

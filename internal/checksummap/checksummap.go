// Package checksummap implements the block-indexed checksum store shared by
// all openers of one physical stripe file: add/check on write/read,
// reference counting, hole-filling on close, and a single reader-writer
// lock guarding the whole map.
package checksummap

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"

	"blainsmith.com/go/seahash"
)

// RefKind distinguishes read-only openers from read-write openers for
// reference counting, mirroring is_rw in the origin's ref_inc/ref_dec.
type RefKind int

const (
	RefRead RefKind = iota
	RefWrite
)

// Map is a block index -> checksum mapping for one physical stripe file.
// A single rw-lock guards it: Check takes the shared lock; Add (which
// mutates the map), the reference counters, ChangeMap, AddBlockSumHoles and
// Close take the exclusive lock.
type Map struct {
	mu        sync.RWMutex
	path      string
	blockSize int
	sums      map[int64][]byte
	refs      [2]int
	highWater int64 // one past the largest block index ever written
	dirty     bool
}

func newMap(path string, blockSize int) *Map {
	return &Map{path: path, blockSize: blockSize, sums: make(map[int64][]byte)}
}

// Attach opens the backing map file at path, or creates an empty map in
// memory if it does not exist and create is true. bookingSize is a sizing
// hint only (used to pre-size the in-memory map); it does not constrain the
// on-disk format.
func Attach(path string, bookingSize int64, blockSize int, create bool) (*Map, error) {
	m := newMap(path, blockSize)
	if bookingSize > 0 && blockSize > 0 {
		hint := int(bookingSize / int64(blockSize))
		if hint > 0 {
			m.sums = make(map[int64][]byte, hint)
		}
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			if !create {
				return nil, fmt.Errorf("checksummap: %s does not exist and create=false: %w", path, err)
			}
			return m, nil
		}
		return nil, fmt.Errorf("checksummap: open %s: %w", path, err)
	}
	defer f.Close()

	var persisted map[int64][]byte
	if err := gob.NewDecoder(f).Decode(&persisted); err != nil && err != io.EOF {
		return nil, fmt.Errorf("checksummap: decode %s: %w", path, err)
	}
	if persisted != nil {
		m.sums = persisted
	}
	for idx := range m.sums {
		if idx+1 > m.highWater {
			m.highWater = idx + 1
		}
	}
	return m, nil
}

func blockIndex(offset int64, blockSize int) int64 {
	return offset / int64(blockSize)
}

func checksum(buf []byte) []byte {
	h := seahash.New()
	h.Write(buf)
	sum := h.Sum64()
	out := make([]byte, 8)
	binary.LittleEndian.PutUint64(out, sum)
	return out
}

// Add computes and upserts the checksum for the block at offset.
func (m *Map) Add(offset int64, buf []byte) {
	idx := blockIndex(offset, m.blockSize)
	sum := checksum(buf)
	m.mu.Lock()
	m.sums[idx] = sum
	if idx+1 > m.highWater {
		m.highWater = idx + 1
	}
	m.dirty = true
	m.mu.Unlock()
}

// Check returns true iff the block at offset verifies against its recorded
// checksum, or there is no recorded checksum yet (nothing to verify
// against — e.g. a block never written through this map).
func (m *Map) Check(offset int64, buf []byte) bool {
	idx := blockIndex(offset, m.blockSize)
	want := checksum(buf)
	m.mu.RLock()
	defer m.mu.RUnlock()
	got, ok := m.sums[idx]
	if !ok {
		return true
	}
	return bytes.Equal(got, want)
}

func (m *Map) RefInc(kind RefKind) {
	m.mu.Lock()
	m.refs[kind]++
	m.mu.Unlock()
}

func (m *Map) RefDec(kind RefKind) {
	m.mu.Lock()
	if m.refs[kind] > 0 {
		m.refs[kind]--
	}
	m.mu.Unlock()
}

func (m *Map) NumRef(kind RefKind) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refs[kind]
}

func (m *Map) TotalRef() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.refs[RefRead] + m.refs[RefWrite]
}

// ChangeMap shrinks or extends the map to cover exactly newFileSize bytes.
// Shrinking below the current high-water mark requires resizeDownOK.
func (m *Map) ChangeMap(newFileSize int64, resizeDownOK bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	newBlocks := (newFileSize + int64(m.blockSize) - 1) / int64(m.blockSize)
	if newBlocks < m.highWater {
		if !resizeDownOK {
			return fmt.Errorf("checksummap: refusing to shrink map from %d to %d blocks without resizeDownOK", m.highWater, newBlocks)
		}
		for idx := newBlocks; idx < m.highWater; idx++ {
			delete(m.sums, idx)
		}
	}
	m.highWater = newBlocks
	m.dirty = true
	return nil
}

// AddBlockSumHoles fills in the checksum of every block index in
// [0, finalBlockCount) that has none, reading the block's contents from f.
// Called at close of the last read-write opener to guarantee a dense map.
func (m *Map) AddBlockSumHoles(f *os.File, finalBlockCount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	buf := make([]byte, m.blockSize)
	for idx := int64(0); idx < finalBlockCount; idx++ {
		if _, ok := m.sums[idx]; ok {
			continue
		}
		n, err := f.ReadAt(buf, idx*int64(m.blockSize))
		if err != nil && err != io.EOF {
			return fmt.Errorf("checksummap: read block %d for hole-fill: %w", idx, err)
		}
		block := buf
		if n < len(buf) {
			block = make([]byte, len(buf))
			copy(block, buf[:n])
		}
		m.sums[idx] = checksum(block)
	}
	if finalBlockCount > m.highWater {
		m.highWater = finalBlockCount
	}
	m.dirty = true
	return nil
}

// Close persists the map to its backing path if it has unpersisted changes.
func (m *Map) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.dirty {
		return nil
	}
	f, err := os.Create(m.path)
	if err != nil {
		return fmt.Errorf("checksummap: create %s: %w", m.path, err)
	}
	defer f.Close()
	if err := gob.NewEncoder(f).Encode(m.sums); err != nil {
		return fmt.Errorf("checksummap: encode %s: %w", m.path, err)
	}
	m.dirty = false
	return nil
}

// Unlink discards the in-memory map and removes its backing file.
func (m *Map) Unlink() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sums = make(map[int64][]byte)
	m.highWater = 0
	m.dirty = false
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("checksummap: unlink %s: %w", m.path, err)
	}
	return nil
}

// BlockIndices returns the sorted set of block indices covered by the map,
// for testing the density invariant ("no holes after the last writer
// closes").
func (m *Map) BlockIndices() []int64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]int64, 0, len(m.sums))
	for idx := range m.sums {
		out = append(out, idx)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

func (m *Map) Path() string { return m.path }

// Package memendpoint provides an in-memory remotestripe.Endpoint used by
// the groupengine tests in place of a real network transport,
// generalizing the teacher's own Disk/ClearDisk simulation
// (internal/raid.Disk) from a fixed-size in-memory disk to an arbitrarily
// growable byte-addressable endpoint with per-offset corruption injection,
// and optionally backed by a checksummap.Map the way the EOS origin's
// server-side file wrapper is.
package memendpoint

import (
	"context"
	"fmt"
	"sync"

	"github.com/Anthya1104/stripefec/internal/checksummap"
)

// Endpoint simulates one remote stripe file in memory.
type Endpoint struct {
	mu     sync.Mutex
	data   []byte
	fail   map[int64]bool
	sums   *checksummap.Map
	writes []int64
}

// New builds an endpoint. sums may be nil, in which case no checksum
// verification happens on read (only transport-style failures injected via
// Corrupt are detected).
func New(sums *checksummap.Map) *Endpoint {
	return &Endpoint{fail: make(map[int64]bool), sums: sums}
}

func (e *Endpoint) Read(ctx context.Context, offset int64, buf []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.fail[offset] {
		return fmt.Errorf("memendpoint: simulated failure at offset %d", offset)
	}

	end := offset + int64(len(buf))
	switch {
	case offset >= int64(len(e.data)):
		for i := range buf {
			buf[i] = 0
		}
	case end > int64(len(e.data)):
		n := copy(buf, e.data[offset:])
		for i := n; i < len(buf); i++ {
			buf[i] = 0
		}
	default:
		copy(buf, e.data[offset:end])
	}

	if e.sums != nil && !e.sums.Check(offset, buf) {
		return fmt.Errorf("memendpoint: checksum mismatch at offset %d", offset)
	}
	return nil
}

func (e *Endpoint) Write(ctx context.Context, offset int64, buf []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	end := offset + int64(len(buf))
	if end > int64(len(e.data)) {
		grown := make([]byte, end)
		copy(grown, e.data)
		e.data = grown
	}
	copy(e.data[offset:end], buf)
	e.writes = append(e.writes, offset)

	if e.sums != nil {
		e.sums.Add(offset, buf)
	}
	return nil
}

func (e *Endpoint) Truncate(ctx context.Context, offset int64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if offset <= int64(len(e.data)) {
		e.data = e.data[:offset]
		return nil
	}
	grown := make([]byte, offset)
	copy(grown, e.data)
	e.data = grown
	return nil
}

func (e *Endpoint) WaitOpen(ctx context.Context) error { return nil }
func (e *Endpoint) IsOpening() bool                    { return false }
func (e *Endpoint) IsClosing() bool                    { return false }
func (e *Endpoint) IsClosed() bool                     { return false }

// Corrupt forces the next and all subsequent reads at offset to fail,
// simulating a stripe failure or an unrecoverable transport error.
func (e *Endpoint) Corrupt(offset int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.fail[offset] = true
}

// ClearCorruption undoes a previous Corrupt (used to assert a write-back
// repaired the block at that offset).
func (e *Endpoint) ClearCorruption(offset int64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	delete(e.fail, offset)
}

// ZeroBlock simulates silent data loss (as opposed to a reported transport
// failure): the bytes are zeroed but reads still succeed, so corruption is
// only caught by checksum verification.
func (e *Endpoint) ZeroBlock(offset int64, length int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	end := offset + int64(length)
	if end > int64(len(e.data)) {
		return
	}
	for i := offset; i < end; i++ {
		e.data[i] = 0
	}
}

func (e *Endpoint) Len() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.data)
}

// RawBlock returns a copy of length bytes at offset, for asserting on
// write-back contents directly.
func (e *Endpoint) RawBlock(offset int64, length int) []byte {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]byte, length)
	end := offset + int64(length)
	if end > int64(len(e.data)) {
		end = int64(len(e.data))
	}
	if offset < end {
		copy(out, e.data[offset:end])
	}
	return out
}

func (e *Endpoint) WriteCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.writes)
}

// Package diskendpoint implements remotestripe.Endpoint against a local
// file, generalizing the teacher's in-memory internal/raid.Disk simulation
// to a real, growable, checksum-verified backing store. It plays the role
// the EOS origin's XrdFstOssFile plays for one physical stripe: byte-range
// I/O plus an attached checksummap.Map checked on every read and updated on
// every write.
package diskendpoint

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/Anthya1104/stripefec/internal/checksummap"
)

// Endpoint wraps one *os.File as a remotestripe.Endpoint.
type Endpoint struct {
	f    *os.File
	sums *checksummap.Map
}

// Open opens (creating if needed) the file at path and attaches sums, which
// may be nil to skip checksum verification.
func Open(path string, sums *checksummap.Map) (*Endpoint, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("diskendpoint: open %s: %w", path, err)
	}
	return &Endpoint{f: f, sums: sums}, nil
}

func (e *Endpoint) Read(ctx context.Context, offset int64, buf []byte) error {
	n, err := e.f.ReadAt(buf, offset)
	if err != nil && err != io.EOF {
		return fmt.Errorf("diskendpoint: read at %d: %w", offset, err)
	}
	for i := n; i < len(buf); i++ {
		buf[i] = 0
	}
	if e.sums != nil && !e.sums.Check(offset, buf) {
		return fmt.Errorf("diskendpoint: checksum mismatch at offset %d", offset)
	}
	return nil
}

func (e *Endpoint) Write(ctx context.Context, offset int64, buf []byte) error {
	if _, err := e.f.WriteAt(buf, offset); err != nil {
		return fmt.Errorf("diskendpoint: write at %d: %w", offset, err)
	}
	if e.sums != nil {
		e.sums.Add(offset, buf)
	}
	return nil
}

func (e *Endpoint) Truncate(ctx context.Context, offset int64) error {
	if err := e.f.Truncate(offset); err != nil {
		return fmt.Errorf("diskendpoint: truncate to %d: %w", offset, err)
	}
	return nil
}

func (e *Endpoint) WaitOpen(ctx context.Context) error { return nil }
func (e *Endpoint) IsOpening() bool                    { return false }
func (e *Endpoint) IsClosing() bool                    { return false }
func (e *Endpoint) IsClosed() bool                     { return e.f == nil }

// File exposes the backing *os.File, needed by checksummap.AddBlockSumHoles
// at close.
func (e *Endpoint) File() *os.File { return e.f }

func (e *Endpoint) Close() error {
	err := e.f.Close()
	e.f = nil
	return err
}

func (e *Endpoint) Size() (int64, error) {
	fi, err := e.f.Stat()
	if err != nil {
		return 0, fmt.Errorf("diskendpoint: stat: %w", err)
	}
	return fi.Size(), nil
}

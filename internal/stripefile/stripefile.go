// Package stripefile is the facade a caller opens, writes, reads, truncates
// and closes: it wires one groupengine.Engine across n diskendpoint-backed
// remote stripes, attaching each stripe's checksummap.Map through a shared
// registry.Registry exactly as XrdFstOssFile::Open/Close wire one physical
// file's checksum map through XrdFstSS.
package stripefile

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/Anthya1104/stripefec/internal/checksummap"
	"github.com/Anthya1104/stripefec/internal/config"
	"github.com/Anthya1104/stripefec/internal/diskendpoint"
	"github.com/Anthya1104/stripefec/internal/groupengine"
	"github.com/Anthya1104/stripefec/internal/registry"
	"github.com/Anthya1104/stripefec/internal/remotestripe"
)

// File is the open handle to one striped, erasure-coded logical file backed
// by n on-disk stripe files under dir.
type File struct {
	mu        sync.Mutex
	cfg       *config.Config
	reg       *registry.Registry
	engine    *groupengine.Engine
	paths     []string
	endpoints []*diskendpoint.Endpoint
	sums      []*checksummap.Map
	readWrite bool
	size      int64
	closed    bool
}

func stripePath(dir string, i int) string {
	return filepath.Join(dir, fmt.Sprintf("stripe.%02d", i))
}

// Open attaches to (creating if needed) the n stripe files under dir
// according to cfg, registering each one's checksum map with reg.
func Open(cfg *config.Config, dir string, reg *registry.Registry, readWrite bool) (*File, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	n := cfg.NumData + cfg.NumParity
	if cfg.Scheme == config.SchemeDoubleParity {
		n = cfg.NumData + 2
	}

	f := &File{cfg: cfg, reg: reg, readWrite: readWrite}
	refKind := checksummap.RefRead
	if readWrite {
		refKind = checksummap.RefWrite
	}

	stripes := make([]*remotestripe.RemoteStripe, n)
	for i := 0; i < n; i++ {
		path := stripePath(dir, i)
		sums, err := reg.LookupOrInsert(path+".sum", cfg.BookingSize, cfg.BlockSize, true)
		if err != nil {
			f.closeEndpoints()
			return nil, fmt.Errorf("stripefile: checksum map for %s: %w", path, err)
		}
		sums.RefInc(refKind)

		ep, err := diskendpoint.Open(path, sums)
		if err != nil {
			f.closeEndpoints()
			return nil, fmt.Errorf("stripefile: open stripe %d: %w", i, err)
		}

		f.paths = append(f.paths, path)
		f.endpoints = append(f.endpoints, ep)
		f.sums = append(f.sums, sums)
		stripes[i] = remotestripe.New(i, ep)
	}

	var engine *groupengine.Engine
	var err error
	switch cfg.Scheme {
	case config.SchemeDoubleParity:
		engine, err = groupengine.NewDoubleParity(cfg.StripeWidth, cfg.NumData, cfg.HeaderSize, stripes, cfg.StoreRecovery)
	case config.SchemeReedSolomon:
		engine, err = groupengine.NewReedSolomon(cfg.StripeWidth, cfg.NumData, cfg.NumParity, cfg.HeaderSize, stripes, cfg.StoreRecovery)
	default:
		err = fmt.Errorf("stripefile: unknown scheme %q", cfg.Scheme)
	}
	if err != nil {
		f.closeEndpoints()
		return nil, err
	}
	f.engine = engine
	return f, nil
}

func (f *File) closeEndpoints() {
	for i, ep := range f.endpoints {
		ep.Close()
		if i < len(f.sums) {
			refKind := checksummap.RefRead
			if f.readWrite {
				refKind = checksummap.RefWrite
			}
			f.sums[i].RefDec(refKind)
		}
	}
}

// Pwrite writes data at the logical offset offset. Only valid on a
// read-write handle.
func (f *File) Pwrite(ctx context.Context, offset int64, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.readWrite {
		return fmt.Errorf("stripefile: write on read-only handle")
	}
	if f.closed {
		return fmt.Errorf("stripefile: write on closed handle")
	}
	if err := f.engine.AddData(ctx, offset, data); err != nil {
		return err
	}
	if end := offset + int64(len(data)); end > f.size {
		f.size = end
	}
	return nil
}

// Pread reads len(buf) bytes starting at the logical offset offset,
// recovering corrupted or missing stripes transparently.
func (f *File) Pread(ctx context.Context, offset int64, buf []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return 0, fmt.Errorf("stripefile: read on closed handle")
	}
	return f.engine.Pread(ctx, offset, buf)
}

// Truncate resizes the logical file to byteOffset, rounding every stripe to
// the enclosing group boundary.
func (f *File) Truncate(ctx context.Context, byteOffset int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.readWrite {
		return fmt.Errorf("stripefile: truncate on read-only handle")
	}
	if err := f.engine.Truncate(ctx, byteOffset); err != nil {
		return err
	}
	f.size = byteOffset
	return nil
}

func (f *File) Size() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.size
}

// Close flushes any partially-accumulated group, releases this opener's
// checksum-map references, and — if this was the last read-write referent of
// a map — resizes it to the stripe's size, fills its holes and persists it,
// mirroring XrdFstOssFile::Close's ChangeMap + AddBlockSumHoles + CloseMap +
// AddMapping(release) ordering.
func (f *File) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return nil
	}
	f.closed = true

	var firstErr error
	if f.readWrite {
		if err := f.engine.FlushPartial(ctx); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stripefile: flush on close: %w", err)
		}
	}

	refKind := checksummap.RefRead
	if f.readWrite {
		refKind = checksummap.RefWrite
	}
	for i, sums := range f.sums {
		sums.RefDec(refKind)

		if f.readWrite && sums.NumRef(checksummap.RefWrite) == 0 {
			size, err := f.endpoints[i].Size()
			if err == nil {
				if err := sums.ChangeMap(size, true); err != nil && firstErr == nil {
					firstErr = fmt.Errorf("stripefile: resize checksum map of stripe %d: %w", i, err)
				}
				finalBlocks := (size + int64(f.cfg.BlockSize) - 1) / int64(f.cfg.BlockSize)
				if err := sums.AddBlockSumHoles(f.endpoints[i].File(), finalBlocks); err != nil && firstErr == nil {
					firstErr = fmt.Errorf("stripefile: hole-fill stripe %d: %w", i, err)
				}
			} else if firstErr == nil {
				firstErr = err
			}
		}

		if err := f.endpoints[i].Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stripefile: close stripe %d: %w", i, err)
		}
		if err := f.reg.Release(f.paths[i] + ".sum"); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("stripefile: release %s: %w", f.paths[i], err)
		}
	}
	return firstErr
}

//go:build fuse

// Package extern adapts a stripefile.File onto nodefs.File, the boundary a
// FUSE mount point would sit behind. It is a thin named-interface stub: the
// mount/unmount lifecycle, directory tree and inode bookkeeping a real
// driver needs are out of scope, but a kernel-facing Read/Write/Truncate
// surface exists here to show where one would attach.
package extern

import (
	"context"
	"sync"

	"github.com/Anthya1104/stripefec/internal/stripefile"
	"github.com/hanwen/go-fuse/v2/fuse"
	"github.com/hanwen/go-fuse/v2/fuse/nodefs"
)

// StripeFuseFile exposes one open stripefile.File as a nodefs.File.
type StripeFuseFile struct {
	nodefs.File

	mu   sync.Mutex
	file *stripefile.File
	size int64
}

func NewStripeFuseFile(f *stripefile.File) *StripeFuseFile {
	return &StripeFuseFile{File: nodefs.NewDefaultFile(), file: f, size: f.Size()}
}

func (f *StripeFuseFile) Read(buf []byte, off int64) (fuse.ReadResult, fuse.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()

	n, err := f.file.Pread(context.Background(), off, buf)
	if err != nil {
		return nil, fuse.EIO
	}
	return fuse.ReadResultData(buf[:n]), fuse.OK
}

func (f *StripeFuseFile) Write(data []byte, off int64) (uint32, fuse.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.file.Pwrite(context.Background(), off, data); err != nil {
		return 0, fuse.EIO
	}
	if end := off + int64(len(data)); end > f.size {
		f.size = end
	}
	return uint32(len(data)), fuse.OK
}

func (f *StripeFuseFile) GetAttr(out *fuse.Attr) fuse.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	out.Mode = fuse.S_IFREG | 0644
	out.Size = uint64(f.size)
	return fuse.OK
}

func (f *StripeFuseFile) Truncate(size uint64) fuse.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.file.Truncate(context.Background(), int64(size)); err != nil {
		return fuse.EIO
	}
	f.size = int64(size)
	return fuse.OK
}

func (f *StripeFuseFile) Flush() fuse.Status {
	return fuse.OK
}

func (f *StripeFuseFile) Release() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.file.Close(context.Background())
}

package remotestripe

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeEndpoint struct {
	mu      sync.Mutex
	data    map[int64][]byte
	failAt  map[int64]bool
	delay   time.Duration
	written []int64
}

func newFakeEndpoint() *fakeEndpoint {
	return &fakeEndpoint{data: make(map[int64][]byte), failAt: make(map[int64]bool)}
}

func (f *fakeEndpoint) Read(ctx context.Context, offset int64, buf []byte) error {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAt[offset] {
		return errors.New("simulated read failure")
	}
	copy(buf, f.data[offset])
	return nil
}

func (f *fakeEndpoint) Write(ctx context.Context, offset int64, buf []byte) error {
	time.Sleep(f.delay)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAt[offset] {
		return errors.New("simulated write failure")
	}
	cp := append([]byte{}, buf...)
	f.data[offset] = cp
	f.written = append(f.written, offset)
	return nil
}

func (f *fakeEndpoint) Truncate(ctx context.Context, offset int64) error { return nil }
func (f *fakeEndpoint) WaitOpen(ctx context.Context) error               { return nil }
func (f *fakeEndpoint) IsOpening() bool                                  { return false }
func (f *fakeEndpoint) IsClosing() bool                                  { return false }
func (f *fakeEndpoint) IsClosed() bool                                   { return false }

func TestWriteAsyncAllSucceed(t *testing.T) {
	ep := newFakeEndpoint()
	rs := New(0, ep)
	ctx := context.Background()

	for i := int64(0); i < 4; i++ {
		rs.WriteAsync(ctx, i*8, []byte{byte(i), byte(i), byte(i), byte(i), byte(i), byte(i), byte(i), byte(i)})
	}
	err := rs.WriteHandler().Wait()
	require.NoError(t, err)
	assert.Len(t, ep.written, 4)
}

func TestWriteAsyncPartialFailureReportsRanges(t *testing.T) {
	ep := newFakeEndpoint()
	ep.failAt[16] = true
	rs := New(1, ep)
	ctx := context.Background()

	for i := int64(0); i < 3; i++ {
		rs.WriteAsync(ctx, i*8, make([]byte, 8))
	}
	err := rs.WriteHandler().Wait()
	require.Error(t, err)
	var batchErr *BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, map[int64]int{16: 8}, batchErr.Ranges)
}

func TestResetAllowsNextBatch(t *testing.T) {
	ep := newFakeEndpoint()
	rs := New(2, ep)
	ctx := context.Background()

	rs.WriteAsync(ctx, 0, make([]byte, 4))
	require.NoError(t, rs.WriteHandler().Wait())
	rs.WriteHandler().Reset()

	rs.WriteAsync(ctx, 4, make([]byte, 4))
	require.NoError(t, rs.WriteHandler().Wait())
}

func TestWaitTwiceWithoutResetPanics(t *testing.T) {
	ep := newFakeEndpoint()
	rs := New(3, ep)
	ctx := context.Background()
	rs.WriteAsync(ctx, 0, make([]byte, 4))
	require.NoError(t, rs.WriteHandler().Wait())
	assert.Panics(t, func() { rs.WriteHandler().Wait() })
}

func TestReadAsyncDispatchesConcurrently(t *testing.T) {
	ep := newFakeEndpoint()
	ep.delay = 20 * time.Millisecond
	ep.data[0] = []byte{1, 2, 3, 4}
	ep.data[4] = []byte{5, 6, 7, 8}
	rs := New(4, ep)
	ctx := context.Background()

	buf1 := make([]byte, 4)
	buf2 := make([]byte, 4)
	start := time.Now()
	rs.ReadAsync(ctx, 0, buf1)
	rs.ReadAsync(ctx, 4, buf2)
	require.NoError(t, rs.ReadHandler().Wait())
	elapsed := time.Since(start)

	assert.Equal(t, []byte{1, 2, 3, 4}, buf1)
	assert.Equal(t, []byte{5, 6, 7, 8}, buf2)
	assert.Less(t, elapsed, 35*time.Millisecond, "two reads should run concurrently, not serially")
}

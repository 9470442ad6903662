// Package groupengine implements the per-group state machine: accumulating
// a streaming write into a parity group, computing and dispatching parity,
// and serving reads with on-the-fly recovery across either coding scheme.
package groupengine

import (
	"context"
	"errors"
	"fmt"

	"github.com/Anthya1104/stripefec/internal/paritylayout"
	"github.com/Anthya1104/stripefec/internal/remotestripe"
	"github.com/Anthya1104/stripefec/internal/rscodec"
	"github.com/Anthya1104/stripefec/internal/stripebuffer"
	"github.com/Anthya1104/stripefec/internal/xorcore"
)

// Kind selects the coding scheme a Engine drives.
type Kind int

const (
	DoubleParityKind Kind = iota
	ReedSolomonKind
)

// ErrUnrecoverable is returned when a read cannot be reconstructed: too many
// corrupted blocks for the scheme's redundancy, or (Reed-Solomon) no valid
// k-index combination exists.
var ErrUnrecoverable = errors.New("groupengine: block(s) could not be reconstructed")

// Engine drives one open file's group accumulation, parity computation and
// recovery. It is not safe for concurrent use: the stripe engine is
// single-threaded per open file, fanning out only across the n stripes of a
// single group flush (spec §5).
type Engine struct {
	kind   Kind
	width  int
	k, m, n int
	header int64

	layout   paritylayout.Layout
	dpLayout *paritylayout.DoubleParity // non-nil only for DoubleParityKind
	codec    *rscodec.Codec             // non-nil only for ReedSolomonKind

	stripes []*remotestripe.RemoteStripe
	buf     *stripebuffer.Buffer

	groupOffsetParity int64
	fullDataBlocks    bool
	storeRecovery     bool
}

// NewDoubleParity builds an Engine for the double-parity scheme. len(stripes)
// must be k+2 (k data stripes, 1 simple-parity stripe, 1 double-parity
// stripe, in that order).
func NewDoubleParity(width, k int, header int64, stripes []*remotestripe.RemoteStripe, storeRecovery bool) (*Engine, error) {
	if width <= 0 {
		return nil, fmt.Errorf("groupengine: width must be positive, got %d", width)
	}
	if len(stripes) != k+2 {
		return nil, fmt.Errorf("groupengine: double-parity needs %d stripes (k=%d data + 2 parity), got %d", k+2, k, len(stripes))
	}
	layout, err := paritylayout.NewDoubleParity(k)
	if err != nil {
		return nil, err
	}
	return &Engine{
		kind: DoubleParityKind, width: width, k: k, m: 2, n: k + 2,
		header: header, layout: layout, dpLayout: layout,
		stripes: stripes, buf: stripebuffer.New(layout.TotalBlocks(), width),
		groupOffsetParity: -1, storeRecovery: storeRecovery,
	}, nil
}

// NewReedSolomon builds an Engine for the Reed-Solomon scheme. len(stripes)
// must be k+m (k data stripes followed by m parity stripes).
func NewReedSolomon(width, k, m int, header int64, stripes []*remotestripe.RemoteStripe, storeRecovery bool) (*Engine, error) {
	if width <= 0 {
		return nil, fmt.Errorf("groupengine: width must be positive, got %d", width)
	}
	if len(stripes) != k+m {
		return nil, fmt.Errorf("groupengine: reed-solomon needs %d stripes (k=%d data + m=%d parity), got %d", k+m, k, m, len(stripes))
	}
	layout, err := paritylayout.NewReedSolomon(k, m)
	if err != nil {
		return nil, err
	}
	codec, err := rscodec.New(k, m)
	if err != nil {
		return nil, err
	}
	return &Engine{
		kind: ReedSolomonKind, width: width, k: k, m: m, n: k + m,
		header: header, layout: layout, codec: codec,
		stripes: stripes, buf: stripebuffer.New(k+m, width),
		groupOffsetParity: -1, storeRecovery: storeRecovery,
	}, nil
}

func (e *Engine) groupDataBytes() int64 {
	if e.kind == DoubleParityKind {
		return int64(e.k) * int64(e.k) * int64(e.width)
	}
	return int64(e.k) * int64(e.width)
}

// localOffset computes a stripe's local byte offset for row rowInGroup of
// the group starting at groupOffset, per spec §6: all n stripes of a row
// share the same local offset.
func (e *Engine) localOffset(groupOffset int64, rowInGroup int64) int64 {
	return groupOffset/int64(e.k) + rowInGroup*int64(e.width) + e.header
}

// AddData accumulates a streaming write of data starting at the logical
// offset offset, flushing and writing parity each time the write head
// crosses a group boundary.
func (e *Engine) AddData(ctx context.Context, offset int64, data []byte) error {
	groupBytes := e.groupDataBytes()
	if e.groupOffsetParity == -1 && offset < groupBytes {
		e.groupOffsetParity = 0
	}
	offsetInGroup := offset % groupBytes
	if offsetInGroup == 0 {
		e.fullDataBlocks = false
		e.buf.Clear()
	}

	for len(data) > 0 {
		offsetInBlock := offsetInGroup % int64(e.width)
		available := int64(e.width) - offsetInBlock
		blockSmallIdx := offsetInGroup / int64(e.width)
		n := int64(len(data))
		if n > available {
			n = available
		}

		bigIdx := e.layout.SmallToBig(int(blockSmallIdx))
		copy(e.buf.Block(bigIdx)[offsetInBlock:], data[:n])

		offset += n
		data = data[n:]
		offsetInGroup = offset % groupBytes

		if offsetInGroup == 0 {
			e.groupOffsetParity = ((offset - 1) / groupBytes) * groupBytes
			e.fullDataBlocks = true
			if err := e.computeAndWriteParity(ctx, e.groupOffsetParity); err != nil {
				return err
			}
			e.groupOffsetParity += groupBytes
			e.buf.Clear()
		}
	}
	return nil
}

// FlushPartial flushes a partially-accumulated group at close time, padding
// the unwritten data cells with the buffer's already-zeroed contents.
func (e *Engine) FlushPartial(ctx context.Context) error {
	if e.groupOffsetParity == -1 || e.fullDataBlocks {
		return nil
	}
	if err := e.computeAndWriteParity(ctx, e.groupOffsetParity); err != nil {
		return err
	}
	e.fullDataBlocks = true
	return nil
}

func (e *Engine) computeAndWriteParity(ctx context.Context, groupOffset int64) error {
	if err := e.computeParity(); err != nil {
		return err
	}
	for c := 0; c < e.k; c++ {
		e.stripes[c].WriteHandler().Reset()
	}
	for idx := 0; idx < e.layout.TotalBlocks(); idx++ {
		if _, isData := e.layout.BigToSmall(idx); isData {
			e.stripes[idx%e.n].WriteAsync(ctx, e.localOffset(groupOffset, int64(idx/e.n)), e.buf.Block(idx))
		}
	}
	for c := 0; c < e.k; c++ {
		if err := e.stripes[c].WriteHandler().Wait(); err != nil {
			return fmt.Errorf("groupengine: data stripe %d write failed: %w", c, err)
		}
	}
	return e.writeParity(ctx, groupOffset)
}

func (e *Engine) computeParity() error {
	if e.kind == DoubleParityKind {
		e.computeDoubleParity()
		return nil
	}
	return e.computeReedSolomonParity()
}

func (e *Engine) computeDoubleParity() {
	dp := e.dpLayout
	k := dp.K()

	for r := 0; r < k; r++ {
		spCell := e.buf.Block(dp.SimpleParityIndices()[r])
		xorcore.Zero(spCell)
		for c := 0; c < k; c++ {
			xorcore.Into(spCell, e.buf.Block(dp.SmallToBig(r*k+c)))
		}
	}

	for d := 0; d < k; d++ {
		dpCell := e.buf.Block(dp.DoubleParityIndices()[d])
		xorcore.Zero(dpCell)
		for _, m := range dp.DiagonalMembers(d) {
			xorcore.Into(dpCell, e.buf.Block(m))
		}
	}
}

func (e *Engine) computeReedSolomonParity() error {
	data := make([][]byte, e.k)
	for i := 0; i < e.k; i++ {
		data[i] = e.buf.Block(i)
	}
	parity := make([][]byte, e.m)
	for i := 0; i < e.m; i++ {
		parity[i] = e.buf.Block(e.k + i)
	}
	return e.codec.Encode(data, parity, e.width)
}

func (e *Engine) writeParity(ctx context.Context, groupOffset int64) error {
	if e.kind == DoubleParityKind {
		return e.writeParityDoubleParity(ctx, groupOffset)
	}
	return e.writeParityReedSolomon(ctx, groupOffset)
}

func (e *Engine) writeParityDoubleParity(ctx context.Context, groupOffset int64) error {
	dp := e.dpLayout
	k := dp.K()
	spStripe := e.stripes[e.n-2]
	dpStripe := e.stripes[e.n-1]
	spStripe.WriteHandler().Reset()
	dpStripe.WriteHandler().Reset()

	spIdx := dp.SimpleParityIndices()
	dpIdx := dp.DoubleParityIndices()
	for r := 0; r < k; r++ {
		local := e.localOffset(groupOffset, int64(r))
		spStripe.WriteAsync(ctx, local, e.buf.Block(spIdx[r]))
		dpStripe.WriteAsync(ctx, local, e.buf.Block(dpIdx[r]))
	}

	if err := spStripe.WriteHandler().Wait(); err != nil {
		return fmt.Errorf("groupengine: simple-parity write failed: %w", err)
	}
	if err := dpStripe.WriteHandler().Wait(); err != nil {
		return fmt.Errorf("groupengine: double-parity write failed: %w", err)
	}
	return nil
}

func (e *Engine) writeParityReedSolomon(ctx context.Context, groupOffset int64) error {
	base := e.localOffset(groupOffset, 0)
	for i := 0; i < e.m; i++ {
		stripe := e.stripes[e.k+i]
		stripe.WriteHandler().Reset()
		stripe.WriteAsync(ctx, base, e.buf.Block(e.k+i))
	}
	for i := 0; i < e.m; i++ {
		if err := e.stripes[e.k+i].WriteHandler().Wait(); err != nil {
			return fmt.Errorf("groupengine: parity stripe %d write failed: %w", e.k+i, err)
		}
	}
	return nil
}

// Pread reads len(out) bytes starting at the logical offset offset,
// dispatching reads row by row and recovering any corrupted block along the
// way.
func (e *Engine) Pread(ctx context.Context, offset int64, out []byte) (int, error) {
	rowDataBytes := int64(e.k) * int64(e.width)
	written := 0
	for written < len(out) {
		rowIdx := offset / rowDataBytes
		offsetInRow := offset % rowDataBytes
		toCopy := int(rowDataBytes - offsetInRow)
		if remaining := len(out) - written; toCopy > remaining {
			toCopy = remaining
		}

		rowBuf, err := e.readRow(ctx, rowIdx)
		if err != nil {
			return written, err
		}
		copy(out[written:written+toCopy], rowBuf[offsetInRow:int(offsetInRow)+toCopy])

		written += toCopy
		offset += int64(toCopy)
	}
	return written, nil
}

func (e *Engine) readRow(ctx context.Context, rowIdx int64) ([]byte, error) {
	var groupIdx, rowInGroup int64
	if e.kind == DoubleParityKind {
		groupIdx = rowIdx / int64(e.k)
		rowInGroup = rowIdx % int64(e.k)
	} else {
		groupIdx = rowIdx
		rowInGroup = 0
	}
	groupOffset := groupIdx * e.groupDataBytes()
	local := e.localOffset(groupOffset, rowInGroup)

	blocks := make(map[int][]byte, e.n)
	for s := 0; s < e.n; s++ {
		buf := make([]byte, e.width)
		idx := int(rowInGroup)*e.n + s
		blocks[idx] = buf
		e.stripes[s].ReadAsync(ctx, local, buf)
	}

	corrupt := make(map[int]bool)
	for s := 0; s < e.n; s++ {
		idx := int(rowInGroup)*e.n + s
		err := e.stripes[s].ReadHandler().Wait()
		e.stripes[s].ReadHandler().Reset()
		if err != nil {
			corrupt[idx] = true
		}
	}

	if len(corrupt) > 0 {
		var err error
		if e.kind == DoubleParityKind {
			err = e.recoverDoubleParity(ctx, groupOffset, blocks, corrupt)
		} else {
			err = e.recoverReedSolomon(ctx, groupOffset, blocks, corrupt)
		}
		if err != nil {
			return nil, err
		}
	}

	out := make([]byte, 0, e.k*e.width)
	for c := 0; c < e.k; c++ {
		var smallIdx int
		if e.kind == DoubleParityKind {
			smallIdx = int(rowInGroup)*e.k + c
		} else {
			smallIdx = c
		}
		bigIdx := e.layout.SmallToBig(smallIdx)
		out = append(out, blocks[bigIdx]...)
	}
	return out, nil
}

func (e *Engine) writeBackBlock(ctx context.Context, groupOffset int64, blockIdx int, data []byte) error {
	row := blockIdx / e.n
	col := blockIdx % e.n
	local := e.localOffset(groupOffset, int64(row))
	stripe := e.stripes[col]
	stripe.WriteHandler().Reset()
	stripe.WriteAsync(ctx, local, data)
	return stripe.WriteHandler().Wait()
}

func (e *Engine) recoverDoubleParity(ctx context.Context, groupOffset int64, blocks map[int][]byte, corrupt map[int]bool) error {
	// Diagonal stripes span every row of the group: load the rows not read yet.
	for r := 0; r < e.k; r++ {
		if _, loaded := blocks[r*e.n]; loaded {
			continue
		}
		for s := 0; s < e.n; s++ {
			blocks[r*e.n+s] = make([]byte, e.width)
			e.stripes[s].ReadAsync(ctx, e.localOffset(groupOffset, int64(r)), blocks[r*e.n+s])
		}
		for s := 0; s < e.n; s++ {
			if err := e.stripes[s].ReadHandler().Wait(); err != nil {
				corrupt[r*e.n+s] = true
			}
			e.stripes[s].ReadHandler().Reset()
		}
	}
	total := e.dpLayout.TotalBlocks()
	status := make([]bool, total)
	for i := range status {
		status[i] = true
	}
	for c := range corrupt {
		status[c] = false
	}

	countBad := func(members []int) int {
		n := 0
		for _, m := range members {
			if !status[m] {
				n++
			}
		}
		return n
	}

	queue := make([]int, 0, len(corrupt))
	for c := range corrupt {
		queue = append(queue, c)
	}
	var excluded []int

	for len(queue) > 0 {
		c := queue[len(queue)-1]
		queue = queue[:len(queue)-1]

		var members []int
		if horiz := e.dpLayout.HorizontalStripe(c); horiz != nil && countBad(horiz) <= 1 {
			members = horiz
		} else if diag := e.dpLayout.DiagonalStripe(c); diag != nil && countBad(diag) <= 1 {
			members = diag
		}

		if members == nil {
			excluded = append(excluded, c)
			continue
		}

		xorRecover(blocks, c, members)
		status[c] = true

		if e.storeRecovery {
			if err := e.writeBackBlock(ctx, groupOffset, c, blocks[c]); err != nil {
				return fmt.Errorf("groupengine: write-back for block %d: %w", c, err)
			}
		}

		if len(excluded) > 0 {
			queue = append(queue, excluded...)
			excluded = nil
		}
	}

	if len(excluded) > 0 {
		return fmt.Errorf("%w: %d block(s) unrecoverable in group at offset %d", ErrUnrecoverable, len(excluded), groupOffset)
	}
	return nil
}

func xorRecover(blocks map[int][]byte, target int, members []int) {
	buf := blocks[target]
	xorcore.Zero(buf)
	for _, m := range members {
		if m == target {
			continue
		}
		xorcore.Into(buf, blocks[m])
	}
}

func (e *Engine) recoverReedSolomon(ctx context.Context, groupOffset int64, blocks map[int][]byte, corrupt map[int]bool) error {
	if len(corrupt) > e.m {
		return fmt.Errorf("%w: %d corrupted blocks exceed %d parity blocks", ErrUnrecoverable, len(corrupt), e.m)
	}

	valid := make([]int, 0, e.n-len(corrupt))
	for i := 0; i < e.n; i++ {
		if !corrupt[i] {
			valid = append(valid, i)
		}
	}
	present, err := rscodec.SelectPresentIndices(e.k, e.n, valid)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnrecoverable, err)
	}

	shards := make([][]byte, e.n)
	for i := 0; i < e.n; i++ {
		shards[i] = blocks[i]
	}
	if err := e.codec.Decode(shards, present, e.width); err != nil {
		return fmt.Errorf("groupengine: reed-solomon decode: %w", err)
	}

	if e.storeRecovery {
		for idx := range corrupt {
			if err := e.writeBackBlock(ctx, groupOffset, idx, blocks[idx]); err != nil {
				return fmt.Errorf("groupengine: write-back for block %d: %w", idx, err)
			}
		}
	}
	return nil
}

// Truncate rounds byteOffset up to a group boundary and truncates every
// stripe to the corresponding local offset.
func (e *Engine) Truncate(ctx context.Context, byteOffset int64) error {
	groupBytes := e.groupDataBytes()
	groups := (byteOffset + groupBytes - 1) / groupBytes

	var local int64
	if e.kind == DoubleParityKind {
		local = groups*int64(e.width)*int64(e.k) + e.header
	} else {
		local = groups*int64(e.width) + e.header
	}

	for _, s := range e.stripes {
		if err := s.Truncate(ctx, local); err != nil {
			return fmt.Errorf("groupengine: truncate stripe %d: %w", s.ID(), err)
		}
	}
	e.groupOffsetParity = -1
	e.fullDataBlocks = false
	e.buf.Clear()
	return nil
}

func (e *Engine) Width() int    { return e.width }
func (e *Engine) K() int        { return e.k }
func (e *Engine) M() int        { return e.m }
func (e *Engine) N() int        { return e.n }
func (e *Engine) Header() int64 { return e.header }

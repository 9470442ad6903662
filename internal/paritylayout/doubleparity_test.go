package paritylayout

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDoubleParityIndicesK4(t *testing.T) {
	d, err := NewDoubleParity(4)
	require.NoError(t, err)
	assert.Equal(t, 24, d.TotalBlocks())
	assert.Equal(t, []int{4, 10, 16, 22}, d.SimpleParityIndices())
	assert.Equal(t, []int{5, 11, 17, 23}, d.DoubleParityIndices())
}

func TestSmallToBigBigToSmallRoundTrip(t *testing.T) {
	d, err := NewDoubleParity(4)
	require.NoError(t, err)
	for i := 0; i < d.K()*d.K(); i++ {
		big := d.SmallToBig(i)
		small, ok := d.BigToSmall(big)
		require.True(t, ok)
		assert.Equal(t, i, small)
	}
}

func TestBigToSmallRejectsParityColumns(t *testing.T) {
	d, err := NewDoubleParity(4)
	require.NoError(t, err)
	for _, p := range d.ParityIndices() {
		_, ok := d.BigToSmall(p)
		assert.False(t, ok, "parity index %d must not be a data cell", p)
	}
}

func TestHorizontalStripeExcludesDoubleParityCell(t *testing.T) {
	d, err := NewDoubleParity(4)
	require.NoError(t, err)
	stripe := d.HorizontalStripe(0)
	assert.Equal(t, []int{0, 1, 2, 3, 4}, stripe)
	assert.NotContains(t, stripe, 5)
}

func TestHorizontalStripeOfDoubleParityCellIsNil(t *testing.T) {
	d, err := NewDoubleParity(4)
	require.NoError(t, err)
	for _, dp := range d.DoubleParityIndices() {
		assert.Nil(t, d.HorizontalStripe(dp))
	}
}

func TestDiagonalStripeMatchesKnownTraceK4(t *testing.T) {
	d, err := NewDoubleParity(4)
	require.NoError(t, err)

	// These traces reproduce the EOS RaidDpFile.cc GetDiagonalStripe walk
	// for k=4 (jump=7, grid width=6) starting at blocks 0 and 1.
	s0 := d.DiagonalStripe(0)
	assert.ElementsMatch(t, []int{0, 7, 14, 21, 5}, s0)

	s1 := d.DiagonalStripe(1)
	assert.ElementsMatch(t, []int{1, 8, 15, 22, 11}, s1)
}

func TestOmittedDiagonalIsEmpty(t *testing.T) {
	d, err := NewDoubleParity(4)
	require.NoError(t, err)
	// Block index k (simple-parity cell of row 0) must not appear in any
	// diagonal and diagonal_stripe(k) must be nil.
	assert.Nil(t, d.DiagonalStripe(d.K()))
	for diag := 0; diag < d.K(); diag++ {
		assert.NotContains(t, d.DiagonalMembers(diag), d.K())
	}
}

func TestEveryDiagonalHasKPlus1DistinctMembers(t *testing.T) {
	for _, k := range []int{2, 3, 4, 5, 6, 8} {
		d, err := NewDoubleParity(k)
		require.NoError(t, err)
		for diag := 0; diag < k; diag++ {
			members := d.DiagonalStripe(d.DoubleParityIndices()[diag])
			assert.Len(t, members, k+1, "k=%d diag=%d", k, diag)
			seen := make(map[int]bool, len(members))
			for _, m := range members {
				assert.False(t, seen[m], "duplicate member %d in k=%d diag=%d", m, k, diag)
				seen[m] = true
			}
		}
	}
}

func TestNewDoubleParityRejectsSmallK(t *testing.T) {
	_, err := NewDoubleParity(1)
	assert.Error(t, err)
}

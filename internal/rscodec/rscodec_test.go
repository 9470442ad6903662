package rscodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func makeData(k, width int, fill byte) [][]byte {
	data := make([][]byte, k)
	for i := range data {
		data[i] = make([]byte, width)
		for j := range data[i] {
			data[i][j] = fill + byte(i)
		}
	}
	return data
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	k, m, width := 4, 2, 64
	c, err := New(k, m)
	require.NoError(t, err)

	data := makeData(k, width, 0x10)
	parity := make([][]byte, m)
	for i := range parity {
		parity[i] = make([]byte, width)
	}
	require.NoError(t, c.Encode(data, parity, width))

	shards := make([][]byte, k+m)
	copy(shards, data)
	copy(shards[k:], parity)

	// erase 2 shards (one primary, one secondary), at most m. Decode writes
	// reconstructed shards into caller-allocated width-byte buffers.
	original0 := append([]byte{}, shards[0]...)
	originalP := append([]byte{}, shards[k]...)
	shards[0] = make([]byte, width)
	shards[k] = make([]byte, width)

	present, err := SelectPresentIndices(k, k+m, []int{1, 2, 3, k + 1})
	require.NoError(t, err)
	require.NoError(t, c.Decode(shards, present, width))

	assert.Equal(t, original0, shards[0])
	assert.Equal(t, originalP, shards[k])
}

func TestDecodeTooFewPresentIndices(t *testing.T) {
	c, err := New(4, 2)
	require.NoError(t, err)
	shards := make([][]byte, 6)
	err = c.Decode(shards, []int{0, 1, 2}, 64)
	assert.Error(t, err)
}

func TestSelectPresentIndicesPrimaryMustBeAtOwnIndex(t *testing.T) {
	// k=3,n=5: only indices {1,2,3,4} survive (0 missing). A valid
	// selection must keep primary 1 and 2 at their own slots and pull the
	// third needed value from a secondary (3 or 4).
	idx, err := SelectPresentIndices(3, 5, []int{1, 2, 3, 4})
	require.NoError(t, err)
	assert.Equal(t, 1, idx[1])
	assert.Equal(t, 2, idx[2])
	assert.Contains(t, []int{3, 4}, idx[0])
}

func TestSelectPresentIndicesUnsatisfiable(t *testing.T) {
	// Two primaries missing (0,1) but only one secondary survives: k=3
	// cannot be satisfied since each missing primary needs a distinct
	// secondary substitute.
	_, err := SelectPresentIndices(3, 5, []int{2, 3})
	assert.Error(t, err)
}

func TestNewRejectsNonPositive(t *testing.T) {
	_, err := New(0, 2)
	assert.Error(t, err)
	_, err = New(2, 0)
	assert.Error(t, err)
}

package stripebuffer

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewAllZeroed(t *testing.T) {
	b := New(6, 8)
	assert.Equal(t, 6, b.NumBlocks())
	assert.Equal(t, 8, b.Width())
	for i := 0; i < b.NumBlocks(); i++ {
		assert.Equal(t, make([]byte, 8), b.Block(i))
	}
}

func TestClearZeroesAfterWrite(t *testing.T) {
	b := New(3, 4)
	copy(b.Block(1), []byte{1, 2, 3, 4})
	b.Clear()
	for i := 0; i < b.NumBlocks(); i++ {
		assert.Equal(t, make([]byte, 4), b.Block(i))
	}
}

func TestBlockAliasesStorage(t *testing.T) {
	b := New(2, 4)
	blk := b.Block(0)
	blk[0] = 0xFF
	assert.Equal(t, byte(0xFF), b.Block(0)[0])
}

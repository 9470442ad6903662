package xorcore

import (
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestXORSelfInverse(t *testing.T) {
	cases := []int{0, 1, 7, 16, 17, 31, 4096}
	for _, l := range cases {
		t.Run(intName(l), func(t *testing.T) {
			a := make([]byte, l)
			b := make([]byte, l)
			for i := range a {
				a[i] = byte(i * 7)
				b[i] = byte(i*13 + 1)
			}
			t1 := make([]byte, l)
			u := make([]byte, l)
			XOR(a, b, t1)
			XOR(t1, b, u)
			assert.Equal(t, a, u, "xor(xor(a,b),b) must equal a for length %d", l)
		})
	}
}

func TestXORAliasing(t *testing.T) {
	a := []byte{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17}
	b := []byte{9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9, 9}
	want := make([]byte, len(a))
	XOR(a, b, want)

	dst := append([]byte{}, a...)
	XOR(dst, b, dst)
	assert.Equal(t, want, dst, "XOR into dst aliasing a must match a fresh XOR")
}

func TestInto(t *testing.T) {
	dst := []byte{0xAA, 0xAA, 0xAA, 0xAA}
	src := []byte{0xAA, 0xAA, 0xAA, 0xAA}
	Into(dst, src)
	assert.Equal(t, []byte{0, 0, 0, 0}, dst)
}

func TestZero(t *testing.T) {
	b := []byte{1, 2, 3}
	Zero(b)
	assert.Equal(t, []byte{0, 0, 0}, b)
}

func TestXORLengthMismatchPanics(t *testing.T) {
	assert.Panics(t, func() {
		XOR(make([]byte, 3), make([]byte, 4), make([]byte, 3))
	})
}

func intName(i int) string {
	return "len_" + strconv.Itoa(i)
}

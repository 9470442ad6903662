// Package xorcore implements the byte-wise XOR primitive that every parity
// computation in the stripe engine is built on.
package xorcore

import "encoding/binary"

const wordSize = 16

// XOR computes a ^ b into out, byte by byte. a, b and out must have equal
// length; out may alias a or b. The bulk of the buffer is processed in
// 16-byte words and the unaligned tail is handled byte-by-byte.
func XOR(a, b, out []byte) {
	n := len(a)
	if len(b) != n || len(out) != n {
		panic("xorcore: XOR operands must have equal length")
	}

	i := 0
	for ; i+wordSize <= n; i += wordSize {
		a0 := binary.LittleEndian.Uint64(a[i:])
		a1 := binary.LittleEndian.Uint64(a[i+8:])
		b0 := binary.LittleEndian.Uint64(b[i:])
		b1 := binary.LittleEndian.Uint64(b[i+8:])
		binary.LittleEndian.PutUint64(out[i:], a0^b0)
		binary.LittleEndian.PutUint64(out[i+8:], a1^b1)
	}
	for ; i < n; i++ {
		out[i] = a[i] ^ b[i]
	}
}

// Into XORs src into dst in place (dst ^= src). This is the accumulation
// pattern parity computation relies on: zero a cell, then Into it repeatedly.
func Into(dst, src []byte) {
	XOR(dst, src, dst)
}

// Zero clears a block to all-zero bytes.
func Zero(dst []byte) {
	for i := range dst {
		dst[i] = 0
	}
}

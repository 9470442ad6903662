// Package paritylayout implements the block-index arithmetic shared by both
// coding schemes: horizontal/diagonal stripes, small/big index mappings, and
// parity-block indices.
package paritylayout

// Layout maps between the "small" (data-only) index space and the "big"
// (full group grid, including parity cells) index space, and enumerates the
// redundancy sets (horizontal/diagonal stripes) a block participates in.
type Layout interface {
	K() int
	TotalBlocks() int
	SmallToBig(i int) int
	BigToSmall(i int) (int, bool)
	ParityIndices() []int
	HorizontalStripe(i int) []int
	DiagonalStripe(i int) []int
}

// Package rscodec wraps github.com/klauspost/reedsolomon into the systematic
// Reed-Solomon encode/decode contract the stripe engine needs: k data shards,
// m parity shards, recovery from any erasure set of size <= m.
package rscodec

import (
	"fmt"

	"github.com/klauspost/reedsolomon"
)

// Codec is stateless and safe for concurrent use; each call acquires its own
// reedsolomon.Encoder, matching the encoder library's own contract.
type Codec struct {
	k, m int
}

// New builds a codec for k data shards and m parity shards.
func New(k, m int) (*Codec, error) {
	if k <= 0 || m <= 0 {
		return nil, fmt.Errorf("rscodec: k and m must be positive, got k=%d m=%d", k, m)
	}
	if _, err := reedsolomon.New(k, m); err != nil {
		return nil, fmt.Errorf("rscodec: invalid (k=%d, m=%d): %w", k, m, err)
	}
	return &Codec{k: k, m: m}, nil
}

func (c *Codec) DataShards() int   { return c.k }
func (c *Codec) ParityShards() int { return c.m }

// Encode fills the m parity blocks from the k data blocks. All blocks must
// have length width.
func (c *Codec) Encode(data, parity [][]byte, width int) error {
	if len(data) != c.k {
		return fmt.Errorf("rscodec: expected %d data blocks, got %d", c.k, len(data))
	}
	if len(parity) != c.m {
		return fmt.Errorf("rscodec: expected %d parity blocks, got %d", c.m, len(parity))
	}
	enc, err := reedsolomon.New(c.k, c.m)
	if err != nil {
		return fmt.Errorf("rscodec: new encoder: %w", err)
	}
	shards := make([][]byte, c.k+c.m)
	for i, d := range data {
		if len(d) != width {
			return fmt.Errorf("rscodec: data block %d has width %d, want %d", i, len(d), width)
		}
		shards[i] = d
	}
	for i, p := range parity {
		if len(p) != width {
			return fmt.Errorf("rscodec: parity block %d has width %d, want %d", i, len(p), width)
		}
		shards[c.k+i] = p
	}
	if err := enc.Encode(shards); err != nil {
		return fmt.Errorf("rscodec: encode: %w", err)
	}
	return nil
}

// Decode reconstructs every block not named by presentIdx, using exactly the
// blocks named by presentIdx (len(presentIdx) must equal k). Per the
// reference library's systematic-code contract, a primary (data, index < k)
// block named in presentIdx must already sit at its own index in shards;
// the caller is responsible for selecting such a set (see
// SelectPresentIndices). shards has length k+m; entries not in presentIdx
// are treated as missing and overwritten in place with the reconstructed
// contents (the caller's buffer at that index must already be allocated to
// width bytes).
func (c *Codec) Decode(shards [][]byte, presentIdx []int, width int) error {
	if len(shards) != c.k+c.m {
		return fmt.Errorf("rscodec: shards must have length %d, got %d", c.k+c.m, len(shards))
	}
	if len(presentIdx) != c.k {
		return fmt.Errorf("rscodec: need exactly %d present indices, got %d", c.k, len(presentIdx))
	}

	present := make(map[int]bool, c.k)
	for _, idx := range presentIdx {
		if idx < 0 || idx >= c.k+c.m {
			return fmt.Errorf("rscodec: present index %d out of range [0,%d)", idx, c.k+c.m)
		}
		if present[idx] {
			return fmt.Errorf("rscodec: present index %d listed twice", idx)
		}
		if shards[idx] == nil {
			return fmt.Errorf("rscodec: present index %d has no data", idx)
		}
		if len(shards[idx]) != width {
			return fmt.Errorf("rscodec: present shard %d has width %d, want %d", idx, len(shards[idx]), width)
		}
		present[idx] = true
	}

	// reedsolomon.Encoder.Reconstruct identifies missing shards by
	// len(shard) == 0; handing it a full-width buffer for an absent index
	// makes it treat every shard as present and skip reconstruction.
	working := make([][]byte, c.k+c.m)
	for i := range working {
		if present[i] {
			working[i] = shards[i]
			continue
		}
		working[i] = nil
	}

	enc, err := reedsolomon.New(c.k, c.m)
	if err != nil {
		return fmt.Errorf("rscodec: new encoder: %w", err)
	}
	if err := enc.Reconstruct(working); err != nil {
		return fmt.Errorf("rscodec: reconstruct: %w", err)
	}

	for i := range working {
		if present[i] {
			continue
		}
		if shards[i] == nil || len(shards[i]) != width {
			return fmt.Errorf("rscodec: absent shard %d has no %d-byte buffer to reconstruct into", i, width)
		}
		copy(shards[i], working[i])
	}
	return nil
}

// SelectPresentIndices chooses k indices out of valid (a set of surviving
// stripe indices in [0, k+m)) such that every primary block it selects (index
// < k) sits at its own position. This mirrors the backtracking validator
// (Backtracking/ValidBkt) in the EOS Reed-Solomon origin: a systematic
// decoder can only substitute secondary (parity) shards for missing primary
// ones, never relocate a surviving primary shard to cover for another.
func SelectPresentIndices(k, n int, valid []int) ([]int, error) {
	if k <= 0 || n <= 0 || k > n {
		return nil, fmt.Errorf("rscodec: invalid k=%d n=%d", k, n)
	}
	validSet := make(map[int]bool, len(valid))
	for _, v := range valid {
		if v < 0 || v >= n {
			return nil, fmt.Errorf("rscodec: valid index %d out of range [0,%d)", v, n)
		}
		validSet[v] = true
	}

	indexes := make([]int, k)
	used := make([]bool, n)

	var backtrack func(pos int) bool
	backtrack = func(pos int) bool {
		if pos == k {
			return true
		}
		for cand := 0; cand < n; cand++ {
			if !validSet[cand] || used[cand] {
				continue
			}
			if cand < k && cand != pos {
				continue
			}
			indexes[pos] = cand
			used[cand] = true
			if backtrack(pos + 1) {
				return true
			}
			used[cand] = false
		}
		return false
	}

	if !backtrack(0) {
		return nil, fmt.Errorf("rscodec: no valid %d-index combination among %v", k, valid)
	}
	return indexes, nil
}

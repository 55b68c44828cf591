package merkletree

import (
	"encoding/binary"
	"hash/maphash"

	"github.com/bits-and-blooms/bitset"
)

// BloomFilter is a one-shot spend marker: capacity bits, numIters
// independently seeded hash positions. InputQueue keeps a single filter for
// the whole queue; it is not split per batch. A nullifier is inserted exactly
// once; a second insertion of the same value must be rejected by the
// caller (see InputQueue.Nullify).
type BloomFilter struct {
	bits     *bitset.BitSet
	capacity uint
	numIters uint
	seeds    []maphash.Seed
}

// NewBloomFilter constructs an empty filter with capacity bits and numIters
// independent hash functions, each derived from its own maphash seed so
// positions behave like the SipHash-derived indices the protocol specifies.
func NewBloomFilter(capacity, numIters uint) *BloomFilter {
	seeds := make([]maphash.Seed, numIters)
	for i := range seeds {
		seeds[i] = maphash.MakeSeed()
	}
	return &BloomFilter{
		bits:     bitset.New(capacity),
		capacity: capacity,
		numIters: numIters,
		seeds:    seeds,
	}
}

func (f *BloomFilter) positions(value [32]byte) []uint {
	positions := make([]uint, f.numIters)
	for i, seed := range f.seeds {
		var h maphash.Hash
		h.SetSeed(seed)
		h.Write(value[:])
		positions[i] = uint(h.Sum64() % uint64(f.capacity))
	}
	return positions
}

// Contains reports whether value may already be a member (false positives
// possible, false negatives never — the one-shot spend property requires
// that the filter never forget an inserted nullifier).
func (f *BloomFilter) Contains(value [32]byte) bool {
	for _, p := range f.positions(value) {
		if !f.bits.Test(p) {
			return false
		}
	}
	return true
}

// Insert sets value's bits. Callers must check Contains first if the
// one-shot-spend invariant matters; Insert itself is idempotent.
func (f *BloomFilter) Insert(value [32]byte) {
	for _, p := range f.positions(value) {
		f.bits.Set(p)
	}
}

// nullifierPreimage encodes leaf_index as a 32-byte big-endian field
// element, the middle input of Poseidon(account_hash, leaf_index, tx_hash).
func nullifierPreimage(leafIndex uint32) [32]byte {
	var b [32]byte
	binary.BigEndian.PutUint32(b[28:], leafIndex)
	return b
}

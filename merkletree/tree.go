// Package merkletree implements the indexed/batched Merkle tree state
// engine: the fixed-height append-only tree with root history, the batched
// output queue leaves are staged in before a proof lands them, and the
// input (nullifier) queue spends are staged in before a proof retires them.
package merkletree

import (
	"fmt"

	"github.com/lightprotocol/forester-go/hash"
	"github.com/lightprotocol/forester-go/txerrors"
)

// MaxHeight is the largest tree height NewTree accepts and the longest
// sibling path ComputeRoot accepts; actual tree height is a runtime field
// validated against it.
const MaxHeight = 32

// RootHistorySize is the default capacity of the root-history ring; callers
// may configure a different size per tree via NewTree.
const RootHistorySize = 64

// Tree is a fixed-height append-only Merkle tree with Poseidon-hashed
// internal nodes, a root-history ring, and rollover lifecycle metadata.
type Tree struct {
	Height uint8

	NextIndex         uint64
	CurrentRootIndex  uint32
	Roots             [][32]byte // ring, capacity = RootHistorySize unless overridden
	FilledSubtrees    [][32]byte // one per level, updated on every append
	Zeros             [][32]byte // precomputed zero subtree hash per level

	RolloverThreshold *uint64 // nil means rollover is not configured
	RolledOver        bool
	NextTreePubkey    *[32]byte
	NetworkFee        *uint64
}

// NewTree builds an empty tree of the given height with a zero-filled
// initial root, following the "initialized zeros" lifecycle step in the
// protocol's tree lifecycle.
func NewTree(height uint8, rootHistorySize int) (*Tree, error) {
	if height == 0 || height > MaxHeight {
		return nil, fmt.Errorf("merkletree: height %d out of range (1..%d)", height, MaxHeight)
	}
	if rootHistorySize <= 0 {
		rootHistorySize = RootHistorySize
	}

	zeros := make([][32]byte, height+1)
	for level := 1; level <= int(height); level++ {
		z, err := hash.PoseidonPair(zeros[level-1], zeros[level-1])
		if err != nil {
			return nil, fmt.Errorf("merkletree: computing zero subtree at level %d: %w", level, err)
		}
		zeros[level] = z
	}

	filled := make([][32]byte, height)
	for i := range filled {
		filled[i] = zeros[i]
	}

	roots := make([][32]byte, rootHistorySize)
	roots[0] = zeros[height]

	return &Tree{
		Height:           height,
		NextIndex:        0,
		CurrentRootIndex: 0,
		Roots:            roots,
		FilledSubtrees:   filled,
		Zeros:            zeros,
	}, nil
}

// Capacity is 2^height, the maximum number of leaves the tree can hold.
func (t *Tree) Capacity() uint64 {
	return uint64(1) << t.Height
}

// CurrentRoot returns the most recently written root.
func (t *Tree) CurrentRoot() [32]byte {
	return t.Roots[t.CurrentRootIndex]
}

// RolloverThresholdReached reports whether the tree has filled past its
// configured rollover_threshold and may no longer accept appends.
func (t *Tree) RolloverThresholdReached() bool {
	if t.RolloverThreshold == nil {
		return false
	}
	return t.NextIndex >= t.Capacity()-*t.RolloverThreshold
}

// Append inserts a single leaf at NextIndex, updates FilledSubtrees along
// the path to the root, pushes the new root onto the history ring, and
// advances NextIndex. It is the non-batched primitive the batched output
// queue's drain step calls once per retired leaf.
func (t *Tree) Append(leaf [32]byte) error {
	if t.RolledOver {
		return txerrors.ErrAlreadyRolledOver
	}
	if t.NextIndex >= t.Capacity() {
		return txerrors.ErrTreeFull
	}
	if t.RolloverThresholdReached() {
		return txerrors.ErrTreeFull
	}

	index := t.NextIndex
	current := leaf
	for level := 0; level < int(t.Height); level++ {
		var err error
		if index%2 == 0 {
			t.FilledSubtrees[level] = current
			current, err = hash.PoseidonPair(current, t.Zeros[level])
		} else {
			current, err = hash.PoseidonPair(t.FilledSubtrees[level], current)
		}
		if err != nil {
			return fmt.Errorf("merkletree: append hashing level %d: %w", level, err)
		}
		index /= 2
	}

	t.pushRoot(current)
	t.NextIndex++
	return nil
}

// pushRoot advances the root-history ring, overwriting the oldest entry
// once the ring has wrapped.
func (t *Tree) pushRoot(root [32]byte) {
	t.CurrentRootIndex = (t.CurrentRootIndex + 1) % uint32(len(t.Roots))
	t.Roots[t.CurrentRootIndex] = root
}

// HasRoot reports whether root is present anywhere in the history ring,
// the check an inclusion proof's on-chain root argument must pass.
func (t *Tree) HasRoot(root [32]byte) bool {
	for _, r := range t.Roots {
		if r == root {
			return true
		}
	}
	return false
}

// ComputeRoot rehashes leaf at index up through its sibling path. The
// sibling slice is ordered leaf-level first, the same layout a changelog
// entry records, so replaying the latest changelog entry of a tick must
// reproduce the tree's current root.
func ComputeRoot(leaf [32]byte, index uint32, siblings [][32]byte) ([32]byte, error) {
	if len(siblings) > MaxHeight {
		return [32]byte{}, fmt.Errorf("merkletree: sibling path of length %d exceeds max height %d", len(siblings), MaxHeight)
	}
	current := leaf
	walking := index
	for level, sibling := range siblings {
		var err error
		if walking%2 == 0 {
			current, err = hash.PoseidonPair(current, sibling)
		} else {
			current, err = hash.PoseidonPair(sibling, current)
		}
		if err != nil {
			return [32]byte{}, fmt.Errorf("merkletree: hashing proof level %d: %w", level, err)
		}
		walking /= 2
	}
	return current, nil
}

// VerifyInclusion checks that leaf at index hashes up to a root the tree
// still holds in its history ring; a root the ring has already evicted (or
// never produced) fails with RootMismatch.
func (t *Tree) VerifyInclusion(leaf [32]byte, index uint32, siblings [][32]byte) error {
	if len(siblings) != int(t.Height) {
		return txerrors.ErrSizeMismatch
	}
	root, err := ComputeRoot(leaf, index, siblings)
	if err != nil {
		return err
	}
	if !t.HasRoot(root) {
		return txerrors.ErrRootMismatch
	}
	return nil
}

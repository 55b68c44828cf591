package merkletree

import (
	"testing"

	"github.com/lightprotocol/forester-go/hash"
	"github.com/lightprotocol/forester-go/txerrors"
	"github.com/stretchr/testify/require"
)

func TestAppendEightLeavesOneZkpBatch(t *testing.T) {
	tree, err := NewTree(4, RootHistorySize)
	require.NoError(t, err)

	oq, err := NewOutputQueue(8, 8)
	require.NoError(t, err)

	leaves := make([][32]byte, 8)
	for i := 0; i < 8; i++ {
		ib := make([]byte, 32)
		ib[31] = byte(i)
		l, err := hash.Poseidon(ib, ib)
		require.NoError(t, err)
		leaves[i] = l
		require.NoError(t, oq.Append(l))
	}

	require.Equal(t, uint64(8), oq.NextIndex)
	require.Equal(t, uint64(0), oq.NumInsertedZkps)
	ready := oq.ReadyBatches()
	require.Len(t, ready, 1)

	for _, l := range leaves {
		require.NoError(t, tree.Append(l))
	}
	require.NoError(t, oq.MarkProven(ready[0], tree.CurrentRoot()))
	require.Equal(t, uint64(1), oq.NumInsertedZkps)
	require.Equal(t, uint64(8), tree.NextIndex)
}

func TestTreeFullRejectsAppend(t *testing.T) {
	tree, err := NewTree(1, RootHistorySize)
	require.NoError(t, err)

	require.NoError(t, tree.Append([32]byte{1}))
	require.NoError(t, tree.Append([32]byte{2}))
	err = tree.Append([32]byte{3})
	require.ErrorIs(t, err, txerrors.ErrTreeFull)
}

func TestRootHistoryTracksAppends(t *testing.T) {
	tree, err := NewTree(3, RootHistorySize)
	require.NoError(t, err)
	initial := tree.CurrentRoot()

	require.NoError(t, tree.Append([32]byte{9}))
	require.True(t, tree.HasRoot(initial))
	require.True(t, tree.HasRoot(tree.CurrentRoot()))
	require.NotEqual(t, initial, tree.CurrentRoot())
}

func TestNullifyOneShot(t *testing.T) {
	q, err := NewInputQueue(8, 8, 2048, 4)
	require.NoError(t, err)

	leafHash := [32]byte{1}
	txHash := [32]byte{2}
	require.NoError(t, q.Nullify(leafHash, 0, txHash))
	err = q.Nullify(leafHash, 0, txHash)
	require.ErrorIs(t, err, txerrors.ErrAlreadyNullified)
}

func TestLeafByIndexReadsQueueRing(t *testing.T) {
	oq, err := NewOutputQueue(8, 2)
	require.NoError(t, err)

	leaves := make([][32]byte, 5)
	for i := range leaves {
		leaves[i][31] = byte(i + 1)
		require.NoError(t, oq.Append(leaves[i]))
	}

	for i, want := range leaves {
		got, err := oq.LeafByIndex(uint64(i))
		require.NoError(t, err)
		require.Equal(t, want, got)
	}

	_, err = oq.LeafByIndex(5)
	require.Error(t, err)
}

func TestOutputQueueRingRejectsAppendsPastCapacity(t *testing.T) {
	oq, err := NewOutputQueue(4, 2)
	require.NoError(t, err)

	for i := 0; i < 4; i++ {
		require.NoError(t, oq.Append([32]byte{byte(i + 1)}))
	}
	err = oq.Append([32]byte{5})
	require.ErrorIs(t, err, txerrors.ErrQueueFull)

	// Proving the first batch retires its slots and frees capacity.
	require.NoError(t, oq.MarkProven(0, [32]byte{0xaa}))
	require.NoError(t, oq.Append([32]byte{5}))
	require.NoError(t, oq.Append([32]byte{6}))
	err = oq.Append([32]byte{7})
	require.ErrorIs(t, err, txerrors.ErrQueueFull)

	// Retired slots are gone from the ring; live slots still read back.
	_, err = oq.LeafByIndex(0)
	require.Error(t, err)
	leaf, err := oq.LeafByIndex(2)
	require.NoError(t, err)
	require.Equal(t, [32]byte{3}, leaf)
}

func TestOutputQueueRetiresOnlyFromTheFront(t *testing.T) {
	oq, err := NewOutputQueue(4, 2)
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		require.NoError(t, oq.Append([32]byte{byte(i + 1)}))
	}

	// Proving batch 1 out of order retires nothing until batch 0 lands.
	require.NoError(t, oq.MarkProven(1, [32]byte{0xbb}))
	require.ErrorIs(t, oq.Append([32]byte{9}), txerrors.ErrQueueFull)

	require.NoError(t, oq.MarkProven(0, [32]byte{0xcc}))
	require.NoError(t, oq.Append([32]byte{9}))
	require.Equal(t, uint64(2), oq.NumInsertedZkps)
}

func TestInputQueueRingRejectsSpendsPastCapacity(t *testing.T) {
	q, err := NewInputQueue(4, 2, 2048, 4)
	require.NoError(t, err)

	txHash := [32]byte{7}
	for i := 0; i < 4; i++ {
		require.NoError(t, q.Nullify([32]byte{byte(i + 1)}, uint32(i), txHash))
	}
	err = q.Nullify([32]byte{5}, 4, txHash)
	require.ErrorIs(t, err, txerrors.ErrQueueFull)

	require.NoError(t, q.MarkProven(0))
	require.NoError(t, q.Nullify([32]byte{5}, 4, txHash))

	// Retirement never forgets a spent nullifier.
	err = q.Nullify([32]byte{1}, 0, txHash)
	require.ErrorIs(t, err, txerrors.ErrAlreadyNullified)
}

func TestVerifyInclusionAgainstRootHistory(t *testing.T) {
	tree, err := NewTree(3, RootHistorySize)
	require.NoError(t, err)

	leaf := [32]byte{7}
	require.NoError(t, tree.Append(leaf))

	// The first leaf's siblings are the zero subtrees at every level.
	siblings := [][32]byte{tree.Zeros[0], tree.Zeros[1], tree.Zeros[2]}
	require.NoError(t, tree.VerifyInclusion(leaf, 0, siblings))

	root, err := ComputeRoot(leaf, 0, siblings)
	require.NoError(t, err)
	require.Equal(t, tree.CurrentRoot(), root)

	wrong := leaf
	wrong[0] = 0x01
	err = tree.VerifyInclusion(wrong, 0, siblings)
	require.ErrorIs(t, err, txerrors.ErrRootMismatch)

	err = tree.VerifyInclusion(leaf, 0, siblings[:2])
	require.ErrorIs(t, err, txerrors.ErrSizeMismatch)
}

func TestRolloverPreconditions(t *testing.T) {
	tree, err := NewTree(2, RootHistorySize)
	require.NoError(t, err)
	successor, err := NewTree(2, RootHistorySize)
	require.NoError(t, err)

	err = tree.Rollover(successor, [32]byte{1})
	require.ErrorIs(t, err, txerrors.ErrNotReadyForRollover)

	for i := 0; i < 4; i++ {
		require.NoError(t, tree.Append([32]byte{byte(i + 1)}))
	}
	err = tree.Rollover(successor, [32]byte{1})
	require.ErrorIs(t, err, txerrors.ErrRolloverNotConfigured)

	threshold := uint64(0)
	tree.RolloverThreshold = &threshold
	require.NoError(t, tree.Rollover(successor, [32]byte{1}))
	require.True(t, tree.RolledOver)

	err = tree.Rollover(successor, [32]byte{1})
	require.ErrorIs(t, err, txerrors.ErrAlreadyRolledOver)
}

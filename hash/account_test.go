package hash

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAccountHashLegacyVsBatchedDiffer(t *testing.T) {
	owner, err := Poseidon([]byte{1})
	require.NoError(t, err)
	tree, err := Poseidon([]byte{2})
	require.NoError(t, err)

	legacy := AccountHashInput{
		OwnerHashed:      owner,
		LeafIndex:        7,
		MerkleTreeHashed: tree,
		Lamports:         100,
		IsBatched:        false,
	}
	batched := legacy
	batched.IsBatched = true

	hLegacy, err := AccountHash(legacy)
	require.NoError(t, err)
	hBatched, err := AccountHash(batched)
	require.NoError(t, err)
	require.NotEqual(t, hLegacy, hBatched, "endianness must change the hash")
}

func TestAccountHashOmitsZeroLamports(t *testing.T) {
	owner, _ := Poseidon([]byte{1})
	tree, _ := Poseidon([]byte{2})

	withZero := AccountHashInput{OwnerHashed: owner, LeafIndex: 1, MerkleTreeHashed: tree, Lamports: 0}
	withNonZero := AccountHashInput{OwnerHashed: owner, LeafIndex: 1, MerkleTreeHashed: tree, Lamports: 5}

	h1, err := AccountHash(withZero)
	require.NoError(t, err)
	h2, err := AccountHash(withNonZero)
	require.NoError(t, err)
	require.NotEqual(t, h1, h2)

	// Leaf index 1 in the legacy little-endian encoding at offset 28.
	var leafIndexBytes [32]byte
	leafIndexBytes[28] = 1
	want, err := Poseidon(owner[:], leafIndexBytes[:], tree[:])
	require.NoError(t, err)
	require.Equal(t, want, h1, "zero lamports must leave the lamports field out of the preimage")
}

func TestAccountHashWithDiscriminatorAndAddress(t *testing.T) {
	owner, _ := Poseidon([]byte{1})
	tree, _ := Poseidon([]byte{2})
	addr, _ := Poseidon([]byte{3})
	dataHash, _ := Poseidon([]byte{4})

	in := AccountHashInput{
		OwnerHashed:      owner,
		LeafIndex:        9,
		MerkleTreeHashed: tree,
		Address:          addr[:],
		Discriminator:    []byte{0, 0, 0, 0, 0, 0, 0, 1},
		DataHash:         dataHash[:],
		IsBatched:        true,
	}
	h, err := AccountHash(in)
	require.NoError(t, err)
	require.NotEqual(t, [32]byte{}, h)
}

func TestAccountHashDomainSeparatesTreeAndLeafIndex(t *testing.T) {
	owner, _ := Poseidon([]byte{1})
	treeA, _ := Poseidon([]byte{2})
	treeB, _ := Poseidon([]byte{3})

	base := AccountHashInput{OwnerHashed: owner, LeafIndex: 4, MerkleTreeHashed: treeA, Lamports: 10, IsBatched: true}

	otherTree := base
	otherTree.MerkleTreeHashed = treeB
	otherIndex := base
	otherIndex.LeafIndex = 5

	h1, err := AccountHash(base)
	require.NoError(t, err)
	h2, err := AccountHash(otherTree)
	require.NoError(t, err)
	h3, err := AccountHash(otherIndex)
	require.NoError(t, err)

	require.NotEqual(t, h1, h2, "identical payloads in different trees must hash differently")
	require.NotEqual(t, h1, h3, "identical payloads at different leaf indices must hash differently")
}

func TestKeccakAndSHATruncationZeroTopByte(t *testing.T) {
	k := Keccak256ToFieldSize([]byte("hello"))
	require.Equal(t, byte(0), k[0])

	s := SHA256ToFieldSize([]byte("hello"))
	require.Equal(t, byte(0), s[0])
}

func TestPoseidonRejectsTooManyInputs(t *testing.T) {
	inputs := make([][]byte, MaxPoseidonInputs+1)
	for i := range inputs {
		inputs[i] = make([]byte, 32)
	}
	_, err := Poseidon(inputs...)
	require.ErrorIs(t, err, ErrTooManyInputs)
}

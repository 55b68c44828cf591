package compressedaccount

// RemainingAccounts deduplicates pubkeys into a stable, insertion-ordered
// index table, mirroring the HashMap<Pubkey, usize> packing scheme the
// original instruction builders use to avoid repeating an account in the
// accounts list.
type RemainingAccounts struct {
	index map[Pubkey]uint8
	order []Pubkey
}

// NewRemainingAccounts returns an empty packing table.
func NewRemainingAccounts() *RemainingAccounts {
	return &RemainingAccounts{index: make(map[Pubkey]uint8)}
}

// Pack returns the index of pk in the table, inserting it at the next free
// slot if it hasn't been seen before.
func (r *RemainingAccounts) Pack(pk Pubkey) uint8 {
	if idx, ok := r.index[pk]; ok {
		return idx
	}
	idx := uint8(len(r.order))
	r.index[pk] = idx
	r.order = append(r.order, pk)
	return idx
}

// Accounts returns the packed pubkeys in index order, suitable for use as an
// instruction's remaining-accounts list.
func (r *RemainingAccounts) Accounts() []Pubkey {
	return r.order
}

// PackedMerkleContext is MerkleContext with its two pubkeys replaced by
// indices into a RemainingAccounts table.
type PackedMerkleContext struct {
	MerkleTreePubkeyIndex     uint8
	NullifierQueuePubkeyIndex uint8
	LeafIndex                 uint32
	ProveByIndex              bool
}

// PackMerkleContext packs a single MerkleContext's pubkeys.
func PackMerkleContext(ctx MerkleContext, remaining *RemainingAccounts) PackedMerkleContext {
	return PackedMerkleContext{
		MerkleTreePubkeyIndex:     remaining.Pack(ctx.MerkleTreePubkey),
		NullifierQueuePubkeyIndex: remaining.Pack(ctx.NullifierQueuePubkey),
		LeafIndex:                 ctx.LeafIndex,
		ProveByIndex:              ctx.ProveByIndex,
	}
}

// PackedCompressedAccountWithMerkleContext is the wire-ready form of an
// input account: its Merkle context pubkeys replaced by table indices and a
// root index recorded for the inclusion proof (when not proving by index).
type PackedCompressedAccountWithMerkleContext struct {
	Account       CompressedAccount
	MerkleContext PackedMerkleContext
	RootIndex     uint16
	ReadOnly      bool
}

// PackCompressedAccounts packs a slice of input accounts against a parallel
// slice of optional root indices: a nil root index means "prove this
// account by index," matching pack_compressed_accounts.
func PackCompressedAccounts(
	accounts []CompressedAccountWithMerkleContext,
	rootIndices []*uint16,
	remaining *RemainingAccounts,
) []PackedCompressedAccountWithMerkleContext {
	out := make([]PackedCompressedAccountWithMerkleContext, len(accounts))
	for i, a := range accounts {
		ctx := a.MerkleContext
		var rootIndex uint16
		if rootIndices[i] != nil {
			rootIndex = *rootIndices[i]
		} else {
			ctx.ProveByIndex = true
		}
		out[i] = PackedCompressedAccountWithMerkleContext{
			Account:       a.Account,
			MerkleContext: PackMerkleContext(ctx, remaining),
			RootIndex:     rootIndex,
			ReadOnly:      false,
		}
	}
	return out
}

// OutputCompressedAccountWithPackedContext is an output account paired with
// just the index of the tree it will be appended to (outputs have no
// nullifier queue and no root index — they are new leaves, not proofs).
type OutputCompressedAccountWithPackedContext struct {
	Account         CompressedAccount
	MerkleTreeIndex uint8
}

// PackOutputCompressedAccounts packs a slice of new accounts against the
// parallel slice of destination tree pubkeys.
func PackOutputCompressedAccounts(
	accounts []CompressedAccount,
	merkleTrees []Pubkey,
	remaining *RemainingAccounts,
) []OutputCompressedAccountWithPackedContext {
	out := make([]OutputCompressedAccountWithPackedContext, len(accounts))
	for i, a := range accounts {
		out[i] = OutputCompressedAccountWithPackedContext{
			Account:         a,
			MerkleTreeIndex: remaining.Pack(merkleTrees[i]),
		}
	}
	return out
}

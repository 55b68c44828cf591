// Package compressedaccount models the compressed-account data model: the
// account itself, its Merkle context, and the packing of account/tree
// pubkeys into a deduplicated remaining-accounts table the way a Solana
// instruction would.
package compressedaccount

import "github.com/lightprotocol/forester-go/hash"

// Pubkey is a 32-byte Solana-style address. The protocol this module
// implements runs off-chain; no Solana SDK dependency is pulled in for it.
type Pubkey [32]byte

// TreeType distinguishes the legacy (little-endian) state tree generation
// from the batched (big-endian) one; it is the one bit that the compressed
// account hash algorithm's encoding depends on.
type TreeType uint8

const (
	TreeTypeStateV1 TreeType = iota
	TreeTypeStateV2
)

// IsBatched reports whether accounts rooted in this tree generation use the
// batched (big-endian leaf-index/lamports) hash encoding.
func (t TreeType) IsBatched() bool {
	return t == TreeTypeStateV2
}

// CompressedAccountData is the on-chain-program-owned payload of an account:
// an 8-byte discriminator plus a hash of the raw data (the raw bytes
// themselves live off-chain in the indexer, not in the hash preimage).
type CompressedAccountData struct {
	Discriminator [8]byte
	Data          []byte
	DataHash      [32]byte
}

// CompressedAccount is the account as constructed by a transaction, before
// it is appended to a state tree.
type CompressedAccount struct {
	Owner    Pubkey
	Lamports uint64
	Address  *[32]byte
	Data     *CompressedAccountData
}

// MerkleContext locates an account within a specific state tree and its
// companion nullifier/output queue.
type MerkleContext struct {
	MerkleTreePubkey     Pubkey
	NullifierQueuePubkey Pubkey
	LeafIndex            uint32
	ProveByIndex         bool
	TreeType             TreeType
}

// CompressedAccountWithMerkleContext pairs an account with the tree
// location it was (or will be) appended at.
type CompressedAccountWithMerkleContext struct {
	Account       CompressedAccount
	MerkleContext MerkleContext
}

// InCompressedAccount is the "consumed as input" shape of an account: the
// raw data is gone, replaced by its hash, since an input account is only
// ever referenced by the leaf hash it nullifies.
type InCompressedAccount struct {
	Owner         Pubkey
	Lamports      uint64
	Discriminator [8]byte
	DataHash      [32]byte
	Address       *[32]byte
}

// FromCompressedAccount projects a CompressedAccount down to its
// InCompressedAccount input shape.
func FromCompressedAccount(a CompressedAccount) InCompressedAccount {
	in := InCompressedAccount{
		Owner:    a.Owner,
		Lamports: a.Lamports,
		Address:  a.Address,
	}
	if a.Data != nil {
		in.Discriminator = a.Data.Discriminator
		in.DataHash = a.Data.DataHash
	}
	return in
}

// Hash computes the leaf hash for the account at the given Merkle context,
// resolving the legacy-vs-batched encoding from ctx.TreeType.
func (a CompressedAccount) Hash(ctx MerkleContext) ([32]byte, error) {
	ownerHashed := hash.Keccak256ToFieldSize(a.Owner[:])
	treeHashed := hash.Keccak256ToFieldSize(ctx.MerkleTreePubkey[:])

	in := hash.AccountHashInput{
		OwnerHashed:      ownerHashed,
		LeafIndex:        ctx.LeafIndex,
		MerkleTreeHashed: treeHashed,
		Lamports:         a.Lamports,
		IsBatched:        ctx.TreeType.IsBatched(),
	}
	if a.Address != nil {
		in.Address = a.Address[:]
	}
	if a.Data != nil {
		in.Discriminator = a.Data.Discriminator[:]
		in.DataHash = a.Data.DataHash[:]
	}
	return hash.AccountHash(in)
}

// ReadOnlyCompressedAccount references an already-appended account purely by
// its hash, for instructions that only need to prove non-nullification.
type ReadOnlyCompressedAccount struct {
	AccountHash   [32]byte
	MerkleContext MerkleContext
	RootIndex     uint16
}

// IntoReadOnly converts an account-with-context into its read-only form. If
// rootIndex is nil the account is proven by index rather than by inclusion
// proof, matching the original's into_read_only behavior.
func (c CompressedAccountWithMerkleContext) IntoReadOnly(rootIndex *uint16) (ReadOnlyCompressedAccount, error) {
	h, err := c.Account.Hash(c.MerkleContext)
	if err != nil {
		return ReadOnlyCompressedAccount{}, err
	}
	ctx := c.MerkleContext
	var idx uint16
	if rootIndex == nil {
		ctx.ProveByIndex = true
	} else {
		idx = *rootIndex
	}
	return ReadOnlyCompressedAccount{AccountHash: h, MerkleContext: ctx, RootIndex: idx}, nil
}

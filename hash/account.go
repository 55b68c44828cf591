package hash

// Domain-separation tags written at byte offset 23 of a 32-byte big-endian
// buffer, matching the Rust reference's hash_with_hashed_values layout.
const (
	lamportsTag      = 1
	discriminatorTag = 2
)

// AccountHashInput carries the fields of a compressed account in the order
// hash_with_hashed_values folds them. OwnerHashed and MerkleTreeHashed are
// themselves Poseidon/hash-to-field-size digests of the raw pubkeys, not the
// pubkeys directly — callers hash those once and reuse the digest.
type AccountHashInput struct {
	OwnerHashed      [32]byte
	LeafIndex        uint32
	MerkleTreeHashed [32]byte
	Lamports         uint64
	Address          []byte // 32 bytes, or nil
	Discriminator    []byte // 8 bytes, or nil when Data is nil
	DataHash         []byte // 32 bytes, required iff Discriminator is set

	// IsBatched selects big-endian encoding for LeafIndex/Lamports (batched
	// / V2 trees) versus little-endian (legacy / V1 trees). This is the
	// single bit that resolves the V1-vs-V2 wire-format distinction.
	IsBatched bool
}

// AccountHash computes the compressed-account leaf hash:
//
//	Poseidon(owner_hashed, leaf_index, merkle_tree_hashed
//	         [, lamports] [, address] [, discriminator, data_hash])
//
// with leaf_index and lamports encoded big-endian for batched trees and
// little-endian for legacy trees, and a domain-separation byte (1 for
// lamports, 2 for discriminator) written at offset 23 of their 32-byte
// fields so a zero-valued lamports/discriminator slot can never collide
// with an absent one.
func AccountHash(in AccountHashInput) ([32]byte, error) {
	parts := make([][]byte, 0, 7)
	parts = append(parts, in.OwnerHashed[:])

	var leafIndexBytes [32]byte
	putUint32(leafIndexBytes[28:], in.LeafIndex, in.IsBatched)
	parts = append(parts, leafIndexBytes[:])

	parts = append(parts, in.MerkleTreeHashed[:])

	if in.Lamports != 0 {
		var lamportsBytes [32]byte
		putUint64(lamportsBytes[24:], in.Lamports, in.IsBatched)
		lamportsBytes[23] = lamportsTag
		parts = append(parts, lamportsBytes[:])
	}

	if in.Address != nil {
		parts = append(parts, in.Address)
	}

	if in.Discriminator != nil {
		var discriminatorBytes [32]byte
		copy(discriminatorBytes[24:], in.Discriminator)
		discriminatorBytes[23] = discriminatorTag
		parts = append(parts, discriminatorBytes[:], in.DataHash)
	}

	return Poseidon(parts...)
}

func putUint32(dst []byte, v uint32, bigEndian bool) {
	if bigEndian {
		dst[0] = byte(v >> 24)
		dst[1] = byte(v >> 16)
		dst[2] = byte(v >> 8)
		dst[3] = byte(v)
	} else {
		dst[0] = byte(v)
		dst[1] = byte(v >> 8)
		dst[2] = byte(v >> 16)
		dst[3] = byte(v >> 24)
	}
}

func putUint64(dst []byte, v uint64, bigEndian bool) {
	if bigEndian {
		for i := 0; i < 8; i++ {
			dst[i] = byte(v >> (56 - 8*i))
		}
	} else {
		for i := 0; i < 8; i++ {
			dst[i] = byte(v >> (8 * i))
		}
	}
}

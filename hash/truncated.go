package hash

import (
	"crypto/sha256"

	"github.com/ethereum/go-ethereum/crypto"
)

// hashToFieldSize zeroes the top byte of a 32-byte digest so the result is
// guaranteed to be a canonical Fr element ("hash to field size").
func hashToFieldSize(digest [32]byte) [32]byte {
	digest[0] = 0
	return digest
}

// Keccak256ToFieldSize hashes input with Keccak-256 and truncates the
// result into the BN254 scalar field by zeroing the most significant byte.
func Keccak256ToFieldSize(input ...[]byte) [32]byte {
	var digest [32]byte
	copy(digest[:], crypto.Keccak256(input...))
	return hashToFieldSize(digest)
}

// SHA256ToFieldSize hashes input with SHA-256 and truncates it the same way,
// used for flat account hashes whose arity would exceed Poseidon's input
// limit.
func SHA256ToFieldSize(input ...[]byte) [32]byte {
	h := sha256.New()
	for _, in := range input {
		h.Write(in)
	}
	var digest [32]byte
	copy(digest[:], h.Sum(nil))
	return hashToFieldSize(digest)
}

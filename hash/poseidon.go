package hash

import (
	"errors"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr/poseidon2"
)

// MaxPoseidonInputs mirrors the light_poseidon circom-7 parameterization:
// at most 12 field elements can be folded into one hash call.
const MaxPoseidonInputs = 12

var (
	ErrNoInputs      = errors.New("hash: poseidon requires at least one input")
	ErrTooManyInputs = errors.New("hash: poseidon accepts at most 12 inputs")
)

// Poseidon folds 1..12 field elements into a single 32-byte digest using
// gnark-crypto's BN254 Poseidon2 sponge in Merkle-Damgard mode. Each input
// is a big-endian integer of up to 32 bytes and must already be a canonical
// field element; CheckFieldSize rejects anything that isn't. Inputs are
// normalized to exactly 32 canonical bytes before hashing, since the
// underlying hasher consumes whole field-element blocks.
func Poseidon(inputs ...[]byte) ([32]byte, error) {
	var out [32]byte
	if len(inputs) == 0 {
		return out, ErrNoInputs
	}
	if len(inputs) > MaxPoseidonInputs {
		return out, ErrTooManyInputs
	}

	hasher := poseidon2.NewMerkleDamgardHasher()
	for _, in := range inputs {
		if err := CheckFieldSize(in); err != nil {
			return out, err
		}
		var e fr.Element
		e.SetBytes(in)
		b := e.Bytes()
		hasher.Write(b[:])
	}

	sum := hasher.Sum(nil)
	copy(out[:], sum)
	return out, nil
}

// PoseidonPair is the two-input case used pervasively by the Merkle tree
// engine (sibling hashing).
func PoseidonPair(left, right [32]byte) ([32]byte, error) {
	return Poseidon(left[:], right[:])
}

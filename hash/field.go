// Package hash implements the field-hashing primitives compressed accounts
// and Merkle trees are built on: Poseidon over the BN254 scalar field, and
// the Keccak256/SHA256 "hash to field size" truncation used for arbitrary
// byte payloads that must fit inside a single Fr element.
package hash

import (
	"errors"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// ErrNotInField is returned when a 32-byte value does not represent a
// canonical element of the BN254 scalar field.
var ErrNotInField = errors.New("hash: value is not a canonical BN254 scalar field element")

// Modulus is the BN254 scalar field modulus Fr.
func Modulus() *big.Int {
	return fr.Modulus()
}

// CheckFieldSize returns ErrNotInField if b, read as a big-endian integer,
// is not strictly less than the scalar field modulus.
func CheckFieldSize(b []byte) error {
	v := new(big.Int).SetBytes(b)
	if v.Cmp(Modulus()) >= 0 {
		return ErrNotInField
	}
	return nil
}

// ToFieldElement reduces a big-endian byte slice into a canonical 32-byte
// big-endian field element, matching fr.Element's own reduction.
func ToFieldElement(b []byte) [32]byte {
	var e fr.Element
	e.SetBytes(b)
	return e.Bytes()
}

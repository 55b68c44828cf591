// Package groth16verify implements Groth16 proof verification over BN254
// against a fixed verifying key, plus a chunked variant (chunked.go) that
// models the host VM's per-invocation compute budget by splitting the
// verification equation across bounded-work steps with state persisted in a
// ChunkedVerifier (its prepare-inputs part in a Scratch value) between them.
package groth16verify

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// ErrInvalidProof is returned when a proof fails the pairing equation.
var ErrInvalidProof = errors.New("groth16verify: proof failed pairing check")

// VerifyingKey holds the fixed parameters of a Groth16 verification: the
// trusted-setup points and one gamma_abc_g1 point per public input plus one
// for the constant term.
type VerifyingKey struct {
	Alpha    bn254.G1Affine
	Beta     bn254.G2Affine
	Gamma    bn254.G2Affine
	Delta    bn254.G2Affine
	GammaABC []bn254.G1Affine // len = num public inputs + 1
}

// Proof is a Groth16 proof over BN254.
type Proof struct {
	A bn254.G1Affine
	B bn254.G2Affine
	C bn254.G1Affine
}

// PublicInputs are the proof's public inputs as BN254 scalar field
// elements, in the order GammaABC[1:] was generated.
type PublicInputs []fr.Element

// PrepareInputs computes g_ic = GammaABC[0] + Σ input_i · GammaABC[i+1] in
// one unchunked pass. It is the reference (non-chunked) implementation;
// ChunkedVerifier reproduces the same accumulation split across steps.
func (vk VerifyingKey) PrepareInputs(inputs PublicInputs) (bn254.G1Affine, error) {
	if len(inputs) != len(vk.GammaABC)-1 {
		return bn254.G1Affine{}, fmt.Errorf("groth16verify: expected %d public inputs, got %d", len(vk.GammaABC)-1, len(inputs))
	}

	var acc bn254.G1Jac
	acc.FromAffine(&vk.GammaABC[0])

	for i, in := range inputs {
		var term bn254.G1Jac
		term.FromAffine(&vk.GammaABC[i+1])
		var scalar fr.Element
		scalar.Set(&in)
		var bi big.Int
		scalar.BigInt(&bi)
		term.ScalarMultiplication(&term, &bi)
		acc.AddAssign(&term)
	}

	var out bn254.G1Affine
	out.FromJacobian(&acc)
	return out, nil
}

// Verify checks e(A,B) · e(-g_ic,γ) · e(-C,δ) · e(-α,β) = 1, the full
// (unchunked) Groth16 pairing equation.
func Verify(vk VerifyingKey, proof Proof, inputs PublicInputs) error {
	gIC, err := vk.PrepareInputs(inputs)
	if err != nil {
		return err
	}

	var negGIC bn254.G1Affine
	negGIC.Neg(&gIC)
	var negC bn254.G1Affine
	negC.Neg(&proof.C)
	var negAlpha bn254.G1Affine
	negAlpha.Neg(&vk.Alpha)

	ok, err := bn254.PairingCheck(
		[]bn254.G1Affine{proof.A, negGIC, negC, negAlpha},
		[]bn254.G2Affine{proof.B, vk.Gamma, vk.Delta, vk.Beta},
	)
	if err != nil {
		return fmt.Errorf("groth16verify: pairing check: %w", err)
	}
	if !ok {
		return ErrInvalidProof
	}
	return nil
}

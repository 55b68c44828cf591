package groth16verify

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254"
	"github.com/consensys/gnark-crypto/ecc/bn254/fr"
)

// Scratch is the prepare-inputs state a ChunkedVerifier persists between
// invocations, modeling the on-chain scratch account the real
// verifier_program keeps its intermediate projective (x,y,z) coordinates in
// between instructions — a single step would otherwise exceed the host's
// per-invocation compute budget. See prepare_inputs/instructions.rs's
// PrepareInputsState.
type Scratch struct {
	vk     VerifyingKey
	inputs PublicInputs

	gic        bn254.G1Jac // running accumulator across all public inputs
	inputIndex int         // which public input is currently being scalar-multiplied
	term       bn254.G1Jac // double-and-add accumulator for the current input
	scalar     big.Int
	bitIndex   int // next bit of the current scalar to consume, MSB-first
	done       bool
}

var (
	// ErrNotDone is returned by Finish when Step must still be called again.
	ErrNotDone = errors.New("groth16verify: chunked computation not finished")
	// ErrAlreadyDone is returned by Step once the computation has completed.
	ErrAlreadyDone = errors.New("groth16verify: chunked computation already finished")
)

// StepBudget bounds how many double-and-add rounds a single Step call
// performs, simulating the host's bounded per-invocation compute budget.
const StepBudget = 32

// NewChunkedPrepareInputs begins a chunked prepare-inputs computation,
// seeding the accumulator with GammaABC[0] the way init_pairs_instruction
// does before any scalar multiplication starts, then arming the first
// input's double-and-add state.
func NewChunkedPrepareInputs(vk VerifyingKey, inputs PublicInputs) (*Scratch, error) {
	if len(inputs) != len(vk.GammaABC)-1 {
		return nil, fmt.Errorf("groth16verify: expected %d public inputs, got %d", len(vk.GammaABC)-1, len(inputs))
	}
	s := &Scratch{vk: vk, inputs: inputs}
	s.gic.FromAffine(&vk.GammaABC[0])
	if len(inputs) == 0 {
		s.done = true
		return s, nil
	}
	s.armInput(0)
	return s, nil
}

// armInput resets the double-and-add accumulator for public input i and
// finds its scalar's highest set bit, skipping leading zero bits so
// constant-time rounds aren't wasted on them (per the protocol's design
// note on leading-zero-bit skipping).
func (s *Scratch) armInput(i int) {
	s.inputIndex = i
	s.term = bn254.G1Jac{}
	var scalar fr.Element
	scalar.Set(&s.inputs[i])
	scalar.BigInt(&s.scalar)
	s.bitIndex = s.scalar.BitLen() - 1
}

// Step advances the chunked computation by at most StepBudget
// double-and-add rounds on the current public input's scalar
// multiplication, folding the finished term into gic and moving to the
// next input once its bits are exhausted. Callers loop:
//
//	for !s.IsDone() { if err := s.Step(); err != nil { ... } }
func (s *Scratch) Step() error {
	if s.done {
		return ErrAlreadyDone
	}

	for rounds := 0; rounds < StepBudget; rounds++ {
		if s.bitIndex < 0 {
			s.gic.AddAssign(&s.term)
			s.inputIndex++
			if s.inputIndex >= len(s.inputs) {
				s.done = true
				return nil
			}
			s.armInput(s.inputIndex)
			continue
		}

		s.term.Double(&s.term)
		if s.scalar.Bit(s.bitIndex) == 1 {
			var point bn254.G1Jac
			point.FromAffine(&s.vk.GammaABC[s.inputIndex+1])
			s.term.AddAssign(&point)
		}
		s.bitIndex--
	}
	return nil
}

// IsDone reports whether the accumulation has consumed every public input.
func (s *Scratch) IsDone() bool {
	return s.done
}

// Finish returns the completed g_ic accumulator as an affine point.
func (s *Scratch) Finish() (bn254.G1Affine, error) {
	if !s.done {
		return bn254.G1Affine{}, ErrNotDone
	}
	var out bn254.G1Affine
	out.FromJacobian(&s.gic)
	return out, nil
}

// verifyPhase sequences the three chunked stages of the verification
// equation; each stage's intermediate state lives in the ChunkedVerifier
// between Step calls the way the scratch account carries it between
// instructions.
type verifyPhase uint8

const (
	phasePrepareInputs verifyPhase = iota
	phaseMillerLoop
	phaseFinalExp
	phaseDone
)

// ChunkedVerifier drives the full Groth16 verification through bounded
// steps: the prepare-inputs double-and-add rounds, one Miller-loop pair per
// step, and a final-exponentiation step, matching the instruction split of
// the on-chain verifier. Finish applies the concluding equality check.
type ChunkedVerifier struct {
	vk    VerifyingKey
	proof Proof
	prep  *Scratch
	phase verifyPhase

	// Pairing pairs, fixed once prepare-inputs completes.
	g1 []bn254.G1Affine
	g2 []bn254.G2Affine

	pairIndex int
	ml        bn254.GT // running Miller-loop product
	result    bn254.GT // final exponentiation output
}

// NewChunkedVerifier begins a chunked verification of proof against vk and
// the public inputs.
func NewChunkedVerifier(vk VerifyingKey, proof Proof, inputs PublicInputs) (*ChunkedVerifier, error) {
	prep, err := NewChunkedPrepareInputs(vk, inputs)
	if err != nil {
		return nil, err
	}
	v := &ChunkedVerifier{vk: vk, proof: proof, prep: prep}
	v.ml.SetOne()
	return v, nil
}

// Step performs one bounded unit of work in the current phase and advances
// to the next phase when the current one completes.
func (v *ChunkedVerifier) Step() error {
	switch v.phase {
	case phasePrepareInputs:
		if !v.prep.IsDone() {
			return v.prep.Step()
		}
		gic, err := v.prep.Finish()
		if err != nil {
			return err
		}
		var negGIC, negC, negAlpha bn254.G1Affine
		negGIC.Neg(&gic)
		negC.Neg(&v.proof.C)
		negAlpha.Neg(&v.vk.Alpha)
		v.g1 = []bn254.G1Affine{v.proof.A, negGIC, negC, negAlpha}
		v.g2 = []bn254.G2Affine{v.proof.B, v.vk.Gamma, v.vk.Delta, v.vk.Beta}
		v.phase = phaseMillerLoop
		return nil

	case phaseMillerLoop:
		// One pair per invocation. Pairs with a point at infinity
		// contribute the identity and are skipped, the same shortcut the
		// pairing library itself takes.
		p, q := v.g1[v.pairIndex], v.g2[v.pairIndex]
		if !p.IsInfinity() && !q.IsInfinity() {
			ml, err := bn254.MillerLoop([]bn254.G1Affine{p}, []bn254.G2Affine{q})
			if err != nil {
				return fmt.Errorf("groth16verify: miller loop pair %d: %w", v.pairIndex, err)
			}
			v.ml.Mul(&v.ml, &ml)
		}
		v.pairIndex++
		if v.pairIndex == len(v.g1) {
			v.phase = phaseFinalExp
		}
		return nil

	case phaseFinalExp:
		v.result = bn254.FinalExponentiation(&v.ml)
		v.phase = phaseDone
		return nil

	default:
		return ErrAlreadyDone
	}
}

// IsDone reports whether every phase has completed.
func (v *ChunkedVerifier) IsDone() bool {
	return v.phase == phaseDone
}

// Finish applies the concluding check: the accumulated pairing product must
// equal one in GT.
func (v *ChunkedVerifier) Finish() error {
	if v.phase != phaseDone {
		return ErrNotDone
	}
	var one bn254.GT
	one.SetOne()
	if !v.result.Equal(&one) {
		return ErrInvalidProof
	}
	return nil
}

// ChunkedVerify runs the full verification through the chunked Step
// interface, so callers can exercise the same staged code path the
// on-chain verifier would use while a test still gets a single pass/fail
// result back from one call.
func ChunkedVerify(vk VerifyingKey, proof Proof, inputs PublicInputs) error {
	v, err := NewChunkedVerifier(vk, proof, inputs)
	if err != nil {
		return err
	}
	for !v.IsDone() {
		if err := v.Step(); err != nil {
			return err
		}
	}
	return v.Finish()
}

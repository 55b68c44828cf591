package forester

import (
	"context"
	"fmt"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/constraint"
	"github.com/consensys/gnark/frontend"
)

// WitnessAssigner builds the circuit assignment for one prove request,
// decoding the request's witness payload into the circuit's own assignment
// type. The forester never looks inside: circuit structure is the prover
// operator's concern.
type WitnessAssigner func(req ProveRequest) (frontend.Circuit, error)

// LocalProver generates proofs in-process with gnark instead of calling a
// prover service — the counterpart to RPCProver for tests and
// single-machine deployments. It holds one compiled constraint system and
// proving key per circuit type, registered once at startup.
type LocalProver struct {
	ccs    map[CircuitType]constraint.ConstraintSystem
	pks    map[CircuitType]groth16.ProvingKey
	assign WitnessAssigner
}

// NewLocalProver builds a LocalProver around a witness assigner; circuits
// are attached with Register before the first Prove call.
func NewLocalProver(assign WitnessAssigner) *LocalProver {
	return &LocalProver{
		ccs:    make(map[CircuitType]constraint.ConstraintSystem),
		pks:    make(map[CircuitType]groth16.ProvingKey),
		assign: assign,
	}
}

// Register attaches a compiled constraint system and its proving key to a
// circuit type.
func (p *LocalProver) Register(kind CircuitType, ccs constraint.ConstraintSystem, pk groth16.ProvingKey) {
	p.ccs[kind] = ccs
	p.pks[kind] = pk
}

// Prove assigns the witness, runs the Groth16 prover, and splits the proof
// into its three-point wire form.
func (p *LocalProver) Prove(ctx context.Context, req ProveRequest) (*ProveResponse, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ccs, ok := p.ccs[req.CircuitType]
	if !ok {
		return nil, fmt.Errorf("forester: no circuit registered for %q", req.CircuitType)
	}
	pk := p.pks[req.CircuitType]

	assignment, err := p.assign(req)
	if err != nil {
		return nil, fmt.Errorf("forester: assigning witness: %w", err)
	}

	fullWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	if err != nil {
		return nil, fmt.Errorf("forester: building witness: %w", err)
	}

	proof, err := groth16.Prove(ccs, pk, fullWitness)
	if err != nil {
		return nil, fmt.Errorf("forester: proof generation failed: %w", err)
	}

	marshaler, ok := proof.(interface{ MarshalSolidity() []byte })
	if !ok {
		return nil, fmt.Errorf("forester: proof does not implement MarshalSolidity()")
	}
	raw := marshaler.MarshalSolidity()
	if len(raw) < 256 {
		return nil, fmt.Errorf("forester: marshaled proof too short: %d bytes", len(raw))
	}

	// Solidity layout: A (2 words), B (4 words), C (2 words).
	return &ProveResponse{A: raw[:64], B: raw[64:192], C: raw[192:256]}, nil
}

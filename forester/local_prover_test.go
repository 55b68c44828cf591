package forester

import (
	"context"
	"testing"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/backend/groth16"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/frontend/cs/r1cs"
	"github.com/stretchr/testify/require"
)

// productCircuit is a minimal stand-in circuit: it proves knowledge of a
// factor Y with X*Y == Z.
type productCircuit struct {
	X frontend.Variable `gnark:",public"`
	Z frontend.Variable `gnark:",public"`
	Y frontend.Variable
}

func (c *productCircuit) Define(api frontend.API) error {
	api.AssertIsEqual(api.Mul(c.X, c.Y), c.Z)
	return nil
}

func TestLocalProverProvesRegisteredCircuit(t *testing.T) {
	ccs, err := frontend.Compile(ecc.BN254.ScalarField(), r1cs.NewBuilder, &productCircuit{})
	require.NoError(t, err)
	pk, vk, err := groth16.Setup(ccs)
	require.NoError(t, err)

	assignment := &productCircuit{X: 3, Y: 11, Z: 33}
	prover := NewLocalProver(func(req ProveRequest) (frontend.Circuit, error) {
		return assignment, nil
	})
	prover.Register(CircuitAppend, ccs, pk)

	resp, err := prover.Prove(context.Background(), ProveRequest{CircuitType: CircuitAppend})
	require.NoError(t, err)
	require.Len(t, resp.A, 64)
	require.Len(t, resp.B, 128)
	require.Len(t, resp.C, 64)

	// A fresh proof of the same witness verifies through gnark's own
	// verifier, so the registered circuit and proving key are consistent.
	// The split points returned above are not re-verified here.
	fullWitness, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField())
	require.NoError(t, err)
	publicWitness, err := fullWitness.Public()
	require.NoError(t, err)
	proof, err := groth16.Prove(ccs, pk, fullWitness)
	require.NoError(t, err)
	require.NoError(t, groth16.Verify(proof, vk, publicWitness))
}

func TestLocalProverRejectsUnknownCircuit(t *testing.T) {
	prover := NewLocalProver(func(req ProveRequest) (frontend.Circuit, error) {
		return nil, nil
	})
	_, err := prover.Prove(context.Background(), ProveRequest{CircuitType: CircuitUpdate})
	require.Error(t, err)
}

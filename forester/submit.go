package forester

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lightprotocol/forester-go/rpcpool"
	"github.com/lightprotocol/forester-go/txerrors"
)

// Submitter lands one proved group on-chain and reports the slot the
// transaction landed in, which Commit folds into the emitted event's
// tx_hash derivation.
type Submitter interface {
	Submit(ctx context.Context, kind CircuitType, group ProofGroup) (slot uint64, err error)
}

// ChainConn is the transaction-submission surface a pooled RPC connection
// must provide. rpcpool hands out opaque connections, so RPCSubmitter
// asserts this on every lease.
type ChainConn interface {
	rpcpool.Connection
	SendTransaction(ctx context.Context, payload []byte) (slot uint64, err error)
}

// RPCSubmitter submits proof groups through a bounded RPC connection pool,
// acquiring a connection under scoped acquisition so it is released on
// every exit path, including cancellation and send failure.
type RPCSubmitter struct {
	Pool *rpcpool.Pool
}

// submittedProof is the wire form of one proved batch inside a
// submission's payload.
type submittedProof struct {
	BatchIndex int    `json:"batch_index"`
	NewRoot    []byte `json:"new_root"`
	A          []byte `json:"a"`
	B          []byte `json:"b"`
	C          []byte `json:"c"`
}

type submission struct {
	CircuitType CircuitType      `json:"circuit_type"`
	Proofs      []submittedProof `json:"proofs"`
}

// Submit serializes the group's proofs and sends them over one pooled
// connection.
func (s *RPCSubmitter) Submit(ctx context.Context, kind CircuitType, group ProofGroup) (uint64, error) {
	proofs := make([]submittedProof, len(group.Batches))
	for i, b := range group.Batches {
		newRoot := b.NewRoot
		proofs[i] = submittedProof{
			BatchIndex: b.Index,
			NewRoot:    newRoot[:],
			A:          b.Proof.A,
			B:          b.Proof.B,
			C:          b.Proof.C,
		}
	}
	payload, err := json.Marshal(submission{CircuitType: kind, Proofs: proofs})
	if err != nil {
		return 0, fmt.Errorf("forester: marshaling submission: %w", err)
	}

	var slot uint64
	err = s.Pool.WithConnection(ctx, func(conn rpcpool.Connection) error {
		chain, ok := conn.(ChainConn)
		if !ok {
			return fmt.Errorf("forester: %w: pooled connection cannot send transactions", txerrors.ErrRPC)
		}
		landed, err := chain.SendTransaction(ctx, payload)
		if err != nil {
			return fmt.Errorf("forester: %w: %v", txerrors.ErrRPC, err)
		}
		slot = landed
		return nil
	})
	return slot, err
}

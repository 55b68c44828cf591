// Package events defines the public-transaction-event layout every
// successful state-changing invocation emits, and the tx-hash derivation
// indexers rely on as their sole source of truth.
package events

import (
	"github.com/lightprotocol/forester-go/compressedaccount"
	"github.com/lightprotocol/forester-go/hash"
)

// SequenceNumber is a per-tree progress marker emitted alongside a batch of
// leaf mutations.
type SequenceNumber struct {
	Tree     compressedaccount.Pubkey
	Queue    compressedaccount.Pubkey
	TreeType compressedaccount.TreeType
	Seq      uint64
}

// BatchedNullificationContext records the tree leaf index of a nullified
// leaf and its nullifier, for indexers that need to reconcile queue state
// directly.
type BatchedNullificationContext struct {
	Tree      compressedaccount.Pubkey
	LeafIndex uint32
	Nullifier [32]byte
}

// BatchPublicTransactionEvent is the frozen-layout event every
// state-changing invocation emits. Field order must never change: it is
// the wire contract indexers parse against.
type BatchPublicTransactionEvent struct {
	InputHashes       [][32]byte
	OutputHashes      [][32]byte
	OutputLeafIndices []uint32
	Sequences         []SequenceNumber
	NewAddresses      [][32]byte
	Nullifications    []BatchedNullificationContext
	Slot              uint64
	TxHash            [32]byte
}

// NewEvent builds an event and derives its tx_hash from the finished field
// set, matching create_tx_hash(input_hashes, output_hashes, slot).
func NewEvent(
	inputHashes, outputHashes [][32]byte,
	outputLeafIndices []uint32,
	sequences []SequenceNumber,
	newAddresses [][32]byte,
	nullifications []BatchedNullificationContext,
	slot uint64,
) (BatchPublicTransactionEvent, error) {
	txHash, err := CreateTxHash(inputHashes, outputHashes, slot)
	if err != nil {
		return BatchPublicTransactionEvent{}, err
	}
	return BatchPublicTransactionEvent{
		InputHashes:       inputHashes,
		OutputHashes:      outputHashes,
		OutputLeafIndices: outputLeafIndices,
		Sequences:         sequences,
		NewAddresses:      newAddresses,
		Nullifications:    nullifications,
		Slot:              slot,
		TxHash:            txHash,
	}, nil
}

// CreateTxHash folds every input hash, every output hash, and the slot
// (big-endian, 8 bytes) into a single Poseidon digest identifying the
// transaction. Poseidon's 12-input limit means large hash sets are folded
// pairwise first via a running accumulator, the same hash-chain shape the
// queues themselves use.
func CreateTxHash(inputHashes, outputHashes [][32]byte, slot uint64) ([32]byte, error) {
	var slotBytes [32]byte
	for i := 0; i < 8; i++ {
		slotBytes[31-i] = byte(slot >> (8 * i))
	}

	acc, err := hash.Poseidon(slotBytes[:])
	if err != nil {
		return [32]byte{}, err
	}
	for _, h := range inputHashes {
		acc, err = hash.PoseidonPair(acc, h)
		if err != nil {
			return [32]byte{}, err
		}
	}
	for _, h := range outputHashes {
		acc, err = hash.PoseidonPair(acc, h)
		if err != nil {
			return [32]byte{}, err
		}
	}
	return acc, nil
}

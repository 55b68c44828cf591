package merkletree

import (
	"fmt"

	"github.com/lightprotocol/forester-go/hash"
	"github.com/lightprotocol/forester-go/txerrors"
)

// NullifierBatch is one group of zkp_batch_size nullifiers awaiting an
// update (nullify) proof, with the same rolling hash-chain structure as an
// output queue's zkp-batch.
type NullifierBatch struct {
	Nullifiers [][32]byte
	LeafHashes [][32]byte
	LeafIndex  []uint32
	HashChain  [32]byte
	Proven     bool
}

// InputQueue is the nullifier queue: the same ring-of-zkp-batches structure
// as OutputQueue, plus one Bloom filter shared by every batch of the queue
// (not one per batch) enforcing one-shot spends.
// Spends past the ring's capacity fail with QueueFull until proven batches
// retire their slots.
type InputQueue struct {
	BatchSize    uint64
	ZkpBatchSize uint64

	NextIndex uint64

	// batches holds only unretired zkp-batches; firstBatch is the absolute
	// batch index of batches[0].
	batches    []*NullifierBatch
	firstBatch uint64

	bloom *BloomFilter
}

// NewInputQueue builds an empty input queue with a Bloom filter of
// bloomCapacity bits and bloomNumIters hash positions.
func NewInputQueue(batchSize, zkpBatchSize, bloomCapacity, bloomNumIters uint64) (*InputQueue, error) {
	if zkpBatchSize == 0 || batchSize%zkpBatchSize != 0 {
		return nil, fmt.Errorf("merkletree: batch_size %d must be a multiple of zkp_batch_size %d", batchSize, zkpBatchSize)
	}
	return &InputQueue{
		BatchSize:    batchSize,
		ZkpBatchSize: zkpBatchSize,
		bloom:        NewBloomFilter(uint(bloomCapacity), uint(bloomNumIters)),
	}, nil
}

// Nullifier computes Poseidon(account_hash ‖ leaf_index ‖ tx_hash).
func Nullifier(accountHash [32]byte, leafIndex uint32, txHash [32]byte) ([32]byte, error) {
	preimage := nullifierPreimage(leafIndex)
	return hash.Poseidon(accountHash[:], preimage[:], txHash[:])
}

// pendingNullifiers counts the spends currently occupying ring slots.
func (q *InputQueue) pendingNullifiers() uint64 {
	return q.NextIndex - q.firstBatch*q.ZkpBatchSize
}

func (q *InputQueue) currentBatch() *NullifierBatch {
	if len(q.batches) == 0 || uint64(len(q.batches[len(q.batches)-1].Nullifiers)) == q.ZkpBatchSize {
		q.batches = append(q.batches, &NullifierBatch{})
	}
	return q.batches[len(q.batches)-1]
}

// Nullify spends leafHash at leafIndex against txHash: computes the
// nullifier, rejects it if already present (AlreadyNullified), otherwise
// inserts it into the Bloom filter and the current zkp-batch. It fails with
// QueueFull once every ring slot holds a spend whose batch has not yet been
// proven and retired.
func (q *InputQueue) Nullify(leafHash [32]byte, leafIndex uint32, txHash [32]byte) error {
	if q.pendingNullifiers() >= q.BatchSize {
		return txerrors.ErrQueueFull
	}
	nullifier, err := Nullifier(leafHash, leafIndex, txHash)
	if err != nil {
		return fmt.Errorf("merkletree: computing nullifier: %w", err)
	}
	if q.bloom.Contains(nullifier) {
		return txerrors.ErrAlreadyNullified
	}
	q.bloom.Insert(nullifier)

	batch := q.currentBatch()
	var chained [32]byte
	if len(batch.Nullifiers) == 0 {
		chained, err = hash.PoseidonPair([32]byte{}, nullifier)
	} else {
		chained, err = hash.PoseidonPair(batch.HashChain, nullifier)
	}
	if err != nil {
		return fmt.Errorf("merkletree: folding input hash chain: %w", err)
	}

	batch.Nullifiers = append(batch.Nullifiers, nullifier)
	batch.LeafHashes = append(batch.LeafHashes, leafHash)
	batch.LeafIndex = append(batch.LeafIndex, leafIndex)
	batch.HashChain = chained
	q.NextIndex++
	return nil
}

// ReadyBatches returns absolute indices of filled, unproven zkp-batches.
func (q *InputQueue) ReadyBatches() []int {
	var ready []int
	for rel, b := range q.batches {
		if !b.Proven && uint64(len(b.Nullifiers)) == q.ZkpBatchSize {
			ready = append(ready, int(q.firstBatch)+rel)
		}
	}
	return ready
}

// Batch returns the nullifier batch at absolute index i; retired batches
// are gone.
func (q *InputQueue) Batch(i int) *NullifierBatch {
	return q.batches[uint64(i)-q.firstBatch]
}

// MarkProven retires a zkp-batch once its update proof has landed,
// reclaiming ring slots from the front the same way the output queue does.
// The Bloom filter keeps every retired nullifier: retirement frees ring
// capacity, never the one-shot spend record.
func (q *InputQueue) MarkProven(i int) error {
	if uint64(i) < q.firstBatch {
		return nil
	}
	rel := uint64(i) - q.firstBatch
	if i < 0 || rel >= uint64(len(q.batches)) {
		return txerrors.ErrBatchCardinality
	}
	batch := q.batches[rel]
	if batch.Proven {
		return nil
	}
	if uint64(len(batch.Nullifiers)) != q.ZkpBatchSize {
		return txerrors.ErrBatchCardinality
	}
	batch.Proven = true

	for len(q.batches) > 0 && q.batches[0].Proven {
		q.batches = q.batches[1:]
		q.firstBatch++
	}
	return nil
}

package merkletree

import (
	"fmt"

	"github.com/lightprotocol/forester-go/hash"
	"github.com/lightprotocol/forester-go/txerrors"
)

// ZkpBatch is one group of zkp_batch_size leaves awaiting an append proof,
// plus the rolling hash chain folded over them as they were inserted.
type ZkpBatch struct {
	Leaves    [][32]byte
	HashChain [32]byte
	Proven    bool
}

// OutputQueue is the batched output queue leaves are staged in before a
// forester-produced append proof lands them in the state tree: a ring of
// BatchSize leaves partitioned into ZkpBatchSize groups. Appending past the
// ring's capacity fails with QueueFull until proven batches retire their
// slots; retirement frees capacity strictly in queue order.
type OutputQueue struct {
	BatchSize    uint64
	ZkpBatchSize uint64

	NextIndex       uint64
	NumInsertedZkps uint64
	CurrentRoot     [32]byte

	// batches holds only unretired zkp-batches; firstBatch is the absolute
	// batch index of batches[0]. Earlier batches have been proven and their
	// slots reclaimed.
	batches    []*ZkpBatch
	firstBatch uint64
}

// NewOutputQueue builds an empty output queue. batchSize must be a multiple
// of zkpBatchSize.
func NewOutputQueue(batchSize, zkpBatchSize uint64) (*OutputQueue, error) {
	if zkpBatchSize == 0 || batchSize%zkpBatchSize != 0 {
		return nil, fmt.Errorf("merkletree: batch_size %d must be a multiple of zkp_batch_size %d", batchSize, zkpBatchSize)
	}
	return &OutputQueue{BatchSize: batchSize, ZkpBatchSize: zkpBatchSize}, nil
}

// pendingLeaves counts the leaves currently occupying ring slots: everything
// inserted minus everything retired.
func (q *OutputQueue) pendingLeaves() uint64 {
	return q.NextIndex - q.firstBatch*q.ZkpBatchSize
}

// currentBatch returns the in-progress zkp-batch, allocating one if the
// previous batch just filled.
func (q *OutputQueue) currentBatch() *ZkpBatch {
	if len(q.batches) == 0 || uint64(len(q.batches[len(q.batches)-1].Leaves)) == q.ZkpBatchSize {
		q.batches = append(q.batches, &ZkpBatch{})
	}
	return q.batches[len(q.batches)-1]
}

// Append inserts leaf at NextIndex and folds it into the current zkp-batch's
// hash chain: leaves_hash_chains[i] = Poseidon(...Poseidon(zero, leaf_0)...,
// leaf_{N-1}). It fails with QueueFull once every ring slot holds a leaf
// whose batch has not yet been proven and retired.
func (q *OutputQueue) Append(leaf [32]byte) error {
	if q.pendingLeaves() >= q.BatchSize {
		return txerrors.ErrQueueFull
	}
	batch := q.currentBatch()

	var chained [32]byte
	var err error
	if len(batch.Leaves) == 0 {
		chained, err = hash.PoseidonPair([32]byte{}, leaf)
	} else {
		chained, err = hash.PoseidonPair(batch.HashChain, leaf)
	}
	if err != nil {
		return fmt.Errorf("merkletree: folding output hash chain: %w", err)
	}

	batch.Leaves = append(batch.Leaves, leaf)
	batch.HashChain = chained
	q.NextIndex++
	return nil
}

// ReadyBatches returns absolute indices of zkp-batches that have filled
// (exactly ZkpBatchSize leaves) and have not yet been proven.
func (q *OutputQueue) ReadyBatches() []int {
	var ready []int
	for rel, b := range q.batches {
		if !b.Proven && uint64(len(b.Leaves)) == q.ZkpBatchSize {
			ready = append(ready, int(q.firstBatch)+rel)
		}
	}
	return ready
}

// Batch returns the zkp-batch at absolute index i; retired batches are
// gone.
func (q *OutputQueue) Batch(i int) *ZkpBatch {
	return q.batches[uint64(i)-q.firstBatch]
}

// LeafByIndex reads the raw leaf at queue position index. This is the
// proof-by-index fallback: a spender whose leaf the indexer has not
// observed yet sets prove_by_index and the program reads the leaf straight
// from the queue ring instead of demanding an inclusion proof. Slots whose
// batch has been retired no longer exist in the ring; their leaves live in
// the tree.
func (q *OutputQueue) LeafByIndex(index uint64) ([32]byte, error) {
	if index >= q.NextIndex {
		return [32]byte{}, fmt.Errorf("merkletree: queue index %d out of range (next_index %d)", index, q.NextIndex)
	}
	if index/q.ZkpBatchSize < q.firstBatch {
		return [32]byte{}, fmt.Errorf("merkletree: queue index %d already retired from the ring", index)
	}
	batch := q.batches[index/q.ZkpBatchSize-q.firstBatch]
	return batch.Leaves[index%q.ZkpBatchSize], nil
}

// MarkProven retires a zkp-batch's leaves from the queue once its append
// proof has landed on-chain, incrementing NumInsertedZkps and reclaiming
// ring slots from the front: a proven batch frees capacity as soon as every
// batch before it is proven too.
func (q *OutputQueue) MarkProven(i int, newRoot [32]byte) error {
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
	if uint64(len(batch.Leaves)) != q.ZkpBatchSize {
		return txerrors.ErrBatchCardinality
	}
	batch.Proven = true
	q.NumInsertedZkps++
	q.CurrentRoot = newRoot

	for len(q.batches) > 0 && q.batches[0].Proven {
		q.batches = q.batches[1:]
		q.firstBatch++
	}
	return nil
}

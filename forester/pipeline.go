package forester

import (
	"context"
	"fmt"

	"github.com/lightprotocol/forester-go/changelog"
	"github.com/lightprotocol/forester-go/compressedaccount"
	"github.com/lightprotocol/forester-go/events"
	"github.com/lightprotocol/forester-go/hash"
	"github.com/lightprotocol/forester-go/merkletree"
)

// simState is a read-only clone of a Tree's append frontier, used to
// simulate where a group of batches would land the root without mutating
// the tree until every proof in the group has actually succeeded.
type simState struct {
	nextIndex uint64
	filled    [][32]byte
	zeros     [][32]byte
	height    uint8
}

func newSimState(t *merkletree.Tree) *simState {
	filled := make([][32]byte, len(t.FilledSubtrees))
	copy(filled, t.FilledSubtrees)
	return &simState{nextIndex: t.NextIndex, filled: filled, zeros: t.Zeros, height: t.Height}
}

// simulateAppend mirrors Tree.Append's path math against the simulated
// frontier and returns the path siblings as a changelog entry, without
// touching the real tree.
func (s *simState) simulateAppend(leaf [32]byte) ([32]byte, changelog.Entry, error) {
	index := s.nextIndex
	siblings := make([][32]byte, 0, s.height)
	current := leaf
	walking := index
	for level := 0; level < int(s.height); level++ {
		var err error
		if walking%2 == 0 {
			siblings = append(siblings, s.zeros[level])
			s.filled[level] = current
			current, err = hash.PoseidonPair(current, s.zeros[level])
		} else {
			siblings = append(siblings, s.filled[level])
			current, err = hash.PoseidonPair(s.filled[level], current)
		}
		if err != nil {
			return [32]byte{}, changelog.Entry{}, fmt.Errorf("forester: simulating append level %d: %w", level, err)
		}
		walking /= 2
	}
	s.nextIndex++
	return current, changelog.Entry{PathIndex: uint32(index), NewLeaf: leaf, Siblings: siblings}, nil
}

// Pipeline drains one tree's output and input queues, builds circuit inputs
// with a sequentially-threaded changelog, dispatches bounded-parallel proof
// requests, and commits results group by group, extending the changelog
// cache only once a full cycle has succeeded.
type Pipeline struct {
	TreePubkey  compressedaccount.Pubkey
	QueuePubkey compressedaccount.Pubkey
	TreeType    compressedaccount.TreeType
	Tree        *merkletree.Tree
	Output      *merkletree.OutputQueue
	Input       *merkletree.InputQueue
	Changelog   *changelog.Cache
	Prover      Prover

	// Submitter lands committed groups on-chain; nil means commits apply
	// locally only and the slot in emitted events stays zero.
	Submitter Submitter

	seq uint64
}

// NewPipeline wires a tree's queues and changelog slot to a prover.
func NewPipeline(treePubkey, queuePubkey compressedaccount.Pubkey, tree *merkletree.Tree, output *merkletree.OutputQueue, input *merkletree.InputQueue, cache *changelog.Cache, prover Prover) *Pipeline {
	return &Pipeline{
		TreePubkey:  treePubkey,
		QueuePubkey: queuePubkey,
		TreeType:    compressedaccount.TreeTypeStateV2,
		Tree:        tree,
		Output:      output,
		Input:       input,
		Changelog:   cache,
		Prover:      prover,
	}
}

// appendBatchInputs lists the filled, unproven output zkp-batches as
// circuit inputs, checking the cardinality of what the queue handed back.
func (p *Pipeline) appendBatchInputs() ([]BatchInputs, error) {
	if p.Output.NumInsertedZkps > 0 {
		if err := checkRootMatches(p.Tree.CurrentRoot(), p.Output.CurrentRoot); err != nil {
			return nil, err
		}
	}
	ready := p.Output.ReadyBatches()
	batches := make([]BatchInputs, len(ready))
	startIndex := p.Tree.NextIndex
	for i, idx := range ready {
		b := p.Output.Batch(idx)
		if err := checkBatchCardinality(len(b.Leaves), p.Output.ZkpBatchSize, 1); err != nil {
			return nil, err
		}
		batches[i] = BatchInputs{
			Index:       idx,
			HashChain:   b.HashChain,
			StartIndex:  startIndex + uint64(i)*p.Output.ZkpBatchSize,
			CircuitType: CircuitAppend,
		}
	}
	return batches, nil
}

// nullifyBatchInputs lists the filled, unproven input zkp-batches.
func (p *Pipeline) nullifyBatchInputs() ([]BatchInputs, error) {
	ready := p.Input.ReadyBatches()
	batches := make([]BatchInputs, len(ready))
	for i, idx := range ready {
		b := p.Input.Batch(idx)
		if err := checkBatchCardinality(len(b.Nullifiers), p.Input.ZkpBatchSize, 1); err != nil {
			return nil, err
		}
		batches[i] = BatchInputs{Index: idx, HashChain: b.HashChain, CircuitType: CircuitUpdate}
	}
	return batches, nil
}

// buildAppend is the append-circuit buildFn: it replays each leaf of the
// batch against the simulated frontier, producing the batch's new root and
// one changelog entry per leaf.
func (p *Pipeline) buildAppend(sim *simState) buildFn {
	return func(b BatchInputs, accumRoot [32]byte, accum []changelog.Entry) ([32]byte, []changelog.Entry, error) {
		batch := p.Output.Batch(b.Index)
		var root [32]byte
		entries := make([]changelog.Entry, 0, len(batch.Leaves))
		for _, leaf := range batch.Leaves {
			r, entry, err := sim.simulateAppend(leaf)
			if err != nil {
				return [32]byte{}, nil, err
			}
			root = r
			entries = append(entries, entry)
		}
		return root, entries, nil
	}
}

// buildNullify is the update-circuit buildFn. Nullify proofs retire spends
// from the input queue and its bloom filter; they do not move the append
// tree's root, so the running root threads through unchanged and the batch
// contributes no changelog entries.
func (p *Pipeline) buildNullify() buildFn {
	return func(b BatchInputs, accumRoot [32]byte, accum []changelog.Entry) ([32]byte, []changelog.Entry, error) {
		return accumRoot, nil, nil
	}
}

func (p *Pipeline) prove() proveFn {
	return func(ctx context.Context, b BatchInputs, newRoot [32]byte) (*ProveResponse, error) {
		return p.Prover.Prove(ctx, ProveRequest{
			CircuitType:     b.CircuitType,
			PublicInputHash: newRoot,
			Inputs:          encodeCircuitInputs(b, newRoot),
		})
	}
}

// AppendInstructionStream proves every currently-filled, unproven output
// zkp-batch and yields them in groups of up to MaxProofSize. Commit must be
// called with the returned groups before the tree reflects them.
func (p *Pipeline) AppendInstructionStream(ctx context.Context) (<-chan ProofGroup, <-chan error) {
	batches, err := p.appendBatchInputs()
	if err != nil {
		return closedGroups(), oneErr(err)
	}
	if len(batches) == 0 {
		return closedGroups(), closedErrs()
	}
	sim := newSimState(p.Tree)
	return streamInstructionGroups(ctx, p.Tree.CurrentRoot(), p.Changelog.Get(p.TreePubkey), batches, p.buildAppend(sim), p.prove())
}

// NullifyInstructionStream proves every currently-filled, unproven input
// zkp-batch.
func (p *Pipeline) NullifyInstructionStream(ctx context.Context) (<-chan ProofGroup, <-chan error) {
	batches, err := p.nullifyBatchInputs()
	if err != nil {
		return closedGroups(), oneErr(err)
	}
	if len(batches) == 0 {
		return closedGroups(), closedErrs()
	}
	return streamInstructionGroups(ctx, p.Tree.CurrentRoot(), nil, batches, p.buildNullify(), p.prove())
}

// Commit lands one successfully-proved group: it submits the group through
// the Submitter (when one is wired), applies the group's effects to the
// real tree and queue, and returns the public transaction event indexers
// consume. It does not extend the changelog cache — ExtendChangelog runs
// once per fully-successful cycle, never on partial success.
func (p *Pipeline) Commit(ctx context.Context, kind CircuitType, group ProofGroup) (events.BatchPublicTransactionEvent, error) {
	var slot uint64
	if p.Submitter != nil {
		landed, err := p.Submitter.Submit(ctx, kind, group)
		if err != nil {
			return events.BatchPublicTransactionEvent{}, fmt.Errorf("forester: submitting %s group: %w", kind, err)
		}
		slot = landed
	}

	var inputHashes, outputHashes [][32]byte
	var outputLeafIndices []uint32
	var nullifications []events.BatchedNullificationContext

	for _, b := range group.Batches {
		switch kind {
		case CircuitAppend:
			batch := p.Output.Batch(b.Index)
			for _, leaf := range batch.Leaves {
				outputLeafIndices = append(outputLeafIndices, uint32(p.Tree.NextIndex))
				outputHashes = append(outputHashes, leaf)
				if err := p.Tree.Append(leaf); err != nil {
					return events.BatchPublicTransactionEvent{}, fmt.Errorf("forester: committing append batch %d: %w", b.Index, err)
				}
			}
			if err := p.Output.MarkProven(b.Index, b.NewRoot); err != nil {
				return events.BatchPublicTransactionEvent{}, fmt.Errorf("forester: marking output batch %d proven: %w", b.Index, err)
			}
		case CircuitUpdate:
			batch := p.Input.Batch(b.Index)
			for i, leafHash := range batch.LeafHashes {
				inputHashes = append(inputHashes, leafHash)
				nullifications = append(nullifications, events.BatchedNullificationContext{
					Tree:      p.TreePubkey,
					LeafIndex: batch.LeafIndex[i],
					Nullifier: batch.Nullifiers[i],
				})
			}
			if err := p.Input.MarkProven(b.Index); err != nil {
				return events.BatchPublicTransactionEvent{}, fmt.Errorf("forester: marking input batch %d proven: %w", b.Index, err)
			}
		}
	}

	p.seq++
	event, err := events.NewEvent(
		inputHashes,
		outputHashes,
		outputLeafIndices,
		[]events.SequenceNumber{{Tree: p.TreePubkey, Queue: p.QueuePubkey, TreeType: p.TreeType, Seq: p.seq}},
		nil,
		nullifications,
		slot,
	)
	if err != nil {
		return events.BatchPublicTransactionEvent{}, fmt.Errorf("forester: building transaction event: %w", err)
	}
	return event, nil
}

// ExtendChangelog extends the tree's changelog cache with every entry the
// given groups contributed, in order. Callers invoke it exactly once per
// cycle, after every proof succeeded and every group committed; a cycle
// that failed partway leaves the cache untouched.
func (p *Pipeline) ExtendChangelog(groups ...ProofGroup) {
	var entries []changelog.Entry
	for _, g := range groups {
		for _, b := range g.Batches {
			entries = append(entries, b.Entries...)
		}
	}
	p.Changelog.Extend(p.TreePubkey, entries)
}

func closedGroups() <-chan ProofGroup {
	ch := make(chan ProofGroup)
	close(ch)
	return ch
}

func closedErrs() <-chan error {
	ch := make(chan error)
	close(ch)
	return ch
}

func oneErr(err error) <-chan error {
	ch := make(chan error, 1)
	ch <- err
	close(ch)
	return ch
}

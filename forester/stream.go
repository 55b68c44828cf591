package forester

import (
	"context"
	"fmt"

	"github.com/lightprotocol/forester-go/changelog"
	"github.com/lightprotocol/forester-go/txerrors"
	"golang.org/x/sync/semaphore"
)

// MaxProofSize bounds how many proofs a single stream group carries, and
// MaxInFlight bounds how many proof requests may be outstanding at once per
// tree per tick.
const (
	MaxProofSize = 3
	MaxInFlight  = 3
)

// BatchInputs is the circuit-facing view of one zkp-batch: the root it was
// built against, its leaf hash chain, and the queue index the batch starts
// at. CircuitType selects append vs update.
type BatchInputs struct {
	Index       int
	OldRoot     [32]byte
	HashChain   [32]byte
	StartIndex  uint64
	CircuitType CircuitType
}

// ProvedBatch is one batch's result: the new root the proof attests to and
// the changelog entries it contributed.
type ProvedBatch struct {
	Index   int
	NewRoot [32]byte
	Proof   *ProveResponse
	Entries []changelog.Entry
}

// ProofGroup is one emission of the instruction stream: up to MaxProofSize
// proved batches, in source order.
type ProofGroup struct {
	Batches []ProvedBatch
}

// buildFn computes one batch's circuit inputs given the running root and
// the changelog accumulated so far; it returns the new root and the
// changelog entries this batch contributes, mirroring build_inputs in the
// sequential-changelog protocol.
type buildFn func(batch BatchInputs, accumRoot [32]byte, accum []changelog.Entry) (newRoot [32]byte, entries []changelog.Entry, err error)

// proveFn dispatches one batch's proof request to the prover.
type proveFn func(ctx context.Context, batch BatchInputs, newRoot [32]byte) (*ProveResponse, error)

// builtBatch is one zkp-batch after the sequential input-building phase:
// its circuit inputs plus the root/changelog delta it will contribute once
// proven.
type builtBatch struct {
	inputs  BatchInputs
	newRoot [32]byte
	entries []changelog.Entry
}

type proveResult struct {
	batch ProvedBatch
	err   error
}

// newInFlightSem builds the per-tree in-flight proof bound; a tick that
// runs both streams against one tree hands the same semaphore to both.
func newInFlightSem() *semaphore.Weighted {
	return semaphore.NewWeighted(MaxInFlight)
}

// buildBatchInputs runs the sequential phase of the protocol: each batch's
// circuit inputs are computed against the root and changelog left behind by
// every prior batch, so proof N+1 always sees proof N's effect. It returns
// the built batches, the final root, and the full accumulated changelog.
func buildBatchInputs(
	currentRoot [32]byte,
	previousChangelog []changelog.Entry,
	batches []BatchInputs,
	build buildFn,
) ([]builtBatch, [32]byte, []changelog.Entry, error) {
	accum := append([]changelog.Entry(nil), previousChangelog...)
	root := currentRoot

	built := make([]builtBatch, 0, len(batches))
	for _, b := range batches {
		b.OldRoot = root
		newRoot, entries, err := build(b, root, accum)
		if err != nil {
			return nil, root, accum, fmt.Errorf("forester: building circuit inputs for batch %d: %w", b.Index, err)
		}
		accum = append(accum, entries...)
		root = newRoot
		built = append(built, builtBatch{inputs: b, newRoot: newRoot, entries: entries})
	}
	return built, root, accum, nil
}

// proveBatchGroups fires one proof future per built batch, all in parallel
// bounded by sem, and drains results strictly in source order, emitting
// groups of up to MaxProofSize. The first failed proof terminates the
// stream with its error and cancels every proof still in flight. sem is
// shared by callers that run several streams against the same tree in one
// tick, so MaxInFlight bounds the tree, not each stream separately.
func proveBatchGroups(
	ctx context.Context,
	sem *semaphore.Weighted,
	built []builtBatch,
	prove proveFn,
	groups chan<- ProofGroup,
	errs chan<- error,
) {
	proveCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	results := make([]chan proveResult, len(built))
	for i := range results {
		results[i] = make(chan proveResult, 1)
	}
	for i, bb := range built {
		go func(i int, bb builtBatch) {
			if err := sem.Acquire(proveCtx, 1); err != nil {
				results[i] <- proveResult{err: fmt.Errorf("forester: acquiring proof slot: %w", err)}
				return
			}
			defer sem.Release(1)
			proof, err := prove(proveCtx, bb.inputs, bb.newRoot)
			if err != nil {
				results[i] <- proveResult{err: fmt.Errorf("forester: proving batch %d: %w", bb.inputs.Index, err)}
				return
			}
			results[i] <- proveResult{batch: ProvedBatch{
				Index:   bb.inputs.Index,
				NewRoot: bb.newRoot,
				Proof:   proof,
				Entries: bb.entries,
			}}
		}(i, bb)
	}

	pending := make([]ProvedBatch, 0, MaxProofSize)
	for i := range built {
		res := <-results[i]
		if res.err != nil {
			errs <- res.err
			return
		}
		pending = append(pending, res.batch)
		if len(pending) == MaxProofSize {
			select {
			case groups <- ProofGroup{Batches: pending}:
			case <-ctx.Done():
				errs <- ctx.Err()
				return
			}
			pending = make([]ProvedBatch, 0, MaxProofSize)
		}
	}
	if len(pending) > 0 {
		select {
		case groups <- ProofGroup{Batches: pending}:
		case <-ctx.Done():
			errs <- ctx.Err()
		}
	}
}

// streamInstructionGroups runs the full sequential-changelog/parallel-prove
// protocol over batches of one circuit kind. Groups of up to MaxProofSize
// proved batches are sent to the returned channel in source order; the
// stream closes the channel on completion or sends exactly one error and
// closes.
func streamInstructionGroups(
	ctx context.Context,
	currentRoot [32]byte,
	previousChangelog []changelog.Entry,
	batches []BatchInputs,
	build buildFn,
	prove proveFn,
) (<-chan ProofGroup, <-chan error) {
	groups := make(chan ProofGroup)
	errs := make(chan error, 1)

	go func() {
		defer close(groups)
		defer close(errs)

		if len(batches) == 0 {
			return
		}

		built, _, _, err := buildBatchInputs(currentRoot, previousChangelog, batches, build)
		if err != nil {
			errs <- err
			return
		}

		proveBatchGroups(ctx, newInFlightSem(), built, prove, groups, errs)
	}()

	return groups, errs
}

// checkRootMatches enforces the root-mismatch edge case policy: the first
// queue element's embedded root must equal the on-chain current root.
func checkRootMatches(onChainRoot, queueRoot [32]byte) error {
	if onChainRoot != queueRoot {
		return txerrors.ErrRootMismatch
	}
	return nil
}

// checkBatchCardinality enforces that a fetched batch's leaf count exactly
// equals zkpBatchSize * numBatches.
func checkBatchCardinality(gotLeaves int, zkpBatchSize, numBatches uint64) error {
	if uint64(gotLeaves) != zkpBatchSize*numBatches {
		return txerrors.ErrBatchCardinality
	}
	return nil
}

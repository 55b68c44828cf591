package forester

import (
	"context"
	"fmt"

	"github.com/lightprotocol/forester-go/events"
)

// CycleResult collects everything one call to PrepareProofsWithSequentialChangelogs
// produced for a tree: the nullify and append groups it proved and
// committed, in the order they landed, and the transaction events each
// commit emitted.
type CycleResult struct {
	NullifyGroups []ProofGroup
	AppendGroups  []ProofGroup
	Events        []events.BatchPublicTransactionEvent
}

// PrepareProofsWithSequentialChangelogs runs one forester tick against a
// tree with both pending nullifications and appends. The phases follow the
// combined prepare-proofs protocol exactly:
//
//  1. Both queue slices are fetched up front.
//  2. Nullify circuit inputs are built sequentially, threading the running
//     root through every batch.
//  3. Append circuit inputs are built starting from the post-nullify root
//     and the changelog accumulated so far.
//  4. Every proof future — nullify and append — fires in parallel, bounded
//     by a single MaxInFlight semaphore shared across both streams.
//
// Group submission is serialized: nullify groups commit first, in order,
// then append groups. The changelog cache is extended exactly once, after
// the whole cycle has succeeded; any proof or commit failure leaves the
// cache untouched so the next tick re-fetches and retries.
func PrepareProofsWithSequentialChangelogs(ctx context.Context, p *Pipeline) (CycleResult, error) {
	var result CycleResult

	// An early return (commit failure, stream error) must unblock whichever
	// stream is still trying to emit, or its goroutine would never exit.
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	nullifyBatches, err := p.nullifyBatchInputs()
	if err != nil {
		return result, fmt.Errorf("forester: fetching nullify batches: %w", err)
	}
	appendBatches, err := p.appendBatchInputs()
	if err != nil {
		return result, fmt.Errorf("forester: fetching append batches: %w", err)
	}
	if len(nullifyBatches) == 0 && len(appendBatches) == 0 {
		return result, nil
	}

	previous := p.Changelog.Get(p.TreePubkey)
	root := p.Tree.CurrentRoot()

	nullifyBuilt, root, accum, err := buildBatchInputs(root, previous, nullifyBatches, p.buildNullify())
	if err != nil {
		return result, err
	}

	sim := newSimState(p.Tree)
	appendBuilt, _, accum, err := buildBatchInputs(root, accum, appendBatches, p.buildAppend(sim))
	if err != nil {
		return result, err
	}

	sem := newInFlightSem()
	nullifyGroups := make(chan ProofGroup)
	nullifyErrs := make(chan error, 1)
	appendGroups := make(chan ProofGroup)
	appendErrs := make(chan error, 1)

	go func() {
		defer close(nullifyGroups)
		defer close(nullifyErrs)
		proveBatchGroups(ctx, sem, nullifyBuilt, p.prove(), nullifyGroups, nullifyErrs)
	}()
	go func() {
		defer close(appendGroups)
		defer close(appendErrs)
		proveBatchGroups(ctx, sem, appendBuilt, p.prove(), appendGroups, appendErrs)
	}()

	for group := range nullifyGroups {
		event, err := p.Commit(ctx, CircuitUpdate, group)
		if err != nil {
			return result, fmt.Errorf("forester: committing nullify group: %w", err)
		}
		result.NullifyGroups = append(result.NullifyGroups, group)
		result.Events = append(result.Events, event)
	}
	if err := <-nullifyErrs; err != nil {
		return result, fmt.Errorf("forester: nullify stream: %w", err)
	}

	for group := range appendGroups {
		event, err := p.Commit(ctx, CircuitAppend, group)
		if err != nil {
			return result, fmt.Errorf("forester: committing append group: %w", err)
		}
		result.AppendGroups = append(result.AppendGroups, group)
		result.Events = append(result.Events, event)
	}
	if err := <-appendErrs; err != nil {
		return result, fmt.Errorf("forester: append stream: %w", err)
	}

	p.Changelog.Extend(p.TreePubkey, accum[len(previous):])
	return result, nil
}

package forester

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lightprotocol/forester-go/changelog"
	"github.com/lightprotocol/forester-go/compressedaccount"
	"github.com/lightprotocol/forester-go/merkletree"
	"github.com/lightprotocol/forester-go/rpcpool"
	"github.com/lightprotocol/forester-go/txerrors"
	"github.com/stretchr/testify/require"
)

type stubProver struct {
	mu        sync.Mutex
	calls     int
	delay     time.Duration
	failAfter int // fail every call once calls > failAfter; 0 means never fail

	inFlight    atomic.Int64
	maxInFlight atomic.Int64
}

func (s *stubProver) Prove(ctx context.Context, req ProveRequest) (*ProveResponse, error) {
	cur := s.inFlight.Add(1)
	defer s.inFlight.Add(-1)
	for {
		max := s.maxInFlight.Load()
		if cur <= max || s.maxInFlight.CompareAndSwap(max, cur) {
			break
		}
	}

	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	s.mu.Lock()
	s.calls++
	n := s.calls
	s.mu.Unlock()

	if s.failAfter > 0 && n > s.failAfter {
		return nil, &txerrors.ProverError{Message: "stub failure"}
	}
	return &ProveResponse{A: []byte("a"), B: []byte("b"), C: []byte("c")}, nil
}

func (s *stubProver) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func newTestPipeline(t *testing.T) (*Pipeline, *stubProver) {
	t.Helper()
	tree, err := merkletree.NewTree(4, 0)
	require.NoError(t, err)
	output, err := merkletree.NewOutputQueue(4, 2)
	require.NoError(t, err)
	input, err := merkletree.NewInputQueue(4, 2, 64, 3)
	require.NoError(t, err)
	prover := &stubProver{}
	p := NewPipeline(compressedaccount.Pubkey{9}, compressedaccount.Pubkey{10}, tree, output, input, changelog.NewCache(8), prover)
	return p, prover
}

func TestAppendInstructionStreamProvesReadyBatchesAndCommits(t *testing.T) {
	p, prover := newTestPipeline(t)

	for i := 0; i < 2; i++ {
		var leaf [32]byte
		leaf[31] = byte(i + 1)
		require.NoError(t, p.Output.Append(leaf))
	}

	groups, errs := p.AppendInstructionStream(context.Background())
	var collected []ProofGroup
	for g := range groups {
		event, err := p.Commit(context.Background(), CircuitAppend, g)
		require.NoError(t, err)
		require.Len(t, event.OutputHashes, 2)
		require.Equal(t, []uint32{0, 1}, event.OutputLeafIndices)
		collected = append(collected, g)
	}
	require.NoError(t, <-errs)
	p.ExtendChangelog(collected...)

	require.Len(t, collected, 1)
	require.Len(t, collected[0].Batches, 1)
	require.Equal(t, 1, prover.callCount())
	require.Equal(t, uint64(2), p.Tree.NextIndex)
	require.Equal(t, uint64(1), p.Output.NumInsertedZkps)
	require.Equal(t, 2, p.Changelog.Len(p.TreePubkey))
}

func TestAppendInstructionStreamEmptyWhenNoReadyBatches(t *testing.T) {
	p, prover := newTestPipeline(t)
	groups, errs := p.AppendInstructionStream(context.Background())
	count := 0
	for range groups {
		count++
	}
	require.NoError(t, <-errs)
	require.Equal(t, 0, count)
	require.Equal(t, 0, prover.callCount())
}

func TestAppendStreamDispatchesProofsInParallelInOrder(t *testing.T) {
	tree, err := merkletree.NewTree(4, 0)
	require.NoError(t, err)
	output, err := merkletree.NewOutputQueue(8, 2)
	require.NoError(t, err)
	input, err := merkletree.NewInputQueue(4, 2, 64, 3)
	require.NoError(t, err)
	prover := &stubProver{delay: 20 * time.Millisecond}
	p := NewPipeline(compressedaccount.Pubkey{1}, compressedaccount.Pubkey{2}, tree, output, input, changelog.NewCache(0), prover)

	for i := 0; i < 8; i++ {
		var leaf [32]byte
		leaf[31] = byte(i + 1)
		require.NoError(t, p.Output.Append(leaf))
	}

	groups, errs := p.AppendInstructionStream(context.Background())
	var order []int
	for g := range groups {
		for _, b := range g.Batches {
			order = append(order, b.Index)
		}
	}
	require.NoError(t, <-errs)

	require.Equal(t, []int{0, 1, 2, 3}, order, "groups must drain in source batch order")
	require.Greater(t, prover.maxInFlight.Load(), int64(1), "proofs must overlap in flight")
	require.LessOrEqual(t, prover.maxInFlight.Load(), int64(MaxInFlight))
}

func TestNullifyInstructionStreamDoesNotMoveTreeRoot(t *testing.T) {
	p, prover := newTestPipeline(t)

	var leafHash, txHash [32]byte
	leafHash[31] = 1
	txHash[31] = 2
	require.NoError(t, p.Input.Nullify(leafHash, 0, txHash))
	leafHash2 := leafHash
	leafHash2[30] = 1
	require.NoError(t, p.Input.Nullify(leafHash2, 1, txHash))

	rootBefore := p.Tree.CurrentRoot()

	groups, errs := p.NullifyInstructionStream(context.Background())
	for g := range groups {
		event, err := p.Commit(context.Background(), CircuitUpdate, g)
		require.NoError(t, err)
		require.Len(t, event.InputHashes, 2)
		require.Len(t, event.Nullifications, 2)
		require.Equal(t, uint32(0), event.Nullifications[0].LeafIndex)
		require.Equal(t, uint32(1), event.Nullifications[1].LeafIndex)
	}
	require.NoError(t, <-errs)

	require.Equal(t, rootBefore, p.Tree.CurrentRoot())
	require.Equal(t, 1, prover.callCount())
}

func TestPrepareProofsDrainsBothStreamsAndExtendsChangelog(t *testing.T) {
	p, _ := newTestPipeline(t)

	var leaf [32]byte
	leaf[31] = 1
	require.NoError(t, p.Output.Append(leaf))
	require.NoError(t, p.Output.Append(leaf))

	var leafHash, txHash [32]byte
	leafHash[31] = 9
	txHash[31] = 8
	require.NoError(t, p.Input.Nullify(leafHash, 0, txHash))
	leafHash2 := leafHash
	leafHash2[30] = 1
	require.NoError(t, p.Input.Nullify(leafHash2, 1, txHash))

	result, err := PrepareProofsWithSequentialChangelogs(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, result.AppendGroups, 1)
	require.Len(t, result.NullifyGroups, 1)
	require.Len(t, result.Events, 2)
	require.Equal(t, 2, p.Changelog.Len(p.TreePubkey), "append batch contributed one entry per leaf")

	// Sequence numbers advance per committed group.
	require.Equal(t, uint64(1), result.Events[0].Sequences[0].Seq)
	require.Equal(t, uint64(2), result.Events[1].Sequences[0].Seq)
}

func TestPrepareProofsLeavesChangelogUntouchedOnProofFailure(t *testing.T) {
	p, prover := newTestPipeline(t)
	prover.failAfter = 1

	for i := 0; i < 4; i++ {
		var leaf [32]byte
		leaf[31] = byte(i + 1)
		require.NoError(t, p.Output.Append(leaf))
	}

	_, err := PrepareProofsWithSequentialChangelogs(context.Background(), p)
	require.Error(t, err)
	var proverErr *txerrors.ProverError
	require.ErrorAs(t, err, &proverErr)
	require.Equal(t, 0, p.Changelog.Len(p.TreePubkey), "failed cycle must not extend the cache")
}

func TestAppendStreamAbortsOnRootMismatch(t *testing.T) {
	p, _ := newTestPipeline(t)

	var leaf [32]byte
	leaf[31] = 1
	require.NoError(t, p.Output.Append(leaf))
	require.NoError(t, p.Output.Append(leaf))

	// A previously landed batch recorded a root; desync the tree from it.
	p.Output.NumInsertedZkps = 1
	p.Output.CurrentRoot = [32]byte{0xde, 0xad}

	groups, errs := p.AppendInstructionStream(context.Background())
	for range groups {
	}
	require.ErrorIs(t, <-errs, txerrors.ErrRootMismatch)
}

func TestCommitChangelogReplayMatchesTreeRoot(t *testing.T) {
	p, _ := newTestPipeline(t)

	for i := 0; i < 2; i++ {
		var leaf [32]byte
		leaf[31] = byte(i + 1)
		require.NoError(t, p.Output.Append(leaf))
	}

	result, err := PrepareProofsWithSequentialChangelogs(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, result.AppendGroups, 1)

	entries := p.Changelog.Get(p.TreePubkey)
	require.NotEmpty(t, entries)
	last := entries[len(entries)-1]
	root, err := merkletree.ComputeRoot(last.NewLeaf, last.PathIndex, last.Siblings)
	require.NoError(t, err)
	require.Equal(t, p.Tree.CurrentRoot(), root, "replaying the changelog must reproduce the current root")
}

type stubChainConn struct {
	sent atomic.Int64
}

func (c *stubChainConn) Close() error { return nil }

func (c *stubChainConn) SendTransaction(ctx context.Context, payload []byte) (uint64, error) {
	c.sent.Add(1)
	return 42, nil
}

func TestCommitSubmitsThroughPooledConnection(t *testing.T) {
	p, _ := newTestPipeline(t)
	conn := &stubChainConn{}
	pool := rpcpool.NewPool(1, func(ctx context.Context) (rpcpool.Connection, error) { return conn, nil })
	p.Submitter = &RPCSubmitter{Pool: pool}

	var leaf [32]byte
	leaf[31] = 1
	require.NoError(t, p.Output.Append(leaf))
	require.NoError(t, p.Output.Append(leaf))

	result, err := PrepareProofsWithSequentialChangelogs(context.Background(), p)
	require.NoError(t, err)
	require.Len(t, result.Events, 1)
	require.Equal(t, uint64(42), result.Events[0].Slot)
	require.Equal(t, int64(1), conn.sent.Load())
}

func TestNullifyStreamSurfacesProverError(t *testing.T) {
	p, _ := newTestPipeline(t)
	p.Prover = &failingProver{}

	var leafHash, txHash [32]byte
	leafHash[31] = 1
	txHash[31] = 2
	require.NoError(t, p.Input.Nullify(leafHash, 0, txHash))
	leafHash2 := leafHash
	leafHash2[30] = 1
	require.NoError(t, p.Input.Nullify(leafHash2, 1, txHash))

	groups, errs := p.NullifyInstructionStream(context.Background())
	for range groups {
	}
	err := <-errs
	require.Error(t, err)
	require.True(t, errors.Is(err, errProveBoom))
}

var errProveBoom = errors.New("prove boom")

type failingProver struct{}

func (f *failingProver) Prove(ctx context.Context, req ProveRequest) (*ProveResponse, error) {
	return nil, errProveBoom
}

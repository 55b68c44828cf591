// Package rpcpool implements the bounded RPC connection pool the forester
// pipeline acquires a connection from before talking to the chain/indexer:
// a fixed number of connections are shared across trees, and every
// acquisition is released on all exit paths, including cancellation.
package rpcpool

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/semaphore"
)

// Connection is anything the pool can hand out and eventually recycle;
// real transport state lives in the concrete type (forester.ChainConn
// extends it with transaction submission).
type Connection interface {
	Close() error
}

// Factory builds a fresh connection when the pool needs one.
type Factory func(ctx context.Context) (Connection, error)

// Pool is a bounded, lazily-populated pool of connections of one kind
// (RPC or indexer). Acquire blocks until a connection is available or ctx
// is canceled; the returned Lease must be released exactly once.
type Pool struct {
	sem     *semaphore.Weighted
	factory Factory

	mu   sync.Mutex
	idle []Connection
}

// NewPool builds a pool that allows at most size concurrently-acquired
// connections, creating them on demand via factory.
func NewPool(size int64, factory Factory) *Pool {
	return &Pool{sem: semaphore.NewWeighted(size), factory: factory}
}

// Lease is one acquired connection; Release must run on every exit path,
// which callers typically ensure with a deferred call.
type Lease struct {
	pool *Pool
	Conn Connection
	bad  bool
}

// Acquire blocks for a free slot, then returns an idle connection or builds
// a new one. On ctx cancellation it returns ctx.Err() without leaking a
// semaphore permit.
func (p *Pool) Acquire(ctx context.Context) (*Lease, error) {
	if err := p.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("rpcpool: acquiring connection slot: %w", err)
	}

	p.mu.Lock()
	var conn Connection
	if n := len(p.idle); n > 0 {
		conn = p.idle[n-1]
		p.idle = p.idle[:n-1]
	}
	p.mu.Unlock()

	if conn == nil {
		built, err := p.factory(ctx)
		if err != nil {
			p.sem.Release(1)
			return nil, fmt.Errorf("rpcpool: building connection: %w", err)
		}
		conn = built
	}

	return &Lease{pool: p, Conn: conn}, nil
}

// Release returns the connection to the idle set and frees its slot. If the
// caller marked the lease bad (via Discard), the connection is closed
// instead of recycled.
func (l *Lease) Release() {
	if l == nil {
		return
	}
	defer l.pool.sem.Release(1)

	if l.bad {
		_ = l.Conn.Close()
		return
	}

	l.pool.mu.Lock()
	l.pool.idle = append(l.pool.idle, l.Conn)
	l.pool.mu.Unlock()
}

// Discard marks the lease's connection as unfit for reuse; Release will
// close it instead of returning it to the idle set. Callers use this after
// observing a transport error on the connection.
func (l *Lease) Discard() {
	l.bad = true
}

// WithConnection acquires a connection, runs fn, and guarantees Release
// regardless of how fn returns — the scoped-acquisition pattern every
// pipeline call site should use instead of calling Acquire directly.
func (p *Pool) WithConnection(ctx context.Context, fn func(Connection) error) error {
	lease, err := p.Acquire(ctx)
	if err != nil {
		return err
	}
	defer lease.Release()

	if err := fn(lease.Conn); err != nil {
		lease.Discard()
		return err
	}
	return nil
}

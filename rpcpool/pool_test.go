package rpcpool

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	closed *int32
}

func (f *fakeConn) Close() error {
	atomic.AddInt32(f.closed, 1)
	return nil
}

func TestAcquireReusesReleasedConnection(t *testing.T) {
	built := int32(0)
	closed := int32(0)
	pool := NewPool(1, func(ctx context.Context) (Connection, error) {
		atomic.AddInt32(&built, 1)
		return &fakeConn{closed: &closed}, nil
	})

	lease1, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	lease1.Release()

	lease2, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	lease2.Release()

	require.Equal(t, int32(1), built)
	require.Equal(t, int32(0), closed)
}

func TestAcquireBlocksUntilSizeLimit(t *testing.T) {
	pool := NewPool(1, func(ctx context.Context) (Connection, error) {
		return &fakeConn{closed: new(int32)}, nil
	})

	lease1, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	// The only slot is held, so Acquire blocks until the deadline passes.
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = pool.Acquire(ctx)
	require.Error(t, err)

	lease1.Release()
}

func TestWithConnectionDiscardsOnError(t *testing.T) {
	closed := int32(0)
	pool := NewPool(1, func(ctx context.Context) (Connection, error) {
		return &fakeConn{closed: &closed}, nil
	})

	err := pool.WithConnection(context.Background(), func(c Connection) error {
		return context.Canceled
	})
	require.Error(t, err)
	require.Equal(t, int32(1), closed)
}

package keylock

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemorySerializesSameKey(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()
	const goroutines = 50

	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		maxSeen atomic.Int32
		counter int
	)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := WithLock(ctx, l, "EMP001", nil, func(context.Context) error {
				n := inside.Add(1)
				if n > maxSeen.Load() {
					maxSeen.Store(n)
				}
				counter++
				inside.Add(-1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, goroutines, counter)
	assert.Equal(t, int32(1), maxSeen.Load())
	assert.Zero(t, l.Len(), "lock entries are released")
}

func TestMemoryDifferentKeysDoNotContend(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()

	held, err := l.Acquire(ctx, "EMP001")
	require.NoError(t, err)
	defer held.Unlock(ctx)

	ctx2, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	other, err := l.Acquire(ctx2, "EMP002")
	require.NoError(t, err)
	require.NoError(t, other.Unlock(ctx))
}

func TestMemoryAcquireHonoursContext(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()

	held, err := l.Acquire(ctx, "EMP001")
	require.NoError(t, err)

	waitCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = l.Acquire(waitCtx, "EMP001")
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	require.NoError(t, held.Unlock(ctx))
	assert.Zero(t, l.Len())
}

func TestMemoryUnlockIsIdempotent(t *testing.T) {
	l := NewMemory()
	ctx := context.Background()
	h, err := l.Acquire(ctx, "EMP001")
	require.NoError(t, err)
	require.NoError(t, h.Unlock(ctx))
	require.NoError(t, h.Unlock(ctx))

	again, err := l.Acquire(ctx, "EMP001")
	require.NoError(t, err)
	require.NoError(t, again.Unlock(ctx))
}

func TestWithLockPropagatesError(t *testing.T) {
	l := NewMemory()
	want := assert.AnError
	err := WithLock(context.Background(), l, "k", nil, func(context.Context) error { return want })
	assert.ErrorIs(t, err, want)
	assert.Zero(t, l.Len())
}

type failingHandle struct{}

func (failingHandle) Unlock(context.Context) error { return errRelease }

type failingUnlockLocker struct{}

func (failingUnlockLocker) Acquire(context.Context, string) (Handle, error) { return failingHandle{}, nil }

var errRelease = errors.New("lock expired before release")

func TestWithLockReleaseFailure(t *testing.T) {
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	t.Run("after committed work is logged, not returned", func(t *testing.T) {
		ran := false
		err := WithLock(context.Background(), failingUnlockLocker{}, "EMP001", logger, func(context.Context) error {
			ran = true
			return nil
		})
		require.NoError(t, err)
		assert.True(t, ran)
		assert.Contains(t, logs.String(), "lock release failed after committed work")
	})

	t.Run("after failed work is joined", func(t *testing.T) {
		err := WithLock(context.Background(), failingUnlockLocker{}, "EMP001", logger, func(context.Context) error {
			return assert.AnError
		})
		assert.ErrorIs(t, err, assert.AnError)
		assert.ErrorIs(t, err, errRelease)
	})
}

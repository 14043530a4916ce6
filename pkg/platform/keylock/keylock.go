// Package keylock provides per-key mutual exclusion. Operations on the same
// key are serialized; operations on different keys never contend.
//
//	handle, err := locker.Acquire(ctx, employee.String())
//	if err != nil {
//	    return err
//	}
//	defer handle.Unlock(ctx)
package keylock

import (
	"context"
	"errors"
	"log/slog"
)

// Handle is an acquired lock. Unlock must be called exactly once.
type Handle interface {
	Unlock(ctx context.Context) error
}

// Locker acquires per-key locks. Acquire blocks until the lock is held or
// ctx is done.
type Locker interface {
	Acquire(ctx context.Context, key string) (Handle, error)
}

// WithLock runs fn while holding the lock for key. Once fn has succeeded its
// work is committed, so a failed release is logged rather than returned; a
// release failure after fn failed is joined to fn's error. A nil logger uses
// slog.Default.
func WithLock(ctx context.Context, l Locker, key string, logger *slog.Logger, fn func(ctx context.Context) error) (err error) {
	handle, err := l.Acquire(ctx, key)
	if err != nil {
		return err
	}
	defer func() {
		// Release on a context that survives cancellation of the caller.
		uerr := handle.Unlock(context.WithoutCancel(ctx))
		switch {
		case uerr == nil:
		case err != nil:
			err = errors.Join(err, uerr)
		default:
			if logger == nil {
				logger = slog.Default()
			}
			logger.ErrorContext(ctx, "lock release failed after committed work", "key", key, "error", uerr)
		}
	}()
	return fn(ctx)
}

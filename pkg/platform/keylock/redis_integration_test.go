//go:build integration

package keylock_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"efrn/pkg/platform/keylock"
	"efrn/pkg/platform/sentinel"
	"efrn/pkg/testutil/containers"
)

type RedisLockSuite struct {
	suite.Suite
	redis *containers.RedisContainer
}

func TestRedisLockSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisLockSuite))
}

func (s *RedisLockSuite) SetupSuite() {
	s.redis = containers.GetManager().GetRedis(s.T())
}

func (s *RedisLockSuite) SetupTest() {
	s.Require().NoError(s.redis.DeletePrefix(context.Background(), "efrn:lock:"))
}

// TestTwoLockersExclude simulates two instances sharing one Redis.
func (s *RedisLockSuite) TestTwoLockersExclude() {
	ctx := context.Background()
	a := keylock.NewRedis(s.redis.Client)
	b := keylock.NewRedis(s.redis.Client)
	const goroutines = 20

	var (
		wg      sync.WaitGroup
		inside  atomic.Int32
		overlap atomic.Bool
	)
	for i := 0; i < goroutines; i++ {
		l := a
		if i%2 == 1 {
			l = b
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := keylock.WithLock(ctx, l, "EMP999", nil, func(context.Context) error {
				if inside.Add(1) > 1 {
					overlap.Store(true)
				}
				time.Sleep(2 * time.Millisecond)
				inside.Add(-1)
				return nil
			})
			s.NoError(err)
		}()
	}
	wg.Wait()
	s.False(overlap.Load(), "critical sections overlapped")
}

func (s *RedisLockSuite) TestContentionGivesUp() {
	ctx := context.Background()
	l := keylock.NewRedis(s.redis.Client, keylock.WithRetry(5*time.Millisecond, 3))

	held, err := l.Acquire(ctx, "EMP001")
	s.Require().NoError(err)
	defer held.Unlock(ctx)

	_, err = l.Acquire(ctx, "EMP001")
	s.ErrorIs(err, sentinel.ErrLockHeld)
}

func (s *RedisLockSuite) TestExpiredLockCanBeRetaken() {
	ctx := context.Background()
	l := keylock.NewRedis(s.redis.Client, keylock.WithTTL(50*time.Millisecond))

	_, err := l.Acquire(ctx, "EMP002")
	s.Require().NoError(err)

	time.Sleep(100 * time.Millisecond)
	h, err := l.Acquire(ctx, "EMP002")
	s.Require().NoError(err)
	s.NoError(h.Unlock(ctx))
}

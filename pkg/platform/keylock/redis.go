package keylock

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"

	"efrn/pkg/platform/sentinel"
)

const (
	defaultKeyPrefix  = "efrn:lock:"
	defaultTTL        = 10 * time.Second
	defaultRetryDelay = 25 * time.Millisecond
	defaultTries      = 200
)

// Redis is a distributed Locker backed by redsync. The lock expires after
// TTL so a crashed holder cannot wedge an employee forever; TTL must exceed
// the longest pipeline run.
type Redis struct {
	rs         *redsync.Redsync
	prefix     string
	ttl        time.Duration
	retryDelay time.Duration
	tries      int
}

// RedisOption configures a Redis locker.
type RedisOption func(*Redis)

func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithKeyPrefix(prefix string) RedisOption {
	return func(r *Redis) { r.prefix = prefix }
}

// WithRetry sets how often and how many times acquisition is attempted
// before giving up with sentinel.ErrLockHeld.
func WithRetry(delay time.Duration, tries int) RedisOption {
	return func(r *Redis) {
		if delay > 0 {
			r.retryDelay = delay
		}
		if tries > 0 {
			r.tries = tries
		}
	}
}

func NewRedis(client *redis.Client, opts ...RedisOption) *Redis {
	r := &Redis{
		rs:         redsync.New(goredis.NewPool(client)),
		prefix:     defaultKeyPrefix,
		ttl:        defaultTTL,
		retryDelay: defaultRetryDelay,
		tries:      defaultTries,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Redis) Acquire(ctx context.Context, key string) (Handle, error) {
	mutex := r.rs.NewMutex(r.prefix+key,
		redsync.WithExpiry(r.ttl),
		redsync.WithTries(r.tries),
		redsync.WithRetryDelay(r.retryDelay),
	)
	if err := mutex.LockContext(ctx); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %s: %v", sentinel.ErrLockHeld, key, err)
	}
	return &redisHandle{mutex: mutex}, nil
}

type redisHandle struct {
	mutex *redsync.Mutex
}

func (h *redisHandle) Unlock(ctx context.Context) error {
	ok, err := h.mutex.UnlockContext(ctx)
	if err != nil {
		return fmt.Errorf("release lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("release lock: %w: lock expired before release", sentinel.ErrInvalidState)
	}
	return nil
}

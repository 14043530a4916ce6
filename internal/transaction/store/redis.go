package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"time"

	"github.com/redis/go-redis/v9"

	"efrn/internal/transaction/models"
	id "efrn/pkg/domain"
	"efrn/pkg/platform/sentinel"
)

const (
	transactionKeyPrefix = "efrn:tx:"
	latestKeyPrefix      = "efrn:tx:latest:"
	rejectedKeyPrefix    = "efrn:tx:rejected:"
)

// RedisStore shares transactions across instances. Each transaction is a
// JSON value. Two sorted sets per employee and currency, scored by ledger
// sequence, track the latest transaction and the rejections no override has
// resolved yet.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL expires stored transactions. Zero keeps them indefinitely.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) { s.ttl = ttl }
}

func NewRedis(client *redis.Client, opts ...RedisOption) *RedisStore {
	s := &RedisStore{client: client}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func transactionKey(txID id.TransactionID) string {
	return transactionKeyPrefix + txID.String()
}

func latestIndexKey(employee id.EmployeeID, currency id.Currency) string {
	return latestKeyPrefix + employee.String() + ":" + currency.String()
}

func rejectedIndexKey(employee id.EmployeeID, currency id.Currency) string {
	return rejectedKeyPrefix + employee.String() + ":" + currency.String()
}

// Save writes the transaction and its index entries in one MULTI/EXEC.
func (s *RedisStore) Save(ctx context.Context, tx *models.Transaction) error {
	data, err := json.Marshal(toRecord(tx))
	if err != nil {
		return fmt.Errorf("marshal transaction: %w", err)
	}
	member := redis.Z{Score: float64(tx.LedgerSequence), Member: tx.ID.String()}
	_, err = s.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, transactionKey(tx.ID), data, s.ttl)
		pipe.ZAdd(ctx, latestIndexKey(tx.Employee, tx.Currency), member)
		if tx.OpenRejection() {
			pipe.ZAdd(ctx, rejectedIndexKey(tx.Employee, tx.Currency), member)
		} else {
			pipe.ZRem(ctx, rejectedIndexKey(tx.Employee, tx.Currency), member.Member)
		}
		return nil
	})
	if err != nil {
		return wrapUnavailable(fmt.Errorf("save transaction: %w", err))
	}
	return nil
}

func (s *RedisStore) FindByID(ctx context.Context, txID id.TransactionID) (*models.Transaction, error) {
	data, err := s.client.Get(ctx, transactionKey(txID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, wrapUnavailable(fmt.Errorf("get transaction: %w", err))
	}
	var rec transactionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("unmarshal transaction: %w", err)
	}
	return rec.toModel(), nil
}

func (s *RedisStore) FindLatest(ctx context.Context, employee id.EmployeeID, currency id.Currency) (*models.Transaction, error) {
	return s.findTop(ctx, latestIndexKey(employee, currency))
}

func (s *RedisStore) FindLatestRejected(ctx context.Context, employee id.EmployeeID, currency id.Currency) (*models.Transaction, error) {
	return s.findTop(ctx, rejectedIndexKey(employee, currency))
}

func (s *RedisStore) findTop(ctx context.Context, index string) (*models.Transaction, error) {
	ids, err := s.client.ZRevRange(ctx, index, 0, 0).Result()
	if err != nil {
		return nil, wrapUnavailable(fmt.Errorf("read index %s: %w", index, err))
	}
	if len(ids) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return s.FindByID(ctx, id.TransactionID(ids[0]))
}

// wrapUnavailable marks connection-level failures with sentinel.ErrUnavailable
// so callers can tell an unreachable redis from a bad record.
func wrapUnavailable(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var netErr net.Error
	if errors.Is(err, redis.ErrClosed) || errors.As(err, &netErr) {
		return fmt.Errorf("%w: %w", sentinel.ErrUnavailable, err)
	}
	return err
}

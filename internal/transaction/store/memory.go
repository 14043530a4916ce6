// Package store holds finalized transactions so the override path can find
// an employee's most recent one. It is a working store, not the system of
// record; the ledger is authoritative and its sequence orders "latest".
package store

import (
	"context"
	"sync"

	"efrn/internal/transaction/models"
	id "efrn/pkg/domain"
	"efrn/pkg/platform/sentinel"
)

// InMemoryStore keeps transactions in process. Reads and writes copy so
// callers never share step slices with the store.
type InMemoryStore struct {
	mu     sync.RWMutex
	byID   map[id.TransactionID]*models.Transaction
	latest map[string]id.TransactionID
	// open holds, per employee and currency, the rejections no override has
	// resolved yet.
	open map[string]map[id.TransactionID]struct{}
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		byID:   make(map[id.TransactionID]*models.Transaction),
		latest: make(map[string]id.TransactionID),
		open:   make(map[string]map[id.TransactionID]struct{}),
	}
}

func latestKey(employee id.EmployeeID, currency id.Currency) string {
	return employee.String() + "|" + currency.String()
}

// Save inserts or replaces a transaction. The latest pointer for its
// employee and currency only moves forward in ledger sequence.
func (s *InMemoryStore) Save(_ context.Context, tx *models.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID[tx.ID] = tx.Clone()
	key := latestKey(tx.Employee, tx.Currency)
	if cur, ok := s.latest[key]; !ok || cur == tx.ID || s.byID[cur].LedgerSequence <= tx.LedgerSequence {
		s.latest[key] = tx.ID
	}

	if tx.OpenRejection() {
		if s.open[key] == nil {
			s.open[key] = make(map[id.TransactionID]struct{})
		}
		s.open[key][tx.ID] = struct{}{}
		return nil
	}
	delete(s.open[key], tx.ID)
	if len(s.open[key]) == 0 {
		delete(s.open, key)
	}
	return nil
}

func (s *InMemoryStore) FindByID(_ context.Context, txID id.TransactionID) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	tx, ok := s.byID[txID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return tx.Clone(), nil
}

// FindLatest returns the employee's most recently recorded transaction in
// the given currency.
func (s *InMemoryStore) FindLatest(_ context.Context, employee id.EmployeeID, currency id.Currency) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	txID, ok := s.latest[latestKey(employee, currency)]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.byID[txID].Clone(), nil
}

// FindLatestRejected returns the most recently recorded rejection that no
// override has resolved yet.
func (s *InMemoryStore) FindLatestRejected(_ context.Context, employee id.EmployeeID, currency id.Currency) (*models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var found *models.Transaction
	for txID := range s.open[latestKey(employee, currency)] {
		tx := s.byID[txID]
		if found == nil || tx.LedgerSequence > found.LedgerSequence {
			found = tx
		}
	}
	if found == nil {
		return nil, sentinel.ErrNotFound
	}
	return found.Clone(), nil
}

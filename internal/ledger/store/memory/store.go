package memory

import (
	"context"
	"sync"

	"efrn/internal/ledger"
	"efrn/internal/transaction/models"
	id "efrn/pkg/domain"
)

// Store is an in-process ledger. A single mutex serializes appends so the
// chain head cannot move between reading it and sealing the next entry.
type Store struct {
	mu      sync.RWMutex
	entries []ledger.Entry
}

func New() *Store {
	return &Store{}
}

func (s *Store) Append(_ context.Context, entry ledger.Entry) (ledger.Entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev := ledger.GenesisHash
	if n := len(s.entries); n > 0 {
		prev = s.entries[n-1].Hash
	}
	sealed := entry.Clone().Seal(int64(len(s.entries)+1), prev)
	s.entries = append(s.entries, sealed)
	return sealed.Clone(), nil
}

// List returns a copy; callers cannot mutate committed entries.
func (s *Store) List(_ context.Context) ([]ledger.Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ledger.Entry, len(s.entries))
	for i, e := range s.entries {
		out[i] = e.Clone()
	}
	return out, nil
}

func (s *Store) CountByStatus(_ context.Context, employee id.EmployeeID, status models.FinalStatus) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, e := range s.entries {
		if e.Employee == employee && e.Status == status {
			n++
		}
	}
	return n, nil
}

// Close is a no-op; it matches the lifecycle of persistent stores.
func (s *Store) Close() error { return nil }

package keylock

import (
	"context"
	"sync"
)

// Memory is an in-process Locker. Each key gets a one-slot channel used as a
// context-aware mutex; entries are reference counted and removed once no
// goroutine holds or waits on them.
type Memory struct {
	mu    sync.Mutex
	locks map[string]*memoryLock
}

type memoryLock struct {
	slot chan struct{}
	refs int
}

func NewMemory() *Memory {
	return &Memory{locks: make(map[string]*memoryLock)}
}

func (m *Memory) Acquire(ctx context.Context, key string) (Handle, error) {
	m.mu.Lock()
	l, ok := m.locks[key]
	if !ok {
		l = &memoryLock{slot: make(chan struct{}, 1)}
		m.locks[key] = l
	}
	l.refs++
	m.mu.Unlock()

	select {
	case l.slot <- struct{}{}:
		return &memoryHandle{owner: m, key: key, lock: l}, nil
	case <-ctx.Done():
		m.release(key, l)
		return nil, ctx.Err()
	}
}

func (m *Memory) release(key string, l *memoryLock) {
	m.mu.Lock()
	defer m.mu.Unlock()
	l.refs--
	if l.refs == 0 {
		delete(m.locks, key)
	}
}

// Len reports how many keys are currently held or awaited.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.locks)
}

type memoryHandle struct {
	owner *Memory
	key   string
	lock  *memoryLock
	once  sync.Once
}

func (h *memoryHandle) Unlock(context.Context) error {
	h.once.Do(func() {
		<-h.lock.slot
		h.owner.release(h.key, h.lock)
	})
	return nil
}

package handoff

import (
	"context"
	"sync"
	"time"
)

type memoryLease struct {
	owner   string
	expires time.Time
}

// MemorySlots keeps slots for the lifetime of the process
type MemorySlots struct {
	mu     sync.Mutex
	data   map[string]map[string][]byte
	leases map[string]memoryLease
	now    func() time.Time
}

// NewMemorySlots creates an empty in-process backend
func NewMemorySlots() *MemorySlots {
	return &MemorySlots{
		data:   make(map[string]map[string][]byte),
		leases: make(map[string]memoryLease),
		now:    time.Now,
	}
}

func (m *MemorySlots) Get(_ context.Context, session, slot string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v, ok := m.data[session][slot]
	if !ok {
		return nil, false, nil
	}
	return append([]byte(nil), v...), true, nil
}

func (m *MemorySlots) Set(_ context.Context, session, slot string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.setLocked(session, slot, value)
	return nil
}

func (m *MemorySlots) SetAll(_ context.Context, session string, values map[string][]byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for slot, value := range values {
		m.setLocked(session, slot, value)
	}
	return nil
}

func (m *MemorySlots) setLocked(session, slot string, value []byte) {
	if m.data[session] == nil {
		m.data[session] = make(map[string][]byte)
	}
	m.data[session][slot] = append([]byte(nil), value...)
}

func (m *MemorySlots) Delete(_ context.Context, session string, slots ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, slot := range slots {
		delete(m.data[session], slot)
	}
	if len(m.data[session]) == 0 {
		delete(m.data, session)
	}
	return nil
}

func (m *MemorySlots) Lock(_ context.Context, session, owner string, ttl time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	if held, ok := m.leases[session]; ok && now.Before(held.expires) {
		return false, nil
	}
	m.leases[session] = memoryLease{owner: owner, expires: now.Add(ttl)}
	return true, nil
}

func (m *MemorySlots) Unlock(_ context.Context, session, owner string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if held, ok := m.leases[session]; ok && held.owner == owner {
		delete(m.leases, session)
	}
	return nil
}

func (m *MemorySlots) Close() error { return nil }

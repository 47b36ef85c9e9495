package storage

import (
	"sync"

	"github.com/rotisserie/eris"
)

// MemoryStore is an in-process TableStore. Tables are copied on the way in
// and out.
type MemoryStore struct {
	mu     sync.Mutex
	tables map[string]*Table
	// FailWrites makes every Write fail without touching stored tables.
	FailWrites bool
	Writes     int
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{tables: make(map[string]*Table)}
}

func (m *MemoryStore) Exists(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tables[name]
	return ok
}

func (m *MemoryStore) Read(name string) (*Table, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tables[name]
	if !ok {
		return nil, eris.Wrapf(ErrNotFound, "memory: %s", name)
	}
	return t.Clone(), nil
}

func (m *MemoryStore) Write(name string, t *Table) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailWrites {
		return eris.Errorf("memory: write %s refused", name)
	}
	m.Writes++
	m.tables[name] = t.Clone()
	return nil
}

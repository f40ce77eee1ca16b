package kv

import (
	"context"
	"sync"
)

// MemoryStore is an in-process, map-backed Store. It is used by unit tests
// across the depot core and has no durability guarantees beyond the process
// lifetime.
type MemoryStore struct {
	mu   sync.Mutex
	data map[Family]map[string][]byte
}

// NewMemoryStore builds an empty in-memory Store.
func NewMemoryStore() *MemoryStore {
	m := &MemoryStore{data: make(map[Family]map[string][]byte)}
	for _, f := range AllFamilies {
		m.data[f] = make(map[string][]byte)
	}
	return m
}

func (m *MemoryStore) familyLocked(family Family) map[string][]byte {
	fam, ok := m.data[family]
	if !ok {
		fam = make(map[string][]byte)
		m.data[family] = fam
	}
	return fam
}

func (m *MemoryStore) Get(_ context.Context, family Family, key string) ([]byte, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fam := m.familyLocked(family)
	v, ok := fam[key]
	if !ok {
		return nil, false, nil
	}
	cp := make([]byte, len(v))
	copy(cp, v)
	return cp, true, nil
}

func (m *MemoryStore) Put(_ context.Context, family Family, key string, value []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make([]byte, len(value))
	copy(cp, value)
	m.familyLocked(family)[key] = cp
	return nil
}

func (m *MemoryStore) Delete(_ context.Context, family Family, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.familyLocked(family), key)
	return nil
}

func (m *MemoryStore) Iterate(_ context.Context, family Family) ([]Entry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	fam := m.familyLocked(family)
	out := make([]Entry, 0, len(fam))
	for k, v := range fam {
		cp := make([]byte, len(v))
		copy(cp, v)
		out = append(out, Entry{Key: k, Value: cp})
	}
	return out, nil
}

// WriteBatch applies every Op under a single lock acquisition: since no Op
// here can itself fail, the batch is trivially atomic.
func (m *MemoryStore) WriteBatch(_ context.Context, ops []Op) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, op := range ops {
		fam := m.familyLocked(op.Family)
		switch op.Kind {
		case OpPut:
			cp := make([]byte, len(op.Value))
			copy(cp, op.Value)
			fam[op.Key] = cp
		case OpDelete:
			delete(fam, op.Key)
		}
	}
	return nil
}

func (m *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)

// Package store provides Store implementations.
package store

import (
	"sync"

	"github.com/learnify/state-engine/generic"
)

// =============================================================================
// MEMORY STORE - In-memory, insertion-ordered implementation
// =============================================================================

// Memory is a generic.Store backed by a map, guarded by a single mutex.
// Keys are never removed, so insertion order is kept in a plain slice.
type Memory[K comparable, V any] struct {
	mu     sync.Mutex
	values map[K]V
	order  []K
}

var _ generic.Store[string, int] = (*Memory[string, int])(nil)

func NewMemory[K comparable, V any]() *Memory[K, V] {
	return &Memory[K, V]{
		values: make(map[K]V),
	}
}

func (m *Memory[K, V]) Get(key K) (V, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	v, ok := m.values[key]
	return v, ok
}

func (m *Memory[K, V]) Contains(key K) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.values[key]
	return ok
}

func (m *Memory[K, V]) Upsert(key K, value V) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.putLocked(key, value)
}

func (m *Memory[K, V]) GetOrCreate(key K, fn func(v *V)) {
	m.mu.Lock()
	defer m.mu.Unlock()

	v := m.values[key]
	fn(&v)
	m.putLocked(key, v)
}

func (m *Memory[K, V]) Mutate(key K, fn func(current V, exists bool) (V, error)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	current, ok := m.values[key]
	next, err := fn(current, ok)
	if err != nil {
		return err
	}
	m.putLocked(key, next)
	return nil
}

func (m *Memory[K, V]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.order)
}

func (m *Memory[K, V]) Values() []V {
	m.mu.Lock()
	defer m.mu.Unlock()

	result := make([]V, len(m.order))
	for i, k := range m.order {
		result[i] = m.values[k]
	}
	return result
}

func (m *Memory[K, V]) putLocked(key K, value V) {
	if _, ok := m.values[key]; !ok {
		m.order = append(m.order, key)
	}
	m.values[key] = value
}

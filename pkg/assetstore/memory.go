package assetstore

import (
	"context"
	"sync"
)

// MemoryStore keeps values in process memory. It is meant for local runs and tests.
type MemoryStore struct {
	mu     sync.RWMutex
	values map[string]string
	writes []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{values: make(map[string]string)}
}

func (m *MemoryStore) Get(_ context.Context, key string) (string, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	value, ok := m.values[key]

	return value, ok, nil
}

func (m *MemoryStore) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.values[key] = value
	m.writes = append(m.writes, key)

	return nil
}

func (m *MemoryStore) Exists(_ context.Context, keys ...string) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var count int64

	for _, key := range keys {
		if _, ok := m.values[key]; ok {
			count++
		}
	}

	return count, nil
}

// Delete removes key. Used to simulate evictions.
func (m *MemoryStore) Delete(key string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.values, key)
}

// Writes returns the keys written so far, in order.
func (m *MemoryStore) Writes() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]string(nil), m.writes...)
}

func (m *MemoryStore) Close() error {
	return nil
}

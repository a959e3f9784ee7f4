package dispatch

import (
	"context"
	"sync"
)

// MemoryStore is an in-process Store meant to live for a single request.
type MemoryStore struct {
	mu      sync.Mutex
	values  map[string][]byte
	indexes map[string]map[string]struct{}
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		values:  make(map[string][]byte),
		indexes: make(map[string]map[string]struct{}),
	}
}

func indexKey(scope string, entity Entity) string {
	return scope + "|" + string(entity)
}

// Get implements Store.
func (s *MemoryStore) Get(_ context.Context, key string) ([]byte, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok, nil
}

// Set implements Store.
func (s *MemoryStore) Set(_ context.Context, key string, value []byte, scope string, entities []Entity) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
	for _, e := range entities {
		idx := indexKey(scope, e)
		if s.indexes[idx] == nil {
			s.indexes[idx] = make(map[string]struct{})
		}
		s.indexes[idx][key] = struct{}{}
	}
	return nil
}

// Delete implements Store.
func (s *MemoryStore) Delete(_ context.Context, keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, k := range keys {
		delete(s.values, k)
	}
	return nil
}

// Invalidate implements Store.
func (s *MemoryStore) Invalidate(_ context.Context, scope string, entity Entity) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx := indexKey(scope, entity)
	n := 0
	for k := range s.indexes[idx] {
		if _, ok := s.values[k]; ok {
			delete(s.values, k)
			n++
		}
	}
	delete(s.indexes, idx)
	return n, nil
}

// Len returns the number of cached results.
func (s *MemoryStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.values)
}

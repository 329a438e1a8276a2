package store

import (
	"maps"
	"sync"
)

// MemoryStore is the in-process mirror substituted for any collection
// whose durable backend is unreachable. It is shared by every session,
// so all access goes through the mutex.
type MemoryStore struct {
	mu          sync.RWMutex
	collections map[string]map[string]map[string]any
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		collections: make(map[string]map[string]map[string]any),
	}
}

func (m *MemoryStore) Upsert(collection, id string, doc map[string]any) {
	m.mu.Lock()
	defer m.mu.Unlock()

	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string]map[string]any)
		m.collections[collection] = docs
	}
	docs[id] = cloneDoc(doc)
}

// Query returns all documents in collection whose top-level fields equal
// every entry of filter. A nil filter matches everything.
func (m *MemoryStore) Query(collection string, filter map[string]any) []map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := []map[string]any{}
	for _, doc := range m.collections[collection] {
		if matchesFilter(doc, filter) {
			results = append(results, cloneDoc(doc))
		}
	}
	return results
}

func (m *MemoryStore) Get(collection, id string) (map[string]any, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.collections[collection][id]
	if !ok {
		return nil, false
	}
	return cloneDoc(doc), true
}

// FieldValues returns the value of field from every document in the
// collection that carries it. Used by the sequence allocator.
func (m *MemoryStore) FieldValues(collection, field string) []any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	values := []any{}
	for _, doc := range m.collections[collection] {
		if v, ok := doc[field]; ok {
			values = append(values, v)
		}
	}
	return values
}

// Docs returns every document in the collection keyed by identifier.
// Used when a promoted collection replays its mirror into the durable
// store.
func (m *MemoryStore) Docs(collection string) map[string]map[string]any {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]map[string]any, len(m.collections[collection]))
	for id, doc := range m.collections[collection] {
		out[id] = cloneDoc(doc)
	}
	return out
}

func (m *MemoryStore) Count(collection string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.collections[collection])
}

func matchesFilter(doc, filter map[string]any) bool {
	for key, want := range filter {
		if doc[key] != want {
			return false
		}
	}
	return true
}

// cloneDoc keeps callers from mutating mirrored state through shared
// top-level maps. Nested values are shared; stage code treats artifacts
// as immutable once persisted.
func cloneDoc(doc map[string]any) map[string]any {
	clone := make(map[string]any, len(doc))
	maps.Copy(clone, doc)
	return clone
}

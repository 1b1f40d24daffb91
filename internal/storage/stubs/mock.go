package stubs

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"lendingdesk/internal/storage"
)

// MockDB is an in-memory implementation of the DocumentStore interface
type MockDB struct {
	mu          sync.RWMutex
	collections map[storage.Collection]map[string][]byte
}

// NewMockDB creates a new mock database
func NewMockDB() *MockDB {
	return &MockDB{
		collections: make(map[storage.Collection]map[string][]byte),
	}
}

// Initialize creates the empty collections
func (m *MockDB) Initialize(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, c := range storage.Collections {
		if _, ok := m.collections[c]; !ok {
			m.collections[c] = make(map[string][]byte)
		}
	}
	return nil
}

// Get returns a copy of the stored document
func (m *MockDB) Get(ctx context.Context, collection storage.Collection, id string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	doc, ok := m.collections[collection][id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return clone(doc), nil
}

// Put stores a copy of doc, replacing any previous version
func (m *MockDB) Put(ctx context.Context, collection storage.Collection, id string, doc []byte) error {
	if !storage.Valid(doc) {
		return fmt.Errorf("failed to put %s/%s: invalid document", collection, id)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	docs, ok := m.collections[collection]
	if !ok {
		docs = make(map[string][]byte)
		m.collections[collection] = docs
	}
	docs[id] = clone(doc)
	return nil
}

// Delete removes a document
func (m *MockDB) Delete(ctx context.Context, collection storage.Collection, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.collections[collection][id]; !ok {
		return storage.ErrNotFound
	}
	delete(m.collections[collection], id)
	return nil
}

// List returns every document in the collection ordered by id
func (m *MockDB) List(ctx context.Context, collection storage.Collection) ([][]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := m.collections[collection]
	ids := make([]string, 0, len(docs))
	for id := range docs {
		ids = append(ids, id)
	}

	// Sort by id
	sort.Strings(ids)

	out := make([][]byte, 0, len(ids))
	for _, id := range ids {
		out = append(out, clone(docs[id]))
	}
	return out, nil
}

// Close does nothing for mock DB
func (m *MockDB) Close() error {
	return nil
}

func clone(b []byte) []byte {
	out := make([]byte, len(b))
	copy(out, b)
	return out
}

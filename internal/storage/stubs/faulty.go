package stubs

import (
	"context"
	"errors"
	"sync"

	"lendingdesk/internal/storage"
)

// ErrInjected is returned by FaultyDB for operations armed to fail
var ErrInjected = errors.New("injected store failure")

// Op names a DocumentStore operation for fault injection
type Op string

const (
	OpGet    Op = "get"
	OpPut    Op = "put"
	OpDelete Op = "delete"
	OpList   Op = "list"
)

type faultKey struct {
	op         Op
	collection storage.Collection
}

// FaultyDB wraps a DocumentStore and fails selected operations
type FaultyDB struct {
	storage.DocumentStore

	mu     sync.Mutex
	faults map[faultKey]int
}

// NewFaultyDB wraps inner
func NewFaultyDB(inner storage.DocumentStore) *FaultyDB {
	return &FaultyDB{
		DocumentStore: inner,
		faults:        make(map[faultKey]int),
	}
}

// FailNext makes the next n calls of op on collection fail; n < 0 fails forever
func (f *FaultyDB) FailNext(op Op, collection storage.Collection, n int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults[faultKey{op: op, collection: collection}] = n
}

// Heal clears all armed faults
func (f *FaultyDB) Heal() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.faults = make(map[faultKey]int)
}

func (f *FaultyDB) fail(op Op, collection storage.Collection) bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	key := faultKey{op: op, collection: collection}
	n, ok := f.faults[key]
	if !ok || n == 0 {
		return false
	}
	if n > 0 {
		f.faults[key] = n - 1
	}
	return true
}

func (f *FaultyDB) Get(ctx context.Context, collection storage.Collection, id string) ([]byte, error) {
	if f.fail(OpGet, collection) {
		return nil, ErrInjected
	}
	return f.DocumentStore.Get(ctx, collection, id)
}

func (f *FaultyDB) Put(ctx context.Context, collection storage.Collection, id string, doc []byte) error {
	if f.fail(OpPut, collection) {
		return ErrInjected
	}
	return f.DocumentStore.Put(ctx, collection, id, doc)
}

func (f *FaultyDB) Delete(ctx context.Context, collection storage.Collection, id string) error {
	if f.fail(OpDelete, collection) {
		return ErrInjected
	}
	return f.DocumentStore.Delete(ctx, collection, id)
}

func (f *FaultyDB) List(ctx context.Context, collection storage.Collection) ([][]byte, error) {
	if f.fail(OpList, collection) {
		return nil, ErrInjected
	}
	return f.DocumentStore.List(ctx, collection)
}

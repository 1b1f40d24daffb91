package storage

import (
	"context"
	"errors"
	"fmt"

	jsoniter "github.com/json-iterator/go"
)

// Collection names a keyed set of documents
type Collection string

const (
	Books    Collection = "books"
	Students Collection = "students"
	Issues   Collection = "issues"
	Logs     Collection = "logs"
)

// Collections lists every collection the service uses
var Collections = []Collection{Books, Students, Issues, Logs}

// ErrNotFound is returned when a document does not exist
var ErrNotFound = errors.New("document not found")

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// DocumentStore defines the persistence operations the service relies on.
// Documents are JSON encoded records keyed by string ids within a collection.
type DocumentStore interface {
	// Get returns the document or ErrNotFound
	Get(ctx context.Context, collection Collection, id string) ([]byte, error)

	// Put creates or replaces a document
	Put(ctx context.Context, collection Collection, id string, doc []byte) error

	// Delete removes a document, ErrNotFound if absent
	Delete(ctx context.Context, collection Collection, id string) error

	// List returns every document of a collection ordered by id
	List(ctx context.Context, collection Collection) ([][]byte, error)

	// Lifecycle
	Initialize(ctx context.Context) error
	Close() error
}

// Load reads and decodes one document
func Load[T any](ctx context.Context, s DocumentStore, collection Collection, id string) (T, error) {
	var out T
	doc, err := s.Get(ctx, collection, id)
	if err != nil {
		return out, err
	}
	if err := json.Unmarshal(doc, &out); err != nil {
		return out, fmt.Errorf("failed to decode %s/%s: %w", collection, id, err)
	}
	return out, nil
}

// Save encodes and writes one document
func Save[T any](ctx context.Context, s DocumentStore, collection Collection, id string, v T) error {
	doc, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to encode %s/%s: %w", collection, id, err)
	}
	return s.Put(ctx, collection, id, doc)
}

// LoadAll reads and decodes a whole collection
func LoadAll[T any](ctx context.Context, s DocumentStore, collection Collection) ([]T, error) {
	docs, err := s.List(ctx, collection)
	if err != nil {
		return nil, err
	}
	out := make([]T, 0, len(docs))
	for _, doc := range docs {
		var v T
		if err := json.Unmarshal(doc, &v); err != nil {
			return nil, fmt.Errorf("failed to decode %s document: %w", collection, err)
		}
		out = append(out, v)
	}
	return out, nil
}

// Valid reports whether doc is well-formed JSON
func Valid(doc []byte) bool {
	return json.Valid(doc)
}

package ch

import (
	"context"
	"crypto/tls"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/ClickHouse/clickhouse-go/v2"

	"lendingdesk/internal/storage"
)

// ClickHouseDB stores documents in a ReplacingMergeTree table.
// Every write inserts a new row version; reads use FINAL to see the latest one
// and deletes are tombstones.
type ClickHouseDB struct {
	conn    clickhouse.Conn
	version atomic.Uint64
}

// NewClickHouseDB creates a new ClickHouse database connection
func NewClickHouseDB(host string, port int, database, user, password string, useTLS bool) (*ClickHouseDB, error) {
	addr := fmt.Sprintf("%s:%d", host, port)

	options := &clickhouse.Options{
		Addr:     []string{addr},
		Protocol: clickhouse.Native,
		Auth: clickhouse.Auth{
			Database: database,
			Username: user,
			Password: password,
		},
	}

	// Configure TLS if enabled
	if useTLS {
		options.TLS = &tls.Config{
			InsecureSkipVerify: false,
		}
	}

	conn, err := clickhouse.Open(options)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ClickHouse: %w", err)
	}

	// Test the connection
	if err := conn.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to ping ClickHouse: %w", err)
	}

	return &ClickHouseDB{conn: conn}, nil
}

// Initialize is a no-op - tables are managed via migrations
func (db *ClickHouseDB) Initialize(ctx context.Context) error {
	// Tables are managed via migrations (see migrations/clickhouse)
	return nil
}

// nextVersion returns a row version greater than any issued by this process
func (db *ClickHouseDB) nextVersion() uint64 {
	for {
		last := db.version.Load()
		next := uint64(time.Now().UnixNano())
		if next <= last {
			next = last + 1
		}
		if db.version.CompareAndSwap(last, next) {
			return next
		}
	}
}

// Get returns the latest version of a document
func (db *ClickHouseDB) Get(ctx context.Context, collection storage.Collection, id string) ([]byte, error) {
	rows, err := db.conn.Query(ctx,
		`SELECT body, deleted FROM documents FINAL WHERE collection = ? AND id = ?`,
		string(collection), id)
	if err != nil {
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
		}
		return nil, storage.ErrNotFound
	}

	var (
		body    string
		deleted uint8
	)
	if err := rows.Scan(&body, &deleted); err != nil {
		return nil, fmt.Errorf("failed to scan document: %w", err)
	}
	if deleted == 1 {
		return nil, storage.ErrNotFound
	}
	return []byte(body), nil
}

// Put inserts a new version of a document
func (db *ClickHouseDB) Put(ctx context.Context, collection storage.Collection, id string, doc []byte) error {
	err := db.conn.Exec(ctx,
		`INSERT INTO documents (collection, id, body, deleted, version) VALUES (?, ?, ?, ?, ?)`,
		string(collection), id, string(doc), uint8(0), db.nextVersion())
	if err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", collection, id, err)
	}
	return nil
}

// Delete writes a tombstone for a document
func (db *ClickHouseDB) Delete(ctx context.Context, collection storage.Collection, id string) error {
	if _, err := db.Get(ctx, collection, id); err != nil {
		return err
	}

	err := db.conn.Exec(ctx,
		`INSERT INTO documents (collection, id, body, deleted, version) VALUES (?, ?, ?, ?, ?)`,
		string(collection), id, "", uint8(1), db.nextVersion())
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	return nil
}

// List returns the live documents of a collection ordered by id
func (db *ClickHouseDB) List(ctx context.Context, collection storage.Collection) ([][]byte, error) {
	rows, err := db.conn.Query(ctx,
		`SELECT body, deleted FROM documents FINAL WHERE collection = ? ORDER BY id`,
		string(collection))
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	defer rows.Close()

	var docs [][]byte
	for rows.Next() {
		var (
			body    string
			deleted uint8
		)
		if err := rows.Scan(&body, &deleted); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		if deleted == 1 {
			continue
		}
		docs = append(docs, []byte(body))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	return docs, nil
}

// Close closes the database connection
func (db *ClickHouseDB) Close() error {
	if db.conn != nil {
		return db.conn.Close()
	}
	return nil
}

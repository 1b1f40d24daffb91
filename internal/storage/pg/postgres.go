package pg

import (
	"context"
	"errors"
	"fmt"

	"github.com/doug-martin/goqu/v9"
	_ "github.com/doug-martin/goqu/v9/dialect/postgres" // dialect registration
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"lendingdesk/internal/storage"
)

const (
	dialectPostgres = "postgres"
	tableDocuments  = "documents"

	colCollection = "collection"
	colID         = "id"
	colBody       = "body"
	colUpdatedAt  = "updated_at"
)

// PostgresDB stores documents as JSONB rows keyed by (collection, id)
type PostgresDB struct {
	pool *pgxpool.Pool
}

// NewPostgresDB opens a pgx connection pool for the given URL
func NewPostgresDB(ctx context.Context, url string) (*PostgresDB, error) {
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping Postgres: %w", err)
	}

	return &PostgresDB{pool: pool}, nil
}

// Initialize is a no-op - tables are managed via migrations
func (db *PostgresDB) Initialize(ctx context.Context) error {
	return nil
}

func (db *PostgresDB) Get(ctx context.Context, collection storage.Collection, id string) ([]byte, error) {
	query, args, err := buildGetQuery(collection, id)
	if err != nil {
		return nil, err
	}

	var body []byte
	if err := db.pool.QueryRow(ctx, query, args...).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get %s/%s: %w", collection, id, err)
	}
	return body, nil
}

func (db *PostgresDB) Put(ctx context.Context, collection storage.Collection, id string, doc []byte) error {
	query, args, err := buildUpsertQuery(collection, id, doc)
	if err != nil {
		return err
	}

	if _, err := db.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("failed to put %s/%s: %w", collection, id, err)
	}
	return nil
}

func (db *PostgresDB) Delete(ctx context.Context, collection storage.Collection, id string) error {
	query, args, err := buildDeleteQuery(collection, id)
	if err != nil {
		return err
	}

	tag, err := db.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", collection, id, err)
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (db *PostgresDB) List(ctx context.Context, collection storage.Collection) ([][]byte, error) {
	query, args, err := buildListQuery(collection)
	if err != nil {
		return nil, err
	}

	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	defer rows.Close()

	var docs [][]byte
	for rows.Next() {
		var body []byte
		if err := rows.Scan(&body); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, body)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}
	return docs, nil
}

// Close closes the connection pool
func (db *PostgresDB) Close() error {
	if db.pool != nil {
		db.pool.Close()
	}
	return nil
}

func buildGetQuery(collection storage.Collection, id string) (string, []any, error) {
	query, args, err := goqu.Dialect(dialectPostgres).
		From(tableDocuments).
		Select(colBody).
		Where(goqu.Ex{colCollection: string(collection), colID: id}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build get query: %w", err)
	}
	return query, args, nil
}

func buildListQuery(collection storage.Collection) (string, []any, error) {
	query, args, err := goqu.Dialect(dialectPostgres).
		From(tableDocuments).
		Select(colBody).
		Where(goqu.Ex{colCollection: string(collection)}).
		Order(goqu.I(colID).Asc()).
		Prepared(true).
		ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build list query: %w", err)
	}
	return query, args, nil
}

func buildUpsertQuery(collection storage.Collection, id string, doc []byte) (string, []any, error) {
	query, args, err := goqu.Dialect(dialectPostgres).
		Insert(tableDocuments).
		Rows(goqu.Record{
			colCollection: string(collection),
			colID:         id,
			colBody:       string(doc),
			colUpdatedAt:  goqu.L("now()"),
		}).
		OnConflict(goqu.DoUpdate(colCollection+", "+colID, goqu.Record{
			colBody:      goqu.L("EXCLUDED." + colBody),
			colUpdatedAt: goqu.L("EXCLUDED." + colUpdatedAt),
		})).
		Prepared(true).
		ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build upsert query: %w", err)
	}
	return query, args, nil
}

func buildDeleteQuery(collection storage.Collection, id string) (string, []any, error) {
	query, args, err := goqu.Dialect(dialectPostgres).
		Delete(tableDocuments).
		Where(goqu.Ex{colCollection: string(collection), colID: id}).
		Prepared(true).
		ToSQL()
	if err != nil {
		return "", nil, fmt.Errorf("failed to build delete query: %w", err)
	}
	return query, args, nil
}

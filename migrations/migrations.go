// Package migrations embeds the goose migrations for the SQL-backed stores.
package migrations

import (
	"database/sql"
	"embed"
	"fmt"

	"github.com/pressly/goose/v3"
)

//go:embed clickhouse/*.sql postgres/*.sql
var FS embed.FS

// Dir returns the migrations directory for a goose dialect
func Dir(dialect string) (string, error) {
	switch dialect {
	case "clickhouse", "postgres":
		return dialect, nil
	default:
		return "", fmt.Errorf("no migrations for dialect %q", dialect)
	}
}

// Up applies all pending migrations for dialect
func Up(db *sql.DB, dialect string) error {
	dir, err := Dir(dialect)
	if err != nil {
		return err
	}
	goose.SetBaseFS(FS)
	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

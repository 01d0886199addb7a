// Package db provides SQL persistence for the task graph, its automation
// rules and recurring templates. SQLite is the default; PostgreSQL is
// supported through the same driver abstraction.
package db

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"

	"github.com/randalmurphal/taskgraph/internal/db/driver"
)

// SchemaType is the migration file prefix for this database.
const SchemaType = "taskgraph"

//go:embed schema/*.sql schema/postgres/*.sql
var schemaFS embed.FS

// DB is the SQL-backed home of tasks, rules and templates.
type DB struct {
	driver driver.Driver
	dsn    string
}

// Open opens (creating if needed) the SQLite file at path and migrates it.
func Open(path string) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}
	return OpenWithDialect(path, driver.DialectSQLite)
}

// OpenInMemory returns a fresh, migrated SQLite database that lives only as
// long as the returned handle.
func OpenInMemory() (*DB, error) {
	return OpenWithDialect(driver.MemoryDSN, driver.DialectSQLite)
}

// OpenWithDialect connects to dsn using dialect and migrates the schema.
func OpenWithDialect(dsn string, dialect driver.Dialect) (*DB, error) {
	conn, err := driver.New(dialect)
	if err != nil {
		return nil, err
	}
	if err := conn.Open(dsn); err != nil {
		return nil, err
	}
	d := &DB{driver: conn, dsn: dsn}
	if err := d.Migrate(context.Background()); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return d, nil
}

func (d *DB) Close() error { return d.driver.Close() }

// Path returns the file path or DSN the database was opened with.
func (d *DB) Path() string { return d.dsn }

func (d *DB) Dialect() driver.Dialect { return d.driver.Dialect() }

// Migrate applies any pending schema migrations.
func (d *DB) Migrate(ctx context.Context) error {
	if err := d.driver.Migrate(ctx, schemaFS, SchemaType); err != nil {
		return fmt.Errorf("migrate %s: %w", d.driver.Dialect(), err)
	}
	return nil
}

// QueryContext executes a query written with ? placeholders.
func (d *DB) QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return d.driver.Query(ctx, driver.Rebind(d.driver, query), args...)
}

// QueryRowContext executes a query written with ? placeholders that returns at most one row.
func (d *DB) QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row {
	return d.driver.QueryRow(ctx, driver.Rebind(d.driver, query), args...)
}

// replace runs fn inside a transaction after clearing tables, so a save
// either fully replaces the stored set or leaves it untouched.
func (d *DB) replace(ctx context.Context, tables []string, fn func(exec execFunc) error) error {
	tx, err := d.driver.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	exec := func(query string, args ...any) error {
		_, err := tx.Exec(ctx, driver.Rebind(d.driver, query), args...)
		return err
	}

	for _, table := range tables {
		if err := exec("DELETE FROM " + table); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("clear %s: %w", table, err)
		}
	}
	if err := fn(exec); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type execFunc func(query string, args ...any) error

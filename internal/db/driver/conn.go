package driver

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
)

// dialectSpec is the per-backend data a Conn is parameterized by.
type dialectSpec struct {
	dialect     Dialect
	sqlDriver   string
	schemaDir   string
	ledgerDDL   string
	placeholder func(int) string
	// prepare runs once after sql.Open; a non-nil error aborts Open.
	prepare func(db *sql.DB, dsn string) error
}

// Conn is a database/sql pool bound to one dialect.
type Conn struct {
	spec *dialectSpec
	db   *sql.DB
}

// NewSQLite returns an unopened SQLite connection.
func NewSQLite() *Conn { return &Conn{spec: &sqliteSpec} }

// NewPostgres returns an unopened PostgreSQL connection.
func NewPostgres() *Conn { return &Conn{spec: &postgresSpec} }

// Open connects to dsn and prepares the session for the dialect.
func (c *Conn) Open(dsn string) error {
	db, err := sql.Open(c.spec.sqlDriver, dsn)
	if err != nil {
		return fmt.Errorf("open %s: %w", c.spec.dialect, err)
	}
	if c.spec.prepare != nil {
		if err := c.spec.prepare(db, dsn); err != nil {
			_ = db.Close()
			return err
		}
	}
	c.db = db
	return nil
}

// Close releases the pool. Closing an unopened Conn is a no-op.
func (c *Conn) Close() error {
	if c.db == nil {
		return nil
	}
	return c.db.Close()
}

func (c *Conn) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return c.db.ExecContext(ctx, query, args...)
}

func (c *Conn) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return c.db.QueryContext(ctx, query, args...)
}

func (c *Conn) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return c.db.QueryRowContext(ctx, query, args...)
}

func (c *Conn) BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error) {
	tx, err := c.db.BeginTx(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return txConn{tx}, nil
}

// Migrate applies the dialect's pending {schemaType}_NNN.sql files.
func (c *Conn) Migrate(ctx context.Context, schemaFS fs.FS, schemaType string) error {
	return runMigrations(ctx, c, schemaFS, schemaType)
}

func (c *Conn) Dialect() Dialect { return c.spec.dialect }

func (c *Conn) Placeholder(index int) string { return c.spec.placeholder(index) }

// DB exposes the pool for callers that need database/sql directly.
func (c *Conn) DB() *sql.DB { return c.db }

// txConn adapts *sql.Tx to Tx. Commit and Rollback are promoted.
type txConn struct {
	*sql.Tx
}

func (t txConn) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	return t.ExecContext(ctx, query, args...)
}

func (t txConn) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return t.QueryContext(ctx, query, args...)
}

func (t txConn) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return t.QueryRowContext(ctx, query, args...)
}

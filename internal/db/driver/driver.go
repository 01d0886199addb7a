// Package driver hides the differences between the SQLite and PostgreSQL
// task stores behind one connection type.
package driver

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strconv"
	"strings"
)

// Dialect names a supported SQL backend.
type Dialect string

const (
	DialectSQLite   Dialect = "sqlite"
	DialectPostgres Dialect = "postgres"
)

// Driver is what the graph and rule repositories need from a connection.
type Driver interface {
	Open(dsn string) error
	Close() error

	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row
	BeginTx(ctx context.Context, opts *sql.TxOptions) (Tx, error)

	Migrate(ctx context.Context, schemaFS fs.FS, schemaType string) error

	Dialect() Dialect
	// Placeholder returns the bind marker for the 1-based argument index.
	Placeholder(index int) string
	DB() *sql.DB
}

// Tx is a transaction opened by a Driver.
type Tx interface {
	Exec(ctx context.Context, query string, args ...any) (sql.Result, error)
	Query(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRow(ctx context.Context, query string, args ...any) *sql.Row
	Commit() error
	Rollback() error
}

var dialects = map[Dialect]*dialectSpec{
	DialectSQLite:   &sqliteSpec,
	DialectPostgres: &postgresSpec,
}

// New returns an unopened connection for dialect.
func New(dialect Dialect) (Driver, error) {
	spec, ok := dialects[dialect]
	if !ok {
		return nil, fmt.Errorf("unsupported dialect: %s", dialect)
	}
	return &Conn{spec: spec}, nil
}

// ParseDialect maps a config value such as "pg" or "sqlite3" to a Dialect.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "sqlite", "sqlite3":
		return DialectSQLite, nil
	case "postgres", "postgresql", "pg":
		return DialectPostgres, nil
	}
	return "", fmt.Errorf("unknown dialect: %s", s)
}

// Rebind rewrites a query written with ? markers for d. Repositories keep
// one spelling of every statement and rebind at the call site.
func Rebind(d Driver, query string) string {
	if d.Dialect() == DialectSQLite || !strings.Contains(query, "?") {
		return query
	}
	parts := strings.Split(query, "?")
	var b strings.Builder
	b.Grow(len(query) + 2*len(parts))
	b.WriteString(parts[0])
	for i, part := range parts[1:] {
		b.WriteString(d.Placeholder(i + 1))
		b.WriteString(part)
	}
	return b.String()
}

func dollarPlaceholder(i int) string { return "$" + strconv.Itoa(i) }

func questionPlaceholder(int) string { return "?" }

package driver

import (
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"
)

// MemoryDSN opens a private in-memory database.
const MemoryDSN = ":memory:"

const sqlitePragmas = `
PRAGMA foreign_keys = ON;
PRAGMA journal_mode = WAL;
PRAGMA synchronous = NORMAL;
PRAGMA busy_timeout = 5000;`

var sqliteSpec = dialectSpec{
	dialect:     DialectSQLite,
	sqlDriver:   "sqlite",
	schemaDir:   "schema",
	placeholder: questionPlaceholder,
	ledgerDDL: `CREATE TABLE IF NOT EXISTS _migrations (
	version INTEGER PRIMARY KEY,
	applied_at TEXT DEFAULT (datetime('now'))
)`,
	prepare: prepareSQLite,
}

func prepareSQLite(db *sql.DB, dsn string) error {
	// A second pooled connection to :memory: would open a fresh empty database.
	if dsn == MemoryDSN {
		db.SetMaxOpenConns(1)
	}
	if _, err := db.Exec(sqlitePragmas); err != nil {
		return fmt.Errorf("sqlite pragmas: %w", err)
	}
	return nil
}

package driver

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const postgresConnectTimeout = 10 * time.Second

var postgresSpec = dialectSpec{
	dialect:     DialectPostgres,
	sqlDriver:   "pgx",
	schemaDir:   "schema/postgres",
	placeholder: dollarPlaceholder,
	ledgerDDL: `CREATE TABLE IF NOT EXISTS _migrations (
	version INTEGER PRIMARY KEY,
	applied_at TIMESTAMP WITH TIME ZONE DEFAULT NOW()
)`,
	prepare: pingPostgres,
}

// sql.Open is lazy for pgx, so a bad DSN only surfaces on first use
// unless the pool is pinged here.
func pingPostgres(db *sql.DB, _ string) error {
	ctx, cancel := context.WithTimeout(context.Background(), postgresConnectTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

package driver

import (
	"context"
	"fmt"
	"io/fs"
	"path"
	"slices"
	"strconv"
	"strings"
)

type migration struct {
	version int
	file    string
}

// runMigrations records applied versions in _migrations and applies each
// missing file in version order, one transaction per file.
func runMigrations(ctx context.Context, c *Conn, schemaFS fs.FS, schemaType string) error {
	if _, err := c.Exec(ctx, c.spec.ledgerDDL); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	pending, err := pendingMigrations(ctx, c, schemaFS, schemaType)
	if err != nil {
		return err
	}

	record := Rebind(c, "INSERT INTO _migrations (version) VALUES (?)")
	for _, m := range pending {
		body, err := fs.ReadFile(schemaFS, path.Join(c.spec.schemaDir, m.file))
		if err != nil {
			return fmt.Errorf("read migration %s: %w", m.file, err)
		}
		tx, err := c.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply migration %s: %w", m.file, err)
		}
		if _, err := tx.Exec(ctx, record, m.version); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %s: %w", m.file, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %s: %w", m.file, err)
		}
	}
	return nil
}

func pendingMigrations(ctx context.Context, c *Conn, schemaFS fs.FS, schemaType string) ([]migration, error) {
	done := make(map[int]bool)
	rows, err := c.Query(ctx, "SELECT version FROM _migrations")
	if err != nil {
		return nil, fmt.Errorf("query migrations: %w", err)
	}
	for rows.Next() {
		var v int
		if err := rows.Scan(&v); err != nil {
			_ = rows.Close()
			return nil, fmt.Errorf("scan migration version: %w", err)
		}
		done[v] = true
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate migrations: %w", err)
	}

	entries, err := fs.ReadDir(schemaFS, c.spec.schemaDir)
	if err != nil {
		return nil, fmt.Errorf("read schema dir %s: %w", c.spec.schemaDir, err)
	}
	var pending []migration
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		v, ok, err := migrationVersion(e.Name(), schemaType)
		if err != nil {
			return nil, err
		}
		if ok && !done[v] {
			pending = append(pending, migration{version: v, file: e.Name()})
		}
	}
	slices.SortFunc(pending, func(a, b migration) int { return a.version - b.version })
	return pending, nil
}

// migrationVersion parses "taskgraph_002.sql" as version 2. ok is false for
// files that belong to another schema type or are not SQL.
func migrationVersion(name, schemaType string) (v int, ok bool, err error) {
	rest, found := strings.CutPrefix(name, schemaType+"_")
	if !found {
		return 0, false, nil
	}
	num, found := strings.CutSuffix(rest, ".sql")
	if !found {
		return 0, false, nil
	}
	v, err = strconv.Atoi(num)
	if err != nil {
		return 0, false, fmt.Errorf("migration %s: version %q is not a number", name, num)
	}
	return v, true, nil
}

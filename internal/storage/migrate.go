package storage

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"sort"
)

// RunMigrations applies the embedded schema files in lexical order. Every
// statement is written to be idempotent (IF NOT EXISTS), so re-running at
// each startup is safe without a schema-version table.
func RunMigrations(ctx context.Context, db *sql.DB, schema fs.FS) error {
	names, err := fs.Glob(schema, "*.sql")
	if err != nil {
		return fmt.Errorf("list migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		stmt, err := fs.ReadFile(schema, name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if len(stmt) == 0 {
			continue
		}
		if _, err := db.ExecContext(ctx, string(stmt)); err != nil {
			return fmt.Errorf("apply migration %s: %w", name, err)
		}
	}
	return nil
}

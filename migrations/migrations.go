// Package migrations embeds the emission journal schema for each supported
// SQL dialect. Files are applied in filename order.
package migrations

import (
	"embed"
	"fmt"
	"io/fs"
)

// Dialect directory names.
const (
	SQLite   = "sqlite"
	Postgres = "postgres"
)

//go:embed sqlite/*.sql postgres/*.sql
var files embed.FS

// For returns the migration files of one dialect, rooted at its directory.
func For(dialect string) (fs.FS, error) {
	switch dialect {
	case SQLite, Postgres:
		return fs.Sub(files, dialect)
	default:
		return nil, fmt.Errorf("no migrations for dialect %q", dialect)
	}
}

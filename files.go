package enrollment

import (
	"embed"
	"io/fs"
)

//go:embed data/sql/migrations
var migrationsFS embed.FS

// DialectMigrations returns the goose migrations for dialect ("sqlite" or "postgres").
func DialectMigrations(dialect string) (fs.FS, error) {
	return fs.Sub(migrationsFS, "data/sql/migrations/"+dialect)
}

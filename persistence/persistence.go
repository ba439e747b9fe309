// Package persistence opens the bun database for the supported dialects and
// applies the embedded goose migrations.
package persistence

import (
	"context"
	"database/sql"
	"fmt"
	"io/fs"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
)

const (
	DialectSQLite   = "sqlite"
	DialectPostgres = "postgres"
)

// MigrationSource returns the migration files for a dialect.
type MigrationSource func(dialect string) (fs.FS, error)

// Open connects to dsn using dialect. Sqlite connections are limited to one
// open connection so in-memory databases are shared by every query.
func Open(dialect, dsn string) (*bun.DB, error) {
	switch strings.ToLower(dialect) {
	case DialectSQLite, "sqlite3":
		sqldb, err := sql.Open(sqliteshim.ShimName, dsn)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open sqlite database")
		}
		sqldb.SetMaxOpenConns(1)

		db := bun.NewDB(sqldb, sqlitedialect.New())
		if _, err := db.Exec("PRAGMA foreign_keys = ON;"); err != nil {
			_ = db.Close()
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to enable foreign keys")
		}
		return db, nil

	case DialectPostgres, "pg", "pgx":
		sqldb, err := sql.Open("pgx", dsn)
		if err != nil {
			return nil, goerrors.Wrap(err, goerrors.CategoryInternal, "failed to open postgres database")
		}
		return bun.NewDB(sqldb, pgdialect.New()), nil
	}

	return nil, goerrors.New(fmt.Sprintf("unsupported database dialect %q", dialect), goerrors.CategoryBadInput).
		WithTextCode("UNSUPPORTED_DIALECT")
}

// gooseUpContext is a seam for tests.
var gooseUpContext = func(ctx context.Context, db *sql.DB, dir string, opts ...goose.OptionsFunc) error {
	return goose.UpContext(ctx, db, dir, opts...)
}

// Migrate applies every pending migration for the database's dialect.
func Migrate(ctx context.Context, db *bun.DB, source MigrationSource) error {
	dialect, gooseDialect := DialectSQLite, "sqlite3"
	if _, ok := db.Dialect().(*pgdialect.Dialect); ok {
		dialect, gooseDialect = DialectPostgres, "postgres"
	}

	migrations, err := source(dialect)
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to load migrations").
			WithMetadata(map[string]any{"dialect": dialect})
	}

	goose.SetBaseFS(migrations)
	defer goose.SetBaseFS(nil)

	if err := goose.SetDialect(gooseDialect); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to set migration dialect")
	}

	if err := gooseUpContext(ctx, db.DB, "."); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to run migrations").
			WithMetadata(map[string]any{"dialect": dialect})
	}

	return nil
}

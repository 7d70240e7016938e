// Package migrations embeds the board schema and applies it with goose.
package migrations

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed postgres/*.sql sqlite/*.sql
var files embed.FS

// Dialect selects the schema variant.
type Dialect string

const (
	Postgres Dialect = "postgres"
	SQLite   Dialect = "sqlite"
)

// TableName is the goose version table.
const TableName = "schema_migrations"

// goose keeps its settings in package globals.
var mu sync.Mutex

// Up applies every pending migration for dialect.
func Up(ctx context.Context, db *sql.DB, dialect Dialect) error {
	mu.Lock()
	defer mu.Unlock()

	gooseDialect, dir, err := resolve(dialect)
	if err != nil {
		return err
	}

	goose.SetBaseFS(files)
	defer goose.SetBaseFS(nil)
	goose.SetLogger(&slogGooseLogger{})
	goose.SetTableName(TableName)
	if err := goose.SetDialect(gooseDialect); err != nil {
		return fmt.Errorf("set goose dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, dir); err != nil {
		return fmt.Errorf("apply %s migrations: %w", dialect, err)
	}
	return nil
}

// Version returns the current schema version.
func Version(ctx context.Context, db *sql.DB, dialect Dialect) (int64, error) {
	mu.Lock()
	defer mu.Unlock()

	gooseDialect, _, err := resolve(dialect)
	if err != nil {
		return 0, err
	}
	goose.SetTableName(TableName)
	if err := goose.SetDialect(gooseDialect); err != nil {
		return 0, fmt.Errorf("set goose dialect: %w", err)
	}
	return goose.GetDBVersionContext(ctx, db)
}

func resolve(d Dialect) (gooseDialect, dir string, err error) {
	switch d {
	case Postgres:
		return "postgres", "postgres", nil
	case SQLite:
		return "sqlite3", "sqlite", nil
	}
	return "", "", fmt.Errorf("unsupported migration dialect %q", d)
}

// slogGooseLogger forwards goose output to slog. Fatalf does not exit;
// the error is returned from Up instead.
type slogGooseLogger struct{}

func (l *slogGooseLogger) Printf(format string, v ...interface{}) {
	slog.Info(fmt.Sprintf(format, v...), "component", "migrations")
}

func (l *slogGooseLogger) Fatalf(format string, v ...interface{}) {
	slog.Error(fmt.Sprintf(format, v...), "component", "migrations")
}

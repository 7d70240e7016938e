// Package backend opens the configured board store and applies its schema.
package backend

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/JonMunkholm/boardimport/internal/board"
	"github.com/JonMunkholm/boardimport/internal/board/postgres"
	"github.com/JonMunkholm/boardimport/internal/board/sqlite"
	"github.com/JonMunkholm/boardimport/internal/config"
	"github.com/JonMunkholm/boardimport/internal/importer"
	"github.com/JonMunkholm/boardimport/internal/migrations"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// Store is a board store the import service and the CLI can use.
type Store interface {
	importer.Backend
	AddTeamMember(ctx context.Context, ideaID string, m board.TeamMember) error
}

// Handle is an open store and the resources behind it.
type Handle struct {
	Store   Store
	Dialect migrations.Dialect
	sqlDB   func() (*sql.DB, func())
	close   func()
}

// SchemaVersion returns the applied migration version.
func (h *Handle) SchemaVersion(ctx context.Context) (int64, error) {
	db, release := h.sqlDB()
	defer release()
	return migrations.Version(ctx, db, h.Dialect)
}

// Close releases the connection pool or database file.
func (h *Handle) Close() {
	if h.close != nil {
		h.close()
	}
}

// Open connects to the database selected by cfg.Driver. When
// cfg.AutoMigrate is set, pending migrations are applied first.
func Open(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Handle, error) {
	if logger == nil {
		logger = slog.Default()
	}

	switch strings.ToLower(cfg.Driver) {
	case config.DriverSQLite:
		return openSQLite(ctx, cfg, logger)
	case config.DriverPostgres, "":
		return openPostgres(ctx, cfg, logger)
	}
	return nil, fmt.Errorf("unsupported database driver %q", cfg.Driver)
}

func openPostgres(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Handle, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxConns)
	}
	if cfg.MinConns > 0 {
		poolConfig.MinConns = int32(cfg.MinConns)
	}
	if cfg.MaxConnLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	}
	if cfg.MaxConnIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		logger.Info("connected to database", "driver", "postgres", "name", strings.TrimPrefix(u.Path, "/"))
	}

	sqlDB := func() (*sql.DB, func()) {
		db := stdlib.OpenDBFromPool(pool)
		return db, func() { _ = db.Close() }
	}

	if cfg.AutoMigrate {
		db, release := sqlDB()
		err := migrations.Up(ctx, db, migrations.Postgres)
		release()
		if err != nil {
			pool.Close()
			return nil, err
		}
	}

	return &Handle{
		Store:   postgres.NewStore(pool, logger),
		Dialect: migrations.Postgres,
		sqlDB:   sqlDB,
		close:   pool.Close,
	}, nil
}

func openSQLite(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*Handle, error) {
	db, err := sqlite.Open(cfg.SQLitePath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	logger.Info("connected to database", "driver", "sqlite", "path", cfg.SQLitePath)

	if cfg.AutoMigrate {
		if err := migrations.Up(ctx, db, migrations.SQLite); err != nil {
			db.Close()
			return nil, err
		}
	}

	return &Handle{
		Store:   sqlite.NewStore(db, logger),
		Dialect: migrations.SQLite,
		sqlDB:   func() (*sql.DB, func()) { return db, func() {} },
		close:   func() { _ = db.Close() },
	}, nil
}

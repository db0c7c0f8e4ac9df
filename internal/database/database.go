package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3" // Required by the library implementation.
)

type Database struct {
	db  *sql.DB
	log *slog.Logger
}

//go:embed migrations/*.sql
var migrationsFS embed.FS

func New(ctx context.Context, dbPath string, log *slog.Logger) (*Database, error) {
	dbFile, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open DB file: %w", err)
	}

	return newWithDB(ctx, dbFile, dbPath, log)
}

// newWithDB migrates dbFile and takes ownership of it: dbFile is closed when
// migration fails.
func newWithDB(ctx context.Context, dbFile *sql.DB, dbPath string, log *slog.Logger) (*Database, error) {
	if err := migrateUp(ctx, dbFile, dbPath, log); err != nil {
		if closeErr := dbFile.Close(); closeErr != nil {
			err = errors.Join(err, fmt.Errorf("close DB file: %w", closeErr))
		}

		return nil, err
	}

	return &Database{db: dbFile, log: log}, nil
}

// migrateUp applies the embedded migrations. It does not close dbFile.
func migrateUp(ctx context.Context, dbFile *sql.DB, dbPath string, log *slog.Logger) error {
	dbInstance, err := sqlite3.WithInstance(dbFile, &sqlite3.Config{})
	if err != nil {
		return fmt.Errorf("create DB instance: %w", err)
	}

	srcInstance, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("create source instance: %w", err)
	}

	m, err := migrate.NewWithInstance("iofs", srcInstance, "sqlite3", dbInstance)
	if err != nil {
		return fmt.Errorf("create migrate instance: %w", err)
	}

	migrateErr := m.Up()

	fields := []any{"dbPath", dbPath}

	version, dirty, versionErr := m.Version()
	switch {
	case versionErr == nil:
		fields = append(fields, "version", version, "dirty", dirty)
	case !errors.Is(versionErr, migrate.ErrNilVersion):
		log.WarnContext(ctx, "Failed to fetch migration version",
			"error", versionErr,
			"dbPath", dbPath)
	}

	switch {
	case migrateErr == nil:
		log.InfoContext(ctx, "DB is migrated", fields...)
	case errors.Is(migrateErr, migrate.ErrNoChange):
		log.InfoContext(ctx, "No migrations to apply", fields...)
	default:
		return fmt.Errorf("apply migrations: %w", migrateErr)
	}

	return nil
}

func (d *Database) Close() error {
	return d.db.Close()
}

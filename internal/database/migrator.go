package database

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"go.uber.org/zap"
)

// MigrationsTable keeps this service's migration state apart from other tenants of the database
const MigrationsTable = "oilcloth_schema_migrations"

//go:embed migrations/*.sql
var migrationFiles embed.FS

// Migrator applies the embedded schema migrations.
// It is safe for concurrent use; calls are serialised.
type Migrator struct {
	mu     sync.Mutex
	db     *sql.DB
	logger *zap.Logger
}

// NewMigrator prepares a migrator on top of an open pool.
// Each EnsureSchema call borrows its own connection from db and returns it when done.
func NewMigrator(db *sql.DB, logger *zap.Logger) (*Migrator, error) {
	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	source.Close()

	return &Migrator{db: db, logger: logger}, nil
}

// EnsureSchema applies all pending migrations. An up to date schema is not an error.
func (mg *Migrator) EnsureSchema(ctx context.Context) error {
	mg.mu.Lock()
	defer mg.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	conn, err := mg.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to get migration connection: %w", err)
	}
	// closing the migrate instance would close this connection too, so only the connection is released
	defer conn.Close()

	driver, err := migratemysql.WithConnection(ctx, conn, &migratemysql.Config{
		MigrationsTable: MigrationsTable,
	})
	if err != nil {
		return fmt.Errorf("failed to create migration driver: %w", err)
	}

	source, err := iofs.New(migrationFiles, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	defer source.Close()

	m, err := migrate.NewWithInstance("iofs", source, "mysql", driver)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	err = m.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		mg.logger.Debug("schema already up to date")
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	version, dirty, verr := m.Version()
	if verr == nil {
		mg.logger.Info("schema migrated", zap.Uint("version", version), zap.Bool("dirty", dirty))
	}
	return nil
}

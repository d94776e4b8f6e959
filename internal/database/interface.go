package database

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/CosmoTheDev/seatwatch/internal/config"
)

// DB is the storage interface behind the SQL dedup backend.
// Implementations exist for SQLite (default) and MySQL.
type DB interface {
	// InTx runs fn inside a transaction that is committed when fn returns
	// nil and rolled back otherwise.
	InTx(ctx context.Context, fn func(tx *sql.Tx) error) error

	// ForUpdate returns the row-locking suffix for SELECTs inside InTx
	// ("" where the engine serialises writers on its own).
	ForUpdate() string

	// Migrate applies pending schema migrations in order.
	Migrate(ctx context.Context) error

	// Ping verifies the database connection is alive.
	Ping(ctx context.Context) error

	// Close releases the database connection.
	Close() error

	// Driver returns the backend name: "sqlite" or "mysql".
	Driver() string
}

// New returns a DB implementation matching cfg.Driver.
// SQLite is the default when driver is empty.
func New(cfg config.DatabaseConfig) (DB, error) {
	switch cfg.Driver {
	case "mysql":
		return NewMySQL(cfg)
	case "sqlite", "sqlite3", "":
		return NewSQLite(cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver %q (supported: sqlite, mysql)", cfg.Driver)
	}
}

// inTx is shared by both backends.
func inTx(ctx context.Context, db *sql.DB, fn func(tx *sql.Tx) error) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

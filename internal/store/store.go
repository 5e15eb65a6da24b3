package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

// Schema version tracking (SQLite user_version):
// 0 - Initial schema (pre-migration)
// 1 - Added index on tickets(queue_id, patient_code, create_date)
const currentSchemaVersion = 1

// DefaultBusyTimeout is how long SQLite waits on a locked database.
const DefaultBusyTimeout = 5 * time.Second

// Options selects the backing database.
type Options struct {
	// Driver is "sqlite3" (default) or "mysql".
	Driver string
	// DSN is a file path for SQLite or a go-sql-driver DSN for MySQL.
	DSN string
	// BusyTimeout applies to SQLite only. Zero means DefaultBusyTimeout.
	BusyTimeout time.Duration
}

// Store provides durable storage for tickets and facility data.
type Store struct {
	queries
	db *sql.DB
}

// Open creates or opens a SQLite database at the given path.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Store, error) {
	return OpenWith(context.Background(), Options{DSN: path})
}

// OpenWith opens the database described by opts, applying the dialect's
// connection settings and schema.
func OpenWith(ctx context.Context, opts Options) (*Store, error) {
	d, err := dialectFor(opts.Driver)
	if err != nil {
		return nil, err
	}
	if opts.DSN == "" {
		return nil, fmt.Errorf("open %s: empty DSN", d.name)
	}

	db, err := sql.Open(d.driver, opts.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, d.classify("connect", err)
	}

	if err := d.configure(ctx, db, opts); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to configure connection: %w", err)
	}

	if err := applySchema(ctx, db, d); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	slog.Debug("store opened", "driver", d.name)
	return &Store{queries: queries{q: db, d: d}, db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using Store methods when available.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Driver returns the dialect name ("sqlite3" or "mysql").
func (s *Store) Driver() string {
	return s.d.name
}

// Tx is a transaction exposing the same named queries as Store.
type Tx struct {
	queries
	tx *sql.Tx
}

// WithTx runs fn inside a transaction. The transaction commits when fn
// returns nil and rolls back otherwise; fn's error is returned unchanged.
func (s *Store) WithTx(ctx context.Context, fn func(tx *Tx) error) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.d.classify("begin tx", err)
	}
	defer sqlTx.Rollback() // No-op if committed

	if err := fn(&Tx{queries: queries{q: sqlTx, d: s.d}, tx: sqlTx}); err != nil {
		return err
	}

	if err := sqlTx.Commit(); err != nil {
		return s.d.classify("commit tx", err)
	}
	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// Statements are executed one at a time so MySQL does not need
// multiStatements in its DSN.
func applySchema(ctx context.Context, db *sql.DB, d *dialect) error {
	for _, stmt := range splitStatements(d.schema) {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to execute schema: %w", err)
		}
	}
	if d.name != sqliteDriver {
		return nil
	}
	if err := runMigrations(ctx, db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

func splitStatements(schema string) []string {
	var out []string
	for _, stmt := range strings.Split(schema, ";") {
		if stmt = strings.TrimSpace(stmt); stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(ctx context.Context, db *sql.DB) error {
	var version int
	if err := db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(ctx, db); err != nil {
			return err
		}
	}

	if _, err := db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

// migrateToV1 adds the patient lookup index used by the idempotent create path.
func migrateToV1(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		CREATE INDEX IF NOT EXISTS idx_tickets_patient
		ON tickets(queue_id, patient_code, create_date)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}

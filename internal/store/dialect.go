package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"

	"github.com/roach88/qms/internal/model"
)

//go:embed schema.sql
var schemaSQL string

//go:embed schema_mysql.sql
var schemaMySQL string

const (
	sqliteDriver = "sqlite3"
	mysqlDriver  = "mysql"
)

// MySQL server error numbers.
const (
	mysqlDuplicateEntry   = 1062
	mysqlLockWaitTimeout  = 1205
	mysqlDeadlock         = 1213
	mysqlTooManyConns     = 1040
	mysqlServerShutdown   = 1053
	mysqlConnectionKilled = 1927
)

// dialect holds everything that differs between SQL backends.
type dialect struct {
	name      string
	driver    string
	schema    string
	configure func(ctx context.Context, db *sql.DB, opts Options) error

	upsertParameter string
	upsertQueue     string
	upsertCounter   string
	upsertScreen    string
	upsertKiosk     string

	isUnique    func(error) bool
	isTransient func(error) bool
}

var sqliteDialect = &dialect{
	name:      sqliteDriver,
	driver:    sqliteDriver,
	schema:    schemaSQL,
	configure: configureSQLite,

	upsertParameter: `INSERT INTO parameters (code, value) VALUES (?, ?)
		ON CONFLICT(code) DO UPDATE SET value = excluded.value`,
	upsertQueue: `INSERT INTO queues (id, name, department_id, active, screen_id, manual, max_displayed, remarks)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, department_id = excluded.department_id,
			active = excluded.active, screen_id = excluded.screen_id, manual = excluded.manual,
			max_displayed = excluded.max_displayed, remarks = excluded.remarks`,
	upsertCounter: `INSERT INTO counters (id, name, queue_id, active, process_minutes, computer_name, ip_address)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET name = excluded.name, queue_id = excluded.queue_id,
			active = excluded.active, process_minutes = excluded.process_minutes,
			computer_name = excluded.computer_name, ip_address = excluded.ip_address`,
	upsertScreen: `INSERT INTO screens (id, code, name, active, display_rows, url)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET code = excluded.code, name = excluded.name,
			active = excluded.active, display_rows = excluded.display_rows, url = excluded.url`,
	upsertKiosk: `INSERT INTO kiosks (id, code, name, active, computer_name, ip_address, remarks)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET code = excluded.code, name = excluded.name,
			active = excluded.active, computer_name = excluded.computer_name,
			ip_address = excluded.ip_address, remarks = excluded.remarks`,

	isUnique: func(err error) bool {
		var se sqlite3.Error
		if !errors.As(err, &se) {
			return false
		}
		return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	},
	isTransient: func(err error) bool {
		var se sqlite3.Error
		if !errors.As(err, &se) {
			return false
		}
		return se.Code == sqlite3.ErrBusy || se.Code == sqlite3.ErrLocked
	},
}

var mysqlDialect = &dialect{
	name:      mysqlDriver,
	driver:    mysqlDriver,
	schema:    schemaMySQL,
	configure: configureMySQL,

	upsertParameter: `INSERT INTO parameters (code, value) VALUES (?, ?)
		ON DUPLICATE KEY UPDATE value = VALUES(value)`,
	upsertQueue: `INSERT INTO queues (id, name, department_id, active, screen_id, manual, max_displayed, remarks)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), department_id = VALUES(department_id),
			active = VALUES(active), screen_id = VALUES(screen_id), manual = VALUES(manual),
			max_displayed = VALUES(max_displayed), remarks = VALUES(remarks)`,
	upsertCounter: `INSERT INTO counters (id, name, queue_id, active, process_minutes, computer_name, ip_address)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE name = VALUES(name), queue_id = VALUES(queue_id),
			active = VALUES(active), process_minutes = VALUES(process_minutes),
			computer_name = VALUES(computer_name), ip_address = VALUES(ip_address)`,
	upsertScreen: `INSERT INTO screens (id, code, name, active, display_rows, url)
		VALUES (?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE code = VALUES(code), name = VALUES(name),
			active = VALUES(active), display_rows = VALUES(display_rows), url = VALUES(url)`,
	upsertKiosk: `INSERT INTO kiosks (id, code, name, active, computer_name, ip_address, remarks)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON DUPLICATE KEY UPDATE code = VALUES(code), name = VALUES(name),
			active = VALUES(active), computer_name = VALUES(computer_name),
			ip_address = VALUES(ip_address), remarks = VALUES(remarks)`,

	isUnique: func(err error) bool {
		var me *mysql.MySQLError
		return errors.As(err, &me) && me.Number == mysqlDuplicateEntry
	},
	isTransient: func(err error) bool {
		if errors.Is(err, mysql.ErrInvalidConn) || errors.Is(err, driver.ErrBadConn) {
			return true
		}
		var me *mysql.MySQLError
		if !errors.As(err, &me) {
			return false
		}
		switch me.Number {
		case mysqlLockWaitTimeout, mysqlDeadlock, mysqlTooManyConns, mysqlServerShutdown, mysqlConnectionKilled:
			return true
		}
		return false
	},
}

func dialectFor(name string) (*dialect, error) {
	switch name {
	case "", sqliteDriver, "sqlite":
		return sqliteDialect, nil
	case mysqlDriver:
		return mysqlDialect, nil
	default:
		return nil, model.InvalidArgument("open store", fmt.Sprintf("unsupported driver %q", name))
	}
}

// configureSQLite limits the pool to one connection and applies pragmas.
func configureSQLite(ctx context.Context, db *sql.DB, opts Options) error {
	// SQLite only supports one writer at a time, so limit connections
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	busy := opts.BusyTimeout
	if busy <= 0 {
		busy = DefaultBusyTimeout
	}
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		fmt.Sprintf("PRAGMA busy_timeout = %d", busy.Milliseconds()),
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}
	return nil
}

func configureMySQL(_ context.Context, db *sql.DB, _ Options) error {
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	return nil
}

// classify maps a driver error onto a model error kind. sql.ErrNoRows is
// returned unchanged so callers can decide what "absent" means.
func (d *dialect) classify(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, sql.ErrNoRows):
		return err
	case model.KindOf(err) != "":
		return err
	case d.isUnique(err):
		return model.Conflict(op, "unique constraint violated", err)
	case d.isTransient(err):
		return model.Transient(op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

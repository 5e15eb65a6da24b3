package store

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"

	"github.com/roach88/qms/internal/model"
)

func TestClassify(t *testing.T) {
	plain := errors.New("syntax error")

	tests := []struct {
		name    string
		dialect *dialect
		err     error
		want    model.ErrorKind
	}{
		{"sqlite unique", sqliteDialect, sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintUnique}, model.KindConflict},
		{"sqlite primary key", sqliteDialect, sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintPrimaryKey}, model.KindConflict},
		{"sqlite foreign key", sqliteDialect, sqlite3.Error{Code: sqlite3.ErrConstraint, ExtendedCode: sqlite3.ErrConstraintForeignKey}, ""},
		{"sqlite busy", sqliteDialect, sqlite3.Error{Code: sqlite3.ErrBusy}, model.KindTransient},
		{"sqlite locked wrapped", sqliteDialect, fmt.Errorf("exec: %w", sqlite3.Error{Code: sqlite3.ErrLocked}), model.KindTransient},
		{"mysql duplicate", mysqlDialect, &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, model.KindConflict},
		{"mysql deadlock", mysqlDialect, &mysql.MySQLError{Number: 1213}, model.KindTransient},
		{"mysql bad conn", mysqlDialect, driver.ErrBadConn, model.KindTransient},
		{"mysql invalid conn", mysqlDialect, mysql.ErrInvalidConn, model.KindTransient},
		{"mysql syntax", mysqlDialect, &mysql.MySQLError{Number: 1064}, ""},
		{"already typed", sqliteDialect, model.NotFound("x", "y"), model.KindNotFound},
		{"plain", sqliteDialect, plain, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.dialect.classify("op", tt.err)
			assert.Equal(t, tt.want, model.KindOf(got))
			assert.ErrorIs(t, got, tt.err)
		})
	}

	assert.NoError(t, sqliteDialect.classify("op", nil))
	assert.Equal(t, sql.ErrNoRows, sqliteDialect.classify("op", sql.ErrNoRows))
}

func TestDialectFor(t *testing.T) {
	for _, name := range []string{"", "sqlite", "sqlite3"} {
		d, err := dialectFor(name)
		assert.NoError(t, err)
		assert.Same(t, sqliteDialect, d)
	}
	d, err := dialectFor("mysql")
	assert.NoError(t, err)
	assert.Same(t, mysqlDialect, d)
}

func TestOpen_MySQLUnreachableIsTransient(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := OpenWith(ctx, Options{Driver: "mysql", DSN: "qms:secret@tcp(127.0.0.1:1)/qms"})
	assert.Error(t, err)
}

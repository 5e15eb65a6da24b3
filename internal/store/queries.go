package store

import (
	"context"
	"database/sql"
	"time"
)

// querier is satisfied by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// queries implements the named queries over either a database or a
// transaction.
type queries struct {
	q querier
	d *dialect
}

// Timestamps are stored as RFC 3339 text with nanoseconds; zero is NULL.
const timeLayout = time.RFC3339Nano

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.Format(timeLayout)
}

func parseTime(ns sql.NullString) (time.Time, error) {
	if !ns.Valid || ns.String == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, ns.String)
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/qms/internal/model"
)

// ParameterValue returns the value stored for code. found is false when the
// code is not defined.
func (q queries) ParameterValue(ctx context.Context, code string) (value string, found bool, err error) {
	err = q.q.QueryRowContext(ctx, `SELECT value FROM parameters WHERE code = ?`, code).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, q.d.classify("get parameter", err)
	}
	return value, true, nil
}

// Parameters returns every parameter keyed by code.
func (q queries) Parameters(ctx context.Context) (map[string]string, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT code, value FROM parameters ORDER BY code ASC`)
	if err != nil {
		return nil, q.d.classify("list parameters", err)
	}
	defer rows.Close()

	out := map[string]string{}
	for rows.Next() {
		var code, value string
		if err := rows.Scan(&code, &value); err != nil {
			return nil, fmt.Errorf("list parameters: %w", err)
		}
		out[code] = value
	}
	if err := rows.Err(); err != nil {
		return nil, q.d.classify("list parameters", err)
	}
	return out, nil
}

// SetParameter creates or replaces a parameter.
func (q queries) SetParameter(ctx context.Context, code, value string) error {
	if strings.TrimSpace(code) == "" {
		return model.InvalidArgument("set parameter", "empty parameter code")
	}
	_, err := q.q.ExecContext(ctx, q.d.upsertParameter, code, value)
	return q.d.classify("set parameter", err)
}

// ParameterLookup adapts ParameterValue to a context-bound lookup function.
func (q queries) ParameterLookup(ctx context.Context) func(code string) (string, bool, error) {
	return func(code string) (string, bool, error) {
		return q.ParameterValue(ctx, code)
	}
}

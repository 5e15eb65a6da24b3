package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/qms/internal/model"
)

const (
	queueColumns   = `id, name, department_id, active, screen_id, manual, max_displayed, remarks`
	counterColumns = `id, name, queue_id, active, process_minutes, computer_name, ip_address`
	screenColumns  = `id, code, name, active, display_rows, url`
)

// Queue returns the queue with the given id.
func (q queries) Queue(ctx context.Context, id int64) (model.Queue, error) {
	qu, err := scanQueue(q.q.QueryRowContext(ctx, `SELECT `+queueColumns+` FROM queues WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Queue{}, model.NotFound("get queue", fmt.Sprintf("queue %d not found", id))
	}
	if err != nil {
		return model.Queue{}, q.d.classify("get queue", err)
	}
	return qu, nil
}

// QueueByDepartment returns the queue bound to a department, preferring an
// active one.
func (q queries) QueueByDepartment(ctx context.Context, departmentID int64) (model.Queue, error) {
	qu, err := scanQueue(q.q.QueryRowContext(ctx, `
		SELECT `+queueColumns+` FROM queues
		WHERE department_id = ?
		ORDER BY active DESC, id ASC
		LIMIT 1
	`, departmentID))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Queue{}, model.NotFound("queue by department", fmt.Sprintf("no queue for department %d", departmentID))
	}
	if err != nil {
		return model.Queue{}, q.d.classify("queue by department", err)
	}
	return qu, nil
}

// Queues returns every queue ordered by id.
func (q queries) Queues(ctx context.Context) ([]model.Queue, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+queueColumns+` FROM queues ORDER BY id ASC`)
	if err != nil {
		return nil, q.d.classify("list queues", err)
	}
	defer rows.Close()

	out := []model.Queue{}
	for rows.Next() {
		qu, err := scanQueue(rows)
		if err != nil {
			return nil, fmt.Errorf("list queues: %w", err)
		}
		out = append(out, qu)
	}
	if err := rows.Err(); err != nil {
		return nil, q.d.classify("list queues", err)
	}
	return out, nil
}

// UpsertQueue inserts or replaces a queue by id.
func (q queries) UpsertQueue(ctx context.Context, qu model.Queue) error {
	_, err := q.q.ExecContext(ctx, q.d.upsertQueue,
		qu.ID, qu.Name, qu.DepartmentID, boolInt(qu.Active), qu.ScreenID,
		boolInt(qu.Manual), qu.MaxDisplayed, qu.Remarks)
	return q.d.classify("upsert queue", err)
}

// Counters returns every counter ordered by id.
func (q queries) Counters(ctx context.Context) ([]model.Counter, error) {
	return q.counters(ctx, `SELECT `+counterColumns+` FROM counters ORDER BY id ASC`)
}

// CountersByQueue returns the counters bound to a queue ordered by id.
func (q queries) CountersByQueue(ctx context.Context, queueID int64) ([]model.Counter, error) {
	return q.counters(ctx, `SELECT `+counterColumns+` FROM counters WHERE queue_id = ? ORDER BY id ASC`, queueID)
}

func (q queries) counters(ctx context.Context, query string, args ...any) ([]model.Counter, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, q.d.classify("list counters", err)
	}
	defer rows.Close()

	out := []model.Counter{}
	for rows.Next() {
		var (
			c      model.Counter
			active int
		)
		if err := rows.Scan(&c.ID, &c.Name, &c.QueueID, &active, &c.ProcessMinutes, &c.ComputerName, &c.IPAddress); err != nil {
			return nil, fmt.Errorf("list counters: %w", err)
		}
		c.Active = active != 0
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, q.d.classify("list counters", err)
	}
	return out, nil
}

// UpsertCounter inserts or replaces a counter by id.
func (q queries) UpsertCounter(ctx context.Context, c model.Counter) error {
	_, err := q.q.ExecContext(ctx, q.d.upsertCounter,
		c.ID, c.Name, c.QueueID, boolInt(c.Active), c.ProcessMinutes, c.ComputerName, c.IPAddress)
	return q.d.classify("upsert counter", err)
}

// Screens returns every screen ordered by id.
func (q queries) Screens(ctx context.Context) ([]model.Screen, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+screenColumns+` FROM screens ORDER BY id ASC`)
	if err != nil {
		return nil, q.d.classify("list screens", err)
	}
	defer rows.Close()

	out := []model.Screen{}
	for rows.Next() {
		var (
			s      model.Screen
			active int
		)
		if err := rows.Scan(&s.ID, &s.Code, &s.Name, &active, &s.DisplayRows, &s.URL); err != nil {
			return nil, fmt.Errorf("list screens: %w", err)
		}
		s.Active = active != 0
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, q.d.classify("list screens", err)
	}
	return out, nil
}

// UpsertScreen inserts or replaces a screen by id.
func (q queries) UpsertScreen(ctx context.Context, s model.Screen) error {
	_, err := q.q.ExecContext(ctx, q.d.upsertScreen,
		s.ID, s.Code, s.Name, boolInt(s.Active), s.DisplayRows, s.URL)
	return q.d.classify("upsert screen", err)
}

func scanQueue(row scanner) (model.Queue, error) {
	var (
		qu             model.Queue
		active, manual int
	)
	if err := row.Scan(&qu.ID, &qu.Name, &qu.DepartmentID, &active, &qu.ScreenID, &manual, &qu.MaxDisplayed, &qu.Remarks); err != nil {
		return model.Queue{}, err
	}
	qu.Active = active != 0
	qu.Manual = manual != 0
	return qu, nil
}

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/qms/internal/model"
)

const (
	kioskColumns      = `id, code, name, active, computer_name, ip_address, remarks`
	kioskQueueColumns = `kiosk_id, queue_id, display_text, priority, display_order, active`
)

// Kiosks returns every kiosk ordered by id, each with its queue bindings in
// display order.
func (q queries) Kiosks(ctx context.Context) ([]model.Kiosk, error) {
	rows, err := q.q.QueryContext(ctx, `SELECT `+kioskColumns+` FROM kiosks ORDER BY id ASC`)
	if err != nil {
		return nil, q.d.classify("list kiosks", err)
	}
	defer rows.Close()

	out := []model.Kiosk{}
	for rows.Next() {
		k, err := scanKiosk(rows)
		if err != nil {
			return nil, fmt.Errorf("list kiosks: %w", err)
		}
		out = append(out, k)
	}
	if err := rows.Err(); err != nil {
		return nil, q.d.classify("list kiosks", err)
	}
	rows.Close()

	bindings, err := q.kioskQueues(ctx, `SELECT `+kioskQueueColumns+` FROM kiosk_queues
		ORDER BY kiosk_id ASC, display_order ASC, queue_id ASC`)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Queues = bindings[out[i].ID]
		if out[i].Queues == nil {
			out[i].Queues = []model.KioskQueue{}
		}
	}
	return out, nil
}

// KioskByNameOrIP returns the kiosk whose name or IP address equals s,
// preferring an active one with the lowest id.
func (q queries) KioskByNameOrIP(ctx context.Context, s string) (model.Kiosk, error) {
	const op = "kiosk by name or ip"
	k, err := scanKiosk(q.q.QueryRowContext(ctx, `
		SELECT `+kioskColumns+` FROM kiosks
		WHERE name = ? OR ip_address = ?
		ORDER BY active DESC, id ASC
		LIMIT 1
	`, s, s))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Kiosk{}, model.NotFound(op, fmt.Sprintf("no kiosk named %q", s))
	}
	if err != nil {
		return model.Kiosk{}, q.d.classify(op, err)
	}

	bindings, err := q.kioskQueues(ctx, `SELECT `+kioskQueueColumns+` FROM kiosk_queues
		WHERE kiosk_id = ?
		ORDER BY display_order ASC, queue_id ASC`, k.ID)
	if err != nil {
		return model.Kiosk{}, err
	}
	k.Queues = bindings[k.ID]
	if k.Queues == nil {
		k.Queues = []model.KioskQueue{}
	}
	return k, nil
}

func (q queries) kioskQueues(ctx context.Context, query string, args ...any) (map[int64][]model.KioskQueue, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, q.d.classify("list kiosk queues", err)
	}
	defer rows.Close()

	out := map[int64][]model.KioskQueue{}
	for rows.Next() {
		var (
			kioskID int64
			kq      model.KioskQueue
			active  int
		)
		if err := rows.Scan(&kioskID, &kq.QueueID, &kq.DisplayText, &kq.Priority, &kq.DisplayOrder, &active); err != nil {
			return nil, fmt.Errorf("list kiosk queues: %w", err)
		}
		kq.Active = active != 0
		out[kioskID] = append(out[kioskID], kq)
	}
	if err := rows.Err(); err != nil {
		return nil, q.d.classify("list kiosk queues", err)
	}
	return out, nil
}

// upsertKiosk writes the kiosk row and replaces its queue bindings. Callers
// run it inside a transaction.
func (q queries) upsertKiosk(ctx context.Context, k model.Kiosk) error {
	const op = "upsert kiosk"
	if _, err := q.q.ExecContext(ctx, q.d.upsertKiosk,
		k.ID, k.Code, k.Name, boolInt(k.Active), k.ComputerName, k.IPAddress, k.Remarks); err != nil {
		return q.d.classify(op, err)
	}
	if _, err := q.q.ExecContext(ctx, `DELETE FROM kiosk_queues WHERE kiosk_id = ?`, k.ID); err != nil {
		return q.d.classify(op, err)
	}
	for _, kq := range k.Queues {
		_, err := q.q.ExecContext(ctx, `INSERT INTO kiosk_queues (`+kioskQueueColumns+`)
			VALUES (?, ?, ?, ?, ?, ?)`,
			k.ID, kq.QueueID, kq.DisplayText, kq.Priority, kq.DisplayOrder, boolInt(kq.Active))
		if err != nil {
			return q.d.classify(op, err)
		}
	}
	return nil
}

// UpsertKiosk inserts or replaces a kiosk and its queue bindings.
func (t *Tx) UpsertKiosk(ctx context.Context, k model.Kiosk) error {
	return t.upsertKiosk(ctx, k)
}

// UpsertKiosk inserts or replaces a kiosk and its queue bindings in one
// transaction.
func (s *Store) UpsertKiosk(ctx context.Context, k model.Kiosk) error {
	return s.WithTx(ctx, func(tx *Tx) error {
		return tx.UpsertKiosk(ctx, k)
	})
}

// CounterByComputerName returns the counter bound to a workstation. Names
// compare case-insensitively; an active counter with the lowest id wins.
func (q queries) CounterByComputerName(ctx context.Context, name string) (model.Counter, error) {
	return q.counterBy(ctx, "counter by computer name", "computer_name", name)
}

// CounterByName returns a counter by its display name, case-insensitively.
func (q queries) CounterByName(ctx context.Context, name string) (model.Counter, error) {
	return q.counterBy(ctx, "counter by name", "name", name)
}

func (q queries) counterBy(ctx context.Context, op, column, value string) (model.Counter, error) {
	if value == "" {
		return model.Counter{}, model.InvalidArgument(op, "name is required")
	}
	found, err := q.counters(ctx, `SELECT `+counterColumns+` FROM counters
		WHERE UPPER(`+column+`) = UPPER(?)
		ORDER BY active DESC, id ASC
		LIMIT 1`, value)
	if err != nil {
		return model.Counter{}, err
	}
	if len(found) == 0 {
		return model.Counter{}, model.NotFound(op, fmt.Sprintf("no counter for %q", value))
	}
	return found[0], nil
}

func scanKiosk(row scanner) (model.Kiosk, error) {
	var (
		k      model.Kiosk
		active int
	)
	if err := row.Scan(&k.ID, &k.Code, &k.Name, &active, &k.ComputerName, &k.IPAddress, &k.Remarks); err != nil {
		return model.Kiosk{}, err
	}
	k.Active = active != 0
	return k, nil
}

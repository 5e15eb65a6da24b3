package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/qms/internal/model"
)

const ticketColumns = `id, queue_id, sequence, priority, state, display_text, sort_order,
	previous, previous_queue_id, patient_code, patient_name, patient_yob, med_order,
	create_date, create_time, estimate_time, process_time, finish_time,
	counter_id, counter_name, remarks`

// AddTicket inserts a new ticket. A duplicate (queue, display text, patient
// code, day) surfaces as a Conflict error.
func (q queries) AddTicket(ctx context.Context, t model.Ticket) error {
	_, err := q.q.ExecContext(ctx, `
		INSERT INTO tickets (`+ticketColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		t.ID,
		t.QueueID,
		t.Sequence,
		t.Priority,
		int(t.State),
		t.DisplayText,
		t.Order,
		t.Previous,
		t.PreviousQueueID,
		t.PatientCode,
		t.PatientName,
		t.PatientYOB,
		t.MedOrder,
		string(t.CreateDate),
		formatTime(t.CreateTime),
		formatTime(t.EstimateTime),
		formatTime(t.ProcessTime),
		formatTime(t.FinishTime),
		t.CounterID,
		t.CounterName,
		t.Remarks,
	)
	return q.d.classify("add ticket", err)
}

// UpdateTicket writes the mutable fields of t: state, counter and the
// process/finish timestamps. Returns NotFound if no ticket has t.ID.
func (q queries) UpdateTicket(ctx context.Context, t model.Ticket) error {
	res, err := q.q.ExecContext(ctx, `
		UPDATE tickets
		SET state = ?, counter_id = ?, counter_name = ?, process_time = ?, finish_time = ?
		WHERE id = ?
	`,
		int(t.State),
		t.CounterID,
		t.CounterName,
		formatTime(t.ProcessTime),
		formatTime(t.FinishTime),
		t.ID,
	)
	if err != nil {
		return q.d.classify("update ticket", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return q.d.classify("update ticket", err)
	}
	if n == 0 {
		return model.NotFound("update ticket", fmt.Sprintf("ticket %s not found", t.ID))
	}
	return nil
}

// ClaimTicket moves a Wait ticket to Serving for a counter. It reports false
// when the ticket is no longer waiting, i.e. another counter won the race.
func (q queries) ClaimTicket(ctx context.Context, id string, counterID int64, counterName string, at time.Time) (bool, error) {
	res, err := q.q.ExecContext(ctx, `
		UPDATE tickets
		SET state = ?, counter_id = ?, counter_name = ?, process_time = ?
		WHERE id = ? AND state = ?
	`,
		int(model.StateServing),
		counterID,
		counterName,
		formatTime(at),
		id,
		int(model.StateWait),
	)
	if err != nil {
		return false, q.d.classify("claim ticket", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, q.d.classify("claim ticket", err)
	}
	return n == 1, nil
}

// Ticket returns the ticket with the given id.
func (q queries) Ticket(ctx context.Context, id string) (model.Ticket, error) {
	return q.oneTicket(ctx, "get ticket", fmt.Sprintf("ticket %s not found", id), `
		SELECT `+ticketColumns+` FROM tickets WHERE id = ?
	`, id)
}

// MaxSequence returns the highest sequence issued for a queue on day, or 0.
// Cancelled tickets count: sequences are never reused.
func (q queries) MaxSequence(ctx context.Context, queueID int64, day model.Day) (int, error) {
	var n int
	err := q.q.QueryRowContext(ctx, `
		SELECT COALESCE(MAX(sequence), 0) FROM tickets WHERE queue_id = ? AND create_date = ?
	`, queueID, string(day)).Scan(&n)
	if err != nil {
		return 0, q.d.classify("max sequence", err)
	}
	return n, nil
}

// TicketsForQueueDay returns every ticket of a queue on day, cancelled
// included, ordered by sequence.
func (q queries) TicketsForQueueDay(ctx context.Context, queueID int64, day model.Day) ([]model.Ticket, error) {
	return q.tickets(ctx, "tickets for queue", `
		SELECT `+ticketColumns+` FROM tickets
		WHERE queue_id = ? AND create_date = ?
		ORDER BY sequence ASC, id ASC
	`, queueID, string(day))
}

// TicketsByState returns a queue's tickets on day in any of states, in
// service order (sort_order, then sequence).
func (q queries) TicketsByState(ctx context.Context, queueID int64, day model.Day, states ...model.State) ([]model.Ticket, error) {
	if len(states) == 0 {
		return []model.Ticket{}, nil
	}
	args := []any{queueID, string(day)}
	marks := make([]string, len(states))
	for i, st := range states {
		marks[i] = "?"
		args = append(args, int(st))
	}
	return q.tickets(ctx, "tickets by state", `
		SELECT `+ticketColumns+` FROM tickets
		WHERE queue_id = ? AND create_date = ? AND state IN (`+strings.Join(marks, ", ")+`)
		ORDER BY sort_order ASC, sequence ASC, id ASC
	`, args...)
}

// CountByState counts a queue's tickets in state on day.
func (q queries) CountByState(ctx context.Context, queueID int64, state model.State, day model.Day) (int, error) {
	var n int
	err := q.q.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM tickets WHERE queue_id = ? AND state = ? AND create_date = ?
	`, queueID, int(state), string(day)).Scan(&n)
	if err != nil {
		return 0, q.d.classify("count by state", err)
	}
	return n, nil
}

// OpenTicketForPatient returns the patient's open ticket (Wait, Serving,
// Missed or Unset) in a queue on day.
func (q queries) OpenTicketForPatient(ctx context.Context, queueID int64, patientCode string, day model.Day) (model.Ticket, error) {
	return q.oneTicket(ctx, "open ticket for patient",
		fmt.Sprintf("no open ticket for patient %q in queue %d", patientCode, queueID), `
		SELECT `+ticketColumns+` FROM tickets
		WHERE queue_id = ? AND patient_code = ? AND create_date = ? AND state IN (?, ?, ?, ?)
		ORDER BY sequence ASC, id ASC
		LIMIT 1
	`, queueID, patientCode, string(day),
		int(model.StateWait), int(model.StateServing), int(model.StateMissed), int(model.StateUnset))
}

// TicketsForPatient returns the patient's tickets in a queue on day,
// excluding Done tickets unless includeDone is set.
func (q queries) TicketsForPatient(ctx context.Context, queueID int64, patientCode string, day model.Day, includeDone bool) ([]model.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
		WHERE queue_id = ? AND patient_code = ? AND create_date = ?`
	args := []any{queueID, patientCode, string(day)}
	if !includeDone {
		query += ` AND state <> ?`
		args = append(args, int(model.StateDone))
	}
	query += ` ORDER BY sequence ASC, id ASC`
	return q.tickets(ctx, "tickets for patient", query, args...)
}

// TicketByDisplayText finds a ticket by its display text in a queue on day.
// A non-nil medOrder narrows the match to that med-order flag. When several
// tickets share the text, an unfinished one is preferred.
func (q queries) TicketByDisplayText(ctx context.Context, queueID int64, displayText string, day model.Day, medOrder *int) (model.Ticket, error) {
	query := `SELECT ` + ticketColumns + ` FROM tickets
		WHERE queue_id = ? AND display_text = ? AND create_date = ?`
	args := []any{queueID, displayText, string(day)}
	if medOrder != nil {
		query += ` AND med_order = ?`
		args = append(args, *medOrder)
	}
	query += `
		ORDER BY CASE WHEN state = ? THEN 1 ELSE 0 END ASC, create_time DESC, id ASC
		LIMIT 1`
	args = append(args, int(model.StateDone))
	return q.oneTicket(ctx, "ticket by display text",
		fmt.Sprintf("ticket %q not found in queue %d", displayText, queueID), query, args...)
}

// TicketByOrder finds a patient's ticket by order key in a queue on day.
func (q queries) TicketByOrder(ctx context.Context, queueID int64, order, patientCode string, day model.Day) (model.Ticket, error) {
	return q.oneTicket(ctx, "ticket by order",
		fmt.Sprintf("ticket with order %q for patient %q not found in queue %d", order, patientCode, queueID), `
		SELECT `+ticketColumns+` FROM tickets
		WHERE queue_id = ? AND sort_order = ? AND patient_code = ? AND create_date = ?
		ORDER BY sequence ASC, id ASC
		LIMIT 1
	`, queueID, order, patientCode, string(day))
}

// ServingTicket returns the ticket a counter is serving in a queue on day.
func (q queries) ServingTicket(ctx context.Context, queueID, counterID int64, day model.Day) (model.Ticket, error) {
	return q.oneTicket(ctx, "serving ticket",
		fmt.Sprintf("counter %d is not serving in queue %d", counterID, queueID), `
		SELECT `+ticketColumns+` FROM tickets
		WHERE queue_id = ? AND counter_id = ? AND create_date = ? AND state = ?
		ORDER BY process_time DESC, id ASC
		LIMIT 1
	`, queueID, counterID, string(day), int(model.StateServing))
}

// NextWaiting returns the first Wait ticket of a queue on day in service
// order.
func (q queries) NextWaiting(ctx context.Context, queueID int64, day model.Day) (model.Ticket, error) {
	return q.oneTicket(ctx, "next waiting",
		fmt.Sprintf("no waiting ticket in queue %d", queueID), `
		SELECT `+ticketColumns+` FROM tickets
		WHERE queue_id = ? AND create_date = ? AND state = ?
		ORDER BY sort_order ASC, sequence ASC, id ASC
		LIMIT 1
	`, queueID, string(day), int(model.StateWait))
}

// TicketsForDay returns every non-cancelled ticket of day, grouped by queue
// in creation order.
func (q queries) TicketsForDay(ctx context.Context, day model.Day) ([]model.Ticket, error) {
	return q.tickets(ctx, "tickets for day", `
		SELECT `+ticketColumns+` FROM tickets
		WHERE create_date = ? AND state <> ?
		ORDER BY queue_id ASC, create_time ASC, sequence ASC, id ASC
	`, string(day), int(model.StateCancelled))
}

// oneTicket runs a single-row ticket query, mapping no rows to NotFound.
func (q queries) oneTicket(ctx context.Context, op, missing, query string, args ...any) (model.Ticket, error) {
	t, err := scanTicket(q.q.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return model.Ticket{}, model.NotFound(op, missing)
	}
	if err != nil {
		return model.Ticket{}, q.d.classify(op, err)
	}
	return t, nil
}

// tickets runs a multi-row ticket query. Returns an empty slice (not nil)
// when nothing matches.
func (q queries) tickets(ctx context.Context, op, query string, args ...any) ([]model.Ticket, error) {
	rows, err := q.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, q.d.classify(op, err)
	}
	defer rows.Close()

	out := []model.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, q.d.classify(op, err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanTicket(row scanner) (model.Ticket, error) {
	var (
		t                                 model.Ticket
		state                             int
		day                               string
		createTime                        string
		estimate, processTime, finishTime sql.NullString
	)
	err := row.Scan(
		&t.ID,
		&t.QueueID,
		&t.Sequence,
		&t.Priority,
		&state,
		&t.DisplayText,
		&t.Order,
		&t.Previous,
		&t.PreviousQueueID,
		&t.PatientCode,
		&t.PatientName,
		&t.PatientYOB,
		&t.MedOrder,
		&day,
		&createTime,
		&estimate,
		&processTime,
		&finishTime,
		&t.CounterID,
		&t.CounterName,
		&t.Remarks,
	)
	if err != nil {
		return model.Ticket{}, err
	}
	t.State = model.State(state)
	t.CreateDate = model.Day(day)

	if t.CreateTime, err = time.Parse(timeLayout, createTime); err != nil {
		return model.Ticket{}, fmt.Errorf("ticket %s: create_time: %w", t.ID, err)
	}
	if t.EstimateTime, err = parseTime(estimate); err != nil {
		return model.Ticket{}, fmt.Errorf("ticket %s: estimate_time: %w", t.ID, err)
	}
	if t.ProcessTime, err = parseTime(processTime); err != nil {
		return model.Ticket{}, fmt.Errorf("ticket %s: process_time: %w", t.ID, err)
	}
	if t.FinishTime, err = parseTime(finishTime); err != nil {
		return model.Ticket{}, fmt.Errorf("ticket %s: finish_time: %w", t.ID, err)
	}
	return t, nil
}

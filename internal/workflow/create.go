package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/roach88/qms/internal/model"
	"github.com/roach88/qms/internal/params"
	"github.com/roach88/qms/internal/sequence"
	"github.com/roach88/qms/internal/store"
)

// Outcome tells whether CreateTicket issued a new ticket.
type Outcome int

const (
	// Created: a new ticket was persisted.
	Created Outcome = iota
	// AlreadyExists: the patient already holds an open ticket in the queue,
	// which is returned unchanged.
	AlreadyExists
)

func (o Outcome) String() string {
	if o == AlreadyExists {
		return "already_exists"
	}
	return "created"
}

// CreateRequest describes a ticket to issue. Either DepartmentID or QueueID
// must be set; the department wins when both are.
type CreateRequest struct {
	DepartmentID int64
	QueueID      int64
	Priority     int

	PatientCode string
	PatientName string
	PatientYOB  int
	MedOrder    int

	// InitialState defaults to Wait.
	InitialState *model.State
	// Day is the day the ticket is issued for; empty means today.
	Day     model.Day
	Counter *CounterRef
	Remarks string

	variant sequence.Variant
}

// CreateResult is the tagged result of CreateTicket.
type CreateResult struct {
	Ticket  model.Ticket
	Outcome Outcome
	Queue   model.Queue
}

// CreateTicket issues a ticket, or returns the patient's open ticket in the
// queue when one exists.
func (s *Service) CreateTicket(ctx context.Context, req CreateRequest) (CreateResult, error) {
	const op = "create ticket"

	if req.Priority < 0 {
		return CreateResult{}, model.InvalidArgument(op, fmt.Sprintf("priority %d is negative", req.Priority))
	}
	state := model.StateWait
	if req.InitialState != nil {
		state = *req.InitialState
		if !state.Valid() || state == model.StateCancelled {
			return CreateResult{}, model.InvalidArgument(op, fmt.Sprintf("invalid initial state %d", int(state)))
		}
	}
	now := s.clock.Now()
	day := req.Day
	if day == "" {
		day = model.DayOf(now)
	} else if _, err := model.ParseDay(string(day)); err != nil {
		return CreateResult{}, err
	}

	q, err := s.resolveQueue(ctx, op, req.DepartmentID, req.QueueID)
	if err != nil {
		return CreateResult{}, err
	}

	draft := model.Ticket{
		QueueID:     q.ID,
		Priority:    req.Priority,
		State:       state,
		PatientCode: normalize(req.PatientCode),
		PatientName: normalize(req.PatientName),
		PatientYOB:  req.PatientYOB,
		MedOrder:    req.MedOrder,
		CreateDate:  day,
		CreateTime:  creationTime(now, day),
		Remarks:     req.Remarks,
	}
	if req.Counter != nil {
		c := s.counterRef(*req.Counter)
		draft.CounterID, draft.CounterName = c.ID, c.Name
	}

	unlock := s.locks.Lock(q.ID)
	defer unlock()

	var res CreateResult
	err = s.retryConflicts(ctx, op, q.ID, func() error {
		return s.store.WithTx(ctx, func(tx *store.Tx) error {
			var err error
			res, err = s.createInTx(ctx, tx, draft, req.variant)
			return err
		})
	})
	if err != nil {
		return CreateResult{}, err
	}
	res.Queue = q

	switch res.Outcome {
	case AlreadyExists:
		slog.Warn("patient already has an open ticket",
			"queue_id", q.ID, "patient_code", draft.PatientCode, "ticket_id", res.Ticket.ID)
	default:
		s.publish(res.Ticket)
		logTicket("ticket created", res.Ticket,
			"sequence", res.Ticket.Sequence,
			"priority", res.Ticket.Priority,
			"order", res.Ticket.Order)
	}
	return res, nil
}

// CreateReceptionTicket issues a reception ticket, placing priority tickets
// with the exam-visit rule.
func (s *Service) CreateReceptionTicket(ctx context.Context, queueID int64, priority int, patientCode string) (CreateResult, error) {
	return s.CreateTicket(ctx, CreateRequest{
		QueueID:     queueID,
		Priority:    priority,
		PatientCode: patientCode,
		variant:     sequence.ExamVisit,
	})
}

func (s *Service) createInTx(ctx context.Context, tx *store.Tx, draft model.Ticket, variant sequence.Variant) (CreateResult, error) {
	if draft.PatientCode != "" {
		existing, err := tx.OpenTicketForPatient(ctx, draft.QueueID, draft.PatientCode, draft.CreateDate)
		if err == nil {
			return CreateResult{Ticket: existing, Outcome: AlreadyExists}, nil
		}
		if !model.IsNotFound(err) {
			return CreateResult{}, err
		}
	}

	r := s.reader(ctx, tx)
	if r.Bool(params.PreviousLinkFlag, false) {
		variant = sequence.ExamVisit
	}
	issued, err := tx.TicketsForQueueDay(ctx, draft.QueueID, draft.CreateDate)
	if err != nil {
		return CreateResult{}, err
	}
	alloc, err := sequence.New(sequence.SettingsFrom(r)).Allocate(issued, draft.Priority, variant)
	if err != nil {
		return CreateResult{}, err
	}
	estimate, err := s.estimate(ctx, tx, r, draft.QueueID, draft.CreateDate, draft.CreateTime)
	if err != nil {
		return CreateResult{}, err
	}

	t := draft
	t.ID = s.ids.Generate()
	t.Sequence = alloc.Sequence
	t.DisplayText = alloc.DisplayText
	t.Order = alloc.Order
	t.Previous = alloc.Previous
	t.EstimateTime = estimate
	if t.State == model.StateServing {
		t.ProcessTime = t.CreateTime
	}
	if err := tx.AddTicket(ctx, t); err != nil {
		return CreateResult{}, err
	}
	return CreateResult{Ticket: t, Outcome: Created}, nil
}

// retryConflicts runs fn until it succeeds, fails with a non-conflict error,
// or the create retry budget is spent.
func (s *Service) retryConflicts(ctx context.Context, op string, queueID int64, fn func() error) error {
	var err error
	for attempt := 0; attempt <= s.opts.CreateRetries; attempt++ {
		if err = fn(); err == nil || !model.IsConflict(err) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		slog.Debug("uniqueness conflict, re-reading sequences",
			"op", op, "queue_id", queueID, "attempt", attempt+1, "error", err)
	}
	return model.Conflict(op, fmt.Sprintf("gave up after %d attempts", s.opts.CreateRetries+1), err)
}

// creationTime is now for today's tickets and midnight for other days.
func creationTime(now time.Time, day model.Day) time.Time {
	if model.DayOf(now) == day {
		return now
	}
	return day.At(0, 0, now.Location())
}

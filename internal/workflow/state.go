package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/roach88/qms/internal/model"
	"github.com/roach88/qms/internal/params"
	"github.com/roach88/qms/internal/store"
)

// UpdateStateRequest targets one ticket of today by display text.
type UpdateStateRequest struct {
	QueueID     int64
	DisplayText string
	State       model.State
	Counter     *CounterRef
	// MedOrder narrows the match to tickets with this med-order flag.
	MedOrder *int
}

// UpdateState transitions one ticket. A Done ticket is returned unchanged.
func (s *Service) UpdateState(ctx context.Context, req UpdateStateRequest) (model.Ticket, error) {
	const op = "update state"

	if err := validTarget(op, req.State); err != nil {
		return model.Ticket{}, err
	}
	text := strings.TrimSpace(req.DisplayText)
	if text == "" {
		return model.Ticket{}, model.InvalidArgument(op, "display text is required")
	}
	if _, err := s.queue(ctx, op, req.QueueID); err != nil {
		return model.Ticket{}, err
	}
	counter := s.optionalCounter(req.Counter)
	day := s.Today()

	unlock := s.locks.Lock(req.QueueID)
	defer unlock()

	var (
		t       model.Ticket
		changed bool
	)
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		t, err = tx.TicketByDisplayText(ctx, req.QueueID, text, day, req.MedOrder)
		if err != nil {
			return err
		}
		if t.State.Terminal() {
			return nil
		}
		transition(&t, req.State, counter, s.clock.Now())
		changed = true
		return tx.UpdateTicket(ctx, t)
	})
	if err != nil {
		return model.Ticket{}, annotate(op, err)
	}
	if changed {
		s.publish(t)
		logTicket("ticket state updated", t)
	}
	return t, nil
}

// UpdateStateByPatient transitions every non-Done ticket of a patient in a
// queue today. With recall set and RecallShowDisplay enabled, Done tickets
// are included. Returns the updated tickets; NotFound if none matched.
func (s *Service) UpdateStateByPatient(ctx context.Context, queueID int64, patientCode string, state model.State, counter *CounterRef, recall bool) ([]model.Ticket, error) {
	const op = "update state by patient"

	if err := validTarget(op, state); err != nil {
		return nil, err
	}
	code := normalize(patientCode)
	if code == "" {
		return nil, model.InvalidArgument(op, "patient code is required")
	}
	if _, err := s.queue(ctx, op, queueID); err != nil {
		return nil, err
	}
	ref := s.optionalCounter(counter)
	day := s.Today()

	unlock := s.locks.Lock(queueID)
	defer unlock()

	var updated []model.Ticket
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		includeDone := recall && s.reader(ctx, tx).Bool(params.RecallShowDisplay, false)
		matches, err := tx.TicketsForPatient(ctx, queueID, code, day, includeDone)
		if err != nil {
			return err
		}
		if len(matches) == 0 {
			return model.NotFound(op, fmt.Sprintf("no ticket for patient %q in queue %d", code, queueID))
		}
		now := s.clock.Now()
		for _, t := range matches {
			transition(&t, state, ref, now)
			if err := tx.UpdateTicket(ctx, t); err != nil {
				return err
			}
			updated = append(updated, t)
		}
		return nil
	})
	if err != nil {
		return nil, annotate(op, err)
	}
	s.publish(updated...)
	for _, t := range updated {
		logTicket("ticket state updated", t, "patient_code", code, "recall", recall)
	}
	return updated, nil
}

// ClearMissed returns every Missed ticket of a queue today to Wait and clears
// its counter. Returns the number of tickets changed.
func (s *Service) ClearMissed(ctx context.Context, queueID int64) (int, error) {
	const op = "clear missed"

	if _, err := s.queue(ctx, op, queueID); err != nil {
		return 0, err
	}
	day := s.Today()

	unlock := s.locks.Lock(queueID)
	defer unlock()

	var cleared []model.Ticket
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		missed, err := tx.TicketsByState(ctx, queueID, day, model.StateMissed)
		if err != nil {
			return err
		}
		for _, t := range missed {
			t.State = model.StateWait
			t.CounterID = 0
			t.CounterName = ""
			if err := tx.UpdateTicket(ctx, t); err != nil {
				return err
			}
			cleared = append(cleared, t)
		}
		return nil
	})
	if err != nil {
		return 0, annotate(op, err)
	}
	s.publish(cleared...)
	if len(cleared) > 0 {
		logTicketCount("missed tickets cleared", queueID, len(cleared))
	}
	return len(cleared), nil
}

func (s *Service) optionalCounter(c *CounterRef) *CounterRef {
	if c == nil {
		return nil
	}
	ref := s.counterRef(*c)
	return &ref
}

func validTarget(op string, st model.State) error {
	if !st.Valid() {
		return model.InvalidArgument(op, fmt.Sprintf("unknown state %d", int(st)))
	}
	return nil
}

// transition applies state st to t, assigning the counter when given and
// stamping process time on Serving and finish time on Done.
func transition(t *model.Ticket, st model.State, counter *CounterRef, now time.Time) {
	t.State = st
	if counter != nil {
		t.CounterID = counter.ID
		t.CounterName = counter.Name
	}
	switch st {
	case model.StateServing:
		t.ProcessTime = now
	case model.StateDone:
		t.FinishTime = now
	}
}

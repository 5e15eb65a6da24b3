package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/qms/internal/model"
	"github.com/roach88/qms/internal/store"
)

// errClaimLost signals that another counter claimed the ticket first.
var errClaimLost = errors.New("ticket claimed by another counter")

// AssignNext hands the counter its next ticket.
//
// If the counter is already serving a ticket today, that ticket is returned
// unchanged. Otherwise the first Wait ticket in service order moves to
// Serving for the counter. found is false, with no mutation, when nothing is
// waiting. The counter id must be positive.
func (s *Service) AssignNext(ctx context.Context, queueID int64, counter CounterRef) (t model.Ticket, found bool, err error) {
	const op = "assign next"

	if counter.ID <= 0 {
		return model.Ticket{}, false, model.InvalidArgument(op, "counter id must be positive")
	}
	if _, err := s.queue(ctx, op, queueID); err != nil {
		return model.Ticket{}, false, err
	}
	counter = s.counterRef(counter)
	day := s.Today()

	unlock := s.locks.Lock(queueID)
	defer unlock()

	var claimed bool
	for attempt := 0; attempt <= s.opts.ClaimRetries; attempt++ {
		claimed = false
		err = s.store.WithTx(ctx, func(tx *store.Tx) error {
			serving, err := tx.ServingTicket(ctx, queueID, counter.ID, day)
			if err == nil {
				t, found = serving, true
				return nil
			}
			if !model.IsNotFound(err) {
				return err
			}

			next, err := tx.NextWaiting(ctx, queueID, day)
			if model.IsNotFound(err) {
				t, found = model.Ticket{}, false
				return nil
			}
			if err != nil {
				return err
			}

			now := s.clock.Now()
			ok, err := tx.ClaimTicket(ctx, next.ID, counter.ID, counter.Name, now)
			if err != nil {
				return err
			}
			if !ok {
				return errClaimLost
			}
			next.State = model.StateServing
			next.CounterID = counter.ID
			next.CounterName = counter.Name
			next.ProcessTime = now
			t, found, claimed = next, true, true
			return nil
		})
		if !errors.Is(err, errClaimLost) {
			break
		}
		slog.Debug("lost claim race, re-querying", "queue_id", queueID, "counter_id", counter.ID, "attempt", attempt+1)
	}
	if errors.Is(err, errClaimLost) {
		return model.Ticket{}, false, model.Conflict(op,
			fmt.Sprintf("counter %d lost %d claim races in queue %d", counter.ID, s.opts.ClaimRetries+1, queueID), err)
	}
	if err != nil {
		return model.Ticket{}, false, annotate(op, err)
	}

	switch {
	case claimed:
		s.publish(t)
		logTicket("ticket assigned", t, "counter_id", counter.ID)
	case found:
		slog.Debug("counter already serving", "queue_id", queueID, "counter_id", counter.ID, "ticket_id", t.ID)
	default:
		slog.Debug("no waiting ticket", "queue_id", queueID, "counter_id", counter.ID)
	}
	return t, found, nil
}

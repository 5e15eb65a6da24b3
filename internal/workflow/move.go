package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/qms/internal/model"
	"github.com/roach88/qms/internal/store"
)

// errMoveCollision means the destination already holds an unrelated ticket
// with the source's display text and patient code.
var errMoveCollision = errors.New("display text taken in destination queue")

// MoveRequest identifies the source ticket (queue, order key, patient code,
// today) and the destination queue.
type MoveRequest struct {
	FromQueueID int64
	Order       string
	ToQueueID   int64
	PatientCode string
}

// MoveTicket copies a ticket into another queue as a new Wait ticket that
// keeps the source's sequence, display text, order, priority and patient
// fields. The source ticket is not modified. If the destination already holds
// the same ticket, it is returned with Outcome AlreadyExists.
func (s *Service) MoveTicket(ctx context.Context, req MoveRequest) (CreateResult, error) {
	const op = "move ticket"

	order := strings.TrimSpace(req.Order)
	if order == "" {
		return CreateResult{}, model.InvalidArgument(op, "order is required")
	}
	if req.FromQueueID == req.ToQueueID {
		return CreateResult{}, model.InvalidArgument(op, "source and destination queue are the same")
	}
	if _, err := s.queue(ctx, op, req.FromQueueID); err != nil {
		return CreateResult{}, err
	}
	dest, err := s.queue(ctx, op, req.ToQueueID)
	if err != nil {
		return CreateResult{}, err
	}
	patient := normalize(req.PatientCode)
	day := s.Today()

	unlock := s.locks.Lock(dest.ID)
	defer unlock()

	var res CreateResult
	err = s.retryConflicts(ctx, op, dest.ID, func() error {
		return s.store.WithTx(ctx, func(tx *store.Tx) error {
			src, err := tx.TicketByOrder(ctx, req.FromQueueID, order, patient, day)
			if err != nil {
				return err
			}
			if existing, ok, err := movedCopy(ctx, tx, dest.ID, src); err != nil {
				res.Ticket = existing
				return err
			} else if ok {
				res = CreateResult{Ticket: existing, Outcome: AlreadyExists}
				return nil
			}

			now := s.clock.Now()
			estimate, err := s.estimate(ctx, tx, s.reader(ctx, tx), dest.ID, day, now)
			if err != nil {
				return err
			}
			moved := model.Ticket{
				ID:              s.ids.Generate(),
				QueueID:         dest.ID,
				Sequence:        src.Sequence,
				Priority:        src.Priority,
				State:           model.StateWait,
				DisplayText:     src.DisplayText,
				Order:           src.Order,
				Previous:        src.Previous,
				PreviousQueueID: src.QueueID,
				PatientCode:     src.PatientCode,
				PatientName:     src.PatientName,
				PatientYOB:      src.PatientYOB,
				MedOrder:        src.MedOrder,
				CreateDate:      day,
				CreateTime:      now,
				EstimateTime:    estimate,
				Remarks:         src.Remarks,
			}
			if err := tx.AddTicket(ctx, moved); err != nil {
				return err
			}
			res = CreateResult{Ticket: moved, Outcome: Created}
			return nil
		})
	})
	if errors.Is(err, errMoveCollision) {
		return CreateResult{}, model.Conflict(op,
			fmt.Sprintf("queue %d already has an unrelated ticket %s", dest.ID, res.Ticket.DisplayText), err)
	}
	if err != nil {
		return CreateResult{}, annotate(op, err)
	}
	res.Queue = dest

	if res.Outcome == Created {
		s.publish(res.Ticket)
		logTicket("ticket moved", res.Ticket, "from_queue_id", req.FromQueueID)
	}
	return res, nil
}

// movedCopy finds an earlier copy of src in queueID: same display text and
// patient, moved from src's queue with src's sequence. A ticket that only
// shares the display text and patient is reported as errMoveCollision.
func movedCopy(ctx context.Context, tx *store.Tx, queueID int64, src model.Ticket) (model.Ticket, bool, error) {
	tickets, err := tx.TicketsForPatient(ctx, queueID, src.PatientCode, src.CreateDate, true)
	if err != nil {
		return model.Ticket{}, false, err
	}
	for _, t := range tickets {
		if t.DisplayText != src.DisplayText {
			continue
		}
		if t.PreviousQueueID == src.QueueID && t.Sequence == src.Sequence {
			return t, true, nil
		}
		return t, false, errMoveCollision
	}
	return model.Ticket{}, false, nil
}

package display

import (
	"context"
	"math"

	"github.com/roach88/qms/internal/model"
)

// TicketSource reads a queue's tickets for a day. *store.Store satisfies it.
type TicketSource interface {
	TicketsForQueueDay(ctx context.Context, queueID int64, day model.Day) ([]model.Ticket, error)
}

// QueueStats summarises one queue on one day.
type QueueStats struct {
	QueueID   int64     `json:"queue_id"`
	Day       model.Day `json:"day"`
	Issued    int       `json:"issued"`
	Waiting   int       `json:"waiting"`
	Serving   int       `json:"serving"`
	Missed    int       `json:"missed"`
	Done      int       `json:"done"`
	Cancelled int       `json:"cancelled"`
	Priority  int       `json:"priority"`

	LastSequence int      `json:"last_sequence"`
	NowServing   []string `json:"now_serving"`
	// AverageWaitMinutes is the mean time from creation to service start
	// over tickets that have been called, rounded to one decimal.
	AverageWaitMinutes float64 `json:"average_wait_minutes"`
}

// Statistics counts a queue's tickets on day by state.
func Statistics(ctx context.Context, src TicketSource, queueID int64, day model.Day) (QueueStats, error) {
	tickets, err := src.TicketsForQueueDay(ctx, queueID, day)
	if err != nil {
		return QueueStats{}, err
	}

	st := QueueStats{QueueID: queueID, Day: day, Issued: len(tickets), NowServing: []string{}}
	var (
		waited float64
		called int
	)
	for _, t := range tickets {
		st.LastSequence = max(st.LastSequence, t.Sequence)
		if t.IsPriority() {
			st.Priority++
		}
		switch t.State {
		case model.StateWait:
			st.Waiting++
		case model.StateServing:
			st.Serving++
			st.NowServing = append(st.NowServing, t.DisplayText)
		case model.StateMissed:
			st.Missed++
		case model.StateDone:
			st.Done++
		case model.StateCancelled:
			st.Cancelled++
		}
		if !t.ProcessTime.IsZero() && t.ProcessTime.After(t.CreateTime) {
			waited += t.ProcessTime.Sub(t.CreateTime).Minutes()
			called++
		}
	}
	if called > 0 {
		st.AverageWaitMinutes = math.Round(waited/float64(called)*10) / 10
	}
	return st, nil
}

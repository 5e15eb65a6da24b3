package display

import (
	"fmt"
	"time"

	"github.com/roach88/qms/internal/model"
)

// DefaultRows caps a queue's board when neither the queue nor the screen
// sets a limit.
const DefaultRows = 10

// Source is the read side a board is built from. *cache.Cache satisfies it.
type Source interface {
	Screen(id int64) (model.Screen, bool)
	Queues() []model.Queue
	Tickets(queueID int64, take int) []model.Ticket
	Day() model.Day
}

// Entry is one line of a queue board.
type Entry struct {
	DisplayText  string      `json:"display_text"`
	State        model.State `json:"state"`
	Priority     bool        `json:"priority,omitempty"`
	CounterName  string      `json:"counter_name,omitempty"`
	PatientName  string      `json:"patient_name,omitempty"`
	EstimateTime time.Time   `json:"estimate_time"`
}

// QueueBoard is the section of a board for one queue.
type QueueBoard struct {
	QueueID int64   `json:"queue_id"`
	Name    string  `json:"name"`
	Entries []Entry `json:"entries"`
	// Waiting counts every Wait ticket, including those past the row limit.
	Waiting int `json:"waiting"`
}

// Board is what a screen shows.
type Board struct {
	Screen model.Screen `json:"screen"`
	Day    model.Day    `json:"day"`
	Queues []QueueBoard `json:"queues"`
}

// Build assembles the board of a screen: every active queue bound to it,
// with Serving tickets first and then Wait tickets in service order.
func Build(src Source, screenID int64) (Board, error) {
	screen, ok := src.Screen(screenID)
	if !ok {
		return Board{}, model.NotFound("build board", fmt.Sprintf("screen %d not found", screenID))
	}

	b := Board{Screen: screen, Day: src.Day(), Queues: []QueueBoard{}}
	for _, q := range src.Queues() {
		if !q.Active || q.ScreenID != screenID {
			continue
		}
		b.Queues = append(b.Queues, queueBoard(q, src.Tickets(q.ID, 0), rowLimit(q, screen)))
	}
	return b, nil
}

func rowLimit(q model.Queue, s model.Screen) int {
	switch {
	case q.MaxDisplayed > 0:
		return q.MaxDisplayed
	case s.DisplayRows > 0:
		return s.DisplayRows
	}
	return DefaultRows
}

func queueBoard(q model.Queue, tickets []model.Ticket, limit int) QueueBoard {
	qb := QueueBoard{QueueID: q.ID, Name: q.Name, Entries: []Entry{}}

	var serving, waiting []Entry
	for _, t := range tickets {
		switch t.State {
		case model.StateServing:
			serving = append(serving, entryOf(t))
		case model.StateWait:
			waiting = append(waiting, entryOf(t))
			qb.Waiting++
		}
	}
	for _, e := range append(serving, waiting...) {
		if len(qb.Entries) == limit {
			break
		}
		qb.Entries = append(qb.Entries, e)
	}
	return qb
}

func entryOf(t model.Ticket) Entry {
	return Entry{
		DisplayText:  t.DisplayText,
		State:        t.State,
		Priority:     t.IsPriority(),
		CounterName:  t.CounterName,
		PatientName:  t.PatientName,
		EstimateTime: t.EstimateTime,
	}
}

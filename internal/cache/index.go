package cache

import (
	"cmp"
	"slices"
	"sync"

	"github.com/roach88/qms/internal/model"
)

// ticketIndex maps queue id to that queue's ticket list.
type ticketIndex struct {
	mu    sync.RWMutex
	lists map[int64]*ticketList
}

// ticketList keeps one queue's tickets sorted in service order.
type ticketList struct {
	mu    sync.RWMutex
	items []model.Ticket
}

func newTicketIndex() *ticketIndex {
	return &ticketIndex{lists: make(map[int64]*ticketList)}
}

// list returns the list for queueID, creating it when create is set.
func (x *ticketIndex) list(queueID int64, create bool) *ticketList {
	x.mu.RLock()
	l := x.lists[queueID]
	x.mu.RUnlock()
	if l != nil || !create {
		return l
	}

	x.mu.Lock()
	defer x.mu.Unlock()
	if l = x.lists[queueID]; l == nil {
		l = &ticketList{}
		x.lists[queueID] = l
	}
	return l
}

// put upserts t by id, or removes it when it is cancelled.
func (x *ticketIndex) put(t model.Ticket) {
	if t.State == model.StateCancelled {
		x.remove(t.QueueID, t.ID)
		return
	}
	l := x.list(t.QueueID, true)
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = slices.DeleteFunc(l.items, func(e model.Ticket) bool { return e.ID == t.ID })
	i, _ := slices.BinarySearchFunc(l.items, t, compareTickets)
	l.items = slices.Insert(l.items, i, t)
}

func (x *ticketIndex) remove(queueID int64, id string) bool {
	l := x.list(queueID, false)
	if l == nil {
		return false
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	n := len(l.items)
	l.items = slices.DeleteFunc(l.items, func(e model.Ticket) bool { return e.ID == id })
	return len(l.items) != n
}

// tickets copies up to take tickets of a queue (all when take <= 0).
func (x *ticketIndex) tickets(queueID int64, take int) []model.Ticket {
	l := x.list(queueID, false)
	if l == nil {
		return []model.Ticket{}
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	n := len(l.items)
	if take > 0 && take < n {
		n = take
	}
	out := make([]model.Ticket, n)
	copy(out, l.items[:n])
	return out
}

func (x *ticketIndex) find(queueID int64, match func(model.Ticket) bool) (model.Ticket, bool) {
	l := x.list(queueID, false)
	if l == nil {
		return model.Ticket{}, false
	}
	l.mu.RLock()
	defer l.mu.RUnlock()
	if i := slices.IndexFunc(l.items, match); i >= 0 {
		return l.items[i], true
	}
	return model.Ticket{}, false
}

func (x *ticketIndex) count() int {
	x.mu.RLock()
	lists := make([]*ticketList, 0, len(x.lists))
	for _, l := range x.lists {
		lists = append(lists, l)
	}
	x.mu.RUnlock()

	n := 0
	for _, l := range lists {
		l.mu.RLock()
		n += len(l.items)
		l.mu.RUnlock()
	}
	return n
}

func (x *ticketIndex) countByQueue() map[int64]int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	out := make(map[int64]int, len(x.lists))
	for id, l := range x.lists {
		l.mu.RLock()
		if len(l.items) > 0 {
			out[id] = len(l.items)
		}
		l.mu.RUnlock()
	}
	return out
}

func compareTickets(a, b model.Ticket) int {
	return cmp.Or(
		cmp.Compare(a.Order, b.Order),
		cmp.Compare(a.Sequence, b.Sequence),
		cmp.Compare(a.ID, b.ID),
	)
}

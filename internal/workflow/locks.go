package workflow

import "sync"

// queueLocks hands out one mutex per queue id. Every ticket mutation holds
// its queue's mutex from the transaction through the cache publish, so the
// cache sees commits in commit order. Entries are reference counted and
// dropped when the last holder unlocks.
type queueLocks struct {
	mu      sync.Mutex
	entries map[int64]*queueLock
}

type queueLock struct {
	mu   sync.Mutex
	refs int
}

// Lock acquires the queue's mutex and returns its release function.
func (l *queueLocks) Lock(queueID int64) func() {
	l.mu.Lock()
	if l.entries == nil {
		l.entries = make(map[int64]*queueLock)
	}
	e := l.entries[queueID]
	if e == nil {
		e = &queueLock{}
		l.entries[queueID] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		l.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(l.entries, queueID)
		}
		l.mu.Unlock()
	}
}

func (l *queueLocks) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

package workflow

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestQueueLocks(t *testing.T) {
	l := &queueLocks{}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			unlock := l.Lock(1)
			defer unlock()
			mu.Lock()
			inside++
			maxSeen = max(maxSeen, inside)
			mu.Unlock()
			mu.Lock()
			inside--
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, maxSeen)
	assert.Zero(t, l.size(), "entries are dropped when unused")

	a := l.Lock(1)
	b := l.Lock(2)
	assert.Equal(t, 2, l.size(), "queues lock independently")
	a()
	b()
	assert.Zero(t, l.size())
}

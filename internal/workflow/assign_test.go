package workflow

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qms/internal/model"
)

func TestAssignNext_NothingWaiting(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	done := f.create(t, 1, 0, "")
	f.setState(t, 1, done.DisplayText, model.StateDone)
	missed := f.create(t, 1, 0, "")
	f.setState(t, 1, missed.DisplayText, model.StateMissed)

	before, err := f.store.TicketsForQueueDay(ctx, 1, today)
	require.NoError(t, err)

	got, found, err := f.svc.AssignNext(ctx, 1, CounterRef{ID: 1})
	require.NoError(t, err)
	assert.False(t, found)
	assert.Equal(t, model.Ticket{}, got)

	after, err := f.store.TicketsForQueueDay(ctx, 1, today)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestAssignNext_ServiceOrderAndReattach(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	f.create(t, 1, 0, "")
	f.create(t, 1, 0, "")
	f.create(t, 1, 1, "") // order 0002a

	first, found, err := f.svc.AssignNext(ctx, 1, CounterRef{ID: 1})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "0001", first.DisplayText)
	assert.Equal(t, model.StateServing, first.State)
	assert.Equal(t, "Room 1", first.CounterName)
	assert.Equal(t, morning, first.ProcessTime)

	f.clock.Advance(3 * time.Minute)
	again, found, err := f.svc.AssignNext(ctx, 1, CounterRef{ID: 1})
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, first.ID, again.ID, "a serving counter keeps its ticket")
	assert.True(t, morning.Equal(again.ProcessTime))

	second, _, err := f.svc.AssignNext(ctx, 1, CounterRef{ID: 2})
	require.NoError(t, err)
	assert.Equal(t, "0002", second.DisplayText)

	f.setState(t, 1, first.DisplayText, model.StateDone)
	third, _, err := f.svc.AssignNext(ctx, 1, CounterRef{ID: 1})
	require.NoError(t, err)
	assert.Equal(t, "0003", third.DisplayText)
	assert.Equal(t, "0002a", third.Order)

	cached, ok := f.cache.Ticket(1, third.ID)
	require.True(t, ok)
	assert.Equal(t, model.StateServing, cached.State)
	assert.Equal(t, int64(1), cached.CounterID)
}

func TestAssignNext_ConcurrentCountersGetDistinctTickets(t *testing.T) {
	f := newFixture(t, nil)
	const n = 6
	for i := 0; i < n; i++ {
		f.create(t, 1, 0, "")
	}

	var wg sync.WaitGroup
	ids := make(chan string, n)
	for c := int64(1); c <= n; c++ {
		wg.Add(1)
		go func(counterID int64) {
			defer wg.Done()
			tk, found, err := f.svc.AssignNext(context.Background(), 1, CounterRef{ID: counterID})
			if assert.NoError(t, err) && assert.True(t, found) {
				ids <- tk.ID
			}
		}(c)
	}
	wg.Wait()
	close(ids)

	seen := map[string]bool{}
	for id := range ids {
		assert.False(t, seen[id], "ticket %s assigned twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestAssignNext_UnknownQueue(t *testing.T) {
	f := newFixture(t, nil)
	_, _, err := f.svc.AssignNext(context.Background(), 42, CounterRef{ID: 1})
	assert.True(t, model.IsNotFound(err))
}

func TestAssignNext_RejectsMissingCounter(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	tk := f.create(t, 1, 0, "")
	f.setState(t, 1, tk.DisplayText, model.StateServing) // serving with no counter

	for _, id := range []int64{0, -1} {
		_, found, err := f.svc.AssignNext(ctx, 1, CounterRef{ID: id, Name: "Desk"})
		require.Error(t, err)
		assert.True(t, model.IsInvalidArgument(err), "counter %d: %v", id, err)
		assert.False(t, found)
	}
}

func TestTicketMutations_CacheFollowsCommits(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()

	const n = 4
	tickets := make([]model.Ticket, n)
	for i := range tickets {
		tickets[i] = f.create(t, 1, 0, "")
	}
	states := []model.State{model.StateMissed, model.StateWait, model.StateServing}

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < 10; i++ {
				tk := tickets[(w+i)%n]
				switch (w + i) % 4 {
				case 0:
					_, _, err := f.svc.AssignNext(ctx, 1, CounterRef{ID: int64(w%2 + 1)})
					assert.NoError(t, err)
				case 1:
					_, err := f.svc.ClearMissed(ctx, 1)
					assert.NoError(t, err)
				default:
					_, err := f.svc.UpdateState(ctx, UpdateStateRequest{
						QueueID: 1, DisplayText: tk.DisplayText, State: states[(w*i)%len(states)],
					})
					assert.NoError(t, err)
				}
			}
		}(w)
	}
	wg.Wait()

	stored, err := f.store.TicketsForQueueDay(ctx, 1, today)
	require.NoError(t, err)
	require.Len(t, stored, n)
	for _, want := range stored {
		got, ok := f.cache.Ticket(1, want.ID)
		require.True(t, ok, want.DisplayText)
		assert.Equal(t, want.State, got.State, want.DisplayText)
		assert.Equal(t, want.CounterID, got.CounterID, want.DisplayText)
	}
}

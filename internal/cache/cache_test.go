package cache

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qms/internal/model"
	"github.com/roach88/qms/internal/store"
	"github.com/roach88/qms/internal/testutil"
)

var (
	today    = model.Day("2026-03-02")
	tomorrow = model.Day("2026-03-03")
)

// fakeLoader serves fixed data. gate, when set, blocks TicketsForDay until
// closed; failTickets makes TicketsForDay fail.
type fakeLoader struct {
	mu          sync.Mutex
	queues      []model.Queue
	counters    []model.Counter
	screens     []model.Screen
	kiosks      []model.Kiosk
	params      map[string]string
	tickets     []model.Ticket
	gate        chan struct{}
	entered     chan struct{}
	failTickets bool
	calls       int
}

func (f *fakeLoader) Queues(context.Context) ([]model.Queue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	return f.queues, nil
}

func (f *fakeLoader) Counters(context.Context) ([]model.Counter, error) { return f.counters, nil }
func (f *fakeLoader) Screens(context.Context) ([]model.Screen, error)   { return f.screens, nil }
func (f *fakeLoader) Kiosks(context.Context) ([]model.Kiosk, error)     { return f.kiosks, nil }

func (f *fakeLoader) Parameters(context.Context) (map[string]string, error) {
	return f.params, nil
}

func (f *fakeLoader) TicketsForDay(ctx context.Context, day model.Day) ([]model.Ticket, error) {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTickets {
		return nil, errors.New("database is locked")
	}
	return f.tickets, nil
}

func tk(id string, queueID int64, seq int, state model.State, day model.Day) model.Ticket {
	text := fmt.Sprintf("%04d", seq)
	return model.Ticket{ID: id, QueueID: queueID, Sequence: seq, State: state, DisplayText: text, Order: text, CreateDate: day}
}

func newLoader() *fakeLoader {
	return &fakeLoader{
		queues:   []model.Queue{{ID: 1, Name: "A", Active: true, DepartmentID: 10}, {ID: 2, Name: "B", Active: true}},
		counters: []model.Counter{{ID: 1, QueueID: 1, Active: true}, {ID: 2, QueueID: 2}},
		screens:  []model.Screen{{ID: 1, Name: "Lobby", Active: true}},
		kiosks:   []model.Kiosk{{ID: 1, Name: "Lobby Kiosk", Active: true, IPAddress: "10.0.1.20", Queues: []model.KioskQueue{{QueueID: 1, DisplayText: "A", Active: true}}}},
		params:   map[string]string{"DigitWidth": "4", "DisplacementLimit": "5"},
		tickets: []model.Ticket{
			tk("a3", 1, 3, model.StateWait, today),
			tk("a1", 1, 1, model.StateServing, today),
			tk("a2", 1, 2, model.StateCancelled, today),
			tk("old", 1, 9, model.StateWait, tomorrow),
			tk("b1", 2, 1, model.StateDone, today),
		},
	}
}

func newTestCache(t *testing.T, loader Loader) (*Cache, *testutil.FakeClock) {
	t.Helper()
	clock := testutil.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
	c := New(loader, clock)
	t.Cleanup(c.Shutdown)
	return c, clock
}

func ticketIDs(ts []model.Ticket) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.ID
	}
	return out
}

func TestReload_OnlyTodaysOpenTickets(t *testing.T) {
	c, _ := newTestCache(t, newLoader())
	assert.False(t, c.IsLoaded())

	res, err := c.Reload(context.Background())
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Equal(t, today, res.Day)
	assert.True(t, c.IsLoaded())
	assert.False(t, c.LastReload().IsZero())

	assert.Equal(t, []string{"a1", "a3"}, ticketIDs(c.Tickets(1, 0)))
	assert.Equal(t, []string{"a1"}, ticketIDs(c.Tickets(1, 1)))
	assert.Equal(t, []string{"b1"}, ticketIDs(c.Tickets(2, 0)))
	assert.Empty(t, c.Tickets(99, 0))

	// 2 queues + 2 counters + 1 screen + 1 kiosk + 2 params + 3 tickets
	assert.Equal(t, 11, c.ItemCount())
	assert.Equal(t, res.Items, c.ItemCount())
}

func TestClearTickets_LeavesQueuesAndParameters(t *testing.T) {
	c, _ := newTestCache(t, newLoader())
	require.NoError(t, c.Init(context.Background()))

	require.NoError(t, c.Clear(model.CacheTickets))

	assert.Empty(t, c.Tickets(1, 0))
	assert.Len(t, c.Queues(), 2)
	v, ok := c.Parameter("DigitWidth")
	assert.True(t, ok)
	assert.Equal(t, "4", v)
	assert.True(t, c.IsLoaded())
}

func TestClear_EachType(t *testing.T) {
	ctx := context.Background()
	tests := []struct {
		typ   model.CacheType
		check func(t *testing.T, c *Cache)
	}{
		{model.CacheQueues, func(t *testing.T, c *Cache) {
			assert.Empty(t, c.Queues())
			assert.False(t, c.IsLoaded(), "no queues means not loaded")
			assert.Len(t, c.Tickets(1, 0), 2)
		}},
		{model.CacheScreens, func(t *testing.T, c *Cache) { assert.Empty(t, c.Screens()) }},
		{model.CacheCounters, func(t *testing.T, c *Cache) { assert.Empty(t, c.CountersByQueue(1)) }},
		{model.CacheParameters, func(t *testing.T, c *Cache) { assert.Empty(t, c.Parameters()) }},
		{model.CacheKiosks, func(t *testing.T, c *Cache) {
			assert.Empty(t, c.Kiosks())
			assert.Len(t, c.Queues(), 2)
		}},
		{model.CacheAll, func(t *testing.T, c *Cache) {
			assert.Zero(t, c.ItemCount())
			assert.False(t, c.IsLoaded())
		}},
	}
	for _, tt := range tests {
		t.Run(tt.typ.String(), func(t *testing.T) {
			c, _ := newTestCache(t, newLoader())
			require.NoError(t, c.Init(ctx))
			require.NoError(t, c.Clear(tt.typ))
			tt.check(t, c)
		})
	}

	c, _ := newTestCache(t, newLoader())
	assert.True(t, model.IsInvalidArgument(c.Clear(model.CacheType(42))))
}

func TestReload_SingleFlight(t *testing.T) {
	loader := newLoader()
	loader.gate = make(chan struct{})
	loader.entered = make(chan struct{}, 1)
	c, _ := newTestCache(t, loader)

	done := make(chan error, 1)
	go func() {
		_, err := c.Reload(context.Background())
		done <- err
	}()
	<-loader.entered
	assert.True(t, c.IsReloading())

	res, err := c.Reload(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Skipped, "second reload must not duplicate work")

	close(loader.gate)
	require.NoError(t, <-done)
	assert.False(t, c.IsReloading())
	assert.Equal(t, 1, loader.calls)
}

func TestReload_FailureKeepsPreviousSnapshot(t *testing.T) {
	loader := newLoader()
	c, _ := newTestCache(t, loader)
	require.NoError(t, c.Init(context.Background()))
	before := c.LastReload()

	loader.mu.Lock()
	loader.failTickets = true
	loader.queues = nil
	loader.mu.Unlock()

	_, err := c.Reload(context.Background())
	require.Error(t, err)

	assert.Len(t, c.Queues(), 2, "queues from the failed reload were not published")
	assert.Len(t, c.Tickets(1, 0), 2)
	assert.Equal(t, before, c.LastReload())
	assert.True(t, c.IsLoaded())
}

func TestReload_JournalReplaysConcurrentMutations(t *testing.T) {
	loader := newLoader()
	c, _ := newTestCache(t, loader)
	require.NoError(t, c.Init(context.Background()))

	loader.gate = make(chan struct{})
	loader.entered = make(chan struct{}, 1)
	done := make(chan error, 1)
	go func() {
		_, err := c.Reload(context.Background())
		done <- err
	}()
	<-loader.entered

	// committed while the reload was reading: not in the loader's data
	c.Put(tk("a4", 1, 4, model.StateWait, today))
	served := tk("a3", 1, 3, model.StateServing, today)
	c.Put(served)
	c.SetParameter("DigitWidth", "5")
	assert.Equal(t, []string{"a1", "a3", "a4"}, ticketIDs(c.Tickets(1, 0)), "readers see mutations immediately")

	close(loader.gate)
	require.NoError(t, <-done)

	got := c.Tickets(1, 0)
	assert.Equal(t, []string{"a1", "a3", "a4"}, ticketIDs(got))
	assert.Equal(t, model.StateServing, got[1].State)
	v, _ := c.Parameter("DigitWidth")
	assert.Equal(t, "5", v)
}

func TestPut(t *testing.T) {
	c, _ := newTestCache(t, newLoader())
	require.NoError(t, c.Init(context.Background()))

	c.Put(tk("late", 1, 10, model.StateWait, tomorrow))
	_, ok := c.Ticket(1, "late")
	assert.False(t, ok, "other days are not cached")

	prio := tk("p", 1, 5, model.StateWait, today)
	prio.Order = "0001a"
	c.Put(prio)
	assert.Equal(t, []string{"a1", "p", "a3"}, ticketIDs(c.Tickets(1, 0)))

	prio.State = model.StateCancelled
	c.Put(prio)
	assert.Equal(t, []string{"a1", "a3"}, ticketIDs(c.Tickets(1, 0)))

	c.Remove(1, "a1")
	assert.Equal(t, []string{"a3"}, ticketIDs(c.Tickets(1, 0)))

	got, ok := c.TicketByDisplayText(1, "0003")
	assert.True(t, ok)
	assert.Equal(t, "a3", got.ID)
}

func TestLookups(t *testing.T) {
	c, _ := newTestCache(t, newLoader())
	require.NoError(t, c.Init(context.Background()))

	q, ok := c.QueueByDepartment(10)
	assert.True(t, ok)
	assert.Equal(t, int64(1), q.ID)
	_, ok = c.QueueByDepartment(11)
	assert.False(t, ok)

	_, ok = c.Queue(3)
	assert.False(t, ok)
	ct, ok := c.Counter(2)
	assert.True(t, ok)
	assert.Equal(t, int64(2), ct.QueueID)
	s, ok := c.Screen(1)
	assert.True(t, ok)
	assert.Equal(t, "Lobby", s.Name)

	v, found, err := c.ParameterLookup()("DisplacementLimit")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "5", v)

	params := c.Parameters()
	params["DigitWidth"] = "9"
	v, _ = c.Parameter("DigitWidth")
	assert.Equal(t, "4", v, "Parameters returns a copy")
}

func TestStats(t *testing.T) {
	c, _ := newTestCache(t, newLoader())
	require.NoError(t, c.Init(context.Background()))

	all, err := c.Stats(model.CacheAll)
	require.NoError(t, err)
	assert.True(t, all.Loaded)
	assert.Equal(t, int64(1), all.Reloads)
	assert.Equal(t, 11, all.ItemCount)
	assert.Equal(t, 1, all.Counts["kiosks"])
	assert.Equal(t, map[int64]int{1: 2, 2: 1}, all.PerQueue)

	tickets, err := c.Stats(model.CacheTickets)
	require.NoError(t, err)
	assert.Equal(t, 3, tickets.ItemCount)
	assert.Equal(t, map[string]int{"tickets": 3}, tickets.Counts)

	queues, err := c.Stats(model.CacheQueues)
	require.NoError(t, err)
	assert.Equal(t, 2, queues.ItemCount)
	assert.Nil(t, queues.PerQueue)

	_, err = c.Stats(model.CacheType(-3))
	assert.True(t, model.IsInvalidArgument(err))
}

func TestRefresh_ReloadsOnDayRollover(t *testing.T) {
	loader := newLoader()
	loader.tickets = append(loader.tickets, tk("t1", 1, 1, model.StateWait, tomorrow))
	c, clock := newTestCache(t, loader)
	require.NoError(t, c.Init(context.Background()))
	assert.Equal(t, today, c.Day())

	c.StartRefresh(context.Background(), 5*time.Millisecond)
	clock.Advance(24 * time.Hour)

	require.Eventually(t, func() bool { return c.Day() == tomorrow }, 2*time.Second, 5*time.Millisecond)
	_, ok := c.Ticket(1, "t1")
	assert.True(t, ok)
	c.Shutdown()
	assert.False(t, c.IsLoaded())
}

func TestRefresh_IntervalUsesClock(t *testing.T) {
	loader := newLoader()
	c, clock := newTestCache(t, loader)
	require.NoError(t, c.Init(context.Background()))

	c.StartRefresh(context.Background(), 10*time.Millisecond)
	clock.Advance(time.Minute)
	require.Eventually(t, func() bool {
		loader.mu.Lock()
		defer loader.mu.Unlock()
		return loader.calls >= 2
	}, 2*time.Second, 5*time.Millisecond)
}

func TestConcurrentReadersAndWriters(t *testing.T) {
	c, _ := newTestCache(t, newLoader())
	ctx := context.Background()
	require.NoError(t, c.Init(ctx))

	var wg sync.WaitGroup
	for q := int64(1); q <= 2; q++ {
		wg.Add(1)
		go func(q int64) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				c.Put(tk(fmt.Sprintf("q%d-%d", q, i), q, 100+i, model.StateWait, today))
				_ = c.Tickets(q, 5)
			}
		}(q)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 5; i++ {
			_, err := c.Reload(ctx)
			assert.NoError(t, err)
		}
	}()
	wg.Wait()

	// the loader never stores the puts, so only the loaded tickets and puts
	// journaled by the last reload are guaranteed to remain
	assert.GreaterOrEqual(t, len(c.Tickets(1, 0)), 2)
}

func TestReload_FromStore(t *testing.T) {
	s, err := store.Open(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.UpsertQueue(ctx, model.Queue{ID: 1, Name: "A", Active: true}))
	require.NoError(t, s.SetParameter(ctx, "DigitWidth", "3"))
	for _, tt := range []model.Ticket{
		tk("keep", 1, 1, model.StateWait, today),
		tk("gone", 1, 2, model.StateCancelled, today),
		tk("later", 1, 1, model.StateWait, tomorrow),
	} {
		tt.CreateTime = time.Date(2026, 3, 2, 8, 0, 0, 0, time.UTC)
		require.NoError(t, s.AddTicket(ctx, tt))
	}

	require.NoError(t, s.UpsertKiosk(ctx, model.Kiosk{ID: 2, Name: "Hall", Active: true,
		Queues: []model.KioskQueue{{QueueID: 1, DisplayText: "A", Active: true}}}))

	c, _ := newTestCache(t, s)
	require.NoError(t, c.Init(ctx))
	assert.Equal(t, []string{"keep"}, ticketIDs(c.Tickets(1, 0)))
	assert.True(t, c.IsLoaded())

	k, ok := c.KioskByNameOrIP("Hall")
	require.True(t, ok)
	assert.Len(t, k.Queues, 1)
}

func TestKioskAndCounterLookups(t *testing.T) {
	loader := newLoader()
	loader.counters = append(loader.counters,
		model.Counter{ID: 3, Name: "Room 3", QueueID: 1, ComputerName: "CARDIO-PC1"},
		model.Counter{ID: 4, Name: "Room 4", QueueID: 2, Active: true, ComputerName: "cardio-pc1"})
	loader.kiosks = append(loader.kiosks,
		model.Kiosk{ID: 5, Name: "Old Lobby", IPAddress: "10.0.1.20"})
	c, _ := newTestCache(t, loader)
	require.NoError(t, c.Init(context.Background()))

	ct, ok := c.CounterByComputerName("Cardio-PC1")
	require.True(t, ok)
	assert.Equal(t, int64(4), ct.ID, "active counter wins")

	ct, ok = c.CounterByName("ROOM 3")
	require.True(t, ok)
	assert.Equal(t, int64(3), ct.ID)

	_, ok = c.CounterByComputerName("")
	assert.False(t, ok)

	k, ok := c.KioskByNameOrIP("10.0.1.20")
	require.True(t, ok)
	assert.Equal(t, int64(1), k.ID, "active kiosk wins")

	k, ok = c.KioskByNameOrIP("Old Lobby")
	require.True(t, ok)
	assert.Equal(t, int64(5), k.ID)

	_, ok = c.Kiosk(9)
	assert.False(t, ok)
	assert.Len(t, c.Kiosks(), 2)
}

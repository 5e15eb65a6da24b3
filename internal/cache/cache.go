package cache

import (
	"context"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/roach88/qms/internal/model"
)

// Loader reads the data a reload needs. *store.Store satisfies it.
type Loader interface {
	Queues(ctx context.Context) ([]model.Queue, error)
	Counters(ctx context.Context) ([]model.Counter, error)
	Screens(ctx context.Context) ([]model.Screen, error)
	Kiosks(ctx context.Context) ([]model.Kiosk, error)
	Parameters(ctx context.Context) (map[string]string, error)
	TicketsForDay(ctx context.Context, day model.Day) ([]model.Ticket, error)
}

// snapshot is one published generation of the cache. Facility maps are
// read-only once published; the ticket index carries its own locks.
type snapshot struct {
	day      model.Day
	queues   map[int64]model.Queue
	counters map[int64]model.Counter
	screens  map[int64]model.Screen
	kiosks   map[int64]model.Kiosk
	params   map[string]string
	tickets  *ticketIndex
}

func emptySnapshot(day model.Day) *snapshot {
	return &snapshot{
		day:      day,
		queues:   map[int64]model.Queue{},
		counters: map[int64]model.Counter{},
		screens:  map[int64]model.Screen{},
		kiosks:   map[int64]model.Kiosk{},
		params:   map[string]string{},
		tickets:  newTicketIndex(),
	}
}

// Cache is the process-wide queue cache. Construct it with New, call Init
// (or Reload) before serving reads, and Shutdown when done.
type Cache struct {
	loader Loader
	clock  model.Clock

	snap       atomic.Pointer[snapshot]
	reloading  atomic.Bool
	reloaded   atomic.Bool
	lastReload atomic.Pointer[time.Time]
	reloads    atomic.Int64

	// jmu orders mutations against the reload swap: mutations hold it for
	// reading, the swap and Clear hold it for writing.
	jmu       sync.RWMutex
	journalMu sync.Mutex
	journal   []func(*snapshot)
	recording bool

	refreshMu     sync.Mutex
	refreshCancel context.CancelFunc
	refreshDone   chan struct{}
}

// New returns an unloaded cache.
func New(loader Loader, clock model.Clock) *Cache {
	if clock == nil {
		clock = model.SystemClock{}
	}
	c := &Cache{loader: loader, clock: clock}
	c.snap.Store(emptySnapshot(model.Today(clock)))
	return c
}

// ReloadResult reports the outcome of Reload.
type ReloadResult struct {
	// Skipped is set when another reload was already in progress.
	Skipped bool
	// Items is the total number of cached entities after the reload.
	Items    int
	Day      model.Day
	Duration time.Duration
}

// Init performs the first reload.
func (c *Cache) Init(ctx context.Context) error {
	_, err := c.Reload(ctx)
	return err
}

// Reload rebuilds the whole cache from the loader. Only one reload runs at a
// time; a concurrent caller returns immediately with Skipped set.
func (c *Cache) Reload(ctx context.Context) (ReloadResult, error) {
	if !c.reloading.CompareAndSwap(false, true) {
		slog.Info("cache reload already in progress, skipping")
		return ReloadResult{Skipped: true}, nil
	}
	defer c.reloading.Store(false)

	start := time.Now()
	day := model.Today(c.clock)
	slog.Info("cache reload started", "day", day)

	c.startJournal()
	next, err := c.build(ctx, day)
	if err != nil {
		c.stopJournal()
		slog.Warn("cache reload failed, keeping previous snapshot", "error", err)
		return ReloadResult{}, fmt.Errorf("reload cache: %w", err)
	}

	c.jmu.Lock()
	replayed := c.drainJournal(next)
	c.snap.Store(next)
	c.jmu.Unlock()

	now := c.clock.Now()
	c.lastReload.Store(&now)
	c.reloaded.Store(true)
	c.reloads.Add(1)

	res := ReloadResult{Items: itemCount(next), Day: day, Duration: time.Since(start)}
	slog.Info("cache reload completed",
		"day", day,
		"items", res.Items,
		"replayed", replayed,
		"duration", res.Duration)
	return res, nil
}

// build loads a complete snapshot without touching the published one.
func (c *Cache) build(ctx context.Context, day model.Day) (*snapshot, error) {
	next := emptySnapshot(day)

	queues, err := c.loader.Queues(ctx)
	if err != nil {
		return nil, fmt.Errorf("queues: %w", err)
	}
	for _, q := range queues {
		next.queues[q.ID] = q
	}

	counters, err := c.loader.Counters(ctx)
	if err != nil {
		return nil, fmt.Errorf("counters: %w", err)
	}
	for _, ct := range counters {
		next.counters[ct.ID] = ct
	}

	screens, err := c.loader.Screens(ctx)
	if err != nil {
		return nil, fmt.Errorf("screens: %w", err)
	}
	for _, s := range screens {
		next.screens[s.ID] = s
	}

	kiosks, err := c.loader.Kiosks(ctx)
	if err != nil {
		return nil, fmt.Errorf("kiosks: %w", err)
	}
	for _, k := range kiosks {
		next.kiosks[k.ID] = k
	}

	params, err := c.loader.Parameters(ctx)
	if err != nil {
		return nil, fmt.Errorf("parameters: %w", err)
	}
	maps.Copy(next.params, params)

	tickets, err := c.loader.TicketsForDay(ctx, day)
	if err != nil {
		return nil, fmt.Errorf("tickets: %w", err)
	}
	for _, t := range tickets {
		if t.CreateDate == day {
			next.tickets.put(t)
		}
	}
	return next, nil
}

func (c *Cache) startJournal() {
	c.jmu.Lock()
	c.journalMu.Lock()
	c.recording = true
	c.journal = nil
	c.journalMu.Unlock()
	c.jmu.Unlock()
}

func (c *Cache) stopJournal() {
	c.journalMu.Lock()
	c.recording = false
	c.journal = nil
	c.journalMu.Unlock()
}

// drainJournal replays recorded mutations onto next. Caller holds jmu.
func (c *Cache) drainJournal(next *snapshot) int {
	c.journalMu.Lock()
	defer c.journalMu.Unlock()
	for _, op := range c.journal {
		op(next)
	}
	n := len(c.journal)
	c.recording = false
	c.journal = nil
	return n
}

// mutate applies op to the published snapshot and records it for replay if
// a reload is building the next one.
func (c *Cache) mutate(op func(*snapshot)) {
	c.jmu.RLock()
	defer c.jmu.RUnlock()
	op(c.snap.Load())

	c.journalMu.Lock()
	if c.recording {
		c.journal = append(c.journal, op)
	}
	c.journalMu.Unlock()
}

// Put adds or replaces a ticket. Tickets from another day are ignored and
// cancelled tickets are removed.
func (c *Cache) Put(t model.Ticket) {
	c.mutate(func(s *snapshot) {
		if t.CreateDate != s.day {
			return
		}
		s.tickets.put(t)
	})
}

// Remove drops a ticket from its queue's list.
func (c *Cache) Remove(queueID int64, id string) {
	c.mutate(func(s *snapshot) {
		s.tickets.remove(queueID, id)
	})
}

// SetParameter updates a cached parameter value.
func (c *Cache) SetParameter(code, value string) {
	c.jmu.Lock()
	defer c.jmu.Unlock()

	cur := c.snap.Load()
	next := *cur
	next.params = maps.Clone(cur.params)
	next.params[code] = value
	c.snap.Store(&next)

	c.journalMu.Lock()
	if c.recording {
		c.journal = append(c.journal, func(s *snapshot) { s.params[code] = value })
	}
	c.journalMu.Unlock()
}

// Clear invalidates one entity type, or everything for CacheAll. It is an
// operator action and does not reload.
func (c *Cache) Clear(t model.CacheType) error {
	if !t.Valid() {
		return model.InvalidArgument("clear cache", fmt.Sprintf("unknown cache type %d", int(t)))
	}

	c.jmu.Lock()
	defer c.jmu.Unlock()

	cur := c.snap.Load()
	next := *cur
	switch t {
	case model.CacheTickets:
		next.tickets = newTicketIndex()
	case model.CacheQueues:
		next.queues = map[int64]model.Queue{}
	case model.CacheScreens:
		next.screens = map[int64]model.Screen{}
	case model.CacheParameters:
		next.params = map[string]string{}
	case model.CacheCounters:
		next.counters = map[int64]model.Counter{}
	case model.CacheKiosks:
		next.kiosks = map[int64]model.Kiosk{}
	case model.CacheAll:
		next = *emptySnapshot(cur.day)
		c.reloaded.Store(false)
	}
	c.snap.Store(&next)
	slog.Info("cache cleared", "type", t.String())
	return nil
}

// IsLoaded reports whether a reload has completed and queues are present.
func (c *Cache) IsLoaded() bool {
	return c.reloaded.Load() && len(c.snap.Load().queues) > 0
}

// IsReloading reports whether a reload is running.
func (c *Cache) IsReloading() bool {
	return c.reloading.Load()
}

// Day returns the day the current snapshot was built for.
func (c *Cache) Day() model.Day {
	return c.snap.Load().day
}

// LastReload returns the time of the last successful reload (zero if none).
func (c *Cache) LastReload() time.Time {
	if t := c.lastReload.Load(); t != nil {
		return *t
	}
	return time.Time{}
}

// ItemCount returns the total number of cached entities.
func (c *Cache) ItemCount() int {
	return itemCount(c.snap.Load())
}

func itemCount(s *snapshot) int {
	return len(s.queues) + len(s.counters) + len(s.screens) + len(s.kiosks) + len(s.params) + s.tickets.count()
}

// Queue returns a cached queue.
func (c *Cache) Queue(id int64) (model.Queue, bool) {
	q, ok := c.snap.Load().queues[id]
	return q, ok
}

// QueueByDepartment returns the cached queue bound to a department,
// preferring an active one with the lowest id.
func (c *Cache) QueueByDepartment(departmentID int64) (model.Queue, bool) {
	var (
		best  model.Queue
		found bool
	)
	for _, q := range c.snap.Load().queues {
		if q.DepartmentID != departmentID {
			continue
		}
		if !found || (q.Active && !best.Active) || (q.Active == best.Active && q.ID < best.ID) {
			best, found = q, true
		}
	}
	return best, found
}

// Queues returns all cached queues ordered by id.
func (c *Cache) Queues() []model.Queue {
	return sortedValues(c.snap.Load().queues, func(q model.Queue) int64 { return q.ID })
}

// Counter returns a cached counter.
func (c *Cache) Counter(id int64) (model.Counter, bool) {
	ct, ok := c.snap.Load().counters[id]
	return ct, ok
}

// CountersByQueue returns a queue's cached counters ordered by id.
func (c *Cache) CountersByQueue(queueID int64) []model.Counter {
	all := sortedValues(c.snap.Load().counters, func(ct model.Counter) int64 { return ct.ID })
	return slices.DeleteFunc(all, func(ct model.Counter) bool { return ct.QueueID != queueID })
}

// CounterByComputerName returns the cached counter bound to a workstation,
// comparing names case-insensitively and preferring an active counter with
// the lowest id.
func (c *Cache) CounterByComputerName(name string) (model.Counter, bool) {
	return c.counterBy(func(ct model.Counter) string { return ct.ComputerName }, name)
}

// CounterByName returns a cached counter by display name, case-insensitively.
func (c *Cache) CounterByName(name string) (model.Counter, bool) {
	return c.counterBy(func(ct model.Counter) string { return ct.Name }, name)
}

func (c *Cache) counterBy(field func(model.Counter) string, value string) (model.Counter, bool) {
	if value == "" {
		return model.Counter{}, false
	}
	var (
		best  model.Counter
		found bool
	)
	for _, ct := range c.snap.Load().counters {
		if !strings.EqualFold(field(ct), value) {
			continue
		}
		if !found || (ct.Active && !best.Active) || (ct.Active == best.Active && ct.ID < best.ID) {
			best, found = ct, true
		}
	}
	return best, found
}

// Kiosk returns a cached kiosk.
func (c *Cache) Kiosk(id int64) (model.Kiosk, bool) {
	k, ok := c.snap.Load().kiosks[id]
	return k, ok
}

// KioskByNameOrIP returns the cached kiosk whose name or IP address equals s,
// preferring an active one with the lowest id.
func (c *Cache) KioskByNameOrIP(s string) (model.Kiosk, bool) {
	var (
		best  model.Kiosk
		found bool
	)
	for _, k := range c.snap.Load().kiosks {
		if k.Name != s && k.IPAddress != s {
			continue
		}
		if !found || (k.Active && !best.Active) || (k.Active == best.Active && k.ID < best.ID) {
			best, found = k, true
		}
	}
	return best, found
}

// Kiosks returns all cached kiosks ordered by id.
func (c *Cache) Kiosks() []model.Kiosk {
	return sortedValues(c.snap.Load().kiosks, func(k model.Kiosk) int64 { return k.ID })
}

// Screen returns a cached screen.
func (c *Cache) Screen(id int64) (model.Screen, bool) {
	s, ok := c.snap.Load().screens[id]
	return s, ok
}

// Screens returns all cached screens ordered by id.
func (c *Cache) Screens() []model.Screen {
	return sortedValues(c.snap.Load().screens, func(s model.Screen) int64 { return s.ID })
}

// Parameter returns a cached parameter value.
func (c *Cache) Parameter(code string) (string, bool) {
	v, ok := c.snap.Load().params[code]
	return v, ok
}

// Parameters returns a copy of all cached parameters.
func (c *Cache) Parameters() map[string]string {
	return maps.Clone(c.snap.Load().params)
}

// ParameterLookup serves parameter reads from the cache; it never errors.
func (c *Cache) ParameterLookup() func(code string) (string, bool, error) {
	return func(code string) (string, bool, error) {
		v, ok := c.Parameter(code)
		return v, ok, nil
	}
}

// Tickets returns up to take of a queue's cached tickets (all when take <= 0)
// in service order. Cancelled tickets are never returned.
func (c *Cache) Tickets(queueID int64, take int) []model.Ticket {
	return c.snap.Load().tickets.tickets(queueID, take)
}

// Ticket returns a cached ticket by queue and id.
func (c *Cache) Ticket(queueID int64, id string) (model.Ticket, bool) {
	return c.snap.Load().tickets.find(queueID, func(t model.Ticket) bool { return t.ID == id })
}

// TicketByDisplayText returns a cached ticket by its display text.
func (c *Cache) TicketByDisplayText(queueID int64, displayText string) (model.Ticket, bool) {
	return c.snap.Load().tickets.find(queueID, func(t model.Ticket) bool { return t.DisplayText == displayText })
}

func sortedValues[V any](m map[int64]V, id func(V) int64) []V {
	out := slices.Collect(maps.Values(m))
	slices.SortFunc(out, func(a, b V) int {
		ia, ib := id(a), id(b)
		switch {
		case ia < ib:
			return -1
		case ia > ib:
			return 1
		}
		return 0
	})
	if out == nil {
		out = []V{}
	}
	return out
}

package workflow

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/roach88/qms/internal/cache"
	"github.com/roach88/qms/internal/model"
	"github.com/roach88/qms/internal/store"
	"github.com/roach88/qms/internal/testutil"
)

var (
	morning = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	today   = model.Day("2026-03-02")
)

type fixture struct {
	svc   *Service
	store *store.Store
	cache *cache.Cache
	clock *testutil.FakeClock
}

// newFixture opens a temp store seeded with:
//
//	queue 1 (department 10): counter 1 active 4 min, counter 2 inactive
//	queue 2 (department 20): counter 3 active, no duration
//	queue 3 (department 30): no counters
func newFixture(t *testing.T, parameters map[string]string) *fixture {
	t.Helper()
	ctx := context.Background()

	st, err := store.Open(filepath.Join(t.TempDir(), "qms.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	for _, q := range []model.Queue{
		{ID: 1, Name: "Cardiology", DepartmentID: 10, Active: true},
		{ID: 2, Name: "Radiology", DepartmentID: 20, Active: true},
		{ID: 3, Name: "Pharmacy", DepartmentID: 30, Active: true},
	} {
		require.NoError(t, st.UpsertQueue(ctx, q))
	}
	for _, c := range []model.Counter{
		{ID: 1, Name: "Room 1", QueueID: 1, Active: true, ProcessMinutes: 4},
		{ID: 2, Name: "Room 2", QueueID: 1, ProcessMinutes: 9},
		{ID: 3, Name: "X-Ray", QueueID: 2, Active: true},
	} {
		require.NoError(t, st.UpsertCounter(ctx, c))
	}
	for code, value := range parameters {
		require.NoError(t, st.SetParameter(ctx, code, value))
	}

	clock := testutil.NewFakeClock(morning)
	c := cache.New(st, clock)
	require.NoError(t, c.Init(ctx))
	t.Cleanup(c.Shutdown)

	return &fixture{
		svc:   New(st, c, clock, testutil.NewSequentialIDs("t"), Options{}),
		store: st,
		cache: c,
		clock: clock,
	}
}

func (f *fixture) create(t *testing.T, queueID int64, priority int, patient string) model.Ticket {
	t.Helper()
	res, err := f.svc.CreateTicket(context.Background(), CreateRequest{QueueID: queueID, Priority: priority, PatientCode: patient})
	require.NoError(t, err)
	require.Equal(t, Created, res.Outcome)
	return res.Ticket
}

func (f *fixture) setState(t *testing.T, queueID int64, text string, st model.State) model.Ticket {
	t.Helper()
	got, err := f.svc.UpdateState(context.Background(), UpdateStateRequest{QueueID: queueID, DisplayText: text, State: st})
	require.NoError(t, err)
	return got
}

func texts(ts []model.Ticket) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.DisplayText
	}
	return out
}

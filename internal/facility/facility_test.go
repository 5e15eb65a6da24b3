package facility

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qms/internal/model"
	"github.com/roach88/qms/internal/store"
)

func TestLoad(t *testing.T) {
	def, err := Load("testdata/hospital.cue")
	require.NoError(t, err)

	require.Len(t, def.Screens, 1)
	assert.Equal(t, model.Screen{ID: 1, Code: "HALL", Name: "Main Hall", Active: true, DisplayRows: 6}, def.Screens[0])

	require.Len(t, def.Queues, 3)
	assert.Equal(t, model.Queue{ID: 2, Name: "Radiology", DepartmentID: 20, Active: true, ScreenID: 1, MaxDisplayed: 4}, def.Queues[1])
	assert.False(t, def.Queues[2].Active)

	require.Len(t, def.Counters, 3)
	assert.True(t, def.Counters[1].Active, "active defaults to true")
	assert.Zero(t, def.Counters[1].ProcessMinutes)

	require.Len(t, def.Kiosks, 1)
	k := def.Kiosks[0]
	assert.Equal(t, "Lobby Kiosk", k.Name)
	assert.True(t, k.Active)
	require.Len(t, k.Queues, 2)
	assert.Equal(t, model.KioskQueue{QueueID: 1, DisplayText: "Heart clinic", Priority: 1, DisplayOrder: 1, Active: true}, k.Queues[1])

	assert.Equal(t, "Bach Mai", def.Parameters["HospitalName"])
}

func TestLoad_UnifiesFiles(t *testing.T) {
	def, err := Load("testdata/hospital.cue", "testdata/overrides.cue")
	require.NoError(t, err)
	assert.Equal(t, "3", def.Parameters["DisplacementLimit"])
	assert.Equal(t, "4", def.Parameters["DigitWidth"])
	assert.Len(t, def.Queues, 3)
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load()
	assert.True(t, model.IsInvalidArgument(err))

	_, err = Load("testdata/missing.cue")
	assert.Error(t, err)

	conflict := filepath.Join(t.TempDir(), "conflict.cue")
	require.NoError(t, os.WriteFile(conflict, []byte(`parameters: DigitWidth: "5"`), 0o644))
	_, err = Load("testdata/hospital.cue", conflict)
	assert.True(t, model.IsInvalidArgument(err))
}

func TestParse_Rejects(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"syntax", `queues: [`, ""},
		{"unknown field", `queues: [{id: 1, name: "A", colour: "red"}]`, "colour"},
		{"missing name", `queues: [{id: 1}]`, ""},
		{"negative id", `screens: [{id: -1, code: "X", name: "X"}]`, ""},
		{"bad count parameter", `parameters: DigitWidth: "four"`, ""},
		{"bad flag parameter", `parameters: PriorityPrefix: "yes"`, ""},
		{"bad day start", `parameters: DayStartTime: "24:00"`, ""},
		{"non-string parameter", `parameters: HospitalName: 3`, ""},
		{"duplicate queue", `queues: [{id: 1, name: "A"}, {id: 1, name: "B"}]`, "duplicate queue id 1"},
		{"duplicate screen", `screens: [{id: 1, code: "A", name: "A"}, {id: 1, code: "B", name: "B"}]`, "duplicate screen id 1"},
		{"duplicate counter", `queues: [{id: 1, name: "A"}], counters: [{id: 1, name: "A", queue_id: 1}, {id: 1, name: "B", queue_id: 1}]`, "duplicate counter id 1"},
		{"dangling counter", `counters: [{id: 1, name: "A", queue_id: 9}]`, "unknown queue 9"},
		{"dangling screen", `queues: [{id: 1, name: "A", screen_id: 4}]`, "unknown screen 4"},
		{"unknown counter field", `queues: [{id: 1, name: "A"}], counters: [{id: 1, name: "A", queue_id: 1, room: 2}]`, "room"},
		{"unknown kiosk field", `kiosks: [{id: 1, name: "K", printer: "P1"}]`, "printer"},
		{"duplicate kiosk", `kiosks: [{id: 1, name: "A"}, {id: 1, name: "B"}]`, "duplicate kiosk id 1"},
		{"dangling kiosk queue", `kiosks: [{id: 1, name: "A", queues: [{queue_id: 5}]}]`, "unknown queue 5"},
		{"repeated kiosk queue", `queues: [{id: 1, name: "A"}], kiosks: [{id: 1, name: "K", queues: [{queue_id: 1}, {queue_id: 1}]}]`, "queue 1 twice"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("facility.cue", []byte(tt.src))
			require.Error(t, err)
			assert.True(t, model.IsInvalidArgument(err), "got %v", err)
			if tt.want != "" {
				assert.Contains(t, err.Error(), tt.want)
			}
		})
	}
}

func TestParse_Empty(t *testing.T) {
	def, err := Parse("empty.cue", nil)
	require.NoError(t, err)
	assert.Empty(t, def.Queues)
	assert.Empty(t, def.Kiosks)
	assert.NotNil(t, def.Parameters)
}

func TestSeed(t *testing.T) {
	ctx := context.Background()
	st, err := store.Open(filepath.Join(t.TempDir(), "qms.db"))
	require.NoError(t, err)
	defer st.Close()

	def, err := Load("testdata/hospital.cue")
	require.NoError(t, err)

	res, err := Seed(ctx, st, def)
	require.NoError(t, err)
	assert.Equal(t, SeedResult{Screens: 1, Queues: 3, Counters: 3, Kiosks: 1, Parameters: 4}, res)

	queues, err := st.Queues(ctx)
	require.NoError(t, err)
	assert.Equal(t, def.Queues, queues)

	counters, err := st.CountersByQueue(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, counters, 2)

	kiosks, err := st.Kiosks(ctx)
	require.NoError(t, err)
	require.Len(t, kiosks, 1)
	assert.Equal(t, []int64{1, 2}, []int64{kiosks[0].Queues[0].QueueID, kiosks[0].Queues[1].QueueID}, "ordered by display order")

	v, ok, err := st.ParameterValue(ctx, "DayStartTime")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "7:30", v)

	// Seeding again updates in place.
	def.Queues[0].Name = "Cardiology A"
	_, err = Seed(ctx, st, def)
	require.NoError(t, err)
	q, err := st.Queue(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, "Cardiology A", q.Name)
}

package display

import (
	"bytes"
	"testing"

	"github.com/muesli/termenv"
	"github.com/sebdah/goldie/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/qms/internal/cache"
	"github.com/roach88/qms/internal/model"
)

var _ KioskSource = (*cache.Cache)(nil)

type fakeKioskSource struct {
	fakeSource
	kiosks []model.Kiosk
}

func (f fakeKioskSource) KioskByNameOrIP(s string) (model.Kiosk, bool) {
	for _, k := range f.kiosks {
		if k.Name == s || k.IPAddress == s {
			return k, true
		}
	}
	return model.Kiosk{}, false
}

func (f fakeKioskSource) Queue(id int64) (model.Queue, bool) {
	for _, q := range f.queues {
		if q.ID == id {
			return q, true
		}
	}
	return model.Queue{}, false
}

func lobby() fakeKioskSource {
	return fakeKioskSource{
		fakeSource: mainHall(),
		kiosks: []model.Kiosk{{
			ID: 1, Name: "Lobby Kiosk", Active: true, IPAddress: "10.0.1.20",
			Queues: []model.KioskQueue{
				{QueueID: 2, DisplayText: "X-Ray", DisplayOrder: 2, Active: true},
				{QueueID: 1, DisplayText: "Heart clinic", DisplayOrder: 1, Priority: 1, Active: true},
				{QueueID: 4, DisplayText: "Lab", DisplayOrder: 3, Active: true},
				{QueueID: 3, DisplayOrder: 4, Active: true},
				{QueueID: 5, DisplayText: "Dental", Active: false},
				{QueueID: 9, DisplayText: "Gone", Active: true},
			},
		}},
	}
}

func TestKiosk(t *testing.T) {
	v, err := Kiosk(lobby(), "10.0.1.20")
	require.NoError(t, err)

	assert.Equal(t, "Lobby Kiosk", v.KioskName)
	require.Len(t, v.Queues, 3, "inactive bindings and inactive or unknown queues are skipped")

	assert.Equal(t, KioskQueue{QueueID: 1, Name: "Heart clinic", QueueName: "Cardiology", ScreenID: 1, Priority: 1, DisplayOrder: 1, Waiting: 3}, v.Queues[0])
	assert.Equal(t, int64(2), v.Queues[1].QueueID)
	assert.Equal(t, 2, v.Queues[1].Waiting)
	assert.Equal(t, "Pharmacy", v.Queues[2].Name, "queue name fills an empty button text")
}

func TestKiosk_NotFound(t *testing.T) {
	_, err := Kiosk(lobby(), "10.0.9.9")
	assert.True(t, model.IsNotFound(err))
}

func TestRenderKiosk(t *testing.T) {
	v, err := Kiosk(lobby(), "Lobby Kiosk")
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, RenderKiosk(&buf, v, termenv.Ascii))

	g := goldie.New(t)
	g.Assert(t, "lobby_kiosk", buf.Bytes())
}

func TestRenderKiosk_Empty(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, RenderKiosk(&buf, KioskView{KioskName: "Bare", Day: "2026-03-02"}, termenv.Ascii))
	assert.Equal(t, "Bare | 2026-03-02\n  no queues\n", buf.String())
}

package replay

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/overlay-telemetry-core/pkg/game"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/model"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/recorder"
)

type collector struct {
	mu        sync.Mutex
	snapshots []*model.Snapshot
	statuses  []game.Status
}

func (c *collector) Data(s *model.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.snapshots = append(c.snapshots, s)
}

func (c *collector) StatusChanged(st game.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.statuses = append(c.statuses, st)
}

func (c *collector) collected() ([]*model.Snapshot, []game.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*model.Snapshot{}, c.snapshots...),
		append([]game.Status{}, c.statuses...)
}

func sampleSnapshots() []*model.Snapshot {
	ret := []*model.Snapshot{}
	for i := range 5 {
		ret = append(ret, &model.Snapshot{
			Game: model.GameIRacing,
			Realtime: model.Realtime{
				Gear:       i,
				SpeedKmh:   100.5 + float64(i),
				OnTrack:    i > 0,
				InReplay:   i == 4,
				LapDistPct: 0.125 * float64(i),
			},
			Drivers: []model.Driver{
				{Idx: 1, Name: "A", Position: 1, TotalDistance: 1.5},
				{Idx: 2, Name: "B", Position: 2, IRatingDelta: -12},
			},
			Session: model.Session{TrackName: "Spa", AirTempC: 21.5},
		})
	}
	return ret
}

func writeRecording(t *testing.T, frames []*model.Snapshot) string {
	t.Helper()
	filename := filepath.Join(t.TempDir(), "rec.json")
	now := time.Unix(0, 0)
	r, err := recorder.Open(filename, 10, recorder.WithClock(func() time.Time { return now }))
	require.NoError(t, err)
	for _, s := range frames {
		ok, err := r.Write(s)
		require.NoError(t, err)
		require.True(t, ok)
		now = now.Add(100 * time.Millisecond)
	}
	require.NoError(t, r.Close())
	return filename
}

func TestAdapter_RoundTrip(t *testing.T) {
	frames := sampleSnapshots()
	c := &collector{}
	a := New(c, WithFile(writeRecording(t, frames)))
	a.Connect(time.Millisecond)

	assert.Eventually(t, func() bool {
		got, _ := c.collected()
		return len(got) == len(frames) && !a.Status().Connected
	}, 2*time.Second, 5*time.Millisecond)

	got, statuses := c.collected()
	if diff := cmp.Diff(frames, got, cmpopts.IgnoreUnexported(model.Snapshot{})); diff != "" {
		t.Errorf("replay mismatch (-want +got):\n%s", diff)
	}
	for _, s := range got {
		assert.Equal(t, model.GameIRacing, s.Game)
	}
	assert.Equal(t, []game.Status{
		{Connected: true},
		{Connected: true, OnTrack: true},
		{Connected: true, OnTrack: true, InReplay: true},
		{},
	}, statuses)

	// disconnect after the replay finished on its own is a no-op
	a.Disconnect()
	_, statuses = c.collected()
	assert.Len(t, statuses, 4)
}

func TestAdapter_DisconnectStopsPlayback(t *testing.T) {
	c := &collector{}
	a := New(c, WithFile(writeRecording(t, sampleSnapshots())))
	a.Connect(time.Hour)
	a.Disconnect()

	got, statuses := c.collected()
	assert.Empty(t, got)
	assert.Equal(t, game.Status{}, a.Status())
	if len(statuses) > 0 {
		assert.Equal(t, game.Status{}, statuses[len(statuses)-1])
	}
}

func TestAdapter_MissingFile(t *testing.T) {
	c := &collector{}
	a := New(c, WithFile(filepath.Join(t.TempDir(), "missing.json")))
	a.Connect(time.Millisecond)
	assert.False(t, a.Status().Connected)
	a.Disconnect()
	_, statuses := c.collected()
	assert.Empty(t, statuses)
}

func TestAdapter_NoFile(t *testing.T) {
	a := New(&collector{})
	a.Connect(time.Millisecond)
	assert.False(t, a.Status().Connected)
}

func TestAdapter_Reconnect(t *testing.T) {
	frames := sampleSnapshots()[:2]
	c := &collector{}
	a := New(c, WithFile(writeRecording(t, frames)))
	for i := range 2 {
		a.Connect(time.Millisecond)
		assert.Eventually(t, func() bool {
			got, _ := c.collected()
			return len(got) == 2*(i+1) && !a.Status().Connected
		}, 2*time.Second, 5*time.Millisecond)
		a.Disconnect()
	}
}

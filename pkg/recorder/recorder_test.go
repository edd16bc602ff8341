//nolint:errcheck // test code
package recorder

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/overlay-telemetry-core/pkg/model"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

func (c *fakeClock) advance(d time.Duration) {
	c.now = c.now.Add(d)
}

func snapshot(gear int) *model.Snapshot {
	return &model.Snapshot{
		Game:     model.GameIRacing,
		Realtime: model.Realtime{Gear: gear},
		Drivers:  []model.Driver{},
	}
}

func readGears(t *testing.T, filename string) []int {
	t.Helper()
	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	var records []model.Snapshot
	require.NoError(t, json.Unmarshal(data, &records))
	ret := make([]int, 0, len(records))
	for i := range records {
		ret = append(ret, records[i].Realtime.Gear)
	}
	return ret
}

func TestRecorder_Throttle(t *testing.T) {
	clock := &fakeClock{now: time.Unix(1000, 0)}
	filename := filepath.Join(t.TempDir(), "sub", "dir", "rec.json")
	r, err := Open(filename, 10, WithClock(clock.Now))
	require.NoError(t, err)
	assert.Equal(t, 100*time.Millisecond, r.Interval())

	steps := []struct {
		advance time.Duration
		want    bool
	}{
		{0, true},
		{50 * time.Millisecond, false},
		{49 * time.Millisecond, false},
		{1 * time.Millisecond, true},
		{200 * time.Millisecond, true},
	}
	for i, s := range steps {
		clock.advance(s.advance)
		ok, err := r.Write(snapshot(i))
		require.NoError(t, err)
		assert.Equal(t, s.want, ok, "step %d", i)
	}
	assert.Equal(t, 3, r.Frames())
	require.NoError(t, r.Close())
	assert.Equal(t, []int{0, 3, 4}, readGears(t, filename))
}

func TestRecorder_Empty(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "rec.json")
	r, err := Open(filename, 0)
	require.NoError(t, err)
	assert.Equal(t, time.Second/DefaultFps, r.Interval())
	require.NoError(t, r.Close())

	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Equal(t, "[]", string(data))
}

func TestRecorder_Closed(t *testing.T) {
	r, err := Open(filepath.Join(t.TempDir(), "rec.json"), 10)
	require.NoError(t, err)
	require.NoError(t, r.Close())
	assert.ErrorIs(t, r.Close(), ErrClosed)
	_, err = r.Write(snapshot(1))
	assert.ErrorIs(t, err, ErrClosed)
}

func TestRecorder_OpenFails(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o600))
	_, err := Open(filepath.Join(blocker, "rec.json"), 10)
	assert.Error(t, err)
}

func TestRecorder_OpenKeepsExistingFile(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "rec.json")
	require.NoError(t, os.WriteFile(filename, []byte("keep me"), 0o600))

	_, err := Open(filename, 10)
	require.ErrorIs(t, err, os.ErrExist)
	data, err := os.ReadFile(filename)
	require.NoError(t, err)
	assert.Equal(t, "keep me", string(data))
}

var errDiskFull = errors.New("disk full")

type failingWriter struct {
	closed bool
}

func (w *failingWriter) Write(p []byte) (int, error) { return 0, errDiskFull }
func (w *failingWriter) Close() error                { w.closed = true; return nil }

func TestRecorder_WriteError(t *testing.T) {
	r, err := Open(filepath.Join(t.TempDir(), "rec.json"), 10)
	require.NoError(t, err)
	r.out.Close()
	w := &failingWriter{}
	r.out = w

	ok, err := r.Write(snapshot(1))
	assert.False(t, ok)
	require.ErrorIs(t, err, errDiskFull)
	assert.True(t, w.closed)
	assert.ErrorIs(t, r.Close(), ErrClosed)
}

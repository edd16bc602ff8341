package replay

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/overlay-telemetry-core/pkg/model"
)

const validRecord = `{"game":"iracing","realtime":{"gear":3},"drivers":[{"idx":1}],"session":{"trackName":"Spa"}}`

func TestParse(t *testing.T) {
	data := "[" + validRecord + `,
		42,
		{"realtime":{},"drivers":[],"session":"spa"},
		{"realtime":{},"session":{}},
		{"realtime":[],"drivers":[],"session":{}},
		{"game":"","realtime":{},"drivers":[],"session":{}}
	]`
	rec, err := Parse([]byte(data))
	require.NoError(t, err)

	require.Len(t, rec.Frames, 2)
	assert.Equal(t, model.GameIRacing, rec.Frames[0].Game)
	assert.Equal(t, 3, rec.Frames[0].Realtime.Gear)
	assert.Equal(t, "Spa", rec.Frames[0].Session.TrackName)
	assert.Equal(t, []model.Driver{{Idx: 1}}, rec.Frames[0].Drivers)
	assert.Equal(t, model.GameNone, rec.Frames[1].Game)

	require.Len(t, rec.Dropped, 4)
	want := []Invalid{
		{Index: 1, Err: ErrNotAnObject},
		{Index: 2, Err: ErrInvalidSession},
		{Index: 3, Err: ErrInvalidDrivers},
		{Index: 4, Err: ErrInvalidRealtime},
	}
	for i, w := range want {
		assert.Equal(t, w.Index, rec.Dropped[i].Index)
		assert.ErrorIs(t, rec.Dropped[i].Err, w.Err)
	}
}

func TestParse_NotAnArray(t *testing.T) {
	for _, data := range []string{`{}`, `nope`, ``} {
		_, err := Parse([]byte(data))
		assert.ErrorIs(t, err, ErrNotAnArray, "input %q", data)
	}
}

func TestLoad(t *testing.T) {
	filename := filepath.Join(t.TempDir(), "rec.json")
	require.NoError(t, os.WriteFile(filename, []byte("["+validRecord+"]"), 0o600))
	rec, err := Load(filename)
	require.NoError(t, err)
	assert.Len(t, rec.Frames, 1)
	assert.Empty(t, rec.Dropped)

	_, err = Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

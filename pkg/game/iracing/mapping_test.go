package iracing

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/overlay-telemetry-core/pkg/model"
)

const sampleSessionInfo = `
WeekendInfo:
  TrackDisplayName: Circuit de Spa-Francorchamps
  TrackConfigName: Grand Prix Pits
  TrackLength: 6.93 km
SessionInfo:
  Sessions:
  - SessionNum: 0
    SessionType: Practice
  - SessionNum: 1
    SessionType: Race
DriverInfo:
  DriverCarIdx: 1
  DriverCarRedLine: 8000.000
  DriverCarSLFirstRPM: 6000.000
  DriverCarSLShiftRPM: 7000.000
  DriverCarSLLastRPM: 7500.000
  DriverCarSLBlinkRPM: 7800.000
  Drivers:
  - CarIdx: 0
    UserName: Pace Car
    CarIsPaceCar: 1
  - CarIdx: 1
    UserName: Player One
    CarNumber: "7"
    CarClassID: 10
    CarClassShortName: GT3
    IRating: 2000
    LicString: A 3.21
  - CarIdx: 2
    UserName: Other Driver
    CarNumber: "42"
    CarClassID: 10
    CarClassShortName: GT3
    IRating: 2000
    LicString: B 2.50
  - CarIdx: 3
    UserName: Watching
    IsSpectator: 1
`

func sampleFrame() *Frame {
	onTrack := true
	return &Frame{
		SessionInfoUpdate:  1,
		SessionInfo:        sampleSessionInfo,
		Throttle:           0.75,
		SteeringWheelAngle: -maxSteeringAngle / 2,
		Gear:               4,
		Speed:              50,
		RPM:                6500,
		IsOnTrack:          &onTrack,
		PlayerCarIdx:       1,
		SessionNum:         1,
		AirTemp:            20,
		TrackTempCrew:      30,
		CarIdxLap:          []int{0, 3, 3, 0},
		CarIdxLapCompleted: []int{0, 2, 2, 0},
		CarIdxLapDistPct:   []float64{0.1, 0.4, 0.6, -1},
		CarIdxTrackSurface: []int{3, 3, 3, -1},
		CarIdxPosition:     []int{0, 2, 1, 0},
		CarIdxOnPitRoad:    []bool{false, false, true, false},
		CarIdxLastLapTime:  []float64{0, 140.5, 139.9, 0},
		CarIdxBestLapTime:  []float64{0, 139.1, 138.7, 0},
	}
}

func TestMapper_Map(t *testing.T) {
	m := NewMapper()
	f := sampleFrame()
	require.NoError(t, m.UpdateSessionInfo(f))
	s := m.Map(f)

	assert.Equal(t, model.GameIRacing, s.Game)
	assert.InDelta(t, 180.0, s.Realtime.SpeedKmh, 1e-9)
	assert.InDelta(t, 111.85, s.Realtime.SpeedMph, 0.01)
	assert.InDelta(t, -50.0, s.Realtime.SteeringPct, 1e-9)
	assert.InDelta(t, 7000.0, s.Realtime.RPMShift, 1e-9)
	assert.True(t, s.Realtime.OnTrack)
	assert.Equal(t, 2, s.Realtime.Position)
	assert.Equal(t, 2, s.Realtime.ClassPosition)

	assert.Equal(t, "Circuit de Spa-Francorchamps", s.Session.TrackName)
	assert.InDelta(t, 6.93, s.Session.TrackLengthKm, 1e-9)
	assert.Equal(t, "Race", s.Session.SessionType)
	assert.InDelta(t, 68.0, s.Session.AirTempF, 1e-9)
	assert.InDelta(t, 86.0, s.Session.TrackTempF, 1e-9)

	// pace car and spectators are not part of the field
	require.Len(t, s.Drivers, 2)
	leader, player := s.Drivers[0], s.Drivers[1]
	assert.Equal(t, 2, leader.Idx)
	assert.Equal(t, "Other Driver", leader.Name)
	assert.Equal(t, 1, leader.Position)
	assert.True(t, leader.InPits)
	assert.Equal(t, 100, leader.IRatingDelta)
	assert.Equal(t, 1, player.Idx)
	assert.True(t, player.IsPlayer)
	assert.Equal(t, -100, player.IRatingDelta)
	assert.InDelta(t, 2.4, player.TotalDistance, 1e-9)
}

func TestMapper_UpdateSessionInfo(t *testing.T) {
	m := NewMapper()
	f := sampleFrame()
	require.NoError(t, m.UpdateSessionInfo(f))

	// same update counter, content is not parsed again
	f.SessionInfo = "WeekendInfo: [unclosed"
	require.NoError(t, m.UpdateSessionInfo(f))

	f.SessionInfoUpdate = 2
	require.Error(t, m.UpdateSessionInfo(f))
	// previous info is kept on error
	assert.Equal(t, "Race", m.Map(f).Session.SessionType)
}

func TestMapper_MapWithoutSessionInfo(t *testing.T) {
	s := NewMapper().Map(&Frame{Speed: 10})
	assert.Empty(t, s.Drivers)
	assert.NotNil(t, s.Drivers)
	assert.InDelta(t, 36.0, s.Realtime.SpeedKmh, 1e-9)
}

func TestSteeringPct(t *testing.T) {
	assert.InDelta(t, 0.0, steeringPct(0), 1e-9)
	assert.InDelta(t, 100.0, steeringPct(2*maxSteeringAngle), 1e-9)
	assert.InDelta(t, -100.0, steeringPct(-2*maxSteeringAngle), 1e-9)
}

func TestPlayerOnTrack(t *testing.T) {
	yes, no := true, false
	surface := SurfaceInPitStall
	assert.True(t, playerOnTrack(&Frame{IsOnTrack: &yes, PlayerTrackSurface: &surface}))
	assert.False(t, playerOnTrack(&Frame{IsOnTrack: &no}))
	assert.False(t, playerOnTrack(&Frame{PlayerTrackSurface: &surface}))
	surface = SurfaceOnTrack
	assert.True(t, playerOnTrack(&Frame{PlayerTrackSurface: &surface}))
	assert.False(t, playerOnTrack(&Frame{}))
}

func TestParseTrackLength(t *testing.T) {
	assert.InDelta(t, 5.79, parseTrackLength("5.79 km"), 1e-9)
	assert.InDelta(t, 1.609344, parseTrackLength("1.00 mi"), 1e-9)
	assert.InDelta(t, 0.0, parseTrackLength(""), 1e-9)
	assert.InDelta(t, 0.0, parseTrackLength("n/a km"), 1e-9)
}

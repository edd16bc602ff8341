package iracing

import (
	"math"
	"strconv"
	"strings"

	"github.com/samber/lo"
	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/overlay-telemetry-core/pkg/model"
)

const (
	msToKmh = 3.6
	msToMph = 2.2369363
	// steering input is normalized against a fixed wheel range of +/-450 deg
	maxSteeringAngle = 450 * math.Pi / 180
)

// Mapper converts raw frames into snapshots. It keeps the latest session
// info since the sim sends it only when it changes.
type Mapper struct {
	sessionInfo       *SessionInfo
	sessionInfoUpdate int
}

func NewMapper() *Mapper {
	return &Mapper{sessionInfoUpdate: -1}
}

// UpdateSessionInfo parses the yaml session info if the frame carries a
// newer version.
func (m *Mapper) UpdateSessionInfo(f *Frame) error {
	if f.SessionInfo == "" || f.SessionInfoUpdate == m.sessionInfoUpdate {
		return nil
	}
	info := SessionInfo{}
	if err := yaml.Unmarshal([]byte(f.SessionInfo), &info); err != nil {
		return err
	}
	m.sessionInfo = &info
	m.sessionInfoUpdate = f.SessionInfoUpdate
	return nil
}

func (m *Mapper) Map(f *Frame) *model.Snapshot {
	info := m.sessionInfo
	if info == nil {
		info = &SessionInfo{}
	}
	drivers := m.mapDrivers(f, info)
	ret := &model.Snapshot{
		Game:     model.GameIRacing,
		Realtime: m.mapRealtime(f, info),
		Drivers:  drivers,
		Session:  m.mapSession(f, info),
	}
	if player, ok := lo.Find(drivers, func(d model.Driver) bool {
		return d.IsPlayer
	}); ok {
		ret.Realtime.Position = player.Position
		ret.Realtime.ClassPosition = player.ClassPosition
	}
	return ret
}

func (m *Mapper) mapRealtime(f *Frame, info *SessionInfo) model.Realtime {
	return model.Realtime{
		Throttle:         f.Throttle,
		Brake:            f.Brake,
		Clutch:           f.Clutch,
		SteeringPct:      steeringPct(f.SteeringWheelAngle),
		Gear:             f.Gear,
		SpeedKmh:         f.Speed * msToKmh,
		SpeedMph:         f.Speed * msToMph,
		RPM:              f.RPM,
		RPMFirst:         info.DriverInfo.DriverCarSLFirstRPM,
		RPMShift:         info.DriverInfo.DriverCarSLShiftRPM,
		RPMLast:          info.DriverInfo.DriverCarSLLastRPM,
		RPMBlink:         info.DriverInfo.DriverCarSLBlinkRPM,
		RPMRedline:       info.DriverInfo.DriverCarRedLine,
		OnTrack:          playerOnTrack(f),
		InReplay:         f.IsReplayPlaying,
		Lap:              f.Lap,
		LapDistPct:       f.LapDistPct,
		LapTimeCurrent:   f.LapCurrentLapTime,
		LapTimeLast:      f.LapLastLapTime,
		LapTimeBest:      f.LapBestLapTime,
		DeltaBest:        f.LapDeltaToBestLap,
		DeltaSessionBest: f.LapDeltaToSessionBestLap,
		DeltaOptimal:     f.LapDeltaToOptimalLap,
		FuelLevel:        f.FuelLevel,
	}
}

func (m *Mapper) mapSession(f *Frame, info *SessionInfo) model.Session {
	sessionType := ""
	for _, s := range info.SessionInfo.Sessions {
		if s.SessionNum == f.SessionNum {
			sessionType = s.SessionType
		}
	}
	return model.Session{
		TrackName:         info.WeekendInfo.TrackDisplayName,
		TrackConfig:       info.WeekendInfo.TrackConfigName,
		TrackLengthKm:     parseTrackLength(info.WeekendInfo.TrackLength),
		Wetness:           f.TrackWetness,
		AirTempC:          f.AirTemp,
		AirTempF:          celsiusToFahrenheit(f.AirTemp),
		TrackTempC:        f.TrackTempCrew,
		TrackTempF:        celsiusToFahrenheit(f.TrackTempCrew),
		SessionType:       sessionType,
		SessionTime:       f.SessionTime,
		SessionTimeRemain: f.SessionTimeRemain,
		LapsRemain:        f.SessionLapsRemainEx,
		Flags:             f.SessionFlags,
	}
}

//nolint:funlen // mapping table
func (m *Mapper) mapDrivers(f *Frame, info *SessionInfo) []model.Driver {
	entries := lo.Filter(info.DriverInfo.Drivers, func(d DriverInfo, _ int) bool {
		return d.CarIsPaceCar == 0 && d.IsSpectator == 0 &&
			d.CarIdx >= 0 && d.CarIdx < len(f.CarIdxLapDistPct)
	})
	progress := lo.Map(entries, func(d DriverInfo, _ int) carProgress {
		return carProgress{
			carIdx:        d.CarIdx,
			classID:       d.CarClassID,
			lap:           intAt(f.CarIdxLap, d.CarIdx),
			lapsCompleted: intAt(f.CarIdxLapCompleted, d.CarIdx),
			lapDistPct:    floatAt(f.CarIdxLapDistPct, d.CarIdx),
			official:      intAt(f.CarIdxPosition, d.CarIdx),
		}
	})
	ordered := liveOrder(progress)
	pos := assignPositions(ordered)
	byIdx := lo.KeyBy(entries, func(d DriverInfo) int { return d.CarIdx })
	deltas := ratingDeltas(lo.Map(ordered, func(c carProgress, _ int) ratingEntry {
		return ratingEntry{
			carIdx:   c.carIdx,
			classID:  c.classID,
			rating:   byIdx[c.carIdx].IRating,
			classPos: pos[c.carIdx].class,
		}
	}))

	ret := make([]model.Driver, 0, len(ordered))
	for _, c := range ordered {
		d := byIdx[c.carIdx]
		surface := intAt(f.CarIdxTrackSurface, c.carIdx)
		ret = append(ret, model.Driver{
			Idx:              c.carIdx,
			Name:             d.UserName,
			CarNumber:        d.CarNumber,
			ClassID:          d.CarClassID,
			ClassName:        d.CarClassShortName,
			Position:         pos[c.carIdx].overall,
			ClassPosition:    pos[c.carIdx].class,
			OfficialPosition: c.official,
			Lap:              c.lap,
			LapsCompleted:    c.lapsCompleted,
			LapDistPct:       c.lapDistPct,
			TotalDistance:    finiteOrZero(totalDistance(c)),
			IRating:          d.IRating,
			IRatingDelta:     deltas[c.carIdx],
			License:          d.LicString,
			OnTrack:          surfaceOnTrack(surface),
			InPits:           boolAt(f.CarIdxOnPitRoad, c.carIdx),
			IsPlayer:         c.carIdx == f.PlayerCarIdx,
			LastLapTime:      floatAt(f.CarIdxLastLapTime, c.carIdx),
			BestLapTime:      floatAt(f.CarIdxBestLapTime, c.carIdx),
		})
	}
	return ret
}

func steeringPct(angle float64) float64 {
	pct := angle / maxSteeringAngle * 100
	return math.Max(-100, math.Min(100, pct))
}

func surfaceOnTrack(surface int) bool {
	return surface == SurfaceOnTrack || surface == SurfaceOffTrack
}

// the direct flag wins, the track surface is used if the flag is missing
func playerOnTrack(f *Frame) bool {
	if f.IsOnTrack != nil {
		return *f.IsOnTrack
	}
	if f.PlayerTrackSurface != nil {
		return surfaceOnTrack(*f.PlayerTrackSurface)
	}
	return false
}

func celsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

// parses values like "5.79 km"
func parseTrackLength(s string) float64 {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return 0
	}
	v, err := strconv.ParseFloat(fields[0], 64)
	if err != nil {
		return 0
	}
	if len(fields) > 1 && fields[1] == "mi" {
		return v * 1.609344
	}
	return v
}

func finiteOrZero(v float64) float64 {
	if math.IsInf(v, 0) || math.IsNaN(v) {
		return 0
	}
	return v
}

func intAt(data []int, idx int) int {
	if idx < 0 || idx >= len(data) {
		return 0
	}
	return data[idx]
}

func floatAt(data []float64, idx int) float64 {
	if idx < 0 || idx >= len(data) {
		return -1
	}
	return data[idx]
}

func boolAt(data []bool, idx int) bool {
	if idx < 0 || idx >= len(data) {
		return false
	}
	return data[idx]
}

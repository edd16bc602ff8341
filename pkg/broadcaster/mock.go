package broadcaster

import (
	_ "embed"
	"math"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/mpapenbr/overlay-telemetry-core/pkg/model"
)

//go:embed mock_data.yaml
var mockData []byte

// progress of the mock cars per tick in fractions of a lap
const mockLapStep = 0.002

type mockFixture struct {
	Game      model.GameName `yaml:"game"`
	PlayerIdx int            `yaml:"playerIdx"`
	RPM       struct {
		First   float64 `yaml:"first"`
		Shift   float64 `yaml:"shift"`
		Last    float64 `yaml:"last"`
		Blink   float64 `yaml:"blink"`
		Redline float64 `yaml:"redline"`
	} `yaml:"rpm"`
	Session struct {
		TrackName         string  `yaml:"trackName"`
		TrackConfig       string  `yaml:"trackConfig"`
		TrackLengthKm     float64 `yaml:"trackLengthKm"`
		Wetness           int     `yaml:"wetness"`
		AirTempC          float64 `yaml:"airTempC"`
		TrackTempC        float64 `yaml:"trackTempC"`
		SessionType       string  `yaml:"sessionType"`
		SessionTimeRemain float64 `yaml:"sessionTimeRemain"`
	} `yaml:"session"`
	Drivers []struct {
		Idx        int     `yaml:"idx"`
		Name       string  `yaml:"name"`
		CarNumber  string  `yaml:"carNumber"`
		ClassID    int     `yaml:"classId"`
		ClassName  string  `yaml:"className"`
		IRating    int     `yaml:"iRating"`
		License    string  `yaml:"license"`
		LapDistPct float64 `yaml:"lapDistPct"`
	} `yaml:"drivers"`
	Frames []struct {
		Throttle    float64 `yaml:"throttle"`
		Brake       float64 `yaml:"brake"`
		Clutch      float64 `yaml:"clutch"`
		SteeringPct float64 `yaml:"steeringPct"`
		Gear        int     `yaml:"gear"`
		SpeedKmh    float64 `yaml:"speedKmh"`
		RPM         float64 `yaml:"rpm"`
	} `yaml:"frames"`
}

// MockGenerator produces deterministic preview snapshots by cycling
// through a fixture table.
type MockGenerator struct {
	mu      sync.Mutex
	fixture mockFixture
	tick    int
}

// NewMockGenerator uses the embedded fixture.
func NewMockGenerator() *MockGenerator {
	g, err := NewMockGeneratorFromYAML(mockData)
	if err != nil {
		panic(err)
	}
	return g
}

func NewMockGeneratorFromYAML(data []byte) (*MockGenerator, error) {
	ret := &MockGenerator{}
	if err := yaml.Unmarshal(data, &ret.fixture); err != nil {
		return nil, err
	}
	return ret, nil
}

func (g *MockGenerator) Tick() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.tick
}

// Next returns the snapshot of the current tick and advances the counter.
func (g *MockGenerator) Next() *model.Snapshot {
	g.mu.Lock()
	tick := g.tick
	g.tick++
	g.mu.Unlock()
	return g.snapshotAt(tick)
}

func (g *MockGenerator) snapshotAt(tick int) *model.Snapshot {
	fx := &g.fixture
	ret := &model.Snapshot{
		Game:    fx.Game,
		Drivers: make([]model.Driver, 0, len(fx.Drivers)),
		Session: model.Session{
			TrackName:         fx.Session.TrackName,
			TrackConfig:       fx.Session.TrackConfig,
			TrackLengthKm:     fx.Session.TrackLengthKm,
			Wetness:           fx.Session.Wetness,
			AirTempC:          fx.Session.AirTempC,
			AirTempF:          fx.Session.AirTempC*9/5 + 32,
			TrackTempC:        fx.Session.TrackTempC,
			TrackTempF:        fx.Session.TrackTempC*9/5 + 32,
			SessionType:       fx.Session.SessionType,
			SessionTime:       float64(tick),
			SessionTimeRemain: math.Max(0, fx.Session.SessionTimeRemain-float64(tick)),
		},
	}
	if len(fx.Frames) > 0 {
		f := fx.Frames[tick%len(fx.Frames)]
		ret.Realtime = model.Realtime{
			Throttle:    f.Throttle,
			Brake:       f.Brake,
			Clutch:      f.Clutch,
			SteeringPct: f.SteeringPct,
			Gear:        f.Gear,
			SpeedKmh:    f.SpeedKmh,
			SpeedMph:    f.SpeedKmh / 1.609344,
			RPM:         f.RPM,
		}
	}
	ret.Realtime.RPMFirst = fx.RPM.First
	ret.Realtime.RPMShift = fx.RPM.Shift
	ret.Realtime.RPMLast = fx.RPM.Last
	ret.Realtime.RPMBlink = fx.RPM.Blink
	ret.Realtime.RPMRedline = fx.RPM.Redline
	ret.Realtime.OnTrack = true

	// all cars move at the same pace, the fixture order is the running order
	classPos := map[int]int{}
	for i, d := range fx.Drivers {
		dist := d.LapDistPct + float64(tick)*mockLapStep
		completed := int(math.Floor(dist))
		classPos[d.ClassID]++
		driver := model.Driver{
			Idx:              d.Idx,
			Name:             d.Name,
			CarNumber:        d.CarNumber,
			ClassID:          d.ClassID,
			ClassName:        d.ClassName,
			Position:         i + 1,
			ClassPosition:    classPos[d.ClassID],
			OfficialPosition: i + 1,
			Lap:              completed + 1,
			LapsCompleted:    completed,
			LapDistPct:       dist - float64(completed),
			TotalDistance:    dist,
			IRating:          d.IRating,
			License:          d.License,
			OnTrack:          true,
			IsPlayer:         d.Idx == fx.PlayerIdx,
		}
		if driver.IsPlayer {
			ret.Realtime.Position = driver.Position
			ret.Realtime.ClassPosition = driver.ClassPosition
			ret.Realtime.Lap = driver.Lap
			ret.Realtime.LapDistPct = driver.LapDistPct
		}
		ret.Drivers = append(ret.Drivers, driver)
	}
	return ret
}

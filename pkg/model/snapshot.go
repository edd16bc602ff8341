package model

import (
	"encoding/json"
	"sync"

	"github.com/ohler55/ojg/oj"
)

type GameName string

const (
	GameNone    GameName = ""
	GameIRacing GameName = "iracing"
	GameReplay  GameName = "replay"
)

// Snapshot is one point-in-time telemetry record.
// A snapshot must not be modified after it was handed to a consumer.
type Snapshot struct {
	Game     GameName `json:"game"`
	Realtime Realtime `json:"realtime"`
	Drivers  []Driver `json:"drivers"`
	Session  Session  `json:"session"`

	gameOnly bool
	treeOnce sync.Once
	tree     any
}

type Realtime struct {
	Throttle         float64 `json:"throttle"`
	Brake            float64 `json:"brake"`
	Clutch           float64 `json:"clutch"`
	SteeringPct      float64 `json:"steeringPct"`
	Gear             int     `json:"gear"`
	SpeedKmh         float64 `json:"speedKmh"`
	SpeedMph         float64 `json:"speedMph"`
	RPM              float64 `json:"rpm"`
	RPMFirst         float64 `json:"rpmFirst"`
	RPMShift         float64 `json:"rpmShift"`
	RPMLast          float64 `json:"rpmLast"`
	RPMBlink         float64 `json:"rpmBlink"`
	RPMRedline       float64 `json:"rpmRedline"`
	OnTrack          bool    `json:"onTrack"`
	InReplay         bool    `json:"inReplay"`
	Lap              int     `json:"lap"`
	LapDistPct       float64 `json:"lapDistPct"`
	LapTimeCurrent   float64 `json:"lapTimeCurrent"`
	LapTimeLast      float64 `json:"lapTimeLast"`
	LapTimeBest      float64 `json:"lapTimeBest"`
	DeltaBest        float64 `json:"deltaBest"`
	DeltaSessionBest float64 `json:"deltaSessionBest"`
	DeltaOptimal     float64 `json:"deltaOptimal"`
	Position         int     `json:"position"`
	ClassPosition    int     `json:"classPosition"`
	FuelLevel        float64 `json:"fuelLevel"`
}

// Driver describes one car. Idx is only valid for the current connection
// of the adapter which produced the snapshot.
type Driver struct {
	Idx              int     `json:"idx"`
	Name             string  `json:"name"`
	CarNumber        string  `json:"carNumber"`
	ClassID          int     `json:"classId"`
	ClassName        string  `json:"className"`
	Position         int     `json:"position"`
	ClassPosition    int     `json:"classPosition"`
	OfficialPosition int     `json:"officialPosition"`
	Lap              int     `json:"lap"`
	LapsCompleted    int     `json:"lapsCompleted"`
	LapDistPct       float64 `json:"lapDistPct"`
	TotalDistance    float64 `json:"totalDistance"`
	IRating          int     `json:"iRating"`
	IRatingDelta     int     `json:"iRatingDelta"`
	License          string  `json:"license"`
	OnTrack          bool    `json:"onTrack"`
	InPits           bool    `json:"inPits"`
	IsPlayer         bool    `json:"isPlayer"`
	LastLapTime      float64 `json:"lastLapTime"`
	BestLapTime      float64 `json:"bestLapTime"`
}

type Session struct {
	TrackName         string  `json:"trackName"`
	TrackConfig       string  `json:"trackConfig"`
	TrackLengthKm     float64 `json:"trackLengthKm"`
	Wetness           int     `json:"wetness"`
	AirTempC          float64 `json:"airTempC"`
	AirTempF          float64 `json:"airTempF"`
	TrackTempC        float64 `json:"trackTempC"`
	TrackTempF        float64 `json:"trackTempF"`
	SessionType       string  `json:"sessionType"`
	SessionTime       float64 `json:"sessionTime"`
	SessionTimeRemain float64 `json:"sessionTimeRemain"`
	LapsRemain        int     `json:"lapsRemain"`
	Flags             int     `json:"flags"`
}

// EmptySnapshot is the state reported while no game is selected.
func EmptySnapshot() *Snapshot {
	return GameOnlySnapshot(GameNone)
}

// GameOnlySnapshot carries no telemetry. Only the game field resolves
// until the first real snapshot of that game arrives.
func GameOnlySnapshot(game GameName) *Snapshot {
	return &Snapshot{Game: game, Drivers: []Driver{}, gameOnly: true}
}

// Tree returns the generic representation (maps, slices, scalars) of the
// snapshot as it appears on the wire. It is computed once.
// Without a game the tree holds the game field only.
func (s *Snapshot) Tree() any {
	s.treeOnce.Do(func() {
		if s.gameOnly || s.Game == GameNone {
			s.tree = map[string]any{"game": string(s.Game)}
			return
		}
		data, err := json.Marshal(s)
		if err != nil {
			return
		}
		s.tree, _ = oj.Parse(data)
	})
	return s.tree
}

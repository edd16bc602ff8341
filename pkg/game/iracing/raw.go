package iracing

// Frame is one sample of the raw telemetry as delivered by the capture
// backend. Field names follow the iRacing SDK variables.
//
//nolint:tagliatelle // names are defined by the SDK
type Frame struct {
	SessionInfoUpdate int    `json:"SessionInfoUpdate"`
	SessionInfo       string `json:"SessionInfo,omitempty"` // yaml, only when changed

	Throttle           float64 `json:"Throttle"`
	Brake              float64 `json:"Brake"`
	Clutch             float64 `json:"Clutch"`
	SteeringWheelAngle float64 `json:"SteeringWheelAngle"`
	Gear               int     `json:"Gear"`
	Speed              float64 `json:"Speed"`
	RPM                float64 `json:"RPM"`
	FuelLevel          float64 `json:"FuelLevel"`
	IsOnTrack          *bool   `json:"IsOnTrack,omitempty"`
	PlayerTrackSurface *int    `json:"PlayerTrackSurface,omitempty"`
	IsReplayPlaying    bool    `json:"IsReplayPlaying"`
	PlayerCarIdx       int     `json:"PlayerCarIdx"`

	Lap                      int     `json:"Lap"`
	LapDistPct               float64 `json:"LapDistPct"`
	LapCurrentLapTime        float64 `json:"LapCurrentLapTime"`
	LapLastLapTime           float64 `json:"LapLastLapTime"`
	LapBestLapTime           float64 `json:"LapBestLapTime"`
	LapDeltaToBestLap        float64 `json:"LapDeltaToBestLap"`
	LapDeltaToSessionBestLap float64 `json:"LapDeltaToSessionBestLap"`
	LapDeltaToOptimalLap     float64 `json:"LapDeltaToOptimalLap"`

	CarIdxLap           []int     `json:"CarIdxLap"`
	CarIdxLapCompleted  []int     `json:"CarIdxLapCompleted"`
	CarIdxLapDistPct    []float64 `json:"CarIdxLapDistPct"`
	CarIdxTrackSurface  []int     `json:"CarIdxTrackSurface"`
	CarIdxPosition      []int     `json:"CarIdxPosition"`
	CarIdxOnPitRoad     []bool    `json:"CarIdxOnPitRoad"`
	CarIdxLastLapTime   []float64 `json:"CarIdxLastLapTime"`
	CarIdxBestLapTime   []float64 `json:"CarIdxBestLapTime"`
	SessionNum          int       `json:"SessionNum"`
	SessionTime         float64   `json:"SessionTime"`
	SessionTimeRemain   float64   `json:"SessionTimeRemain"`
	SessionLapsRemainEx int       `json:"SessionLapsRemainEx"`
	SessionFlags        int       `json:"SessionFlags"`
	AirTemp             float64   `json:"AirTemp"`
	TrackTempCrew       float64   `json:"TrackTempCrew"`
	TrackWetness        int       `json:"TrackWetness"`
}

// track surface values (irsdk_TrkLoc)
const (
	SurfaceNotInWorld     = -1
	SurfaceOffTrack       = 0
	SurfaceInPitStall     = 1
	SurfaceApproachingPit = 2
	SurfaceOnTrack        = 3
)

// SessionInfo is the subset of the SDK session yaml we use.
type SessionInfo struct {
	WeekendInfo struct {
		TrackDisplayName string `yaml:"TrackDisplayName"`
		TrackConfigName  string `yaml:"TrackConfigName"`
		TrackLength      string `yaml:"TrackLength"`
	} `yaml:"WeekendInfo"`
	SessionInfo struct {
		Sessions []struct {
			SessionNum  int    `yaml:"SessionNum"`
			SessionType string `yaml:"SessionType"`
		} `yaml:"Sessions"`
	} `yaml:"SessionInfo"`
	DriverInfo struct {
		DriverCarIdx        int          `yaml:"DriverCarIdx"`
		DriverCarRedLine    float64      `yaml:"DriverCarRedLine"`
		DriverCarSLFirstRPM float64      `yaml:"DriverCarSLFirstRPM"`
		DriverCarSLShiftRPM float64      `yaml:"DriverCarSLShiftRPM"`
		DriverCarSLLastRPM  float64      `yaml:"DriverCarSLLastRPM"`
		DriverCarSLBlinkRPM float64      `yaml:"DriverCarSLBlinkRPM"`
		Drivers             []DriverInfo `yaml:"Drivers"`
	} `yaml:"DriverInfo"`
}

type DriverInfo struct {
	CarIdx            int    `yaml:"CarIdx"`
	UserName          string `yaml:"UserName"`
	CarNumber         string `yaml:"CarNumber"`
	CarClassID        int    `yaml:"CarClassID"`
	CarClassShortName string `yaml:"CarClassShortName"`
	IRating           int    `yaml:"IRating"`
	LicString         string `yaml:"LicString"`
	CarIsPaceCar      int    `yaml:"CarIsPaceCar"`
	IsSpectator       int    `yaml:"IsSpectator"`
}

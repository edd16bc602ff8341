package config

// this holds the resolved configuration values from CLI
//
//nolint:lll // readablity
var (
	LogLevel          string // sets the log level (zap log level values)
	LogFormat         string // text vs json
	LogFilter         string // zapfilter rules applied to log output
	EnableTelemetry   bool   // enable telemetry
	TelemetryEndpoint string // endpoint for telemetry ("stdout" for console exporters)
	ProfilingPort     int    // port for profiling
	WaitForServices   string // duration to wait for the live feed endpoint
	Addr              string // listen addr for websocket and control endpoints
	Game              string // game selected on startup (empty means none)
	FeedURL           string // ws://, wss:// or nats:// url of the live telemetry feed
	FeedSubject       string // nats subject carrying raw telemetry frames
	ReplayFile        string // recording used by the replay game
	RecordingDir      string // directory for new recordings
	RecordingFps      int    // default frame rate for recordings
	Record            bool   // start recording together with the server
	Preview           bool   // start in preview mode
	TickInterval      string // target update interval for game adapters
	MockInterval      string // interval of the preview data generator
	AccountInterval   string // interval for bandwidth accounting
	SendQueueSize     int    // outbound queue size per subscriber
)

// Config holds the configuration values which are used by the application
type Config struct {
	TickInterval    string
	MockInterval    string
	AccountInterval string
	SendQueueSize   int
}

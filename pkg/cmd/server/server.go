package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	_ "net/http/pprof" //nolint:gosec // by design
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/aarondl/opt/omit"
	"github.com/fsnotify/fsnotify"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	otlpruntime "go.opentelemetry.io/contrib/instrumentation/runtime"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/mpapenbr/overlay-telemetry-core/log"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/broadcaster"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/config"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/endpoints/control"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/game/iracing"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/game/replay"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/model"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/session"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/utils"
)

var appConfig config.Config // holds processed config values

//nolint:funlen // by design
func NewServerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "server",
		Short: "starts the telemetry distribution server",
		PreRunE: func(cmd *cobra.Command, args []string) error {
			appConfig = config.Config{
				TickInterval:    config.TickInterval,
				MockInterval:    config.MockInterval,
				AccountInterval: config.AccountInterval,
				SendQueueSize:   config.SendQueueSize,
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return startServer(cmd.Context())
		},
	}
	cmd.Flags().StringVarP(&config.Addr,
		"addr",
		"a",
		"localhost:8182",
		"listen address for subscriptions and control endpoints")
	cmd.Flags().StringVar(&config.LogLevel,
		"log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	cmd.Flags().StringVar(&config.LogFormat,
		"log-format",
		"json",
		"controls the log output format")
	cmd.Flags().StringVar(&config.LogFilter,
		"log-filter",
		"",
		"zapfilter rules, e.g. \"info+:* debug:*,-bcst*\"")
	cmd.Flags().BoolVar(&config.EnableTelemetry,
		"enable-telemetry",
		false,
		"enables telemetry")
	cmd.Flags().StringVar(&config.TelemetryEndpoint,
		"telemetry-endpoint",
		"localhost:4317",
		"Endpoint that receives open telemetry data (use stdout for console output)")
	cmd.Flags().IntVar(&config.ProfilingPort,
		"profiling-port",
		0,
		"port to use for providing profiling data")
	cmd.Flags().StringVar(&config.Game,
		"game",
		"",
		"game selected on startup (iracing, replay)")
	cmd.Flags().StringVar(&config.FeedURL,
		"feed-url",
		"ws://localhost:8181/telemetry",
		"url of the live telemetry feed (ws://, wss://, nats://)")
	cmd.Flags().StringVar(&config.FeedSubject,
		"feed-subject",
		"iracing.telemetry",
		"nats subject carrying the raw telemetry frames")
	cmd.Flags().StringVar(&config.ReplayFile,
		"replay-file",
		"",
		"recording played back by the replay game")
	cmd.Flags().StringVar(&config.RecordingDir,
		"recording-dir",
		"recordings",
		"directory for new recordings")
	cmd.Flags().IntVar(&config.RecordingFps,
		"recording-fps",
		10,
		"default frame rate of recordings")
	cmd.Flags().BoolVar(&config.Record,
		"record",
		false,
		"start recording on startup")
	cmd.Flags().BoolVar(&config.Preview,
		"preview",
		false,
		"start in preview mode")
	cmd.Flags().StringVar(&config.TickInterval,
		"tick-interval",
		session.DefaultInterval.String(),
		"target update interval requested from the game adapters")
	cmd.Flags().StringVar(&config.MockInterval,
		"mock-interval",
		broadcaster.DefaultMockInterval.String(),
		"interval of the preview data generator")
	cmd.Flags().StringVar(&config.AccountInterval,
		"account-interval",
		broadcaster.DefaultAccountInterval.String(),
		"interval for bandwidth accounting")
	cmd.Flags().IntVar(&config.SendQueueSize,
		"send-queue-size",
		broadcaster.DefaultQueueSize,
		"number of outbound messages buffered per subscription")
	return cmd
}

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

func parseDuration(s string, defaultVal time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		log.Warn("Invalid duration value. Using default",
			log.String("value", s),
			log.Duration("default", defaultVal))
		return defaultVal
	}
	return d
}

func setupLogger() *log.Logger {
	var logger *log.Logger
	switch config.LogFormat {
	case "json":
		logger = log.New(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.InfoLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	default:
		logger = log.DevLogger(
			os.Stderr,
			parseLogLevel(config.LogLevel, log.DebugLevel),
			log.WithCaller(true),
			log.AddCallerSkip(1))
	}
	if config.LogFilter != "" {
		filtered, err := logger.WithFilter(config.LogFilter)
		if err != nil {
			logger.Warn("Invalid log filter, ignoring", log.ErrorField(err))
		} else {
			logger = filtered
		}
	}
	return logger
}

//nolint:funlen,cyclop // by design
func startServer(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	logger := setupLogger()
	log.ResetDefault(logger)

	log.Debug("Config:",
		log.String("addr", config.Addr),
		log.String("game", config.Game),
		log.String("feedUrl", config.FeedURL),
		log.String("replayFile", config.ReplayFile),
		log.String("recordingDir", config.RecordingDir),
	)

	if config.ProfilingPort > 0 {
		log.Info("Starting profiling server on port", log.Int("port", config.ProfilingPort))
		go func() {
			//nolint:gosec // by design
			err := http.ListenAndServe(
				fmt.Sprintf("localhost:%d", config.ProfilingPort),
				nil)
			if err != nil {
				log.Error("Profiling server stopped", log.ErrorField(err))
			}
		}()
	}

	var telemetry *config.Telemetry
	if config.EnableTelemetry {
		log.Info("Enabling telemetry")
		var err error
		if telemetry, err = config.SetupTelemetry(ctx); err != nil {
			log.Warn("Could not setup telemetry", log.ErrorField(err))
		}
		err = otlpruntime.Start(otlpruntime.WithMinimumReadMemStatsInterval(time.Second))
		if err != nil {
			log.Warn("Could not start runtime metrics", log.ErrorField(err))
		}
	}

	if model.GameName(config.Game) == model.GameIRacing {
		waitForFeed(ctx)
	}

	coordinator := session.New(
		session.WithFactory(model.GameIRacing, iracing.NewFactory(
			iracing.WithFeedURL(config.FeedURL, config.FeedSubject))),
		session.WithFactory(model.GameReplay, replay.NewFactory(
			replay.WithFile(config.ReplayFile))),
		session.WithInterval(parseDuration(appConfig.TickInterval, session.DefaultInterval)),
		session.WithRecordingDir(config.RecordingDir),
		session.WithDefaultFps(config.RecordingFps),
	)
	bcst := broadcaster.New(
		broadcaster.WithQueueSize(appConfig.SendQueueSize),
		broadcaster.WithPreview(config.Preview),
	)
	scheduler := broadcaster.NewScheduler(bcst,
		broadcaster.WithMockInterval(
			parseDuration(appConfig.MockInterval, broadcaster.DefaultMockInterval)),
		broadcaster.WithAccountInterval(
			parseDuration(appConfig.AccountInterval, broadcaster.DefaultAccountInterval)),
	)

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	events := coordinator.Subscribe()
	runDone := make(chan struct{})
	go func() {
		bcst.Run(runCtx, events)
		close(runDone)
	}()
	scheduler.Start(runCtx)
	watchConfig(logger, bcst)

	coordinator.SelectGame(ctx, model.GameName(config.Game))
	if config.Record {
		if err := coordinator.StartRecording(ctx,
			omit.Val[string]{}, omit.From(config.RecordingFps)); err != nil {
			log.Error("could not start recording", log.ErrorField(err))
		}
	}

	mux := newMux(coordinator, bcst)
	server := &http.Server{
		Addr:              config.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 5 * time.Second,
	}
	serverErr := make(chan error, 1)
	go func() {
		log.Info("Starting server", log.String("addr", config.Addr))
		serverErr <- server.ListenAndServe()
	}()
	setupGoRoutinesDump()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	var retErr error
	select {
	case v := <-sigChan:
		log.Debug("Got signal ", log.Any("signal", v))
	case err := <-serverErr:
		if !errors.Is(err, http.ErrServerClosed) {
			log.Error("server could not be started", log.ErrorField(err))
			retErr = err
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Warn("error shutting down http server", log.ErrorField(err))
	}
	scheduler.Stop()
	coordinator.Close()
	<-runDone
	bcst.Close()
	if telemetry != nil {
		telemetry.Shutdown()
	}
	log.Info("Server terminated")
	//nolint:errcheck // nothing to do about it
	logger.Sync()
	return retErr
}

func newMux(coordinator *session.Coordinator, bcst *broadcaster.Broadcaster) http.Handler {
	mux := http.NewServeMux()
	var ctrl http.Handler = control.NewHandler(coordinator, bcst)
	if config.EnableTelemetry {
		ctrl = otelhttp.NewHandler(ctrl, "control")
	}
	// control is for the local shell only, no cross origin access
	mux.Handle("/control/", ctrl)
	mux.Handle("/healthz", ctrl)
	mux.Handle("/", newCORS().Handler(bcst))
	return mux
}

// watchConfig applies log level and preview changes of the config file
// without restart.
func watchConfig(logger *log.Logger, bcst *broadcaster.Broadcaster) {
	if viper.ConfigFileUsed() == "" {
		return
	}
	viper.OnConfigChange(func(e fsnotify.Event) {
		log.Info("config file changed", log.String("file", e.Name))
		if viper.IsSet("log-level") {
			if level, err := log.ParseLevel(viper.GetString("log-level")); err == nil {
				logger.SetLevel(level)
			}
		}
		if viper.IsSet("preview") {
			bcst.SetPreview(viper.GetBool("preview"))
		}
	})
	viper.WatchConfig()
}

func waitForFeed(ctx context.Context) {
	addr := utils.FeedAddr(config.FeedURL)
	if addr == "" {
		return
	}
	timeout := parseDuration(config.WaitForServices, 15*time.Second)
	// the adapter keeps retrying, a missing feed is not fatal
	if err := utils.WaitForTCP(ctx, addr, timeout); err != nil {
		log.Warn("telemetry feed not ready", log.ErrorField(err))
	}
}

func setupGoRoutinesDump() {
	go func() {
		sigs := make(chan os.Signal, 1)
		signal.Notify(sigs, syscall.SIGQUIT)
		buf := make([]byte, 1<<20)
		for {
			<-sigs
			stacklen := runtime.Stack(buf, true)
			fmt.Printf("=== received SIGQUIT ===\n*** goroutine dump...\n%s\n*** end\n",
				buf[:stacklen])
		}
	}()
}

func newCORS() *cors.Cors {
	// overlays are loaded from local files and arbitrary dev servers
	return cors.New(cors.Options{
		AllowedMethods: []string{
			http.MethodHead,
			http.MethodGet,
			http.MethodPost,
		},
		AllowOriginFunc: func(origin string) bool {
			return true
		},
		AllowedHeaders: []string{"*"},
	})
}

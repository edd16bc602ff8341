package check

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/mpapenbr/overlay-telemetry-core/log"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/game/replay"
)

func NewCheckRecordingCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recording file",
		Short: "check a recording can be used by the replay game",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkRecording(cmd.OutOrStdout(), args[0])
		},
	}
	cmd.Flags().StringVar(&logLevel,
		"log-level",
		"info",
		"controls the log level (debug, info, warn, error, fatal)")
	return cmd
}

func parseLogLevel(l string, defaultVal log.Level) log.Level {
	level, err := log.ParseLevel(l)
	if err != nil {
		return defaultVal
	}
	return level
}

func checkRecording(out io.Writer, filename string) error {
	logger := log.DevLogger(
		os.Stderr,
		parseLogLevel(logLevel, log.InfoLevel),
		log.WithCaller(true),
		log.AddCallerSkip(1))
	log.ResetDefault(logger)

	rec, err := replay.Load(filename)
	if err != nil {
		log.Error("could not load recording", log.ErrorField(err))
		return err
	}
	for _, d := range rec.Dropped {
		log.Warn("invalid record", log.Int("index", d.Index), log.ErrorField(d.Err))
	}
	fmt.Fprintf(out, "%s: %d valid frames, %d dropped\n",
		filename, len(rec.Frames), len(rec.Dropped))
	if len(rec.Frames) > 0 {
		first, last := rec.Frames[0], rec.Frames[len(rec.Frames)-1]
		fmt.Fprintf(out, "game: %q track: %q session time: %.3f - %.3f\n",
			first.Game, first.Session.TrackName,
			first.Session.SessionTime, last.Session.SessionTime)
	}
	return nil
}

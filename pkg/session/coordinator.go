// Package session owns the active game adapter and the optional recording.
package session

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aarondl/opt/omit"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/mpapenbr/overlay-telemetry-core/log"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/game"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/model"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/recorder"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/utils/broadcast"
)

// DefaultInterval is the update interval requested from adapters (125 Hz).
const DefaultInterval = 8 * time.Millisecond

var ErrInvalidFilename = errors.New("recording filename must be a plain file name")

type Option func(*Coordinator)

func WithFactory(name model.GameName, f game.Factory) Option {
	return func(c *Coordinator) {
		c.factories[name] = f
	}
}

func WithInterval(d time.Duration) Option {
	return func(c *Coordinator) {
		c.interval = d
	}
}

// WithRecordingDir sets the directory all recordings are written to.
func WithRecordingDir(dir string) Option {
	return func(c *Coordinator) {
		c.recordingDir = dir
	}
}

func WithDefaultFps(fps int) Option {
	return func(c *Coordinator) {
		c.defaultFps = fps
	}
}

func WithRecorderOptions(opts ...recorder.Option) Option {
	return func(c *Coordinator) {
		c.recorderOpts = opts
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) {
		c.now = now
	}
}

func WithLogger(l *log.Logger) Option {
	return func(c *Coordinator) {
		c.l = l
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(c *Coordinator) {
		c.tracer = tracer
	}
}

// Coordinator owns at most one adapter at a time. Adapter events are
// republished to subscribers and fed into the recorder.
type Coordinator struct {
	l            *log.Logger
	tracer       trace.Tracer
	factories    map[model.GameName]game.Factory
	interval     time.Duration
	recordingDir string
	defaultFps   int
	recorderOpts []recorder.Option
	now          func() time.Time
	events       broadcast.Server[Event]

	selectMu sync.Mutex // serializes SelectGame

	mu         sync.Mutex
	game       model.GameName
	adapter    game.Adapter
	generation uint64
	status     game.Status
	rec        *recorder.Recorder
	fps        int
}

func New(opts ...Option) *Coordinator {
	ret := &Coordinator{
		l:            log.Default().Named("session"),
		factories:    map[model.GameName]game.Factory{},
		interval:     DefaultInterval,
		recordingDir: ".",
		defaultFps:   recorder.DefaultFps,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.tracer == nil {
		ret.tracer = otel.Tracer("otc")
	}
	ret.events = broadcast.New("session",
		broadcast.WithTelemetry[Event]("session"),
		broadcast.WithBufferSize[Event](64))
	return ret
}

// adapterListener binds the events of one adapter instance to the
// generation it was created for.
type adapterListener struct {
	c          *Coordinator
	generation uint64
}

func (a adapterListener) Data(s *model.Snapshot) {
	a.c.onData(a.generation, s)
}

func (a adapterListener) StatusChanged(st game.Status) {
	a.c.onStatus(a.generation, st)
}

// SelectGame switches to the adapter registered for name. Selecting the
// current game is a no-op and returns false. Unknown names end up with no
// game selected.
func (c *Coordinator) SelectGame(ctx context.Context, name model.GameName) bool {
	_, span := c.tracer.Start(ctx, "session.SelectGame",
		trace.WithAttributes(attribute.String("game", string(name))))
	defer span.End()

	c.selectMu.Lock()
	defer c.selectMu.Unlock()

	c.mu.Lock()
	if name == c.game {
		c.mu.Unlock()
		return false
	}
	previous := c.game
	old := c.adapter
	c.generation++
	c.adapter = nil
	c.game = model.GameNone
	c.status = game.Status{}
	c.mu.Unlock()

	// no lock here, the adapter may be delivering events while stopping
	if old != nil {
		old.Disconnect()
	}

	factory, ok := c.factories[name]
	if name != model.GameNone && !ok {
		c.l.Warn("unknown game, no game selected", log.String("game", string(name)))
	}

	c.mu.Lock()
	var next game.Adapter
	if ok && name != model.GameNone {
		next = factory(adapterListener{c: c, generation: c.generation})
		c.adapter = next
		c.game = name
	}
	c.l.Info("game selected", log.String("game", string(c.game)))
	c.events.Publish(Event{Kind: EventGameChanged, Game: c.game})
	changed := c.game != previous
	c.mu.Unlock()

	if next != nil {
		next.Connect(c.interval)
	}
	return changed
}

// StartRecording starts writing snapshots to filename inside the recording
// dir. filename must be a plain file name. It is a no-op while a
// recording is active.
//
//nolint:whitespace // can't make both editor and linter happy
func (c *Coordinator) StartRecording(
	ctx context.Context,
	filename omit.Val[string],
	fps omit.Val[int],
) error {
	_, span := c.tracer.Start(ctx, "session.StartRecording")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rec != nil {
		return nil
	}
	fn := c.defaultFilename()
	if name, ok := filename.Get(); ok {
		if !isPlainFilename(name) {
			span.RecordError(ErrInvalidFilename)
			return fmt.Errorf("%w: %q", ErrInvalidFilename, name)
		}
		fn = filepath.Join(c.recordingDir, name)
	}
	targetFps := fps.GetOr(c.defaultFps)
	if targetFps <= 0 {
		targetFps = c.defaultFps
	}
	span.SetAttributes(
		attribute.String("filename", fn),
		attribute.Int("fps", targetFps))
	rec, err := recorder.Open(fn, targetFps, c.recorderOpts...)
	if err != nil {
		span.RecordError(err)
		c.l.Warn("could not start recording",
			log.String("filename", fn), log.ErrorField(err))
		return err
	}
	c.rec = rec
	c.fps = targetFps
	c.l.Info("recording started",
		log.String("filename", fn), log.Int("fps", targetFps))
	return nil
}

// StopRecording closes the active recording. It is a no-op if there is none.
func (c *Coordinator) StopRecording(ctx context.Context) error {
	_, span := c.tracer.Start(ctx, "session.StopRecording")
	defer span.End()

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rec == nil {
		return nil
	}
	err := c.stopRecording(nil)
	if err != nil {
		span.RecordError(err)
	}
	return err
}

func (c *Coordinator) Game() model.GameName {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.game
}

func (c *Coordinator) Status() game.Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

func (c *Coordinator) Recording() RecordingState {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.rec == nil {
		return RecordingState{}
	}
	return RecordingState{
		Active:   true,
		Filename: c.rec.Filename(),
		Fps:      c.fps,
		Frames:   c.rec.Frames(),
	}
}

func (c *Coordinator) Subscribe() <-chan Event {
	return c.events.Subscribe()
}

func (c *Coordinator) Unsubscribe(ch <-chan Event) {
	c.events.CancelSubscription(ch)
}

// Close disconnects the adapter, stops the recording and closes all
// subscriptions.
func (c *Coordinator) Close() {
	c.SelectGame(context.Background(), model.GameNone)
	if err := c.StopRecording(context.Background()); err != nil {
		c.l.Warn("error stopping recording", log.ErrorField(err))
	}
	c.events.Close()
}

func (c *Coordinator) onData(generation uint64, s *model.Snapshot) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation {
		return
	}
	if c.rec != nil {
		if _, err := c.rec.Write(s); err != nil {
			c.l.Error("recording failed", log.ErrorField(err))
			//nolint:errcheck // the write error is reported
			c.stopRecording(err)
		}
	}
	c.events.Publish(Event{Kind: EventData, Snapshot: s, Game: c.game})
}

func (c *Coordinator) onStatus(generation uint64, st game.Status) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if generation != c.generation || st == c.status {
		return
	}
	c.status = st
	c.events.Publish(Event{Kind: EventStatus, Status: st, Game: c.game})
}

// stopRecording must be called with mu held. cause is the write error
// which ended the recording, if any.
func (c *Coordinator) stopRecording(cause error) error {
	rec := c.rec
	c.rec = nil
	c.fps = 0
	err := rec.Close()
	if cause != nil {
		// the recorder may have closed the file already
		err = nil
	}
	c.l.Info("recording stopped",
		log.String("filename", rec.Filename()),
		log.Int("frames", rec.Frames()))
	ev := cause
	if ev == nil {
		ev = err
	}
	c.events.Publish(Event{Kind: EventRecordingStopped, Err: ev})
	return err
}

func isPlainFilename(name string) bool {
	if name == "" || name == "." || name == ".." {
		return false
	}
	return !strings.ContainsAny(name, `/\:`) && filepath.Base(name) == name
}

func (c *Coordinator) defaultFilename() string {
	name := string(c.game)
	if name == "" {
		name = "none"
	}
	return filepath.Join(c.recordingDir,
		fmt.Sprintf("%s-%s.json", name, c.now().Format("20060102-150405")))
}

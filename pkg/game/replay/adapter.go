// Package replay provides the adapter which plays back a recording.
package replay

import (
	"context"
	"sync"
	"time"

	"github.com/mpapenbr/overlay-telemetry-core/log"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/game"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/model"
)

type Option func(*Adapter)

func WithFile(filename string) Option {
	return func(a *Adapter) {
		a.filename = filename
	}
}

func WithLogger(l *log.Logger) Option {
	return func(a *Adapter) {
		a.l = l
	}
}

func NewFactory(opts ...Option) game.Factory {
	return func(l game.Listener) game.Adapter {
		return New(l, opts...)
	}
}

// Adapter loads the recording on Connect and emits one frame per interval.
// It reports itself disconnected after the last frame.
// Frames keep the game they were recorded from, so overlays can pick the
// layout of that game. The coordinator reports replay as the selection.
type Adapter struct {
	l        *log.Logger
	filename string
	listener game.Listener
	tracker  *game.StatusTracker

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(listener game.Listener, opts ...Option) *Adapter {
	ret := &Adapter{
		l:        log.Default().Named("replay"),
		listener: listener,
		tracker:  game.NewStatusTracker(listener),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (a *Adapter) Connect(interval time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.running() {
		return
	}
	if a.filename == "" {
		a.l.Warn("no replay file configured, staying disconnected")
		return
	}
	rec, err := Load(a.filename)
	if err != nil {
		a.l.Warn("could not load replay",
			log.String("file", a.filename), log.ErrorField(err))
		return
	}
	for _, d := range rec.Dropped {
		a.l.Warn("dropping invalid record",
			log.Int("index", d.Index), log.ErrorField(d.Err))
	}
	a.l.Info("replay loaded",
		log.String("file", a.filename),
		log.Int("frames", len(rec.Frames)),
		log.Int("dropped", len(rec.Dropped)))

	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})
	go a.play(ctx, rec.Frames, max(interval, time.Millisecond), a.done)
}

func (a *Adapter) Disconnect() {
	a.mu.Lock()
	cancel, done := a.cancel, a.done
	a.cancel = nil
	a.done = nil
	a.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	<-done
	a.tracker.Update(game.Status{})
}

// running reports whether a playback goroutine is active. A playback which
// reached the end counts as stopped. Must be called with mu held.
func (a *Adapter) running() bool {
	if a.done == nil {
		return false
	}
	select {
	case <-a.done:
		a.cancel()
		a.cancel = nil
		a.done = nil
		return false
	default:
		return true
	}
}

func (a *Adapter) Status() game.Status {
	return a.tracker.Status()
}

//nolint:whitespace // can't make both editor and linter happy
func (a *Adapter) play(
	ctx context.Context,
	frames []*model.Snapshot,
	interval time.Duration,
	done chan struct{},
) {
	defer close(done)
	a.tracker.Update(game.Status{Connected: true})
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for _, s := range frames {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
		a.tracker.Update(game.FromSnapshot(s))
		a.listener.Data(s)
	}
	a.l.Info("replay finished")
	a.tracker.Update(game.Status{})
}

// Package iracing provides the live game adapter. Raw frames are read from
// a capture backend feed and mapped into snapshots.
package iracing

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/mpapenbr/overlay-telemetry-core/log"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/game"
)

const minRetryDelay = time.Second

type Option func(*Adapter)

func WithFeed(f Feed) Option {
	return func(a *Adapter) {
		a.feed = f
	}
}

func WithFeedURL(rawURL, subject string) Option {
	return func(a *Adapter) {
		f, err := NewFeed(rawURL, subject)
		if err != nil {
			a.l.Error("invalid feed", log.String("url", rawURL), log.ErrorField(err))
			return
		}
		a.feed = f
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

type Adapter struct {
	l        *log.Logger
	feed     Feed
	listener game.Listener
	tracker  *game.StatusTracker
	mapper   *Mapper

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func New(listener game.Listener, opts ...Option) *Adapter {
	ret := &Adapter{
		l:        log.Default().Named("iracing"),
		listener: listener,
		tracker:  game.NewStatusTracker(listener),
		mapper:   NewMapper(),
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

func (a *Adapter) Connect(interval time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.cancel != nil {
		return
	}
	if a.feed == nil {
		a.l.Warn("no feed configured, staying disconnected")
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	a.cancel = cancel
	a.done = make(chan struct{})
	go a.run(ctx, interval, a.done)
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

func (a *Adapter) Status() game.Status {
	return a.tracker.Status()
}

func (a *Adapter) run(ctx context.Context, interval time.Duration, done chan struct{}) {
	defer close(done)
	retry := max(interval, minRetryDelay)
	reported := false
	for ctx.Err() == nil {
		if err := a.feed.Open(ctx); err != nil {
			if !reported {
				a.l.Warn("could not connect to feed", log.ErrorField(err))
				reported = true
			}
			a.tracker.Update(game.Status{})
			select {
			case <-ctx.Done():
				return
			case <-time.After(retry):
			}
			continue
		}
		reported = false
		// car indexes are only valid for one connection
		a.mapper = NewMapper()
		a.l.Info("connected to feed")
		a.tracker.Update(game.Status{Connected: true})
		a.readFrames(ctx, interval)
		if err := a.feed.Close(); err != nil {
			a.l.Debug("error closing feed", log.ErrorField(err))
		}
		a.tracker.Update(game.Status{})
	}
}

func (a *Adapter) readFrames(ctx context.Context, interval time.Duration) {
	stop := context.AfterFunc(ctx, func() {
		//nolint:errcheck // unblocks Next, error is reported by run
		a.feed.Close()
	})
	defer stop()

	var last time.Time
	for {
		data, err := a.feed.Next(ctx)
		if err != nil {
			if ctx.Err() == nil {
				a.l.Warn("feed read failed", log.ErrorField(err))
			}
			return
		}
		now := time.Now()
		if !last.IsZero() && now.Sub(last) < interval {
			continue
		}
		frame := Frame{}
		if err := json.Unmarshal(data, &frame); err != nil {
			a.l.Warn("discarding malformed frame", log.ErrorField(err))
			continue
		}
		if err := a.mapper.UpdateSessionInfo(&frame); err != nil {
			a.l.Warn("could not parse session info", log.ErrorField(err))
		}
		s := a.mapper.Map(&frame)
		last = now
		a.tracker.Update(game.FromSnapshot(s))
		a.listener.Data(s)
	}
}

// Package broadcaster distributes snapshots to the connected overlays.
// Each subscription receives only the requested fields which changed since
// the last message it was sent.
package broadcaster

import (
	"context"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/overlay-telemetry-core/log"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/fieldpath"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/model"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/session"
)

const (
	MinFields = 1
	MaxFields = 30

	ErrMsgInvalidFieldCount = "q must contain between 1 and 30 field paths"

	DefaultQueueSize = 32
)

type Option func(*Broadcaster)

// WithQueueSize sets the number of outbound messages buffered per
// subscription.
func WithQueueSize(n int) Option {
	return func(b *Broadcaster) {
		b.queueSize = n
	}
}

func WithMockGenerator(g *MockGenerator) Option {
	return func(b *Broadcaster) {
		b.mockGen = g
	}
}

func WithPreview(on bool) Option {
	return func(b *Broadcaster) {
		b.preview = on
	}
}

func WithLogger(l *log.Logger) Option {
	return func(b *Broadcaster) {
		b.l = l
	}
}

// AccountStats is the result of one accounting period.
type AccountStats struct {
	Subscribers int
	Received    int
	Bytes       int64
}

type Broadcaster struct {
	l         *log.Logger
	upgrader  websocket.Upgrader
	queueSize int
	bytesSent atomic.Int64
	numSubs   atomic.Int64
	dropped   atomic.Int64

	mu      sync.Mutex
	subs    []*subscription
	last    *model.Snapshot // last live snapshot
	mock    *model.Snapshot // last mock snapshot
	mockGen *MockGenerator
	preview bool
}

func New(opts ...Option) *Broadcaster {
	ret := &Broadcaster{
		l:         log.Default().Named("bcst"),
		queueSize: DefaultQueueSize,
		last:      model.EmptySnapshot(),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			// overlays are served from arbitrary local origins
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(ret)
	}
	if ret.mockGen == nil {
		ret.mockGen = NewMockGenerator()
	}
	ret.setupMetrics()
	return ret
}

// Run feeds the coordinator events into the broadcaster until ctx is done
// or events is closed.
func (b *Broadcaster) Run(ctx context.Context, events <-chan session.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				return
			}
			switch ev.Kind {
			case session.EventData:
				b.HandleSnapshot(ev.Snapshot)
			case session.EventGameChanged:
				b.HandleSnapshot(model.GameOnlySnapshot(ev.Game))
			case session.EventStatus, session.EventRecordingStopped:
			}
		}
	}
}

// HandleSnapshot distributes a live snapshot. While preview is active the
// snapshot only becomes the new baseline of the subscriptions.
func (b *Broadcaster) HandleSnapshot(s *model.Snapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.last = s
	for _, sub := range b.subs {
		if sub.previewOnly {
			continue
		}
		if b.preview {
			sub.last = s
			continue
		}
		vals := fieldpath.Changed(sub.paths, sub.last, s)
		if len(vals) == 0 {
			sub.last = s
			continue
		}
		if b.deliver(sub, vals) {
			sub.last = s
		}
	}
}

// MockTick advances the mock generator and sends the requested fields of
// the new mock snapshot to preview subscriptions (all subscriptions while
// preview is active).
func (b *Broadcaster) MockTick() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.mock = b.mockGen.Next()
	for _, sub := range b.subs {
		if !sub.previewOnly && !b.preview {
			continue
		}
		if vals := fieldpath.Extract(sub.paths, b.mock); len(vals) > 0 {
			b.deliver(sub, vals)
		}
	}
}

func (b *Broadcaster) SetPreview(on bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.preview != on {
		b.l.Info("preview mode changed", log.Bool("preview", on))
	}
	b.preview = on
}

func (b *Broadcaster) Preview() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.preview
}

func (b *Broadcaster) NumSubscriptions() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.subs)
}

// Account logs the share of subscriptions which received data and the
// bytes sent since the previous call, then resets both.
func (b *Broadcaster) Account() AccountStats {
	b.mu.Lock()
	received := lo.CountBy(b.subs, func(s *subscription) bool { return s.received })
	for _, sub := range b.subs {
		sub.received = false
	}
	stats := AccountStats{
		Subscribers: len(b.subs),
		Received:    received,
		Bytes:       b.bytesSent.Swap(0),
	}
	b.mu.Unlock()

	fraction := 0.0
	if stats.Subscribers > 0 {
		fraction = float64(stats.Received) / float64(stats.Subscribers)
	}
	b.l.Info("accounting",
		log.Int("subscribers", stats.Subscribers),
		log.Float64("receivedFraction", fraction),
		log.Int64("bytes", stats.Bytes))
	return stats
}

// Close closes all subscriptions.
func (b *Broadcaster) Close() {
	b.mu.Lock()
	subs := b.subs
	b.subs = nil
	b.numSubs.Store(0)
	b.mu.Unlock()
	for _, sub := range subs {
		sub.close()
	}
}

// deliver must be called with mu held
func (b *Broadcaster) deliver(sub *subscription, vals fieldpath.Values) bool {
	if !sub.send(vals) {
		b.dropped.Add(1)
		return false
	}
	sub.received = true
	return true
}

// register sends the initial full extraction and adds sub to the set.
func (b *Broadcaster) register(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	current := b.last
	if sub.previewOnly || b.preview {
		if b.mock == nil {
			b.mock = b.mockGen.Next()
		}
		current = b.mock
	}
	b.deliver(sub, fieldpath.Extract(sub.paths, current))
	sub.last = b.last
	b.subs = append(b.subs, sub)
	b.numSubs.Store(int64(len(b.subs)))
	b.l.Debug("subscription added",
		log.String("id", sub.id),
		log.Int("paths", len(sub.paths)),
		log.Bool("previewOnly", sub.previewOnly))
}

func (b *Broadcaster) remove(sub *subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = lo.Without(b.subs, sub)
	b.numSubs.Store(int64(len(b.subs)))
	b.l.Debug("subscription removed", log.String("id", sub.id))
}

func (b *Broadcaster) setupMetrics() {
	meter := otel.GetMeterProvider().Meter("otc.broadcaster")
	for _, d := range []struct {
		name  string
		desc  string
		value *atomic.Int64
	}{
		{"otc.broadcaster.subscriptions", "Number of subscriptions", &b.numSubs},
		{"otc.broadcaster.dropped", "Number of dropped messages", &b.dropped},
	} {
		value := d.value
		if _, err := meter.Int64ObservableGauge(d.name,
			metric.WithDescription(d.desc),
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(value.Load())
				return nil
			})); err != nil {
			b.l.Error("failed to register metric",
				log.String("metric", d.name), log.ErrorField(err))
		}
	}
}

// Package broadcast fans out messages to a dynamic set of channel listeners.
package broadcast

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/mpapenbr/overlay-telemetry-core/log"
)

const (
	defaultSendTimeout = 50 * time.Millisecond
	defaultBufferSize  = 16
)

// Server delivers every published message to all current listeners.
// Listeners which do not accept a message within the send timeout miss it.
type Server[T any] interface {
	Publish(msg T)
	Subscribe() <-chan T
	CancelSubscription(<-chan T)
	Close()
}

type server[T any] struct {
	l              *log.Logger
	name           string
	eventKey       string
	sendTimeout    time.Duration
	bufferSize     int
	source         chan T
	listeners      []chan T
	addListener    chan chan T
	removeListener chan (<-chan T)
	ctx            context.Context
	cancel         context.CancelFunc
	done           chan struct{}
	numRcv         atomic.Int64
	numSnd         atomic.Int64
	numSkip        atomic.Int64
	numListener    atomic.Int64
}

type Option[T any] func(*server[T])

// WithTelemetry registers the otel gauges tagged with eventKey.
func WithTelemetry[T any](eventKey string) Option[T] {
	return func(b *server[T]) {
		b.eventKey = eventKey
	}
}

func WithSendTimeout[T any](d time.Duration) Option[T] {
	return func(b *server[T]) {
		b.sendTimeout = d
	}
}

// WithBufferSize sets the capacity of listener channels.
func WithBufferSize[T any](n int) Option[T] {
	return func(b *server[T]) {
		b.bufferSize = n
	}
}

func New[T any](name string, opts ...Option[T]) Server[T] {
	ctx, cancel := context.WithCancel(context.Background())
	b := &server[T]{
		l:              log.Default().Named("broadcast"),
		name:           name,
		sendTimeout:    defaultSendTimeout,
		bufferSize:     defaultBufferSize,
		source:         make(chan T),
		addListener:    make(chan chan T),
		removeListener: make(chan (<-chan T)),
		ctx:            ctx,
		cancel:         cancel,
		done:           make(chan struct{}),
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.eventKey != "" {
		b.setupMetrics()
	}
	go b.serve()
	return b
}

// Publish blocks until the message was handed to the serve loop or the
// server is closed.
func (b *server[T]) Publish(msg T) {
	select {
	case b.source <- msg:
	case <-b.ctx.Done():
	}
}

// Subscribe returns a new listener channel. After Close the returned
// channel is already closed.
func (b *server[T]) Subscribe() <-chan T {
	ch := make(chan T, b.bufferSize)
	select {
	case b.addListener <- ch:
	case <-b.ctx.Done():
		close(ch)
	}
	return ch
}

func (b *server[T]) CancelSubscription(ch <-chan T) {
	select {
	case b.removeListener <- ch:
	case <-b.ctx.Done():
	}
}

func (b *server[T]) Close() {
	b.cancel()
	<-b.done
	b.l.Info("broadcast server closed",
		log.String("name", b.name),
		log.Int64("rcv", b.numRcv.Load()),
		log.Int64("snd", b.numSnd.Load()),
		log.Int64("skip", b.numSkip.Load()))
}

func (b *server[T]) setupMetrics() {
	meter := otel.GetMeterProvider().Meter(fmt.Sprintf("otc.broadcast.%s", b.name))
	register := func(metricName, desc string, value *atomic.Int64) {
		if _, err := meter.Int64ObservableGauge(
			metricName,
			metric.WithDescription(desc),
			metric.WithUnit("{count}"),
			metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
				o.Observe(value.Load(),
					metric.WithAttributes(
						attribute.String("name", b.name),
						attribute.String("event", b.eventKey),
					),
				)
				return nil
			})); err != nil {
			b.l.Error("failed to register metric",
				log.String("metric", metricName),
				log.ErrorField(err))
		}
	}
	register("otc.broadcast.rcv", "Number of received messages", &b.numRcv)
	register("otc.broadcast.snd", "Number of sent messages", &b.numSnd)
	register("otc.broadcast.skip", "Number of skipped messages", &b.numSkip)
	register("otc.broadcast.listener", "Number of listeners", &b.numListener)
}

func (b *server[T]) serve() {
	defer func() {
		for _, listener := range b.listeners {
			close(listener)
		}
		b.listeners = nil
		close(b.done)
	}()
	for {
		select {
		case <-b.ctx.Done():
			return
		case ch := <-b.addListener:
			b.listeners = append(b.listeners, ch)
			b.numListener.Store(int64(len(b.listeners)))
		case ch := <-b.removeListener:
			for i, listener := range b.listeners {
				if listener == ch {
					b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
					close(listener)
					break
				}
			}
			b.numListener.Store(int64(len(b.listeners)))
		case msg := <-b.source:
			b.numRcv.Add(1)
			b.dispatch(msg)
		}
	}
}

func (b *server[T]) dispatch(msg T) {
	for _, listener := range b.listeners {
		select {
		case listener <- msg:
			b.numSnd.Add(1)
			continue
		default:
		}
		timer := time.NewTimer(b.sendTimeout)
		select {
		case listener <- msg:
			b.numSnd.Add(1)
		case <-timer.C:
			b.numSkip.Add(1)
			b.l.Debug("skipping slow listener", log.String("name", b.name))
		}
		timer.Stop()
	}
}

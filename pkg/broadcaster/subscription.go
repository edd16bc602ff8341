package broadcaster

import (
	"encoding/json"
	"sync"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/mpapenbr/overlay-telemetry-core/log"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/fieldpath"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/model"
)

// conn is the part of *websocket.Conn used by a subscription.
type conn interface {
	WriteMessage(messageType int, data []byte) error
	ReadMessage() (messageType int, p []byte, err error)
	Close() error
}

// subscription is one connected overlay. All fields except the queue are
// guarded by the broadcaster mutex.
type subscription struct {
	id          string
	conn        conn
	paths       []fieldpath.Path
	previewOnly bool
	received    bool            // got data in the current accounting period
	last        *model.Snapshot // baseline for the next diff

	queue     chan []byte
	done      chan struct{}
	closeOnce sync.Once
	onWrite   func(n int)
	l         *log.Logger
}

//nolint:whitespace // can't make both editor and linter happy
func newSubscription(
	c conn,
	paths []fieldpath.Path,
	previewOnly bool,
	queueSize int,
	onWrite func(n int),
	l *log.Logger,
) *subscription {
	id := uuid.NewString()
	return &subscription{
		id:          id,
		conn:        c,
		paths:       paths,
		previewOnly: previewOnly,
		queue:       make(chan []byte, queueSize),
		done:        make(chan struct{}),
		onWrite:     onWrite,
		l:           l.With(log.String("subscription", id)),
	}
}

// send queues the values without blocking. It returns false if the message
// was dropped.
func (s *subscription) send(vals fieldpath.Values) bool {
	data, err := json.Marshal(model.Success(vals))
	if err != nil {
		s.l.Error("could not encode envelope", log.ErrorField(err))
		return false
	}
	select {
	case <-s.done:
		return false
	default:
	}
	select {
	case s.queue <- data:
		return true
	default:
		s.l.Debug("queue full, dropping message")
		return false
	}
}

// writeLoop drains the queue until the subscription is closed
func (s *subscription) writeLoop() {
	for {
		select {
		case <-s.done:
			return
		case data := <-s.queue:
			if err := s.conn.WriteMessage(websocket.TextMessage, data); err != nil {
				s.l.Debug("write failed", log.ErrorField(err))
				s.close()
				return
			}
			if s.onWrite != nil {
				s.onWrite(len(data))
			}
		}
	}
}

// close may be called any number of times from any goroutine.
func (s *subscription) close() {
	s.closeOnce.Do(func() {
		close(s.done)
		if err := s.conn.Close(); err != nil {
			s.l.Debug("error closing connection", log.ErrorField(err))
		}
	})
}

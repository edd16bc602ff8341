package iracing

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
)

var (
	ErrUnsupportedFeed = errors.New("unsupported feed url")
	ErrFeedClosed      = errors.New("feed closed")
)

const (
	dialTimeout   = 3 * time.Second
	natsQueueSize = 64
)

// Feed delivers raw telemetry frames from the capture backend.
type Feed interface {
	Open(ctx context.Context) error
	// Next blocks until the next frame is available.
	Next(ctx context.Context) ([]byte, error)
	Close() error
}

// NewFeed creates the feed matching the scheme of rawURL.
// nats:// feeds subscribe to subject.
func NewFeed(rawURL, subject string) (Feed, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnsupportedFeed, err)
	}
	switch u.Scheme {
	case "ws", "wss":
		return &wsFeed{url: rawURL}, nil
	case "nats", "tls":
		return &natsFeed{url: rawURL, subject: subject}, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFeed, rawURL)
	}
}

type wsFeed struct {
	url  string
	mu   sync.Mutex
	conn *websocket.Conn
}

func (f *wsFeed) Open(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: dialTimeout}
	conn, resp, err := dialer.DialContext(ctx, f.url, nil)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	if err != nil {
		return err
	}
	f.mu.Lock()
	f.conn = conn
	f.mu.Unlock()
	return nil
}

func (f *wsFeed) Next(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	conn := f.conn
	f.mu.Unlock()
	if conn == nil {
		return nil, ErrFeedClosed
	}
	_, data, err := conn.ReadMessage()
	return data, err
}

// Close may be called while Next is blocked.
func (f *wsFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn == nil {
		return nil
	}
	err := f.conn.Close()
	f.conn = nil
	return err
}

type natsFeed struct {
	url     string
	subject string
	mu      sync.Mutex
	conn    *nats.Conn
	sub     *nats.Subscription
	msgs    chan *nats.Msg
}

func (f *natsFeed) Open(ctx context.Context) error {
	conn, err := nats.Connect(f.url,
		nats.Name("otc-feed"),
		nats.Timeout(dialTimeout),
		nats.NoReconnect())
	if err != nil {
		return err
	}
	msgs := make(chan *nats.Msg, natsQueueSize)
	sub, err := conn.ChanSubscribe(f.subject, msgs)
	if err != nil {
		conn.Close()
		return err
	}
	f.mu.Lock()
	f.conn = conn
	f.sub = sub
	f.msgs = msgs
	f.mu.Unlock()
	return nil
}

func (f *natsFeed) Next(ctx context.Context) ([]byte, error) {
	f.mu.Lock()
	conn, msgs := f.conn, f.msgs
	f.mu.Unlock()
	if conn == nil {
		return nil, ErrFeedClosed
	}
	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case msg := <-msgs:
			return msg.Data, nil
		case <-time.After(dialTimeout):
			if conn.IsClosed() {
				return nil, ErrFeedClosed
			}
		}
	}
}

func (f *natsFeed) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.conn == nil {
		return nil
	}
	var err error
	if f.sub != nil {
		err = f.sub.Unsubscribe()
	}
	f.conn.Close()
	f.conn = nil
	f.sub = nil
	return err
}

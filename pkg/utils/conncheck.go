package utils

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"time"

	"github.com/mpapenbr/overlay-telemetry-core/log"
)

var defaultPorts = map[string]string{
	"ws":   "80",
	"wss":  "443",
	"nats": "4222",
	"tls":  "4222",
}

// WaitForTCP blocks until addr accepts tcp connections, the timeout is
// reached or ctx is done.
func WaitForTCP(ctx context.Context, addr string, timeout time.Duration) error {
	timeoutReached := time.Now().Add(timeout)
	start := time.Now()
	log.Debug("wait for tcp connection",
		log.String("addr", addr),
		log.String("timeout", timeout.String()))
	var d net.Dialer
	for time.Now().Before(timeoutReached) {
		conn, err := d.DialContext(ctx, "tcp", addr)
		if err == nil {
			conn.Close()
			log.Debug("tcp connection successful",
				log.String("addr", addr),
				log.String("duration", time.Since(start).String()))
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(200 * time.Millisecond):
		}
	}
	return fmt.Errorf("%s could not be reached after %v", addr, timeout)
}

// FeedAddr returns host:port of a feed url. The default port of the scheme
// is used if the url has none. An empty string is returned for unknown
// schemes.
func FeedAddr(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return ""
	}
	if port := u.Port(); port != "" {
		return net.JoinHostPort(u.Hostname(), port)
	}
	port, ok := defaultPorts[u.Scheme]
	if !ok {
		return ""
	}
	return net.JoinHostPort(u.Hostname(), port)
}

package broadcaster

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/websocket"

	"github.com/mpapenbr/overlay-telemetry-core/log"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/fieldpath"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/model"
)

// ServeHTTP upgrades the request to a websocket subscription.
// Query parameters: q (comma separated field paths), preview (bool).
func (b *Broadcaster) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		b.l.Debug("upgrade failed", log.ErrorField(err))
		return
	}
	b.Serve(c, r.URL.Query().Get("q"), parsePreview(r.URL.Query().Get("preview")))
}

// Serve runs the subscription protocol on an established connection. It
// returns when the connection is closed.
func (b *Broadcaster) Serve(c conn, q string, previewOnly bool) {
	paths := fieldpath.ParseList(q)
	if len(paths) < MinFields || len(paths) > MaxFields {
		b.l.Debug("rejecting subscription", log.Int("paths", len(paths)))
		reject(c, ErrMsgInvalidFieldCount)
		return
	}
	sub := newSubscription(c, paths, previewOnly, b.queueSize,
		func(n int) { b.bytesSent.Add(int64(n)) }, b.l)
	go sub.writeLoop()
	b.register(sub)
	defer func() {
		b.remove(sub)
		sub.close()
	}()

	// inbound messages are not part of the protocol, reading detects the close
	for {
		if _, _, err := c.ReadMessage(); err != nil {
			return
		}
	}
}

func reject(c conn, msg string) {
	//nolint:errcheck // connection is closed anyway
	defer c.Close()
	data, err := json.Marshal(model.Failure(msg))
	if err != nil {
		return
	}
	if err := c.WriteMessage(websocket.TextMessage, data); err != nil {
		return
	}
	//nolint:errcheck // best effort
	c.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.ClosePolicyViolation, msg))
}

func parsePreview(v string) bool {
	ret, err := strconv.ParseBool(v)
	return err == nil && ret
}

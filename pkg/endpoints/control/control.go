// Package control exposes game selection, recording and preview mode to the
// desktop shell as a small JSON API.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"os"

	"github.com/aarondl/opt/omit"
	"github.com/aarondl/opt/omitnull"

	"github.com/mpapenbr/overlay-telemetry-core/log"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/game"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/model"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/session"
)

const maxBodySize = 64 * 1024

// Session is the part of the coordinator used by the control endpoints.
type Session interface {
	SelectGame(ctx context.Context, name model.GameName) bool
	StartRecording(ctx context.Context, filename omit.Val[string], fps omit.Val[int]) error
	StopRecording(ctx context.Context) error
	Game() model.GameName
	Status() game.Status
	Recording() session.RecordingState
}

// Previewer toggles the distribution mode of the broadcaster.
type Previewer interface {
	SetPreview(on bool)
	Preview() bool
	NumSubscriptions() int
}

type StatusResponse struct {
	Game          model.GameName         `json:"game"`
	Status        game.Status            `json:"status"`
	Recording     session.RecordingState `json:"recording"`
	Preview       bool                   `json:"preview"`
	Subscriptions int                    `json:"subscriptions"`
}

type GameRequest struct {
	Name omitnull.Val[string] `json:"name"`
}

type GameResponse struct {
	Changed bool           `json:"changed"`
	Game    model.GameName `json:"game"`
}

type RecordingRequest struct {
	Filename omit.Val[string] `json:"filename"`
	Fps      omit.Val[int]    `json:"fps"`
}

type PreviewRequest struct {
	Enabled bool `json:"enabled"`
}

type Option func(*handler)

func WithLogger(l *log.Logger) Option {
	return func(h *handler) {
		h.l = l
	}
}

type handler struct {
	l       *log.Logger
	session Session
	preview Previewer
}

// NewHandler returns the mux serving the control endpoints below /control
// and the health check at /healthz.
func NewHandler(s Session, p Previewer, opts ...Option) http.Handler {
	h := &handler{
		l:       log.Default().Named("control"),
		session: s,
		preview: p,
	}
	for _, opt := range opts {
		opt(h)
	}
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		//nolint:errcheck // best effort
		w.Write([]byte("ok"))
	})
	mux.HandleFunc("GET /control/status", h.status)
	mux.HandleFunc("POST /control/game", h.selectGame)
	mux.HandleFunc("POST /control/recording/start", h.startRecording)
	mux.HandleFunc("POST /control/recording/stop", h.stopRecording)
	mux.HandleFunc("POST /control/preview", h.setPreview)
	return mux
}

func (h *handler) status(w http.ResponseWriter, r *http.Request) {
	h.reply(w, http.StatusOK, model.Success(StatusResponse{
		Game:          h.session.Game(),
		Status:        h.session.Status(),
		Recording:     h.session.Recording(),
		Preview:       h.preview.Preview(),
		Subscriptions: h.preview.NumSubscriptions(),
	}))
}

func (h *handler) selectGame(w http.ResponseWriter, r *http.Request) {
	req := GameRequest{}
	if !h.decode(w, r, &req) {
		return
	}
	changed := h.session.SelectGame(r.Context(), model.GameName(req.Name.GetOr("")))
	h.reply(w, http.StatusOK, model.Success(GameResponse{
		Changed: changed,
		Game:    h.session.Game(),
	}))
}

func (h *handler) startRecording(w http.ResponseWriter, r *http.Request) {
	req := RecordingRequest{}
	if !h.decode(w, r, &req) {
		return
	}
	if err := h.session.StartRecording(r.Context(), req.Filename, req.Fps); err != nil {
		code := http.StatusInternalServerError
		if errors.Is(err, session.ErrInvalidFilename) || errors.Is(err, os.ErrExist) {
			code = http.StatusBadRequest
		}
		h.reply(w, code, model.Failure(err.Error()))
		return
	}
	h.reply(w, http.StatusOK, model.Success(h.session.Recording()))
}

func (h *handler) stopRecording(w http.ResponseWriter, r *http.Request) {
	if err := h.session.StopRecording(r.Context()); err != nil {
		h.reply(w, http.StatusInternalServerError, model.Failure(err.Error()))
		return
	}
	h.reply(w, http.StatusOK, model.Success(h.session.Recording()))
}

func (h *handler) setPreview(w http.ResponseWriter, r *http.Request) {
	req := PreviewRequest{}
	if !h.decode(w, r, &req) {
		return
	}
	h.preview.SetPreview(req.Enabled)
	h.reply(w, http.StatusOK, model.Success(PreviewRequest{Enabled: h.preview.Preview()}))
}

// decode reads the optional json body into target. An empty body is
// accepted, a body must be sent as application/json. On errors a failure
// is sent and false is returned.
func (h *handler) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if r.ContentLength != 0 {
		mt, _, err := mime.ParseMediaType(r.Header.Get("Content-Type"))
		if err != nil || mt != "application/json" {
			h.reply(w, http.StatusUnsupportedMediaType,
				model.Failure("content type must be application/json"))
			return false
		}
	}
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err := dec.Decode(target); err != nil && !errors.Is(err, io.EOF) {
		h.l.Debug("invalid request", log.String("path", r.URL.Path), log.ErrorField(err))
		h.reply(w, http.StatusBadRequest, model.Failure("invalid payload"))
		return false
	}
	return true
}

func (h *handler) reply(w http.ResponseWriter, code int, env model.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(env); err != nil {
		h.l.Debug("could not write response", log.ErrorField(err))
	}
}

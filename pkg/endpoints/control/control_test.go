package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/aarondl/opt/omit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mpapenbr/overlay-telemetry-core/pkg/game"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/model"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/session"
)

var errDiskFull = errors.New("disk full")

type fakeSession struct {
	game      model.GameName
	selects   int
	recording session.RecordingState
	filename  omit.Val[string]
	fps       omit.Val[int]
	startErr  error
}

func (f *fakeSession) SelectGame(ctx context.Context, name model.GameName) bool {
	f.selects++
	if name == f.game {
		return false
	}
	f.game = name
	return true
}

//nolint:whitespace // can't make both editor and linter happy
func (f *fakeSession) StartRecording(
	ctx context.Context, filename omit.Val[string], fps omit.Val[int],
) error {
	if f.startErr != nil {
		return f.startErr
	}
	f.filename = filename
	f.fps = fps
	f.recording = session.RecordingState{
		Active: true, Filename: filename.GetOr("default.json"), Fps: fps.GetOr(10),
	}
	return nil
}

func (f *fakeSession) StopRecording(ctx context.Context) error {
	f.recording = session.RecordingState{}
	return nil
}

func (f *fakeSession) Game() model.GameName { return f.game }

func (f *fakeSession) Status() game.Status {
	return game.Status{Connected: f.game != model.GameNone}
}

func (f *fakeSession) Recording() session.RecordingState { return f.recording }

type fakePreview struct {
	on bool
}

func (f *fakePreview) SetPreview(on bool)    { f.on = on }
func (f *fakePreview) Preview() bool         { return f.on }
func (f *fakePreview) NumSubscriptions() int { return 3 }

type response struct {
	Success      bool            `json:"success"`
	Data         json.RawMessage `json:"data"`
	ErrorMessage string          `json:"errorMessage"`
}

func call(t *testing.T, h http.Handler, method, path, body string) (int, response) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	ret := response{}
	if rec.Header().Get("Content-Type") == "application/json" {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ret))
	}
	return rec.Code, ret
}

func TestSelectGame(t *testing.T) {
	s := &fakeSession{}
	h := NewHandler(s, &fakePreview{})

	code, resp := call(t, h, http.MethodPost, "/control/game", `{"name":"iracing"}`)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
	assert.JSONEq(t, `{"changed":true,"game":"iracing"}`, string(resp.Data))

	_, resp = call(t, h, http.MethodPost, "/control/game", `{"name":"iracing"}`)
	assert.JSONEq(t, `{"changed":false,"game":"iracing"}`, string(resp.Data))

	_, resp = call(t, h, http.MethodPost, "/control/game", `{"name":null}`)
	assert.JSONEq(t, `{"changed":true,"game":""}`, string(resp.Data))
	assert.Equal(t, 3, s.selects)
}

func TestSelectGame_InvalidPayload(t *testing.T) {
	s := &fakeSession{}
	code, resp := call(t, NewHandler(s, &fakePreview{}),
		http.MethodPost, "/control/game", `{"name":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.False(t, resp.Success)
	assert.Equal(t, "invalid payload", resp.ErrorMessage)
	assert.Equal(t, 0, s.selects)
}

func TestRecording(t *testing.T) {
	s := &fakeSession{}
	h := NewHandler(s, &fakePreview{})

	code, resp := call(t, h, http.MethodPost, "/control/recording/start", `{"fps":25}`)
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, resp.Success)
	assert.False(t, s.filename.IsValue())
	assert.Equal(t, 25, s.fps.GetOr(0))
	assert.JSONEq(t, `{"active":true,"filename":"default.json","fps":25,"frames":0}`,
		string(resp.Data))

	code, resp = call(t, h, http.MethodPost, "/control/recording/stop", "")
	assert.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, `{"active":false,"frames":0}`, string(resp.Data))

	// empty body uses the defaults
	_, resp = call(t, h, http.MethodPost, "/control/recording/start", "")
	assert.True(t, resp.Success)
	assert.False(t, s.fps.IsValue())
}

func TestRecording_Error(t *testing.T) {
	s := &fakeSession{startErr: errDiskFull}
	code, resp := call(t, NewHandler(s, &fakePreview{}),
		http.MethodPost, "/control/recording/start", `{"filename":"/x/rec.json"}`)
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.False(t, resp.Success)
	assert.Equal(t, "disk full", resp.ErrorMessage)
}

func TestRecording_InvalidFilename(t *testing.T) {
	for _, err := range []error{
		fmt.Errorf("%w: %q", session.ErrInvalidFilename, "../x"),
		&fs.PathError{Op: "open", Path: "rec.json", Err: fs.ErrExist},
	} {
		s := &fakeSession{startErr: err}
		code, resp := call(t, NewHandler(s, &fakePreview{}),
			http.MethodPost, "/control/recording/start", `{"filename":"../x"}`)
		assert.Equal(t, http.StatusBadRequest, code)
		assert.False(t, resp.Success)
		assert.Equal(t, err.Error(), resp.ErrorMessage)
	}
}

func TestRequiresJSONContentType(t *testing.T) {
	s := &fakeSession{}
	h := NewHandler(s, &fakePreview{})
	for _, ct := range []string{"text/plain", "", "application/x-www-form-urlencoded"} {
		req := httptest.NewRequest(http.MethodPost, "/control/recording/start",
			strings.NewReader(`{"filename":"rec.json"}`))
		if ct != "" {
			req.Header.Set("Content-Type", ct)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code, ct)
	}
	assert.False(t, s.recording.Active)

	req := httptest.NewRequest(http.MethodPost, "/control/preview",
		strings.NewReader(`{"enabled":true}`))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestPreviewAndStatus(t *testing.T) {
	s := &fakeSession{game: model.GameReplay}
	p := &fakePreview{}
	h := NewHandler(s, p)

	_, resp := call(t, h, http.MethodPost, "/control/preview", `{"enabled":true}`)
	assert.JSONEq(t, `{"enabled":true}`, string(resp.Data))
	assert.True(t, p.on)

	code, resp := call(t, h, http.MethodGet, "/control/status", "")
	assert.Equal(t, http.StatusOK, code)
	status := StatusResponse{}
	require.NoError(t, json.Unmarshal(resp.Data, &status))
	assert.Equal(t, StatusResponse{
		Game:          model.GameReplay,
		Status:        game.Status{Connected: true},
		Preview:       true,
		Subscriptions: 3,
	}, status)
}

func TestRoutes(t *testing.T) {
	h := NewHandler(&fakeSession{}, &fakePreview{})
	code, _ := call(t, h, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, code)

	code, _ = call(t, h, http.MethodGet, "/control/game", "")
	assert.Equal(t, http.StatusMethodNotAllowed, code)
}

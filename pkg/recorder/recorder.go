// Package recorder persists a rate limited stream of snapshots as one JSON
// array which can be loaded by the replay adapter.
package recorder

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/mpapenbr/overlay-telemetry-core/pkg/model"
)

const DefaultFps = 10

var ErrClosed = errors.New("recording is closed")

type Option func(*Recorder)

// WithClock replaces the clock used for throttling.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

// Recorder writes snapshots to a file. A frame is accepted only if at
// least 1000/fps milliseconds have passed since the last accepted frame.
type Recorder struct {
	mu       sync.Mutex
	filename string
	out      io.WriteCloser
	interval time.Duration
	now      func() time.Time
	last     time.Time
	frames   int
}

// Open creates the directory of filename if needed, creates the file and
// writes the opening bracket. An existing file is never overwritten, the
// error matches os.ErrExist then. fps <= 0 uses DefaultFps.
func Open(filename string, fps int, opts ...Option) (*Recorder, error) {
	if fps <= 0 {
		fps = DefaultFps
	}
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return nil, fmt.Errorf("create recording dir: %w", err)
	}
	f, err := os.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return nil, fmt.Errorf("create recording: %w", err)
	}
	ret := &Recorder{
		filename: filename,
		out:      f,
		interval: time.Second / time.Duration(fps),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(ret)
	}
	if _, err := io.WriteString(f, "["); err != nil {
		f.Close()
		return nil, fmt.Errorf("write recording: %w", err)
	}
	return ret, nil
}

func (r *Recorder) Filename() string {
	return r.filename
}

func (r *Recorder) Interval() time.Duration {
	return r.interval
}

// Frames returns the number of accepted frames.
func (r *Recorder) Frames() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.frames
}

// Write appends s if the throttle permits. It returns true if the frame
// was written. On write errors the file is closed and the recorder is
// unusable afterwards.
func (r *Recorder) Write(s *model.Snapshot) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.out == nil {
		return false, ErrClosed
	}
	now := r.now()
	if r.frames > 0 && now.Sub(r.last) < r.interval {
		return false, nil
	}
	data, err := json.Marshal(s)
	if err != nil {
		return false, fmt.Errorf("encode snapshot: %w", err)
	}
	if r.frames > 0 {
		data = append([]byte{','}, data...)
	}
	if _, err := r.out.Write(data); err != nil {
		r.abort()
		return false, fmt.Errorf("write recording: %w", err)
	}
	r.last = now
	r.frames++
	return true, nil
}

// Close writes the closing bracket and closes the file.
func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.out == nil {
		return ErrClosed
	}
	_, werr := io.WriteString(r.out, "]")
	cerr := r.out.Close()
	r.out = nil
	if werr != nil {
		return fmt.Errorf("write recording: %w", werr)
	}
	if cerr != nil {
		return fmt.Errorf("close recording: %w", cerr)
	}
	return nil
}

func (r *Recorder) abort() {
	//nolint:errcheck // the write error is reported instead
	r.out.Close()
	r.out = nil
}

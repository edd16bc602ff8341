// Package game defines the capability every telemetry source provides.
package game

import (
	"sync"
	"time"

	"github.com/mpapenbr/overlay-telemetry-core/pkg/model"
)

type Status struct {
	Connected bool `json:"connected"`
	OnTrack   bool `json:"onTrack"`
	InReplay  bool `json:"inReplay"`
}

// Listener receives the events of an adapter. Calls may come from any
// goroutine but never concurrently for the same adapter.
type Listener interface {
	Data(s *model.Snapshot)
	StatusChanged(st Status)
}

// Adapter is a telemetry source. Connect and Disconnect must not block
// beyond setting up the adapter's own goroutines. Connection failures are
// reported via Status, never returned.
type Adapter interface {
	Connect(interval time.Duration)
	Disconnect()
	Status() Status
}

// Factory creates an adapter delivering its events to l.
type Factory func(l Listener) Adapter

// StatusTracker caches the status flags and reports changes only.
type StatusTracker struct {
	mu       sync.Mutex
	current  Status
	listener Listener
}

func NewStatusTracker(l Listener) *StatusTracker {
	return &StatusTracker{listener: l}
}

func (t *StatusTracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current
}

// Update stores st and notifies the listener if it differs from the
// previous value. It returns true if a change was reported.
func (t *StatusTracker) Update(st Status) bool {
	t.mu.Lock()
	if st == t.current {
		t.mu.Unlock()
		return false
	}
	t.current = st
	t.mu.Unlock()
	if t.listener != nil {
		t.listener.StatusChanged(st)
	}
	return true
}

// FromSnapshot derives the status flags of a connected adapter from s.
func FromSnapshot(s *model.Snapshot) Status {
	return Status{
		Connected: true,
		OnTrack:   s.Realtime.OnTrack,
		InReplay:  s.Realtime.InReplay,
	}
}

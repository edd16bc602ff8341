package session

import (
	"github.com/mpapenbr/overlay-telemetry-core/pkg/game"
	"github.com/mpapenbr/overlay-telemetry-core/pkg/model"
)

type EventKind int

const (
	EventData EventKind = iota
	EventStatus
	EventGameChanged
	EventRecordingStopped
)

func (k EventKind) String() string {
	switch k {
	case EventData:
		return "data"
	case EventStatus:
		return "status"
	case EventGameChanged:
		return "gameChanged"
	case EventRecordingStopped:
		return "recordingStopped"
	default:
		return "unknown"
	}
}

// Event is published by the coordinator. Only the fields matching Kind are
// set. Err is set on EventRecordingStopped if the recording failed.
type Event struct {
	Kind     EventKind
	Snapshot *model.Snapshot
	Game     model.GameName
	Status   game.Status
	Err      error
}

// RecordingState describes the active recording.
type RecordingState struct {
	Active   bool   `json:"active"`
	Filename string `json:"filename,omitempty"`
	Fps      int    `json:"fps,omitempty"`
	Frames   int    `json:"frames"`
}

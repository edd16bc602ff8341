package replay

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/mpapenbr/overlay-telemetry-core/pkg/model"
)

var (
	ErrNotAnArray      = errors.New("recording is not a JSON array")
	ErrNotAnObject     = errors.New("record is not an object")
	ErrInvalidRealtime = errors.New("record has no realtime object")
	ErrInvalidDrivers  = errors.New("record has no drivers array")
	ErrInvalidSession  = errors.New("record has no session object")
)

var (
	realtimePath = jp.MustParseString("$.realtime")
	driversPath  = jp.MustParseString("$.drivers")
	sessionPath  = jp.MustParseString("$.session")
)

// Invalid describes a record which was dropped while loading.
type Invalid struct {
	Index int
	Err   error
}

type Recording struct {
	Frames  []*model.Snapshot
	Dropped []Invalid
}

func Load(filename string) (*Recording, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

// Parse decodes a recording. Records which do not have the snapshot shape
// are collected in Dropped, the remaining records keep their order.
func Parse(data []byte) (*Recording, error) {
	var records []json.RawMessage
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNotAnArray, err)
	}
	ret := &Recording{Frames: make([]*model.Snapshot, 0, len(records))}
	for i, raw := range records {
		s, err := decodeRecord(raw)
		if err != nil {
			ret.Dropped = append(ret.Dropped, Invalid{Index: i, Err: err})
			continue
		}
		ret.Frames = append(ret.Frames, s)
	}
	return ret, nil
}

func decodeRecord(raw json.RawMessage) (*model.Snapshot, error) {
	rec, err := oj.Parse(raw)
	if err != nil {
		return nil, err
	}
	if err := validate(rec); err != nil {
		return nil, err
	}
	s := &model.Snapshot{}
	if err := json.Unmarshal(raw, s); err != nil {
		return nil, err
	}
	return s, nil
}

func validate(rec any) error {
	if _, ok := rec.(map[string]any); !ok {
		return ErrNotAnObject
	}
	if !matches[map[string]any](realtimePath, rec) {
		return ErrInvalidRealtime
	}
	if !matches[[]any](driversPath, rec) {
		return ErrInvalidDrivers
	}
	if !matches[map[string]any](sessionPath, rec) {
		return ErrInvalidSession
	}
	return nil
}

func matches[T any](x jp.Expr, rec any) bool {
	res := x.Get(rec)
	if len(res) != 1 {
		return false
	}
	_, ok := res[0].(T)
	return ok
}

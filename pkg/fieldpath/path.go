// Package fieldpath resolves subscriber field paths against snapshots and
// computes which of those fields changed between two snapshots.
//
// A path is a dot separated list of segments. A segment with the suffix "[]"
// addresses every element of a list, e.g. "drivers[].position".
package fieldpath

import (
	"strings"
)

const arraySuffix = "[]"

type Segment struct {
	Name  string
	Array bool
}

// Path is a parsed field path. Paths which could not be parsed are kept
// but never resolve to a value.
type Path struct {
	raw      string
	segments []Segment
}

func Parse(s string) Path {
	raw := strings.TrimSpace(s)
	ret := Path{raw: raw}
	if raw == "" {
		return ret
	}
	parts := strings.Split(raw, ".")
	segments := make([]Segment, 0, len(parts))
	for _, part := range parts {
		seg := Segment{Name: part}
		if strings.HasSuffix(part, arraySuffix) {
			seg = Segment{Name: strings.TrimSuffix(part, arraySuffix), Array: true}
		}
		if seg.Name == "" || strings.ContainsAny(seg.Name, "[] ") {
			return ret
		}
		segments = append(segments, seg)
	}
	ret.segments = segments
	return ret
}

// ParseList parses a comma separated list of paths. Empty items are dropped.
func ParseList(q string) []Path {
	ret := make([]Path, 0)
	for _, item := range strings.Split(q, ",") {
		if strings.TrimSpace(item) == "" {
			continue
		}
		ret = append(ret, Parse(item))
	}
	return ret
}

func MustParseList(items ...string) []Path {
	ret := make([]Path, len(items))
	for i, item := range items {
		ret[i] = Parse(item)
	}
	return ret
}

func (p Path) String() string {
	return p.raw
}

func (p Path) Valid() bool {
	return len(p.segments) > 0
}

func (p Path) Segments() []Segment {
	return p.segments
}

package fieldpath

import (
	"bytes"
	"encoding/json"
)

// Value is a resolved leaf. Path is the concrete path, list segments are
// rendered with their index (drivers[2].position).
type Value struct {
	Path  string
	Value any
}

// Values keeps the resolution order. It is encoded as a JSON object with
// the keys in that order.
type Values []Value

func (v Values) Get(path string) (any, bool) {
	for i := range v {
		if v[i].Path == path {
			return v[i].Value, true
		}
	}
	return nil, false
}

func (v Values) Paths() []string {
	ret := make([]string, len(v))
	for i := range v {
		ret[i] = v[i].Path
	}
	return ret
}

func (v Values) MarshalJSON() ([]byte, error) {
	buf := bytes.Buffer{}
	buf.WriteByte('{')
	for i := range v {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(v[i].Path)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(v[i].Value)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

type collector struct {
	seen   map[string]struct{}
	values Values
}

func newCollector() *collector {
	return &collector{seen: make(map[string]struct{}), values: Values{}}
}

func (c *collector) add(path string, v any) {
	if _, ok := c.seen[path]; ok {
		return
	}
	c.seen[path] = struct{}{}
	c.values = append(c.values, Value{Path: path, Value: v})
}

package fieldpath

import (
	"reflect"
	"strconv"

	"github.com/mpapenbr/overlay-telemetry-core/pkg/model"
)

// Extract resolves paths against s. Paths which do not resolve are omitted.
// The result follows the order of paths.
func Extract(paths []Path, s *model.Snapshot) Values {
	c := newCollector()
	if s == nil {
		return c.values
	}
	tree := s.Tree()
	for _, p := range paths {
		if !p.Valid() {
			continue
		}
		resolve(tree, p.segments, "", c.add)
	}
	return c.values
}

// Changed returns the values of next for all resolved paths whose value
// differs from prev. A nil prev reports every resolvable path as changed.
// If the length of a list differs, all elements below that list are reported.
func Changed(paths []Path, prev, next *model.Snapshot) Values {
	c := newCollector()
	if next == nil {
		return c.values
	}
	var prevTree any
	if prev != nil {
		prevTree = prev.Tree()
	}
	nextTree := next.Tree()
	for _, p := range paths {
		if !p.Valid() {
			continue
		}
		diff(prevTree, nextTree, p.segments, "", false, c.add)
	}
	return c.values
}

func childName(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

func indexName(name string, idx int) string {
	return name + "[" + strconv.Itoa(idx) + "]"
}

func resolve(node any, segs []Segment, prefix string, emit func(string, any)) {
	if len(segs) == 0 {
		if node != nil {
			emit(prefix, node)
		}
		return
	}
	m, ok := node.(map[string]any)
	if !ok {
		return
	}
	child, ok := m[segs[0].Name]
	if !ok {
		return
	}
	name := childName(prefix, segs[0].Name)
	if !segs[0].Array {
		resolve(child, segs[1:], name, emit)
		return
	}
	list, ok := child.([]any)
	if !ok {
		return
	}
	for i, el := range list {
		resolve(el, segs[1:], indexName(name, i), emit)
	}
}

//nolint:whitespace // can't make both editor and linter happy
func diff(
	prev, next any, segs []Segment, prefix string, force bool,
	emit func(string, any),
) {
	if len(segs) == 0 {
		if next == nil {
			return
		}
		if force || !reflect.DeepEqual(prev, next) {
			emit(prefix, next)
		}
		return
	}
	nm, ok := next.(map[string]any)
	if !ok {
		return
	}
	nChild, ok := nm[segs[0].Name]
	if !ok {
		return
	}
	var pChild any
	if pm, ok := prev.(map[string]any); ok {
		pChild = pm[segs[0].Name]
	}
	name := childName(prefix, segs[0].Name)
	if !segs[0].Array {
		diff(pChild, nChild, segs[1:], name, force, emit)
		return
	}
	nList, ok := nChild.([]any)
	if !ok {
		return
	}
	pList, ok := pChild.([]any)
	force = force || !ok || len(pList) != len(nList)
	for i, el := range nList {
		var pEl any
		if !force {
			pEl = pList[i]
		}
		diff(pEl, el, segs[1:], indexName(name, i), force, emit)
	}
}

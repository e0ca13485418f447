package store

import (
	"encoding/json"
	"strings"
	"time"
)

// Dotted-path helpers over the map form of a document. Both the in-memory
// store and the predicate evaluator work on documents round-tripped through
// JSON, so every value is a string, float64, bool, nil, map[string]any or
// []any and comparisons stay representation-independent.

func splitPath(path string) []string {
	return strings.Split(path, ".")
}

// valueAt resolves a dotted path. The second return is false when any segment
// is missing or a non-object is traversed.
func valueAt(m map[string]any, path string) (any, bool) {
	segs := splitPath(path)
	var cur any = m
	for _, seg := range segs {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = obj[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// setAt assigns a value at a dotted path, creating missing intermediate
// objects. Traversing a non-object replaces it with an object.
func setAt(m map[string]any, path string, value any) {
	segs := splitPath(path)
	cur := m
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			next = map[string]any{}
			cur[seg] = next
		}
		cur = next
	}
	cur[segs[len(segs)-1]] = value
}

// unsetAt removes the field at a dotted path. Missing paths are a no-op.
func unsetAt(m map[string]any, path string) {
	segs := splitPath(path)
	cur := m
	for _, seg := range segs[:len(segs)-1] {
		next, ok := cur[seg].(map[string]any)
		if !ok {
			return
		}
		cur = next
	}
	delete(cur, segs[len(segs)-1])
}

// pushAt appends to the array at a dotted path, creating it when absent.
// A non-array value at the path is replaced by a fresh array.
func pushAt(m map[string]any, path string, value any) {
	existing, ok := valueAt(m, path)
	arr, isArr := existing.([]any)
	if !ok || !isArr {
		arr = nil
	}
	setAt(m, path, append(arr, value))
}

// normalize round-trips a value through JSON so clause values compare equal
// to payload values regardless of the Go type they started as.
func normalize(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}

func jsonEqual(a, b any) bool {
	ra, errA := json.Marshal(normalize(a))
	rb, errB := json.Marshal(normalize(b))
	if errA != nil || errB != nil {
		return false
	}
	return string(ra) == string(rb)
}

// matches evaluates a predicate against the map form of a document.
func matches(m map[string]any, pred Predicate) bool {
	for _, c := range pred.All {
		if !clauseHolds(m, c) {
			return false
		}
	}
	if len(pred.Any) == 0 {
		return true
	}
	for _, c := range pred.Any {
		if clauseHolds(m, c) {
			return true
		}
	}
	return false
}

func clauseHolds(m map[string]any, c Clause) bool {
	got, ok := valueAt(m, c.Path)
	if !ok {
		return false
	}
	switch c.Op {
	case OpEq:
		return jsonEqual(got, c.Value)
	case OpIn:
		for _, v := range c.Values {
			if jsonEqual(got, v) {
				return true
			}
		}
	case OpGte:
		cmp, ok := compareValues(got, c.Value)
		return ok && cmp >= 0
	case OpLt:
		cmp, ok := compareValues(got, c.Value)
		return ok && cmp < 0
	}
	return false
}

// compareValues orders two normalized values. Timestamps are compared as
// instants regardless of the zone they were serialized in.
func compareValues(a, b any) (int, bool) {
	an, bn := normalize(a), normalize(b)
	as, aIsStr := an.(string)
	bs, bIsStr := bn.(string)
	if aIsStr && bIsStr {
		at, errA := time.Parse(time.RFC3339Nano, as)
		bt, errB := time.Parse(time.RFC3339Nano, bs)
		if errA == nil && errB == nil {
			return at.Compare(bt), true
		}
		return strings.Compare(as, bs), true
	}
	af, aIsNum := an.(float64)
	bf, bIsNum := bn.(float64)
	if aIsNum && bIsNum {
		switch {
		case af < bf:
			return -1, true
		case af > bf:
			return 1, true
		default:
			return 0, true
		}
	}
	return 0, false
}

// applyChanges applies an update spec to the map form of a document, in order.
func applyChanges(m map[string]any, spec *UpdateSpec) {
	for _, ch := range spec.Changes() {
		switch ch.Op {
		case OpSet:
			setAt(m, ch.Path, normalize(ch.Value))
		case OpUnset:
			unsetAt(m, ch.Path)
		case OpPush:
			pushAt(m, ch.Path, normalize(ch.Value))
		}
	}
}

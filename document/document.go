// Package document parses structured JSON documents, flattens their string
// leaves into dotted/bracketed paths and rebuilds documents from those paths.
//
// A document node is one of:
//   - string
//   - float64, bool or nil (passed through, never translated)
//   - *orderedmap.OrderedMap (key order preserved)
//   - []any
package document

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/iancoleman/orderedmap"
)

// NewMap returns an empty ordered mapping that does not HTML-escape its values.
func NewMap() *orderedmap.OrderedMap {
	m := orderedmap.New()
	m.SetEscapeHTML(false)
	return m
}

// Parse decodes JSON into a document tree, keeping mapping key order.
func Parse(data []byte) (any, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty document")
	}
	return parseValue(data)
}

func parseValue(raw []byte) (any, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return nil, fmt.Errorf("empty value")
	}

	switch raw[0] {
	case '{':
		m := orderedmap.New()
		if err := m.UnmarshalJSON(raw); err != nil {
			return nil, fmt.Errorf("decode object: %w", err)
		}
		return Normalize(m), nil
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(raw, &items); err != nil {
			return nil, fmt.Errorf("decode array: %w", err)
		}
		list := make([]any, len(items))
		for i, item := range items {
			v, err := parseValue(item)
			if err != nil {
				return nil, fmt.Errorf("element %d: %w", i, err)
			}
			list[i] = v
		}
		return list, nil
	default:
		var v any
		if err := json.Unmarshal(raw, &v); err != nil {
			return nil, fmt.Errorf("decode scalar: %w", err)
		}
		return v, nil
	}
}

// Normalize converts a decoded value into the canonical node types listed in
// the package documentation. orderedmap stores nested objects by value, and
// plain maps are ordered by key since their original order is unknown.
func Normalize(v any) any {
	switch n := v.(type) {
	case orderedmap.OrderedMap:
		return normalizeMap(&n)
	case *orderedmap.OrderedMap:
		if n == nil {
			return nil
		}
		return normalizeMap(n)
	case map[string]any:
		keys := make([]string, 0, len(n))
		for k := range n {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		m := NewMap()
		for _, k := range keys {
			m.Set(k, Normalize(n[k]))
		}
		return m
	case []any:
		list := make([]any, len(n))
		for i, item := range n {
			list[i] = Normalize(item)
		}
		return list
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return n.String()
		}
		return f
	default:
		return v
	}
}

func normalizeMap(src *orderedmap.OrderedMap) *orderedmap.OrderedMap {
	m := NewMap()
	for _, k := range src.Keys() {
		v, _ := src.Get(k)
		m.Set(k, Normalize(v))
	}
	return m
}

// Clone returns a deep copy of a normalized document.
func Clone(v any) any {
	switch n := v.(type) {
	case *orderedmap.OrderedMap:
		m := NewMap()
		for _, k := range n.Keys() {
			child, _ := n.Get(k)
			m.Set(k, Clone(child))
		}
		return m
	case []any:
		list := make([]any, len(n))
		for i, item := range n {
			list[i] = Clone(item)
		}
		return list
	default:
		return v
	}
}

// Marshal encodes a document without HTML escaping.
func Marshal(v any) ([]byte, error) {
	return encode(v, "")
}

// MarshalIndent encodes a document with two-space indentation.
func MarshalIndent(v any) ([]byte, error) {
	return encode(v, "  ")
}

func encode(v any, indent string) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent != "" {
		enc.SetIndent("", indent)
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// Equal reports whether two normalized documents have the same shape,
// key order and leaf values.
func Equal(a, b any) bool {
	switch x := a.(type) {
	case *orderedmap.OrderedMap:
		y, ok := b.(*orderedmap.OrderedMap)
		if !ok {
			return false
		}
		xk, yk := x.Keys(), y.Keys()
		if len(xk) != len(yk) {
			return false
		}
		for i, k := range xk {
			if yk[i] != k {
				return false
			}
			xv, _ := x.Get(k)
			yv, _ := y.Get(k)
			if !Equal(xv, yv) {
				return false
			}
		}
		return true
	case []any:
		y, ok := b.([]any)
		if !ok || len(x) != len(y) {
			return false
		}
		for i := range x {
			if !Equal(x[i], y[i]) {
				return false
			}
		}
		return true
	default:
		return a == b
	}
}

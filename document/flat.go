package document

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/iancoleman/orderedmap"
)

// FlatMapping maps FlatPaths to leaf strings in insertion order.
type FlatMapping struct {
	keys   []string
	values map[string]string
}

// NewFlatMapping returns an empty mapping.
func NewFlatMapping() *FlatMapping {
	return &FlatMapping{values: make(map[string]string)}
}

// Set stores value at path. A new path is appended to the iteration order.
func (f *FlatMapping) Set(path, value string) {
	if f.values == nil {
		f.values = make(map[string]string)
	}
	if _, ok := f.values[path]; !ok {
		f.keys = append(f.keys, path)
	}
	f.values[path] = value
}

// Get returns the value at path.
func (f *FlatMapping) Get(path string) (string, bool) {
	v, ok := f.values[path]
	return v, ok
}

// Has reports whether path is present.
func (f *FlatMapping) Has(path string) bool {
	_, ok := f.values[path]
	return ok
}

// Keys returns the paths in insertion order.
func (f *FlatMapping) Keys() []string {
	out := make([]string, len(f.keys))
	copy(out, f.keys)
	return out
}

// Len returns the number of entries.
func (f *FlatMapping) Len() int {
	return len(f.keys)
}

// Map returns an unordered copy of the entries.
func (f *FlatMapping) Map() map[string]string {
	out := make(map[string]string, len(f.values))
	for k, v := range f.values {
		out[k] = v
	}
	return out
}

// MarshalJSON encodes the mapping as a JSON object in insertion order.
func (f *FlatMapping) MarshalJSON() ([]byte, error) {
	m := NewMap()
	for _, k := range f.keys {
		m.Set(k, f.values[k])
	}
	return m.MarshalJSON()
}

// UnmarshalJSON decodes a JSON object of strings, keeping key order.
func (f *FlatMapping) UnmarshalJSON(data []byte) error {
	m := orderedmap.New()
	if err := m.UnmarshalJSON(data); err != nil {
		return err
	}
	f.keys = nil
	f.values = make(map[string]string, len(m.Keys()))
	for _, k := range m.Keys() {
		v, _ := m.Get(k)
		s, ok := v.(string)
		if !ok {
			return fmt.Errorf("flat mapping value at %q is %T, not a string", k, v)
		}
		f.Set(k, s)
	}
	return nil
}

// Flatten walks doc depth-first and records every string leaf at its path.
// Numbers, booleans and null are skipped; empty strings are kept.
func Flatten(doc any) *FlatMapping {
	out := NewFlatMapping()
	flattenInto(out, doc, "", true)
	return out
}

// flattenInto joins keys with '.' below the root, including empty keys and
// keys under an empty parent, so every path stays distinct.
func flattenInto(out *FlatMapping, node any, prefix string, atRoot bool) {
	switch n := node.(type) {
	case string:
		out.Set(prefix, n)
	case *orderedmap.OrderedMap:
		for _, k := range n.Keys() {
			child, _ := n.Get(k)
			path := k
			if !atRoot {
				path = prefix + "." + k
			}
			flattenInto(out, child, path, false)
		}
	case []any:
		for i, child := range n {
			flattenInto(out, child, prefix+"["+strconv.Itoa(i)+"]", false)
		}
	}
}

// StepKind distinguishes mapping keys from list indices in a parsed path.
type StepKind int

const (
	KeyStep StepKind = iota
	IndexStep
)

// Step is one segment of a FlatPath.
type Step struct {
	Kind  StepKind
	Key   string
	Index int
}

func (s Step) String() string {
	if s.Kind == IndexStep {
		return "[" + strconv.Itoa(s.Index) + "]"
	}
	return s.Key
}

// ParsePath splits a FlatPath on '.', '[' and ']'. A key token is emitted
// at the start of the path and after every '.', even when empty, so empty
// mapping keys survive. Empty tokens next to a bracket are discarded.
// Tokens that were written inside brackets become index steps. Keys that
// themselves contain '.' or '[' cannot be expressed.
func ParsePath(path string) ([]Step, error) {
	var steps []Step
	var token strings.Builder
	inBracket := false
	// keyOpen is set where a key token is expected: the start of the path
	// and directly after a '.'.
	keyOpen := true

	flush := func() error {
		if token.Len() == 0 && (inBracket || !keyOpen) {
			return nil
		}
		t := token.String()
		token.Reset()
		if !inBracket {
			steps = append(steps, Step{Kind: KeyStep, Key: t})
			return nil
		}
		idx, err := strconv.Atoi(t)
		if err != nil || idx < 0 {
			return fmt.Errorf("invalid index %q in path %q", t, path)
		}
		steps = append(steps, Step{Kind: IndexStep, Index: idx})
		return nil
	}

	for _, r := range path {
		switch r {
		case '.':
			if inBracket {
				return nil, fmt.Errorf("unterminated index in path %q", path)
			}
			if err := flush(); err != nil {
				return nil, err
			}
			keyOpen = true
		case '[':
			if inBracket {
				return nil, fmt.Errorf("nested bracket in path %q", path)
			}
			if token.Len() > 0 {
				if err := flush(); err != nil {
					return nil, err
				}
			}
			inBracket = true
			keyOpen = false
		case ']':
			if !inBracket {
				return nil, fmt.Errorf("unexpected ']' in path %q", path)
			}
			if err := flush(); err != nil {
				return nil, err
			}
			inBracket = false
		default:
			token.WriteRune(r)
		}
	}
	if inBracket {
		return nil, fmt.Errorf("unterminated index in path %q", path)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return steps, nil
}

// Unflatten deep-clones template and assigns every entry of flat at its path.
// Missing intermediate containers are created. Each path is applied
// independently, so the order of entries does not affect the result.
func Unflatten(flat *FlatMapping, template any) (any, error) {
	root := Clone(template)
	if flat == nil {
		return root, nil
	}
	for _, path := range flat.keys {
		if path == "" && !isContainer(root) {
			root = flat.values[path]
			continue
		}
		steps, err := ParsePath(path)
		if err != nil {
			return nil, err
		}
		root = assign(root, steps, flat.values[path])
	}
	return root, nil
}

// assign returns node with value stored at steps. A node of the wrong
// container type is replaced by the container the step needs.
func assign(node any, steps []Step, value string) any {
	if len(steps) == 0 {
		return value
	}
	step, rest := steps[0], steps[1:]

	switch step.Kind {
	case IndexStep:
		list, _ := node.([]any)
		for len(list) <= step.Index {
			list = append(list, sparsePlaceholder())
		}
		list[step.Index] = assign(list[step.Index], rest, value)
		return list
	default:
		m, ok := node.(*orderedmap.OrderedMap)
		if !ok || m == nil {
			m = NewMap()
		}
		child, _ := m.Get(step.Key)
		m.Set(step.Key, assign(child, rest, value))
		return m
	}
}

// sparsePlaceholder fills list positions skipped by an out-of-range index.
// Gaps become empty objects, not null.
func sparsePlaceholder() any {
	return NewMap()
}

// isContainer reports whether node is a mapping or a list. The empty path
// addresses the root itself only when the root is a scalar.
func isContainer(node any) bool {
	switch node.(type) {
	case *orderedmap.OrderedMap, []any:
		return true
	}
	return false
}

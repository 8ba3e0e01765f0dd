// Package validation models the field-keyed error tree the API returns with
// a 400 response and turns it into per-field form messages.
package validation

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
)

// Violation is a single rule a field failed.
type Violation struct {
	Code    string         `json:"code"`
	Message *string        `json:"message"`
	Params  map[string]any `json:"params,omitempty"`
}

// NewViolation builds a violation with optional key/value params.
func NewViolation(code string, params ...any) Violation {
	v := Violation{Code: code}
	for i := 0; i+1 < len(params); i += 2 {
		key, ok := params[i].(string)
		if !ok {
			continue
		}
		if v.Params == nil {
			v.Params = make(map[string]any)
		}
		v.Params[key] = params[i+1]
	}
	return v
}

// WithMessage returns a copy of v carrying an explicit message.
func (v Violation) WithMessage(message string) Violation {
	v.Message = &message
	return v
}

func (v Violation) String() string {
	switch {
	case v.Message != nil && *v.Message != "":
		return v.Code + " " + *v.Message
	case len(v.Params) == 0:
		return v.Code
	default:
		params, err := json.Marshal(v.Params)
		if err != nil {
			return v.Code
		}
		return v.Code + " " + string(params)
	}
}

// Errors is one node of the validation tree: either a Leaf holding the
// violations of a single field, or a Node keyed by nested field name.
type Errors interface {
	isErrors()
	write(b *strings.Builder, indent string)
}

// Leaf lists every rule a field violated.
type Leaf []Violation

// Node groups nested fields, e.g. the sub-fields of a task's vdaf.
type Node map[string]Errors

func (Leaf) isErrors() {}
func (Node) isErrors() {}

// Parse decodes a 400 response body into a tree.
func Parse(data []byte) (Node, error) {
	var n Node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, err
	}
	return n, nil
}

// UnmarshalJSON discriminates children on their JSON kind: arrays become
// leaves, objects become nested nodes and nulls are skipped.
func (n *Node) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	out := make(Node, len(raw))
	for key, value := range raw {
		trimmed := bytes.TrimSpace(value)
		if len(trimmed) == 0 {
			continue
		}
		switch trimmed[0] {
		case '[':
			var leaf Leaf
			if err := json.Unmarshal(trimmed, &leaf); err != nil {
				return fmt.Errorf("field %s: %w", key, err)
			}
			out[key] = leaf
		case '{':
			var child Node
			if err := json.Unmarshal(trimmed, &child); err != nil {
				return fmt.Errorf("field %s: %w", key, err)
			}
			out[key] = child
		case 'n':
		default:
			return fmt.Errorf("field %s: expected array or object, got %s", key, trimmed)
		}
	}
	*n = out
	return nil
}

// Add appends a violation to field. A nested node stored under field is
// replaced by the leaf.
func (n Node) Add(field string, v Violation) {
	if leaf, ok := n[field].(Leaf); ok {
		n[field] = append(leaf, v)
		return
	}
	n[field] = Leaf{v}
}

// Nest returns the nested node stored under field, creating it if needed.
func (n Node) Nest(field string) Node {
	if child, ok := n[field].(Node); ok {
		return child
	}
	child := Node{}
	n[field] = child
	return child
}

// Field walks path and returns the subtree found there.
func (n Node) Field(path ...string) (Errors, bool) {
	var cur Errors = n
	for _, key := range path {
		node, ok := cur.(Node)
		if !ok {
			return nil, false
		}
		if cur, ok = node[key]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// Len counts the violations in the tree.
func (n Node) Len() int {
	total := 0
	for _, child := range n {
		switch c := child.(type) {
		case Leaf:
			total += len(c)
		case Node:
			total += c.Len()
		}
	}
	return total
}

// Empty reports whether the tree holds no violations.
func (n Node) Empty() bool {
	return n.Len() == 0
}

func (n Node) String() string {
	var b strings.Builder
	n.write(&b, "")
	return b.String()
}

func (n Node) write(b *strings.Builder, indent string) {
	for _, key := range sortedKeys(n) {
		fmt.Fprintf(b, "%s- %s:\n", indent, key)
		n[key].write(b, indent+"  ")
	}
}

func (l Leaf) write(b *strings.Builder, indent string) {
	for _, v := range l {
		fmt.Fprintf(b, "%s* %s\n", indent, v)
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

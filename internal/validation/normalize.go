package validation

import (
	"encoding/json"
	"strings"

	"github.com/divviup/divviup-console/internal/logging"
)

// FormEntry is either a joined message or a nested set of form errors.
type FormEntry struct {
	Message string
	Nested  FormErrors
}

// FormErrors mirrors the shape of a Node with every leaf collapsed into a
// single message string.
type FormErrors map[string]FormEntry

// Get walks path and returns the message stored at its end.
func (f FormErrors) Get(path ...string) (string, bool) {
	cur := f
	for i, key := range path {
		entry, ok := cur[key]
		if !ok {
			return "", false
		}
		if i == len(path)-1 {
			return entry.Message, entry.Nested == nil
		}
		if entry.Nested == nil {
			return "", false
		}
		cur = entry.Nested
	}
	return "", false
}

// Flatten returns every message keyed by its dotted field path.
func (f FormErrors) Flatten() map[string]string {
	out := make(map[string]string)
	f.flatten("", out)
	return out
}

func (f FormErrors) flatten(prefix string, out map[string]string) {
	for key, entry := range f {
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if entry.Nested != nil {
			entry.Nested.flatten(path, out)
			continue
		}
		out[path] = entry.Message
	}
}

func (e FormEntry) MarshalJSON() ([]byte, error) {
	if e.Nested != nil {
		return json.Marshal(e.Nested)
	}
	return json.Marshal(e.Message)
}

func (e *FormEntry) UnmarshalJSON(data []byte) error {
	if strings.HasPrefix(strings.TrimSpace(string(data)), "{") {
		e.Message = ""
		return json.Unmarshal(data, &e.Nested)
	}
	e.Nested = nil
	return json.Unmarshal(data, &e.Message)
}

// Normalizer converts validation trees into form errors.
type Normalizer struct {
	// Logger receives a debug entry for every unrecognized code. Nil is silent.
	Logger *logging.Logger
}

// Normalize converts errs using a silent Normalizer.
func Normalize(errs Node) FormErrors {
	return Normalizer{}.Normalize(errs)
}

// Normalize joins the distinct messages of every leaf with ", ", keeping
// first-seen order, and recurses into nested nodes. Leaves without
// violations are dropped, as are nodes left without children.
func (n Normalizer) Normalize(errs Node) FormErrors {
	out := make(FormErrors, len(errs))
	for field, child := range errs {
		switch c := child.(type) {
		case Leaf:
			if msg := n.join(field, c); msg != "" {
				out[field] = FormEntry{Message: msg}
			}
		case Node:
			if nested := n.Normalize(c); len(nested) > 0 {
				out[field] = FormEntry{Nested: nested}
			}
		}
	}
	return out
}

func (n Normalizer) join(field string, leaf Leaf) string {
	seen := make(map[string]struct{}, len(leaf))
	messages := make([]string, 0, len(leaf))
	for _, v := range leaf {
		msg, known := message(v)
		if !known {
			n.Logger.Debug("unrecognized validation code", "field", field, "code", v.Code, "params", v.Params)
		}
		if msg == "" {
			continue
		}
		if _, dup := seen[msg]; dup {
			continue
		}
		seen[msg] = struct{}{}
		messages = append(messages, msg)
	}
	return strings.Join(messages, ", ")
}

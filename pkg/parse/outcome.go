// Package parse classifies model output as structured JSON or free text.
//
// Model responses are never trusted to be valid JSON, even when JSON was
// requested. Parse returns a tagged Outcome and callers match on its Kind
// instead of probing optional fields.
package parse

import (
	"bytes"
	"encoding/json"
	"strings"
)

// Kind tags an Outcome.
type Kind int

const (
	// Unstructured means no JSON value could be recovered; Raw holds the text.
	Unstructured Kind = iota
	// Object means the text held a JSON object; Fields holds it.
	Object
	// Array means the text held a top-level JSON array; Items holds it.
	Array
)

func (k Kind) String() string {
	switch k {
	case Object:
		return "object"
	case Array:
		return "array"
	default:
		return "unstructured"
	}
}

// Outcome is the result of parsing one model response.
type Outcome struct {
	fields map[string]any
	items  []any
	raw    string
	kind   Kind
}

// Kind reports which variant this outcome holds.
func (o Outcome) Kind() Kind { return o.kind }

// Structured reports whether a JSON value was recovered.
func (o Outcome) Structured() bool { return o.kind != Unstructured }

// Fields returns the object and true for Object outcomes.
func (o Outcome) Fields() (map[string]any, bool) {
	return o.fields, o.kind == Object
}

// Items returns the array and true for Array outcomes.
func (o Outcome) Items() ([]any, bool) {
	return o.items, o.kind == Array
}

// Raw returns the original response text, unmodified.
func (o Outcome) Raw() string { return o.raw }

// Parse extracts a JSON object or array from text. It tries, in order: the
// whole trimmed text, the body of the first ```json (or bare ```) fence, and
// the span from the first opening brace to the last closing brace.
func Parse(text string) Outcome {
	out := Outcome{raw: text}
	for _, candidate := range candidates(text) {
		v, ok := decode(candidate)
		if !ok {
			continue
		}
		switch val := v.(type) {
		case map[string]any:
			out.kind = Object
			out.fields = val
			return out
		case []any:
			out.kind = Array
			out.items = val
			return out
		}
	}
	return out
}

func candidates(text string) []string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil
	}
	out := []string{trimmed}
	if fenced, ok := fenceBody(trimmed); ok {
		out = append(out, fenced)
	}
	if start, end := strings.Index(trimmed, "{"), strings.LastIndex(trimmed, "}"); start >= 0 && end > start {
		out = append(out, trimmed[start:end+1])
	}
	return out
}

func fenceBody(text string) (string, bool) {
	start := strings.Index(text, "```json")
	skip := len("```json")
	if start == -1 {
		start = strings.Index(text, "```")
		skip = len("```")
	}
	if start == -1 {
		return "", false
	}
	start += skip
	end := strings.Index(text[start:], "```")
	if end == -1 {
		return "", false
	}
	return strings.TrimSpace(text[start : start+end]), true
}

// decode accepts exactly one JSON value. Numbers are kept as json.Number so
// re-serializing a phase does not reformat its values.
func decode(s string) (any, bool) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	if dec.More() {
		return nil, false
	}
	return v, true
}

// String returns fields[key] when it is a string.
func String(fields map[string]any, key string) (string, bool) {
	v, ok := fields[key]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

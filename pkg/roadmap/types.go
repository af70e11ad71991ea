// Package roadmap turns a short project description into a multi-phase roadmap.
//
// Generation is a three-stage pipeline over a text-generation model: the input
// is expanded into a brief, the brief is planned into ordered phases, and each
// phase is rendered to markdown with its executive summary extracted.
package roadmap

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"roadmapbp/pkg/prompts"
)

// ErrEmptyInput is returned for empty or whitespace-only input.
var ErrEmptyInput = errors.New("roadmap: input must not be empty")

// ValidateInput rejects empty input. It is the only check applied to raw input.
func ValidateInput(raw string) error {
	if strings.TrimSpace(raw) == "" {
		return ErrEmptyInput
	}
	return nil
}

// Brief is the expanded project description carried through every later stage.
// Fields is nil when the model answered with unstructured text or a plain string.
type Brief struct {
	Fields map[string]any `json:"fields,omitempty"`
	Text   string         `json:"text"`
}

// Structured reports whether the brief came back as an object of named sections.
func (b Brief) Structured() bool {
	return b.Fields != nil
}

// Phase is one planned phase. Its shape is decided by the model; only the
// title is looked up by name.
type Phase map[string]any

// titleKeys are tried in order by Title.
//
//nolint:gochecknoglobals // lookup order
var titleKeys = []string{"title", "phase_title", "name", "phase"}

// Title returns the phase title, or "" when none is present.
func (p Phase) Title() string {
	for _, key := range titleKeys {
		if s, ok := p[key].(string); ok && strings.TrimSpace(s) != "" {
			return strings.TrimSpace(s)
		}
	}
	return ""
}

// JSON renders the phase for interpolation into a prompt.
func (p Phase) JSON() (string, error) {
	data, err := json.MarshalIndent(map[string]any(p), "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode phase: %w", err)
	}
	return string(data), nil
}

// RenderedPhase is the markdown produced for one phase.
type RenderedPhase struct {
	Markdown         string `json:"markdown"`
	ExecutiveSummary string `json:"executive_summary"`
	Ordinal          int    `json:"ordinal"`
}

// Result is the output of one generation run. PersistedID is empty when the
// result was not stored.
type Result struct {
	Input       string          `json:"input"`
	Brief       Brief           `json:"brief"`
	PersistedID string          `json:"persisted_id,omitempty"`
	Phases      []Phase         `json:"phases"`
	Rendered    []RenderedPhase `json:"rendered_phases"`
}

// Markdowns returns the rendered markdown of every phase in order.
func (r *Result) Markdowns() []string {
	out := make([]string, len(r.Rendered))
	for i := range r.Rendered {
		out[i] = r.Rendered[i].Markdown
	}
	return out
}

// ExecutiveSummaries returns the summary of every phase in order.
func (r *Result) ExecutiveSummaries() []string {
	out := make([]string, len(r.Rendered))
	for i := range r.Rendered {
		out[i] = r.Rendered[i].ExecutiveSummary
	}
	return out
}

// StageError wraps a gateway failure with the stage that issued the call.
// errors.Is and errors.As reach the underlying provider error.
type StageError struct {
	Err     error
	Stage   prompts.Stage
	Ordinal int // phase ordinal for render failures, else 0
}

func (e *StageError) Error() string {
	if e.Ordinal > 0 {
		return fmt.Sprintf("%s stage (phase %d): %v", e.Stage, e.Ordinal, e.Err)
	}
	return fmt.Sprintf("%s stage: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

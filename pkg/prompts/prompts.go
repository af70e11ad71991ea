// Package prompts holds the instruction text for each generation stage.
//
// Every stage has a static system prompt and a text/template user prompt, both
// embedded from *.tpl.md files. Rendering is pure.
package prompts

import (
	"bytes"
	"embed"
	"fmt"
	"sort"
	"strings"
	"sync"
	"text/template"
	"time"
)

//go:embed *.tpl.md
var templateFS embed.FS

// Stage identifies a generation stage.
type Stage string

const (
	// StageBrief expands the raw input into a project brief.
	StageBrief Stage = "brief"
	// StagePhases plans the ordered phase list.
	StagePhases Stage = "phases"
	// StageRender renders one phase to markdown.
	StageRender Stage = "render"
	// StageDraft writes a whole roadmap in one call (drafts mode).
	StageDraft Stage = "draft"
)

// DateLayout is the format used for Inputs.Today.
const DateLayout = "2006-01-02"

// Stages lists every stage with a template, in pipeline order.
//
//nolint:gochecknoglobals // static registry
var Stages = []Stage{StageBrief, StagePhases, StageRender, StageDraft}

// Inputs carries every value a user prompt may interpolate. Stages ignore
// fields they do not use.
type Inputs struct {
	RawInput    string
	Brief       string
	PhaseJSON   string
	Today       string // YYYY-MM-DD; filled from the clock when empty
	Ordinal     int    // 1-based phase position; 0 omits the numbering instruction
	DraftNumber int
	DraftCount  int
}

// Template is the prompt pair for one stage.
type Template struct {
	Stage        Stage
	SystemPrompt string
	user         *template.Template
}

// Build renders the user prompt for in.
func (t Template) Build(in Inputs) (string, error) {
	if in.Today == "" {
		in.Today = time.Now().Format(DateLayout)
	}
	var buf bytes.Buffer
	if err := t.user.Execute(&buf, in); err != nil {
		return "", fmt.Errorf("failed to render %s prompt: %w", t.Stage, err)
	}
	return strings.TrimSpace(buf.String()), nil
}

// Store maps stages to their parsed templates.
type Store struct {
	templates map[Stage]Template
}

// NewStore parses every embedded template.
func NewStore() (*Store, error) {
	s := &Store{templates: make(map[Stage]Template, len(Stages))}

	for _, stage := range Stages {
		system, err := templateFS.ReadFile(string(stage) + "_system.tpl.md")
		if err != nil {
			return nil, fmt.Errorf("failed to read %s system prompt: %w", stage, err)
		}
		userName := string(stage) + "_user.tpl.md"
		userText, err := templateFS.ReadFile(userName)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s user prompt: %w", stage, err)
		}
		tmpl, err := template.New(userName).Option("missingkey=error").Parse(string(userText))
		if err != nil {
			return nil, fmt.Errorf("failed to parse template %s: %w", userName, err)
		}
		s.templates[stage] = Template{
			Stage:        stage,
			SystemPrompt: strings.TrimSpace(string(system)),
			user:         tmpl,
		}
	}
	return s, nil
}

// TemplateFor returns the template for stage.
func (s *Store) TemplateFor(stage Stage) (Template, error) {
	t, ok := s.templates[stage]
	if !ok {
		return Template{}, fmt.Errorf("no template for stage %q", stage)
	}
	return t, nil
}

// Available returns the loaded stages in sorted order.
func (s *Store) Available() []Stage {
	out := make([]Stage, 0, len(s.templates))
	for stage := range s.templates {
		out = append(out, stage)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

//nolint:gochecknoglobals // lazily parsed embedded templates
var (
	defaultStore    *Store
	defaultStoreErr error
	defaultOnce     sync.Once
)

// TemplateFor returns the template for stage from the embedded default store.
func TemplateFor(stage Stage) (Template, error) {
	defaultOnce.Do(func() {
		defaultStore, defaultStoreErr = NewStore()
	})
	if defaultStoreErr != nil {
		return Template{}, defaultStoreErr
	}
	return defaultStore.TemplateFor(stage)
}

package roadmap

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"roadmapbp/pkg/gateway"
	"roadmapbp/pkg/llm"
	"roadmapbp/pkg/logx"
	"roadmapbp/pkg/markdown"
	"roadmapbp/pkg/parse"
	"roadmapbp/pkg/prompts"
)

const (
	// briefField is the object field the brief stage asks the model to fill.
	briefField = "expanded_brief"
	// phasesField is the object field the planning stage asks the model to fill.
	phasesField = "phases"
	// SummaryHeading names the section extracted as a phase's executive summary.
	SummaryHeading = "Executive Summary"
	// debugDomain selects stage flow lines with DEBUG_DOMAINS.
	debugDomain = "pipeline"
)

// Stages runs the individual pipeline stages. Each stage makes exactly one
// gateway call and never retries.
type Stages struct {
	gateway      gateway.Completer
	templates    *prompts.Store
	logger       *logx.Logger
	now          func() time.Time
	condenseOver int
}

// NewStages creates the stage runner. condenseOverTokens is the brief size
// above which render calls receive a condensed brief; 0 disables size-based
// condensation.
func NewStages(gw gateway.Completer, condenseOverTokens int) (*Stages, error) {
	templates, err := prompts.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}
	return &Stages{
		gateway:      gw,
		templates:    templates,
		logger:       logx.NewLogger("pipeline"),
		now:          time.Now,
		condenseOver: condenseOverTokens,
	}, nil
}

// call builds the stage prompt and sends it. Gateway failures are wrapped in
// a *StageError.
func (s *Stages) call(ctx context.Context, stage prompts.Stage, ordinal int, in prompts.Inputs) (string, error) {
	tpl, err := s.templates.TemplateFor(stage)
	if err != nil {
		return "", err //nolint:wrapcheck // already names the stage
	}
	if in.Today == "" {
		in.Today = s.now().Format(prompts.DateLayout)
	}
	user, err := tpl.Build(in)
	if err != nil {
		return "", err //nolint:wrapcheck // already names the stage
	}

	ctx = logx.WithComponent(ctx, "pipeline")
	step := stepName(stage, ordinal)
	logx.DebugFlow(ctx, debugDomain, step, "start", fmt.Sprintf("%d prompt bytes", len(user)))

	out, err := s.gateway.Complete(llm.WithStage(ctx, string(stage)), tpl.SystemPrompt, user)
	if err != nil {
		logx.DebugFlow(ctx, debugDomain, step, "failed", err.Error())
		return "", &StageError{Stage: stage, Ordinal: ordinal, Err: err}
	}
	logx.DebugFlow(ctx, debugDomain, step, "complete", fmt.Sprintf("%d response bytes", len(out)))
	return out, nil
}

func stepName(stage prompts.Stage, ordinal int) string {
	if ordinal > 0 {
		return fmt.Sprintf("%s %d", stage, ordinal)
	}
	return string(stage)
}

// ExpandBrief turns raw input into a Brief. A response object carrying
// "expanded_brief" supplies the brief; anything else is kept verbatim.
func (s *Stages) ExpandBrief(ctx context.Context, raw string) (Brief, error) {
	if err := ValidateInput(raw); err != nil {
		return Brief{}, err
	}

	out, err := s.call(ctx, prompts.StageBrief, 0, prompts.Inputs{RawInput: raw})
	if err != nil {
		return Brief{}, err
	}

	brief := briefFromResponse(out)
	s.logger.Event(logx.LevelInfo, "brief expanded", logx.Fields{
		"structured": brief.Structured(),
		"bytes":      len(brief.Text),
	})
	return brief, nil
}

func briefFromResponse(out string) Brief {
	fields, ok := parse.Parse(out).Fields()
	if !ok {
		return Brief{Text: out}
	}

	switch v := fields[briefField].(type) {
	case string:
		if v == "" {
			return Brief{Text: out}
		}
		return Brief{Text: v}
	case map[string]any:
		data, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return Brief{Text: out}
		}
		return Brief{Text: string(data), Fields: v}
	default:
		return Brief{Text: out}
	}
}

// PlanPhases asks for the ordered phase list. Malformed output yields an
// empty list, not an error.
func (s *Stages) PlanPhases(ctx context.Context, brief Brief) ([]Phase, error) {
	out, err := s.call(ctx, prompts.StagePhases, 0, prompts.Inputs{Brief: brief.Text})
	if err != nil {
		return nil, err
	}

	phases := phasesFromResponse(out)
	s.logger.Event(logx.LevelInfo, "phases planned", logx.Fields{"phases": len(phases)})
	return phases, nil
}

func phasesFromResponse(out string) []Phase {
	outcome := parse.Parse(out)

	var items []any
	switch outcome.Kind() {
	case parse.Object:
		fields, _ := outcome.Fields()
		items, _ = fields[phasesField].([]any)
	case parse.Array:
		items, _ = outcome.Items()
	case parse.Unstructured:
	}

	phases := make([]Phase, 0, len(items))
	for _, item := range items {
		if obj, ok := item.(map[string]any); ok {
			phases = append(phases, Phase(obj))
		}
	}
	return phases
}

// RenderPhase renders one phase. ordinal > 0 instructs the model to number
// the phase heading accordingly. The markdown is the response verbatim.
func (s *Stages) RenderPhase(ctx context.Context, phase Phase, brief Brief, ordinal int) (RenderedPhase, error) {
	phaseJSON, err := phase.JSON()
	if err != nil {
		return RenderedPhase{}, err
	}

	out, err := s.call(ctx, prompts.StageRender, ordinal, prompts.Inputs{
		Brief:     Condense(brief, s.condenseOver),
		PhaseJSON: phaseJSON,
		Ordinal:   ordinal,
	})
	if err != nil {
		return RenderedPhase{}, err
	}

	rendered := RenderedPhase{
		Ordinal:          ordinal,
		Markdown:         out,
		ExecutiveSummary: markdown.ExtractSection(out, SummaryHeading),
	}
	s.logger.Event(logx.LevelDebug, "phase rendered", logx.Fields{
		"ordinal":     ordinal,
		"title":       phase.Title(),
		"has_summary": rendered.ExecutiveSummary != "",
	})
	return rendered, nil
}

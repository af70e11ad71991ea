package gateway

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"roadmapbp/pkg/llm"
	"roadmapbp/pkg/prompts"
)

// DemoClient answers every stage with canned but well-formed output so the
// whole pipeline runs offline. It is selected by the "mock" model.
type DemoClient struct {
	model string
	now   func() time.Time
}

// NewDemoClient creates an offline client.
func NewDemoClient(model string) *DemoClient {
	return &DemoClient{model: model, now: time.Now}
}

const (
	phaseDataMarker = "Phase data (JSON):"
	demoPhaseWeeks  = 6
	demoDateLayout  = prompts.DateLayout
)

//nolint:gochecknoglobals // fixed demo content
var (
	ordinalPattern   = regexp.MustCompile(`This is Phase (\d+) of the roadmap`)
	demoPhaseTitles  = []string{"Discovery and Foundations", "Build and Validate", "Launch and Scale"}
	demoTaskTemplate = []string{"Define scope for %s", "Execute core work for %s", "Review outcomes of %s"}
)

// Complete returns stage-appropriate output based on llm.StageFrom(ctx).
func (d *DemoClient) Complete(ctx context.Context, req llm.CompletionRequest) (llm.CompletionResponse, error) {
	if err := ctx.Err(); err != nil {
		return llm.CompletionResponse{}, err
	}

	_, rest := llm.SplitSystem(req.Messages)
	user := ""
	if len(rest) > 0 {
		user = rest[len(rest)-1].Content
	}

	var content string
	switch prompts.Stage(llm.StageFrom(ctx)) {
	case prompts.StageBrief:
		content = d.brief(user)
	case prompts.StagePhases:
		content = d.phases()
	case prompts.StageRender:
		content = d.render(user)
	default:
		content = d.draft()
	}

	return llm.CompletionResponse{Content: content, StopReason: "end_turn"}, nil
}

// GetModelName returns the configured model name.
func (d *DemoClient) GetModelName() string {
	return d.model
}

func (d *DemoClient) brief(input string) string {
	idea := strings.TrimSpace(input)
	text := fmt.Sprintf("Project overview: %s\n\nKey objectives: deliver a first usable version, validate it with real users, and scale what works. "+
		"Stakeholders include the project sponsor, the delivery team and early adopters. "+
		"Risks include unclear scope and limited capacity; both are addressed by phasing the work.", idea)
	out, _ := json.Marshal(map[string]string{"expanded_brief": text})
	return string(out)
}

func (d *DemoClient) phases() string {
	start := d.now()
	phases := make([]map[string]any, 0, len(demoPhaseTitles))
	for _, title := range demoPhaseTitles {
		end := start.AddDate(0, 0, demoPhaseWeeks*7)
		tasks := make([]map[string]string, 0, len(demoTaskTemplate))
		for _, tpl := range demoTaskTemplate {
			name := fmt.Sprintf(tpl, strings.ToLower(title))
			tasks = append(tasks, map[string]string{"name": name, "description": name + "."})
		}
		phases = append(phases, map[string]any{
			"title":           title,
			"start_date":      start.Format(demoDateLayout),
			"end_date":        end.Format(demoDateLayout),
			"tasks":           tasks,
			"success_metrics": []string{"Milestones delivered on schedule", "Stakeholder sign-off"},
			"next_steps":      "Hand off results to the next phase.",
		})
		start = end.AddDate(0, 0, 1)
	}
	out, _ := json.Marshal(map[string]any{"phases": phases})
	return string(out)
}

func (d *DemoClient) render(user string) string {
	ordinal := 1
	if m := ordinalPattern.FindStringSubmatch(user); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil {
			ordinal = n
		}
	}

	phase := map[string]any{}
	if i := strings.Index(user, phaseDataMarker); i >= 0 {
		_ = json.Unmarshal([]byte(strings.TrimSpace(user[i+len(phaseDataMarker):])), &phase)
	}
	title, _ := phase["title"].(string)
	if title == "" {
		title = "Untitled Phase"
	}
	startDate, _ := phase["start_date"].(string)
	endDate, _ := phase["end_date"].(string)

	var b strings.Builder
	fmt.Fprintf(&b, "## Phase %d: %s\n\n", ordinal, title)
	fmt.Fprintf(&b, "### Executive Summary\n\nPhase %d focuses on %s. It builds on earlier work and sets up the next phase.\n\n", ordinal, strings.ToLower(title))
	fmt.Fprintf(&b, "### Timeline\n\nThis phase runs from **%s to %s**.\n\n* **Start Date**: %s\n* **End Date**: %s\n\n---\n\n", startDate, endDate, startDate, endDate)
	b.WriteString("### Objectives\n\n* Deliver the planned scope\n* Keep stakeholders informed\n\n---\n\n")
	b.WriteString("### Tasks\n\n")
	if tasks, ok := phase["tasks"].([]any); ok {
		for i, t := range tasks {
			if task, ok := t.(map[string]any); ok {
				fmt.Fprintf(&b, "#### %d. %v\n\n%v\n\n", i+1, task["name"], task["description"])
			}
		}
	}
	b.WriteString("---\n\n### Success Metrics\n\n| Metric | Target | Measurement |\n|--------|--------|-------------|\n")
	b.WriteString("| Milestones | 100% | Project tracker |\n| Satisfaction | 4/5 | Stakeholder survey |\n\n---\n\n")
	b.WriteString("### Strategic Considerations\n\n* Protect scope\n* Reuse what exists\n\n---\n\n")
	b.WriteString("### Next Steps\n\nReview outcomes and prepare the next phase.\n")
	return b.String()
}

func (d *DemoClient) draft() string {
	var b strings.Builder
	start := d.now()
	for i, title := range demoPhaseTitles {
		end := start.AddDate(0, 0, demoPhaseWeeks*7)
		fmt.Fprintf(&b, "## Phase %d: %s\n\n### Executive Summary\n\nThis phase covers %s.\n\n", i+1, title, strings.ToLower(title))
		fmt.Fprintf(&b, "### Timeline\n\n* **Start Date**: %s\n* **End Date**: %s\n\n", start.Format(demoDateLayout), end.Format(demoDateLayout))
		start = end.AddDate(0, 0, 1)
	}
	return strings.TrimSpace(b.String())
}

package roadmap

import (
	"context"
	"fmt"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"roadmapbp/pkg/logx"
	"roadmapbp/pkg/parse"
	"roadmapbp/pkg/persistence"
)

// RoadmapSaver is the part of persistence.Store the generator needs.
type RoadmapSaver interface {
	SaveRoadmap(ctx context.Context, rec persistence.RoadmapRecord) (string, error)
}

// Generator sequences the stages into one generation run.
type Generator struct {
	stages      *Stages
	store       RoadmapSaver
	logger      *logx.Logger
	model       string
	concurrency int // 0 renders sequentially
}

// GeneratorOption configures a Generator.
type GeneratorOption func(*Generator)

// WithStore persists every successful run. Without it results are not stored.
func WithStore(store RoadmapSaver) GeneratorOption {
	return func(g *Generator) { g.store = store }
}

// WithConcurrentRendering renders phases in parallel with at most n calls in
// flight. n <= 1 keeps sequential rendering.
func WithConcurrentRendering(n int) GeneratorOption {
	return func(g *Generator) {
		if n > 1 {
			g.concurrency = n
		} else {
			g.concurrency = 0
		}
	}
}

// WithModelName records the model name on persisted roadmaps.
func WithModelName(model string) GeneratorOption {
	return func(g *Generator) { g.model = model }
}

// NewGenerator creates a generator over stages.
func NewGenerator(stages *Stages, opts ...GeneratorOption) *Generator {
	g := &Generator{
		stages: stages,
		logger: logx.NewLogger("generator"),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate runs brief expansion, phase planning and phase rendering, then
// persists the result. The first gateway failure aborts the run and is
// returned as a *StageError. A persistence failure is logged and leaves
// PersistedID empty.
func (g *Generator) Generate(ctx context.Context, raw string) (*Result, error) {
	if err := ValidateInput(raw); err != nil {
		return nil, err
	}
	start := time.Now()

	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // cancellation passed through
	}
	brief, err := g.stages.ExpandBrief(ctx, raw)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // cancellation passed through
	}
	phases, err := g.stages.PlanPhases(ctx, brief)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err //nolint:wrapcheck // cancellation passed through
	}
	var rendered []RenderedPhase
	if g.concurrency > 1 {
		rendered, err = g.renderConcurrent(ctx, phases, brief)
	} else {
		rendered, err = g.renderSequential(ctx, phases, brief)
	}
	if err != nil {
		return nil, err
	}

	result := &Result{
		Input:    raw,
		Brief:    brief,
		Phases:   phases,
		Rendered: rendered,
	}
	result.PersistedID = g.persist(ctx, result)

	g.logger.Event(logx.LevelInfo, "roadmap generated", logx.Fields{
		"phases":      len(phases),
		"persisted":   result.PersistedID != "",
		"duration_ms": time.Since(start).Milliseconds(),
	})
	return result, nil
}

func (g *Generator) renderSequential(ctx context.Context, phases []Phase, brief Brief) ([]RenderedPhase, error) {
	rendered := make([]RenderedPhase, 0, len(phases))
	for i, phase := range phases {
		if err := ctx.Err(); err != nil {
			return nil, err //nolint:wrapcheck // cancellation passed through
		}
		r, err := g.stages.RenderPhase(ctx, phase, brief, i+1)
		if err != nil {
			return nil, err
		}
		rendered = append(rendered, r)
	}
	return rendered, nil
}

// renderConcurrent fans out one render per phase. Results keep phase order and
// the first failure cancels the remaining calls.
func (g *Generator) renderConcurrent(ctx context.Context, phases []Phase, brief Brief) ([]RenderedPhase, error) {
	rendered := make([]RenderedPhase, len(phases))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(g.concurrency)
	for i := range phases {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err //nolint:wrapcheck // cancellation passed through
			}
			r, err := g.stages.RenderPhase(groupCtx, phases[i], brief, i+1)
			if err != nil {
				return err
			}
			rendered[i] = r
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err //nolint:wrapcheck // stage errors are already wrapped
	}
	return rendered, nil
}

func (g *Generator) persist(ctx context.Context, result *Result) string {
	if g.store == nil {
		return ""
	}

	id, err := g.store.SaveRoadmap(ctx, ToRecord(result, g.model))
	if err != nil {
		g.logger.Error("failed to persist roadmap: %v", err)
		return ""
	}
	return id
}

// ToRecord converts a result into its stored form.
func ToRecord(result *Result, model string) persistence.RoadmapRecord {
	phases := make([]map[string]any, len(result.Phases))
	for i, p := range result.Phases {
		phases[i] = map[string]any(p)
	}
	return persistence.RoadmapRecord{
		UserInput:          result.Input,
		ExpandedBrief:      result.Brief.Text,
		Model:              model,
		Phases:             phases,
		Markdowns:          result.Markdowns(),
		ExecutiveSummaries: result.ExecutiveSummaries(),
	}
}

// FromRecord rebuilds a result from its stored form.
func FromRecord(rec *persistence.RoadmapRecord) *Result {
	result := &Result{
		Input:       rec.UserInput,
		Brief:       briefFromStored(rec.ExpandedBrief),
		PersistedID: rec.ID,
		Phases:      make([]Phase, len(rec.Phases)),
		Rendered:    make([]RenderedPhase, len(rec.Markdowns)),
	}
	for i, p := range rec.Phases {
		result.Phases[i] = Phase(p)
	}
	for i, md := range rec.Markdowns {
		r := RenderedPhase{Ordinal: i + 1, Markdown: md}
		if i < len(rec.ExecutiveSummaries) {
			r.ExecutiveSummary = rec.ExecutiveSummaries[i]
		}
		result.Rendered[i] = r
	}
	return result
}

// briefFromStored restores Fields for briefs that were stored as a JSON object.
func briefFromStored(text string) Brief {
	if strings.HasPrefix(text, "{") {
		if fields, ok := parse.Parse(text).Fields(); ok {
			return Brief{Text: text, Fields: fields}
		}
	}
	return Brief{Text: text}
}

// String summarizes a result for logs.
func (r *Result) String() string {
	return fmt.Sprintf("roadmap(%d phases, id=%q)", len(r.Phases), r.PersistedID)
}

package roadmap

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"roadmapbp/pkg/llm"
	"roadmapbp/pkg/persistence"
	"roadmapbp/pkg/prompts"
)

type recordedCall struct {
	stage  prompts.Stage
	system string
	user   string
}

// fakeGateway answers by pipeline stage and records every call.
type fakeGateway struct {
	respond func(stage prompts.Stage, user string) (string, error)
	calls   []recordedCall
	mu      sync.Mutex
}

func (f *fakeGateway) Complete(ctx context.Context, system, user string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	stage := prompts.Stage(llm.StageFrom(ctx))

	f.mu.Lock()
	f.calls = append(f.calls, recordedCall{stage: stage, system: system, user: user})
	f.mu.Unlock()

	return f.respond(stage, user)
}

func (f *fakeGateway) callsFor(stage prompts.Stage) []recordedCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []recordedCall
	for _, c := range f.calls {
		if c.stage == stage {
			out = append(out, c)
		}
	}
	return out
}

const workoutBrief = `{"expanded_brief": {
  "project_overview": "A mobile app for logging workouts.",
  "key_objectives_and_high_level_goals": ["Log sets", "Track progress"],
  "strategic_considerations": "Offline first.",
  "technical_architecture": "React Native with a sync API.",
  "budget": "Small"
}}`

const workoutPhases = "```json\n" + `{"phases": [
  {"title": "Discovery", "duration_weeks": 2},
  {"title": "Build", "duration_weeks": 8},
  {"title": "Launch", "duration_weeks": 2}
]}` + "\n```"

func phaseMarkdown(ordinal int) string {
	return fmt.Sprintf("## Phase %d: Work\n\n### Executive Summary\nSummary for phase %d.\n\n### Tasks\n- Do the work", ordinal, ordinal)
}

// workoutResponder answers every stage of a well-behaved run. Render answers
// are numbered from the ordinal instruction in the prompt.
func workoutResponder(stage prompts.Stage, user string) (string, error) {
	switch stage {
	case prompts.StageBrief:
		return workoutBrief, nil
	case prompts.StagePhases:
		return workoutPhases, nil
	case prompts.StageRender:
		m := ordinalPattern.FindStringSubmatch(user)
		if m == nil {
			return "", fmt.Errorf("no ordinal in prompt")
		}
		ordinal, _ := strconv.Atoi(m[1])
		return phaseMarkdown(ordinal), nil
	case prompts.StageDraft:
		return "## Phase 1: Draft\n\n" + strings.TrimSpace(user), nil
	}
	return "", fmt.Errorf("unexpected stage %q", stage)
}

var ordinalPattern = regexp.MustCompile(`This is Phase (\d+) of the roadmap`)

func newTestStages(t *testing.T, gw *fakeGateway) *Stages {
	t.Helper()
	stages, err := NewStages(gw, 0)
	require.NoError(t, err)
	return stages
}

// memoryStore is an in-memory RoadmapSaver and FeedbackSaver.
type memoryStore struct {
	err       error
	roadmaps  []persistence.RoadmapRecord
	feedbacks []persistence.FeedbackRecord
	mu        sync.Mutex
}

func (m *memoryStore) SaveRoadmap(_ context.Context, rec persistence.RoadmapRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.roadmaps = append(m.roadmaps, rec)
	return fmt.Sprintf("roadmap-%d", len(m.roadmaps)), nil
}

func (m *memoryStore) SaveFeedback(_ context.Context, rec persistence.FeedbackRecord) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	m.feedbacks = append(m.feedbacks, rec)
	return fmt.Sprintf("feedback-%d", len(m.feedbacks)), nil
}

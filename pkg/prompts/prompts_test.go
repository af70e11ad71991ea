package prompts

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewStoreLoadsEveryStage(t *testing.T) {
	store, err := NewStore()
	require.NoError(t, err)
	assert.Equal(t, []Stage{StageBrief, StageDraft, StagePhases, StageRender}, store.Available())

	for _, stage := range Stages {
		tmpl, err := store.TemplateFor(stage)
		require.NoError(t, err, stage)
		assert.NotEmpty(t, tmpl.SystemPrompt, stage)
	}

	_, err = store.TemplateFor("bogus")
	assert.Error(t, err)
}

func TestBriefPromptAsksForExpandedBriefField(t *testing.T) {
	tmpl, err := TemplateFor(StageBrief)
	require.NoError(t, err)
	assert.Contains(t, tmpl.SystemPrompt, "expanded_brief")

	user, err := tmpl.Build(Inputs{RawInput: "Build a mobile app for tracking workouts"})
	require.NoError(t, err)
	assert.Equal(t, "Build a mobile app for tracking workouts", user)
}

func TestPhasesPromptCarriesToday(t *testing.T) {
	tmpl, err := TemplateFor(StagePhases)
	require.NoError(t, err)
	assert.Contains(t, tmpl.SystemPrompt, `"phases"`)

	user, err := tmpl.Build(Inputs{Brief: "the brief", Today: "2031-04-05"})
	require.NoError(t, err)
	assert.Contains(t, user, "Today's date is 2031-04-05")
	assert.Contains(t, user, "Never schedule")
	assert.True(t, strings.HasSuffix(user, "the brief"))
}

func TestPhasesPromptDefaultsTodayToClock(t *testing.T) {
	tmpl, err := TemplateFor(StagePhases)
	require.NoError(t, err)

	user, err := tmpl.Build(Inputs{Brief: "b"})
	require.NoError(t, err)
	assert.Contains(t, user, time.Now().Format(DateLayout))
}

func TestRenderPromptOrdinal(t *testing.T) {
	tmpl, err := TemplateFor(StageRender)
	require.NoError(t, err)
	assert.Contains(t, tmpl.SystemPrompt, "### Executive Summary")

	phase := `{"title":"Phase 7: Launch"}`
	user, err := tmpl.Build(Inputs{Brief: "b", PhaseJSON: phase, Ordinal: 3})
	require.NoError(t, err)
	assert.Contains(t, user, "This is Phase 3 of the roadmap")
	assert.Contains(t, user, `"## Phase 3: [Phase Title]"`)
	assert.Contains(t, user, phase)

	user, err = tmpl.Build(Inputs{Brief: "b", PhaseJSON: phase})
	require.NoError(t, err)
	assert.NotContains(t, user, "This is Phase")
	assert.True(t, strings.HasPrefix(user, "Expanded project brief:"))
}

func TestDraftPrompt(t *testing.T) {
	tmpl, err := TemplateFor(StageDraft)
	require.NoError(t, err)

	user, err := tmpl.Build(Inputs{RawInput: "a bakery", DraftNumber: 2, DraftCount: 3, Today: "2030-01-01"})
	require.NoError(t, err)
	assert.Contains(t, user, "This is draft 2 of 3.")
	assert.Contains(t, user, "a bakery")

	user, err = tmpl.Build(Inputs{RawInput: "a bakery"})
	require.NoError(t, err)
	assert.NotContains(t, user, "This is draft")
}

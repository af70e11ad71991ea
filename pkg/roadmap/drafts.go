package roadmap

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"roadmapbp/pkg/config"
	"roadmapbp/pkg/gateway"
	"roadmapbp/pkg/llm"
	"roadmapbp/pkg/logx"
	"roadmapbp/pkg/prompts"
)

// ErrDraftCount is returned when more drafts are requested than allowed.
var ErrDraftCount = errors.New("roadmap: draft count out of range")

// DraftOutcome is the settled result of one whole-roadmap draft.
type DraftOutcome struct {
	Err      error  `json:"-"`
	Markdown string `json:"markdown,omitempty"`
	Error    string `json:"error,omitempty"`
	Number   int    `json:"number"`
}

// Drafter writes several independent whole-roadmap drafts in one shot each.
// It is a separate product mode from Generator and its drafts are not stored.
type Drafter struct {
	gateway   gateway.Completer
	templates *prompts.Store
	logger    *logx.Logger
	now       func() time.Time
}

// NewDrafter creates a drafter over gw.
func NewDrafter(gw gateway.Completer) (*Drafter, error) {
	templates, err := prompts.NewStore()
	if err != nil {
		return nil, fmt.Errorf("failed to load prompt templates: %w", err)
	}
	return &Drafter{
		gateway:   gw,
		templates: templates,
		logger:    logx.NewLogger("drafter"),
		now:       time.Now,
	}, nil
}

// Drafts runs n drafts in parallel and waits for all of them. Individual
// failures are reported in their outcome; an error is returned only when
// every draft failed. n <= 0 means config.DefaultDrafts.
func (d *Drafter) Drafts(ctx context.Context, raw string, n int) ([]DraftOutcome, error) {
	if err := ValidateInput(raw); err != nil {
		return nil, err
	}
	if n <= 0 {
		n = config.DefaultDrafts
	}
	if n > config.MaxDrafts {
		return nil, fmt.Errorf("%w: %d exceeds maximum of %d", ErrDraftCount, n, config.MaxDrafts)
	}

	tpl, err := d.templates.TemplateFor(prompts.StageDraft)
	if err != nil {
		return nil, err //nolint:wrapcheck // already names the stage
	}
	today := d.now().Format(prompts.DateLayout)
	stageCtx := llm.WithStage(ctx, string(prompts.StageDraft))

	outcomes := make([]DraftOutcome, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			outcomes[i] = d.draft(stageCtx, tpl, raw, today, i+1, n)
		}()
	}
	wg.Wait()

	var errs []error
	for i := range outcomes {
		if outcomes[i].Err != nil {
			errs = append(errs, outcomes[i].Err)
		}
	}
	d.logger.Event(logx.LevelInfo, "drafts settled", logx.Fields{"requested": n, "failed": len(errs)})
	if len(errs) == n {
		return outcomes, fmt.Errorf("all %d drafts failed: %w", n, errors.Join(errs...))
	}
	return outcomes, nil
}

func (d *Drafter) draft(ctx context.Context, tpl prompts.Template, raw, today string, number, count int) DraftOutcome {
	outcome := DraftOutcome{Number: number}

	user, err := tpl.Build(prompts.Inputs{RawInput: raw, Today: today, DraftNumber: number, DraftCount: count})
	if err == nil {
		outcome.Markdown, err = d.gateway.Complete(ctx, tpl.SystemPrompt, user)
		if err != nil {
			err = &StageError{Stage: prompts.StageDraft, Err: err}
		}
	}
	if err != nil {
		outcome.Markdown = ""
		outcome.Err = err
		outcome.Error = err.Error()
	}
	return outcome
}

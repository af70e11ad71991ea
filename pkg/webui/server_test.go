package webui

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"roadmapbp/pkg/llm/middleware/metrics"
	"roadmapbp/pkg/llmerrors"
	"roadmapbp/pkg/persistence"
	"roadmapbp/pkg/prompts"
	"roadmapbp/pkg/roadmap"
)

const testPassword = "s3cret"

type fakeGenerator struct {
	result *roadmap.Result
	err    error
	inputs []string
}

func (f *fakeGenerator) Generate(_ context.Context, raw string) (*roadmap.Result, error) {
	f.inputs = append(f.inputs, raw)
	if err := roadmap.ValidateInput(raw); err != nil {
		return nil, err
	}
	return f.result, f.err
}

type fakeDrafter struct {
	gotCount int
}

func (f *fakeDrafter) Drafts(_ context.Context, raw string, n int) ([]roadmap.DraftOutcome, error) {
	f.gotCount = n
	if err := roadmap.ValidateInput(raw); err != nil {
		return nil, err
	}
	out := make([]roadmap.DraftOutcome, n)
	for i := range out {
		out[i] = roadmap.DraftOutcome{Number: i + 1, Markdown: "## Draft"}
	}
	return out, nil
}

type fakeFeedback struct{}

func (fakeFeedback) SubmitFeedback(_ context.Context, fb roadmap.Feedback) roadmap.FeedbackResult {
	if fb.Sentiment != roadmap.SentimentUp && fb.Sentiment != roadmap.SentimentDown {
		return roadmap.FeedbackResult{Error: "bad sentiment"}
	}
	return roadmap.FeedbackResult{Success: true, ID: "fb-1"}
}

type fakeRecords struct {
	roadmaps map[string]persistence.RoadmapRecord
	feedback []persistence.FeedbackRecord
	gotLimit int
}

func (f *fakeRecords) GetRoadmap(_ context.Context, id string) (*persistence.RoadmapRecord, error) {
	rec, ok := f.roadmaps[id]
	if !ok {
		return nil, persistence.ErrNotFound
	}
	return &rec, nil
}

func (f *fakeRecords) ListRoadmaps(_ context.Context, limit int) ([]persistence.RoadmapRecord, error) {
	f.gotLimit = limit
	out := make([]persistence.RoadmapRecord, 0, len(f.roadmaps))
	for _, rec := range f.roadmaps {
		out = append(out, rec)
	}
	return out, nil
}

func (f *fakeRecords) ListFeedback(_ context.Context, limit int) ([]persistence.FeedbackRecord, error) {
	f.gotLimit = limit
	return f.feedback, nil
}

func sampleResult() *roadmap.Result {
	return &roadmap.Result{
		Input:       "Build a workout app",
		Brief:       roadmap.Brief{Text: "An app."},
		PersistedID: "r1",
		Phases:      []roadmap.Phase{{"title": "Discovery"}},
		Rendered: []roadmap.RenderedPhase{{
			Ordinal:          1,
			Markdown:         "## Phase 1: Discovery\n\n### Executive Summary\nTalk to users.",
			ExecutiveSummary: "Talk to users.",
		}},
	}
}

func newTestServer(t *testing.T) (*Server, *fakeGenerator, *fakeRecords) {
	t.Helper()
	gen := &fakeGenerator{result: sampleResult()}
	records := &fakeRecords{
		roadmaps: map[string]persistence.RoadmapRecord{
			"r1": roadmap.ToRecord(sampleResult(), "mock"),
		},
		feedback: []persistence.FeedbackRecord{{ID: "f1", Sentiment: "up", RoadmapID: "r1"}},
	}
	rec := records.roadmaps["r1"]
	rec.ID = "r1"
	rec.CreatedAt = time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	records.roadmaps["r1"] = rec

	server := NewServer(Deps{
		Generator:     gen,
		Drafter:       &fakeDrafter{},
		Feedback:      fakeFeedback{},
		Records:       records,
		AdminPassword: testPassword,
		DefaultDrafts: 3,
	})
	return server, gen, records
}

func do(t *testing.T, server *Server, method, target, body string, admin bool) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	}
	if admin {
		req.SetBasicAuth(adminUser, testPassword)
	}
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	server, _, _ := newTestServer(t)
	w := do(t, server, http.MethodGet, "/api/healthz", "", false)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.NotEmpty(t, body["version"])
}

func TestGenerate(t *testing.T) {
	server, gen, _ := newTestServer(t)
	w := do(t, server, http.MethodPost, "/api/roadmaps", `{"input":"Build a workout app"}`, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{"Build a workout app"}, gen.inputs)

	var resp RoadmapResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, "r1", resp.ID)
	assert.Equal(t, "An app.", resp.ExpandedBrief)
	assert.Len(t, resp.Phases, 1)
	assert.Equal(t, []string{"Talk to users."}, resp.ExecutiveSummaries)
	assert.Len(t, resp.Markdowns, len(resp.Phases))
}

func TestGenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"empty input", `{"input":"  "}`, nil, http.StatusBadRequest},
		{"bad json", `{"input":`, nil, http.StatusBadRequest},
		{"gateway failure", `{"input":"x"}`, &roadmap.StageError{Stage: prompts.StageBrief, Err: llmerrors.NewError(llmerrors.ErrorTypeAuth, "bad key")}, http.StatusBadGateway},
		{"timeout", `{"input":"x"}`, context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"other", `{"input":"x"}`, errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server, gen, _ := newTestServer(t)
			gen.err = tt.err
			w := do(t, server, http.MethodPost, "/api/roadmaps", tt.body, false)
			assert.Equal(t, tt.status, w.Code)

			var body map[string]string
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestGenerateNotConfigured(t *testing.T) {
	server := NewServer(Deps{})
	w := do(t, server, http.MethodPost, "/api/roadmaps", `{"input":"x"}`, false)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestDrafts(t *testing.T) {
	server, _, _ := newTestServer(t)
	drafter := server.deps.Drafter.(*fakeDrafter)

	w := do(t, server, http.MethodPost, "/api/drafts", `{"input":"x"}`, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 3, drafter.gotCount)

	var resp DraftResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Len(t, resp.Drafts, 3)

	w = do(t, server, http.MethodPost, "/api/drafts", `{"input":"x","count":2}`, false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, drafter.gotCount)

	w = do(t, server, http.MethodPost, "/api/drafts", `{"input":""}`, false)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFeedback(t *testing.T) {
	server, _, _ := newTestServer(t)

	w := do(t, server, http.MethodPost, "/api/feedback", `{"roadmap_id":"r1","sentiment":"up"}`, false)
	require.Equal(t, http.StatusOK, w.Code)
	var ok roadmap.FeedbackResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&ok))
	assert.True(t, ok.Success)
	assert.Equal(t, "fb-1", ok.ID)

	w = do(t, server, http.MethodPost, "/api/feedback", `{"sentiment":"sideways"}`, false)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var bad roadmap.FeedbackResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&bad))
	assert.False(t, bad.Success)
}

func TestFeedbackWithoutStore(t *testing.T) {
	server := NewServer(Deps{Feedback: roadmap.NewService(nil)})

	w := do(t, server, http.MethodPost, "/api/feedback", `{"sentiment":"down"}`, false)
	require.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var result roadmap.FeedbackResult
	require.NoError(t, json.NewDecoder(w.Body).Decode(&result))
	assert.False(t, result.Success)
	assert.Equal(t, "feedback storage is not configured", result.Error)
}

func TestAdminRoutesRequireAuth(t *testing.T) {
	server, _, _ := newTestServer(t)
	for _, target := range []string{"/api/roadmaps", "/api/roadmaps/r1", "/api/roadmaps/r1/export", "/api/feedback", "/api/usage", "/api/logs", "/api/secrets"} {
		w := do(t, server, http.MethodGet, target, "", false)
		assert.Equal(t, http.StatusUnauthorized, w.Code, target)
		assert.NotEmpty(t, w.Header().Get("WWW-Authenticate"), target)
	}

	req := httptest.NewRequest(http.MethodGet, "/api/roadmaps", nil)
	req.SetBasicAuth(adminUser, "wrong")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAdminRoutesDeniedWithoutPassword(t *testing.T) {
	server := NewServer(Deps{Records: &fakeRecords{}})
	req := httptest.NewRequest(http.MethodGet, "/api/roadmaps", nil)
	req.SetBasicAuth(adminUser, "")
	w := httptest.NewRecorder()
	server.Handler().ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestListAndGetRoadmaps(t *testing.T) {
	server, _, records := newTestServer(t)

	w := do(t, server, http.MethodGet, "/api/roadmaps?limit=5", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 5, records.gotLimit)
	var list []RoadmapResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "mock", list[0].Model)
	require.NotNil(t, list[0].CreatedAt)

	w = do(t, server, http.MethodGet, "/api/roadmaps?limit=zero", "", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, server, http.MethodGet, "/api/roadmaps/r1", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	var one RoadmapResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&one))
	assert.Equal(t, "r1", one.ID)
	assert.Equal(t, "Build a workout app", one.Input)

	w = do(t, server, http.MethodGet, "/api/roadmaps/missing", "", true)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestListFeedback(t *testing.T) {
	server, _, records := newTestServer(t)
	w := do(t, server, http.MethodGet, "/api/feedback", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, persistence.DefaultListLimit, records.gotLimit)

	var list []persistence.FeedbackRecord
	require.NoError(t, json.NewDecoder(w.Body).Decode(&list))
	require.Len(t, list, 1)
	assert.Equal(t, "up", list[0].Sentiment)
}

func TestExport(t *testing.T) {
	server, _, _ := newTestServer(t)

	w := do(t, server, http.MethodGet, "/api/roadmaps/r1/export?format=txt", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/plain; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="roadmap-r1.txt"`, w.Header().Get("Content-Disposition"))
	assert.Contains(t, w.Body.String(), "PHASE 1: DISCOVERY")
	assert.NotContains(t, w.Body.String(), "##")

	w = do(t, server, http.MethodGet, "/api/roadmaps/r1/export", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), "# Project Roadmap"))

	w = do(t, server, http.MethodGet, "/api/roadmaps/r1/export?format=md&phase=1", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="phase-1.md"`, w.Header().Get("Content-Disposition"))
	assert.True(t, strings.HasPrefix(w.Body.String(), "## Phase 1: Discovery"))

	assert.Equal(t, http.StatusBadRequest, do(t, server, http.MethodGet, "/api/roadmaps/r1/export?format=pdf", "", true).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, server, http.MethodGet, "/api/roadmaps/r1/export?phase=9", "", true).Code)
	assert.Equal(t, http.StatusNotFound, do(t, server, http.MethodGet, "/api/roadmaps/nope/export", "", true).Code)
}

func TestUsage(t *testing.T) {
	server, _, _ := newTestServer(t)
	assert.Equal(t, http.StatusNotFound, do(t, server, http.MethodGet, "/api/usage", "", true).Code)

	server.deps.Usage = UsageFunc(func() []metrics.StageUsage {
		return []metrics.StageUsage{{Stage: "render", TotalTokens: 42}}
	})
	w := do(t, server, http.MethodGet, "/api/usage", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	var usage []metrics.StageUsage
	require.NoError(t, json.NewDecoder(w.Body).Decode(&usage))
	require.Len(t, usage, 1)
	assert.EqualValues(t, 42, usage[0].TotalTokens)
}

func TestMetricsEndpoint(t *testing.T) {
	reg := prometheus.NewRegistry()
	counter := prometheus.NewCounter(prometheus.CounterOpts{Name: "roadmapbp_test_total", Help: "test"})
	reg.MustRegister(counter)
	counter.Inc()

	server := NewServer(Deps{Gatherer: reg})
	w := do(t, server, http.MethodGet, "/metrics", "", false)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "roadmapbp_test_total 1")

	w = do(t, NewServer(Deps{}), http.MethodGet, "/metrics", "", false)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLogs(t *testing.T) {
	server, _, _ := newTestServer(t)
	server.logger.Info("log entry for the admin view")

	w := do(t, server, http.MethodGet, "/api/logs", "", true)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "log entry for the admin view")

	w = do(t, server, http.MethodGet, "/api/logs?since=yesterday", "", true)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestMethodNotAllowed(t *testing.T) {
	server, _, _ := newTestServer(t)
	w := do(t, server, http.MethodDelete, "/api/roadmaps", "", true)
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	server := NewServer(Deps{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- server.ListenAndServe(ctx, "127.0.0.1:0") }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

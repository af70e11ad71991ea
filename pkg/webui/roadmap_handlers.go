package webui

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"roadmapbp/pkg/export"
	"roadmapbp/pkg/persistence"
	"roadmapbp/pkg/roadmap"
)

// RoadmapResponse is the JSON shape of a generated or stored roadmap.
type RoadmapResponse struct {
	CreatedAt          *time.Time      `json:"created_at,omitempty"`
	ID                 string          `json:"id,omitempty"`
	Input              string          `json:"input"`
	ExpandedBrief      string          `json:"expanded_brief"`
	Model              string          `json:"model,omitempty"`
	Phases             []roadmap.Phase `json:"phases"`
	Markdowns          []string        `json:"markdowns"`
	ExecutiveSummaries []string        `json:"executive_summaries"`
}

func newRoadmapResponse(result *roadmap.Result) RoadmapResponse {
	phases := result.Phases
	if phases == nil {
		phases = []roadmap.Phase{}
	}
	return RoadmapResponse{
		ID:                 result.PersistedID,
		Input:              result.Input,
		ExpandedBrief:      result.Brief.Text,
		Phases:             phases,
		Markdowns:          result.Markdowns(),
		ExecutiveSummaries: result.ExecutiveSummaries(),
	}
}

func recordResponse(rec *persistence.RoadmapRecord) RoadmapResponse {
	resp := newRoadmapResponse(roadmap.FromRecord(rec))
	created := rec.CreatedAt
	resp.CreatedAt = &created
	resp.Model = rec.Model
	return resp
}

// pipelineStatus maps a generation error onto an HTTP status.
func pipelineStatus(err error) int {
	var stageErr *roadmap.StageError
	switch {
	case errors.Is(err, roadmap.ErrEmptyInput), errors.Is(err, roadmap.ErrDraftCount):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	case errors.As(err, &stageErr):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// handleGenerate implements POST /api/roadmaps.
func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	if s.deps.Generator == nil {
		s.writeError(w, http.StatusServiceUnavailable, "generation is not configured")
		return
	}
	var req struct {
		Input string `json:"input"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}

	result, err := s.deps.Generator.Generate(r.Context(), req.Input)
	if err != nil {
		status := pipelineStatus(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("Roadmap generation failed: %v", err)
		}
		s.writeError(w, status, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, newRoadmapResponse(result))
}

// DraftResponse is the POST /api/drafts response body.
type DraftResponse struct {
	Drafts []roadmap.DraftOutcome `json:"drafts"`
}

// handleDrafts implements POST /api/drafts.
func (s *Server) handleDrafts(w http.ResponseWriter, r *http.Request) {
	if s.deps.Drafter == nil {
		s.writeError(w, http.StatusServiceUnavailable, "drafts are not configured")
		return
	}
	var req struct {
		Input string `json:"input"`
		Count int    `json:"count"`
	}
	if !s.decodeBody(w, r, &req) {
		return
	}
	if req.Count <= 0 {
		req.Count = s.deps.DefaultDrafts
	}

	outcomes, err := s.deps.Drafter.Drafts(r.Context(), req.Input, req.Count)
	if err != nil {
		s.writeError(w, pipelineStatus(err), err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, DraftResponse{Drafts: outcomes})
}

// handleFeedback implements POST /api/feedback. Rejected feedback answers 422
// with the FeedbackResult body.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	if s.deps.Feedback == nil {
		s.writeError(w, http.StatusServiceUnavailable, "feedback is not configured")
		return
	}
	var fb roadmap.Feedback
	if !s.decodeBody(w, r, &fb) {
		return
	}

	result := s.deps.Feedback.SubmitFeedback(r.Context(), fb)
	status := http.StatusOK
	if !result.Success {
		status = http.StatusUnprocessableEntity
	}
	s.writeJSON(w, status, result)
}

func (s *Server) limitParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return persistence.DefaultListLimit, true
	}
	limit, err := strconv.Atoi(raw)
	if err != nil || limit <= 0 {
		s.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
		return 0, false
	}
	return limit, true
}

func (s *Server) requireRecords(w http.ResponseWriter) bool {
	if s.deps.Records == nil {
		s.writeError(w, http.StatusServiceUnavailable, "storage is not configured")
		return false
	}
	return true
}

// handleListRoadmaps implements GET /api/roadmaps.
func (s *Server) handleListRoadmaps(w http.ResponseWriter, r *http.Request) {
	if !s.requireRecords(w) {
		return
	}
	limit, ok := s.limitParam(w, r)
	if !ok {
		return
	}
	records, err := s.deps.Records.ListRoadmaps(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list roadmaps: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list roadmaps")
		return
	}

	out := make([]RoadmapResponse, 0, len(records))
	for i := range records {
		out = append(out, recordResponse(&records[i]))
	}
	s.writeJSON(w, http.StatusOK, out)
}

func (s *Server) loadRoadmap(w http.ResponseWriter, r *http.Request) (*persistence.RoadmapRecord, bool) {
	if !s.requireRecords(w) {
		return nil, false
	}
	id := mux.Vars(r)["id"]
	rec, err := s.deps.Records.GetRoadmap(r.Context(), id)
	if errors.Is(err, persistence.ErrNotFound) {
		s.writeError(w, http.StatusNotFound, fmt.Sprintf("roadmap %s not found", id))
		return nil, false
	}
	if err != nil {
		s.logger.Error("Failed to load roadmap %s: %v", id, err)
		s.writeError(w, http.StatusInternalServerError, "failed to load roadmap")
		return nil, false
	}
	return rec, true
}

// handleGetRoadmap implements GET /api/roadmaps/{id}.
func (s *Server) handleGetRoadmap(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.loadRoadmap(w, r)
	if !ok {
		return
	}
	s.writeJSON(w, http.StatusOK, recordResponse(rec))
}

// handleExport implements GET /api/roadmaps/{id}/export?format=md|txt[&phase=N].
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format, err := export.ParseFormat(r.URL.Query().Get("format"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	rec, ok := s.loadRoadmap(w, r)
	if !ok {
		return
	}
	result := roadmap.FromRecord(rec)

	var (
		body []byte
		name = export.FileName(result, format)
	)
	if raw := r.URL.Query().Get("phase"); raw != "" {
		n, convErr := strconv.Atoi(raw)
		if convErr != nil || n < 1 || n > len(result.Rendered) {
			s.writeError(w, http.StatusBadRequest, fmt.Sprintf("phase must be between 1 and %d", len(result.Rendered)))
			return
		}
		body = export.RenderPhase(result.Rendered[n-1], format)
		name = fmt.Sprintf("phase-%d.%s", n, format)
	} else {
		body, err = export.Render(result, format, rec.CreatedAt)
		if err != nil {
			s.logger.Error("Failed to export roadmap %s: %v", rec.ID, err)
			s.writeError(w, http.StatusInternalServerError, "failed to export roadmap")
			return
		}
	}

	w.Header().Set("Content-Type", format.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", name))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		s.logger.Warn("Failed to write export: %v", err)
	}
}

// handleListFeedback implements GET /api/feedback.
func (s *Server) handleListFeedback(w http.ResponseWriter, r *http.Request) {
	if !s.requireRecords(w) {
		return
	}
	limit, ok := s.limitParam(w, r)
	if !ok {
		return
	}
	records, err := s.deps.Records.ListFeedback(r.Context(), limit)
	if err != nil {
		s.logger.Error("Failed to list feedback: %v", err)
		s.writeError(w, http.StatusInternalServerError, "failed to list feedback")
		return
	}
	if records == nil {
		records = []persistence.FeedbackRecord{}
	}
	s.writeJSON(w, http.StatusOK, records)
}

// handleUsage implements GET /api/usage.
func (s *Server) handleUsage(w http.ResponseWriter, r *http.Request) {
	if s.deps.Usage == nil {
		s.writeError(w, http.StatusNotFound, "usage reporting is disabled")
		return
	}
	usage, err := s.deps.Usage.GetStageUsage(r.Context())
	if err != nil {
		s.logger.Error("Failed to query usage: %v", err)
		s.writeError(w, http.StatusBadGateway, "failed to query usage")
		return
	}
	s.writeJSON(w, http.StatusOK, usage)
}

package roadmap

import (
	"context"
	"strings"

	"roadmapbp/pkg/logx"
	"roadmapbp/pkg/persistence"
)

// Sentiment is the polarity of a feedback vote.
type Sentiment string

// Accepted sentiments.
const (
	SentimentUp   Sentiment = persistence.SentimentUp
	SentimentDown Sentiment = persistence.SentimentDown
)

// Valid reports whether s is SentimentUp or SentimentDown.
func (s Sentiment) Valid() bool {
	return s == SentimentUp || s == SentimentDown
}

// Feedback is a vote on a roadmap. RoadmapID and Email are optional.
type Feedback struct {
	RoadmapID string    `json:"roadmap_id,omitempty"`
	Sentiment Sentiment `json:"sentiment"`
	Email     string    `json:"email,omitempty"`
}

// FeedbackResult reports the outcome of SubmitFeedback. Failures are reported
// here, never as a Go error.
type FeedbackResult struct {
	ID      string `json:"id,omitempty"`
	Error   string `json:"error,omitempty"`
	Success bool   `json:"success"`
}

// FeedbackSaver is the part of persistence.Store feedback needs.
type FeedbackSaver interface {
	SaveFeedback(ctx context.Context, rec persistence.FeedbackRecord) (string, error)
}

// Service accepts feedback on generated roadmaps.
type Service struct {
	store  FeedbackSaver
	logger *logx.Logger
}

// NewService creates a feedback service. A nil store makes every submission fail.
func NewService(store FeedbackSaver) *Service {
	return &Service{store: store, logger: logx.NewLogger("feedback")}
}

// SubmitFeedback validates and stores fb.
func (s *Service) SubmitFeedback(ctx context.Context, fb Feedback) FeedbackResult {
	sentiment := Sentiment(strings.ToLower(strings.TrimSpace(string(fb.Sentiment))))
	if !sentiment.Valid() {
		return FeedbackResult{Error: `sentiment must be "up" or "down"`}
	}
	if s.store == nil {
		return FeedbackResult{Error: "feedback storage is not configured"}
	}

	id, err := s.store.SaveFeedback(ctx, persistence.FeedbackRecord{
		RoadmapID: strings.TrimSpace(fb.RoadmapID),
		Sentiment: string(sentiment),
		Email:     strings.TrimSpace(fb.Email),
	})
	if err != nil {
		s.logger.Error("failed to save feedback: %v", err)
		return FeedbackResult{Error: err.Error()}
	}
	return FeedbackResult{Success: true, ID: id}
}

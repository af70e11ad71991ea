// Package persistence stores generated roadmaps and the feedback attached to them.
// Two backends implement Store: SQLite (default) and Redis.
package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"roadmapbp/pkg/config"
)

// DefaultListLimit is used when a list call passes a non-positive limit.
const DefaultListLimit = 100

// Sentiment values accepted by SaveFeedback.
const (
	SentimentUp   = "up"
	SentimentDown = "down"
)

var (
	// ErrNotFound is returned when a roadmap id does not exist.
	ErrNotFound = errors.New("persistence: not found")
	// ErrInvalidSentiment is returned by SaveFeedback for anything but "up" or "down".
	ErrInvalidSentiment = errors.New("persistence: sentiment must be \"up\" or \"down\"")
)

// RoadmapRecord is the stored form of one generation run.
type RoadmapRecord struct {
	CreatedAt          time.Time        `json:"created_at"`
	ID                 string           `json:"id"`
	UserInput          string           `json:"user_input"`
	ExpandedBrief      string           `json:"expanded_brief"`
	Model              string           `json:"model,omitempty"`
	Phases             []map[string]any `json:"phases"`
	Markdowns          []string         `json:"markdowns"`
	ExecutiveSummaries []string         `json:"executive_summaries"`
}

// FeedbackRecord is one thumbs-up/down vote. RoadmapID and Email are optional.
type FeedbackRecord struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
	RoadmapID string    `json:"roadmap_id,omitempty"`
	Sentiment string    `json:"sentiment"`
	Email     string    `json:"email,omitempty"`
	UserInput string    `json:"user_input,omitempty"` // filled by ListFeedback from the roadmap
}

// Store is the persistence adapter used by the pipeline and the HTTP shell.
type Store interface {
	// SaveRoadmap stores rec and returns its id. rec.ID and rec.CreatedAt are
	// generated when empty.
	SaveRoadmap(ctx context.Context, rec RoadmapRecord) (string, error)
	// SaveFeedback stores rec and returns its id.
	SaveFeedback(ctx context.Context, rec FeedbackRecord) (string, error)
	// GetRoadmap returns ErrNotFound for unknown ids.
	GetRoadmap(ctx context.Context, id string) (*RoadmapRecord, error)
	// ListRoadmaps returns the newest roadmaps first.
	ListRoadmaps(ctx context.Context, limit int) ([]RoadmapRecord, error)
	// ListFeedback returns the newest feedback first, joined with the roadmap input.
	ListFeedback(ctx context.Context, limit int) ([]FeedbackRecord, error)
	Close() error
}

// ValidSentiment reports whether s is an accepted sentiment value.
func ValidSentiment(s string) bool {
	return s == SentimentUp || s == SentimentDown
}

// Open creates the backend selected by cfg.Backend.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Backend {
	case config.StorageSQLite, "":
		return OpenSQLite(ctx, cfg.SQLitePath)
	case config.StorageRedis:
		return OpenRedis(ctx, cfg.RedisAddr, cfg.RedisDB)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func listLimit(limit int) int {
	if limit <= 0 {
		return DefaultListLimit
	}
	return limit
}

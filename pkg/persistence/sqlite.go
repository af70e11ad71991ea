package persistence

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver

	"roadmapbp/pkg/logx"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

// SQLiteStore implements Store on a single SQLite file.
type SQLiteStore struct {
	db     *sql.DB
	logger *logx.Logger
}

// OpenSQLite opens (creating if needed) the database at path and brings its
// schema up to date. ":memory:" gives a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	if path == ":memory:" {
		dsn = "file::memory:"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; one connection also keeps :memory: coherent
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, logx.Wrap(err, "failed to ping database "+path)
	}

	if err := initializeSchemaWithMigrations(db); err != nil {
		_ = db.Close()
		return nil, logx.Wrap(err, "failed to initialize schema of "+path)
	}

	logger := logx.NewLogger("persistence")
	logger.Info("database initialized: %s", path)
	return &SQLiteStore{db: db, logger: logger}, nil
}

// SaveRoadmap inserts rec.
func (s *SQLiteStore) SaveRoadmap(ctx context.Context, rec RoadmapRecord) (string, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	phases, err := json.Marshal(rec.Phases)
	if err != nil {
		return "", fmt.Errorf("failed to encode phases: %w", err)
	}
	markdowns, err := json.Marshal(rec.Markdowns)
	if err != nil {
		return "", fmt.Errorf("failed to encode markdowns: %w", err)
	}
	summaries, err := json.Marshal(rec.ExecutiveSummaries)
	if err != nil {
		return "", fmt.Errorf("failed to encode executive summaries: %w", err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO roadmaps (id, user_input, expanded_brief, phases, markdowns, executive_summaries, model, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.ID, rec.UserInput, rec.ExpandedBrief, string(phases), string(markdowns), string(summaries),
		rec.Model, rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert roadmap: %w", err)
	}
	return rec.ID, nil
}

// SaveFeedback inserts rec after validating its sentiment.
func (s *SQLiteStore) SaveFeedback(ctx context.Context, rec FeedbackRecord) (string, error) {
	if !ValidSentiment(rec.Sentiment) {
		return "", ErrInvalidSentiment
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO feedback (id, roadmap_id, sentiment, email, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		rec.ID, nullString(rec.RoadmapID), rec.Sentiment, nullString(rec.Email), rec.CreatedAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return "", fmt.Errorf("failed to insert feedback: %w", err)
	}
	return rec.ID, nil
}

const roadmapColumns = `id, user_input, expanded_brief, phases, markdowns, executive_summaries, model, created_at`

// GetRoadmap loads one roadmap by id.
func (s *SQLiteStore) GetRoadmap(ctx context.Context, id string) (*RoadmapRecord, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+roadmapColumns+` FROM roadmaps WHERE id = ?`, id)
	rec, err := scanRoadmap(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// ListRoadmaps returns up to limit roadmaps, newest first.
func (s *SQLiteStore) ListRoadmaps(ctx context.Context, limit int) ([]RoadmapRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+roadmapColumns+` FROM roadmaps ORDER BY created_at DESC, rowid DESC LIMIT ?`, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query roadmaps: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []RoadmapRecord
	for rows.Next() {
		rec, err := scanRoadmap(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate roadmaps: %w", err)
	}
	return out, nil
}

// ListFeedback returns up to limit feedback records, newest first, each with
// the input of the roadmap it refers to when that roadmap exists.
func (s *SQLiteStore) ListFeedback(ctx context.Context, limit int) ([]FeedbackRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.roadmap_id, f.sentiment, f.email, f.created_at, r.user_input
		FROM feedback f
		LEFT JOIN roadmaps r ON r.id = f.roadmap_id
		ORDER BY f.created_at DESC, f.rowid DESC
		LIMIT ?`, listLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query feedback: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []FeedbackRecord
	for rows.Next() {
		var (
			rec                         FeedbackRecord
			roadmapID, email, userInput sql.NullString
			createdAt                   string
		)
		if err := rows.Scan(&rec.ID, &roadmapID, &rec.Sentiment, &email, &createdAt, &userInput); err != nil {
			return nil, fmt.Errorf("failed to scan feedback: %w", err)
		}
		rec.RoadmapID = roadmapID.String
		rec.Email = email.String
		rec.UserInput = userInput.String
		rec.CreatedAt = parseTime(createdAt)
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate feedback: %w", err)
	}
	return out, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRoadmap(row rowScanner) (*RoadmapRecord, error) {
	var (
		rec                          RoadmapRecord
		phases, markdowns, summaries string
		createdAt                    string
	)
	err := row.Scan(&rec.ID, &rec.UserInput, &rec.ExpandedBrief, &phases, &markdowns, &summaries, &rec.Model, &createdAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err //nolint:wrapcheck // sentinel checked by caller
		}
		return nil, fmt.Errorf("failed to scan roadmap: %w", err)
	}

	if err := json.Unmarshal([]byte(phases), &rec.Phases); err != nil {
		return nil, fmt.Errorf("failed to decode phases of %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(markdowns), &rec.Markdowns); err != nil {
		return nil, fmt.Errorf("failed to decode markdowns of %s: %w", rec.ID, err)
	}
	if err := json.Unmarshal([]byte(summaries), &rec.ExecutiveSummaries); err != nil {
		return nil, fmt.Errorf("failed to decode executive summaries of %s: %w", rec.ID, err)
	}
	rec.CreatedAt = parseTime(createdAt)
	return &rec, nil
}

func parseTime(s string) time.Time {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

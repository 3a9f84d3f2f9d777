// analyses.go handles the video analysis cache table.
//
// One table serves both platforms behind a (platform, external_id) unique
// key. Writes use ON CONFLICT upserts with COALESCE merge semantics: a new
// non-null value overwrites, a null value preserves what's already stored.
// That rule is what keeps a late questions-only update from clobbering
// topics written earlier, and it makes re-applying the same update a no-op.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/clipnotes/clipnotes-api/internal/models"
)

// ErrAnalysisNotFound is returned when no cached analysis exists for a video.
var ErrAnalysisNotFound = errors.New("analysis not found")

// GetAnalysis retrieves the cached analysis for a video, if any.
// Returns ErrAnalysisNotFound on a cache miss so callers can distinguish
// "not cached yet" from a real database failure.
func (db *DB) GetAnalysis(ctx context.Context, p models.Platform, externalID string) (*models.VideoAnalysis, error) {
	var a models.VideoAnalysis
	err := db.GetContext(ctx, &a,
		`SELECT * FROM video_analyses WHERE platform = $1 AND external_id = $2`,
		p, externalID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAnalysisNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to fetch analysis: %w", err)
	}
	return &a, nil
}

// UpsertAnalysis inserts or merges an analysis row.
//
// Merge rule: COALESCE(new, old) for every payload column, so callers can
// pass only the fields they have. Title and friends follow the same rule
// via NULLIF so an empty-string metadata placeholder never overwrites a
// real title.
func (db *DB) UpsertAnalysis(ctx context.Context, a *models.VideoAnalysis) error {
	query := `
		INSERT INTO video_analyses
			(platform, external_id, title, author, thumbnail, duration,
			 transcript, topics, summary, suggested_questions, model_used)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (platform, external_id) DO UPDATE SET
			title               = COALESCE(NULLIF(EXCLUDED.title, ''), video_analyses.title),
			author              = COALESCE(NULLIF(EXCLUDED.author, ''), video_analyses.author),
			thumbnail           = COALESCE(NULLIF(EXCLUDED.thumbnail, ''), video_analyses.thumbnail),
			duration            = CASE WHEN EXCLUDED.duration > 0 THEN EXCLUDED.duration ELSE video_analyses.duration END,
			transcript          = COALESCE(EXCLUDED.transcript, video_analyses.transcript),
			topics              = COALESCE(EXCLUDED.topics, video_analyses.topics),
			summary             = COALESCE(EXCLUDED.summary, video_analyses.summary),
			suggested_questions = COALESCE(EXCLUDED.suggested_questions, video_analyses.suggested_questions),
			model_used          = COALESCE(EXCLUDED.model_used, video_analyses.model_used),
			updated_at          = NOW()
		RETURNING id, created_at, updated_at`

	return db.QueryRowContext(ctx, query,
		a.Platform, a.ExternalID, a.Title, a.Author, a.Thumbnail, a.Duration,
		a.Transcript, a.Topics, a.Summary, a.SuggestedQuestions, a.ModelUsed,
	).Scan(&a.ID, &a.CreatedAt, &a.UpdatedAt)
}

// UpdateAnalysis applies a partial update to an existing row with the same
// COALESCE merge semantics as UpsertAnalysis. Nil fields are left untouched.
func (db *DB) UpdateAnalysis(ctx context.Context, a *models.VideoAnalysis) error {
	query := `
		UPDATE video_analyses SET
			topics              = COALESCE($3, topics),
			summary             = COALESCE($4, summary),
			suggested_questions = COALESCE($5, suggested_questions),
			model_used          = COALESCE($6, model_used),
			updated_at          = NOW()
		WHERE platform = $1 AND external_id = $2
		RETURNING updated_at`

	err := db.QueryRowContext(ctx, query,
		a.Platform, a.ExternalID,
		a.Topics, a.Summary, a.SuggestedQuestions, a.ModelUsed,
	).Scan(&a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrAnalysisNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to update analysis: %w", err)
	}
	return nil
}

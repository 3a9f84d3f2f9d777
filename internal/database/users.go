// users.go handles user accounts and user-to-video links.
package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/clipnotes/clipnotes-api/internal/models"
)

// CreateUser inserts a new user record.
func (db *DB) CreateUser(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO users (email, password_hash, name)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	return db.QueryRowContext(ctx, query,
		u.Email, u.PasswordHash, u.Name,
	).Scan(&u.ID, &u.CreatedAt)
}

// GetUserByEmail retrieves a user by email address.
func (db *DB) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	err := db.GetContext(ctx, &u, `SELECT * FROM users WHERE email = $1`, email)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	return &u, nil
}

// GetUserByID retrieves a user by ID.
func (db *DB) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	err := db.GetContext(ctx, &u, `SELECT * FROM users WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("user not found: %w", err)
	}
	return &u, nil
}

// --- User-video links ---

// LinkUserVideo associates an analysis with the user who generated it.
// Idempotent: linking the same pair twice is a no-op.
func (db *DB) LinkUserVideo(ctx context.Context, userID string, p models.Platform, externalID string) error {
	query := `
		INSERT INTO user_videos (user_id, analysis_id)
		SELECT $1, id FROM video_analyses WHERE platform = $2 AND external_id = $3
		ON CONFLICT (user_id, analysis_id) DO NOTHING`

	result, err := db.ExecContext(ctx, query, userID, p, externalID)
	if err != nil {
		return fmt.Errorf("failed to link video: %w", err)
	}
	rows, _ := result.RowsAffected()
	if rows == 0 {
		// Either the analysis row isn't visible yet (read-after-write lag on
		// the write path) or the link already exists. Distinguish the two.
		var exists bool
		err := db.GetContext(ctx, &exists,
			`SELECT EXISTS(SELECT 1 FROM video_analyses WHERE platform = $1 AND external_id = $2)`,
			p, externalID)
		if err != nil {
			return fmt.Errorf("failed to verify analysis: %w", err)
		}
		if !exists {
			return ErrAnalysisNotFound
		}
	}
	return nil
}

// GetUserVideos returns the analyses linked to a user, newest first.
func (db *DB) GetUserVideos(ctx context.Context, userID string) ([]models.VideoAnalysis, error) {
	var analyses []models.VideoAnalysis
	err := db.SelectContext(ctx, &analyses,
		`SELECT a.* FROM video_analyses a
		 JOIN user_videos uv ON uv.analysis_id = a.id
		 WHERE uv.user_id = $1
		 ORDER BY uv.created_at DESC LIMIT 50`, userID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to get user videos: %w", err)
	}
	return analyses, nil
}

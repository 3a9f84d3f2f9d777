// Package models defines the data structures used throughout the application.
//
// Go Pattern: Models are plain structs with JSON tags for serialization.
// Unlike Ruby's ActiveRecord or JavaScript's Mongoose, Go models are just
// data containers — no ORM magic. The database package handles persistence.
//
// JSON tags (e.g., `json:"id"`) control how struct fields are serialized
// to/from JSON. The `db` tags work with sqlx for database column mapping.
package models

import (
	"encoding/json"
	"time"
)

// Platform identifies which video site a URL belongs to.
// Go Pattern: We use string constants instead of enums (Go doesn't have enums).
// This is a common pattern — define a type alias and named constants.
type Platform string

const (
	PlatformYouTube  Platform = "youtube"
	PlatformBilibili Platform = "bilibili"
)

// VideoInfo holds the metadata for a video, normalized across platforms.
// Immutable once fetched for a session.
type VideoInfo struct {
	VideoID     string   `json:"video_id"`
	Title       string   `json:"title"`
	Author      string   `json:"author"`
	Thumbnail   string   `json:"thumbnail"`
	Duration    int      `json:"duration"` // seconds; 0 when the source doesn't report it
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// TranscriptSegment is one timed line of a video transcript.
// Segments are ordered with monotonically non-decreasing Start.
type TranscriptSegment struct {
	Text     string  `json:"text"`
	Start    float64 `json:"start"`    // seconds
	Duration float64 `json:"duration"` // seconds
}

// TopicSegment is a time range within the transcript covered by a topic.
type TopicSegment struct {
	Start float64 `json:"start"` // seconds
	End   float64 `json:"end"`   // seconds
}

// Topic is an AI-labelled highlight reel: a set of transcript time ranges
// with a title and description. Topics must be hydrated (segment bounds
// resolved against the transcript) before they are returned to clients.
type Topic struct {
	ID             string         `json:"id"`
	Title          string         `json:"title"`
	Description    string         `json:"description"`
	Duration       float64        `json:"duration"` // total seconds across segments
	Segments       []TopicSegment `json:"segments"`
	Quote          string         `json:"quote,omitempty"`
	IsCitationReel bool           `json:"is_citation_reel,omitempty"`
	AutoPlay       bool           `json:"auto_play,omitempty"`
}

// Citation points into the transcript from a chat answer, used to highlight
// the answer's sources and to build citation reels.
type Citation struct {
	SegmentIndex int     `json:"segment_index"`
	Start        float64 `json:"start"` // seconds
	End          float64 `json:"end"`   // seconds
	CharStart    int     `json:"char_start"`
	CharEnd      int     `json:"char_end"`
	Text         string  `json:"text,omitempty"`
}

// VideoAnalysis is the cached analysis row for a video.
//
// One table serves both platforms: the (platform, external_id) pair is
// unique, and partial updates merge COALESCE-style — new non-null fields
// overwrite, null fields preserve what's already stored. That merge rule is
// the core correctness invariant of the cache: a questions-only update must
// never erase previously stored topics.
type VideoAnalysis struct {
	ID                 string          `json:"id" db:"id"`
	Platform           Platform        `json:"platform" db:"platform"`
	ExternalID         string          `json:"external_id" db:"external_id"`
	Title              string          `json:"title" db:"title"`
	Author             string          `json:"author" db:"author"`
	Thumbnail          string          `json:"thumbnail" db:"thumbnail"`
	Duration           int             `json:"duration" db:"duration"`
	Transcript         json.RawMessage `json:"transcript,omitempty" db:"transcript"`                   // JSONB: []TranscriptSegment
	Topics             json.RawMessage `json:"topics,omitempty" db:"topics"`                           // JSONB: []Topic
	Summary            *string         `json:"summary,omitempty" db:"summary"`                         // Pointer = nullable
	SuggestedQuestions json.RawMessage `json:"suggested_questions,omitempty" db:"suggested_questions"` // JSONB: []string
	ModelUsed          *string         `json:"model_used,omitempty" db:"model_used"`
	CreatedAt          time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at" db:"updated_at"`
}

// User represents a registered account.
type User struct {
	ID           string    `json:"id" db:"id"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"` // "-" means never serialize to JSON
	Name         string    `json:"name" db:"name"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
}

// UserVideo links an analysis to the account that generated it.
type UserVideo struct {
	ID         string    `json:"id" db:"id"`
	UserID     string    `json:"user_id" db:"user_id"`
	AnalysisID string    `json:"analysis_id" db:"analysis_id"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// --- Request/Response DTOs (Data Transfer Objects) ---
// Go Pattern: Separate structs for API input/output vs database models.
// This keeps your API contract clean and independent of your database schema.

// URLRequest is the JSON body for endpoints that take a video URL.
type URLRequest struct {
	URL string `json:"url" binding:"required"`
}

// TranscriptResponse is returned by POST /api/transcript.
type TranscriptResponse struct {
	Platform Platform            `json:"platform"`
	VideoID  string              `json:"video_id"`
	Language string              `json:"language,omitempty"`
	Segments []TranscriptSegment `json:"segments"`
}

// CheckCacheResponse is returned by POST /api/check-video-cache.
// Fields beyond Cached are only present on a hit.
type CheckCacheResponse struct {
	Cached             bool                `json:"cached"`
	VideoInfo          *VideoInfo          `json:"video_info,omitempty"`
	Transcript         []TranscriptSegment `json:"transcript,omitempty"`
	Topics             []Topic             `json:"topics,omitempty"`
	Summary            string              `json:"summary,omitempty"`
	SuggestedQuestions []string            `json:"suggested_questions,omitempty"`
}

// GenerateTopicsRequest is the JSON body for POST /api/video-analysis.
type GenerateTopicsRequest struct {
	Platform   Platform            `json:"platform" binding:"required"`
	VideoID    string              `json:"video_id" binding:"required"`
	Transcript []TranscriptSegment `json:"transcript" binding:"required"`
	VideoInfo  *VideoInfo          `json:"video_info,omitempty"`
}

// GenerateSummaryRequest is the JSON body for POST /api/generate-summary.
type GenerateSummaryRequest struct {
	Platform   Platform            `json:"platform" binding:"required"`
	VideoID    string              `json:"video_id" binding:"required"`
	Transcript []TranscriptSegment `json:"transcript" binding:"required"`
}

// SuggestedQuestionsRequest is the JSON body for POST /api/suggested-questions.
// Either the transcript or a previously generated summary can seed the model.
type SuggestedQuestionsRequest struct {
	Platform   Platform            `json:"platform" binding:"required"`
	VideoID    string              `json:"video_id" binding:"required"`
	Transcript []TranscriptSegment `json:"transcript,omitempty"`
	Summary    string              `json:"summary,omitempty"`
}

// SaveAnalysisRequest is the JSON body for POST /api/save-analysis.
type SaveAnalysisRequest struct {
	Platform   Platform            `json:"platform" binding:"required"`
	VideoID    string              `json:"video_id" binding:"required"`
	VideoInfo  *VideoInfo          `json:"video_info,omitempty"`
	Transcript []TranscriptSegment `json:"transcript,omitempty"`
	Topics     []Topic             `json:"topics,omitempty"`
	Summary    string              `json:"summary,omitempty"`
	ModelUsed  string              `json:"model_used,omitempty"`
}

// UpdateAnalysisRequest is the JSON body for POST /api/update-video-analysis.
// Absent fields preserve existing values (partial merge, never full overwrite).
type UpdateAnalysisRequest struct {
	Platform           Platform `json:"platform" binding:"required"`
	VideoID            string   `json:"video_id" binding:"required"`
	Topics             []Topic  `json:"topics,omitempty"`
	Summary            string   `json:"summary,omitempty"`
	SuggestedQuestions []string `json:"suggested_questions,omitempty"`
	ModelUsed          string   `json:"model_used,omitempty"`
}

// LinkVideoRequest is the JSON body for POST /api/link-video.
type LinkVideoRequest struct {
	Platform Platform `json:"platform" binding:"required"`
	VideoID  string   `json:"video_id" binding:"required"`
}

// CheckLimitResponse reports generation quota. Anonymous callers get a
// remaining count; authenticated callers get a boolean.
type CheckLimitResponse struct {
	Authenticated bool  `json:"authenticated"`
	Remaining     *int  `json:"remaining,omitempty"`
	CanGenerate   *bool `json:"can_generate,omitempty"`
}

// AnalyzeRequest is the JSON body for POST /api/analyze.
type AnalyzeRequest struct {
	URL       string `json:"url" binding:"required"`
	SessionID string `json:"session_id,omitempty"`
}

// SelectThemeRequest is the JSON body for POST /api/analyze/theme.
type SelectThemeRequest struct {
	SessionID string `json:"session_id" binding:"required"`
	Theme     string `json:"theme" binding:"required"`
}

// RegisterRequest is the JSON body for POST /api/auth/register.
type RegisterRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
	Name     string `json:"name" binding:"required"`
}

// LoginRequest is the JSON body for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// AuthResponse is returned after successful registration or login.
type AuthResponse struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// ErrorResponse is a standard error format for all API errors.
// The HTTP status carries the category: 400 bad input, 404 not found,
// 429 rate limited, 500 upstream/internal.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// HealthResponse is returned by the health check endpoint.
type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database"`
}

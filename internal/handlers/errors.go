// errors.go maps domain errors to HTTP responses.
//
// The status code carries the category: 400 bad input, 404 not
// found/no captions, 429 rate limited, 500 upstream/internal. Clients
// branch on the status; the body's {error, details} pair is for humans.
package handlers

import (
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clipnotes/clipnotes-api/internal/database"
	"github.com/clipnotes/clipnotes-api/internal/models"
	"github.com/clipnotes/clipnotes-api/internal/services/analyzer"
	"github.com/clipnotes/clipnotes-api/internal/services/provider"
)

// respondError writes the standard error shape for a domain error.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, analyzer.ErrBadURL):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "invalid_url",
			Details: "The URL is not a supported YouTube or Bilibili video link",
		})
	case errors.Is(err, provider.ErrUnsupportedLanguage):
		c.JSON(http.StatusBadRequest, models.ErrorResponse{
			Error:   "unsupported_language",
			Details: "This video's transcript is not in a supported language",
		})
	case errors.Is(err, provider.ErrNoCaptions):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "no_captions",
			Details: "This video has no captions or transcript available",
		})
	case errors.Is(err, provider.ErrVideoNotFound), errors.Is(err, database.ErrAnalysisNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse{
			Error:   "not_found",
			Details: "Video not found",
		})
	case errors.Is(err, analyzer.ErrSignInRequired):
		c.JSON(http.StatusTooManyRequests, models.ErrorResponse{
			Error:   "sign_in_required",
			Details: "Daily free limit reached. Sign in to continue analyzing videos",
		})
	case errors.Is(err, analyzer.ErrLimitReached):
		c.JSON(http.StatusTooManyRequests, models.ErrorResponse{
			Error:   "limit_reached",
			Details: "You've reached your daily analysis limit. Try again tomorrow",
		})
	case errors.Is(err, provider.ErrTimeout):
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "timeout",
			Details: "The request to the video platform timed out. Please try again",
		})
	default:
		log.Printf("❌ Internal error: %v", err)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse{
			Error:   "internal_error",
			Details: "Something went wrong processing this video",
		})
	}
}

// respondBadRequest writes a 400 for malformed request bodies.
func respondBadRequest(c *gin.Context, details string) {
	c.JSON(http.StatusBadRequest, models.ErrorResponse{
		Error:   "invalid_request",
		Details: details,
	})
}

// analyze.go exposes the orchestrated analysis flow: one call that takes
// a URL and returns the full analysis, plus theme selection, quota
// checks, and post-sign-in video linking.
package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clipnotes/clipnotes-api/internal/middleware"
	"github.com/clipnotes/clipnotes-api/internal/models"
	"github.com/clipnotes/clipnotes-api/internal/services/analyzer"
)

// caller builds the quota identity for the current request: user ID when
// authenticated, client IP otherwise.
func caller(c *gin.Context) analyzer.Caller {
	id := analyzer.Caller{IP: c.ClientIP()}
	if user := middleware.GetUser(c); user != nil {
		id.UserID = user.ID
	}
	return id
}

// Analyze runs the full analysis flow for a video URL.
// POST /api/analyze
func (h *Handler) Analyze(c *gin.Context) {
	var req models.AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "A video URL is required")
		return
	}

	sessionID := req.SessionID
	if sessionID == "" {
		sessionID = c.ClientIP()
	}

	result, err := h.Analyzer.Analyze(c.Request.Context(), sessionID, caller(c), req.URL)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}

// SelectTheme regroups the session's topics around a viewer-chosen theme.
// POST /api/analyze/theme
func (h *Handler) SelectTheme(c *gin.Context) {
	var req models.SelectThemeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "session_id and theme are required")
		return
	}

	topics, err := h.Analyzer.SelectTheme(c.Request.Context(), req.SessionID, req.Theme)
	if errors.Is(err, analyzer.ErrSuperseded) {
		// A newer theme selection replaced this one; nothing to apply.
		c.JSON(http.StatusOK, gin.H{"superseded": true})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"topics": topics})
}

// CheckLimit reports the caller's remaining daily quota.
// POST /api/check-limit
func (h *Handler) CheckLimit(c *gin.Context) {
	resp, err := h.Analyzer.CheckLimit(c.Request.Context(), caller(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// LinkVideo attaches an analysis to the authenticated user's account.
// Called right after sign-in; tolerates read-after-write lag by retrying.
// POST /api/link-video
func (h *Handler) LinkVideo(c *gin.Context) {
	user := middleware.GetUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, models.ErrorResponse{Error: "unauthorized"})
		return
	}

	var req models.LinkVideoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "platform and video_id are required")
		return
	}

	if err := h.Analyzer.LinkVideo(c.Request.Context(), user.ID, req.Platform, req.VideoID); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"linked": true})
}

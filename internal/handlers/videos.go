// videos.go exposes the provider clients directly: transcript and
// metadata fetches without the full analysis flow.
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clipnotes/clipnotes-api/internal/models"
	"github.com/clipnotes/clipnotes-api/internal/platform"
	"github.com/clipnotes/clipnotes-api/internal/services/analyzer"
	"github.com/clipnotes/clipnotes-api/internal/services/provider"
)

// resolveURL parses a video URL and finds its provider client. On failure
// it writes the 400 response and returns ok=false.
func (h *Handler) resolveURL(c *gin.Context, rawURL string) (models.Platform, string, provider.Client, bool) {
	p, videoID := platform.Parse(rawURL)
	if p == "" || videoID == "" {
		respondError(c, fmt.Errorf("%q: %w", rawURL, analyzer.ErrBadURL))
		return "", "", nil, false
	}
	client, ok := h.Providers[p]
	if !ok {
		respondError(c, fmt.Errorf("no provider for %s: %w", p, analyzer.ErrBadURL))
		return "", "", nil, false
	}
	return p, videoID, client, true
}

// GetTranscript fetches a video's transcript from its platform.
// POST /api/transcript
func (h *Handler) GetTranscript(c *gin.Context) {
	var req models.URLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "A video URL is required")
		return
	}

	p, videoID, client, ok := h.resolveURL(c, req.URL)
	if !ok {
		return
	}

	segments, lang, err := client.FetchTranscript(c.Request.Context(), videoID)
	if err != nil {
		respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, models.TranscriptResponse{
		Platform: p,
		VideoID:  videoID,
		Language: lang,
		Segments: segments,
	})
}

// GetVideoInfo fetches a video's metadata from its platform.
// POST /api/video-info
func (h *Handler) GetVideoInfo(c *gin.Context) {
	var req models.URLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "A video URL is required")
		return
	}

	_, videoID, client, ok := h.resolveURL(c, req.URL)
	if !ok {
		return
	}

	info, err := client.FetchVideoInfo(c.Request.Context(), videoID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, info)
}

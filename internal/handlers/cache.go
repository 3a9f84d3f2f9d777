// cache.go exposes the analysis cache: check, save, and partial update.
//
// Save and update share the store's COALESCE merge rule: absent fields
// never erase stored values, so the generation endpoints can persist their
// pieces independently and in any order.
package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clipnotes/clipnotes-api/internal/database"
	"github.com/clipnotes/clipnotes-api/internal/models"
)

// CheckVideoCache reports whether a video is already analyzed and returns
// the stored analysis on a hit. No provider calls are made here.
// POST /api/check-video-cache
func (h *Handler) CheckVideoCache(c *gin.Context) {
	var req models.URLRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "A video URL is required")
		return
	}

	p, videoID, _, ok := h.resolveURL(c, req.URL)
	if !ok {
		return
	}

	row, err := h.Store.GetAnalysis(c.Request.Context(), p, videoID)
	if errors.Is(err, database.ErrAnalysisNotFound) {
		c.JSON(http.StatusOK, models.CheckCacheResponse{Cached: false})
		return
	}
	if err != nil {
		respondError(c, err)
		return
	}

	// Partial rows (transcript persisted, topics still pending) count as
	// misses, same rule the analyzer applies: topics present means hit.
	if len(row.Topics) == 0 {
		c.JSON(http.StatusOK, models.CheckCacheResponse{Cached: false})
		return
	}

	resp := models.CheckCacheResponse{
		Cached: true,
		VideoInfo: &models.VideoInfo{
			VideoID:   row.ExternalID,
			Title:     row.Title,
			Author:    row.Author,
			Thumbnail: row.Thumbnail,
			Duration:  row.Duration,
		},
	}
	if row.Summary != nil {
		resp.Summary = *row.Summary
	}
	if len(row.Transcript) > 0 {
		json.Unmarshal(row.Transcript, &resp.Transcript)
	}
	if len(row.Topics) > 0 {
		json.Unmarshal(row.Topics, &resp.Topics)
	}
	if len(row.SuggestedQuestions) > 0 {
		json.Unmarshal(row.SuggestedQuestions, &resp.SuggestedQuestions)
	}

	c.JSON(http.StatusOK, resp)
}

// SaveAnalysis upserts a full analysis row.
// POST /api/save-analysis
func (h *Handler) SaveAnalysis(c *gin.Context) {
	var req models.SaveAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "platform and video_id are required")
		return
	}

	row := &models.VideoAnalysis{
		Platform:   req.Platform,
		ExternalID: req.VideoID,
	}
	if req.VideoInfo != nil {
		row.Title = req.VideoInfo.Title
		row.Author = req.VideoInfo.Author
		row.Thumbnail = req.VideoInfo.Thumbnail
		row.Duration = req.VideoInfo.Duration
	}
	if req.Transcript != nil {
		row.Transcript, _ = json.Marshal(req.Transcript)
	}
	if req.Topics != nil {
		row.Topics, _ = json.Marshal(req.Topics)
	}
	if req.Summary != "" {
		row.Summary = &req.Summary
	}
	if req.ModelUsed != "" {
		row.ModelUsed = &req.ModelUsed
	}

	if err := h.Store.UpsertAnalysis(c.Request.Context(), row); err != nil {
		log.Printf("❌ Failed to save analysis: %v", err)
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}

// UpdateVideoAnalysis applies a partial update to a cached analysis.
// Absent fields are preserved, never overwritten.
// POST /api/update-video-analysis
func (h *Handler) UpdateVideoAnalysis(c *gin.Context) {
	var req models.UpdateAnalysisRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "platform and video_id are required")
		return
	}

	row := &models.VideoAnalysis{
		Platform:   req.Platform,
		ExternalID: req.VideoID,
	}
	if req.Topics != nil {
		row.Topics, _ = json.Marshal(req.Topics)
	}
	if req.SuggestedQuestions != nil {
		row.SuggestedQuestions, _ = json.Marshal(req.SuggestedQuestions)
	}
	if req.Summary != "" {
		row.Summary = &req.Summary
	}
	if req.ModelUsed != "" {
		row.ModelUsed = &req.ModelUsed
	}

	if err := h.Store.UpdateAnalysis(c.Request.Context(), row); err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"updated": true})
}

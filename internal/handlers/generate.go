// generate.go exposes the AI generation steps individually: topics,
// summary, and suggested questions. Each persists its own output with a
// partial merge, so calling them in any order is safe.
package handlers

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clipnotes/clipnotes-api/internal/models"
)

// GenerateTopics runs topic generation over a transcript.
// POST /api/video-analysis
func (h *Handler) GenerateTopics(c *gin.Context) {
	var req models.GenerateTopicsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "platform, video_id, and transcript are required")
		return
	}

	topics, err := h.Insights.GenerateTopics(c.Request.Context(), req.VideoInfo, req.Transcript)
	if err != nil {
		respondError(c, err)
		return
	}

	// Persist best-effort; the caller already has the topics.
	topicsJSON, _ := json.Marshal(topics)
	model := h.Insights.Model()
	row := &models.VideoAnalysis{
		Platform:   req.Platform,
		ExternalID: req.VideoID,
		Topics:     topicsJSON,
		ModelUsed:  &model,
	}
	if err := h.Store.UpsertAnalysis(c.Request.Context(), row); err != nil {
		log.Printf("⚠️  Failed to persist topics for %s/%s: %v", req.Platform, req.VideoID, err)
	}

	c.JSON(http.StatusOK, gin.H{"topics": topics, "model_used": model})
}

// GenerateSummary runs summary generation over a transcript.
// POST /api/generate-summary
func (h *Handler) GenerateSummary(c *gin.Context) {
	var req models.GenerateSummaryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "platform, video_id, and transcript are required")
		return
	}

	summary, err := h.Insights.GenerateSummary(c.Request.Context(), req.Transcript)
	if err != nil {
		respondError(c, err)
		return
	}

	model := h.Insights.Model()
	row := &models.VideoAnalysis{
		Platform:   req.Platform,
		ExternalID: req.VideoID,
		Summary:    &summary,
		ModelUsed:  &model,
	}
	if err := h.Store.UpsertAnalysis(c.Request.Context(), row); err != nil {
		log.Printf("⚠️  Failed to persist summary for %s/%s: %v", req.Platform, req.VideoID, err)
	}

	c.JSON(http.StatusOK, gin.H{"summary": summary, "model_used": model})
}

// SuggestedQuestions generates viewer questions from a transcript or a
// previously generated summary.
// POST /api/suggested-questions
func (h *Handler) SuggestedQuestions(c *gin.Context) {
	var req models.SuggestedQuestionsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "platform and video_id are required")
		return
	}
	if len(req.Transcript) == 0 && req.Summary == "" {
		respondBadRequest(c, "Either transcript or summary must be provided")
		return
	}

	questions, err := h.Insights.GenerateQuestions(c.Request.Context(), req.Transcript, req.Summary)
	if err != nil {
		respondError(c, err)
		return
	}

	questionsJSON, _ := json.Marshal(questions)
	row := &models.VideoAnalysis{
		Platform:           req.Platform,
		ExternalID:         req.VideoID,
		SuggestedQuestions: questionsJSON,
	}
	if err := h.Store.UpsertAnalysis(c.Request.Context(), row); err != nil {
		log.Printf("⚠️  Failed to persist questions for %s/%s: %v", req.Platform, req.VideoID, err)
	}

	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

// Package router sets up all HTTP routes for the API.
package router

import (
	"github.com/gin-gonic/gin"

	"github.com/clipnotes/clipnotes-api/internal/database"
	"github.com/clipnotes/clipnotes-api/internal/handlers"
	"github.com/clipnotes/clipnotes-api/internal/middleware"
	"github.com/clipnotes/clipnotes-api/internal/models"
	"github.com/clipnotes/clipnotes-api/internal/services/analyzer"
	"github.com/clipnotes/clipnotes-api/internal/services/provider"
)

// Setup creates and configures the Gin router with all routes.
func Setup(db *database.DB, svc *analyzer.Service, providers map[models.Platform]provider.Client, ai analyzer.Insights, jwtSecret string, allowedOrigins []string) *gin.Engine {
	r := gin.Default()
	r.Use(middleware.CORS(allowedOrigins))

	h := handlers.NewHandler(db, svc, providers, ai, jwtSecret)

	// --- Public routes (no auth required) ---
	r.GET("/api/health", h.HealthCheck)
	r.POST("/api/auth/register", h.Register)
	r.POST("/api/auth/login", h.Login)

	// --- Analysis routes (anonymous allowed, token upgrades quotas) ---
	open := r.Group("/api")
	open.Use(middleware.OptionalAuth(db, jwtSecret))
	{
		open.POST("/analyze", h.Analyze)
		open.POST("/analyze/theme", h.SelectTheme)
		open.POST("/check-limit", h.CheckLimit)

		open.POST("/transcript", h.GetTranscript)
		open.POST("/video-info", h.GetVideoInfo)

		open.POST("/check-video-cache", h.CheckVideoCache)
		open.POST("/save-analysis", h.SaveAnalysis)
		open.POST("/update-video-analysis", h.UpdateVideoAnalysis)

		open.POST("/video-analysis", h.GenerateTopics)
		open.POST("/generate-summary", h.GenerateSummary)
		open.POST("/suggested-questions", h.SuggestedQuestions)
	}

	// --- Account routes (valid token required) ---
	protected := r.Group("/api")
	protected.Use(middleware.JWTAuth(db, jwtSecret))
	{
		protected.GET("/auth/me", h.GetMe)
		protected.GET("/my-videos", h.GetMyVideos)
		protected.POST("/link-video", h.LinkVideo)
	}

	return r
}

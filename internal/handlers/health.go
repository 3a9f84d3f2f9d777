// Package handlers contains HTTP handler functions for the API.
//
// Go Pattern: Handlers in Gin receive a *gin.Context which provides:
// - Request data (params, query, body, headers)
// - Response methods (JSON, String, Status)
// - Middleware data (c.Get/c.Set)
//
// We group related handlers into a struct (Handler) that holds shared
// dependencies.
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/clipnotes/clipnotes-api/internal/database"
	"github.com/clipnotes/clipnotes-api/internal/models"
	"github.com/clipnotes/clipnotes-api/internal/services/analyzer"
	"github.com/clipnotes/clipnotes-api/internal/services/provider"
)

// Handler holds shared dependencies for all HTTP handlers.
// Go Pattern: Dependency injection via struct fields. Instead of global
// variables or service locators, we pass dependencies explicitly.
// This makes testing easy — just create a Handler with mock dependencies.
type Handler struct {
	DB        *database.DB
	Store     analyzer.Store
	Analyzer  *analyzer.Service
	Providers map[models.Platform]provider.Client
	Insights  analyzer.Insights
	JWTSecret string
}

// NewHandler creates a new handler with all dependencies.
func NewHandler(db *database.DB, svc *analyzer.Service, providers map[models.Platform]provider.Client, ai analyzer.Insights, jwtSecret string) *Handler {
	return &Handler{
		DB:        db,
		Store:     db,
		Analyzer:  svc,
		Providers: providers,
		Insights:  ai,
		JWTSecret: jwtSecret,
	}
}

// HealthCheck returns the API health status.
// GET /api/health
func (h *Handler) HealthCheck(c *gin.Context) {
	dbStatus := "healthy"
	if err := h.DB.HealthCheck(c.Request.Context()); err != nil {
		dbStatus = "unhealthy: " + err.Error()
	}

	c.JSON(http.StatusOK, models.HealthResponse{
		Status:   "ok",
		Version:  "1.0.0",
		Database: dbStatus,
	})
}

// Package main is the entry point for the ClipNotes API server.
package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/clipnotes/clipnotes-api/internal/config"
	"github.com/clipnotes/clipnotes-api/internal/database"
	"github.com/clipnotes/clipnotes-api/internal/limits"
	"github.com/clipnotes/clipnotes-api/internal/models"
	"github.com/clipnotes/clipnotes-api/internal/router"
	"github.com/clipnotes/clipnotes-api/internal/services/analyzer"
	"github.com/clipnotes/clipnotes-api/internal/services/bilibili"
	"github.com/clipnotes/clipnotes-api/internal/services/insights"
	"github.com/clipnotes/clipnotes-api/internal/services/provider"
	"github.com/clipnotes/clipnotes-api/internal/services/youtube"
)

// Version is set at build time via -ldflags.
var Version = "dev"

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)
	log.Printf("🚀 ClipNotes API %s starting...", Version)

	// Step 1: Load Configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("❌ Failed to load config: %v", err)
	}
	log.Printf("📋 Config loaded: port=%s, gin_mode=%s, model=%s", cfg.Port, cfg.GinMode, cfg.OpenRouterModel)

	os.Setenv("GIN_MODE", cfg.GinMode)

	// Step 2: Connect to Database
	db, err := database.New(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("❌ Failed to connect to database: %v", err)
	}
	defer db.Close()
	log.Println("✅ Database connected")

	if err := db.RunMigrations(cfg.MigrationsPath); err != nil {
		log.Fatalf("❌ Migration failed: %v", err)
	}

	// Step 3: Create Services
	heuristic := youtube.LanguageHeuristic{
		MaxCJKRatio:   cfg.MaxCJKRatio,
		MinLatinRatio: cfg.MinLatinRatio,
	}
	providers := map[models.Platform]provider.Client{
		models.PlatformYouTube:  youtube.New(cfg.SupadataAPIKey, cfg.ProviderTimeout, heuristic),
		models.PlatformBilibili: bilibili.New(cfg.ProviderTimeout),
	}
	if cfg.SupadataAPIKey == "" {
		log.Println("⚠️  No Supadata API key set (YouTube transcripts will fail — set SUPADATA_API_KEY)")
	}

	ai := insights.New(cfg.OpenRouterAPIKey, cfg.OpenRouterModel)
	if cfg.OpenRouterAPIKey == "" {
		log.Println("⚠️  No OpenRouter API key set (AI generation disabled — set OPENROUTER_API_KEY)")
	}

	limitStore, err := limits.NewStore(cfg.RedisURL)
	if err != nil {
		log.Fatalf("❌ Failed to initialize limit store: %v", err)
	}

	svc := analyzer.New(providers, db, ai, limitStore, analyzer.Options{
		TranscriptTimeout: cfg.TranscriptTimeout,
		MetadataTimeout:   cfg.MetadataTimeout,
		SummaryTimeout:    cfg.SummaryTimeout,
		AnonDailyLimit:    cfg.AnonDailyLimit,
		UserDailyLimit:    cfg.UserDailyLimit,
	})

	// Step 4: Setup HTTP Router
	r := router.Setup(db, svc, providers, ai, cfg.JWTSecret, cfg.AllowedOrigins)

	// Step 5: Start the HTTP Server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 6 * time.Minute, // transcript fetches can run long
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("🌐 Server listening on http://localhost:%s", cfg.Port)
		log.Printf("📖 Health check: http://localhost:%s/api/health", cfg.Port)

		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("❌ Server failed: %v", err)
		}
	}()

	// Step 6: Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	sig := <-quit
	log.Printf("🛑 Received signal %v, shutting down gracefully...", sig)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("⚠️  Server forced to shutdown: %v", err)
	}

	log.Println("👋 Server stopped. Goodbye!")
}

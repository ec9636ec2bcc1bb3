package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/dalfonso89/travel-assistant-api/internal/api"
	"github.com/dalfonso89/travel-assistant-api/internal/app"
	"github.com/dalfonso89/travel-assistant-api/internal/config"
	"github.com/dalfonso89/travel-assistant-api/internal/logger"
	"github.com/dalfonso89/travel-assistant-api/internal/platform"
)

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Initialize logger
	logger := logger.New(cfg.LogLevel)

	application, err := app.New(cfg, logger, app.Options{})
	if err != nil {
		logger.Fatalf("Failed to initialize application: %v", err)
	}

	// Initialize HTTP handlers
	gin.SetMode(gin.ReleaseMode)
	handlers := api.NewHandlers(api.HandlerConfig{
		Config:         cfg,
		Logger:         logger,
		ListingService: application.Listings,
		RatesService:   application.Rates,
		ChatService:    application.Chat,
		RateLimiter:    application.RateLimiter,
		Metrics:        application.Metrics,
	})

	// Model calls with backoff can outlast a short write timeout
	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handlers.SetupRoutes(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: cfg.LLM.Timeout*3 + 15*time.Second,
	}

	// Create a shutdown context that works across platforms
	shutdownCtx, stop := platform.NewShutdownContext(context.Background())
	defer stop()

	go application.SweepSessions(shutdownCtx)

	// Start server in a goroutine
	go func() {
		logger.Info("Starting travel assistant API on port " + cfg.Port)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	<-shutdownCtx.Done()
	logger.Info("Shutting down server...")

	// Stop rate limiter cleanup
	application.Close()

	// Give outstanding requests 30 seconds to complete
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Fatalf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

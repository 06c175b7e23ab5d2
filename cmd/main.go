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

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/httprate"
	_ "github.com/oilclothshop/backend/docs"
	"github.com/oilclothshop/backend/internal/cache"
	"github.com/oilclothshop/backend/internal/config"
	"github.com/oilclothshop/backend/internal/database"
	"github.com/oilclothshop/backend/internal/handlers"
	"github.com/oilclothshop/backend/internal/logger"
	loggerMiddleware "github.com/oilclothshop/backend/internal/logger/middleware"
	"github.com/oilclothshop/backend/internal/metrics"
	"github.com/oilclothshop/backend/internal/middlewares"
	"github.com/oilclothshop/backend/internal/repositories"
	"github.com/oilclothshop/backend/internal/scheduler"
	"github.com/oilclothshop/backend/internal/services"
	"github.com/oilclothshop/backend/internal/validation"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"
)

// dbStatsInterval is how often pool statistics are exported
const dbStatsInterval = 15 * time.Second

// @title Oilcloth Shop API
// @version 1.0
// @description API for managing oilcloth roll photos and consultant cut lengths

// @host localhost:8080
// @BasePath /
func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v\n", err)
	}

	// Initialize logger
	if err := logger.Init(cfg.Logging.Level); err != nil {
		log.Fatalf("Failed to initialize logger: %v\n", err)
	}
	defer logger.Sync()

	logger.Logger.Info("Starting Oilcloth Shop API")

	ctx := context.Background()

	// Connect to database
	db, err := database.Connect(ctx, cfg.DSN())
	if err != nil {
		logger.Logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	// Run migrations
	migrator, err := database.NewMigrator(db, logger.Logger)
	if err != nil {
		logger.Logger.Fatal("Failed to prepare migrations", zap.Error(err))
	}
	if err := migrator.EnsureSchema(ctx); err != nil {
		logger.Logger.Fatal("Failed to run migrations", zap.Error(err))
	}

	m := metrics.NewMetrics()

	// Initialize image cache
	baseCache, err := cache.New(ctx, cfg, logger.Logger)
	if err != nil {
		logger.Logger.Fatal("Failed to initialize image cache", zap.Error(err))
	}
	imageCache := cache.WithMetrics(baseCache, m.CacheLookups)
	defer imageCache.Close()

	// Initialize repositories
	imageRepo := repositories.NewImageRepository(db, logger.Logger)
	submissionRepo := repositories.NewSubmissionRepository(db, logger.Logger)

	// Initialize services
	validator := validation.New()
	imageService := services.NewImageService(imageRepo, imageCache, validator, logger.Logger)
	submissionService := services.NewSubmissionService(submissionRepo, imageRepo, validator, m.PurgedSubmissions, logger.Logger)

	// Initialize handlers
	imageHandler := handlers.NewImageHandler(imageService, logger.Logger)
	submissionHandler := handlers.NewSubmissionHandler(submissionService, logger.Logger)
	systemHandler := handlers.NewSystemHandler(migrator, db, logger.Logger)

	// Setup router
	r := chi.NewRouter()

	// Apply middleware
	r.Use(middlewares.RequestIDMiddleware)
	r.Use(loggerMiddleware.LoggerMiddleware(logger.Logger))
	r.Use(middlewares.RecoveryMiddleware(logger.Logger))
	r.Use(middlewares.CORSMiddleware(cfg.CORS.AllowedOrigins))
	r.Use(m.Middleware)
	r.Use(httprate.LimitByIP(100, time.Minute))
	r.Use(middlewares.RequestSizeLimitMiddleware(cfg.Server.MaxUploadSize))

	// Swagger documentation
	r.Get("/swagger/*", httpSwagger.Handler(
		httpSwagger.URL(fmt.Sprintf("http://localhost:%d/swagger/doc.json", cfg.Server.Port)),
	))
	r.Handle("/metrics", m.Handler())

	imageHandler.RegisterRoutes(r)
	submissionHandler.RegisterRoutes(r)
	systemHandler.RegisterRoutes(r)

	// Start expired submission sweep
	purgeScheduler, err := scheduler.NewPurgeScheduler(submissionService, cfg.PurgeSchedule, logger.Logger)
	if err != nil {
		logger.Logger.Fatal("Failed to create purge scheduler", zap.Error(err))
	}
	purgeScheduler.Start()

	// Export connection pool statistics
	statsDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(dbStatsInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.RecordDBPoolStats(db.Stats())
			case <-statsDone:
				return
			}
		}
	}()

	// Start server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  30 * time.Second, // Longer timeout for image uploads
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		logger.Logger.Info("Server starting", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Logger.Info("Shutting down server...")

	purgeScheduler.Stop()
	close(statsDone)

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Logger.Error("Server forced to shutdown", zap.Error(err))
	}

	logger.Logger.Info("Server exited")
}

package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/deploykit/templatehub/internal/api/handlers"
	"github.com/deploykit/templatehub/internal/archive"
	"github.com/deploykit/templatehub/internal/config"
	"github.com/deploykit/templatehub/internal/extract"
	"github.com/deploykit/templatehub/internal/queue"
	"github.com/deploykit/templatehub/internal/status"
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// NewRouter creates and configures the Gin router
func NewRouter(cfg *config.Config, db *gorm.DB, q queue.Queue, store status.Store, archives *archive.Store, scanner *extract.Scanner, templatesRoot string) *gin.Engine {
	if cfg.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(loggingMiddleware())
	router.Use(corsMiddleware())

	tplHandler := handlers.NewTemplateHandler(db, q, store, archives, cfg.Storage.DefaultBucket)
	extHandler := handlers.NewExtractionHandler(store, scanner, templatesRoot, cfg.Storage.DefaultBucket)
	jobHandler := handlers.NewJobHandler(db)
	archHandler := handlers.NewArchiveHandler(archives)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", handlers.HealthCheck)

		v1.POST("/archives", archHandler.UploadArchive)

		v1.GET("/templates", tplHandler.ListTemplates)
		v1.POST("/templates", tplHandler.CreateTemplate)
		v1.GET("/templates/:id", tplHandler.GetTemplate)
		v1.DELETE("/templates/:id", tplHandler.DeleteTemplate)

		v1.GET("/templates/:id/extraction", extHandler.GetExtraction)
		v1.POST("/templates/:id/extraction", extHandler.UpdateExtraction)

		// Idempotent sweep; GET kept for curl-friendly manual triggering
		v1.GET("/extractions/reconcile", extHandler.Reconcile)
		v1.POST("/extractions/reconcile", extHandler.Reconcile)

		v1.GET("/jobs", jobHandler.ListJobs)
		v1.GET("/jobs/:id", jobHandler.GetJob)
	}

	slog.Info("API router initialized", "mode", cfg.Server.Mode)
	return router
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		method := c.Request.Method

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()

		slog.Info("HTTP request",
			"method", method,
			"path", path,
			"status", status,
			"latency", latency.String(),
			"ip", c.ClientIP(),
		)
	}
}

// corsMiddleware adds CORS headers
func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// Package server provides the main server initialization and run logic.
package server

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/deploykit/templatehub/internal/api"
	"github.com/deploykit/templatehub/internal/api/handlers"
	"github.com/deploykit/templatehub/internal/archive"
	"github.com/deploykit/templatehub/internal/config"
	"github.com/deploykit/templatehub/internal/db"
	"github.com/deploykit/templatehub/internal/extract"
	"github.com/deploykit/templatehub/internal/logger"
	"github.com/deploykit/templatehub/internal/queue"
	"github.com/deploykit/templatehub/internal/status"
	"github.com/deploykit/templatehub/internal/worker"
	"gorm.io/gorm"
)

// Config holds the server startup options.
type Config struct {
	Port    int    // Port to run the server on (0 = use config default)
	Mode    string // Run mode: server, worker, or both
	Version string // Version string to report
}

// Run starts the service with the given options and blocks until the
// context is canceled.
func Run(ctx context.Context, cfg Config) error {
	if cfg.Version != "" {
		handlers.Version = cfg.Version
	}

	appCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if cfg.Port != 0 {
		appCfg.Server.Port = cfg.Port
	}

	logger.Init(appCfg.Log.Format, appCfg.Log.Level)
	slog.Info("Starting templatehub", "version", cfg.Version, "mode", appCfg.Server.Mode)

	database, err := db.New(appCfg.Database)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	slog.Info("Database initialized", "driver", appCfg.Database.Driver)

	if err := db.Migrate(database); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	templatesRoot, err := ensureDir(appCfg.Storage.TemplatesDir)
	if err != nil {
		return fmt.Errorf("failed to prepare templates root: %w", err)
	}

	archives, err := archive.NewStore(appCfg.Storage.ArchivesDir)
	if err != nil {
		return fmt.Errorf("failed to initialize archive store: %w", err)
	}

	jobQueue, err := createQueue(appCfg, database)
	if err != nil {
		return fmt.Errorf("failed to initialize job queue: %w", err)
	}
	defer jobQueue.Close()
	slog.Info("Extraction queue initialized", "type", appCfg.Queue.Type)

	store := status.NewGormStore(database)
	scanner := extract.NewScanner(store, templatesRoot, appCfg.Storage.DefaultBucket,
		time.Duration(appCfg.Extraction.StaleAfterMinutes)*time.Minute)

	mode := cfg.Mode
	if mode == "" {
		mode = "both"
	}
	runServer := mode == "server" || mode == "both"
	runWorker := mode == "worker" || mode == "both"
	if !runServer && !runWorker {
		return fmt.Errorf("invalid mode %q: valid modes are server, worker, both", mode)
	}

	var srv *http.Server
	var workerCancel context.CancelFunc

	if runWorker {
		extractor := extract.New(templatesRoot,
			extract.ArchiveStrategy{}, extract.ExternalStrategy{},
			worker.Reporter{Store: store})
		w := worker.New(database, jobQueue, store, archives, extractor, appCfg.Extraction.MaxConcurrent)

		workerCtx, cancel := context.WithCancel(ctx)
		workerCancel = cancel

		go func() {
			if err := w.Start(workerCtx); err != nil && err != context.Canceled {
				slog.Error("Worker failed", "error", err)
			}
		}()
		slog.Info("Extraction worker started", "max_concurrent", appCfg.Extraction.MaxConcurrent)
	}

	// Periodic reconciliation closes the gap for extractions that finished
	// without a reachable callback.
	if appCfg.Extraction.SweepIntervalMin > 0 {
		interval := time.Duration(appCfg.Extraction.SweepIntervalMin) * time.Minute
		go func() {
			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if _, err := scanner.Sweep(ctx); err != nil {
						slog.Error("Periodic reconciliation failed", "error", err)
					}
				}
			}
		}()
		slog.Info("Periodic reconciliation enabled", "interval", interval)
	}

	if runServer {
		router := api.NewRouter(appCfg, database, jobQueue, store, archives, scanner, templatesRoot)

		addr := fmt.Sprintf(":%d", appCfg.Server.Port)
		srv = &http.Server{Addr: addr, Handler: router}

		go func() {
			slog.Info("Server listening", "address", addr)
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				slog.Error("Server failed", "error", err)
			}
		}()
	}

	<-ctx.Done()
	slog.Info("Shutting down...")

	if workerCancel != nil {
		workerCancel()
		slog.Info("Worker stopped")
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server forced to shutdown: %w", err)
		}
		slog.Info("Server stopped")
	}

	slog.Info("templatehub exited")
	return nil
}

// RunWithSignalHandling starts the server and handles OS signals for graceful shutdown.
func RunWithSignalHandling(cfg Config) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, cfg)
	}()

	select {
	case sig := <-quit:
		slog.Info("Received signal", "signal", sig)
		cancel()
		err := <-errCh
		if err == context.Canceled {
			return nil
		}
		return err
	case err := <-errCh:
		return err
	}
}

// RunSweep executes a single reconciliation pass with the application
// configuration and returns its result. Used by the CLI.
func RunSweep(ctx context.Context) (extract.SweepResult, error) {
	appCfg, err := config.Load()
	if err != nil {
		return extract.SweepResult{}, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger.Init(appCfg.Log.Format, appCfg.Log.Level)

	database, err := db.New(appCfg.Database)
	if err != nil {
		return extract.SweepResult{}, fmt.Errorf("failed to initialize database: %w", err)
	}

	templatesRoot, err := ensureDir(appCfg.Storage.TemplatesDir)
	if err != nil {
		return extract.SweepResult{}, fmt.Errorf("failed to prepare templates root: %w", err)
	}

	store := status.NewGormStore(database)
	scanner := extract.NewScanner(store, templatesRoot, appCfg.Storage.DefaultBucket,
		time.Duration(appCfg.Extraction.StaleAfterMinutes)*time.Minute)

	return scanner.Sweep(ctx)
}

func ensureDir(dir string) (string, error) {
	if !filepath.IsAbs(dir) {
		abs, err := filepath.Abs(dir)
		if err != nil {
			return "", err
		}
		dir = abs
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// createQueue creates a queue based on configuration
func createQueue(cfg *config.Config, database *gorm.DB) (queue.Queue, error) {
	switch cfg.Queue.Type {
	case "memory":
		return queue.NewMemoryQueue(100), nil
	case "valkey":
		if cfg.Queue.ValkeyAddr == "" {
			return nil, fmt.Errorf("valkey address is required when queue type is valkey")
		}
		return queue.NewValkeyQueue(cfg.Queue.ValkeyAddr, database)
	default:
		return nil, fmt.Errorf("unsupported queue type: %s (supported: memory, valkey)", cfg.Queue.Type)
	}
}

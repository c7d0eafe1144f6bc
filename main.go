package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"support_worker/config"
	"support_worker/internal/bootstrap"
	"support_worker/pkg/logger"

	"github.com/joho/godotenv"
)

const (
	shutdownTimeout = 30 * time.Second // Maximum time to wait for graceful shutdown
)

func main() {
	// Initialize logger early
	logger.Init(logger.Config{
		Level:   logger.LevelInfo,
		Service: "support-worker",
	})

	// Load .env file if exists (for local development)
	if err := godotenv.Load(); err != nil {
		logger.Debug("No .env file found, using environment variables")
	}

	mode := flag.String("mode", "once", "Run mode: once, poll, index")
	dir := flag.String("dir", "./knowledge", "Document directory for -mode=index")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config: %v", err)
	}
	logger.Init(logger.Config{
		Level:   logger.ParseLevel(cfg.LogLevel),
		Service: "support-worker",
		Console: cfg.ConsoleLogs(),
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "once":
		runOnce(ctx, cfg)
	case "poll":
		runPoll(ctx, cfg)
	case "index":
		runIndex(ctx, cfg, *dir)
	default:
		logger.Fatal("Unknown mode: %s", *mode)
	}
}

func runOnce(ctx context.Context, cfg *config.Config) {
	worker, cleanup, err := bootstrap.NewWorker(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize worker: %v", err)
	}
	defer cleanup()

	summary, err := worker.RunOnce(ctx)
	if err != nil {
		logger.Error("Run failed: %v", err)
		cleanup()
		os.Exit(1)
	}
	logger.WithFields(map[string]any{"run_id": summary.RunID, "steps": summary.Steps}).
		Info("Run complete: %v", summary.Actions)
}

func runPoll(ctx context.Context, cfg *config.Config) {
	worker, cleanup, err := bootstrap.NewWorker(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize worker: %v", err)
	}
	defer cleanup()

	// Graceful shutdown with timeout
	go func() {
		<-ctx.Done()
		logger.Info("Shutting down worker (timeout: %v)...", shutdownTimeout)

		done := make(chan struct{})
		go func() {
			worker.Stop()
			close(done)
		}()

		select {
		case <-done:
			logger.Info("Worker shut down gracefully")
		case <-time.After(shutdownTimeout):
			logger.Warn("Worker shutdown timed out, forcing exit")
			os.Exit(1)
		}
	}()

	logger.Info("Starting worker (poll every %s)...", cfg.PollInterval)
	if err := worker.StartPolling(ctx); err != nil {
		logger.Error("Worker stopped: %v", err)
	}
}

func runIndex(ctx context.Context, cfg *config.Config, dir string) {
	if _, err := bootstrap.Index(ctx, cfg, dir); err != nil {
		logger.Fatal("Indexing %s failed: %v", dir, err)
	}
}

package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"

	"support_worker/adapter/in/worker"
	"support_worker/config"
	"support_worker/core/agent/rag"
	"support_worker/core/domain"
	"support_worker/pkg/logger"
)

var errCircuitOpen = errors.New("gmail circuit breaker is open")

type Worker struct {
	deps      *Dependencies
	scheduler *worker.PollScheduler
	app       *fiber.App
}

func NewWorker(ctx context.Context, cfg *config.Config) (*Worker, func(), error) {
	deps, cleanup, err := NewDependencies(ctx, cfg)
	if err != nil {
		return nil, nil, err
	}
	return &Worker{deps: deps}, cleanup, nil
}

// RunOnce processes the inbox a single time.
func (w *Worker) RunOnce(ctx context.Context) (*domain.RunSummary, error) {
	return w.deps.RunService.RunOnce(ctx)
}

// StartPolling runs the workflow every poll interval and serves the health
// endpoints until Stop is called.
func (w *Worker) StartPolling(ctx context.Context) error {
	cfg := w.deps.Config

	if w.deps.ReportStore != nil {
		last, err := w.deps.ReportStore.LatestSummary(ctx)
		switch {
		case err != nil:
			logger.Warn("Failed to load last run summary: %v", err)
		case last != nil:
			logger.WithFields(map[string]any{"run_id": last.RunID, "steps": last.Steps}).
				Info("Last run finished at %s: %v", last.FinishedAt.Format(time.RFC3339), last.Actions)
		}
	}

	w.scheduler = worker.NewPollScheduler(w.RunOnce, cfg.PollInterval)
	w.scheduler.Start()

	w.app = NewHealthApp(w.deps)
	addr := ":" + cfg.Port
	logger.Info("Starting health server on %s", addr)
	if err := w.app.Listen(addr); err != nil {
		w.scheduler.Stop()
		return fmt.Errorf("health server: %w", err)
	}
	return nil
}

func (w *Worker) Stop() {
	if w.scheduler != nil {
		w.scheduler.Stop()
	}
	if w.app != nil {
		if err := w.app.Shutdown(); err != nil {
			logger.Error("Error shutting down health server: %v", err)
		}
	}
}

func (w *Worker) Dependencies() *Dependencies {
	return w.deps
}

// Index loads every document under dir into the knowledge store. It needs
// only the model client and the vector backend, not Gmail.
func Index(ctx context.Context, cfg *config.Config, dir string) (rag.IndexStats, error) {
	if cfg.OpenAIAPIKey == "" {
		return rag.IndexStats{}, fmt.Errorf("%w: missing OPENAI_API_KEY", config.ErrInvalidConfig)
	}

	deps, cleanup, err := newInfra(ctx, cfg)
	if err != nil {
		return rag.IndexStats{}, err
	}
	defer cleanup()

	indexer := rag.NewIndexer(deps.Embedder, deps.Writer, rag.IndexerConfig{
		ChunkSize:   cfg.ChunkSize,
		Overlap:     cfg.ChunkOverlap,
		Concurrency: cfg.IndexConcurrency,
	})

	start := time.Now()
	stats, err := indexer.IndexDir(ctx, dir)
	if err != nil {
		return stats, err
	}
	logger.WithDuration(time.Since(start)).
		Info("Indexed %d files into %d chunks", stats.Files, stats.Chunks)

	if deps.SQLWriter != nil {
		sources, err := deps.SQLWriter.Sources(ctx)
		if err != nil {
			logger.Warn("Failed to list indexed sources: %v", err)
		}
		for _, s := range sources {
			logger.Debug("  %s: %d chunks", s.Source, s.Chunks)
		}
	}
	return stats, nil
}

package worker

import (
	"context"
	"sync"
	"time"

	"support_worker/core/domain"
	"support_worker/pkg/logger"
)

// =============================================================================
// PollScheduler - runs the triage workflow on a fixed interval
// =============================================================================

const (
	DefaultPollInterval = 5 * time.Minute
	// a single pass never runs longer than this
	DefaultRunTimeout = 15 * time.Minute
)

// RunFunc performs one workflow pass.
type RunFunc func(ctx context.Context) (*domain.RunSummary, error)

type PollScheduler struct {
	run        RunFunc
	interval   time.Duration
	runTimeout time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewPollScheduler creates a scheduler that calls run every interval.
func NewPollScheduler(run RunFunc, interval time.Duration) *PollScheduler {
	if interval <= 0 {
		interval = DefaultPollInterval
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &PollScheduler{
		run:        run,
		interval:   interval,
		runTimeout: DefaultRunTimeout,
		ctx:        ctx,
		cancel:     cancel,
	}
}

// Start runs one pass immediately and then one per tick.
func (s *PollScheduler) Start() {
	logger.Info("[PollScheduler] Starting with interval %s", s.interval)
	s.wg.Add(1)
	go s.loop()
}

// Stop cancels the current pass and waits for the loop to exit.
func (s *PollScheduler) Stop() {
	logger.Info("[PollScheduler] Stopping...")
	s.cancel()
	s.wg.Wait()
}

func (s *PollScheduler) loop() {
	defer s.wg.Done()

	s.tick()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.ctx.Done():
			logger.Info("[PollScheduler] Stopped")
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

func (s *PollScheduler) tick() {
	ctx, cancel := context.WithTimeout(s.ctx, s.runTimeout)
	defer cancel()

	summary, err := s.run(ctx)
	if err != nil {
		if s.ctx.Err() != nil {
			return
		}
		// the next tick starts a fresh run
		logger.WithError(err).Error("[PollScheduler] run failed")
		return
	}
	if summary != nil {
		logger.WithFields(map[string]any{"run_id": summary.RunID, "steps": summary.Steps}).
			Info("[PollScheduler] run complete: %v", summary.Actions)
	}
}

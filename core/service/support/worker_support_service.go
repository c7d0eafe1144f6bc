// Package support runs the email triage workflow and keeps process-wide
// run statistics.
package support

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"support_worker/core/agent/workflow"
	"support_worker/core/domain"
	"support_worker/pkg/logger"
)

// Runner executes one pass of the workflow.
type Runner interface {
	Run(ctx context.Context, initial workflow.State) (workflow.Result, error)
}

// Stats is a snapshot of what the process has done so far.
type Stats struct {
	Runs       int64                   `json:"runs"`
	FailedRuns int64                   `json:"failed_runs"`
	Actions    map[domain.Action]int64 `json:"actions"`
	LastRun    *domain.RunSummary      `json:"last_run,omitempty"`
}

type Service struct {
	engine Runner
	tally  *TallyReporter
	log    *logger.Logger
	newID  func() string

	mu    sync.RWMutex
	stats Stats
}

// NewService creates the run service. tally must be the reporter the
// engine's steps record into.
func NewService(engine Runner, tally *TallyReporter, l *logger.Logger) *Service {
	if l == nil {
		l = logger.Default()
	}
	return &Service{
		engine: engine,
		tally:  tally,
		log:    l,
		newID:  uuid.NewString,
		stats:  Stats{Actions: make(map[domain.Action]int64)},
	}
}

// RunOnce drains the current inbox through the workflow under a fresh run id
// and stores the run summary. The summary is returned even when the run fails.
func (s *Service) RunOnce(ctx context.Context) (*domain.RunSummary, error) {
	runID := s.newID()
	ctx = workflow.WithRunID(ctx, runID)
	log := s.log.WithContext(ctx)

	log.Info("starting run %s", runID)
	started := time.Now().UTC()
	result, runErr := s.engine.Run(ctx, workflow.State{})

	summary := &domain.RunSummary{
		RunID:      runID,
		StartedAt:  started,
		FinishedAt: time.Now().UTC(),
		Steps:      result.Steps,
		Actions:    s.tally.Take(runID),
	}
	if runErr != nil {
		summary.Error = runErr.Error()
		log.WithError(runErr).Error("run %s aborted after %d steps", runID, result.Steps)
	}

	// the summary is written even when the run was cancelled
	if err := s.tally.SaveSummary(context.WithoutCancel(ctx), summary); err != nil {
		log.WithError(err).Warn("failed to save summary for run %s", runID)
	}

	s.update(summary, runErr)
	return summary, runErr
}

func (s *Service) update(summary *domain.RunSummary, runErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.stats.Runs++
	if runErr != nil {
		s.stats.FailedRuns++
	}
	for action, n := range summary.Actions {
		s.stats.Actions[action] += int64(n)
	}
	s.stats.LastRun = summary
}

// Stats returns a copy of the accumulated statistics.
func (s *Service) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snapshot := s.stats
	snapshot.Actions = make(map[domain.Action]int64, len(s.stats.Actions))
	for k, v := range s.stats.Actions {
		snapshot.Actions[k] = v
	}
	return snapshot
}

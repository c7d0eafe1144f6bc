package support

import (
	"context"
	"errors"
	"sync"

	"support_worker/core/domain"
	"support_worker/core/port/out"
	"support_worker/pkg/logger"
)

// LogReporter writes outcomes to the structured log. It is used when no
// report store is configured.
type LogReporter struct {
	log *logger.Logger
}

func NewLogReporter(l *logger.Logger) *LogReporter {
	if l == nil {
		l = logger.Default()
	}
	return &LogReporter{log: l}
}

func (r *LogReporter) Record(ctx context.Context, o *domain.EmailOutcome) error {
	entry := r.log.WithContext(ctx).WithFields(map[string]any{
		"email_id": o.EmailID,
		"thread":   o.ThreadID,
		"category": string(o.Category),
		"action":   string(o.Action),
		"trials":   o.Trials,
	})
	if o.Error != "" {
		entry = entry.WithField("cause", o.Error)
	}
	entry.Info("email %s %s", o.EmailID, o.Action)
	return nil
}

func (r *LogReporter) SaveSummary(ctx context.Context, s *domain.RunSummary) error {
	r.log.WithContext(ctx).WithFields(map[string]any{
		"steps":   s.Steps,
		"actions": s.Actions,
	}).Info("run %s finished in %s", s.RunID, s.FinishedAt.Sub(s.StartedAt))
	return nil
}

// TallyReporter counts actions per run and forwards every call to the
// underlying reporter.
type TallyReporter struct {
	next out.RunReporter

	mu     sync.Mutex
	counts map[string]map[domain.Action]int
}

// NewTallyReporter wraps next, falling back to a LogReporter when next is nil.
func NewTallyReporter(next out.RunReporter) *TallyReporter {
	if next == nil {
		next = NewLogReporter(nil)
	}
	return &TallyReporter{next: next, counts: make(map[string]map[domain.Action]int)}
}

func (r *TallyReporter) Record(ctx context.Context, o *domain.EmailOutcome) error {
	r.mu.Lock()
	run, ok := r.counts[o.RunID]
	if !ok {
		run = make(map[domain.Action]int)
		r.counts[o.RunID] = run
	}
	run[o.Action]++
	r.mu.Unlock()

	return r.next.Record(ctx, o)
}

func (r *TallyReporter) SaveSummary(ctx context.Context, s *domain.RunSummary) error {
	return r.next.SaveSummary(ctx, s)
}

// Take returns and forgets the action counts of a run.
func (r *TallyReporter) Take(runID string) map[domain.Action]int {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := r.counts[runID]
	delete(r.counts, runID)
	if counts == nil {
		counts = make(map[domain.Action]int)
	}
	return counts
}

var (
	_ out.RunReporter = (*LogReporter)(nil)
	_ out.RunReporter = (*TallyReporter)(nil)
	_ out.RunReporter = FanOut(nil)
)

// FanOut reports to every reporter in order. All reporters are called even
// when one fails; the failures are joined.
type FanOut []out.RunReporter

func (f FanOut) Record(ctx context.Context, o *domain.EmailOutcome) error {
	var errs []error
	for _, r := range f {
		if err := r.Record(ctx, o); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (f FanOut) SaveSummary(ctx context.Context, s *domain.RunSummary) error {
	var errs []error
	for _, r := range f {
		if err := r.SaveSummary(ctx, s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

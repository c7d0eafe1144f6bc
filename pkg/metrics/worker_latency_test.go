package metrics

import (
	"testing"
	"time"
)

func TestTrackerSummary(t *testing.T) {
	tr := NewTracker(10)
	if s := tr.Summary(); s.Count != 0 || s.MaxMs != 0 {
		t.Errorf("expected empty summary, got %+v", s)
	}

	for i := 1; i <= 5; i++ {
		tr.Record(time.Duration(i) * time.Millisecond)
	}
	s := tr.Summary()
	if s.Count != 5 {
		t.Errorf("expected count 5, got %d", s.Count)
	}
	if s.AvgMs != 3 {
		t.Errorf("expected avg 3ms, got %v", s.AvgMs)
	}
	if s.P50Ms != 3 {
		t.Errorf("expected p50 3ms, got %v", s.P50Ms)
	}
	if s.MaxMs != 5 {
		t.Errorf("expected max 5ms, got %v", s.MaxMs)
	}
}

func TestTrackerWindow(t *testing.T) {
	tr := NewTracker(10)
	for i := 0; i < 10; i++ {
		tr.Record(time.Second)
	}
	tr.Record(time.Millisecond)

	s := tr.Summary()
	if s.Count != 11 {
		t.Errorf("expected lifetime count 11, got %d", s.Count)
	}
	if len(tr.samples) != 10 {
		t.Errorf("expected window of 10 samples, got %d", len(tr.samples))
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry(0)
	r.Record("categorize_email", 2*time.Millisecond)
	r.Record("categorize_email", 4*time.Millisecond)
	r.Record("send_reply", time.Millisecond)

	all := r.Summaries()
	if len(all) != 2 {
		t.Fatalf("expected 2 names, got %d", len(all))
	}
	if got := all["categorize_email"].Count; got != 2 {
		t.Errorf("expected 2 samples, got %d", got)
	}
}

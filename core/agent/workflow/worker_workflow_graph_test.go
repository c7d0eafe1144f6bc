package workflow

import (
	"context"
	"errors"
	"testing"

	"support_worker/core/domain"
	"support_worker/pkg/metrics"
)

func noop() Step {
	return NewStep(0, func(ctx context.Context, s State) (Update, error) { return Update{}, nil })
}

func fixed(o Outcome, outcomes ...Outcome) Router {
	return NewRouter(func(State) Outcome { return o }, outcomes...)
}

func TestBuildValidation(t *testing.T) {
	tests := []struct {
		name     string
		build    func(g *Graph) error
		expected error
	}{
		{
			name: "missing entry",
			build: func(g *Graph) error {
				if err := g.AddStep("a", noop()); err != nil {
					return err
				}
				return g.AddEdge("a", End)
			},
			expected: ErrMissingEntry,
		},
		{
			name: "missing transition",
			build: func(g *Graph) error {
				g.AddStep("a", noop())
				g.AddStep("b", noop())
				g.AddEdge("a", "b")
				return g.SetEntryPoint("a")
			},
			expected: ErrMissingTransition,
		},
		{
			name: "unknown target",
			build: func(g *Graph) error {
				g.AddStep("a", noop())
				g.AddEdge("a", "ghost")
				return g.SetEntryPoint("a")
			},
			expected: ErrUnknownStep,
		},
		{
			name: "unreachable step",
			build: func(g *Graph) error {
				g.AddStep("a", noop())
				g.AddStep("orphan", noop())
				g.AddEdge("a", End)
				g.AddEdge("orphan", End)
				return g.SetEntryPoint("a")
			},
			expected: ErrUnreachableStep,
		},
		{
			name: "cycle without exit",
			build: func(g *Graph) error {
				g.AddStep("a", noop())
				g.AddStep("b", noop())
				g.AddStep("c", noop())
				g.AddRoute("a", fixed("x", "x", "y"), map[Outcome]StepName{"x": End, "y": "b"})
				g.AddEdge("b", "c")
				g.AddEdge("c", "b")
				return g.SetEntryPoint("a")
			},
			expected: ErrNoTermination,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGraph(DefaultGraphConfig("test"))
			if err := tt.build(g); err != nil {
				t.Fatalf("unexpected setup error: %v", err)
			}
			if _, err := g.Build(); !errors.Is(err, tt.expected) {
				t.Errorf("expected %v, got %v", tt.expected, err)
			}
		})
	}
}

func TestAddStepRejectsDuplicatesAndReservedNames(t *testing.T) {
	g := NewGraph(DefaultGraphConfig("test"))
	if err := g.AddStep("a", noop()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.AddStep("a", noop()); !errors.Is(err, ErrDuplicateStep) {
		t.Errorf("expected ErrDuplicateStep, got %v", err)
	}
	if err := g.AddStep(End, noop()); !errors.Is(err, ErrUnknownStep) {
		t.Errorf("expected ErrUnknownStep for End, got %v", err)
	}
	if err := g.AddEdge("a", End); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := g.AddEdge("a", End); !errors.Is(err, ErrDuplicateTransition) {
		t.Errorf("expected ErrDuplicateTransition, got %v", err)
	}
}

func TestAddRouteRequiresExactCoverage(t *testing.T) {
	g := NewGraph(DefaultGraphConfig("test"))
	g.AddStep("a", noop())

	err := g.AddRoute("a", fixed("x", "x", "y"), map[Outcome]StepName{"x": End})
	if !errors.Is(err, ErrIncompleteRoute) {
		t.Errorf("expected ErrIncompleteRoute for missing outcome, got %v", err)
	}

	err = g.AddRoute("a", fixed("x", "x"), map[Outcome]StepName{"x": End, "z": End})
	if !errors.Is(err, ErrIncompleteRoute) {
		t.Errorf("expected ErrIncompleteRoute for extra outcome, got %v", err)
	}
}

func TestRunRejectsUnmappedOutcome(t *testing.T) {
	g := NewGraph(DefaultGraphConfig("test"))
	g.AddStep("a", noop())
	g.AddRoute("a", fixed("surprise", "x"), map[Outcome]StepName{"x": End})
	g.SetEntryPoint("a")

	engine, err := g.Build()
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	if _, err := engine.Run(context.Background(), State{}); !errors.Is(err, ErrUnknownOutcome) {
		t.Errorf("expected ErrUnknownOutcome, got %v", err)
	}
}

func TestRunRejectsUndeclaredWrite(t *testing.T) {
	g := NewGraph(DefaultGraphConfig("test"))
	g.AddStep("a", NewStep(FieldTrials, func(ctx context.Context, s State) (Update, error) {
		return Update{}.WithTrials(1).WithSendable(true), nil
	}))
	g.AddEdge("a", End)
	g.SetEntryPoint("a")

	engine, err := g.Build()
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	res, err := engine.Run(context.Background(), State{})
	if !errors.Is(err, ErrUndeclaredWrite) {
		t.Fatalf("expected ErrUndeclaredWrite, got %v", err)
	}
	if res.State.Trials != 0 {
		t.Errorf("rejected update should not be merged, got trials %d", res.State.Trials)
	}
}

func TestRunMergesOnlyWrittenFields(t *testing.T) {
	g := NewGraph(DefaultGraphConfig("test"))
	g.AddStep("a", NewStep(FieldTrials|FieldGeneratedEmail, func(ctx context.Context, s State) (Update, error) {
		return Update{}.WithTrials(s.Trials + 1), nil
	}))
	g.AddEdge("a", End)
	g.SetEntryPoint("a")

	engine, err := g.Build()
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}

	initial := State{
		Queue:          []domain.Email{{ID: "A"}},
		Category:       domain.CategoryCustomerFeedback,
		GeneratedEmail: "keep me",
		Trials:         1,
	}
	res, err := engine.Run(context.Background(), initial)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.State.Trials != 2 {
		t.Errorf("expected trials 2, got %d", res.State.Trials)
	}
	if res.State.GeneratedEmail != "keep me" || res.State.Category != domain.CategoryCustomerFeedback || len(res.State.Queue) != 1 {
		t.Errorf("untouched fields changed: %+v", res.State)
	}
}

func TestRunRecordsStepTimings(t *testing.T) {
	timings := metrics.NewRegistry(10)
	cfg := DefaultGraphConfig("test")
	cfg.Timings = timings

	g := NewGraph(cfg)
	g.AddStep("a", noop())
	g.AddStep("b", noop())
	g.AddEdge("a", "b")
	g.AddEdge("b", End)
	g.SetEntryPoint("a")

	engine, err := g.Build()
	if err != nil {
		t.Fatalf("unexpected build error: %v", err)
	}
	if _, err := engine.Run(context.Background(), State{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	all := timings.Summaries()
	for _, name := range []string{"a", "b"} {
		if all[name].Count != 1 {
			t.Errorf("expected one timing for %s, got %+v", name, all[name])
		}
	}
}

func TestSupportGraphBuilds(t *testing.T) {
	f := newFixture()
	engine, err := NewEngine(f.rt, DefaultGraphConfig(""))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if engine.Name() != GraphName {
		t.Errorf("expected name %q, got %q", GraphName, engine.Name())
	}

	rows := engine.Transitions()
	want := map[string]bool{
		"inbox_check -[empty]-> __end__":            true,
		"verify_draft -[rewrite]-> write_draft":     true,
		"verify_draft -[stop]-> discard_email":      true,
		"categorize_email -[skip]-> skip_unrelated": true,
		"send_reply -> inbox_check":                 true,
	}
	found := 0
	for _, r := range rows {
		if want[r] {
			found++
		}
	}
	if found != len(want) {
		t.Errorf("missing transitions, got %v", rows)
	}
}

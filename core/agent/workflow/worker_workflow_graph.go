package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"support_worker/pkg/metrics"
)

// DefaultStepLimit bounds the number of steps one run may execute.
const DefaultStepLimit = 100

// StepName identifies a step in the graph.
type StepName string

// End is the terminal marker. It is a valid transition target but not a step.
const End StepName = "__end__"

// Outcome is a router decision.
type Outcome string

// Step is one unit of work. Writes declares every field the step may
// set in its Update; the engine rejects anything else.
type Step interface {
	Writes() Field
	Run(ctx context.Context, s State) (Update, error)
}

type stepFunc struct {
	writes Field
	fn     func(ctx context.Context, s State) (Update, error)
}

func (s stepFunc) Writes() Field { return s.writes }

func (s stepFunc) Run(ctx context.Context, st State) (Update, error) { return s.fn(ctx, st) }

// NewStep adapts a function into a Step that may write the given fields.
func NewStep(writes Field, fn func(ctx context.Context, s State) (Update, error)) Step {
	return stepFunc{writes: writes, fn: fn}
}

// Router is a pure decision over the state. Outcomes lists every value
// Route can return.
type Router interface {
	Outcomes() []Outcome
	Route(s State) Outcome
}

type routerFunc struct {
	outcomes []Outcome
	fn       func(s State) Outcome
}

func (r routerFunc) Outcomes() []Outcome   { return r.outcomes }
func (r routerFunc) Route(s State) Outcome { return r.fn(s) }

// NewRouter adapts a decision function into a Router.
func NewRouter(fn func(s State) Outcome, outcomes ...Outcome) Router {
	return routerFunc{outcomes: outcomes, fn: fn}
}

// Observer is told about every step after its update has been merged.
type Observer func(ctx context.Context, step StepName, s State)

// GraphConfig configures a graph and the engine built from it.
type GraphConfig struct {
	Name      string
	StepLimit int
	Observer  Observer
	// Timings, when set, receives the duration of every step.
	Timings *metrics.Registry
}

// DefaultGraphConfig returns a config with the default step limit.
func DefaultGraphConfig(name string) GraphConfig {
	return GraphConfig{Name: name, StepLimit: DefaultStepLimit}
}

type transition struct {
	next   StepName
	router Router
	table  map[Outcome]StepName
}

func (t transition) targets() []StepName {
	if t.router == nil {
		return []StepName{t.next}
	}
	out := make([]StepName, 0, len(t.table))
	for _, to := range t.table {
		out = append(out, to)
	}
	return out
}

// Graph collects steps and transitions. Build verifies it and returns
// an Engine.
type Graph struct {
	cfg         GraphConfig
	steps       map[StepName]Step
	order       []StepName
	transitions map[StepName]transition
	entry       StepName
}

// NewGraph creates an empty graph.
func NewGraph(cfg GraphConfig) *Graph {
	if cfg.StepLimit <= 0 {
		cfg.StepLimit = DefaultStepLimit
	}
	return &Graph{
		cfg:         cfg,
		steps:       make(map[StepName]Step),
		transitions: make(map[StepName]transition),
	}
}

// AddStep registers a step under name.
func (g *Graph) AddStep(name StepName, step Step) error {
	if name == "" || name == End {
		return fmt.Errorf("%w: invalid name %q", ErrUnknownStep, name)
	}
	if step == nil {
		return fmt.Errorf("%w: %s is nil", ErrUnknownStep, name)
	}
	if _, ok := g.steps[name]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateStep, name)
	}
	g.steps[name] = step
	g.order = append(g.order, name)
	return nil
}

// AddEdge adds an unconditional transition.
func (g *Graph) AddEdge(from, to StepName) error {
	if err := g.checkSource(from); err != nil {
		return err
	}
	g.transitions[from] = transition{next: to}
	return nil
}

// AddRoute adds a conditional transition. The table must map exactly the
// outcomes the router declares.
func (g *Graph) AddRoute(from StepName, router Router, table map[Outcome]StepName) error {
	if err := g.checkSource(from); err != nil {
		return err
	}
	declared := make(map[Outcome]bool, len(router.Outcomes()))
	for _, o := range router.Outcomes() {
		declared[o] = true
		if _, ok := table[o]; !ok {
			return fmt.Errorf("%w: %s has no target for %q", ErrIncompleteRoute, from, o)
		}
	}
	copied := make(map[Outcome]StepName, len(table))
	for o, to := range table {
		if !declared[o] {
			return fmt.Errorf("%w: %s maps undeclared outcome %q", ErrIncompleteRoute, from, o)
		}
		copied[o] = to
	}
	g.transitions[from] = transition{router: router, table: copied}
	return nil
}

// SetEntryPoint marks the first step of every run.
func (g *Graph) SetEntryPoint(name StepName) error {
	if _, ok := g.steps[name]; !ok {
		return fmt.Errorf("%w: entry %s", ErrUnknownStep, name)
	}
	g.entry = name
	return nil
}

func (g *Graph) checkSource(from StepName) error {
	if _, ok := g.steps[from]; !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStep, from)
	}
	if _, ok := g.transitions[from]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTransition, from)
	}
	return nil
}

// Build verifies the graph: every step has a transition, every target
// exists, every step is reachable from the entry and can reach End.
func (g *Graph) Build() (*Engine, error) {
	if g.entry == "" {
		return nil, ErrMissingEntry
	}

	var errs []error
	for _, name := range g.order {
		t, ok := g.transitions[name]
		if !ok {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingTransition, name))
			continue
		}
		for _, to := range t.targets() {
			if _, ok := g.steps[to]; !ok && to != End {
				errs = append(errs, fmt.Errorf("%w: %s -> %s", ErrUnknownStep, name, to))
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	reached := g.forward()
	for _, name := range g.order {
		if !reached[name] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrUnreachableStep, name))
		}
	}
	terminating := g.backward()
	for _, name := range g.order {
		if !terminating[name] {
			errs = append(errs, fmt.Errorf("%w: %s", ErrNoTermination, name))
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	steps := make(map[StepName]Step, len(g.steps))
	for k, v := range g.steps {
		steps[k] = v
	}
	transitions := make(map[StepName]transition, len(g.transitions))
	for k, v := range g.transitions {
		transitions[k] = v
	}
	return &Engine{
		name:        g.cfg.Name,
		steps:       steps,
		transitions: transitions,
		entry:       g.entry,
		limit:       g.cfg.StepLimit,
		observer:    g.cfg.Observer,
		timings:     g.cfg.Timings,
	}, nil
}

func (g *Graph) forward() map[StepName]bool {
	seen := map[StepName]bool{g.entry: true}
	stack := []StepName{g.entry}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, to := range g.transitions[cur].targets() {
			if to == End || seen[to] {
				continue
			}
			seen[to] = true
			stack = append(stack, to)
		}
	}
	return seen
}

func (g *Graph) backward() map[StepName]bool {
	preds := make(map[StepName][]StepName)
	for from, t := range g.transitions {
		for _, to := range t.targets() {
			preds[to] = append(preds[to], from)
		}
	}
	seen := make(map[StepName]bool)
	stack := []StepName{End}
	for len(stack) > 0 {
		cur := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, from := range preds[cur] {
			if seen[from] {
				continue
			}
			seen[from] = true
			stack = append(stack, from)
		}
	}
	return seen
}

// Engine executes a verified graph.
type Engine struct {
	name        string
	steps       map[StepName]Step
	transitions map[StepName]transition
	entry       StepName
	limit       int
	observer    Observer
	timings     *metrics.Registry
}

// Result is the outcome of a run. It is returned alongside errors so the
// caller can inspect how far the run got.
type Result struct {
	State State
	Steps int
	Path  []StepName
}

// Name returns the graph name.
func (e *Engine) Name() string { return e.name }

// Transitions lists "from -> outcome -> to" rows in a stable order.
func (e *Engine) Transitions() []string {
	var rows []string
	for from, t := range e.transitions {
		if t.router == nil {
			rows = append(rows, fmt.Sprintf("%s -> %s", from, t.next))
			continue
		}
		for o, to := range t.table {
			rows = append(rows, fmt.Sprintf("%s -[%s]-> %s", from, o, to))
		}
	}
	sort.Strings(rows)
	return rows
}

// Run drives the state from the entry point to End. It stops with an
// error when a step fails, a step writes undeclared fields, a router
// returns an unmapped outcome, ctx is done, or the step limit is hit.
func (e *Engine) Run(ctx context.Context, initial State) (Result, error) {
	res := Result{State: initial}
	current := e.entry

	for current != End {
		if err := ctx.Err(); err != nil {
			return res, err
		}
		if res.Steps >= e.limit {
			return res, fmt.Errorf("%w: %d steps, next %s", ErrStepLimit, e.limit, current)
		}

		step := e.steps[current]
		start := time.Now()
		upd, err := step.Run(ctx, res.State)
		if e.timings != nil {
			e.timings.Record(string(current), time.Since(start))
		}
		if err != nil {
			return res, fmt.Errorf("step %s: %w", current, err)
		}
		if extra := upd.Fields() &^ step.Writes(); extra != 0 {
			return res, fmt.Errorf("%w: %s wrote %s", ErrUndeclaredWrite, current, extra)
		}

		res.State = res.State.apply(upd)
		res.Steps++
		res.Path = append(res.Path, current)
		if e.observer != nil {
			e.observer(ctx, current, res.State)
		}

		next, err := e.next(current, res.State)
		if err != nil {
			return res, err
		}
		current = next
	}
	return res, nil
}

func (e *Engine) next(current StepName, s State) (StepName, error) {
	t := e.transitions[current]
	if t.router == nil {
		return t.next, nil
	}
	outcome := t.router.Route(s)
	to, ok := t.table[outcome]
	if !ok {
		return "", fmt.Errorf("%w: %s returned %q", ErrUnknownOutcome, current, outcome)
	}
	return to, nil
}
